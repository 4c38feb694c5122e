package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/shopspring/decimal"

	"github.com/SergeWilfried/ava-whatsapp-agent-sub002/internal/core"
	"github.com/SergeWilfried/ava-whatsapp-agent-sub002/internal/remote"
)

// Config holds all application configuration
type Config struct {
	AppPort string `envconfig:"APP_PORT" default:"8080"`
	AppEnv  string `envconfig:"APP_ENV" default:"development"`

	// Remote ordering backend
	RemoteBaseURL         string `envconfig:"REMOTE_BASE_URL" required:"true"`
	RemoteAPIKey          string `envconfig:"REMOTE_API_KEY"`
	RequestTimeoutMS      int    `envconfig:"REQUEST_TIMEOUT_MS" default:"10000"`
	MaxRetries            int    `envconfig:"MAX_RETRIES" default:"3"`
	RetryDelayMS          int    `envconfig:"RETRY_DELAY_MS" default:"1000"`
	RateLimitMode         string `envconfig:"RATE_LIMIT_MODE" default:"exp"`
	MaxConcurrentRequests int    `envconfig:"MAX_CONCURRENT_REQUESTS" default:"10"`

	// Conversation persistence
	ConvSyncEnabled bool `envconfig:"CONV_SYNC_ENABLED" default:"true"`

	// Sessions
	SessionIdleTTLS int `envconfig:"SESSION_IDLE_TTL_S" default:"1800"`
	PhraseTimeoutMS int `envconfig:"PHRASE_TIMEOUT_MS" default:"500"`

	// Tenant / business
	TenantID        string            `envconfig:"TENANT_ID" default:"default"`
	TenantSubdomain string            `envconfig:"TENANT_SUBDOMAIN" required:"true"`
	TenantBranchID  string            `envconfig:"TENANT_BRANCH_ID" required:"true"`
	TenantName      string            `envconfig:"TENANT_NAME" default:"Restaurant"`
	Currency        string            `envconfig:"CURRENCY" default:"XOF"`
	RestaurantLat   float64           `envconfig:"RESTAURANT_LAT"`
	RestaurantLng   float64           `envconfig:"RESTAURANT_LNG"`
	TaxRate         float64           `envconfig:"TAX_RATE" default:"0"`
	SizeMultipliers map[string]string `envconfig:"SIZE_MULTIPLIERS"`
	ExtrasPrices    map[string]string `envconfig:"EXTRAS_PRICE_TABLE"`
	CarouselEnabled bool              `envconfig:"CAROUSEL_ENABLED" default:"false"`

	// Menu cache
	MenuCacheTTLS int    `envconfig:"MENU_CACHE_TTL_S" default:"300"`
	RedisURL      string `envconfig:"REDIS_URL"`

	// WhatsApp
	WhatsAppToken         string `envconfig:"WHATSAPP_TOKEN"`
	WhatsAppPhoneNumberID string `envconfig:"WHATSAPP_PHONE_NUMBER_ID"`
	WhatsAppVerifyToken   string `envconfig:"WHATSAPP_VERIFY_TOKEN"`
	WhatsAppAppSecret     string `envconfig:"WHATSAPP_APP_SECRET"`
}

var instance *Config

// Load initializes and returns the singleton Config instance
func Load() (*Config, error) {
	if instance != nil {
		return instance, nil
	}

	// Load .env file if it exists (for local development)
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(); err != nil {
			return nil, fmt.Errorf("error loading .env file: %w", err)
		}
	}

	cfg := &Config{}
	if err := envconfig.Process("", cfg); err != nil {
		return nil, fmt.Errorf("error processing environment variables: %w", err)
	}

	instance = cfg
	return instance, nil
}

// Get returns the singleton Config instance (must call Load first)
func Get() *Config {
	if instance == nil {
		panic("config not loaded: call config.Load() first")
	}
	return instance
}

// RemoteClient maps the env knobs onto the remote client configuration.
func (c *Config) RemoteClient() remote.Config {
	return remote.Config{
		BaseURL:       c.RemoteBaseURL,
		APIKey:        c.RemoteAPIKey,
		Timeout:       time.Duration(c.RequestTimeoutMS) * time.Millisecond,
		MaxRetries:    c.MaxRetries,
		RetryDelay:    time.Duration(c.RetryDelayMS) * time.Millisecond,
		Backoff:       remote.BackoffMode(c.RateLimitMode),
		MaxConcurrent: c.MaxConcurrentRequests,
	}
}

func (c *Config) SessionIdleTTL() time.Duration {
	return time.Duration(c.SessionIdleTTLS) * time.Second
}

func (c *Config) PhraseTimeout() time.Duration {
	return time.Duration(c.PhraseTimeoutMS) * time.Millisecond
}

func (c *Config) MenuCacheTTL() time.Duration {
	return time.Duration(c.MenuCacheTTLS) * time.Second
}

// Tenant resolves the single-tenant business configuration from the env.
// Unparseable map entries are skipped rather than failing startup.
func (c *Config) Tenant() *core.TenantConfig {
	t := &core.TenantConfig{
		ID:                 core.TenantID(c.TenantID),
		Subdomain:          c.TenantSubdomain,
		Branch:             core.BranchID(c.TenantBranchID),
		Name:               c.TenantName,
		Currency:           c.Currency,
		RestaurantLocation: core.LatLng{Lat: c.RestaurantLat, Lng: c.RestaurantLng},
		TaxRate:            decimal.NewFromFloat(c.TaxRate),
		SizeMultipliers:    core.DefaultSizeMultipliers(),
		ExtrasPrices:       map[core.ExtraID]core.Money{},
		Keywords:           core.DefaultKeywordSets(),
		CarouselEnabled:    c.CarouselEnabled,
	}
	for size, raw := range c.SizeMultipliers {
		if m, err := decimal.NewFromString(raw); err == nil {
			t.SizeMultipliers[core.Size(size)] = m
		}
	}
	for id, raw := range c.ExtrasPrices {
		if price, err := core.ParseMoney(raw); err == nil {
			t.ExtrasPrices[core.ExtraID(id)] = price
		}
	}
	return t
}
