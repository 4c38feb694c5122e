package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/gofiber/fiber/v2"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	fiberrecover "github.com/gofiber/fiber/v2/middleware/recover"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	httpadapter "github.com/SergeWilfried/ava-whatsapp-agent-sub002/internal/adapters/http"
	redisadapter "github.com/SergeWilfried/ava-whatsapp-agent-sub002/internal/adapters/redis"
	"github.com/SergeWilfried/ava-whatsapp-agent-sub002/internal/adapters/whatsapp"
	"github.com/SergeWilfried/ava-whatsapp-agent-sub002/internal/cart"
	"github.com/SergeWilfried/ava-whatsapp-agent-sub002/internal/catalog"
	"github.com/SergeWilfried/ava-whatsapp-agent-sub002/internal/config"
	"github.com/SergeWilfried/ava-whatsapp-agent-sub002/internal/conversation"
	"github.com/SergeWilfried/ava-whatsapp-agent-sub002/internal/core"
	"github.com/SergeWilfried/ava-whatsapp-agent-sub002/internal/delivery"
	"github.com/SergeWilfried/ava-whatsapp-agent-sub002/internal/dispatch"
	"github.com/SergeWilfried/ava-whatsapp-agent-sub002/internal/events"
	"github.com/SergeWilfried/ava-whatsapp-agent-sub002/internal/fsm"
	"github.com/SergeWilfried/ava-whatsapp-agent-sub002/internal/logger"
	"github.com/SergeWilfried/ava-whatsapp-agent-sub002/internal/phrase"
	"github.com/SergeWilfried/ava-whatsapp-agent-sub002/internal/remote"
)

// staticTenants serves the single tenant configured through the env. A
// multi-tenant deployment swaps this for a backend-driven lookup.
type staticTenants struct {
	tenant *core.TenantConfig
}

func (s *staticTenants) ByID(_ context.Context, id core.TenantID) (*core.TenantConfig, error) {
	if id != s.tenant.ID {
		return nil, errors.New("unknown tenant: " + string(id))
	}
	return s.tenant, nil
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	zlog, err := logger.New(cfg.AppEnv)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer zlog.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Optional cross-replica menu cache.
	var shared catalog.SharedCache
	if cfg.RedisURL != "" {
		redisOpts, err := goredis.ParseURL(cfg.RedisURL)
		if err != nil {
			zlog.Fatal("invalid REDIS_URL", zap.Error(err))
		}
		rdb := goredis.NewClient(redisOpts)
		defer rdb.Close()

		pingCtx, pingCancel := context.WithTimeout(ctx, 5*time.Second)
		err = rdb.Ping(pingCtx).Err()
		pingCancel()
		if err != nil {
			zlog.Warn("redis unreachable, menu cache runs in-process only", zap.Error(err))
		} else {
			shared = redisadapter.NewMenuCache(rdb, cfg.MenuCacheTTL(), zlog)
			zlog.Info("redis menu cache enabled")
		}
	}

	backend := remote.NewClient(cfg.RemoteClient(), zlog)
	menus := catalog.New(backend, shared, cfg.MenuCacheTTL(), zlog)

	tenant := cfg.Tenant()
	tenants := &staticTenants{tenant: tenant}

	cartEngine := cart.NewEngine(menus, zlog)
	pricer := delivery.NewPricer(backend, zlog)
	phrases := phrase.NewGenerator(nil, cfg.PhraseTimeout(), zlog)
	convStore := conversation.NewStore(backend, tenants, cfg.ConvSyncEnabled, cfg.RemoteClient().Timeout, zlog)

	engine := fsm.NewEngine(menus, cartEngine, pricer, backend, phrases, fsm.Config{
		IdleTTL: cfg.SessionIdleTTL(),
	}, zlog)

	transport := whatsapp.NewClient(
		whatsapp.StaticPhoneNumber(cfg.WhatsAppPhoneNumberID),
		cfg.WhatsAppToken,
		zlog,
	)

	bus := events.NewEventBus()
	dispatcher := dispatch.New(engine, tenants, transport, convStore, bus, dispatch.Config{
		IdleTTL: cfg.SessionIdleTTL(),
	}, zlog)
	dispatcher.StartJanitor(ctx, time.Minute)

	handler := httpadapter.NewHandler(
		cfg.WhatsAppVerifyToken,
		cfg.WhatsAppAppSecret,
		tenant,
		dispatcher,
		backend,
		bus,
		zlog,
	)

	app := fiber.New(fiber.Config{
		AppName:      "Ava WhatsApp Agent",
		ServerHeader: "Fiber",
	})
	app.Use(fiberrecover.New())
	app.Use(fiberlogger.New())
	handler.Register(app)

	addr := fmt.Sprintf(":%s", cfg.AppPort)
	zlog.Info("server starting",
		zap.String("addr", addr),
		zap.String("tenant", string(tenant.ID)),
		zap.String("env", cfg.AppEnv))
	if err := app.Listen(addr); err != nil {
		zlog.Fatal("server stopped", zap.Error(err))
	}
}
