package core

import "github.com/shopspring/decimal"

// KeywordSets are the tenant-configurable intent keyword tables.
type KeywordSets struct {
	Binary       []string
	Confirmation []string
	List         []string
	Location     []string
}

// DefaultKeywordSets returns the stock keyword tables.
func DefaultKeywordSets() KeywordSets {
	return KeywordSets{
		Binary: []string{
			"do you", "would you", "should i", "shall we",
			"can you help", "ready to", "want me to", "interested in",
		},
		Confirmation: []string{"confirm", "verify", "are you sure", "proceed", "ready to"},
		List:         []string{"menu", "show me", "what are", "list", "browse", "options", "catalog"},
		Location:     []string{"delivery", "where", "address", "location"},
	}
}

// TenantConfig is the resolved business configuration for one tenant branch.
// The engine treats the price tables as injected, read-only maps.
type TenantConfig struct {
	ID        TenantID
	Subdomain string
	Branch    BranchID
	Name      string
	Currency  string

	RestaurantLocation LatLng
	TaxRate            decimal.Decimal

	SizeMultipliers map[Size]decimal.Decimal
	ExtrasPrices    map[ExtraID]Money
	Keywords        KeywordSets

	CarouselEnabled bool
}

// SizeMultiplier resolves the multiplier for a size, defaulting to 1.
func (t *TenantConfig) SizeMultiplier(s Size) decimal.Decimal {
	if s == SizeNone {
		return decimal.NewFromInt(1)
	}
	if m, ok := t.SizeMultipliers[s]; ok {
		return m
	}
	return decimal.NewFromInt(1)
}
