// Package delivery computes zone-based delivery fees and validates delivery
// addresses against the remote zone catalog.
package delivery

import (
	"context"
	"fmt"
	"math"
	"strings"

	"go.uber.org/zap"

	"github.com/SergeWilfried/ava-whatsapp-agent-sub002/internal/core"
)

// CostCalculator resolves a delivery location to a zone and a distance and
// serves the zone catalog. The remote client implements it; the pricer never
// computes distance itself.
type CostCalculator interface {
	CalculateDeliveryCost(ctx context.Context, tenant *core.TenantConfig, restaurant, delivery core.LatLng) (*core.Zone, core.Distance, error)
	DeliveryZones(ctx context.Context, tenant *core.TenantConfig) ([]core.Zone, error)
}

// Quote is the outcome of a fee computation.
type Quote struct {
	Fee         core.Money
	FreeApplied bool
	Reason      string
}

type Pricer struct {
	calc CostCalculator
	log  *zap.Logger
}

func NewPricer(calc CostCalculator, log *zap.Logger) *Pricer {
	return &Pricer{calc: calc, log: log}
}

// ComputeFee applies the zone mileage formula and the free-delivery and
// minimum-order rules.
//
//	distance <= base: baseCost
//	distance >  base: baseCost + ceil((distance-base)/increment) * incrementalCost
func (p *Pricer) ComputeFee(zone *core.Zone, distanceKm core.Distance, subtotal core.Money) (Quote, error) {
	if zone == nil {
		return Quote{}, core.ErrOutOfZone
	}
	if subtotal.LessThan(zone.MinimumOrder) {
		return Quote{}, &core.MinimumNotMetError{Minimum: zone.MinimumOrder, Subtotal: subtotal}
	}
	if zone.FreeDeliveryApplies(subtotal) {
		return Quote{Fee: core.ZeroMoney, FreeApplied: true, Reason: "free delivery threshold met"}, nil
	}

	fee := zone.BaseCost
	if distanceKm > zone.BaseDistanceKm {
		increment := zone.DistanceIncrementKm
		if increment <= 0 {
			increment = 1
		}
		steps := int(math.Ceil(float64(distanceKm-zone.BaseDistanceKm) / float64(increment)))
		fee = fee.Add(zone.IncrementalCost.MulInt(steps))
	}
	return Quote{Fee: fee}, nil
}

// ZoneOverview renders the zone catalog as a short text block for users
// asking where delivery is available. An empty string means the tenant has
// no delivery zones at all.
func (p *Pricer) ZoneOverview(ctx context.Context, tenant *core.TenantConfig) (string, error) {
	zones, err := p.calc.DeliveryZones(ctx, tenant)
	if err != nil {
		return "", err
	}
	if len(zones) == 0 {
		return "", nil
	}

	var b strings.Builder
	b.WriteString("We deliver to:")
	for _, z := range zones {
		fmt.Fprintf(&b, "\n- %s: from %s %s, minimum order %s %s",
			z.Name, z.BaseCost, tenant.Currency, z.MinimumOrder, tenant.Currency)
		if z.AllowsFreeDelivery && core.ZeroMoney.LessThan(z.MinimumForFreeDelivery) {
			fmt.Fprintf(&b, ", free over %s %s", z.MinimumForFreeDelivery, tenant.Currency)
		}
	}
	return b.String(), nil
}

// ValidateAddress resolves the user location to a zone via the remote
// backend. A missing zone is reported as OutOfZone.
func (p *Pricer) ValidateAddress(ctx context.Context, tenant *core.TenantConfig, userLoc core.LatLng) (*core.Zone, core.Distance, error) {
	zone, distance, err := p.calc.CalculateDeliveryCost(ctx, tenant, tenant.RestaurantLocation, userLoc)
	if err != nil {
		return nil, 0, err
	}
	if zone == nil {
		p.log.Info("delivery location out of zone",
			zap.String("tenant", string(tenant.ID)),
			zap.Float64("lat", userLoc.Lat),
			zap.Float64("lng", userLoc.Lng))
		return nil, distance, core.ErrOutOfZone
	}
	return zone, distance, nil
}
