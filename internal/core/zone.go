package core

// Zone is a delivery cost profile defined by the remote backend. A delivery
// address resolves to exactly one zone, or none.
type Zone struct {
	ID                     string   `json:"id"`
	Name                   string   `json:"name"`
	BaseCost               Money    `json:"baseCost"`
	BaseDistanceKm         Distance `json:"baseDistanceKm"`
	IncrementalCost        Money    `json:"incrementalCost"`
	DistanceIncrementKm    Distance `json:"distanceIncrementKm"`
	MinimumOrder           Money    `json:"minimumOrder"`
	EstimatedTimeMin       int      `json:"estimatedTimeMin"`
	AllowsFreeDelivery     bool     `json:"allowsFreeDelivery"`
	MinimumForFreeDelivery Money    `json:"minimumForFreeDelivery"`
}

// FreeDeliveryApplies is the free-delivery predicate:
// allowsFreeDelivery ∧ minimumForFreeDelivery > 0 ∧ subtotal ≥ minimum.
func (z Zone) FreeDeliveryApplies(subtotal Money) bool {
	return z.AllowsFreeDelivery &&
		ZeroMoney.LessThan(z.MinimumForFreeDelivery) &&
		!subtotal.LessThan(z.MinimumForFreeDelivery)
}

// LatLng is a WGS84 coordinate pair.
type LatLng struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}
