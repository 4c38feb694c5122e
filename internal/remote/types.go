package remote

import (
	"github.com/shopspring/decimal"

	"github.com/SergeWilfried/ava-whatsapp-agent-sub002/internal/core"
)

// The backend is inconsistent about field names (basePrice vs price,
// imageUrl vs image_url). Wire types accept both and convert to one
// canonical core shape.

type wireCategory struct {
	ID          string        `json:"id"`
	Name        string        `json:"name"`
	Description string        `json:"description"`
	Products    []wireProduct `json:"products"`
}

type wireProduct struct {
	ID             string              `json:"id"`
	Name           string              `json:"name"`
	Description    string              `json:"description"`
	BasePrice      *float64            `json:"basePrice"`
	Price          *float64            `json:"price"`
	ImageURL       string              `json:"imageUrl"`
	ImageURLSnake  string              `json:"image_url"`
	Available      *bool               `json:"available"`
	IsAvailable    *bool               `json:"isAvailable"`
	Presentations  []wirePresentation  `json:"presentations"`
	ModifierGroups []wireModifierGroup `json:"modifierGroups"`
}

type wirePresentation struct {
	ID    string   `json:"id"`
	Name  string   `json:"name"`
	Price *float64 `json:"price"`
}

type wireModifierGroup struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	MinSelect int            `json:"minSelect"`
	MaxSelect int            `json:"maxSelect"`
	Modifiers []wireModifier `json:"modifiers"`
}

type wireModifier struct {
	ID    string   `json:"id"`
	Name  string   `json:"name"`
	Price *float64 `json:"price"`
}

func moneyFromPtr(f *float64) core.Money {
	if f == nil {
		return core.ZeroMoney
	}
	return core.MoneyFromDecimal(decimal.NewFromFloat(*f))
}

func (w wireProduct) toCore() core.Product {
	price := w.BasePrice
	if price == nil {
		price = w.Price
	}
	image := w.ImageURL
	if image == "" {
		image = w.ImageURLSnake
	}
	available := true
	if w.Available != nil {
		available = *w.Available
	} else if w.IsAvailable != nil {
		available = *w.IsAvailable
	}

	p := core.Product{
		ID:          w.ID,
		Name:        w.Name,
		Description: w.Description,
		Price:       moneyFromPtr(price),
		ImageURL:    image,
		Available:   available,
	}
	for _, pres := range w.Presentations {
		p.Presentations = append(p.Presentations, core.Presentation{
			ID:    pres.ID,
			Name:  pres.Name,
			Price: moneyFromPtr(pres.Price),
		})
	}
	for _, g := range w.ModifierGroups {
		group := core.ModifierGroup{
			ID:        g.ID,
			Name:      g.Name,
			MinSelect: g.MinSelect,
			MaxSelect: g.MaxSelect,
		}
		for _, m := range g.Modifiers {
			group.Modifiers = append(group.Modifiers, core.Modifier{
				ID:    m.ID,
				Name:  m.Name,
				Price: moneyFromPtr(m.Price),
			})
		}
		p.ModifierGroups = append(p.ModifierGroups, group)
	}
	return p
}

func (w wireCategory) toCore() core.MenuCategory {
	cat := core.MenuCategory{ID: w.ID, Name: w.Name, Description: w.Description}
	for _, p := range w.Products {
		cat.Products = append(cat.Products, p.toCore())
	}
	return cat
}

type wireZone struct {
	ID                     string   `json:"id"`
	Name                   string   `json:"name"`
	BaseCost               *float64 `json:"baseCost"`
	BaseDistanceKm         float64  `json:"baseDistanceKm"`
	IncrementalCost        *float64 `json:"incrementalCost"`
	DistanceIncrementKm    float64  `json:"distanceIncrementKm"`
	MinimumOrder           *float64 `json:"minimumOrder"`
	EstimatedTimeMin       int      `json:"estimatedTimeMin"`
	AllowsFreeDelivery     bool     `json:"allowsFreeDelivery"`
	MinimumForFreeDelivery *float64 `json:"minimumForFreeDelivery"`
}

func (w wireZone) toCore() core.Zone {
	return core.Zone{
		ID:                     w.ID,
		Name:                   w.Name,
		BaseCost:               moneyFromPtr(w.BaseCost),
		BaseDistanceKm:         core.Distance(w.BaseDistanceKm),
		IncrementalCost:        moneyFromPtr(w.IncrementalCost),
		DistanceIncrementKm:    core.Distance(w.DistanceIncrementKm),
		MinimumOrder:           moneyFromPtr(w.MinimumOrder),
		EstimatedTimeMin:       w.EstimatedTimeMin,
		AllowsFreeDelivery:     w.AllowsFreeDelivery,
		MinimumForFreeDelivery: moneyFromPtr(w.MinimumForFreeDelivery),
	}
}

// costRequest is the literal calculate-cost body shape.
type costRequest struct {
	RestaurantLocation core.LatLng `json:"restaurantLocation"`
	DeliveryLocation   core.LatLng `json:"deliveryLocation"`
	SubDomain          string      `json:"subDomain"`
	LocalID            string      `json:"localId"`
}

type costResponse struct {
	Zone       *wireZone `json:"zone"`
	DistanceKm float64   `json:"distanceKm"`
}

// OrderPayload is the order-creation body.
type OrderPayload struct {
	Customer      CustomerPayload    `json:"customer"`
	Items         []OrderItemPayload `json:"items"`
	Type          string             `json:"type"`
	PaymentMethod string             `json:"paymentMethod"`
	Source        string             `json:"source"`
	DeliveryInfo  *DeliveryInfo      `json:"deliveryInfo,omitempty"`
}

type CustomerPayload struct {
	Name    string `json:"name"`
	Phone   string `json:"phone"`
	Address string `json:"address,omitempty"`
}

type OrderItemPayload struct {
	ProductID      string            `json:"productId"`
	PresentationID string            `json:"presentationId,omitempty"`
	Name           string            `json:"name"`
	Quantity       int               `json:"quantity"`
	UnitPrice      float64           `json:"unitPrice"`
	Modifiers      []ModifierPayload `json:"modifiers,omitempty"`
}

type ModifierPayload struct {
	ID    string  `json:"id"`
	Name  string  `json:"name,omitempty"`
	Price float64 `json:"price,omitempty"`
}

type DeliveryInfo struct {
	Address              string `json:"address"`
	DeliveryInstructions string `json:"deliveryInstructions,omitempty"`
}

// BuildOrderPayload converts a confirmed core order into the wire shape.
func BuildOrderPayload(o *core.Order) OrderPayload {
	payload := OrderPayload{
		Customer: CustomerPayload{
			Name:    o.Customer.Name,
			Phone:   string(o.Customer.Phone),
			Address: o.Customer.Address,
		},
		Type:          o.DeliveryMethod.WireType(),
		PaymentMethod: string(o.PaymentMethod),
		Source:        "whatsapp",
	}
	for _, item := range o.Cart.Items {
		line := OrderItemPayload{
			ProductID: item.MenuItemID,
			Name:      item.Name,
			Quantity:  item.Quantity,
			UnitPrice: item.BasePrice.Add(item.Customization.PriceAdjustment).Float64(),
		}
		for _, ex := range item.Customization.Extras {
			line.Modifiers = append(line.Modifiers, ModifierPayload{ID: string(ex)})
		}
		payload.Items = append(payload.Items, line)
	}
	if o.DeliveryMethod == core.DeliveryMethodDelivery {
		payload.DeliveryInfo = &DeliveryInfo{Address: o.Customer.Address}
	}
	return payload
}

// OrderInfo is the tracking view of a backend order.
type OrderInfo struct {
	ID               core.OrderID     `json:"id"`
	Status           core.OrderStatus `json:"status"`
	Total            float64          `json:"total"`
	EstimatedMinutes int              `json:"estimatedMinutes,omitempty"`
	CreatedAt        string           `json:"createdAt,omitempty"`
}

type createOrderResponse struct {
	OrderID core.OrderID `json:"orderId"`
	ID      core.OrderID `json:"id"`
}

type conversationResponse struct {
	SessionID core.SessionID `json:"sessionId"`
	ID        core.SessionID `json:"id"`
}
