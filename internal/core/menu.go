package core

// MenuCategory is one node of the tenant menu tree with embedded products.
type MenuCategory struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Products    []Product `json:"products"`
}

// Product is a sellable menu item. Presentations and modifier groups are
// only populated by the product-details endpoint.
type Product struct {
	ID             string          `json:"id"`
	Name           string          `json:"name"`
	Description    string          `json:"description,omitempty"`
	Price          Money           `json:"price"`
	ImageURL       string          `json:"imageUrl,omitempty"`
	Available      bool            `json:"available"`
	Presentations  []Presentation  `json:"presentations,omitempty"`
	ModifierGroups []ModifierGroup `json:"modifierGroups,omitempty"`
}

// Presentation is a size/variant of a product with its own price.
type Presentation struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Price Money  `json:"price"`
}

// ModifierGroup groups optional add-ons (extras) for a product.
type ModifierGroup struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	MinSelect int        `json:"minSelect"`
	MaxSelect int        `json:"maxSelect"`
	Modifiers []Modifier `json:"modifiers"`
}

// Modifier is one selectable add-on inside a group.
type Modifier struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Price Money  `json:"price"`
}

// HasPresentations reports whether the customer must pick a size first.
func (p Product) HasPresentations() bool { return len(p.Presentations) > 0 }
