package domain

// Money is a price as the storefront API reports it: a decimal string
// plus an ISO currency code. Amounts are kept as strings end to end and
// only parsed when arithmetic is needed.
type Money struct {
	Amount       string `json:"amount"`
	CurrencyCode string `json:"currencyCode"`
}

type SelectedOption struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// VariantSnapshot is one variant inside a product snapshot. Price may be
// nil when the catalog response did not embed it.
type VariantSnapshot struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	Price *Money `json:"price,omitempty"`
}

// ProductSnapshot is the denormalized product data captured when an item
// was added to the cart. It exists so the UI can render without a second
// catalog fetch; it is not the source of truth for price.
type ProductSnapshot struct {
	ID       string            `json:"id"`
	Handle   string            `json:"handle"`
	Title    string            `json:"title"`
	ImageURL string            `json:"imageUrl,omitempty"`
	Variants []VariantSnapshot `json:"variants,omitempty"`
}

// LineItem is one purchasable unit the shopper intends to buy. VariantID
// is the identity key: a cart holds at most one line item per variant.
type LineItem struct {
	VariantID       string           `json:"variantId"`
	VariantTitle    string           `json:"variantTitle"`
	Product         ProductSnapshot  `json:"product"`
	Price           Money            `json:"price"`
	Quantity        int              `json:"quantity"`
	SelectedOptions []SelectedOption `json:"selectedOptions,omitempty"`
}

// CheckoutLine is what checkout creation sends to the catalog: identity
// and quantity only. Pricing authority stays with the checkout system.
type CheckoutLine struct {
	VariantID string `json:"variantId"`
	Quantity  int    `json:"quantity"`
}
