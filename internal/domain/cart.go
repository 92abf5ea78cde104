package domain

import "time"

// Cart is the user's stored cart. It is ephemeral input to checkout; the
// pricing engine never trusts its prices, only its line identities.
type Cart struct {
	UserID    string     `json:"user_id"`
	Items     []CartLine `json:"items"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// CartLine identifies one intended purchase line.
type CartLine struct {
	ProductID string `json:"product_id"`
	VariantID string `json:"variant_id,omitempty"`
	BundleID  string `json:"bundle_id,omitempty"`
	Quantity  int    `json:"quantity"`
}

// IsEmpty reports whether the cart has no lines.
func (c *Cart) IsEmpty() bool {
	return c == nil || len(c.Items) == 0
}
