// Package cart holds the authoritative cart snapshot and its store.
package cart

import (
	"github.com/velora/storefront/internal/money"
)

// LineItem is one cart row. It is owned by its parent Snapshot and never
// referenced outside it.
type LineItem struct {
	ID           int64        `json:"id"`
	ProductID    int64        `json:"product_id"`
	VariantID    int64        `json:"variant_id"`
	UnitPrice    money.Amount `json:"unit_price"`
	Quantity     int          `json:"quantity"`
	VariantLabel string       `json:"variant_label"`
	Image        string       `json:"image"`
	InStock      bool         `json:"in_stock"`
}

// ShippingOption is one eligible shipping method offered for the cart.
type ShippingOption struct {
	Slug string       `json:"slug"`
	Name string       `json:"name"`
	Cost money.Amount `json:"cost"`
}

// DisplayAttribute is a label/value tuple used to render the cart summary.
type DisplayAttribute struct {
	Label      string `json:"label"`
	Value      string `json:"value"`
	Color      string `json:"color"`
	IsCurrency bool   `json:"is_currency"`
}

// Snapshot is the authoritative remote-sourced cart state. It is always
// replaced wholesale, never patched field by field.
type Snapshot struct {
	ID              int64              `json:"id"`
	Status          string             `json:"status"`
	SubTotal        money.Amount       `json:"sub_total"`
	VATAmount       money.Amount       `json:"vat_amount"`
	TotalAmount     money.Amount       `json:"total_amount"`
	AmountToPay     money.Amount       `json:"amount_to_pay"`
	UseWallet       bool               `json:"use_wallet"`
	WalletBalance   money.Amount       `json:"wallet_balance"`
	Items           []LineItem         `json:"items"`
	ShippingOptions []ShippingOption   `json:"shipping_options"`
	Summary         []DisplayAttribute `json:"summary"`
	PaymentMethods  []string           `json:"payment_methods"`
}

// Clone returns a deep copy of the snapshot.
func (s *Snapshot) Clone() *Snapshot {
	if s == nil {
		return nil
	}
	out := *s
	if s.Items != nil {
		out.Items = make([]LineItem, len(s.Items))
		copy(out.Items, s.Items)
	}
	if s.ShippingOptions != nil {
		out.ShippingOptions = make([]ShippingOption, len(s.ShippingOptions))
		copy(out.ShippingOptions, s.ShippingOptions)
	}
	if s.Summary != nil {
		out.Summary = make([]DisplayAttribute, len(s.Summary))
		copy(out.Summary, s.Summary)
	}
	if s.PaymentMethods != nil {
		out.PaymentMethods = make([]string, len(s.PaymentMethods))
		copy(out.PaymentMethods, s.PaymentMethods)
	}
	return &out
}
