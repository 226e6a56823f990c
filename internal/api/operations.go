package api

import (
	"context"
	"net/http"

	"github.com/velora/storefront/errs"
	"github.com/velora/storefront/internal/address"
	"github.com/velora/storefront/internal/cart"
	"github.com/velora/storefront/internal/variation"
)

// FetchCart retrieves the authoritative cart snapshot.
func (c *Client) FetchCart(ctx context.Context) (*cart.Snapshot, error) {
	var snapshot cart.Snapshot
	if err := c.do(ctx, http.MethodGet, pathFetchCart, nil, &snapshot); err != nil {
		return nil, err
	}
	if err := validateSnapshot(pathFetchCart, &snapshot); err != nil {
		return nil, err
	}
	return &snapshot, nil
}

// ToggleWallet flips wallet usage on the cart and returns the updated
// authoritative snapshot.
func (c *Client) ToggleWallet(ctx context.Context, cartID int64, use bool) (*cart.Snapshot, error) {
	path := pathToggleWallet + itoa(cartID)
	body := struct {
		UseWallet bool `json:"use_wallet"`
	}{UseWallet: use}
	var snapshot cart.Snapshot
	if err := c.do(ctx, http.MethodPost, path, body, &snapshot); err != nil {
		return nil, err
	}
	if err := validateSnapshot(path, &snapshot); err != nil {
		return nil, err
	}
	return &snapshot, nil
}

// ShippingRates fetches the shipping options eligible for the cart and
// address pair.
func (c *Client) ShippingRates(ctx context.Context, cartID, addressID int64) ([]cart.ShippingOption, error) {
	body := struct {
		OrderID   int64 `json:"order_id"`
		AddressID int64 `json:"address_id"`
	}{OrderID: cartID, AddressID: addressID}
	var options []cart.ShippingOption
	if err := c.do(ctx, http.MethodPost, pathShippingRates, body, &options); err != nil {
		return nil, err
	}
	for _, opt := range options {
		if opt.Slug == "" {
			return nil, errs.New("api"+pathShippingRates, errs.CodeValidation,
				errs.WithMessage("shipping option without slug"))
		}
	}
	return options, nil
}

// ResolveVariant turns a complete attribute selection into a concrete
// priced, stocked variant.
func (c *Client) ResolveVariant(ctx context.Context, productID int64, selection variation.Selection) (variation.Variant, error) {
	body := struct {
		ProductID  int64               `json:"product_id"`
		Attributes variation.Selection `json:"attributes"`
	}{ProductID: productID, Attributes: selection}
	var variant variation.Variant
	if err := c.do(ctx, http.MethodPost, pathResolveVariant, body, &variant); err != nil {
		return variation.Variant{}, err
	}
	if variant.ID == 0 {
		return variation.Variant{}, errs.New("api"+pathResolveVariant, errs.CodeValidation,
			errs.WithMessage("variant response missing id"))
	}
	return variant, nil
}

// AddToCart adds a resolved variant to the cart and returns the updated
// authoritative snapshot.
func (c *Client) AddToCart(ctx context.Context, productID, variantID int64, quantity int) (*cart.Snapshot, error) {
	body := struct {
		ProductID int64 `json:"product_id"`
		VariantID int64 `json:"variant_id"`
		Quantity  int   `json:"quantity"`
	}{ProductID: productID, VariantID: variantID, Quantity: quantity}
	var snapshot cart.Snapshot
	if err := c.do(ctx, http.MethodPost, pathAddToCart, body, &snapshot); err != nil {
		return nil, err
	}
	if err := validateSnapshot(pathAddToCart, &snapshot); err != nil {
		return nil, err
	}
	return &snapshot, nil
}

// UpdateQuantity changes one line item's quantity and returns the
// updated authoritative snapshot.
func (c *Client) UpdateQuantity(ctx context.Context, cartID, itemID int64, quantity int) (*cart.Snapshot, error) {
	body := struct {
		OrderID    int64 `json:"order_id"`
		CartItemID int64 `json:"cart_item_id"`
		Quantity   int   `json:"quantity"`
	}{OrderID: cartID, CartItemID: itemID, Quantity: quantity}
	var snapshot cart.Snapshot
	if err := c.do(ctx, http.MethodPost, pathUpdateQuantity, body, &snapshot); err != nil {
		return nil, err
	}
	if err := validateSnapshot(pathUpdateQuantity, &snapshot); err != nil {
		return nil, err
	}
	return &snapshot, nil
}

// RemoveItem deletes one line item from the cart.
func (c *Client) RemoveItem(ctx context.Context, itemID int64) error {
	return c.do(ctx, http.MethodDelete, pathRemoveItem+itoa(itemID), nil, nil)
}

// RemoveVoucher detaches the voucher from the cart and returns the
// updated authoritative snapshot.
func (c *Client) RemoveVoucher(ctx context.Context, cartID int64) (*cart.Snapshot, error) {
	path := pathRemoveVoucher + itoa(cartID)
	var snapshot cart.Snapshot
	if err := c.do(ctx, http.MethodPost, path, nil, &snapshot); err != nil {
		return nil, err
	}
	if err := validateSnapshot(path, &snapshot); err != nil {
		return nil, err
	}
	return &snapshot, nil
}

// Addresses lists the customer's saved addresses.
func (c *Client) Addresses(ctx context.Context) ([]address.Address, error) {
	var addresses []address.Address
	if err := c.do(ctx, http.MethodGet, pathAddresses, nil, &addresses); err != nil {
		return nil, err
	}
	return addresses, nil
}

// CreateAddress saves a new address and returns it with its remote id.
func (c *Client) CreateAddress(ctx context.Context, draft address.Address) (address.Address, error) {
	var created address.Address
	if err := c.do(ctx, http.MethodPost, pathAddresses, draft, &created); err != nil {
		return address.Address{}, err
	}
	if created.ID == 0 {
		return address.Address{}, errs.New("api"+pathAddresses, errs.CodeValidation,
			errs.WithMessage("address response missing id"))
	}
	return created, nil
}

// DeleteAddress removes a saved address.
func (c *Client) DeleteAddress(ctx context.Context, id int64) error {
	return c.do(ctx, http.MethodDelete, pathAddresses+"/"+itoa(id), nil, nil)
}

// validateSnapshot rejects snapshot payloads that lack the closed-type
// invariants the core relies on.
func validateSnapshot(path string, snapshot *cart.Snapshot) error {
	if snapshot.ID == 0 {
		return errs.New("api"+path, errs.CodeValidation,
			errs.WithMessage("cart snapshot missing id"))
	}
	for _, item := range snapshot.Items {
		if item.ID == 0 || item.Quantity < 0 {
			return errs.New("api"+path, errs.CodeValidation,
				errs.WithMessage("cart snapshot carries malformed line item"))
		}
	}
	return nil
}
