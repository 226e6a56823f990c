// Package shipping fetches eligible shipping options for a cart/address
// pair and applies the default-selection policy.
package shipping

import (
	"context"
	"log"
	"strconv"
	"sync"

	"github.com/velora/storefront/internal/cart"
	"github.com/velora/storefront/internal/checkout"
	"github.com/velora/storefront/internal/telemetry"
)

// RatesClient fetches eligible shipping options from the remote cart.
type RatesClient interface {
	ShippingRates(ctx context.Context, cartID, addressID int64) ([]cart.ShippingOption, error)
}

// MethodSelector is the slice of the progress tracker the coordinator
// drives when auto-selecting a default option.
type MethodSelector interface {
	HasShippingMethod() bool
	ChooseShippingMethod(ctx context.Context, slug string) checkout.Status
}

// Coordinator re-fetches shipping rates whenever the cart or address
// changes and auto-selects the first returned option when the user has
// not picked one yet. Responses for superseded inputs are discarded.
type Coordinator struct {
	mu      sync.Mutex
	client  RatesClient
	tracker MethodSelector
	logger  *log.Logger
	metrics *telemetry.Metrics

	onChange func([]cart.ShippingOption, bool)

	currentSig string
	lastSig    string
	options    []cart.ShippingOption
	failed     bool
}

// NewCoordinator creates a coordinator driving selections through tracker.
func NewCoordinator(client RatesClient, tracker MethodSelector, logger *log.Logger, metrics *telemetry.Metrics) *Coordinator {
	if logger == nil {
		logger = log.Default()
	}
	return &Coordinator{client: client, tracker: tracker, logger: logger, metrics: metrics}
}

// SetOnChange registers a callback invoked after every completed fetch
// with the installed options and the error flag.
func (c *Coordinator) SetOnChange(fn func(options []cart.ShippingOption, failed bool)) {
	c.mu.Lock()
	c.onChange = fn
	c.mu.Unlock()
}

// Refresh fetches rates for the given cart and address. Identical inputs
// to the last successful fetch are a no-op.
func (c *Coordinator) Refresh(ctx context.Context, cartID, addressID int64) {
	sig := strconv.FormatInt(cartID, 10) + "|" + strconv.FormatInt(addressID, 10)
	c.mu.Lock()
	if sig == c.lastSig || sig == c.currentSig {
		c.mu.Unlock()
		return
	}
	c.currentSig = sig
	c.mu.Unlock()
	go c.fetch(ctx, cartID, addressID, sig)
}

// Options returns the most recently installed option list and the error flag.
func (c *Coordinator) Options() ([]cart.ShippingOption, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	options := make([]cart.ShippingOption, len(c.options))
	copy(options, c.options)
	return options, c.failed
}

func (c *Coordinator) fetch(ctx context.Context, cartID, addressID int64, sig string) {
	options, err := c.client.ShippingRates(ctx, cartID, addressID)

	c.mu.Lock()
	if sig != c.currentSig {
		c.mu.Unlock()
		c.metrics.StaleDiscard(ctx, "shipping")
		c.logger.Printf("shipping: discarded stale rates response sig=%s", sig)
		return
	}
	c.currentSig = ""
	if err != nil {
		c.options = nil
		c.failed = true
		c.logger.Printf("shipping: rates fetch failed cart=%d address=%d: %v", cartID, addressID, err)
	} else {
		c.options = options
		c.failed = false
		c.lastSig = sig
	}
	notify := c.onChange
	installed := make([]cart.ShippingOption, len(c.options))
	copy(installed, c.options)
	failed := c.failed
	c.mu.Unlock()

	// Default-selection shortcut: pick the first returned option for the
	// user, but only when no method is chosen yet. Once a method is set
	// a re-fetch never overrides it.
	if err == nil && len(options) > 0 && !c.tracker.HasShippingMethod() {
		c.tracker.ChooseShippingMethod(ctx, options[0].Slug)
	}

	if notify != nil {
		notify(installed, failed)
	}
}

// Invalidate forgets the fetch memo so the next Refresh always re-fetches,
// used when the cart is replaced and rates may have changed.
func (c *Coordinator) Invalidate() {
	c.mu.Lock()
	c.lastSig = ""
	c.mu.Unlock()
}
