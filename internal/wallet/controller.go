// Package wallet toggles wallet usage against the remote cart.
package wallet

import (
	"context"
	"log"
	"sync"

	"github.com/velora/storefront/errs"
	"github.com/velora/storefront/internal/cart"
	"github.com/velora/storefront/internal/telemetry"
)

// API issues the remote wallet toggle.
type API interface {
	ToggleWallet(ctx context.Context, cartID int64, use bool) (*cart.Snapshot, error)
}

// SnapshotSink installs authoritative cart snapshots.
type SnapshotSink interface {
	Replace(snapshot cart.Snapshot)
}

// Controller flips wallet usage on the remote cart and merges the
// authoritative response back into the cart store. The displayed toggle
// state is never flipped optimistically; callers disable the control
// while Busy reports true.
type Controller struct {
	mu      sync.Mutex
	api     API
	store   SnapshotSink
	logger  *log.Logger
	metrics *telemetry.Metrics
	busy    bool
}

// NewController creates a wallet controller writing into store.
func NewController(api API, store SnapshotSink, logger *log.Logger, metrics *telemetry.Metrics) *Controller {
	if logger == nil {
		logger = log.Default()
	}
	return &Controller{api: api, store: store, logger: logger, metrics: metrics}
}

// Busy reports whether a toggle is in flight; the control surface stays
// disabled while true.
func (c *Controller) Busy() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.busy
}

// SetWalletUsage toggles wallet usage on the remote cart. On success the
// returned snapshot is installed wholesale; on failure nothing local
// changes and the error is returned without retry.
func (c *Controller) SetWalletUsage(ctx context.Context, cartID int64, desired bool) (*cart.Snapshot, error) {
	c.mu.Lock()
	if c.busy {
		c.mu.Unlock()
		return nil, errs.New("wallet", errs.CodeConflict,
			errs.WithMessage("wallet toggle already in flight"))
	}
	c.busy = true
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		c.busy = false
		c.mu.Unlock()
	}()

	snapshot, err := c.api.ToggleWallet(ctx, cartID, desired)
	if err != nil {
		c.logger.Printf("wallet: toggle cart=%d desired=%v failed: %v", cartID, desired, err)
		return nil, err
	}
	c.store.Replace(*snapshot)
	c.metrics.SnapshotInstall(ctx)
	return snapshot, nil
}
