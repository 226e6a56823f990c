// Package session wires the checkout components into one storefront
// session and owns startup hydration.
package session

import (
	"context"
	"log"

	"github.com/sourcegraph/conc"

	"github.com/velora/storefront/errs"
	"github.com/velora/storefront/internal/address"
	"github.com/velora/storefront/internal/cache"
	"github.com/velora/storefront/internal/cart"
	"github.com/velora/storefront/internal/checkout"
	"github.com/velora/storefront/internal/shipping"
	"github.com/velora/storefront/internal/telemetry"
	"github.com/velora/storefront/internal/variation"
	"github.com/velora/storefront/internal/wallet"
)

// CommerceAPI is the slice of the API client the session drives directly.
// The resolver, coordinator, wallet controller and address book hold
// their own narrower views of the same client.
type CommerceAPI interface {
	FetchCart(ctx context.Context) (*cart.Snapshot, error)
	AddToCart(ctx context.Context, productID, variantID int64, quantity int) (*cart.Snapshot, error)
	UpdateQuantity(ctx context.Context, cartID, itemID int64, quantity int) (*cart.Snapshot, error)
	RemoveItem(ctx context.Context, itemID int64) error
	RemoveVoucher(ctx context.Context, cartID int64) (*cart.Snapshot, error)
}

// Options bundles the collaborators of a session.
type Options struct {
	API      CommerceAPI
	Store    *cart.Store
	Cache    cache.Store
	Resolver *variation.Resolver
	Tracker  *checkout.Tracker
	Shipping *shipping.Coordinator
	Wallet   *wallet.Controller
	Book     *address.Book
	Logger   *log.Logger
	Metrics  *telemetry.Metrics
}

// Session aggregates the checkout core behind user-facing operations.
type Session struct {
	api      CommerceAPI
	store    *cart.Store
	cache    cache.Store
	resolver *variation.Resolver
	tracker  *checkout.Tracker
	shipping *shipping.Coordinator
	wallet   *wallet.Controller
	book     *address.Book
	logger   *log.Logger
	metrics  *telemetry.Metrics

	wg conc.WaitGroup
}

// New wires the components together: cart replacements keep the tracker's
// monetary mirror in sync, and losing the selected address clears the
// tracked address.
func New(opts Options) *Session {
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	s := &Session{
		api:      opts.API,
		store:    opts.Store,
		cache:    opts.Cache,
		resolver: opts.Resolver,
		tracker:  opts.Tracker,
		shipping: opts.Shipping,
		wallet:   opts.Wallet,
		book:     opts.Book,
		logger:   logger,
		metrics:  opts.Metrics,
	}
	s.store.Subscribe(func(snapshot *cart.Snapshot) {
		if snapshot == nil {
			return
		}
		s.tracker.SyncAmounts(snapshot.SubTotal, snapshot.VATAmount, snapshot.TotalAmount, snapshot.AmountToPay)
		// A replaced cart can carry different eligible rates.
		s.shipping.Invalidate()
	})
	s.book.SetOnDeselect(func() {
		s.tracker.ClearAddress()
	})
	return s
}

// Start hydrates the cart: the durable cache is installed immediately
// when usable, then the authoritative snapshot is fetched in the
// background. A transient fetch failure degrades to the cached or empty
// state instead of blocking the interface.
func (s *Session) Start(ctx context.Context) {
	if s.store.LoadFromCache() {
		s.logger.Printf("session: cart hydrated from durable cache")
	}
	s.wg.Go(func() {
		if err := s.RefreshCart(ctx); err != nil {
			if errs.Is(err, errs.CodeNetwork) {
				s.logger.Printf("session: cart fetch failed, serving cached state: %v", err)
				return
			}
			s.logger.Printf("session: cart fetch failed: %v", err)
		}
	})
}

// Close waits for background work to settle.
func (s *Session) Close() {
	s.wg.Wait()
}

// RefreshCart fetches the authoritative snapshot and installs it.
func (s *Session) RefreshCart(ctx context.Context) error {
	snapshot, err := s.api.FetchCart(ctx)
	if err != nil {
		return err
	}
	s.store.Replace(*snapshot)
	s.metrics.SnapshotInstall(ctx)
	return nil
}

// AddToCart adds the currently resolved variant to the cart. The
// selection must be complete and resolved first.
func (s *Session) AddToCart(ctx context.Context, quantity int) error {
	state := s.resolver.State()
	if state.Variant == nil {
		return errs.New("session", errs.CodeValidation,
			errs.WithMessage("no resolved variant to add"))
	}
	snapshot, err := s.api.AddToCart(ctx, state.ProductID, state.Variant.ID, quantity)
	if err != nil {
		return err
	}
	s.store.Replace(*snapshot)
	s.metrics.SnapshotInstall(ctx)
	return nil
}

// UpdateQuantity changes a line item's quantity on the remote cart.
func (s *Session) UpdateQuantity(ctx context.Context, itemID int64, quantity int) error {
	current, ok := s.store.Current()
	if !ok {
		return errs.New("session", errs.CodeValidation, errs.WithMessage("no cart to update"))
	}
	snapshot, err := s.api.UpdateQuantity(ctx, current.ID, itemID, quantity)
	if err != nil {
		return err
	}
	s.store.Replace(*snapshot)
	s.metrics.SnapshotInstall(ctx)
	return nil
}

// RemoveItem deletes a line item, then re-fetches the authoritative cart.
func (s *Session) RemoveItem(ctx context.Context, itemID int64) error {
	if err := s.api.RemoveItem(ctx, itemID); err != nil {
		return err
	}
	return s.RefreshCart(ctx)
}

// RemoveVoucher detaches the cart's voucher.
func (s *Session) RemoveVoucher(ctx context.Context) error {
	current, ok := s.store.Current()
	if !ok {
		return errs.New("session", errs.CodeValidation, errs.WithMessage("no cart to update"))
	}
	snapshot, err := s.api.RemoveVoucher(ctx, current.ID)
	if err != nil {
		return err
	}
	s.store.Replace(*snapshot)
	s.metrics.SnapshotInstall(ctx)
	return nil
}

// SelectAddress marks an address as chosen, advances the funnel and
// kicks off the shipping-rate fetch for the new pair.
func (s *Session) SelectAddress(ctx context.Context, addressID int64) error {
	if !s.book.Select(addressID) {
		return errs.New("session", errs.CodeValidation,
			errs.WithMessage("address not in the saved list"))
	}
	s.tracker.ChooseAddress(ctx, addressID)
	if current, ok := s.store.Current(); ok {
		s.shipping.Refresh(ctx, current.ID, addressID)
	}
	return nil
}

// SelectShippingMethod records the user's shipping method choice.
func (s *Session) SelectShippingMethod(ctx context.Context, slug string) checkout.Status {
	return s.tracker.ChooseShippingMethod(ctx, slug)
}

// SelectPaymentMethod records the user's payment method choice.
func (s *Session) SelectPaymentMethod(ctx context.Context, methodID int64) checkout.Status {
	return s.tracker.ChoosePaymentMethod(ctx, methodID)
}

// SetWalletUsage toggles wallet usage through the wallet controller.
func (s *Session) SetWalletUsage(ctx context.Context, desired bool) error {
	current, ok := s.store.Current()
	if !ok {
		return errs.New("session", errs.CodeValidation, errs.WithMessage("no cart to toggle"))
	}
	_, err := s.wallet.SetWalletUsage(ctx, current.ID, desired)
	return err
}

// SaveWishlist persists the wishlist product list to the durable cache.
func (s *Session) SaveWishlist(productIDs []int64) {
	s.cache.Save(cache.KeyWishlist, productIDs)
}

// Wishlist loads the cached wishlist product list.
func (s *Session) Wishlist() []int64 {
	var ids []int64
	if !s.cache.Load(cache.KeyWishlist, &ids) {
		return nil
	}
	return ids
}
