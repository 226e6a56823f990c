package session

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/velora/storefront/errs"
	"github.com/velora/storefront/internal/address"
	"github.com/velora/storefront/internal/cache"
	"github.com/velora/storefront/internal/cart"
	"github.com/velora/storefront/internal/checkout"
	"github.com/velora/storefront/internal/money"
	"github.com/velora/storefront/internal/shipping"
	"github.com/velora/storefront/internal/variation"
	"github.com/velora/storefront/internal/wallet"
)

type fakeAPI struct {
	mu         sync.Mutex
	snapshot   *cart.Snapshot
	fetchErr   error
	fetchCalls int
}

func (f *fakeAPI) FetchCart(context.Context) (*cart.Snapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetchCalls++
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	return f.snapshot.Clone(), nil
}

func (f *fakeAPI) AddToCart(_ context.Context, _, variantID int64, quantity int) (*cart.Snapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	snapshot := f.snapshot.Clone()
	snapshot.Items = append(snapshot.Items, cart.LineItem{ID: 90, VariantID: variantID, Quantity: quantity})
	f.snapshot = snapshot
	return snapshot.Clone(), nil
}

func (f *fakeAPI) UpdateQuantity(_ context.Context, _, itemID int64, quantity int) (*cart.Snapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	snapshot := f.snapshot.Clone()
	for i := range snapshot.Items {
		if snapshot.Items[i].ID == itemID {
			snapshot.Items[i].Quantity = quantity
		}
	}
	f.snapshot = snapshot
	return snapshot.Clone(), nil
}

func (f *fakeAPI) RemoveItem(_ context.Context, itemID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	snapshot := f.snapshot.Clone()
	kept := snapshot.Items[:0]
	for _, item := range snapshot.Items {
		if item.ID != itemID {
			kept = append(kept, item)
		}
	}
	snapshot.Items = kept
	f.snapshot = snapshot
	return nil
}

func (f *fakeAPI) RemoveVoucher(context.Context, int64) (*cart.Snapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.snapshot.Clone(), nil
}

type fakeVariantLookup struct{}

func (fakeVariantLookup) ResolveVariant(_ context.Context, _ int64, sel variation.Selection) (variation.Variant, error) {
	return variation.Variant{ID: 700, Stock: 3, Price: money.Parse("50.00"), PriceAfterDiscount: money.Parse("50.00")}, nil
}

type fakeRates struct {
	options []cart.ShippingOption
}

func (f *fakeRates) ShippingRates(context.Context, int64, int64) ([]cart.ShippingOption, error) {
	return f.options, nil
}

type fakeWalletAPI struct{ snapshot *cart.Snapshot }

func (f *fakeWalletAPI) ToggleWallet(_ context.Context, _ int64, use bool) (*cart.Snapshot, error) {
	snapshot := f.snapshot.Clone()
	snapshot.UseWallet = use
	return snapshot, nil
}

type fakeAddressAPI struct {
	addresses []address.Address
}

func (f *fakeAddressAPI) Addresses(context.Context) ([]address.Address, error) {
	out := make([]address.Address, len(f.addresses))
	copy(out, f.addresses)
	return out, nil
}

func (f *fakeAddressAPI) CreateAddress(_ context.Context, draft address.Address) (address.Address, error) {
	draft.ID = 500
	f.addresses = append(f.addresses, draft)
	return draft, nil
}

func (f *fakeAddressAPI) DeleteAddress(_ context.Context, id int64) error {
	kept := f.addresses[:0]
	for _, a := range f.addresses {
		if a.ID != id {
			kept = append(kept, a)
		}
	}
	f.addresses = kept
	return nil
}

func baseSnapshot(amountToPay string) *cart.Snapshot {
	return &cart.Snapshot{
		ID:          42,
		Status:      "open",
		SubTotal:    money.Parse("100.00"),
		VATAmount:   money.Parse("15.00"),
		TotalAmount: money.Parse("115.00"),
		AmountToPay: money.Parse(amountToPay),
		Items: []cart.LineItem{
			{ID: 1, ProductID: 7, VariantID: 70, UnitPrice: money.Parse("50.00"), Quantity: 2, InStock: true},
		},
	}
}

type harness struct {
	session  *Session
	api      *fakeAPI
	store    *cart.Store
	mem      *cache.MemoryStore
	tracker  *checkout.Tracker
	resolver *variation.Resolver
	book     *address.Book
	rates    *fakeRates
}

func newHarness(t *testing.T, api *fakeAPI) *harness {
	t.Helper()
	mem := cache.NewMemoryStore()
	store := cart.NewStore(mem, nil)
	tracker := checkout.NewTracker(store, 99, nil, nil)
	resolver := variation.NewResolver(fakeVariantLookup{}, nil, nil)
	rates := &fakeRates{options: []cart.ShippingOption{{Slug: "standard", Cost: money.Parse("5.00")}}}
	coordinator := shipping.NewCoordinator(rates, tracker, nil, nil)
	walletCtrl := wallet.NewController(&fakeWalletAPI{snapshot: baseSnapshot("115.00")}, store, nil, nil)
	book := address.NewBook(&fakeAddressAPI{addresses: []address.Address{{ID: 5, Name: "Home"}}}, nil)

	h := &harness{api: api, store: store, mem: mem, tracker: tracker, resolver: resolver, book: book, rates: rates}
	h.session = New(Options{
		API:      api,
		Store:    store,
		Cache:    mem,
		Resolver: resolver,
		Tracker:  tracker,
		Shipping: coordinator,
		Wallet:   walletCtrl,
		Book:     book,
	})
	return h
}

func TestStartInstallsRemoteSnapshot(t *testing.T) {
	api := &fakeAPI{snapshot: baseSnapshot("115.00")}
	h := newHarness(t, api)

	h.session.Start(context.Background())
	h.session.Close()

	got, ok := h.store.Current()
	if !ok || got.ID != 42 {
		t.Fatalf("expected remote snapshot installed, got %+v ok=%v", got, ok)
	}
	var cached cart.Snapshot
	if !h.mem.Load(cache.KeyCartSnapshot, &cached) || cached.ID != 42 {
		t.Fatal("durable cache must hold the fetched snapshot")
	}
}

func TestStartFallsBackToCacheOnNetworkFailure(t *testing.T) {
	api := &fakeAPI{fetchErr: errs.New("api", errs.CodeNetwork)}
	h := newHarness(t, api)
	h.mem.Save(cache.KeyCartSnapshot, baseSnapshot("115.00"))

	h.session.Start(context.Background())
	h.session.Close()

	got, ok := h.store.Current()
	if !ok || got.ID != 42 {
		t.Fatal("cached snapshot must survive a failed remote fetch")
	}
}

func TestAddToCartRequiresResolvedVariant(t *testing.T) {
	api := &fakeAPI{snapshot: baseSnapshot("115.00")}
	h := newHarness(t, api)

	err := h.session.AddToCart(context.Background(), 1)
	if !errs.Is(err, errs.CodeValidation) {
		t.Fatalf("expected validation error without a variant, got %v", err)
	}
}

func TestAddToCartInstallsAuthoritativeSnapshot(t *testing.T) {
	api := &fakeAPI{snapshot: baseSnapshot("115.00")}
	h := newHarness(t, api)
	ctx := context.Background()

	h.resolver.SetProduct(7, []variation.Attribute{
		{ID: "size", Required: true, Values: []variation.Value{{ID: "xl"}}},
	})
	_ = h.resolver.Select(ctx, "size", "xl")
	waitResolved(t, h.resolver)

	if err := h.session.AddToCart(ctx, 1); err != nil {
		t.Fatalf("add to cart: %v", err)
	}
	got, _ := h.store.Current()
	if len(got.Items) != 2 || got.Items[1].VariantID != 700 {
		t.Fatalf("authoritative snapshot not installed: %+v", got.Items)
	}
}

func waitResolved(t *testing.T, r *variation.Resolver) {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		if state := r.State(); state.Variant != nil {
			return
		}
		select {
		case <-deadline:
			t.Fatal("variant never resolved")
		default:
			time.Sleep(time.Millisecond)
		}
	}
}

func TestRemoveItemRefetchesCart(t *testing.T) {
	api := &fakeAPI{snapshot: baseSnapshot("115.00")}
	h := newHarness(t, api)
	h.store.Replace(*baseSnapshot("115.00"))
	baseline := api.fetchCalls

	if err := h.session.RemoveItem(context.Background(), 1); err != nil {
		t.Fatalf("remove item: %v", err)
	}
	if api.fetchCalls != baseline+1 {
		t.Fatal("remove must re-fetch the authoritative cart")
	}
	got, _ := h.store.Current()
	if len(got.Items) != 0 {
		t.Fatalf("expected empty cart after removal, got %+v", got.Items)
	}
}

func TestSelectAddressDrivesShippingAndTracker(t *testing.T) {
	api := &fakeAPI{snapshot: baseSnapshot("0.00")}
	h := newHarness(t, api)
	ctx := context.Background()
	h.store.Replace(*baseSnapshot("0.00"))
	if err := h.book.Refresh(ctx); err != nil {
		t.Fatalf("refresh book: %v", err)
	}

	if err := h.session.SelectAddress(ctx, 5); err != nil {
		t.Fatalf("select address: %v", err)
	}

	// The coordinator auto-selects "standard"; with nothing to pay the
	// funnel skips the payment step entirely.
	deadline := time.After(2 * time.Second)
	for {
		p := h.tracker.Progress()
		if p.Status == checkout.StatusPlaceOrder && p.ShippingMethodSlug == "standard" {
			return
		}
		select {
		case <-deadline:
			t.Fatalf("expected placeOrder/standard, got %+v", h.tracker.Progress())
		default:
			time.Sleep(time.Millisecond)
		}
	}
}

func TestDeletingSelectedAddressClearsTrackedAddress(t *testing.T) {
	api := &fakeAPI{snapshot: baseSnapshot("115.00")}
	h := newHarness(t, api)
	ctx := context.Background()
	h.store.Replace(*baseSnapshot("115.00"))
	_ = h.book.Refresh(ctx)
	_ = h.session.SelectAddress(ctx, 5)

	if err := h.book.Delete(ctx, 5); err != nil {
		t.Fatalf("delete address: %v", err)
	}
	if h.tracker.Progress().AddressID != 0 {
		t.Fatal("tracked address must clear when the selected address is deleted")
	}
}

func TestWishlistRoundTrip(t *testing.T) {
	api := &fakeAPI{snapshot: baseSnapshot("115.00")}
	h := newHarness(t, api)

	h.session.SaveWishlist([]int64{7, 8})
	if got := h.session.Wishlist(); len(got) != 2 || got[0] != 7 {
		t.Fatalf("unexpected wishlist %v", got)
	}
}
