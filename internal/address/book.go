// Package address manages the customer's saved shipping addresses.
package address

import (
	"context"
	"log"
	"sync"
)

// Address is one saved shipping destination.
type Address struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	Phone    string `json:"phone"`
	Line1    string `json:"line1"`
	City     string `json:"city"`
	Region   string `json:"region"`
	Postcode string `json:"postcode"`
	Default  bool   `json:"default"`
}

// API exposes the remote address book operations.
type API interface {
	Addresses(ctx context.Context) ([]Address, error)
	CreateAddress(ctx context.Context, draft Address) (Address, error)
	DeleteAddress(ctx context.Context, id int64) error
}

// Book caches the address list and tracks which address is selected for
// the checkout in progress.
type Book struct {
	mu     sync.Mutex
	api    API
	logger *log.Logger

	onDeselect func()

	addresses  []Address
	selectedID int64
	busy       bool
}

// NewBook creates an address book backed by the remote API.
func NewBook(api API, logger *log.Logger) *Book {
	if logger == nil {
		logger = log.Default()
	}
	return &Book{api: api, logger: logger}
}

// SetOnDeselect registers a callback fired when the selected address
// disappears (deleted remotely or locally).
func (b *Book) SetOnDeselect(fn func()) {
	b.mu.Lock()
	b.onDeselect = fn
	b.mu.Unlock()
}

// Refresh re-fetches the address list.
func (b *Book) Refresh(ctx context.Context) error {
	addresses, err := b.api.Addresses(ctx)
	if err != nil {
		return err
	}
	b.mu.Lock()
	b.addresses = addresses
	deselect := b.reconcileSelectionLocked()
	b.mu.Unlock()
	if deselect != nil {
		deselect()
	}
	return nil
}

// Addresses returns a copy of the cached list.
func (b *Book) Addresses() []Address {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]Address, len(b.addresses))
	copy(out, b.addresses)
	return out
}

// Select marks an address as chosen for checkout. It must exist in the
// cached list; ok reports whether the selection applied.
func (b *Book) Select(id int64) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, a := range b.addresses {
		if a.ID == id {
			b.selectedID = id
			return true
		}
	}
	return false
}

// Selected returns the chosen address, ok false when none is selected.
func (b *Book) Selected() (Address, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.selectedID == 0 {
		return Address{}, false
	}
	for _, a := range b.addresses {
		if a.ID == b.selectedID {
			return a, true
		}
	}
	return Address{}, false
}

// Busy reports whether a mutating call is in flight.
func (b *Book) Busy() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.busy
}

// Create saves a new address remotely and re-fetches the list once.
func (b *Book) Create(ctx context.Context, draft Address) (Address, error) {
	b.mu.Lock()
	b.busy = true
	b.mu.Unlock()
	defer b.clearBusy()

	created, err := b.api.CreateAddress(ctx, draft)
	if err != nil {
		return Address{}, err
	}
	if err := b.Refresh(ctx); err != nil {
		b.logger.Printf("address: refresh after create failed: %v", err)
	}
	return created, nil
}

// Delete removes an address remotely and re-fetches the list exactly
// once. Deleting the selected address leaves no address selected.
func (b *Book) Delete(ctx context.Context, id int64) error {
	b.mu.Lock()
	b.busy = true
	b.mu.Unlock()
	defer b.clearBusy()

	if err := b.api.DeleteAddress(ctx, id); err != nil {
		return err
	}
	return b.Refresh(ctx)
}

func (b *Book) clearBusy() {
	b.mu.Lock()
	b.busy = false
	b.mu.Unlock()
}

// reconcileSelectionLocked drops a selection that no longer resolves to a
// cached address. Returns the deselect callback to run outside the lock.
func (b *Book) reconcileSelectionLocked() func() {
	if b.selectedID == 0 {
		return nil
	}
	for _, a := range b.addresses {
		if a.ID == b.selectedID {
			return nil
		}
	}
	b.selectedID = 0
	return b.onDeselect
}
