// Package checkout tracks a cart's progress through the checkout funnel.
package checkout

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/velora/storefront/internal/money"
	"github.com/velora/storefront/internal/telemetry"
)

// Status is the client's tracked position in the checkout funnel.
type Status string

const (
	// StatusDraft is the post-reset entry state; it is never reached by
	// forward progress.
	StatusDraft Status = "draft"
	// StatusAddress means a shipping address has been chosen.
	StatusAddress Status = "address"
	// StatusShippingMethod means a shipping method has been chosen and
	// payment is still owed.
	StatusShippingMethod Status = "shippingMethod"
	// StatusPayment means a payment method requiring settlement is chosen.
	StatusPayment Status = "payment"
	// StatusPlaceOrder means the order can be placed without further payment.
	StatusPlaceOrder Status = "placeOrder"
	// StatusDelivered is a remote-reported terminal state.
	StatusDelivered Status = "delivered"
	// StatusCancelled is a remote-reported terminal state.
	StatusCancelled Status = "cancelled"
)

// Progress is the tracked order state.
type Progress struct {
	AddressID          int64
	PaymentMethodID    int64
	ShippingMethodSlug string
	OrderID            int64
	Status             Status
	SubTotal           money.Amount
	VATAmount          money.Amount
	TotalAmount        money.Amount
	AmountToPay        money.Amount
	Notes              string
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// PayableSource reports the payable amount of the current authoritative
// cart snapshot. ok must be false when no snapshot is held.
type PayableSource interface {
	AmountToPay() (money.Amount, bool)
}

// Tracker advances checkout progress in response to collaborator events.
//
// The payable-amount branch always reads the live cart store, never a
// caller-supplied value: shipping cost changes can move the amount to or
// away from zero between interactions.
type Tracker struct {
	mu      sync.Mutex
	payable PayableSource
	clock   func() time.Time
	logger  *log.Logger
	metrics *telemetry.Metrics

	// codMethodID identifies the pay-on-delivery payment method, which
	// requires no settlement step.
	codMethodID int64

	progress Progress
}

// NewTracker creates a tracker reading payable amounts from source.
func NewTracker(source PayableSource, codMethodID int64, logger *log.Logger, metrics *telemetry.Metrics) *Tracker {
	if logger == nil {
		logger = log.Default()
	}
	t := &Tracker{
		payable:     source,
		clock:       time.Now,
		logger:      logger,
		metrics:     metrics,
		codMethodID: codMethodID,
	}
	t.progress = t.initialProgress()
	return t
}

// WithClock overrides the internal clock, primarily for testing. A
// tracker still in its pristine draft state is re-stamped so the
// construction timestamps come from the injected clock too.
func (t *Tracker) WithClock(clock func() time.Time) *Tracker {
	t.mu.Lock()
	defer t.mu.Unlock()
	if clock == nil {
		t.clock = time.Now
	} else {
		t.clock = clock
	}
	if t.progress.Status == StatusDraft && t.progress.OrderID == 0 && t.progress.AddressID == 0 {
		t.progress = t.initialProgress()
	}
	return t
}

func (t *Tracker) initialProgress() Progress {
	now := t.clock().UTC()
	return Progress{Status: StatusDraft, CreatedAt: now, UpdatedAt: now}
}

// Progress returns a copy of the tracked state.
func (t *Tracker) Progress() Progress {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.progress
}

// ChooseAddress records the shipping address and moves the funnel to the
// address stage.
func (t *Tracker) ChooseAddress(ctx context.Context, addressID int64) Status {
	t.mu.Lock()
	t.progress.AddressID = addressID
	t.transitionLocked(ctx, StatusAddress)
	status := t.progress.Status
	t.mu.Unlock()
	return status
}

// ChooseShippingMethod records the shipping method. When nothing is left
// to pay the payment stage is skipped entirely.
func (t *Tracker) ChooseShippingMethod(ctx context.Context, slug string) Status {
	t.mu.Lock()
	t.progress.ShippingMethodSlug = slug
	if t.payableIsZeroLocked() {
		t.transitionLocked(ctx, StatusPlaceOrder)
	} else {
		t.transitionLocked(ctx, StatusShippingMethod)
	}
	status := t.progress.Status
	t.mu.Unlock()
	return status
}

// ChoosePaymentMethod records the payment method. The pay-on-delivery
// method needs no settlement and jumps straight to placement.
func (t *Tracker) ChoosePaymentMethod(ctx context.Context, methodID int64) Status {
	t.mu.Lock()
	t.progress.PaymentMethodID = methodID
	if methodID == t.codMethodID {
		t.transitionLocked(ctx, StatusPlaceOrder)
	} else {
		t.transitionLocked(ctx, StatusPayment)
	}
	status := t.progress.Status
	t.mu.Unlock()
	return status
}

// HasShippingMethod reports whether a shipping method is already chosen.
func (t *Tracker) HasShippingMethod() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.progress.ShippingMethodSlug != ""
}

// ClearAddress drops the recorded address without touching the status,
// used when the chosen address disappears from the address book.
func (t *Tracker) ClearAddress() {
	t.mu.Lock()
	t.progress.AddressID = 0
	t.progress.UpdatedAt = t.clock().UTC()
	t.mu.Unlock()
}

// SetOrderID records the order identifier assigned on placement.
func (t *Tracker) SetOrderID(orderID int64) {
	t.mu.Lock()
	t.progress.OrderID = orderID
	t.progress.UpdatedAt = t.clock().UTC()
	t.mu.Unlock()
}

// SetNotes records free-text order notes.
func (t *Tracker) SetNotes(notes string) {
	t.mu.Lock()
	t.progress.Notes = notes
	t.progress.UpdatedAt = t.clock().UTC()
	t.mu.Unlock()
}

// SyncAmounts mirrors the monetary breakdown of the authoritative cart.
func (t *Tracker) SyncAmounts(subTotal, vat, total, amountToPay money.Amount) {
	t.mu.Lock()
	t.progress.SubTotal = subTotal
	t.progress.VATAmount = vat
	t.progress.TotalAmount = total
	t.progress.AmountToPay = amountToPay
	t.progress.UpdatedAt = t.clock().UTC()
	t.mu.Unlock()
}

// Reset clears the identifying fields and regresses the status to draft.
// This is the only path by which the status moves backward.
func (t *Tracker) Reset(ctx context.Context) {
	t.mu.Lock()
	t.progress.AddressID = 0
	t.progress.PaymentMethodID = 0
	t.progress.ShippingMethodSlug = ""
	t.progress.OrderID = 0
	t.transitionLocked(ctx, StatusDraft)
	t.mu.Unlock()
}

// Clear performs a full structural reset to initial values.
func (t *Tracker) Clear() {
	t.mu.Lock()
	t.progress = t.initialProgress()
	t.mu.Unlock()
}

func (t *Tracker) payableIsZeroLocked() bool {
	if t.payable == nil {
		return false
	}
	amount, ok := t.payable.AmountToPay()
	if !ok {
		// No snapshot: fail safe toward the payment step.
		return false
	}
	// Unparseable amounts are likewise never zero.
	return amount.IsZero()
}

func (t *Tracker) transitionLocked(ctx context.Context, to Status) {
	from := t.progress.Status
	t.progress.Status = to
	t.progress.UpdatedAt = t.clock().UTC()
	if from != to {
		t.logger.Printf("checkout: status %s -> %s", from, to)
		t.metrics.Transition(ctx, string(to))
	}
}
