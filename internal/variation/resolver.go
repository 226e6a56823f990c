// Package variation resolves a user's attribute selections into one
// concrete priced and stocked variant.
package variation

import (
	"context"
	"log"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/velora/storefront/errs"
	"github.com/velora/storefront/internal/money"
	"github.com/velora/storefront/internal/telemetry"
)

// Value is one selectable value of a product attribute.
type Value struct {
	ID    string `json:"id"`
	Label string `json:"label"`
}

// Attribute is one axis of a product's variation schema (size, color, ...).
type Attribute struct {
	ID       string  `json:"id"`
	Name     string  `json:"name"`
	Values   []Value `json:"values"`
	Required bool    `json:"required"`
}

// Selection maps attribute id to the chosen value id.
type Selection map[string]string

// Clone returns an independent copy of the selection.
func (s Selection) Clone() Selection {
	if s == nil {
		return nil
	}
	out := make(Selection, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out
}

// Variant is the concrete SKU a complete selection resolves to.
type Variant struct {
	ID                 int64        `json:"id"`
	Stock              int          `json:"stock"`
	Name               string       `json:"name"`
	Price              money.Amount `json:"price"`
	PriceAfterDiscount money.Amount `json:"price_after_discount"`
}

// Lookup performs the remote variant resolution.
type Lookup interface {
	ResolveVariant(ctx context.Context, productID int64, selection Selection) (Variant, error)
}

// State is an externally visible snapshot of the resolver.
type State struct {
	ProductID int64
	Selection Selection
	Variant   *Variant
	Busy      bool
	Failed    bool
}

// Resolver tracks the current selection and owns the lookup memoization.
//
// Every outgoing lookup is tagged with the signature of the selection that
// produced it; a response whose tag no longer matches the selection at
// arrival time is discarded. That suppression is the only defense against
// out-of-order responses racing fast clicks, so the signature bookkeeping
// here must stay strictly under the mutex.
type Resolver struct {
	mu      sync.Mutex
	lookup  Lookup
	logger  *log.Logger
	metrics *telemetry.Metrics

	onChange func(State)

	productID  int64
	attributes []Attribute
	selection  Selection
	lastSig    string
	pendingSig string
	variant    *Variant
	failed     bool
}

// NewResolver creates a resolver issuing lookups through the given client.
func NewResolver(lookup Lookup, logger *log.Logger, metrics *telemetry.Metrics) *Resolver {
	if logger == nil {
		logger = log.Default()
	}
	return &Resolver{
		lookup:    lookup,
		logger:    logger,
		metrics:   metrics,
		selection: make(Selection),
	}
}

// SetOnChange registers a callback invoked after every state change,
// including lookup completion. Must be set before the first Select.
func (r *Resolver) SetOnChange(fn func(State)) {
	r.mu.Lock()
	r.onChange = fn
	r.mu.Unlock()
}

// SetProduct installs a new product's attribute schema. Any selection,
// resolved variant and lookup memo for the previous product is discarded.
func (r *Resolver) SetProduct(productID int64, attributes []Attribute) {
	r.mu.Lock()
	r.productID = productID
	r.attributes = append([]Attribute(nil), attributes...)
	r.selection = make(Selection)
	r.variant = nil
	r.failed = false
	r.lastSig = ""
	r.pendingSig = ""
	state := r.stateLocked()
	notify := r.onChange
	r.mu.Unlock()
	if notify != nil {
		notify(state)
	}
}

// Select records the chosen value for one attribute and, when the
// selection is complete and differs from the last successful lookup,
// issues exactly one remote lookup.
func (r *Resolver) Select(ctx context.Context, attributeID, valueID string) error {
	r.mu.Lock()
	attr, ok := r.attributeLocked(attributeID)
	if !ok {
		r.mu.Unlock()
		return errs.New("variation", errs.CodeValidation,
			errs.WithMessage("unknown attribute "+attributeID))
	}
	if !attr.hasValue(valueID) {
		r.mu.Unlock()
		return errs.New("variation", errs.CodeValidation,
			errs.WithMessage("unknown value "+valueID+" for attribute "+attributeID))
	}
	if r.selection[attributeID] == valueID {
		r.mu.Unlock()
		return nil
	}
	r.selection[attributeID] = valueID
	// The previous variant belongs to the previous selection, and the
	// lookup memo with it: returning to an earlier selection must
	// re-fetch, because its variant was discarded on the way out.
	r.variant = nil
	r.failed = false
	r.lastSig = ""
	r.maybeResolveLocked(ctx)
	state := r.stateLocked()
	notify := r.onChange
	r.mu.Unlock()
	if notify != nil {
		notify(state)
	}
	return nil
}

// ClearAttribute removes one attribute from the selection. The resolved
// variant is discarded and the lookup memo reset so a later re-completion
// always re-fetches.
func (r *Resolver) ClearAttribute(attributeID string) {
	r.mu.Lock()
	if _, ok := r.selection[attributeID]; !ok {
		r.mu.Unlock()
		return
	}
	delete(r.selection, attributeID)
	r.variant = nil
	r.failed = false
	r.lastSig = ""
	state := r.stateLocked()
	notify := r.onChange
	r.mu.Unlock()
	if notify != nil {
		notify(state)
	}
}

// Complete reports whether exactly one value is chosen per required attribute.
func (r *Resolver) Complete() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.completeLocked()
}

// State returns a copy of the current resolver state.
func (r *Resolver) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stateLocked()
}

func (r *Resolver) attributeLocked(id string) (Attribute, bool) {
	for _, attr := range r.attributes {
		if attr.ID == id {
			return attr, true
		}
	}
	return Attribute{}, false
}

func (a Attribute) hasValue(valueID string) bool {
	for _, v := range a.Values {
		if v.ID == valueID {
			return true
		}
	}
	return false
}

func (r *Resolver) completeLocked() bool {
	if len(r.attributes) == 0 {
		return false
	}
	for _, attr := range r.attributes {
		if !attr.Required {
			continue
		}
		if _, ok := r.selection[attr.ID]; !ok {
			return false
		}
	}
	return true
}

func (r *Resolver) stateLocked() State {
	var variant *Variant
	if r.variant != nil {
		v := *r.variant
		variant = &v
	}
	return State{
		ProductID: r.productID,
		Selection: r.selection.Clone(),
		Variant:   variant,
		Busy:      r.pendingSig != "",
		Failed:    r.failed,
	}
}

func (r *Resolver) maybeResolveLocked(ctx context.Context) {
	if !r.completeLocked() {
		return
	}
	sig := signature(r.productID, r.selection)
	if sig == r.lastSig || sig == r.pendingSig {
		return
	}
	r.pendingSig = sig
	productID := r.productID
	sel := r.selection.Clone()
	go r.resolve(ctx, productID, sel, sig)
}

func (r *Resolver) resolve(ctx context.Context, productID int64, sel Selection, sig string) {
	r.metrics.VariantLookup(ctx)
	variant, err := r.lookup.ResolveVariant(ctx, productID, sel)

	r.mu.Lock()
	current := signature(r.productID, r.selection)
	if sig != current {
		if r.pendingSig == sig {
			r.pendingSig = ""
		}
		r.mu.Unlock()
		r.metrics.StaleDiscard(ctx, "variation")
		r.logger.Printf("variation: discarded stale lookup response sig=%s", sig)
		return
	}
	r.pendingSig = ""
	if err != nil {
		r.variant = nil
		r.failed = true
		r.logger.Printf("variation: lookup failed product=%d: %v", productID, err)
	} else {
		v := variant
		r.variant = &v
		r.failed = false
		r.lastSig = sig
	}
	state := r.stateLocked()
	notify := r.onChange
	r.mu.Unlock()
	if notify != nil {
		notify(state)
	}
}

// signature produces a stable serialization of (product, selection) used
// to detect duplicate and stale lookups.
func signature(productID int64, sel Selection) string {
	keys := make([]string, 0, len(sel))
	for k := range sel {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var b strings.Builder
	b.WriteString(strconv.FormatInt(productID, 10))
	for _, k := range keys {
		b.WriteByte('|')
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(sel[k])
	}
	return b.String()
}
