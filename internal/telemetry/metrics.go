package telemetry

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics bundles the checkout core's counters. A nil *Metrics is a valid
// no-op receiver so components never need to guard instrumentation calls.
type Metrics struct {
	variantLookups  metric.Int64Counter
	staleDiscards   metric.Int64Counter
	httpRetries     metric.Int64Counter
	snapshotInstall metric.Int64Counter
	transitions     metric.Int64Counter
}

// NewMetrics registers the checkout core instruments on the given meter.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	variantLookups, err := meter.Int64Counter("storefront.variant.lookups",
		metric.WithDescription("Variant lookup requests issued"))
	if err != nil {
		return nil, err
	}
	staleDiscards, err := meter.Int64Counter("storefront.stale.discards",
		metric.WithDescription("Responses discarded because their input signature was superseded"))
	if err != nil {
		return nil, err
	}
	httpRetries, err := meter.Int64Counter("storefront.http.retries",
		metric.WithDescription("HTTP requests retried after a transient failure"))
	if err != nil {
		return nil, err
	}
	snapshotInstall, err := meter.Int64Counter("storefront.cart.replacements",
		metric.WithDescription("Authoritative cart snapshot installs"))
	if err != nil {
		return nil, err
	}
	transitions, err := meter.Int64Counter("storefront.checkout.transitions",
		metric.WithDescription("Order progress status transitions"))
	if err != nil {
		return nil, err
	}
	return &Metrics{
		variantLookups:  variantLookups,
		staleDiscards:   staleDiscards,
		httpRetries:     httpRetries,
		snapshotInstall: snapshotInstall,
		transitions:     transitions,
	}, nil
}

// VariantLookup counts one issued variant lookup.
func (m *Metrics) VariantLookup(ctx context.Context) {
	if m == nil {
		return
	}
	m.variantLookups.Add(ctx, 1)
}

// StaleDiscard counts one discarded stale response for the named component.
func (m *Metrics) StaleDiscard(ctx context.Context, component string) {
	if m == nil {
		return
	}
	m.staleDiscards.Add(ctx, 1, metric.WithAttributes(attribute.String("component", component)))
}

// HTTPRetry counts one retried request against the named endpoint.
func (m *Metrics) HTTPRetry(ctx context.Context, endpoint string) {
	if m == nil {
		return
	}
	m.httpRetries.Add(ctx, 1, metric.WithAttributes(attribute.String("endpoint", endpoint)))
}

// SnapshotInstall counts one wholesale cart snapshot replacement.
func (m *Metrics) SnapshotInstall(ctx context.Context) {
	if m == nil {
		return
	}
	m.snapshotInstall.Add(ctx, 1)
}

// Transition counts one checkout status transition.
func (m *Metrics) Transition(ctx context.Context, to string) {
	if m == nil {
		return
	}
	m.transitions.Add(ctx, 1, metric.WithAttributes(attribute.String("to", to)))
}
