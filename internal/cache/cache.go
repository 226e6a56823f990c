// Package cache provides best-effort durable storage for client-side blobs.
//
// The cache is a convenience, not a source of truth: every failure is logged
// and swallowed so callers never have to distinguish "no cache" from "broken
// cache". A corrupt blob reads back as absent.
package cache

// Well-known slot keys.
const (
	// KeyCartSnapshot holds the serialized authoritative cart snapshot.
	KeyCartSnapshot = "cart_snapshot"
	// KeyWishlist holds the cached wishlist product list.
	KeyWishlist = "wishlist"
)

// Store persists one JSON blob per key.
type Store interface {
	// Save serializes v into the slot identified by key.
	Save(key string, v any)
	// Load decodes the slot into v, reporting whether a usable blob existed.
	Load(key string, v any) bool
	// Remove deletes the slot.
	Remove(key string)
}
