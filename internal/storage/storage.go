// Package storage is the durable tier: append-only offer events, one summary
// row per session, and the product and coupon catalogs. The hot tier owns
// active play; this tier owns history and audit.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/molbhav/molbhav/pkg/types"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("storage: not found")

// Storage is the durable-tier contract.
//
// Offer-event writes are idempotent on (session_id, round, actor) so retries
// after a transient failure never duplicate audit rows. Summary writes are
// upserts that never downgrade a terminal state.
type Storage interface {
	// AppendOfferEvent records one immutable offer. Replaying the same
	// (session, round, actor) is a no-op.
	AppendOfferEvent(ctx context.Context, sessionID, buyerRef string, offer *types.Offer) error

	// OfferEvents returns the session's offers in round order.
	OfferEvents(ctx context.Context, sessionID string) ([]types.Offer, error)

	// UpsertSummary writes the session summary. A stored terminal state is
	// never overwritten by a non-terminal one.
	UpsertSummary(ctx context.Context, summary *types.SessionSummary) error

	// Summary returns the session summary, or ErrNotFound.
	Summary(ctx context.Context, sessionID string) (*types.SessionSummary, error)

	// ExpiredActiveSessions lists non-terminal sessions whose expiry passed
	// before the given instant, for the reaper to finalise.
	ExpiredActiveSessions(ctx context.Context, before time.Time, limit int) ([]types.SessionSummary, error)

	// Product catalog.
	CreateProduct(ctx context.Context, p *types.Product) error
	UpdateProduct(ctx context.Context, p *types.Product) error
	GetProduct(ctx context.Context, id string) (*types.Product, error)
	ListProducts(ctx context.Context, activeOnly bool) ([]types.Product, error)
	DeactivateProduct(ctx context.Context, id string) error

	// Coupon catalog, ordered by creation.
	CreateCoupon(ctx context.Context, c *types.Coupon) error
	ListCoupons(ctx context.Context, activeOnly bool) ([]types.Coupon, error)

	// Ping verifies the backing store is reachable.
	Ping(ctx context.Context) error

	// Close closes the storage connection.
	Close() error
}
