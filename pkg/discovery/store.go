package discovery

import (
	"context"
	"fmt"
)

// Store is the shared discovered map every agent of a session reads and writes.
// Implementations are safe for concurrent use and never block on anything but
// short-held internal locks or a single round trip to their backend.
type Store interface {
	// Mark merges state s into c (see Merge) and drops any claim on c when the
	// resulting state is Start or Visited.
	Mark(c Coord, s CellState)

	// Get returns the best-known state of c, Unknown if never marked.
	Get(c Coord) CellState

	// TryClaim reserves c for owner. Exactly one of several concurrent callers succeeds.
	// Returns an ErrInvalidOwner error when owner is not positive.
	TryClaim(c Coord, owner int) (bool, error)

	// TryRelease drops the claim on c if owner holds it.
	TryRelease(c Coord, owner int) bool

	// ClaimOwner returns the owner holding c, 0 when unclaimed.
	ClaimOwner(c Coord) int

	// IsClaimed reports whether any owner holds c.
	IsClaimed(c Coord) bool

	// Snapshot returns an isolated copy of every known cell and whether any exist.
	Snapshot() (Snapshot, bool)

	// NotifyExitFound publishes an exit observation to subscribers.
	NotifyExitFound(ev ExitEvent)

	// SubscribeExitEvents delivers exit observations until ctx is cancelled or the
	// subscription is closed.
	SubscribeExitEvents(ctx context.Context) (*ExitSubscription, error)
}

func validateOwner(owner int) error {
	if owner <= 0 {
		return fmt.Errorf("invalid claim owner %d: %w", owner, ErrInvalidOwner)
	}
	return nil
}
