package crawler

import (
	"context"
	"sync"
)

// CacheGate admits at most one attempt per (image, transform) pair.
//
// TryClaim reports whether the caller is the first to claim the pair. The
// check and the claim must be a single atomic operation in every
// implementation. An error is treated by the crawler as "not admitted".
type CacheGate interface {
	TryClaim(ctx context.Context, imageID, transformID string) (bool, error)
}

// ClaimRecorder is implemented by gates that persist the outcome of an
// admitted claim.
type ClaimRecorder interface {
	Complete(ctx context.Context, imageID, transformID string, ok bool) error
}

type claimKey struct {
	image     string
	transform string
}

// MemoryGate is an in-process CacheGate whose claims live as long as the gate.
type MemoryGate struct {
	claims sync.Map
}

// NewMemoryGate creates an empty gate.
func NewMemoryGate() *MemoryGate {
	return &MemoryGate{}
}

// TryClaim claims the pair with a single LoadOrStore.
func (g *MemoryGate) TryClaim(_ context.Context, imageID, transformID string) (bool, error) {
	_, loaded := g.claims.LoadOrStore(claimKey{image: imageID, transform: transformID}, struct{}{})
	return !loaded, nil
}
