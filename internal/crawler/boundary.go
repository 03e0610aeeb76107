package crawler

import (
	"context"
	"sync/atomic"

	"golang.org/x/sync/semaphore"
)

// DefaultIOSlots is the default number of concurrent blocking I/O operations.
const DefaultIOSlots = 16

// Boundary is the Blocking-I/O Boundary: a pool of slots that blocking
// operations (page fetches, image downloads, disk writes) must hold while
// they run. It is separate from the compute limit, so goroutines waiting
// on the network never consume transform capacity.
type Boundary struct {
	slots    *semaphore.Weighted
	size     int64
	inFlight atomic.Int64
}

// NewBoundary creates a boundary with n slots. n < 1 is treated as 1.
func NewBoundary(n int) *Boundary {
	if n < 1 {
		n = 1
	}
	return &Boundary{
		slots: semaphore.NewWeighted(int64(n)),
		size:  int64(n),
	}
}

// Size returns the number of slots.
func (b *Boundary) Size() int {
	return int(b.size)
}

// InFlight returns the number of operations currently holding a slot.
func (b *Boundary) InFlight() int {
	return int(b.inFlight.Load())
}

// RunBlocking runs op while holding one slot of b. Waiting for a slot is
// cancellable through ctx, and op receives ctx so in-flight I/O can be
// interrupted as well. A nil boundary runs op directly.
func RunBlocking[T any](ctx context.Context, b *Boundary, op func(context.Context) (T, error)) (T, error) {
	if b == nil {
		return op(ctx)
	}
	var zero T
	if err := ctx.Err(); err != nil {
		return zero, err
	}
	if err := b.slots.Acquire(ctx, 1); err != nil {
		return zero, err
	}
	defer b.slots.Release(1)

	b.inFlight.Add(1)
	defer b.inFlight.Add(-1)

	return op(ctx)
}
