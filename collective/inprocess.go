package collective

import (
	"context"
	"fmt"
	"sync"
)

// Group is an in-process collective over n workers running as goroutines in
// one address space. It implements the same blocking-barrier semantics as a
// real transport: a round completes only once all n workers have called
// Allgather, and every worker then observes the identical payload set.
type Group struct {
	n   int
	mu  sync.Mutex
	cur *round
}

type round struct {
	payloads [][]byte
	seen     []bool
	arrived  int
	done     chan struct{}
}

// NewGroup creates an in-process collective group of n workers.
func NewGroup(n int) (*Group, error) {
	if n < 1 {
		return nil, fmt.Errorf("group size must be positive, got %d", n)
	}
	return &Group{n: n}, nil
}

// WorldSize returns the group size.
func (g *Group) WorldSize() int { return g.n }

// Worker returns the Communicator bound to the given rank.
func (g *Group) Worker(rank int) (Communicator, error) {
	if rank < 0 || rank >= g.n {
		return nil, fmt.Errorf("rank %d out of range [0, %d)", rank, g.n)
	}
	return &worker{g: g, rank: rank}, nil
}

func (g *Group) allgather(ctx context.Context, rank int, payload []byte) ([][]byte, error) {
	g.mu.Lock()
	if g.cur == nil {
		g.cur = &round{
			payloads: make([][]byte, g.n),
			seen:     make([]bool, g.n),
			done:     make(chan struct{}),
		}
	}
	r := g.cur
	if r.seen[rank] {
		g.mu.Unlock()
		return nil, fmt.Errorf("%w: rank %d called allgather twice in one round", ErrAborted, rank)
	}
	buf := make([]byte, len(payload))
	copy(buf, payload)
	r.payloads[rank] = buf
	r.seen[rank] = true
	r.arrived++
	if r.arrived == g.n {
		g.cur = nil
		close(r.done)
	}
	g.mu.Unlock()

	select {
	case <-r.done:
		return r.payloads, nil
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: %v", ErrAborted, ctx.Err())
	}
}

type worker struct {
	g    *Group
	rank int
}

func (w *worker) Rank() int      { return w.rank }
func (w *worker) WorldSize() int { return w.g.n }

func (w *worker) Allgather(ctx context.Context, payload []byte) ([][]byte, error) {
	return w.g.allgather(ctx, w.rank, payload)
}
