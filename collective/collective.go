// Package collective defines the distributed-communication boundary used to
// merge sketches across cooperating workers.
//
// The container treats the exchange as an opaque barrier-and-gather primitive
// over flattened byte buffers; no transport is embedded here. Production
// deployments inject their own Communicator (NCCL-, MPI- or RPC-backed);
// tests and single-host multi-goroutine runs use the in-process Group.
package collective

import (
	"context"
	"errors"
)

// ErrAborted is returned when a collective call cannot complete because a
// peer failed or the context was cancelled. The caller must treat it as a
// fatal failure of the round; no partial result is ever produced.
var ErrAborted = errors.New("collective aborted")

// Communicator is the opaque all-gather primitive.
//
// Allgather blocks until every worker in the group has contributed a payload
// for the current round, then returns all payloads indexed by rank. Every
// worker must call it exactly once per round or the group stalls; the
// contract provides no timeout beyond context cancellation.
type Communicator interface {
	// Rank returns this worker's index in [0, WorldSize).
	Rank() int

	// WorldSize returns the number of cooperating workers.
	WorldSize() int

	// Allgather exchanges payload with all workers and returns every
	// worker's payload, indexed by rank. The returned buffers are
	// read-only.
	Allgather(ctx context.Context, payload []byte) ([][]byte, error)
}

// SingleWorker is the degenerate communicator for non-distributed runs.
type SingleWorker struct{}

// Rank implements Communicator.
func (SingleWorker) Rank() int { return 0 }

// WorldSize implements Communicator.
func (SingleWorker) WorldSize() int { return 1 }

// Allgather implements Communicator. It returns the local payload unchanged.
func (SingleWorker) Allgather(_ context.Context, payload []byte) ([][]byte, error) {
	return [][]byte{payload}, nil
}
