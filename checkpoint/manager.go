// Package checkpoint persists sketch snapshots between boosting rounds so a
// long-running distributed training job can resume after a worker restart.
//
// A checkpoint is one framed blob: a small header naming the compressor, the
// compressed flattened summary, and a CRC32 trailer. Blobs go through a
// pluggable blobstore.Store; the special CURRENT blob points at the latest
// committed checkpoint name.
package checkpoint

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"

	"github.com/hupe1980/quantgo"
	"github.com/hupe1980/quantgo/blobstore"
	"github.com/hupe1980/quantgo/codec"
	"github.com/hupe1980/quantgo/internal/binenc"
)

// CurrentName is the pointer blob holding the latest committed checkpoint
// name.
const CurrentName = "CURRENT"

// Manager saves and restores sketch snapshots through a blob store.
type Manager struct {
	store   blobstore.Store
	comp    codec.Compressor
	limiter *rate.Limiter
	logger  *quantgo.Logger
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithCompressor selects the compressor recorded in checkpoint headers.
// If nil is passed, codec.Default is used.
func WithCompressor(c codec.Compressor) ManagerOption {
	return func(m *Manager) {
		if c == nil {
			c = codec.Default
		}
		m.comp = c
	}
}

// WithRateLimit throttles checkpoint uploads to the given byte rate, keeping
// background checkpointing from starving the collective exchange of network
// bandwidth. Zero or negative disables throttling.
func WithRateLimit(bytesPerSecond float64) ManagerOption {
	return func(m *Manager) {
		if bytesPerSecond <= 0 {
			m.limiter = nil
			return
		}
		m.limiter = rate.NewLimiter(rate.Limit(bytesPerSecond), int(bytesPerSecond))
	}
}

// WithLogger configures structured logging. If nil is passed, logging is
// disabled.
func WithLogger(l *quantgo.Logger) ManagerOption {
	return func(m *Manager) {
		if l == nil {
			l = quantgo.NoopLogger()
		}
		m.logger = l
	}
}

// NewManager creates a Manager over the given store.
func NewManager(store blobstore.Store, optFns ...ManagerOption) *Manager {
	m := &Manager{
		store:  store,
		comp:   codec.Default,
		logger: quantgo.NoopLogger(),
	}
	for _, fn := range optFns {
		fn(m)
	}
	return m
}

// Save persists a snapshot under the given name.
func (m *Manager) Save(ctx context.Context, name string, snap quantgo.Snapshot) error {
	body := binenc.EncodeSummary(nil, snap.Entries, snap.Columns)
	blob, err := encodeFrame(m.comp, frameMeta{
		maxBins:     snap.MaxBins,
		numRows:     snap.NumRows,
		worker:      snap.Worker,
		categorical: snap.Categorical,
	}, body)
	if err != nil {
		return fmt.Errorf("encode checkpoint %q: %w", name, err)
	}

	if err := m.throttle(ctx, len(blob)); err != nil {
		return err
	}
	if err := m.store.Put(ctx, name, blob); err != nil {
		m.logger.ErrorContext(ctx, "checkpoint save failed", "name", name, "error", err)
		return err
	}
	m.logger.InfoContext(ctx, "checkpoint saved",
		"name", name,
		"bytes", len(blob),
		"entries", len(snap.Entries),
		"codec", m.comp.Name(),
	)
	return nil
}

// Load reads the snapshot stored under the given name.
func (m *Manager) Load(ctx context.Context, name string) (quantgo.Snapshot, error) {
	blob, err := m.store.Get(ctx, name)
	if err != nil {
		return quantgo.Snapshot{}, err
	}
	meta, body, err := decodeFrame(blob)
	if err != nil {
		return quantgo.Snapshot{}, fmt.Errorf("decode checkpoint %q: %w", name, err)
	}
	entries, cols, err := binenc.DecodeSummary(body)
	if err != nil {
		return quantgo.Snapshot{}, fmt.Errorf("decode checkpoint %q: %w", name, err)
	}

	m.logger.DebugContext(ctx, "checkpoint loaded", "name", name, "entries", len(entries))
	return quantgo.Snapshot{
		Entries:     entries,
		Columns:     cols,
		MaxBins:     meta.maxBins,
		NumRows:     meta.numRows,
		Worker:      meta.worker,
		Categorical: meta.categorical,
	}, nil
}

// Commit points the CURRENT blob at the given checkpoint name. With a plain
// store this is a last-writer-wins overwrite; the s3.CommitStore upgrades it
// to an atomic conditional write.
func (m *Manager) Commit(ctx context.Context, name string) error {
	return m.store.Put(ctx, CurrentName, []byte(name))
}

// LoadCurrent loads the snapshot the CURRENT pointer refers to.
func (m *Manager) LoadCurrent(ctx context.Context) (quantgo.Snapshot, error) {
	target, err := m.store.Get(ctx, CurrentName)
	if err != nil {
		return quantgo.Snapshot{}, err
	}
	return m.Load(ctx, string(target))
}

// List returns the names of stored checkpoints with the given prefix,
// excluding the CURRENT pointer.
func (m *Manager) List(ctx context.Context, prefix string) ([]string, error) {
	names, err := m.store.List(ctx, prefix)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(names))
	for _, n := range names {
		if n != CurrentName {
			out = append(out, n)
		}
	}
	return out, nil
}

// throttle blocks until the limiter admits n bytes, in burst-sized chunks.
func (m *Manager) throttle(ctx context.Context, n int) error {
	if m.limiter == nil {
		return nil
	}
	burst := m.limiter.Burst()
	for n > 0 {
		chunk := min(n, burst)
		if err := m.limiter.WaitN(ctx, chunk); err != nil {
			return err
		}
		n -= chunk
	}
	return nil
}
