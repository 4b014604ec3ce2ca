// Package codec centralizes payload compression for collective exchange and
// checkpoints.
//
// Compressor selection is a breaking-change boundary: persisted checkpoints
// record the compressor name in their header, and bytes written by one
// compressor cannot be read back by another. ByName resolves the recorded
// name when a checkpoint is loaded.
package codec

import "fmt"

// Compressor compresses and decompresses byte buffers.
// Implementations must be safe for concurrent use.
type Compressor interface {
	// Compress appends the compressed form of src to dst and returns the
	// extended buffer.
	Compress(dst, src []byte) []byte

	// Decompress appends the decompressed form of src to dst and returns
	// the extended buffer.
	Decompress(dst, src []byte) ([]byte, error)

	// Name returns the stable identifier recorded in headers.
	Name() string
}

// Default is the compressor used when none is configured.
var Default Compressor = Zstd{}

// ByName returns a built-in compressor by its stable name.
func ByName(name string) (Compressor, bool) {
	switch name {
	case "none":
		return None{}, true
	case "zstd":
		return Zstd{}, true
	case "lz4":
		return LZ4{}, true
	default:
		return nil, false
	}
}

// MustCompress is a helper for internal tests and benchmarks.
func MustCompress(c Compressor, src []byte) []byte {
	if c == nil {
		c = Default
	}
	return c.Compress(nil, src)
}

// None is the identity compressor.
type None struct{}

// Compress implements Compressor.
func (None) Compress(dst, src []byte) []byte {
	return append(dst, src...)
}

// Decompress implements Compressor.
func (None) Decompress(dst, src []byte) ([]byte, error) {
	return append(dst, src...), nil
}

// Name implements Compressor.
func (None) Name() string { return "none" }

var _ Compressor = None{}

func wrapErr(name string, err error) error {
	return fmt.Errorf("codec %s: %w", name, err)
}
