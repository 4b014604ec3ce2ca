package codec

import (
	"bytes"
	"io"

	"github.com/pierrec/lz4/v4"
)

// LZ4 compresses with the LZ4 frame format. It trades ratio for speed and is
// the better pick when checkpoints land on fast local disk rather than object
// storage.
type LZ4 struct{}

// Compress implements Compressor.
func (LZ4) Compress(dst, src []byte) []byte {
	buf := bytes.NewBuffer(dst)
	w := lz4.NewWriter(buf)
	_, _ = w.Write(src)
	_ = w.Close()
	return buf.Bytes()
}

// Decompress implements Compressor.
func (LZ4) Decompress(dst, src []byte) ([]byte, error) {
	r := lz4.NewReader(bytes.NewReader(src))
	out, err := io.ReadAll(r)
	if err != nil {
		return nil, wrapErr("lz4", err)
	}
	return append(dst, out...), nil
}

// Name implements Compressor.
func (LZ4) Name() string { return "lz4" }

var _ Compressor = LZ4{}
