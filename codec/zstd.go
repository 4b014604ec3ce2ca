package codec

import "github.com/klauspost/compress/zstd"

// Shared stateless encoder/decoder; both are safe for concurrent use when
// driven through EncodeAll/DecodeAll.
var (
	zstdEncoder, _ = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	zstdDecoder, _ = zstd.NewReader(nil)
)

// Zstd compresses with Zstandard at the default level. It is the default
// compressor: sketch buffers are numeric and repetitive, and zstd gets most
// of the available ratio at negligible cost next to a network exchange.
type Zstd struct{}

// Compress implements Compressor.
func (Zstd) Compress(dst, src []byte) []byte {
	return zstdEncoder.EncodeAll(src, dst)
}

// Decompress implements Compressor.
func (Zstd) Decompress(dst, src []byte) ([]byte, error) {
	out, err := zstdDecoder.DecodeAll(src, dst)
	if err != nil {
		return nil, wrapErr("zstd", err)
	}
	return out, nil
}

// Name implements Compressor.
func (Zstd) Name() string { return "zstd" }

var _ Compressor = Zstd{}
