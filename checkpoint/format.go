package checkpoint

import (
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/hupe1980/quantgo/codec"
)

const (
	// Magic identifies quantgo checkpoint blobs (ASCII: "QGS0").
	Magic = 0x51475330
	// Version is the current checkpoint format version (v1.0.0).
	Version = 0x00010000
)

var (
	ErrInvalidMagic   = errors.New("invalid checkpoint magic number")
	ErrInvalidVersion = errors.New("unsupported checkpoint version")
	ErrChecksum       = errors.New("checkpoint checksum mismatch")
	ErrUnknownCodec   = errors.New("unknown checkpoint compressor")
)

// Checksums use CRC32 (IEEE): fast, hardware-accelerated, and good enough to
// detect storage corruption. Not a tamper seal.
var crcTable = crc32.MakeTable(crc32.IEEE)

// frame layout:
//
//	magic    u32
//	version  u32
//	codec    u8 len + name bytes
//	maxBins  u32
//	numRows  u64
//	worker   u32
//	catBits  u32 len + roaring bitmap bytes (len 0 = no categorical columns)
//	body     u64 len + compressed summary frame
//	crc32    u32 over everything above
type frameMeta struct {
	maxBins     int
	numRows     int64
	worker      int
	categorical *roaring.Bitmap
}

func encodeFrame(comp codec.Compressor, meta frameMeta, body []byte) ([]byte, error) {
	var catBytes []byte
	if meta.categorical != nil && !meta.categorical.IsEmpty() {
		var err error
		catBytes, err = meta.categorical.ToBytes()
		if err != nil {
			return nil, fmt.Errorf("serialize categorical bitmap: %w", err)
		}
	}

	name := comp.Name()
	buf := make([]byte, 0, 64+len(catBytes)+len(body))
	buf = binary.LittleEndian.AppendUint32(buf, Magic)
	buf = binary.LittleEndian.AppendUint32(buf, Version)
	buf = append(buf, byte(len(name)))
	buf = append(buf, name...)
	buf = binary.LittleEndian.AppendUint32(buf, uint32(meta.maxBins))
	buf = binary.LittleEndian.AppendUint64(buf, uint64(meta.numRows))
	buf = binary.LittleEndian.AppendUint32(buf, uint32(meta.worker))
	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(catBytes)))
	buf = append(buf, catBytes...)

	compressed := comp.Compress(nil, body)
	buf = binary.LittleEndian.AppendUint64(buf, uint64(len(compressed)))
	buf = append(buf, compressed...)

	return binary.LittleEndian.AppendUint32(buf, crc32.Checksum(buf, crcTable)), nil
}

func decodeFrame(data []byte) (frameMeta, []byte, error) {
	var meta frameMeta
	if len(data) < 4+4+1+4+8+4+4+8+4 {
		return meta, nil, fmt.Errorf("%w: %d bytes", ErrInvalidMagic, len(data))
	}

	sum := binary.LittleEndian.Uint32(data[len(data)-4:])
	if crc32.Checksum(data[:len(data)-4], crcTable) != sum {
		return meta, nil, ErrChecksum
	}

	r := reader{buf: data[:len(data)-4]}
	if r.u32() != Magic {
		return meta, nil, ErrInvalidMagic
	}
	if v := r.u32(); v != Version {
		return meta, nil, fmt.Errorf("%w: 0x%08x", ErrInvalidVersion, v)
	}
	name := r.str()
	meta.maxBins = int(r.u32())
	meta.numRows = int64(r.u64())
	meta.worker = int(r.u32())
	if catBytes := r.bytes(int(r.u32())); len(catBytes) > 0 {
		bm := roaring.New()
		if err := bm.UnmarshalBinary(catBytes); err != nil {
			return meta, nil, fmt.Errorf("parse categorical bitmap: %w", err)
		}
		meta.categorical = bm
	}
	compressed := r.bytes(int(r.u64()))
	if r.err != nil {
		return meta, nil, r.err
	}

	comp, ok := codec.ByName(name)
	if !ok {
		return meta, nil, fmt.Errorf("%w: %q", ErrUnknownCodec, name)
	}
	body, err := comp.Decompress(nil, compressed)
	if err != nil {
		return meta, nil, err
	}
	return meta, body, nil
}

// reader is a bounds-checked cursor over the frame bytes.
type reader struct {
	buf []byte
	off int
	err error
}

func (r *reader) bytes(n int) []byte {
	if r.err != nil {
		return nil
	}
	if n < 0 || r.off+n > len(r.buf) {
		r.err = fmt.Errorf("truncated checkpoint frame at offset %d", r.off)
		return nil
	}
	b := r.buf[r.off : r.off+n]
	r.off += n
	return b
}

func (r *reader) u32() uint32 {
	b := r.bytes(4)
	if b == nil {
		return 0
	}
	return binary.LittleEndian.Uint32(b)
}

func (r *reader) u64() uint64 {
	b := r.bytes(8)
	if b == nil {
		return 0
	}
	return binary.LittleEndian.Uint64(b)
}

func (r *reader) str() string {
	b := r.bytes(1)
	if b == nil {
		return ""
	}
	return string(r.bytes(int(b[0])))
}
