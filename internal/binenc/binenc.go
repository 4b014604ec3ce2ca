// Package binenc implements the flattened binary form of a per-column sketch:
// the column layout followed by the entry buffer. The same framing is used as
// the collective exchange payload and as the body of a checkpoint; the only
// format guarantee across workers is a matching column count.
package binenc

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"github.com/hupe1980/quantgo/layout"
	"github.com/hupe1980/quantgo/sketch"
)

// ErrTruncated indicates a frame shorter than its own header claims.
var ErrTruncated = errors.New("truncated summary frame")

const (
	headerSize = 8  // numColumns u32 + numEntries u32
	entrySize  = 28 // value f32 + rankMin f64 + rankMax f64 + wmin f64
)

// EncodedSize returns the exact frame size for the given shape.
func EncodedSize(numColumns, numEntries int) int {
	return headerSize + 4*(numColumns+1) + entrySize*numEntries
}

// EncodeSummary appends the flattened (layout, entries) frame to dst.
func EncodeSummary(dst []byte, entries []sketch.Entry, cols layout.Columns) []byte {
	numColumns := cols.NumColumns()
	need := EncodedSize(numColumns, len(entries))
	off := len(dst)
	dst = append(dst, make([]byte, need)...)
	buf := dst[off:]

	binary.LittleEndian.PutUint32(buf[0:], uint32(numColumns))
	binary.LittleEndian.PutUint32(buf[4:], uint32(len(entries)))
	p := headerSize
	for _, c := range cols {
		binary.LittleEndian.PutUint32(buf[p:], uint32(c))
		p += 4
	}
	for _, e := range entries {
		binary.LittleEndian.PutUint32(buf[p:], math.Float32bits(e.Value))
		binary.LittleEndian.PutUint64(buf[p+4:], math.Float64bits(e.RankMin))
		binary.LittleEndian.PutUint64(buf[p+12:], math.Float64bits(e.RankMax))
		binary.LittleEndian.PutUint64(buf[p+20:], math.Float64bits(e.WMin))
		p += entrySize
	}
	return dst
}

// DecodeSummary parses a frame produced by EncodeSummary.
func DecodeSummary(data []byte) ([]sketch.Entry, layout.Columns, error) {
	if len(data) < headerSize {
		return nil, nil, ErrTruncated
	}
	numColumns := int(binary.LittleEndian.Uint32(data[0:]))
	numEntries := int(binary.LittleEndian.Uint32(data[4:]))
	if len(data) < EncodedSize(numColumns, numEntries) {
		return nil, nil, fmt.Errorf("%w: have %d bytes, want %d",
			ErrTruncated, len(data), EncodedSize(numColumns, numEntries))
	}

	cols := make(layout.Columns, numColumns+1)
	p := headerSize
	for i := range cols {
		cols[i] = int32(binary.LittleEndian.Uint32(data[p:]))
		p += 4
	}
	if err := cols.Validate(); err != nil {
		return nil, nil, err
	}
	if cols.Total() != numEntries {
		return nil, nil, fmt.Errorf("%w: layout covers %d entries, frame holds %d",
			layout.ErrInvalid, cols.Total(), numEntries)
	}

	entries := make([]sketch.Entry, numEntries)
	for i := range entries {
		entries[i] = sketch.Entry{
			Value:   math.Float32frombits(binary.LittleEndian.Uint32(data[p:])),
			RankMin: math.Float64frombits(binary.LittleEndian.Uint64(data[p+4:])),
			RankMax: math.Float64frombits(binary.LittleEndian.Uint64(data[p+12:])),
			WMin:    math.Float64frombits(binary.LittleEndian.Uint64(data[p+20:])),
		}
		p += entrySize
	}
	return entries, cols, nil
}
