package quantgo

import "github.com/hupe1980/quantgo/sketch"

// doubleBuffer is the arena pair backing the container's entries. Exactly one
// arena is current at any time; the other is write-only scratch for the
// in-flight operation. Push, prune, merge and unique all change per-column
// entry counts and therefore cannot run in place: they write the other arena
// and flip once complete, so the previous generation stays readable until the
// new one is fully written.
type doubleBuffer struct {
	arenas  [2][]sketch.Entry
	current int
}

// Current returns the live generation.
func (b *doubleBuffer) Current() []sketch.Entry {
	return b.arenas[b.current]
}

// Scratch returns the other arena as an empty slice with at least the given
// capacity, reusing its backing storage when large enough.
func (b *doubleBuffer) Scratch(capacity int) []sketch.Entry {
	other := 1 - b.current
	if cap(b.arenas[other]) < capacity {
		b.arenas[other] = make([]sketch.Entry, 0, capacity)
	}
	return b.arenas[other][:0]
}

// Flip installs out, which must be built on the scratch arena, as the new
// current generation.
func (b *doubleBuffer) Flip(out []sketch.Entry) {
	other := 1 - b.current
	b.arenas[other] = out
	b.current = other
}
