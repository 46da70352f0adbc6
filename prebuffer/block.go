package prebuffer

import "sync"

// block is a fixed-capacity buffer holding a single contiguous valid byte
// range [begin, end). Bytes in that range are never rewritten until a seek
// resets the range, which is what makes a zero-copy Peek into a block safe:
// a reader holding a slice into buffer[begin:end] is never handed stale
// data out from under it mid-peek.
type block struct {
	mu     sync.Mutex
	buffer []byte
	begin  int
	end    int
}

// newBlock allocates a block of the given capacity via pool, with
// begin = end = 0.
func newBlock(pool byteSlicePooler, capacity int) *block {
	return &block{buffer: pool.RentSlice(uint32(capacity))}
}

// capacity returns the block's fixed buffer length.
func (b *block) capacity() int {
	return len(b.buffer)
}

// resetTo applies the partial-fill reset rules from the producer's pick
// step: aligning the block's valid range with a new target in-block offset
// off, given the caller already holds b.mu.
func (b *block) resetTo(off int) {
	switch {
	case off < b.begin:
		// target lies before the current valid region: drop everything
		b.begin, b.end = off, off
	default:
		// off >= b.begin: whether off is inside [begin,end) or beyond it,
		// the chosen policy always drops forward to off rather than
		// re-seeking the source to skip a small intra-block gap.
		b.end = off
	}
}

// byteSlicePooler is the narrow subset of common.ByteSlicePooler that block
// allocation needs; kept local so this file doesn't import common just for
// one method pair used via an interface value already typed elsewhere.
type byteSlicePooler interface {
	RentSlice(desiredLength uint32) []byte
	ReturnSlice(slice []byte)
}
