package prebuffer

import (
	"context"
	"io"
)

// waitFill is the common prologue shared by Read and Peek: it resolves
// exactly how many of the requested n bytes are immediately serviceable,
// blocking on cvFill until the producer catches up, eos is observed, or a
// sticky error/closing flag ends the wait.
//
// Returns the (possibly clamped) available length, or an error if the
// filter has failed or is closing.
func (f *Filter) waitFill(ctx context.Context, n int) (available int, err error) {
	f.frontierMu.Lock()
	defer f.frontierMu.Unlock()

	if f.eos && f.readerOffset >= f.frontier {
		return 0, nil // clean EOS
	}

	for f.readerOffset+int64(n) > f.frontier {
		if f.errorFlag.Load() {
			return 0, ErrFilterFailed
		}
		if f.closing.Load() {
			return 0, ErrFilterClosed
		}
		if f.eos {
			n = int(f.frontier - f.readerOffset)
			break
		}
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		if err := f.waitOn(ctx, f.cvFill, func() bool {
			return f.readerOffset+int64(n) <= f.frontier || f.eos || f.errorFlag.Load() || f.closing.Load()
		}); err != nil {
			return 0, err
		}
	}

	if f.errorFlag.Load() {
		return 0, ErrFilterFailed
	}
	if f.closing.Load() {
		return 0, ErrFilterClosed
	}
	return n, nil
}

// Read copies up to len(dst) bytes starting at the reader's current
// position into dst, blocking until all len(dst) bytes are buffered, EOS
// (which shortens the read to the bytes that remain), or failure. It
// returns (0, io.EOF) at clean end of stream, matching the
// io.Reader contract the rest of the ecosystem expects.
func (f *Filter) Read(ctx context.Context, dst []byte) (int, error) {
	n, err := f.waitFill(ctx, len(dst))
	if err != nil {
		return 0, err
	}
	if n == 0 {
		return 0, io.EOF
	}

	copied, err := f.copyOut(dst[:n])
	if err != nil {
		return copied, err
	}
	f.readerOffset += int64(copied)
	return copied, nil
}

// Skip advances the reader's position by n bytes without copying any data
// out: the Go equivalent of a null-buffer skip read (a Go
// nil []byte is not expressible the same way a C null pointer is, so this
// is a dedicated method rather than a nil-dst special case of Read).
func (f *Filter) Skip(ctx context.Context, n int) (int, error) {
	avail, err := f.waitFill(ctx, n)
	if err != nil {
		return 0, err
	}
	f.readerOffset += int64(avail)
	return avail, nil
}

// Peek returns a slice of up to n readable bytes starting at the reader's
// current position without advancing it. The slice is valid until the next
// call on this Filter from the reader goroutine (it may alias a block's
// buffer directly, or a scratch buffer owned by the filter).
func (f *Filter) Peek(ctx context.Context, n int) ([]byte, error) {
	avail, err := f.waitFill(ctx, n)
	if err != nil {
		return nil, err
	}
	if avail == 0 {
		return nil, io.EOF
	}

	startBlock := int(f.readerOffset / BlockSize)
	endOffsetInclusive := f.readerOffset + int64(avail) - 1
	endBlock := int(endOffsetInclusive / BlockSize)

	if startBlock == endBlock {
		f.frontierMu.Lock()
		blk := f.blocks.at(startBlock)
		f.frontierMu.Unlock()
		inBlockOff := int(f.readerOffset % BlockSize)

		blk.mu.Lock()
		defer blk.mu.Unlock()
		return blk.buffer[inBlockOff : inBlockOff+avail], nil
	}

	if cap(f.scratch) < avail {
		f.scratch = make([]byte, avail)
	}
	f.scratch = f.scratch[:avail]
	if _, err := f.copyOut(f.scratch); err != nil {
		return nil, err
	}
	return f.scratch, nil
}

// copyOut walks the block array starting at the reader's current position,
// copying into dst block by block, locking one block at a time (never
// holding a block lock across the whole multi-block copy).
func (f *Filter) copyOut(dst []byte) (int, error) {
	copied := 0
	pos := f.readerOffset

	for copied < len(dst) {
		k := int(pos / BlockSize)
		inBlockOff := int(pos % BlockSize)

		f.frontierMu.Lock()
		blk := f.blocks.at(k)
		f.frontierMu.Unlock()
		if blk == nil {
			return copied, ErrFilterFailed
		}

		blk.mu.Lock()
		if inBlockOff < blk.begin || inBlockOff >= blk.end {
			blk.mu.Unlock()
			return copied, ErrFilterFailed
		}
		n := copy(dst[copied:], blk.buffer[inBlockOff:blk.end])
		blk.mu.Unlock()

		copied += n
		pos += int64(n)
	}
	return copied, nil
}

// Control query tags for the ControlQuery compatibility shim. These exist
// only for a caller arriving from a variadic-dispatch-style host framework;
// new code should call the named methods (CanSeek, Size, SetPosition, ...)
// directly.
type ControlQuery int

const (
	QueryCanSeek ControlQuery = iota
	QueryCanFastSeek
	QueryGetSize
	QueryGetPosition
	QueryGetCachedSize
	QueryGetPrebufferFinished
	QuerySetPosition
)

// ControlQuery is a pure switch over the named Filter methods, added only
// for parity with a host framework that expects one variadic-style dispatch
// point; it introduces no behavior the named methods don't already have.
func (f *Filter) ControlQuery(ctx context.Context, query ControlQuery, setPositionTarget int64) (int64, error) {
	switch query {
	case QueryCanSeek:
		return boolToInt64(f.CanSeek()), nil
	case QueryCanFastSeek:
		return boolToInt64(f.CanFastSeek()), nil
	case QueryGetSize:
		return f.Size(), nil
	case QueryGetPosition:
		return f.Position(), nil
	case QueryGetCachedSize:
		return f.CachedSize(), nil
	case QueryGetPrebufferFinished:
		return boolToInt64(f.PrebufferFinished()), nil
	case QuerySetPosition:
		if err := f.SetPosition(ctx, setPositionTarget); err != nil {
			return 0, err
		}
		return setPositionTarget, nil
	default:
		return 0, ErrUnknownQuery
	}
}

func boolToInt64(b bool) int64 {
	if b {
		return 1
	}
	return 0
}
