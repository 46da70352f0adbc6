package prebuffer

import (
	"context"

	"github.com/wastore/membuf/common"
)

// SetPosition implements the seek policy: short forward seeks are
// absorbed by waiting for the producer; longer seeks compute how much of
// the target region is already contiguously buffered (reachable) and only
// reposition the source if the seek lands outside that reachable range.
func (f *Filter) SetPosition(ctx context.Context, target int64) error {
	if !f.canSeek {
		f.logf(common.LogDebug, "prebuffer: seek %d classified %s (source does not support seek)", target, common.ESeekClass.Refused())
		return ErrCannotSeek
	}
	if f.closing.Load() {
		f.logf(common.LogDebug, "prebuffer: seek %d classified %s (filter closing)", target, common.ESeekClass.Refused())
		return ErrFilterClosed
	}

	f.frontierMu.Lock()
	frontier := f.frontier
	f.frontierMu.Unlock()

	if frontier < target && target < frontier+ShortSeekWindow {
		f.logf(common.LogDebug, "prebuffer: seek %d classified %s (frontier=%d)", target, common.ESeekClass.ShortSeekAbsorbed(), frontier)
		n, err := f.waitFill(ctx, int(target-f.readerOffset))
		if err != nil {
			return err
		}
		if n <= 0 {
			return ErrFilterFailed
		}
		f.readerOffset = target
		return nil
	}

	f.frontierMu.Lock()
	reachable := f.scanReachable(target)
	f.frontierMu.Unlock()

	if target <= frontier && target < reachable {
		f.logf(common.LogDebug, "prebuffer: seek %d classified %s (reachable=%d)", target, common.ESeekClass.WithinBuffer(), reachable)
		f.readerOffset = target
		return nil
	}

	f.logf(common.LogDebug, "prebuffer: seek %d classified %s (reachable=%d)", target, common.ESeekClass.OutOfBuffer(), reachable)
	return f.seekOutOfBuffer(target, reachable)
}

// scanReachable computes the largest offset >= target such that every
// block from target/B onward, up to and including reachable/B, is present
// and its [begin,end) covers the corresponding range contiguously starting
// from target's in-block offset in the first block. Caller holds
// frontierMu.
func (f *Filter) scanReachable(target int64) int64 {
	k := int(target / BlockSize)
	off := int(target % BlockSize)
	reachable := target

	for {
		blk := f.blocks.at(k)
		if blk == nil {
			break
		}
		blk.mu.Lock()
		begin, end, capacity := blk.begin, blk.end, blk.capacity()
		blk.mu.Unlock()

		if off < begin || off >= end {
			break
		}
		reachable = int64(k)*BlockSize + int64(end)

		if end < capacity {
			break // unfinished tail: can't continue into the next block
		}
		nextGlobal := int64(k+1) * BlockSize
		if nextGlobal >= f.streamSize {
			break // that was the stream's last block
		}
		k++
		off = 0
	}
	return reachable
}

// seekOutOfBuffer repositions the source to reachable, takes its reported
// position as ground truth, resets frontier and eos, and resolves the
// reader's new position relative to that ground truth.
func (f *Filter) seekOutOfBuffer(target, reachable int64) error {
	f.sourceMu.Lock()
	f.src.Seek(f.producerCtx, reachable) // error ignored: tell() is authoritative next
	tell := f.src.Tell()
	f.sourceMu.Unlock()

	f.frontierMu.Lock()
	f.eos = false
	f.frontier = tell

	var result error
	switch {
	case target <= tell:
		f.readerOffset = target
	case f.readerOffset > tell:
		f.readerOffset = tell
		result = ErrSeekShort
	}

	f.cvRewind.Signal()
	f.frontierMu.Unlock()

	return result
}
