package prebuffer

import "github.com/wastore/membuf/common"

// runProducer is the background fill goroutine started by Open and joined
// by Close. One outer iteration targets a block and fills as much of it as
// possible; it keeps doing this until closing or a sticky error ends it.
func (f *Filter) runProducer() {
	defer close(f.producerDone)
	defer func() {
		// an allocation panic (e.g. from the slice pool) is treated like a
		// source read failure: sticky errorFlag, waiting readers released.
		if r := recover(); r != nil {
			f.errorFlag.Store(true)
			f.logf(common.LogError, "prebuffer: producer failed: %v", r)
			f.frontierMu.Lock()
			f.cvFill.Broadcast()
			f.frontierMu.Unlock()
		}
	}()

	for {
		if f.closing.Load() || f.errorFlag.Load() {
			return
		}

		frontier, ok := f.parkOnEOS()
		if !ok {
			return
		}

		if !f.fillBlock(frontier) {
			return
		}
	}
}

// parkOnEOS implements the park-on-EOS step of the producer algorithm: if the frontier
// has reached the stream's end, mark eos, wake any waiting readers, and
// park on cvRewind until a seek moves the frontier back into range (or the
// filter is torn down). Returns the frontier to target next, and false if
// the producer should exit.
func (f *Filter) parkOnEOS() (int64, bool) {
	f.frontierMu.Lock()
	defer f.frontierMu.Unlock()

	for f.frontier >= f.streamSize {
		if f.closing.Load() || f.errorFlag.Load() {
			return 0, false
		}
		if !f.eos {
			f.eos = true
			f.logf(common.LogInfo, "prebuffer: reached end of stream at %d, parking", f.frontier)
			f.cvFill.Broadcast()
		}
		f.cvRewind.Wait()
		if f.closing.Load() || f.errorFlag.Load() {
			return 0, false
		}
	}
	return f.frontier, true
}

// fillBlock runs the pick-target and fill-loop steps for a single target
// frontier snapshot. Returns false if the producer should exit (sticky
// error or closing observed).
func (f *Filter) fillBlock(frontier int64) bool {
	k := int(frontier / BlockSize)
	off := int(frontier % BlockSize)

	blk := f.prepareBlock(k, off)

	for {
		if f.closing.Load() {
			return false
		}

		capacity := blk.capacity()
		if off >= capacity {
			return true // block full; re-enter outer loop to pick the next one
		}

		step := ReadChunkSize
		if remaining := capacity - off; remaining < step {
			step = remaining
		}

		// stability check: has the reader moved the frontier since we
		// computed our local expectation?
		f.frontierMu.Lock()
		if f.frontier != frontier {
			f.frontierMu.Unlock()
			return true // reader seeked; re-pick in the outer loop
		}
		f.frontierMu.Unlock()

		n, rewindNeeded, err := f.readChunk(blk, off, step, frontier)
		if err != nil {
			f.errorFlag.Store(true)
			f.logf(common.LogError, "prebuffer: source read failed at %d: %v", frontier, err)
			f.frontierMu.Lock()
			f.cvFill.Broadcast()
			f.frontierMu.Unlock()
			return false
		}
		if rewindNeeded {
			return true
		}
		if n <= 0 {
			f.errorFlag.Store(true)
			f.logf(common.LogError, "prebuffer: source read returned no data at %d", frontier)
			f.frontierMu.Lock()
			f.cvFill.Broadcast()
			f.frontierMu.Unlock()
			return false
		}

		advanced, newFrontier := f.advance(blk, n, frontier)
		f.frontierMu.Lock()
		f.cvFill.Broadcast()
		f.frontierMu.Unlock()
		if !advanced {
			return true // a concurrent seek changed the frontier; re-pick
		}
		off += n
		frontier = newFrontier
	}
}

// prepareBlock picks and prepares the target block: grow the block array up
// through k, materialize the slot if empty, and apply the partial-fill
// reset rules so the block's valid range aligns with off.
func (f *Filter) prepareBlock(k, off int) *block {
	f.frontierMu.Lock()
	f.blocks.ensure(k)
	blk := f.blocks.at(k)
	f.frontierMu.Unlock()

	if blk == nil {
		capacity := f.blockCapacity(k)
		f.cacheLimiter.TryAdd(int64(capacity), true) // informational; never refuses
		blk = newBlock(f.pool, capacity)

		f.frontierMu.Lock()
		f.blocks.set(k, blk)
		f.frontierMu.Unlock()
	}

	blk.mu.Lock()
	blk.resetTo(off)
	blk.mu.Unlock()

	return blk
}

// blockCapacity returns B, or the truncated tail size if k is the stream's
// last block.
func (f *Filter) blockCapacity(k int) int {
	lastK := int((f.streamSize - 1) / BlockSize)
	if k < lastK {
		return int(BlockSize)
	}
	tail := ((f.streamSize - 1) % BlockSize) + 1
	return int(tail)
}

// readChunk performs a single fill-loop read: under sourceMu, confirm the source's
// position matches the expected frontier, then read up to step bytes into
// blk.buffer[off:]. rewindNeeded is true if the source's position had
// already drifted (a concurrent seek landed the source elsewhere), in
// which case the caller should abandon this block and re-pick.
func (f *Filter) readChunk(blk *block, off, step int, expectedFrontier int64) (n int, rewindNeeded bool, err error) {
	f.sourceMu.Lock()
	defer f.sourceMu.Unlock()

	if f.src.Tell() != expectedFrontier {
		return 0, true, nil
	}

	n, err = f.src.Read(f.producerCtx, blk.buffer[off:off+step])
	if err != nil {
		return 0, false, err
	}
	return n, false, nil
}

// advance records the newly filled bytes in the block and, if the frontier
// still matches what the producer expected, advances it. Returns false
// (frontier unchanged) if a concurrent seek moved the frontier while the
// read was in flight — in that case the bytes just written are kept as a
// valid range on a block that may no longer be current.
func (f *Filter) advance(blk *block, n int, expectedFrontier int64) (advanced bool, newFrontier int64) {
	f.frontierMu.Lock()
	defer f.frontierMu.Unlock()

	blk.mu.Lock()
	blk.end += n
	blk.mu.Unlock()

	if f.frontier != expectedFrontier {
		return false, f.frontier
	}
	f.frontier += int64(n)
	return true, f.frontier
}
