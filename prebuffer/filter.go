package prebuffer

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/pkg/errors"
	"github.com/wastore/membuf/common"
	"github.com/wastore/membuf/source"
)

// Filter is the prebuffering cache state: one instance per opened source.
// Exactly one producer goroutine and (in practice) one reader goroutine
// share it; see the package doc and DESIGN.md for the full concurrency
// model and lock order (frontierMu -> sourceMu -> a single block.mu).
type Filter struct {
	src         source.Source
	streamSize  int64
	canSeek     bool
	canFastSeek bool

	readerOffset int64 // reader goroutine only

	frontierMu sync.Mutex
	frontier   int64
	eos        bool
	blocks     blockArray

	sourceMu sync.Mutex // orders src.Read/Seek/Tell

	errorFlag atomic.Bool
	closing   atomic.Bool

	cvFill   *sync.Cond // paired with frontierMu
	cvRewind *sync.Cond // paired with frontierMu

	producerDone chan struct{}
	producerCtx  context.Context
	cancelSource context.CancelFunc

	scratch []byte // reader-owned, grows only

	pool         common.ByteSlicePooler
	cacheLimiter common.CacheLimiter
	logger       common.ILogger
}

// Open probes the source's capabilities and, if everything checks out,
// allocates a Filter and starts its producer goroutine. It refuses to
// engage (returns a non-nil error, nil Filter) when the filter is disabled,
// the source's size is unknown or zero, or the source already has a
// membuf filter upstream of it in the same chain.
func Open(src source.Source, opts Options) (*Filter, error) {
	if !opts.Enabled {
		return nil, ErrDisabled
	}
	if _, chained := src.(source.SourceOfSource); chained {
		return nil, ErrAlreadyChained
	}
	size := src.Size()
	if size <= 0 {
		return nil, errors.Wrap(ErrUnknownSize, "prebuffer.Open")
	}

	limit := opts.MaxResidentBytes
	if limit <= 0 {
		limit = size // informational only; never refuses (see cacheLimiter.go)
	}

	f := &Filter{
		src:          src,
		streamSize:   size,
		canSeek:      src.CanSeek(),
		canFastSeek:  src.CanFastSeek(),
		producerDone: make(chan struct{}),
		pool:         common.NewMultiSizeSlicePool(uint32(BlockSize)),
		cacheLimiter: common.NewCacheLimiter(limit),
		logger:       opts.Logger,
	}
	f.cvFill = sync.NewCond(&f.frontierMu)
	f.cvRewind = sync.NewCond(&f.frontierMu)
	f.producerCtx, f.cancelSource = context.WithCancel(context.Background())

	go f.runProducer()

	return f, nil
}

// Unwrap implements source.SourceOfSource by returning the source this
// Filter wraps. Filter has no Seek or Tell method, so it is not itself a
// source.Source.
func (f *Filter) Unwrap() source.Source {
	return f.src
}

// Close tears the filter down: marks it closing, wakes a parked producer,
// waits for the producer goroutine to exit, and returns all block buffers
// to the pool. The caller must guarantee no reader is in flight.
func (f *Filter) Close() error {
	f.closing.Store(true)
	f.cancelSource() // unblock a producer parked inside a blocking source.Read

	f.frontierMu.Lock()
	f.cvRewind.Signal()
	f.cvFill.Broadcast()
	f.frontierMu.Unlock()

	<-f.producerDone

	f.frontierMu.Lock()
	for i := 0; i < f.blocks.len(); i++ {
		if b := f.blocks.at(i); b != nil {
			f.pool.ReturnSlice(b.buffer)
		}
	}
	f.blocks = blockArray{}
	f.frontierMu.Unlock()

	f.scratch = nil

	f.logf(common.LogInfo, "closed")
	return nil
}

func (f *Filter) logf(level common.LogLevel, format string, args ...interface{}) {
	if f.logger == nil || !f.logger.ShouldLog(level) {
		return
	}
	f.logger.Log(level, fmt.Sprintf(format, args...))
}

// CanSeek reports whether the upstream source supports seeking.
func (f *Filter) CanSeek() bool { return f.canSeek }

// CanFastSeek reports whether the upstream source's seeks are cheap.
func (f *Filter) CanFastSeek() bool { return f.canFastSeek }

// Size returns the total stream length, fixed at Open.
func (f *Filter) Size() int64 { return f.streamSize }

// Position returns the reader's current absolute offset.
func (f *Filter) Position() int64 { return f.readerOffset }

// CachedSize returns the producer's frontier: the first offset at or past
// the reader's position that is not yet known buffered. After an
// out-of-buffer seek the frontier restarts at the source's new position, so
// it does not by itself say that every byte from 0 is buffered. The lock
// hold here is just a pointer-sized
// read, so callers can poll it cheaply without coordinating with the
// producer any more than that.
func (f *Filter) CachedSize() int64 {
	f.frontierMu.Lock()
	defer f.frontierMu.Unlock()
	return f.frontier
}

// PrebufferFinished reports whether the producer has reached end-of-stream
// and the entire stream, from offset 0, is contiguously buffered.
func (f *Filter) PrebufferFinished() bool {
	f.frontierMu.Lock()
	defer f.frontierMu.Unlock()
	return f.eos && f.frontier >= f.streamSize && f.scanReachable(0) >= f.streamSize
}

// ResidentBytes returns the total capacity of every block materialized so
// far, as tracked by the cache limiter. Unlike CachedSize, this counts a
// block's full allocated capacity the moment the producer claims it, even
// if a later seek trims that block's own valid range back down — so it's a
// footprint measurement, not a contiguity measurement. A block whose
// capacity would push the count past the limiter's limit
// (Options.MaxResidentBytes) is still allocated but is not counted.
func (f *Filter) ResidentBytes() int64 {
	return f.cacheLimiter.Current()
}

// waitOn blocks on cond (already held via frontierMu) until pred() returns
// true or ctx is cancelled. sync.Cond has no native context support, so a
// ctx.Done() watcher goroutine nudges the cond when the caller's context
// expires. Returns ctx.Err() (or nil) so callers can distinguish a
// cancelled wait from a satisfied predicate.
func (f *Filter) waitOn(ctx context.Context, cond *sync.Cond, pred func() bool) error {
	if pred() {
		return nil
	}
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			f.frontierMu.Lock()
			cond.Broadcast()
			f.frontierMu.Unlock()
		case <-done:
		}
	}()
	for !pred() {
		if err := ctx.Err(); err != nil {
			return err
		}
		cond.Wait()
	}
	return nil
}
