package prebuffer

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wastore/membuf/source"
)

// withSmallBlocks shrinks the package's block/chunk/window variables for
// the duration of a test so multi-block behavior can be exercised without
// allocating real 4 MiB blocks, and restores them afterward.
func withSmallBlocks(t *testing.T, blockSize int64, readChunk int, shortSeekWindow int64) {
	t.Helper()
	origBlock, origChunk, origWindow := BlockSize, ReadChunkSize, ShortSeekWindow
	BlockSize, ReadChunkSize, ShortSeekWindow = blockSize, readChunk, shortSeekWindow
	t.Cleanup(func() {
		BlockSize, ReadChunkSize, ShortSeekWindow = origBlock, origChunk, origWindow
	})
}

func testCtx(t *testing.T) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func expectedByte(o int64) byte {
	return byte(o % 251)
}

// scenario 1: sequential read to completion matches the byte generator, eos
// observable only after the last byte.
func TestSequentialReadToCompletion(t *testing.T) {
	withSmallBlocks(t, 1024, 256, 128)
	a := assert.New(t)
	r := require.New(t)
	ctx := testCtx(t)

	const tail = 17
	size := 10*BlockSize + tail
	src := source.NewConstant(size)
	f, err := Open(src, Options{Enabled: true})
	r.NoError(err)
	defer f.Close()

	var got []byte
	buf := make([]byte, 1024)
	for {
		n, err := f.Read(ctx, buf)
		got = append(got, buf[:n]...)
		if err != nil {
			r.ErrorIs(err, io.EOF)
			break
		}
		if n == 0 {
			break
		}
	}

	r.Len(got, int(size))
	for i, b := range got {
		a.Equal(expectedByte(int64(i)), b, "byte %d", i)
	}
	a.True(f.PrebufferFinished())
}

// scenario 2: wait for full cache, then a seek to BlockSize-10 lies behind
// the frontier and inside the reachable range, so it takes the within-buffer
// branch without a source seek (we can't directly observe "no source.Seek
// call" without instrumenting source.Constant, so we assert the position and
// the result bytes, which straddle the block boundary, are correct).
func TestWithinBufferSeekOnFullyBufferedStream(t *testing.T) {
	withSmallBlocks(t, 1024, 256, 512)
	r := require.New(t)
	a := assert.New(t)
	ctx := testCtx(t)

	size := 2 * BlockSize
	src := source.NewConstant(size)
	f, err := Open(src, Options{Enabled: true})
	r.NoError(err)
	defer f.Close()

	r.Eventually(func() bool {
		return f.CachedSize() >= size
	}, 5*time.Second, time.Millisecond)

	target := BlockSize - 10
	r.NoError(f.SetPosition(ctx, target))
	a.Equal(target, f.Position())

	buf := make([]byte, 20)
	n, err := f.Read(ctx, buf)
	r.NoError(err)
	a.Equal(20, n)
	for i := 0; i < n; i++ {
		a.Equal(expectedByte(target+int64(i)), buf[i])
	}
}

// scenario 3: after reading the first 100 bytes, a long forward seek to 100
// bytes into the last block succeeds and subsequent reads return bytes from
// the new target, whichever seek branch the producer's progress at that
// moment selects (served from cache, absorbed, or by repositioning the
// source).
func TestLongForwardSeekIntoLastBlock(t *testing.T) {
	withSmallBlocks(t, 256, 64, 64)
	r := require.New(t)
	a := assert.New(t)
	ctx := testCtx(t)

	size := 5 * BlockSize
	src := source.NewConstant(size)
	f, err := Open(src, Options{Enabled: true})
	r.NoError(err)
	defer f.Close()

	small := make([]byte, 100)
	_, err = f.Read(ctx, small)
	r.NoError(err)

	target := 4*BlockSize + 100
	r.NoError(f.SetPosition(ctx, target))
	a.Equal(target, f.Position())

	buf := make([]byte, 50)
	n, err := f.Read(ctx, buf)
	r.NoError(err)
	a.Equal(50, n)
	for i := 0; i < n; i++ {
		a.Equal(expectedByte(target+int64(i)), buf[i])
	}
}

// scenario 4: short seek ahead of a lagging frontier waits in wait_fill and
// absorbs the gap rather than failing.
func TestShortSeekAbsorbsAheadOfLaggingFrontier(t *testing.T) {
	withSmallBlocks(t, 4096, 256, 1024)
	r := require.New(t)
	a := assert.New(t)
	ctx := testCtx(t)

	size := 3 * BlockSize
	src := source.NewConstant(size)
	f, err := Open(src, Options{Enabled: true})
	r.NoError(err)
	defer f.Close()

	shortTarget := int64(1000) + 800 // within ShortSeekWindow (1024) of the frontier once it passes 776
	r.NoError(f.SetPosition(ctx, shortTarget))
	a.Equal(shortTarget, f.Position())

	buf := make([]byte, 10)
	n, err := f.Read(ctx, buf)
	r.NoError(err)
	a.Equal(10, n)
	for i := 0; i < n; i++ {
		a.Equal(expectedByte(shortTarget+int64(i)), buf[i])
	}
}

// failingSource fails its Read once the cursor crosses failAt, so the test
// can exercise the sticky-error path (scenario 5).
type failingSource struct {
	*source.Constant
	failAt int64
}

func (s *failingSource) Read(ctx context.Context, p []byte) (int, error) {
	if s.Tell() >= s.failAt {
		return 0, assertErr
	}
	return s.Constant.Read(ctx, p)
}

var assertErr = &sentinelErr{"synthetic source failure"}

type sentinelErr struct{ msg string }

func (e *sentinelErr) Error() string { return e.msg }

func TestSourceReadFailureIsSticky(t *testing.T) {
	withSmallBlocks(t, 1024, 256, 128)
	r := require.New(t)
	ctx := testCtx(t)

	size := int64(3 * 1024)
	fs := &failingSource{Constant: source.NewConstant(size), failAt: 1024 + 50*1024/1024}
	f, err := Open(fs, Options{Enabled: true})
	r.NoError(err)
	defer f.Close()

	buf := make([]byte, 1024*1024)

	r.Eventually(func() bool {
		_, err := f.Read(ctx, buf)
		return err == ErrFilterFailed
	}, 5*time.Second, time.Millisecond)

	_, err = f.Read(ctx, buf)
	r.ErrorIs(err, ErrFilterFailed)
}

// scenario 6: after EOS is buffered, seeking back to 0 clears eos and reads
// succeed entirely from cache.
func TestSeekToStartAfterEOSServesFromCache(t *testing.T) {
	withSmallBlocks(t, 256, 64, 64)
	r := require.New(t)
	a := assert.New(t)
	ctx := testCtx(t)

	size := BlockSize
	src := source.NewConstant(size)
	f, err := Open(src, Options{Enabled: true})
	r.NoError(err)
	defer f.Close()

	buf := make([]byte, size)
	_, err = f.Read(ctx, buf)
	r.NoError(err)
	r.Eventually(func() bool { return f.PrebufferFinished() }, 5*time.Second, time.Millisecond)

	r.NoError(f.SetPosition(ctx, 0))
	a.False(f.eosSnapshot())

	out := make([]byte, size)
	n, err := f.Read(ctx, out)
	r.NoError(err)
	a.Equal(int(size), n)
	for i, b := range out {
		a.Equal(expectedByte(int64(i)), b)
	}
}

// eosSnapshot is a tiny test-only accessor so the test above can assert the
// sticky eos flag cleared without reaching into unexported internals from
// outside the package.
func (f *Filter) eosSnapshot() bool {
	f.frontierMu.Lock()
	defer f.frontierMu.Unlock()
	return f.eos
}

// Peek-then-read equivalence (round-trip law).
func TestPeekThenReadReturnsSameBytes(t *testing.T) {
	withSmallBlocks(t, 512, 128, 64)
	r := require.New(t)
	ctx := testCtx(t)

	size := int64(3 * 512)
	src := source.NewConstant(size)
	f, err := Open(src, Options{Enabled: true})
	r.NoError(err)
	defer f.Close()

	peeked, err := f.Peek(ctx, 600) // spans two blocks: scratch path
	r.NoError(err)
	peekedCopy := append([]byte(nil), peeked...)

	read := make([]byte, 600)
	n, err := f.Read(ctx, read)
	r.NoError(err)
	r.Equal(600, n)
	r.Equal(peekedCopy, read)
}

// Peek fitting inside one block returns a slice aliasing the block buffer
// directly (zero-copy boundary behavior).
func TestPeekWithinOneBlockIsZeroCopy(t *testing.T) {
	withSmallBlocks(t, 1024, 256, 64)
	r := require.New(t)
	a := assert.New(t)
	ctx := testCtx(t)

	src := source.NewConstant(4096)
	f, err := Open(src, Options{Enabled: true})
	r.NoError(err)
	defer f.Close()

	peeked, err := f.Peek(ctx, 100)
	r.NoError(err)

	f.frontierMu.Lock()
	blk := f.blocks.at(0)
	f.frontierMu.Unlock()
	r.NotNil(blk)

	blk.mu.Lock()
	aliasesBlockBuffer := &peeked[0] == &blk.buffer[0]
	blk.mu.Unlock()
	a.True(aliasesBlockBuffer)
}

// Two consecutive seeks with no intervening read behave as one.
func TestDoubleSeekEquivalentToOne(t *testing.T) {
	withSmallBlocks(t, 512, 128, 64)
	r := require.New(t)
	a := assert.New(t)
	ctx := testCtx(t)

	src := source.NewConstant(4 * 512)
	f, err := Open(src, Options{Enabled: true})
	r.NoError(err)
	defer f.Close()

	r.Eventually(func() bool { return f.CachedSize() >= 4*512 }, 5*time.Second, time.Millisecond)

	r.NoError(f.SetPosition(ctx, 700))
	r.NoError(f.SetPosition(ctx, 300))
	a.Equal(int64(300), f.Position())

	buf := make([]byte, 10)
	n, err := f.Read(ctx, buf)
	r.NoError(err)
	a.Equal(10, n)
	for i := 0; i < n; i++ {
		a.Equal(expectedByte(300+int64(i)), buf[i])
	}
}

// Read of length > BlockSize correctly walks multiple block boundaries.
func TestReadLongerThanBlockWalksBoundaries(t *testing.T) {
	withSmallBlocks(t, 128, 32, 64)
	r := require.New(t)
	ctx := testCtx(t)

	size := int64(5 * 128)
	src := source.NewConstant(size)
	f, err := Open(src, Options{Enabled: true})
	r.NoError(err)
	defer f.Close()

	buf := make([]byte, 3*128+17)
	n, err := f.Read(ctx, buf)
	r.NoError(err)
	r.Equal(len(buf), n)
	for i, b := range buf {
		r.Equal(expectedByte(int64(i)), b)
	}
}

