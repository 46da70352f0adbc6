package source

import (
	"context"

	"github.com/pkg/errors"
)

// Constant is a deterministic, arbitrarily large synthetic Source: byte i of
// the stream is always byte(i % 251). It exists so the test scenarios in the
// filter's test suite can assert exact byte values after arbitrary seek and
// rewind patterns without shipping fixture files, and so the CLI's
// --synthetic flag has something to cat without touching disk or network.
//
// Same virtual-stream shape as a random-fill payload generator (a
// Read(ctx, p) over a length fixed at construction, with Seek trivially
// repositioning a cursor), but generalized to a pure function of offset so
// tests get reproducible bytes rather than realistic payload entropy.
type Constant struct {
	length int64
	pos    int64
}

// NewConstant returns a Constant source producing `length` bytes.
func NewConstant(length int64) *Constant {
	return &Constant{length: length}
}

func (c *Constant) Read(ctx context.Context, p []byte) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	remaining := c.length - c.pos
	if remaining <= 0 {
		return 0, nil
	}
	n := int64(len(p))
	if n > remaining {
		n = remaining
	}
	for i := int64(0); i < n; i++ {
		p[i] = byte((c.pos + i) % 251)
	}
	c.pos += n
	return int(n), nil
}

func (c *Constant) Seek(ctx context.Context, offset int64) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if offset < 0 || offset > c.length {
		return c.pos, errors.New("source: seek out of range")
	}
	c.pos = offset
	return c.pos, nil
}

func (c *Constant) Tell() int64       { return c.pos }
func (c *Constant) Size() int64       { return c.length }
func (c *Constant) CanSeek() bool     { return true }
func (c *Constant) CanFastSeek() bool { return true }
