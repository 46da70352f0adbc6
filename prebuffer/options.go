// Package prebuffer implements a memory-backed prebuffering filter that
// sits in front of a source.Source: a background producer goroutine fills a
// bounded, block-addressed cache while Read/Peek/SetPosition serve a single
// reader goroutine out of that cache, decoupling the reader's access pattern
// from the source's latency and seek cost.
package prebuffer

import "github.com/wastore/membuf/common"

// BlockSize, ReadChunkSize and ShortSeekWindow are variables rather than
// constants so tests can shrink them to exercise multi-block behavior
// without allocating gigabytes; production callers never override them.
var (
	// BlockSize is the fixed capacity of every block except possibly the
	// last block of a stream, which is truncated to the stream's tail size.
	BlockSize int64 = 4 * 1024 * 1024

	// ReadChunkSize bounds a single source.Read call issued by the producer.
	ReadChunkSize int = 16 * 1024

	// ShortSeekWindow is the forward-seek distance past the frontier that
	// gets absorbed by waiting for the producer rather than repositioning
	// the source.
	ShortSeekWindow int64 = 64 * 1024
)

// Options configures Open. Enabled mirrors the single operator-visible
// membuf-enable boolean: when false, Open always refuses to engage.
type Options struct {
	Enabled bool

	// MaxResidentBytes bounds the informational CacheLimiter passed to the
	// producer. Zero means unbounded (the limiter never refuses an add).
	MaxResidentBytes int64

	// Logger receives lifecycle, producer and seek diagnostics. A nil
	// Logger is valid and disables all logging.
	Logger common.ILogger
}
