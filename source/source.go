// Package source defines the upstream contract the prebuffer filter sits in
// front of: something seekable, of known size, that may itself already be a
// membuf filter (in which case a second one refuses to stack on top of it).
package source

import "context"

// Source is what prebuffer.Open wraps. It deliberately looks like a narrowed
// io.ReaderAt/io.Seeker pair rather than those stdlib interfaces directly:
// Seek here repositions the source's own read cursor rather than returning a
// new offset to reconcile, and every blocking call takes a context so the
// producer goroutine can be unblocked on Close.
type Source interface {
	Read(ctx context.Context, p []byte) (n int, err error)
	Seek(ctx context.Context, offset int64) (int64, error)
	Tell() int64
	Size() int64
	CanSeek() bool
	CanFastSeek() bool
}

// SourceOfSource is implemented by a Source that itself wraps another Source
// (i.e., an upstream membuf filter). prebuffer.Open type-asserts for this
// once, at open time, and refuses to engage rather than stack a second
// in-memory cache on top of the first.
type SourceOfSource interface {
	Unwrap() Source
}
