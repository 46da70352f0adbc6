package prebuffer

import "errors"

var (
	// ErrDisabled is returned by Open when Options.Enabled is false.
	ErrDisabled = errors.New("prebuffer: filter disabled")

	// ErrUnknownSize is returned by Open when the source reports a zero or
	// negative size.
	ErrUnknownSize = errors.New("prebuffer: source size unknown")

	// ErrAlreadyChained is returned by Open when the source implements
	// source.SourceOfSource (it wraps another source, as a membuf filter
	// does), refusing to stack a second in-memory cache on the same chain.
	ErrAlreadyChained = errors.New("prebuffer: a membuf filter is already upstream")

	// ErrCannotSeek is returned by SetPosition when the source does not
	// support seeking.
	ErrCannotSeek = errors.New("prebuffer: source does not support seek")

	// ErrSeekShort is returned by SetPosition when an out-of-buffer seek's
	// source repositioning landed short of where the reader already was;
	// non-fatal, the reader's position is clamped to the new frontier.
	ErrSeekShort = errors.New("prebuffer: seek landed short of reader position")

	// ErrFilterFailed is returned by Read/Peek once the producer has
	// recorded a sticky source read or allocation failure: once observed,
	// every subsequent Read/Peek returns it until Close. SetPosition returns
	// it only from a short forward seek, which waits like a read; other
	// seeks do not check the failure flag.
	ErrFilterFailed = errors.New("prebuffer: filter failed")

	// ErrFilterClosed is returned by Read/Peek/SetPosition after Close.
	ErrFilterClosed = errors.New("prebuffer: filter closed")

	// ErrUnknownQuery is returned by the ControlQuery compatibility shim
	// for any query tag it doesn't recognize.
	ErrUnknownQuery = errors.New("prebuffer: unknown control query")
)
