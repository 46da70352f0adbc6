// Copyright © 2017 Microsoft <wastore@microsoft.com>
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in
// all copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN
// THE SOFTWARE.

package common

import (
	"context"
	"math/rand"
	"sync/atomic"
	"time"
)

// The percentage of a CacheLimiter's Limit that is considered
// the strict limit.
var cacheLimiterStrictLimitPercentage = float32(0.75)

type Predicate func() bool

// CacheLimiter tracks a running count against a limit. The producer fill loop
// never needs to be refused room (membuf has no eviction policy and is meant
// to hold its whole allocation resident), so it only ever calls TryAdd with
// the relaxed limit and never calls WaitUntilAdd; the strict/relaxed split
// and the blocking wait survive here purely so a future eviction-aware caller
// (or a quota-reporting command) has the same primitive to build on.
type CacheLimiter interface {
	TryAdd(count int64, useRelaxedLimit bool) (added bool)
	WaitUntilAdd(ctx context.Context, count int64, useRelaxedLimit Predicate) error
	Remove(count int64)
	Limit() int64
	StrictLimit() int64
	Current() int64
}

type cacheLimiter struct {
	value int64
	limit int64
}

// NewCacheLimiter returns a counter for bytes resident in prebuffer blocks,
// bounded informationally by limit (set from the cat command's
// --max-resident-mb flag).
func NewCacheLimiter(limit int64) CacheLimiter {
	return &cacheLimiter{limit: limit}
}

// TryAdd tries to account for count more resident bytes within the limit.
// Returns true if it could be (and was) added.
func (c *cacheLimiter) TryAdd(count int64, useRelaxedLimit bool) (added bool) {
	lim := c.limit

	strict := !useRelaxedLimit
	if strict {
		lim = c.StrictLimit()
	}

	if atomic.AddInt64(&c.value, count) <= lim {
		return true
	}
	// over the limit: subtract back what was added, and report failure
	atomic.AddInt64(&c.value, -count)
	return false
}

// WaitUntilAdd blocks until it completes a successful call to TryAdd.
func (c *cacheLimiter) WaitUntilAdd(ctx context.Context, count int64, useRelaxedLimit Predicate) error {
	for {
		if c.TryAdd(count, useRelaxedLimit()) {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Duration(2 * float32(time.Second) * rand.Float32())):
			// randomized to avoid repetitive oscillation in resident size; this
			// path is currently unreachable from the producer loop (see above)
		}
	}
}

func (c *cacheLimiter) Remove(count int64) {
	atomic.AddInt64(&c.value, -count)
}

func (c *cacheLimiter) Limit() int64 {
	return c.limit
}

func (c *cacheLimiter) StrictLimit() int64 {
	return int64(float32(c.limit) * cacheLimiterStrictLimitPercentage)
}

// Current returns the number of bytes currently accounted for. Used by the
// cat command to report resident prebuffer size alongside progress.
func (c *cacheLimiter) Current() int64 {
	return atomic.LoadInt64(&c.value)
}
