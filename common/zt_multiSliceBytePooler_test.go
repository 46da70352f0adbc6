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
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBlockSlotInfo(t *testing.T) {
	a := assert.New(t)
	const fourMB = 4 * 1024 * 1024 // the prebuffer block size

	cases := []struct {
		size                 uint32
		expectedSlotIndex    int
		expectedMaxCapInSlot int
	}{
		{1, 0, 1},
		{2, 1, 2},
		{3, 2, 4},
		{4, 2, 4},
		{5, 3, 8},
		{8, 3, 8},
		{9, 4, 16},
		{fourMB - 1, 22, fourMB},
		{fourMB, 22, fourMB},
		{fourMB + 1, 23, fourMB * 2},
		{16 * 1024, 14, 16 * 1024},
	}

	for _, x := range cases {
		logBase2 := math.Log2(float64(x.size))
		roundedLogBase2 := int(math.Round(logBase2 + 0.49999999999999)) // rounds up unless already exact(ish)

		slotIndex, maxCap := getSlotInfo(x.size)

		a.Equal(roundedLogBase2, slotIndex)
		a.Equal(x.expectedSlotIndex, slotIndex)
		a.Equal(x.expectedMaxCapInSlot, maxCap)
	}
}

func TestBlockPoolRentReturnRoundTrip(t *testing.T) {
	a := assert.New(t)
	pool := NewMultiSizeSlicePool(8 * 1024 * 1024)

	// a full-size block and a truncated final block should come from
	// different sub-pools, and each should round-trip through rent/return
	// without the caller seeing a length mismatch.
	full := pool.RentSlice(4 * 1024 * 1024)
	a.Len(full, 4*1024*1024)
	pool.ReturnSlice(full)

	short := pool.RentSlice(37)
	a.Len(short, 37)
	pool.ReturnSlice(short)

	reused := pool.RentSlice(4 * 1024 * 1024)
	a.Len(reused, 4*1024*1024)
}
