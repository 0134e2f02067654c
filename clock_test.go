// {{{ Copyright (c) Paul R. Tagliamonte <paul@k3xec.com>, 2020
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
// THE SOFTWARE. }}}

package pipeline_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	pipeline "glcstream.dev/pipeline"
)

func TestSystemClockMonotonic(t *testing.T) {
	c := pipeline.NewSystemClock()
	a := c.NowNS()
	time.Sleep(time.Millisecond)
	b := c.NowNS()
	assert.Greater(t, b, a)
}

func TestFakeClockAdvance(t *testing.T) {
	c := pipeline.NewFakeClock()
	assert.Equal(t, uint64(0), c.NowNS())
	c.Advance(5 * time.Second)
	assert.Equal(t, uint64(5*time.Second), c.NowNS())
	c.Set(1)
	assert.Equal(t, uint64(1), c.NowNS())
}

// vim: foldmethod=marker
