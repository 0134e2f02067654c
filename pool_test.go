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

	"github.com/stretchr/testify/assert"

	pipeline "glcstream.dev/pipeline"
)

func TestBufferPool(t *testing.T) {
	pool := pipeline.NewBufferPool(1024 * 32)
	assert.NotNil(t, pool)

	buf := pool.Get()
	assert.Len(t, buf, 1024*32)
	buf[0] = 1

	buf1 := pool.Get()
	assert.Len(t, buf1, 1024*32)
	buf1[0] = 2

	// Do *NOT* depend on sync.Pool reuse ordering in real code; this only
	// checks that Put/Get roundtrips a buffer's backing array without
	// panicking or truncating it.
	pool.Put(buf)
	buf = pool.Get()
	assert.Len(t, buf, 1024*32)

	pool.Put(buf1)
	buf1 = pool.Get()
	assert.Len(t, buf1, 1024*32)
}

func TestBufferPoolShortBufferDropped(t *testing.T) {
	pool := pipeline.NewBufferPool(64)
	short := make([]byte, 8)
	pool.Put(short) // must not panic, and must not be handed back by Get
	buf := pool.Get()
	assert.Len(t, buf, 64)
}

// vim: foldmethod=marker
