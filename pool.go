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

package pipeline

import (
	"sync"
)

// BufferPool is a dynamically sized pool of fixed-minimum-length byte
// buffers. It exists so the capture stage and the scale stage's runner
// don't allocate a fresh scratch buffer for every format or color message
// they encode. The buffer length is fixed when the pool is created.
//
// Under the hood this is a sync.Pool with a type-safe Get/Put pair.
type BufferPool struct {
	length int
	pool   *sync.Pool
}

// NewBufferPool creates a BufferPool whose Get returns buffers of at least
// length bytes.
func NewBufferPool(length int) *BufferPool {
	bp := &BufferPool{length: length}
	bp.pool = &sync.Pool{
		New: func() interface{} {
			return make([]byte, bp.length)
		},
	}
	return bp
}

// Get returns an unused buffer of at least the pool's configured length, or
// allocates a new one. The returned slice's length is exactly the pool's
// configured length; callers needing fewer bytes should re-slice.
func (bp *BufferPool) Get() []byte {
	buf := bp.pool.Get().([]byte)
	if cap(buf) < bp.length {
		return make([]byte, bp.length)
	}
	return buf[:bp.length]
}

// Put returns a buffer to the pool for reuse. Buffers shorter than the
// pool's configured length are dropped rather than pooled, since Get's
// contract guarantees a minimum length.
func (bp *BufferPool) Put(buf []byte) {
	if cap(buf) < bp.length {
		return
	}
	bp.pool.Put(buf) //nolint:staticcheck // intentional: length is re-sliced on Get
}

// vim: foldmethod=marker
