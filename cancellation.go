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
	"sync/atomic"
)

// Cancellation is the process-wide cancellation flag of Section 9's design
// notes: a single atomic bit, plus the set of buffers it notifies. A
// multi-stage pipeline (capture -> scale -> consumer, say) shares one
// Cancellation across its stages by registering each stage's buffers with
// it; any stage's fatal error then tears down every other stage's buffers
// too, not just its own.
type Cancellation struct {
	flag atomic.Bool

	mu      sync.Mutex
	err     error
	buffers []*PacketBuffer
}

// NewCancellation creates an uncancelled Cancellation with no registered
// buffers.
func NewCancellation() *Cancellation {
	return &Cancellation{}
}

// Cancelled reports whether Cancel has been called, without blocking on the
// registration lock.
func (c *Cancellation) Cancelled() bool {
	return c.flag.Load()
}

// Register adds buf to the set Cancel tears down. A buffer registered after
// Cancel has already fired is cancelled immediately with the same error.
func (c *Cancellation) Register(buf *PacketBuffer) {
	if buf == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.flag.Load() {
		buf.CancelBufferWithError(c.err)
		return
	}
	c.buffers = append(c.buffers, buf)
}

// Cancel sets the flag (idempotent: only the first call has any effect) and
// cancels every buffer registered so far, and any registered afterward,
// with err.
func (c *Cancellation) Cancel(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.flag.Load() {
		return
	}
	c.err = err
	c.flag.Store(true)
	for _, buf := range c.buffers {
		buf.CancelBufferWithError(err)
	}
}

// vim: foldmethod=marker
