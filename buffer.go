// {{{ Copyright (c) Paul R. Tagliamonte <paul@k3xec.com>, 2020-2022
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
	"fmt"
	"sync"
)

// OpenMode selects what kind of Handle PacketBuffer.Open will hand back.
type OpenMode uint8

const (
	// OpenWrite reserves a write handle, blocking in SetSize if there's
	// not yet enough room.
	OpenWrite OpenMode = iota

	// OpenWriteTry reserves a write handle whose SetSize returns ErrBusy
	// immediately rather than blocking.
	OpenWriteTry

	// OpenRead waits for the next committed message, blocking until one is
	// available, the buffer is cancelled, or the buffer is closed.
	OpenRead

	// OpenReadTry returns ErrBusy immediately if no committed message is
	// ready.
	OpenReadTry
)

func (m OpenMode) isWrite() bool {
	return m == OpenWrite || m == OpenWriteTry
}

func (m OpenMode) try() bool {
	return m == OpenWriteTry || m == OpenReadTry
}

// DMAFlags controls how PacketBuffer.DMA behaves.
type DMAFlags uint8

const (
	// AcceptFakeDMA must be set by the caller: this implementation has no
	// cross-process shared memory to hand out a true zero-copy device
	// pointer into, so DMA always returns a slice of the buffer's own
	// heap-allocated scratch region for the reservation, the same fallback
	// the design calls out for when true shared-memory DMA isn't possible.
	AcceptFakeDMA DMAFlags = 1 << 0
)

// packet is a committed, ready-to-read message sitting in the FIFO.
type packet struct {
	data []byte
}

// PacketBuffer is a variable-size, FIFO-ordered message queue between one or
// more writers and one or more readers, with explicit reservation, commit,
// and cancellation semantics.
//
// Capacity is tracked in bytes rather than modeled as a literal circular
// byte array: every Write handle's declared size is charged against
// capacity from SetSize until the corresponding message is read and its
// ReadHandle is closed (Section 4.A: "the buffer owns the in-flight bytes
// until a reader drops them"). This gives the same backpressure and
// ordering behavior as a shared-memory ring without requiring an actual
// inter-process segment, which this in-process pipeline has no use for.
type PacketBuffer struct {
	mu   sync.Mutex
	cond *sync.Cond

	capacity int
	used     int

	queue []*packet

	cancelled bool
	cancelErr error
}

// NewPacketBuffer creates a PacketBuffer with the given total byte budget.
func NewPacketBuffer(capacity int) *PacketBuffer {
	pb := &PacketBuffer{capacity: capacity}
	pb.cond = sync.NewCond(&pb.mu)
	return pb
}

// WriteHandle is returned by Open(OpenWrite) / Open(OpenWriteTry). Callers
// must call SetSize exactly once before Write/DMA, and must end the handle
// with exactly one of Close (commit) or Cancel (discard).
type WriteHandle struct {
	buf    *PacketBuffer
	mode   OpenMode
	sized  bool
	size   int
	data   []byte
	cursor int
	done   bool
}

// ReadHandle is returned by Open(OpenRead) / Open(OpenReadTry). The message
// bytes are valid until Close is called.
type ReadHandle struct {
	buf  *PacketBuffer
	pkt  *packet
	done bool
}

// Open reserves a handle in the requested mode. Read modes wait for (or
// check for) the next committed message; write modes merely allocate a
// handle, since space isn't negotiated until SetSize.
func (pb *PacketBuffer) Open(mode OpenMode) (interface{}, error) {
	if mode.isWrite() {
		pb.mu.Lock()
		defer pb.mu.Unlock()
		if pb.cancelled {
			return nil, pb.cancelErrLocked()
		}
		return &WriteHandle{buf: pb, mode: mode}, nil
	}
	return pb.openRead(mode)
}

func (pb *PacketBuffer) openRead(mode OpenMode) (*ReadHandle, error) {
	pb.mu.Lock()
	defer pb.mu.Unlock()

	for len(pb.queue) == 0 && !pb.cancelled {
		if mode.try() {
			return nil, ErrBusy
		}
		pb.cond.Wait()
	}
	if len(pb.queue) == 0 && pb.cancelled {
		return nil, pb.cancelErrLocked()
	}

	pkt := pb.queue[0]
	pb.queue = pb.queue[1:]
	return &ReadHandle{buf: pb, pkt: pkt}, nil
}

// cancelErrLocked returns the cancellation error; pb.mu must already be
// held by the caller.
func (pb *PacketBuffer) cancelErrLocked() error {
	if pb.cancelErr != nil {
		return pb.cancelErr
	}
	return ErrCancelled
}

// SetSize declares the payload length of a write reservation. It may block
// (OpenWrite) or fail with ErrBusy (OpenWriteTry) if there isn't yet room;
// it fails with ErrNoSpace if n can never fit regardless of waiting.
func (wh *WriteHandle) SetSize(n int) error {
	if wh.sized {
		return fmt.Errorf("pipeline: SetSize called twice on the same handle: %w", ErrInvalidArgument)
	}
	if n < 0 {
		return fmt.Errorf("pipeline: SetSize: negative size: %w", ErrInvalidArgument)
	}

	pb := wh.buf
	pb.mu.Lock()
	defer pb.mu.Unlock()

	if n > pb.capacity {
		return ErrNoSpace
	}

	for pb.used+n > pb.capacity && !pb.cancelled {
		if wh.mode.try() {
			return ErrBusy
		}
		pb.cond.Wait()
	}
	if pb.cancelled {
		return pb.cancelErrLocked()
	}

	pb.used += n
	wh.size = n
	wh.data = make([]byte, n)
	wh.sized = true
	return nil
}

// Write appends bytes to the reservation, bounded by the size declared in
// SetSize. Successive Write calls append; the committed payload preserves
// the order in which they were issued.
func (wh *WriteHandle) Write(b []byte) (int, error) {
	if !wh.sized {
		return 0, fmt.Errorf("pipeline: Write before SetSize: %w", ErrInvalidArgument)
	}
	if wh.done {
		return 0, ErrCancelled
	}
	n := copy(wh.data[wh.cursor:], b)
	wh.cursor += n
	return n, nil
}

// DMA returns a writable slice of n bytes within the reservation for the
// caller to fill directly (e.g. a synchronous pixel readback, or the
// materialization of a previously kicked-off asynchronous transfer),
// without an intermediate copy through Write. flags must include
// AcceptFakeDMA; see its docs for why.
func (wh *WriteHandle) DMA(n int, flags DMAFlags) ([]byte, error) {
	if flags&AcceptFakeDMA == 0 {
		return nil, fmt.Errorf("pipeline: DMA requires AcceptFakeDMA: %w", ErrNotSupported)
	}
	if !wh.sized {
		return nil, fmt.Errorf("pipeline: DMA before SetSize: %w", ErrInvalidArgument)
	}
	if wh.done {
		return nil, ErrCancelled
	}
	if wh.cursor+n > wh.size {
		return nil, fmt.Errorf("pipeline: DMA: %d bytes would overrun the %d byte reservation: %w", n, wh.size, ErrInvalidArgument)
	}
	region := wh.data[wh.cursor : wh.cursor+n]
	wh.cursor += n
	return region, nil
}

// Close commits the reservation: the written bytes become visible to
// readers in the order Close calls are issued across all writers.
func (wh *WriteHandle) Close() error {
	if wh.done {
		return nil
	}
	wh.done = true

	pb := wh.buf
	pb.mu.Lock()
	defer pb.mu.Unlock()

	if pb.cancelled {
		pb.used -= wh.size
		return pb.cancelErrLocked()
	}

	pb.queue = append(pb.queue, &packet{data: wh.data})
	pb.cond.Broadcast()
	return nil
}

// Cancel discards the reservation without publishing it. The reserved
// capacity is returned atomically; no partial write is ever observable by
// a reader.
func (wh *WriteHandle) Cancel() error {
	if wh.done {
		return nil
	}
	wh.done = true

	pb := wh.buf
	pb.mu.Lock()
	defer pb.mu.Unlock()
	if wh.sized {
		pb.used -= wh.size
	}
	pb.cond.Broadcast()
	return nil
}

// Header decodes the fixed MsgHeader from the front of the message.
func (rh *ReadHandle) Header() (MsgHeader, error) {
	return DecodeMsgHeader(rh.pkt.data)
}

// Payload returns the message bytes following the fixed MsgHeader.
func (rh *ReadHandle) Payload() []byte {
	if len(rh.pkt.data) <= MsgHeaderSize {
		return nil
	}
	return rh.pkt.data[MsgHeaderSize:]
}

// Bytes returns the entire committed message, header included.
func (rh *ReadHandle) Bytes() []byte {
	return rh.pkt.data
}

// Close releases the message, returning its reserved capacity to the
// buffer and waking any writer blocked on space.
func (rh *ReadHandle) Close() error {
	if rh.done {
		return nil
	}
	rh.done = true

	pb := rh.buf
	pb.mu.Lock()
	defer pb.mu.Unlock()
	pb.used -= len(rh.pkt.data)
	pb.cond.Broadcast()
	return nil
}

// CancelBuffer is the global cancellation operation. Afterwards every write
// Open fails, and a read Open fails once the messages already committed
// have been drained; an Open or SetSize blocked waiting wakes up with the
// cancellation error, and SetSize and Close on a write handle opened earlier
// return it. Write and DMA on a write handle that was already sized, and
// the methods of a ReadHandle already handed out, do not report the
// cancellation. There is no reopen: a cancelled PacketBuffer stays
// cancelled.
func (pb *PacketBuffer) CancelBuffer() {
	pb.CancelBufferWithError(nil)
}

// CancelBufferWithError is CancelBuffer, but lets the caller specify the
// error every pending and future operation will observe instead of the
// default ErrCancelled.
func (pb *PacketBuffer) CancelBufferWithError(err error) {
	pb.mu.Lock()
	defer pb.mu.Unlock()
	if pb.cancelled {
		return
	}
	pb.cancelled = true
	pb.cancelErr = err
	pb.cond.Broadcast()
}

// Len returns the number of fully committed, not-yet-read messages waiting
// in the buffer. Useful for tests and metrics; not part of the core
// reserve/commit protocol.
func (pb *PacketBuffer) Len() int {
	pb.mu.Lock()
	defer pb.mu.Unlock()
	return len(pb.queue)
}

// vim: foldmethod=marker
