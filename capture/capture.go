// {{{ Copyright (c) Paul R. Tagliamonte <paul@k3xec.com>, 2021-2022
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

// Package capture implements the time-gated frame-capture sampler: the
// component that turns "a rendering context asking to be sampled" into
// VideoFormat/Color/VideoFrame messages written to a packet buffer, no
// faster than a configured target rate.
package capture

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	pipeline "glcstream.dev/pipeline"
	"glcstream.dev/pipeline/internal/rational"
)

// Surface is the rendering-surface collaborator a Capturer samples from. A
// real implementation backs this with whatever windowing/graphics API is
// recording frames; Capturer itself only depends on this interface, so
// tests exercise it against a fake (see the mock package).
type Surface interface {
	// Geometry returns the surface's current pixel dimensions.
	Geometry() (width, height int)

	// Gamma returns the current brightness/contrast/gamma tuple, as
	// reported by the windowing system.
	Gamma() (brightness, contrast, gammaRed, gammaGreen, gammaBlue float32)

	// ReadPixels synchronously fills dst (row*height bytes, per Config's
	// format/alignment) with the current front or back buffer contents.
	ReadPixels(dst []byte, readBack bool) error

	// BeginAsyncTransfer kicks off an asynchronous readback into an
	// implementation-owned double buffer and returns immediately. A later
	// MaterializeAsyncTransfer call blocks until that transfer is done and
	// copies it out.
	BeginAsyncTransfer(readBack bool) error

	// MaterializeAsyncTransfer blocks until the most recent
	// BeginAsyncTransfer completes, then copies its result into dst.
	MaterializeAsyncTransfer(dst []byte) error

	// DrawIndicator issues whatever draw call marks, on-screen, that
	// capture is active.
	DrawIndicator()
}

// PixelFormat is the subset of pipeline.VideoPixelFormat the capture stage
// accepts as its own output format (it never emits planar formats).
type PixelFormat = pipeline.VideoPixelFormat

// Config is the runtime-mutable configuration of a Capturer. Every field
// may be changed between calls to Start; fields marked "while capturing"
// are rejected with pipeline.ErrAlreadyRunning if changed while capturing
// is in progress.
type Config struct {
	// TargetFPS is the requested capture rate, expressed as an exact
	// fraction so long captures don't drift off the requested rate.
	TargetFPS rational.FPS

	// Format is the output pixel format: BGRA or BGR. Anything else is
	// rejected with pipeline.ErrNotSupported.
	Format PixelFormat

	// PackAlignment is 1 (tightly packed rows) or 8 (rows padded to a
	// multiple of 8 bytes, asserting VideoFlagDwordAligned outward).
	PackAlignment int

	// ReadBack selects the front buffer (false) or back buffer (true) as
	// the sampling source.
	ReadBack bool

	// Async enables asynchronous double-buffered transfer. Changing it
	// while capturing is rejected, since an in-flight transfer object
	// can't be torn down safely mid-frame.
	Async bool

	// DrawIndicator, if set, issues a visible draw call at the end of
	// every captured frame.
	DrawIndicator bool

	// IgnoreTime replaces the sampled clock with last+period, useful for
	// deterministic offline rendering where wall-clock time is fictional.
	IgnoreTime bool

	// LockFPS makes the output buffer open block (instead of WriteTry) and
	// sleeps out the remainder of the frame period at the end of frame(),
	// guaranteeing frames are neither dropped nor early.
	LockFPS bool
}

func (c Config) getPackAlignment() int {
	if c.PackAlignment == 0 {
		return 1
	}
	return c.PackAlignment
}

func (c Config) bpp() int {
	return c.Format.BytesPerPixel()
}

func (c Config) rowStride(width int) int {
	row := width * c.bpp()
	if c.getPackAlignment() == 8 {
		row = (row + 7) &^ 7
	}
	return row
}

// streamState is one (display, surface) pair's captured state: its wire
// identity, its rate-gating clock, and its double-buffer bookkeeping.
// Capturer publishes new streamStates by prepending to a singly-linked
// list so concurrent readers chasing the head never need a lock.
type streamState struct {
	next *streamState // written once at construction, read-only after

	id      pipeline.StreamID
	surface Surface

	capturing int32 // atomic: 0 or 1, the per-stream CAPTURING bit

	mu              sync.Mutex // guards the fields below
	lastWidth       int
	lastHeight      int
	lastBrightness  float32
	lastContrast    float32
	lastGammaR      float32
	lastGammaG      float32
	lastGammaB      float32
	needColorUpdate bool

	last           uint64 // nanoseconds, last emitted frame's scheduled time
	capturedFrames uint64
	droppedFrames  uint64 // frames silently dropped on ErrBusy

	asyncInFlight bool
	pboTime       uint64
}

// Capturer is the frame-capture stage of Section 4.E: frame() is called
// from arbitrary host goroutines (one per rendering context) concurrently,
// and writes VideoFormat/Color/VideoFrame messages to Output no faster
// than cfg.TargetFPS.
type Capturer struct {
	mu     sync.Mutex // guards Config changes and the global CAPTURING bit
	cfg    Config
	output *pipeline.PacketBuffer
	clock  pipeline.Clock

	logger       pipeline.Logger
	cancellation *pipeline.Cancellation
	msgPool      *pipeline.BufferPool

	capturing int32 // atomic: global CAPTURING bit

	streamMu sync.Mutex   // only for appends; reads chase head lock-free
	head     atomic.Value // *streamState, nil until the first stream

	ids    map[surfaceKey]*streamState // under streamMu
	nextID pipeline.StreamID
}

type surfaceKey struct {
	display uintptr
	surface uintptr
}

// NewCapturer creates a Capturer writing to output, sampling the clock for
// timestamps and rate-gating. logger and cancellation may both be nil: a
// nil logger falls back to a standard-library-backed default, and a nil
// cancellation means a fatal error only cancels this Capturer's own output
// buffer rather than tearing down a shared pipeline.
func NewCapturer(cfg Config, output *pipeline.PacketBuffer, clock pipeline.Clock, logger pipeline.Logger, cancellation *pipeline.Cancellation) *Capturer {
	if clock == nil {
		clock = pipeline.NewSystemClock()
	}
	if logger == nil {
		logger = pipeline.NewStdLogger()
	}
	if cancellation != nil {
		cancellation.Register(output)
	}
	return &Capturer{
		cfg:          cfg,
		output:       output,
		clock:        clock,
		logger:       logger,
		cancellation: cancellation,
		msgPool:      pipeline.NewBufferPool(maxFormatMessageSize),
		ids:          make(map[surfaceKey]*streamState),
	}
}

// SetConfig replaces the Capturer's configuration. Async may not be
// changed while capturing is in progress.
func (c *Capturer) SetConfig(cfg Config) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if atomic.LoadInt32(&c.capturing) != 0 && cfg.Async != c.cfg.Async {
		return fmt.Errorf("pipeline/capture: SetConfig: cannot change Async while capturing: %w", pipeline.ErrAlreadyRunning)
	}
	if cfg.Format != pipeline.VideoFormatBGR && cfg.Format != pipeline.VideoFormatBGRA {
		return fmt.Errorf("pipeline/capture: SetConfig: format %s: %w", cfg.Format, pipeline.ErrNotSupported)
	}
	c.cfg = cfg
	return nil
}

// Start sets the global CAPTURING bit, allowing frame() calls to proceed
// past their rate gate.
func (c *Capturer) Start() {
	atomic.StoreInt32(&c.capturing, 1)
}

// Stop clears the global CAPTURING bit, then spin-waits until every
// per-stream CAPTURING bit has cleared, then resets every stream's last
// timestamp to 0. After Stop returns, no frame() call is inside its
// critical section, so it's safe to reconfigure.
func (c *Capturer) Stop() {
	atomic.StoreInt32(&c.capturing, 0)

	for {
		allClear := true
		for s := c.headStream(); s != nil; s = s.next {
			if atomic.LoadInt32(&s.capturing) != 0 {
				allClear = false
				break
			}
		}
		if allClear {
			break
		}
		time.Sleep(time.Millisecond)
	}

	for s := c.headStream(); s != nil; s = s.next {
		s.mu.Lock()
		s.last = 0
		s.mu.Unlock()
	}
}

func (c *Capturer) headStream() *streamState {
	v := c.head.Load()
	if v == nil {
		return nil
	}
	return v.(*streamState)
}

// streamFor resolves (display, surface) to its streamState, allocating a
// fresh one (and publishing it at the head of the lock-free list) on first
// use.
func (c *Capturer) streamFor(display, surface uintptr, newSurface Surface) *streamState {
	key := surfaceKey{display: display, surface: surface}

	c.streamMu.Lock()
	defer c.streamMu.Unlock()

	if s, ok := c.ids[key]; ok {
		return s
	}

	s := &streamState{
		id:              c.nextID,
		surface:         newSurface,
		needColorUpdate: true,
		next:            c.headStream(),
	}
	c.nextID++
	c.ids[key] = s
	c.head.Store(s)
	return s
}

// Frame implements frame(display, surface) from Section 4.E: it is safe to
// call concurrently from many goroutines, one per rendering context, each
// passing its own Surface.
func (c *Capturer) Frame(display, surface uintptr, surf Surface) error {
	if atomic.LoadInt32(&c.capturing) == 0 {
		return nil
	}
	s := c.streamFor(display, surface, surf)
	if !atomic.CompareAndSwapInt32(&s.capturing, 0, 1) {
		// Already mid-frame on another goroutine for this exact stream;
		// the spec models this as a short spinlock, but since our
		// critical section isn't reentrant either way, treat a losing
		// CAS as "someone else has this frame."
		return nil
	}
	defer atomic.StoreInt32(&s.capturing, 0)

	c.mu.Lock()
	cfg := c.cfg
	c.mu.Unlock()

	now := c.sampleTime(s, cfg)

	period, remPeriod, rem := cfg.TargetFPS.Period()
	s.mu.Lock()
	last := s.last
	s.mu.Unlock()

	elapsed := int64(now) - int64(last)
	if last != 0 && elapsed < int64(period) && !cfg.LockFPS && !cfg.IgnoreTime {
		return nil // rate gate
	}

	if err := c.refreshFormatAndColor(s, cfg); err != nil {
		return c.fail(err)
	}

	if cfg.Async {
		s.mu.Lock()
		inFlight := s.asyncInFlight
		s.mu.Unlock()
		if !inFlight {
			if err := surf.BeginAsyncTransfer(cfg.ReadBack); err != nil {
				return c.fail(err)
			}
			s.mu.Lock()
			s.asyncInFlight = true
			s.pboTime = now
			s.mu.Unlock()
			return nil
		}
	}

	if err := c.emitFrame(s, surf, cfg, now); err != nil {
		return c.fail(err)
	}

	s.mu.Lock()
	s.capturedFrames++
	frameNum := s.capturedFrames
	s.last = last + uint64(period)
	if remPeriod != 0 && frameNum%remPeriod == 0 {
		s.last += uint64(rem)
	}
	s.mu.Unlock()

	if cfg.LockFPS && elapsed < int64(period) {
		time.Sleep(period - time.Duration(elapsed))
	}

	if cfg.DrawIndicator {
		surf.DrawIndicator()
	}
	return nil
}

func (c *Capturer) sampleTime(s *streamState, cfg Config) uint64 {
	if cfg.IgnoreTime {
		s.mu.Lock()
		defer s.mu.Unlock()
		period, _, _ := cfg.TargetFPS.Period()
		return s.last + uint64(period)
	}
	return c.clock.NowNS()
}

func (c *Capturer) refreshFormatAndColor(s *streamState, cfg Config) error {
	w, h := s.surface.Geometry()

	s.mu.Lock()
	geometryChanged := w != s.lastWidth || h != s.lastHeight
	s.lastWidth, s.lastHeight = w, h
	s.mu.Unlock()

	if geometryChanged {
		flags := pipeline.VideoFlags(0)
		if cfg.getPackAlignment() == 8 {
			flags |= pipeline.VideoFlagDwordAligned
		}
		vf := pipeline.VideoFormat{
			ID:     s.id,
			Flags:  flags,
			Format: cfg.Format,
			Width:  uint32(w),
			Height: uint32(h),
		}
		if err := c.writeMessage(pipeline.MsgVideoFormat, vf.Encode); err != nil {
			return err
		}
	}

	br, ct, gr, gg, gb := s.surface.Gamma()
	s.mu.Lock()
	changed := s.needColorUpdate || br != s.lastBrightness || ct != s.lastContrast ||
		gr != s.lastGammaR || gg != s.lastGammaG || gb != s.lastGammaB
	s.lastBrightness, s.lastContrast = br, ct
	s.lastGammaR, s.lastGammaG, s.lastGammaB = gr, gg, gb
	s.needColorUpdate = false
	s.mu.Unlock()

	if changed {
		col := pipeline.Color{
			ID:         s.id,
			Brightness: br,
			Contrast:   ct,
			GammaRed:   gr,
			GammaGreen: gg,
			GammaBlue:  gb,
		}
		if err := c.writeMessage(pipeline.MsgColor, col.Encode); err != nil {
			return err
		}
	}
	return nil
}

// maxFormatMessageSize is the largest body writeMessage ever encodes
// (Color's 24 bytes); msgPool hands out scratch buffers of this length so
// neither VideoFormat nor Color messages need a fresh allocation.
const maxFormatMessageSize = 24

func (c *Capturer) writeMessage(kind pipeline.MsgKind, encode func([]byte) error) error {
	mode := pipeline.OpenWrite
	handle, err := c.output.Open(mode)
	if err != nil {
		return err
	}
	wh := handle.(*pipeline.WriteHandle)

	payload := c.msgPool.Get()
	defer c.msgPool.Put(payload)
	if err := encode(payload); err != nil {
		wh.Cancel()
		return err
	}
	// encode() writes a fixed, kind-specific number of bytes starting at
	// payload[0]; trim to that before framing, since WriteHandle.SetSize
	// fixes the reservation length up front.
	n := messageBodyLen(kind)
	if err := wh.SetSize(pipeline.MsgHeaderSize + n); err != nil {
		wh.Cancel()
		return err
	}
	var header [pipeline.MsgHeaderSize]byte
	pipeline.MsgHeader{Type: kind}.Encode(header[:])
	wh.Write(header[:])
	wh.Write(payload[:n])
	return wh.Close()
}

func messageBodyLen(kind pipeline.MsgKind) int {
	switch kind {
	case pipeline.MsgVideoFormat:
		return 17
	case pipeline.MsgColor:
		return 24
	default:
		return 0
	}
}

func (c *Capturer) emitFrame(s *streamState, surf Surface, cfg Config, now uint64) error {
	s.mu.Lock()
	width, height := s.lastWidth, s.lastHeight
	wasAsync := s.asyncInFlight
	pboTime := s.pboTime
	s.mu.Unlock()

	row := cfg.rowStride(width)
	size := row * height

	mode := pipeline.OpenWrite
	if !cfg.LockFPS && !cfg.IgnoreTime {
		mode = pipeline.OpenWriteTry
	}

	handle, err := c.output.Open(mode)
	if err != nil {
		if err == pipeline.ErrBusy {
			s.mu.Lock()
			s.droppedFrames++
			s.mu.Unlock()
			c.logger.Infof("capture: dropped frame for stream %d: output buffer busy", s.id)
			return nil // dropped frame, not an error
		}
		return err
	}
	wh := handle.(*pipeline.WriteHandle)

	frameTime := now
	if cfg.Async && wasAsync && pboTime < now {
		frameTime = pboTime
	}

	total := pipeline.MsgHeaderSize + 12 + size // header + VideoFrame header + pixels
	if err := wh.SetSize(total); err != nil {
		wh.Cancel()
		if err == pipeline.ErrBusy {
			s.mu.Lock()
			s.droppedFrames++
			s.mu.Unlock()
			c.logger.Infof("capture: dropped frame for stream %d: output buffer busy", s.id)
			return nil // dropped frame, not an error
		}
		return err
	}

	var header [pipeline.MsgHeaderSize]byte
	pipeline.MsgHeader{Type: pipeline.MsgVideoFrame}.Encode(header[:])
	wh.Write(header[:])

	var frameHeader [12]byte
	pipeline.VideoFrame{ID: s.id, Time: frameTime}.Encode(frameHeader[:])
	wh.Write(frameHeader[:])

	pixels, err := wh.DMA(size, pipeline.AcceptFakeDMA)
	if err != nil {
		wh.Cancel()
		return err
	}

	if cfg.Async {
		if wasAsync {
			if err := surf.MaterializeAsyncTransfer(pixels); err != nil {
				wh.Cancel()
				return err
			}
			s.mu.Lock()
			s.asyncInFlight = false
			s.mu.Unlock()
		}
		if err := surf.BeginAsyncTransfer(cfg.ReadBack); err != nil {
			wh.Cancel()
			return err
		}
		s.mu.Lock()
		s.asyncInFlight = true
		s.pboTime = now
		s.mu.Unlock()
	} else {
		if err := surf.ReadPixels(pixels, cfg.ReadBack); err != nil {
			wh.Cancel()
			return err
		}
	}

	return wh.Close()
}

func (c *Capturer) fail(err error) error {
	atomic.StoreInt32(&c.capturing, 0)
	wrapped := fmt.Errorf("pipeline/capture: %w", err)
	c.logger.Errorf("capture: fatal error, stopping: %v", wrapped)
	if c.cancellation != nil {
		c.cancellation.Cancel(wrapped)
	} else {
		c.output.CancelBufferWithError(wrapped)
	}
	return err
}

// DroppedFrames returns the number of frames silently dropped for id due to
// output backpressure (Section 3's "statistics counters"). It returns 0 for
// an id that has never captured a frame.
func (c *Capturer) DroppedFrames(id pipeline.StreamID) uint64 {
	for s := c.headStream(); s != nil; s = s.next {
		if s.id == id {
			s.mu.Lock()
			defer s.mu.Unlock()
			return s.droppedFrames
		}
	}
	return 0
}

// vim: foldmethod=marker
