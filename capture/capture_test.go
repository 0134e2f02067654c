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

package capture_test

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pipeline "glcstream.dev/pipeline"
	"glcstream.dev/pipeline/capture"
	"glcstream.dev/pipeline/internal/rational"
	"glcstream.dev/pipeline/mock"
)

// drainMessage reads and closes the next committed message, returning its
// header and payload bytes.
func drainMessage(t *testing.T, out *pipeline.PacketBuffer) (pipeline.MsgHeader, []byte) {
	t.Helper()
	h, err := out.Open(pipeline.OpenRead)
	require.NoError(t, err)
	rh := h.(*pipeline.ReadHandle)
	hdr, err := rh.Header()
	require.NoError(t, err)
	payload := append([]byte(nil), rh.Payload()...)
	require.NoError(t, rh.Close())
	return hdr, payload
}

func newCapturer(t *testing.T, cfg capture.Config) (*capture.Capturer, *pipeline.PacketBuffer, *pipeline.FakeClock) {
	t.Helper()
	out := pipeline.NewPacketBuffer(1 << 20)
	clock := pipeline.NewFakeClock()
	c := capture.NewCapturer(cfg, out, clock, nil, nil)
	return c, out, clock
}

func baseConfig() capture.Config {
	return capture.Config{
		TargetFPS:     rational.NewFPS(30, 1),
		Format:        pipeline.VideoFormatBGRA,
		PackAlignment: 1,
	}
}

func TestCapturerFirstFrameEmitsFormatAndFrame(t *testing.T) {
	c, out, _ := newCapturer(t, baseConfig())
	c.Start()

	surf := mock.New(mock.Config{Width: 4, Height: 4})
	require.NoError(t, c.Frame(1, 1, surf))

	h, err := out.Open(pipeline.OpenRead)
	require.NoError(t, err)
	hdr, err := h.(*pipeline.ReadHandle).Header()
	require.NoError(t, err)
	assert.Equal(t, pipeline.MsgVideoFormat, hdr.Type)
	require.NoError(t, h.(*pipeline.ReadHandle).Close())

	h2, err := out.Open(pipeline.OpenRead)
	require.NoError(t, err)
	hdr2, err := h2.(*pipeline.ReadHandle).Header()
	require.NoError(t, err)
	assert.Equal(t, pipeline.MsgColor, hdr2.Type)
	require.NoError(t, h2.(*pipeline.ReadHandle).Close())

	hdr3, _ := drainMessage(t, out)
	assert.Equal(t, pipeline.MsgVideoFrame, hdr3.Type)
}

func TestCapturerNotCapturingIsNoop(t *testing.T) {
	c, out, _ := newCapturer(t, baseConfig())
	surf := mock.New(mock.Config{Width: 4, Height: 4})
	require.NoError(t, c.Frame(1, 1, surf))
	assert.Equal(t, 0, out.Len())
}

func TestCapturerRateGateDropsFastFrames(t *testing.T) {
	cfg := baseConfig()
	c, out, clock := newCapturer(t, cfg)
	c.Start()
	surf := mock.New(mock.Config{Width: 2, Height: 2})

	require.NoError(t, c.Frame(1, 1, surf))
	before := out.Len()

	clock.Advance(0) // no time passes
	require.NoError(t, c.Frame(1, 1, surf))
	assert.Equal(t, before, out.Len()) // rate-gated, no new messages
}

func TestCapturerStopClearsCapturingAndResetsLast(t *testing.T) {
	c, out, _ := newCapturer(t, baseConfig())
	c.Start()
	surf := mock.New(mock.Config{Width: 2, Height: 2})
	require.NoError(t, c.Frame(1, 1, surf))
	c.Stop()
	// Stop must return (not hang) once every per-stream CAPTURING bit is
	// clear, which Frame always ensures on exit via its defer.
	assert.Equal(t, 3, out.Len()) // VideoFormat, Color, VideoFrame

	// With the global CAPTURING bit cleared, Frame is a no-op.
	require.NoError(t, c.Frame(1, 1, surf))
	assert.Equal(t, 3, out.Len())

	// With last reset to 0, a restarted capture is not rate-gated even
	// though the clock has not moved; geometry and gamma are unchanged, so
	// only a VideoFrame is emitted.
	c.Start()
	require.NoError(t, c.Frame(1, 1, surf))
	assert.Equal(t, 4, out.Len())
}

func TestCapturerRejectsUnsupportedFormat(t *testing.T) {
	c, _, _ := newCapturer(t, baseConfig())
	err := c.SetConfig(capture.Config{
		TargetFPS: rational.NewFPS(30, 1),
		Format:    pipeline.VideoFormatYCbCr420JPEG,
	})
	assert.ErrorIs(t, err, pipeline.ErrNotSupported)
}

// TestCapturerAsyncTransferEmitsPreviousPboTime exercises the async
// double-buffered transfer sequence: the first frame() call only kicks off
// the transfer (no VideoFrame is emitted), and every later call emits the
// frame whose pixels were requested by the call before it, stamped with
// that call's sampled time rather than its own.
func TestCapturerAsyncTransferEmitsPreviousPboTime(t *testing.T) {
	cfg := baseConfig()
	cfg.Async = true
	c, out, clock := newCapturer(t, cfg)
	c.Start()
	surf := mock.New(mock.Config{Width: 2, Height: 2})

	period, _, _ := cfg.TargetFPS.Period()

	require.NoError(t, c.Frame(1, 1, surf))
	hdr, _ := drainMessage(t, out) // VideoFormat
	assert.Equal(t, pipeline.MsgVideoFormat, hdr.Type)
	hdr, _ = drainMessage(t, out) // Color
	assert.Equal(t, pipeline.MsgColor, hdr.Type)
	assert.Equal(t, 0, out.Len()) // kick-off only, no frame yet

	pboTime1 := clock.NowNS()
	clock.Advance(period + time.Millisecond)

	require.NoError(t, c.Frame(1, 1, surf))
	hdr, body := drainMessage(t, out)
	require.Equal(t, pipeline.MsgVideoFrame, hdr.Type)
	vf, err := pipeline.DecodeVideoFrame(body)
	require.NoError(t, err)
	assert.Equal(t, pboTime1, vf.Time)

	pboTime2 := clock.NowNS()
	clock.Advance(period + time.Millisecond)

	require.NoError(t, c.Frame(1, 1, surf))
	hdr, body = drainMessage(t, out)
	require.Equal(t, pipeline.MsgVideoFrame, hdr.Type)
	vf, err = pipeline.DecodeVideoFrame(body)
	require.NoError(t, err)
	assert.Equal(t, pboTime2, vf.Time)
}

// TestCapturerLockFPSBlocksInsteadOfDropping exercises the LockFPS
// guarantee: against an output buffer too small to hold every frame at
// once, a slow consumer still receives all of them, because LockFPS opens
// the output with the blocking OpenWrite rather than OpenWriteTry, instead
// of taking the ErrBusy drop path.
func TestCapturerLockFPSBlocksInsteadOfDropping(t *testing.T) {
	cfg := baseConfig()
	cfg.TargetFPS = rational.NewFPS(1_000_000, 1) // negligible period
	cfg.LockFPS = true

	// Room for VideoFormat(21) + Color(28) + two VideoFrames(32 each), but
	// not a third frame, forcing the third Frame call's reservation to
	// block until the slow consumer frees space.
	out := pipeline.NewPacketBuffer(113)
	clock := pipeline.NewFakeClock()
	c := capture.NewCapturer(cfg, out, clock, nil, nil)
	c.Start()
	surf := mock.New(mock.Config{Width: 2, Height: 2})

	period, _, _ := cfg.TargetFPS.Period()

	done := make(chan error, 1)
	go func() {
		for i := 0; i < 3; i++ {
			clock.Advance(period)
			if err := c.Frame(1, 1, surf); err != nil {
				done <- err
				return
			}
		}
		done <- nil
	}()

	deadline := time.Now().Add(2 * time.Second)
	for out.Len() < 4 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	require.Equal(t, 4, out.Len(), "producer should be blocked on the third frame's reservation")

	// Slow consumer: drain every message as it arrives. format(1) + color(1)
	// + 3 frames = 5 total messages.
	for i := 0; i < 5; i++ {
		drainMessage(t, out)
	}

	require.NoError(t, <-done)
	assert.Equal(t, uint64(0), c.DroppedFrames(0))
}

func TestCapturerDroppedFrameCounterIncrementsOnBusy(t *testing.T) {
	cfg := baseConfig()
	// Room for VideoFormat + Color but not a single VideoFrame, so the
	// first frame's reservation always comes back ErrBusy.
	out := pipeline.NewPacketBuffer(49)
	clock := pipeline.NewFakeClock()
	c := capture.NewCapturer(cfg, out, clock, nil, nil)
	c.Start()
	surf := mock.New(mock.Config{Width: 2, Height: 2})

	require.NoError(t, c.Frame(1, 1, surf))
	assert.Equal(t, uint64(1), c.DroppedFrames(0))

	clock.Advance(time.Second)
	require.NoError(t, c.Frame(1, 1, surf))
	assert.Equal(t, uint64(2), c.DroppedFrames(0))
}

func TestCapturerFailCancelsSharedCancellation(t *testing.T) {
	cfg := baseConfig()
	out := pipeline.NewPacketBuffer(1 << 20)
	clock := pipeline.NewFakeClock()
	cancellation := pipeline.NewCancellation()
	other := pipeline.NewPacketBuffer(1 << 20)
	cancellation.Register(other)

	c := capture.NewCapturer(cfg, out, clock, nil, cancellation)
	c.Start()

	boom := errors.New("boom")
	surf := mock.New(mock.Config{
		Width: 2, Height: 2,
		FailTransfer: boom,
	})
	err := c.Frame(1, 1, surf)
	assert.ErrorIs(t, err, boom)
	assert.True(t, cancellation.Cancelled())

	_, err = other.Open(pipeline.OpenWrite)
	assert.ErrorIs(t, err, boom)
}

// vim: foldmethod=marker
