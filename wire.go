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
	"encoding/binary"
	"fmt"
	"math"
)

// wireOrder is the byte order used for every fixed-layout field on the
// wire. Chosen to match the host's native order isn't necessary here (this
// is an in-process format, never written to a file or socket), but a fixed
// order keeps the encode/decode pair simple and testable in isolation from
// the host's endianness.
var wireOrder = binary.LittleEndian

// Exported wire-size constants, for callers outside this package (the
// scale stage's Runner wiring, notably) that need to size a reservation or
// slice off a pixel tail without hand-decoding a message.
const (
	VideoFormatWireSize      = videoFormatWireSize
	VideoFrameHeaderWireSize = videoFrameWireSize
	ColorWireSize            = colorWireSize
)

// VideoFlags are the transient and sticky bits carried alongside a video
// stream's geometry.
type VideoFlags uint32

const (
	// VideoFlagDwordAligned indicates each row of pixel data is padded to a
	// multiple of 8 bytes. Cleared by the scale stage, since its output is
	// always packed.
	VideoFlagDwordAligned VideoFlags = 1 << 0

	// VideoFlagCapturing names the transient bit asserted for the duration
	// of a single capture operation on a stream. The capture package keeps
	// that bit in its own per-stream field; no stage sets or reads this
	// flag value.
	VideoFlagCapturing VideoFlags = 1 << 1

	// VideoFlagNeedColorUpdate names the condition that makes the next
	// Frame call emit a Color message even if the sampled gamma hasn't
	// changed. The capture package tracks it in its own per-stream field;
	// no stage sets or reads this flag value.
	VideoFlagNeedColorUpdate VideoFlags = 1 << 2
)

// Has reports whether every bit set in want is also set in f.
func (f VideoFlags) Has(want VideoFlags) bool {
	return f&want == want
}

// VideoPixelFormat identifies the pixel layout of a video stream.
type VideoPixelFormat uint8

const (
	// VideoFormatUnknown is the zero value; no stream should ever report it.
	VideoFormatUnknown VideoPixelFormat = iota

	// VideoFormatBGR is 3 bytes per pixel, blue-green-red order.
	VideoFormatBGR

	// VideoFormatBGRA is 4 bytes per pixel, blue-green-red-alpha order.
	VideoFormatBGRA

	// VideoFormatYCbCr420JPEG is planar YCbCr 4:2:0 with JPEG (full-range)
	// sample placement.
	VideoFormatYCbCr420JPEG
)

// BytesPerPixel returns the packed bytes-per-pixel for interleaved formats.
// It is meaningless (and returns 0) for the planar YCbCr420JPEG format.
func (f VideoPixelFormat) BytesPerPixel() int {
	switch f {
	case VideoFormatBGR:
		return 3
	case VideoFormatBGRA:
		return 4
	default:
		return 0
	}
}

func (f VideoPixelFormat) String() string {
	switch f {
	case VideoFormatBGR:
		return "BGR"
	case VideoFormatBGRA:
		return "BGRA"
	case VideoFormatYCbCr420JPEG:
		return "YCbCr420JPEG"
	default:
		return "Unknown"
	}
}

// VideoFormat announces a video stream's geometry and pixel format. It is
// emitted on stream creation and whenever the geometry changes.
type VideoFormat struct {
	ID     StreamID
	Flags  VideoFlags
	Format VideoPixelFormat
	Width  uint32
	Height uint32
}

// RowStride returns the number of bytes per row for this format, honoring
// VideoFlagDwordAligned (pad to a multiple of 8).
func (f VideoFormat) RowStride() int {
	row := int(f.Width) * f.Format.BytesPerPixel()
	if f.Flags.Has(VideoFlagDwordAligned) {
		row = (row + 7) &^ 7
	}
	return row
}

// FrameSize returns RowStride() * Height, the payload length every
// VideoFrame for this format must carry.
func (f VideoFormat) FrameSize() int {
	return f.RowStride() * int(f.Height)
}

const videoFormatWireSize = 4 + 4 + 1 + 4 + 4 // id, flags, format, width, height

// Encode writes the wire form of the VideoFormat message (not including the
// MsgHeader) to buf.
func (f VideoFormat) Encode(buf []byte) error {
	if len(buf) < videoFormatWireSize {
		return fmt.Errorf("pipeline: VideoFormat.Encode: buffer too small: %w", ErrInvalidArgument)
	}
	wireOrder.PutUint32(buf[0:4], uint32(f.ID))
	wireOrder.PutUint32(buf[4:8], uint32(f.Flags))
	buf[8] = byte(f.Format)
	wireOrder.PutUint32(buf[9:13], f.Width)
	wireOrder.PutUint32(buf[13:17], f.Height)
	return nil
}

// DecodeVideoFormat parses a VideoFormat payload.
func DecodeVideoFormat(buf []byte) (VideoFormat, error) {
	if len(buf) < videoFormatWireSize {
		return VideoFormat{}, fmt.Errorf("pipeline: DecodeVideoFormat: short buffer: %w", ErrInvalidArgument)
	}
	return VideoFormat{
		ID:     StreamID(wireOrder.Uint32(buf[0:4])),
		Flags:  VideoFlags(wireOrder.Uint32(buf[4:8])),
		Format: VideoPixelFormat(buf[8]),
		Width:  wireOrder.Uint32(buf[9:13]),
		Height: wireOrder.Uint32(buf[13:17]),
	}, nil
}

// VideoFrame carries one frame's worth of pixel data for a stream. The
// pixel bytes themselves are the packet's tail, sized by the most recently
// emitted VideoFormat for ID.
type VideoFrame struct {
	ID   StreamID
	Time uint64 // nanoseconds, monotonic clock
}

const videoFrameWireSize = 4 + 8

// Encode writes the wire form of the VideoFrame header (not including the
// pixel tail) to buf.
func (f VideoFrame) Encode(buf []byte) error {
	if len(buf) < videoFrameWireSize {
		return fmt.Errorf("pipeline: VideoFrame.Encode: buffer too small: %w", ErrInvalidArgument)
	}
	wireOrder.PutUint32(buf[0:4], uint32(f.ID))
	wireOrder.PutUint64(buf[4:12], f.Time)
	return nil
}

// DecodeVideoFrame parses a VideoFrame header from the front of buf. The
// remainder of buf (after videoFrameWireSize bytes) is the pixel tail.
func DecodeVideoFrame(buf []byte) (VideoFrame, error) {
	if len(buf) < videoFrameWireSize {
		return VideoFrame{}, fmt.Errorf("pipeline: DecodeVideoFrame: short buffer: %w", ErrInvalidArgument)
	}
	return VideoFrame{
		ID:   StreamID(wireOrder.Uint32(buf[0:4])),
		Time: wireOrder.Uint64(buf[4:12]),
	}, nil
}

// AudioFlags are the bits carried alongside an audio stream's format.
type AudioFlags uint32

const (
	// AudioFlagInterleaved indicates channel samples are interleaved
	// (LRLRLR...) rather than planar.
	AudioFlagInterleaved AudioFlags = 1 << 0
)

// AudioFormat announces an audio stream's sample format, rate and channel
// count.
type AudioFormat struct {
	ID       StreamID
	Flags    AudioFlags
	Rate     uint32
	Channels uint32
	Format   uint8 // sample encoding, opaque to this package
}

const audioFormatWireSize = 4 + 4 + 4 + 4 + 1

// Encode writes the wire form of the AudioFormat message to buf.
func (f AudioFormat) Encode(buf []byte) error {
	if len(buf) < audioFormatWireSize {
		return fmt.Errorf("pipeline: AudioFormat.Encode: buffer too small: %w", ErrInvalidArgument)
	}
	wireOrder.PutUint32(buf[0:4], uint32(f.ID))
	wireOrder.PutUint32(buf[4:8], uint32(f.Flags))
	wireOrder.PutUint32(buf[8:12], f.Rate)
	wireOrder.PutUint32(buf[12:16], f.Channels)
	buf[16] = f.Format
	return nil
}

// DecodeAudioFormat parses an AudioFormat payload.
func DecodeAudioFormat(buf []byte) (AudioFormat, error) {
	if len(buf) < audioFormatWireSize {
		return AudioFormat{}, fmt.Errorf("pipeline: DecodeAudioFormat: short buffer: %w", ErrInvalidArgument)
	}
	return AudioFormat{
		ID:       StreamID(wireOrder.Uint32(buf[0:4])),
		Flags:    AudioFlags(wireOrder.Uint32(buf[4:8])),
		Rate:     wireOrder.Uint32(buf[8:12]),
		Channels: wireOrder.Uint32(buf[12:16]),
		Format:   buf[16],
	}, nil
}

// AudioData carries PCM bytes for a stream. Size is redundant with the
// packet's own length (tracked by the packet buffer) but is kept on the
// wire so a consumer need not ask the buffer for it.
type AudioData struct {
	ID   StreamID
	Time uint64
	Size uint64
}

const audioDataWireSize = 4 + 8 + 8

// Encode writes the wire form of the AudioData header to buf.
func (a AudioData) Encode(buf []byte) error {
	if len(buf) < audioDataWireSize {
		return fmt.Errorf("pipeline: AudioData.Encode: buffer too small: %w", ErrInvalidArgument)
	}
	wireOrder.PutUint32(buf[0:4], uint32(a.ID))
	wireOrder.PutUint64(buf[4:12], a.Time)
	wireOrder.PutUint64(buf[12:20], a.Size)
	return nil
}

// DecodeAudioData parses an AudioData header from the front of buf.
func DecodeAudioData(buf []byte) (AudioData, error) {
	if len(buf) < audioDataWireSize {
		return AudioData{}, fmt.Errorf("pipeline: DecodeAudioData: short buffer: %w", ErrInvalidArgument)
	}
	return AudioData{
		ID:   StreamID(wireOrder.Uint32(buf[0:4])),
		Time: wireOrder.Uint64(buf[4:12]),
		Size: wireOrder.Uint64(buf[12:20]),
	}, nil
}

// Color carries brightness/contrast/gamma color-correction state for a
// video stream.
type Color struct {
	ID         StreamID
	Brightness float32
	Contrast   float32
	GammaRed   float32
	GammaGreen float32
	GammaBlue  float32
}

const colorWireSize = 4 + 4*5

// Encode writes the wire form of the Color message to buf.
func (c Color) Encode(buf []byte) error {
	if len(buf) < colorWireSize {
		return fmt.Errorf("pipeline: Color.Encode: buffer too small: %w", ErrInvalidArgument)
	}
	wireOrder.PutUint32(buf[0:4], uint32(c.ID))
	putFloat32(buf[4:8], c.Brightness)
	putFloat32(buf[8:12], c.Contrast)
	putFloat32(buf[12:16], c.GammaRed)
	putFloat32(buf[16:20], c.GammaGreen)
	putFloat32(buf[20:24], c.GammaBlue)
	return nil
}

// DecodeColor parses a Color payload.
func DecodeColor(buf []byte) (Color, error) {
	if len(buf) < colorWireSize {
		return Color{}, fmt.Errorf("pipeline: DecodeColor: short buffer: %w", ErrInvalidArgument)
	}
	return Color{
		ID:         StreamID(wireOrder.Uint32(buf[0:4])),
		Brightness: getFloat32(buf[4:8]),
		Contrast:   getFloat32(buf[8:12]),
		GammaRed:   getFloat32(buf[12:16]),
		GammaGreen: getFloat32(buf[16:20]),
		GammaBlue:  getFloat32(buf[20:24]),
	}, nil
}

func putFloat32(buf []byte, v float32) {
	wireOrder.PutUint32(buf, math.Float32bits(v))
}

func getFloat32(buf []byte) float32 {
	return math.Float32frombits(wireOrder.Uint32(buf))
}

// vim: foldmethod=marker
