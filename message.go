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
	"fmt"
)

// MsgKind identifies the type of a Message's payload. This is the tag that
// every stage switches on to decide how to interpret the bytes following the
// MsgHeader.
//
// MsgKind is a uint8, not an open-coded flag word: the wire header reserves
// a single byte for it, and all other header bytes are padding to a fixed
// size shared by every stage (see MsgHeaderSize).
type MsgKind uint8

const (
	// MsgUnknown is the zero value; no stage should ever emit it.
	MsgUnknown MsgKind = iota

	// MsgVideoFormat announces a new (or changed) video stream geometry and
	// pixel format for a stream id. See VideoFormat.
	MsgVideoFormat

	// MsgVideoFrame carries one captured/processed video frame's pixel
	// bytes for a stream id. See VideoFrame.
	MsgVideoFrame

	// MsgAudioFormat announces a new (or changed) audio stream format for a
	// stream id. See AudioFormat.
	MsgAudioFormat

	// MsgAudioData carries PCM bytes for a stream id. See AudioData.
	MsgAudioData

	// MsgColor carries brightness/contrast/gamma color-correction state for
	// a video stream id. See Color.
	MsgColor

	// MsgClose signals that no further messages will be written for this
	// buffer; it carries no payload.
	MsgClose
)

// String returns a short human readable name, used in log lines and test
// failure messages.
func (k MsgKind) String() string {
	switch k {
	case MsgVideoFormat:
		return "VideoFormat"
	case MsgVideoFrame:
		return "VideoFrame"
	case MsgAudioFormat:
		return "AudioFormat"
	case MsgAudioData:
		return "AudioData"
	case MsgColor:
		return "Color"
	case MsgClose:
		return "Close"
	default:
		return "Unknown"
	}
}

// MsgHeaderSize is the fixed, kind-independent header every stage reads
// before deciding how to parse the rest of a packet. Keeping this fixed
// (rather than variable-length per kind) is what lets the packet buffer
// remain oblivious to message semantics: it only ever needs to hand a reader
// the first MsgHeaderSize bytes to know what follows.
const MsgHeaderSize = 4

// MsgHeader is the fixed-layout prefix of every packet written to a
// PacketBuffer. The remaining 3 bytes are reserved padding so the header
// stays a stable size if future kinds need inline flags.
type MsgHeader struct {
	Type MsgKind
}

// Encode writes the wire form of the header into buf, which must be at
// least MsgHeaderSize bytes.
func (h MsgHeader) Encode(buf []byte) error {
	if len(buf) < MsgHeaderSize {
		return fmt.Errorf("pipeline: MsgHeader.Encode: buffer too small: %w", ErrInvalidArgument)
	}
	buf[0] = byte(h.Type)
	buf[1], buf[2], buf[3] = 0, 0, 0
	return nil
}

// DecodeMsgHeader parses the fixed header from the front of buf.
func DecodeMsgHeader(buf []byte) (MsgHeader, error) {
	if len(buf) < MsgHeaderSize {
		return MsgHeader{}, fmt.Errorf("pipeline: DecodeMsgHeader: short buffer: %w", ErrInvalidArgument)
	}
	return MsgHeader{Type: MsgKind(buf[0])}, nil
}

// StreamID identifies an independent source (a captured surface, or an
// audio device) for the lifetime of the pipeline. It is stable from the
// point a stage assigns it until pipeline teardown.
type StreamID uint32

// vim: foldmethod=marker
