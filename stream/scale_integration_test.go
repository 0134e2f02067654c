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

package stream_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	pipeline "glcstream.dev/pipeline"
	"glcstream.dev/pipeline/stream"
)

// writeRawMessage fabricates a wire message directly on buf, the way a
// capture stage's writeMessage would, without needing a real Capturer.
func writeRawMessage(t *testing.T, buf *pipeline.PacketBuffer, kind pipeline.MsgKind, bodyLen int, encode func([]byte) error) {
	t.Helper()
	h, err := buf.Open(pipeline.OpenWrite)
	require.NoError(t, err)
	wh := h.(*pipeline.WriteHandle)
	require.NoError(t, wh.SetSize(pipeline.MsgHeaderSize+bodyLen))

	var header [pipeline.MsgHeaderSize]byte
	require.NoError(t, (pipeline.MsgHeader{Type: kind}).Encode(header[:]))
	_, err = wh.Write(header[:])
	require.NoError(t, err)

	body := make([]byte, bodyLen)
	require.NoError(t, encode(body))
	_, err = wh.Write(body)
	require.NoError(t, err)

	require.NoError(t, wh.Close())
}

// TestScalerRunnerEndToEndHalvesFrame drives a 1024x768 BGRA stream through
// a Scaler-backed Runner at a 0.5 scale factor and checks both the
// rewritten VideoFormat and the resulting VideoFrame's payload size.
func TestScalerRunnerEndToEndHalvesFrame(t *testing.T) {
	in := pipeline.NewPacketBuffer(1 << 22)
	out := pipeline.NewPacketBuffer(1 << 21)

	scaler := stream.NewScaler(stream.ScaleConfig{Factor: 0.5})
	runner := pipeline.NewRunner(stream.NewScalerRunnerConfig(1, in, out, scaler))
	runner.Start()

	srcFormat := pipeline.VideoFormat{
		ID:     1,
		Flags:  pipeline.VideoFlagDwordAligned,
		Format: pipeline.VideoFormatBGRA,
		Width:  1024,
		Height: 768,
	}
	writeRawMessage(t, in, pipeline.MsgVideoFormat, pipeline.VideoFormatWireSize, srcFormat.Encode)

	frameSize := srcFormat.FrameSize()
	pixels := make([]byte, frameSize)
	for i := range pixels {
		pixels[i] = byte(i)
	}
	writeRawMessage(t, in, pipeline.MsgVideoFrame, pipeline.VideoFrameHeaderWireSize+frameSize, func(buf []byte) error {
		if err := (pipeline.VideoFrame{ID: 1, Time: 12345}).Encode(buf); err != nil {
			return err
		}
		copy(buf[pipeline.VideoFrameHeaderWireSize:], pixels)
		return nil
	})

	fh, err := out.Open(pipeline.OpenRead)
	require.NoError(t, err)
	frh := fh.(*pipeline.ReadHandle)
	hdr, err := frh.Header()
	require.NoError(t, err)
	require.Equal(t, pipeline.MsgVideoFormat, hdr.Type)
	outFormat, err := pipeline.DecodeVideoFormat(frh.Payload())
	require.NoError(t, err)
	require.NoError(t, frh.Close())

	require.Equal(t, pipeline.VideoFormatBGR, outFormat.Format)
	require.Equal(t, pipeline.VideoFlags(0), outFormat.Flags)
	require.EqualValues(t, 512, outFormat.Width)
	require.EqualValues(t, 384, outFormat.Height)

	ph, err := out.Open(pipeline.OpenRead)
	require.NoError(t, err)
	prh := ph.(*pipeline.ReadHandle)
	hdr, err = prh.Header()
	require.NoError(t, err)
	require.Equal(t, pipeline.MsgVideoFrame, hdr.Type)
	outFrame, err := pipeline.DecodeVideoFrame(prh.Payload())
	require.NoError(t, err)
	require.EqualValues(t, 1, outFrame.ID)
	require.EqualValues(t, 12345, outFrame.Time)
	require.Len(t, prh.Payload()[pipeline.VideoFrameHeaderWireSize:], 512*384*3)
	require.NoError(t, prh.Close())

	require.NoError(t, runner.Stop())
}

// TestScalerRunnerForwardsPassthroughStream checks that a stream configured
// at Factor 1 with an already-BGR source is mirrored through untouched,
// rather than being run through the scale math at all.
func TestScalerRunnerForwardsPassthroughStream(t *testing.T) {
	in := pipeline.NewPacketBuffer(1 << 16)
	out := pipeline.NewPacketBuffer(1 << 16)

	scaler := stream.NewScaler(stream.ScaleConfig{Factor: 1})
	runner := pipeline.NewRunner(stream.NewScalerRunnerConfig(1, in, out, scaler))
	runner.Start()

	srcFormat := pipeline.VideoFormat{ID: 7, Format: pipeline.VideoFormatBGR, Width: 4, Height: 4}
	writeRawMessage(t, in, pipeline.MsgVideoFormat, pipeline.VideoFormatWireSize, srcFormat.Encode)

	frameSize := srcFormat.FrameSize()
	pixels := make([]byte, frameSize)
	for i := range pixels {
		pixels[i] = byte(i + 1)
	}
	writeRawMessage(t, in, pipeline.MsgVideoFrame, pipeline.VideoFrameHeaderWireSize+frameSize, func(buf []byte) error {
		if err := (pipeline.VideoFrame{ID: 7, Time: 1}).Encode(buf); err != nil {
			return err
		}
		copy(buf[pipeline.VideoFrameHeaderWireSize:], pixels)
		return nil
	})

	fh, err := out.Open(pipeline.OpenRead)
	require.NoError(t, err)
	frh := fh.(*pipeline.ReadHandle)
	outFormat, err := pipeline.DecodeVideoFormat(frh.Payload())
	require.NoError(t, err)
	require.Equal(t, srcFormat, outFormat)
	require.NoError(t, frh.Close())

	ph, err := out.Open(pipeline.OpenRead)
	require.NoError(t, err)
	prh := ph.(*pipeline.ReadHandle)
	require.Equal(t, pixels, prh.Payload()[pipeline.VideoFrameHeaderWireSize:])
	require.NoError(t, prh.Close())

	require.NoError(t, runner.Stop())
}

// vim: foldmethod=marker
