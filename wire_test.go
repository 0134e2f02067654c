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
	"github.com/stretchr/testify/require"

	pipeline "glcstream.dev/pipeline"
)

func TestVideoFormatEncodeDecode(t *testing.T) {
	vf := pipeline.VideoFormat{
		ID:     7,
		Flags:  pipeline.VideoFlagDwordAligned,
		Format: pipeline.VideoFormatBGRA,
		Width:  1920,
		Height: 1080,
	}
	buf := make([]byte, 17)
	require.NoError(t, vf.Encode(buf))

	got, err := pipeline.DecodeVideoFormat(buf)
	require.NoError(t, err)
	assert.Equal(t, vf, got)
}

func TestVideoFormatRowStrideDwordAlignment(t *testing.T) {
	vf := pipeline.VideoFormat{Format: pipeline.VideoFormatBGR, Width: 3, Height: 1}
	assert.Equal(t, 9, vf.RowStride()) // 3*3=9, no alignment flag

	vf.Flags = pipeline.VideoFlagDwordAligned
	assert.Equal(t, 16, vf.RowStride()) // padded up to next multiple of 8
}

func TestVideoFormatFrameSize(t *testing.T) {
	vf := pipeline.VideoFormat{Format: pipeline.VideoFormatBGRA, Width: 2, Height: 3}
	assert.Equal(t, 2*4*3, vf.FrameSize())
}

func TestVideoPixelFormatBytesPerPixel(t *testing.T) {
	assert.Equal(t, 3, pipeline.VideoFormatBGR.BytesPerPixel())
	assert.Equal(t, 4, pipeline.VideoFormatBGRA.BytesPerPixel())
	assert.Equal(t, 0, pipeline.VideoFormatYCbCr420JPEG.BytesPerPixel())
}

func TestVideoFrameEncodeDecode(t *testing.T) {
	f := pipeline.VideoFrame{ID: 3, Time: 123456789}
	buf := make([]byte, 12)
	require.NoError(t, f.Encode(buf))

	got, err := pipeline.DecodeVideoFrame(buf)
	require.NoError(t, err)
	assert.Equal(t, f, got)
}

func TestAudioFormatEncodeDecode(t *testing.T) {
	af := pipeline.AudioFormat{ID: 1, Flags: pipeline.AudioFlagInterleaved, Rate: 48000, Channels: 2, Format: 1}
	buf := make([]byte, 17)
	require.NoError(t, af.Encode(buf))

	got, err := pipeline.DecodeAudioFormat(buf)
	require.NoError(t, err)
	assert.Equal(t, af, got)
}

func TestAudioDataEncodeDecode(t *testing.T) {
	ad := pipeline.AudioData{ID: 9, Time: 42, Size: 1024}
	buf := make([]byte, 20)
	require.NoError(t, ad.Encode(buf))

	got, err := pipeline.DecodeAudioData(buf)
	require.NoError(t, err)
	assert.Equal(t, ad, got)
}

func TestColorEncodeDecode(t *testing.T) {
	c := pipeline.Color{ID: 4, Brightness: 0.5, Contrast: 1.1, GammaRed: 2.2, GammaGreen: 2.4, GammaBlue: 2.6}
	buf := make([]byte, 24)
	require.NoError(t, c.Encode(buf))

	got, err := pipeline.DecodeColor(buf)
	require.NoError(t, err)
	assert.Equal(t, c, got)
}

func TestEncodeShortBufferErrors(t *testing.T) {
	assert.ErrorIs(t, pipeline.VideoFormat{}.Encode(make([]byte, 1)), pipeline.ErrInvalidArgument)
	assert.ErrorIs(t, pipeline.VideoFrame{}.Encode(make([]byte, 1)), pipeline.ErrInvalidArgument)
	assert.ErrorIs(t, pipeline.AudioFormat{}.Encode(make([]byte, 1)), pipeline.ErrInvalidArgument)
	assert.ErrorIs(t, pipeline.AudioData{}.Encode(make([]byte, 1)), pipeline.ErrInvalidArgument)
	assert.ErrorIs(t, pipeline.Color{}.Encode(make([]byte, 1)), pipeline.ErrInvalidArgument)
}

// vim: foldmethod=marker
