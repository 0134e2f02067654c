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

// Package stream holds the worker-pool processing stages that sit between
// a capture source and an output consumer: right now, just the resampling
// and format-conversion scale stage.
package stream

import (
	"fmt"
	"sync"

	pipeline "glcstream.dev/pipeline"
)

// ScaleConfig configures a Scaler's target geometry and pixel format.
type ScaleConfig struct {
	// Factor is the scale factor s in (0, 1]. 1 means pass-through subject
	// to format conversion only.
	Factor float64
}

func (c ScaleConfig) getFactor() float64 {
	if c.Factor <= 0 {
		return 1
	}
	return c.Factor
}

// streamTable holds the precomputed resample geometry for one stream. It is
// rebuilt wholesale under streamState.mu (writer-locked) whenever a new
// VideoFormat arrives, and read under the same lock (reader-locked) for
// every frame.
type streamTable struct {
	process bool // false => verbatim copy-through

	srcFormat pipeline.VideoPixelFormat
	srcBpp    int
	srcRow    int

	width, height   int
	dstWidth        int
	dstHeight       int

	// fast-path discriminants
	passthroughBGRA bool // s == 1, src BGRA -> dst BGR repack
	boxFilter       bool // s == 0.5

	// general bilinear tables, nil unless neither fast path applies
	pos    []int
	factor []float32
}

// streamState is the per-stream entry a Scaler keeps a readers-writer lock
// around: table rebuilds (on VideoFormat) are rare, resampling (on
// VideoFrame) is frequent, and the two must never observe a torn
// (pos, factor, dstWidth, dstHeight) triple.
type streamState struct {
	mu    sync.RWMutex
	table streamTable
}

// Scaler implements the scale stage of Section 4.D: it owns one streamState
// per stream id, rebuilding resample tables on format changes and applying
// them (or a fast path) to every frame.
type Scaler struct {
	cfg ScaleConfig

	mu      sync.Mutex
	streams map[pipeline.StreamID]*streamState
}

// NewScaler creates a Scaler with the given configuration.
func NewScaler(cfg ScaleConfig) *Scaler {
	return &Scaler{cfg: cfg, streams: make(map[pipeline.StreamID]*streamState)}
}

func (s *Scaler) streamFor(id pipeline.StreamID) *streamState {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.streams[id]
	if !ok {
		st = &streamState{}
		s.streams[id] = st
	}
	return st
}

// ConfigureFormat is step 4.D.1-7: it's invoked when a VideoFormat message
// arrives for id, rebuilds (or tears down) that stream's resample table,
// and returns the VideoFormat to forward downstream. For a pass-through
// stream (factor 1, BGR source) that is in itself, unchanged; otherwise the
// target format is BGR and VideoFlagDwordAligned is stripped, since the
// scaler's output is packed.
func (s *Scaler) ConfigureFormat(id pipeline.StreamID, in pipeline.VideoFormat) (pipeline.VideoFormat, error) {
	st := s.streamFor(id)
	st.mu.Lock()
	defer st.mu.Unlock()

	factor := s.cfg.getFactor()
	srcBpp := 3
	if in.Format == pipeline.VideoFormatBGRA {
		srcBpp = 4
	}

	if factor == 1 && in.Format == pipeline.VideoFormatBGR {
		st.table = streamTable{process: false}
		return in, nil
	}

	w, h := int(in.Width), int(in.Height)
	sw := int(factor * float64(w))
	sh := int(factor * float64(h))
	if sw < 1 || sh < 1 {
		return pipeline.VideoFormat{}, fmt.Errorf("pipeline/stream: ConfigureFormat: scale factor %v too small for %dx%d: %w", factor, w, h, pipeline.ErrInvalidArgument)
	}

	row := w * srcBpp
	if in.Flags.Has(pipeline.VideoFlagDwordAligned) {
		row = (row + 7) &^ 7
	}

	table := streamTable{
		process:   true,
		srcFormat: in.Format,
		srcBpp:    srcBpp,
		srcRow:    row,
		width:     w,
		height:    h,
		dstWidth:  sw,
		dstHeight: sh,
	}

	switch {
	case factor == 1:
		table.passthroughBGRA = true
	case factor == 0.5:
		table.boxFilter = true
	default:
		table.pos, table.factor = buildBilinearTables(w, h, sw, sh, srcBpp, row)
	}
	st.table = table

	out := in
	out.Format = pipeline.VideoFormatBGR
	out.Width = uint32(sw)
	out.Height = uint32(sh)
	out.Flags &^= pipeline.VideoFlagDwordAligned
	return out, nil
}

// OutputFrameSize returns the byte length a transformed frame for id will
// occupy, for the caller to size its output reservation before calling
// Scale. It returns (0, false) if the stream is in pass-through mode (the
// caller should forward the frame unchanged instead).
func (s *Scaler) OutputFrameSize(id pipeline.StreamID) (int, bool) {
	st := s.streamFor(id)
	st.mu.RLock()
	defer st.mu.RUnlock()
	if !st.table.process {
		return 0, false
	}
	return st.table.dstWidth * st.table.dstHeight * 3, true
}

// Scale runs the resample/convert step of 4.D.3 against src (one full
// source frame, srcRow*height bytes) and writes exactly dstWidth*dstHeight*3
// bytes into dst.
func (s *Scaler) Scale(id pipeline.StreamID, src, dst []byte) error {
	st := s.streamFor(id)
	st.mu.RLock()
	defer st.mu.RUnlock()

	t := &st.table
	if !t.process {
		return fmt.Errorf("pipeline/stream: Scale: stream %d is in pass-through mode: %w", id, pipeline.ErrInvalidArgument)
	}

	switch {
	case t.passthroughBGRA:
		scaleBGRAToBGR(src, dst, t.width, t.height, t.srcRow)
	case t.boxFilter:
		scaleBoxFilterHalf(src, dst, t.width, t.height, t.srcRow, t.srcBpp)
	default:
		scaleBilinear(src, dst, t.pos, t.factor, t.srcBpp)
	}
	return nil
}

// scaleBGRAToBGR is the s==1, source-BGRA fast path: drop the alpha byte of
// every pixel.
func scaleBGRAToBGR(src, dst []byte, width, height, srcRow int) {
	di := 0
	for y := 0; y < height; y++ {
		row := src[y*srcRow:]
		for x := 0; x < width; x++ {
			si := x * 4
			dst[di+0] = row[si+0]
			dst[di+1] = row[si+1]
			dst[di+2] = row[si+2]
			di += 3
		}
	}
}

// scaleBoxFilterHalf is the s==0.5 fast path: each target pixel is the
// unweighted average of the 2x2 source block beneath it.
func scaleBoxFilterHalf(src, dst []byte, width, height, srcRow, bpp int) {
	dw, dh := width/2, height/2
	di := 0
	for y := 0; y < dh; y++ {
		row0 := src[(2*y)*srcRow:]
		row1 := src[(2*y+1)*srcRow:]
		for x := 0; x < dw; x++ {
			s0 := (2 * x) * bpp
			s1 := (2*x + 1) * bpp
			for c := 0; c < 3; c++ {
				sum := int(row0[s0+c]) + int(row0[s1+c]) + int(row1[s0+c]) + int(row1[s1+c])
				dst[di+c] = byte(sum >> 2)
			}
			di += 3
		}
	}
}

// scaleBilinear is the general-case fast path of step 4.D.6/4.D.3: for each
// target pixel, three channels each weighted-summed over the four
// precomputed neighbour offsets.
func scaleBilinear(src, dst []byte, pos []int, factor []float32, bpp int) {
	npix := len(pos) / 4
	for i := 0; i < npix; i++ {
		p := pos[i*4 : i*4+4]
		f := factor[i*4 : i*4+4]
		for c := 0; c < 3; c++ {
			var v float32
			for k := 0; k < 4; k++ {
				v += float32(src[p[k]+c]) * f[k]
			}
			dst[i*3+c] = byte(v)
		}
	}
}

// buildBilinearTables implements step 4.D.6: pick the reciprocal-search
// stride d, then for every target pixel record the four source byte offsets
// and bilinear weights needed to reconstruct it.
func buildBilinearTables(w, h, sw, sh, bpp, srcRow int) ([]int, []float32) {
	d := reciprocalStride(w, sw, h, sh)

	pos := make([]int, sw*sh*4)
	factor := make([]float32, sw*sh*4)

	idx := 0
	for y := 0; y < sh; y++ {
		fy := float64(y) * d
		y0 := int(fy)
		b := float32(fy - float64(y0))
		for x := 0; x < sw; x++ {
			fx := float64(x) * d
			x0 := int(fx)
			a := float32(fx - float64(x0))

			off00 := y0*srcRow + x0*bpp
			off10 := y0*srcRow + (x0+1)*bpp
			off01 := (y0+1)*srcRow + x0*bpp
			off11 := (y0+1)*srcRow + (x0+1)*bpp

			base := idx * 4
			pos[base+0] = off00
			pos[base+1] = off10
			pos[base+2] = off01
			pos[base+3] = off11

			factor[base+0] = (1 - a) * (1 - b)
			factor[base+1] = a * (1 - b)
			factor[base+2] = (1 - a) * b
			factor[base+3] = a * b

			idx++
		}
	}
	return pos, factor
}

// reciprocalStride picks the fractional step d used to walk the source
// image when filling an sw x sh destination from a w x h source: the
// smallest r (equivalently, the largest d = (w-r)/sw) such that both
// d*(sh-1)+1 <= h and d*(sw-1)+1 <= w hold.
//
// The search keeps trying larger r as long as either bound is still
// violated; it stops on the first r where both hold. That "keep going"
// condition is naturally a short-circuit logical-or of the two independent
// violation checks, not a bitwise-or: neither check has a side effect the
// other depends on, so there's nothing to gain from forcing both to
// evaluate every iteration.
func reciprocalStride(w, sw, h, sh int) float64 {
	for r := 0; r <= sw; r++ {
		d := float64(w-r) / float64(sw)
		violatesWidth := d*float64(sw-1)+1 > float64(w)
		violatesHeight := d*float64(sh-1)+1 > float64(h)
		if !(violatesWidth || violatesHeight) {
			return d
		}
	}
	return float64(w) / float64(sw)
}

// vim: foldmethod=marker
