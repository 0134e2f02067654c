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

// Package mock provides a fake capture.Surface for exercising the capture
// and scale stages without a real windowing/graphics backend.
package mock

import (
	"sync"

	"glcstream.dev/pipeline/capture"
)

// New creates a new mock Surface from cfg.
func New(cfg Config) *Surface {
	return &Surface{config: cfg}
}

// Config is the set of default values and optional behavior hooks for a
// mock Surface. Fields left at their zero value fall back to a harmless
// default, the same convention the capture and scale configs use.
type Config struct {
	// Width, Height are the surface's initial pixel dimensions.
	Width, Height int

	// Pixels, if not nil, is called to fill a ReadPixels/
	// MaterializeAsyncTransfer destination. If nil, the buffer is filled
	// with a deterministic repeating pattern instead.
	Pixels func(dst []byte, readBack bool)

	// Brightness, Contrast, GammaRed, GammaGreen, GammaBlue are the gamma
	// tuple Gamma() reports until SetGamma changes it.
	Brightness, Contrast, GammaRed, GammaGreen, GammaBlue float32

	// FailTransfer, if set, makes every ReadPixels/BeginAsyncTransfer call
	// return this error, to exercise the capturer's error path.
	FailTransfer error
}

// Surface is a fake capture.Surface backed entirely by in-memory state:
// geometry and gamma are set directly by the test, and pixel readback
// either runs a caller-supplied function or fills a deterministic pattern.
type Surface struct {
	mu     sync.Mutex
	config Config

	asyncPending bool
}

var _ capture.Surface = (*Surface)(nil)

// SetGeometry changes the dimensions Geometry() reports.
func (s *Surface) SetGeometry(width, height int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.config.Width, s.config.Height = width, height
}

// SetGamma changes the tuple Gamma() reports.
func (s *Surface) SetGamma(brightness, contrast, gammaRed, gammaGreen, gammaBlue float32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.config.Brightness = brightness
	s.config.Contrast = contrast
	s.config.GammaRed = gammaRed
	s.config.GammaGreen = gammaGreen
	s.config.GammaBlue = gammaBlue
}

// Geometry implements capture.Surface.
func (s *Surface) Geometry() (int, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.config.Width, s.config.Height
}

// Gamma implements capture.Surface.
func (s *Surface) Gamma() (float32, float32, float32, float32, float32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := s.config
	return c.Brightness, c.Contrast, c.GammaRed, c.GammaGreen, c.GammaBlue
}

func (s *Surface) fill(dst []byte, readBack bool) error {
	s.mu.Lock()
	fn := s.config.Pixels
	err := s.config.FailTransfer
	s.mu.Unlock()

	if err != nil {
		return err
	}
	if fn != nil {
		fn(dst, readBack)
		return nil
	}
	for i := range dst {
		dst[i] = byte(i)
	}
	return nil
}

// ReadPixels implements capture.Surface.
func (s *Surface) ReadPixels(dst []byte, readBack bool) error {
	return s.fill(dst, readBack)
}

// BeginAsyncTransfer implements capture.Surface.
func (s *Surface) BeginAsyncTransfer(readBack bool) error {
	s.mu.Lock()
	err := s.config.FailTransfer
	s.mu.Unlock()
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.asyncPending = true
	s.mu.Unlock()
	return nil
}

// MaterializeAsyncTransfer implements capture.Surface.
func (s *Surface) MaterializeAsyncTransfer(dst []byte) error {
	s.mu.Lock()
	s.asyncPending = false
	s.mu.Unlock()
	return s.fill(dst, false)
}

// DrawIndicator implements capture.Surface.
func (s *Surface) DrawIndicator() {}

// vim: foldmethod=marker
