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

// Package rational implements the small amount of exact rational arithmetic
// the frame-capture stage needs: a frame rate expressed as a fraction rather
// than a float64, so long-run timing doesn't drift, plus the periodic
// correction term that keeps the long-run average rate exact.
package rational

import "time"

// FPS is a frame rate expressed as an exact fraction Num/Den, so a rate
// like NTSC's 30000/1001 doesn't accumulate floating point error over a
// long capture.
type FPS struct {
	Num uint64
	Den uint64
}

// NewFPS builds an FPS, reducing it to lowest terms.
func NewFPS(num, den uint64) FPS {
	f := FPS{Num: num, Den: den}
	return f.reduce()
}

func gcd(a, b uint64) uint64 {
	for b != 0 {
		a, b = b, a%b
	}
	return a
}

func (f FPS) reduce() FPS {
	if f.Num == 0 || f.Den == 0 {
		return f
	}
	if g := gcd(f.Num, f.Den); g > 1 {
		f.Num /= g
		f.Den /= g
	}
	return f
}

// Float64 returns the rate as frames per second.
func (f FPS) Float64() float64 {
	if f.Den == 0 {
		return 0
	}
	return float64(f.Num) / float64(f.Den)
}

// Period computes the base inter-frame duration along with the periodic
// correction needed to make the long-run average rate exactly equal to f:
// every remPeriod frames, an extra rem nanoseconds should be added on top
// of period, so that over any window of N frames with N a multiple of
// remPeriod, total elapsed time is exactly N*period + (N/remPeriod)*rem.
//
// remPeriod is 0 if period already divides evenly (no correction needed).
func (f FPS) Period() (period time.Duration, remPeriod uint64, rem time.Duration) {
	if f.Num == 0 {
		return 0, 0, 0
	}
	r := f.reduce()

	const nsPerSec = uint64(time.Second)
	totalNs := nsPerSec * r.Den // exact ns elapsed over r.Num frames
	periodNs := totalNs / r.Num
	shortfall := totalNs - periodNs*r.Num

	period = time.Duration(periodNs)
	if shortfall == 0 {
		return period, 0, 0
	}
	return period, r.Num, time.Duration(shortfall)
}

// vim: foldmethod=marker
