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
	"time"
)

// Clock is the external collaborator that supplies a monotonic nanosecond
// timestamp (Section 6: "Clock: monotonic_ns()"). It's an interface rather
// than a bare function so tests can substitute a fake clock that advances
// deterministically instead of sleeping.
type Clock interface {
	// NowNS returns a monotonically non-decreasing nanosecond timestamp.
	// The epoch is unspecified; only differences between calls are
	// meaningful.
	NowNS() uint64
}

type systemClock struct {
	start time.Time
}

// NewSystemClock returns a Clock backed by the Go runtime's monotonic
// clock reading (time.Since is guaranteed to use the monotonic component
// of a time.Time, per the time package docs).
func NewSystemClock() Clock {
	return &systemClock{start: time.Now()}
}

// NowNS implements Clock.
func (c *systemClock) NowNS() uint64 {
	return uint64(time.Since(c.start).Nanoseconds())
}

// FakeClock is a Clock a test can advance manually, instead of depending on
// wall-clock sleeps to exercise rate-gating logic.
type FakeClock struct {
	now uint64
}

// NewFakeClock creates a FakeClock starting at t=0.
func NewFakeClock() *FakeClock {
	return &FakeClock{}
}

// NowNS implements Clock.
func (c *FakeClock) NowNS() uint64 {
	return c.now
}

// Advance moves the fake clock forward by d.
func (c *FakeClock) Advance(d time.Duration) {
	c.now += uint64(d.Nanoseconds())
}

// Set pins the fake clock to an absolute nanosecond value.
func (c *FakeClock) Set(ns uint64) {
	c.now = ns
}

// vim: foldmethod=marker
