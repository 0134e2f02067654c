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

// The error kinds surfaced between pipeline components, per the error
// handling design: each is a package-level sentinel so callers can use
// errors.Is against it even once a component has wrapped it with context.
var (
	// ErrAlreadyRunning is returned by a configuration setter when applying
	// it would race with an in-flight operation (e.g. toggling asynchronous
	// transfer on a Capturer that is currently capturing).
	ErrAlreadyRunning error = fmt.Errorf("pipeline: already running")

	// ErrNotReady is returned when an operation is attempted before the
	// component has finished initializing.
	ErrNotReady error = fmt.Errorf("pipeline: not ready")

	// ErrNotSupported is returned when a requested format, source, or
	// feature isn't implemented by this component.
	ErrNotSupported error = fmt.Errorf("pipeline: not supported")

	// ErrInvalidArgument is returned when a caller-supplied value is out of
	// range or otherwise nonsensical.
	ErrInvalidArgument error = fmt.Errorf("pipeline: invalid argument")

	// ErrBusy is returned by a non-blocking open/setsize when the operation
	// would otherwise block.
	ErrBusy error = fmt.Errorf("pipeline: buffer busy")

	// ErrNoSpace is returned when a write's declared size exceeds the
	// buffer's total capacity; no amount of waiting will make room.
	ErrNoSpace error = fmt.Errorf("pipeline: no space for write")

	// ErrCancelled is the error a buffer's operations return once
	// CancelBuffer has been called (CancelBufferWithError substitutes its
	// own error), and what Write and DMA return on a write handle that has
	// already been closed or cancelled.
	ErrCancelled error = fmt.Errorf("pipeline: buffer cancelled")

	// ErrIO is a catch-all for errors surfaced by an external collaborator
	// (the rendering-surface provider, the audio hook) that don't map to one
	// of the kinds above.
	ErrIO error = fmt.Errorf("pipeline: io error")
)

// ErrSampleFormatMismatch reports that two streams or buffers that must
// share a format disagree. None of this module's own components return it.
var ErrSampleFormatMismatch error = fmt.Errorf("pipeline: format mismatch")

// vim: foldmethod=marker
