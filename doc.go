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

// Package pipeline contains the in-process streaming core of a screen and
// audio recorder: a typed message model, a packet buffer that carries those
// messages between asynchronous producer and consumer stages, a worker pool
// runner that hosts stage logic, and a state tracker that lets late-joining
// consumers reconstruct stream format and color state.
//
// The two processing stages that use these primitives in interesting ways,
// the frame capture sampler and the parallel scale stage, live in the
// glcstream.dev/pipeline/capture and glcstream.dev/pipeline/stream
// subpackages, respectively.
//
// This package does not interpret pixels or audio samples; it moves typed,
// length-prefixed byte payloads between goroutines with commit ordering and
// backpressure semantics modeled on a single-writer ring buffer.
package pipeline

// vim: foldmethod=marker
