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
	"log"
)

// Logger is the level-filtered sink Section 6 specifies for stage
// diagnostics. It's Printf-shaped and minimal so a host embedding this
// pipeline can route lines into its own logging framework without this
// package taking on a dependency on one.
type Logger interface {
	// Infof logs a routine, non-fatal event: a dropped frame, a retried
	// open.
	Infof(format string, args ...interface{})

	// Errorf logs a fatal stage error, the kind that triggers the global
	// error path.
	Errorf(format string, args ...interface{})
}

// stdLogger adapts the standard library's log package to Logger.
type stdLogger struct {
	*log.Logger
}

// NewStdLogger returns a Logger backed by the standard library's default
// logger, prefixing each line with its level.
func NewStdLogger() Logger {
	return &stdLogger{Logger: log.Default()}
}

func (l *stdLogger) Infof(format string, args ...interface{}) {
	l.Printf("INFO: "+format, args...)
}

func (l *stdLogger) Errorf(format string, args ...interface{}) {
	l.Printf("ERROR: "+format, args...)
}

// vim: foldmethod=marker
