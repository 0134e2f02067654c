// {{{ Copyright (c) Paul R. Tagliamonte <paul@k3xec.com>, 2020-2022
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
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"
)

// CallbackState is handed to a Runner's ReadCallback and, if the message is
// forwarded, its matching WriteCallback. Fields set during the read phase
// are visible during the write phase, which is how a stage pins per-message
// state (the spec's "threadptr" slot) across the two calls without a side
// channel.
type CallbackState struct {
	// Header is the decoded MsgHeader of the message just read.
	Header MsgHeader

	// Copy, when set by ReadCallback, tells the Runner to mirror the input
	// message's bytes verbatim to the output buffer; WriteCallback is not
	// invoked in that case.
	Copy bool

	// WriteSize is the payload size the Runner should reserve on the output
	// buffer before invoking WriteCallback. Ignored if Copy is set, or if
	// the Runner has no output buffer configured.
	WriteSize int

	// ThreadPtr is opaque per-message state a ReadCallback can stash for its
	// paired WriteCallback to pick back up (e.g. a decoded frame still
	// being transformed). The Runner never reads or writes it itself.
	ThreadPtr interface{}
}

// ReadCallback processes one message read from the input buffer. It may
// drop the message (by leaving Copy false and WriteSize at 0, with no
// output buffer configured, or by simply doing nothing), mirror it (Copy),
// or request a freshly sized output reservation (WriteSize) that
// WriteCallback will fill in.
type ReadCallback func(state *CallbackState, rh *ReadHandle) error

// WriteCallback fills a write reservation already sized to state.WriteSize.
type WriteCallback func(state *CallbackState, wh *WriteHandle) error

// FinishCallback is invoked exactly once per worker goroutine when that
// worker stops, whether from input cancellation (err == nil) or a callback
// error (err != nil).
type FinishCallback func(worker int, err error)

// RunnerConfig configures a pool of worker goroutines that pull messages off
// one input PacketBuffer, run them through a pair of user callbacks, and
// optionally forward a result to an output PacketBuffer.
type RunnerConfig struct {
	// Threads is the number of worker goroutines to run concurrently.
	Threads int

	// Input is the buffer workers read from. Required.
	Input *PacketBuffer

	// Output is the buffer workers write to, if this stage has a
	// downstream. May be nil for a terminal (sink) stage.
	Output *PacketBuffer

	// Read is invoked for every message pulled from Input. May be nil, in
	// which case every message is dropped, which is only useful for a sink
	// that just wants to drain Input.
	Read ReadCallback

	// Write is invoked when a ReadCallback requested a non-Copy forward.
	// Required if any ReadCallback call sets WriteSize > 0 and Copy is
	// false.
	Write WriteCallback

	// Finish is invoked once per worker on exit. May be nil.
	Finish FinishCallback

	// Cancellation, if set, is registered with both Input and Output at
	// Start, and is told to Cancel whenever a worker exits on a fatal
	// (non-ErrCancelled) error — tearing down every other stage sharing
	// the same Cancellation, not just this Runner's own buffers.
	Cancellation *Cancellation
}

// Runner is the thread pool described in Section 4.B: a fixed number of
// worker goroutines, each running the same read/transform/write loop
// independently, so that throughput scales with Threads as long as the
// stage's work is parallelizable per message.
type Runner struct {
	cfg   RunnerConfig
	group *errgroup.Group
}

// NewRunner builds a Runner from cfg but does not start any goroutines; call
// Start to do that.
func NewRunner(cfg RunnerConfig) *Runner {
	return &Runner{cfg: cfg}
}

// Start launches cfg.Threads worker goroutines. Calling Start twice on the
// same Runner is a programming error; use a fresh Runner per run.
func (r *Runner) Start() {
	if r.cfg.Cancellation != nil {
		r.cfg.Cancellation.Register(r.cfg.Input)
		r.cfg.Cancellation.Register(r.cfg.Output)
	}

	group := &errgroup.Group{}
	r.group = group
	for i := 0; i < r.cfg.Threads; i++ {
		worker := i
		group.Go(func() error {
			return r.runWorker(worker)
		})
	}
}

// Wait blocks until every worker has exited, returning the first non-nil
// error any of them returned (cancellation of Input is not an error).
func (r *Runner) Wait() error {
	if r.group == nil {
		return nil
	}
	return r.group.Wait()
}

// Stop cancels the input buffer, which unblocks every worker currently
// waiting in Open(OpenRead), then waits for them to drain.
func (r *Runner) Stop() error {
	r.cfg.Input.CancelBuffer()
	return r.Wait()
}

func (r *Runner) runWorker(worker int) (err error) {
	defer func() {
		if err != nil && r.cfg.Cancellation != nil {
			r.cfg.Cancellation.Cancel(err)
		}
		if r.cfg.Finish != nil {
			r.cfg.Finish(worker, err)
		}
	}()

	for {
		handle, openErr := r.cfg.Input.Open(OpenRead)
		if openErr != nil {
			if errors.Is(openErr, ErrCancelled) {
				return nil
			}
			return fmt.Errorf("pipeline: runner worker %d: %w", worker, openErr)
		}
		rh := handle.(*ReadHandle)

		if werr := r.processOne(worker, rh); werr != nil {
			return werr
		}
	}
}

// processOne runs a single message through the read/write callbacks. It
// always closes rh exactly once before returning, on every path.
func (r *Runner) processOne(worker int, rh *ReadHandle) error {
	header, err := rh.Header()
	if err != nil {
		rh.Close()
		return fmt.Errorf("pipeline: runner worker %d: %w", worker, err)
	}

	state := &CallbackState{Header: header}
	if r.cfg.Read != nil {
		if err := r.cfg.Read(state, rh); err != nil {
			rh.Close()
			return fmt.Errorf("pipeline: runner worker %d read callback: %w", worker, err)
		}
	}

	if r.cfg.Output == nil {
		return rh.Close()
	}

	var size int
	if state.Copy {
		size = len(rh.Bytes())
	} else if state.WriteSize > 0 {
		size = state.WriteSize
	} else {
		return rh.Close()
	}

	wHandle, err := r.cfg.Output.Open(OpenWrite)
	if err != nil {
		rh.Close()
		return fmt.Errorf("pipeline: runner worker %d output open: %w", worker, err)
	}
	wh := wHandle.(*WriteHandle)

	if err := wh.SetSize(size); err != nil {
		wh.Cancel()
		rh.Close()
		return fmt.Errorf("pipeline: runner worker %d output setsize: %w", worker, err)
	}

	if state.Copy {
		if _, err := wh.Write(rh.Bytes()); err != nil {
			wh.Cancel()
			rh.Close()
			return fmt.Errorf("pipeline: runner worker %d copy write: %w", worker, err)
		}
	} else if r.cfg.Write != nil {
		if err := r.cfg.Write(state, wh); err != nil {
			wh.Cancel()
			rh.Close()
			return fmt.Errorf("pipeline: runner worker %d write callback: %w", worker, err)
		}
	}

	if err := wh.Close(); err != nil {
		rh.Close()
		return fmt.Errorf("pipeline: runner worker %d output close: %w", worker, err)
	}
	return rh.Close()
}

// vim: foldmethod=marker
