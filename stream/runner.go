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

package stream

import (
	"fmt"

	pipeline "glcstream.dev/pipeline"
)

// frameJob is the per-message state a Scaler-backed Runner stashes in
// CallbackState.ThreadPtr between its Read and Write callbacks for one
// VideoFrame message: pixels points into the input handle's payload, which
// stays valid until the Runner closes it after the paired Write callback
// returns.
type frameJob struct {
	id     pipeline.StreamID
	time   uint64
	size   int
	pixels []byte
}

// NewScalerRunnerConfig builds the pipeline.RunnerConfig for the scale
// stage's worker pool: every VideoFormat/VideoFrame message read from in is
// run through scaler and written to out; every other message kind (Color,
// AudioFormat, AudioData, and anything future) is mirrored through
// unchanged, since the scaler has no opinion about them. Pass the result to
// pipeline.NewRunner to start the workers.
func NewScalerRunnerConfig(threads int, in, out *pipeline.PacketBuffer, scaler *Scaler) pipeline.RunnerConfig {
	formatBodies := pipeline.NewBufferPool(pipeline.VideoFormatWireSize)

	return pipeline.RunnerConfig{
		Threads: threads,
		Input:   in,
		Output:  out,
		Read:    scalerReadCallback(scaler),
		Write:   scalerWriteCallback(scaler, formatBodies),
	}
}

func scalerReadCallback(scaler *Scaler) pipeline.ReadCallback {
	return func(state *pipeline.CallbackState, rh *pipeline.ReadHandle) error {
		switch state.Header.Type {
		case pipeline.MsgVideoFormat:
			in, err := pipeline.DecodeVideoFormat(rh.Payload())
			if err != nil {
				return fmt.Errorf("pipeline/stream: scale runner: %w", err)
			}
			out, err := scaler.ConfigureFormat(in.ID, in)
			if err != nil {
				return fmt.Errorf("pipeline/stream: scale runner: %w", err)
			}
			state.ThreadPtr = out
			state.WriteSize = pipeline.MsgHeaderSize + pipeline.VideoFormatWireSize
			return nil

		case pipeline.MsgVideoFrame:
			vf, err := pipeline.DecodeVideoFrame(rh.Payload())
			if err != nil {
				return fmt.Errorf("pipeline/stream: scale runner: %w", err)
			}
			size, ok := scaler.OutputFrameSize(vf.ID)
			if !ok {
				state.Copy = true // pass-through stream, forward verbatim
				return nil
			}
			state.ThreadPtr = frameJob{
				id:     vf.ID,
				time:   vf.Time,
				size:   size,
				pixels: rh.Payload()[pipeline.VideoFrameHeaderWireSize:],
			}
			state.WriteSize = pipeline.MsgHeaderSize + pipeline.VideoFrameHeaderWireSize + size
			return nil

		default:
			state.Copy = true
			return nil
		}
	}
}

func scalerWriteCallback(scaler *Scaler, formatBodies *pipeline.BufferPool) pipeline.WriteCallback {
	return func(state *pipeline.CallbackState, wh *pipeline.WriteHandle) error {
		var header [pipeline.MsgHeaderSize]byte
		if err := (pipeline.MsgHeader{Type: state.Header.Type}).Encode(header[:]); err != nil {
			return err
		}
		if _, err := wh.Write(header[:]); err != nil {
			return err
		}

		switch v := state.ThreadPtr.(type) {
		case pipeline.VideoFormat:
			body := formatBodies.Get()
			defer formatBodies.Put(body)
			if err := v.Encode(body); err != nil {
				return err
			}
			_, err := wh.Write(body)
			return err

		case frameJob:
			var frameHeader [pipeline.VideoFrameHeaderWireSize]byte
			if err := (pipeline.VideoFrame{ID: v.id, Time: v.time}).Encode(frameHeader[:]); err != nil {
				return err
			}
			if _, err := wh.Write(frameHeader[:]); err != nil {
				return err
			}
			dst, err := wh.DMA(v.size, pipeline.AcceptFakeDMA)
			if err != nil {
				return err
			}
			return scaler.Scale(v.id, v.pixels, dst)

		default:
			return fmt.Errorf("pipeline/stream: scale runner: unexpected thread state %T: %w", state.ThreadPtr, pipeline.ErrInvalidArgument)
		}
	}
}

// vim: foldmethod=marker
