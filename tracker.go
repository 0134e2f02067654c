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
	"fmt"
	"sync"
)

// trackedStream holds the latest-known configuration messages for one
// StreamID. Each field is independently present or absent: a stream can
// have a VideoFormat without ever having received a Color message, and the
// tracker must not invent one.
type trackedStream struct {
	videoFormat    []byte
	hasVideoFormat bool

	color    []byte
	hasColor bool

	audioFormat    []byte
	hasAudioFormat bool
}

// Tracker is the State tracker of Section 4.C: it remembers the most recent
// configuration message per stream so that a consumer attaching after those
// messages have already gone by can be replayed an equivalent view before
// it sees the next data message.
//
// Tracker only ever stores config messages (VideoFormat, AudioFormat,
// Color); VideoFrame and AudioData are data messages and are never
// retained.
type Tracker struct {
	mu      sync.Mutex
	order   []StreamID
	streams map[StreamID]*trackedStream
}

// NewTracker creates an empty Tracker.
func NewTracker() *Tracker {
	return &Tracker{streams: make(map[StreamID]*trackedStream)}
}

func (t *Tracker) streamLocked(id StreamID) *trackedStream {
	s, ok := t.streams[id]
	if !ok {
		s = &trackedStream{}
		t.streams[id] = s
		t.order = append(t.order, id)
	}
	return s
}

// Submit records msg, a complete wire message (MsgHeader followed by its
// kind-specific payload), as the latest configuration for the stream it
// names. Submitting the same message again is a no-op in effect: the stored
// bytes for that (stream, kind) are simply overwritten with themselves.
//
// Submit copies msg, since the caller's ReadHandle backing it may be closed
// (and its bytes reused) as soon as Submit returns.
func (t *Tracker) Submit(msg []byte) error {
	header, err := DecodeMsgHeader(msg)
	if err != nil {
		return fmt.Errorf("pipeline: Tracker.Submit: %w", err)
	}

	var id StreamID
	switch header.Type {
	case MsgVideoFormat:
		vf, err := DecodeVideoFormat(msg[MsgHeaderSize:])
		if err != nil {
			return fmt.Errorf("pipeline: Tracker.Submit: %w", err)
		}
		id = vf.ID
	case MsgAudioFormat:
		af, err := DecodeAudioFormat(msg[MsgHeaderSize:])
		if err != nil {
			return fmt.Errorf("pipeline: Tracker.Submit: %w", err)
		}
		id = af.ID
	case MsgColor:
		c, err := DecodeColor(msg[MsgHeaderSize:])
		if err != nil {
			return fmt.Errorf("pipeline: Tracker.Submit: %w", err)
		}
		id = c.ID
	default:
		return fmt.Errorf("pipeline: Tracker.Submit: %s is not a configuration message: %w", header.Type, ErrInvalidArgument)
	}

	stored := append([]byte(nil), msg...)

	t.mu.Lock()
	defer t.mu.Unlock()
	s := t.streamLocked(id)
	switch header.Type {
	case MsgVideoFormat:
		s.videoFormat, s.hasVideoFormat = stored, true
	case MsgAudioFormat:
		s.audioFormat, s.hasAudioFormat = stored, true
	case MsgColor:
		s.color, s.hasColor = stored, true
	}
	return nil
}

// Replay is called by Iterate once per stored configuration message, in the
// order video format, color, audio format, for each known stream in the
// order that stream was first seen by Submit.
type Replay func(id StreamID, msg []byte) error

// Iterate replays every currently known configuration message, in a stable
// order, so a newly attached consumer can be brought up to date before the
// next data message. Iterate is idempotent: calling it twice in a row with
// no intervening Submit replays the identical sequence, since Submit is the
// only thing that mutates tracker state.
func (t *Tracker) Iterate(fn Replay) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	for _, id := range t.order {
		s := t.streams[id]
		if s.hasVideoFormat {
			if err := fn(id, s.videoFormat); err != nil {
				return err
			}
		}
		if s.hasColor {
			if err := fn(id, s.color); err != nil {
				return err
			}
		}
		if s.hasAudioFormat {
			if err := fn(id, s.audioFormat); err != nil {
				return err
			}
		}
	}
	return nil
}

// vim: foldmethod=marker
