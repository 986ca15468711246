// Copyright 2015 The Vanadium Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package stream implements component C6: lazy, filtered sequences of
// revisions built on top of a tree.Cursor, with pause/resume/cancel
// control (spec.md section 4.6). The Advance/Err/Cancel shape is
// grounded on the teacher's server/watchable/stream.go, extended here
// with a pause gate since the teacher's streams run to completion
// without operator-driven backpressure.
package stream

import (
	"sync"

	"github.com/mastersync/perspectivedb/stream/selector"
	"github.com/mastersync/perspectivedb/tree"
)

// Predicate reports whether a revision should be emitted.
type Predicate func(tree.Revision) bool

// Document projects a revision into the flat map a Selector matches
// against: the body's attributes at the top level, plus an `_id` map
// exposing the revision's version under `_v` (spec.md section 4.6,
// scenario S5).
func Document(rev tree.Revision) map[string]interface{} {
	doc := make(map[string]interface{}, len(rev.Body)+1)
	for k, v := range rev.Body {
		doc[k] = v
	}
	doc["_id"] = map[string]interface{}{"_v": rev.Header.V}
	return doc
}

// Select returns a Stream that only emits revisions whose Document
// projection matches sel.
func (s *Stream) Select(sel selector.Selector) *Stream {
	return s.Filter(func(rev tree.Revision) bool {
		return selector.Match(Document(rev), sel)
	})
}

// Stream is a pull-based sequence of revisions. It is not safe for
// concurrent use by multiple goroutines calling Advance, matching the
// teacher's single-consumer streams; Pause/Resume/Cancel may be called
// from another goroutine.
type Stream struct {
	mu       sync.Mutex
	cur      *tree.Cursor
	filter   Predicate
	err      error
	hasValue bool
	rev      tree.Revision
	canceled bool

	paused   bool
	resumeCh chan struct{}
}

// FromCursor wraps a tree.Cursor as a Stream with no filtering.
func FromCursor(cur *tree.Cursor) *Stream {
	return &Stream{cur: cur, resumeCh: make(chan struct{})}
}

// Filter returns a Stream that only emits revisions for which pred
// returns true. Multiple Filter calls compose (logical AND).
func (s *Stream) Filter(pred Predicate) *Stream {
	if s.filter == nil {
		s.filter = pred
	} else {
		prev := s.filter
		s.filter = func(r tree.Revision) bool { return prev(r) && pred(r) }
	}
	return s
}

// Advance blocks (if paused) and then positions the stream at the next
// revision matching its filter, reporting whether one is available. It
// returns false at end of input, on error, or after Cancel.
func (s *Stream) Advance() bool {
	for {
		s.mu.Lock()
		if s.canceled {
			s.mu.Unlock()
			return false
		}
		if s.paused {
			ch := s.resumeCh
			s.mu.Unlock()
			<-ch
			continue
		}
		s.hasValue = false
		if s.err != nil {
			s.mu.Unlock()
			return false
		}
		if !s.cur.Next() {
			s.err = s.cur.Err()
			s.mu.Unlock()
			return false
		}
		rev, err := s.cur.Revision()
		if err != nil {
			s.err = err
			s.mu.Unlock()
			return false
		}
		s.mu.Unlock()

		if s.filter != nil && !s.filter(rev) {
			continue
		}

		s.mu.Lock()
		s.rev = rev
		s.hasValue = true
		s.mu.Unlock()
		return true
	}
}

// Revision returns the revision staged by the most recent successful
// Advance. It panics if no value is staged, matching the teacher's
// Key/Value contract.
func (s *Stream) Revision() tree.Revision {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.hasValue {
		panic("stream: nothing staged")
	}
	return s.rev
}

// Err returns the first error encountered, if any.
func (s *Stream) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Cancel stops the stream and releases its underlying cursor. Safe to
// call more than once, and safe to call while another goroutine is
// blocked in Advance (e.g. because the stream is paused).
func (s *Stream) Cancel() {
	s.mu.Lock()
	if s.canceled {
		s.mu.Unlock()
		return
	}
	s.canceled = true
	wasPaused := s.paused
	ch := s.resumeCh
	s.mu.Unlock()

	if wasPaused {
		close(ch)
	}
	s.cur.Close()
}

// Pause suspends the stream: the next Advance call (whether already in
// flight or issued later) blocks until Resume. Pausing an
// already-paused or canceled stream is a no-op.
func (s *Stream) Pause() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.paused || s.canceled {
		return
	}
	s.paused = true
	s.resumeCh = make(chan struct{})
}

// Resume releases a paused stream. Resuming a stream that is not
// paused is a no-op.
func (s *Stream) Resume() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.paused {
		return
	}
	s.paused = false
	close(s.resumeCh)
}

// ConcatStream emits every revision of its member streams in order,
// stopping at the first error. A concatenation has no cursor of its
// own, so it does not embed Stream; it satisfies the same Advance/
// Revision/Err/Cancel shape instead.
type ConcatStream struct {
	mu       sync.Mutex
	members  []*Stream
	idx      int
	err      error
	hasValue bool
	rev      tree.Revision
	canceled bool
}

// NewConcat builds the concatenation of streams in order.
func NewConcat(streams ...*Stream) *ConcatStream {
	return &ConcatStream{members: streams}
}

func (c *ConcatStream) Advance() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.canceled || c.err != nil {
		return false
	}
	for c.idx < len(c.members) {
		cur := c.members[c.idx]
		if cur.Advance() {
			c.rev = cur.Revision()
			c.hasValue = true
			return true
		}
		if err := cur.Err(); err != nil {
			c.err = err
			return false
		}
		c.idx++
	}
	return false
}

func (c *ConcatStream) Revision() tree.Revision {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.hasValue {
		panic("stream: nothing staged")
	}
	return c.rev
}

func (c *ConcatStream) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

func (c *ConcatStream) Cancel() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.canceled {
		return
	}
	c.canceled = true
	for _, m := range c.members {
		m.Cancel()
	}
}
