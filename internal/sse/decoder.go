// Package sse decodes the chat service's event-stream responses: blank-line
// framed units whose data payload is either a JSON event or the [DONE]
// sentinel that terminates the stream.
package sse

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
)

// ErrMalformed reports a data payload that failed structured parsing. The
// stream is not recoverable past a malformed frame.
var ErrMalformed = errors.New("malformed stream frame")

// Event is one decoded frame from a chat event stream.
//
// CreatedAt distinguishes an incremental answer delta (absent) from the final
// full-text echo the service emits at completion (present); consumers must
// ignore the echo or the reply text doubles.
type Event struct {
	Type      string      `json:"type"`
	Content   string      `json:"content"`
	CreatedAt int64       `json:"created_at,omitempty"`
	Status    string      `json:"status,omitempty"`
	LastError *EventError `json:"last_error,omitempty"`
}

// EventError carries the failure detail of a status event.
type EventError struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
}

// IsAnswerDelta reports whether the event is an incremental answer fragment
// that should be appended to the reply text.
func (e Event) IsAnswerDelta() bool {
	return e.Type == "answer" && e.CreatedAt == 0
}

// Decoder pulls events out of an open event-stream body. Frames may be split
// across reads or share a read; the line scanner reassembles them.
type Decoder struct {
	scanner *bufio.Scanner
	done    bool
}

// NewDecoder wraps an open response body.
func NewDecoder(r io.Reader) *Decoder {
	s := bufio.NewScanner(r)
	s.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	return &Decoder{scanner: s}
}

// Next returns the next event. It returns io.EOF once the [DONE] sentinel
// arrives (or the body ends), and ErrMalformed for a payload that is not
// valid JSON. Non-data lines (event names, comments, blank separators) are
// skipped.
func (d *Decoder) Next() (Event, error) {
	if d.done {
		return Event{}, io.EOF
	}
	for d.scanner.Scan() {
		line := strings.TrimRight(d.scanner.Text(), "\r")
		if !strings.HasPrefix(line, "data:") {
			continue
		}
		data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if data == "" {
			continue
		}
		if strings.Contains(data, "[DONE]") {
			d.done = true
			return Event{}, io.EOF
		}

		var ev Event
		if err := json.Unmarshal([]byte(data), &ev); err != nil {
			d.done = true
			return Event{}, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		return ev, nil
	}
	d.done = true
	if err := d.scanner.Err(); err != nil {
		return Event{}, err
	}
	return Event{}, io.EOF
}
