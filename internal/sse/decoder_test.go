package sse

import (
	"errors"
	"io"
	"strings"
	"testing"
)

// chunkedReader yields its chunks one per Read call, simulating frames
// split across network reads.
type chunkedReader struct {
	chunks []string
}

func (r *chunkedReader) Read(p []byte) (int, error) {
	if len(r.chunks) == 0 {
		return 0, io.EOF
	}
	n := copy(p, r.chunks[0])
	r.chunks[0] = r.chunks[0][n:]
	if r.chunks[0] == "" {
		r.chunks = r.chunks[1:]
	}
	return n, nil
}

func collect(t *testing.T, d *Decoder) []Event {
	t.Helper()
	var events []Event
	for {
		ev, err := d.Next()
		if err == io.EOF {
			return events
		}
		if err != nil {
			t.Fatalf("Next() error = %v", err)
		}
		events = append(events, ev)
	}
}

func TestDecoderBasicStream(t *testing.T) {
	stream := "event:conversation.message.delta\n" +
		"data:{\"type\":\"answer\",\"content\":\"He\"}\n\n" +
		"data:{\"type\":\"answer\",\"content\":\"llo\"}\n\n" +
		"data:[DONE]\n\n"

	events := collect(t, NewDecoder(strings.NewReader(stream)))
	if len(events) != 2 {
		t.Fatalf("got %d events, want 2", len(events))
	}
	if events[0].Content != "He" || events[1].Content != "llo" {
		t.Errorf("contents = %q, %q, want He, llo", events[0].Content, events[1].Content)
	}
	for i, ev := range events {
		if !ev.IsAnswerDelta() {
			t.Errorf("event %d: IsAnswerDelta() = false, want true", i)
		}
	}
}

func TestDecoderFramesSplitAcrossReads(t *testing.T) {
	r := &chunkedReader{chunks: []string{
		"data:{\"type\":\"ans",
		"wer\",\"content\":\"Hi\"}\n",
		"\ndata:{\"type\":\"answer\",\"content\":\"!\"}\n\ndata:[DO",
		"NE]\n\n",
	}}

	events := collect(t, NewDecoder(r))
	if len(events) != 2 {
		t.Fatalf("got %d events, want 2", len(events))
	}
	if events[0].Content+events[1].Content != "Hi!" {
		t.Errorf("combined content = %q, want Hi!", events[0].Content+events[1].Content)
	}
}

func TestDecoderCompletionEchoNotDelta(t *testing.T) {
	stream := "data:{\"type\":\"answer\",\"content\":\"Hello\",\"created_at\":1727000000}\n\n" +
		"data:[DONE]\n\n"

	events := collect(t, NewDecoder(strings.NewReader(stream)))
	if len(events) != 1 {
		t.Fatalf("got %d events, want 1", len(events))
	}
	if events[0].IsAnswerDelta() {
		t.Error("completion echo reported as answer delta")
	}
}

func TestDecoderFollowUp(t *testing.T) {
	stream := "data:{\"type\":\"follow_up\",\"content\":\"Tell me more\"}\n\ndata:[DONE]\n\n"

	events := collect(t, NewDecoder(strings.NewReader(stream)))
	if len(events) != 1 || events[0].Type != "follow_up" {
		t.Fatalf("events = %+v, want one follow_up", events)
	}
	if events[0].IsAnswerDelta() {
		t.Error("follow_up reported as answer delta")
	}
}

func TestDecoderFailedStatus(t *testing.T) {
	stream := "data:{\"type\":\"\",\"status\":\"failed\",\"last_error\":{\"code\":5000,\"msg\":\"boom\"}}\n\n"

	d := NewDecoder(strings.NewReader(stream))
	ev, err := d.Next()
	if err != nil {
		t.Fatalf("Next() error = %v", err)
	}
	if ev.Status != "failed" {
		t.Errorf("Status = %q, want failed", ev.Status)
	}
	if ev.LastError == nil || ev.LastError.Msg != "boom" {
		t.Errorf("LastError = %+v, want msg boom", ev.LastError)
	}
}

func TestDecoderMalformedPayload(t *testing.T) {
	stream := "data:{not json}\n\n"

	d := NewDecoder(strings.NewReader(stream))
	_, err := d.Next()
	if !errors.Is(err, ErrMalformed) {
		t.Fatalf("Next() error = %v, want ErrMalformed", err)
	}
	// The stream is dead after a malformed frame.
	if _, err := d.Next(); err != io.EOF {
		t.Errorf("Next() after malformed = %v, want io.EOF", err)
	}
}

func TestDecoderEOFAfterDone(t *testing.T) {
	d := NewDecoder(strings.NewReader("data:[DONE]\n\n"))
	if _, err := d.Next(); err != io.EOF {
		t.Fatalf("Next() = %v, want io.EOF", err)
	}
	if _, err := d.Next(); err != io.EOF {
		t.Errorf("second Next() = %v, want io.EOF", err)
	}
}

func TestDecoderSkipsNoise(t *testing.T) {
	stream := ": comment\n" +
		"event:conversation.chat.completed\n" +
		"\n" +
		"data:\n" +
		"data:{\"type\":\"answer\",\"content\":\"ok\"}\n\n" +
		"data:[DONE]\n\n"

	events := collect(t, NewDecoder(strings.NewReader(stream)))
	if len(events) != 1 || events[0].Content != "ok" {
		t.Fatalf("events = %+v, want single answer ok", events)
	}
}
