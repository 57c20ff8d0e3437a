package progress

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

// streamServer serves a fixed sequence of SSE frames for any session.
func streamServer(t *testing.T, frames ...string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		flusher, ok := w.(http.Flusher)
		if !ok {
			t.Fatal("response writer is not a flusher")
		}
		w.Header().Set("Content-Type", "text/event-stream")
		w.WriteHeader(http.StatusOK)
		for _, frame := range frames {
			fmt.Fprint(w, frame)
			flusher.Flush()
		}
	}))
}

func updateFrame(payload string) string {
	return "event: update\ndata: " + payload + "\n\n"
}

func collectEvents(c *Channel) <-chan Event {
	events := make(chan Event, 16)
	c.OnUpdate(func(ev Event) { events <- ev })
	return events
}

func waitDone(t *testing.T, c *Channel) {
	t.Helper()
	select {
	case <-c.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("channel did not finish in time")
	}
}

func TestChannelReceivesUpdates(t *testing.T) {
	srv := streamServer(t,
		updateFrame(`{"session_id":"s1","agent":"preprocessing","status":"Processing uploaded files...","progress":5,"timestamp":1}`),
		updateFrame(`{"session_id":"s1","agent":"complete","status":"Analysis complete!","progress":100,"timestamp":2}`),
	)
	defer srv.Close()

	c := NewChannel(srv.URL, srv.Client())
	events := collectEvents(c)

	if err := c.Open(context.Background(), "s1"); err != nil {
		t.Fatalf("Open: %v", err)
	}
	waitDone(t, c)

	first := <-events
	if first.Stage != StagePreprocess || first.Percent != 5 {
		t.Fatalf("first event: %+v", first)
	}
	second := <-events
	if second.Stage != StageComplete || second.Percent != 100 {
		t.Fatalf("second event: %+v", second)
	}
	if c.State() != StateClosed {
		t.Fatalf("state after server close: %v", c.State())
	}
	if latest, ok := c.Latest(); !ok || latest.Stage != StageComplete {
		t.Fatalf("latest: %+v ok=%v", latest, ok)
	}
}

func TestChannelDropsMalformedPayloads(t *testing.T) {
	srv := streamServer(t,
		updateFrame(`!!! not decodable !!!`),
		updateFrame(`{"session_id":"s1","agent":"complete","progress":100,"timestamp":1}`),
	)
	defer srv.Close()

	c := NewChannel(srv.URL, srv.Client())
	events := collectEvents(c)
	var streamErr error
	c.OnError(func(err error) { streamErr = err })

	if err := c.Open(context.Background(), "s1"); err != nil {
		t.Fatalf("Open: %v", err)
	}
	waitDone(t, c)

	got := <-events
	if got.Stage != StageComplete {
		t.Fatalf("expected the valid event, got %+v", got)
	}
	select {
	case ev := <-events:
		t.Fatalf("unexpected extra event: %+v", ev)
	default:
	}
	if streamErr != nil {
		t.Fatalf("a bad payload must not fail the stream: %v", streamErr)
	}
}

func TestChannelDedupsIdenticalEvents(t *testing.T) {
	// Identical except for timestamp, which dedup ignores.
	srv := streamServer(t,
		updateFrame(`{"session_id":"s1","agent":"item_analysis","status":"working","progress":80,"timestamp":1}`),
		updateFrame(`{"session_id":"s1","agent":"item_analysis","status":"working","progress":80,"timestamp":2}`),
	)
	defer srv.Close()

	c := NewChannel(srv.URL, srv.Client())
	events := collectEvents(c)

	if err := c.Open(context.Background(), "s1"); err != nil {
		t.Fatalf("Open: %v", err)
	}
	waitDone(t, c)

	<-events
	select {
	case ev := <-events:
		t.Fatalf("duplicate event delivered: %+v", ev)
	default:
	}
}

func TestChannelIgnoresOtherEventNames(t *testing.T) {
	srv := streamServer(t,
		"event: ping\ndata: {}\n\n",
		updateFrame(`{"agent":"complete","progress":100}`),
	)
	defer srv.Close()

	c := NewChannel(srv.URL, srv.Client())
	events := collectEvents(c)

	if err := c.Open(context.Background(), "s1"); err != nil {
		t.Fatalf("Open: %v", err)
	}
	waitDone(t, c)

	got := <-events
	if got.Stage != StageComplete {
		t.Fatalf("expected only the update event, got %+v", got)
	}
	select {
	case ev := <-events:
		t.Fatalf("non-update event delivered: %+v", ev)
	default:
	}
}

func TestChannelLegacyGrammarStream(t *testing.T) {
	srv := streamServer(t,
		updateFrame(`{'session_id': 's1', 'agent': 'check_bias', 'name': 'Sheet1', 'status': 'Checking for response bias...', 'progress': 70, 'timestamp': 1.0}`),
	)
	defer srv.Close()

	c := NewChannel(srv.URL, srv.Client())
	events := collectEvents(c)

	if err := c.Open(context.Background(), "s1"); err != nil {
		t.Fatalf("Open: %v", err)
	}
	waitDone(t, c)

	got := <-events
	if got.Stage != StageCheckBias || got.Percent != 70 {
		t.Fatalf("legacy event: %+v", got)
	}
}

func TestChannelConnectRejectedStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewChannel(srv.URL, srv.Client())
	var streamErr error
	c.OnError(func(err error) { streamErr = err })

	err := c.Open(context.Background(), "s1")
	if err == nil {
		t.Fatal("expected connect error")
	}
	var transportErr *TransportError
	if !errors.As(err, &transportErr) {
		t.Fatalf("expected *TransportError, got %T", err)
	}
	if c.State() != StateErrored {
		t.Fatalf("state: %v", c.State())
	}
	if streamErr == nil {
		t.Fatal("OnError not invoked")
	}
	waitDone(t, c)
}

func TestChannelConnectUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	c := NewChannel(srv.URL, nil)
	if err := c.Open(context.Background(), "s1"); err == nil {
		t.Fatal("expected connect error")
	}
	if c.State() != StateErrored {
		t.Fatalf("state: %v", c.State())
	}
}

func TestChannelCloseBeforeOpen(t *testing.T) {
	c := NewChannel("http://localhost:0", nil)
	c.Close()
	c.Close()
	if c.State() != StateClosed {
		t.Fatalf("state: %v", c.State())
	}
	waitDone(t, c)

	if err := c.Open(context.Background(), "s1"); err == nil {
		t.Fatal("Open after Close must fail")
	}
}

func TestChannelCloseStopsCallbacks(t *testing.T) {
	firstSent := make(chan struct{})
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		flusher := w.(http.Flusher)
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, updateFrame(`{"agent":"preprocessing","progress":5,"timestamp":1}`))
		flusher.Flush()
		close(firstSent)
		select {
		case <-release:
		case <-r.Context().Done():
		}
		fmt.Fprint(w, updateFrame(`{"agent":"complete","progress":100,"timestamp":2}`))
		flusher.Flush()
	}))
	defer srv.Close()
	defer close(release)

	c := NewChannel(srv.URL, srv.Client())
	events := collectEvents(c)

	if err := c.Open(context.Background(), "s1"); err != nil {
		t.Fatalf("Open: %v", err)
	}
	<-firstSent
	<-events

	c.Close()
	waitDone(t, c)

	select {
	case ev := <-events:
		t.Fatalf("callback after Close: %+v", ev)
	case <-time.After(100 * time.Millisecond):
	}
	if c.State() != StateClosed {
		t.Fatalf("state: %v", c.State())
	}
}
