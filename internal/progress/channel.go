package progress

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"net/http"
	"sync"

	"github.com/gin-contrib/sse"

	"psycho-client/internal/shared/telemetry"
)

// State is the observable lifecycle state of a Channel.
type State int

const (
	StateIdle State = iota
	StateOpen
	StateErrored
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateOpen:
		return "open"
	case StateErrored:
		return "errored"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// TransportError wraps a network or protocol failure on the event stream.
// Channel errors never propagate into the caller's control flow; they are
// surfaced through State, Err and the OnError callback only.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("progress stream %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// Channel is a subscription to one session's server-push event stream.
// A Channel is single-use: Open may be called once.
type Channel struct {
	baseURL string
	client  *http.Client

	mu       sync.Mutex
	state    State
	err      error
	onUpdate func(Event)
	onError  func(error)
	last     Event
	hasLast  bool
	cancel   context.CancelFunc
	done     chan struct{}
}

// NewChannel constructs an unopened channel against the service base URL.
// A nil client falls back to http.DefaultClient.
func NewChannel(baseURL string, client *http.Client) *Channel {
	if client == nil {
		client = http.DefaultClient
	}
	return &Channel{
		baseURL: baseURL,
		client:  client,
		done:    make(chan struct{}),
	}
}

// OnUpdate registers the callback invoked for each decoded progress event.
// It must be set before Open.
func (c *Channel) OnUpdate(fn func(Event)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onUpdate = fn
}

// OnError registers the callback invoked when the stream transitions to
// StateErrored. The channel never retries on its own; reopening is the
// owner's decision.
func (c *Channel) OnError(fn func(error)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onError = fn
}

// State returns the current subscription state.
func (c *Channel) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Err returns the transport error that moved the channel to StateErrored.
func (c *Channel) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

// Latest returns the most recent event and whether one has arrived.
func (c *Channel) Latest() (Event, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.last, c.hasLast
}

// Done is closed once the stream has terminated for any reason.
func (c *Channel) Done() <-chan struct{} {
	return c.done
}

// Open establishes the subscription for sessionID and starts dispatching
// events. It returns once the stream is connected or has failed to connect.
func (c *Channel) Open(ctx context.Context, sessionID string) error {
	c.mu.Lock()
	if c.state != StateIdle {
		state := c.state
		c.mu.Unlock()
		return fmt.Errorf("progress channel already %s", state)
	}
	streamCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.mu.Unlock()

	url := c.baseURL + "/events/" + sessionID
	req, err := http.NewRequestWithContext(streamCtx, http.MethodGet, url, nil)
	if err != nil {
		cancel()
		return c.fail(&TransportError{Op: "request", Err: err})
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := c.client.Do(req)
	if err != nil {
		cancel()
		return c.fail(&TransportError{Op: "connect", Err: err})
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		cancel()
		return c.fail(&TransportError{Op: "connect", Err: fmt.Errorf("unexpected status %s", resp.Status)})
	}

	c.mu.Lock()
	if c.state == StateClosed {
		// Closed while connecting.
		c.mu.Unlock()
		resp.Body.Close()
		cancel()
		return nil
	}
	c.state = StateOpen
	c.mu.Unlock()

	go c.read(resp)
	return nil
}

// Close tears the subscription down. It is idempotent, callable from any
// state, and guarantees no callback fires afterwards.
func (c *Channel) Close() {
	c.mu.Lock()
	if c.state == StateClosed {
		c.mu.Unlock()
		return
	}
	wasIdle := c.state == StateIdle
	alreadyDone := c.state == StateErrored
	c.state = StateClosed
	cancel := c.cancel
	c.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if wasIdle || alreadyDone {
		c.finish()
	}
}

func (c *Channel) read(resp *http.Response) {
	defer resp.Body.Close()
	defer c.finish()

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)

	var block bytes.Buffer
	for scanner.Scan() {
		line := scanner.Text()
		if line != "" {
			block.WriteString(line)
			block.WriteByte('\n')
			continue
		}
		if block.Len() > 0 {
			c.dispatchBlock(block.Bytes())
			block.Reset()
		}
	}
	if block.Len() > 0 {
		c.dispatchBlock(block.Bytes())
	}

	err := scanner.Err()

	c.mu.Lock()
	if c.state == StateClosed {
		c.mu.Unlock()
		return
	}
	if err != nil {
		c.state = StateErrored
		c.err = &TransportError{Op: "read", Err: err}
	} else {
		// Server closed the stream normally.
		c.state = StateClosed
	}
	onError := c.onError
	failure := c.err
	c.mu.Unlock()

	if failure != nil && onError != nil {
		onError(failure)
	}
}

// dispatchBlock decodes one complete SSE frame and forwards update events.
func (c *Channel) dispatchBlock(block []byte) {
	events, err := sse.Decode(bytes.NewReader(block))
	if err != nil {
		telemetry.Warn("progress.frame_undecodable", map[string]any{"err": err.Error()})
		return
	}
	for _, raw := range events {
		if raw.Event != "update" {
			continue
		}
		payload, ok := eventData(raw)
		if !ok {
			continue
		}
		ev, err := Decode(payload)
		if err != nil {
			// Malformed payloads are dropped; the stream stays up.
			telemetry.Warn("progress.event_dropped", map[string]any{"err": err.Error()})
			continue
		}
		c.emit(ev)
	}
}

func (c *Channel) emit(ev Event) {
	c.mu.Lock()
	if c.state != StateOpen {
		c.mu.Unlock()
		return
	}
	if c.hasLast && ev.Same(c.last) {
		// Duplicate delivery is a no-op.
		c.mu.Unlock()
		return
	}
	c.last = ev
	c.hasLast = true
	fn := c.onUpdate
	c.mu.Unlock()

	if fn != nil {
		fn(ev)
	}
}

func (c *Channel) fail(err error) error {
	c.mu.Lock()
	if c.state == StateClosed {
		c.mu.Unlock()
		c.finish()
		return nil
	}
	c.state = StateErrored
	c.err = err
	onError := c.onError
	c.mu.Unlock()

	if onError != nil {
		onError(err)
	}
	c.finish()
	return err
}

func (c *Channel) finish() {
	c.mu.Lock()
	defer c.mu.Unlock()
	select {
	case <-c.done:
	default:
		close(c.done)
	}
}

func eventData(ev sse.Event) ([]byte, bool) {
	switch data := ev.Data.(type) {
	case string:
		return []byte(data), true
	case []byte:
		return data, true
	default:
		return nil, false
	}
}
