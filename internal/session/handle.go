package session

import (
	"context"
	"sync"

	"psycho-client/internal/progress"
)

// Handle tracks one submission attempt. All updates, whether from the
// progress stream or the submission response, funnel through the handle as
// sole writer of the session record.
type Handle struct {
	channel *progress.Channel
	cancel  context.CancelFunc
	done    chan struct{}

	mu      sync.Mutex
	session Session
	subs    []func(Session)

	// notifyMu serializes snapshot delivery so subscribers observe
	// mutations in the order they were applied.
	notifyMu sync.Mutex
}

// ID returns the session id of this attempt.
func (h *Handle) ID() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.session.ID
}

// Current returns the latest session snapshot.
func (h *Handle) Current() Session {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.session
}

// Subscribe registers fn to receive every subsequent snapshot. The current
// snapshot is delivered immediately so late subscribers do not miss the
// terminal state.
func (h *Handle) Subscribe(fn func(Session)) {
	h.mu.Lock()
	h.subs = append(h.subs, fn)
	snap := h.session
	h.mu.Unlock()
	fn(snap)
}

// Done is closed once the session has reached a terminal state and its
// progress subscription is torn down.
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// Cancel aborts the in-flight submission and closes the progress stream.
// The session resolves to Failed with a cancellation message.
func (h *Handle) Cancel() {
	h.cancel()
}

// CloseProgress tears down only the progress subscription, for consumers
// that navigate away while the submission keeps running.
func (h *Handle) CloseProgress() {
	h.channel.Close()
}

// ProgressState exposes the observable state of the progress subscription.
func (h *Handle) ProgressState() progress.State {
	return h.channel.State()
}

func (h *Handle) applyProgress(ev progress.Event) {
	h.publish(func(s *Session) bool {
		if s.State.Terminal() {
			return false
		}
		if s.Progress != nil && ev.Same(*s.Progress) {
			// Re-delivery of an identical event is a no-op.
			return false
		}
		if s.State == Submitting {
			s.State = Running
		}
		s.Progress = &ev
		return true
	})
}

func (h *Handle) applyStreamError(err error) {
	h.publish(func(s *Session) bool {
		if s.State.Terminal() {
			return false
		}
		s.StreamStatus = err.Error()
		return true
	})
}

func (h *Handle) applyOutcome(out outcome) {
	h.publish(func(s *Session) bool {
		if s.State.Terminal() {
			return false
		}
		if out.errMsg != "" {
			s.State = Failed
			s.Err = out.errMsg
			return true
		}
		s.State = Succeeded
		s.Result = out.result
		s.Warnings = out.warnings
		return true
	})
}

// publish applies a mutation and, if it changed anything, fans the new
// snapshot out to subscribers. The delivery lock is held across both steps
// so concurrent publishers cannot reorder snapshots in flight; subscriber
// callbacks must not publish again from the same goroutine.
func (h *Handle) publish(mutate func(*Session) bool) {
	h.notifyMu.Lock()
	defer h.notifyMu.Unlock()

	h.mu.Lock()
	changed := mutate(&h.session)
	snap := h.session
	subs := append([]func(Session){}, h.subs...)
	h.mu.Unlock()

	if !changed {
		return
	}
	for _, fn := range subs {
		fn(snap)
	}
}
