// Package session owns the lifecycle of one analysis attempt: session id
// issuance, submission of the input files, correlation with the progress
// stream, and the observable state consumers render from.
package session

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"psycho-client/internal/progress"
	"psycho-client/internal/result"
)

// State is the lifecycle state of a Session. Transitions are monotonic:
// Idle -> Submitting -> Running -> Succeeded | Failed, never backwards.
type State int

const (
	Idle State = iota
	Submitting
	Running
	Succeeded
	Failed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Submitting:
		return "submitting"
	case Running:
		return "running"
	case Succeeded:
		return "succeeded"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// Terminal reports whether the state is final.
func (s State) Terminal() bool {
	return s == Succeeded || s == Failed
}

// Session is a snapshot of one analysis attempt. Snapshots are values;
// only the controller mutates the underlying record.
type Session struct {
	ID       string
	State    State
	Progress *progress.Event
	Result   *result.AnalysisResult
	// Warnings carries data-quality problems found in an otherwise
	// successful result, such as a sheet missing a well-known section.
	Warnings []string
	// Err is set only in Failed and is never empty there.
	Err string
	// StreamStatus carries non-fatal progress stream trouble as display
	// text. It never fails the session.
	StreamStatus string
}

// NewSessionID issues a fresh correlation token for one submission attempt.
// The wall-clock prefix keeps ids sortable in server logs; the uuid suffix
// makes collisions across a client's lifetime vanishingly unlikely.
func NewSessionID() string {
	return fmt.Sprintf("%d-%s", time.Now().UnixMilli(), uuid.NewString())
}
