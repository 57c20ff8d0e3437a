// Package progress subscribes to the per-session event stream of the
// analysis service and decodes its heterogeneous payloads into canonical
// progress events.
package progress

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// Event is the canonical progress record for one session. Only the latest
// event per session is retained by consumers.
type Event struct {
	SessionID string
	Stage     string
	Label     string
	Message   string
	Percent   float64
	Timestamp float64
}

// Same reports whether two events are indistinguishable to a consumer.
// Timestamps are ignored so that re-delivered events compare equal.
func (e Event) Same(other Event) bool {
	return e.SessionID == other.SessionID &&
		e.Stage == other.Stage &&
		e.Label == other.Label &&
		e.Message == other.Message &&
		e.Percent == other.Percent
}

// Terminal reports whether the event names a terminal stage.
func (e Event) Terminal() bool {
	return e.Stage == StageComplete || e.Stage == StageError
}

// DecodeError records a payload that failed both tolerated wire grammars.
// It is always non-fatal: callers log it and drop the event.
type DecodeError struct {
	Raw        string
	Strict     error
	Permissive error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("undecodable progress payload %q: %v (permissive: %v)", e.Raw, e.Strict, e.Permissive)
}

// wireEvent mirrors the service's update payload. The service names fields
// after its internal agents: agent is the stage id, name the display label,
// status the detail text and progress the percentage.
type wireEvent struct {
	SessionID string      `json:"session_id"`
	Agent     string      `json:"agent"`
	Name      string      `json:"name"`
	Status    string      `json:"status"`
	Progress  json.Number `json:"progress"`
	Timestamp float64     `json:"timestamp"`
}

// Decode parses a raw update payload. Strict JSON is tried first; on failure
// the payload is re-tried through a bounded compatibility shim for the
// service's legacy dict-literal grammar (single-quoted strings, True/False/
// None spellings). Failure of both attempts yields a *DecodeError.
func Decode(raw []byte) (Event, error) {
	ev, strictErr := decodeJSON(raw)
	if strictErr == nil {
		return ev, nil
	}
	ev, permissiveErr := decodeJSON(permissiveToJSON(raw))
	if permissiveErr == nil {
		return ev, nil
	}
	return Event{}, &DecodeError{
		Raw:        truncate(string(raw), 200),
		Strict:     strictErr,
		Permissive: permissiveErr,
	}
}

func decodeJSON(raw []byte) (Event, error) {
	var wire wireEvent
	dec := json.NewDecoder(bytes.NewReader(raw))
	if err := dec.Decode(&wire); err != nil {
		return Event{}, err
	}

	percent := 0.0
	if wire.Progress != "" {
		v, err := wire.Progress.Float64()
		if err != nil {
			return Event{}, fmt.Errorf("progress field: %w", err)
		}
		percent = v
	}

	return Event{
		SessionID: wire.SessionID,
		Stage:     wire.Agent,
		Label:     wire.Name,
		Message:   wire.Status,
		Percent:   percent,
		Timestamp: wire.Timestamp,
	}, nil
}

// permissiveToJSON rewrites the legacy dict-literal grammar into JSON. It is
// a best-effort textual substitution, not a parser; anything it cannot
// rescue fails the second decode attempt and is dropped by the caller.
var permissiveReplacer = strings.NewReplacer(
	"'", `"`,
	"True", "true",
	"False", "false",
	"None", "null",
)

func permissiveToJSON(raw []byte) []byte {
	return []byte(permissiveReplacer.Replace(string(raw)))
}

func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	return s[:limit] + "..."
}
