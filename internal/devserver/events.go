package devserver

import (
	"fmt"
	"strings"
	"time"

	"github.com/gin-contrib/sse"
	"github.com/gin-gonic/gin"

	"psycho-client/internal/progress"
)

// maxStreamPolls bounds how long an event stream stays open without the
// session reaching completion.
const maxStreamPolls = 300

// events is the per-session SSE endpoint. It sends the current status
// immediately, then pushes an update event whenever the session status
// changes, until the session completes or the client disconnects.
func (s *Server) events(c *gin.Context) {
	sessionID := c.Param("session_id")

	h := c.Writer.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")

	current, ok := s.status.Get(sessionID)
	if !ok {
		current = Status{
			Agent:     progress.StageInitializing,
			Message:   "Starting...",
			Timestamp: float64(time.Now().UnixNano()) / float64(time.Second),
		}
	}
	if !s.writeUpdate(c, sessionID, current) {
		return
	}

	lastSent := current.Timestamp
	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	for polls := 0; polls < maxStreamPolls; polls++ {
		select {
		case <-c.Request.Context().Done():
			return
		case <-ticker.C:
		}

		status, ok := s.status.Get(sessionID)
		if !ok {
			continue
		}
		if status.Timestamp > lastSent {
			lastSent = status.Timestamp
			if !s.writeUpdate(c, sessionID, status) {
				return
			}
		}
		if status.Progress >= 100 {
			return
		}
	}
}

func (s *Server) writeUpdate(c *gin.Context, sessionID string, status Status) bool {
	var data any
	if s.legacyGrammar {
		data = legacyPayload(sessionID, status)
	} else {
		data = gin.H{
			"session_id": sessionID,
			"agent":      status.Agent,
			"name":       status.Name,
			"status":     status.Message,
			"progress":   status.Progress,
			"timestamp":  status.Timestamp,
		}
	}
	err := sse.Encode(c.Writer, sse.Event{Event: "update", Data: data})
	if err != nil {
		return false
	}
	c.Writer.Flush()
	return true
}

// legacyPayload renders the status the way the service's early builds did:
// a dict literal with single quotes rather than JSON.
func legacyPayload(sessionID string, status Status) string {
	quote := func(s string) string {
		return "'" + strings.ReplaceAll(s, "'", "\\'") + "'"
	}
	return fmt.Sprintf("{'session_id': %s, 'agent': %s, 'name': %s, 'status': %s, 'progress': %g, 'timestamp': %f}",
		quote(sessionID), quote(status.Agent), quote(status.Name), quote(status.Message), status.Progress, status.Timestamp)
}
