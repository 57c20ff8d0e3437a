package session

import (
	"encoding/json"
	"fmt"
	"strings"
)

// failureBody covers the error shapes the service is known to produce:
// an application error object, a framework validation-error list, or a
// framework detail string.
type failureBody struct {
	Error  string          `json:"error"`
	Detail json.RawMessage `json:"detail"`
}

type validationItem struct {
	Msg string `json:"msg"`
}

// classifyFailure maps a submission response onto a display message.
// It returns ok=false when the response does not describe a failure.
// The returned message is never empty for a failure.
func classifyFailure(statusCode int, status string, raw []byte) (string, bool) {
	var body failureBody
	if err := json.Unmarshal(raw, &body); err == nil {
		if msg := strings.TrimSpace(body.Error); msg != "" {
			return msg, true
		}
		if msg := detailMessage(body.Detail); msg != "" {
			return msg, true
		}
	}
	if statusCode < 200 || statusCode > 299 {
		if status == "" {
			status = fmt.Sprintf("%d", statusCode)
		}
		return fmt.Sprintf("analysis request failed with status %s", status), true
	}
	return "", false
}

// detailMessage flattens a detail field that is either a plain string or a
// list of validation errors, each with its own msg.
func detailMessage(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var single string
	if err := json.Unmarshal(raw, &single); err == nil {
		return strings.TrimSpace(single)
	}
	var items []validationItem
	if err := json.Unmarshal(raw, &items); err == nil {
		msgs := make([]string, 0, len(items))
		for _, item := range items {
			if msg := strings.TrimSpace(item.Msg); msg != "" {
				msgs = append(msgs, msg)
			}
		}
		if len(msgs) > 0 {
			return strings.Join(msgs, "; ")
		}
	}
	return ""
}
