package session

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"sync"

	"golang.org/x/sync/errgroup"

	"psycho-client/internal/progress"
	"psycho-client/internal/result"
	"psycho-client/internal/shared/telemetry"
	"psycho-client/internal/transport"
)

// Inputs are the two spreadsheet payloads of one submission.
type Inputs struct {
	ScoresName string
	Scores     io.Reader
	ItemsName  string
	Items      io.Reader
}

// Controller submits analysis requests and tracks the resulting sessions.
// Each Submit produces an independent Handle; the most recent one backs
// CurrentState.
type Controller struct {
	baseURL string
	client  *http.Client

	mu      sync.Mutex
	current *Handle
}

// NewController builds a controller for the service at baseURL, after the
// transport policy has been applied. A nil client falls back to
// http.DefaultClient.
func NewController(baseURL string, policy transport.Policy, client *http.Client) *Controller {
	if policy != nil {
		baseURL = policy.Apply(baseURL)
	}
	if client == nil {
		client = http.DefaultClient
	}
	return &Controller{baseURL: baseURL, client: client}
}

// CurrentState returns the snapshot of the most recent session, or an Idle
// session when nothing has been submitted yet.
func (c *Controller) CurrentState() Session {
	c.mu.Lock()
	h := c.current
	c.mu.Unlock()
	if h == nil {
		return Session{State: Idle}
	}
	return h.Current()
}

// Submit starts a new analysis attempt. The progress subscription is opened
// concurrently with the upload so no terminal result can be missed; events
// emitted before the subscription is live are tolerated because only the
// latest event matters. Repeat calls while another session is running are
// permitted and do not disturb the earlier session.
func (c *Controller) Submit(ctx context.Context, in Inputs) *Handle {
	ctx, cancel := context.WithCancel(ctx)
	h := &Handle{
		session: Session{ID: NewSessionID(), State: Submitting},
		cancel:  cancel,
		done:    make(chan struct{}),
	}
	h.channel = progress.NewChannel(c.baseURL, c.client)
	h.channel.OnUpdate(h.applyProgress)
	h.channel.OnError(h.applyStreamError)

	c.mu.Lock()
	c.current = h
	c.mu.Unlock()

	g := new(errgroup.Group)
	g.Go(func() error {
		// A dead progress stream only costs intermediate updates; the
		// terminal result still arrives on the submission response.
		if err := h.channel.Open(ctx, h.session.ID); err != nil {
			telemetry.Warn("session.progress_unavailable", map[string]any{
				"session_id": h.session.ID,
				"err":        err.Error(),
			})
		}
		return nil
	})
	g.Go(func() error {
		h.applyOutcome(c.post(ctx, h.session.ID, in))
		return nil
	})
	go func() {
		_ = g.Wait()
		h.channel.Close()
		close(h.done)
	}()

	return h
}

// post performs the submission exchange and reduces the response to a
// terminal outcome. The response is authoritative: it supersedes whatever
// the progress stream last reported.
func (c *Controller) post(ctx context.Context, sessionID string, in Inputs) outcome {
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	if err := writeFilePart(w, "scores_file", in.ScoresName, in.Scores); err != nil {
		return outcome{errMsg: "prepare scores upload: " + err.Error()}
	}
	if err := writeFilePart(w, "items_file", in.ItemsName, in.Items); err != nil {
		return outcome{errMsg: "prepare items upload: " + err.Error()}
	}
	if err := w.WriteField("session_id", sessionID); err != nil {
		return outcome{errMsg: "prepare upload: " + err.Error()}
	}
	if err := w.Close(); err != nil {
		return outcome{errMsg: "prepare upload: " + err.Error()}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/analyze/", &body)
	if err != nil {
		return outcome{errMsg: "prepare upload: " + err.Error()}
	}
	req.Header.Set("Content-Type", w.FormDataContentType())

	resp, err := c.client.Do(req)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return outcome{errMsg: "submission cancelled"}
		}
		return outcome{errMsg: "analysis service unreachable: " + err.Error()}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return outcome{errMsg: "read analysis response: " + err.Error()}
	}

	if msg, failed := classifyFailure(resp.StatusCode, resp.Status, raw); failed {
		return outcome{errMsg: msg}
	}

	res, err := result.Decode(raw)
	if err != nil {
		return outcome{errMsg: "server returned an unreadable result: " + err.Error()}
	}

	var warnings []string
	for _, problem := range res.Validate() {
		warnings = append(warnings, problem.Error())
	}
	return outcome{result: &res, warnings: warnings}
}

func writeFilePart(w *multipart.Writer, field, name string, r io.Reader) error {
	if r == nil {
		return fmt.Errorf("missing %s payload", field)
	}
	if name == "" {
		name = field
	}
	part, err := w.CreateFormFile(field, name)
	if err != nil {
		return err
	}
	_, err = io.Copy(part, r)
	return err
}

type outcome struct {
	result   *result.AnalysisResult
	warnings []string
	errMsg   string
}
