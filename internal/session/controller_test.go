package session

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"psycho-client/internal/transport"
)

const successBody = `{"analyses":[{"sheet_name":"Sheet1","analysis":{"Psychometric Analysis":"psy","Item Analysis":"item"}}]}`

// analysisStub is a minimal stand-in for the analysis service.
type analysisStub struct {
	analyze func(w http.ResponseWriter, r *http.Request)
	events  func(w http.ResponseWriter, r *http.Request)
}

func (s *analysisStub) server(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/analyze/", func(w http.ResponseWriter, r *http.Request) {
		s.analyze(w, r)
	})
	mux.HandleFunc("/events/", func(w http.ResponseWriter, r *http.Request) {
		if s.events == nil {
			http.NotFound(w, r)
			return
		}
		s.events(w, r)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func respondJSON(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	io.WriteString(w, body)
}

func streamUpdates(payloads ...string) func(http.ResponseWriter, *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		flusher := w.(http.Flusher)
		w.Header().Set("Content-Type", "text/event-stream")
		for _, p := range payloads {
			fmt.Fprintf(w, "event: update\ndata: %s\n\n", p)
			flusher.Flush()
		}
	}
}

func testInputs() Inputs {
	return Inputs{
		ScoresName: "scores.xlsx",
		Scores:     strings.NewReader("scores bytes"),
		ItemsName:  "items.xlsx",
		Items:      strings.NewReader("items bytes"),
	}
}

func awaitDone(t *testing.T, h *Handle) Session {
	t.Helper()
	select {
	case <-h.Done():
	case <-time.After(3 * time.Second):
		t.Fatal("session did not finish in time")
	}
	return h.Current()
}

// snapshotLog records every published snapshot for later inspection.
type snapshotLog struct {
	mu    sync.Mutex
	snaps []Session
}

func (l *snapshotLog) record(s Session) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.snaps = append(l.snaps, s)
}

func (l *snapshotLog) all() []Session {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]Session(nil), l.snaps...)
}

func TestSubmitSuccessWithProgress(t *testing.T) {
	progressSent := make(chan struct{})
	stub := &analysisStub{
		analyze: func(w http.ResponseWriter, r *http.Request) {
			// Let the progress stream land first.
			select {
			case <-progressSent:
			case <-time.After(2 * time.Second):
			}
			// Give the client a beat to drain the flushed frames.
			time.Sleep(100 * time.Millisecond)
			respondJSON(w, http.StatusOK, successBody)
		},
	}
	stub.events = func(w http.ResponseWriter, r *http.Request) {
		streamUpdates(
			`{"session_id":"x","agent":"psychometric_analysis","name":"Sheet1","status":"Analyzing...","progress":20,"timestamp":1}`,
			`{"session_id":"x","agent":"item_analysis","name":"Sheet1","status":"Items...","progress":80,"timestamp":2}`,
		)(w, r)
		close(progressSent)
	}
	srv := stub.server(t)

	ctrl := NewController(srv.URL, transport.Insecure{}, srv.Client())
	h := ctrl.Submit(context.Background(), testInputs())

	log := &snapshotLog{}
	h.Subscribe(log.record)

	final := awaitDone(t, h)
	if final.State != Succeeded {
		t.Fatalf("final state %v, err %q", final.State, final.Err)
	}
	if final.Result == nil || len(final.Result.Sheets) != 1 {
		t.Fatalf("final result: %+v", final.Result)
	}
	if len(final.Warnings) != 0 {
		t.Fatalf("unexpected warnings: %v", final.Warnings)
	}

	sawRunning := false
	for _, snap := range log.all() {
		if snap.State == Running && snap.Progress != nil {
			sawRunning = true
		}
		if snap.State == Idle {
			t.Fatal("published snapshot regressed to idle")
		}
	}
	if !sawRunning {
		t.Fatal("no running snapshot with progress observed")
	}
}

func TestSubmitProgressStreamUnavailable(t *testing.T) {
	// No events endpoint at all. The submission must still succeed.
	stub := &analysisStub{
		analyze: func(w http.ResponseWriter, r *http.Request) {
			respondJSON(w, http.StatusOK, successBody)
		},
	}
	srv := stub.server(t)

	ctrl := NewController(srv.URL, nil, srv.Client())
	h := ctrl.Submit(context.Background(), testInputs())

	final := awaitDone(t, h)
	if final.State != Succeeded {
		t.Fatalf("final state %v, err %q", final.State, final.Err)
	}
}

func TestSubmitApplicationErrorWith200(t *testing.T) {
	stub := &analysisStub{
		analyze: func(w http.ResponseWriter, r *http.Request) {
			respondJSON(w, http.StatusOK, `{"error":"Invalid file format","status":"failed"}`)
		},
	}
	srv := stub.server(t)

	ctrl := NewController(srv.URL, nil, srv.Client())
	h := ctrl.Submit(context.Background(), testInputs())

	final := awaitDone(t, h)
	if final.State != Failed {
		t.Fatalf("final state %v", final.State)
	}
	if final.Err != "Invalid file format" {
		t.Fatalf("err: %q", final.Err)
	}
	if final.Result != nil {
		t.Fatal("failed session must not carry a result")
	}
}

func TestSubmitResponseOverridesProgress(t *testing.T) {
	// The stream optimistically reports completion but the response fails.
	// The response wins.
	stub := &analysisStub{
		analyze: func(w http.ResponseWriter, r *http.Request) {
			time.Sleep(100 * time.Millisecond)
			respondJSON(w, http.StatusInternalServerError, `{"detail":"worker crashed"}`)
		},
		events: streamUpdates(`{"agent":"complete","status":"Analysis complete!","progress":100,"timestamp":1}`),
	}
	srv := stub.server(t)

	ctrl := NewController(srv.URL, nil, srv.Client())
	h := ctrl.Submit(context.Background(), testInputs())

	final := awaitDone(t, h)
	if final.State != Failed || final.Err != "worker crashed" {
		t.Fatalf("final: state %v err %q", final.State, final.Err)
	}
}

func TestSubmitServiceUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()

	ctrl := NewController(srv.URL, nil, nil)
	h := ctrl.Submit(context.Background(), testInputs())

	final := awaitDone(t, h)
	if final.State != Failed {
		t.Fatalf("final state %v", final.State)
	}
	if !strings.Contains(final.Err, "analysis service unreachable") {
		t.Fatalf("err: %q", final.Err)
	}
}

func TestSubmitCancellation(t *testing.T) {
	started := make(chan struct{})
	stub := &analysisStub{
		analyze: func(w http.ResponseWriter, r *http.Request) {
			close(started)
			<-r.Context().Done()
		},
	}
	srv := stub.server(t)

	ctrl := NewController(srv.URL, nil, srv.Client())
	h := ctrl.Submit(context.Background(), testInputs())

	<-started
	h.Cancel()

	final := awaitDone(t, h)
	if final.State != Failed || final.Err != "submission cancelled" {
		t.Fatalf("final: state %v err %q", final.State, final.Err)
	}
}

func TestSubmitWarnsOnIncompleteResult(t *testing.T) {
	stub := &analysisStub{
		analyze: func(w http.ResponseWriter, r *http.Request) {
			respondJSON(w, http.StatusOK, `{"analyses":[{"sheet_name":"Sheet1","analysis":{"Psychometric Analysis":"psy"}}]}`)
		},
	}
	srv := stub.server(t)

	ctrl := NewController(srv.URL, nil, srv.Client())
	h := ctrl.Submit(context.Background(), testInputs())

	final := awaitDone(t, h)
	if final.State != Succeeded {
		t.Fatalf("final state %v, err %q", final.State, final.Err)
	}
	if len(final.Warnings) != 1 || !strings.Contains(final.Warnings[0], "Item Analysis") {
		t.Fatalf("warnings: %v", final.Warnings)
	}
}

func TestSubmitSendsMultipartForm(t *testing.T) {
	var gotScores, gotItems, gotSession string
	stub := &analysisStub{
		analyze: func(w http.ResponseWriter, r *http.Request) {
			if err := r.ParseMultipartForm(16 << 20); err != nil {
				t.Errorf("parse multipart: %v", err)
			}
			if _, hdr, err := r.FormFile("scores_file"); err == nil {
				gotScores = hdr.Filename
			}
			if _, hdr, err := r.FormFile("items_file"); err == nil {
				gotItems = hdr.Filename
			}
			gotSession = r.FormValue("session_id")
			respondJSON(w, http.StatusOK, successBody)
		},
	}
	srv := stub.server(t)

	ctrl := NewController(srv.URL, nil, srv.Client())
	h := ctrl.Submit(context.Background(), testInputs())
	awaitDone(t, h)

	if gotScores != "scores.xlsx" || gotItems != "items.xlsx" {
		t.Fatalf("filenames: scores=%q items=%q", gotScores, gotItems)
	}
	if gotSession != h.ID() {
		t.Fatalf("session id: form %q handle %q", gotSession, h.ID())
	}
}

func TestConcurrentSubmissionsStayIndependent(t *testing.T) {
	release := make(chan struct{})
	// Two stubs keep the blocking logic simple: the first submission hangs,
	// the second completes immediately.
	blocked := &analysisStub{
		analyze: func(w http.ResponseWriter, r *http.Request) {
			select {
			case <-release:
			case <-r.Context().Done():
			}
			respondJSON(w, http.StatusOK, `{"error":"slow failure","status":"failed"}`)
		},
	}
	fast := &analysisStub{
		analyze: func(w http.ResponseWriter, r *http.Request) {
			respondJSON(w, http.StatusOK, successBody)
		},
	}
	slowSrv := blocked.server(t)
	fastSrv := fast.server(t)

	slowCtrl := NewController(slowSrv.URL, nil, slowSrv.Client())
	fastCtrl := NewController(fastSrv.URL, nil, fastSrv.Client())

	first := slowCtrl.Submit(context.Background(), testInputs())
	second := fastCtrl.Submit(context.Background(), testInputs())

	if first.ID() == second.ID() {
		t.Fatal("submissions must have distinct session ids")
	}

	finalSecond := awaitDone(t, second)
	if finalSecond.State != Succeeded {
		t.Fatalf("second session: %v", finalSecond.State)
	}
	if first.Current().State.Terminal() {
		t.Fatal("first session terminated early")
	}

	close(release)
	finalFirst := awaitDone(t, first)
	if finalFirst.State != Failed || finalFirst.Err != "slow failure" {
		t.Fatalf("first session: state %v err %q", finalFirst.State, finalFirst.Err)
	}
	if got := second.Current(); got.State != Succeeded {
		t.Fatalf("second session disturbed: %v", got.State)
	}
}

func TestCurrentStateBeforeSubmit(t *testing.T) {
	ctrl := NewController("http://localhost:0", nil, nil)
	if got := ctrl.CurrentState(); got.State != Idle {
		t.Fatalf("state: %v", got.State)
	}
}

func TestSubscribeDeliversCurrentSnapshot(t *testing.T) {
	stub := &analysisStub{
		analyze: func(w http.ResponseWriter, r *http.Request) {
			respondJSON(w, http.StatusOK, successBody)
		},
	}
	srv := stub.server(t)

	ctrl := NewController(srv.URL, nil, srv.Client())
	h := ctrl.Submit(context.Background(), testInputs())
	awaitDone(t, h)

	// A late subscriber still sees the terminal state immediately.
	var got Session
	h.Subscribe(func(s Session) { got = s })
	if got.State != Succeeded {
		t.Fatalf("late subscriber saw %v", got.State)
	}
}

func TestNewSessionIDsUnique(t *testing.T) {
	seen := make(map[string]struct{})
	for i := 0; i < 100; i++ {
		id := NewSessionID()
		if id == "" {
			t.Fatal("empty session id")
		}
		if _, dup := seen[id]; dup {
			t.Fatalf("duplicate session id %q", id)
		}
		seen[id] = struct{}{}
	}
}
