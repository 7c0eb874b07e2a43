package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"screencap/internal/api"
	"screencap/internal/library"
	"screencap/internal/logging"
	"screencap/internal/notifications"
	"screencap/internal/services"
	"screencap/internal/session/sessiontest"
	"screencap/internal/testsupport"
)

type capturingNotifier struct {
	events chan notifications.Event
}

func (n *capturingNotifier) Publish(_ context.Context, event notifications.Event, _ notifications.Payload) error {
	select {
	case n.events <- event:
	default:
	}
	return nil
}

func newTestAPI(t *testing.T, token string, opts ...sessiontest.SessionOption) (*apiServer, *Daemon) {
	t.Helper()
	cfg := testsupport.NewConfig(t, testsupport.WithAPIToken(token))
	store := testsupport.MustOpenLibrary(t, cfg)
	d := &Daemon{
		cfg:      cfg,
		logger:   logging.NewNop(),
		session:  sessiontest.NewSession(t, opts...),
		store:    store,
		exporter: library.NewExporter(cfg, store, logging.NewNop()),
		notifier: &capturingNotifier{events: make(chan notifications.Event, 4)},
		lockPath: cfg.LockPath(),
		done:     make(chan struct{}),
	}
	srv, err := newAPIServer(cfg, d, logging.NewNop())
	if err != nil {
		t.Fatalf("newAPIServer: %v", err)
	}
	return srv, d
}

func do(t *testing.T, srv *apiServer, method, target, body string, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	srv.router.ServeHTTP(w, req)
	return w
}

func decodeSession(t *testing.T, w *httptest.ResponseRecorder) api.Session {
	t.Helper()
	var resp api.SessionResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode session: %v (body %s)", err, w.Body.String())
	}
	return resp.Session
}

func TestAPISessionLifecycle(t *testing.T) {
	srv, d := newTestAPI(t, "", sessiontest.WithConverter(sessiontest.StubConverter{}))

	w := do(t, srv, http.MethodPost, "/api/session/start", `{"microphone":true}`, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("start: expected 200, got %d (%s)", w.Code, w.Body.String())
	}
	if got := decodeSession(t, w); got.Status != "recording" || !got.Microphone {
		t.Fatalf("unexpected session after start: %+v", got)
	}

	for _, step := range []struct {
		path string
		want string
	}{
		{"/api/session/pause", "paused"},
		{"/api/session/resume", "recording"},
		{"/api/session/stop", "stopped"},
	} {
		w = do(t, srv, http.MethodPost, step.path, "", nil)
		if w.Code != http.StatusOK {
			t.Fatalf("%s: expected 200, got %d (%s)", step.path, w.Code, w.Body.String())
		}
		if got := decodeSession(t, w); got.Status != step.want {
			t.Fatalf("%s: expected %s, got %s", step.path, step.want, got.Status)
		}
	}

	w = do(t, srv, http.MethodGet, "/api/session", "", nil)
	stopped := decodeSession(t, w)
	if stopped.RecordedPath == "" {
		t.Fatal("expected recorded blob path after stop")
	}

	w = do(t, srv, http.MethodGet, stopped.RecordedPath+"?download=1", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("blob: expected 200, got %d", w.Code)
	}
	if w.Body.String() != string(sessiontest.RecordedBytes) {
		t.Fatalf("unexpected blob body %q", w.Body.String())
	}
	if !strings.HasPrefix(w.Header().Get("Content-Type"), "video/webm") {
		t.Fatalf("unexpected content type %q", w.Header().Get("Content-Type"))
	}
	if cd := w.Header().Get("Content-Disposition"); !strings.Contains(cd, "attachment") || !strings.Contains(cd, ".webm") {
		t.Fatalf("unexpected content disposition %q", cd)
	}

	w = do(t, srv, http.MethodPost, "/api/session/convert", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("convert: expected 200, got %d (%s)", w.Code, w.Body.String())
	}
	if got := decodeSession(t, w); got.TranscodedPath == "" {
		t.Fatalf("expected transcoded path, got %+v", got)
	}

	w = do(t, srv, http.MethodPost, "/api/recordings", `{"converted":true,"name":"clip"}`, nil)
	if w.Code != http.StatusCreated {
		t.Fatalf("save: expected 201, got %d (%s)", w.Code, w.Body.String())
	}
	var saved api.Recording
	if err := json.Unmarshal(w.Body.Bytes(), &saved); err != nil {
		t.Fatalf("decode saved: %v", err)
	}
	if saved.Kind != "converted" || !strings.HasSuffix(saved.Path, "clip.mp4") {
		t.Fatalf("unexpected saved recording: %+v", saved)
	}
	select {
	case event := <-d.notifier.(*capturingNotifier).events:
		if event != notifications.EventRecordingSaved {
			t.Fatalf("expected recording_saved notification, got %s", event)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("expected a notification for the saved recording")
	}

	w = do(t, srv, http.MethodGet, "/api/recordings", "", nil)
	var list api.RecordingListResponse
	if err := json.Unmarshal(w.Body.Bytes(), &list); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if len(list.Items) != 1 {
		t.Fatalf("expected 1 saved recording, got %d", len(list.Items))
	}

	w = do(t, srv, http.MethodPost, "/api/session/restart", "", nil)
	if got := decodeSession(t, w); got.Status != "idle" || got.RecordedURL != "" {
		t.Fatalf("unexpected session after restart: %+v", got)
	}
	w = do(t, srv, http.MethodGet, stopped.RecordedPath, "", nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected revoked blob to 404, got %d", w.Code)
	}
}

func TestAPIErrorMapping(t *testing.T) {
	srv, _ := newTestAPI(t, "")

	w := do(t, srv, http.MethodPost, "/api/session/pause", "", nil)
	if w.Code != http.StatusConflict {
		t.Fatalf("pause from idle: expected 409, got %d", w.Code)
	}
	var errResp api.ErrorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &errResp); err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if errResp.Code != "invalid_state" {
		t.Fatalf("expected invalid_state code, got %q", errResp.Code)
	}

	w = do(t, srv, http.MethodGet, "/api/session/start", "", nil)
	if w.Code != http.StatusMethodNotAllowed {
		t.Fatalf("GET start: expected 405, got %d", w.Code)
	}

	w = do(t, srv, http.MethodGet, "/api/blobs/unknown", "", nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("unknown blob: expected 404, got %d", w.Code)
	}
}

func TestAPIStartDenied(t *testing.T) {
	denied := services.Wrap(services.ErrAcquisitionDenied, "capture", "display", "user cancelled", nil)
	srv, d := newTestAPI(t, "", sessiontest.WithComposer(&sessiontest.StubComposer{Err: denied}))

	w := do(t, srv, http.MethodPost, "/api/session/start", "", nil)
	if w.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d (%s)", w.Code, w.Body.String())
	}
	if got := d.Session().Snapshot().Status; got != "idle" {
		t.Fatalf("expected idle after denial, got %s", got)
	}
}

func TestAPIAuth(t *testing.T) {
	srv, _ := newTestAPI(t, "secret")

	w := do(t, srv, http.MethodGet, "/api/status", "", nil)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", w.Code)
	}
	w = do(t, srv, http.MethodGet, "/api/status", "", map[string]string{"Authorization": "Bearer wrong"})
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 with wrong token, got %d", w.Code)
	}
	w = do(t, srv, http.MethodGet, "/api/status", "", map[string]string{"Authorization": "Bearer secret"})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 with token, got %d", w.Code)
	}
	var status api.DaemonStatus
	if err := json.Unmarshal(w.Body.Bytes(), &status); err != nil {
		t.Fatalf("decode status: %v", err)
	}
	if status.Session.Status != "idle" || status.Running {
		t.Fatalf("unexpected status: %+v", status)
	}

	w = do(t, srv, http.MethodGet, "/metrics", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("metrics should not require auth, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "screencap_http_requests_total") {
		t.Fatal("expected http request counter in metrics output")
	}
}

func TestHTTPStatusMapping(t *testing.T) {
	cases := map[error]int{
		services.ErrConversionInProgress: http.StatusConflict,
		services.ErrUnsupportedDevice:    http.StatusServiceUnavailable,
		services.ErrTranscodeFailure:     http.StatusBadGateway,
		errors.New("boom"):               http.StatusInternalServerError,
	}
	for err, want := range cases {
		if got := httpStatus(services.Wrap(err, "test", "op", "", nil)); got != want {
			t.Fatalf("%v: expected %d, got %d", err, want, got)
		}
	}
}
