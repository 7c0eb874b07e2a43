package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"mime"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"screencap/internal/api"
	"screencap/internal/blob"
	"screencap/internal/config"
	"screencap/internal/logging"
	"screencap/internal/services"
	"screencap/internal/session"
)

type apiServer struct {
	bind   string
	logger *slog.Logger
	daemon *Daemon
	router *mux.Router

	listener net.Listener
	server   *http.Server
}

func newAPIServer(cfg *config.Config, d *Daemon, logger *slog.Logger) (*apiServer, error) {
	if cfg == nil || d == nil {
		return nil, nil
	}
	bind := strings.TrimSpace(cfg.Paths.APIBind)
	if bind == "" {
		return nil, nil
	}

	srv := &apiServer{
		bind:   bind,
		logger: logging.NewComponentLogger(logger, "api-server"),
		daemon: d,
	}
	srv.router = srv.routes(cfg.Paths.APIToken)
	srv.server = &http.Server{
		Handler:           srv.router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      2 * time.Minute,
		IdleTimeout:       60 * time.Second,
	}
	return srv, nil
}

func (s *apiServer) routes(token string) *mux.Router {
	r := mux.NewRouter()
	r.Use(metricsMiddleware)

	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	protected := r.PathPrefix("/api").Subrouter()
	protected.Use(authMiddleware(token))
	protected.HandleFunc("/status", s.handleStatus).Methods(http.MethodGet)
	protected.HandleFunc("/session", s.handleSession).Methods(http.MethodGet)
	protected.HandleFunc("/session/start", s.handleStart).Methods(http.MethodPost)
	protected.HandleFunc("/session/pause", s.sessionAction((*session.Manager).Pause)).Methods(http.MethodPost)
	protected.HandleFunc("/session/resume", s.sessionAction((*session.Manager).Resume)).Methods(http.MethodPost)
	protected.HandleFunc("/session/stop", s.sessionAction((*session.Manager).Stop)).Methods(http.MethodPost)
	protected.HandleFunc("/session/restart", s.sessionAction((*session.Manager).Restart)).Methods(http.MethodPost)
	protected.HandleFunc("/session/convert", s.sessionAction((*session.Manager).Convert)).Methods(http.MethodPost)
	protected.HandleFunc("/blobs/{id}", s.handleBlob).Methods(http.MethodGet, http.MethodHead)
	protected.HandleFunc("/recordings", s.handleRecordings).Methods(http.MethodGet)
	protected.HandleFunc("/recordings", s.handleSave).Methods(http.MethodPost)
	protected.HandleFunc("/recordings/{id}", s.handleRemove).Methods(http.MethodDelete)
	return r
}

func (s *apiServer) start(ctx context.Context, group *errgroup.Group) error {
	if s == nil {
		return nil
	}
	listener, err := net.Listen("tcp", s.bind)
	if err != nil {
		return fmt.Errorf("api listen: %w", err)
	}
	s.listener = listener

	group.Go(func() error {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.ErrorWithContext(s.logger, "api server error", "api_server_failed",
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check paths.api_bind and restart the daemon"),
			)
			return err
		}
		return nil
	})
	group.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
		return nil
	})

	s.logger.Info("api server listening", logging.String("address", listener.Addr().String()))
	return nil
}

func (s *apiServer) stop() {
	if s == nil {
		return
	}
	if s.server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}
	if s.listener != nil {
		_ = s.listener.Close()
		s.listener = nil
	}
}

// addr reports the bound address once the server is listening.
func (s *apiServer) addr() string {
	if s == nil || s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

func (s *apiServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	status := s.daemon.Status(r.Context())
	s.writeJSON(w, http.StatusOK, ToAPIStatus(status))
}

func (s *apiServer) handleSession(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, api.SessionResponse{Session: api.FromSnapshot(s.daemon.Session().Snapshot())})
}

type startBody struct {
	Microphone bool `json:"microphone"`
}

func (s *apiServer) handleStart(w http.ResponseWriter, r *http.Request) {
	var body startBody
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			s.writeError(w, http.StatusBadRequest, "invalid request body", "bad_request")
			return
		}
	}
	if v := r.URL.Query().Get("microphone"); v != "" {
		body.Microphone, _ = strconv.ParseBool(v)
	}
	snap, err := s.daemon.Session().Start(s.requestContext(r), body.Microphone)
	s.writeSession(w, snap, err)
}

func (s *apiServer) sessionAction(action func(*session.Manager, context.Context) (session.Snapshot, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		snap, err := action(s.daemon.Session(), s.requestContext(r))
		s.writeSession(w, snap, err)
	}
}

func (s *apiServer) handleBlob(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	b, ok := s.daemon.Session().Registry().Resolve(id)
	if !ok {
		s.writeError(w, http.StatusNotFound, "blob not found", "not_found")
		return
	}
	w.Header().Set("Content-Type", b.Type)
	w.Header().Set("Content-Length", strconv.Itoa(b.Size()))
	if download, _ := strconv.ParseBool(r.URL.Query().Get("download")); download {
		name := "recording-" + blob.ID(id) + b.Extension()
		w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": name}))
	}
	w.WriteHeader(http.StatusOK)
	if r.Method == http.MethodHead {
		return
	}
	_, _ = w.Write(b.Data)
}

func (s *apiServer) handleRecordings(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	recs, err := s.daemon.ListRecordings(r.Context(), limit)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.RecordingListResponse{Items: api.FromRecordings(recs)})
}

type saveBody struct {
	Converted bool   `json:"converted"`
	Output    string `json:"output"`
	Name      string `json:"name"`
}

func (s *apiServer) handleSave(w http.ResponseWriter, r *http.Request) {
	var body saveBody
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			s.writeError(w, http.StatusBadRequest, "invalid request body", "bad_request")
			return
		}
	}
	rec, err := s.daemon.Save(s.requestContext(r), SaveRequest{
		Converted:  body.Converted,
		OutputPath: body.Output,
		Name:       body.Name,
	})
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, api.FromRecording(rec))
}

func (s *apiServer) handleRemove(w http.ResponseWriter, r *http.Request) {
	keep, _ := strconv.ParseBool(r.URL.Query().Get("keepFile"))
	rec, err := s.daemon.RemoveRecording(s.requestContext(r), mux.Vars(r)["id"], keep)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.FromRecording(rec))
}

// requestContext tags the request with a correlation id.
func (s *apiServer) requestContext(r *http.Request) context.Context {
	ctx := r.Context()
	if id := strings.TrimSpace(r.Header.Get("X-Request-ID")); id != "" {
		return services.WithRequestID(ctx, id)
	}
	return ctx
}

func (s *apiServer) writeSession(w http.ResponseWriter, snap session.Snapshot, err error) {
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.SessionResponse{Session: api.FromSnapshot(snap)})
}

func (s *apiServer) writeServiceError(w http.ResponseWriter, err error) {
	s.writeError(w, httpStatus(err), err.Error(), services.Code(err))
}

// httpStatus maps service markers to HTTP status codes.
func httpStatus(err error) int {
	switch {
	case errors.Is(err, services.ErrInvalidState), errors.Is(err, services.ErrConversionInProgress):
		return http.StatusConflict
	case errors.Is(err, services.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, services.ErrAcquisitionDenied), errors.Is(err, services.ErrMicrophoneDenied):
		return http.StatusForbidden
	case errors.Is(err, services.ErrUnsupportedDevice), errors.Is(err, services.ErrConfiguration):
		return http.StatusServiceUnavailable
	case errors.Is(err, services.ErrTranscodeFailure), errors.Is(err, services.ErrExternalTool):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func (s *apiServer) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("failed to encode response", logging.Error(err))
	}
}

func (s *apiServer) writeError(w http.ResponseWriter, status int, message, code string) {
	s.writeJSON(w, status, api.ErrorResponse{Error: message, Code: code})
}

// ToAPIStatus converts daemon status into its wire representation.
func ToAPIStatus(status Status) api.DaemonStatus {
	return api.DaemonStatus{
		Running:          status.Running,
		PID:              status.PID,
		LockFilePath:     status.LockFilePath,
		LibraryDBPath:    status.LibraryDBPath,
		TranscodeEnabled: status.TranscodeEnabled,
		TranscodeReady:   status.TranscodeReady,
		DisplayMonitor:   status.DisplayMonitor,
		Session:          api.FromSnapshot(status.Session),
		Dependencies:     api.FromDependencyStatuses(status.Dependencies),
	}
}
