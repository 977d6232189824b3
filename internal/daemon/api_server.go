package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"log/slog"

	"segue/internal/analysis"
	"segue/internal/api"
	"segue/internal/config"
	"segue/internal/logging"
	"segue/internal/queue"
)

// longPollTimeout bounds blocking event fetches so they finish inside the
// server write timeout.
const longPollTimeout = 25 * time.Second

type apiServer struct {
	bind       string
	logger     *slog.Logger
	daemon     *Daemon
	sessionSvc *api.SessionService

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

	mux := http.NewServeMux()
	srv := &apiServer{
		bind:       bind,
		logger:     logger,
		daemon:     d,
		sessionSvc: api.NewSessionService(d.store),
	}

	mux.HandleFunc("/api/status", srv.handleStatus)
	mux.HandleFunc("/api/sessions", srv.handleSessions)
	mux.HandleFunc("/api/sessions/", srv.handleSessionSubtree)

	srv.server = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return srv, nil
}

func (s *apiServer) start(ctx context.Context) error {
	if s == nil {
		return nil
	}
	listener, err := net.Listen("tcp", s.bind)
	if err != nil {
		return fmt.Errorf("api listen: %w", err)
	}
	s.listener = listener

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log().Error("api server error", logging.Error(err))
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}()

	s.log().Info("api server listening", logging.String("address", listener.Addr().String()))
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

func (s *apiServer) addr() string {
	if s == nil || s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

func (s *apiServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	status := s.daemon.Status(r.Context())
	payload := api.DaemonStatus{
		Running:             status.Running,
		PID:                 status.PID,
		SessionDBPath:       status.SessionDBPath,
		LockFilePath:        status.LockFilePath,
		ReasoningConfigured: status.ReasoningConfigured,
		SessionCounts:       api.MergeSessionStats(status.SessionCounts),
		StageHealth:         api.FromStageHealth(status.StageHealth),
	}
	if status.LastError != nil {
		payload.LastError = status.LastError.Error()
	}
	for _, dep := range status.Dependencies {
		payload.Dependencies = append(payload.Dependencies, api.DependencyStatus{
			Name:        dep.Name,
			Command:     dep.Command,
			Description: dep.Description,
			Optional:    dep.Optional,
			Available:   dep.Available,
			Detail:      dep.Detail,
		})
	}
	s.writeJSON(w, http.StatusOK, payload)
}

func (s *apiServer) handleSessions(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.listSessions(w, r)
	case http.MethodPost:
		s.createSession(w, r)
	default:
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *apiServer) listSessions(w http.ResponseWriter, r *http.Request) {
	var statuses []queue.Status
	for _, value := range r.URL.Query()["status"] {
		trimmed := strings.TrimSpace(value)
		if trimmed == "" {
			continue
		}
		status, ok := queue.ParseStatus(trimmed)
		if !ok {
			s.writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown status %q", trimmed))
			return
		}
		statuses = append(statuses, status)
	}

	sessions, err := s.sessionSvc.List(r.Context(), statuses...)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, api.SessionListResponse{Sessions: sessions})
}

func (s *apiServer) createSession(w http.ResponseWriter, r *http.Request) {
	var req api.CreateSessionRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Sprintf("decode request: %v", err))
		return
	}

	trackA := strings.TrimSpace(req.TrackAPath)
	trackB := strings.TrimSpace(req.TrackBPath)
	if trackA == "" || trackB == "" {
		s.writeError(w, http.StatusBadRequest, "track_a_path and track_b_path are required")
		return
	}
	for _, path := range []string{trackA, trackB} {
		if _, err := os.Stat(path); err != nil {
			s.writeError(w, http.StatusBadRequest, fmt.Sprintf("source audio unavailable: %s", path))
			return
		}
	}
	if err := analysis.ValidateRecord(req.TrackA); err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Sprintf("track A analysis rejected: %v", err))
		return
	}
	if err := analysis.ValidateRecord(req.TrackB); err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Sprintf("track B analysis rejected: %v", err))
		return
	}

	bundle := analysis.Bundle{TrackA: req.TrackA, TrackB: req.TrackB}
	bundleJSON, err := json.Marshal(bundle)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	prefsJSON := ""
	if req.Preferences != nil {
		encoded, err := json.Marshal(req.Preferences)
		if err != nil {
			s.writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		prefsJSON = string(encoded)
	}

	session, err := s.daemon.store.NewSession(r.Context(), trackA, trackB, string(bundleJSON), prefsJSON)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.log().Info("session accepted",
		logging.Int64("session_id", session.ID),
		logging.String("session_uuid", session.UUID))
	s.writeJSON(w, http.StatusCreated, api.SessionResponse{Session: api.FromSession(session)})
}

func (s *apiServer) handleSessionSubtree(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/sessions/")
	if rest == "" {
		s.writeError(w, http.StatusNotFound, "session not found")
		return
	}
	ref, action, _ := strings.Cut(rest, "/")
	if ref == "" || strings.Contains(action, "/") {
		s.writeError(w, http.StatusNotFound, "session not found")
		return
	}

	session, err := s.resolveSession(r.Context(), ref)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if session == nil {
		s.writeError(w, http.StatusNotFound, "session not found")
		return
	}

	switch action {
	case "":
		if r.Method != http.MethodGet {
			s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		s.writeJSON(w, http.StatusOK, api.SessionResponse{Session: api.FromSession(session)})
	case "cancel":
		if r.Method != http.MethodPost {
			s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		s.cancelSession(w, r, session)
	case "events":
		if r.Method != http.MethodGet {
			s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		s.sessionEvents(w, r, session)
	case "artifact":
		if r.Method != http.MethodGet {
			s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		s.sessionArtifact(w, r, session)
	default:
		s.writeError(w, http.StatusNotFound, "session not found")
	}
}

func (s *apiServer) resolveSession(ctx context.Context, ref string) (*queue.Session, error) {
	if id, err := strconv.ParseInt(ref, 10, 64); err == nil {
		return s.daemon.store.GetByID(ctx, id)
	}
	return s.daemon.store.GetByUUID(ctx, ref)
}

func (s *apiServer) cancelSession(w http.ResponseWriter, r *http.Request, session *queue.Session) {
	updated, err := s.daemon.store.MarkCancelRequested(r.Context(), session.UUID)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if updated == nil {
		s.writeError(w, http.StatusNotFound, "session not found")
		return
	}
	s.writeJSON(w, http.StatusOK, api.CancelResponse{
		Session:   api.FromSession(updated),
		Cancelled: updated.Status == queue.StatusCancelled || updated.CancelRequested,
	})
}

func (s *apiServer) sessionEvents(w http.ResponseWriter, r *http.Request, session *queue.Session) {
	if s.daemon.reporter == nil {
		s.writeJSON(w, http.StatusOK, api.EventListResponse{Events: nil, Next: 0})
		return
	}
	query := r.URL.Query()
	since, _ := strconv.ParseUint(query.Get("since"), 10, 64)
	wait := query.Get("wait") == "1" || strings.EqualFold(query.Get("wait"), "true")

	fetchCtx := r.Context()
	if wait {
		var cancel context.CancelFunc
		fetchCtx, cancel = context.WithTimeout(fetchCtx, longPollTimeout)
		defer cancel()
	}

	events, next, err := s.daemon.reporter.Fetch(fetchCtx, session.UUID, since, wait)
	if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, api.EventListResponse{
		Events: api.FromProgressEvents(events),
		Next:   next,
	})
}

func (s *apiServer) sessionArtifact(w http.ResponseWriter, r *http.Request, session *queue.Session) {
	if session.ArtifactPath == "" {
		s.writeError(w, http.StatusNotFound, "artifact not available")
		return
	}
	if _, err := os.Stat(session.ArtifactPath); err != nil {
		s.writeError(w, http.StatusNotFound, "artifact not available")
		return
	}

	w.Header().Set("Content-Type", "audio/mpeg")
	w.Header().Set("X-Session-UUID", session.UUID)
	w.Header().Set("X-Mix-Strategy", session.Strategy)
	w.Header().Set("X-Mix-Duration-Ms", strconv.FormatFloat(session.DurationMS, 'f', 0, 64))
	w.Header().Set("X-Mix-Peak-Db", strconv.FormatFloat(session.PeakDB, 'f', 1, 64))
	http.ServeFile(w, r, session.ArtifactPath)
}

func (s *apiServer) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.log().Error("failed to encode response", logging.Error(err))
	}
}

func (s *apiServer) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, api.ErrorResponse{Error: message})
}

func (s *apiServer) log() *slog.Logger {
	if s.logger != nil {
		return s.logger.With(logging.String("component", "api-server"))
	}
	return logging.NewNop()
}
