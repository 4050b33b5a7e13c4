// Package webui exposes the proposal workflow over HTTP+JSON: the
// conversational session endpoints, the admin approval endpoints, and the
// operational surface (logs, metrics, health).
package webui

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"northstar/pkg/config"
	"northstar/pkg/engine"
	"northstar/pkg/logx"
	"northstar/pkg/proposal"
	"northstar/pkg/proto"
	"northstar/pkg/version"
)

// Server is the proposal API HTTP server.
type Server struct {
	engine *engine.Engine
	logger *logx.Logger
}

// NewServer creates a new API server around a workflow engine.
func NewServer(eng *engine.Engine) *Server {
	return &Server{
		engine: eng,
		logger: logx.NewLogger("webui"),
	}
}

// createRequest is the body of POST /api/proposals/create. The canonical
// field is user_request; initial_message is accepted as an alias.
type createRequest struct {
	UserRequest    string `json:"user_request"`
	InitialMessage string `json:"initial_message"`
}

func (r createRequest) message() string {
	if r.UserRequest != "" {
		return r.UserRequest
	}
	return r.InitialMessage
}

// createResponse is the body of a successful create.
type createResponse struct {
	ID    string          `json:"id"`
	State *proposal.State `json:"state"`
}

// continueRequest is the body of POST /api/proposals/{id}/continue. The
// canonical fields are response and image; answer and attachment are
// accepted as aliases, with attachment carrying the richer reference shape.
type continueRequest struct {
	Response   string               `json:"response"`
	Answer     string               `json:"answer"`
	Image      string               `json:"image,omitempty"`
	Attachment *proposal.Attachment `json:"attachment,omitempty"`
}

func (r continueRequest) answer() string {
	if r.Response != "" {
		return r.Response
	}
	return r.Answer
}

func (r continueRequest) attachment() *proposal.Attachment {
	if r.Attachment != nil {
		return r.Attachment
	}
	if r.Image != "" {
		return &proposal.Attachment{Reference: r.Image}
	}
	return nil
}

// actionRequest is the body of POST /api/admin/{id}/action.
type actionRequest struct {
	Action   string `json:"action"`
	Comments string `json:"comments"`
}

// requireAuth wraps an HTTP handler with Basic Authentication against the
// admin credentials. With no admin password configured the handler is served
// open; that is a development convenience, not a production mode.
func (s *Server) requireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		expectedPassword := config.GetAdminPassword()
		if expectedPassword == "" {
			next(w, r)
			return
		}

		expectedUser := config.DefaultAdminUser
		if cfg, err := config.GetConfig(); err == nil && cfg.Admin.User != "" {
			expectedUser = cfg.Admin.User
		}

		username, password, ok := r.BasicAuth()
		if !ok {
			w.Header().Set("WWW-Authenticate", `Basic realm="Northstar Admin"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		userMatch := subtle.ConstantTimeCompare([]byte(username), []byte(expectedUser)) == 1
		passMatch := subtle.ConstantTimeCompare([]byte(password), []byte(expectedPassword)) == 1
		if !userMatch || !passMatch {
			s.logger.Warn("Failed authentication attempt from %s (username: %s)", r.RemoteAddr, username)
			w.Header().Set("WWW-Authenticate", `Basic realm="Northstar Admin"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		next(w, r)
	}
}

// RegisterRoutes sets up HTTP routes for the API.
func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	// Session endpoints - open to proposal authors.
	mux.HandleFunc("/api/proposals/create", s.handleCreate)
	mux.HandleFunc("/api/proposals", s.handleList)
	mux.HandleFunc("/api/proposals/", s.handleProposal)

	// Admin endpoints - protected by basic auth.
	mux.HandleFunc("/api/admin/pending", s.requireAuth(s.handlePending))
	mux.HandleFunc("/api/admin/", s.requireAuth(s.handleAction))
	mux.HandleFunc("/api/logs", s.requireAuth(s.handleLogs))

	// Operational surface.
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/api/healthz", s.handleHealth)
}

// writeJSON sends a JSON response with the given status.
func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("Failed to encode response: %v", err)
	}
}

// statusForKind maps engine error kinds to HTTP status codes.
func statusForKind(kind proto.ErrorKind) int {
	switch kind {
	case proto.KindValidation:
		return http.StatusBadRequest
	case proto.KindNotFound:
		return http.StatusNotFound
	case proto.KindInvalidState:
		return http.StatusConflict
	case proto.KindEnrichment:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// writeError sends a classified error response. When the failed operation
// still produced a session (pipeline halted by an enrichment failure) the
// session id rides along so the client can retry.
func (s *Server) writeError(w http.ResponseWriter, err error, snap *proposal.State) {
	kind := proto.KindOf(err)
	payload := map[string]any{
		"error": err.Error(),
		"kind":  kind.String(),
	}
	if snap != nil {
		payload["session_id"] = snap.SessionID
	}
	s.writeJSON(w, statusForKind(kind), payload)
}

// handleCreate implements POST /api/proposals/create.
func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req createRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, proto.Validationf("invalid request body: %v", err), nil)
		return
	}

	snap, err := s.engine.Create(r.Context(), req.message())
	if err != nil {
		s.writeError(w, err, snap)
		return
	}

	s.logger.Info("Created session %s", snap.SessionID)
	s.writeJSON(w, http.StatusCreated, createResponse{ID: snap.SessionID, State: snap})
}

// handleList implements GET /api/proposals.
func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	s.writeJSON(w, http.StatusOK, s.engine.List())
}

// handleProposal routes /api/proposals/{id}[/continue|/finalized] by suffix.
func (s *Server) handleProposal(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/proposals/")
	if rest == "" {
		http.NotFound(w, r)
		return
	}

	switch {
	case strings.HasSuffix(rest, "/continue"):
		s.handleContinue(w, r, strings.TrimSuffix(rest, "/continue"))
	case strings.HasSuffix(rest, "/finalized"):
		s.handleFinalized(w, r, strings.TrimSuffix(rest, "/finalized"))
	case !strings.Contains(rest, "/"):
		s.handleGet(w, r, rest)
	default:
		http.NotFound(w, r)
	}
}

// handleGet implements GET /api/proposals/{id}.
func (s *Server) handleGet(w http.ResponseWriter, r *http.Request, sessionID string) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	snap, err := s.engine.Get(sessionID)
	if err != nil {
		s.writeError(w, err, nil)
		return
	}
	s.writeJSON(w, http.StatusOK, snap)
}

// handleContinue implements POST /api/proposals/{id}/continue.
func (s *Server) handleContinue(w http.ResponseWriter, r *http.Request, sessionID string) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req continueRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, proto.Validationf("invalid request body: %v", err), nil)
		return
	}

	snap, err := s.engine.Continue(r.Context(), sessionID, req.answer(), req.attachment())
	if err != nil {
		s.writeError(w, err, snap)
		return
	}
	s.writeJSON(w, http.StatusOK, snap)
}

// handleFinalized implements GET /api/proposals/{id}/finalized. Responds with
// the complete session snapshot; 409 unless the session is finalized.
func (s *Server) handleFinalized(w http.ResponseWriter, r *http.Request, sessionID string) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if _, err := s.engine.FinalizedDraft(sessionID); err != nil {
		s.writeError(w, err, nil)
		return
	}

	snap, err := s.engine.Get(sessionID)
	if err != nil {
		s.writeError(w, err, nil)
		return
	}
	s.writeJSON(w, http.StatusOK, snap)
}

// handlePending implements GET /api/admin/pending.
func (s *Server) handlePending(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	s.writeJSON(w, http.StatusOK, s.engine.PendingSummaries())
}

// handleAction implements POST /api/admin/{id}/action.
func (s *Server) handleAction(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	rest := strings.TrimPrefix(r.URL.Path, "/api/admin/")
	sessionID := strings.TrimSuffix(rest, "/action")
	if sessionID == "" || sessionID == rest {
		http.NotFound(w, r)
		return
	}

	var req actionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, proto.Validationf("invalid request body: %v", err), nil)
		return
	}

	snap, err := s.engine.Decide(r.Context(), sessionID, proto.Decision(req.Action), req.Comments)
	if err != nil {
		s.writeError(w, err, nil)
		return
	}

	s.logger.Info("Session %s decided: %s", sessionID, req.Action)
	s.writeJSON(w, http.StatusOK, snap)
}

// handleLogs implements GET /api/logs with optional component and since
// query parameters.
func (s *Server) handleLogs(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	query := r.URL.Query()
	component := query.Get("component")

	var since time.Time
	if sinceStr := query.Get("since"); sinceStr != "" {
		parsed, err := time.Parse(time.RFC3339, sinceStr)
		if err != nil {
			s.writeError(w, proto.Validationf("invalid since parameter (use RFC3339)"), nil)
			return
		}
		since = parsed
	}

	s.writeJSON(w, http.StatusOK, logx.GetRecentLogEntries(component, since))
}

// handleHealth implements GET /api/healthz.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"version": version.GetVersion(),
	})
}

// StartServer runs the HTTP server until ctx is cancelled, then shuts it down
// gracefully.
func (s *Server) StartServer(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	s.RegisterRoutes(mux)

	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.logger.Info("Starting proposal API server on %s", addr)

	errCh := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.logger.Info("Shutting down proposal API server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	//nolint:contextcheck // Parent context is cancelled; shutdown needs a fresh one
	return server.Shutdown(shutdownCtx)
}
