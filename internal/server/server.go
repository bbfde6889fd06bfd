package server

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"vigil/internal/alerts"
	"vigil/internal/auth"
	"vigil/internal/capture"
	"vigil/internal/database"
	"vigil/internal/monitor"
)

// Server is the control surface for the headless controller: login,
// start/stop/status, the recent-alert journal and the alert WebSocket.
// Dashboards and report pages live elsewhere; this is just enough HTTP to
// drive one monitor instance.
type Server struct {
	controller    *monitor.Controller
	hub           *alerts.Hub
	authenticator *auth.Authenticator
	db            *database.Database
}

// New creates a control server around a controller.
func New(controller *monitor.Controller, hub *alerts.Hub, authenticator *auth.Authenticator, db *database.Database) *Server {
	return &Server{
		controller:    controller,
		hub:           hub,
		authenticator: authenticator,
		db:            db,
	}
}

// Routes returns the HTTP handler with auth applied to protected paths.
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /auth/login", s.handleLogin)
	mux.Handle("POST /monitor/start", s.requireAuth(http.HandlerFunc(s.handleStart)))
	mux.Handle("POST /monitor/stop", s.requireAuth(http.HandlerFunc(s.handleStop)))
	mux.Handle("GET /monitor/status", s.requireAuth(http.HandlerFunc(s.handleStatus)))
	mux.Handle("GET /monitor/alerts", s.requireAuth(http.HandlerFunc(s.handleAlerts)))
	mux.Handle("GET /monitor/preview", s.requireAuth(http.HandlerFunc(s.handlePreview)))
	mux.Handle("GET /ws/alerts", s.requireAuth(http.HandlerFunc(s.handleWS)))
	return mux
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token     string `json:"token"`
	ExpiresAt int64  `json:"expires_at"`
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	token, expiresAt, err := s.authenticator.Authenticate(req.Username, req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrAuthDisabled) {
			writeError(w, http.StatusConflict, "authentication is disabled")
			return
		}
		writeError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}
	writeJSON(w, http.StatusOK, loginResponse{Token: token, ExpiresAt: expiresAt})
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	state, err := s.controller.Start(r.Context())
	if err != nil {
		status := http.StatusBadGateway
		switch {
		case errors.Is(err, capture.ErrPermissionDenied):
			status = http.StatusForbidden
		case errors.Is(err, capture.ErrDeviceUnavailable):
			status = http.StatusServiceUnavailable
		case errors.Is(err, monitor.ErrStopping):
			status = http.StatusConflict
		}
		writeError(w, status, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"state": state.String()})
}

func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := s.controller.Stop(ctx); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.controller.Status())
}

type alertEvent struct {
	ID          string    `json:"id"`
	SessionID   string    `json:"session_id,omitempty"`
	Category    string    `json:"category"`
	TriggeredAt time.Time `json:"triggered_at"`
}

func (s *Server) handleAlerts(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 500 {
			limit = n
		}
	}

	records, err := s.db.ListAlerts(nil, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	events := make([]alertEvent, 0, len(records))
	for _, rec := range records {
		events = append(events, alertEvent{
			ID:          rec.ID,
			SessionID:   rec.SessionID,
			Category:    rec.Category,
			TriggeredAt: rec.TriggeredAt,
		})
	}
	writeJSON(w, http.StatusOK, events)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("[Server] Encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
