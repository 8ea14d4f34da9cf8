// Package api provides the HTTP API for observing and steering tribes.
// GET endpoints are public (read-only observation).
// POST, PATCH and DELETE endpoints require a bearer token (admin control plane).
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/Moszee/generic-sim/internal/engine"
	"github.com/Moszee/generic-sim/internal/metrics"
	"github.com/Moszee/generic-sim/internal/persistence"
	"github.com/Moszee/generic-sim/internal/tribe"
)

const (
	defaultEventLimit = 50
	maxEventLimit     = 500
)

// EventLog serves stored tick events.
type EventLog interface {
	RecentEvents(ctx context.Context, id tribe.TribeID, limit int) ([]persistence.EventRecord, error)
}

// Server serves tribe state over HTTP.
type Server struct {
	Sim      *engine.Simulation
	Events   EventLog          // Nil disables the events endpoint
	Metrics  *metrics.Recorder // Nil disables /metrics
	Port     int
	AdminKey string // Bearer token for mutating endpoints. Empty = mutations disabled.

	// TickLimit caps manual ticks per IP per minute. Zero uses 30.
	TickLimit int

	started time.Time

	// Active stream connection counts (atomic).
	sseConns int32
	wsConns  int32
}

// Handler builds the route table.
func (s *Server) Handler() http.Handler {
	if s.started.IsZero() {
		s.started = time.Now()
	}
	limit := s.TickLimit
	if limit <= 0 {
		limit = 30
	}
	tickLimiter := NewRateLimiter(limit, time.Minute)

	mux := http.NewServeMux()

	// Public endpoints.
	mux.HandleFunc("/api/v1/status", s.handleStatus)
	mux.HandleFunc("/api/v1/effects", s.handleEffects)
	mux.HandleFunc("/api/v1/tribes", s.adminOnly(s.handleTribes))
	mux.HandleFunc("/api/v1/tribe/", s.adminOnly(s.handleTribeRoutes(tickLimiter)))

	// Streaming endpoints.
	mux.HandleFunc("/api/v1/stream", s.handleWebSocket)
	mux.HandleFunc("/api/v1/stream/sse", s.handleSSE)

	if s.Metrics != nil {
		mux.Handle("/metrics", s.Metrics.Handler())
	}

	return corsMiddleware(mux)
}

// Start begins serving the HTTP API in a goroutine. The returned server is
// used for shutdown.
func (s *Server) Start() *http.Server {
	addr := fmt.Sprintf(":%d", s.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	slog.Info("HTTP API starting", "addr", addr, "admin_auth", s.AdminKey != "", "metrics", s.Metrics != nil)

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("HTTP server error", "error", err)
		}
	}()
	return srv
}

// corsMiddleware adds CORS headers for allowed frontend origins.
// Set CORS_ORIGINS to a comma-separated list of allowed origins.
// Localhost dev servers are always allowed.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if allowedOrigins()[origin] {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PATCH, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func allowedOrigins() map[string]bool {
	origins := map[string]bool{
		"http://localhost:5173": true,
		"http://localhost:4173": true,
		"http://localhost:3000": true,
	}
	if env := os.Getenv("CORS_ORIGINS"); env != "" {
		for _, origin := range strings.Split(env, ",") {
			origin = strings.TrimSpace(origin)
			if origin != "" {
				origins[origin] = true
			}
		}
	}
	return origins
}

func (s *Server) checkBearerToken(r *http.Request) bool {
	auth := r.Header.Get("Authorization")
	return strings.HasPrefix(auth, "Bearer ") && strings.TrimPrefix(auth, "Bearer ") == s.AdminKey
}

// adminOnly guards every method except GET and HEAD.
func (s *Server) adminOnly(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			if s.AdminKey == "" {
				http.Error(w, "admin endpoints disabled (no TRIBESIM_ADMIN_KEY set)", http.StatusForbidden)
				return
			}
			if !s.checkBearerToken(r) {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
		}
		next(w, r)
	}
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	tribes, err := s.Sim.Tribes(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"name":       "tribesim",
		"tribes":     len(tribes),
		"effects":    s.Sim.Registry().Count(),
		"uptime":     time.Since(s.started).Round(time.Second).String(),
		"admin_auth": s.AdminKey != "",
	})
}

func (s *Server) handleEffects(w http.ResponseWriter, r *http.Request) {
	type effectEntry struct {
		Name     string `json:"name"`
		Priority int    `json:"priority"`
	}
	type phaseEntry struct {
		Phase   engine.Phase  `json:"phase"`
		Effects []effectEntry `json:"effects"`
	}

	result := make([]phaseEntry, 0, len(engine.Phases))
	for _, phase := range engine.Phases {
		entry := phaseEntry{Phase: phase, Effects: []effectEntry{}}
		for _, e := range s.Sim.Registry().EffectsForPhase(phase) {
			entry.Effects = append(entry.Effects, effectEntry{Name: e.Name(), Priority: e.Priority()})
		}
		result = append(result, entry)
	}
	writeJSON(w, http.StatusOK, result)
}

// tribeSummary is the list view of a tribe.
type tribeSummary struct {
	ID         tribe.TribeID   `json:"id"`
	Name       string          `json:"name"`
	Tick       uint64          `json:"tick"`
	Date       string          `json:"date"`
	Population int             `json:"population"`
	Families   int             `json:"families"`
	BondLevel  int             `json:"bond_level"`
	Progress   int             `json:"progress_points"`
	Resources  tribe.Resources `json:"resources"`
}

// handleTribes lists tribes (GET) or founds a new one (POST).
func (s *Server) handleTribes(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		tribes, err := s.Sim.Tribes(r.Context())
		if err != nil {
			writeError(w, err)
			return
		}
		result := make([]tribeSummary, 0, len(tribes))
		for _, t := range tribes {
			result = append(result, tribeSummary{
				ID:         t.ID,
				Name:       t.Name,
				Tick:       t.CurrentTick,
				Date:       engine.SimDate(t.CurrentTick),
				Population: len(t.Members),
				Families:   len(t.Families),
				BondLevel:  t.BondLevel,
				Progress:   t.ProgressPoints,
				Resources:  t.Resources,
			})
		}
		writeJSON(w, http.StatusOK, result)

	case http.MethodPost:
		var req struct {
			Name        string `json:"name"`
			Description string `json:"description"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}
		req.Name = strings.TrimSpace(req.Name)
		if req.Name == "" {
			http.Error(w, "name required", http.StatusBadRequest)
			return
		}
		t, err := s.Sim.Found(r.Context(), req.Name, req.Description)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, t)

	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

// handleTribeRoutes dispatches /api/v1/tribe/:id[/stats|/events|/tick|/policy].
func (s *Server) handleTribeRoutes(tickLimiter *RateLimiter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		path := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/v1/tribe/"), "/")
		if path == "" {
			http.Error(w, "missing tribe id", http.StatusBadRequest)
			return
		}
		idStr, sub, _ := strings.Cut(path, "/")
		raw, err := strconv.ParseUint(idStr, 10, 64)
		if err != nil {
			http.Error(w, "invalid tribe id", http.StatusBadRequest)
			return
		}
		id := tribe.TribeID(raw)

		switch {
		case sub == "" && r.Method == http.MethodGet:
			s.handleTribeDetail(w, r, id)
		case sub == "" && r.Method == http.MethodDelete:
			s.handleDelete(w, r, id)
		case sub == "stats" && r.Method == http.MethodGet:
			s.handleStats(w, r, id)
		case sub == "events" && r.Method == http.MethodGet:
			s.handleEvents(w, r, id)
		case sub == "tick" && r.Method == http.MethodPost:
			RateLimitMiddleware(tickLimiter, func(w http.ResponseWriter, r *http.Request) {
				s.handleTick(w, r, id)
			})(w, r)
		case sub == "policy" && r.Method == http.MethodGet:
			s.handlePolicy(w, r, id)
		case sub == "policy" && r.Method == http.MethodPatch:
			s.handlePolicyUpdate(w, r, id)
		case sub == "" || sub == "stats" || sub == "events" || sub == "tick" || sub == "policy":
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		default:
			http.NotFound(w, r)
		}
	}
}

func (s *Server) handleTribeDetail(w http.ResponseWriter, r *http.Request, id tribe.TribeID) {
	t, err := s.Sim.Tribe(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request, id tribe.TribeID) {
	stats, err := s.Sim.Stats(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request, id tribe.TribeID) {
	if s.Events == nil {
		http.Error(w, "event log not available", http.StatusServiceUnavailable)
		return
	}
	limit := defaultEventLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			http.Error(w, "invalid limit", http.StatusBadRequest)
			return
		}
		limit = min(n, maxEventLimit)
	}
	if _, err := s.Sim.Tribe(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	events, err := s.Events.RecentEvents(r.Context(), id, limit)
	if err != nil {
		writeError(w, err)
		return
	}
	if events == nil {
		events = []persistence.EventRecord{}
	}
	writeJSON(w, http.StatusOK, events)
}

func (s *Server) handleTick(w http.ResponseWriter, r *http.Request, id tribe.TribeID) {
	report, err := s.Sim.TickTribe(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (s *Server) handlePolicy(w http.ResponseWriter, r *http.Request, id tribe.TribeID) {
	t, err := s.Sim.Tribe(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, t.Policy)
}

func (s *Server) handlePolicyUpdate(w http.ResponseWriter, r *http.Request, id tribe.TribeID) {
	var u tribe.PolicyUpdate
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&u); err != nil {
		http.Error(w, "invalid json: "+err.Error(), http.StatusBadRequest)
		return
	}
	if u.IsEmpty() {
		http.Error(w, "no policy fields given", http.StatusBadRequest)
		return
	}
	t, err := s.Sim.UpdatePolicy(r.Context(), id, u)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, t.Policy)
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request, id tribe.TribeID) {
	if err := s.Sim.Delete(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	if s.Metrics != nil {
		s.Metrics.Forget(id)
	}
	w.WriteHeader(http.StatusNoContent)
}

// writeError maps domain errors to status codes.
func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, tribe.ErrNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, tribe.ErrInvalidPolicy):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, context.Canceled):
		http.Error(w, "request canceled", http.StatusServiceUnavailable)
	default:
		slog.Error("request failed", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.Encode(data)
}
