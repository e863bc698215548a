// Package api provides the HTTP API for observing and controlling the
// simulation. GET endpoints are public (read-only observation); POST
// endpoints require a bearer token.
package api

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/talgya/supply-sim/internal/engine"
	"github.com/talgya/supply-sim/internal/persistence"
)

// Server serves the simulation state over HTTP.
type Server struct {
	Mgr      *engine.Manager
	Runner   *engine.Runner
	DB       *persistence.DB
	RunID    string
	Port     int
	AdminKey string // Bearer token for POST endpoints. Empty = POST disabled.

	hub *wsHub
}

// Start begins serving the HTTP API in a goroutine.
func (s *Server) Start() {
	controlLimiter := NewRateLimiter(60, time.Minute)

	s.hub = newWSHub(s.Mgr)
	go s.hub.run()

	mux := http.NewServeMux()

	// Public endpoints.
	mux.HandleFunc("/api/v1/status", s.handleStatus)
	mux.HandleFunc("/api/v1/agents", s.handleAgents)
	mux.HandleFunc("/api/v1/agent/", s.handleAgentDetail)
	mux.HandleFunc("/api/v1/map", s.handleMap)
	mux.HandleFunc("/api/v1/metrics", s.handleMetrics)
	mux.HandleFunc("/api/v1/metrics/history", s.handleMetricsHistory)
	mux.HandleFunc("/api/v1/events", s.handleEvents)
	mux.HandleFunc("/api/v1/ws", s.hub.handleWS)

	// Control endpoints (POST, require bearer token).
	mux.HandleFunc("/api/v1/control", RateLimitMiddleware(controlLimiter, s.adminOnly(s.handleControl)))
	mux.HandleFunc("/api/v1/speed", s.adminOnly(s.handleSpeed))

	addr := fmt.Sprintf(":%d", s.Port)
	slog.Info("HTTP API starting", "addr", addr, "admin_auth", s.AdminKey != "")

	go func() {
		handler := corsMiddleware(mux)
		if err := http.ListenAndServe(addr, handler); err != nil {
			slog.Error("HTTP server error", "error", err)
		}
	}()
}

// corsMiddleware adds CORS headers for allowed frontend origins. Set
// CORS_ORIGINS to a comma-separated list; localhost dev servers are always
// allowed.
func corsMiddleware(next http.Handler) http.Handler {
	allowedOrigins := map[string]bool{
		"http://localhost:5173": true,
		"http://localhost:3000": true,
	}
	if env := os.Getenv("CORS_ORIGINS"); env != "" {
		for _, origin := range strings.Split(env, ",") {
			origin = strings.TrimSpace(origin)
			if origin != "" {
				allowedOrigins[origin] = true
			}
		}
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if allowedOrigins[origin] {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// adminOnly wraps a handler to require bearer token auth on POST requests.
func (s *Server) adminOnly(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			if s.AdminKey == "" {
				http.Error(w, "control endpoints disabled (no CHAINSIM_ADMIN_KEY set)", http.StatusForbidden)
				return
			}
			auth := r.Header.Get("Authorization")
			if !strings.HasPrefix(auth, "Bearer ") || strings.TrimPrefix(auth, "Bearer ") != s.AdminKey {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
		}
		next(w, r)
	}
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	snap := s.Mgr.Snapshot()
	active := 0
	for _, v := range snap.Agents {
		if v.Active {
			active++
		}
	}
	writeJSON(w, map[string]any{
		"run_id":        s.RunID,
		"tick":          snap.Tick,
		"status":        snap.Status,
		"speed":         s.Runner.Speed(),
		"agents":        len(snap.Agents),
		"active_agents": active,
		"bus":           snap.Bus,
		"metrics":       snap.Metrics,
	})
}

func (s *Server) handleAgents(w http.ResponseWriter, r *http.Request) {
	snap := s.Mgr.Snapshot()
	kind := r.URL.Query().Get("kind")

	result := make(map[string]engine.AgentView)
	for id, v := range snap.Agents {
		if kind != "" && v.Kind != kind {
			continue
		}
		result[id] = v
	}
	writeJSON(w, result)
}

func (s *Server) handleAgentDetail(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/api/v1/agent/")
	if id == "" {
		http.Error(w, "missing agent id", http.StatusBadRequest)
		return
	}
	// The view is captured under the manager lock; reading live agent state
	// here would race with the runner's step loop.
	view, ok := s.Mgr.AgentView(id)
	if !ok {
		http.Error(w, "agent not found", http.StatusNotFound)
		return
	}
	writeJSON(w, map[string]any{
		"id":       id,
		"kind":     view.Kind,
		"location": view.Location,
		"active":   view.Active,
		"state":    view.State,
	})
}

func (s *Server) handleMap(w http.ResponseWriter, r *http.Request) {
	cm := s.Mgr.CityMap()
	minX, minY, maxX, maxY := cm.Bounds()
	writeJSON(w, map[string]any{
		"locations": cm.All(),
		"counts":    cm.CountByType(),
		"bounds":    map[string]float64{"min_x": minX, "min_y": minY, "max_x": maxX, "max_y": maxY},
	})
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.Mgr.Metrics())
}

func (s *Server) handleMetricsHistory(w http.ResponseWriter, r *http.Request) {
	if s.DB == nil {
		http.Error(w, "database not available", http.StatusServiceUnavailable)
		return
	}

	fromTick := uint64(0)
	toTick := uint64(1<<63 - 1) // Max int64, keeps the SQLite driver happy with the high bit clear.
	limit := 100

	if f := r.URL.Query().Get("from"); f != "" {
		if v, err := strconv.ParseUint(f, 10, 64); err == nil {
			fromTick = v
		}
	}
	if t := r.URL.Query().Get("to"); t != "" {
		if v, err := strconv.ParseUint(t, 10, 64); err == nil {
			toTick = v
		}
	}
	if l := r.URL.Query().Get("limit"); l != "" {
		if v, err := strconv.Atoi(l); err == nil && v > 0 && v <= 1000 {
			limit = v
		}
	}

	rows, err := s.DB.MetricsHistory(s.RunID, fromTick, toTick, limit)
	if err != nil {
		slog.Error("metrics history query failed", "error", err)
		writeJSON(w, []persistence.MetricsRow{})
		return
	}
	if rows == nil {
		rows = []persistence.MetricsRow{}
	}
	writeJSON(w, rows)
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if l := r.URL.Query().Get("limit"); l != "" {
		if n, err := strconv.Atoi(l); err == nil && n > 0 && n <= 500 {
			limit = n
		}
	}

	entries := s.Mgr.RecentActivity(limit)
	if category := r.URL.Query().Get("category"); category != "" {
		var filtered []engine.FeedEntry
		for _, e := range entries {
			if e.Category == category {
				filtered = append(filtered, e)
			}
		}
		entries = filtered
	}
	if entries == nil {
		entries = []engine.FeedEntry{}
	}
	writeJSON(w, entries)
}

// handleControl drives the lifecycle: {"action": "start"|"pause"|"stop"|"reset"|"step"}.
func (s *Server) handleControl(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req struct {
		Action string `json:"action"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}

	switch req.Action {
	case "start":
		s.Mgr.Start()
	case "pause":
		s.Mgr.Pause()
	case "stop":
		s.Mgr.Stop()
	case "reset":
		s.Mgr.Reset()
	case "step":
		s.Mgr.StepManual()
	default:
		http.Error(w, "unknown action", http.StatusBadRequest)
		return
	}
	slog.Info("control action", "action", req.Action, "tick", s.Mgr.Tick())
	writeJSON(w, map[string]any{"status": s.Mgr.Status(), "tick": s.Mgr.Tick()})
}

func (s *Server) handleSpeed(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodPost {
		var req struct {
			Speed float64 `json:"speed"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}
		if req.Speed < 0 || req.Speed > 1000 {
			http.Error(w, "speed must be 0-1000", http.StatusBadRequest)
			return
		}
		s.Runner.SetSpeed(req.Speed)
		slog.Info("speed changed", "speed", req.Speed)
	}
	writeJSON(w, map[string]float64{"speed": s.Runner.Speed()})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("response encoding failed", "error", err)
	}
}
