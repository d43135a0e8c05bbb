package api

import (
	"net/http"
	"os"
	"time"

	"github.com/SophiaYifei/milk-bank-route-optimization/internal/buildinfo"
)

// DebugJSON reports build and runtime configuration for diagnostics.
func (s *Server) DebugJSON(w http.ResponseWriter, r *http.Request) {
	pr := s.getPrincipal(r)
	if !pr.IsAdmin() {
		writeProblem(w, http.StatusForbidden, "Forbidden", "admin required", r.URL.Path)
		return
	}
	info := map[string]any{
		"build": buildinfo.Info(),
		"time":  time.Now().UTC().Format(time.RFC3339),
		"config": map[string]any{
			"PORT":                 s.Cfg.Port,
			"AUTH_MODE":            os.Getenv("AUTH_MODE"),
			"RATE_RPS":             s.Cfg.RateRPS,
			"RATE_BURST":           s.Cfg.RateBurst,
			"WEBHOOK_MAX_ATTEMPTS": s.Cfg.WebhookMaxAttempts,
			"SOLVER_BACKEND":       s.Cfg.Planner.Solver.Backend,
			"HAS_DATABASE_URL":     s.Cfg.DatabaseURL != "",
			"HAS_REDIS_URL":        s.Cfg.RedisURL != "",
		},
	}
	writeJSON(w, http.StatusOK, info)
}
