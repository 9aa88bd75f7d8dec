// Package admin exposes the firmware core's diagnostics surface: component
// health, Error Manager counters/snapshot, and per-transport session state,
// served over REST (spec.md §4.5's health level plus the supplemented Error
// Manager snapshot, surfaced here). A gRPC server is started, but with the
// fallbacks in fallback.go it has no diagnostics service registered.
package admin

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"

	"github.com/valveguard/corectl/internal/errmgr"
	"github.com/valveguard/corectl/internal/observability"
)

// SessionView is a read-only snapshot of one transport's Security1 state,
// keyed by an admin-assigned session id (distinct from the wire frame_id,
// per SPEC_FULL.md §2's ID note).
type SessionView struct {
	ID        string `json:"id"`
	Transport string `json:"transport"`
	State     string `json:"state"`
}

// SessionProvider is implemented by whatever owns the live transports, so
// admin never has to import the transport packages directly.
type SessionProvider func() []SessionView

// Server wires the Error Manager and live session state to HTTP handlers.
type Server struct {
	errs     *errmgr.Manager
	sessions SessionProvider
	log      *observability.Logger
}

// New creates an admin Server.
func New(errs *errmgr.Manager, sessions SessionProvider, log *observability.Logger) *Server {
	return &Server{errs: errs, sessions: sessions, log: log.WithComponent("admin")}
}

// RegisterHTTP registers the diagnostics REST routes on mux.
func (s *Server) RegisterHTTP(mux *http.ServeMux) {
	mux.HandleFunc("/api/v1/health", s.handleHealthSnapshot)
	mux.HandleFunc("/api/v1/sessions", s.handleSessions)
}

// handleHealthSnapshot surfaces errmgr.Manager.HealthSnapshot(), the
// supplemented system-health-snapshot feature (SPEC_FULL.md §4).
func (s *Server) handleHealthSnapshot(w http.ResponseWriter, r *http.Request) {
	snap := s.errs.HealthSnapshot()
	writeJSON(w, http.StatusOK, snap)
}

func (s *Server) handleSessions(w http.ResponseWriter, r *http.Request) {
	var sessions []SessionView
	if s.sessions != nil {
		sessions = s.sessions()
	}
	for i := range sessions {
		if sessions[i].ID == "" {
			sessions[i].ID = uuid.NewString()
		}
	}
	writeJSON(w, http.StatusOK, sessions)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
