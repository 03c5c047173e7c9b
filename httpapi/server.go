package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"pkt.systems/conch/internal/consoles"
	"pkt.systems/conch/internal/version"
	"pkt.systems/pslog"
)

const shutdownTimeout = 5 * time.Second

const defaultReadLimit = 512 * 1024

// Consoles opens one console per websocket connection.
type Consoles interface {
	Open(ctx context.Context) (*consoles.Session, error)
}

// Server serves the console websocket endpoint.
type Server struct {
	cfg      Config
	consoles Consoles
	upgrader websocket.Upgrader
	basePath string
	baseCtx  context.Context
}

// NewServer constructs an HTTP server.
func NewServer(cfg Config, factory Consoles) *Server {
	if cfg.ReadLimit <= 0 {
		cfg.ReadLimit = defaultReadLimit
	}
	s := &Server{
		cfg:      cfg,
		consoles: factory,
		basePath: normalizeBasePath(cfg.BasePath),
		baseCtx:  context.Background(),
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin:     s.checkOrigin,
	}
	return s
}

// SetBaseContext sets the parent context for console sessions.
func (s *Server) SetBaseContext(ctx context.Context) {
	if s == nil || ctx == nil {
		return
	}
	s.baseCtx = ctx
}

// Handler returns an http.Handler for the server.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.HandleFunc("/api/version", s.handleVersion)
	mux.HandleFunc("/api/console", s.handleConsole)

	return mountBasePath(s.basePath, withRequestLogging(mux, profileFromRequest))
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, version.Read())
}

// checkOrigin accepts requests without an Origin header, same-host origins
// and the configured allow list.
func (s *Server) checkOrigin(r *http.Request) bool {
	origin := strings.TrimSpace(r.Header.Get("Origin"))
	if origin == "" {
		return true
	}
	for _, allowed := range s.cfg.AllowedOrigins {
		allowed = strings.TrimSpace(allowed)
		if allowed == "*" || strings.EqualFold(strings.TrimRight(allowed, "/"), origin) {
			return true
		}
	}
	if base := strings.TrimRight(strings.TrimSpace(s.cfg.BaseURL), "/"); base != "" && strings.HasPrefix(base, origin) {
		return true
	}
	host := origin
	if i := strings.Index(host, "://"); i >= 0 {
		host = host[i+3:]
	}
	return strings.EqualFold(host, r.Host)
}

func profileFromRequest(r *http.Request) string {
	if r == nil {
		return ""
	}
	return strings.TrimSpace(r.URL.Query().Get("profile"))
}

func writeJSON(w http.ResponseWriter, status int, value any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(value); err != nil {
		pslog.Ctx(context.Background()).Debug("http response encode failed", "err", err)
	}
}
