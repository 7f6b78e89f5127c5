package web

import (
	"context"
	"embed"
	"encoding/json"
	"fmt"
	"html/template"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/silver2dream/agent-arena/internal/battle"
	"github.com/silver2dream/agent-arena/internal/config"
	arenaerrors "github.com/silver2dream/agent-arena/internal/errors"
)

//go:embed dashboard.html
var templateFS embed.FS

// wsPushInterval is how often the websocket pushes a fresh snapshot.
const wsPushInterval = 500 * time.Millisecond

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // local dashboard, any origin may watch
	},
}

// Server hosts the battle dashboard: an HTML arena view, a JSON state poll
// endpoint, and a websocket push of the same snapshot.
type Server struct {
	router      *mux.Router
	state       *battle.State
	competitors []config.Competitor
	tmpl        *template.Template
	httpServer  *http.Server
	log         *zap.SugaredLogger
}

// NewServer builds the dashboard server for the given port.
func NewServer(port int, state *battle.State, competitors []config.Competitor, log *zap.SugaredLogger) (*Server, error) {
	tmpl, err := template.ParseFS(templateFS, "dashboard.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse dashboard template: %w", err)
	}

	s := &Server{
		router:      mux.NewRouter().StrictSlash(true),
		state:       state,
		competitors: competitors,
		tmpl:        tmpl,
		log:         log,
	}
	s.router.HandleFunc("/", s.handleIndex).Methods("GET")
	s.router.HandleFunc("/state", s.handleState).Methods("GET")
	s.router.HandleFunc("/ws", s.handleWebSocket)

	s.httpServer = &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: handlers.LoggingHandler(os.Stderr, s.router),
	}
	return s, nil
}

// Handler exposes the routed handler for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start binds the port and begins serving in the background. A bind failure
// is returned synchronously so startup can abort before the battle begins.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return arenaerrors.NewNetworkErrorWithCause(
			fmt.Sprintf("failed to bind dashboard on %s", s.httpServer.Addr), err)
	}
	go func() {
		if err := s.httpServer.Serve(ln); err != nil && err != http.ErrServerClosed {
			s.log.Errorw("dashboard server stopped", "error", err)
		}
	}()
	s.log.Infow("dashboard serving", "addr", s.httpServer.Addr)
	return nil
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

type dashboardData struct {
	Competitors []config.Competitor
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := s.tmpl.Execute(w, dashboardData{Competitors: s.competitors}); err != nil {
		s.log.Errorw("failed to render dashboard", "error", err)
	}
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(s.state.Snapshot()); err != nil {
		s.log.Errorw("failed to encode state", "error", err)
	}
}

// handleWebSocket pushes the battle snapshot on a fixed tick until the
// client goes away.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Debugw("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	// reader goroutine notices the client closing
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(wsPushInterval)
	defer ticker.Stop()
	for {
		select {
		case <-closed:
			return
		case <-ticker.C:
			if err := conn.WriteJSON(s.state.Snapshot()); err != nil {
				return
			}
		}
	}
}
