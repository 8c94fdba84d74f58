package gameserver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/udisondev/idlemine/internal/config"
)

const (
	// handlerTimeout bounds each storage call made on behalf of a client request.
	handlerTimeout  = 10 * time.Second
	shutdownTimeout = 5 * time.Second
)

// Server serves the websocket game channel and the REST API.
type Server struct {
	cfg       config.Server
	processor ActionProcessor
	clients   *ClientManager
	tokens    TokenService
	logins    LoginValidator
	accounts  AccountStore

	upgrader websocket.Upgrader

	listener net.Listener
	mu       sync.Mutex
}

// NewServer creates a new game server.
func NewServer(cfg config.Server, processor ActionProcessor, clients *ClientManager, tokens TokenService, logins LoginValidator, accounts AccountStore) *Server {
	s := &Server{
		cfg:       cfg,
		processor: processor,
		clients:   clients,
		tokens:    tokens,
		logins:    logins,
		accounts:  accounts,
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     s.checkOrigin,
	}
	return s
}

// Addr returns the address the server is listening on.
// Returns nil if the server hasn't started yet.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// ClientManager returns the connection registry.
func (s *Server) ClientManager() *ClientManager {
	return s.clients
}

// Run listens on cfg.BindAddress:cfg.Port and serves until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.cfg.BindAddress, s.cfg.Port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections from ln until ctx is cancelled, then shuts down
// HTTP, cancels all tick tasks and closes all websockets.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	s.mu.Lock()
	s.listener = ln
	s.mu.Unlock()

	httpSrv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := httpSrv.Shutdown(shutdownCtx); err != nil {
			slog.Warn("http shutdown", "error", err)
		}
		if err := s.clients.Shutdown(shutdownCtx); err != nil {
			slog.Warn("client manager shutdown", "error", err)
		}
	}()

	slog.Info("game server started", "address", ln.Addr())
	err := httpSrv.Serve(ln)
	if !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serving http: %w", err)
	}

	<-stopped
	return nil
}

// Handler returns the HTTP routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /ws", s.handleWebSocket)
	mux.HandleFunc("GET /api/ores", s.handleOres)
	mux.HandleFunc("GET /api/mining/status", s.handleMiningStatus)
	mux.HandleFunc("POST /api/mining/start", s.handleMiningStart)
	mux.HandleFunc("POST /api/mining/stop", s.handleMiningStop)
	mux.HandleFunc("POST /auth/telegram", s.handleTelegramAuth)
	return s.withCORS(mux)
}

func (s *Server) originAllowed(origin string) bool {
	if len(s.cfg.AllowedOrigins) == 0 || slices.Contains(s.cfg.AllowedOrigins, "*") {
		return true
	}
	return slices.Contains(s.cfg.AllowedOrigins, origin)
}

func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	return s.originAllowed(origin)
}

func (s *Server) withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin != "" && s.originAllowed(origin) {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Credentials", "true")
			w.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type")
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Add("Vary", "Origin")
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
