package remote

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/vango-dev/ctrlbind/pkg/controller"
	"github.com/vango-dev/ctrlbind/pkg/middleware"
	"github.com/vango-dev/ctrlbind/pkg/view"
)

// Config configures a Host.
type Config struct {
	// Engine attaches controllers to session trees.
	// Default: controller.Default().
	Engine *controller.Engine

	// Tree builds the element tree of a new session. The returned root
	// usually carries the session's data context. Required.
	Tree func(r *http.Request) (*view.Node, error)

	// WSPath is the WebSocket endpoint path. Default: "/ws".
	WSPath string

	// MetricsPath serves Prometheus metrics when non-empty.
	MetricsPath string

	// Gatherer is the metrics source for MetricsPath.
	// Default: prometheus.DefaultGatherer.
	Gatherer prometheus.Gatherer

	// ReadTimeout closes connections silent for longer. Default: 60s.
	ReadTimeout time.Duration

	// ShutdownTimeout bounds Shutdown. Default: 10s.
	ShutdownTimeout time.Duration

	// CheckOrigin validates the WebSocket handshake origin.
	// Default: same-origin only.
	CheckOrigin func(r *http.Request) bool

	// Logger receives connection and frame errors.
	// Default: the engine's logger.
	Logger *slog.Logger
}

// Host serves element trees over WebSocket. Each connection gets its own
// tree, enabled on the engine, and drives it with frames.
type Host struct {
	config   Config
	engine   *controller.Engine
	router   chi.Router
	upgrader websocket.Upgrader
	logger   *slog.Logger

	mu         sync.Mutex
	sessions   map[*session]struct{}
	closing    bool
	httpServer *http.Server

	// active counts sessions whose read loop has not finished tearing
	// down the tree.
	active sync.WaitGroup
}

// New creates a Host.
func New(config Config) *Host {
	if config.Engine == nil {
		config.Engine = controller.Default()
	}
	if config.WSPath == "" {
		config.WSPath = "/ws"
	}
	if config.Gatherer == nil {
		config.Gatherer = prometheus.DefaultGatherer
	}
	if config.ReadTimeout <= 0 {
		config.ReadTimeout = 60 * time.Second
	}
	if config.ShutdownTimeout <= 0 {
		config.ShutdownTimeout = 10 * time.Second
	}
	if config.Logger == nil {
		config.Logger = config.Engine.Logger()
	}

	h := &Host{
		config: config,
		engine: config.Engine,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     config.CheckOrigin,
		},
		logger:   config.Logger.With(slog.String("component", "remote")),
		sessions: make(map[*session]struct{}),
	}

	r := chi.NewRouter()
	r.Use(chimw.Recoverer)
	r.Get("/healthz", h.handleHealth)
	r.Get(config.WSPath, h.handleWebSocket)
	if config.MetricsPath != "" {
		r.Method(http.MethodGet, config.MetricsPath,
			promhttp.HandlerFor(config.Gatherer, promhttp.HandlerOpts{}))
	}
	h.router = r
	return h
}

// Handler returns the HTTP handler of the host.
func (h *Host) Handler() http.Handler {
	return h.router
}

// ServeHTTP implements http.Handler.
func (h *Host) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.router.ServeHTTP(w, r)
}

// SessionCount returns the number of open sessions.
func (h *Host) SessionCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.sessions)
}

// ListenAndServe serves on addr until ctx is done, then shuts down.
func (h *Host) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
	}
	h.mu.Lock()
	h.httpServer = srv
	h.mu.Unlock()

	errCh := make(chan error, 1)
	go func() {
		h.logger.Info("host starting", slog.String("address", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		h.logger.Info("shutting down...")
		return h.Shutdown(context.Background())
	}
}

// Shutdown interrupts every session, waits until each has released its
// tree, and stops the HTTP server. Trees are always unloaded by the
// goroutine serving their session.
func (h *Host) Shutdown(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, h.config.ShutdownTimeout)
	defer cancel()

	h.mu.Lock()
	h.closing = true
	sessions := make([]*session, 0, len(h.sessions))
	for s := range h.sessions {
		sessions = append(sessions, s)
	}
	srv := h.httpServer
	h.mu.Unlock()

	for _, s := range sessions {
		s.interrupt()
	}

	released := make(chan struct{})
	go func() {
		h.active.Wait()
		close(released)
	}()
	select {
	case <-released:
	case <-ctx.Done():
		h.logger.Error("sessions still open at shutdown", slog.Int("sessions", h.SessionCount()))
		return ctx.Err()
	}

	if srv != nil {
		if err := srv.Shutdown(ctx); err != nil {
			h.logger.Error("shutdown error", slog.Any("error", err))
			return err
		}
	}
	h.logger.Info("host shutdown complete")
	return nil
}

func (h *Host) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"status":   "ok",
		"sessions": h.SessionCount(),
	})
}

func (h *Host) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	if h.isClosing() {
		http.Error(w, "shutting down", http.StatusServiceUnavailable)
		return
	}
	if h.config.Tree == nil {
		http.Error(w, "no tree factory", http.StatusInternalServerError)
		return
	}
	tree, err := h.config.Tree(r)
	if err != nil {
		h.logger.Error("tree factory failed", slog.Any("error", err))
		http.Error(w, "cannot create session", http.StatusInternalServerError)
		return
	}
	if err := h.engine.Enable(tree); err != nil {
		h.logger.Error("enable failed", slog.Any("error", err))
		http.Error(w, "cannot create session", http.StatusInternalServerError)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		_ = h.engine.Disable(tree)
		return
	}

	s := newSession(h, conn, tree)
	h.mu.Lock()
	if h.closing {
		h.mu.Unlock()
		s.close()
		return
	}
	h.sessions[s] = struct{}{}
	h.active.Add(1)
	h.mu.Unlock()
	middleware.RecordSessionOpen()

	s.readLoop()

	h.mu.Lock()
	delete(h.sessions, s)
	h.mu.Unlock()
	middleware.RecordSessionClose()
	h.active.Done()
}

func (h *Host) isClosing() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.closing
}
