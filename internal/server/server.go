// Package server implements the preview server: it expands source documents
// on request, pushes reload messages over a websocket when sources or
// components change, and overlays expansion errors on the page.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"path/filepath"
	"sync"
	"time"

	"github.com/coder/websocket"

	"github.com/conneroisu/tagforge/internal/build"
	"github.com/conneroisu/tagforge/internal/config"
	"github.com/conneroisu/tagforge/internal/engine"
	"github.com/conneroisu/tagforge/internal/errors"
	"github.com/conneroisu/tagforge/internal/logging"
	"github.com/conneroisu/tagforge/internal/watcher"
)

// Client represents a WebSocket client
type Client struct {
	conn   *websocket.Conn
	send   chan []byte
	server *PreviewServer
}

// PreviewServer serves expanded documents with live reload.
type PreviewServer struct {
	config      *config.Config
	engine      *engine.Engine
	processor   *build.Processor
	logger      logging.Logger
	httpServer  *http.Server
	serverMutex sync.RWMutex

	clients      map[*websocket.Conn]*Client
	clientsMutex sync.RWMutex
	broadcast    chan []byte
	register     chan *Client
	unregister   chan *websocket.Conn
	done         chan struct{}

	watcher *watcher.FileWatcher

	components string
	src        string

	// errs holds the latest expansion failure per document.
	errs      map[string]errors.BuildError
	errsMutex sync.RWMutex

	shutdownOnce sync.Once
}

// UpdateMessage represents a message sent to the browser
type UpdateMessage struct {
	Type      string    `json:"type"`
	Target    string    `json:"target,omitempty"`
	Content   string    `json:"content,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Message types pushed to browsers.
const (
	MessageFullReload = "full_reload"
	MessageError      = "build_error"
)

// New creates a preview server for cfg expanding documents with eng.
func New(cfg *config.Config, eng *engine.Engine, logger logging.Logger) *PreviewServer {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	logger = logger.WithComponent("server")

	return &PreviewServer{
		config:     cfg,
		engine:     eng,
		processor:  build.NewProcessor(eng, cfg.ProcessorOptions(logger)),
		logger:     logger,
		clients:    make(map[*websocket.Conn]*Client),
		broadcast:  make(chan []byte),
		register:   make(chan *Client),
		unregister: make(chan *websocket.Conn),
		done:       make(chan struct{}),
		components: absPath(eng.Options().ComponentsFolder),
		src:        absPath(cfg.Build.Src),
		errs:       make(map[string]errors.BuildError),
	}
}

func absPath(p string) string {
	if abs, err := filepath.Abs(p); err == nil {
		return abs
	}

	return filepath.Clean(p)
}

// Handler returns the server's routes.
func (s *PreviewServer) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWebSocket)
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/api/components", s.handleComponents)
	mux.HandleFunc("/api/errors", s.handleErrors)
	mux.HandleFunc("/api/render", s.handleRender)
	mux.HandleFunc("/", s.handleDocument)

	return s.addMiddleware(mux)
}

// Start watches the sources, runs the websocket hub and serves HTTP on the
// configured address until ctx is cancelled or Shutdown is called.
func (s *PreviewServer) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.config.Address())
	if err != nil {
		return errors.NewIOError(errors.ErrCodeIO, "listening on "+s.config.Address(), err)
	}

	return s.Serve(ctx, ln)
}

// Serve is Start on an existing listener.
func (s *PreviewServer) Serve(ctx context.Context, ln net.Listener) error {
	if err := s.setupFileWatcher(ctx); err != nil {
		s.logger.Warn(ctx, err, "live reload disabled")
	}

	go s.runWebSocketHub(ctx)

	s.serverMutex.Lock()
	s.httpServer = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	server := s.httpServer
	s.serverMutex.Unlock()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.Shutdown(shutdownCtx)
	}()

	s.logger.Info(ctx, "preview server listening", "addr", ln.Addr().String())
	if err := server.Serve(ln); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server error: %w", err)
	}

	return nil
}

func (s *PreviewServer) setupFileWatcher(ctx context.Context) error {
	fw, err := watcher.NewFileWatcher(s.config.Watch.Debounce, s.logger)
	if err != nil {
		return err
	}

	fw.AddFilter(watcher.NoHiddenFilter)
	fw.AddFilter(watcher.NoGitFilter)
	fw.AddHandler(s.handleFileChange)

	for _, root := range []string{s.src, s.components} {
		if err := fw.AddRecursive(root); err != nil {
			s.logger.Warn(ctx, err, "failed to watch path", "path", root)
		}
	}

	if err := fw.Start(ctx); err != nil {
		_ = fw.Stop()

		return err
	}
	s.watcher = fw

	return nil
}

// handleFileChange drops the engine caches when a component changed and
// tells every browser to reload.
func (s *PreviewServer) handleFileChange(events []watcher.ChangeEvent) error {
	components := false
	for _, event := range events {
		rel, err := filepath.Rel(s.components, absPath(event.Path))
		if err == nil && filepath.IsLocal(rel) {
			components = true
		}
		s.logger.Debug(context.Background(), "file changed", "path", event.Path, "type", event.Type.String())
	}

	if components {
		s.engine.ResetVocabulary()
		s.engine.ResetTemplateCache()
	}

	s.broadcastMessage(UpdateMessage{Type: MessageFullReload, Timestamp: time.Now()})

	return nil
}

func (s *PreviewServer) addMiddleware(handler http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("Cache-Control", "no-store")

		start := time.Now()
		handler.ServeHTTP(w, r)
		s.logger.Debug(r.Context(), "request", "method", r.Method, "path", r.URL.Path,
			"duration", time.Since(start).String())
	})
}

func (s *PreviewServer) broadcastMessage(msg UpdateMessage) {
	jsonData, err := json.Marshal(msg)
	if err != nil {
		s.logger.Error(context.Background(), err, "failed to marshal message")
		jsonData = []byte(`{"type":"full_reload"}`)
	}

	select {
	case s.broadcast <- jsonData:
	case <-s.done:
	}
}

// ClientCount reports the connected websocket clients.
func (s *PreviewServer) ClientCount() int {
	s.clientsMutex.RLock()
	defer s.clientsMutex.RUnlock()

	return len(s.clients)
}

func (s *PreviewServer) recordError(rel string, err error) {
	s.errsMutex.Lock()
	defer s.errsMutex.Unlock()

	if err == nil {
		delete(s.errs, rel)

		return
	}
	be := errors.NewBuildErrorFromError(rel, err)
	be.Timestamp = time.Now()
	s.errs[rel] = be
}

// LastErrors returns the latest failure of every document that currently
// fails to expand.
func (s *PreviewServer) LastErrors() []errors.BuildError {
	s.errsMutex.RLock()
	defer s.errsMutex.RUnlock()

	out := make([]errors.BuildError, 0, len(s.errs))
	for _, be := range s.errs {
		out = append(out, be)
	}
	sortBuildErrors(out)

	return out
}

// Shutdown gracefully shuts down the server and cleans up resources
func (s *PreviewServer) Shutdown(ctx context.Context) error {
	var shutdownErr error

	s.shutdownOnce.Do(func() {
		s.logger.Info(ctx, "shutting down preview server")
		close(s.done)

		if s.watcher != nil {
			_ = s.watcher.Stop()
		}

		s.clientsMutex.Lock()
		for conn, client := range s.clients {
			close(client.send)
			conn.Close(websocket.StatusGoingAway, "server shutting down")
		}
		s.clients = make(map[*websocket.Conn]*Client)
		s.clientsMutex.Unlock()

		s.serverMutex.RLock()
		server := s.httpServer
		s.serverMutex.RUnlock()

		if server != nil {
			shutdownErr = server.Shutdown(ctx)
		}
	})

	return shutdownErr
}
