package api

import (
	"context"
	"fmt"
	"net/http"

	"github.com/harpy-platform/harpy-core/internal/fusion"
	"github.com/harpy-platform/harpy-core/internal/metrics"
	"github.com/harpy-platform/harpy-core/internal/relay"
	"github.com/harpy-platform/harpy-core/internal/store"
)

// Server wraps the HTTP server and mux for HARPY's external interface.
type Server struct {
	httpServer *http.Server
	mux        *http.ServeMux
}

// NewServer creates a new HTTP server wired with every route named in the
// external interface: health, metrics, the WebSocket upgrade, seek, and the
// supplemented fusion-rules operational endpoint. If stateRepo/deltaRepo is
// nil, GET /seek always answers DB_UNAVAILABLE.
func NewServer(
	port int,
	hub *relay.Hub,
	engine *fusion.Engine,
	stateRepo *store.StateRepo,
	deltaRepo *store.DeltaRepo,
	collectors *metrics.Collectors,
) *Server {
	mux := http.NewServeMux()

	mux.Handle("GET /health", HandleHealth())
	mux.Handle("GET /metrics", HandleMetrics(collectors))
	mux.Handle("GET /ws", HandleWebSocket(hub))
	mux.Handle("GET /seek", HandleSeek(stateRepo, deltaRepo))
	mux.Handle("GET /api/v1/fusion/rules", HandleFusionRules(engine))

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: mux,
	}

	return &Server{httpServer: srv, mux: mux}
}

// ListenAndServe starts the HTTP server. It blocks until the server stops.
func (s *Server) ListenAndServe() error {
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// Handler returns the underlying http.Handler, used by tests.
func (s *Server) Handler() http.Handler {
	return s.mux
}
