package httphandler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/niksmo/inventory/internal/core/port"
)

const requestTimeout = 15 * time.Second

type HTTPServer struct {
	httpServer *http.Server
}

// NewHTTPServer wraps handler with the request timeout. Remote catalog calls
// are bounded by it as well, since they run on the request context.
func NewHTTPServer(addr string, handler http.Handler) HTTPServer {
	handler = http.TimeoutHandler(handler, requestTimeout, `{"error":"unavailable"}`)
	s := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       30 * time.Second,
	}
	return HTTPServer{s}
}

// Run serves until the server is closed. A closed server is not an error.
func (s HTTPServer) Run() error {
	const op = "HTTPServer.Run"
	log := slog.With("op", op)

	log.Info("http server is listening", "addr", s.httpServer.Addr)
	err := s.httpServer.ListenAndServe()
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Error("unexpected servers shutdown", "err", err)
		return err
	}
	return nil
}

func (s HTTPServer) Close(ctx context.Context) {
	const op = "HTTPServer.Close"
	log := slog.With("op", op)

	log.Info("closing http server...")

	err := s.httpServer.Shutdown(ctx)
	if err != nil {
		log.Error("failed to shutdown gracefully", "err", err)
	}
	log.Info("http server is closed")
}

// NewHandler returns the routed and wrapped dispatch surface.
func NewHandler(store port.ProductsStore) http.Handler {
	mux := http.NewServeMux()
	RegisterProducts(mux, store)
	return LogRequests(AllowJSON(mux))
}
