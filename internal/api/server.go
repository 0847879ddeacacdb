// Package api exposes the Control API and the Stream Bridge (spec.md §4.3,
// §4.5) over HTTP.
package api

import (
	"bufio"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"

	"github.com/serialmux/serialmux/internal/serial"
)

// Server is the HTTP surface in front of a Registry. Construct one with
// NewServer and pass its Handler to http.Server.
type Server struct {
	registry *serial.Registry
	logger   *log.Logger
	router   chi.Router
}

// NewServer builds the router: health check, static file serving, and the
// five connection endpoints of spec.md §4.5.
func NewServer(registry *serial.Registry, logger *log.Logger) *Server {
	s := &Server{registry: registry, logger: logger}

	r := chi.NewRouter()
	r.Use(loggingMiddleware(logger))
	r.Use(permissiveCORS)

	r.Get("/health", s.handleHealth)
	r.Get("/", s.handleIndex)
	r.Get("/static/*", s.handleStatic)

	r.Route("/api/connections", func(r chi.Router) {
		r.Get("/", s.handleListConnections)
		r.Get("/{name}", s.handleGetConnection)
		r.Post("/{name}/send", s.handleSend)
		r.Get("/{name}/stats", s.handleStats)
		r.Get("/{name}/ws", s.handleWebsocket)
	})

	s.router = r
	return s
}

// Handler returns the http.Handler to pass to http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	http.ServeFile(w, r, "static/index.html")
}

func (s *Server) handleStatic(w http.ResponseWriter, r *http.Request) {
	http.StripPrefix("/static/", http.FileServer(http.Dir("static"))).ServeHTTP(w, r)
}

// permissiveCORS mirrors the teacher's hand-written middleware style: a
// small func(http.Handler) http.Handler, not a dependency, reflecting
// spec.md §6's "CORS permissive (all origins)".
func permissiveCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

type loggingResponseWriter struct {
	http.ResponseWriter
	status int
}

func (w *loggingResponseWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

// Hijack passes through to the wrapped writer so the websocket upgrade works
// behind loggingMiddleware.
func (w *loggingResponseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("api: response writer does not support hijacking")
	}
	return h.Hijack()
}

func loggingMiddleware(logger *log.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			lw := &loggingResponseWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(lw, r)
			logger.Debug("request", "method", r.Method, "path", r.URL.Path,
				"status", lw.status, "duration", time.Since(start))
		})
	}
}
