// Package server exposes a cache instance over HTTP: a small KV surface for
// operational poking plus the Prometheus metrics endpoint.
//
//	GET    /cache/{key}       → 200 {"key":..,"value":..} | 404
//	PUT    /cache/{key}       → 204; body {"value":.., "ttl":"10s"?}
//	DELETE /cache/{key}       → 204
//	GET    /cache/{key}/ttl   → 200 {"ttl_ms":..} (-1 no TTL, -2 missing)
//	POST   /clear             → 204
//	GET    /stats             → 200 {"entries":..}
//	GET    /metrics           → Prometheus exposition
package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"

	"github.com/tidemark-io/shoal"
)

// Option defines a functional option for configuring the server.
type Option func(*serverOptions)

type serverOptions struct {
	allowedOrigins []string
	registry       *prometheus.Registry
	logger         *slog.Logger
}

// WithAllowedOrigins configures the allowed origins for CORS. Empty means
// allow all.
func WithAllowedOrigins(origins []string) Option {
	return func(o *serverOptions) { o.allowedOrigins = origins }
}

// WithRegistry mounts /metrics for the given registry.
func WithRegistry(reg *prometheus.Registry) Option {
	return func(o *serverOptions) { o.registry = reg }
}

// WithLogger sets the request-failure logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *serverOptions) { o.logger = logger }
}

// NewHandler builds the full HTTP handler: routes, optional /metrics, and
// CORS.
func NewHandler(cache shoal.Cache, opts ...Option) http.Handler {
	options := &serverOptions{
		logger: slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(options)
	}

	mux := http.NewServeMux()
	h := &handler{cache: cache, logger: options.logger}

	mux.HandleFunc("GET /cache/{key}", h.get)
	mux.HandleFunc("PUT /cache/{key}", h.put)
	mux.HandleFunc("DELETE /cache/{key}", h.remove)
	mux.HandleFunc("GET /cache/{key}/ttl", h.ttl)
	mux.HandleFunc("POST /clear", h.clear)
	mux.HandleFunc("GET /stats", h.stats)

	if options.registry != nil {
		mux.Handle("GET /metrics", promhttp.HandlerFor(options.registry, promhttp.HandlerOpts{}))
	}

	if len(options.allowedOrigins) == 0 {
		return cors.AllowAll().Handler(mux)
	}
	return cors.New(cors.Options{
		AllowedOrigins: options.allowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPut, http.MethodPost, http.MethodDelete},
		MaxAge:         7200,
	}).Handler(mux)
}

// Run starts the HTTP server and blocks until the context is canceled or
// the listener fails.
func Run(ctx context.Context, address string, cache shoal.Cache, opts ...Option) error {
	srv := &http.Server{
		Addr:              address,
		Handler:           NewHandler(cache, opts...),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       time.Minute,
		WriteTimeout:      time.Minute,
		BaseContext: func(net.Listener) context.Context {
			return ctx
		},
	}

	listener, err := net.Listen("tcp", address)
	if err != nil {
		return err
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(listener)
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

type handler struct {
	cache  shoal.Cache
	logger *slog.Logger
}

// putRequest is the body of PUT /cache/{key}. TTL is optional and uses
// time.ParseDuration syntax.
type putRequest struct {
	Value any    `json:"value"`
	TTL   string `json:"ttl,omitempty"`
}

type keyValue struct {
	Key   string `json:"key"`
	Value any    `json:"value"`
}

func (h *handler) get(w http.ResponseWriter, r *http.Request) {
	key := r.PathValue("key")

	// Read-through: a configured Loader is consulted on miss.
	v, err := h.cache.Get(r.Context(), key)
	if err != nil {
		h.logger.Warn("cache get failed", "key", key, "error", err)
		http.Error(w, "backing store error", http.StatusBadGateway)
		return
	}
	if v == nil {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}

	writeJSON(w, http.StatusOK, keyValue{Key: key, Value: v})
}

func (h *handler) put(w http.ResponseWriter, r *http.Request) {
	key := r.PathValue("key")

	var req putRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}

	var ttl time.Duration
	if req.TTL != "" {
		var err error
		ttl, err = time.ParseDuration(req.TTL)
		if err != nil {
			http.Error(w, "invalid ttl", http.StatusBadRequest)
			return
		}
	}

	if err := h.cache.PutWithTTL(r.Context(), key, req.Value, ttl); err != nil {
		h.logger.Warn("cache put failed", "key", key, "error", err)
		http.Error(w, "write failed", http.StatusBadGateway)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *handler) remove(w http.ResponseWriter, r *http.Request) {
	h.cache.Remove(r.PathValue("key"))
	w.WriteHeader(http.StatusNoContent)
}

func (h *handler) ttl(w http.ResponseWriter, r *http.Request) {
	d := h.cache.TTL(r.PathValue("key"))

	var ms int64
	switch d {
	case shoal.TTLNone:
		ms = -1
	case shoal.TTLMissing:
		ms = -2
	default:
		ms = d.Milliseconds()
	}

	writeJSON(w, http.StatusOK, map[string]int64{"ttl_ms": ms})
}

func (h *handler) clear(w http.ResponseWriter, r *http.Request) {
	h.cache.Clear()
	w.WriteHeader(http.StatusNoContent)
}

func (h *handler) stats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]int{"entries": h.cache.Len()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
