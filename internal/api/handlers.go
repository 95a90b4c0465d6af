// Package api provides the HTTP interface for Herald.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/darshan-rambhia/herald/internal/cache"
	"github.com/darshan-rambhia/herald/internal/model"
	"github.com/darshan-rambhia/herald/internal/notify"
	"github.com/darshan-rambhia/herald/internal/store"
	"github.com/darshan-rambhia/herald/templates"
	httpSwagger "github.com/swaggo/http-swagger"

	_ "github.com/darshan-rambhia/herald/docs/swagger"
)

const maxRequestBytes = 1 << 20

// Server is the HTTP server for Herald.
type Server struct {
	dispatcher *notify.Dispatcher
	store      *store.Store
	stats      *cache.Cache
	mux        *http.ServeMux
	server     *http.Server
}

// NewServer creates a new HTTP server. stats may be nil.
func NewServer(addr string, d *notify.Dispatcher, s *store.Store, stats *cache.Cache) *Server {
	srv := &Server{
		dispatcher: d,
		store:      s,
		stats:      stats,
		mux:        http.NewServeMux(),
	}

	srv.registerRoutes()

	srv.server = &http.Server{
		Addr:         addr,
		Handler:      SecurityHeadersMiddleware(RecoveryMiddleware(LoggingMiddleware(maxBodyMiddleware(maxRequestBytes, srv.mux)))),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return srv
}

// Handler returns the server's root handler.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// Run starts the HTTP server. It blocks until the context is cancelled.
func (s *Server) Run(ctx context.Context) error {
	slog.Info("HTTP server starting", "addr", s.server.Addr)

	errCh := make(chan error, 1)
	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		slog.Info("HTTP server shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.server.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

func (s *Server) registerRoutes() {
	// Dispatch
	s.mux.HandleFunc("POST /api/notify", s.handleNotifySystem)
	s.mux.HandleFunc("POST /api/notify/test", s.handleNotifyTest)
	s.mux.HandleFunc("POST /api/users/{id}/notify", s.handleNotifyUser)

	// Per-user notification mode
	s.mux.HandleFunc("GET /api/users/{id}/notification", s.handleGetUserNotification)
	s.mux.HandleFunc("PUT /api/users/{id}/notification", s.handlePutUserNotification)
	s.mux.HandleFunc("DELETE /api/users/{id}/notification", s.handleDeleteUserNotification)

	s.mux.HandleFunc("GET /api/channels", s.handleChannels)
	s.mux.HandleFunc("GET /api/stats", s.handleStats)

	// Health check
	s.mux.HandleFunc("GET /healthz", s.handleHealthz)

	// Swagger UI
	s.mux.Handle("GET /swagger/", httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
	))
}

// writeJSON marshals v to JSON into a buffer first, then writes it to the
// response. This ensures marshalling errors can be returned as a proper 500.
func writeJSON(w http.ResponseWriter, r *http.Request, v any) {
	writeJSONStatus(w, r, http.StatusOK, v)
}

func writeJSONStatus(w http.ResponseWriter, r *http.Request, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		slog.Error("encoding JSON response", "path", r.URL.Path, "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := w.Write(data); err != nil {
		// Client disconnected after headers sent, nothing to recover.
		slog.Debug("writing JSON response", "path", r.URL.Path, "error", err)
	}
}

type errorResponse struct {
	Error string `json:"error"`
}

// writeError maps dispatch and request errors to a status code. Provider and
// transport failures carry the provider's own diagnostic.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		validation *notify.ValidationError
		provider   *notify.ProviderError
		transport  *notify.TransportError
		badRequest *requestError
	)
	status := http.StatusInternalServerError
	switch {
	case errors.As(err, &validation), errors.As(err, &badRequest):
		status = http.StatusBadRequest
	case errors.As(err, &provider), errors.As(err, &transport):
		status = http.StatusBadGateway
	case errors.Is(err, store.ErrNotFound):
		status = http.StatusNotFound
	}
	if status >= http.StatusInternalServerError {
		slog.Warn("request failed", "path", r.URL.Path, "status", status, "error", templates.Truncate(err.Error(), 512))
	}
	writeJSONStatus(w, r, status, errorResponse{Error: err.Error()})
}

type requestError struct {
	msg string
}

func (e *requestError) Error() string { return e.msg }

func badRequest(msg string) error { return &requestError{msg: msg} }

type notifyRequest struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

type testNotifyRequest struct {
	Config  model.ChannelConfig `json:"config" swaggertype:"object"`
	Title   string              `json:"title"`
	Content string              `json:"content"`
}

type notifyResponse struct {
	Delivered bool `json:"delivered"`
}

func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(v); err != nil {
		return badRequest("invalid JSON body: " + err.Error())
	}
	return nil
}

func (s *Server) respondDispatch(w http.ResponseWriter, r *http.Request, delivered bool, err error) {
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, notifyResponse{Delivered: delivered})
}

// @Summary Send a system notification
// @Description Delivers title/content through the system notification channel
// @Accept json
// @Produce json
// @Param body body notifyRequest true "Message"
// @Success 200 {object} notifyResponse
// @Failure 400 {object} errorResponse
// @Failure 502 {object} errorResponse
// @Router /api/notify [post]
func (s *Server) handleNotifySystem(w http.ResponseWriter, r *http.Request) {
	var req notifyRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	delivered, err := s.dispatcher.NotifySystem(r.Context(), req.Title, req.Content)
	s.respondDispatch(w, r, delivered, err)
}

// @Summary Send a user notification
// @Description Delivers title/content through the user's stored notification mode
// @Accept json
// @Produce json
// @Param id path string true "User ID"
// @Param body body notifyRequest true "Message"
// @Success 200 {object} notifyResponse
// @Failure 400 {object} errorResponse
// @Failure 502 {object} errorResponse
// @Router /api/users/{id}/notify [post]
func (s *Server) handleNotifyUser(w http.ResponseWriter, r *http.Request) {
	var req notifyRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	delivered, err := s.dispatcher.NotifyUser(r.Context(), r.PathValue("id"), req.Title, req.Content)
	s.respondDispatch(w, r, delivered, err)
}

// @Summary Test a notification mode
// @Description Delivers title/content through a caller-supplied channel configuration
// @Accept json
// @Produce json
// @Param body body testNotifyRequest true "Channel configuration and message"
// @Success 200 {object} notifyResponse
// @Failure 400 {object} errorResponse
// @Failure 502 {object} errorResponse
// @Router /api/notify/test [post]
func (s *Server) handleNotifyTest(w http.ResponseWriter, r *http.Request) {
	var req testNotifyRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	delivered, err := s.dispatcher.TestNotify(r.Context(), req.Config, req.Title, req.Content)
	s.respondDispatch(w, r, delivered, err)
}

// @Summary Get a user's notification mode
// @Description Credential parameters are masked
// @Produce json
// @Param id path string true "User ID"
// @Success 200 {object} model.UserNotification
// @Failure 404 {object} errorResponse
// @Router /api/users/{id}/notification [get]
func (s *Server) handleGetUserNotification(w http.ResponseWriter, r *http.Request) {
	n, err := s.store.UserNotification(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, redacted(n))
}

// redacted masks credentials before a stored mode leaves the process.
func redacted(n model.UserNotification) model.UserNotification {
	n.Config = notify.Redact(n.Config)
	return n
}

// @Summary Set a user's notification mode
// @Description Stores a flat {type, ...params} channel configuration for the user
// @Accept json
// @Produce json
// @Param id path string true "User ID"
// @Param body body object true "Channel configuration"
// @Success 200 {object} model.UserNotification
// @Failure 400 {object} errorResponse
// @Router /api/users/{id}/notification [put]
func (s *Server) handlePutUserNotification(w http.ResponseWriter, r *http.Request) {
	var cfg model.ChannelConfig
	if err := decodeJSON(r, &cfg); err != nil {
		writeError(w, r, err)
		return
	}
	if !cfg.Configured() {
		writeError(w, r, badRequest("type is required"))
		return
	}
	if !s.dispatcher.Supports(cfg.Type) {
		writeError(w, r, badRequest("unknown channel type "+string(cfg.Type)))
		return
	}

	id := r.PathValue("id")
	prev, err := s.store.NotificationMode(r.Context(), id)
	switch {
	case err == nil:
		cfg = keepRedacted(cfg, prev)
	case !errors.Is(err, store.ErrNotFound):
		writeError(w, r, err)
		return
	}
	if err := s.store.SetNotificationMode(r.Context(), id, cfg); err != nil {
		writeError(w, r, err)
		return
	}
	n, err := s.store.UserNotification(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, redacted(n))
}

// keepRedacted puts back stored secrets that a client echoed as the mask
// it received from GET. Only applies when the channel type is unchanged.
func keepRedacted(cfg, prev model.ChannelConfig) model.ChannelConfig {
	if cfg.Type != prev.Type {
		return cfg
	}
	for k, v := range cfg.Params {
		if v == notify.RedactedValue && notify.IsSecretParam(k) {
			if old, ok := prev.Params[k]; ok {
				cfg.Params[k] = old
			}
		}
	}
	return cfg
}

// @Summary Delete a user's notification mode
// @Param id path string true "User ID"
// @Success 204
// @Failure 404 {object} errorResponse
// @Router /api/users/{id}/notification [delete]
func (s *Server) handleDeleteUserNotification(w http.ResponseWriter, r *http.Request) {
	if err := s.store.DeleteNotificationMode(r.Context(), r.PathValue("id")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// @Summary List channel types
// @Produce json
// @Success 200 {object} map[string][]string
// @Router /api/channels [get]
func (s *Server) handleChannels(w http.ResponseWriter, r *http.Request) {
	types := s.dispatcher.Types()
	names := make([]string, 0, len(types))
	for _, t := range types {
		names = append(names, string(t))
	}
	writeJSON(w, r, map[string][]string{"channels": names})
}

// @Summary Delivery statistics
// @Description Per-channel delivery counters since startup
// @Produce json
// @Success 200 {object} cache.CacheSnapshot
// @Router /api/stats [get]
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	if s.stats == nil {
		writeJSON(w, r, cache.CacheSnapshot{})
		return
	}
	writeJSON(w, r, s.stats.Snapshot())
}

// @Summary Health check
// @Description Returns service health status and delivery totals
// @Produce json
// @Success 200 {object} map[string]interface{} "Health status"
// @Failure 503 {object} map[string]interface{} "Database unavailable"
// @Router /healthz [get]
func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	status, code := "ok", http.StatusOK
	if err := s.store.Ping(r.Context()); err != nil {
		status, code = "degraded", http.StatusServiceUnavailable
	}
	body := map[string]any{
		"status":    status,
		"timestamp": time.Now().Unix(),
	}
	if s.stats != nil {
		snap := s.stats.Snapshot()
		total := snap.Totals()
		body["sent"] = total.Sent
		body["failed"] = total.Failed
		body["uptime_seconds"] = int(time.Since(snap.Started).Seconds())
	}
	writeJSONStatus(w, r, code, body)
}
