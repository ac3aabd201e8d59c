// Package server exposes the tool registry and the Lark webhook over
// HTTP: a REST surface for direct calls, an SSE stream, JSON-RPC
// endpoints for MCP clients that speak HTTP, and the webhook endpoints
// Lark delivers chat events to.
package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/soracane/larkbridge/internal/config"
	"github.com/soracane/larkbridge/internal/tools"
)

const serverName = "LarkBridge Server"

// Registry is the slice of the tool registry the server needs.
type Registry interface {
	Tools() []tools.Tool
	Lookup(name string) (tools.Tool, bool)
	Len() int
	Call(ctx context.Context, name string, args json.RawMessage) (any, error)
}

// Server routes HTTP traffic to the registry and the webhook pipeline.
type Server struct {
	cfg      config.ServerConfig
	registry Registry
	webhook  *Webhook
	version  string
	logger   *zap.Logger
}

// New wires the server. webhook may be nil when the process runs
// without Lark event delivery.
func New(cfg config.ServerConfig, registry Registry, webhook *Webhook, version string, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	if version == "" {
		version = "dev"
	}
	return &Server{
		cfg:      cfg,
		registry: registry,
		webhook:  webhook,
		version:  version,
		logger:   logger,
	}
}

// Handler returns the complete route table wrapped in the logging and
// body-limit middleware.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.handleRoot)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /tools", s.handleListTools)
	mux.HandleFunc("GET /tools/{name}", s.handleGetTool)
	mux.HandleFunc("POST /call", s.handleCall)
	mux.HandleFunc("GET /sse", s.handleSSE)
	mux.HandleFunc("POST /sse/call", s.handleSSECall)
	mux.HandleFunc("POST /mcp/list_tools", s.handleMCPListTools)
	mux.HandleFunc("POST /mcp/call_tool", s.handleMCPCallTool)
	if s.webhook != nil {
		mux.HandleFunc("POST /webhook/event", s.webhook.handleEvent)
		mux.HandleFunc("POST /webhook/card", s.webhook.handleCard)
	}
	return s.middleware(mux)
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Listen,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		errc <- srv.ListenAndServe()
	}()
	s.logger.Info("http server listening",
		zap.String("addr", s.cfg.Listen), zap.Int("tools", s.registry.Len()))

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown: %w", err)
		}
		<-errc
		s.logger.Info("http server stopped")
		return nil
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Flush keeps SSE working through the recorder.
func (r *statusRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (s *Server) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		if r.Body != nil && s.cfg.BodyLimitBytes > 0 {
			r.Body = http.MaxBytesReader(w, r.Body, s.cfg.BodyLimitBytes)
		}
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.logger.Info("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", rec.status),
			zap.Duration("duration", time.Since(start)))
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(v)
}

// writeDetail renders an error the way FastAPI-style clients expect.
func writeDetail(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}

// envelope is the uniform tool call result.
type envelope struct {
	Success bool   `json:"success"`
	Result  any    `json:"result,omitempty"`
	Error   string `json:"error,omitempty"`
}

func (s *Server) call(ctx context.Context, name string, args json.RawMessage) envelope {
	result, err := s.registry.Call(ctx, name, args)
	if err != nil {
		return envelope{Success: false, Error: err.Error()}
	}
	return envelope{Success: true, Result: result}
}

type callRequest struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

func (s *Server) handleRoot(w http.ResponseWriter, _ *http.Request) {
	endpoints := map[string]string{
		"tools":  "/tools",
		"call":   "/call",
		"sse":    "/sse",
		"health": "/health",
	}
	if s.webhook != nil {
		endpoints["webhook"] = "/webhook/event"
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"name":      serverName,
		"version":   s.version,
		"tools":     s.registry.Len(),
		"status":    "running",
		"endpoints": endpoints,
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":      "healthy",
		"tools_count": s.registry.Len(),
	})
}

func (s *Server) handleListTools(w http.ResponseWriter, _ *http.Request) {
	catalog := s.registry.Tools()
	writeJSON(w, http.StatusOK, map[string]any{
		"tools": catalog,
		"count": len(catalog),
	})
}

func (s *Server) handleGetTool(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	tool, ok := s.registry.Lookup(name)
	if !ok {
		writeDetail(w, http.StatusNotFound, fmt.Sprintf("Tool '%s' not found", name))
		return
	}
	writeJSON(w, http.StatusOK, tool)
}

func (s *Server) handleCall(w http.ResponseWriter, r *http.Request) {
	var req callRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeDetail(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	if req.Name == "" {
		writeDetail(w, http.StatusBadRequest, "name is required")
		return
	}
	writeJSON(w, http.StatusOK, s.call(r.Context(), req.Name, req.Arguments))
}

// writeEvent emits one SSE data frame.
func writeEvent(w http.ResponseWriter, v any) error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return err
	}
	_, err := fmt.Fprintf(w, "data: %s\n\n", bytes.TrimRight(buf.Bytes(), "\n"))
	return err
}

func sseHeaders(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
}

// handleSSE holds the connection open: one connected event, then a
// ping every interval until the client goes away.
func (s *Server) handleSSE(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeDetail(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}
	sseHeaders(w)

	_ = writeEvent(w, map[string]string{"type": "connected", "server": "LarkBridge"})
	flusher.Flush()

	interval := s.cfg.PingInterval()
	if interval <= 0 {
		interval = 30 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-r.Context().Done():
			return
		case <-ticker.C:
			if err := writeEvent(w, map[string]string{"type": "ping"}); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

// handleSSECall streams one tool call as start/result/end events.
func (s *Server) handleSSECall(w http.ResponseWriter, r *http.Request) {
	var req callRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeDetail(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeDetail(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}
	sseHeaders(w)

	_ = writeEvent(w, map[string]string{"type": "start", "tool": req.Name})
	flusher.Flush()

	result := s.call(r.Context(), req.Name, req.Arguments)
	if err := writeEvent(w, map[string]any{"type": "result", "data": result}); err != nil {
		_ = writeEvent(w, map[string]string{"type": "error", "message": err.Error()})
	}
	_ = writeEvent(w, map[string]string{"type": "end"})
	flusher.Flush()
}

func (s *Server) handleMCPListTools(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"jsonrpc": "2.0",
		"result":  map[string]any{"tools": s.registry.Tools()},
	})
}

func (s *Server) handleMCPCallTool(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Params callRequest `json:"params"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeDetail(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	result := s.call(r.Context(), req.Params.Name, req.Params.Arguments)
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(result); err != nil {
		writeDetail(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"jsonrpc": "2.0",
		"result": map[string]any{
			"content": []map[string]string{
				{"type": "text", "text": string(bytes.TrimRight(buf.Bytes(), "\n"))},
			},
		},
	})
}
