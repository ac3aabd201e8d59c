// Package stdio serves the tool registry over newline-delimited
// JSON-RPC 2.0 on a byte stream, the framing MCP clients speak when
// they spawn the bridge as a subprocess. One request per line, one
// response per line, notifications get no reply.
package stdio

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"go.uber.org/zap"

	"github.com/soracane/larkbridge/internal/tools"
)

const (
	protocolVersion = "2024-11-05"
	serverName      = "larkbridge"

	// maxLineBytes bounds a single request line. Card payloads and
	// batch records stay far below this.
	maxLineBytes = 10 * 1024 * 1024
)

const (
	codeParseError     = -32700
	codeInvalidRequest = -32600
	codeMethodNotFound = -32601
)

type request struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

type response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  any             `json:"result,omitempty"`
	Error   *rpcError       `json:"error,omitempty"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type serverInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

type capabilities struct {
	Tools struct{} `json:"tools"`
}

type initializeResult struct {
	ProtocolVersion string       `json:"protocolVersion"`
	Capabilities    capabilities `json:"capabilities"`
	ServerInfo      serverInfo   `json:"serverInfo"`
}

type toolsListResult struct {
	Tools []tools.Tool `json:"tools"`
}

type textContent struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type toolCallResult struct {
	Content []textContent `json:"content"`
}

type callParams struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

// Registry is the slice of the tool registry the server needs.
type Registry interface {
	Tools() []tools.Tool
	Len() int
	Call(ctx context.Context, name string, args json.RawMessage) (any, error)
}

// Server answers JSON-RPC requests from the tool registry.
type Server struct {
	registry Registry
	version  string
	logger   *zap.Logger
}

// New returns a Server announcing the given version in initialize.
func New(registry Registry, version string, logger *zap.Logger) *Server {
	if version == "" {
		version = "dev"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{registry: registry, version: version, logger: logger}
}

// Serve reads requests from in and writes responses to out until in
// reaches EOF or ctx is cancelled. Responses are written in request
// order; a reader goroutine feeds the loop so cancellation is observed
// even while blocked on input.
func (s *Server) Serve(ctx context.Context, in io.Reader, out io.Writer) error {
	s.logger.Info("stdio server started", zap.Int("tools", s.registry.Len()))

	lines := make(chan []byte)
	readErr := make(chan error, 1)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
		for scanner.Scan() {
			line := bytes.TrimSpace(scanner.Bytes())
			if len(line) == 0 {
				continue
			}
			buf := make([]byte, len(line))
			copy(buf, line)
			select {
			case lines <- buf:
			case <-ctx.Done():
				return
			}
		}
		readErr <- scanner.Err()
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case line, ok := <-lines:
			if !ok {
				select {
				case err := <-readErr:
					if err != nil {
						return fmt.Errorf("stdio: read request: %w", err)
					}
				default:
				}
				s.logger.Info("stdio input closed")
				return nil
			}
			s.handleLine(ctx, line, out)
		}
	}
}

func (s *Server) handleLine(ctx context.Context, line []byte, out io.Writer) {
	var req request
	if err := json.Unmarshal(line, &req); err != nil {
		s.reply(out, errorResponse(nil, codeParseError, "parse error"))
		return
	}
	if req.JSONRPC != "2.0" || req.Method == "" {
		s.reply(out, errorResponse(req.ID, codeInvalidRequest, "invalid request"))
		return
	}

	s.logger.Debug("rpc request", zap.String("method", req.Method))

	switch req.Method {
	case "initialize":
		s.reply(out, resultResponse(req.ID, initializeResult{
			ProtocolVersion: protocolVersion,
			ServerInfo:      serverInfo{Name: serverName, Version: s.version},
		}))
	case "notifications/initialized":
		// Notification, nothing to send back.
	case "tools/list":
		s.reply(out, resultResponse(req.ID, toolsListResult{Tools: s.registry.Tools()}))
	case "tools/call":
		s.reply(out, s.callTool(ctx, req))
	default:
		if req.ID == nil {
			return
		}
		s.reply(out, errorResponse(req.ID, codeMethodNotFound,
			fmt.Sprintf("method not found: %s", req.Method)))
	}
}

// callTool runs the named tool. Tool failures, unknown names included,
// come back as text content rather than protocol errors so clients
// surface them to the model instead of dropping the call.
func (s *Server) callTool(ctx context.Context, req request) response {
	var params callParams
	if err := json.Unmarshal(req.Params, &params); err != nil || params.Name == "" {
		return errorResponse(req.ID, codeInvalidRequest, "invalid tool call params")
	}

	result, err := s.registry.Call(ctx, params.Name, params.Arguments)
	if err != nil {
		return resultResponse(req.ID, textResult(fmt.Sprintf("Error executing %s: %v", params.Name, err)))
	}
	text, err := renderJSON(result)
	if err != nil {
		return resultResponse(req.ID, textResult(fmt.Sprintf("Error executing %s: %v", params.Name, err)))
	}
	return resultResponse(req.ID, textResult(text))
}

func textResult(text string) toolCallResult {
	return toolCallResult{Content: []textContent{{Type: "text", Text: text}}}
}

// renderJSON pretty-prints a tool result without HTML escaping, so
// Japanese text and markdown survive verbatim.
func renderJSON(v any) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return "", err
	}
	return strings.TrimRight(buf.String(), "\n"), nil
}

func resultResponse(id json.RawMessage, result any) response {
	return response{JSONRPC: "2.0", ID: id, Result: result}
}

func errorResponse(id json.RawMessage, code int, message string) response {
	return response{JSONRPC: "2.0", ID: id, Error: &rpcError{Code: code, Message: message}}
}

func (s *Server) reply(out io.Writer, resp response) {
	enc := json.NewEncoder(out)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(resp); err != nil {
		s.logger.Warn("failed to write response", zap.Error(err))
	}
}
