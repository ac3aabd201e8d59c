package server

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"

	"github.com/soracane/larkbridge/internal/config"
	"github.com/soracane/larkbridge/internal/tools"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type fakeRegistry struct {
	catalog  []tools.Tool
	calls    []string
	lastArgs json.RawMessage
	result   any
	err      error
}

func (f *fakeRegistry) Tools() []tools.Tool { return f.catalog }

func (f *fakeRegistry) Lookup(name string) (tools.Tool, bool) {
	for _, tool := range f.catalog {
		if tool.Name == name {
			return tool, true
		}
	}
	return tools.Tool{}, false
}

func (f *fakeRegistry) Len() int { return len(f.catalog) }

func (f *fakeRegistry) Call(_ context.Context, name string, args json.RawMessage) (any, error) {
	f.calls = append(f.calls, name)
	f.lastArgs = args
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

func catalogFixture() []tools.Tool {
	schema := tools.Schema{Type: "object", Properties: map[string]tools.Property{}}
	return []tools.Tool{
		{Name: "send_message", Description: "Send a message to a chat", InputSchema: schema},
		{Name: "list_chats", Description: "List all chats", InputSchema: schema},
	}
}

func testConfig() config.ServerConfig {
	return config.ServerConfig{Listen: "127.0.0.1:0", SSEPingSec: 1, BodyLimitBytes: 1 << 20}
}

func newTestServer(t *testing.T, reg *fakeRegistry, wh *Webhook) *httptest.Server {
	t.Helper()
	srv := New(testConfig(), reg, wh, "1.2.3", zap.NewNop())
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts
}

func getJSON(t *testing.T, ts *httptest.Server, path string, out any) *http.Response {
	t.Helper()
	resp, err := ts.Client().Get(ts.URL + path)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	return resp
}

func postJSON(t *testing.T, ts *httptest.Server, path, body string, out any) *http.Response {
	t.Helper()
	resp, err := ts.Client().Post(ts.URL+path, "application/json", strings.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	return resp
}

func TestRootBanner(t *testing.T) {
	ts := newTestServer(t, &fakeRegistry{catalog: catalogFixture()}, nil)

	var out struct {
		Name      string            `json:"name"`
		Version   string            `json:"version"`
		Tools     int               `json:"tools"`
		Status    string            `json:"status"`
		Endpoints map[string]string `json:"endpoints"`
	}
	resp := getJSON(t, ts, "/", &out)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "LarkBridge Server", out.Name)
	assert.Equal(t, "1.2.3", out.Version)
	assert.Equal(t, 2, out.Tools)
	assert.Equal(t, "running", out.Status)
	assert.Equal(t, "/tools", out.Endpoints["tools"])
	assert.Equal(t, "/call", out.Endpoints["call"])
	assert.Equal(t, "/sse", out.Endpoints["sse"])
	assert.Equal(t, "/health", out.Endpoints["health"])
	assert.NotContains(t, out.Endpoints, "webhook")
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t, &fakeRegistry{catalog: catalogFixture()}, nil)

	var out map[string]any
	resp := getJSON(t, ts, "/health", &out)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "healthy", out["status"])
	assert.EqualValues(t, 2, out["tools_count"])
}

func TestListTools(t *testing.T) {
	ts := newTestServer(t, &fakeRegistry{catalog: catalogFixture()}, nil)

	var out struct {
		Tools []tools.Tool `json:"tools"`
		Count int          `json:"count"`
	}
	getJSON(t, ts, "/tools", &out)

	assert.Equal(t, 2, out.Count)
	require.Len(t, out.Tools, 2)
	assert.Equal(t, "send_message", out.Tools[0].Name)
	assert.Equal(t, "list_chats", out.Tools[1].Name)
}

func TestGetTool(t *testing.T) {
	ts := newTestServer(t, &fakeRegistry{catalog: catalogFixture()}, nil)

	var tool tools.Tool
	resp := getJSON(t, ts, "/tools/send_message", &tool)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "send_message", tool.Name)
	assert.Equal(t, "Send a message to a chat", tool.Description)
}

func TestGetToolNotFound(t *testing.T) {
	ts := newTestServer(t, &fakeRegistry{catalog: catalogFixture()}, nil)

	var out map[string]string
	resp := getJSON(t, ts, "/tools/bogus", &out)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "Tool 'bogus' not found", out["detail"])
}

func TestCallSuccess(t *testing.T) {
	reg := &fakeRegistry{catalog: catalogFixture(), result: map[string]any{"message_id": "om_1"}}
	ts := newTestServer(t, reg, nil)

	var out map[string]any
	resp := postJSON(t, ts, "/call", `{"name":"send_message","arguments":{"chat_id":"oc_1"}}`, &out)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, out["success"])
	assert.Equal(t, map[string]any{"message_id": "om_1"}, out["result"])
	assert.NotContains(t, out, "error")
	assert.Equal(t, []string{"send_message"}, reg.calls)
	assert.JSONEq(t, `{"chat_id":"oc_1"}`, string(reg.lastArgs))
}

func TestCallFailure(t *testing.T) {
	reg := &fakeRegistry{catalog: catalogFixture(), err: fmt.Errorf("missing required argument: chat_id")}
	ts := newTestServer(t, reg, nil)

	var out map[string]any
	resp := postJSON(t, ts, "/call", `{"name":"send_message","arguments":{}}`, &out)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, false, out["success"])
	assert.Equal(t, "missing required argument: chat_id", out["error"])
	assert.NotContains(t, out, "result")
}

func TestCallInvalidJSON(t *testing.T) {
	ts := newTestServer(t, &fakeRegistry{}, nil)

	var out map[string]string
	resp := postJSON(t, ts, "/call", `{not json`, &out)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "Invalid JSON", out["detail"])
}

func TestCallMissingName(t *testing.T) {
	ts := newTestServer(t, &fakeRegistry{}, nil)

	var out map[string]string
	resp := postJSON(t, ts, "/call", `{"arguments":{}}`, &out)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "name is required", out["detail"])
}

func TestBodyLimitRejectsOversizedPayload(t *testing.T) {
	cfg := testConfig()
	cfg.BodyLimitBytes = 64
	srv := New(cfg, &fakeRegistry{}, nil, "1.2.3", zap.NewNop())
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	body := fmt.Sprintf(`{"name":"x","arguments":{"pad":%q}}`, strings.Repeat("a", 256))
	var out map[string]string
	resp := postJSON(t, ts, "/call", body, &out)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "Invalid JSON", out["detail"])
}

func readEvent(t *testing.T, r *bufio.Reader) string {
	t.Helper()
	for {
		line, err := r.ReadString('\n')
		require.NoError(t, err)
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "data: ") {
			return strings.TrimPrefix(line, "data: ")
		}
	}
}

func TestSSEStreamsConnectedAndPing(t *testing.T) {
	ts := newTestServer(t, &fakeRegistry{}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ts.URL+"/sse", nil)
	require.NoError(t, err)
	resp, err := ts.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))
	assert.Equal(t, "no-cache", resp.Header.Get("Cache-Control"))

	reader := bufio.NewReader(resp.Body)
	assert.JSONEq(t, `{"type":"connected","server":"LarkBridge"}`, readEvent(t, reader))
	assert.JSONEq(t, `{"type":"ping"}`, readEvent(t, reader))
}

func TestSSECallStreamsLifecycle(t *testing.T) {
	reg := &fakeRegistry{result: map[string]any{"ok": true}}
	ts := newTestServer(t, reg, nil)

	resp, err := ts.Client().Post(ts.URL+"/sse/call", "application/json",
		strings.NewReader(`{"name":"send_message","arguments":{"chat_id":"oc_1"}}`))
	require.NoError(t, err)
	defer resp.Body.Close()

	reader := bufio.NewReader(resp.Body)
	assert.JSONEq(t, `{"type":"start","tool":"send_message"}`, readEvent(t, reader))
	assert.JSONEq(t, `{"type":"result","data":{"success":true,"result":{"ok":true}}}`, readEvent(t, reader))
	assert.JSONEq(t, `{"type":"end"}`, readEvent(t, reader))
	assert.Equal(t, []string{"send_message"}, reg.calls)
}

func TestSSECallStreamsFailure(t *testing.T) {
	reg := &fakeRegistry{err: fmt.Errorf("boom")}
	ts := newTestServer(t, reg, nil)

	resp, err := ts.Client().Post(ts.URL+"/sse/call", "application/json",
		strings.NewReader(`{"name":"send_message","arguments":{}}`))
	require.NoError(t, err)
	defer resp.Body.Close()

	reader := bufio.NewReader(resp.Body)
	assert.JSONEq(t, `{"type":"start","tool":"send_message"}`, readEvent(t, reader))
	assert.JSONEq(t, `{"type":"result","data":{"success":false,"error":"boom"}}`, readEvent(t, reader))
	assert.JSONEq(t, `{"type":"end"}`, readEvent(t, reader))
}

func TestMCPListTools(t *testing.T) {
	ts := newTestServer(t, &fakeRegistry{catalog: catalogFixture()}, nil)

	var out struct {
		JSONRPC string `json:"jsonrpc"`
		Result  struct {
			Tools []tools.Tool `json:"tools"`
		} `json:"result"`
	}
	postJSON(t, ts, "/mcp/list_tools", `{}`, &out)

	assert.Equal(t, "2.0", out.JSONRPC)
	require.Len(t, out.Result.Tools, 2)
	assert.Equal(t, "send_message", out.Result.Tools[0].Name)
}

func TestMCPCallTool(t *testing.T) {
	reg := &fakeRegistry{result: map[string]any{"ok": true}}
	ts := newTestServer(t, reg, nil)

	var out struct {
		JSONRPC string `json:"jsonrpc"`
		Result  struct {
			Content []struct {
				Type string `json:"type"`
				Text string `json:"text"`
			} `json:"content"`
		} `json:"result"`
	}
	postJSON(t, ts, "/mcp/call_tool", `{"params":{"name":"send_message","arguments":{"chat_id":"oc_1"}}}`, &out)

	assert.Equal(t, "2.0", out.JSONRPC)
	require.Len(t, out.Result.Content, 1)
	assert.Equal(t, "text", out.Result.Content[0].Type)
	assert.JSONEq(t, `{"success":true,"result":{"ok":true}}`, out.Result.Content[0].Text)
	assert.JSONEq(t, `{"chat_id":"oc_1"}`, string(reg.lastArgs))
}

func TestRunShutsDownOnCancel(t *testing.T) {
	srv := New(testConfig(), &fakeRegistry{}, nil, "1.2.3", zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("server did not shut down")
	}
}
