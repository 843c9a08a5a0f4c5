package mcp

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeStdioServer drives the subprocess side of a pipe-backed transport.
// Handlers receive the decoded request and return the result payload; a
// nil handler swallows the request without replying.
type fakeStdioServer struct {
	in  *io.PipeReader
	out *io.PipeWriter

	handlers map[string]func(req rpcRequest) any
}

func startFakeStdioServer(t *testing.T, handlers map[string]func(req rpcRequest) any) *stdioTransport {
	t.Helper()

	reqR, reqW := io.Pipe()
	respR, respW := io.Pipe()

	srv := &fakeStdioServer{in: reqR, out: respW, handlers: handlers}
	go srv.serve()

	tp := newStdioPipeTransport("fake", 2*time.Second, reqW, respR)
	t.Cleanup(func() { _ = tp.close(); _ = respW.Close() })
	return tp
}

func (s *fakeStdioServer) serve() {
	scanner := bufio.NewScanner(s.in)
	enc := json.NewEncoder(s.out)
	for scanner.Scan() {
		var req rpcRequest
		if err := json.Unmarshal(scanner.Bytes(), &req); err != nil {
			continue
		}
		handler, ok := s.handlers[req.Method]
		if !ok {
			_ = enc.Encode(map[string]any{
				"jsonrpc": "2.0",
				"id":      req.ID,
				"error":   map[string]any{"code": -32601, "message": "method not found"},
			})
			continue
		}
		if handler == nil {
			continue
		}
		result := handler(req)
		_ = enc.Encode(map[string]any{
			"jsonrpc": "2.0",
			"id":      req.ID,
			"result":  result,
		})
	}
}

func TestStdioTransportHandshakeAndDiscover(t *testing.T) {
	var sawInitialize rpcRequest
	tp := startFakeStdioServer(t, map[string]func(req rpcRequest) any{
		methodInitialize: func(req rpcRequest) any {
			sawInitialize = req
			return map[string]any{"protocolVersion": protocolVersion}
		},
		methodListTools: func(req rpcRequest) any {
			return map[string]any{"tools": []map[string]any{
				{"name": "read_file", "description": "Read a file", "inputSchema": map[string]any{"type": "object"}},
				{"name": "write_file", "description": "Write a file"},
			}}
		},
	})

	ctx := context.Background()
	require.NoError(t, tp.handshake(ctx))
	assert.Equal(t, methodInitialize, sawInitialize.Method)
	assert.Equal(t, jsonrpcVersion, sawInitialize.JSONRPC)

	tools, err := tp.discover(ctx)
	require.NoError(t, err)
	require.Len(t, tools, 2)
	assert.Equal(t, "read_file", tools[0].Name)
	assert.Equal(t, "fake", tools[0].ServerName)
	assert.Equal(t, map[string]any{"type": "object"}, tools[0].InputSchema)
}

func TestStdioTransportCall(t *testing.T) {
	tp := startFakeStdioServer(t, map[string]func(req rpcRequest) any{
		methodCallTool: func(req rpcRequest) any {
			params, _ := req.Params.(map[string]any)
			return map[string]any{"echoed": params["name"]}
		},
	})

	payload, err := tp.call(context.Background(), "read_file", map[string]any{"path": "a.txt"}, time.Second)
	require.NoError(t, err)
	result, ok := payload.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "read_file", result["echoed"])
}

func TestStdioTransportServerError(t *testing.T) {
	tp := startFakeStdioServer(t, map[string]func(req rpcRequest) any{})

	_, err := tp.call(context.Background(), "read_file", nil, time.Second)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "method not found")
}

func TestStdioTransportCallTimeoutKeepsConnectionUsable(t *testing.T) {
	calls := 0
	tp := startFakeStdioServer(t, map[string]func(req rpcRequest) any{
		methodCallTool: nil, // first tool never answers
		methodListTools: func(req rpcRequest) any {
			calls++
			return map[string]any{"tools": []map[string]any{{"name": "ping"}}}
		},
	})

	ctx := context.Background()
	_, err := tp.call(ctx, "slow_tool", nil, 50*time.Millisecond)
	require.Error(t, err)
	assert.True(t, IsTimeout(err))

	// The stream must not be desynchronized by the unanswered request.
	tools, err := tp.discover(ctx)
	require.NoError(t, err)
	require.Len(t, tools, 1)
	assert.Equal(t, 1, calls)
}

func TestStdioTransportCloseAfterKill(t *testing.T) {
	// cat blocks on stdin forever, so teardown has to kill it. The
	// resulting exit status is expected and must not surface as an error.
	tp, err := newStdioTransport(ServerConfig{
		Name:    "cat",
		Command: "cat",
		Timeout: time.Second,
	})
	require.NoError(t, err)

	assert.NoError(t, tp.close())
	// close is idempotent.
	assert.NoError(t, tp.close())
}

func TestHTTPTransportHandshake(t *testing.T) {
	healthy := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/health", r.URL.Path)
		w.WriteHeader(http.StatusOK)
	}))
	defer healthy.Close()

	tp := newHTTPTransport(ServerConfig{Name: "web", URL: healthy.URL, Timeout: time.Second})
	require.NoError(t, tp.handshake(context.Background()))
}

func TestHTTPTransportHandshakeUnhealthy(t *testing.T) {
	unhealthy := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer unhealthy.Close()

	tp := newHTTPTransport(ServerConfig{Name: "web", URL: unhealthy.URL, Timeout: time.Second})
	err := tp.handshake(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "503")
}

func TestHTTPTransportDiscoverAndCall(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/tools":
			_ = json.NewEncoder(w).Encode(map[string]any{"tools": []map[string]any{
				{"name": "search", "description": "Search the index"},
			}})
		case r.Method == http.MethodPost && r.URL.Path == "/tools/search":
			var args map[string]any
			_ = json.NewDecoder(r.Body).Decode(&args)
			_ = json.NewEncoder(w).Encode(map[string]any{"result": map[string]any{"hits": args["q"]}})
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	tp := newHTTPTransport(ServerConfig{
		Name:    "web",
		URL:     srv.URL + "/", // trailing slash must not double up
		Timeout: time.Second,
		Headers: map[string]string{"Authorization": "Bearer token"},
	})

	ctx := context.Background()
	tools, err := tp.discover(ctx)
	require.NoError(t, err)
	require.Len(t, tools, 1)
	assert.Equal(t, "search", tools[0].Name)
	assert.Equal(t, "web", tools[0].ServerName)
	assert.Equal(t, "Bearer token", gotAuth)

	payload, err := tp.call(ctx, "search", map[string]any{"q": "golang"}, time.Second)
	require.NoError(t, err)
	result, ok := payload.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "golang", result["hits"])
}

func TestHTTPTransportCallErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "tool exploded", http.StatusInternalServerError)
	}))
	defer srv.Close()

	tp := newHTTPTransport(ServerConfig{Name: "web", URL: srv.URL, Timeout: time.Second})
	_, err := tp.call(context.Background(), "search", nil, time.Second)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "500")
	assert.Contains(t, err.Error(), "tool exploded")
}

func TestHTTPTransportCallTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(300 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	tp := newHTTPTransport(ServerConfig{Name: "web", URL: srv.URL, Timeout: time.Second})
	_, err := tp.call(context.Background(), "slow", nil, 50*time.Millisecond)
	require.Error(t, err)
	assert.True(t, IsTimeout(err))
}
