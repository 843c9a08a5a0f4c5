package mcp

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"os/exec"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// transport is the channel carrying protocol messages to one server.
// The Client never branches on transport kind outside this boundary.
type transport interface {
	handshake(ctx context.Context) error
	discover(ctx context.Context) ([]ToolDescriptor, error)
	call(ctx context.Context, tool string, args map[string]any, timeout time.Duration) (any, error)
	close() error
}

func newTransport(cfg ServerConfig) (transport, error) {
	switch cfg.kind() {
	case TransportStdio:
		return newStdioTransport(cfg)
	case TransportHTTP:
		return newHTTPTransport(cfg), nil
	default:
		return nil, &ValidationError{Field: "transport", Reason: "must be stdio or http"}
	}
}

// stdioTransport owns a spawned subprocess and speaks newline-delimited
// JSON-RPC over its standard streams. A background pump routes responses
// to in-flight requests by ID, so a late reply to a timed-out call is
// discarded instead of desynchronizing the stream.
type stdioTransport struct {
	serverName string
	timeout    time.Duration

	cmd   *exec.Cmd
	stdin io.WriteCloser

	writeMu sync.Mutex
	enc     *json.Encoder

	nextID    atomic.Int64
	pendingMu sync.Mutex
	pending   map[int64]chan *rpcResponse

	done      chan struct{}
	closeOnce sync.Once
}

func newStdioTransport(cfg ServerConfig) (*stdioTransport, error) {
	cmd := exec.Command(cfg.Command, cfg.Args...)
	if cfg.WorkingDir != "" {
		cmd.Dir = cfg.WorkingDir
	}
	cmd.Env = os.Environ()
	for k, v := range cfg.Env {
		cmd.Env = append(cmd.Env, fmt.Sprintf("%s=%s", k, v))
	}

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to create stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to create stdout pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start server process: %w", err)
	}

	t := newStdioPipeTransport(cfg.Name, cfg.Timeout, stdin, stdout)
	t.cmd = cmd
	return t, nil
}

// newStdioPipeTransport wires the protocol over arbitrary streams. Tests
// use it directly to stand in for a subprocess.
func newStdioPipeTransport(name string, timeout time.Duration, w io.WriteCloser, r io.Reader) *stdioTransport {
	t := &stdioTransport{
		serverName: name,
		timeout:    timeout,
		stdin:      w,
		enc:        json.NewEncoder(w),
		pending:    make(map[int64]chan *rpcResponse),
		done:       make(chan struct{}),
	}
	go t.pump(r)
	return t
}

// pump reads one response per line and routes it to the waiting request.
// Responses with no matching in-flight ID are dropped.
func (t *stdioTransport) pump(r io.Reader) {
	defer close(t.done)

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}
		var resp rpcResponse
		if err := json.Unmarshal(line, &resp); err != nil {
			continue
		}
		t.pendingMu.Lock()
		ch, ok := t.pending[resp.ID]
		if ok {
			delete(t.pending, resp.ID)
		}
		t.pendingMu.Unlock()
		if ok {
			ch <- &resp
		}
	}
}

func (t *stdioTransport) roundTrip(ctx context.Context, method string, params any, timeout time.Duration, killOnTimeout bool) (json.RawMessage, error) {
	id := t.nextID.Add(1)
	ch := make(chan *rpcResponse, 1)

	t.pendingMu.Lock()
	t.pending[id] = ch
	t.pendingMu.Unlock()
	defer func() {
		t.pendingMu.Lock()
		delete(t.pending, id)
		t.pendingMu.Unlock()
	}()

	req := rpcRequest{JSONRPC: jsonrpcVersion, Method: method, Params: params, ID: id}
	t.writeMu.Lock()
	err := t.enc.Encode(req)
	t.writeMu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("failed to send %s request: %w", method, err)
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case resp := <-ch:
		if resp.Error != nil {
			return nil, fmt.Errorf("server returned error for %s: %w", method, resp.Error)
		}
		return resp.Result, nil
	case <-timer.C:
		if killOnTimeout {
			t.kill()
		}
		return nil, &TimeoutError{Op: method, Seconds: int(timeout / time.Second)}
	case <-t.done:
		return nil, fmt.Errorf("server closed the connection during %s", method)
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (t *stdioTransport) handshake(ctx context.Context) error {
	params := initializeParams{
		ProtocolVersion: protocolVersion,
		ClientInfo:      clientInfo{Name: clientID},
	}
	// A handshake that times out kills the subprocess: nothing else will
	// ever reuse this process.
	_, err := t.roundTrip(ctx, methodInitialize, params, t.timeout, true)
	return err
}

func (t *stdioTransport) discover(ctx context.Context) ([]ToolDescriptor, error) {
	raw, err := t.roundTrip(ctx, methodListTools, nil, t.timeout, false)
	if err != nil {
		return nil, err
	}
	var list toolListResult
	if err := json.Unmarshal(raw, &list); err != nil {
		return nil, fmt.Errorf("failed to parse tool list: %w", err)
	}
	tools := make([]ToolDescriptor, 0, len(list.Tools))
	for _, wt := range list.Tools {
		tools = append(tools, wt.descriptor(t.serverName))
	}
	return tools, nil
}

func (t *stdioTransport) call(ctx context.Context, tool string, args map[string]any, timeout time.Duration) (any, error) {
	params := callToolParams{Name: tool, Arguments: args}
	raw, err := t.roundTrip(ctx, methodCallTool, params, timeout, false)
	if err != nil {
		return nil, err
	}
	if len(raw) == 0 {
		return nil, nil
	}
	var payload any
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, fmt.Errorf("failed to parse tool result: %w", err)
	}
	return payload, nil
}

func (t *stdioTransport) kill() {
	if t.cmd != nil && t.cmd.Process != nil {
		_ = t.cmd.Process.Kill()
	}
}

func (t *stdioTransport) close() error {
	var err error
	t.closeOnce.Do(func() {
		_ = t.stdin.Close()
		if t.cmd != nil {
			if t.cmd.Process != nil {
				_ = t.cmd.Process.Kill()
			}
			// Wait reports the kill signal as an ExitError; that is the
			// normal outcome of a deliberate teardown, not a failure.
			var exitErr *exec.ExitError
			if werr := t.cmd.Wait(); werr != nil && !errors.As(werr, &exitErr) {
				err = werr
			}
		}
	})
	return err
}

// httpTransport speaks the HTTP convention: GET /health for the handshake,
// GET /tools for discovery, POST /tools/{name} for invocation.
type httpTransport struct {
	serverName string
	baseURL    string
	timeout    time.Duration
	client     *http.Client
}

func newHTTPTransport(cfg ServerConfig) *httpTransport {
	client := &http.Client{}
	if len(cfg.Headers) > 0 {
		client.Transport = &headerRoundTripper{
			headers: cfg.Headers,
			base:    http.DefaultTransport,
		}
	}
	return &httpTransport{
		serverName: cfg.Name,
		baseURL:    strings.TrimRight(cfg.URL, "/"),
		timeout:    cfg.Timeout,
		client:     client,
	}
}

// headerRoundTripper adds the configured headers to every request.
type headerRoundTripper struct {
	headers map[string]string
	base    http.RoundTripper
}

func (t *headerRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	for k, v := range t.headers {
		req.Header.Set(k, v)
	}
	return t.base.RoundTrip(req)
}

func (t *httpTransport) handshake(ctx context.Context) error {
	resp, err := t.do(ctx, http.MethodGet, t.baseURL+healthPath, nil, t.timeout)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}
	return nil
}

func (t *httpTransport) discover(ctx context.Context) ([]ToolDescriptor, error) {
	resp, err := t.do(ctx, http.MethodGet, t.baseURL+toolsPath, nil, t.timeout)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("tool discovery returned status %d", resp.StatusCode)
	}
	var list toolListResult
	if err := json.NewDecoder(resp.Body).Decode(&list); err != nil {
		return nil, fmt.Errorf("failed to parse tool list: %w", err)
	}
	tools := make([]ToolDescriptor, 0, len(list.Tools))
	for _, wt := range list.Tools {
		tools = append(tools, wt.descriptor(t.serverName))
	}
	return tools, nil
}

func (t *httpTransport) call(ctx context.Context, tool string, args map[string]any, timeout time.Duration) (any, error) {
	if args == nil {
		args = map[string]any{}
	}
	body, err := json.Marshal(args)
	if err != nil {
		return nil, fmt.Errorf("failed to encode arguments: %w", err)
	}
	endpoint := t.baseURL + toolsPath + "/" + url.PathEscape(tool)
	resp, err := t.do(ctx, http.MethodPost, endpoint, bytes.NewReader(body), timeout)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("tool call returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	var result callResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to parse tool result: %w", err)
	}
	return result.Result, nil
}

func (t *httpTransport) do(ctx context.Context, method, endpoint string, body io.Reader, timeout time.Duration) (*http.Response, error) {
	if timeout <= 0 {
		timeout = t.timeout
	}
	reqCtx, cancel := context.WithTimeout(ctx, timeout)
	resp, err := t.doRequest(reqCtx, method, endpoint, body)
	if err != nil {
		cancel()
		if isTimeoutErr(err) {
			return nil, &TimeoutError{Op: method + " " + endpoint, Seconds: int(timeout / time.Second)}
		}
		return nil, err
	}
	// Tie the cancel to body close so the connection stays cancelable while
	// the caller drains the response.
	resp.Body = &cancelReadCloser{ReadCloser: resp.Body, cancel: cancel}
	return resp, nil
}

func (t *httpTransport) doRequest(ctx context.Context, method, endpoint string, body io.Reader) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return t.client.Do(req)
}

func (t *httpTransport) close() error {
	t.client.CloseIdleConnections()
	return nil
}

type cancelReadCloser struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (c *cancelReadCloser) Close() error {
	err := c.ReadCloser.Close()
	c.cancel()
	return err
}

func isTimeoutErr(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne interface{ Timeout() bool }
	return errors.As(err, &ne) && ne.Timeout()
}
