package web

import (
	"bufio"
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/muurk/wifiled/internal/device"
)

// startPool runs a pool on a loopback listener and returns its address.
func startPool(t *testing.T, p *Pool, led *device.LEDFlag) string {
	t.Helper()

	ln, err := net.Listen("tcp4", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.ServeListener(ctx, ln, NewRouter(), led) }()

	t.Cleanup(func() {
		cancel()
		select {
		case <-done:
		case <-time.After(5 * time.Second):
			t.Error("pool did not stop")
		}
	})
	return ln.Addr().String()
}

func newTestClient() *http.Client {
	return &http.Client{
		Timeout:   5 * time.Second,
		Transport: &http.Transport{DisableKeepAlives: true},
	}
}

// rawRequest writes raw on conn and reads one response.
func rawRequest(t *testing.T, conn net.Conn, br *bufio.Reader, raw string) *http.Response {
	t.Helper()
	_ = conn.SetDeadline(time.Now().Add(5 * time.Second))
	if _, err := io.WriteString(conn, raw); err != nil {
		t.Fatalf("write: %v", err)
	}
	resp, err := http.ReadResponse(br, nil)
	if err != nil {
		t.Fatalf("read response: %v", err)
	}
	return resp
}

func readBody(t *testing.T, resp *http.Response) string {
	t.Helper()
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return string(b)
}

func TestPool_ServesRoutes(t *testing.T) {
	led := device.NewLEDFlag()
	addr := startPool(t, NewPool(2, 0, DefaultTimeouts()), led)
	client := newTestClient()
	base := "http://" + addr

	resp, err := client.Get(base + "/")
	if err != nil {
		t.Fatalf("GET /: %v", err)
	}
	body := readBody(t, resp)
	if resp.StatusCode != 200 || !strings.HasPrefix(resp.Header.Get("Content-Type"), "text/html") {
		t.Errorf("GET / = %d %s", resp.StatusCode, resp.Header.Get("Content-Type"))
	}
	if !strings.Contains(body, "wifiled") {
		t.Error("GET / should return the embedded page")
	}

	for _, on := range []bool{true, true, false} {
		payload := `{"is_on": false}`
		if on {
			payload = `{"is_on": true}`
		}
		resp, err := client.Post(base+"/led", "application/json", strings.NewReader(payload))
		if err != nil {
			t.Fatalf("POST /led: %v", err)
		}
		if got := readBody(t, resp); resp.StatusCode != 200 || got != `{"success":true}` {
			t.Errorf("POST /led %s = %d %s", payload, resp.StatusCode, got)
		}
		if led.Load() != on {
			t.Errorf("LED = %v after %s", led.Load(), payload)
		}
	}

	resp, err = client.Post(base+"/led", "application/json", strings.NewReader(`{"is_on": "yes"}`))
	if err != nil {
		t.Fatalf("POST /led: %v", err)
	}
	if got := readBody(t, resp); resp.StatusCode != 400 || got != "" {
		t.Errorf("malformed POST = %d %q, want 400 with empty body", resp.StatusCode, got)
	}
	if led.Load() {
		t.Error("malformed POST must not change the LED")
	}

	resp, err = client.Get(base + "/missing")
	if err != nil {
		t.Fatalf("GET /missing: %v", err)
	}
	if got := readBody(t, resp); resp.StatusCode != 404 || got != "" {
		t.Errorf("GET /missing = %d %q, want 404 with empty body", resp.StatusCode, got)
	}
}

func TestPool_KeepAlive(t *testing.T) {
	led := device.NewLEDFlag()
	addr := startPool(t, NewPool(1, 0, DefaultTimeouts()), led)

	conn, err := net.Dial("tcp4", addr)
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()
	br := bufio.NewReader(conn)

	resp := rawRequest(t, conn, br, "POST /led HTTP/1.1\r\nHost: x\r\nContent-Length: 14\r\n\r\n{\"is_on\":true}")
	if got := readBody(t, resp); resp.StatusCode != 200 || got != `{"success":true}` {
		t.Fatalf("first request = %d %s", resp.StatusCode, got)
	}

	// Same connection, same worker.
	resp = rawRequest(t, conn, br, "GET /led HTTP/1.1\r\nHost: x\r\n\r\n")
	if got := readBody(t, resp); got != `{"is_on":true}` {
		t.Errorf("second request = %s", got)
	}

	resp = rawRequest(t, conn, br, "GET /led HTTP/1.1\r\nHost: x\r\nConnection: close\r\n\r\n")
	_ = readBody(t, resp)
	if !resp.Close {
		t.Error("server should honour Connection: close")
	}
	if _, err := br.ReadByte(); !errors.Is(err, io.EOF) {
		t.Errorf("connection should be closed, read err = %v", err)
	}
}

func TestPool_MalformedHTTPClosesConnection(t *testing.T) {
	addr := startPool(t, NewPool(1, 0, DefaultTimeouts()), device.NewLEDFlag())

	conn, err := net.Dial("tcp4", addr)
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()
	br := bufio.NewReader(conn)

	resp := rawRequest(t, conn, br, "NOT A REQUEST\r\n\r\n")
	_ = readBody(t, resp)
	if resp.StatusCode != 400 {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
	if _, err := br.ReadByte(); !errors.Is(err, io.EOF) {
		t.Errorf("connection should be closed, read err = %v", err)
	}

	// The worker is back on Accept.
	resp, err = newTestClient().Get("http://" + addr + "/led")
	if err != nil {
		t.Fatalf("GET after malformed request: %v", err)
	}
	if resp.StatusCode != 200 {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}
	_ = readBody(t, resp)
}

func TestPool_TwoClientsDoNotBlockEachOther(t *testing.T) {
	addr := startPool(t, NewPool(2, 0, DefaultTimeouts()), device.NewLEDFlag())

	// A holds one worker without sending anything.
	idle, err := net.Dial("tcp4", addr)
	if err != nil {
		t.Fatal(err)
	}
	defer idle.Close()

	// B is served by the other worker and keeps its connection open.
	busy, err := net.Dial("tcp4", addr)
	if err != nil {
		t.Fatal(err)
	}
	defer busy.Close()
	busyReader := bufio.NewReader(busy)
	resp := rawRequest(t, busy, busyReader, "GET /led HTTP/1.1\r\nHost: x\r\n\r\n")
	if resp.StatusCode != 200 {
		t.Fatalf("second client status = %d", resp.StatusCode)
	}
	_ = readBody(t, resp)

	// C queues in the backlog while both workers are occupied.
	queued, err := net.Dial("tcp4", addr)
	if err != nil {
		t.Fatal(err)
	}
	defer queued.Close()
	if _, err := io.WriteString(queued, "GET /led HTTP/1.1\r\nHost: x\r\nConnection: close\r\n\r\n"); err != nil {
		t.Fatal(err)
	}
	queuedReader := bufio.NewReader(queued)
	_ = queued.SetReadDeadline(time.Now().Add(200 * time.Millisecond))
	if _, err := queuedReader.Peek(1); err == nil {
		t.Fatal("third client was served while both workers were busy")
	}

	// Freeing a worker lets the queued client through.
	_ = busy.Close()
	_ = queued.SetReadDeadline(time.Now().Add(5 * time.Second))
	resp, err = http.ReadResponse(queuedReader, nil)
	if err != nil {
		t.Fatalf("queued client: %v", err)
	}
	if resp.StatusCode != 200 {
		t.Errorf("queued client status = %d", resp.StatusCode)
	}
	_ = readBody(t, resp)
}

func TestPool_SilentClientIsDropped(t *testing.T) {
	timeouts := Timeouts{StartReadRequest: 100 * time.Millisecond, ReadRequest: time.Second, Write: time.Second}
	addr := startPool(t, NewPool(1, 0, timeouts), device.NewLEDFlag())

	silent, err := net.Dial("tcp4", addr)
	if err != nil {
		t.Fatal(err)
	}
	defer silent.Close()

	start := time.Now()
	_ = silent.SetReadDeadline(time.Now().Add(5 * time.Second))
	if _, err := silent.Read(make([]byte, 1)); !errors.Is(err, io.EOF) {
		t.Fatalf("silent client read err = %v, want EOF", err)
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("silent client dropped after %v", elapsed)
	}

	// The only worker is free again.
	resp, err := newTestClient().Get("http://" + addr + "/led")
	if err != nil {
		t.Fatalf("GET after timeout: %v", err)
	}
	if resp.StatusCode != 200 {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}
	_ = readBody(t, resp)
}

func TestPool_SlowRequestIsDropped(t *testing.T) {
	timeouts := Timeouts{StartReadRequest: time.Second, ReadRequest: 100 * time.Millisecond, Write: time.Second}
	addr := startPool(t, NewPool(1, 0, timeouts), device.NewLEDFlag())

	conn, err := net.Dial("tcp4", addr)
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()

	// Start a request but never finish the headers.
	if _, err := io.WriteString(conn, "GET /led HTTP/1.1\r\nHost: x\r\n"); err != nil {
		t.Fatal(err)
	}
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	if _, err := conn.Read(make([]byte, 1)); !errors.Is(err, io.EOF) {
		t.Errorf("read err = %v, want EOF", err)
	}
}

func TestPool_WatchStreamsChanges(t *testing.T) {
	led := device.NewLEDFlag()
	p := NewPool(2, 0, DefaultTimeouts())
	p.WatchInterval = 5 * time.Millisecond
	addr := startPool(t, p, led)

	ws, resp, err := websocket.DefaultDialer.Dial("ws://"+addr+"/ws", nil)
	if err != nil {
		t.Fatalf("dial: %v (resp %v)", err, resp)
	}
	defer ws.Close()
	_ = ws.SetReadDeadline(time.Now().Add(5 * time.Second))

	var state LEDState
	if err := ws.ReadJSON(&state); err != nil {
		t.Fatalf("initial state: %v", err)
	}
	if state.IsOn {
		t.Error("initial state should be off")
	}

	// The stream does not hold a worker: both are still available.
	client := newTestClient()
	r, err := client.Post("http://"+addr+"/led", "application/json", strings.NewReader(`{"is_on":true}`))
	if err != nil {
		t.Fatalf("POST /led: %v", err)
	}
	_ = readBody(t, r)

	if err := ws.ReadJSON(&state); err != nil {
		t.Fatalf("change: %v", err)
	}
	if !state.IsOn {
		t.Error("watcher should see the LED turn on")
	}
}

func TestPool_WatcherLimit(t *testing.T) {
	p := NewPool(2, 0, DefaultTimeouts())
	p.MaxWatchers = 1
	addr := startPool(t, p, device.NewLEDFlag())

	first, _, err := websocket.DefaultDialer.Dial("ws://"+addr+"/ws", nil)
	if err != nil {
		t.Fatalf("first dial: %v", err)
	}
	defer first.Close()

	_, resp, err := websocket.DefaultDialer.Dial("ws://"+addr+"/ws", nil)
	if !errors.Is(err, websocket.ErrBadHandshake) {
		t.Fatalf("second dial err = %v, want ErrBadHandshake", err)
	}
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("second dial status = %d, want 503", resp.StatusCode)
	}
}

func TestClassifyConnError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorType
	}{
		{"parse", ErrMalformedHeader, ErrTypeParse},
		{"eof", io.EOF, ErrTypeClosed},
		{"closed", net.ErrClosed, ErrTypeClosed},
		{"deadline", &net.OpError{Op: "read", Err: timeoutErr{}}, ErrTypeTimeout},
		{"other op error", &net.OpError{Op: "read", Err: errors.New("boom")}, ErrTypeNetwork},
		{"unknown", errors.New("boom"), ErrTypeUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ClassifyConnError(tt.err, PhaseRead)
			if got.Type != tt.want {
				t.Errorf("Type = %s, want %s", got.Type, tt.want)
			}
			if !errors.Is(got, tt.err) {
				t.Error("ConnError should unwrap to the original error")
			}
		})
	}

	if ClassifyConnError(nil, PhaseRead) != nil {
		t.Error("nil error should classify as nil")
	}
}

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

// pipeListener hands out the server ends of net.Pipe connections.
type pipeListener struct {
	conns     chan net.Conn
	closed    chan struct{}
	closeOnce sync.Once
}

func newPipeListener() *pipeListener {
	return &pipeListener{conns: make(chan net.Conn), closed: make(chan struct{})}
}

// dial returns the client end of a new connection.
func (l *pipeListener) dial(t *testing.T) net.Conn {
	t.Helper()
	server, client := net.Pipe()
	select {
	case l.conns <- server:
	case <-time.After(5 * time.Second):
		t.Fatal("no worker accepted the connection")
	}
	return client
}

func (l *pipeListener) Accept() (net.Conn, error) {
	select {
	case c := <-l.conns:
		return c, nil
	case <-l.closed:
		return nil, net.ErrClosed
	}
}

func (l *pipeListener) Close() error {
	l.closeOnce.Do(func() { close(l.closed) })
	return nil
}

func (l *pipeListener) Addr() net.Addr { return pipeAddr{} }

type pipeAddr struct{}

func (pipeAddr) Network() string { return "pipe" }
func (pipeAddr) String() string  { return "pipe" }

func servePipePool(t *testing.T, p *Pool) *pipeListener {
	t.Helper()
	ln := newPipeListener()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.ServeListener(ctx, ln, NewRouter(), device.NewLEDFlag()) }()
	t.Cleanup(func() {
		cancel()
		select {
		case <-done:
		case <-time.After(5 * time.Second):
			t.Error("pool did not stop")
		}
	})
	return ln
}

func TestPool_StalledWriteIsDropped(t *testing.T) {
	timeouts := Timeouts{StartReadRequest: time.Second, ReadRequest: time.Second, Write: 100 * time.Millisecond}
	ln := servePipePool(t, NewPool(1, 0, timeouts))

	// The index page is larger than the transmit buffer, so the reply
	// blocks on a client that never reads.
	stalled := ln.dial(t)
	defer stalled.Close()
	go func() { _, _ = io.WriteString(stalled, "GET / HTTP/1.1\r\nHost: x\r\n\r\n") }()

	start := time.Now()
	next := ln.dial(t)
	defer next.Close()
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("worker freed after %v", elapsed)
	}

	resp := rawRequest(t, next, bufio.NewReader(next), "GET /led HTTP/1.1\r\nHost: x\r\nConnection: close\r\n\r\n")
	if resp.StatusCode != 200 {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}
	if body := readBody(t, resp); body != `{"is_on":false}` {
		t.Errorf("body = %s, want {\"is_on\":false}", body)
	}
}

// failingListener fails every Accept until closed.
type failingListener struct {
	calls     atomic.Int64
	closed    chan struct{}
	closeOnce sync.Once
}

func (l *failingListener) Accept() (net.Conn, error) {
	l.calls.Add(1)
	select {
	case <-l.closed:
		return nil, net.ErrClosed
	default:
		return nil, errors.New("accept: too many open files")
	}
}

func (l *failingListener) Close() error {
	l.closeOnce.Do(func() { close(l.closed) })
	return nil
}

func (l *failingListener) Addr() net.Addr { return pipeAddr{} }

func TestPool_AcceptErrorsBackOff(t *testing.T) {
	ln := &failingListener{closed: make(chan struct{})}
	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	if err := NewPool(1, 0, DefaultTimeouts()).ServeListener(ctx, ln, NewRouter(), device.NewLEDFlag()); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("ServeListener() = %v, want deadline exceeded", err)
	}
	// 5+10+20+40+80ms fits about six attempts in 200ms.
	if n := ln.calls.Load(); n > 10 {
		t.Errorf("Accept called %d times in 200ms", n)
	}
}

func TestAcceptBackoff(t *testing.T) {
	tests := []struct {
		prev time.Duration
		want time.Duration
	}{
		{0, 5 * time.Millisecond},
		{5 * time.Millisecond, 10 * time.Millisecond},
		{400 * time.Millisecond, 800 * time.Millisecond},
		{800 * time.Millisecond, time.Second},
		{time.Second, time.Second},
	}
	for _, tt := range tests {
		if got := acceptBackoff(tt.prev); got != tt.want {
			t.Errorf("acceptBackoff(%v) = %v, want %v", tt.prev, got, tt.want)
		}
	}
}
