package client

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/muurk/wifiled/internal/device"
	"github.com/muurk/wifiled/internal/web"
)

func fastClient(url string) *Client {
	c := NewWithURL(url)
	c.RetryDelay = time.Millisecond
	c.MaxRetryDelay = 2 * time.Millisecond
	return c
}

func TestNew(t *testing.T) {
	c := New("192.168.13.37", 80)
	if c.BaseURL != "http://192.168.13.37:80" {
		t.Errorf("BaseURL = %s, want http://192.168.13.37:80", c.BaseURL)
	}
	if c.HTTPClient == nil || c.HTTPClient.Timeout != DefaultTimeout {
		t.Errorf("HTTPClient timeout not defaulted")
	}

	c = NewWithURL("http://10.0.0.2:8080/")
	if c.BaseURL != "http://10.0.0.2:8080" {
		t.Errorf("BaseURL = %s, want trailing slash trimmed", c.BaseURL)
	}
}

func TestGetLED(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet || r.URL.Path != "/led" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"is_on":true}`)
	}))
	defer srv.Close()

	on, err := fastClient(srv.URL).GetLED(context.Background())
	if err != nil {
		t.Fatalf("GetLED() error = %v", err)
	}
	if !on {
		t.Error("GetLED() = false, want true")
	}
}

func TestGetLED_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = io.WriteString(w, `{"is_on":false}`)
	}))
	defer srv.Close()

	on, err := fastClient(srv.URL).GetLED(context.Background())
	if err != nil {
		t.Fatalf("GetLED() error = %v", err)
	}
	if on {
		t.Error("GetLED() = true, want false")
	}
	if got := calls.Load(); got != 3 {
		t.Errorf("calls = %d, want 3", got)
	}
}

func TestGetLED_Errors(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		body      string
		wantType  ErrorType
		wantCalls int32
	}{
		{"not found is not retried", http.StatusNotFound, "", ErrTypeHTTP, 1},
		{"malformed json is not retried", http.StatusOK, `{"is_on":`, ErrTypeParse, 1},
		{"server error exhausts retries", http.StatusInternalServerError, "", ErrTypeHTTP, DefaultMaxRetries + 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls atomic.Int32
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				calls.Add(1)
				w.WriteHeader(tt.status)
				_, _ = io.WriteString(w, tt.body)
			}))
			defer srv.Close()

			_, err := fastClient(srv.URL).GetLED(context.Background())
			var cerr *Error
			if !errors.As(err, &cerr) {
				t.Fatalf("GetLED() error = %v, want *Error", err)
			}
			if cerr.Type != tt.wantType {
				t.Errorf("Type = %v, want %v", cerr.Type, tt.wantType)
			}
			if got := calls.Load(); got != tt.wantCalls {
				t.Errorf("calls = %d, want %d", got, tt.wantCalls)
			}
		})
	}
}

func TestSetLED(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/led" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("Content-Type = %q", ct)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode body: %v", err)
		}
		_, _ = io.WriteString(w, `{"success":true}`)
	}))
	defer srv.Close()

	if err := fastClient(srv.URL).SetLED(context.Background(), true); err != nil {
		t.Fatalf("SetLED() error = %v", err)
	}
	if len(got) != 1 || got["is_on"] != true {
		t.Errorf("body = %v, want {\"is_on\":true}", got)
	}
}

func TestSetLED_IsNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	err := fastClient(srv.URL).SetLED(context.Background(), false)
	if err == nil {
		t.Fatal("SetLED() error = nil")
	}
	if calls.Load() != 1 {
		t.Errorf("calls = %d, want 1", calls.Load())
	}
}

func TestPing_ConnectionRefused(t *testing.T) {
	ln, err := net.Listen("tcp4", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	addr := ln.Addr().String()
	_ = ln.Close()

	err = fastClient("http://" + addr).Ping(context.Background())
	if !IsNetworkError(err) {
		t.Fatalf("Ping() error = %v, want network error", err)
	}
	var cerr *Error
	if errors.As(err, &cerr) && cerr.Type != ErrTypeConnectionRefused {
		t.Errorf("Type = %v, want %v", cerr.Type, ErrTypeConnectionRefused)
	}
}

func TestShortMessage(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{&Error{Type: ErrTypeTimeout}, "Device not responding (timeout)"},
		{newHTTPError(400, "bad"), "Device rejected the request (HTTP 400)"},
		{newHTTPError(503, "busy"), "Device error (HTTP 503)"},
		{errors.New("plain"), "plain"},
	}
	for _, tt := range tests {
		if got := ShortMessage(tt.err); got != tt.want {
			t.Errorf("ShortMessage(%v) = %q, want %q", tt.err, got, tt.want)
		}
	}
}

// startDevice serves the real HTTP worker pool on loopback.
func startDevice(t *testing.T, led *device.LEDFlag) *Client {
	t.Helper()

	ln, err := net.Listen("tcp4", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	pool := web.NewPool(2, 0, web.DefaultTimeouts())
	pool.WatchInterval = 5 * time.Millisecond
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = pool.ServeListener(ctx, ln, web.NewRouter(), led)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return fastClient("http://" + ln.Addr().String())
}

func TestClient_AgainstDevice(t *testing.T) {
	led := device.NewLEDFlag()
	c := startDevice(t, led)
	ctx := context.Background()

	if err := c.Ping(ctx); err != nil {
		t.Fatalf("Ping() error = %v", err)
	}
	if err := c.SetLED(ctx, true); err != nil {
		t.Fatalf("SetLED(true) error = %v", err)
	}
	if !led.Load() {
		t.Error("flag not set by SetLED(true)")
	}
	on, err := c.GetLED(ctx)
	if err != nil || !on {
		t.Errorf("GetLED() = %v, %v; want true, nil", on, err)
	}
}

func TestWatch(t *testing.T) {
	led := device.NewLEDFlag()
	c := startDevice(t, led)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	states, errs, err := c.Watch(ctx)
	if err != nil {
		t.Fatalf("Watch() error = %v", err)
	}

	next := func() bool {
		t.Helper()
		select {
		case on, ok := <-states:
			if !ok {
				t.Fatalf("stream closed: %v", <-errs)
			}
			return on
		case <-ctx.Done():
			t.Fatal("timed out waiting for state")
		}
		return false
	}

	if next() {
		t.Error("initial state = true, want false")
	}
	led.Store(true)
	if !next() {
		t.Error("state after change = false, want true")
	}

	cancel()
	for range states {
	}
}
