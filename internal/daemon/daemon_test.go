package daemon

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/muurk/wifiled/internal/config"
	"github.com/muurk/wifiled/internal/wifi"
)

type recordingIndicator struct {
	calls chan bool
}

func (r *recordingIndicator) SetIndicator(on bool) error {
	select {
	case r.calls <- on:
	default:
	}
	return nil
}

func freePort(t *testing.T) int {
	t.Helper()
	ln, err := net.Listen("tcp4", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer func() { _ = ln.Close() }()
	return ln.Addr().(*net.TCPAddr).Port
}

func testConfig(t *testing.T) *config.Config {
	cfg := config.Defaults()
	cfg.SSID = "home"
	cfg.Password = "correct horse"
	cfg.MDNS = false
	cfg.HTTP.Port = freePort(t)
	cfg.PollInterval = 5 * time.Millisecond
	cfg.RetryDelay = 10 * time.Millisecond
	cfg.LED.PollInterval = 5 * time.Millisecond
	return cfg
}

func TestNew_RejectsInvalidConfig(t *testing.T) {
	cfg := config.Defaults()
	cfg.SSID = ""
	_, err := New(cfg, wifi.NewSimRadio(wifi.SimOptions{}), nil)
	if !config.IsConfigError(err) {
		t.Fatalf("New() error = %v, want config error", err)
	}
}

func TestNew_AccessPointDefaults(t *testing.T) {
	cfg := config.Defaults()
	cfg.Mode = config.ModeAccessPoint
	cfg.SSID = "wifiled"
	d, err := New(cfg, wifi.NewSimRadio(wifi.SimOptions{}), nil)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if d.addressing.Kind != config.AddressingStatic {
		t.Errorf("addressing = %v, want static", d.addressing.Kind)
	}
	if got := d.addressing.Static.Address.String(); got != config.DefaultAPStaticIP {
		t.Errorf("address = %s, want %s", got, config.DefaultAPStaticIP)
	}
}

func TestRun_ServesAfterRetries(t *testing.T) {
	cfg := testConfig(t)
	radio := wifi.NewSimRadio(wifi.SimOptions{ConnectFailures: 2})
	ind := &recordingIndicator{calls: make(chan bool, 8)}

	d, err := New(cfg, radio, ind)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- d.Run(ctx) }()

	select {
	case <-d.Ready():
	case err := <-done:
		t.Fatalf("Run() returned early: %v", err)
	case <-time.After(5 * time.Second):
		t.Fatal("daemon not ready")
	}

	if radio.Connects() != 3 {
		t.Errorf("connects = %d, want 3", radio.Connects())
	}
	if d.Network() == nil || d.Network().Config().Source != config.AddressingDHCP {
		t.Errorf("network not bound with DHCP: %+v", d.Network())
	}

	base := "http://" + d.Addr().String()
	hc := &http.Client{Timeout: 5 * time.Second, Transport: &http.Transport{DisableKeepAlives: true}}

	resp, err := hc.Post(base+"/led", "application/json", strings.NewReader(`{"is_on":true}`))
	if err != nil {
		t.Fatalf("POST /led: %v", err)
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("POST /led status = %d", resp.StatusCode)
	}
	if !d.LED().Load() {
		t.Error("LED flag not set")
	}

	deadline := time.After(5 * time.Second)
	for on := false; !on; {
		select {
		case on = <-ind.calls:
		case <-deadline:
			t.Fatal("indicator never switched on")
		}
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run() error = %v, want nil on cancel", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("daemon did not stop")
	}
}

func TestRun_CancelBeforeConnected(t *testing.T) {
	cfg := testConfig(t)
	cfg.RetryDelay = time.Hour
	d, err := New(cfg, wifi.NewSimRadio(wifi.SimOptions{ConnectFailures: 1}), nil)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	err = d.Run(ctx)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Run() error = %v, want deadline exceeded", err)
	}
	select {
	case <-d.Ready():
		t.Error("Ready closed without a listener")
	default:
	}
}
