package daemon

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"

	"github.com/muurk/wifiled/internal/config"
	"github.com/muurk/wifiled/internal/device"
	"github.com/muurk/wifiled/internal/discovery"
	"github.com/muurk/wifiled/internal/logging"
	"github.com/muurk/wifiled/internal/netstack"
	"github.com/muurk/wifiled/internal/version"
	"github.com/muurk/wifiled/internal/web"
	"github.com/muurk/wifiled/internal/wifi"
	"go.uber.org/zap"
)

// Daemon owns one radio, one network stack and one HTTP worker pool.
type Daemon struct {
	cfg        *config.Config
	addressing config.Addressing
	radio      wifi.Radio
	indicator  device.Indicator
	led        *device.LEDFlag

	mu     sync.Mutex
	addr   net.Addr
	handle *netstack.Handle
	ready  chan struct{}
}

// New validates cfg and returns a daemon for radio. The returned error is a
// join of *config.Error values when the configuration is invalid.
func New(cfg *config.Config, radio wifi.Radio, indicator device.Indicator) (*Daemon, error) {
	cfg.ApplyModeDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	addressing, err := cfg.Addressing()
	if err != nil {
		return nil, err
	}
	if indicator == nil {
		indicator = device.LogIndicator{}
	}

	return &Daemon{
		cfg:        cfg,
		addressing: addressing,
		radio:      radio,
		indicator:  indicator,
		led:        device.NewLEDFlag(),
		ready:      make(chan struct{}),
	}, nil
}

// LED returns the shared LED flag.
func (d *Daemon) LED() *device.LEDFlag {
	return d.led
}

// Ready is closed once the HTTP listener is open.
func (d *Daemon) Ready() <-chan struct{} {
	return d.ready
}

// Addr returns the HTTP listener address, or nil before Ready.
func (d *Daemon) Addr() net.Addr {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.addr
}

// Network returns the bound network handle, or nil before Ready.
func (d *Daemon) Network() *netstack.Handle {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.handle
}

// Run starts every component and blocks until ctx is cancelled or the
// connectivity manager stops with a configuration error.
func (d *Daemon) Run(ctx context.Context) error {
	cfg := d.cfg
	logging.Info("Starting wifiled",
		zap.String("version", version.Full()),
		zap.String("mode", string(cfg.Mode)),
		zap.String("ssid", cfg.SSID),
		zap.Stringer("addressing", d.addressing.Kind),
		zap.Int("port", cfg.HTTP.Port),
		zap.Int("workers", cfg.HTTP.Workers),
	)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	manager := wifi.NewManager(d.radio, wifi.Options{
		Mode:         cfg.Mode,
		Credentials:  cfg.Credentials(),
		Hostname:     cfg.Hostname,
		RetryDelay:   cfg.RetryDelay,
		PollInterval: cfg.PollInterval,
		ScanOnStart:  cfg.ScanOnStart,
	})

	link, err := manager.Start(ctx)
	if err != nil {
		return fmt.Errorf("wifi: %w", err)
	}

	handle, err := netstack.Bind(ctx, link, d.addressing, netstack.Options{
		Hostname:     cfg.Hostname,
		PollInterval: cfg.PollInterval,
	})
	if err != nil {
		return fmt.Errorf("network: %w", err)
	}

	port := uint16(cfg.HTTP.Port)
	ln, err := handle.Listen(ctx, port)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", handle.Addr(port), err)
	}

	d.mu.Lock()
	d.addr = ln.Addr()
	d.handle = handle
	d.mu.Unlock()
	close(d.ready)

	if cfg.MDNS {
		adv, err := discovery.Advertise(discovery.Announcement{
			Instance:  cfg.Hostname,
			Port:      cfg.HTTP.Port,
			IP:        handle.Config().Address.Addr().String(),
			Interface: cfg.Interface,
			Version:   version.Version,
			Mode:      string(cfg.Mode),
			MAC:       link.HardwareAddr().String(),
		})
		if err != nil {
			logging.Warn("mDNS advertisement disabled", zap.Error(err))
		} else {
			defer adv.Shutdown()
		}
	}

	var wg sync.WaitGroup
	driver := device.NewDriver(d.led, d.indicator, cfg.LED.PollInterval)
	wg.Add(1)
	go func() {
		defer wg.Done()
		_ = driver.Run(ctx)
	}()

	pool := web.NewPool(cfg.HTTP.Workers, port, web.Timeouts{
		StartReadRequest: cfg.HTTP.Timeouts.StartReadRequest,
		ReadRequest:      cfg.HTTP.Timeouts.ReadRequest,
		Write:            cfg.HTTP.Timeouts.Write,
	})
	poolErr := make(chan error, 1)
	wg.Add(1)
	go func() {
		defer wg.Done()
		poolErr <- pool.ServeListener(ctx, ln, web.NewRouter(), d.led)
	}()

	logging.Info("wifiled ready",
		zap.Stringer("ipv4", handle.Config()),
		zap.String("listen", ln.Addr().String()),
	)

	var runErr error
	select {
	case <-ctx.Done():
		logging.Info("Shutdown requested, stopping wifiled")
	case err := <-manager.Err():
		if err != nil && !errors.Is(err, context.Canceled) {
			runErr = fmt.Errorf("wifi: %w", err)
		}
	case err := <-poolErr:
		if err != nil && !errors.Is(err, context.Canceled) {
			runErr = fmt.Errorf("http: %w", err)
		}
	}

	cancel()
	wg.Wait()
	logging.Info("wifiled stopped")
	return runErr
}
