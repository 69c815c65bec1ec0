package wifi

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/muurk/wifiled/internal/config"
	"github.com/muurk/wifiled/internal/logging"
	"go.uber.org/zap"
)

const (
	// DefaultRetryDelay is the fixed wait between connection attempts.
	DefaultRetryDelay = 5 * time.Second
	// DefaultPollInterval is the link-up polling cadence used by Start.
	DefaultPollInterval = 500 * time.Millisecond
	// scanLimit caps the number of networks logged by a startup scan.
	scanLimit = 10
)

// Options configures a Manager.
type Options struct {
	Mode         config.Mode
	Credentials  config.Credentials
	Hostname     string
	RetryDelay   time.Duration
	PollInterval time.Duration
	ScanOnStart  bool

	// OnTransition, if set, is called from the Run goroutine on every
	// state change, including Connecting -> Connecting retries.
	OnTransition func(from, to ConnectionState)
}

// Manager runs the connection state machine for one radio.
// Construct exactly one per process.
type Manager struct {
	radio Radio
	opts  Options
	state atomic.Int32

	// sleep waits between attempts; replaced in tests.
	sleep func(ctx context.Context, d time.Duration) error

	attempts int
	scanned  bool
	errCh    chan error
}

// NewManager creates a Manager in the Idle state.
func NewManager(radio Radio, opts Options) *Manager {
	if opts.Mode == "" {
		opts.Mode = config.ModeStation
	}
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = DefaultRetryDelay
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}
	m := &Manager{
		radio: radio,
		opts:  opts,
		sleep: sleepContext,
		errCh: make(chan error, 1),
	}
	m.state.Store(int32(StateIdle))
	return m
}

// State returns the current connection state. Safe for concurrent use.
func (m *Manager) State() ConnectionState {
	return ConnectionState(m.state.Load())
}

// Err delivers the error that stopped a Run started by Start.
func (m *Manager) Err() <-chan error {
	return m.errCh
}

// Start runs the state machine in a new goroutine and blocks until the radio
// is connected and its link is up. There is no upper bound on the wait; it
// ends early only when ctx is cancelled or Run fails with a configuration
// error.
func (m *Manager) Start(ctx context.Context) (Link, error) {
	runErr := make(chan error, 1)
	go func() {
		err := m.Run(ctx)
		runErr <- err
		m.errCh <- err
	}()

	ticker := time.NewTicker(m.opts.PollInterval)
	defer ticker.Stop()

	for {
		link := m.radio.Link()
		if m.State() == StateConnected && link.IsUp() {
			logging.Info("Link is up", zap.String("link", link.Name()))
			return link, nil
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case err := <-runErr:
			return nil, err
		case <-ticker.C:
		}
	}
}

// Run is the connection task. It returns only when ctx is cancelled or the
// radio rejects its configuration.
func (m *Manager) Run(ctx context.Context) error {
	m.logCapabilities()

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		if m.associated() {
			if m.State() != StateConnected {
				m.transition(StateConnected, "radio already associated")
			}
			if err := m.radio.WaitForEvent(ctx, m.lossEvent()); err != nil {
				return err
			}
			m.transition(StateDisconnected, m.lossEvent().String())
			if err := m.sleep(ctx, m.opts.RetryDelay); err != nil {
				return err
			}
			continue
		}

		started, err := m.radio.IsStarted()
		if err != nil {
			logging.Warn("Failed to query radio state", zap.Error(err))
			started = false
		}

		if !started {
			m.transition(StateStarting, "radio not started")
			if err := m.radio.Configure(m.radioConfig()); err != nil {
				var cfgErr *config.Error
				if !errors.As(err, &cfgErr) {
					err = config.NewError("credentials", "", "radio rejected configuration", err)
				}
				logging.Error("Radio configuration failed", zap.Error(err))
				return err
			}
			if err := m.radio.Start(ctx); err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				logging.Warn("Failed to start radio, retrying",
					zap.Error(err),
					zap.Duration("retry_delay", m.opts.RetryDelay),
				)
				if err := m.sleep(ctx, m.opts.RetryDelay); err != nil {
					return err
				}
				continue
			}
			logging.Info("Radio started", zap.String("mode", string(m.opts.Mode)))
		}

		if m.opts.Mode == config.ModeAccessPoint {
			if m.radio.Status() != StatusApStarted {
				if err := m.radio.WaitForEvent(ctx, EventApStart); err != nil {
					return err
				}
			}
			m.transition(StateConnected, "access point started")
			continue
		}

		m.scanOnce(ctx)

		m.attempts++
		m.transition(StateConnecting, fmt.Sprintf("attempt %d", m.attempts))
		if err := m.radio.Connect(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			connErr := &ConnectError{SSID: m.opts.Credentials.SSID, Attempt: m.attempts, Err: err}
			logging.Warn("Failed to connect to wifi",
				zap.Error(connErr),
				zap.Duration("retry_delay", m.opts.RetryDelay),
			)
			if err := m.sleep(ctx, m.opts.RetryDelay); err != nil {
				return err
			}
			continue
		}

		m.attempts = 0
		m.transition(StateConnected, "associated")
	}
}

func (m *Manager) associated() bool {
	switch m.radio.Status() {
	case StatusStaConnected:
		return m.opts.Mode == config.ModeStation
	case StatusApStarted:
		return m.opts.Mode == config.ModeAccessPoint
	}
	return false
}

func (m *Manager) lossEvent() Event {
	if m.opts.Mode == config.ModeAccessPoint {
		return EventApStop
	}
	return EventStaDisconnected
}

func (m *Manager) radioConfig() RadioConfig {
	return RadioConfig{
		Mode:        m.opts.Mode,
		Credentials: m.opts.Credentials,
		Auth:        m.opts.Credentials.Auth(),
		Hostname:    m.opts.Hostname,
	}
}

func (m *Manager) transition(to ConnectionState, reason string) {
	from := ConnectionState(m.state.Swap(int32(to)))
	logging.LogStateTransition(from.String(), to.String(), reason)
	if m.opts.OnTransition != nil {
		m.opts.OnTransition(from, to)
	}
}

func (m *Manager) logCapabilities() {
	caps, err := m.radio.Capabilities()
	if err != nil {
		logging.Debug("Radio capabilities unavailable", zap.Error(err))
		return
	}
	modes := make([]string, 0, len(caps))
	for _, c := range caps {
		modes = append(modes, string(c))
	}
	logging.Info("Radio capabilities", zap.Strings("modes", modes))
}

func (m *Manager) scanOnce(ctx context.Context) {
	if !m.opts.ScanOnStart || m.scanned {
		return
	}
	m.scanned = true

	aps, err := m.radio.Scan(ctx, scanLimit)
	if err != nil {
		logging.Warn("Scan failed", zap.Error(err))
		return
	}
	for _, ap := range aps {
		logging.Info("Found network",
			zap.String("ssid", ap.SSID),
			zap.String("bssid", ap.BSSID),
			zap.Int("channel", ap.Channel),
			zap.Int("signal_dbm", ap.SignalStrength),
			zap.String("auth", string(ap.Auth)),
		)
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
