package wifi

import (
	"context"
	"fmt"
	"net"
	"net/netip"
	"sync"
	"sync/atomic"

	"github.com/muurk/wifiled/internal/config"
	"github.com/muurk/wifiled/internal/logging"
	"go.uber.org/zap"
)

// SimOptions configures a SimRadio.
type SimOptions struct {
	// ConnectFailures is the number of Connect calls that fail before one succeeds.
	ConnectFailures int
	// StartFailures is the number of Start calls that fail before one succeeds.
	StartFailures int
	// Networks are returned by Scan.
	Networks []AccessPoint
	// ListenHost is the local address the simulated link listens on.
	// Defaults to 127.0.0.1.
	ListenHost string
}

// SimRadio is an in-memory Radio. It associates without touching real
// hardware and lets callers inject failures and link loss.
type SimRadio struct {
	mu              sync.Mutex
	cfg             RadioConfig
	configured      bool
	started         bool
	status          RadioStatus
	connectFailures int
	startFailures   int
	connects        int
	networks        []AccessPoint

	events chan Event
	link   *SimLink
}

// NewSimRadio creates a stopped simulated radio.
func NewSimRadio(opts SimOptions) *SimRadio {
	host := opts.ListenHost
	if host == "" {
		host = "127.0.0.1"
	}
	return &SimRadio{
		connectFailures: opts.ConnectFailures,
		startFailures:   opts.StartFailures,
		networks:        opts.Networks,
		events:          make(chan Event, 8),
		link: &SimLink{
			host: host,
			mac:  net.HardwareAddr{0x02, 0x00, 0x5e, 0x10, 0x00, 0x01},
		},
	}
}

// IsStarted implements Radio.
func (r *SimRadio) IsStarted() (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.started, nil
}

// Configure implements Radio. Credentials are checked the way a radio driver
// would check them when encoding its configuration block.
func (r *SimRadio) Configure(cfg RadioConfig) error {
	if errs := config.ValidateCredentials(cfg.Credentials); len(errs) > 0 {
		return errs[0]
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.cfg = cfg
	r.configured = true
	return nil
}

// Start implements Radio.
func (r *SimRadio) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.configured {
		return fmt.Errorf("start: radio not configured")
	}
	if r.startFailures > 0 {
		r.startFailures--
		return fmt.Errorf("start: simulated driver failure")
	}

	r.started = true
	r.drainEvents()
	if r.cfg.Mode == config.ModeAccessPoint {
		r.status = StatusApStarted
		r.link.up.Store(true)
		r.emit(EventApStart)
	}
	return nil
}

// Connect implements Radio.
func (r *SimRadio) Connect(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.started {
		return ErrNotStarted
	}
	r.connects++
	if r.connectFailures > 0 {
		r.connectFailures--
		return ErrAuthFailed
	}

	r.drainEvents()
	r.status = StatusStaConnected
	r.link.up.Store(true)
	logging.Debug("Simulated association complete",
		zap.String("ssid", r.cfg.Credentials.SSID),
		zap.Int("connects", r.connects),
	)
	return nil
}

// WaitForEvent implements Radio. Events other than ev are discarded.
func (r *SimRadio) WaitForEvent(ctx context.Context, ev Event) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case got := <-r.events:
			if got == ev {
				return nil
			}
		}
	}
}

// Status implements Radio.
func (r *SimRadio) Status() RadioStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.status
}

// Capabilities implements Radio.
func (r *SimRadio) Capabilities() ([]config.Mode, error) {
	return []config.Mode{config.ModeStation, config.ModeAccessPoint}, nil
}

// Scan implements Radio.
func (r *SimRadio) Scan(ctx context.Context, max int) ([]AccessPoint, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.started {
		return nil, ErrNotStarted
	}
	n := len(r.networks)
	if max > 0 && n > max {
		n = max
	}
	out := make([]AccessPoint, n)
	copy(out, r.networks[:n])
	return out, nil
}

// Link implements Radio.
func (r *SimRadio) Link() Link {
	return r.link
}

// Connects returns the number of Connect calls made so far.
func (r *SimRadio) Connects() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.connects
}

// Drop simulates link loss. In station mode the radio stays started and
// raises EventStaDisconnected; in access-point mode the AP stops and
// EventApStop is raised.
func (r *SimRadio) Drop() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.status = StatusIdle
	r.link.up.Store(false)
	if r.cfg.Mode == config.ModeAccessPoint {
		r.started = false
		r.emit(EventApStop)
		return
	}
	r.emit(EventStaDisconnected)
}

// drainEvents discards events left over from an earlier association;
// callers hold r.mu.
func (r *SimRadio) drainEvents() {
	for {
		select {
		case <-r.events:
		default:
			return
		}
	}
}

// emit queues ev without blocking; callers hold r.mu.
func (r *SimRadio) emit(ev Event) {
	select {
	case r.events <- ev:
	default:
		logging.Warn("Simulated radio event dropped", zap.Stringer("event", ev))
	}
}

// SimLink is the transport of a SimRadio. It listens on a local address
// regardless of the address bound by the network stack.
type SimLink struct {
	host string
	mac  net.HardwareAddr
	up   atomic.Bool
}

// Name implements Link.
func (l *SimLink) Name() string { return "sim0" }

// IsUp implements Link.
func (l *SimLink) IsUp() bool { return l.up.Load() }

// HardwareAddr implements Link.
func (l *SimLink) HardwareAddr() net.HardwareAddr { return l.mac }

// Addrs returns the local listen address as the address "leased" to the link.
func (l *SimLink) Addrs() ([]netip.Prefix, error) {
	if !l.IsUp() {
		return nil, nil
	}
	a, err := netip.ParseAddr(l.host)
	if err != nil {
		return nil, fmt.Errorf("sim link host %q: %w", l.host, err)
	}
	bits := 24
	if a.IsLoopback() {
		bits = 8
	}
	return []netip.Prefix{netip.PrefixFrom(a, bits)}, nil
}

// Listen implements Link.
func (l *SimLink) Listen(ctx context.Context, addr netip.AddrPort) (net.Listener, error) {
	var lc net.ListenConfig
	local := net.JoinHostPort(l.host, fmt.Sprint(addr.Port()))
	ln, err := lc.Listen(ctx, "tcp4", local)
	if err != nil {
		return nil, fmt.Errorf("sim link listen on %s: %w", local, err)
	}
	logging.Debug("Simulated link listening",
		zap.String("bound", addr.String()),
		zap.String("local", ln.Addr().String()),
	)
	return ln, nil
}
