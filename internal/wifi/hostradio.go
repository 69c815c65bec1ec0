package wifi

import (
	"context"
	"fmt"
	"net"
	"net/netip"
	"sync"
	"time"

	"github.com/muurk/wifiled/internal/config"
	"github.com/muurk/wifiled/internal/logging"
	"go.uber.org/zap"
)

// HostRadio is a Radio backed by a network interface of the host. Association
// itself is done by the operating system (wpa_supplicant, hostapd, ...); the
// radio only observes the interface state.
type HostRadio struct {
	mu      sync.Mutex
	cfg     RadioConfig
	started bool
	link    *HostLink
	poll    time.Duration
}

// NewHostRadio creates a HostRadio for the named interface. poll is the
// cadence at which interface flags are read while waiting for events.
func NewHostRadio(iface string, poll time.Duration) *HostRadio {
	if poll <= 0 {
		poll = DefaultPollInterval
	}
	return &HostRadio{
		link: &HostLink{name: iface},
		poll: poll,
	}
}

// IsStarted implements Radio.
func (r *HostRadio) IsStarted() (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.started, nil
}

// Configure implements Radio.
func (r *HostRadio) Configure(cfg RadioConfig) error {
	if errs := config.ValidateCredentials(cfg.Credentials); len(errs) > 0 {
		return errs[0]
	}
	r.mu.Lock()
	r.cfg = cfg
	r.mu.Unlock()
	return nil
}

// Start implements Radio. It fails if the interface does not exist.
func (r *HostRadio) Start(ctx context.Context) error {
	ifi, err := net.InterfaceByName(r.link.name)
	if err != nil {
		return fmt.Errorf("interface %s: %w", r.link.name, err)
	}

	r.mu.Lock()
	r.started = true
	r.mu.Unlock()

	logging.Debug("Host interface found",
		zap.String("interface", ifi.Name),
		zap.String("mac", ifi.HardwareAddr.String()),
		zap.Int("mtu", ifi.MTU),
	)
	return nil
}

// Connect implements Radio. The interface counts as associated once it is up.
func (r *HostRadio) Connect(ctx context.Context) error {
	if !r.link.IsUp() {
		return fmt.Errorf("interface %s: %w", r.link.name, ErrLinkDown)
	}
	return nil
}

// WaitForEvent implements Radio by polling the interface flags.
func (r *HostRadio) WaitForEvent(ctx context.Context, ev Event) error {
	wantUp := ev == EventApStart

	ticker := time.NewTicker(r.poll)
	defer ticker.Stop()

	for {
		if r.link.IsUp() == wantUp {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Status implements Radio.
func (r *HostRadio) Status() RadioStatus {
	r.mu.Lock()
	started, mode := r.started, r.cfg.Mode
	r.mu.Unlock()

	if !started || !r.link.IsUp() {
		return StatusIdle
	}
	if mode == config.ModeAccessPoint {
		return StatusApStarted
	}
	return StatusStaConnected
}

// Capabilities implements Radio.
func (r *HostRadio) Capabilities() ([]config.Mode, error) {
	return []config.Mode{config.ModeStation, config.ModeAccessPoint}, nil
}

// Scan implements Radio. Host interfaces do not expose scanning.
func (r *HostRadio) Scan(ctx context.Context, max int) ([]AccessPoint, error) {
	return nil, ErrScanUnsupported
}

// Link implements Radio.
func (r *HostRadio) Link() Link {
	return r.link
}

// HostLink is a Link over a host network interface.
type HostLink struct {
	name string
}

// NewHostLink returns a Link for the named interface.
func NewHostLink(name string) *HostLink {
	return &HostLink{name: name}
}

// Name implements Link.
func (l *HostLink) Name() string { return l.name }

// IsUp implements Link. A missing interface is reported as down.
func (l *HostLink) IsUp() bool {
	ifi, err := net.InterfaceByName(l.name)
	if err != nil {
		return false
	}
	return ifi.Flags&net.FlagUp != 0 && (ifi.Flags&net.FlagRunning != 0 || ifi.Flags&net.FlagLoopback != 0)
}

// HardwareAddr implements Link.
func (l *HostLink) HardwareAddr() net.HardwareAddr {
	ifi, err := net.InterfaceByName(l.name)
	if err != nil {
		return nil
	}
	return ifi.HardwareAddr
}

// Addrs returns the IPv4 prefixes assigned to the interface.
func (l *HostLink) Addrs() ([]netip.Prefix, error) {
	ifi, err := net.InterfaceByName(l.name)
	if err != nil {
		return nil, err
	}
	addrs, err := ifi.Addrs()
	if err != nil {
		return nil, err
	}

	var out []netip.Prefix
	for _, a := range addrs {
		ipNet, ok := a.(*net.IPNet)
		if !ok {
			continue
		}
		ip, ok := netip.AddrFromSlice(ipNet.IP)
		if !ok {
			continue
		}
		ip = ip.Unmap()
		if !ip.Is4() {
			continue
		}
		bits, _ := ipNet.Mask.Size()
		out = append(out, netip.PrefixFrom(ip, bits))
	}
	return out, nil
}

// Listen implements Link. If addr is not assigned to the interface the
// listener falls back to the unspecified address on the same port.
func (l *HostLink) Listen(ctx context.Context, addr netip.AddrPort) (net.Listener, error) {
	bind := addr
	if !l.hasAddr(addr.Addr()) {
		logging.Warn("Address not assigned to interface, listening on all addresses",
			zap.String("interface", l.name),
			zap.String("addr", addr.Addr().String()),
		)
		bind = netip.AddrPortFrom(netip.IPv4Unspecified(), addr.Port())
	}

	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp4", bind.String())
	if err != nil {
		return nil, fmt.Errorf("listen on %s: %w", bind, err)
	}
	return ln, nil
}

func (l *HostLink) hasAddr(ip netip.Addr) bool {
	prefixes, err := l.Addrs()
	if err != nil {
		return false
	}
	for _, p := range prefixes {
		if p.Addr() == ip {
			return true
		}
	}
	return false
}
