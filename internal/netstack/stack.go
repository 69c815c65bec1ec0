package netstack

import (
	"context"
	"fmt"
	"net"
	"net/netip"
	"time"

	"github.com/muurk/wifiled/internal/config"
	"github.com/muurk/wifiled/internal/logging"
	"go.uber.org/zap"
)

// DefaultPollInterval is the DHCP lease polling cadence.
const DefaultPollInterval = 500 * time.Millisecond

// Transport is the raw link the stack is bound to.
type Transport interface {
	Name() string
	Listen(ctx context.Context, addr netip.AddrPort) (net.Listener, error)
}

// IPv4Config is the address bound to a transport.
type IPv4Config struct {
	Address netip.Prefix
	Gateway netip.Addr // zero when unknown or not configured
	DNS     []netip.Addr
	Source  config.AddressingKind
}

// String formats the configuration for logs.
func (c IPv4Config) String() string {
	gw := "none"
	if c.Gateway.IsValid() {
		gw = c.Gateway.String()
	}
	return fmt.Sprintf("%s via %s (%s)", c.Address, gw, c.Source)
}

// Options configures Bind.
type Options struct {
	// Hostname is sent as DHCP option 12.
	Hostname     string
	PollInterval time.Duration
	// NewDHCP attaches a DHCP client to the transport. When nil, transports
	// that expose their addresses get a HostDHCP.
	NewDHCP func(t Transport, hostname string) (DHCPClient, error)
}

// Handle is a bound network interface shared by every HTTP worker.
type Handle struct {
	transport Transport
	cfg       IPv4Config
	hostname  string
}

// Bind applies the addressing policy to t and returns the bound Handle.
// DHCP polling is unbounded and stops only when ctx is cancelled.
func Bind(ctx context.Context, t Transport, a config.Addressing, opts Options) (*Handle, error) {
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}

	var cfg IPv4Config
	switch a.Kind {
	case config.AddressingStatic:
		cfg = IPv4Config{
			Address: a.Static.Address,
			Gateway: a.Static.Gateway,
			Source:  config.AddressingStatic,
		}
	case config.AddressingDHCP:
		newDHCP := opts.NewDHCP
		if newDHCP == nil {
			newDHCP = defaultDHCP
		}
		client, err := newDHCP(t, opts.Hostname)
		if err != nil {
			return nil, fmt.Errorf("attach DHCP client to %s: %w", t.Name(), err)
		}
		lease, err := waitForLease(ctx, client, opts.PollInterval)
		if err != nil {
			return nil, err
		}
		cfg = IPv4Config{
			Address: lease.Address,
			Gateway: lease.Gateway,
			DNS:     lease.DNS,
			Source:  config.AddressingDHCP,
		}
	default:
		return nil, fmt.Errorf("unknown addressing kind %v", a.Kind)
	}

	logging.Info("Network stack bound",
		zap.String("interface", t.Name()),
		zap.Stringer("ipv4", cfg),
	)
	return &Handle{transport: t, cfg: cfg, hostname: opts.Hostname}, nil
}

func waitForLease(ctx context.Context, client DHCPClient, poll time.Duration) (Lease, error) {
	ticker := time.NewTicker(poll)
	defer ticker.Stop()

	polls := 0
	for {
		if lease, ok := client.Lease(); ok {
			logging.Info("DHCP lease acquired",
				zap.String("address", lease.Address.String()),
				zap.Int("polls", polls+1),
			)
			return lease, nil
		}
		if polls == 0 {
			logging.Info("Waiting for DHCP lease", zap.Duration("poll_interval", poll))
		}
		polls++

		select {
		case <-ctx.Done():
			return Lease{}, ctx.Err()
		case <-ticker.C:
		}
	}
}

// Config returns the bound IPv4 configuration.
func (h *Handle) Config() IPv4Config {
	return h.cfg
}

// Name returns the name of the underlying transport.
func (h *Handle) Name() string {
	return h.transport.Name()
}

// Hostname returns the hostname announced on the network.
func (h *Handle) Hostname() string {
	return h.hostname
}

// Addr returns the bound address with the given port.
func (h *Handle) Addr(port uint16) netip.AddrPort {
	return netip.AddrPortFrom(h.cfg.Address.Addr(), port)
}

// Listen opens a TCP listener on the bound address.
func (h *Handle) Listen(ctx context.Context, port uint16) (net.Listener, error) {
	return h.transport.Listen(ctx, h.Addr(port))
}
