package netstack

import (
	"errors"
	"net/netip"
	"sync"

	"github.com/muurk/wifiled/internal/logging"
	"go.uber.org/zap"
)

// Lease is an IPv4 lease handed out by a DHCP server.
type Lease struct {
	Address netip.Prefix
	Gateway netip.Addr
	DNS     []netip.Addr
}

// DHCPClient reports the current lease. Lease returns ok=false until one is bound.
type DHCPClient interface {
	Lease() (Lease, bool)
}

// AddrSource is implemented by transports that can report their addresses.
type AddrSource interface {
	Addrs() ([]netip.Prefix, error)
}

var errNoAddrSource = errors.New("transport does not expose its addresses")

// HostDHCP reads the lease negotiated by the operating system's DHCP client
// from the interface addresses.
type HostDHCP struct {
	src      AddrSource
	hostname string
	once     sync.Once
}

// NewHostDHCP returns a DHCPClient backed by src.
func NewHostDHCP(src AddrSource, hostname string) *HostDHCP {
	return &HostDHCP{src: src, hostname: hostname}
}

// Lease implements DHCPClient. The first usable IPv4 address wins.
func (d *HostDHCP) Lease() (Lease, bool) {
	d.once.Do(func() {
		logging.Debug("DHCP client attached", zap.String("hostname", d.hostname))
	})

	prefixes, err := d.src.Addrs()
	if err != nil {
		logging.Debug("Failed to read interface addresses", zap.Error(err))
		return Lease{}, false
	}
	for _, p := range prefixes {
		a := p.Addr()
		if !a.Is4() || a.IsUnspecified() || a.IsLinkLocalUnicast() {
			continue
		}
		return Lease{Address: p}, true
	}
	return Lease{}, false
}

func defaultDHCP(t Transport, hostname string) (DHCPClient, error) {
	src, ok := t.(AddrSource)
	if !ok {
		return nil, errNoAddrSource
	}
	return NewHostDHCP(src, hostname), nil
}
