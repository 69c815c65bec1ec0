package discovery

import (
	"fmt"
	"net"
	"strconv"
	"time"
)

// Device represents a discovered wifiled device on the network
type Device struct {
	// Instance is the mDNS instance name (the daemon's hostname setting)
	Instance string

	// Hostname is the mDNS hostname (e.g., "wifiled.local.")
	Hostname string

	// IP is the preferred address, IPv4 when available
	IP string

	// Port is the HTTP port (typically 80)
	Port int

	// Version and Mode come from the TXT record
	Version string
	Mode    string
	MAC     string

	// Metadata contains every TXT record entry
	Metadata map[string]string

	// DiscoveredAt is when the device was discovered
	DiscoveredAt time.Time
}

// String returns a human-readable string representation of the device
func (d *Device) String() string {
	return fmt.Sprintf("wifiled %s (%s) at %s", d.Instance, d.Hostname, d.Addr())
}

// Addr returns host:port, bracketing IPv6 addresses.
func (d *Device) Addr() string {
	return net.JoinHostPort(d.IP, strconv.Itoa(d.Port))
}

// BaseURL returns the HTTP base URL for the device
func (d *Device) BaseURL() string {
	return "http://" + d.Addr()
}

// GetMetadata retrieves a metadata value by key, or returns empty string if not found
func (d *Device) GetMetadata(key string) string {
	if d.Metadata == nil {
		return ""
	}
	return d.Metadata[key]
}
