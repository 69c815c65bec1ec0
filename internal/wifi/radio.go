package wifi

import (
	"context"
	"fmt"
	"net"
	"net/netip"

	"github.com/muurk/wifiled/internal/config"
)

// Event is an asynchronous notification raised by a radio.
type Event int

const (
	EventStaDisconnected Event = iota
	EventApStart
	EventApStop
)

// String returns the event name used in logs.
func (e Event) String() string {
	switch e {
	case EventStaDisconnected:
		return "sta_disconnected"
	case EventApStart:
		return "ap_start"
	case EventApStop:
		return "ap_stop"
	default:
		return fmt.Sprintf("Event(%d)", int(e))
	}
}

// RadioStatus is the association status reported by a radio.
type RadioStatus int

const (
	StatusIdle RadioStatus = iota
	StatusStaConnected
	StatusApStarted
)

// String returns the status name used in logs.
func (s RadioStatus) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusStaConnected:
		return "sta_connected"
	case StatusApStarted:
		return "ap_started"
	default:
		return fmt.Sprintf("RadioStatus(%d)", int(s))
	}
}

// RadioConfig is applied to the radio before it is started.
type RadioConfig struct {
	Mode        config.Mode
	Credentials config.Credentials
	Auth        config.AuthMethod
	Hostname    string
}

// AccessPoint is one result of a scan.
type AccessPoint struct {
	SSID           string
	BSSID          string
	Channel        int
	SignalStrength int // dBm
	Auth           config.AuthMethod
}

// Radio is the radio controller capability consumed by the Manager.
type Radio interface {
	// IsStarted reports whether the radio has been started.
	IsStarted() (bool, error)
	// Configure applies mode and credentials. Any error is a configuration error.
	Configure(cfg RadioConfig) error
	Start(ctx context.Context) error
	// Connect associates with the configured network. Station mode only.
	Connect(ctx context.Context) error
	// WaitForEvent blocks until ev is raised or ctx is done.
	WaitForEvent(ctx context.Context, ev Event) error
	Status() RadioStatus
	Capabilities() ([]config.Mode, error)
	Scan(ctx context.Context, max int) ([]AccessPoint, error)
	// Link returns the raw transport behind the radio.
	Link() Link
}

// Link is the raw network transport exposed once the radio is associated.
type Link interface {
	Name() string
	IsUp() bool
	HardwareAddr() net.HardwareAddr
	// Listen opens a TCP listener bound to addr on this link.
	Listen(ctx context.Context, addr netip.AddrPort) (net.Listener, error)
}
