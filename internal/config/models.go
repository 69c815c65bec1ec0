package config

import (
	"net/netip"
	"time"
)

// Mode selects how the radio joins a wireless network.
type Mode string

const (
	// ModeStation associates with an existing access point as a client.
	ModeStation Mode = "station"
	// ModeAccessPoint hosts a wireless network that other devices join.
	ModeAccessPoint Mode = "ap"
)

// AuthMethod is the link-layer authentication used for the credentials.
type AuthMethod string

const (
	AuthOpen         AuthMethod = "open"
	AuthWPA2Personal AuthMethod = "wpa2-personal"
)

// Defaults for the access-point network. Any private range works in AP mode.
const (
	DefaultAPStaticIP  = "192.168.13.37/24"
	DefaultAPGatewayIP = "192.168.13.37"
)

const (
	// MaxSSIDLength is the 802.11 SSID limit in bytes.
	MaxSSIDLength = 32
	// MinPassphraseLength and MaxPassphraseLength bound a WPA2 passphrase.
	MinPassphraseLength = 8
	MaxPassphraseLength = 63
	// RawPSKLength is the length of a hex-encoded 256-bit pre-shared key.
	RawPSKLength = 64
)

// Config is the on-disk and in-memory shape of the daemon configuration.
type Config struct {
	Mode         Mode          `yaml:"mode"`
	SSID         string        `yaml:"ssid"`
	Password     string        `yaml:"password,omitempty"`
	StaticIP     string        `yaml:"static_ip,omitempty"`  // CIDR, e.g. 192.168.0.50/24
	GatewayIP    string        `yaml:"gateway_ip,omitempty"` // e.g. 192.168.0.1
	Hostname     string        `yaml:"hostname"`             // DHCP option 12 and mDNS instance name
	Interface    string        `yaml:"interface"`            // Host interface backing the transport
	HTTP         HTTPConfig    `yaml:"http"`
	LED          LEDConfig     `yaml:"led"`
	MDNS         bool          `yaml:"mdns"`
	ScanOnStart  bool          `yaml:"scan_on_start"`
	LogLevel     string        `yaml:"log_level"`
	RetryDelay   time.Duration `yaml:"retry_delay"`
	PollInterval time.Duration `yaml:"poll_interval"`
}

// HTTPConfig configures the embedded HTTP worker pool.
type HTTPConfig struct {
	Port     int           `yaml:"port"`
	Workers  int           `yaml:"workers"`
	Timeouts TimeoutConfig `yaml:"timeouts"`
}

// TimeoutConfig holds per-connection timeouts. Zero means unbounded.
type TimeoutConfig struct {
	StartReadRequest time.Duration `yaml:"start_read_request"`
	ReadRequest      time.Duration `yaml:"read_request"`
	Write            time.Duration `yaml:"write"`
}

// LEDConfig configures the indicator that mirrors the LED flag.
type LEDConfig struct {
	GPIO         string        `yaml:"gpio,omitempty"` // periph.io pin name, empty = log only
	PollInterval time.Duration `yaml:"poll_interval"`
}

// Credentials are the network name and secret used by the radio.
type Credentials struct {
	SSID     string
	Password string
}

// Auth returns the authentication method implied by the password.
func (c Credentials) Auth() AuthMethod {
	if c.Password == "" {
		return AuthOpen
	}
	return AuthWPA2Personal
}

// AddressingKind selects how an IPv4 address is bound.
type AddressingKind int

const (
	AddressingDHCP AddressingKind = iota
	AddressingStatic
)

// String returns the kind name used in logs.
func (k AddressingKind) String() string {
	switch k {
	case AddressingDHCP:
		return "dhcp"
	case AddressingStatic:
		return "static"
	default:
		return "unknown"
	}
}

// StaticV4 is a pre-parsed static IPv4 configuration.
// Gateway is the zero Addr when no gateway was configured.
type StaticV4 struct {
	Address netip.Prefix
	Gateway netip.Addr
}

// Addressing is the address policy chosen once at startup.
type Addressing struct {
	Kind   AddressingKind
	Static StaticV4
}

// Defaults returns a Config populated with default values.
func Defaults() *Config {
	return &Config{
		Mode:      ModeStation,
		Hostname:  "wifiled",
		Interface: "lo",
		HTTP: HTTPConfig{
			Port:    80,
			Workers: 2,
			Timeouts: TimeoutConfig{
				StartReadRequest: 5 * time.Second,
				ReadRequest:      1 * time.Second,
				Write:            1 * time.Second,
			},
		},
		LED: LEDConfig{
			PollInterval: 50 * time.Millisecond,
		},
		MDNS:         true,
		LogLevel:     "info",
		RetryDelay:   5 * time.Second,
		PollInterval: 500 * time.Millisecond,
	}
}

// Credentials returns the configured SSID and password.
func (c *Config) Credentials() Credentials {
	return Credentials{SSID: c.SSID, Password: c.Password}
}

// Addressing parses the static IP settings into an addressing policy.
// An empty StaticIP selects DHCP.
func (c *Config) Addressing() (Addressing, error) {
	if c.StaticIP == "" {
		if c.GatewayIP != "" {
			return Addressing{}, NewError("gateway_ip", c.GatewayIP, "gateway requires static_ip to be set", nil)
		}
		return Addressing{Kind: AddressingDHCP}, nil
	}
	static, err := ParseStaticV4(c.StaticIP, c.GatewayIP)
	if err != nil {
		return Addressing{}, err
	}
	return Addressing{Kind: AddressingStatic, Static: static}, nil
}
