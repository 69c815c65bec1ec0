package config

import (
	"errors"
	"fmt"
	"net/netip"
	"strings"
)

// ValidateSSID validates a WiFi SSID.
// SSIDs must be non-empty and fit the 32 byte radio field.
func ValidateSSID(ssid string) error {
	if ssid == "" {
		return NewError("ssid", "", "SSID cannot be empty", nil)
	}
	if len(ssid) > MaxSSIDLength {
		return NewError("ssid", ssid, fmt.Sprintf("too long (max %d bytes): %d bytes", MaxSSIDLength, len(ssid)), nil)
	}
	return nil
}

// ValidatePassword validates a WiFi password.
// Empty means an open network; otherwise a WPA2 passphrase of 8-63 bytes or a
// 64 character hex PSK.
func ValidatePassword(password string) error {
	switch {
	case password == "":
		return nil
	case len(password) == RawPSKLength:
		if !isHex(password) {
			return NewError("password", redact(password), "64 character keys must be hexadecimal", nil)
		}
		return nil
	case len(password) < MinPassphraseLength:
		return NewError("password", redact(password), fmt.Sprintf("WPA2 passphrase too short (min %d bytes)", MinPassphraseLength), nil)
	case len(password) > MaxPassphraseLength:
		return NewError("password", redact(password), fmt.Sprintf("WPA2 passphrase too long (max %d bytes)", MaxPassphraseLength), nil)
	}
	return nil
}

// ValidateCredentials validates SSID and password together.
func ValidateCredentials(c Credentials) []error {
	var errs []error
	if err := ValidateSSID(c.SSID); err != nil {
		errs = append(errs, err)
	}
	if err := ValidatePassword(c.Password); err != nil {
		errs = append(errs, err)
	}
	return errs
}

// ParseStaticV4 parses a CIDR address (e.g. "192.168.0.50/24") and an optional
// gateway (e.g. "192.168.0.1"). Both must be IPv4.
func ParseStaticV4(cidr, gateway string) (StaticV4, error) {
	prefix, err := netip.ParsePrefix(strings.TrimSpace(cidr))
	if err != nil {
		return StaticV4{}, NewError("static_ip", cidr, "must be an IPv4 CIDR such as 192.168.0.50/24", err)
	}
	if !prefix.Addr().Is4() {
		return StaticV4{}, NewError("static_ip", cidr, "must be an IPv4 address", nil)
	}
	if prefix.Addr().IsUnspecified() || prefix.Bits() == 0 {
		return StaticV4{}, NewError("static_ip", cidr, "address and prefix length must be non-zero", nil)
	}

	static := StaticV4{Address: prefix}
	if gateway == "" {
		return static, nil
	}

	gw, err := netip.ParseAddr(strings.TrimSpace(gateway))
	if err != nil {
		return StaticV4{}, NewError("gateway_ip", gateway, "must be an IPv4 address such as 192.168.0.1", err)
	}
	if !gw.Is4() {
		return StaticV4{}, NewError("gateway_ip", gateway, "must be an IPv4 address", nil)
	}
	static.Gateway = gw
	return static, nil
}

// ValidatePort validates a TCP port number.
func ValidatePort(port int) error {
	if port <= 0 || port > 65535 {
		return NewError("http.port", fmt.Sprint(port), "must be 1-65535", nil)
	}
	return nil
}

// Validate checks the whole configuration and returns every problem found,
// joined with errors.Join. Each joined error is a *Error.
func (c *Config) Validate() error {
	var errs []error

	switch c.Mode {
	case ModeStation, ModeAccessPoint:
	default:
		errs = append(errs, NewError("mode", string(c.Mode), "must be \"station\" or \"ap\"", nil))
	}

	errs = append(errs, ValidateCredentials(c.Credentials())...)

	if _, err := c.Addressing(); err != nil {
		errs = append(errs, err)
	} else if c.Mode == ModeAccessPoint && c.StaticIP == "" {
		errs = append(errs, NewError("static_ip", "", "access-point mode requires a static address", nil))
	}

	if err := ValidatePort(c.HTTP.Port); err != nil {
		errs = append(errs, err)
	}
	if c.HTTP.Workers < 1 {
		errs = append(errs, NewError("http.workers", fmt.Sprint(c.HTTP.Workers), "must be at least 1", nil))
	}
	if c.HTTP.Timeouts.StartReadRequest < 0 || c.HTTP.Timeouts.ReadRequest < 0 || c.HTTP.Timeouts.Write < 0 {
		errs = append(errs, NewError("http.timeouts", "", "timeouts cannot be negative (0 means unbounded)", nil))
	}
	if c.Hostname == "" || len(c.Hostname) > 63 {
		errs = append(errs, NewError("hostname", c.Hostname, "must be 1-63 characters", nil))
	}
	if c.RetryDelay <= 0 {
		errs = append(errs, NewError("retry_delay", c.RetryDelay.String(), "must be positive", nil))
	}
	if c.PollInterval <= 0 {
		errs = append(errs, NewError("poll_interval", c.PollInterval.String(), "must be positive", nil))
	}
	if c.LED.PollInterval <= 0 {
		errs = append(errs, NewError("led.poll_interval", c.LED.PollInterval.String(), "must be positive", nil))
	}

	return errors.Join(errs...)
}

func isHex(s string) bool {
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9', r >= 'a' && r <= 'f', r >= 'A' && r <= 'F':
		default:
			return false
		}
	}
	return true
}
