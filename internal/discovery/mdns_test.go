package discovery

import (
	"net"
	"testing"

	"github.com/grandcat/zeroconf"
)

func entry(instance, host string, port int, v4 []string, v6 []string, txt ...string) *zeroconf.ServiceEntry {
	e := zeroconf.NewServiceEntry(instance, ServiceType, ServiceDomain)
	e.HostName = host
	e.Port = port
	e.Text = txt
	for _, ip := range v4 {
		e.AddrIPv4 = append(e.AddrIPv4, net.ParseIP(ip))
	}
	for _, ip := range v6 {
		e.AddrIPv6 = append(e.AddrIPv6, net.ParseIP(ip))
	}
	return e
}

func TestParseServiceEntry(t *testing.T) {
	tests := []struct {
		name     string
		entry    *zeroconf.ServiceEntry
		wantNil  bool
		instance string
		ip       string
		port     int
		mode     string
	}{
		{
			name:    "nil entry",
			entry:   nil,
			wantNil: true,
		},
		{
			name:    "other http service",
			entry:   entry("printer", "printer.local.", 80, []string{"192.168.1.9"}, nil, "path=/"),
			wantNil: true,
		},
		{
			name:    "wifiled without address",
			entry:   entry("wifiled", "wifiled.local.", 80, nil, nil, DeviceTag),
			wantNil: true,
		},
		{
			name:     "station device",
			entry:    entry("wifiled", "wifiled.local.", 80, []string{"192.168.1.40"}, nil, DeviceTag, "mode=station", "version=v1.0.0"),
			instance: "wifiled",
			ip:       "192.168.1.40",
			port:     80,
			mode:     "station",
		},
		{
			name:     "prefers ipv4",
			entry:    entry("porch", "porch.local.", 8080, []string{"10.0.0.7"}, []string{"fe80::1"}, DeviceTag),
			instance: "porch",
			ip:       "10.0.0.7",
			port:     8080,
		},
		{
			name:     "ipv6 only",
			entry:    entry("porch", "porch.local.", 80, nil, []string{"fe80::1"}, DeviceTag),
			instance: "porch",
			ip:       "fe80::1",
			port:     80,
		},
		{
			name:     "zero port falls back",
			entry:    entry("ap", "ap.local.", 0, []string{"192.168.13.37"}, nil, DeviceTag, "mode=access_point"),
			instance: "ap",
			ip:       "192.168.13.37",
			port:     DefaultPort,
			mode:     "access_point",
		},
		{
			name:     "instance from hostname",
			entry:    entry("", "desk.local.", 80, []string{"10.0.0.8"}, nil, DeviceTag),
			instance: "desk",
			ip:       "10.0.0.8",
			port:     80,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := parseServiceEntry(tt.entry)
			if tt.wantNil {
				if got != nil {
					t.Fatalf("parseServiceEntry() = %v, want nil", got)
				}
				return
			}
			if got == nil {
				t.Fatal("parseServiceEntry() = nil")
			}
			if got.Instance != tt.instance {
				t.Errorf("Instance = %q, want %q", got.Instance, tt.instance)
			}
			if got.IP != tt.ip {
				t.Errorf("IP = %q, want %q", got.IP, tt.ip)
			}
			if got.Port != tt.port {
				t.Errorf("Port = %d, want %d", got.Port, tt.port)
			}
			if got.Mode != tt.mode {
				t.Errorf("Mode = %q, want %q", got.Mode, tt.mode)
			}
			if got.DiscoveredAt.IsZero() {
				t.Error("DiscoveredAt not set")
			}
		})
	}
}

func TestParseText(t *testing.T) {
	got := parseText([]string{"device=wifiled", "path=/", "flag", "url=http://x/?a=b"})
	want := map[string]string{
		"device": "wifiled",
		"path":   "/",
		"flag":   "",
		"url":    "http://x/?a=b",
	}
	if len(got) != len(want) {
		t.Fatalf("parseText() = %v, want %v", got, want)
	}
	for k, v := range want {
		if got[k] != v {
			t.Errorf("parseText()[%q] = %q, want %q", k, got[k], v)
		}
	}
}

func TestAnnouncement_Text(t *testing.T) {
	a := Announcement{Instance: "wifiled", Port: 80, Version: "v1.0.0", Mode: "station"}
	got := a.Text()
	want := []string{DeviceTag, "path=/", "version=v1.0.0", "mode=station"}
	if len(got) != len(want) {
		t.Fatalf("Text() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Text()[%d] = %q, want %q", i, got[i], want[i])
		}
	}

	// The advertised record must be recognised by the scanner.
	e := entry(a.Instance, "wifiled.local.", a.Port, []string{"192.168.1.40"}, nil, got...)
	if d := parseServiceEntry(e); d == nil || d.Version != "v1.0.0" {
		t.Errorf("parseServiceEntry(advertised) = %v", d)
	}
}
