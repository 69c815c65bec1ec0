package discovery

import (
	"strings"
	"testing"
)

func TestDevice_String(t *testing.T) {
	d := &Device{
		Instance: "kitchen",
		Hostname: "kitchen.local.",
		IP:       "192.168.1.40",
		Port:     80,
	}
	got := d.String()
	for _, want := range []string{"kitchen", "kitchen.local.", "192.168.1.40:80"} {
		if !strings.Contains(got, want) {
			t.Errorf("String() = %q, missing %q", got, want)
		}
	}
}

func TestDevice_BaseURL(t *testing.T) {
	tests := []struct {
		name string
		ip   string
		port int
		want string
	}{
		{"ipv4 default port", "192.168.13.37", 80, "http://192.168.13.37:80"},
		{"ipv4 custom port", "10.0.0.2", 8080, "http://10.0.0.2:8080"},
		{"ipv6", "fe80::1", 80, "http://[fe80::1]:80"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := &Device{IP: tt.ip, Port: tt.port}
			if got := d.BaseURL(); got != tt.want {
				t.Errorf("BaseURL() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestDevice_GetMetadata(t *testing.T) {
	d := &Device{Metadata: map[string]string{"version": "v1.0.0"}}
	if got := d.GetMetadata("version"); got != "v1.0.0" {
		t.Errorf("GetMetadata(version) = %q", got)
	}
	if got := d.GetMetadata("missing"); got != "" {
		t.Errorf("GetMetadata(missing) = %q, want empty", got)
	}

	var empty Device
	if got := empty.GetMetadata("version"); got != "" {
		t.Errorf("nil metadata GetMetadata = %q, want empty", got)
	}
}
