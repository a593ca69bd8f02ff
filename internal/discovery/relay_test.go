package discovery

import (
	"strings"
	"testing"
	"time"
)

func TestRelay_String(t *testing.T) {
	relay := &Relay{
		Instance: "photorelay on studio",
		Hostname: "studio.local.",
		IP:       "192.168.1.20",
		Port:     8888,
	}

	got := relay.String()
	for _, want := range []string{"photorelay on studio", "studio.local.", "192.168.1.20:8888"} {
		if !strings.Contains(got, want) {
			t.Errorf("String() = %q, missing %q", got, want)
		}
	}
}

func TestRelay_URL(t *testing.T) {
	tests := []struct {
		name string
		ip   string
		port int
		want string
	}{
		{"ipv4", "192.168.1.20", 8888, "wss://192.168.1.20:8888/"},
		{"custom port", "10.0.0.5", 9443, "wss://10.0.0.5:9443/"},
		{"ipv6", "fe80::1", 8888, "wss://[fe80::1]:8888/"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			relay := &Relay{IP: tt.ip, Port: tt.port}
			if got := relay.URL(); got != tt.want {
				t.Errorf("URL() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestRelay_GetMetadata(t *testing.T) {
	relay := &Relay{
		Metadata:     map[string]string{"mode": "disk", "version": "v1.0.0"},
		DiscoveredAt: time.Now(),
	}

	if relay.Mode() != "disk" {
		t.Errorf("Mode() = %q, want disk", relay.Mode())
	}
	if relay.GetMetadata("version") != "v1.0.0" {
		t.Errorf("GetMetadata(version) = %q", relay.GetMetadata("version"))
	}
	if relay.GetMetadata("missing") != "" {
		t.Error("GetMetadata() of a missing key should be empty")
	}

	empty := &Relay{}
	if empty.GetMetadata("mode") != "" {
		t.Error("GetMetadata() with nil metadata should be empty")
	}
}
