package discovery

import (
	"net"
	"strings"
	"testing"
	"time"

	"github.com/grandcat/zeroconf"
)

func newEntry(instance, host string, port int, ipv4, ipv6 []net.IP, text ...string) *zeroconf.ServiceEntry {
	entry := zeroconf.NewServiceEntry(instance, ServiceType, ServiceDomain)
	entry.HostName = host
	entry.Port = port
	entry.AddrIPv4 = ipv4
	entry.AddrIPv6 = ipv6
	entry.Text = text
	return entry
}

func TestParseServiceEntry(t *testing.T) {
	tests := []struct {
		name         string
		entry        *zeroconf.ServiceEntry
		wantNil      bool
		wantInstance string
		wantIP       string
		wantPort     int
		wantMode     string
	}{
		{
			name:         "relay with IPv4",
			entry:        newEntry("studio", "studio.local.", 8888, []net.IP{net.ParseIP("192.168.4.16")}, nil, "mode=inline", "version=v1.0.0"),
			wantInstance: "studio",
			wantIP:       "192.168.4.16",
			wantPort:     8888,
			wantMode:     "inline",
		},
		{
			name:         "escaped instance name",
			entry:        newEntry(`photorelay\ on\ studio`, "studio.local.", 9443, []net.IP{net.ParseIP("10.0.0.5")}, nil),
			wantInstance: "photorelay on studio",
			wantIP:       "10.0.0.5",
			wantPort:     9443,
		},
		{
			name:         "IPv6 only",
			entry:        newEntry("lab", "lab.local.", 8888, nil, []net.IP{net.ParseIP("fe80::1")}, "mode=disk"),
			wantInstance: "lab",
			wantIP:       "fe80::1",
			wantPort:     8888,
			wantMode:     "disk",
		},
		{
			name: "IPv4 preferred over IPv6",
			entry: newEntry("dual", "dual.local.", 8888,
				[]net.IP{net.ParseIP("172.16.0.1")}, []net.IP{net.ParseIP("fe80::2")}),
			wantInstance: "dual",
			wantIP:       "172.16.0.1",
			wantPort:     8888,
		},
		{
			name:         "no port falls back to default",
			entry:        newEntry("noport", "noport.local.", 0, []net.IP{net.ParseIP("172.16.0.2")}, nil),
			wantInstance: "noport",
			wantIP:       "172.16.0.2",
			wantPort:     DefaultPort,
		},
		{
			name:    "no addresses",
			entry:   newEntry("ghost", "ghost.local.", 8888, nil, nil),
			wantNil: true,
		},
		{
			name:    "no instance",
			entry:   newEntry("", "anon.local.", 8888, []net.IP{net.ParseIP("192.168.1.1")}, nil),
			wantNil: true,
		},
		{
			name:    "nil entry",
			entry:   nil,
			wantNil: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before := time.Now()
			relay := parseServiceEntry(tt.entry)

			if tt.wantNil {
				if relay != nil {
					t.Errorf("parseServiceEntry() = %v, want nil", relay)
				}
				return
			}
			if relay == nil {
				t.Fatal("parseServiceEntry() = nil")
			}
			if relay.Instance != tt.wantInstance {
				t.Errorf("Instance = %q, want %q", relay.Instance, tt.wantInstance)
			}
			if relay.IP != tt.wantIP {
				t.Errorf("IP = %q, want %q", relay.IP, tt.wantIP)
			}
			if relay.Port != tt.wantPort {
				t.Errorf("Port = %d, want %d", relay.Port, tt.wantPort)
			}
			if relay.Mode() != tt.wantMode {
				t.Errorf("Mode() = %q, want %q", relay.Mode(), tt.wantMode)
			}
			if relay.DiscoveredAt.Before(before) {
				t.Error("DiscoveredAt should be set to the parse time")
			}
		})
	}
}

func TestParseTXT(t *testing.T) {
	got := parseTXT([]string{"mode=disk", "flag", "path=/a=b", "=orphan", ""})

	want := map[string]string{"mode": "disk", "flag": "", "path": "/a=b"}
	if len(got) != len(want) {
		t.Fatalf("parseTXT() = %v, want %v", got, want)
	}
	for k, v := range want {
		if got[k] != v {
			t.Errorf("parseTXT()[%q] = %q, want %q", k, got[k], v)
		}
	}
}

func TestNewScanner(t *testing.T) {
	scanner := NewScanner()
	if scanner.Timeout != DefaultScanTimeout {
		t.Errorf("Timeout = %v, want %v", scanner.Timeout, DefaultScanTimeout)
	}
}

func TestAdvertisement_TXTRecords(t *testing.T) {
	ad := Advertisement{Port: 8888, Mode: "disk", Version: "v1.0.0"}
	got := strings.Join(ad.txtRecords(), ",")
	if got != "mode=disk,version=v1.0.0" {
		t.Errorf("txtRecords() = %q", got)
	}

	if len(Advertisement{Port: 8888}.txtRecords()) != 0 {
		t.Error("empty advertisement should have no TXT records")
	}
}

func TestAdvertise_RejectsBadPort(t *testing.T) {
	if _, err := Advertise(Advertisement{Port: 0}); err == nil {
		t.Error("Advertise() with port 0 should fail")
	}
}

func TestAdvertiser_NilShutdown(t *testing.T) {
	var a *Advertiser
	a.Shutdown()
}

func TestDefaultInstanceName(t *testing.T) {
	if !strings.HasPrefix(DefaultInstanceName(), "photorelay") {
		t.Errorf("DefaultInstanceName() = %q", DefaultInstanceName())
	}
}
