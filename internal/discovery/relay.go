package discovery

import (
	"fmt"
	"net"
	"strconv"
	"time"
)

// Relay represents a photorelay server found on the network
type Relay struct {
	// Instance is the advertised instance name (e.g., "photorelay on studio")
	Instance string

	// Hostname is the mDNS hostname (e.g., "studio.local.")
	Hostname string

	// IP is the IPv4 address, or IPv6 when the relay has no IPv4 address
	IP string

	// Port is the TLS WebSocket port
	Port int

	// Metadata contains the mDNS TXT record data
	// Common fields: "mode=inline", "version=v1.2.0"
	Metadata map[string]string

	// DiscoveredAt is when the relay was discovered
	DiscoveredAt time.Time
}

// String returns a human-readable string representation of the relay
func (r *Relay) String() string {
	return fmt.Sprintf("%s (%s) at %s", r.Instance, r.Hostname, r.Address())
}

// Address returns host:port, bracketing IPv6 addresses
func (r *Relay) Address() string {
	return net.JoinHostPort(r.IP, strconv.Itoa(r.Port))
}

// URL returns the WebSocket URL for the relay
func (r *Relay) URL() string {
	return "wss://" + r.Address() + "/"
}

// Mode returns the advertised relay mode, or "" if unknown
func (r *Relay) Mode() string {
	return r.GetMetadata(TXTMode)
}

// GetMetadata retrieves a metadata value by key, or returns empty string if not found
func (r *Relay) GetMetadata(key string) string {
	if r.Metadata == nil {
		return ""
	}
	return r.Metadata[key]
}
