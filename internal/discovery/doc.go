// Package discovery advertises and finds photorelay servers with mDNS/DNS-SD.
//
// A relay started with advertising enabled registers the "_photorelay._tcp"
// service with TXT records carrying its mode and version. Clients browse for
// that service type to find relays without knowing their address.
//
// # Usage Example
//
//	// Advertise a relay
//	adv, err := discovery.Advertise(discovery.Advertisement{
//	    Port: 8888,
//	    Mode: "inline",
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer adv.Shutdown()
//
//	// Find relays with a 3-second timeout
//	relays, err := discovery.ScanForRelays(ctx, 3*time.Second)
//	for _, relay := range relays {
//	    fmt.Println(relay.Instance, relay.URL())
//	}
//
// # Network Requirements
//
//   - Requires multicast support on the network interface
//   - Relays must be on the same local network segment
//   - Firewall must allow mDNS (UDP port 5353)
package discovery
