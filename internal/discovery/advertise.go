package discovery

import (
	"fmt"
	"os"

	"github.com/grandcat/zeroconf"
	"github.com/muurk/photorelay/internal/logging"
	"go.uber.org/zap"
)

// TXT record keys published with the service
const (
	TXTMode    = "mode"
	TXTVersion = "version"
)

// Advertisement describes a relay to publish over mDNS
type Advertisement struct {
	// Instance is the service instance name. Empty uses "photorelay on <hostname>".
	Instance string
	Port     int
	Mode     string
	Version  string
}

// Advertiser publishes a relay until Shutdown is called
type Advertiser struct {
	server   *zeroconf.Server
	instance string
}

// Advertise registers the relay on all multicast-capable interfaces
func Advertise(ad Advertisement) (*Advertiser, error) {
	if ad.Port <= 0 {
		return nil, fmt.Errorf("invalid port %d", ad.Port)
	}

	instance := ad.Instance
	if instance == "" {
		instance = DefaultInstanceName()
	}

	server, err := zeroconf.Register(instance, ServiceType, ServiceDomain, ad.Port, ad.txtRecords(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to register mDNS service: %w", err)
	}

	logging.Info("Advertising relay over mDNS",
		zap.String("instance", instance),
		zap.String("service", ServiceType),
		zap.Int("port", ad.Port),
	)

	return &Advertiser{server: server, instance: instance}, nil
}

// Instance returns the registered instance name
func (a *Advertiser) Instance() string {
	return a.instance
}

// Shutdown withdraws the advertisement. Safe to call on a nil Advertiser.
func (a *Advertiser) Shutdown() {
	if a == nil || a.server == nil {
		return
	}
	a.server.Shutdown()
	logging.Info("Stopped mDNS advertisement", zap.String("instance", a.instance))
}

func (ad Advertisement) txtRecords() []string {
	var txt []string
	if ad.Mode != "" {
		txt = append(txt, TXTMode+"="+ad.Mode)
	}
	if ad.Version != "" {
		txt = append(txt, TXTVersion+"="+ad.Version)
	}
	return txt
}

// DefaultInstanceName returns "photorelay on <hostname>"
func DefaultInstanceName() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		return "photorelay"
	}
	return "photorelay on " + host
}
