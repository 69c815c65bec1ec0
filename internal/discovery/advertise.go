package discovery

import (
	"fmt"
	"net"

	"github.com/grandcat/zeroconf"
	"github.com/muurk/wifiled/internal/logging"
	"go.uber.org/zap"
)

// Announcement describes the service a daemon advertises.
type Announcement struct {
	Instance  string // also used as the mDNS host name
	Port      int
	IP        string // bound address; empty lets zeroconf pick interface addresses
	Interface string // host interface to announce on; empty means all
	Version   string
	Mode      string
	MAC       string
}

// Text returns the TXT record for the announcement.
func (a Announcement) Text() []string {
	txt := []string{DeviceTag, "path=/"}
	if a.Version != "" {
		txt = append(txt, "version="+a.Version)
	}
	if a.Mode != "" {
		txt = append(txt, "mode="+a.Mode)
	}
	if a.MAC != "" {
		txt = append(txt, "mac="+a.MAC)
	}
	return txt
}

// Advertiser is a running mDNS registration.
type Advertiser struct {
	server *zeroconf.Server
}

// Advertise registers the service until Shutdown is called. When both an
// interface and an address are known the record is pinned to them.
func Advertise(a Announcement) (*Advertiser, error) {
	var ifaces []net.Interface
	if a.Interface != "" {
		ifi, err := net.InterfaceByName(a.Interface)
		if err != nil {
			logging.Warn("mDNS interface not found, announcing on all interfaces",
				zap.String("interface", a.Interface),
				zap.Error(err),
			)
		} else {
			ifaces = []net.Interface{*ifi}
		}
	}

	var (
		server *zeroconf.Server
		err    error
	)
	if a.IP != "" && len(ifaces) > 0 {
		server, err = zeroconf.RegisterProxy(a.Instance, ServiceType, ServiceDomain, a.Port,
			a.Instance, []string{a.IP}, a.Text(), ifaces)
	} else {
		server, err = zeroconf.Register(a.Instance, ServiceType, ServiceDomain, a.Port, a.Text(), ifaces)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to register mDNS service: %w", err)
	}

	logging.Info("mDNS service registered",
		zap.String("instance", a.Instance),
		zap.String("service", ServiceType),
		zap.Int("port", a.Port),
		zap.Strings("txt", a.Text()),
	)
	return &Advertiser{server: server}, nil
}

// Shutdown withdraws the registration.
func (a *Advertiser) Shutdown() {
	if a == nil || a.server == nil {
		return
	}
	a.server.Shutdown()
	logging.Info("mDNS service withdrawn")
}
