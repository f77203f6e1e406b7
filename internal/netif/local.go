package netif

import (
	"fmt"
	"net"
	"net/netip"

	"github.com/jackpal/gateway"
	"github.com/lni/dragonboat/v4/logger"
)

var plog = logger.GetLogger("netif")

// Source produces the ranked local addresses a server may bind.
type Source func() ([]Ranked, error)

// Local is the Source backed by the host's network interfaces.
func Local() ([]Ranked, error) {
	cands, err := Enumerate()
	if err != nil {
		return nil, err
	}
	return Rank(cands, GatewayInterface(cands)), nil
}

// Enumerate lists the unicast addresses of every local interface. IPv6
// link-local addresses carry their interface as zone so they can be bound.
func Enumerate() ([]Candidate, error) {
	ifaces, err := net.Interfaces()
	if err != nil {
		return nil, fmt.Errorf("failed to list network interfaces: %w", err)
	}

	var cands []Candidate
	for _, iface := range ifaces {
		addrs, err := iface.Addrs()
		if err != nil {
			plog.Warningf("skipping interface %s: %v", iface.Name, err)
			continue
		}
		for _, a := range addrs {
			ipNet, ok := a.(*net.IPNet)
			if !ok {
				continue
			}
			addr, ok := netip.AddrFromSlice(ipNet.IP)
			if !ok {
				continue
			}
			addr = addr.Unmap()
			if addr.Is6() && addr.IsLinkLocalUnicast() {
				addr = addr.WithZone(iface.Name)
			}
			cands = append(cands, Candidate{
				Addr:      addr,
				Interface: iface.Name,
				Up:        iface.Flags&net.FlagUp != 0,
			})
		}
	}
	return cands, nil
}

// GatewayInterface returns the name of the first up interface that carries
// the default route, or "" when no default route is configured.
func GatewayInterface(cands []Candidate) string {
	ip, err := gateway.DiscoverInterface()
	if err != nil {
		plog.Debugf("no default gateway: %v", err)
		return ""
	}
	routed, ok := netip.AddrFromSlice(ip)
	if !ok {
		return ""
	}
	routed = routed.Unmap()

	for _, c := range cands {
		if c.Up && c.Addr.WithZone("") == routed {
			return c.Interface
		}
	}
	return ""
}

// Static returns a Source that always yields addrs ranked without interface
// information, in the order given before scoring.
func Static(addrs ...netip.Addr) Source {
	return func() ([]Ranked, error) {
		cands := make([]Candidate, len(addrs))
		for i, a := range addrs {
			cands[i] = Candidate{Addr: a}
		}
		return Rank(cands, ""), nil
	}
}
