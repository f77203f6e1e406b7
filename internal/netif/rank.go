// Package netif enumerates local addresses and ranks them so multi-homed
// binding and address reporting follow one deterministic preference order.
package netif

import (
	"net/netip"
	"sort"
)

const (
	baseScore     = 1000
	loopbackScore = 300
	ipv4Bonus     = 100
	gatewayBonus  = 1000
)

// Family restricts candidate addresses to one IP version.
type Family int

const (
	AnyFamily Family = iota
	IPv4
	IPv6
)

// String returns the flag spelling of the family.
func (f Family) String() string {
	switch f {
	case IPv4:
		return "ipv4"
	case IPv6:
		return "ipv6"
	default:
		return "any"
	}
}

// Matches reports whether addr belongs to the family.
func (f Family) Matches(addr netip.Addr) bool {
	switch f {
	case IPv4:
		return addr.Unmap().Is4()
	case IPv6:
		return addr.Is6() && !addr.Is4In6()
	default:
		return true
	}
}

// Candidate is a local unicast address and the interface that carries it.
type Candidate struct {
	Addr      netip.Addr
	Interface string
	Up        bool
}

// Ranked is a local address with its preference score; higher is preferred.
type Ranked struct {
	Addr  netip.Addr
	Score int
}

// Score rates one candidate. gatewayIface names the interface holding the
// default route, or is empty when there is none.
//
// Loopback addresses are kept but demoted, IPv4 is preferred over IPv6,
// addresses on the default-route interface are boosted and link-local
// addresses always rank last.
func Score(c Candidate, gatewayIface string) int {
	addr := c.Addr.Unmap()
	score := baseScore

	if addr.IsLoopback() {
		score = loopbackScore
	}
	if addr.Is4() {
		score += ipv4Bonus
	}
	if gatewayIface != "" && c.Up && c.Interface == gatewayIface {
		score += gatewayBonus
	}
	if addr.IsLinkLocalUnicast() {
		score = 0
	}
	return score
}

// Rank scores candidates, drops duplicate addresses (first occurrence wins)
// and sorts by descending score. Ties keep enumeration order.
func Rank(cands []Candidate, gatewayIface string) []Ranked {
	seen := make(map[netip.Addr]struct{}, len(cands))
	ranked := make([]Ranked, 0, len(cands))

	for _, c := range cands {
		if _, ok := seen[c.Addr]; ok {
			continue
		}
		seen[c.Addr] = struct{}{}
		ranked = append(ranked, Ranked{Addr: c.Addr, Score: Score(c, gatewayIface)})
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Score > ranked[j].Score
	})
	return ranked
}

// Addrs returns the addresses of ranked in order.
func Addrs(ranked []Ranked) []netip.Addr {
	addrs := make([]netip.Addr, len(ranked))
	for i, r := range ranked {
		addrs[i] = r.Addr
	}
	return addrs
}

// Filter keeps the ranked addresses of one family, preserving order.
func Filter(ranked []Ranked, family Family) []Ranked {
	var kept []Ranked
	for _, r := range ranked {
		if family.Matches(r.Addr) {
			kept = append(kept, r)
		}
	}
	return kept
}
