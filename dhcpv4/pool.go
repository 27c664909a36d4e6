package dhcpv4

import (
	"errors"
	"net/netip"

	"github.com/nettopo/netsim/packet"
)

// ErrNonContiguousMask is returned by [Pool.Validate] when the pool's mask
// is not a contiguous netmask. spec.md §9 flags that the original source
// treats network/mask as CIDR without validating the mask is contiguous;
// DESIGN.md's Open Question 2 resolves that by rejecting it here instead.
var ErrNonContiguousMask = errors.New("dhcpv4: pool mask is not a contiguous netmask")

// Pool is a DHCP address pool (spec.md §4.6).
type Pool struct {
	Name          string
	Network       netip.Addr
	Mask          netip.Addr
	DefaultRouter netip.Addr
	DNSServer     []netip.Addr
	Domain        string
	LeaseSeconds  int
	Excluded      map[netip.Addr]bool
}

// Validate checks that the pool's mask is a contiguous netmask and its
// lease time is positive.
func (p *Pool) Validate() error {
	if _, ok := packet.NetmaskToPrefix(p.Mask); !ok {
		return ErrNonContiguousMask
	}
	if p.LeaseSeconds <= 0 {
		return errors.New("dhcpv4: pool lease time must be positive")
	}
	return nil
}

// Contains reports whether ip falls within the pool's network/mask.
func (p *Pool) Contains(ip netip.Addr) bool {
	return packet.IsIPInNetwork(ip, p.Network, p.Mask)
}

// broadcast returns the pool's directed broadcast address.
func (p *Pool) broadcast() netip.Addr {
	return packet.BroadcastAddress(p.Network, p.Mask)
}

// walk calls visit(ip) for every host address strictly between the
// network address and the broadcast address, i.e. network+1 .. broadcast-1,
// stopping early if visit returns true.
func (p *Pool) walk(visit func(netip.Addr) bool) {
	start := packet.IPToNumber(p.Network) + 1
	end := packet.IPToNumber(p.broadcast()) - 1
	for n := start; n <= end; n++ {
		if visit(packet.NumberToIP(n)) {
			return
		}
	}
}

// isExcluded reports whether ip is in the pool's exclusion set.
func (p *Pool) isExcluded(ip netip.Addr) bool {
	return p.Excluded[ip]
}
