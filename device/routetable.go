package device

import (
	"net/netip"
	"sort"

	"github.com/nettopo/netsim/packet"
)

// RouteTable holds a device's routes, always kept sorted by descending
// prefix length so a linear scan yields longest-prefix match (spec.md §3's
// invariant and §4.4's forwarding lookup).
type RouteTable struct {
	routes []Route
}

// Add inserts or replaces the route for (destination, netmask) — spec.md
// §3's invariant that there is at most one route per (destination,
// netmask) pair. The table is re-sorted by descending prefix length,
// ties broken by insertion order (stable sort).
func (rt *RouteTable) Add(r Route) {
	for i := range rt.routes {
		if rt.routes[i].Destination == r.Destination && rt.routes[i].Netmask == r.Netmask {
			rt.routes[i] = r
			rt.resort()
			return
		}
	}
	rt.routes = append(rt.routes, r)
	rt.resort()
}

// Remove deletes the route for (destination, netmask), if present.
func (rt *RouteTable) Remove(destination, netmask netip.Addr) {
	for i := range rt.routes {
		if rt.routes[i].Destination == destination && rt.routes[i].Netmask == netmask {
			rt.routes = append(rt.routes[:i], rt.routes[i+1:]...)
			return
		}
	}
}

func (rt *RouteTable) resort() {
	sort.SliceStable(rt.routes, func(i, j int) bool {
		return prefixLen(rt.routes[i].Netmask) > prefixLen(rt.routes[j].Netmask)
	})
}

func prefixLen(mask netip.Addr) int {
	p, ok := packet.NetmaskToPrefix(mask)
	if !ok {
		return -1
	}
	return p
}

// Lookup performs longest-prefix match for ip (spec.md §4.4). The table is
// kept sorted by descending prefix length, so the first matching entry is
// the most specific.
func (rt *RouteTable) Lookup(ip netip.Addr) (Route, bool) {
	for _, r := range rt.routes {
		if packet.IsIPInNetwork(ip, r.Destination, r.Netmask) {
			return r, true
		}
	}
	return Route{}, false
}

// Routes returns the table's routes in their current (prefix-descending)
// order.
func (rt *RouteTable) Routes() []Route {
	out := make([]Route, len(rt.routes))
	copy(out, rt.routes)
	return out
}
