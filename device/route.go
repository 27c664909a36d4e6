package device

import "net/netip"

// RouteProtocol is how a route entered the table (spec.md §3).
type RouteProtocol uint8

const (
	RouteConnected RouteProtocol = iota
	RouteStatic
)

func (p RouteProtocol) String() string {
	switch p {
	case RouteConnected:
		return "connected"
	case RouteStatic:
		return "static"
	default:
		return "unknown"
	}
}

// Route is a routing table entry (spec.md §3).
type Route struct {
	Destination   netip.Addr
	Netmask       netip.Addr
	Gateway       netip.Addr
	InterfaceName string
	Metric        int
	Protocol      RouteProtocol
}
