package device

import (
	"net/netip"

	"github.com/nettopo/netsim/packet"
)

// InterfaceType is an interface's media kind (spec.md §3).
type InterfaceType uint8

const (
	InterfaceEthernet InterfaceType = iota
	InterfaceLoopback
	InterfaceSerial
)

func (t InterfaceType) String() string {
	switch t {
	case InterfaceEthernet:
		return "ethernet"
	case InterfaceLoopback:
		return "loopback"
	case InterfaceSerial:
		return "serial"
	default:
		return "unknown"
	}
}

// PortMode is a switch interface's VLAN trunking mode (spec.md §3/§4.3).
type PortMode uint8

const (
	PortAccess PortMode = iota
	PortTrunk
)

func (m PortMode) String() string {
	switch m {
	case PortAccess:
		return "access"
	case PortTrunk:
		return "trunk"
	default:
		return "unknown"
	}
}

// DefaultVLAN is the VLAN an interface belongs to unless configured
// otherwise (spec.md §3).
const DefaultVLAN = 1

// Interface is a device interface (spec.md §3).
type Interface struct {
	ID         string
	Name       string
	Type       InterfaceType
	MACAddress packet.MAC
	IPAddress  netip.Addr
	SubnetMask netip.Addr
	IsUp       bool
	VLAN       int
	PortMode   PortMode
}

// NewInterface constructs an up interface on the default VLAN in access
// mode — the defaults spec.md §3 specifies.
func NewInterface(id, name string, typ InterfaceType, mac packet.MAC) *Interface {
	return &Interface{
		ID:       id,
		Name:     name,
		Type:     typ,
		MACAddress: mac,
		IsUp:     true,
		VLAN:     DefaultVLAN,
		PortMode: PortAccess,
	}
}

// HasIP reports whether the interface has a configured IPv4 address.
func (i *Interface) HasIP() bool { return i.IPAddress.IsValid() }
