// Package device implements the device identity and per-device network
// stack of spec.md §3-§4.2/§4.4-§4.5: interface table, routing table, ARP
// glue, and local ICMP delivery shared by host, switch and router roles.
//
// Grounded on the teacher's soypat-lneto/internet/basicstack.go (embedded
// logger, `SetAddr`/`Addr` accessor shape, `isLocal` subnet-membership
// check) and soypat-lneto/internet/stack-ip.go (per-node dispatch table),
// generalized from a single-stack, single-address byte-view model to a
// multi-interface, multi-route structured-value device.
package device

import (
	"log/slog"
	"net/netip"

	"github.com/nettopo/netsim/packet"
)

// Kind is a device's role (spec.md §3 "Device identity").
type Kind uint8

const (
	KindHost Kind = iota
	KindSwitch
	KindRouter
)

func (k Kind) String() string {
	switch k {
	case KindHost:
		return "host"
	case KindSwitch:
		return "switch"
	case KindRouter:
		return "router"
	default:
		return "unknown"
	}
}

// Position is a device's canvas position, carried through for topology
// introspection/visualization parity with spec.md §3; the simulation core
// never reads it.
type Position struct {
	X, Y float64
}

// SenderFunc is the packet-sender hook spec.md §6 installs on every
// registered device: the sole outbound boundary for a device and its
// subcomponents (ARP, DHCP, DNS).
type SenderFunc func(ifaceName string, frame *packet.Ethernet) error

// Device is the identity and interface/route bookkeeping of spec.md §3's
// "Device identity", shared by every role (Host, Switch, Router).
type Device struct {
	ID        string
	Name      string
	Hostname  string
	Kind      Kind
	PoweredOn bool
	Position  Position

	Log *slog.Logger

	interfaces   []*Interface
	byName       map[string]*Interface
	Send         SenderFunc
}

// New constructs a powered-on device with no interfaces.
func New(id, name string, kind Kind, log *slog.Logger) *Device {
	return &Device{
		ID:        id,
		Name:      name,
		Hostname:  name,
		Kind:      kind,
		PoweredOn: true,
		Log:       log,
		byName:    make(map[string]*Interface),
	}
}

// AddInterface attaches a new interface to the device at construction time
// (spec.md §3's interface lifecycle).
func (d *Device) AddInterface(iface *Interface) {
	d.interfaces = append(d.interfaces, iface)
	d.byName[iface.Name] = iface
}

// Interfaces returns the device's interfaces in insertion order — the
// order spec.md §4.3's flood fan-out and §5's ordering guarantees rely on.
func (d *Device) Interfaces() []*Interface { return d.interfaces }

// Interface looks up an interface by name.
func (d *Device) Interface(name string) (*Interface, bool) {
	iface, ok := d.byName[name]
	return iface, ok
}

// InterfaceByIP returns the interface configured with ip, if any.
func (d *Device) InterfaceByIP(ip netip.Addr) (*Interface, bool) {
	for _, iface := range d.interfaces {
		if iface.IPAddress == ip {
			return iface, true
		}
	}
	return nil, false
}

// PowerOff marks the device powered off; the simulator's delivery
// algorithm drops frames to/from a powered-off device (spec.md §4.2).
func (d *Device) PowerOff() { d.PoweredOn = false }

// PowerOn marks the device powered on.
func (d *Device) PowerOn() { d.PoweredOn = true }
