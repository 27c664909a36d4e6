package device

import (
	"log/slog"
	"net/netip"

	"github.com/nettopo/netsim/arp"
	"github.com/nettopo/netsim/clock"
	"github.com/nettopo/netsim/packet"
)

// NetStack is the per-device network stack of spec.md §2's "L2.5 Network
// stack" row: the interface table, routing table, ARP glue, and local
// ICMP delivery shared by host and router roles.
type NetStack struct {
	Device *Device
	Routes RouteTable
	ARP    *arp.Service
}

// NewNetStack wires a NetStack's ARP service to the device's packet-sender
// hook.
func NewNetStack(d *Device, cl clock.Clock, arpCfg arp.Config, log *slog.Logger) *NetStack {
	ns := &NetStack{Device: d}
	ns.ARP = arp.New(arpCfg, cl, func(ifaceName string, frame *packet.Ethernet) error {
		return ns.sendVia(ifaceName, frame)
	}, log)
	return ns
}

func (ns *NetStack) sendVia(ifaceName string, frame *packet.Ethernet) error {
	if ns.Device.Send == nil {
		return nil
	}
	return ns.Device.Send(ifaceName, frame)
}

// ConfigureInterface sets an interface's IP/mask (spec.md §3's interface
// lifecycle: "configuring IP+mask while up also inserts a connected
// route"). Returns false on an invalid address per spec.md §7's
// InvalidAddress error kind.
func (ns *NetStack) ConfigureInterface(ifaceName string, ip, mask netip.Addr) bool {
	iface, ok := ns.Device.Interface(ifaceName)
	if !ok || !ip.Is4() || !mask.Is4() {
		return false
	}
	if _, ok := packet.NetmaskToPrefix(mask); !ok {
		return false
	}
	iface.IPAddress = ip
	iface.SubnetMask = mask
	if iface.IsUp {
		ns.Routes.Add(Route{
			Destination:   packet.NetworkAddress(ip, mask),
			Netmask:       mask,
			Gateway:       netip.IPv4Unspecified(),
			InterfaceName: ifaceName,
			Protocol:      RouteConnected,
		})
	}
	return true
}

// ToggleInterface brings an interface up or down.
func (ns *NetStack) ToggleInterface(ifaceName string, up bool) bool {
	iface, ok := ns.Device.Interface(ifaceName)
	if !ok {
		return false
	}
	iface.IsUp = up
	return true
}

// AddStaticRoute inserts a static route (spec.md §4's CLI-adjacent
// operation, surfaced here for the simulator/driver to call).
func (ns *NetStack) AddStaticRoute(dest, mask, gateway netip.Addr, ifaceName string, metric int) bool {
	if _, ok := packet.NetmaskToPrefix(mask); !ok {
		return false
	}
	ns.Routes.Add(Route{
		Destination:   dest,
		Netmask:       mask,
		Gateway:       gateway,
		InterfaceName: ifaceName,
		Metric:        metric,
		Protocol:      RouteStatic,
	})
	return true
}

// HandleLocalICMP implements the local-delivery half of spec.md §4.4 step
// 2's "process locally (ICMP echo handling, etc.)": only EchoRequest gets
// a reply, everything else is consumed silently.
func HandleLocalICMP(icmp *packet.ICMP) *packet.ICMP {
	if icmp == nil || icmp.Type != packet.ICMPEchoRequest {
		return nil
	}
	return packet.MakeICMPEchoReply(icmp)
}

// ProcessARP runs the device's ARP logic for an inbound ARP packet
// (spec.md §4.5's process_packet), replying through local{MAC,IP} when
// the device is the resolution target.
func (ns *NetStack) ProcessARP(req *packet.ARP, ingressIface string) *packet.ARP {
	iface, ok := ns.Device.Interface(ingressIface)
	if !ok || !iface.HasIP() {
		return nil
	}
	return ns.ARP.Process(req, ingressIface, iface.IPAddress, iface.MACAddress)
}
