package device

import (
	"log/slog"
	"net/netip"

	"github.com/nettopo/netsim/packet"
)

// Host is the "Host" device role of spec.md §2's "Device roles" row: ARP
// and local ICMP echo handling, with no forwarding behavior. DHCP client
// and DNS resolver are driven externally (by the simulator/driver) through
// their own Receive methods — a Host only needs to demultiplex inbound
// frames to them, which it does via the OnUDP hook.
type Host struct {
	NS  *NetStack
	Log *slog.Logger

	// OnUDP, if set, is invoked for inbound UDP payloads so a DHCP client
	// or DNS resolver attached to this host can process replies.
	OnUDP func(udp *packet.UDP)
}

// NewHost constructs a host over ns.
func NewHost(ns *NetStack, log *slog.Logger) *Host {
	return &Host{NS: ns, Log: log}
}

// Process implements the host half of spec.md §4.4's per-frame handling:
// ARP resolution/reply and local ICMP echo, with UDP payloads handed to
// OnUDP for DHCP/DNS client state machines to consume.
func (h *Host) Process(frame *packet.Ethernet, ingressIface string) *packet.Ethernet {
	switch frame.EtherType {
	case packet.EtherTypeARP:
		req, ok := frame.Payload.(*packet.ARP)
		if !ok {
			return nil
		}
		reply := h.NS.ProcessARP(req, ingressIface)
		if reply == nil {
			return nil
		}
		return packet.EthernetARP(reply)
	case packet.EtherTypeIPv4:
		ip, ok := frame.Payload.(*packet.IPv4)
		if !ok {
			return nil
		}
		if ip.Protocol == packet.IPProtoUDP {
			if udp, ok := ip.Payload.(*packet.UDP); ok && h.OnUDP != nil {
				h.OnUDP(udp)
			}
			return nil
		}
		if icmp, ok := ip.Payload.(*packet.ICMP); ok {
			reply := HandleLocalICMP(icmp)
			if reply == nil {
				return nil
			}
			return h.wrapICMPReply(reply, ip.Destination, ip.Source, ingressIface)
		}
		return nil
	default:
		return nil
	}
}

func (h *Host) wrapICMPReply(icmp *packet.ICMP, localIP, destIP netip.Addr, ingressIface string) *packet.Ethernet {
	iface, ok := h.NS.Device.Interface(ingressIface)
	if !ok {
		return nil
	}
	mac, _ := h.NS.ARP.Lookup(destIP)
	ipPkt := &packet.IPv4{
		TTL:         64,
		Protocol:    packet.IPProtoICMP,
		Source:      localIP,
		Destination: destIP,
		Payload:     icmp,
	}
	return &packet.Ethernet{
		Destination: mac,
		Source:      iface.MACAddress,
		EtherType:   packet.EtherTypeIPv4,
		Payload:     ipPkt,
	}
}
