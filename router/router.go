// Package router implements the L3 forwarding plane of spec.md §4.4:
// ARP-mediated next-hop resolution, TTL handling and ICMP error
// generation, and DHCP/DNS co-location dispatched by destination UDP
// port. Grounded on spec.md §4.4 directly — TTL/ICMP field semantics are
// grounded on the teacher's soypat-lneto/ipv4/icmpv4/icmpv4.go type/code
// vocabulary, which packet/types.go already carries forward.
package router

import (
	"log/slog"
	"net/netip"

	"github.com/nettopo/netsim/device"
	"github.com/nettopo/netsim/dhcpv4"
	"github.com/nettopo/netsim/dns"
	"github.com/nettopo/netsim/internal"
	"github.com/nettopo/netsim/packet"
)

// Router is the L3 forwarding plane of spec.md §4.4, layered over a
// [device.NetStack]. DHCP and DNS are optional co-located servers (nil
// disables dispatch to that service, per spec.md §4.4 step "dispatch to
// the DHCP/DNS server co-located on the router").
type Router struct {
	NS   *device.NetStack
	DHCP *dhcpv4.Server
	DNS  *dns.Server
	Log  *slog.Logger
}

// New constructs a router over ns.
func New(ns *device.NetStack, log *slog.Logger) *Router {
	return &Router{NS: ns, Log: log}
}

// Process implements spec.md §4.4's per-frame algorithm. It returns a
// reply frame to send back out ingressIface, if any; forwarded packets
// and ARP-pending forwards are emitted directly through the device's
// packet-sender hook and never returned here.
func (r *Router) Process(frame *packet.Ethernet, ingressIface string) *packet.Ethernet {
	switch frame.EtherType {
	case packet.EtherTypeARP:
		return r.processARP(frame, ingressIface)
	case packet.EtherTypeIPv4:
		return r.processIPv4(frame, ingressIface)
	default:
		return nil
	}
}

func (r *Router) processARP(frame *packet.Ethernet, ingressIface string) *packet.Ethernet {
	req, ok := frame.Payload.(*packet.ARP)
	if !ok {
		return nil
	}
	reply := r.NS.ProcessARP(req, ingressIface)
	if reply == nil {
		return nil
	}
	return packet.EthernetARP(reply)
}

func (r *Router) processIPv4(frame *packet.Ethernet, ingressIface string) *packet.Ethernet {
	ip, ok := frame.Payload.(*packet.IPv4)
	if !ok {
		return nil
	}

	if ip.Protocol == packet.IPProtoUDP {
		if udp, ok := ip.Payload.(*packet.UDP); ok {
			if reply := r.dispatchUDPServer(udp, ip, ingressIface); reply != nil {
				return reply
			}
		}
	}

	if r.isLocalDestination(ip.Destination) {
		return r.processLocal(ip, ingressIface)
	}

	return r.forward(frame, ip, ingressIface)
}

func (r *Router) isLocalDestination(dst netip.Addr) bool {
	if dst == netip.IPv4Unspecified() {
		return false
	}
	if dst == netip.MustParseAddr("255.255.255.255") {
		return true
	}
	_, ok := r.NS.Device.InterfaceByIP(dst)
	return ok
}

func (r *Router) processLocal(ip *packet.IPv4, ingressIface string) *packet.Ethernet {
	icmp, ok := ip.Payload.(*packet.ICMP)
	if !ok {
		return nil
	}
	reply := device.HandleLocalICMP(icmp)
	if reply == nil {
		return nil
	}
	return r.wrapICMPReply(reply, ip.Destination, ip.Source, ingressIface)
}

// dispatchUDPServer implements spec.md §4.4's "dispatch to the DHCP/DNS
// server co-located on the router" for ports 67 (DHCP server) and 53
// (DNS).
func (r *Router) dispatchUDPServer(udp *packet.UDP, ip *packet.IPv4, ingressIface string) *packet.Ethernet {
	switch udp.DestinationPort {
	case packet.PortDHCPServer:
		if r.DHCP == nil {
			return nil
		}
		req, ok := udp.Payload.(*dhcpv4.Message)
		if !ok {
			return nil
		}
		reply, err := r.DHCP.Process(req)
		if err != nil {
			internal.Warn(r.Log, "router: dhcp process failed", slog.String("err", err.Error()))
			return nil
		}
		if reply == nil {
			return nil
		}
		return r.wrapDHCPReply(reply, ingressIface)
	case packet.PortDNS:
		if r.DNS == nil {
			return nil
		}
		query, ok := udp.Payload.(*dns.Message)
		if !ok {
			return nil
		}
		reply := r.DNS.Process(query)
		return r.wrapDNSReply(reply, ip.Source, ingressIface)
	default:
		return nil
	}
}

func (r *Router) wrapDHCPReply(reply *dhcpv4.Message, ingressIface string) *packet.Ethernet {
	iface, ok := r.NS.Device.Interface(ingressIface)
	if !ok {
		return nil
	}
	destIP := reply.YIAddr
	destMAC := reply.CHAddr
	if reply.DestinationBroadcast() {
		destIP = netip.MustParseAddr("255.255.255.255")
		destMAC = packet.BroadcastMAC()
	}
	ipPkt := &packet.IPv4{
		TTL:         64,
		Protocol:    packet.IPProtoUDP,
		Source:      iface.IPAddress,
		Destination: destIP,
		Payload: &packet.UDP{
			SourcePort:      packet.PortDHCPServer,
			DestinationPort: packet.PortDHCPClient,
			Payload:         reply,
		},
	}
	return &packet.Ethernet{
		Destination: destMAC,
		Source:      iface.MACAddress,
		EtherType:   packet.EtherTypeIPv4,
		Payload:     ipPkt,
	}
}

func (r *Router) wrapDNSReply(reply *dns.Message, destIP netip.Addr, ingressIface string) *packet.Ethernet {
	iface, ok := r.NS.Device.Interface(ingressIface)
	if !ok {
		return nil
	}
	mac, _ := r.NS.ARP.Lookup(destIP)
	ipPkt := &packet.IPv4{
		TTL:         64,
		Protocol:    packet.IPProtoUDP,
		Source:      iface.IPAddress,
		Destination: destIP,
		Payload: &packet.UDP{
			SourcePort:      packet.PortDNS,
			DestinationPort: packet.PortDNS,
			Payload:         reply,
		},
	}
	return &packet.Ethernet{
		Destination: mac,
		Source:      iface.MACAddress,
		EtherType:   packet.EtherTypeIPv4,
		Payload:     ipPkt,
	}
}

func (r *Router) wrapICMPReply(icmp *packet.ICMP, localIP, destIP netip.Addr, ingressIface string) *packet.Ethernet {
	iface, ok := r.NS.Device.Interface(ingressIface)
	if !ok {
		return nil
	}
	mac, _ := r.NS.ARP.Lookup(destIP)
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

// forward implements spec.md §4.4 step 2's routing branch (a)-(g). The
// TTL-exceeded and no-route branches return the ICMP error directly
// (mirroring processLocal's direct-return pattern) since both are
// produced synchronously in response to the inbound frame; a
// successfully forwarded packet has no reply to the ingress side and is
// instead emitted through the device's send hook, same as an
// ARP-pending forward.
func (r *Router) forward(frame *packet.Ethernet, ip *packet.IPv4, ingressIface string) *packet.Ethernet {
	if ip.TTL <= 1 {
		reply := packet.MakeICMPTimeExceeded(ip)
		return r.wrapICMPReply(reply, r.ingressIP(ingressIface), ip.Source, ingressIface)
	}
	decremented := *ip
	decremented.TTL--

	route, ok := r.NS.Routes.Lookup(ip.Destination)
	if !ok {
		reply := packet.MakeICMPDestinationUnreachable(ip)
		return r.wrapICMPReply(reply, r.ingressIP(ingressIface), ip.Source, ingressIface)
	}
	if !r.egressUsable(route.InterfaceName, ingressIface) {
		return nil // down, or split-horizon: silent drop (spec.md §4.4 step d).
	}

	nextHop := route.Gateway
	if !nextHop.IsValid() || nextHop == netip.IPv4Unspecified() {
		nextHop = ip.Destination
	}

	egressIface, _ := r.NS.Device.Interface(route.InterfaceName)
	if mac, ok := r.NS.ARP.Lookup(nextHop); ok {
		r.sendForwarded(egressIface, mac, &decremented)
		return nil
	}
	r.NS.ARP.Resolve(nextHop, egressIface.MACAddress, egressIface.IPAddress, route.InterfaceName, func(mac packet.MAC, ok bool) {
		if !ok {
			internal.Debug(r.Log, "router: arp resolution failed, dropping forwarded packet",
				slog.String("next_hop", nextHop.String()))
			return
		}
		r.sendForwarded(egressIface, mac, &decremented)
	})
	return nil
}

func (r *Router) egressUsable(egressIface, ingressIface string) bool {
	if egressIface == ingressIface {
		return false
	}
	iface, ok := r.NS.Device.Interface(egressIface)
	return ok && iface.IsUp
}

func (r *Router) ingressIP(ingressIface string) netip.Addr {
	if iface, ok := r.NS.Device.Interface(ingressIface); ok {
		return iface.IPAddress
	}
	return netip.Addr{}
}

func (r *Router) sendForwarded(egressIface *device.Interface, destMAC packet.MAC, ip *packet.IPv4) {
	frame := &packet.Ethernet{
		Destination: destMAC,
		Source:      egressIface.MACAddress,
		EtherType:   packet.EtherTypeIPv4,
		Payload:     ip,
	}
	r.sendOut(egressIface.Name, frame)
}

func (r *Router) sendOut(ifaceName string, frame *packet.Ethernet) {
	if frame == nil || r.NS.Device.Send == nil {
		return
	}
	if err := r.NS.Device.Send(ifaceName, frame); err != nil {
		internal.Warn(r.Log, "router: send failed", slog.String("err", err.Error()))
	}
}
