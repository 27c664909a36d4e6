package router

import (
	"net/netip"
	"testing"
	"time"

	"github.com/nettopo/netsim/arp"
	"github.com/nettopo/netsim/clock"
	"github.com/nettopo/netsim/device"
	"github.com/nettopo/netsim/packet"
)

func newTestRouter(t *testing.T) (*Router, *device.NetStack, map[string][]*packet.Ethernet) {
	t.Helper()
	d := device.New("r1", "router1", device.KindRouter, nil)
	d.AddInterface(device.NewInterface("i0", "gi0/0", device.InterfaceEthernet, packet.MustParseMAC("00:00:00:00:00:01")))
	d.AddInterface(device.NewInterface("i1", "gi0/1", device.InterfaceEthernet, packet.MustParseMAC("00:00:00:00:00:02")))

	sent := make(map[string][]*packet.Ethernet)
	d.Send = func(ifaceName string, frame *packet.Ethernet) error {
		sent[ifaceName] = append(sent[ifaceName], frame)
		return nil
	}

	vc := clock.NewVirtual(time.Unix(0, 0))
	ns := device.NewNetStack(d, vc, arp.DefaultConfig(), nil)
	ns.ConfigureInterface("gi0/0", netip.MustParseAddr("192.168.1.1"), netip.MustParseAddr("255.255.255.0"))
	ns.ConfigureInterface("gi0/1", netip.MustParseAddr("10.0.0.1"), netip.MustParseAddr("255.255.255.0"))

	return New(ns, nil), ns, sent
}

func TestProcessARPRequestRepliesInline(t *testing.T) {
	r, _, _ := newTestRouter(t)
	req := packet.MakeARPRequest(
		packet.MustParseMAC("AA:AA:AA:AA:AA:AA"),
		netip.MustParseAddr("192.168.1.50"),
		netip.MustParseAddr("192.168.1.1"),
	)
	frame := packet.EthernetARP(req)
	reply := r.Process(frame, "gi0/0")
	if reply == nil {
		t.Fatal("expected an inline ARP reply")
	}
	replyARP := reply.Payload.(*packet.ARP)
	if replyARP.SenderIP != netip.MustParseAddr("192.168.1.1") {
		t.Fatalf("expected reply from router's own IP, got %v", replyARP.SenderIP)
	}
}

func TestProcessEchoRequestRepliesLocally(t *testing.T) {
	r, ns, _ := newTestRouter(t)
	ns.ARP.AddStaticEntry(netip.MustParseAddr("192.168.1.50"), packet.MustParseMAC("AA:AA:AA:AA:AA:AA"), "gi0/0")

	icmp := packet.MakeICMPEchoRequest(1, 1, []byte("hi"))
	ip := &packet.IPv4{TTL: 64, Protocol: packet.IPProtoICMP, Source: netip.MustParseAddr("192.168.1.50"), Destination: netip.MustParseAddr("192.168.1.1"), Payload: icmp}
	frame := &packet.Ethernet{Source: packet.MustParseMAC("AA:AA:AA:AA:AA:AA"), Destination: packet.MustParseMAC("00:00:00:00:00:01"), EtherType: packet.EtherTypeIPv4, Payload: ip}

	reply := r.Process(frame, "gi0/0")
	if reply == nil {
		t.Fatal("expected an echo reply")
	}
	replyIP := reply.Payload.(*packet.IPv4)
	replyICMP := replyIP.Payload.(*packet.ICMP)
	if replyICMP.Type != packet.ICMPEchoReply {
		t.Fatalf("expected echo reply, got %v", replyICMP.Type)
	}
}

func TestForwardDecrementsTTLAndUsesRoute(t *testing.T) {
	r, ns, sent := newTestRouter(t)
	ns.ARP.AddStaticEntry(netip.MustParseAddr("10.0.0.99"), packet.MustParseMAC("BB:BB:BB:BB:BB:BB"), "gi0/1")

	ip := &packet.IPv4{TTL: 10, Protocol: packet.IPProtoICMP, Source: netip.MustParseAddr("192.168.1.50"), Destination: netip.MustParseAddr("10.0.0.99"), Payload: packet.MakeICMPEchoRequest(1, 1, nil)}
	frame := &packet.Ethernet{Source: packet.MustParseMAC("AA:AA:AA:AA:AA:AA"), Destination: packet.MustParseMAC("00:00:00:00:00:01"), EtherType: packet.EtherTypeIPv4, Payload: ip}

	reply := r.Process(frame, "gi0/0")
	if reply != nil {
		t.Fatalf("expected forwarding to emit via the send hook, not return a reply, got %+v", reply)
	}
	out := sent["gi0/1"]
	if len(out) != 1 {
		t.Fatalf("expected 1 forwarded frame out gi0/1, got %d", len(out))
	}
	fwdIP := out[0].Payload.(*packet.IPv4)
	if fwdIP.TTL != 9 {
		t.Fatalf("expected TTL decremented to 9, got %d", fwdIP.TTL)
	}
	if out[0].Destination != packet.MustParseMAC("BB:BB:BB:BB:BB:BB") {
		t.Fatalf("expected destination MAC from ARP cache, got %v", out[0].Destination)
	}
}

func TestForwardTTLExpiredEmitsTimeExceeded(t *testing.T) {
	r, _, _ := newTestRouter(t)
	ip := &packet.IPv4{TTL: 1, Protocol: packet.IPProtoICMP, Source: netip.MustParseAddr("192.168.1.50"), Destination: netip.MustParseAddr("10.0.0.99"), Payload: packet.MakeICMPEchoRequest(1, 1, nil)}
	frame := &packet.Ethernet{Source: packet.MustParseMAC("AA:AA:AA:AA:AA:AA"), Destination: packet.MustParseMAC("00:00:00:00:00:01"), EtherType: packet.EtherTypeIPv4, Payload: ip}

	reply := r.Process(frame, "gi0/0")
	if reply == nil {
		t.Fatal("expected an ICMP time-exceeded reply")
	}
	replyICMP := reply.Payload.(*packet.IPv4).Payload.(*packet.ICMP)
	if replyICMP.Type != packet.ICMPTimeExceeded {
		t.Fatalf("expected time-exceeded, got %v", replyICMP.Type)
	}
}

func TestForwardNoRouteEmitsDestinationUnreachable(t *testing.T) {
	r, _, _ := newTestRouter(t)
	ip := &packet.IPv4{TTL: 64, Protocol: packet.IPProtoICMP, Source: netip.MustParseAddr("192.168.1.50"), Destination: netip.MustParseAddr("8.8.8.8"), Payload: packet.MakeICMPEchoRequest(1, 1, nil)}
	frame := &packet.Ethernet{Source: packet.MustParseMAC("AA:AA:AA:AA:AA:AA"), Destination: packet.MustParseMAC("00:00:00:00:00:01"), EtherType: packet.EtherTypeIPv4, Payload: ip}

	reply := r.Process(frame, "gi0/0")
	if reply == nil {
		t.Fatal("expected an ICMP destination-unreachable reply")
	}
	replyICMP := reply.Payload.(*packet.IPv4).Payload.(*packet.ICMP)
	if replyICMP.Type != packet.ICMPDestinationUnreach {
		t.Fatalf("expected destination-unreachable, got %v", replyICMP.Type)
	}
}
