package packet

import (
	"net/netip"
	"testing"
)

func TestMACCanonicalization(t *testing.T) {
	tests := []string{"aa:bb:cc:dd:ee:ff", "AA:BB:CC:DD:EE:FF", "Aa:bB:cC:Dd:Ee:Ff"}
	for _, in := range tests {
		m, err := ParseMAC(in)
		if err != nil {
			t.Fatalf("ParseMAC(%q): %v", in, err)
		}
		if got := m.String(); got != "AA:BB:CC:DD:EE:FF" {
			t.Errorf("ParseMAC(%q).String() = %q, want canonical uppercase", in, got)
		}
	}
}

func TestParseMACRejectsGarbage(t *testing.T) {
	for _, in := range []string{"", "not-a-mac", "AA:BB:CC:DD:EE", "GG:BB:CC:DD:EE:FF"} {
		if _, err := ParseMAC(in); err == nil {
			t.Errorf("ParseMAC(%q): want error, got nil", in)
		}
	}
}

func TestIPRoundTrip(t *testing.T) {
	for _, n := range []uint32{0, 1, 0xffffffff, 0x0a000001, 0xc0a80101} {
		if got := IPToNumber(NumberToIP(n)); got != n {
			t.Errorf("IPToNumber(NumberToIP(%#x)) = %#x", n, got)
		}
	}
}

func TestPrefixNetmaskRoundTrip(t *testing.T) {
	for prefix := 0; prefix <= 32; prefix++ {
		mask := PrefixToNetmask(prefix)
		got, ok := NetmaskToPrefix(mask)
		if !ok {
			t.Fatalf("NetmaskToPrefix(%v): not recognized as contiguous", mask)
		}
		if got != prefix {
			t.Errorf("PrefixToNetmask(%d) -> NetmaskToPrefix = %d", prefix, got)
		}
	}
}

func TestNetmaskToPrefixRejectsNonContiguous(t *testing.T) {
	bad := NumberToIP(0xff00ff00) // 11111111 00000000 11111111 00000000
	if _, ok := NetmaskToPrefix(bad); ok {
		t.Errorf("NetmaskToPrefix(%v): want rejection of non-contiguous mask", bad)
	}
}

func TestIsIPInNetwork(t *testing.T) {
	network := netip.MustParseAddr("192.168.1.0")
	mask := PrefixToNetmask(24)
	in := netip.MustParseAddr("192.168.1.42")
	out := netip.MustParseAddr("192.168.2.1")
	if !IsIPInNetwork(in, network, mask) {
		t.Errorf("expected %v to be in network %v/%v", in, network, mask)
	}
	if IsIPInNetwork(out, network, mask) {
		t.Errorf("expected %v to NOT be in network %v/%v", out, network, mask)
	}
	if got := NetworkAddress(in, mask); got != network {
		t.Errorf("NetworkAddress(%v, %v) = %v, want %v", in, mask, got, network)
	}
}

func TestMakeARPRequestConventions(t *testing.T) {
	sender := MustParseMAC("AA:BB:CC:DD:EE:FF")
	senderIP := netip.MustParseAddr("10.0.0.1")
	targetIP := netip.MustParseAddr("10.0.0.2")
	req := MakeARPRequest(sender, senderIP, targetIP)
	if !req.TargetMAC.IsZero() {
		t.Errorf("ARP request TargetMAC = %v, want zero", req.TargetMAC)
	}
	if req.Opcode != ARPRequest {
		t.Errorf("ARP request opcode = %v, want %v", req.Opcode, ARPRequest)
	}
	eth := EthernetARP(req)
	if !eth.Destination.IsBroadcast() {
		t.Errorf("ARP request frame destination = %v, want broadcast", eth.Destination)
	}
}

func TestMakeARPReplyConventions(t *testing.T) {
	a := MustParseMAC("AA:BB:CC:DD:EE:FF")
	b := MustParseMAC("00:11:22:33:44:55")
	reply := MakeARPReply(a, netip.MustParseAddr("10.0.0.1"), b, netip.MustParseAddr("10.0.0.2"))
	if reply.SenderMAC != a || reply.TargetMAC != b {
		t.Errorf("ARP reply addresses mismatch: %+v", reply)
	}
	eth := EthernetARP(reply)
	if eth.Destination != b {
		t.Errorf("ARP reply frame destination = %v, want %v", eth.Destination, b)
	}
}

func TestMakeICMPEchoReply(t *testing.T) {
	req := MakeICMPEchoRequest(42, 7, []byte("payload"))
	reply := MakeICMPEchoReply(req)
	if reply.Type != ICMPEchoReply {
		t.Errorf("echo reply type = %v, want %v", reply.Type, ICMPEchoReply)
	}
	if reply.Identifier != req.Identifier || reply.SequenceNumber != req.SequenceNumber {
		t.Errorf("echo reply id/seq mismatch: got %+v, want matching %+v", reply, req)
	}
}
