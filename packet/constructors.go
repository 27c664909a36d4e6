package packet

import "net/netip"

// These are the sanctioned constructors named in spec.md §4.1: the only
// supported way to build an ARP or ICMP packet, so that the broadcast-MAC
// and zero-target-MAC conventions are enforced in one place instead of at
// every call site.

const (
	arpHardwareTypeEthernet = 1
	arpProtocolTypeIPv4     = 0x0800
)

// MakeARPRequest builds an ARP request asking who has targetIP, sent from
// (senderMAC, senderIP). The target hardware address is the all-zero
// placeholder per spec.md §3.
func MakeARPRequest(senderMAC MAC, senderIP netip.Addr, targetIP netip.Addr) *ARP {
	return &ARP{
		HardwareType: arpHardwareTypeEthernet,
		ProtocolType: arpProtocolTypeIPv4,
		Opcode:       ARPRequest,
		SenderMAC:    senderMAC,
		SenderIP:     senderIP,
		TargetMAC:    MAC{},
		TargetIP:     targetIP,
	}
}

// MakeARPReply builds an ARP reply from (senderMAC, senderIP) answering a
// request from (targetMAC, targetIP).
func MakeARPReply(senderMAC MAC, senderIP netip.Addr, targetMAC MAC, targetIP netip.Addr) *ARP {
	return &ARP{
		HardwareType: arpHardwareTypeEthernet,
		ProtocolType: arpProtocolTypeIPv4,
		Opcode:       ARPReply,
		SenderMAC:    senderMAC,
		SenderIP:     senderIP,
		TargetMAC:    targetMAC,
		TargetIP:     targetIP,
	}
}

// EthernetARP wraps an ARP packet in an Ethernet frame addressed per ARP
// convention: requests go to the broadcast MAC, replies go to the request's
// sender MAC.
func EthernetARP(arp *ARP) *Ethernet {
	dst := arp.TargetMAC
	if arp.Opcode == ARPRequest {
		dst = BroadcastMAC()
	}
	return &Ethernet{
		Destination: dst,
		Source:      arp.SenderMAC,
		EtherType:   EtherTypeARP,
		Payload:     arp,
	}
}

// MakeICMPEchoRequest builds an ICMP echo request.
func MakeICMPEchoRequest(id, seq uint16, data []byte) *ICMP {
	return &ICMP{
		Type:           ICMPEchoRequest,
		Code:           ICMPCodeEchoDefault,
		Identifier:     id,
		SequenceNumber: seq,
		Data:           data,
	}
}

// MakeICMPEchoReply builds an ICMP echo reply answering the given echo
// request's identifier/sequence/data.
func MakeICMPEchoReply(req *ICMP) *ICMP {
	return &ICMP{
		Type:           ICMPEchoReply,
		Code:           ICMPCodeEchoDefault,
		Identifier:     req.Identifier,
		SequenceNumber: req.SequenceNumber,
		Data:           req.Data,
	}
}

// MakeICMPTimeExceeded builds the ICMP "TTL exceeded in transit" error sent
// back to the original source when a router decrements a packet's TTL to
// zero (spec.md §4.4 step 2a, §7 TtlExpired).
func MakeICMPTimeExceeded(original *IPv4) *ICMP {
	return &ICMP{
		Type: ICMPTimeExceeded,
		Code: ICMPCodeTTLExceededInTransit,
		Data: encapsulatedHeaderHint(original),
	}
}

// MakeICMPDestinationUnreachable builds the ICMP "network unreachable"
// error sent back to the original source when no route covers the
// destination (spec.md §4.4 step 2c, §7 NoRoute).
func MakeICMPDestinationUnreachable(original *IPv4) *ICMP {
	return &ICMP{
		Type: ICMPDestinationUnreach,
		Code: ICMPCodeNetworkUnreachable,
		Data: encapsulatedHeaderHint(original),
	}
}

// encapsulatedHeaderHint carries enough of the original packet for tests and
// introspection to identify what triggered the error, without requiring a
// real byte-accurate re-embedding of the original IPv4 header (non-goal).
func encapsulatedHeaderHint(original *IPv4) []byte {
	if original == nil {
		return nil
	}
	return []byte(original.Destination.String())
}
