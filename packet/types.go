package packet

import (
	"fmt"
	"net/netip"
)

// EtherType identifies the payload carried by an [Ethernet] frame. Only the
// two values the simulator exchanges are defined; this mirrors the
// teacher's much larger EtherType enum, trimmed to what's in scope.
type EtherType uint16

const (
	EtherTypeIPv4 EtherType = 0x0800 // IPv4
	EtherTypeARP  EtherType = 0x0806 // ARP
)

func (e EtherType) String() string {
	switch e {
	case EtherTypeIPv4:
		return "IPv4"
	case EtherTypeARP:
		return "ARP"
	default:
		return fmt.Sprintf("EtherType(0x%04x)", uint16(e))
	}
}

// IPProto identifies the payload carried by an [IPv4] packet.
type IPProto uint8

const (
	IPProtoICMP IPProto = 1  // ICMP
	IPProtoUDP  IPProto = 17 // UDP
)

func (p IPProto) String() string {
	switch p {
	case IPProtoICMP:
		return "ICMP"
	case IPProtoUDP:
		return "UDP"
	default:
		return fmt.Sprintf("IPProto(%d)", uint8(p))
	}
}

// ARPOp is the ARP packet opcode.
type ARPOp uint8

const (
	ARPRequest ARPOp = 1 // request
	ARPReply   ARPOp = 2 // reply
)

func (op ARPOp) String() string {
	switch op {
	case ARPRequest:
		return "request"
	case ARPReply:
		return "reply"
	default:
		return fmt.Sprintf("ARPOp(%d)", uint8(op))
	}
}

// ICMPType is the ICMP message type.
type ICMPType uint8

const (
	ICMPEchoReply            ICMPType = 0  // echo-reply
	ICMPDestinationUnreach   ICMPType = 3  // destination-unreachable
	ICMPEchoRequest          ICMPType = 8  // echo-request
	ICMPTimeExceeded         ICMPType = 11 // time-exceeded
)

func (t ICMPType) String() string {
	switch t {
	case ICMPEchoReply:
		return "echo-reply"
	case ICMPDestinationUnreach:
		return "destination-unreachable"
	case ICMPEchoRequest:
		return "echo-request"
	case ICMPTimeExceeded:
		return "time-exceeded"
	default:
		return fmt.Sprintf("ICMPType(%d)", uint8(t))
	}
}

// ICMP codes used by the generators in this package (§4.4, §7 of the spec).
const (
	ICMPCodeEchoDefault            = 0
	ICMPCodeNetworkUnreachable     = 0
	ICMPCodeTTLExceededInTransit   = 0
)

// Ethernet is the top-level frame exchanged between devices over a
// connection. Payload holds an *ARP or an *IPv4 value selected by EtherType.
type Ethernet struct {
	Destination MAC
	Source      MAC
	EtherType   EtherType
	Payload     any
}

// ARP is the Address Resolution Protocol packet body. HardwareType and
// ProtocolType are fixed at 1 and 0x0800 respectively by the constructors;
// they're exposed because the wire format requires them (spec.md §3).
type ARP struct {
	HardwareType uint16
	ProtocolType uint16
	Opcode       ARPOp
	SenderMAC    MAC
	SenderIP     netip.Addr
	TargetMAC    MAC
	TargetIP     netip.Addr
}

// IPv4 is the network-layer packet. Payload holds an *ICMP or a *UDP value
// selected by Protocol.
type IPv4 struct {
	TTL              uint8
	Protocol         IPProto
	Identification   uint16
	Source           netip.Addr
	Destination      netip.Addr
	Payload          any
}

// ICMP is the Internet Control Message Protocol body.
type ICMP struct {
	Type           ICMPType
	Code           uint8
	Identifier     uint16
	SequenceNumber uint16
	Data           []byte
}

// UDP is the transport-layer datagram. Payload holds a structured DHCP or
// DNS message value (never raw bytes — see DESIGN.md Open Question 3) keyed
// by the well-known destination port.
type UDP struct {
	SourcePort      uint16
	DestinationPort uint16
	Payload         any
}

// Well-known UDP ports used to route UDP payloads to the DHCP/DNS services
// co-located on a device (spec.md §4.4 step 2, §6).
const (
	PortDHCPServer = 67
	PortDHCPClient = 68
	PortDNS        = 53
)
