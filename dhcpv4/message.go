// Package dhcpv4 implements the DHCP client and server state machines
// described in spec.md §4.6-§4.7: a BOOTP-shaped structured message, a
// lease-pool server, and a client lifecycle (Init/Selecting/Requesting/
// Bound/Renewing/Rebinding) driven by a [clock.Clock].
//
// Grounded on the teacher's soypat-lneto/dhcpv4/{server,client}.go (lease
// entry shape, client state constants, renewal timer structure), adapted
// from a byte-buffer wire codec to the structured Message value spec.md's
// Non-goals call for. The option-code and message-type vocabulary is reused
// from github.com/insomniacslk/dhcp/dhcpv4, the same package
// AdguardTeam-AdGuardHome and ngcxy-dranet vendor for it, instead of
// hand-rolled numeric constants.
package dhcpv4

import (
	"net/netip"

	upstream "github.com/insomniacslk/dhcp/dhcpv4"

	"github.com/nettopo/netsim/packet"
)

// MessageType is DHCP option 53's value; spec.md §GLOSSARY "Offer / Request
// / Ack / Nak" are message types 2/3/5/6.
type MessageType = upstream.MessageType

var (
	MsgDiscover = upstream.MessageTypeDiscover
	MsgOffer    = upstream.MessageTypeOffer
	MsgRequest  = upstream.MessageTypeRequest
	MsgDecline  = upstream.MessageTypeDecline
	MsgAck      = upstream.MessageTypeAck
	MsgNak      = upstream.MessageTypeNak
	MsgRelease  = upstream.MessageTypeRelease
)

// OptNum is a BOOTP/DHCP option code (spec.md §3).
type OptNum uint8

// Option codes, their numeric values sourced from
// github.com/insomniacslk/dhcp/dhcpv4's option vocabulary rather than
// hand-rolled (spec.md §3's option-code list).
var (
	OptSubnetMask       = OptNum(upstream.OptionSubnetMask.Code())
	OptRouter           = OptNum(upstream.OptionRouter.Code())
	OptDNS              = OptNum(upstream.OptionDomainNameServer.Code())
	OptDomainName       = OptNum(upstream.OptionDomainName.Code())
	OptRequestedIP      = OptNum(upstream.OptionRequestedIPAddress.Code())
	OptLeaseTime        = OptNum(upstream.OptionIPAddressLeaseTime.Code())
	OptServerID         = OptNum(upstream.OptionServerIdentifier.Code())
	OptParamReqList     = OptNum(upstream.OptionParameterRequestList.Code())
	OptRenewalTime      = OptNum(upstream.OptionRenewTimeValue.Code())
	OptRebindingTime    = OptNum(upstream.OptionRebindingTimeValue.Code())
	OptMessageType      = OptNum(upstream.OptionDHCPMessageType.Code())
	OptEnd              = OptNum(upstream.OptionEnd.Code())
)

// Opcode distinguishes a client request (BOOTREQUEST) from a server reply
// (BOOTREPLY), spec.md §3's `op` field.
type Opcode uint8

const (
	OpRequest Opcode = 1
	OpReply   Opcode = 2
)

// BroadcastFlag is the 0x8000 bit of the Flags field (spec.md §3).
const BroadcastFlag uint16 = 0x8000

// Option is one (code, value) pair of a Message's option list, in the
// order they appear on the "wire" (here: in the slice). Value holds the
// structured Go value for the option — a netip.Addr, []netip.Addr, uint32,
// MessageType or string depending on Code — never raw bytes, per
// DESIGN.md's Open Question 3.
type Option struct {
	Code  OptNum
	Value any
}

// Message is the BOOTP-shaped DHCP message of spec.md §3.
type Message struct {
	Op      Opcode
	HType   uint8
	HLen    uint8
	XID     uint32
	Flags   uint16
	CIAddr  netip.Addr
	YIAddr  netip.Addr
	SIAddr  netip.Addr
	GIAddr  netip.Addr
	CHAddr  packet.MAC
	Options []Option
}

// IsBroadcast reports whether the client requested a broadcast reply.
func (m *Message) IsBroadcast() bool { return m.Flags&BroadcastFlag != 0 }

// Option returns the raw value of the first option with the given code.
func (m *Message) Option(code OptNum) (any, bool) {
	for _, o := range m.Options {
		if o.Code == code {
			return o.Value, true
		}
	}
	return nil, false
}

// SetOption appends or replaces the option with the given code.
func (m *Message) SetOption(code OptNum, value any) {
	for i := range m.Options {
		if m.Options[i].Code == code {
			m.Options[i].Value = value
			return
		}
	}
	m.Options = append(m.Options, Option{Code: code, Value: value})
}

// MessageType returns the value of option 53, the message type.
func (m *Message) MessageType() (MessageType, bool) {
	v, ok := m.Option(OptMessageType)
	if !ok {
		return 0, false
	}
	mt, ok := v.(MessageType)
	return mt, ok
}

// OptionIP returns an option's value as a netip.Addr.
func (m *Message) OptionIP(code OptNum) (netip.Addr, bool) {
	v, ok := m.Option(code)
	if !ok {
		return netip.Addr{}, false
	}
	ip, ok := v.(netip.Addr)
	return ip, ok
}

// OptionUint32 returns an option's value as a uint32 (e.g. lease/renewal/
// rebinding times, all expressed in seconds per spec.md §3).
func (m *Message) OptionUint32(code OptNum) (uint32, bool) {
	v, ok := m.Option(code)
	if !ok {
		return 0, false
	}
	u, ok := v.(uint32)
	return u, ok
}

// OptionIPList returns an option's value as a slice of netip.Addr (used for
// option 3 Router and option 6 DNS, which may carry more than one address).
func (m *Message) OptionIPList(code OptNum) ([]netip.Addr, bool) {
	v, ok := m.Option(code)
	if !ok {
		return nil, false
	}
	ips, ok := v.([]netip.Addr)
	return ips, ok
}
