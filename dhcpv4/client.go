package dhcpv4

import (
	"crypto/rand"
	"encoding/binary"
	"log/slog"
	"net/netip"
	"time"

	"github.com/nettopo/netsim/clock"
	"github.com/nettopo/netsim/internal"
	"github.com/nettopo/netsim/packet"
)

// ClientState is the DHCP client lifecycle state of spec.md §4.7.
type ClientState uint8

const (
	Init ClientState = iota
	Selecting
	Requesting
	Bound
	Renewing
	Rebinding
)

func (s ClientState) String() string {
	switch s {
	case Init:
		return "init"
	case Selecting:
		return "selecting"
	case Requesting:
		return "requesting"
	case Bound:
		return "bound"
	case Renewing:
		return "renewing"
	case Rebinding:
		return "rebinding"
	default:
		return "unknown"
	}
}

// ClientLease is the lease state held by a bound client (spec.md §4.7).
type ClientLease struct {
	IP             netip.Addr
	ServerID       netip.Addr
	SubnetMask     netip.Addr
	DefaultGateway netip.Addr
	DNSServers     []netip.Addr
	Domain         string
	LeaseSeconds   uint32
	T1Seconds      uint32
	T2Seconds      uint32
}

// ClientSenderFunc emits a client message through the device's packet
// sender hook (spec.md §6).
type ClientSenderFunc func(msg *Message) error

// Client is the DHCP client state machine of spec.md §4.7.
type Client struct {
	mac        packet.MAC
	clock      clock.Clock
	send       ClientSenderFunc
	log        *slog.Logger
	onObtained func(*ClientLease)
	onExpired  func()

	state ClientState
	xid   uint32
	lease *ClientLease

	t1, t2, expiry clock.Timer
}

// NewClient constructs a DHCP client bound to the given hardware address.
func NewClient(mac packet.MAC, cl clock.Clock, send ClientSenderFunc, log *slog.Logger, onObtained func(*ClientLease), onExpired func()) *Client {
	if cl == nil {
		cl = clock.Real{}
	}
	return &Client{
		mac:        mac,
		clock:      cl,
		send:       send,
		log:        log,
		onObtained: onObtained,
		onExpired:  onExpired,
		state:      Init,
	}
}

// State returns the client's current lifecycle state.
func (c *Client) State() ClientState { return c.state }

// Lease returns the client's current lease, or nil if unbound.
func (c *Client) Lease() *ClientLease { return c.lease }

func randomXID() uint32 {
	var b [4]byte
	_, _ = rand.Read(b[:])
	return binary.BigEndian.Uint32(b[:])
}

// Discover emits a DISCOVER and transitions Init->Selecting (spec.md §4.7).
func (c *Client) Discover() {
	c.xid = randomXID()
	c.state = Selecting
	c.emit(MsgDiscover, Message{
		Op:     OpRequest,
		HType:  1,
		HLen:   6,
		XID:    c.xid,
		CHAddr: c.mac,
	})
}

func (c *Client) emit(mt MessageType, m Message) {
	m.SetOption(OptMessageType, mt)
	if c.send == nil {
		internal.Debug(c.log, "dhcp client: no sender hook installed", slog.String("mac", c.mac.String()))
		return
	}
	if err := c.send(&m); err != nil {
		internal.Warn(c.log, "dhcp client: send failed", slog.String("err", err.Error()))
	}
}

// Receive processes an incoming server message (spec.md §4.7's incoming
// message handling and its per-type transitions).
func (c *Client) Receive(msg *Message) {
	if msg.CHAddr != c.mac {
		return
	}
	if c.state != Init && msg.XID != c.xid {
		return
	}
	mt, ok := msg.MessageType()
	if !ok {
		return
	}
	switch mt {
	case MsgOffer:
		if c.state != Selecting {
			return
		}
		c.handleOffer(msg)
	case MsgAck:
		c.handleAck(msg)
	case MsgNak:
		c.handleNak()
	}
}

func (c *Client) handleOffer(offer *Message) {
	serverID, _ := offer.OptionIP(OptServerID)
	c.state = Requesting
	c.emit(MsgRequest, Message{
		Op:     OpRequest,
		HType:  1,
		HLen:   6,
		XID:    c.xid,
		CHAddr: c.mac,
		Options: []Option{
			{Code: OptRequestedIP, Value: offer.YIAddr},
			{Code: OptServerID, Value: serverID},
		},
	})
}

func (c *Client) handleAck(ack *Message) {
	lease := &ClientLease{ServerID: ack.SIAddr}
	if ack.YIAddr.IsValid() && ack.YIAddr != (netip.Addr{}) {
		lease.IP = ack.YIAddr
	}
	if ack.SIAddr.IsValid() {
		lease.ServerID = ack.SIAddr
	}
	lease.SubnetMask, _ = ack.OptionIP(OptSubnetMask)
	if routers, ok := ack.OptionIPList(OptRouter); ok && len(routers) > 0 {
		lease.DefaultGateway = routers[0]
	}
	lease.DNSServers, _ = ack.OptionIPList(OptDNS)
	if domain, ok := ack.Option(OptDomainName); ok {
		if s, ok := domain.(string); ok {
			lease.Domain = s
		}
	}
	leaseSeconds, _ := ack.OptionUint32(OptLeaseTime)
	lease.LeaseSeconds = leaseSeconds

	t1, hasT1 := ack.OptionUint32(OptRenewalTime)
	if !hasT1 {
		t1 = leaseSeconds / 2
	}
	t2, hasT2 := ack.OptionUint32(OptRebindingTime)
	if !hasT2 {
		t2 = leaseSeconds * 7 / 8
	}
	lease.T1Seconds, lease.T2Seconds = t1, t2

	c.lease = lease
	c.state = Bound
	c.startTimers()
	if c.onObtained != nil {
		c.onObtained(lease)
	}
}

func (c *Client) handleNak() {
	c.stopTimers()
	c.lease = nil
	c.state = Init
	c.Discover()
}

func (c *Client) startTimers() {
	c.stopTimers()
	lease := c.lease
	c.t1 = c.clock.AfterFunc(time.Duration(lease.T1Seconds)*time.Second, c.onT1)
	c.t2 = c.clock.AfterFunc(time.Duration(lease.T2Seconds)*time.Second, c.onT2)
	c.expiry = c.clock.AfterFunc(time.Duration(lease.LeaseSeconds)*time.Second, c.onExpiry)
}

func (c *Client) stopTimers() {
	for _, t := range []clock.Timer{c.t1, c.t2, c.expiry} {
		if t != nil {
			t.Stop()
		}
	}
	c.t1, c.t2, c.expiry = nil, nil, nil
}

// onT1 fires at 50% of the lease: spec.md §4.7's Renewing transition, a
// unicast REQUEST with ciaddr set and no broadcast flag.
func (c *Client) onT1() {
	if c.state != Bound {
		return
	}
	c.state = Renewing
	c.emit(MsgRequest, Message{
		Op:     OpRequest,
		HType:  1,
		HLen:   6,
		XID:    c.xid,
		CIAddr: c.lease.IP,
		CHAddr: c.mac,
	})
}

// onT2 fires at 87.5% of the lease: spec.md §4.7's Rebinding transition, a
// broadcast REQUEST.
func (c *Client) onT2() {
	if c.state != Renewing && c.state != Bound {
		return
	}
	c.state = Rebinding
	c.emit(MsgRequest, Message{
		Op:     OpRequest,
		HType:  1,
		HLen:   6,
		XID:    c.xid,
		Flags:  BroadcastFlag,
		CHAddr: c.mac,
	})
}

// onExpiry fires when the lease's full duration elapses with no renewal:
// spec.md §4.7's return to Init and the lease-expired callback.
func (c *Client) onExpiry() {
	c.stopTimers()
	c.lease = nil
	c.state = Init
	if c.onExpired != nil {
		c.onExpired()
	}
}

// Release implements spec.md §4.7's release(): valid from Bound/Renewing/
// Rebinding, it stops timers, emits RELEASE, and returns to Init.
func (c *Client) Release() {
	if c.state != Bound && c.state != Renewing && c.state != Rebinding {
		return
	}
	ip := c.lease.IP
	c.stopTimers()
	c.lease = nil
	c.state = Init
	c.emit(MsgRelease, Message{
		Op:     OpRequest,
		HType:  1,
		HLen:   6,
		XID:    c.xid,
		CIAddr: ip,
		CHAddr: c.mac,
	})
}
