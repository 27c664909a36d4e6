package dhcpv4

import (
	"errors"
	"log/slog"
	"net/netip"

	"github.com/nettopo/netsim/clock"
	"github.com/nettopo/netsim/internal"
	"github.com/nettopo/netsim/packet"
)

// ServerConfig configures a [Server].
type ServerConfig struct {
	// ServerIdentifier is the server's own IP, sent back as option 54 and
	// as the message's SIAddr.
	ServerIdentifier netip.Addr
	// GatewayIP, if set, is placed in replies' GIAddr.
	GatewayIP netip.Addr
	// Store, if non-nil, persists the lease table (SPEC_FULL.md §4.11).
	Store LeaseStore
}

// Server is the DHCP server state machine of spec.md §4.6.
type Server struct {
	cfg     ServerConfig
	clock   clock.Clock
	log     *slog.Logger
	pools   []*Pool
	leases  map[netip.Addr]*Lease
	macToIP map[packet.MAC]netip.Addr
}

// NewServer constructs a DHCP server, loading any persisted leases from
// cfg.Store.
func NewServer(cfg ServerConfig, cl clock.Clock, log *slog.Logger) (*Server, error) {
	if cl == nil {
		cl = clock.Real{}
	}
	sv := &Server{
		cfg:     cfg,
		clock:   cl,
		log:     log,
		leases:  make(map[netip.Addr]*Lease),
		macToIP: make(map[packet.MAC]netip.Addr),
	}
	if cfg.Store != nil {
		leases, err := cfg.Store.Load()
		if err != nil {
			return nil, err
		}
		for i := range leases {
			l := leases[i]
			sv.leases[l.IP] = &l
			sv.macToIP[l.MAC] = l.IP
		}
	}
	return sv, nil
}

// ActiveLeases returns the number of leases currently bound (SPEC_FULL.md
// §4.10's netsim_dhcp_leases_active gauge).
func (sv *Server) ActiveLeases() int {
	n := 0
	for _, l := range sv.leases {
		if l.State == Active {
			n++
		}
	}
	return n
}

// AddPool registers a pool after validating it (DESIGN.md Open Question 2).
func (sv *Server) AddPool(p Pool) error {
	if err := p.Validate(); err != nil {
		return err
	}
	sv.pools = append(sv.pools, &p)
	return nil
}

func (sv *Server) persist() {
	if sv.cfg.Store == nil {
		return
	}
	leases := make([]Lease, 0, len(sv.leases))
	for _, l := range sv.leases {
		leases = append(leases, *l)
	}
	if err := sv.cfg.Store.Save(leases); err != nil {
		internal.Warn(sv.log, "dhcp: persisting leases failed", slog.String("err", err.Error()))
	}
}

// findFreeIP implements spec.md §4.6's free-IP selection: walk a pool from
// network+1 to broadcast-1, skipping excluded addresses and any IP whose
// lease is neither Released nor Expired.
func (sv *Server) findFreeIP() (netip.Addr, *Pool, bool) {
	for _, p := range sv.pools {
		var found netip.Addr
		var ok bool
		p.walk(func(ip netip.Addr) bool {
			if p.isExcluded(ip) {
				return false
			}
			if !sv.leases[ip].free() {
				return false
			}
			found, ok = ip, true
			return true
		})
		if ok {
			return found, p, true
		}
	}
	return netip.Addr{}, nil, false
}

func (sv *Server) poolFor(ip netip.Addr) *Pool {
	for _, p := range sv.pools {
		if p.Contains(ip) {
			return p
		}
	}
	return nil
}

// Process dispatches an incoming client message to the appropriate
// handler, returning a reply message (if any) per spec.md §4.6.
func (sv *Server) Process(req *Message) (*Message, error) {
	mt, ok := req.MessageType()
	if !ok {
		return nil, errors.New("dhcpv4: message has no message-type option")
	}
	switch mt {
	case MsgDiscover:
		return sv.handleDiscover(req), nil
	case MsgRequest:
		return sv.handleRequest(req), nil
	case MsgRelease:
		sv.handleRelease(req)
		return nil, nil
	case MsgDecline:
		sv.handleDecline(req)
		return nil, nil
	default:
		return nil, nil
	}
}

func (sv *Server) handleDiscover(req *Message) *Message {
	mac := req.CHAddr
	ip, reuse := sv.macToIP[mac]
	var pool *Pool
	if reuse {
		pool = sv.poolFor(ip)
	} else {
		var ok bool
		ip, pool, ok = sv.findFreeIP()
		if !ok {
			internal.Warn(sv.log, "dhcp: no free address for discover", slog.String("mac", mac.String()))
			return nil
		}
	}
	lease := &Lease{IP: ip, MAC: mac, State: Offered, XID: req.XID}
	sv.leases[ip] = lease
	sv.macToIP[mac] = ip
	sv.persist()
	return sv.buildReply(req, OpReply, MsgOffer, lease, pool)
}

func (sv *Server) handleRequest(req *Message) *Message {
	mac := req.CHAddr
	requested, ok := req.OptionIP(OptRequestedIP)
	if !ok && req.CIAddr.IsValid() {
		requested, ok = req.CIAddr, true
	}
	if !ok {
		if ip, has := sv.macToIP[mac]; has {
			requested, ok = ip, true
		}
	}
	if !ok {
		return sv.nak(req)
	}

	lease, exists := sv.leases[requested]
	if exists && lease.MAC != mac {
		return sv.nak(req) // Someone else's lease.
	}
	if exists && lease.State == Offered && lease.XID != req.XID {
		return sv.nak(req) // spec.md §3 invariant: xid must match the offer.
	}
	pool := sv.poolFor(requested)
	if pool == nil {
		return sv.nak(req)
	}

	if !exists {
		lease = &Lease{IP: requested, MAC: mac}
		sv.leases[requested] = lease
	}
	lease.State = Active
	lease.LeaseStart = sv.clock.Now()
	lease.LeaseSeconds = pool.LeaseSeconds
	lease.XID = req.XID
	sv.macToIP[mac] = requested
	sv.persist()
	return sv.buildReply(req, OpReply, MsgAck, lease, pool)
}

func (sv *Server) handleRelease(req *Message) {
	lease, ok := sv.leases[req.CIAddr]
	if !ok || lease.MAC != req.CHAddr {
		return
	}
	delete(sv.leases, req.CIAddr)
	delete(sv.macToIP, req.CHAddr)
	sv.persist()
}

func (sv *Server) handleDecline(req *Message) {
	ip, ok := req.OptionIP(OptRequestedIP)
	if !ok {
		return
	}
	if lease, exists := sv.leases[ip]; exists {
		lease.State = Expired
		sv.persist()
	}
}

func (sv *Server) nak(req *Message) *Message {
	m := &Message{
		Op:     OpReply,
		HType:  req.HType,
		HLen:   req.HLen,
		XID:    req.XID,
		Flags:  req.Flags,
		CHAddr: req.CHAddr,
		SIAddr: sv.cfg.ServerIdentifier,
		GIAddr: sv.cfg.GatewayIP,
	}
	m.SetOption(OptMessageType, MsgNak)
	m.SetOption(OptServerID, sv.cfg.ServerIdentifier)
	return m
}

// buildReply assembles an OFFER or ACK per spec.md §4.6, including the
// renewal/rebinding times computed at 50%/87.5% of the lease as spec.md §3
// and §GLOSSARY (T1/T2) require.
func (sv *Server) buildReply(req *Message, op Opcode, mt MessageType, lease *Lease, pool *Pool) *Message {
	m := &Message{
		Op:     op,
		HType:  req.HType,
		HLen:   req.HLen,
		XID:    req.XID,
		Flags:  req.Flags,
		YIAddr: lease.IP,
		SIAddr: sv.cfg.ServerIdentifier,
		GIAddr: sv.cfg.GatewayIP,
		CHAddr: req.CHAddr,
	}
	m.SetOption(OptMessageType, mt)
	m.SetOption(OptServerID, sv.cfg.ServerIdentifier)
	m.SetOption(OptSubnetMask, pool.Mask)
	if pool.DefaultRouter.IsValid() {
		m.SetOption(OptRouter, []netip.Addr{pool.DefaultRouter})
	}
	if len(pool.DNSServer) > 0 {
		m.SetOption(OptDNS, pool.DNSServer)
	}
	if pool.Domain != "" {
		m.SetOption(OptDomainName, pool.Domain)
	}
	leaseSeconds := uint32(pool.LeaseSeconds)
	m.SetOption(OptLeaseTime, leaseSeconds)
	m.SetOption(OptRenewalTime, leaseSeconds/2)
	m.SetOption(OptRebindingTime, leaseSeconds*7/8)
	return m
}

// DestinationBroadcast reports whether a reply must be broadcast rather
// than unicast (spec.md §4.6): it honors the client's broadcast flag.
func (m *Message) DestinationBroadcast() bool { return m.IsBroadcast() }
