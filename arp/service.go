package arp

import (
	"log/slog"
	"net/netip"
	"time"

	"github.com/nettopo/netsim/clock"
	"github.com/nettopo/netsim/internal"
	"github.com/nettopo/netsim/packet"
)

// Config holds the options spec.md §6 documents for the ARP service.
type Config struct {
	// Timeout is how long a dynamic entry is kept before eviction.
	// Default 300s.
	Timeout time.Duration
	// MaxRetries bounds how many ARP requests are sent for one pending
	// resolution before it gives up. Default 3.
	MaxRetries int
	// RetryInterval is the delay between successive request retries.
	// Default 1s.
	RetryInterval time.Duration
	// ProxyARP is stored with the configuration, but Process does not read
	// it: a request whose target is not the device's own IP is never
	// answered, whatever this flag holds.
	ProxyARP bool
}

// DefaultConfig returns the documented defaults from spec.md §6.
func DefaultConfig() Config {
	return Config{
		Timeout:       300 * time.Second,
		MaxRetries:    3,
		RetryInterval: 1000 * time.Millisecond,
	}
}

func (c *Config) setDefaults() {
	if c.Timeout <= 0 {
		c.Timeout = 300 * time.Second
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = 3
	}
	if c.RetryInterval <= 0 {
		c.RetryInterval = 1000 * time.Millisecond
	}
}

// SenderFunc is the packet-sender hook (spec.md §6) the service uses to
// emit ARP requests it generates itself.
type SenderFunc func(ifaceName string, frame *packet.Ethernet) error

// Service is a device's ARP cache and resolver, spec.md §4.5.
type Service struct {
	cfg     Config
	clock   clock.Clock
	send    SenderFunc
	log     *slog.Logger
	entries map[netip.Addr]*Entry
	pending map[netip.Addr]*pending
}

type pending struct {
	ip          netip.Addr
	iface       string
	sourceMAC   packet.MAC
	sourceIP    netip.Addr
	retriesLeft int
	timer       clock.Timer
	callbacks   []func(packet.MAC, bool)
}

// New constructs an ARP service. cl and send may be nil (the latter used by
// unit tests that only inspect tables directly, per spec.md §4.5's
// "Sending an ARP Request requires the packet-sender hook to be installed;
// if not, the service silently no-ops").
func New(cfg Config, cl clock.Clock, send SenderFunc, log *slog.Logger) *Service {
	cfg.setDefaults()
	if cl == nil {
		cl = clock.Real{}
	}
	return &Service{
		cfg:     cfg,
		clock:   cl,
		send:    send,
		log:     log,
		entries: make(map[netip.Addr]*Entry),
		pending: make(map[netip.Addr]*pending),
	}
}

// AddStaticEntry inserts or overwrites a static entry for ip. A static
// entry is never overwritten by a later dynamic write (spec.md §3
// invariant, §4.5).
func (s *Service) AddStaticEntry(ip netip.Addr, mac packet.MAC, iface string) {
	now := s.clock.Now()
	s.entries[ip] = &Entry{
		IP:            ip,
		MAC:           mac,
		InterfaceName: iface,
		Kind:          Static,
		CreatedAt:     now,
		LastUsed:      now,
		State:         Reachable,
	}
}

// AddDynamicEntry inserts or refreshes a dynamic entry for ip. It no-ops if
// a static entry already exists for ip, and preserves the original
// CreatedAt when refreshing an existing dynamic entry (spec.md §4.5).
func (s *Service) AddDynamicEntry(ip netip.Addr, mac packet.MAC, iface string) {
	now := s.clock.Now()
	if e, ok := s.entries[ip]; ok {
		if e.Kind == Static {
			return
		}
		e.MAC = mac
		e.InterfaceName = iface
		e.LastUsed = now
		e.State = Reachable
		return
	}
	s.entries[ip] = &Entry{
		IP:            ip,
		MAC:           mac,
		InterfaceName: iface,
		Kind:          Dynamic,
		CreatedAt:     now,
		LastUsed:      now,
		State:         Reachable,
	}
}

// Lookup returns the cached MAC for ip, ageing the entry first and updating
// LastUsed on a hit. It returns (zero, false) on a miss or an expired entry.
func (s *Service) Lookup(ip netip.Addr) (packet.MAC, bool) {
	s.ageEntry(ip)
	e, ok := s.entries[ip]
	if !ok {
		return packet.MAC{}, false
	}
	e.LastUsed = s.clock.Now()
	return e.MAC, true
}

// Entries returns a snapshot of the current table, aging every entry first.
func (s *Service) Entries() []Entry {
	s.AgeAll()
	out := make([]Entry, 0, len(s.entries))
	for _, e := range s.entries {
		out = append(out, *e)
	}
	return out
}

// AgeAll runs the aging pass (spec.md §3 ARP dynamic entry lifecycle) over
// every entry: past 75% of Timeout a dynamic entry is marked Stale; past
// 100% it is removed. Static entries never age out. Aging is lazy (run on
// read) rather than driven by a background timer per entry, matching
// spec.md §5's "no background threads" discipline — correctness only
// requires the state be current at the moment it's observed.
func (s *Service) AgeAll() {
	for ip := range s.entries {
		s.ageEntry(ip)
	}
}

func (s *Service) ageEntry(ip netip.Addr) {
	e, ok := s.entries[ip]
	if !ok || e.Kind == Static {
		return
	}
	age := s.clock.Now().Sub(e.CreatedAt)
	switch {
	case age >= s.cfg.Timeout:
		delete(s.entries, ip)
	case age >= (s.cfg.Timeout*3)/4:
		e.State = Stale
	default:
		e.State = Reachable
	}
}

// Process implements spec.md §4.5's process_packet: it always learns the
// sender, and returns a reply ARP packet when the request targets the
// device's own IP.
func (s *Service) Process(req *packet.ARP, incomingIface string, localIP netip.Addr, localMAC packet.MAC) *packet.ARP {
	s.AddDynamicEntry(req.SenderIP, req.SenderMAC, incomingIface)
	s.resolvePending(req.SenderIP, req.SenderMAC)
	if req.TargetIP != localIP {
		return nil
	}
	if req.Opcode == packet.ARPRequest {
		return packet.MakeARPReply(localMAC, localIP, req.SenderMAC, req.SenderIP)
	}
	return nil
}

// Resolve implements spec.md §4.5's resolve: if ip is cached it calls back
// immediately; if a resolution for ip is already pending it coalesces onto
// that pending request's callback list; otherwise it sends an ARP request
// and arms a retry timer, calling back with (zero, false) if MaxRetries is
// exhausted without a reply.
func (s *Service) Resolve(ip netip.Addr, sourceMAC packet.MAC, sourceIP netip.Addr, iface string, cb func(mac packet.MAC, ok bool)) {
	if mac, ok := s.Lookup(ip); ok {
		cb(mac, true)
		return
	}
	if p, ok := s.pending[ip]; ok {
		p.callbacks = append(p.callbacks, cb)
		return
	}
	p := &pending{
		ip:          ip,
		iface:       iface,
		sourceMAC:   sourceMAC,
		sourceIP:    sourceIP,
		retriesLeft: s.cfg.MaxRetries,
		callbacks:   []func(packet.MAC, bool){cb},
	}
	s.pending[ip] = p
	s.sendRequest(p)
	s.armRetry(p)
}

func (s *Service) sendRequest(p *pending) {
	if s.send == nil {
		internal.Debug(s.log, "arp: no sender hook installed, skipping request", slog.String("ip", p.ip.String()))
		return
	}
	req := packet.MakeARPRequest(p.sourceMAC, p.sourceIP, p.ip)
	frame := packet.EthernetARP(req)
	if err := s.send(p.iface, frame); err != nil {
		internal.Debug(s.log, "arp: send request failed", slog.String("ip", p.ip.String()), slog.String("err", err.Error()))
	}
}

func (s *Service) armRetry(p *pending) {
	p.timer = s.clock.AfterFunc(s.cfg.RetryInterval, func() { s.onRetryTimeout(p.ip) })
}

func (s *Service) onRetryTimeout(ip netip.Addr) {
	p, ok := s.pending[ip]
	if !ok {
		return
	}
	if mac, ok := s.Lookup(ip); ok {
		s.finishPending(p, mac, true)
		return
	}
	p.retriesLeft--
	if p.retriesLeft <= 0 {
		s.finishPending(p, packet.MAC{}, false)
		return
	}
	s.sendRequest(p)
	s.armRetry(p)
}

func (s *Service) resolvePending(ip netip.Addr, mac packet.MAC) {
	p, ok := s.pending[ip]
	if !ok {
		return
	}
	s.finishPending(p, mac, true)
}

func (s *Service) finishPending(p *pending, mac packet.MAC, ok bool) {
	if p.timer != nil {
		p.timer.Stop()
	}
	delete(s.pending, p.ip)
	for _, cb := range p.callbacks {
		cb(mac, ok)
	}
}

// AbortPending cancels every outstanding resolution without invoking
// callbacks, mirroring soypat-lneto/arp/handler.go's AbortPending.
func (s *Service) AbortPending() {
	for ip, p := range s.pending {
		if p.timer != nil {
			p.timer.Stop()
		}
		delete(s.pending, ip)
	}
}
