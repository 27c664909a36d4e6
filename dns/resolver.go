package dns

import (
	"crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"net/netip"
	"time"

	"github.com/nettopo/netsim/clock"
	"github.com/nettopo/netsim/internal"
)

// ErrTimeout is returned to a resolve callback when no response arrives
// within the 5-second window spec.md §4.8/§5 specifies.
var ErrTimeout = errors.New("dns: query timeout")

// QueryTimeout is the fixed resolve deadline (spec.md §5's DnsTimeout).
const QueryTimeout = 5 * time.Second

// SenderFunc emits a query message through the device's packet-sender hook.
type SenderFunc func(msg *Message) error

type pendingQuery struct {
	name    string
	timer   clock.Timer
	pending []func(netip.Addr, error)
}

// Resolver is the DNS client of spec.md §4.8: a TTL cache backed by the
// public fallback table, plus an async query path keyed by message ID.
type Resolver struct {
	clock   clock.Clock
	send    SenderFunc
	log     *slog.Logger
	cache   *Cache
	pending map[uint16]*pendingQuery
}

// NewResolver constructs a resolver.
func NewResolver(cl clock.Clock, send SenderFunc, log *slog.Logger) *Resolver {
	if cl == nil {
		cl = clock.Real{}
	}
	return &Resolver{
		clock:   cl,
		send:    send,
		log:     log,
		cache:   NewCache(cl),
		pending: make(map[uint16]*pendingQuery),
	}
}

func randomID() uint16 {
	var b [2]byte
	_, _ = rand.Read(b[:])
	return binary.BigEndian.Uint16(b[:])
}

// Lookup implements spec.md §4.8's synchronous lookup(name): cache, then
// the hard-coded public fallback table, else not found.
func (r *Resolver) Lookup(name string) (netip.Addr, bool) {
	if ip, ok := r.cache.Lookup(name); ok {
		return ip, true
	}
	return LookupPublic(name)
}

// Resolve implements spec.md §4.8's async resolve(name): a synchronous
// cache/public-table hit invokes cb immediately; otherwise a query is
// emitted and cb is invoked from Receive or from the 5-second timeout.
func (r *Resolver) Resolve(name string, cb func(netip.Addr, error)) {
	if ip, ok := r.Lookup(name); ok {
		cb(ip, nil)
		return
	}
	if r.send == nil {
		cb(netip.Addr{}, errors.New("dns: no sender hook installed"))
		return
	}
	id := randomID()
	for r.pending[id] != nil { // avoid clashing with an in-flight query
		id = randomID()
	}
	pq := &pendingQuery{name: name}
	pq.timer = r.clock.AfterFunc(QueryTimeout, func() { r.onTimeout(id) })
	pq.pending = append(pq.pending, cb)
	r.pending[id] = pq

	msg := &Message{
		ID: id,
		RD: true,
		Questions: []Question{
			{Name: NormalizeName(name), Type: TypeA, Class: ClassINET},
		},
	}
	if err := r.send(msg); err != nil {
		internal.Warn(r.log, "dns: send failed", slog.String("err", err.Error()))
	}
}

func (r *Resolver) onTimeout(id uint16) {
	pq, ok := r.pending[id]
	if !ok {
		return
	}
	delete(r.pending, id)
	for _, cb := range pq.pending {
		cb(netip.Addr{}, ErrTimeout)
	}
}

// Receive processes an incoming response, matching it to a pending query by
// ID (spec.md §4.8).
func (r *Resolver) Receive(msg *Message) {
	if !msg.QR {
		return
	}
	pq, ok := r.pending[msg.ID]
	if !ok {
		return
	}
	delete(r.pending, msg.ID)
	pq.timer.Stop()

	if msg.RCode != RCodeNoError {
		err := fmt.Errorf("dns: query failed: %s", rcodeName(msg.RCode))
		for _, cb := range pq.pending {
			cb(netip.Addr{}, err)
		}
		return
	}
	var answer netip.Addr
	var ttl uint32
	for _, a := range msg.Answers {
		if ip, ok := a.Data.(netip.Addr); ok {
			answer, ttl = ip, a.TTL
			break
		}
	}
	if !answer.IsValid() {
		err := errors.New("dns: response carried no A record")
		for _, cb := range pq.pending {
			cb(netip.Addr{}, err)
		}
		return
	}
	r.cache.Store(pq.name, answer, ttl)
	for _, cb := range pq.pending {
		cb(answer, nil)
	}
}

func rcodeName(rc RCode) string {
	switch rc {
	case RCodeNoError:
		return "NOERROR"
	case RCodeNXDomain:
		return "NXDOMAIN"
	default:
		return fmt.Sprintf("RCODE%d", rc)
	}
}
