package dhcpv4

import (
	"net/netip"
	"time"

	"github.com/nettopo/netsim/packet"
)

// LeaseState is a server-side lease's lifecycle state (spec.md §3).
type LeaseState uint8

const (
	Offered LeaseState = iota
	Active
	Expired
	Released
)

func (s LeaseState) String() string {
	switch s {
	case Offered:
		return "offered"
	case Active:
		return "active"
	case Expired:
		return "expired"
	case Released:
		return "released"
	default:
		return "unknown"
	}
}

// Lease is a server-side DHCP lease (spec.md §3).
type Lease struct {
	IP           netip.Addr
	MAC          packet.MAC
	LeaseStart   time.Time
	LeaseSeconds int
	State        LeaseState
	XID          uint32
}

// free reports whether the lease's IP can be handed out: a lease can be
// reused only if it is Released or Expired (spec.md §4.6's free-IP
// selection rule).
func (l *Lease) free() bool {
	return l == nil || l.State == Released || l.State == Expired
}

// LeaseStore is the optional durability interface a [Server] can be given
// to persist its lease table across restarts (SPEC_FULL.md §4.11). Without
// one configured the server is exactly the in-memory model spec.md §4.6
// describes.
type LeaseStore interface {
	Load() ([]Lease, error)
	Save(leases []Lease) error
}
