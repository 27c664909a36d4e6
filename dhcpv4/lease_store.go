package dhcpv4

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"net/netip"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/nettopo/netsim/packet"
)

// leasesBucket is the single bbolt bucket the lease store uses — the lease
// table is small enough that one bucket keyed by IP text is sufficient,
// mirroring AdguardTeam-AdGuardHome's and ngcxy-dranet's pattern of a small
// number of bbolt buckets for compact persistent state.
var leasesBucket = []byte("leases")

// BoltLeaseStore persists a DHCP server's lease table to a bbolt database,
// per SPEC_FULL.md §4.11.
type BoltLeaseStore struct {
	db *bolt.DB
}

// NewBoltLeaseStore opens (creating if necessary) a bbolt database at path
// for lease persistence.
func NewBoltLeaseStore(path string) (*BoltLeaseStore, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("dhcpv4: opening lease store: %w", err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(leasesBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("dhcpv4: initializing lease store: %w", err)
	}
	return &BoltLeaseStore{db: db}, nil
}

// Close releases the underlying bbolt database handle.
func (s *BoltLeaseStore) Close() error { return s.db.Close() }

// leaseGob is the gob-encodable mirror of Lease; Lease itself stays free of
// encoding tags since it's a pure domain value used throughout the package.
type leaseGob struct {
	IP           string
	MAC          [6]byte
	LeaseStart   time.Time
	LeaseSeconds int
	State        LeaseState
	XID          uint32
}

// Load reads every persisted lease back out of the store.
func (s *BoltLeaseStore) Load() ([]Lease, error) {
	var out []Lease
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(leasesBucket)
		if b == nil {
			return nil
		}
		return b.ForEach(func(k, v []byte) error {
			var g leaseGob
			if err := gob.NewDecoder(bytes.NewReader(v)).Decode(&g); err != nil {
				return fmt.Errorf("dhcpv4: decoding lease %q: %w", k, err)
			}
			ip, err := netip.ParseAddr(g.IP)
			if err != nil {
				return fmt.Errorf("dhcpv4: bad lease IP %q: %w", g.IP, err)
			}
			out = append(out, Lease{
				IP:           ip,
				MAC:          packet.MAC(g.MAC),
				LeaseStart:   g.LeaseStart,
				LeaseSeconds: g.LeaseSeconds,
				State:        g.State,
				XID:          g.XID,
			})
			return nil
		})
	})
	return out, err
}

// Save overwrites the store's contents with leases.
func (s *BoltLeaseStore) Save(leases []Lease) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(leasesBucket)
		if b == nil {
			var err error
			b, err = tx.CreateBucket(leasesBucket)
			if err != nil {
				return err
			}
		}
		if err := clearBucket(b); err != nil {
			return err
		}
		for _, l := range leases {
			g := leaseGob{
				IP:           l.IP.String(),
				MAC:          [6]byte(l.MAC),
				LeaseStart:   l.LeaseStart,
				LeaseSeconds: l.LeaseSeconds,
				State:        l.State,
				XID:          l.XID,
			}
			var buf bytes.Buffer
			if err := gob.NewEncoder(&buf).Encode(g); err != nil {
				return fmt.Errorf("dhcpv4: encoding lease %v: %w", l.IP, err)
			}
			if err := b.Put([]byte(l.IP.String()), buf.Bytes()); err != nil {
				return err
			}
		}
		return nil
	})
}

func clearBucket(b *bolt.Bucket) error {
	var keys [][]byte
	c := b.Cursor()
	for k, _ := c.First(); k != nil; k, _ = c.Next() {
		keys = append(keys, append([]byte(nil), k...))
	}
	for _, k := range keys {
		if err := b.Delete(k); err != nil {
			return err
		}
	}
	return nil
}
