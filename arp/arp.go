// Package arp implements the per-device ARP cache and resolution state
// machine described in spec.md §4.5: dynamic/static entries with aging,
// pending-request coalescing, and request/reply processing.
//
// Grounded on the teacher's soypat-lneto/arp/handler.go (Handler,
// queryResult pending-coalescing shape), adapted from a byte-buffer wire
// handler to a structured-value cache since spec.md rules out bit-accurate
// wire encoding.
package arp

import (
	"net/netip"
	"time"

	"github.com/nettopo/netsim/packet"
)

// EntryKind distinguishes a manually configured entry from one learned off
// the wire.
type EntryKind uint8

const (
	Dynamic EntryKind = iota
	Static
)

func (k EntryKind) String() string {
	if k == Static {
		return "static"
	}
	return "dynamic"
}

// State is the entry's freshness per spec.md §3's ARP table entry; only
// Incomplete, Reachable and Stale are defined here (Delay/Probe are named
// in the spec's data model for completeness with real ARP/NDP state
// machines). This simulator's aging model — age past 75%/100% of timeout —
// only ever assigns Reachable or Stale to a present entry; Incomplete is
// never assigned.
type State uint8

const (
	Reachable State = iota
	Stale
	Incomplete
)

func (s State) String() string {
	switch s {
	case Reachable:
		return "reachable"
	case Stale:
		return "stale"
	default:
		return "incomplete"
	}
}

// Entry is one row of a device's ARP table (spec.md §3).
type Entry struct {
	IP            netip.Addr
	MAC           packet.MAC
	InterfaceName string
	Kind          EntryKind
	CreatedAt     time.Time
	LastUsed      time.Time
	State         State
}
