// Package netswitch implements the L2 learning switch of spec.md §4.3: a
// VLAN-scoped MAC table and the flood/forward decision. There is no
// teacher precedent for switch logic — soypat-lneto is a host/client
// stack, not a switch — so the algorithm here follows spec.md §4.3
// directly, shaped in the style of soypat-lneto/internet/stack-ports.go's
// slice-of-entries pattern rather than a map; entries are never removed
// one by one, only all at once by ClearTable.
package netswitch

import (
	"time"

	"github.com/nettopo/netsim/device"
	"github.com/nettopo/netsim/packet"
)

// EntryKind distinguishes a learned binding from an operator-pinned one.
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

// MACEntry is a switch's MAC table entry (spec.md §3).
type MACEntry struct {
	MAC           packet.MAC
	InterfaceName string
	VLAN          int
	LearnedAt     time.Time
	Kind          EntryKind
}

// Switch is the learning-switch logic of spec.md §4.3, operating on a
// [device.Device]'s interface table.
type Switch struct {
	Device *device.Device
	clockNow func() time.Time
	entries  []MACEntry
}

// New constructs a switch bound to d. now supplies the current time for
// learn timestamps (pass time.Now, or a [github.com/nettopo/netsim/clock]
// Clock.Now, for deterministic tests).
func New(d *device.Device, now func() time.Time) *Switch {
	if now == nil {
		now = time.Now
	}
	return &Switch{Device: d, clockNow: now}
}

func (s *Switch) find(mac packet.MAC, vlan int) (int, bool) {
	for i := range s.entries {
		if s.entries[i].MAC == mac && s.entries[i].VLAN == vlan {
			return i, true
		}
	}
	return -1, false
}

// Learn upserts (mac -> iface, vlan); spec.md §3's invariant that a
// dynamic write never displaces... — here, unlike ARP, the switch table
// has no static/dynamic precedence rule in spec.md §4.3, so any arriving
// frame's source simply updates the binding. Returns true if the binding
// is new or moved ports (spec.md §4.3 step 2's MacLearned condition).
func (s *Switch) Learn(mac packet.MAC, ifaceName string, vlan int) bool {
	if i, ok := s.find(mac, vlan); ok {
		moved := s.entries[i].InterfaceName != ifaceName
		s.entries[i].InterfaceName = ifaceName
		s.entries[i].LearnedAt = s.clockNow()
		return moved
	}
	s.entries = append(s.entries, MACEntry{
		MAC:           mac,
		InterfaceName: ifaceName,
		VLAN:          vlan,
		LearnedAt:     s.clockNow(),
		Kind:          Dynamic,
	})
	return true
}

// Lookup finds the egress interface for (mac, vlan) — spec.md §3's
// VLAN-scoped lookup invariant.
func (s *Switch) Lookup(mac packet.MAC, vlan int) (string, bool) {
	if i, ok := s.find(mac, vlan); ok {
		return s.entries[i].InterfaceName, true
	}
	return "", false
}

// Entries returns the switch's MAC table.
func (s *Switch) Entries() []MACEntry {
	out := make([]MACEntry, len(s.entries))
	copy(out, s.entries)
	return out
}

// ClearTable wipes the MAC table (spec.md §4.3's "exposed but not
// time-driven automatically" aging/clear operation).
func (s *Switch) ClearTable() { s.entries = nil }

// Decision is the outcome of [Switch.Process]: the set of interface names
// the frame should be forwarded out of, and whether a new binding was
// learned (for the caller to emit a MacLearned event).
type Decision struct {
	EgressInterfaces []string
	Learned          bool
	LearnedMAC       packet.MAC
	LearnedVLAN      int
}

// Process runs spec.md §4.3's per-frame switch algorithm for a frame
// arriving on ingressIface.
func (s *Switch) Process(frame *packet.Ethernet, ingressIface string) Decision {
	iface, ok := s.Device.Interface(ingressIface)
	vlan := device.DefaultVLAN
	if ok {
		vlan = iface.VLAN
	}

	var dec Decision
	if frame.Source != packet.BroadcastMAC() {
		dec.Learned = s.Learn(frame.Source, ingressIface, vlan)
		dec.LearnedMAC = frame.Source
		dec.LearnedVLAN = vlan
	}

	if frame.Destination == packet.BroadcastMAC() {
		dec.EgressInterfaces = s.floodTargets(ingressIface, vlan)
		return dec
	}

	egress, hit := s.Lookup(frame.Destination, vlan)
	if hit && egress != ingressIface {
		dec.EgressInterfaces = []string{egress}
		return dec
	}
	dec.EgressInterfaces = s.floodTargets(ingressIface, vlan)
	return dec
}

// floodTargets implements spec.md §4.3 step 5: every interface other than
// ingress, not a loopback, up, and either on the same VLAN or a trunk.
func (s *Switch) floodTargets(ingressIface string, vlan int) []string {
	var out []string
	for _, iface := range s.Device.Interfaces() {
		if iface.Name == ingressIface || iface.Type == device.InterfaceLoopback || !iface.IsUp {
			continue
		}
		if iface.VLAN == vlan || iface.PortMode == device.PortTrunk {
			out = append(out, iface.Name)
		}
	}
	return out
}
