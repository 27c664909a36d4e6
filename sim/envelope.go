package sim

import (
	"time"

	"github.com/nettopo/netsim/packet"
)

// EnvelopeStatus is an in-flight frame's delivery status (spec.md §3's
// "Packet envelope").
type EnvelopeStatus uint8

const (
	InTransit EnvelopeStatus = iota
	Delivered
	Dropped
)

func (s EnvelopeStatus) String() string {
	switch s {
	case InTransit:
		return "in_transit"
	case Delivered:
		return "delivered"
	case Dropped:
		return "dropped"
	default:
		return "unknown"
	}
}

// Envelope wraps an in-flight frame (spec.md §3): the hops list lets
// callers trace the delivery path and detect loops in tests.
type Envelope struct {
	ID        string
	Timestamp time.Time
	Frame     *packet.Ethernet
	Hops      []string
	Status    EnvelopeStatus
}

func (e *Envelope) clone(frame *packet.Ethernet, id string) *Envelope {
	hops := make([]string, len(e.Hops))
	copy(hops, e.Hops)
	return &Envelope{
		ID:        id,
		Timestamp: e.Timestamp,
		Frame:     frame,
		Hops:      hops,
		Status:    InTransit,
	}
}
