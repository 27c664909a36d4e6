package sim

import (
	"time"

	"github.com/nettopo/netsim/packet"
)

// EventType is the kind of observer event spec.md §6 emits.
type EventType uint8

const (
	FrameSent EventType = iota
	FrameReceived
	FrameDropped
	MacLearned
	ArpRequest
	ArpReply
)

func (t EventType) String() string {
	switch t {
	case FrameSent:
		return "frame_sent"
	case FrameReceived:
		return "frame_received"
	case FrameDropped:
		return "frame_dropped"
	case MacLearned:
		return "mac_learned"
	case ArpRequest:
		return "arp_request"
	case ArpReply:
		return "arp_reply"
	default:
		return "unknown"
	}
}

// DropReason is the detail carried by a FrameDropped event (spec.md §6).
type DropReason string

const (
	ReasonNoConnection    DropReason = "no_connection"
	ReasonInterfaceDown   DropReason = "interface_down"
	ReasonDevicePoweredOff DropReason = "device_powered_off"
)

// Details carries the event-specific payload spec.md §6 describes: either
// a drop Reason, or MAC-learning fields. Only the fields relevant to the
// event's Type are populated.
type Details struct {
	Reason      DropReason
	MACAddress  packet.MAC
	VLAN        int
	InterfaceID string
}

// Event is an observer event (spec.md §6's event stream).
type Event struct {
	Type                   EventType
	Timestamp              time.Time
	SourceDeviceID         string
	SourceInterfaceID      string
	DestinationDeviceID    string
	DestinationInterfaceID string
	Frame                  *packet.Ethernet
	Details                *Details
}

// Listener receives simulator events.
type Listener func(Event)
