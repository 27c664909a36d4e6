// Package sim implements the simulator (mediator) of spec.md §4.2: the
// device/connection registry and the frame delivery algorithm, emitting
// the observer event stream of spec.md §6.
//
// Grounded on the teacher's soypat-lneto/internet/definitions.go
// `handlers` registry (slice-of-entries registration/lookup pattern,
// generalized from protocol handlers to devices) and on spec.md §4.2's
// delivery algorithm directly, since lneto has no multi-device topology
// concept of its own. Envelope IDs and auto-assigned connection IDs use
// github.com/google/uuid (events carry no ID),
// the same package AdguardTeam-AdGuardHome and ngcxy-dranet use for
// request/session identifiers, instead of a hand-rolled counter.
package sim

import (
	"errors"
	"log/slog"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/nettopo/netsim/clock"
	"github.com/nettopo/netsim/device"
	"github.com/nettopo/netsim/internal"
	"github.com/nettopo/netsim/netswitch"
	"github.com/nettopo/netsim/packet"
)

// Processor is implemented by non-switch device roles (host, router): it
// consumes an inbound frame and optionally returns a reply to be sent
// back out the same ingress interface (spec.md §6's "Process-packet
// entry").
type Processor interface {
	Process(frame *packet.Ethernet, ingressIface string) *packet.Ethernet
}

// registeredDevice is the simulator's bookkeeping for one device.
type registeredDevice struct {
	device *device.Device
	proc   Processor       // non-nil for host/router roles
	sw     *netswitch.Switch // non-nil for switch roles
}

// ErrUnknownDevice is the error value for a device ID that was never
// registered (or has since been unregistered). No Simulator method returns
// it: SendFrame and AddConnection accept unknown IDs without error, and
// MACTable returns nil for them.
var ErrUnknownDevice = errors.New("sim: unknown device")

// ErrDuplicateConnection is returned by AddConnection when either
// endpoint already has a connection — spec.md §3's "at most once"
// invariant.
var ErrDuplicateConnection = errors.New("sim: an endpoint may have at most one connection")

// Simulator is the mediator of spec.md §4.2.
type Simulator struct {
	clock     clock.Clock
	log       *slog.Logger
	devices   map[string]*registeredDevice
	conns     []Connection
	listeners []Listener
	metrics   *Metrics
}

// Option configures a Simulator at construction time.
type Option func(*Simulator)

// WithMetrics registers the SPEC_FULL.md §4.10 Prometheus collectors
// against reg and attaches them to the simulator's event stream. Without
// this option a Simulator behaves exactly as spec.md describes, with zero
// metrics overhead.
func WithMetrics(reg prometheus.Registerer) Option {
	return func(s *Simulator) {
		s.metrics = NewMetrics(reg)
		s.metrics.Attach(s)
	}
}

// New constructs an empty simulator.
func New(cl clock.Clock, log *slog.Logger, opts ...Option) *Simulator {
	if cl == nil {
		cl = clock.Real{}
	}
	s := &Simulator{clock: cl, log: log, devices: make(map[string]*registeredDevice)}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Metrics returns the simulator's metrics sink, or nil if it was
// constructed without WithMetrics.
func (s *Simulator) Metrics() *Metrics {
	return s.metrics
}

// RegisterDevice registers d and installs its packet-sender hook (spec.md
// §4's "Device lifecycle": "registered with simulator (which installs the
// packet-sender hook)"). Exactly one of proc or sw should be non-nil,
// matching d.Kind.
func (s *Simulator) RegisterDevice(d *device.Device, proc Processor, sw *netswitch.Switch) {
	s.devices[d.ID] = &registeredDevice{device: d, proc: proc, sw: sw}
	d.Send = func(ifaceName string, frame *packet.Ethernet) error {
		s.SendFrame(d.ID, ifaceName, frame)
		return nil
	}
}

// UnregisterDevice removes a device from the registry.
func (s *Simulator) UnregisterDevice(id string) {
	delete(s.devices, id)
}

// Device looks up a registered device's identity by ID.
func (s *Simulator) Device(id string) (*device.Device, bool) {
	rd, ok := s.devices[id]
	if !ok {
		return nil, false
	}
	return rd.device, true
}

// AddListener attaches an observer to the event stream.
func (s *Simulator) AddListener(l Listener) {
	s.listeners = append(s.listeners, l)
}

func (s *Simulator) emit(e Event) {
	e.Timestamp = s.clock.Now()
	for _, l := range s.listeners {
		l(e)
	}
}

// AddConnection registers a bidirectional link between two device
// interfaces, enforcing spec.md §3's at-most-one-connection-per-endpoint
// invariant.
func (s *Simulator) AddConnection(c Connection) error {
	a := endpoint{c.SourceDeviceID, c.SourceInterfaceID}
	b := endpoint{c.TargetDeviceID, c.TargetInterfaceID}
	for i := range s.conns {
		if s.conns[i].incident(a) || s.conns[i].incident(b) {
			return ErrDuplicateConnection
		}
	}
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	c.IsActive = true
	s.conns = append(s.conns, c)
	return nil
}

// Connections returns the simulator's connection list.
func (s *Simulator) Connections() []Connection {
	out := make([]Connection, len(s.conns))
	copy(out, s.conns)
	return out
}

// findConnection implements spec.md §3's "find_connection(d, i) matches
// both (source, target) orientations symmetrically".
func (s *Simulator) findConnection(e endpoint) (*Connection, bool) {
	for i := range s.conns {
		if s.conns[i].IsActive && s.conns[i].incident(e) {
			return &s.conns[i], true
		}
	}
	return nil, false
}

// MACTable returns a switch device's learned MAC table, or nil if id
// isn't a registered switch.
func (s *Simulator) MACTable(id string) []netswitch.MACEntry {
	rd, ok := s.devices[id]
	if !ok || rd.sw == nil {
		return nil
	}
	return rd.sw.Entries()
}

// IsReady reports whether the simulator has at least one registered
// device (spec.md §4.2's read-only `is_ready`).
func (s *Simulator) IsReady() bool {
	return len(s.devices) > 0
}

// SendFrame implements spec.md §4.2's `send_frame`/`handle_frame_from_device`:
// a device emits frame out sourceIfaceID, and delivery runs synchronously
// to quiescence before this call returns.
func (s *Simulator) SendFrame(sourceDeviceID, sourceIfaceID string, frame *packet.Ethernet) *Envelope {
	env := &Envelope{ID: uuid.NewString(), Timestamp: s.clock.Now(), Frame: frame, Hops: []string{sourceDeviceID}, Status: InTransit}
	s.emit(Event{Type: FrameSent, SourceDeviceID: sourceDeviceID, SourceInterfaceID: sourceIfaceID, Frame: frame})

	if rd, ok := s.devices[sourceDeviceID]; ok && !rd.device.PoweredOn {
		env.Status = Dropped
		internal.Debug(s.log, "sim: source device powered off", slog.String("device", sourceDeviceID), slog.String("iface", sourceIfaceID))
		s.emit(Event{Type: FrameDropped, SourceDeviceID: sourceDeviceID, SourceInterfaceID: sourceIfaceID, Frame: frame,
			Details: &Details{Reason: ReasonDevicePoweredOff}})
		return env
	}

	src := endpoint{sourceDeviceID, sourceIfaceID}
	conn, ok := s.findConnection(src)
	if !ok {
		env.Status = Dropped
		internal.Debug(s.log, "sim: no connection on egress interface", slog.String("device", sourceDeviceID), slog.String("iface", sourceIfaceID))
		s.emit(Event{Type: FrameDropped, SourceDeviceID: sourceDeviceID, SourceInterfaceID: sourceIfaceID, Frame: frame,
			Details: &Details{Reason: ReasonNoConnection}})
		return env
	}
	target := conn.peer(src)
	s.deliverFrame(target, frame, sourceDeviceID, env)
	return env
}

// deliverFrame implements spec.md §4.2 step 4's `deliver_frame`.
func (s *Simulator) deliverFrame(target endpoint, frame *packet.Ethernet, originalSourceID string, env *Envelope) {
	rd, ok := s.devices[target.DeviceID]
	if !ok {
		env.Status = Dropped
		return
	}
	if !rd.device.PoweredOn {
		env.Status = Dropped
		s.emit(Event{Type: FrameDropped, SourceDeviceID: originalSourceID, DestinationDeviceID: target.DeviceID,
			DestinationInterfaceID: target.InterfaceID, Frame: frame, Details: &Details{Reason: ReasonDevicePoweredOff}})
		return
	}
	iface, ok := rd.device.Interface(target.InterfaceID)
	if !ok || !iface.IsUp {
		env.Status = Dropped
		s.emit(Event{Type: FrameDropped, SourceDeviceID: originalSourceID, DestinationDeviceID: target.DeviceID,
			DestinationInterfaceID: target.InterfaceID, Frame: frame, Details: &Details{Reason: ReasonInterfaceDown}})
		return
	}

	env.Hops = append(env.Hops, target.DeviceID)
	env.Status = Delivered
	s.emit(Event{Type: FrameReceived, SourceDeviceID: originalSourceID, DestinationDeviceID: target.DeviceID,
		DestinationInterfaceID: target.InterfaceID, Frame: frame})

	if rd.sw != nil {
		s.runSwitch(rd, target.InterfaceID, frame, env)
		return
	}
	if rd.proc == nil {
		return
	}
	reply := rd.proc.Process(frame, target.InterfaceID)
	if reply != nil {
		s.SendFrame(target.DeviceID, target.InterfaceID, reply)
	}
}

// runSwitch implements spec.md §4.3's learning-switch behavior: learn,
// then forward-or-flood.
func (s *Simulator) runSwitch(rd *registeredDevice, ingressIface string, frame *packet.Ethernet, env *Envelope) {
	dec := rd.sw.Process(frame, ingressIface)
	if dec.Learned {
		s.emit(Event{Type: MacLearned, SourceDeviceID: rd.device.ID, SourceInterfaceID: ingressIface, Frame: frame,
			Details: &Details{MACAddress: dec.LearnedMAC, VLAN: dec.LearnedVLAN, InterfaceID: ingressIface}})
	}
	for _, egressIface := range dec.EgressInterfaces {
		s.floodOut(rd.device.ID, egressIface, frame, env)
	}
}

// floodOut implements spec.md §4.3 step 5: duplicate the packet (fresh
// id, cloned hops) and deliver it out one egress interface, skipping
// silently if there is no link there.
func (s *Simulator) floodOut(deviceID, ifaceID string, frame *packet.Ethernet, parent *Envelope) {
	src := endpoint{deviceID, ifaceID}
	conn, ok := s.findConnection(src)
	if !ok {
		return // spec.md §4.3 step 5: "If there is no link on i, skip silently."
	}
	target := conn.peer(src)
	copied := parent.clone(frame, uuid.NewString())
	s.deliverFrame(target, frame, deviceID, copied)
}
