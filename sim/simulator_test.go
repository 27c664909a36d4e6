package sim

import (
	"testing"
	"time"

	"github.com/nettopo/netsim/arp"
	"github.com/nettopo/netsim/clock"
	"github.com/nettopo/netsim/device"
	"github.com/nettopo/netsim/netswitch"
	"github.com/nettopo/netsim/packet"
)

func newHostDevice(id, name, macHex string) (*device.Device, *device.NetStack) {
	d := device.New(id, name, device.KindHost, nil)
	d.AddInterface(device.NewInterface("eth0", "eth0", device.InterfaceEthernet, packet.MustParseMAC(macHex)))
	ns := device.NewNetStack(d, clock.Real{}, arp.DefaultConfig(), nil)
	return d, ns
}

func TestFrameDroppedNoConnection(t *testing.T) {
	s := New(clock.Real{}, nil)
	d, ns := newHostDevice("h1", "host1", "AA:AA:AA:AA:AA:AA")
	host := device.NewHost(ns, nil)
	s.RegisterDevice(d, host, nil)

	var events []Event
	s.AddListener(func(e Event) { events = append(events, e) })

	frame := &packet.Ethernet{Source: d.Interfaces()[0].MACAddress, Destination: packet.BroadcastMAC(), EtherType: packet.EtherTypeARP}
	env := s.SendFrame("h1", "eth0", frame)
	if env.Status != Dropped {
		t.Fatalf("expected dropped envelope, got %v", env.Status)
	}
	found := false
	for _, e := range events {
		if e.Type == FrameDropped && e.Details.Reason == ReasonNoConnection {
			found = true
		}
	}
	if !found {
		t.Fatal("expected a FrameDropped(no_connection) event")
	}
}

func TestFrameDroppedSourcePoweredOff(t *testing.T) {
	s := New(clock.Real{}, nil)
	d, ns := newHostDevice("h1", "host1", "AA:AA:AA:AA:AA:AA")
	host := device.NewHost(ns, nil)
	s.RegisterDevice(d, host, nil)
	d.PowerOff()

	var events []Event
	s.AddListener(func(e Event) { events = append(events, e) })

	frame := &packet.Ethernet{Source: d.Interfaces()[0].MACAddress, Destination: packet.BroadcastMAC(), EtherType: packet.EtherTypeARP}
	env := s.SendFrame("h1", "eth0", frame)
	if env.Status != Dropped {
		t.Fatalf("expected dropped envelope, got %v", env.Status)
	}
	found := false
	for _, e := range events {
		if e.Type == FrameDropped && e.Details.Reason == ReasonDevicePoweredOff {
			found = true
		}
	}
	if !found {
		t.Fatal("expected a FrameDropped(device_powered_off) event")
	}
}

func TestSwitchFloodsToConnectedHosts(t *testing.T) {
	s := New(clock.Real{}, nil)

	swDev := device.New("sw1", "switch1", device.KindSwitch, nil)
	swDev.AddInterface(device.NewInterface("p0", "p0", device.InterfaceEthernet, packet.MustParseMAC("00:00:00:00:00:01")))
	swDev.AddInterface(device.NewInterface("p1", "p1", device.InterfaceEthernet, packet.MustParseMAC("00:00:00:00:00:02")))
	swDev.AddInterface(device.NewInterface("p2", "p2", device.InterfaceEthernet, packet.MustParseMAC("00:00:00:00:00:03")))
	sw := netswitch.New(swDev, func() time.Time { return time.Unix(0, 0) })
	s.RegisterDevice(swDev, nil, sw)

	h1, ns1 := newHostDevice("h1", "host1", "AA:AA:AA:AA:AA:AA")
	host1 := device.NewHost(ns1, nil)
	s.RegisterDevice(h1, host1, nil)

	h2, ns2 := newHostDevice("h2", "host2", "BB:BB:BB:BB:BB:BB")
	host2 := device.NewHost(ns2, nil)
	s.RegisterDevice(h2, host2, nil)

	mustConnect(t, s, "h1", "eth0", "sw1", "p0")
	mustConnect(t, s, "h2", "eth0", "sw1", "p1")

	var received []string
	s.AddListener(func(e Event) {
		if e.Type == FrameReceived && e.DestinationDeviceID != "sw1" {
			received = append(received, e.DestinationDeviceID)
		}
	})

	frame := &packet.Ethernet{Source: packet.MustParseMAC("AA:AA:AA:AA:AA:AA"), Destination: packet.BroadcastMAC(), EtherType: packet.EtherTypeARP,
		Payload: &packet.ARP{Opcode: packet.ARPRequest, SenderMAC: packet.MustParseMAC("AA:AA:AA:AA:AA:AA")}}
	s.SendFrame("h1", "eth0", frame)

	if len(received) != 1 || received[0] != "h2" {
		t.Fatalf("expected only h2 to receive the flooded frame, got %v", received)
	}
	entries := s.MACTable("sw1")
	if len(entries) != 1 || entries[0].MAC != packet.MustParseMAC("AA:AA:AA:AA:AA:AA") {
		t.Fatalf("expected h1's MAC learned on the switch, got %+v", entries)
	}
}

func mustConnect(t *testing.T, s *Simulator, devA, ifaceA, devB, ifaceB string) {
	t.Helper()
	if err := s.AddConnection(Connection{SourceDeviceID: devA, SourceInterfaceID: ifaceA, TargetDeviceID: devB, TargetInterfaceID: ifaceB}); err != nil {
		t.Fatalf("AddConnection: %v", err)
	}
}

func TestDuplicateConnectionRejected(t *testing.T) {
	s := New(clock.Real{}, nil)
	if err := s.AddConnection(Connection{SourceDeviceID: "a", SourceInterfaceID: "e0", TargetDeviceID: "b", TargetInterfaceID: "e0"}); err != nil {
		t.Fatal(err)
	}
	err := s.AddConnection(Connection{SourceDeviceID: "a", SourceInterfaceID: "e0", TargetDeviceID: "c", TargetInterfaceID: "e0"})
	if err != ErrDuplicateConnection {
		t.Fatalf("expected ErrDuplicateConnection, got %v", err)
	}
}
