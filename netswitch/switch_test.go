package netswitch

import (
	"testing"
	"time"

	"github.com/nettopo/netsim/device"
	"github.com/nettopo/netsim/packet"
)

func newTestSwitch() *Switch {
	d := device.New("sw1", "switch1", device.KindSwitch, nil)
	d.AddInterface(device.NewInterface("i0", "gi0/0", device.InterfaceEthernet, packet.MustParseMAC("00:00:00:00:00:01")))
	d.AddInterface(device.NewInterface("i1", "gi0/1", device.InterfaceEthernet, packet.MustParseMAC("00:00:00:00:00:02")))
	d.AddInterface(device.NewInterface("i2", "gi0/2", device.InterfaceEthernet, packet.MustParseMAC("00:00:00:00:00:03")))
	now := time.Unix(0, 0)
	return New(d, func() time.Time { return now })
}

func TestProcessLearnsAndFloodsUnknownUnicast(t *testing.T) {
	sw := newTestSwitch()
	srcA := packet.MustParseMAC("AA:AA:AA:AA:AA:AA")
	destZ := packet.MustParseMAC("BB:BB:BB:BB:BB:BB")

	frame := &packet.Ethernet{Source: srcA, Destination: destZ, EtherType: packet.EtherTypeIPv4}
	dec := sw.Process(frame, "gi0/0")

	if !dec.Learned || dec.LearnedMAC != srcA {
		t.Fatalf("expected srcA to be learned, got %+v", dec)
	}
	want := []string{"gi0/1", "gi0/2"}
	if len(dec.EgressInterfaces) != len(want) {
		t.Fatalf("expected flood to %v, got %v", want, dec.EgressInterfaces)
	}
	for i, w := range want {
		if dec.EgressInterfaces[i] != w {
			t.Fatalf("expected flood order %v, got %v", want, dec.EgressInterfaces)
		}
	}

	if _, ok := sw.Lookup(srcA, device.DefaultVLAN); !ok {
		t.Fatal("expected srcA to be present in the MAC table after learning")
	}
}

func TestProcessForwardsKnownUnicast(t *testing.T) {
	sw := newTestSwitch()
	srcA := packet.MustParseMAC("AA:AA:AA:AA:AA:AA")
	srcB := packet.MustParseMAC("BB:BB:BB:BB:BB:BB")

	// Learn B on gi0/1 first.
	sw.Process(&packet.Ethernet{Source: srcB, Destination: packet.BroadcastMAC()}, "gi0/1")

	// Now A sends directly to B.
	dec := sw.Process(&packet.Ethernet{Source: srcA, Destination: srcB}, "gi0/0")
	if len(dec.EgressInterfaces) != 1 || dec.EgressInterfaces[0] != "gi0/1" {
		t.Fatalf("expected forward to gi0/1 only, got %v", dec.EgressInterfaces)
	}
}

func TestProcessFloodsBroadcast(t *testing.T) {
	sw := newTestSwitch()
	src := packet.MustParseMAC("AA:AA:AA:AA:AA:AA")
	dec := sw.Process(&packet.Ethernet{Source: src, Destination: packet.BroadcastMAC()}, "gi0/0")
	if len(dec.EgressInterfaces) != 2 {
		t.Fatalf("expected flood to the other 2 ports, got %v", dec.EgressInterfaces)
	}
}

func TestVLANScopedLookup(t *testing.T) {
	sw := newTestSwitch()
	iface1, _ := sw.Device.Interface("gi0/1")
	iface1.VLAN = 20

	mac := packet.MustParseMAC("CC:CC:CC:CC:CC:CC")
	sw.Learn(mac, "gi0/1", 20)

	if _, ok := sw.Lookup(mac, device.DefaultVLAN); ok {
		t.Fatal("expected no match in VLAN 1 for a binding learned in VLAN 20")
	}
	if iface, ok := sw.Lookup(mac, 20); !ok || iface != "gi0/1" {
		t.Fatalf("expected match in VLAN 20, got %v %v", iface, ok)
	}
}

func TestSkipsDownAndLoopbackInterfaces(t *testing.T) {
	sw := newTestSwitch()
	down, _ := sw.Device.Interface("gi0/1")
	down.IsUp = false
	sw.Device.AddInterface(device.NewInterface("i3", "lo0", device.InterfaceLoopback, packet.MustParseMAC("00:00:00:00:00:04")))

	src := packet.MustParseMAC("AA:AA:AA:AA:AA:AA")
	dec := sw.Process(&packet.Ethernet{Source: src, Destination: packet.BroadcastMAC()}, "gi0/0")
	if len(dec.EgressInterfaces) != 1 || dec.EgressInterfaces[0] != "gi0/2" {
		t.Fatalf("expected flood only to gi0/2 (gi0/1 down, lo0 loopback), got %v", dec.EgressInterfaces)
	}
}
