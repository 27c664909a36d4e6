package main

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/nettopo/netsim/clock"
)

func TestLoadTopologyAndBuild(t *testing.T) {
	topo, err := LoadTopology("testdata/two_hosts_switch.json")
	if err != nil {
		t.Fatalf("LoadTopology: %v", err)
	}
	if len(topo.Devices) != 3 || len(topo.Connections) != 2 {
		t.Fatalf("unexpected topology shape: %+v", topo)
	}

	vc := clock.NewVirtual(time.Unix(0, 0))
	in, err := buildTopology(topo, vc, nil)
	if err != nil {
		t.Fatalf("buildTopology: %v", err)
	}

	h1, ok := in.Sim.Device("h1")
	if !ok {
		t.Fatal("expected h1 to be registered")
	}
	iface, ok := h1.Interface("eth0")
	if !ok || !iface.IPAddress.IsValid() {
		t.Fatalf("expected h1/eth0 to be configured, got %+v", iface)
	}
	if _, ok := in.switches["sw1"]; !ok {
		t.Fatal("expected sw1 to be registered as a switch")
	}
}

func TestLoadTopologyRejectsMissingFile(t *testing.T) {
	_, err := LoadTopology("testdata/does_not_exist.json")
	if err == nil {
		t.Fatal("expected an error for a missing file")
	}
}

func TestBuildTopologyRejectsDuplicateConnection(t *testing.T) {
	topo := &Topology{
		Devices: []DeviceSpec{
			{ID: "a", Name: "a", Kind: "host", Interfaces: []InterfaceSpec{{Name: "eth0", MAC: "AA:AA:AA:AA:AA:01"}}},
			{ID: "b", Name: "b", Kind: "host", Interfaces: []InterfaceSpec{{Name: "eth0", MAC: "AA:AA:AA:AA:AA:02"}}},
			{ID: "c", Name: "c", Kind: "host", Interfaces: []InterfaceSpec{{Name: "eth0", MAC: "AA:AA:AA:AA:AA:03"}}},
		},
		Connections: []ConnectionSpec{
			{DeviceA: "a", InterfaceA: "eth0", DeviceB: "b", InterfaceB: "eth0"},
			{DeviceA: "a", InterfaceA: "eth0", DeviceB: "c", InterfaceB: "eth0"},
		},
	}
	vc := clock.NewVirtual(time.Unix(0, 0))
	if _, err := buildTopology(topo, vc, nil); err == nil {
		t.Fatal("expected an error for a's duplicate connection")
	}
}

func TestBuildTopologyWiresBoltLeaseStore(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "leases.db")
	topo := &Topology{
		Devices: []DeviceSpec{
			{
				ID: "r1", Name: "r1", Kind: "router",
				Interfaces: []InterfaceSpec{{Name: "eth0", MAC: "AA:AA:AA:AA:AA:01", IP: "192.168.1.1", Mask: "255.255.255.0"}},
				DHCPPools: []DHCPPoolSpec{{
					Name: "lan", Network: "192.168.1.0", Mask: "255.255.255.0",
					DefaultRouter: "192.168.1.1", LeaseSeconds: 3600,
				}},
				LeaseDB: dbPath,
			},
		},
	}
	vc := clock.NewVirtual(time.Unix(0, 0))
	in, err := buildTopology(topo, vc, nil)
	if err != nil {
		t.Fatalf("buildTopology: %v", err)
	}
	defer in.Close()

	r, ok := in.routers["r1"]
	if !ok || r.DHCP == nil {
		t.Fatal("expected r1's DHCP server to be built")
	}
	if len(in.leaseStores) != 1 {
		t.Fatalf("expected one lease store to be opened, got %d", len(in.leaseStores))
	}
}
