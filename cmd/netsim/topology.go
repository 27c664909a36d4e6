package main

import (
	"encoding/json"
	"fmt"
	"os"
)

// Topology is the declarative file format the driver program loads
// (SPEC_FULL.md's "Driver program" component): devices, their
// interfaces, the links between them, and any DHCP pools / DNS records
// to bring up on router-colocated servers.
//
// There is no teacher precedent for a declarative topology file — lneto
// has no multi-device concept — so the shape is grounded on spec.md §3's
// device/interface/connection/route data model directly. JSON rather than
// a third-party config format: the teacher's own config surface
// (arp.HandlerConfig, tcp.ConnConfig) is always a plain Go struct literal
// compiled into the caller, never a file; encoding/json is the smallest
// faithful on-disk mirror of those structs.
type Topology struct {
	Devices     []DeviceSpec     `json:"devices"`
	Connections []ConnectionSpec `json:"connections"`
}

type DeviceSpec struct {
	ID               string          `json:"id"`
	Name             string          `json:"name"`
	Kind             string          `json:"kind"` // "host", "switch", "router"
	Interfaces       []InterfaceSpec `json:"interfaces"`
	Routes           []RouteSpec     `json:"routes,omitempty"`
	DHCPPools        []DHCPPoolSpec  `json:"dhcp_pools,omitempty"`
	DNSRecords       []DNSRecordSpec `json:"dns_records,omitempty"`
	EnableDHCPClient bool            `json:"enable_dhcp_client,omitempty"`
	// LeaseDB, if set on a router, persists that router's DHCP lease table
	// to a bbolt database at this path (SPEC_FULL.md §4.11) instead of
	// keeping leases in memory only.
	LeaseDB string `json:"lease_db,omitempty"`
}

// InterfaceSpec's Name doubles as the device.Interface lookup key used
// throughout the engine (device.Device.Interface, sim.Connection's
// endpoints, NetStack.ConfigureInterface/AddStaticRoute all key off it).
type InterfaceSpec struct {
	Name  string `json:"name"`
	MAC   string `json:"mac"`
	IP    string `json:"ip,omitempty"`
	Mask  string `json:"mask,omitempty"`
	VLAN  int    `json:"vlan,omitempty"`
	Trunk bool   `json:"trunk,omitempty"`
	Down  bool   `json:"down,omitempty"`
}

type RouteSpec struct {
	Destination string `json:"destination"`
	Mask        string `json:"mask"`
	Gateway     string `json:"gateway"`
	Interface   string `json:"interface"`
	Metric      int    `json:"metric,omitempty"`
}

type DHCPPoolSpec struct {
	Name          string   `json:"name"`
	Network       string   `json:"network"`
	Mask          string   `json:"mask"`
	DefaultRouter string   `json:"default_router"`
	DNSServers    []string `json:"dns_servers,omitempty"`
	Domain        string   `json:"domain,omitempty"`
	LeaseSeconds  int      `json:"lease_seconds"`
	Excluded      []string `json:"excluded,omitempty"`
}

type DNSRecordSpec struct {
	Name string `json:"name"`
	IP   string `json:"ip"`
}

type ConnectionSpec struct {
	DeviceA    string `json:"device_a"`
	InterfaceA string `json:"interface_a"`
	DeviceB    string `json:"device_b"`
	InterfaceB string `json:"interface_b"`
}

// LoadTopology reads and decodes a topology file from path.
func LoadTopology(path string) (*Topology, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("netsim: opening topology: %w", err)
	}
	defer f.Close()
	var t Topology
	dec := json.NewDecoder(f)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&t); err != nil {
		return nil, fmt.Errorf("netsim: decoding topology: %w", err)
	}
	return &t, nil
}
