package main

import (
	"fmt"
	"log/slog"
	"net/netip"

	"github.com/nettopo/netsim/arp"
	"github.com/nettopo/netsim/clock"
	"github.com/nettopo/netsim/device"
	"github.com/nettopo/netsim/dhcpv4"
	"github.com/nettopo/netsim/dns"
	"github.com/nettopo/netsim/netswitch"
	"github.com/nettopo/netsim/packet"
	"github.com/nettopo/netsim/router"
	"github.com/nettopo/netsim/sim"
)

// instance is a built, runnable topology: the simulator plus enough
// bookkeeping to drive DHCP discovery and print introspection after the
// driver's boot sequence finishes.
type instance struct {
	Sim         *sim.Simulator
	dhcpClients map[string]*dhcpv4.Client
	routers     map[string]*router.Router
	switches    map[string]*netswitch.Switch
	leaseStores []*dhcpv4.BoltLeaseStore
}

// Close releases any bbolt lease databases opened while building the
// topology.
func (in *instance) Close() error {
	var err error
	for _, s := range in.leaseStores {
		if cerr := s.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}
	return err
}

// buildTopology constructs devices, interfaces, routes and connections
// from t and registers them all with a fresh simulator, matching
// spec.md §4's device lifecycle ("created -> configured -> registered
// with simulator, which installs the packet-sender hook").
func buildTopology(t *Topology, cl clock.Clock, log *slog.Logger, opts ...sim.Option) (*instance, error) {
	s := sim.New(cl, log, opts...)
	in := &instance{
		Sim:         s,
		dhcpClients: make(map[string]*dhcpv4.Client),
		routers:     make(map[string]*router.Router),
		switches:    make(map[string]*netswitch.Switch),
	}

	for _, ds := range t.Devices {
		if err := in.addDevice(s, ds, cl, log); err != nil {
			return nil, fmt.Errorf("netsim: device %q: %w", ds.ID, err)
		}
	}

	for _, cs := range t.Connections {
		err := s.AddConnection(sim.Connection{
			SourceDeviceID:    cs.DeviceA,
			SourceInterfaceID: cs.InterfaceA,
			TargetDeviceID:    cs.DeviceB,
			TargetInterfaceID: cs.InterfaceB,
		})
		if err != nil {
			return nil, fmt.Errorf("netsim: connection %s/%s <-> %s/%s: %w",
				cs.DeviceA, cs.InterfaceA, cs.DeviceB, cs.InterfaceB, err)
		}
	}
	return in, nil
}

func (in *instance) addDevice(s *sim.Simulator, ds DeviceSpec, cl clock.Clock, log *slog.Logger) error {
	var kind device.Kind
	switch ds.Kind {
	case "host":
		kind = device.KindHost
	case "switch":
		kind = device.KindSwitch
	case "router":
		kind = device.KindRouter
	default:
		return fmt.Errorf("unknown device kind %q", ds.Kind)
	}

	d := device.New(ds.ID, ds.Name, kind, log)
	for _, is := range ds.Interfaces {
		mac, err := packet.ParseMAC(is.MAC)
		if err != nil {
			return fmt.Errorf("interface %q: %w", is.Name, err)
		}
		iface := device.NewInterface(is.Name, is.Name, device.InterfaceEthernet, mac)
		iface.VLAN = is.VLAN
		if iface.VLAN == 0 {
			iface.VLAN = device.DefaultVLAN
		}
		if is.Trunk {
			iface.PortMode = device.PortTrunk
		}
		if is.Down {
			iface.IsUp = false
		}
		d.AddInterface(iface)
	}

	switch kind {
	case device.KindSwitch:
		sw := netswitch.New(d, cl.Now)
		in.switches[ds.ID] = sw
		s.RegisterDevice(d, nil, sw)
		return nil
	case device.KindHost:
		ns := device.NewNetStack(d, cl, arp.DefaultConfig(), log)
		if err := configureInterfaces(ns, ds.Interfaces); err != nil {
			return err
		}
		if err := addStaticRoutes(ns, ds.Routes); err != nil {
			return err
		}
		host := device.NewHost(ns, log)
		if ds.EnableDHCPClient && len(ds.Interfaces) > 0 {
			iface := ds.Interfaces[0]
			mac := packet.MustParseMAC(iface.MAC)
			client := dhcpv4.NewClient(mac, cl, dhcpClientSender(d, iface.Name, log), log,
				func(lease *dhcpv4.ClientLease) {
					ns.ConfigureInterface(iface.Name, lease.IP, lease.SubnetMask)
				}, nil)
			in.dhcpClients[ds.ID] = client
			host.OnUDP = func(udp *packet.UDP) {
				if msg, ok := udp.Payload.(*dhcpv4.Message); ok {
					client.Receive(msg)
				}
			}
		}
		s.RegisterDevice(d, host, nil)
		return nil
	case device.KindRouter:
		ns := device.NewNetStack(d, cl, arp.DefaultConfig(), log)
		if err := configureInterfaces(ns, ds.Interfaces); err != nil {
			return err
		}
		if err := addStaticRoutes(ns, ds.Routes); err != nil {
			return err
		}
		r := router.New(ns, log)
		if len(ds.DHCPPools) > 0 {
			var gw netip.Addr
			if len(ds.Interfaces) > 0 && ds.Interfaces[0].IP != "" {
				gw = netip.MustParseAddr(ds.Interfaces[0].IP)
			}
			var store dhcpv4.LeaseStore
			if ds.LeaseDB != "" {
				boltStore, err := dhcpv4.NewBoltLeaseStore(ds.LeaseDB)
				if err != nil {
					return fmt.Errorf("lease db %q: %w", ds.LeaseDB, err)
				}
				in.leaseStores = append(in.leaseStores, boltStore)
				store = boltStore
			}
			sv, err := dhcpv4.NewServer(dhcpv4.ServerConfig{ServerIdentifier: gw, GatewayIP: gw, Store: store}, cl, log)
			if err != nil {
				return fmt.Errorf("dhcp server: %w", err)
			}
			for _, ps := range ds.DHCPPools {
				pool, err := buildPool(ps)
				if err != nil {
					return err
				}
				if err := sv.AddPool(pool); err != nil {
					return fmt.Errorf("dhcp pool %q: %w", ps.Name, err)
				}
			}
			r.DHCP = sv
		}
		if len(ds.DNSRecords) > 0 {
			dsv := dns.NewServer()
			for _, rec := range ds.DNSRecords {
				ip, err := netip.ParseAddr(rec.IP)
				if err != nil {
					return fmt.Errorf("dns record %q: %w", rec.Name, err)
				}
				dsv.AddRecord(rec.Name, ip)
			}
			r.DNS = dsv
		}
		in.routers[ds.ID] = r
		s.RegisterDevice(d, r, nil)
		return nil
	}
	return nil
}

func configureInterfaces(ns *device.NetStack, ifaces []InterfaceSpec) error {
	for _, is := range ifaces {
		if is.IP == "" {
			continue
		}
		ip, err := netip.ParseAddr(is.IP)
		if err != nil {
			return fmt.Errorf("interface %q ip: %w", is.Name, err)
		}
		mask, err := netip.ParseAddr(is.Mask)
		if err != nil {
			return fmt.Errorf("interface %q mask: %w", is.Name, err)
		}
		if !ns.ConfigureInterface(is.Name, ip, mask) {
			return fmt.Errorf("interface %q: invalid address/mask", is.Name)
		}
	}
	return nil
}

func addStaticRoutes(ns *device.NetStack, routes []RouteSpec) error {
	for _, rs := range routes {
		dest, err := netip.ParseAddr(rs.Destination)
		if err != nil {
			return fmt.Errorf("route destination: %w", err)
		}
		mask, err := netip.ParseAddr(rs.Mask)
		if err != nil {
			return fmt.Errorf("route mask: %w", err)
		}
		gw, err := netip.ParseAddr(rs.Gateway)
		if err != nil {
			return fmt.Errorf("route gateway: %w", err)
		}
		if !ns.AddStaticRoute(dest, mask, gw, rs.Interface, rs.Metric) {
			return fmt.Errorf("route %s mask %s: not a contiguous netmask", rs.Destination, rs.Mask)
		}
	}
	return nil
}

func buildPool(ps DHCPPoolSpec) (dhcpv4.Pool, error) {
	network, err := netip.ParseAddr(ps.Network)
	if err != nil {
		return dhcpv4.Pool{}, fmt.Errorf("pool %q network: %w", ps.Name, err)
	}
	mask, err := netip.ParseAddr(ps.Mask)
	if err != nil {
		return dhcpv4.Pool{}, fmt.Errorf("pool %q mask: %w", ps.Name, err)
	}
	defaultRouter, err := netip.ParseAddr(ps.DefaultRouter)
	if err != nil {
		return dhcpv4.Pool{}, fmt.Errorf("pool %q default_router: %w", ps.Name, err)
	}
	pool := dhcpv4.Pool{
		Name:          ps.Name,
		Network:       network,
		Mask:          mask,
		DefaultRouter: defaultRouter,
		Domain:        ps.Domain,
		LeaseSeconds:  ps.LeaseSeconds,
		Excluded:      make(map[netip.Addr]bool),
	}
	for _, s := range ps.DNSServers {
		ip, err := netip.ParseAddr(s)
		if err != nil {
			return dhcpv4.Pool{}, fmt.Errorf("pool %q dns_servers: %w", ps.Name, err)
		}
		pool.DNSServer = append(pool.DNSServer, ip)
	}
	for _, e := range ps.Excluded {
		ip, err := netip.ParseAddr(e)
		if err != nil {
			return dhcpv4.Pool{}, fmt.Errorf("pool %q excluded: %w", ps.Name, err)
		}
		pool.Excluded[ip] = true
	}
	return pool, nil
}

// dhcpClientSender adapts a dhcpv4.Client's wire-level send callback to
// the simulator's Ethernet/IPv4/UDP envelope, mirroring
// router.Router.wrapDHCPReply's framing for the client's half of the
// exchange (always broadcast: no lease yet to source a unicast from).
func dhcpClientSender(d *device.Device, ifaceName string, log *slog.Logger) dhcpv4.ClientSenderFunc {
	return func(msg *dhcpv4.Message) error {
		iface, ok := d.Interface(ifaceName)
		if !ok {
			return fmt.Errorf("netsim: unknown interface %q", ifaceName)
		}
		ipPkt := &packet.IPv4{
			TTL:         64,
			Protocol:    packet.IPProtoUDP,
			Source:      netip.IPv4Unspecified(),
			Destination: netip.MustParseAddr("255.255.255.255"),
			Payload: &packet.UDP{
				SourcePort:      packet.PortDHCPClient,
				DestinationPort: packet.PortDHCPServer,
				Payload:         msg,
			},
		}
		frame := &packet.Ethernet{
			Source:      iface.MACAddress,
			Destination: packet.BroadcastMAC(),
			EtherType:   packet.EtherTypeIPv4,
			Payload:     ipPkt,
		}
		return d.Send(ifaceName, frame)
	}
}
