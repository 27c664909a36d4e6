package arp

import (
	"net/netip"
	"testing"
	"time"

	"github.com/nettopo/netsim/clock"
	"github.com/nettopo/netsim/packet"
)

func TestProcessLearnAndReply(t *testing.T) {
	// Scenario 1 from spec.md §8.
	localMAC := packet.MustParseMAC("AA:BB:CC:DD:EE:FF")
	localIP := netip.MustParseAddr("192.168.1.100")
	senderMAC := packet.MustParseMAC("00:11:22:33:44:55")
	senderIP := netip.MustParseAddr("192.168.1.1")

	svc := New(DefaultConfig(), clock.NewVirtual(time.Unix(0, 0)), nil, nil)
	req := packet.MakeARPRequest(senderMAC, senderIP, localIP)
	reply := svc.Process(req, "eth0", localIP, localMAC)

	if reply == nil {
		t.Fatal("expected a reply")
	}
	if reply.Opcode != packet.ARPReply || reply.SenderMAC != localMAC || reply.SenderIP != localIP ||
		reply.TargetMAC != senderMAC || reply.TargetIP != senderIP {
		t.Errorf("unexpected reply: %+v", reply)
	}
	mac, ok := svc.Lookup(senderIP)
	if !ok || mac != senderMAC {
		t.Errorf("cache not updated: got (%v,%v)", mac, ok)
	}
}

func TestProcessMisfitNoReplyButLearns(t *testing.T) {
	// Scenario 2 from spec.md §8.
	localMAC := packet.MustParseMAC("AA:BB:CC:DD:EE:FF")
	localIP := netip.MustParseAddr("192.168.1.100")
	senderMAC := packet.MustParseMAC("00:11:22:33:44:55")
	senderIP := netip.MustParseAddr("192.168.1.1")
	otherIP := netip.MustParseAddr("192.168.1.200")

	svc := New(DefaultConfig(), clock.NewVirtual(time.Unix(0, 0)), nil, nil)
	req := packet.MakeARPRequest(senderMAC, senderIP, otherIP)
	reply := svc.Process(req, "eth0", localIP, localMAC)
	if reply != nil {
		t.Fatalf("expected no reply, got %+v", reply)
	}
	if mac, ok := svc.Lookup(senderIP); !ok || mac != senderMAC {
		t.Errorf("sender should still be learned: got (%v,%v)", mac, ok)
	}
}

func TestStaticNeverOverwrittenByDynamic(t *testing.T) {
	svc := New(DefaultConfig(), clock.NewVirtual(time.Unix(0, 0)), nil, nil)
	ip := netip.MustParseAddr("10.0.0.1")
	staticMAC := packet.MustParseMAC("AA:AA:AA:AA:AA:AA")
	dynamicMAC := packet.MustParseMAC("BB:BB:BB:BB:BB:BB")

	svc.AddStaticEntry(ip, staticMAC, "eth0")
	svc.AddDynamicEntry(ip, dynamicMAC, "eth0")

	mac, ok := svc.Lookup(ip)
	if !ok || mac != staticMAC {
		t.Errorf("lookup(%v) = (%v,%v), want static %v", ip, mac, ok, staticMAC)
	}
}

func TestAgingMarksStaleThenEvicts(t *testing.T) {
	vc := clock.NewVirtual(time.Unix(0, 0))
	cfg := DefaultConfig()
	cfg.Timeout = 100 * time.Second
	svc := New(cfg, vc, nil, nil)
	ip := netip.MustParseAddr("10.0.0.5")
	svc.AddDynamicEntry(ip, packet.MustParseMAC("AA:AA:AA:AA:AA:AA"), "eth0")

	vc.Advance(80 * time.Second) // 80% of timeout
	svc.AgeAll()
	entries := svc.Entries()
	if len(entries) != 1 || entries[0].State != Stale {
		t.Fatalf("expected single stale entry at 80%%, got %+v", entries)
	}

	vc.Advance(30 * time.Second) // total 110s > 100s timeout
	if _, ok := svc.Lookup(ip); ok {
		t.Errorf("expected entry to be evicted past timeout")
	}
}

func TestResolveCoalescesPendingAndTimesOut(t *testing.T) {
	vc := clock.NewVirtual(time.Unix(0, 0))
	cfg := DefaultConfig()
	cfg.MaxRetries = 2
	cfg.RetryInterval = time.Second
	var sent int
	send := func(iface string, frame *packet.Ethernet) error {
		sent++
		return nil
	}
	svc := New(cfg, vc, send, nil)

	target := netip.MustParseAddr("10.0.0.9")
	var results []bool
	cb := func(mac packet.MAC, ok bool) { results = append(results, ok) }

	svc.Resolve(target, packet.MustParseMAC("AA:AA:AA:AA:AA:AA"), netip.MustParseAddr("10.0.0.1"), "eth0", cb)
	svc.Resolve(target, packet.MustParseMAC("AA:AA:AA:AA:AA:AA"), netip.MustParseAddr("10.0.0.1"), "eth0", cb)

	if sent != 1 {
		t.Fatalf("expected single coalesced initial request, got %d sends", sent)
	}

	vc.Advance(cfg.RetryInterval) // retry 1
	vc.Advance(cfg.RetryInterval) // retries exhausted -> both callbacks fire false

	if len(results) != 2 || results[0] || results[1] {
		t.Errorf("expected both coalesced callbacks to resolve false, got %+v", results)
	}
}

func TestResolveSucceedsOnReply(t *testing.T) {
	vc := clock.NewVirtual(time.Unix(0, 0))
	send := func(iface string, frame *packet.Ethernet) error { return nil }
	svc := New(DefaultConfig(), vc, send, nil)

	target := netip.MustParseAddr("10.0.0.9")
	var gotMAC packet.MAC
	var gotOK bool
	svc.Resolve(target, packet.MustParseMAC("AA:AA:AA:AA:AA:AA"), netip.MustParseAddr("10.0.0.1"), "eth0",
		func(mac packet.MAC, ok bool) { gotMAC, gotOK = mac, ok })

	replyMAC := packet.MustParseMAC("CC:CC:CC:CC:CC:CC")
	reply := packet.MakeARPReply(replyMAC, target, packet.MustParseMAC("AA:AA:AA:AA:AA:AA"), netip.MustParseAddr("10.0.0.1"))
	svc.Process(reply, "eth0", netip.MustParseAddr("10.0.0.1"), packet.MustParseMAC("AA:AA:AA:AA:AA:AA"))

	if !gotOK || gotMAC != replyMAC {
		t.Errorf("resolve callback = (%v,%v), want (%v,true)", gotMAC, gotOK, replyMAC)
	}
}
