package packet

import (
	"encoding/binary"
	"errors"
	"net/netip"
)

// ErrNotIPv4 is returned by helpers in this file when handed an address that
// is not a 4-byte IPv4 address; the simulator never operates on IPv6.
var ErrNotIPv4 = errors.New("packet: address is not IPv4")

// IPToNumber returns the big-endian uint32 representation of an IPv4
// address. It panics if addr is not a 4-byte address, the same programmer-
// error-only panic policy as the MAC constructors.
func IPToNumber(addr netip.Addr) uint32 {
	if !addr.Is4() {
		panic("packet: IPToNumber: " + ErrNotIPv4.Error())
	}
	a4 := addr.As4()
	return binary.BigEndian.Uint32(a4[:])
}

// NumberToIP is the inverse of [IPToNumber]: for every uint32 n,
// IPToNumber(NumberToIP(n)) == n.
func NumberToIP(n uint32) netip.Addr {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], n)
	return netip.AddrFrom4(b)
}

// NetworkAddress returns the network address of addr under mask, i.e.
// addr AND mask.
func NetworkAddress(addr, mask netip.Addr) netip.Addr {
	return NumberToIP(IPToNumber(addr) & IPToNumber(mask))
}

// BroadcastAddress returns the directed broadcast address of addr under
// mask, i.e. addr OR (NOT mask).
func BroadcastAddress(addr, mask netip.Addr) netip.Addr {
	return NumberToIP(IPToNumber(addr) | ^IPToNumber(mask))
}

// IsIPInNetwork reports whether ip belongs to the network identified by
// (network, mask): NetworkAddress(ip, mask) == network.
func IsIPInNetwork(ip, network, mask netip.Addr) bool {
	return NetworkAddress(ip, mask) == network
}

// PrefixLen returns the number of leading one-bits in mask, or -1 if mask is
// not a contiguous netmask (a run of ones followed by a run of zeros).
// Per DESIGN.md Open Question 2, non-contiguous masks are rejected rather
// than silently accepted as the original source did.
func PrefixLen(mask netip.Addr) int {
	n := IPToNumber(mask)
	ones := 0
	seenZero := false
	for i := 31; i >= 0; i-- {
		bit := (n >> uint(i)) & 1
		if bit == 1 {
			if seenZero {
				return -1
			}
			ones++
		} else {
			seenZero = true
		}
	}
	return ones
}

// NetmaskToPrefix converts a dotted netmask to its CIDR prefix length. It
// returns (0, false) if mask is not a contiguous netmask.
func NetmaskToPrefix(mask netip.Addr) (int, bool) {
	p := PrefixLen(mask)
	if p < 0 {
		return 0, false
	}
	return p, true
}

// PrefixToNetmask converts a CIDR prefix length (0-32) to its dotted
// netmask form. PrefixToNetmask(NetmaskToPrefix(m)) == m holds for every
// valid contiguous netmask m.
func PrefixToNetmask(prefix int) netip.Addr {
	if prefix <= 0 {
		return NumberToIP(0)
	}
	if prefix >= 32 {
		return NumberToIP(0xffffffff)
	}
	mask := ^uint32(0) << uint(32-prefix)
	return NumberToIP(mask)
}
