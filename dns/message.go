// Package dns implements the DNS resolver (client) and server described in
// spec.md §4.8-§4.9: a structured message carried as a UDP payload (no
// bit-accurate wire encoding, per the Non-goals), a TTL cache, a hard-coded
// public fallback table, and an authoritative-zone server.
//
// Grounded on the teacher's soypat-lneto/dns package for the message shape
// (header fields, question/answer/authority/additional sections) and
// record-type enumeration, adapted from a byte-buffer codec to structured
// Go values. The type/class/rcode vocabulary is reused from
// github.com/miekg/dns, the library AdguardTeam-AdGuardHome builds its
// resolver on, instead of hand-rolled numeric constants.
package dns

import (
	"net/netip"
	"strings"

	upstream "github.com/miekg/dns"
)

// Type is a DNS resource record type. spec.md §3 lists A, CNAME, NS, PTR,
// MX, TXT as supported; the resolver only ever materializes A.
type Type = uint16

var (
	TypeA     Type = upstream.TypeA
	TypeCNAME Type = upstream.TypeCNAME
	TypeNS    Type = upstream.TypeNS
	TypePTR   Type = upstream.TypePTR
	TypeMX    Type = upstream.TypeMX
	TypeTXT   Type = upstream.TypeTXT
)

// Class is a DNS resource record class; only IN is meaningful here.
type Class = uint16

const ClassINET Class = upstream.ClassINET

// RCode is a DNS response code.
type RCode = int

const (
	RCodeNoError  RCode = upstream.RcodeSuccess
	RCodeNXDomain RCode = upstream.RcodeNameError
)

// Opcode is a DNS message opcode; the resolver only ever issues/handles
// standard queries.
const OpcodeQuery = upstream.OpcodeQuery

// Question is one entry of a message's question section (spec.md §3).
type Question struct {
	Name  string
	Type  Type
	Class Class
}

// Resource is one answer/authority/additional record (spec.md §3). Data
// holds a netip.Addr for an A record; other types are carried opaquely for
// structural completeness even though the resolver only materializes A.
type Resource struct {
	Name  string
	Type  Type
	Class Class
	TTL   uint32
	Data  any
}

// Message is a DNS message (spec.md §3): header fields plus the four
// sections, carried end-to-end as a Go value rather than wire bytes.
type Message struct {
	ID     uint16
	QR     bool // false = query, true = response
	Opcode int
	AA     bool
	TC     bool
	RD     bool
	RA     bool
	RCode  RCode

	Questions   []Question
	Answers     []Resource
	Authority   []Resource
	Additional  []Resource
}

// NormalizeName lowercases a hostname for cache/zone lookups (spec.md
// §4.8's "cache keyed by lowercased name").
func NormalizeName(name string) string {
	return strings.ToLower(strings.TrimSuffix(name, "."))
}
