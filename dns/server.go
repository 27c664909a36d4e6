package dns

import "net/netip"

// DefaultTTL is used for answers synthesized by [Server] when no
// per-record TTL is configured.
const DefaultTTL = 300

// Server is the authoritative DNS server of spec.md §4.9: a zone of
// authoritative A records, falling back to the built-in public-records map.
type Server struct {
	zones map[string]netip.Addr
}

// NewServer constructs an empty authoritative server.
func NewServer() *Server {
	return &Server{zones: make(map[string]netip.Addr)}
}

// AddRecord registers an authoritative A record.
func (sv *Server) AddRecord(name string, ip netip.Addr) {
	sv.zones[NormalizeName(name)] = ip
}

// Process answers a query per spec.md §4.9: for each question, look up the
// authoritative zone first, then the public map; assemble the answer
// section; rcode is NOERROR if at least one answer was found, else
// NXDOMAIN; aa is always set.
func (sv *Server) Process(query *Message) *Message {
	resp := &Message{
		ID:    query.ID,
		QR:    true,
		AA:    true,
		RD:    query.RD,
		RA:    false,
		RCode: RCodeNXDomain,
	}
	for _, q := range query.Questions {
		resp.Questions = append(resp.Questions, q)
		if q.Type != TypeA {
			continue
		}
		name := NormalizeName(q.Name)
		ip, ok := sv.zones[name]
		if !ok {
			ip, ok = LookupPublic(name)
		}
		if !ok {
			continue
		}
		resp.Answers = append(resp.Answers, Resource{
			Name:  q.Name,
			Type:  TypeA,
			Class: ClassINET,
			TTL:   DefaultTTL,
			Data:  ip,
		})
	}
	if len(resp.Answers) > 0 {
		resp.RCode = RCodeNoError
	}
	return resp
}
