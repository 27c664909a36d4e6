package dns

import "net/netip"

// publicTable is the hard-coded fallback table spec.md §6 requires for a
// small set of well-known public hostnames, consulted when neither an
// authoritative zone nor a live cache entry has the answer.
var publicTable = map[string]netip.Addr{
	"google.com":     netip.MustParseAddr("142.250.80.46"),
	"www.google.com": netip.MustParseAddr("142.250.80.46"),

	"facebook.com":     netip.MustParseAddr("157.240.1.35"),
	"www.facebook.com": netip.MustParseAddr("157.240.1.35"),

	"amazon.com":     netip.MustParseAddr("54.239.28.85"),
	"www.amazon.com": netip.MustParseAddr("54.239.28.85"),

	"github.com":     netip.MustParseAddr("140.82.121.3"),
	"www.github.com": netip.MustParseAddr("140.82.121.3"),

	"microsoft.com":     netip.MustParseAddr("20.112.250.133"),
	"www.microsoft.com": netip.MustParseAddr("20.112.250.133"),

	"apple.com":     netip.MustParseAddr("17.253.144.10"),
	"www.apple.com": netip.MustParseAddr("17.253.144.10"),

	"cloudflare.com": netip.MustParseAddr("104.16.132.229"),
	"dns.google":     netip.MustParseAddr("8.8.8.8"),
	"localhost":      netip.MustParseAddr("127.0.0.1"),
}

// LookupPublic returns the hard-coded public-table answer for name, if any.
func LookupPublic(name string) (netip.Addr, bool) {
	ip, ok := publicTable[NormalizeName(name)]
	return ip, ok
}
