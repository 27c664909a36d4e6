package sim

import "github.com/prometheus/client_golang/prometheus"

// Metrics is the optional Prometheus sink of SPEC_FULL.md §4.10, fed by
// the simulator's own event stream plus two gauges callers update
// directly from DHCP/DNS server state, since the simulator has no
// visibility into a co-located server's internals. Grounded on
// ngcxy-dranet's gauge/counter instrumentation of its packet pipeline.
type Metrics struct {
	framesSent      prometheus.Counter
	framesDelivered prometheus.Counter
	framesDropped   *prometheus.CounterVec
	macLearned      prometheus.Counter
	dhcpLeases      prometheus.Gauge
	dnsCacheEntries prometheus.Gauge
}

// NewMetrics constructs and registers the simulator's collectors against
// reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		framesSent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "netsim",
			Name:      "frames_sent_total",
			Help:      "Total frames emitted via send_frame.",
		}),
		framesDelivered: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "netsim",
			Name:      "frames_delivered_total",
			Help:      "Total frames successfully delivered to a destination interface.",
		}),
		framesDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "netsim",
			Name:      "frames_dropped_total",
			Help:      "Total frames dropped during delivery, by reason.",
		}, []string{"reason"}),
		macLearned: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "netsim",
			Name:      "mac_learned_total",
			Help:      "Total MAC-learning events across all switches.",
		}),
		dhcpLeases: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "netsim",
			Name:      "dhcp_leases_active",
			Help:      "Currently bound DHCP leases, summed across all DHCP servers.",
		}),
		dnsCacheEntries: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "netsim",
			Name:      "dns_cache_entries",
			Help:      "Entries currently held in DNS resolver caches, summed across all resolvers.",
		}),
	}
	reg.MustRegister(m.framesSent, m.framesDelivered, m.framesDropped, m.macLearned, m.dhcpLeases, m.dnsCacheEntries)
	return m
}

// Attach subscribes m to s's event stream.
func (m *Metrics) Attach(s *Simulator) {
	s.AddListener(func(e Event) {
		switch e.Type {
		case FrameSent:
			m.framesSent.Inc()
		case FrameReceived:
			m.framesDelivered.Inc()
		case FrameDropped:
			reason := "unknown"
			if e.Details != nil {
				reason = string(e.Details.Reason)
			}
			m.framesDropped.WithLabelValues(reason).Inc()
		case MacLearned:
			m.macLearned.Inc()
		}
	})
}

// SetDHCPLeasesActive updates the netsim_dhcp_leases_active gauge. Callers
// (cmd/netsim) re-sum this across every router's co-located DHCP server on
// whatever cadence they choose; the simulator itself never inspects DHCP
// server state.
func (m *Metrics) SetDHCPLeasesActive(n int) {
	m.dhcpLeases.Set(float64(n))
}

// SetDNSCacheEntries updates the netsim_dns_cache_entries gauge, analogous
// to SetDHCPLeasesActive.
func (m *Metrics) SetDNSCacheEntries(n int) {
	m.dnsCacheEntries.Set(float64(n))
}
