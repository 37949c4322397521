package monitoring

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	requestsDesc = prometheus.NewDesc(
		"memsim_level_requests_total",
		"Number of line requests served by a level.",
		[]string{"level", "kind", "outcome"}, nil,
	)
	hitRateDesc = prometheus.NewDesc(
		"memsim_level_hit_rate",
		"Fraction of the line requests of a level that hit.",
		[]string{"level"}, nil,
	)
)

// levelCollector exports the running counters of every level of the
// hierarchy registered with a monitor. It exports nothing while no
// hierarchy is registered.
type levelCollector struct {
	monitor *Monitor
}

func (c *levelCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- requestsDesc
	ch <- hitRateDesc
}

func (c *levelCollector) Collect(ch chan<- prometheus.Metric) {
	h, lock := c.monitor.registered()
	if h == nil {
		return
	}

	lock.Lock()
	stats := h.Stats()
	lock.Unlock()

	for _, s := range stats {
		counters := s.Running()

		samples := []struct {
			kind, outcome string
			value         uint64
		}{
			{"read", "hit", counters.ReadHit},
			{"read", "miss", counters.ReadMiss},
			{"write", "hit", counters.WriteHit},
			{"write", "miss", counters.WriteMiss},
		}

		for _, sample := range samples {
			ch <- prometheus.MustNewConstMetric(
				requestsDesc, prometheus.CounterValue,
				float64(sample.value), s.Name, sample.kind, sample.outcome)
		}

		ch <- prometheus.MustNewConstMetric(
			hitRateDesc, prometheus.GaugeValue, counters.HitRate(), s.Name)
	}
}
