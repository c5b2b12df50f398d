package coordinator

import "github.com/prometheus/client_golang/prometheus"

// Metrics bundles Prometheus collectors for page coordination.
type Metrics struct {
	PagesLoaded   prometheus.Counter
	StaleResults  prometheus.Counter
	FetchFailures prometheus.Counter
}

// NewMetrics constructs the collectors and registers them on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		PagesLoaded: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "catalog_pages_loaded_total",
			Help: "Total number of pages appended to the active query state.",
		}),
		StaleResults: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "catalog_stale_results_total",
			Help: "Fetch results discarded because the filters changed while in flight.",
		}),
		FetchFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "catalog_fetch_failures_total",
			Help: "Page fetches that left the query state errored.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.PagesLoaded, m.StaleResults, m.FetchFailures)
	}
	return m
}

func (m *Metrics) IncPage() {
	if m == nil {
		return
	}
	m.PagesLoaded.Inc()
}

func (m *Metrics) IncStale() {
	if m == nil {
		return
	}
	m.StaleResults.Inc()
}

func (m *Metrics) IncFailure() {
	if m == nil {
		return
	}
	m.FetchFailures.Inc()
}
