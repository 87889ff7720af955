package service

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus collectors for scraping, document delivery
// and imports. It satisfies the recorder interfaces of the scraper and
// document packages.
type Metrics struct {
	scrapesTotal     *prometheus.CounterVec
	scrapeDuration   *prometheus.HistogramVec
	proxyBytes       prometheus.Counter
	conversionsTotal *prometheus.CounterVec
	conversionTime   prometheus.Histogram
	resolvesTotal    *prometheus.CounterVec
	sessionsActive   prometheus.Gauge
	importedBills    *prometheus.CounterVec
}

// NewMetrics creates the collectors and registers them with reg
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		scrapesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "billtracker_scrapes_total",
				Help: "Scraper invocations by script and outcome",
			},
			[]string{"script", "outcome"},
		),
		scrapeDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "billtracker_scrape_duration_seconds",
				Help:    "Scraper process wall time",
				Buckets: []float64{0.25, 0.5, 1, 2, 3, 5, 10, 30, 60, 120},
			},
			[]string{"script"},
		),
		proxyBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "billtracker_proxy_bytes_total",
			Help: "Document bytes streamed through the proxy",
		}),
		conversionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "billtracker_conversions_total",
				Help: "DOC to DOCX conversions by outcome",
			},
			[]string{"outcome"},
		),
		conversionTime: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "billtracker_conversion_duration_seconds",
			Help:    "DOC to DOCX conversion wall time",
			Buckets: prometheus.DefBuckets,
		}),
		resolvesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "billtracker_document_resolves_total",
				Help: "Document resolutions by kind and outcome",
			},
			[]string{"kind", "outcome"},
		),
		sessionsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "billtracker_detail_sessions",
			Help: "Open bill detail sessions",
		}),
		importedBills: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "billtracker_imported_bills_total",
				Help: "Bills stored by the by-date importer",
			},
			[]string{"status"},
		),
	}

	reg.MustRegister(
		m.scrapesTotal,
		m.scrapeDuration,
		m.proxyBytes,
		m.conversionsTotal,
		m.conversionTime,
		m.resolvesTotal,
		m.sessionsActive,
		m.importedBills,
	)
	return m
}

// ObserveScrape records one scraper invocation
func (m *Metrics) ObserveScrape(script, outcome string, elapsed time.Duration) {
	m.scrapesTotal.WithLabelValues(script, outcome).Inc()
	m.scrapeDuration.WithLabelValues(script).Observe(elapsed.Seconds())
}

// AddProxyBytes counts streamed document bytes
func (m *Metrics) AddProxyBytes(n int64) {
	m.proxyBytes.Add(float64(n))
}

// ObserveConversion records one conversion
func (m *Metrics) ObserveConversion(outcome string, elapsed time.Duration) {
	m.conversionsTotal.WithLabelValues(outcome).Inc()
	m.conversionTime.Observe(elapsed.Seconds())
}

// ObserveResolve records one document resolution
func (m *Metrics) ObserveResolve(kind, outcome string) {
	m.resolvesTotal.WithLabelValues(kind, outcome).Inc()
}

// SetSessions reports the number of open detail sessions
func (m *Metrics) SetSessions(n int) {
	m.sessionsActive.Set(float64(n))
}

// ObserveImport records the outcome of storing one imported bill
func (m *Metrics) ObserveImport(status string) {
	m.importedBills.WithLabelValues(status).Inc()
}
