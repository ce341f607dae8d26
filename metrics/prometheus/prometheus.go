package prometheusmetrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/bidflare/bidflare/config"
	"github.com/bidflare/bidflare/metrics"
)

// Metrics defines the actual Prometheus metrics we will be using. Satisfies interface
// metrics.MetricsEngine.
type Metrics struct {
	Registry      *prometheus.Registry
	connCounter   prometheus.Gauge
	connError     *prometheus.CounterVec
	imps          prometheus.Counter
	requests      *prometheus.CounterVec
	reqTimer      *prometheus.HistogramVec
	adaptRequests *prometheus.CounterVec
	adaptTimer    *prometheus.HistogramVec
	adaptBids     *prometheus.CounterVec
	adaptPrices   *prometheus.HistogramVec
	adaptPanics   *prometheus.CounterVec
	cacheTimer    *prometheus.HistogramVec
}

// NewMetrics registers all the auction metrics on a fresh registry. A per-engine
// registry keeps tests from tripping over duplicate registration.
func NewMetrics(cfg config.PrometheusMetrics) *Metrics {
	timerBuckets := prometheus.LinearBuckets(0.05, 0.05, 20)
	timerBuckets = append(timerBuckets, []float64{1.5, 2.0, 3.0, 5.0, 10.0, 50.0}...)

	standardLabelNames := []string{"status"}
	adapterLabelNames := []string{"adapter"}

	m := Metrics{Registry: prometheus.NewRegistry()}
	m.connCounter = newConnCounter(cfg)
	m.connError = newCounter(cfg, "connection_errors_total",
		"Errors reported on the connections coming in.",
		[]string{"errortype"},
	)
	m.imps = newSimpleCounter(cfg, "imps_requested_total",
		"Total number of impressions requested through the exchange.",
	)
	m.requests = newCounter(cfg, "requests_total",
		"Total number of auction requests.",
		standardLabelNames,
	)
	m.reqTimer = newHistogram(cfg, "request_time_seconds",
		"Seconds to resolve each auction request.",
		standardLabelNames, timerBuckets,
	)
	m.adaptRequests = newCounter(cfg, "adapter_requests_total",
		"Number of requests sent out to each bidder.",
		adapterLabelNames,
	)
	m.adaptTimer = newHistogram(cfg, "adapter_time_seconds",
		"Seconds to resolve each request to a bidder.",
		adapterLabelNames, timerBuckets,
	)
	m.adaptBids = newCounter(cfg, "adapter_bids_received_total",
		"Number of bids received from each bidder.",
		adapterLabelNames,
	)
	m.adaptPrices = newHistogram(cfg, "adapter_prices",
		"CPM of the bids from each bidder.",
		adapterLabelNames, prometheus.LinearBuckets(0.1, 0.1, 200),
	)
	m.adaptPanics = newCounter(cfg, "adapter_panics_total",
		"Number of panics caught inside each bidder's requester.",
		adapterLabelNames,
	)
	m.cacheTimer = newHistogram(cfg, "cache_request_time_seconds",
		"Seconds to resolve each creative cache request.",
		[]string{"success"}, timerBuckets,
	)

	m.Registry.MustRegister(m.connCounter, m.connError, m.imps, m.requests,
		m.reqTimer, m.adaptRequests, m.adaptTimer, m.adaptBids, m.adaptPrices,
		m.adaptPanics, m.cacheTimer)

	return &m
}

func newConnCounter(cfg config.PrometheusMetrics) prometheus.Gauge {
	return prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: cfg.Namespace,
		Subsystem: cfg.Subsystem,
		Name:      "active_connections",
		Help:      "Current number of active (open) connections.",
	})
}

func newSimpleCounter(cfg config.PrometheusMetrics, name string, help string) prometheus.Counter {
	return prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: cfg.Namespace,
		Subsystem: cfg.Subsystem,
		Name:      name,
		Help:      help,
	})
}

func newCounter(cfg config.PrometheusMetrics, name string, help string, labels []string) *prometheus.CounterVec {
	opts := prometheus.CounterOpts{
		Namespace: cfg.Namespace,
		Subsystem: cfg.Subsystem,
		Name:      name,
		Help:      help,
	}
	return prometheus.NewCounterVec(opts, labels)
}

func newHistogram(cfg config.PrometheusMetrics, name string, help string, labels []string, buckets []float64) *prometheus.HistogramVec {
	opts := prometheus.HistogramOpts{
		Namespace: cfg.Namespace,
		Subsystem: cfg.Subsystem,
		Name:      name,
		Help:      help,
		Buckets:   buckets,
	}
	return prometheus.NewHistogramVec(opts, labels)
}

func (me *Metrics) RecordConnectionAccept(success bool) {
	if success {
		me.connCounter.Inc()
	} else {
		me.connError.WithLabelValues("accept_error").Inc()
	}
}

func (me *Metrics) RecordConnectionClose(success bool) {
	if success {
		me.connCounter.Dec()
	} else {
		me.connError.WithLabelValues("close_error").Inc()
	}
}

func (me *Metrics) RecordRequest(labels metrics.Labels) {
	me.requests.With(resolveLabels(labels)).Inc()
}

func (me *Metrics) RecordImps(numImps int) {
	me.imps.Add(float64(numImps))
}

func (me *Metrics) RecordRequestTime(labels metrics.Labels, length time.Duration) {
	seconds := float64(length) / float64(time.Second)
	me.reqTimer.With(resolveLabels(labels)).Observe(seconds)
}

func (me *Metrics) RecordAdapterRequest(labels metrics.AdapterLabels) {
	me.adaptRequests.With(resolveAdapterLabels(labels)).Inc()
}

func (me *Metrics) RecordAdapterTime(labels metrics.AdapterLabels, length time.Duration) {
	seconds := float64(length) / float64(time.Second)
	me.adaptTimer.With(resolveAdapterLabels(labels)).Observe(seconds)
}

func (me *Metrics) RecordAdapterBidsReceived(labels metrics.AdapterLabels, bids int64) {
	me.adaptBids.With(resolveAdapterLabels(labels)).Add(float64(bids))
}

func (me *Metrics) RecordAdapterPrice(labels metrics.AdapterLabels, cpm float64) {
	me.adaptPrices.With(resolveAdapterLabels(labels)).Observe(cpm)
}

func (me *Metrics) RecordAdapterPanic(labels metrics.AdapterLabels) {
	me.adaptPanics.With(resolveAdapterLabels(labels)).Inc()
}

func (me *Metrics) RecordCacheRequestTime(success bool, length time.Duration) {
	seconds := float64(length) / float64(time.Second)
	label := "false"
	if success {
		label = "true"
	}
	me.cacheTimer.WithLabelValues(label).Observe(seconds)
}

func resolveLabels(labels metrics.Labels) prometheus.Labels {
	return prometheus.Labels{
		"status": string(labels.RequestStatus),
	}
}

func resolveAdapterLabels(labels metrics.AdapterLabels) prometheus.Labels {
	return prometheus.Labels{
		"adapter": string(labels.Adapter),
	}
}
