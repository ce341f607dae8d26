package config

import (
	"time"

	"github.com/golang/glog"
	gometrics "github.com/rcrowley/go-metrics"

	"github.com/bidflare/bidflare/auction"
	mainConfig "github.com/bidflare/bidflare/config"
	"github.com/bidflare/bidflare/metrics"
	prometheusmetrics "github.com/bidflare/bidflare/metrics/prometheus"
)

// NewMetricsEngine reads the configuration and returns the appropriate metrics engine
// for this instance.
func NewMetricsEngine(cfg *mainConfig.Configuration, adapterList []auction.BidderName) *DetailedMetricsEngine {
	// Create a list of metrics engines to use.
	// Capacity of 2, as unlikely to have more than 2 metrics backends, and in the case
	// of 1 we won't use the list so it will be garbage collected.
	engineList := make(MultiMetricsEngine, 0, 2)
	returnEngine := DetailedMetricsEngine{}

	if cfg.Metrics.Influxdb.Host != "" {
		// Currently use go-metrics as the metrics piece for influx
		returnEngine.GoMetrics = metrics.NewMetrics(gometrics.NewPrefixedRegistry("bidflare."), adapterList)
		engineList = append(engineList, returnEngine.GoMetrics)
		go returnEngine.GoMetrics.Export(cfg.Metrics.Influxdb)
		glog.Infof("shipping metrics to influxdb at %s", cfg.Metrics.Influxdb.Host)
	}
	if cfg.Metrics.Prometheus.Enabled {
		returnEngine.PrometheusMetrics = prometheusmetrics.NewMetrics(cfg.Metrics.Prometheus)
		engineList = append(engineList, returnEngine.PrometheusMetrics)
	}

	// Now return the proper metrics engine
	if len(engineList) > 1 {
		returnEngine.MetricsEngine = &engineList
	} else if len(engineList) == 1 {
		returnEngine.MetricsEngine = engineList[0]
	} else {
		returnEngine.MetricsEngine = &DummyMetricsEngine{}
	}

	return &returnEngine
}

// DetailedMetricsEngine is a MetricsEngine that preserves links to underlying metrics engines.
type DetailedMetricsEngine struct {
	metrics.MetricsEngine
	GoMetrics         *metrics.Metrics
	PrometheusMetrics *prometheusmetrics.Metrics
}

// MultiMetricsEngine logs metrics to multiple metrics databases.
type MultiMetricsEngine []metrics.MetricsEngine

func (me *MultiMetricsEngine) RecordConnectionAccept(success bool) {
	for _, thisME := range *me {
		thisME.RecordConnectionAccept(success)
	}
}

func (me *MultiMetricsEngine) RecordConnectionClose(success bool) {
	for _, thisME := range *me {
		thisME.RecordConnectionClose(success)
	}
}

func (me *MultiMetricsEngine) RecordRequest(labels metrics.Labels) {
	for _, thisME := range *me {
		thisME.RecordRequest(labels)
	}
}

func (me *MultiMetricsEngine) RecordImps(numImps int) {
	for _, thisME := range *me {
		thisME.RecordImps(numImps)
	}
}

func (me *MultiMetricsEngine) RecordRequestTime(labels metrics.Labels, length time.Duration) {
	for _, thisME := range *me {
		thisME.RecordRequestTime(labels, length)
	}
}

func (me *MultiMetricsEngine) RecordAdapterRequest(labels metrics.AdapterLabels) {
	for _, thisME := range *me {
		thisME.RecordAdapterRequest(labels)
	}
}

func (me *MultiMetricsEngine) RecordAdapterTime(labels metrics.AdapterLabels, length time.Duration) {
	for _, thisME := range *me {
		thisME.RecordAdapterTime(labels, length)
	}
}

func (me *MultiMetricsEngine) RecordAdapterBidsReceived(labels metrics.AdapterLabels, bids int64) {
	for _, thisME := range *me {
		thisME.RecordAdapterBidsReceived(labels, bids)
	}
}

func (me *MultiMetricsEngine) RecordAdapterPrice(labels metrics.AdapterLabels, cpm float64) {
	for _, thisME := range *me {
		thisME.RecordAdapterPrice(labels, cpm)
	}
}

func (me *MultiMetricsEngine) RecordAdapterPanic(labels metrics.AdapterLabels) {
	for _, thisME := range *me {
		thisME.RecordAdapterPanic(labels)
	}
}

func (me *MultiMetricsEngine) RecordCacheRequestTime(success bool, length time.Duration) {
	for _, thisME := range *me {
		thisME.RecordCacheRequestTime(success, length)
	}
}

// DummyMetricsEngine is a Noop metrics engine in case no metrics are configured.
// (may also be useful for tests)
type DummyMetricsEngine struct{}

func (me *DummyMetricsEngine) RecordConnectionAccept(success bool) {}

func (me *DummyMetricsEngine) RecordConnectionClose(success bool) {}

func (me *DummyMetricsEngine) RecordRequest(labels metrics.Labels) {}

func (me *DummyMetricsEngine) RecordImps(numImps int) {}

func (me *DummyMetricsEngine) RecordRequestTime(labels metrics.Labels, length time.Duration) {}

func (me *DummyMetricsEngine) RecordAdapterRequest(labels metrics.AdapterLabels) {}

func (me *DummyMetricsEngine) RecordAdapterTime(labels metrics.AdapterLabels, length time.Duration) {}

func (me *DummyMetricsEngine) RecordAdapterBidsReceived(labels metrics.AdapterLabels, bids int64) {}

func (me *DummyMetricsEngine) RecordAdapterPrice(labels metrics.AdapterLabels, cpm float64) {}

func (me *DummyMetricsEngine) RecordAdapterPanic(labels metrics.AdapterLabels) {}

func (me *DummyMetricsEngine) RecordCacheRequestTime(success bool, length time.Duration) {}
