package prometheusmetrics

import (
	"regexp"
	"strconv"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"

	"github.com/bidflare/bidflare/config"
	"github.com/bidflare/bidflare/metrics"
)

var gaugeValueRegexp = regexp.MustCompile("gauge:<value:([0-9]+) >")
var counterValueRegexp = regexp.MustCompile("counter:<value:([0-9]+) >")
var histogramValueRegexp = regexp.MustCompile("histogram:<sample_count:([0-9]+)")

func TestConnectionMetrics(t *testing.T) {
	proMetrics := newTestMetricsEngine()

	metricConn := dto.Metric{}
	metricConnErrA := dto.Metric{}
	metricConnErrC := dto.Metric{}
	proMetrics.RecordConnectionAccept(true)
	proMetrics.RecordConnectionAccept(true)
	proMetrics.RecordConnectionClose(true)
	proMetrics.RecordConnectionAccept(true)
	proMetrics.RecordConnectionAccept(false)
	proMetrics.RecordConnectionClose(false)

	proMetrics.connCounter.Write(&metricConn)
	proMetrics.connError.WithLabelValues("accept_error").Write(&metricConnErrA)
	proMetrics.connError.WithLabelValues("close_error").Write(&metricConnErrC)

	assertGaugeValue(t, "connCounter", &metricConn, 2)
	assertCounterValue(t, "connError[accept_error]", &metricConnErrA, 1)
	assertCounterValue(t, "connError[close_error]", &metricConnErrC, 1)
}

func TestRequestMetrics(t *testing.T) {
	proMetrics := newTestMetricsEngine()

	metrics0 := dto.Metric{}
	metrics1 := dto.Metric{}
	metrics2 := dto.Metric{}

	proMetrics.RecordRequest(labels[0])
	proMetrics.RecordRequest(labels[1])
	proMetrics.RecordRequest(labels[0])
	proMetrics.RecordRequest(labels[0])

	proMetrics.requests.With(resolveLabels(labels[0])).Write(&metrics0)
	proMetrics.requests.With(resolveLabels(labels[1])).Write(&metrics1)
	proMetrics.requests.With(resolveLabels(labels[2])).Write(&metrics2)

	assertCounterValue(t, "requests[0]", &metrics0, 3)
	assertCounterValue(t, "requests[1]", &metrics1, 1)
	assertCounterValue(t, "requests[2]", &metrics2, 0)
}

func TestImpMetrics(t *testing.T) {
	proMetrics := newTestMetricsEngine()

	metric := dto.Metric{}

	proMetrics.RecordImps(1)
	proMetrics.RecordImps(5)
	proMetrics.RecordImps(2)

	proMetrics.imps.Write(&metric)

	assertCounterValue(t, "imps_requested", &metric, 8)
}

func TestTimerMetrics(t *testing.T) {
	proMetrics := newTestMetricsEngine()

	metrics0 := dto.Metric{}
	metrics1 := dto.Metric{}

	proMetrics.RecordRequestTime(labels[0], 120*time.Millisecond)
	proMetrics.RecordRequestTime(labels[0], 220*time.Millisecond)
	proMetrics.RecordRequestTime(labels[1], 85*time.Millisecond)

	// HistogramVec.With() now returns an observer interface, with no Write() method. The interface
	// returned is still a reference to a Histogram, so this hack works. It may break in the future
	// if the Prometheus team changes the observer to actually be its own thing.
	proMetrics.reqTimer.With(resolveLabels(labels[0])).(prometheus.Histogram).Write(&metrics0)
	proMetrics.reqTimer.With(resolveLabels(labels[1])).(prometheus.Histogram).Write(&metrics1)

	assertHistogramValue(t, "request_time[0]", &metrics0, 2)
	assertHistogramValue(t, "request_time[1]", &metrics1, 1)
}

func TestAdapterRequestMetrics(t *testing.T) {
	proMetrics := newTestMetricsEngine()

	metrics0 := dto.Metric{}
	metrics1 := dto.Metric{}
	metrics2 := dto.Metric{}

	proMetrics.RecordAdapterRequest(adaptLabels[0])
	proMetrics.RecordAdapterRequest(adaptLabels[1])
	proMetrics.RecordAdapterRequest(adaptLabels[0])
	proMetrics.RecordAdapterRequest(adaptLabels[0])

	proMetrics.adaptRequests.With(resolveAdapterLabels(adaptLabels[0])).Write(&metrics0)
	proMetrics.adaptRequests.With(resolveAdapterLabels(adaptLabels[1])).Write(&metrics1)
	proMetrics.adaptRequests.With(resolveAdapterLabels(adaptLabels[2])).Write(&metrics2)

	assertCounterValue(t, "adapter_requests[0]", &metrics0, 3)
	assertCounterValue(t, "adapter_requests[1]", &metrics1, 1)
	assertCounterValue(t, "adapter_requests[2]", &metrics2, 0)
}

func TestAdapterBidsMetrics(t *testing.T) {
	proMetrics := newTestMetricsEngine()

	metrics0 := dto.Metric{}
	metrics1 := dto.Metric{}

	proMetrics.RecordAdapterBidsReceived(adaptLabels[0], 2)
	proMetrics.RecordAdapterBidsReceived(adaptLabels[1], 1)
	proMetrics.RecordAdapterBidsReceived(adaptLabels[0], 1)

	proMetrics.adaptBids.With(resolveAdapterLabels(adaptLabels[0])).Write(&metrics0)
	proMetrics.adaptBids.With(resolveAdapterLabels(adaptLabels[1])).Write(&metrics1)

	assertCounterValue(t, "adapter_bids_received[0]", &metrics0, 3)
	assertCounterValue(t, "adapter_bids_received[1]", &metrics1, 1)
}

func TestAdapterPriceMetrics(t *testing.T) {
	proMetrics := newTestMetricsEngine()

	metrics0 := dto.Metric{}
	metrics1 := dto.Metric{}

	proMetrics.RecordAdapterPrice(adaptLabels[0], 0.12)
	proMetrics.RecordAdapterPrice(adaptLabels[1], 2.35)
	proMetrics.RecordAdapterPrice(adaptLabels[0], 17.65)

	// See the Histogram cast note in TestTimerMetrics.
	proMetrics.adaptPrices.With(resolveAdapterLabels(adaptLabels[0])).(prometheus.Histogram).Write(&metrics0)
	proMetrics.adaptPrices.With(resolveAdapterLabels(adaptLabels[1])).(prometheus.Histogram).Write(&metrics1)

	assertHistogramValue(t, "adapter_prices[0]", &metrics0, 2)
	assertHistogramValue(t, "adapter_prices[1]", &metrics1, 1)
}

func TestAdapterTimeMetrics(t *testing.T) {
	proMetrics := newTestMetricsEngine()

	metrics0 := dto.Metric{}
	metrics1 := dto.Metric{}

	proMetrics.RecordAdapterTime(adaptLabels[0], 85*time.Millisecond)
	proMetrics.RecordAdapterTime(adaptLabels[1], 235*time.Millisecond)
	proMetrics.RecordAdapterTime(adaptLabels[0], 177*time.Millisecond)

	// See the Histogram cast note in TestTimerMetrics.
	proMetrics.adaptTimer.With(resolveAdapterLabels(adaptLabels[0])).(prometheus.Histogram).Write(&metrics0)
	proMetrics.adaptTimer.With(resolveAdapterLabels(adaptLabels[1])).(prometheus.Histogram).Write(&metrics1)

	assertHistogramValue(t, "adapter_time[0]", &metrics0, 2)
	assertHistogramValue(t, "adapter_time[1]", &metrics1, 1)
}

func TestAdapterPanicMetrics(t *testing.T) {
	proMetrics := newTestMetricsEngine()

	metric := dto.Metric{}

	proMetrics.RecordAdapterPanic(adaptLabels[0])
	proMetrics.RecordAdapterPanic(adaptLabels[0])

	proMetrics.adaptPanics.With(resolveAdapterLabels(adaptLabels[0])).Write(&metric)

	assertCounterValue(t, "adapter_panics[0]", &metric, 2)
}

func TestCacheTimerMetrics(t *testing.T) {
	proMetrics := newTestMetricsEngine()

	metricsOk := dto.Metric{}
	metricsFail := dto.Metric{}

	proMetrics.RecordCacheRequestTime(true, 40*time.Millisecond)
	proMetrics.RecordCacheRequestTime(true, 55*time.Millisecond)
	proMetrics.RecordCacheRequestTime(false, 250*time.Millisecond)

	// See the Histogram cast note in TestTimerMetrics.
	proMetrics.cacheTimer.WithLabelValues("true").(prometheus.Histogram).Write(&metricsOk)
	proMetrics.cacheTimer.WithLabelValues("false").(prometheus.Histogram).Write(&metricsFail)

	assertHistogramValue(t, "cache_request_time[true]", &metricsOk, 2)
	assertHistogramValue(t, "cache_request_time[false]", &metricsFail, 1)
}

func TestMetricsExist(t *testing.T) {
	proMetrics := newTestMetricsEngine()

	if err := proMetrics.Registry.Register(prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "bidflare",
		Name:      "active_connections",
		Help:      "Current number of active (open) connections.",
	})); err == nil {
		t.Error("connCounter not registered")
	}
}

func newTestMetricsEngine() *Metrics {
	return NewMetrics(config.PrometheusMetrics{
		Namespace: "bidflare",
		Subsystem: "",
	})
}

var labels = []metrics.Labels{
	{RequestStatus: metrics.RequestStatusOK},
	{RequestStatus: metrics.RequestStatusBadInput},
	{RequestStatus: metrics.RequestStatusErr},
}

var adaptLabels = []metrics.AdapterLabels{
	{Adapter: "alpha"},
	{Adapter: "beta"},
	{Adapter: "gamma"},
}

func assertGaugeValue(t *testing.T, name string, m *dto.Metric, expected int) {
	v, err := strconv.Atoi(gaugeValueRegexp.FindStringSubmatch(m.String())[1])
	if err != nil {
		t.Errorf("Could not extract the value for metric %s. (output was %s, error was %v)", name, m.String(), err)
	}
	if v != expected {
		t.Errorf("Bad value for metric %s: expected=\"%d\", found=\"%d\"", name, expected, v)
	}
}

func assertCounterValue(t *testing.T, name string, m *dto.Metric, expected int) {
	v, err := strconv.Atoi(counterValueRegexp.FindStringSubmatch(m.String())[1])
	if err != nil {
		t.Errorf("Could not extract the value for metric %s. (output was %s, error was %v)", name, m.String(), err)
	}
	if v != expected {
		t.Errorf("Bad value for metric %s: expected=\"%d\", found=\"%d\"", name, expected, v)
	}
}

func assertHistogramValue(t *testing.T, name string, m *dto.Metric, expected int) {
	v, err := strconv.Atoi(histogramValueRegexp.FindStringSubmatch(m.String())[1])
	if err != nil {
		t.Errorf("Could not extract the value for metric %s. (output was %s, error was %v)", name, m.String(), err)
	}
	if v != expected {
		t.Errorf("Bad value for metric %s: expected=\"%d\", found=\"%d\"", name, expected, v)
	}
}
