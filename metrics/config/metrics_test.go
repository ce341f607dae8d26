package config

import (
	"testing"
	"time"

	gometrics "github.com/rcrowley/go-metrics"
	"github.com/stretchr/testify/assert"

	"github.com/bidflare/bidflare/auction"
	mainConfig "github.com/bidflare/bidflare/config"
	"github.com/bidflare/bidflare/metrics"
)

func TestDummyMetricsEngine(t *testing.T) {
	cfg := mainConfig.Configuration{}
	testEngine := NewMetricsEngine(&cfg, auction.CoreBidderNames())
	_, ok := testEngine.MetricsEngine.(*DummyMetricsEngine)
	assert.True(t, ok, "expected a DummyMetricsEngine")
}

func TestGoMetricsEngine(t *testing.T) {
	cfg := mainConfig.Configuration{}
	cfg.Metrics.Influxdb.Host = "localhost"
	testEngine := NewMetricsEngine(&cfg, auction.CoreBidderNames())
	_, ok := testEngine.MetricsEngine.(*metrics.Metrics)
	assert.True(t, ok, "expected the go-metrics engine")
}

func TestMultiMetricsEngine(t *testing.T) {
	adapterList := auction.CoreBidderNames()
	goEngine := metrics.NewMetrics(gometrics.NewPrefixedRegistry("bidflare."), adapterList)
	engineList := make(MultiMetricsEngine, 2)
	engineList[0] = goEngine
	engineList[1] = &DummyMetricsEngine{}
	var metricsEngine metrics.MetricsEngine = &engineList

	labels := metrics.Labels{RequestStatus: metrics.RequestStatusOK}
	genericLabels := metrics.AdapterLabels{
		Adapter:     auction.BidderGeneric,
		AdapterBids: metrics.AdapterBidPresent,
	}
	for i := 0; i < 5; i++ {
		metricsEngine.RecordRequest(labels)
		metricsEngine.RecordImps(2)
		metricsEngine.RecordRequestTime(labels, time.Millisecond*20)
		metricsEngine.RecordAdapterRequest(genericLabels)
		metricsEngine.RecordAdapterTime(genericLabels, time.Millisecond*20)
		metricsEngine.RecordAdapterBidsReceived(genericLabels, 1)
		metricsEngine.RecordAdapterPrice(genericLabels, 1.25)
	}

	assert.Equal(t, int64(5), goEngine.RequestStatuses[metrics.RequestStatusOK].Count())
	assert.Equal(t, int64(10), goEngine.ImpMeter.Count())
	assert.Equal(t, int64(5), goEngine.RequestTimer.Count())
	assert.Equal(t, int64(5), goEngine.AdapterMetrics[auction.BidderGeneric].RequestMeter.Count())
	assert.Equal(t, int64(5), goEngine.AdapterMetrics[auction.BidderGeneric].BidsReceivedMeter.Count())
}
