package metrics

import (
	"testing"
	"time"

	gometrics "github.com/rcrowley/go-metrics"
	"github.com/stretchr/testify/assert"

	"github.com/bidflare/bidflare/auction"
)

func TestNewMetrics(t *testing.T) {
	registry := gometrics.NewRegistry()
	m := NewMetrics(registry, []auction.BidderName{auction.BidderGeneric})

	ensureContains(t, registry, "imps_requested", m.ImpMeter)
	ensureContains(t, registry, "request_time", m.RequestTimer)
	ensureContains(t, registry, "active_connections", m.ConnectionCounter)
	ensureContains(t, registry, "requests.ok", m.RequestStatuses[RequestStatusOK])
	ensureContains(t, registry, "requests.badinput", m.RequestStatuses[RequestStatusBadInput])

	am := m.AdapterMetrics[auction.BidderGeneric]
	ensureContains(t, registry, "adapter.generic.requests", am.RequestMeter)
	ensureContains(t, registry, "adapter.generic.no_bid_requests", am.NoBidMeter)
	ensureContains(t, registry, "adapter.generic.panics", am.PanicMeter)
	ensureContains(t, registry, "adapter.generic.requests.timeout", am.ErrorMeters[AdapterErrorTimeout])
}

func ensureContains(t *testing.T, registry gometrics.Registry, name string, metric interface{}) {
	t.Helper()
	if inRegistry := registry.Get(name); inRegistry != metric {
		t.Errorf("registry entry %s is not the expected metric", name)
	}
}

func TestRecordRequest(t *testing.T) {
	m := NewMetrics(gometrics.NewRegistry(), []auction.BidderName{auction.BidderGeneric})
	m.RecordRequest(Labels{RequestStatus: RequestStatusOK})
	m.RecordRequest(Labels{RequestStatus: RequestStatusBadInput})
	m.RecordImps(3)

	assert.Equal(t, int64(1), m.RequestStatuses[RequestStatusOK].Count())
	assert.Equal(t, int64(1), m.RequestStatuses[RequestStatusBadInput].Count())
	assert.Equal(t, int64(3), m.ImpMeter.Count())
}

func TestRecordRequestTimeOnlySuccess(t *testing.T) {
	m := NewMetrics(gometrics.NewRegistry(), nil)
	m.RecordRequestTime(Labels{RequestStatus: RequestStatusOK}, 100*time.Millisecond)
	m.RecordRequestTime(Labels{RequestStatus: RequestStatusErr}, 100*time.Millisecond)

	assert.Equal(t, int64(1), m.RequestTimer.Count())
}

func TestRecordAdapterMetrics(t *testing.T) {
	m := NewMetrics(gometrics.NewRegistry(), []auction.BidderName{auction.BidderGeneric})
	labels := AdapterLabels{
		Adapter:     auction.BidderGeneric,
		AdapterBids: AdapterBidPresent,
		AdapterErrors: map[AdapterError]struct{}{
			AdapterErrorTimeout: {},
		},
	}
	m.RecordAdapterRequest(labels)
	m.RecordAdapterBidsReceived(labels, 2)
	m.RecordAdapterPrice(labels, 2.5)
	m.RecordAdapterTime(labels, 50*time.Millisecond)
	m.RecordAdapterPanic(labels)

	am := m.AdapterMetrics[auction.BidderGeneric]
	assert.Equal(t, int64(1), am.RequestMeter.Count())
	assert.Equal(t, int64(0), am.NoBidMeter.Count())
	assert.Equal(t, int64(1), am.ErrorMeters[AdapterErrorTimeout].Count())
	assert.Equal(t, int64(2), am.BidsReceivedMeter.Count())
	assert.Equal(t, int64(1), am.RequestTimer.Count())
	assert.Equal(t, int64(1), am.PanicMeter.Count())
}

func TestRecordAdapterMetricsUnknownBidder(t *testing.T) {
	m := NewMetrics(gometrics.NewRegistry(), []auction.BidderName{auction.BidderGeneric})
	// Must not panic.
	m.RecordAdapterRequest(AdapterLabels{Adapter: "nonsense"})
	m.RecordAdapterTime(AdapterLabels{Adapter: "nonsense"}, time.Second)
}

func TestRecordCacheRequestTime(t *testing.T) {
	m := NewMetrics(gometrics.NewRegistry(), nil)
	m.RecordCacheRequestTime(true, 10*time.Millisecond)
	m.RecordCacheRequestTime(false, 20*time.Millisecond)

	assert.Equal(t, int64(1), m.CacheRequestSuccessTimer.Count())
	assert.Equal(t, int64(1), m.CacheRequestErrorTimer.Count())
}
