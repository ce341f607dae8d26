package metrics

import (
	"fmt"
	"time"

	"github.com/golang/glog"
	gometrics "github.com/rcrowley/go-metrics"
	influxdb "github.com/vrischmann/go-metrics-influxdb"

	"github.com/bidflare/bidflare/auction"
	"github.com/bidflare/bidflare/config"
)

// Metrics records into a go-metrics registry, which the influxdb exporter ships.
type Metrics struct {
	MetricsRegistry gometrics.Registry

	ConnectionCounter          gometrics.Counter
	ConnectionAcceptErrorMeter gometrics.Meter
	ConnectionCloseErrorMeter  gometrics.Meter

	ImpMeter        gometrics.Meter
	RequestTimer    gometrics.Timer
	RequestStatuses map[RequestStatus]gometrics.Meter

	CacheRequestSuccessTimer gometrics.Timer
	CacheRequestErrorTimer   gometrics.Timer

	AdapterMetrics map[auction.BidderName]*AdapterMetrics

	exchanges []auction.BidderName
}

// AdapterMetrics houses the metrics for a particular adapter.
type AdapterMetrics struct {
	NoBidMeter        gometrics.Meter
	ErrorMeters       map[AdapterError]gometrics.Meter
	PanicMeter        gometrics.Meter
	RequestMeter      gometrics.Meter
	RequestTimer      gometrics.Timer
	PriceHistogram    gometrics.Histogram
	BidsReceivedMeter gometrics.Meter
}

// NewBlankMetrics creates a Metrics object where every metric is a no-op. Useful for
// testing routines which shouldn't write metrics anywhere.
func NewBlankMetrics(registry gometrics.Registry, exchanges []auction.BidderName) *Metrics {
	blankMeter := &gometrics.NilMeter{}
	newMetrics := &Metrics{
		MetricsRegistry:            registry,
		ConnectionCounter:          gometrics.NilCounter{},
		ConnectionAcceptErrorMeter: blankMeter,
		ConnectionCloseErrorMeter:  blankMeter,
		ImpMeter:                   blankMeter,
		RequestTimer:               &gometrics.NilTimer{},
		RequestStatuses:            make(map[RequestStatus]gometrics.Meter),
		CacheRequestSuccessTimer:   &gometrics.NilTimer{},
		CacheRequestErrorTimer:     &gometrics.NilTimer{},
		AdapterMetrics:             make(map[auction.BidderName]*AdapterMetrics, len(exchanges)),
		exchanges:                  exchanges,
	}
	for _, status := range RequestStatuses() {
		newMetrics.RequestStatuses[status] = blankMeter
	}
	for _, a := range exchanges {
		newMetrics.AdapterMetrics[a] = makeBlankAdapterMetrics()
	}
	return newMetrics
}

// NewMetrics creates a Metrics object with all metrics registered.
func NewMetrics(registry gometrics.Registry, exchanges []auction.BidderName) *Metrics {
	newMetrics := NewBlankMetrics(registry, exchanges)
	newMetrics.ConnectionCounter = gometrics.GetOrRegisterCounter("active_connections", registry)
	newMetrics.ConnectionAcceptErrorMeter = gometrics.GetOrRegisterMeter("connection_accept_errors", registry)
	newMetrics.ConnectionCloseErrorMeter = gometrics.GetOrRegisterMeter("connection_close_errors", registry)
	newMetrics.ImpMeter = gometrics.GetOrRegisterMeter("imps_requested", registry)
	newMetrics.RequestTimer = gometrics.GetOrRegisterTimer("request_time", registry)
	newMetrics.CacheRequestSuccessTimer = gometrics.GetOrRegisterTimer("cache_request_time.ok", registry)
	newMetrics.CacheRequestErrorTimer = gometrics.GetOrRegisterTimer("cache_request_time.err", registry)
	for status := range newMetrics.RequestStatuses {
		newMetrics.RequestStatuses[status] = gometrics.GetOrRegisterMeter("requests."+string(status), registry)
	}
	for _, a := range exchanges {
		registerAdapterMetrics(registry, string(a), newMetrics.AdapterMetrics[a])
	}
	return newMetrics
}

func makeBlankAdapterMetrics() *AdapterMetrics {
	blankMeter := &gometrics.NilMeter{}
	newAdapter := &AdapterMetrics{
		NoBidMeter:        blankMeter,
		ErrorMeters:       make(map[AdapterError]gometrics.Meter),
		PanicMeter:        blankMeter,
		RequestMeter:      blankMeter,
		RequestTimer:      &gometrics.NilTimer{},
		PriceHistogram:    &gometrics.NilHistogram{},
		BidsReceivedMeter: blankMeter,
	}
	for _, err := range AdapterErrors() {
		newAdapter.ErrorMeters[err] = blankMeter
	}
	return newAdapter
}

func registerAdapterMetrics(registry gometrics.Registry, exchange string, am *AdapterMetrics) {
	am.NoBidMeter = gometrics.GetOrRegisterMeter(fmt.Sprintf("adapter.%s.no_bid_requests", exchange), registry)
	am.PanicMeter = gometrics.GetOrRegisterMeter(fmt.Sprintf("adapter.%s.panics", exchange), registry)
	am.RequestMeter = gometrics.GetOrRegisterMeter(fmt.Sprintf("adapter.%s.requests", exchange), registry)
	am.RequestTimer = gometrics.GetOrRegisterTimer(fmt.Sprintf("adapter.%s.request_time", exchange), registry)
	am.PriceHistogram = gometrics.GetOrRegisterHistogram(fmt.Sprintf("adapter.%s.prices", exchange), registry, gometrics.NewExpDecaySample(1028, 0.015))
	am.BidsReceivedMeter = gometrics.GetOrRegisterMeter(fmt.Sprintf("adapter.%s.bids_received", exchange), registry)
	for _, err := range AdapterErrors() {
		am.ErrorMeters[err] = gometrics.GetOrRegisterMeter(fmt.Sprintf("adapter.%s.requests.%s", exchange, err), registry)
	}
}

// Export ships the registry to influxdb. This blocks indefinitely, so it should be
// run inside a goroutine.
func (me *Metrics) Export(cfg config.InfluxMetrics) {
	influxdb.InfluxDB(
		me.MetricsRegistry,
		10*time.Second,
		cfg.Host,
		cfg.Database,
		cfg.Username,
		cfg.Password,
	)
}

func (me *Metrics) RecordConnectionAccept(success bool) {
	if success {
		me.ConnectionCounter.Inc(1)
	} else {
		me.ConnectionAcceptErrorMeter.Mark(1)
	}
}

func (me *Metrics) RecordConnectionClose(success bool) {
	if success {
		me.ConnectionCounter.Dec(1)
	} else {
		me.ConnectionCloseErrorMeter.Mark(1)
	}
}

func (me *Metrics) RecordRequest(labels Labels) {
	if meter, ok := me.RequestStatuses[labels.RequestStatus]; ok {
		meter.Mark(1)
	}
}

func (me *Metrics) RecordImps(numImps int) {
	me.ImpMeter.Mark(int64(numImps))
}

func (me *Metrics) RecordRequestTime(labels Labels, length time.Duration) {
	if labels.RequestStatus == RequestStatusOK {
		me.RequestTimer.Update(length)
	}
}

func (me *Metrics) RecordAdapterRequest(labels AdapterLabels) {
	am, ok := me.AdapterMetrics[labels.Adapter]
	if !ok {
		glog.Errorf("Trying to run adapter metrics on %s: adapter metrics not found", string(labels.Adapter))
		return
	}
	am.RequestMeter.Mark(1)
	if labels.AdapterBids == AdapterBidNone {
		am.NoBidMeter.Mark(1)
	}
	for errType := range labels.AdapterErrors {
		if meter, ok := am.ErrorMeters[errType]; ok {
			meter.Mark(1)
		}
	}
}

func (me *Metrics) RecordAdapterTime(labels AdapterLabels, length time.Duration) {
	if am, ok := me.AdapterMetrics[labels.Adapter]; ok {
		am.RequestTimer.Update(length)
	}
}

func (me *Metrics) RecordAdapterBidsReceived(labels AdapterLabels, bids int64) {
	if am, ok := me.AdapterMetrics[labels.Adapter]; ok {
		am.BidsReceivedMeter.Mark(bids)
	}
}

func (me *Metrics) RecordAdapterPrice(labels AdapterLabels, cpm float64) {
	if am, ok := me.AdapterMetrics[labels.Adapter]; ok {
		am.PriceHistogram.Update(int64(cpm))
	}
}

func (me *Metrics) RecordAdapterPanic(labels AdapterLabels) {
	if am, ok := me.AdapterMetrics[labels.Adapter]; ok {
		am.PanicMeter.Mark(1)
	}
}

func (me *Metrics) RecordCacheRequestTime(success bool, length time.Duration) {
	if success {
		me.CacheRequestSuccessTimer.Update(length)
	} else {
		me.CacheRequestErrorTimer.Update(length)
	}
}
