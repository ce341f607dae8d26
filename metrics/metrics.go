package metrics

import (
	"time"

	"github.com/bidflare/bidflare/auction"
)

// Labels defines the labels that can be attached to the request metrics.
type Labels struct {
	RequestStatus RequestStatus
}

// AdapterLabels defines the labels that can be attached to the adapter metrics.
type AdapterLabels struct {
	Adapter       auction.BidderName
	AdapterBids   AdapterBid
	AdapterErrors map[AdapterError]struct{}
}

// RequestStatus : the request return status
type RequestStatus string

// AdapterBid : whether or not the adapter returned bids
type AdapterBid string

// AdapterError : errors which may have occurred during the adapter's execution
type AdapterError string

const (
	RequestStatusOK       RequestStatus = "ok"
	RequestStatusBadInput RequestStatus = "badinput"
	RequestStatusErr      RequestStatus = "err"
)

func RequestStatuses() []RequestStatus {
	return []RequestStatus{
		RequestStatusOK,
		RequestStatusBadInput,
		RequestStatusErr,
	}
}

const (
	AdapterBidPresent AdapterBid = "bid"
	AdapterBidNone    AdapterBid = "nobid"
)

const (
	AdapterErrorBadInput          AdapterError = "badinput"
	AdapterErrorBadServerResponse AdapterError = "badserverresponse"
	AdapterErrorTimeout           AdapterError = "timeout"
	AdapterErrorFailedToRequest   AdapterError = "failedtorequestbids"
	AdapterErrorUnknown           AdapterError = "unknown_error"
)

func AdapterErrors() []AdapterError {
	return []AdapterError{
		AdapterErrorBadInput,
		AdapterErrorBadServerResponse,
		AdapterErrorTimeout,
		AdapterErrorFailedToRequest,
		AdapterErrorUnknown,
	}
}

// MetricsEngine is a generic interface to record auction metrics into the desired backend.
// The request metrics fire once per incoming auction; the adapter metrics fire once per
// outgoing call to a bidder, so will record several hits per incoming request. The two
// groups are consistent within themselves, but comparing numbers between groups is
// generally not useful.
type MetricsEngine interface {
	RecordConnectionAccept(success bool)
	RecordConnectionClose(success bool)
	RecordRequest(labels Labels)
	RecordImps(numImps int)
	// RecordRequestTime only records successful requests. The calling code is
	// responsible for determining the call duration.
	RecordRequestTime(labels Labels, length time.Duration)
	RecordAdapterRequest(labels AdapterLabels)
	RecordAdapterTime(labels AdapterLabels, length time.Duration)
	RecordAdapterBidsReceived(labels AdapterLabels, bids int64)
	RecordAdapterPrice(labels AdapterLabels, cpm float64)
	RecordAdapterPanic(labels AdapterLabels)
	RecordCacheRequestTime(success bool, length time.Duration)
}
