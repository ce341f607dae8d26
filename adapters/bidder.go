package adapters

import (
	"net/http"

	"github.com/bidflare/bidflare/auction"
)

// Bidder is the interface which all bidder adapters implement.
//
// Its only responsibility is to translate an auction request into HTTP request(s)
// for the partner endpoint, and translate the HTTP response(s) back into bids.
// Adapters never make network calls themselves. The exchange owns the transport,
// the deadline, and the error classification.
type Bidder interface {
	// MakeRequests makes the HTTP requests which should be made to fetch bids for
	// the given impressions. Each Impression carries this bidder's params in
	// Imp.Params.
	//
	// The errors should explain why this bidder's bids will be "subpar" in some way.
	// For example: the request contained ad types which this bidder doesn't support.
	MakeRequests(request *auction.AuctionRequest, imps []auction.Impression) ([]*RequestData, []error)

	// MakeBids unpacks the server's response into Bids.
	//
	// The bids can be nil (for no bids), but should not contain nil elements.
	//
	// The errors should explain why this bidder's bids will be "subpar" in some way.
	// For example: the server response didn't have the expected format.
	MakeBids(request *auction.AuctionRequest, response *ResponseData) ([]*TypedBid, []error)
}

// TypedBid packages a bid with the media type the adapter resolved for it.
//
// The exchange can build everything else in the response uniformly across all
// Bidders, so there's no reason individual adapters should send more than this.
type TypedBid struct {
	Bid     *auction.Bid
	BidType auction.MediaType
}

// RequestData packages together the fields needed to make an http.Request.
//
// This exists so that core code can implement the "debug" API uniformly across
// all adapters.
type RequestData struct {
	Method  string
	Uri     string
	Body    []byte
	Headers http.Header
}

// ResponseData packages together information from the server's http.Response.
type ResponseData struct {
	StatusCode int
	Body       []byte
	Headers    http.Header
}
