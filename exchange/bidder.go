package exchange

import (
	"bytes"
	"context"
	"io/ioutil"
	"net/http"

	"golang.org/x/net/context/ctxhttp"

	"github.com/bidflare/bidflare/adapters"
	"github.com/bidflare/bidflare/auction"
	"github.com/bidflare/bidflare/errortypes"
)

// AdaptedBidder defines the contract needed to participate in an auction.
//
// This interface exists to help us mock bidders in tests, and to wrap the
// concrete adapters.Bidder implementations with the transport, deadline, and
// error classification logic which is uniform across all bidders.
type AdaptedBidder interface {
	// requestBid fetches bids for the given impressions.
	//
	// An AdaptedBidder *may* return two non-nil values here. Errors should describe
	// situations which make the bid (or no-bid) "less than ideal." Common examples
	// include:
	//
	// 1. HTTP connection issues.
	// 2. Imps with media types which this bidder doesn't support.
	// 3. The context timeout expired before all expected bids were returned.
	// 4. The server sent back an unexpected response, so some bids were ignored.
	requestBid(ctx context.Context, request *auction.AuctionRequest, imps []auction.Impression, name auction.BidderName) (*bidderSeatBid, []error)
}

// bidderSeatBid is the set of bids and diagnostics one bidder produced for one auction.
type bidderSeatBid struct {
	bids []*adapters.TypedBid
	// httpCalls is the list of debugging info. It should only be populated if the
	// request asked for debug output, since it adds significant size to the response.
	httpCalls []*auction.HTTPCall
}

// adaptBidder wraps an adapters.Bidder so it can run in the auction.
//
// The caller can expect the returned errors to be already classified: transport
// failures come back as errortypes.FailedToRequestBids, expired deadlines as
// errortypes.Timeout.
func adaptBidder(bidder adapters.Bidder, client *http.Client) AdaptedBidder {
	return &bidderAdapter{
		Bidder: bidder,
		Client: client,
	}
}

type bidderAdapter struct {
	Bidder adapters.Bidder
	Client *http.Client
}

func (bidder *bidderAdapter) requestBid(ctx context.Context, request *auction.AuctionRequest, imps []auction.Impression, name auction.BidderName) (*bidderSeatBid, []error) {
	reqData, errs := bidder.Bidder.MakeRequests(request, imps)

	if len(reqData) == 0 {
		return nil, errs
	}

	// Make any HTTP requests in parallel.
	// If the bidder only needs to make one, save some cycles by just using the current one.
	responseChannel := make(chan *httpCallInfo, len(reqData))
	if len(reqData) == 1 {
		responseChannel <- bidder.doRequest(ctx, reqData[0])
	} else {
		for _, oneReqData := range reqData {
			go func(data *adapters.RequestData) {
				responseChannel <- bidder.doRequest(ctx, data)
			}(oneReqData) // Method arg avoids a race condition on oneReqData
		}
	}

	seatBid := &bidderSeatBid{
		bids:      make([]*adapters.TypedBid, 0, len(reqData)),
		httpCalls: make([]*auction.HTTPCall, 0, len(reqData)),
	}

	// If the bidder made multiple requests, we still want it to enter as many bids as
	// possible... even if the timeout occurs sometime halfway through.
	for i := 0; i < len(reqData); i++ {
		httpInfo := <-responseChannel
		if request.Debug {
			seatBid.httpCalls = append(seatBid.httpCalls, makeDebugCall(httpInfo))
		}

		if httpInfo.err == nil {
			bids, moreErrs := bidder.Bidder.MakeBids(request, httpInfo.response)
			errs = append(errs, moreErrs...)
			for _, bid := range bids {
				bid.Bid.Bidder = name
				if bid.Bid.MediaType == "" {
					bid.Bid.MediaType = bid.BidType
				}
				seatBid.bids = append(seatBid.bids, bid)
			}
		} else {
			errs = append(errs, httpInfo.err)
		}
	}

	return seatBid, errs
}

// makeDebugCall transforms information about one HTTP call into the response contract.
func makeDebugCall(httpInfo *httpCallInfo) *auction.HTTPCall {
	if httpInfo.err == nil {
		return &auction.HTTPCall{
			URI:          httpInfo.request.Uri,
			RequestBody:  string(httpInfo.request.Body),
			ResponseBody: string(httpInfo.response.Body),
			Status:       httpInfo.response.StatusCode,
		}
	} else if httpInfo.request == nil {
		return &auction.HTTPCall{}
	} else {
		return &auction.HTTPCall{
			URI:         httpInfo.request.Uri,
			RequestBody: string(httpInfo.request.Body),
		}
	}
}

// doRequest makes a request, handles the response, and returns the data needed by
// the adapters.Bidder interface.
func (bidder *bidderAdapter) doRequest(ctx context.Context, req *adapters.RequestData) *httpCallInfo {
	httpReq, err := http.NewRequest(req.Method, req.Uri, bytes.NewBuffer(req.Body))
	if err != nil {
		return &httpCallInfo{
			request: req,
			err:     err,
		}
	}
	httpReq.Header = req.Headers

	httpResp, err := ctxhttp.Do(ctx, bidder.Client, httpReq)
	if err != nil {
		if err == context.DeadlineExceeded {
			err = &errortypes.Timeout{Message: err.Error()}
		} else {
			err = &errortypes.FailedToRequestBids{Message: err.Error()}
		}
		return &httpCallInfo{
			request: req,
			err:     err,
		}
	}

	defer httpResp.Body.Close()
	respBody, err := ioutil.ReadAll(httpResp.Body)
	if err != nil {
		return &httpCallInfo{
			request: req,
			err:     &errortypes.FailedToRequestBids{Message: err.Error()},
		}
	}

	return &httpCallInfo{
		request: req,
		response: &adapters.ResponseData{
			StatusCode: httpResp.StatusCode,
			Body:       respBody,
			Headers:    httpResp.Header,
		},
	}
}

type httpCallInfo struct {
	request  *adapters.RequestData
	response *adapters.ResponseData
	err      error
}
