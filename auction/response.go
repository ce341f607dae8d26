package auction

// ErrorMessage is the classified form of a per-bidder error in the response.
// Production mode exposes only the code and message; debug mode additionally
// carries the wire calls in BidderStatus.HTTPCalls.
type ErrorMessage struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// HTTPCall echoes one wire-level call for operator diagnosis. Populated only
// when the request sets the debug flag.
type HTTPCall struct {
	URI          string `json:"uri"`
	RequestBody  string `json:"requestbody"`
	ResponseBody string `json:"responsebody,omitempty"`
	Status       int    `json:"status,omitempty"`
}

// BidderStatus summarizes one dispatched bidder's participation. Exactly one exists
// per dispatched participant, even on total failure or timeout.
type BidderStatus struct {
	Bidder         BidderName     `json:"bidder"`
	ResponseTimeMS int            `json:"responsetimems"`
	NumBids        int            `json:"numbids"`
	Errors         []ErrorMessage `json:"errors,omitempty"`
	HTTPCalls      []*HTTPCall    `json:"httpcalls,omitempty"`
}

// ImpResult is the auction outcome for one impression. Winner is nil when no bid
// won, which is a normal business outcome rather than an error.
type ImpResult struct {
	ImpID     string            `json:"impid"`
	Winner    *Bid              `json:"winner,omitempty"`
	Bids      []*Bid            `json:"bids,omitempty"`
	Targeting map[string]string `json:"targeting,omitempty"`
}

// AuctionResponse is the unified response for one auction.
type AuctionResponse struct {
	ID           string          `json:"id"`
	BidderStatus []*BidderStatus `json:"bidderstatus"`
	Results      []ImpResult     `json:"results"`
	TookMS       int64           `json:"tookms"`

	// Warnings carries auction-level conditions which didn't stop the auction,
	// like a clamped time budget.
	Warnings []ErrorMessage `json:"warnings,omitempty"`
}
