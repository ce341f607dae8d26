package analytics

import (
	"encoding/json"
	"time"

	"github.com/golang/glog"

	"github.com/bidflare/bidflare/auction"
)

// Module must be implemented by analytics modules to extract the required information
// and log it wherever they need.
type Module interface {
	LogAuctionObject(*AuctionObject)
}

// AuctionObject is the loggable object of a transaction at the auction endpoint.
type AuctionObject struct {
	Status    int                      `json:"status"`
	Errors    []error                  `json:"errors,omitempty"`
	Request   *auction.AuctionRequest  `json:"request,omitempty"`
	Response  *auction.AuctionResponse `json:"response,omitempty"`
	StartTime time.Time                `json:"start_time"`
}

// ToJson marshals the auction object for the transaction log. A marshalling failure
// is logged and produces an empty record rather than killing the request.
func (ao *AuctionObject) ToJson() string {
	content, err := json.Marshal(ao)
	if err != nil {
		glog.Errorf("transaction log failure: %v", err)
		return ""
	}
	return string(content)
}
