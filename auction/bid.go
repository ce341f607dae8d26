package auction

import "encoding/json"

// BidderName refers to a core bidder registered with the exchange.
type BidderName string

func (name BidderName) String() string {
	return string(name)
}

// Bid is one normalized bid returned by a bidder. Its ImpID must reference an
// Impression in the same auction, otherwise the exchange drops it with a
// validation error. Bids are immutable once produced by a bidder requester.
type Bid struct {
	ID        string          `json:"id"`
	ImpID     string          `json:"impid"`
	Price     float64         `json:"price"`
	Currency  string          `json:"cur,omitempty"`
	AdM       string          `json:"adm,omitempty"`
	W         uint64          `json:"w,omitempty"`
	H         uint64          `json:"h,omitempty"`
	DealID    string          `json:"dealid,omitempty"`
	MediaType MediaType       `json:"mediatype"`
	Bidder    BidderName      `json:"bidder"`
	Ext       json.RawMessage `json:"ext,omitempty"`
}

// TargetingKeys are used throughout bidflare as keys which can be used in an ad server
// like DFP. Clients set the values we assign on the request to the ad server, where they
// can be substituted like macros into Creatives.
//
// Removing one of these, or changing the semantics of what we store there, will probably
// break the line item setups for many publishers.
type TargetingKey string

const (
	HbpbConstantKey TargetingKey = "hb_pb"

	// HbBidderConstantKey is the name of the winning bidder.
	HbBidderConstantKey TargetingKey = "hb_bidder"
	HbSizeConstantKey   TargetingKey = "hb_size"
	HbDealIDConstantKey TargetingKey = "hb_deal"

	// HbCacheKey stores a UUID which can be used to fetch the winning markup from the
	// external creative cache. Callers should *never* assume it exists, since the call
	// to the cache may always fail.
	HbCacheKey TargetingKey = "hb_cache_id"
)

// BidderKey namespaces the key by bidder so that competing bidders on the same
// impression cannot collide, truncating to maxLength bytes when maxLength is non-zero.
func (key TargetingKey) BidderKey(bidder BidderName, maxLength int) string {
	s := string(key) + "_" + string(bidder)
	return truncate(s, maxLength)
}

// Key returns the bare (winner) form of the key, truncated like BidderKey.
func (key TargetingKey) Key(maxLength int) string {
	return truncate(string(key), maxLength)
}

func truncate(s string, maxLength int) string {
	if maxLength != 0 && len(s) > maxLength {
		return s[:maxLength]
	}
	return s
}
