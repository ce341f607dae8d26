package auction

// These names must match both the bidder-info and bidder-params filenames, and the
// keys in the adapters section of the app config.
const (
	BidderGeneric BidderName = "generic"
)

var coreBidderNames = []BidderName{
	BidderGeneric,
}

// CoreBidderNames returns a slice of all the core bidders known to the exchange.
func CoreBidderNames() []BidderName {
	return coreBidderNames
}

// IsCoreBidder returns true if the name matches a registered core bidder.
func IsCoreBidder(name string) (BidderName, bool) {
	for _, coreName := range coreBidderNames {
		if string(coreName) == name {
			return coreName, true
		}
	}
	return "", false
}
