package exchange

import (
	"net/http"

	"github.com/bidflare/bidflare/adapters"
	"github.com/bidflare/bidflare/adapters/generic"
	"github.com/bidflare/bidflare/auction"
	"github.com/bidflare/bidflare/config"
)

// The newAdapterMap function is segregated to its own file to make it a simple and
// clean location for each adapter to register itself. No wading through Exchange
// code to find it.

func newAdapterMap(client *http.Client, cfg *config.Configuration) map[auction.BidderName]AdaptedBidder {
	ortbBidders := map[auction.BidderName]adapters.Bidder{
		auction.BidderGeneric: generic.NewGenericAdapter(cfg.Adapters[string(auction.BidderGeneric)].Endpoint),
	}

	allBidders := make(map[auction.BidderName]AdaptedBidder, len(ortbBidders))
	for name, bidder := range ortbBidders {
		// Clean out any disabled bidders
		if adapterCfg, ok := cfg.Adapters[string(name)]; ok && !adapterCfg.Disabled {
			allBidders[name] = adaptBidder(bidder, client)
		}
	}
	return allBidders
}
