package exchange

import (
	"github.com/bidflare/bidflare/auction"
)

// bidPool stores the valid bids for a single call to Exchange.HoldAuction().
// Construct these with the newBidPool() function.
type bidPool struct {
	// winningBids is a map from imp.id to the highest overall CPM bid on that imp.
	winningBids map[string]*auction.Bid
	// winningBidsByBidder stores the highest bid on each imp by each bidder.
	winningBidsByBidder map[string]map[auction.BidderName]*auction.Bid
	// allBids stores every valid bid per imp in arrival order.
	allBids map[string][]*auction.Bid
	// cachedBids stores the cache ID for each bid, if it exists.
	// This is set by cacheBids() in cache.go, and is nil beforehand.
	cachedBids map[*auction.Bid]string
}

func newBidPool(numImps int) *bidPool {
	return &bidPool{
		winningBids:         make(map[string]*auction.Bid, numImps),
		winningBidsByBidder: make(map[string]map[auction.BidderName]*auction.Bid, numImps),
		allBids:             make(map[string][]*auction.Bid, numImps),
	}
}

// addBid should be called for each bid which is "officially" valid for the auction,
// in bidder dispatch order. The strict > comparison makes the first-dispatched
// bidder win price ties.
func (pool *bidPool) addBid(name auction.BidderName, bid *auction.Bid) {
	if pool == nil {
		return
	}

	cpm := bid.Price
	wbid, ok := pool.winningBids[bid.ImpID]
	if !ok || cpm > wbid.Price {
		pool.winningBids[bid.ImpID] = bid
	}
	if bidMap, ok := pool.winningBidsByBidder[bid.ImpID]; ok {
		bestSoFar, ok := bidMap[name]
		if !ok || cpm > bestSoFar.Price {
			bidMap[name] = bid
		}
	} else {
		pool.winningBidsByBidder[bid.ImpID] = make(map[auction.BidderName]*auction.Bid)
		pool.winningBidsByBidder[bid.ImpID][name] = bid
	}
	pool.allBids[bid.ImpID] = append(pool.allBids[bid.ImpID], bid)
}

func (pool *bidPool) cacheId(bid *auction.Bid) (id string, exists bool) {
	id, exists = pool.cachedBids[bid]
	return
}

// forEachBestBid runs the callback on every bid which is the highest one for each
// bidder on each imp.
func (pool *bidPool) forEachBestBid(callback func(impID string, bidder auction.BidderName, bid *auction.Bid, winner bool)) {
	for impID, bidderMap := range pool.winningBidsByBidder {
		overallWinner := pool.winningBids[impID]
		for bidderName, bid := range bidderMap {
			callback(impID, bidderName, bid, bid == overallWinner)
		}
	}
}
