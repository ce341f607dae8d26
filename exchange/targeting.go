package exchange

import (
	"strconv"

	"github.com/bidflare/bidflare/auction"
)

// targetData builds the targeting key-values for the bids in an auction.
//
// All functions on this struct are nil-safe. If the value is nil, then no targeting
// data will be tracked.
type targetData struct {
	lengthMax         int
	priceGranularity  auction.PriceGranularity
	includeWinners    bool
	includeBidderKeys bool
}

func newTargetData(policy *auction.TargetingPolicy) *targetData {
	if policy == nil {
		return nil
	}
	return &targetData{
		lengthMax:         policy.KeyLengthMax,
		priceGranularity:  policy.PriceGranularity,
		includeWinners:    policy.IncludeWinners,
		includeBidderKeys: policy.IncludeBidderKeys,
	}
}

// makeTargeting assembles the key-values for one imp's winning set. Bidder-namespaced
// keys are emitted for every per-bidder best bid, winner keys only for the overall
// winner. The cache key is only set when the creative actually made it into the cache.
func (t *targetData) makeTargeting(pool *bidPool, impID string) map[string]string {
	if t == nil {
		return nil
	}

	targets := make(map[string]string)
	if t.includeBidderKeys {
		for bidderName, bid := range pool.winningBidsByBidder[impID] {
			t.addKeys(targets, bid, bidderName, false)
		}
	}
	if t.includeWinners {
		if winner, ok := pool.winningBids[impID]; ok {
			t.addKeys(targets, winner, winner.Bidder, true)
		}
	}
	if len(targets) == 0 {
		return nil
	}
	return targets
}

func (t *targetData) addKeys(targets map[string]string, bid *auction.Bid, name auction.BidderName, winner bool) {
	cpm := t.priceGranularity.PriceBucket(bid.Price)

	t.addKeyValue(targets, auction.HbpbConstantKey, name, winner, cpm)
	t.addKeyValue(targets, auction.HbBidderConstantKey, name, winner, string(name))
	if bid.W != 0 && bid.H != 0 {
		size := strconv.FormatUint(bid.W, 10) + "x" + strconv.FormatUint(bid.H, 10)
		t.addKeyValue(targets, auction.HbSizeConstantKey, name, winner, size)
	}
	if len(bid.DealID) > 0 {
		t.addKeyValue(targets, auction.HbDealIDConstantKey, name, winner, bid.DealID)
	}
}

// addCacheIds appends the hb_cache_id keys for every cached bid. Bids which missed
// the cache get no key, so ad server line items can never reference a dead creative.
func (t *targetData) addCacheIds(pool *bidPool, targeting map[string]map[string]string) {
	if t == nil || len(pool.cachedBids) == 0 {
		return
	}

	pool.forEachBestBid(func(impID string, bidderName auction.BidderName, bid *auction.Bid, winner bool) {
		cacheID, ok := pool.cacheId(bid)
		if !ok {
			return
		}
		targets := targeting[impID]
		if targets == nil {
			return
		}
		if t.includeBidderKeys {
			targets[auction.HbCacheKey.BidderKey(bidderName, t.lengthMax)] = cacheID
		}
		if t.includeWinners && winner {
			targets[auction.HbCacheKey.Key(t.lengthMax)] = cacheID
		}
	})
}

func (t *targetData) addKeyValue(targets map[string]string, key auction.TargetingKey, name auction.BidderName, winner bool, value string) {
	if t.includeBidderKeys {
		targets[key.BidderKey(name, t.lengthMax)] = value
	}
	if t.includeWinners && winner {
		targets[key.Key(t.lengthMax)] = value
	}
}
