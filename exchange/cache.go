package exchange

import (
	"context"
	"encoding/json"

	"github.com/golang/glog"

	"github.com/bidflare/bidflare/auction"
	"github.com/bidflare/bidflare/cacheclient"
)

// cacheBids writes the given bids to the external creative cache and records the
// returned IDs on the pool. Failures here degrade the auction (no hb_cache_id keys)
// but never fail it.
func cacheBids(ctx context.Context, cache cacheclient.Client, pool *bidPool, bids []*auction.Bid, ttlSeconds int64) {
	if len(bids) == 0 {
		return
	}
	if deadline, ok := ctx.Deadline(); ok && deadline.Before(timeNow()) {
		glog.Warning("no time remaining in the auction budget for creative caching")
		return
	}

	// Marshal the bids into JSON payloads. If any errors occur during marshalling,
	// eject that bid from the array. After this block, "bids" and "values" have the
	// same number of elements in the same order.
	values := make([]cacheclient.Cacheable, 0, len(bids))
	for i := 0; i < len(bids); i++ {
		jsonBytes, err := json.Marshal(bids[i])
		if err != nil {
			glog.Errorf("Error marshalling bid for the cache: %v", err)
			bids = append(bids[:i], bids[i+1:]...)
			i--
			continue
		}
		values = append(values, cacheclient.Cacheable{
			Type:       cacheclient.TypeJSON,
			Data:       jsonBytes,
			TTLSeconds: ttlSeconds,
		})
	}

	ids, _ := cache.PutJson(ctx, values)
	if len(ids) != len(bids) {
		return
	}

	cached := make(map[*auction.Bid]string, len(bids))
	for i := 0; i < len(bids); i++ {
		if ids[i] != "" {
			cached[bids[i]] = ids[i]
		}
	}
	pool.cachedBids = cached
}
