package exchange

import (
	"context"
	"fmt"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/golang/glog"

	"github.com/bidflare/bidflare/auction"
	"github.com/bidflare/bidflare/cacheclient"
	"github.com/bidflare/bidflare/config"
	"github.com/bidflare/bidflare/errortypes"
	"github.com/bidflare/bidflare/metrics"
)

var timeNow = time.Now

// Exchange runs auctions. Implementations must be threadsafe, and can be shared
// across many goroutines.
type Exchange interface {
	// HoldAuction executes an auction for the given request.
	//
	// An error here is fatal for the whole request. Per-bidder failures never produce
	// one; they surface inside the response's BidderStatus entries instead.
	HoldAuction(ctx context.Context, request *auction.AuctionRequest) (*auction.AuctionResponse, error)
}

type exchange struct {
	adapterMap map[auction.BidderName]AdaptedBidder
	infos      config.BidderInfos
	cache      cacheclient.Client
	cacheTime  time.Duration
	defaultTTL int64
	auctionCfg config.Auction
	me         metrics.MetricsEngine
}

// NewExchange builds an Exchange from the app config. The cache client may be nil,
// in which case requests asking for creative caching degrade with a warning.
func NewExchange(client *http.Client, cache cacheclient.Client, cfg *config.Configuration, infos config.BidderInfos, metricsEngine metrics.MetricsEngine) Exchange {
	return &exchange{
		adapterMap: newAdapterMap(client, cfg),
		infos:      infos,
		cache:      cache,
		cacheTime:  time.Duration(cfg.CacheURL.ExpectedTimeMillis) * time.Millisecond,
		defaultTTL: int64(cfg.CacheURL.DefaultTTLSeconds),
		auctionCfg: cfg.Auction,
		me:         metricsEngine,
	}
}

// dispatchedBidder is one bidder's slice of the auction: the imps it is eligible
// for, with its params already split out.
type dispatchedBidder struct {
	name auction.BidderName
	imps []auction.Impression
}

// bidResponseWrapper carries one bidder's results back over the merge channel.
type bidResponseWrapper struct {
	bidder  auction.BidderName
	seatBid *bidderSeatBid
	errs    []error
	elapsed time.Duration
}

func (e *exchange) HoldAuction(ctx context.Context, request *auction.AuctionRequest) (*auction.AuctionResponse, error) {
	if err := request.Validate(); err != nil {
		return nil, err
	}

	start := timeNow()
	var warnings []error

	timeout, clamped := e.resolveTimeout(request.TimeoutMS)
	if clamped {
		warnings = append(warnings, &errortypes.Warning{
			Message:     fmt.Sprintf("request.tmax %dms was out of bounds, running with %dms", request.TimeoutMS, timeout/time.Millisecond),
			WarningCode: errortypes.TimeoutClampedWarningCode,
		})
	}

	dispatched, skipped := e.planDispatch(request)

	needsCache := request.Cache != nil && e.cache != nil
	auctionCtx, cancel := e.makeAuctionContext(ctx, timeout, needsCache)
	defer cancel()

	wrappers := e.getAllBids(auctionCtx, request, dispatched)

	// Merge the per-bidder results in dispatch order so that price ties resolve
	// deterministically in favor of the earlier-dispatched bidder.
	pool := newBidPool(len(request.Imps))
	bidderStatus := make([]*auction.BidderStatus, 0, len(dispatched)+len(skipped))
	for _, db := range dispatched {
		brw := wrappers[db.name]
		status := &auction.BidderStatus{
			Bidder:         db.name,
			ResponseTimeMS: int(brw.elapsed / time.Millisecond),
		}
		if request.Debug && brw.seatBid != nil {
			status.HTTPCalls = brw.seatBid.httpCalls
		}

		errs := brw.errs
		if brw.seatBid != nil {
			for _, typedBid := range brw.seatBid.bids {
				if err := e.validateBid(request, typedBid.Bid); err != nil {
					errs = append(errs, err)
					continue
				}
				pool.addBid(db.name, typedBid.Bid)
				status.NumBids++
				e.me.RecordAdapterPrice(metrics.AdapterLabels{Adapter: db.name}, typedBid.Bid.Price*1000)
			}
		}
		status.Errors = errsToMessages(errs)
		bidderStatus = append(bidderStatus, status)

		labels := metrics.AdapterLabels{
			Adapter:       db.name,
			AdapterBids:   bidsToMetric(status.NumBids),
			AdapterErrors: errorsToMetric(errs),
		}
		e.me.RecordAdapterRequest(labels)
		e.me.RecordAdapterTime(labels, brw.elapsed)
		e.me.RecordAdapterBidsReceived(labels, int64(status.NumBids))
	}
	for _, skip := range skipped {
		bidderStatus = append(bidderStatus, skip)
	}

	if needsCache {
		e.runCache(ctx, request, pool, timeout, start)
	}

	response := e.buildResponse(request, pool, bidderStatus, warnings)
	response.TookMS = int64(timeNow().Sub(start) / time.Millisecond)
	return response, nil
}

// resolveTimeout clamps the requested budget into the configured window. A zero
// request means tmax was omitted and takes the default silently; any other value
// which had to be adjusted, negative values included, gets a warning.
func (e *exchange) resolveTimeout(requested int64) (time.Duration, bool) {
	timeout := e.auctionCfg.AuctionTimeout(requested)
	clamped := requested != 0 && timeout != time.Duration(requested)*time.Millisecond
	return timeout, clamped
}

// planDispatch resolves the request's participants against the registered adapters
// and each bidder's media type capabilities. Bidders with nothing eligible are not
// dispatched; they get a status entry explaining why.
func (e *exchange) planDispatch(request *auction.AuctionRequest) ([]dispatchedBidder, []*auction.BidderStatus) {
	impsByID := make(map[string]auction.Impression, len(request.Imps))
	for _, imp := range request.Imps {
		impsByID[imp.ID] = imp
	}

	participants := auction.Participants(request.Imps)
	dispatched := make([]dispatchedBidder, 0, len(participants))
	var skipped []*auction.BidderStatus

	for _, participant := range participants {
		if _, ok := e.adapterMap[participant.Bidder]; !ok {
			skipped = append(skipped, skipStatus(participant.Bidder, errortypes.BidderSkippedWarningCode,
				fmt.Sprintf("bidder %s is unknown or disabled on this host", participant.Bidder)))
			continue
		}

		info, hasInfo := e.infos[string(participant.Bidder)]
		imps := make([]auction.Impression, 0, len(participant.ImpIDs))
		for _, impID := range participant.ImpIDs {
			imp := impsByID[impID]
			if hasInfo && !info.SupportsMediaType(imp.MediaTypes) {
				continue
			}
			// Narrow the imp to the single-bidder view.
			imp.Params = imp.Ext[participant.Bidder]
			imp.Ext = nil
			imps = append(imps, imp)
		}

		if len(imps) == 0 {
			skipped = append(skipped, skipStatus(participant.Bidder, errortypes.UnsupportedMediaTypeWarningCode,
				fmt.Sprintf("bidder %s supports none of the requested media types", participant.Bidder)))
			continue
		}
		dispatched = append(dispatched, dispatchedBidder{name: participant.Bidder, imps: imps})
	}
	return dispatched, skipped
}

func skipStatus(name auction.BidderName, code int, message string) *auction.BidderStatus {
	warning := &errortypes.Warning{Message: message, WarningCode: code}
	return &auction.BidderStatus{
		Bidder: name,
		Errors: errsToMessages([]error{warning}),
	}
}

// makeAuctionContext derives the deadline all bidder calls share. When the response
// needs to be cached, a chunk of the budget is reserved so the cache call still has
// time to run after the slowest bidder returns.
func (e *exchange) makeAuctionContext(ctx context.Context, timeout time.Duration, needsCache bool) (context.Context, context.CancelFunc) {
	bidBudget := timeout
	if needsCache && bidBudget > e.cacheTime {
		bidBudget -= e.cacheTime
	}
	return context.WithTimeout(ctx, bidBudget)
}

// getAllBids makes one call to each dispatched bidder, in parallel, and waits for
// all of them to finish or time out. There is exactly one result per dispatched
// bidder, no matter what happened on the wire.
func (e *exchange) getAllBids(ctx context.Context, request *auction.AuctionRequest, dispatched []dispatchedBidder) map[auction.BidderName]*bidResponseWrapper {
	chBids := make(chan *bidResponseWrapper, len(dispatched))

	for _, db := range dispatched {
		// Here we actually call the adapters and collect the bids.
		bidderRunner := e.recoverSafely(func(db dispatchedBidder) {
			brw := &bidResponseWrapper{bidder: db.name}
			start := timeNow()
			brw.seatBid, brw.errs = e.adapterMap[db.name].requestBid(ctx, request, db.imps, db.name)
			brw.elapsed = timeNow().Sub(start)
			chBids <- brw
		}, chBids)
		go bidderRunner(db)
	}

	// Wait for the bidders to do their thing.
	wrappers := make(map[auction.BidderName]*bidResponseWrapper, len(dispatched))
	for i := 0; i < len(dispatched); i++ {
		brw := <-chBids
		wrappers[brw.bidder] = brw
	}
	return wrappers
}

// recoverSafely isolates a panicking adapter so the rest of the auction survives.
// The master request still gets a result for the bidder, with an error attached.
func (e *exchange) recoverSafely(inner func(dispatchedBidder), chBids chan *bidResponseWrapper) func(dispatchedBidder) {
	return func(db dispatchedBidder) {
		defer func() {
			if r := recover(); r != nil {
				glog.Errorf("auction recovered panic from bidder %s: %v. Stack trace is: %v",
					db.name, r, string(debug.Stack()))
				e.me.RecordAdapterPanic(metrics.AdapterLabels{Adapter: db.name})
				chBids <- &bidResponseWrapper{
					bidder: db.name,
					errs: []error{&errortypes.FailedToRequestBids{
						Message: fmt.Sprintf("bidder %s failed unexpectedly", db.name),
					}},
				}
			}
		}()
		inner(db)
	}
}

// validateBid enforces the exchange-side contract on every bid, whatever the
// adapter did. Invalid bids are dropped individually; the rest of the seat
// survives.
func (e *exchange) validateBid(request *auction.AuctionRequest, bid *auction.Bid) error {
	if bid == nil {
		return &errortypes.BadServerResponse{Message: "empty bid"}
	}
	if bid.ID == "" {
		return &errortypes.BadServerResponse{Message: "bid missing required field: id"}
	}
	if bid.Price <= 0 {
		return &errortypes.BadServerResponse{Message: fmt.Sprintf("bid %s has non-positive price %f", bid.ID, bid.Price)}
	}
	if !impExists(request.Imps, bid.ImpID) {
		return &errortypes.BadServerResponse{Message: fmt.Sprintf("bid %s references unknown imp id %s", bid.ID, bid.ImpID)}
	}
	if reqCur := requestCurrency(request); bid.Currency != "" && bid.Currency != reqCur {
		return &errortypes.Warning{
			Message:     fmt.Sprintf("bid %s in currency %s does not match request currency %s", bid.ID, bid.Currency, reqCur),
			WarningCode: errortypes.UnknownCurrencyWarningCode,
		}
	}
	return nil
}

const defaultCurrency = "USD"

func requestCurrency(request *auction.AuctionRequest) string {
	if request.Currency != "" {
		return request.Currency
	}
	return defaultCurrency
}

func impExists(imps []auction.Impression, impID string) bool {
	for _, imp := range imps {
		if imp.ID == impID {
			return true
		}
	}
	return false
}

// runCache writes the per-bidder best bids into the external cache using whatever
// budget the bidders left over.
func (e *exchange) runCache(ctx context.Context, request *auction.AuctionRequest, pool *bidPool, timeout time.Duration, start time.Time) {
	remaining := timeout - timeNow().Sub(start)
	if remaining <= 0 {
		glog.Warning("no time remaining in the auction budget for creative caching")
		return
	}
	cacheCtx, cancel := context.WithTimeout(ctx, remaining)
	defer cancel()

	toCache := make([]*auction.Bid, 0, len(request.Imps))
	pool.forEachBestBid(func(impID string, bidder auction.BidderName, bid *auction.Bid, winner bool) {
		toCache = append(toCache, bid)
	})

	ttl := e.defaultTTL
	if request.Cache.TTLSeconds > 0 {
		ttl = request.Cache.TTLSeconds
	}

	cacheStart := timeNow()
	cacheBids(cacheCtx, e.cache, pool, toCache, ttl)
	e.me.RecordCacheRequestTime(len(pool.cachedBids) > 0, timeNow().Sub(cacheStart))
}

// buildResponse assembles the response with per-imp results in request order.
func (e *exchange) buildResponse(request *auction.AuctionRequest, pool *bidPool, bidderStatus []*auction.BidderStatus, warnings []error) *auction.AuctionResponse {
	targData := newTargetData(request.Targeting)

	targeting := make(map[string]map[string]string, len(request.Imps))
	results := make([]auction.ImpResult, 0, len(request.Imps))
	for _, imp := range request.Imps {
		targeting[imp.ID] = targData.makeTargeting(pool, imp.ID)
	}
	targData.addCacheIds(pool, targeting)

	for _, imp := range request.Imps {
		results = append(results, auction.ImpResult{
			ImpID:     imp.ID,
			Winner:    pool.winningBids[imp.ID],
			Bids:      pool.allBids[imp.ID],
			Targeting: targeting[imp.ID],
		})
	}

	return &auction.AuctionResponse{
		ID:           request.ID,
		BidderStatus: bidderStatus,
		Results:      results,
		Warnings:     errsToMessages(warnings),
	}
}

func errsToMessages(errs []error) []auction.ErrorMessage {
	if len(errs) == 0 {
		return nil
	}
	messages := make([]auction.ErrorMessage, 0, len(errs))
	for _, err := range errs {
		messages = append(messages, auction.ErrorMessage{
			Code:    errortypes.ReadCode(err),
			Message: err.Error(),
		})
	}
	return messages
}

func bidsToMetric(numBids int) metrics.AdapterBid {
	if numBids == 0 {
		return metrics.AdapterBidNone
	}
	return metrics.AdapterBidPresent
}

func errorsToMetric(errs []error) map[metrics.AdapterError]struct{} {
	if len(errs) == 0 {
		return nil
	}
	ret := make(map[metrics.AdapterError]struct{}, len(errs))
	for _, err := range errs {
		switch errortypes.ReadCode(err) {
		case errortypes.TimeoutErrorCode:
			ret[metrics.AdapterErrorTimeout] = struct{}{}
		case errortypes.BadInputErrorCode:
			ret[metrics.AdapterErrorBadInput] = struct{}{}
		case errortypes.BadServerResponseErrorCode:
			ret[metrics.AdapterErrorBadServerResponse] = struct{}{}
		case errortypes.FailedToRequestBidsErrorCode:
			ret[metrics.AdapterErrorFailedToRequest] = struct{}{}
		default:
			ret[metrics.AdapterErrorUnknown] = struct{}{}
		}
	}
	return ret
}
