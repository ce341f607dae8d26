package endpoints

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gofrs/uuid"
	"github.com/golang/glog"
	"github.com/julienschmidt/httprouter"

	"github.com/bidflare/bidflare/analytics"
	"github.com/bidflare/bidflare/auction"
	"github.com/bidflare/bidflare/config"
	"github.com/bidflare/bidflare/errortypes"
	"github.com/bidflare/bidflare/exchange"
	"github.com/bidflare/bidflare/metrics"
)

// NewAuctionEndpoint returns the handler for POST /auction.
func NewAuctionEndpoint(ex exchange.Exchange, paramsValidator auction.BidderParamValidator, cfg *config.Configuration, metricsEngine metrics.MetricsEngine, analyticsModule analytics.Module) (httprouter.Handle, error) {
	if ex == nil || paramsValidator == nil || cfg == nil || metricsEngine == nil || analyticsModule == nil {
		return nil, errors.New("NewAuctionEndpoint requires non-nil arguments.")
	}

	deps := &endpointDeps{
		ex:              ex,
		paramsValidator: paramsValidator,
		maxRequestSize:  cfg.MaxRequestSize,
		metricsEngine:   metricsEngine,
		analytics:       analyticsModule,
	}
	return httprouter.Handle(deps.Auction), nil
}

type endpointDeps struct {
	ex              exchange.Exchange
	paramsValidator auction.BidderParamValidator
	maxRequestSize  int64
	metricsEngine   metrics.MetricsEngine
	analytics       analytics.Module
}

func (deps *endpointDeps) Auction(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	start := time.Now()
	labels := metrics.Labels{RequestStatus: metrics.RequestStatusOK}
	ao := analytics.AuctionObject{
		Status:    http.StatusOK,
		StartTime: start,
	}
	defer func() {
		deps.metricsEngine.RecordRequest(labels)
		if labels.RequestStatus == metrics.RequestStatusOK {
			deps.metricsEngine.RecordRequestTime(labels, time.Since(start))
		}
		deps.analytics.LogAuctionObject(&ao)
	}()

	req, paramWarnings, errL := deps.parseRequest(w, r)
	if len(errL) > 0 {
		labels.RequestStatus = metrics.RequestStatusBadInput
		ao.Status = http.StatusBadRequest
		ao.Errors = errL
		writeError(w, http.StatusBadRequest, errL)
		return
	}
	deps.metricsEngine.RecordImps(len(req.Imps))
	ao.Request = req

	response, err := deps.ex.HoldAuction(r.Context(), req)
	if err != nil {
		ao.Errors = []error{err}
		if errortypes.ReadCode(err) == errortypes.BadInputErrorCode {
			labels.RequestStatus = metrics.RequestStatusBadInput
			ao.Status = http.StatusBadRequest
			writeError(w, http.StatusBadRequest, []error{err})
		} else {
			labels.RequestStatus = metrics.RequestStatusErr
			ao.Status = http.StatusInternalServerError
			writeError(w, http.StatusInternalServerError, []error{err})
		}
		return
	}
	response.Warnings = append(response.Warnings, paramWarnings...)
	ao.Response = response

	w.Header().Set("Content-Type", "application/json")
	enc := json.NewEncoder(w)
	// SetEscapeHTML(false) so the creative markup in the bids survives untouched.
	enc.SetEscapeHTML(false)
	if err := enc.Encode(response); err != nil {
		labels.RequestStatus = metrics.RequestStatusErr
		glog.Errorf("/auction failed to send response: %v", err)
	}
}

// parseRequest decodes and validates the request body. Bidder params which fail
// schema validation knock that one bidder off its impressions; the rest of the
// auction proceeds and the response carries a warning for each stripped bidder.
func (deps *endpointDeps) parseRequest(w http.ResponseWriter, r *http.Request) (*auction.AuctionRequest, []auction.ErrorMessage, []error) {
	req := &auction.AuctionRequest{}

	// If the request size exceeded the max, reject it cleanly rather than serving
	// a truncated-JSON error.
	body := http.MaxBytesReader(w, r.Body, deps.maxRequestSize)
	if err := json.NewDecoder(body).Decode(req); err != nil {
		return nil, nil, []error{&errortypes.BadInput{Message: fmt.Sprintf("invalid request format: %v", err)}}
	}

	if err := req.Validate(); err != nil {
		return nil, nil, []error{err}
	}

	if req.ID == "" {
		rawUUID, err := uuid.NewV4()
		if err != nil {
			return nil, nil, []error{err}
		}
		req.ID = rawUUID.String()
	}

	return req, deps.validateBidderParams(req), nil
}

// validateBidderParams checks every bidder's params against its registered schema.
// A failing bidder is removed from the impression so it never gets dispatched; the
// returned warnings record what was dropped and why.
func (deps *endpointDeps) validateBidderParams(req *auction.AuctionRequest) []auction.ErrorMessage {
	var warnings []auction.ErrorMessage
	for i := range req.Imps {
		imp := &req.Imps[i]
		for bidderName, params := range imp.Ext {
			coreBidder, ok := auction.IsCoreBidder(string(bidderName))
			if !ok {
				continue
			}
			if err := deps.paramsValidator.Validate(coreBidder, params); err != nil {
				delete(imp.Ext, bidderName)
				warnings = append(warnings, auction.ErrorMessage{
					Code:    errortypes.BidderParamErrorCode,
					Message: fmt.Sprintf("request.imp[%d].ext.%s failed validation: %v", i, bidderName, err),
				})
			}
		}
	}
	return warnings
}

type errorResponse struct {
	Errors []auction.ErrorMessage `json:"errors"`
}

func writeError(w http.ResponseWriter, status int, errs []error) {
	messages := make([]auction.ErrorMessage, 0, len(errs))
	for _, err := range errs {
		messages = append(messages, auction.ErrorMessage{
			Code:    errortypes.ReadCode(err),
			Message: err.Error(),
		})
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(errorResponse{Errors: messages}); err != nil {
		glog.Errorf("/auction failed to send error response: %v", err)
	}
}
