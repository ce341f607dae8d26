package generic

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/mxmCherry/openrtb"

	"github.com/bidflare/bidflare/adapters"
	"github.com/bidflare/bidflare/auction"
	"github.com/bidflare/bidflare/errortypes"
)

// GenericAdapter speaks plain OpenRTB 2.5 to any endpoint configured for it.
// It makes a single POST per auction carrying all of the bidder's impressions.
type GenericAdapter struct {
	endpoint string
}

// NewGenericAdapter builds a generic OpenRTB bidder pointed at endpoint.
func NewGenericAdapter(endpoint string) *GenericAdapter {
	return &GenericAdapter{endpoint: endpoint}
}

func (a *GenericAdapter) MakeRequests(request *auction.AuctionRequest, imps []auction.Impression) ([]*adapters.RequestData, []error) {
	openrtbImps := make([]openrtb.Imp, 0, len(imps))
	var errs []error
	for _, imp := range imps {
		openrtbImp, err := makeImp(imp)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		openrtbImps = append(openrtbImps, openrtbImp)
	}
	if len(openrtbImps) == 0 {
		return nil, errs
	}

	bidRequest := openrtb.BidRequest{
		ID:   request.ID,
		Imp:  openrtbImps,
		TMax: request.TimeoutMS,
	}
	if request.Currency != "" {
		bidRequest.Cur = []string{request.Currency}
	}
	if request.Debug {
		bidRequest.Test = 1
	}

	body, err := json.Marshal(bidRequest)
	if err != nil {
		return nil, append(errs, err)
	}

	headers := http.Header{}
	headers.Set("Content-Type", "application/json;charset=utf-8")
	headers.Set("Accept", "application/json")
	return []*adapters.RequestData{{
		Method:  "POST",
		Uri:     a.endpoint,
		Body:    body,
		Headers: headers,
	}}, errs
}

func makeImp(imp auction.Impression) (openrtb.Imp, error) {
	openrtbImp := openrtb.Imp{
		ID:  imp.ID,
		Ext: imp.Params,
	}
	if imp.Secure {
		secure := int8(1)
		openrtbImp.Secure = &secure
	}

	for _, mediaType := range imp.MediaTypes {
		switch mediaType {
		case auction.MediaTypeBanner:
			banner := &openrtb.Banner{}
			for _, format := range imp.Formats {
				banner.Format = append(banner.Format, openrtb.Format{W: format.W, H: format.H})
			}
			openrtbImp.Banner = banner
		case auction.MediaTypeVideo:
			video := &openrtb.Video{MIMEs: []string{"video/mp4"}}
			if len(imp.Formats) > 0 {
				video.W = imp.Formats[0].W
				video.H = imp.Formats[0].H
			}
			openrtbImp.Video = video
		case auction.MediaTypeAudio:
			openrtbImp.Audio = &openrtb.Audio{MIMEs: []string{"audio/mp4"}}
		case auction.MediaTypeNative:
			openrtbImp.Native = &openrtb.Native{Request: "{}"}
		default:
			return openrtb.Imp{}, fmt.Errorf("imp %s has unsupported media type %s", imp.ID, mediaType)
		}
	}
	return openrtbImp, nil
}

func (a *GenericAdapter) MakeBids(request *auction.AuctionRequest, response *adapters.ResponseData) ([]*adapters.TypedBid, []error) {
	if response.StatusCode == http.StatusNoContent {
		return nil, nil
	}
	if response.StatusCode != http.StatusOK {
		return nil, []error{&errortypes.BadServerResponse{
			Message: fmt.Sprintf("Unexpected status code: %d. Run with request.debug = 1 for more info", response.StatusCode),
		}}
	}

	var bidResp openrtb.BidResponse
	if err := json.Unmarshal(response.Body, &bidResp); err != nil {
		return nil, []error{&errortypes.BadServerResponse{
			Message: fmt.Sprintf("bad server response: %s", err.Error()),
		}}
	}

	impTypes := make(map[string][]auction.MediaType, len(request.Imps))
	for _, imp := range request.Imps {
		impTypes[imp.ID] = imp.MediaTypes
	}

	var bids []*adapters.TypedBid
	var errs []error
	for _, seatBid := range bidResp.SeatBid {
		for i := range seatBid.Bid {
			openrtbBid := seatBid.Bid[i]
			mediaType, err := bidType(openrtbBid.ImpID, impTypes)
			if err != nil {
				errs = append(errs, err)
				continue
			}
			currency := bidResp.Cur
			bids = append(bids, &adapters.TypedBid{
				Bid: &auction.Bid{
					ID:       openrtbBid.ID,
					ImpID:    openrtbBid.ImpID,
					Price:    openrtbBid.Price,
					Currency: currency,
					AdM:      openrtbBid.AdM,
					W:        openrtbBid.W,
					H:        openrtbBid.H,
					DealID:   openrtbBid.DealID,
					Ext:      openrtbBid.Ext,
				},
				BidType: mediaType,
			})
		}
	}
	return bids, errs
}

// bidType resolves the media type of a bid from the imp it references. The
// first declared media type wins when the imp allows several, since plain
// OpenRTB bids don't say which kind of creative they carry.
func bidType(impID string, impTypes map[string][]auction.MediaType) (auction.MediaType, error) {
	types, ok := impTypes[impID]
	if !ok {
		return "", &errortypes.BadServerResponse{
			Message: fmt.Sprintf("bid references unknown imp id: %s", impID),
		}
	}
	if len(types) == 0 {
		return auction.MediaTypeBanner, nil
	}
	return types[0], nil
}
