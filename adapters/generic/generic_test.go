package generic

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/mxmCherry/openrtb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bidflare/bidflare/adapters"
	"github.com/bidflare/bidflare/auction"
	"github.com/bidflare/bidflare/errortypes"
)

func TestMakeRequests(t *testing.T) {
	bidder := NewGenericAdapter("http://bids.example.com/openrtb")
	request := &auction.AuctionRequest{
		ID:        "req-1",
		TimeoutMS: 150,
		Currency:  "USD",
	}
	imps := []auction.Impression{
		{
			ID:         "imp-1",
			MediaTypes: []auction.MediaType{auction.MediaTypeBanner},
			Formats:    []auction.Format{{W: 300, H: 250}},
			Secure:     true,
			Params:     json.RawMessage(`{"placementId":42}`),
		},
		{
			ID:         "imp-2",
			MediaTypes: []auction.MediaType{auction.MediaTypeVideo},
			Formats:    []auction.Format{{W: 640, H: 480}},
		},
	}

	reqData, errs := bidder.MakeRequests(request, imps)
	assert.Empty(t, errs)
	require.Len(t, reqData, 1)
	assert.Equal(t, "POST", reqData[0].Method)
	assert.Equal(t, "http://bids.example.com/openrtb", reqData[0].Uri)

	var sent openrtb.BidRequest
	require.NoError(t, json.Unmarshal(reqData[0].Body, &sent))
	assert.Equal(t, "req-1", sent.ID)
	assert.Equal(t, int64(150), sent.TMax)
	assert.Equal(t, []string{"USD"}, sent.Cur)
	require.Len(t, sent.Imp, 2)

	require.NotNil(t, sent.Imp[0].Banner)
	assert.Equal(t, uint64(300), sent.Imp[0].Banner.Format[0].W)
	require.NotNil(t, sent.Imp[0].Secure)
	assert.Equal(t, int8(1), *sent.Imp[0].Secure)
	assert.JSONEq(t, `{"placementId":42}`, string(sent.Imp[0].Ext))

	require.NotNil(t, sent.Imp[1].Video)
	assert.Equal(t, uint64(640), sent.Imp[1].Video.W)
}

func TestMakeBids(t *testing.T) {
	bidder := NewGenericAdapter("http://bids.example.com/openrtb")
	request := &auction.AuctionRequest{
		ID: "req-1",
		Imps: []auction.Impression{
			{ID: "imp-1", MediaTypes: []auction.MediaType{auction.MediaTypeBanner}},
		},
	}

	body := `{
		"id": "req-1",
		"cur": "USD",
		"seatbid": [{
			"bid": [{
				"id": "bid-1",
				"impid": "imp-1",
				"price": 2.50,
				"adm": "<div>ad</div>",
				"w": 300,
				"h": 250,
				"dealid": "deal-9"
			}]
		}]
	}`
	bids, errs := bidder.MakeBids(request, &adapters.ResponseData{StatusCode: http.StatusOK, Body: []byte(body)})
	assert.Empty(t, errs)
	require.Len(t, bids, 1)
	assert.Equal(t, "bid-1", bids[0].Bid.ID)
	assert.Equal(t, "imp-1", bids[0].Bid.ImpID)
	assert.Equal(t, 2.50, bids[0].Bid.Price)
	assert.Equal(t, "USD", bids[0].Bid.Currency)
	assert.Equal(t, "deal-9", bids[0].Bid.DealID)
	assert.Equal(t, auction.MediaTypeBanner, bids[0].BidType)
}

func TestMakeBidsNoContent(t *testing.T) {
	bidder := NewGenericAdapter("http://bids.example.com/openrtb")
	bids, errs := bidder.MakeBids(&auction.AuctionRequest{}, &adapters.ResponseData{StatusCode: http.StatusNoContent})
	assert.Nil(t, bids)
	assert.Empty(t, errs)
}

func TestMakeBidsBadStatus(t *testing.T) {
	bidder := NewGenericAdapter("http://bids.example.com/openrtb")
	_, errs := bidder.MakeBids(&auction.AuctionRequest{}, &adapters.ResponseData{StatusCode: http.StatusInternalServerError})
	require.Len(t, errs, 1)
	assert.Equal(t, errortypes.BadServerResponseErrorCode, errortypes.ReadCode(errs[0]))
}

func TestMakeBidsBadJSON(t *testing.T) {
	bidder := NewGenericAdapter("http://bids.example.com/openrtb")
	_, errs := bidder.MakeBids(&auction.AuctionRequest{}, &adapters.ResponseData{StatusCode: http.StatusOK, Body: []byte("not json")})
	require.Len(t, errs, 1)
	assert.Equal(t, errortypes.BadServerResponseErrorCode, errortypes.ReadCode(errs[0]))
}

func TestMakeBidsUnknownImp(t *testing.T) {
	bidder := NewGenericAdapter("http://bids.example.com/openrtb")
	request := &auction.AuctionRequest{
		ID:   "req-1",
		Imps: []auction.Impression{{ID: "imp-1", MediaTypes: []auction.MediaType{auction.MediaTypeBanner}}},
	}
	body := `{"id":"req-1","seatbid":[{"bid":[{"id":"bid-1","impid":"imp-404","price":1.0}]}]}`
	bids, errs := bidder.MakeBids(request, &adapters.ResponseData{StatusCode: http.StatusOK, Body: []byte(body)})
	assert.Empty(t, bids)
	require.Len(t, errs, 1)
	assert.Equal(t, errortypes.BadServerResponseErrorCode, errortypes.ReadCode(errs[0]))
}
