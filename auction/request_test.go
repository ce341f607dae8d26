package auction

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/bidflare/bidflare/errortypes"
)

func TestValidateAcceptsMinimalRequest(t *testing.T) {
	req := AuctionRequest{
		ID: "req-1",
		Imps: []Impression{
			{ID: "imp-1", MediaTypes: []MediaType{MediaTypeBanner}},
		},
	}
	assert.NoError(t, req.Validate())
}

func TestValidateRejectsBadRequests(t *testing.T) {
	testCases := []struct {
		description string
		request     AuctionRequest
	}{
		{
			description: "no imps",
			request:     AuctionRequest{ID: "req-1"},
		},
		{
			description: "imp without id",
			request: AuctionRequest{
				ID:   "req-1",
				Imps: []Impression{{MediaTypes: []MediaType{MediaTypeBanner}}},
			},
		},
		{
			description: "duplicate imp ids",
			request: AuctionRequest{
				ID: "req-1",
				Imps: []Impression{
					{ID: "imp-1", MediaTypes: []MediaType{MediaTypeBanner}},
					{ID: "imp-1", MediaTypes: []MediaType{MediaTypeVideo}},
				},
			},
		},
		{
			description: "imp without media types",
			request: AuctionRequest{
				ID:   "req-1",
				Imps: []Impression{{ID: "imp-1"}},
			},
		},
		{
			description: "unknown media type",
			request: AuctionRequest{
				ID:   "req-1",
				Imps: []Impression{{ID: "imp-1", MediaTypes: []MediaType{"popunder"}}},
			},
		},
	}

	for _, test := range testCases {
		err := test.request.Validate()
		assert.Error(t, err, test.description)
		assert.Equal(t, errortypes.BadInputErrorCode, errortypes.ReadCode(err), test.description)
	}
}

func TestParticipantsDispatchOrder(t *testing.T) {
	imps := []Impression{
		{
			ID: "imp-1",
			Ext: map[BidderName]json.RawMessage{
				"zeta":  json.RawMessage(`{}`),
				"alpha": json.RawMessage(`{}`),
			},
		},
		{
			ID: "imp-2",
			Ext: map[BidderName]json.RawMessage{
				"mid":  json.RawMessage(`{}`),
				"zeta": json.RawMessage(`{}`),
			},
		},
	}

	participants := Participants(imps)
	assert.Equal(t, []Participant{
		{Bidder: "alpha", ImpIDs: []string{"imp-1"}},
		{Bidder: "zeta", ImpIDs: []string{"imp-1", "imp-2"}},
		{Bidder: "mid", ImpIDs: []string{"imp-2"}},
	}, participants, "bidders must come out in first-appearance order, lexical within an imp")
}

func TestParticipantsEmpty(t *testing.T) {
	assert.Empty(t, Participants([]Impression{{ID: "imp-1"}}))
}

func TestTargetingPolicyDefaults(t *testing.T) {
	var policy TargetingPolicy
	assert.NoError(t, json.Unmarshal([]byte(`{}`), &policy))
	assert.True(t, policy.IncludeWinners, "winner keys must default on")
	assert.False(t, policy.IncludeBidderKeys)
	assert.Equal(t, priceGranularityMedium, policy.PriceGranularity)
}

func TestTargetingPolicyExplicit(t *testing.T) {
	var policy TargetingPolicy
	data := []byte(`{"pricegranularity":"low","includewinners":false,"includebidderkeys":true,"lengthmax":20}`)
	assert.NoError(t, json.Unmarshal(data, &policy))
	assert.False(t, policy.IncludeWinners)
	assert.True(t, policy.IncludeBidderKeys)
	assert.Equal(t, 20, policy.KeyLengthMax)
	assert.Equal(t, priceGranularityLow, policy.PriceGranularity)
}

func TestParseMediaType(t *testing.T) {
	for _, valid := range []string{"banner", "video", "audio", "native"} {
		parsed, err := ParseMediaType(valid)
		assert.NoError(t, err)
		assert.Equal(t, MediaType(valid), parsed)
	}
	_, err := ParseMediaType("interstitial")
	assert.Error(t, err)
}
