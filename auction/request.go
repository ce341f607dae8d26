package auction

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/bidflare/bidflare/errortypes"
)

// MediaType describes the allowed kinds of creative for an Impression.
type MediaType string

const (
	MediaTypeBanner MediaType = "banner"
	MediaTypeVideo  MediaType = "video"
	MediaTypeAudio  MediaType = "audio"
	MediaTypeNative MediaType = "native"
)

// ParseMediaType converts a string to a MediaType, returning an error on unrecognized values.
func ParseMediaType(mediaType string) (MediaType, error) {
	switch MediaType(mediaType) {
	case MediaTypeBanner:
		return MediaTypeBanner, nil
	case MediaTypeVideo:
		return MediaTypeVideo, nil
	case MediaTypeAudio:
		return MediaTypeAudio, nil
	case MediaTypeNative:
		return MediaTypeNative, nil
	default:
		return "", fmt.Errorf("invalid MediaType: %s", mediaType)
	}
}

// Format is one allowed creative size for an Impression.
type Format struct {
	W uint64 `json:"w"`
	H uint64 `json:"h"`
}

// Impression is one ad slot inside an AuctionRequest. Its ID must be unique within
// the request.
type Impression struct {
	ID         string      `json:"id"`
	MediaTypes []MediaType `json:"mediatypes"`
	Formats    []Format    `json:"formats,omitempty"`
	Secure     bool        `json:"secure,omitempty"`

	// Ext holds the adapter-specific params for each bidder competing on this slot,
	// keyed by bidder name. The values are opaque to the exchange and validated only
	// against the bidder's param schema.
	Ext map[BidderName]json.RawMessage `json:"ext,omitempty"`

	// Params is the single-bidder view of Ext. The exchange populates it when the
	// request is split per bidder; it is always empty on the inbound request.
	Params json.RawMessage `json:"-"`
}

// CacheRequest asks the exchange to store winning creatives in the external cache.
// Its presence on the request enables the cache write-back.
type CacheRequest struct {
	TTLSeconds int64 `json:"ttlseconds,omitempty"`
}

// TargetingPolicy controls which targeting key-values are generated for the response.
type TargetingPolicy struct {
	PriceGranularity  PriceGranularity `json:"pricegranularity"`
	IncludeWinners    bool             `json:"includewinners"`
	IncludeBidderKeys bool             `json:"includebidderkeys"`

	// KeyLengthMax truncates generated targeting keys to this many bytes.
	// Zero means no limit. Some ad servers cap key length at 20.
	KeyLengthMax int `json:"lengthmax,omitempty"`
}

// targetingPolicyPlain is TargetingPolicy without the UnmarshalJSON override,
// to prevent infinite loops.
type targetingPolicyPlain TargetingPolicy

// UnmarshalJSON applies the default price granularity when the request omits one.
func (p *TargetingPolicy) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		return nil
	}
	plain := targetingPolicyPlain{
		IncludeWinners: true,
	}
	err := json.Unmarshal(b, &plain)
	*p = TargetingPolicy(plain)
	if err == nil && len(p.PriceGranularity.Ranges) == 0 {
		p.PriceGranularity = priceGranularityMedium
	}
	return err
}

// AuctionRequest is the normalized input for one auction. It is built once per
// incoming call and never mutated afterwards.
type AuctionRequest struct {
	ID        string           `json:"id"`
	Imps      []Impression     `json:"imp"`
	TimeoutMS int64            `json:"tmax,omitempty"`
	Currency  string           `json:"cur,omitempty"`
	Targeting *TargetingPolicy `json:"targeting,omitempty"`
	Cache     *CacheRequest    `json:"cache,omitempty"`
	Debug     bool             `json:"debug,omitempty"`
}

// Validate checks the structural preconditions the exchange depends on. A failure here
// is fatal for the whole auction and is reported before any bidder is dispatched.
func (r *AuctionRequest) Validate() error {
	if len(r.Imps) == 0 {
		return &errortypes.BadInput{Message: "request.imp must contain at least one impression"}
	}

	impIDs := make(map[string]struct{}, len(r.Imps))
	for i, imp := range r.Imps {
		if imp.ID == "" {
			return &errortypes.BadInput{Message: fmt.Sprintf("request.imp[%d] missing required field: id", i)}
		}
		if _, dup := impIDs[imp.ID]; dup {
			return &errortypes.BadInput{Message: fmt.Sprintf("request.imp[%d].id %s is not unique", i, imp.ID)}
		}
		impIDs[imp.ID] = struct{}{}

		if len(imp.MediaTypes) == 0 {
			return &errortypes.BadInput{Message: fmt.Sprintf("request.imp[%d].mediatypes must not be empty", i)}
		}
		for _, mediaType := range imp.MediaTypes {
			if _, err := ParseMediaType(string(mediaType)); err != nil {
				return &errortypes.BadInput{Message: fmt.Sprintf("request.imp[%d]: %s", i, err.Error())}
			}
		}
	}
	return nil
}

// Participant binds a bidder to the impressions which carry params for it.
// Participants are built once per auction and consumed read-only by the exchange.
type Participant struct {
	Bidder BidderName
	ImpIDs []string
}

// Participants extracts the participating bidders from the request's impressions.
//
// The returned order is the exchange's dispatch order, which also breaks price ties,
// so it must be deterministic: bidders appear in order of first appearance across the
// impressions, sorted by name within each impression.
func Participants(imps []Impression) []Participant {
	var order []BidderName
	impIDs := make(map[BidderName][]string)

	for _, imp := range imps {
		names := make([]BidderName, 0, len(imp.Ext))
		for name := range imp.Ext {
			names = append(names, name)
		}
		sort.Slice(names, func(i, j int) bool { return names[i] < names[j] })

		for _, name := range names {
			if _, seen := impIDs[name]; !seen {
				order = append(order, name)
			}
			impIDs[name] = append(impIDs[name], imp.ID)
		}
	}

	participants := make([]Participant, 0, len(order))
	for _, name := range order {
		participants = append(participants, Participant{Bidder: name, ImpIDs: impIDs[name]})
	}
	return participants
}
