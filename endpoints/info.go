package endpoints

import (
	"encoding/json"
	"net/http"
	"sort"

	"github.com/golang/glog"
	"github.com/julienschmidt/httprouter"

	"github.com/bidflare/bidflare/auction"
	"github.com/bidflare/bidflare/config"
)

// NewBiddersEndpoint implements GET /info/bidders, the list of core bidder names.
func NewBiddersEndpoint() httprouter.Handle {
	bidderNames := make([]string, 0, len(auction.CoreBidderNames()))
	for _, name := range auction.CoreBidderNames() {
		bidderNames = append(bidderNames, string(name))
	}
	sort.Strings(bidderNames)

	biddersJson, err := json.Marshal(bidderNames)
	if err != nil {
		glog.Fatalf("error creating /info/bidders endpoint response: %v", err)
	}

	return httprouter.Handle(func(w http.ResponseWriter, _ *http.Request, _ httprouter.Params) {
		w.Header().Set("Content-Type", "application/json")
		if _, err := w.Write(biddersJson); err != nil {
			glog.Errorf("error writing response to /info/bidders: %v", err)
		}
	})
}

// NewBidderDetailsEndpoint implements GET /info/bidders/:bidderName, serving each
// bidder's maintainer and capability info.
func NewBidderDetailsEndpoint(infos config.BidderInfos) httprouter.Handle {
	// Build all the responses up front, since there are a finite number and it
	// won't use much memory.
	responses := make(map[string]json.RawMessage, len(infos))
	for name, info := range infos {
		jsonBytes, err := json.Marshal(bidderDetails{
			Maintainer:   info.Maintainer,
			Capabilities: info.Capabilities,
		})
		if err != nil {
			glog.Fatalf("error marshalling bidder info for %s: %v", name, err)
		}
		responses[name] = jsonBytes
	}

	return httprouter.Handle(func(w http.ResponseWriter, _ *http.Request, ps httprouter.Params) {
		forBidder := ps.ByName("bidderName")
		if response, ok := responses[forBidder]; ok {
			w.Header().Set("Content-Type", "application/json")
			if _, err := w.Write(response); err != nil {
				glog.Errorf("error writing response to /info/bidders/%s: %v", forBidder, err)
			}
		} else {
			w.WriteHeader(http.StatusNotFound)
		}
	})
}

type bidderDetails struct {
	Maintainer   *config.MaintainerInfo   `json:"maintainer,omitempty"`
	Capabilities *config.CapabilitiesInfo `json:"capabilities,omitempty"`
}

// NewBidderParamsEndpoint implements GET /bidders/params, a map from each bidder
// name to the JSON schema its params are validated against.
func NewBidderParamsEndpoint(validator auction.BidderParamValidator) httprouter.Handle {
	schemas := make(map[string]json.RawMessage, len(auction.CoreBidderNames()))
	for _, name := range auction.CoreBidderNames() {
		schemas[string(name)] = json.RawMessage(validator.Schema(name))
	}

	response, err := json.Marshal(schemas)
	if err != nil {
		glog.Fatalf("error creating /bidders/params endpoint response: %v", err)
	}

	return httprouter.Handle(func(w http.ResponseWriter, _ *http.Request, _ httprouter.Params) {
		w.Header().Set("Content-Type", "application/json")
		if _, err := w.Write(response); err != nil {
			glog.Errorf("error writing response to /bidders/params: %v", err)
		}
	})
}
