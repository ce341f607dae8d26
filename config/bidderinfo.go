package config

import (
	"fmt"
	"io/ioutil"
	"strings"

	"gopkg.in/yaml.v2"

	"github.com/bidflare/bidflare/auction"
)

// BidderInfos contains a mapping of bidder name to bidder info.
type BidderInfos map[string]BidderInfo

// BidderInfo describes a bidder's capabilities. The exchange consults it to decide
// which impressions a bidder is eligible for.
type BidderInfo struct {
	Maintainer   *MaintainerInfo   `yaml:"maintainer" json:"maintainer"`
	Capabilities *CapabilitiesInfo `yaml:"capabilities" json:"capabilities"`
}

// MaintainerInfo specifies the support email address for a bidder.
type MaintainerInfo struct {
	Email string `yaml:"email" json:"email"`
}

// CapabilitiesInfo specifies the supported media types for a bidder.
type CapabilitiesInfo struct {
	MediaTypes []auction.MediaType `yaml:"mediaTypes" json:"mediaTypes"`
}

// LoadBidderInfos reads a {bidder}.yaml file from infoDir for every core bidder.
// Missing or malformed files fail startup rather than silently disabling a bidder.
func LoadBidderInfos(infoDir string, bidderNames []auction.BidderName) (BidderInfos, error) {
	infos := make(BidderInfos, len(bidderNames))
	for _, name := range bidderNames {
		fileData, err := ioutil.ReadFile(fmt.Sprintf("%s/%s.yaml", infoDir, name))
		if err != nil {
			return nil, fmt.Errorf("error reading bidder info for %s: %v", name, err)
		}

		var info BidderInfo
		if err := yaml.Unmarshal(fileData, &info); err != nil {
			return nil, fmt.Errorf("error parsing bidder info for %s: %v", name, err)
		}
		if err := info.validate(); err != nil {
			return nil, fmt.Errorf("invalid bidder info for %s: %v", name, err)
		}
		infos[string(name)] = info
	}
	return infos, nil
}

func (info *BidderInfo) validate() error {
	if info.Capabilities == nil || len(info.Capabilities.MediaTypes) == 0 {
		return fmt.Errorf("missing required field: capabilities.mediaTypes")
	}
	for _, mediaType := range info.Capabilities.MediaTypes {
		if _, err := ParseBidderMediaType(string(mediaType)); err != nil {
			return err
		}
	}
	return nil
}

// SupportsMediaType reports whether the bidder can serve any of the given media types.
func (info *BidderInfo) SupportsMediaType(mediaTypes []auction.MediaType) bool {
	if info.Capabilities == nil {
		return false
	}
	for _, wanted := range mediaTypes {
		for _, supported := range info.Capabilities.MediaTypes {
			if wanted == supported {
				return true
			}
		}
	}
	return false
}

// ParseBidderMediaType wraps auction.ParseMediaType with a case-insensitive match,
// since yaml authors tend to write "Banner".
func ParseBidderMediaType(mediaType string) (auction.MediaType, error) {
	return auction.ParseMediaType(strings.ToLower(mediaType))
}
