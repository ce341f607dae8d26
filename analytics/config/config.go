package config

import (
	"github.com/golang/glog"

	"github.com/bidflare/bidflare/analytics"
	"github.com/bidflare/bidflare/analytics/filesystem"
	"github.com/bidflare/bidflare/config"
)

// NewAnalytics assembles the enabled analytics modules from the app config. A module
// that fails to initialize is skipped with a log line, not a startup failure.
func NewAnalytics(analyticsCfg *config.Analytics) analytics.Module {
	modules := make(enabledAnalytics, 0)
	if len(analyticsCfg.File.Filename) > 0 {
		if mod, err := filesystem.NewFileLogger(analyticsCfg.File.Filename); err == nil {
			modules = append(modules, mod)
		} else {
			glog.Errorf("Could not initialize FileLogger for file %v :%v", analyticsCfg.File.Filename, err)
		}
	}
	return modules
}

// enabledAnalytics is a collection of analytics modules, fanned out on every log call.
type enabledAnalytics []analytics.Module

func (ea enabledAnalytics) LogAuctionObject(ao *analytics.AuctionObject) {
	for _, module := range ea {
		module.LogAuctionObject(ao)
	}
}
