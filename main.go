package main

import (
	"flag"
	"math/rand"
	_ "net/http/pprof"
	"time"

	"github.com/golang/glog"
	"github.com/spf13/viper"

	"github.com/bidflare/bidflare/config"
	"github.com/bidflare/bidflare/router"
	"github.com/bidflare/bidflare/server"
)

func init() {
	rand.Seed(time.Now().UnixNano())
}

func main() {
	flag.Parse() // required for glog flags and testing package flags

	cfg, err := loadConfig()
	if err != nil {
		glog.Exitf("Configuration could not be loaded or did not pass validation: %v", err)
	}

	if err := serve(cfg); err != nil {
		glog.Exitf("bidflare failed: %v", err)
	}
}

const configFileName = "bidflare"

func loadConfig() (*config.Configuration, error) {
	v := viper.New()
	config.SetupViper(v, configFileName)
	return config.New(v)
}

func serve(cfg *config.Configuration) error {
	r, err := router.New(cfg)
	if err != nil {
		return err
	}

	server.Listen(cfg, router.Handler(cfg, r), r.MetricsEngine)
	return nil
}
