package config

import (
	"fmt"
	"strings"
	"time"

	validator "github.com/asaskevich/govalidator"
	"github.com/golang/glog"
	"github.com/spf13/viper"

	"github.com/bidflare/bidflare/errortypes"
)

// Configuration is the app config, loaded once at startup and read-only afterwards.
type Configuration struct {
	ExternalURL string `mapstructure:"external_url"`
	Host        string `mapstructure:"host"`
	Port        int    `mapstructure:"port"`
	AdminPort   int    `mapstructure:"admin_port"`
	EnableGzip  bool   `mapstructure:"enable_gzip"`

	// StatusResponse is the body served by GET /status. An empty value means the
	// endpoint answers 204.
	StatusResponse string `mapstructure:"status_response"`

	Auction   Auction            `mapstructure:"auction"`
	CacheURL  Cache              `mapstructure:"cache"`
	Metrics   Metrics            `mapstructure:"metrics"`
	Analytics Analytics          `mapstructure:"analytics"`
	RateLimit RateLimiting       `mapstructure:"rate_limiter"`
	Adapters  map[string]Adapter `mapstructure:"adapters"`

	// MaxRequestSize is the size in bytes of the largest auction request body
	// the endpoint will read.
	MaxRequestSize int64 `mapstructure:"max_request_size"`
}

// Auction holds the time-budget knobs for the exchange.
type Auction struct {
	// DefaultTimeoutMS applies when the request doesn't name a budget.
	DefaultTimeoutMS int64 `mapstructure:"default_timeout_ms"`
	// MaxTimeoutMS caps the budget no matter what the request asks for.
	MaxTimeoutMS int64 `mapstructure:"max_timeout_ms"`
	// MinTimeoutMS raises unreasonably small budgets so that bidders have a chance.
	MinTimeoutMS int64 `mapstructure:"min_timeout_ms"`
}

// Cache configures the external creative cache. An empty URL disables caching.
type Cache struct {
	URL string `mapstructure:"url"`
	// ExpectedTimeMillis is reserved out of the auction budget for the cache call.
	ExpectedTimeMillis int `mapstructure:"expected_millis"`
	// DefaultTTLSeconds is used when the request doesn't set cache.ttlseconds.
	DefaultTTLSeconds int `mapstructure:"default_ttl_seconds"`
}

type Metrics struct {
	Influxdb   InfluxMetrics     `mapstructure:"influxdb"`
	Prometheus PrometheusMetrics `mapstructure:"prometheus"`
}

type InfluxMetrics struct {
	Host     string `mapstructure:"host"`
	Database string `mapstructure:"database"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
}

type PrometheusMetrics struct {
	Enabled   bool   `mapstructure:"enabled"`
	Namespace string `mapstructure:"namespace"`
	Subsystem string `mapstructure:"subsystem"`
}

type Analytics struct {
	File FileLogs `mapstructure:"file"`
}

// FileLogs writes auction objects to a rotating file when Filename is set.
type FileLogs struct {
	Filename string `mapstructure:"filename"`
}

type RateLimiting struct {
	Enabled              bool  `mapstructure:"enabled"`
	MaxRequestsPerSecond int64 `mapstructure:"num_requests"`
}

type Adapter struct {
	Endpoint string `mapstructure:"endpoint"` // Required
	Disabled bool   `mapstructure:"disabled"`
}

// AuctionTimeout resolves the budget for one request, clamping whatever the caller
// asked for into [min, max]. Zero means "use the default".
func (cfg *Auction) AuctionTimeout(requested int64) time.Duration {
	timeout := requested
	if timeout <= 0 {
		timeout = cfg.DefaultTimeoutMS
	}
	if cfg.MaxTimeoutMS > 0 && timeout > cfg.MaxTimeoutMS {
		timeout = cfg.MaxTimeoutMS
	}
	if timeout < cfg.MinTimeoutMS {
		timeout = cfg.MinTimeoutMS
	}
	return time.Duration(timeout) * time.Millisecond
}

func (cfg *Configuration) validate() error {
	var errs []error
	if cfg.Auction.MaxTimeoutMS > 0 && cfg.Auction.MinTimeoutMS > cfg.Auction.MaxTimeoutMS {
		errs = append(errs, fmt.Errorf("auction.min_timeout_ms (%d) must not exceed auction.max_timeout_ms (%d)", cfg.Auction.MinTimeoutMS, cfg.Auction.MaxTimeoutMS))
	}
	if cfg.Auction.DefaultTimeoutMS <= 0 {
		errs = append(errs, fmt.Errorf("auction.default_timeout_ms must be positive, got %d", cfg.Auction.DefaultTimeoutMS))
	}
	if cfg.MaxRequestSize <= 0 {
		errs = append(errs, fmt.Errorf("max_request_size must be positive, got %d", cfg.MaxRequestSize))
	}
	if cfg.CacheURL.URL != "" && !validator.IsURL(cfg.CacheURL.URL) {
		errs = append(errs, fmt.Errorf("cache.url is not a valid URL: %s", cfg.CacheURL.URL))
	}
	errs = validateAdapters(cfg.Adapters, errs)
	if len(errs) > 0 {
		return errortypes.NewAggregateErrors("validation errors", errs)
	}
	return nil
}

func validateAdapters(adapterMap map[string]Adapter, errs []error) []error {
	for name, adapter := range adapterMap {
		if adapter.Disabled {
			continue
		}
		if adapter.Endpoint == "" {
			errs = append(errs, fmt.Errorf("adapters.%s.endpoint is required", name))
		} else if !validator.IsRequestURL(adapter.Endpoint) {
			errs = append(errs, fmt.Errorf("adapters.%s.endpoint is not a valid URL: %s", name, adapter.Endpoint))
		}
	}
	return errs
}

// New unmarshals the viper instance into a validated Configuration.
func New(v *viper.Viper) (*Configuration, error) {
	var c Configuration
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("viper failed to unmarshal app config: %v", err)
	}
	if err := c.validate(); err != nil {
		return nil, err
	}
	glog.Infof("config loaded: listening on %s:%d, admin on %d", c.Host, c.Port, c.AdminPort)
	return &c, nil
}

// SetupViper registers config file locations, the env var override prefix, and
// the defaults for every key. Defaults keep a bare binary runnable with no
// config file at all.
func SetupViper(v *viper.Viper, filename string) {
	if filename != "" {
		v.SetConfigName(filename)
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/config")
	}

	v.SetDefault("external_url", "http://localhost:8000")
	v.SetDefault("host", "")
	v.SetDefault("port", 8000)
	v.SetDefault("admin_port", 6060)
	v.SetDefault("enable_gzip", false)
	v.SetDefault("status_response", "")
	v.SetDefault("auction.default_timeout_ms", 250)
	v.SetDefault("auction.max_timeout_ms", 2000)
	v.SetDefault("auction.min_timeout_ms", 50)
	v.SetDefault("cache.url", "")
	v.SetDefault("cache.expected_millis", 10)
	v.SetDefault("cache.default_ttl_seconds", 300)
	v.SetDefault("metrics.influxdb.host", "")
	v.SetDefault("metrics.influxdb.database", "")
	v.SetDefault("metrics.influxdb.username", "")
	v.SetDefault("metrics.influxdb.password", "")
	v.SetDefault("metrics.prometheus.enabled", false)
	v.SetDefault("metrics.prometheus.namespace", "bidflare")
	v.SetDefault("metrics.prometheus.subsystem", "auction")
	v.SetDefault("analytics.file.filename", "")
	v.SetDefault("rate_limiter.enabled", false)
	v.SetDefault("rate_limiter.num_requests", 100)
	v.SetDefault("max_request_size", 1024*256)
	v.SetDefault("adapters.generic.endpoint", "http://localhost:8100/openrtb2")
	v.SetDefault("adapters.generic.disabled", true)

	v.SetEnvPrefix("BF")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	v.ReadInConfig()
}
