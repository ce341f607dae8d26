package adapters

import (
	"net/http"
	"time"
)

// HTTPAdapterConfig groups options which control how HTTP requests are made to bidders.
type HTTPAdapterConfig struct {
	// See IdleConnTimeout on https://golang.org/pkg/net/http/#Transport
	IdleConnTimeout time.Duration
	// See MaxIdleConns on https://golang.org/pkg/net/http/#Transport
	MaxConns int
	// See MaxIdleConnsPerHost on https://golang.org/pkg/net/http/#Transport
	MaxConnsPerHost int
}

// DefaultHTTPAdapterConfig is an HTTPAdapterConfig that chooses sensible default values.
var DefaultHTTPAdapterConfig = &HTTPAdapterConfig{
	MaxConns:        50,
	MaxConnsPerHost: 10,
	IdleConnTimeout: 60 * time.Second,
}

// NewHTTPClient creates an http.Client which obeys the rules given by the config.
// All bidder calls for one adapter share this client, so the connection pool is
// sized per partner rather than per request.
func NewHTTPClient(c *HTTPAdapterConfig) *http.Client {
	return &http.Client{
		Transport: &http.Transport{
			MaxIdleConns:        c.MaxConns,
			MaxIdleConnsPerHost: c.MaxConnsPerHost,
			IdleConnTimeout:     c.IdleConnTimeout,
		},
	}
}
