package router

import (
	"net/http"

	"github.com/didip/tollbooth"
	"github.com/golang/glog"
	"github.com/julienschmidt/httprouter"
	"github.com/rs/cors"

	"github.com/bidflare/bidflare/adapters"
	analyticsConf "github.com/bidflare/bidflare/analytics/config"
	"github.com/bidflare/bidflare/auction"
	"github.com/bidflare/bidflare/cacheclient"
	"github.com/bidflare/bidflare/config"
	"github.com/bidflare/bidflare/endpoints"
	"github.com/bidflare/bidflare/exchange"
	metricsConf "github.com/bidflare/bidflare/metrics/config"
)

const (
	schemaDirectory = "static/bidder-params"
	infoDirectory   = "static/bidder-info"
)

type Router struct {
	*httprouter.Router
	MetricsEngine   *metricsConf.DetailedMetricsEngine
	ParamsValidator auction.BidderParamValidator
}

// New builds the full request-handling stack from the app config: metrics,
// analytics, the bidder adapters, the exchange, and every HTTP endpoint.
func New(cfg *config.Configuration) (*Router, error) {
	r := &Router{
		Router: httprouter.New(),
	}

	generalHttpClient := adapters.NewHTTPClient(adapters.DefaultHTTPAdapterConfig)

	r.MetricsEngine = metricsConf.NewMetricsEngine(cfg, auction.CoreBidderNames())

	analyticsModule := analyticsConf.NewAnalytics(&cfg.Analytics)

	paramsValidator, err := auction.NewBidderParamsValidator(schemaDirectory)
	if err != nil {
		glog.Fatalf("Failed to create the bidder params validator. %v", err)
	}
	r.ParamsValidator = paramsValidator

	bidderInfos, err := config.LoadBidderInfos(infoDirectory, auction.CoreBidderNames())
	if err != nil {
		glog.Fatal(err)
	}

	var cacheClient cacheclient.Client
	if cfg.CacheURL.URL != "" {
		cacheClient = cacheclient.NewClient(&cfg.CacheURL, r.MetricsEngine)
	}

	ex := exchange.NewExchange(generalHttpClient, cacheClient, cfg, bidderInfos, r.MetricsEngine)

	auctionEndpoint, err := endpoints.NewAuctionEndpoint(ex, paramsValidator, cfg, r.MetricsEngine, analyticsModule)
	if err != nil {
		glog.Fatalf("Failed to create the auction endpoint handler. %v", err)
	}

	r.POST("/auction", auctionEndpoint)
	r.GET("/status", endpoints.NewStatusEndpoint(cfg.StatusResponse))
	r.GET("/info/bidders", endpoints.NewBiddersEndpoint())
	r.GET("/info/bidders/:bidderName", endpoints.NewBidderDetailsEndpoint(bidderInfos))
	r.GET("/bidders/params", endpoints.NewBidderParamsEndpoint(paramsValidator))

	return r, nil
}

// Handler wraps the router with the shared middleware. The order matters: rate
// limiting runs first so rejected requests are as cheap as possible.
func Handler(cfg *config.Configuration, r *Router) http.Handler {
	var handler http.Handler = r
	handler = NoCache{Handler: handler}
	handler = SupportCORS(handler)
	if cfg.RateLimit.Enabled {
		handler = limitRate(cfg.RateLimit.MaxRequestsPerSecond, handler)
	}
	return handler
}

type NoCache struct {
	Handler http.Handler
}

func (m NoCache) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Add("Cache-Control", "no-cache, no-store, must-revalidate")
	w.Header().Add("Pragma", "no-cache")
	w.Header().Add("Expires", "0")
	m.Handler.ServeHTTP(w, r)
}

// SupportCORS allows any origin, with credentials. The auction endpoint carries no
// authorization cookies, so the open policy exposes nothing sensitive.
func SupportCORS(handler http.Handler) http.Handler {
	c := cors.New(cors.Options{
		AllowCredentials: true,
		AllowOriginFunc: func(string) bool {
			return true
		},
		AllowedHeaders: []string{"Origin", "X-Requested-With", "Content-Type", "Accept"}})
	return c.Handler(handler)
}

func limitRate(maxRequestsPerSecond int64, handler http.Handler) http.Handler {
	limiter := tollbooth.NewLimiter(float64(maxRequestsPerSecond), nil)
	limiter.SetMessage("Too many requests")
	limiter.SetMessageContentType("text/plain; charset=utf-8")
	return tollbooth.LimitHandler(limiter, handler)
}
