package server

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/NYTimes/gziphandler"
	"github.com/golang/glog"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/bidflare/bidflare/config"
	"github.com/bidflare/bidflare/metrics"
	metricsConf "github.com/bidflare/bidflare/metrics/config"
)

// Listen blocks forever, serving auction requests on the configured ports, until
// the process receives SIGTERM or SIGINT.
func Listen(cfg *config.Configuration, handler http.Handler, metricsEngine *metricsConf.DetailedMetricsEngine) {
	stopSignals := make(chan os.Signal, 1)
	signal.Notify(stopSignals, syscall.SIGTERM, syscall.SIGINT)

	// Run the servers. Fan any process-stopper signals out to each server for
	// graceful shutdowns.
	stopMain := make(chan os.Signal)
	stopAdmin := make(chan os.Signal)
	done := make(chan struct{})

	mainServer := newMainServer(cfg, handler)
	go shutdownAfterSignals(mainServer, stopMain, done)

	adminServer := newAdminServer(cfg, metricsEngine)
	go shutdownAfterSignals(adminServer, stopAdmin, done)

	mainListener, err := newListener(mainServer.Addr, metricsEngine)
	if err != nil {
		glog.Errorf("Error listening for TCP connections on %s: %v for main server", mainServer.Addr, err)
		return
	}
	adminListener, err := newListener(adminServer.Addr, nil)
	if err != nil {
		glog.Errorf("Error listening for TCP connections on %s: %v for admin server", adminServer.Addr, err)
		return
	}
	go runServer(mainServer, "Main", mainListener)
	go runServer(adminServer, "Admin", adminListener)

	wait(stopSignals, done, stopMain, stopAdmin)
}

func newMainServer(cfg *config.Configuration, handler http.Handler) *http.Server {
	serverHandler := handler
	if cfg.EnableGzip {
		serverHandler = gziphandler.GzipHandler(handler)
	}

	return &http.Server{
		Addr:         cfg.Host + ":" + strconv.Itoa(cfg.Port),
		Handler:      serverHandler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}
}

// newAdminServer serves the operational surface: pprof from the default mux, plus
// /metrics when a prometheus engine is configured.
func newAdminServer(cfg *config.Configuration, metricsEngine *metricsConf.DetailedMetricsEngine) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/", http.DefaultServeMux)
	if metricsEngine != nil && metricsEngine.PrometheusMetrics != nil {
		mux.Handle("/metrics", promhttp.HandlerFor(metricsEngine.PrometheusMetrics.Registry, promhttp.HandlerOpts{
			ErrorLog: loggerForPrometheus{},
		}))
	}

	return &http.Server{
		Addr:    cfg.Host + ":" + strconv.Itoa(cfg.AdminPort),
		Handler: mux,
	}
}

type loggerForPrometheus struct{}

func (loggerForPrometheus) Println(v ...interface{}) {
	glog.Warningln(v...)
}

func runServer(server *http.Server, name string, listener net.Listener) {
	glog.Infof("%s server starting on: %s", name, server.Addr)
	err := server.Serve(listener)
	glog.Errorf("%s server quit with error: %v", name, err)
}

func newListener(address string, metricsEngine metrics.MetricsEngine) (net.Listener, error) {
	ln, err := net.Listen("tcp", address)
	if err != nil {
		return nil, fmt.Errorf("Error listening for TCP connections on %s: %v", address, err)
	}

	// This cast is in Go's core libs as Server.ListenAndServe(), so it _should_ be
	// safe, but just in case it changes in a future version...
	if casted, ok := ln.(*net.TCPListener); ok {
		if metricsEngine != nil {
			ln = &monitorableListener{casted, metricsEngine}
		}
	} else {
		glog.Warning("net.Listen(\"tcp\", addr) didn't return a TCPListener. Things will probably work fine... but this should be investigated.")
	}

	return ln, nil
}

func wait(inbound <-chan os.Signal, done <-chan struct{}, outbound ...chan<- os.Signal) {
	sig := <-inbound

	for i := 0; i < len(outbound); i++ {
		go sendSignal(outbound[i], sig)
	}

	for i := 0; i < len(outbound); i++ {
		<-done
	}
}

func shutdownAfterSignals(server *http.Server, stopper <-chan os.Signal, done chan<- struct{}) {
	sig := <-stopper

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	glog.Infof("Stopping %s because of signal: %s", server.Addr, sig.String())
	if err := server.Shutdown(ctx); err != nil {
		glog.Errorf("Failed to shutdown %s: %v", server.Addr, err)
	}
	done <- struct{}{}
}

func sendSignal(to chan<- os.Signal, sig os.Signal) {
	to <- sig
}
