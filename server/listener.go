package server

import (
	"net"
	"time"

	"github.com/bidflare/bidflare/metrics"
)

type monitorableConnection struct {
	net.Conn
	metrics metrics.MetricsEngine
}

type monitorableListener struct {
	*net.TCPListener
	metrics metrics.MetricsEngine
}

func (l *monitorableConnection) Close() error {
	err := l.Conn.Close()
	l.metrics.RecordConnectionClose(err == nil)
	return err
}

func (ln *monitorableListener) Accept() (net.Conn, error) {
	tc, err := ln.AcceptTCP()
	if err != nil {
		ln.metrics.RecordConnectionAccept(false)
		return tc, err
	}

	tc.SetKeepAlive(true)
	tc.SetKeepAlivePeriod(3 * time.Minute)
	ln.metrics.RecordConnectionAccept(true)
	return &monitorableConnection{
		tc,
		ln.metrics,
	}, nil
}
