package service

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsServer exposes the prometheus registry on /metrics.
type MetricsServer struct {
	ctx      context.Context
	server   *http.Server
	Gatherer prometheus.Gatherer // defaults to prometheus.DefaultGatherer
}

func (m *MetricsServer) Handler() http.Handler {
	g := m.Gatherer
	if g == nil {
		g = prometheus.DefaultGatherer
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(g, promhttp.HandlerOpts{}))
	return mux
}

func (m *MetricsServer) Start(ctx context.Context, addr string) error {
	m.server = &http.Server{
		Handler: m.Handler(),
		Addr:    addr,
	}
	m.ctx = ctx
	return m.server.ListenAndServe()
}

func (m *MetricsServer) Shutdown() error {
	if m.server == nil {
		return nil
	}
	return m.server.Shutdown(m.ctx)
}
