// Package service runs the optional healthz and metrics endpoints next to a
// test run.
package service

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strconv"

	"github.com/ethereum-optimism/infra/op-karmatic/metrics"
	"github.com/ethereum/go-ethereum/log"
)

const (
	HealthzHost = "0.0.0.0"
	HealthzPort = "8080"
)

// Config selects where the servers listen. Nothing is started unless
// Enabled is set.
type Config struct {
	Enabled     bool
	MetricsAddr string
	MetricsPort int
	HealthzAddr string // host:port, defaults to HealthzHost:HealthzPort
}

type Service struct {
	cfg     Config
	Healthz *HealthzServer
	Metrics *MetricsServer
}

func New(cfg Config) *Service {
	return &Service{
		cfg:     cfg,
		Healthz: &HealthzServer{},
		Metrics: &MetricsServer{},
	}
}

func (s *Service) Start(ctx context.Context) {
	if !s.cfg.Enabled {
		log.Debug("metrics disabled, not starting service")
		return
	}
	log.Info("service starting")

	go func() {
		addr := s.cfg.HealthzAddr
		if addr == "" {
			addr = net.JoinHostPort(HealthzHost, HealthzPort)
		}
		log.Info("starting healthz server", "addr", addr)
		if err := s.Healthz.Start(ctx, addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("error starting healthz server", "err", err)
			metrics.RecordErrorDetails("error starting healthz server", err)
		}
	}()

	go func() {
		addr := net.JoinHostPort(s.cfg.MetricsAddr, strconv.Itoa(s.cfg.MetricsPort))
		log.Info("starting metrics server", "addr", addr)
		if err := s.Metrics.Start(ctx, addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("error starting metrics server", "err", err)
			metrics.RecordErrorDetails("error starting metrics server", err)
		}
	}()
}

func (s *Service) Shutdown() {
	if !s.cfg.Enabled {
		return
	}
	log.Info("service shutting down")
	_ = s.Healthz.Shutdown()
	_ = s.Metrics.Shutdown()
	log.Info("service stopped")
}
