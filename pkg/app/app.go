// Package app assembles the compute and network services from configuration.
package app

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/mhrivnak/vcompute/pkg/compute"
	"github.com/mhrivnak/vcompute/pkg/config"
	"github.com/mhrivnak/vcompute/pkg/network"
	"github.com/mhrivnak/vcompute/pkg/tasks"
	"github.com/mhrivnak/vcompute/pkg/vcloud"
)

// App holds the wired services of one control-plane session
type App struct {
	Config   *config.Config
	Logger   *slog.Logger
	Client   *vcloud.Client
	Compute  *compute.Service
	Networks *network.Service
	Metrics  *compute.Metrics
}

// New logs in to the configured control plane and builds the services on
// top of the session. Metrics are registered on reg when it is not nil.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger, reg prometheus.Registerer) (*App, error) {
	if err := cfg.ValidateVCloud(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	if cfg.VCloud.InsecureSkipVerify {
		logger.Warn("TLS verification of the control plane is disabled", "endpoint", cfg.VCloud.Endpoint)
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} // #nosec G402 -- operator opt-in
	}

	client, err := vcloud.NewClient(cfg.VCloud.Endpoint, cfg.VCloud.Org, cfg.VCloud.Username, cfg.VCloud.Password,
		vcloud.WithHTTPClient(&http.Client{Transport: transport, Timeout: cfg.VCloud.RequestTimeout}),
		vcloud.WithLogger(logger.With("component", "vcloud")),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create control-plane client: %w", err)
	}
	if err := client.Login(ctx); err != nil {
		return nil, err
	}

	var metrics *compute.Metrics
	if reg != nil {
		metrics = compute.NewMetrics(reg)
	}

	waiter := tasks.NewWaiter(client, client, client, logger.With("component", "tasks"))
	waiter.Interval = cfg.Orchestrator.PollInterval

	networks := network.NewService(client, cfg.VCloud.Region, logger.With("component", "network"))
	computeSvc := compute.NewService(client, compute.Options{
		Waiter:        waiter,
		Networks:      networks,
		Logger:        logger.With("component", "compute"),
		AccountNumber: cfg.VCloud.AccountNumber,
		RegionID:      cfg.VCloud.Region,
		DeleteRetry:   cfg.Orchestrator.DeleteRetry,
		Metrics:       metrics,
	})

	return &App{
		Config:   cfg,
		Logger:   logger,
		Client:   client,
		Compute:  computeSvc,
		Networks: networks,
		Metrics:  metrics,
	}, nil
}
