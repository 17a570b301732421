package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	gethmetrics "github.com/ethereum/go-ethereum/metrics"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/status-im/nodemanager/common"
	"github.com/status-im/nodemanager/metrics"
	"github.com/status-im/nodemanager/nodemanager"
	"github.com/status-im/nodemanager/server"
)

const (
	shutdownTimeout = 5 * time.Second
	apiBurst        = 3
)

func serve(cCtx *cli.Context) error {
	b, err := openBackend(cCtx)
	if err != nil {
		return err
	}
	defer b.stop()

	logger := b.logger
	logger.Info("running serve command", zap.String("flags", flagsUsed(cCtx)))

	address := b.config.SignalsAddress
	if cCtx.IsSet(AddressFlag) {
		address = cCtx.String(AddressFlag)
	}
	metricsPort := b.config.MetricsPort
	if cCtx.IsSet(MetricsPortFlag) {
		metricsPort = cCtx.Int(MetricsPortFlag)
	}

	ctx, cancel := context.WithCancel(cCtx.Context)
	defer cancel()

	nodemanager.RegisterMetrics()
	if metricsPort > 0 {
		metricsServer := metrics.NewMetricsServer(metricsPort, gethmetrics.DefaultRegistry)
		go metricsServer.Listen()
		defer func() {
			stopCtx, stopCancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer stopCancel()
			if err := metricsServer.Stop(stopCtx); err != nil {
				logger.Error("failed to stop metrics server", zap.Error(err))
			}
		}()
	}

	if address != "" {
		api := server.NewAPI(b.manager, b.registry, b.health, logger).WithAppState(b.transport)
		if b.config.APIRequestsPerSecond > 0 {
			api.WithRateLimit(rate.Limit(b.config.APIRequestsPerSecond), apiBurst)
		}
		srv := server.NewServer(api, logger)
		if err := srv.Listen(address); err != nil {
			return err
		}
		srv.Setup()
		go srv.Serve()
		logger.Info("server started", zap.String("address", srv.Address()))
		defer func() {
			stopCtx, stopCancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer stopCancel()
			srv.Stop(stopCtx)
		}()
	}

	if err := b.start(ctx); err != nil {
		return err
	}

	if len(b.config.DefaultNodesURLs) > 0 {
		go func() {
			defer common.LogOnPanic()
			nodes, err := b.registry.FetchDefaultNodes(ctx)
			if err != nil {
				logger.Warn("failed to fetch default nodes", zap.Error(err))
				return
			}
			logger.Info("default nodes merged", zap.Int("nodes", len(nodes)))
		}()
	}

	events, unsubscribe := b.manager.SubscribeEvents()
	defer unsubscribe()
	go func() {
		defer common.LogOnPanic()
		for ev := range events {
			logger.Info("node event", zap.Stringer("event", ev))
		}
	}()

	waitForSigExit()
	logger.Info("exiting")
	return nil
}

func waitForSigExit() {
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
}
