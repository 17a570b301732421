package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/status-im/nodemanager/appdatabase"
	"github.com/status-im/nodemanager/healthmanager"
	"github.com/status-im/nodemanager/logutils"
	"github.com/status-im/nodemanager/nodemanager"
	"github.com/status-im/nodemanager/params"
	"github.com/status-im/nodemanager/rpc/connection"
	"github.com/status-im/nodemanager/rpc/network"
	"github.com/status-im/nodemanager/rpc/node"
)

// backend wires the registry, the transport and the node manager of a config.
type backend struct {
	config    *params.NodeManagerConfig
	logger    *zap.Logger
	db        *sql.DB
	registry  *network.Manager
	transport *connection.Transport
	manager   *nodemanager.Manager
	health    *healthmanager.NodesHealthManager
}

func loadConfig(cCtx *cli.Context) (*params.NodeManagerConfig, error) {
	var (
		config *params.NodeManagerConfig
		err    error
	)
	if path := cCtx.String(ConfigFlag); path != "" {
		config, err = params.LoadConfigFromFile(path)
	} else {
		config, err = params.NewNodeManagerConfig(cCtx.String(DataDirFlag), params.BuildFlavor(cCtx.String(FlavorFlag)))
	}
	if err != nil {
		return nil, err
	}

	if level := cCtx.String(LogLevelFlag); level != "" {
		config.LogSettings.Enabled = true
		config.LogSettings.Level = level
	}

	return config, config.Validate()
}

// openBackend opens the database and seeds the registry. Nothing connects
// before start.
func openBackend(cCtx *cli.Context) (*backend, error) {
	config, err := loadConfig(cCtx)
	if err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	config.LogSettings.File = config.LogFilePath()
	if err := logutils.OverrideRootLogWithConfig(config.LogSettings); err != nil {
		return nil, err
	}
	logger := logutils.ZapLogger()

	if err := os.MkdirAll(config.DataDir, 0700); err != nil {
		return nil, err
	}
	db, err := appdatabase.InitializeDB(config.DatabasePath(), config.DatabasePassword, config.KDFIterationsNumber)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	var fetcher *network.DefaultNodesFetcher
	if len(config.DefaultNodesURLs) > 0 {
		fetcher = network.NewDefaultNodesFetcher(config.DefaultNodesURLs, config.DefaultNodesCacheTTL.Std(), logger)
	}

	transport := connection.NewTransport(config.Transport, logger)
	registry := network.NewManager(db, transport, fetcher, logger)

	nodes := make([]node.Node, 0, len(config.Nodes))
	for _, n := range config.Nodes {
		nodes = append(nodes, node.Node{Address: n.Address, Name: n.Name})
	}
	if err := registry.Init(nodes); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to seed nodes: %w", err)
	}

	return &backend{
		config:    config,
		logger:    logger,
		db:        db,
		registry:  registry,
		transport: transport,
		manager: nodemanager.New(nodemanager.ConfigFromParams(config), transport, registry,
			nodemanager.WithLogger(logger)),
		health: healthmanager.NewNodesHealthManager(),
	}, nil
}

// start connects to the last selected node and follows the transport.
func (b *backend) start(ctx context.Context) error {
	if err := b.manager.Start(ctx); err != nil {
		return err
	}
	b.health.Start(ctx, b.transport)
	b.transport.Start(ctx)
	return nil
}

// waitConnected blocks until the transport reports Connected.
func (b *backend) waitConnected(ctx context.Context) error {
	connected, cancel := b.manager.SubscribeConnectionState()
	defer cancel()
	for {
		select {
		case ok, open := <-connected:
			if !open {
				return nodemanager.ErrStopped
			}
			if ok {
				return nil
			}
		case <-ctx.Done():
			return fmt.Errorf("no connection to %s: %w", b.transport.URL(), ctx.Err())
		}
	}
}

func (b *backend) stop() {
	b.manager.Stop()
	b.health.Stop()
	b.transport.Stop()
	if err := b.db.Close(); err != nil {
		b.logger.Error("failed to close database", zap.Error(err))
	}
	_ = b.logger.Sync()
}
