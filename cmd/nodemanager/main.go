package main

import (
	"os"
	"time"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
)

const (
	ConfigFlag      = "config"
	DataDirFlag     = "datadir"
	FlavorFlag      = "flavor"
	LogLevelFlag    = "log-level"
	AddressFlag     = "address"
	MetricsPortFlag = "metrics-port"
	TimeoutFlag     = "timeout"
	NameFlag        = "name"
)

var commonFlags = []cli.Flag{
	&cli.StringFlag{
		Name:    ConfigFlag,
		Aliases: []string{"c"},
		Usage:   "Path to a JSON config file",
	},
	&cli.StringFlag{
		Name:  DataDirFlag,
		Value: "./nodemanager-data",
		Usage: "Data directory for the database and logs, ignored when the config sets one",
	},
	&cli.StringFlag{
		Name:  FlavorFlag,
		Value: "production",
		Usage: "Build flavor whose default nodes are used without a config file",
	},
	&cli.StringFlag{
		Name:  LogLevelFlag,
		Usage: `Log level, one of: "ERROR", "WARN", "INFO", "DEBUG"`,
	},
}

var timeoutFlag = &cli.DurationFlag{
	Name:  TimeoutFlag,
	Value: 30 * time.Second,
	Usage: "How long to wait for the connection and the request",
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "nodemanager",
		Usage: "Manage the RPC node the wallet is connected to",
		Commands: []*cli.Command{
			{
				Name:  "serve",
				Usage: "Keep a node connected and expose the signals and HTTP API",
				Flags: append([]cli.Flag{
					&cli.StringFlag{
						Name:    AddressFlag,
						Aliases: []string{"a"},
						Usage:   "host:port for the signals server, overrides the config",
					},
					&cli.IntFlag{
						Name:  MetricsPortFlag,
						Usage: "Port for the metrics server, overrides the config",
					},
				}, commonFlags...),
				Action: serve,
			},
			{
				Name:   "nodes",
				Usage:  "List the registered nodes",
				Flags:  commonFlags,
				Action: listNodes,
			},
			{
				Name:   "fetch-defaults",
				Usage:  "Download the default nodes catalog and merge it into the registry",
				Flags:  append([]cli.Flag{timeoutFlag}, commonFlags...),
				Action: fetchDefaults,
			},
			{
				Name:      "connect",
				Usage:     "Switch to the node at the given address",
				ArgsUsage: "<address>",
				Flags: append([]cli.Flag{
					timeoutFlag,
					&cli.StringFlag{
						Name:  NameFlag,
						Usage: "Node name, looked up in the registry when empty",
					},
				}, commonFlags...),
				Action: connect,
			},
			{
				Name:      "check-genesis",
				Usage:     "Check that the node at the given url serves the expected chain",
				ArgsUsage: "<url>",
				Flags:     append([]cli.Flag{timeoutFlag}, commonFlags...),
				Action:    checkGenesis,
			},
		},
	}
}

func main() {
	if err := newApp().Run(os.Args); err != nil {
		zap.S().Fatal(err)
	}
}
