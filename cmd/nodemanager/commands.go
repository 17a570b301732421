package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/status-im/nodemanager/nodemanager"
	"github.com/status-im/nodemanager/rpc/node"
	"github.com/status-im/nodemanager/signal"
)

func listNodes(cCtx *cli.Context) error {
	b, err := openBackend(cCtx)
	if err != nil {
		return err
	}
	defer b.stop()

	nodes, err := b.registry.Nodes()
	if err != nil {
		return err
	}
	return printJSON(nodes)
}

func fetchDefaults(cCtx *cli.Context) error {
	b, err := openBackend(cCtx)
	if err != nil {
		return err
	}
	defer b.stop()

	ctx, cancel := context.WithTimeout(cCtx.Context, cCtx.Duration(TimeoutFlag))
	defer cancel()

	nodes, err := b.registry.FetchDefaultNodes(ctx)
	if err != nil {
		return err
	}
	return printJSON(nodes)
}

func connect(cCtx *cli.Context) error {
	address := cCtx.Args().First()
	if address == "" {
		return errors.New("missing node address")
	}

	return runRequest(cCtx, func(ctx context.Context, b *backend) (*nodemanager.Request, error) {
		target := node.Node{Address: address, Name: cCtx.String(NameFlag)}
		if target.Name == "" {
			registered, err := b.registry.Find(address)
			if err != nil {
				return nil, fmt.Errorf("node %s: %w", address, err)
			}
			target = *registered
		}
		return b.manager.TryToConnect(ctx, target)
	})
}

func checkGenesis(cCtx *cli.Context) error {
	url := cCtx.Args().First()
	if url == "" {
		return errors.New("missing node url")
	}

	return runRequest(cCtx, func(ctx context.Context, b *backend) (*nodemanager.Request, error) {
		return b.manager.CheckGenesisHash(ctx, url)
	})
}

// runRequest connects to the selected node, submits one request and prints
// the event resolving it.
func runRequest(cCtx *cli.Context, submit func(context.Context, *backend) (*nodemanager.Request, error)) error {
	b, err := openBackend(cCtx)
	if err != nil {
		return err
	}
	defer b.stop()

	ctx, cancel := context.WithTimeout(cCtx.Context, cCtx.Duration(TimeoutFlag))
	defer cancel()

	if err := b.start(ctx); err != nil {
		return err
	}
	if err := b.waitConnected(ctx); err != nil {
		return err
	}

	request, err := submit(ctx, b)
	if err != nil {
		return err
	}
	ev, err := request.Wait(ctx)
	if err != nil {
		return err
	}

	signalType, payload := ev.Signal()
	return printJSON(signal.NewEnvelope(string(signalType), payload))
}

func printJSON(v interface{}) error {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}

func flagsUsed(cCtx *cli.Context) string {
	var sb strings.Builder
	for _, flag := range cCtx.Command.Flags {
		if flag != nil && len(flag.Names()) > 0 {
			fName := flag.Names()[0]
			fmt.Fprintf(&sb, "\t-%s %v\n", fName, cCtx.Value(fName))
		}
	}
	return sb.String()
}
