// Command fullnoded runs the block validator against a caller-supplied network
// gateway. It owns process wiring only: flag parsing, config validation and signal
// handling. All consensus, storage and branch-selection logic lives in package node.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"

	"ledgercore.dev/node/crypto"
	"ledgercore.dev/node/node"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	defaults := node.DefaultConfig()
	return &cli.App{
		Name:  "fullnoded",
		Usage: "validate blocks and serve the resulting chain state",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "datadir", Value: defaults.DataDir, Usage: "node data directory"},
			&cli.StringFlag{Name: "bind", Value: defaults.BindAddr, Usage: "bind address host:port"},
			&cli.StringFlag{Name: "log-level", Value: defaults.LogLevel, Usage: "log level: debug|info|warn|error"},
			&cli.StringFlag{Name: "log-file", Value: "", Usage: "rotating log file path (stderr only if empty)"},
			&cli.StringSliceFlag{Name: "peer", Usage: "bootstrap peer host:port (repeatable)"},
			&cli.IntFlag{Name: "max-peers", Value: defaults.MaxPeers, Usage: "max connected peers"},
			&cli.BoolFlag{Name: "dry-run", Usage: "print effective config and exit"},
		},
		Action: runNode,
	}
}

func runNode(c *cli.Context) error {
	cfg := node.DefaultConfig()
	cfg.DataDir = c.String("datadir")
	cfg.BindAddr = c.String("bind")
	cfg.LogLevel = c.String("log-level")
	cfg.LogFile = c.String("log-file")
	cfg.MaxPeers = c.Int("max-peers")
	cfg.Peers = node.NormalizePeers(c.StringSlice("peer")...)

	if err := node.ValidateConfig(cfg); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	enc := json.NewEncoder(c.App.Writer)
	enc.SetIndent("", "  ")
	if err := enc.Encode(cfg); err != nil {
		return err
	}
	if c.Bool("dry-run") {
		return nil
	}

	sink, flush, err := node.NewZapErrorSink(node.LogConfig{LogFile: cfg.LogFile})
	if err != nil {
		return fmt.Errorf("logger init failed: %w", err)
	}
	defer flush()

	v, err := node.NewValidator(cfg, crypto.NewStdProvider(), sink)
	if err != nil {
		return fmt.Errorf("validator init failed: %w", err)
	}
	defer v.Store.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	gw, ok := c.App.Metadata["gateway"].(node.NetworkGateway)
	if !ok {
		fmt.Fprintln(c.App.Writer, "fullnoded: no network gateway configured, idling until signalled")
		<-ctx.Done()
		return nil
	}
	return v.Run(ctx, gw)
}
