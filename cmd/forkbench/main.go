package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v3"
)

func newCommand() *cli.Command {
	return &cli.Command{
		Name:  "forkbench",
		Usage: "compare the round-trip latency of an in-process worker and a subprocess",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "TOML config file (default $XDG_CONFIG_HOME/forkbench/config.toml)",
				Sources: cli.EnvVars("FORKBENCH_CONFIG"),
			},
			&cli.StringFlag{Name: "blob", Usage: "path of the blob sent to both runners"},
			&cli.StringFlag{Name: "blob-sha256", Usage: "expected hex sha256 of the blob"},
			&cli.StringFlag{Name: "input", Usage: "comma separated task input, e.g. 24,19,48,30"},
			&cli.DurationFlag{Name: "timeout", Usage: "per-runner timeout, 0 waits forever"},
			&cli.BoolFlag{Name: "compress", Usage: "zstd-compress frames sent to the child"},
			&cli.StringSliceFlag{Name: "sink", Usage: "report sinks: term, nats, sqs"},
			&cli.StringFlag{Name: "log-level", Usage: "debug, info, warn or error"},
		},
		Action: runBench,
		Commands: []*cli.Command{
			{
				Name:   childCommandName,
				Usage:  "serve a single payload on stdin/stdout",
				Hidden: true,
				Action: runChild,
			},
		},
	}
}

func main() {
	cmd := newCommand()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := cmd.Run(ctx, os.Args); err != nil {
		slog.Error("forkbench failed", "error", err)
		stop()
		os.Exit(1)
	}
}
