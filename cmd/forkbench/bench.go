package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/programme-lv/forkbench/internal"
	"github.com/programme-lv/forkbench/internal/environment"
	"github.com/programme-lv/forkbench/internal/fork"
	"github.com/programme-lv/forkbench/internal/gatherer/multigath"
	"github.com/programme-lv/forkbench/internal/gatherer/natsgath"
	"github.com/programme-lv/forkbench/internal/gatherer/sqsgath"
	"github.com/programme-lv/forkbench/internal/gatherer/termgath"
	"github.com/programme-lv/forkbench/internal/harness"
	"github.com/programme-lv/forkbench/internal/logging"
	"github.com/programme-lv/forkbench/internal/payload"
	"github.com/programme-lv/forkbench/internal/perf"
	"github.com/programme-lv/forkbench/internal/worker"
	"github.com/urfave/cli/v3"
)

const childCommandName = fork.ChildCommand

func runBench(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	log, err := logging.New(os.Stderr, cfg.Log.Level, cfg.Log.NoColor)
	if err != nil {
		return err
	}
	slog.SetDefault(log)

	p, err := payload.Load(payload.Source{Path: cfg.BlobPath, Sha256: cfg.BlobSha256}, cfg.TaskInput)
	if err != nil {
		return err
	}
	log.Info("payload loaded", "blob", cfg.BlobPath, "bytes", len(p.Blob), "input", p.TaskInput)

	runUuid := uuid.NewString()
	gath, closeGath, err := newGatherer(ctx, cfg, runUuid, log)
	if err != nil {
		return err
	}
	defer closeGath()

	rec := perf.NewRecorder(log)
	h := harness.New(runUuid, rec, gath, log,
		worker.NewRunner(rec, nil, cfg.Timeout(), log),
		fork.NewRunner(rec, fork.Config{
			Command:  cfg.ChildCommand,
			Timeout:  cfg.Timeout(),
			Compress: cfg.Compress,
		}, log),
	)

	summary := h.Run(ctx, p)
	if len(summary.Failed) > 0 {
		log.Warn("run finished with failures", "failed", len(summary.Failed))
	}
	return nil
}

func loadConfig(cmd *cli.Command) (*environment.Config, error) {
	path := cmd.String("config")
	required := path != ""
	if !required {
		path = environment.DefaultConfigPath()
	}

	cfg, err := environment.Load(path, required)
	if err != nil {
		return nil, err
	}

	if cmd.IsSet("blob") {
		cfg.BlobPath = cmd.String("blob")
	}
	if cmd.IsSet("blob-sha256") {
		cfg.BlobSha256 = cmd.String("blob-sha256")
	}
	if cmd.IsSet("input") {
		input, err := payload.ParseTaskInput(cmd.String("input"))
		if err != nil {
			return nil, err
		}
		cfg.TaskInput = input
	}
	if cmd.IsSet("timeout") {
		cfg.TimeoutMs = cmd.Duration("timeout").Milliseconds()
	}
	if cmd.IsSet("compress") {
		cfg.Compress = cmd.Bool("compress")
	}
	if cmd.IsSet("sink") {
		cfg.Sinks = cmd.StringSlice("sink")
	}
	if cmd.IsSet("log-level") {
		cfg.Log.Level = cmd.String("log-level")
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func newGatherer(ctx context.Context, cfg *environment.Config, runUuid string, log *slog.Logger) (internal.Gatherer, func(), error) {
	var gs []internal.Gatherer
	var closers []func()
	closeAll := func() {
		for _, c := range closers {
			c()
		}
	}

	for _, sink := range cfg.Sinks {
		switch sink {
		case environment.SinkTerm:
			gs = append(gs, termgath.New(os.Stdout))
		case environment.SinkNats:
			nc, err := nats.Connect(cfg.Nats.URL, nats.Name("forkbench"))
			if err != nil {
				closeAll()
				return nil, nil, fmt.Errorf("failed to connect to NATS: %w", err)
			}
			closers = append(closers, func() {
				if err := nc.Drain(); err != nil {
					log.Warn("failed to drain NATS connection", "error", err)
				}
			})
			gs = append(gs, natsgath.New(nc, runUuid, cfg.Nats.Subject, log))
		case environment.SinkSqs:
			g, err := sqsgath.NewFromConfig(ctx, cfg.Sqs.Region, cfg.Sqs.Profile, runUuid, cfg.Sqs.QueueURL, log)
			if err != nil {
				closeAll()
				return nil, nil, err
			}
			gs = append(gs, g)
		}
	}
	return multigath.New(gs...), closeAll, nil
}
