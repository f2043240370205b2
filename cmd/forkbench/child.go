package main

import (
	"context"
	"os"

	"github.com/programme-lv/forkbench/internal/fork"
	"github.com/urfave/cli/v3"
)

// runChild is the subprocess side of the benchmark. Stdout is the reply
// channel, so nothing else may be written to it.
func runChild(_ context.Context, _ *cli.Command) error {
	return fork.Serve(os.Stdin, os.Stdout, os.Getenv(fork.CompressEnv) == "1")
}
