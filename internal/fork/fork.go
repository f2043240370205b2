// Package fork runs the transform in a separate OS process. The payload is
// sent over the child's stdin and the single reply comes back on its stdout.
package fork

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/programme-lv/forkbench/api"
	"github.com/programme-lv/forkbench/internal/oneshot"
	"github.com/programme-lv/forkbench/internal/perf"
	"github.com/programme-lv/forkbench/internal/wire"
	"golang.org/x/sync/errgroup"
)

const (
	StartMark    = "fork start"
	EndMark      = "fork end"
	IntervalName = "fork"

	// ChildCommand is the subcommand of our own executable that serves one request.
	ChildCommand = "child"
	// CompressEnv tells the child to compress its reply frame.
	CompressEnv = "FORKBENCH_WIRE_COMPRESS"

	// exitGrace is how long a child may take to exit on its own after replying.
	exitGrace = time.Second

	maxStderr   = 64 * 1024
	stderrLines = 10
	stderrWidth = 200
)

var ErrSubprocessFailure = errors.New("subprocess failure")

type Config struct {
	// Command is the child argv. Empty means "<own executable> child".
	Command  []string
	Env      []string
	Timeout  time.Duration
	Compress bool
}

type Runner struct {
	rec *perf.Recorder
	cfg Config
	log *slog.Logger
}

func NewRunner(rec *perf.Recorder, cfg Config, log *slog.Logger) *Runner {
	if log == nil {
		log = slog.Default()
	}
	return &Runner{
		rec: rec,
		cfg: cfg,
		log: log.With("model", api.Subprocess),
	}
}

func DefaultCommand() ([]string, error) {
	exe, err := os.Executable()
	if err != nil {
		return nil, fmt.Errorf("failed to locate own executable: %w", err)
	}
	return []string{exe, ChildCommand}, nil
}

func (r *Runner) Model() api.Model { return api.Subprocess }

func (r *Runner) IntervalName() string { return IntervalName }

// Run spawns one child process, sends it the payload, waits for its single
// reply and records the "fork" interval. A child that outlives its reply by
// more than exitGrace is killed; either way it is reaped before returning.
func (r *Runner) Run(ctx context.Context, p *api.Payload) (*api.RunResult, error) {
	argv := r.cfg.Command
	if len(argv) == 0 {
		var err error
		argv, err = DefaultCommand()
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrSubprocessFailure, err)
		}
	}

	if r.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.cfg.Timeout)
		defer cancel()
	}

	r.rec.Mark(StartMark)
	child, err := r.start(ctx, argv, p)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSubprocessFailure, err)
	}

	msg, err := child.reply.Await(ctx)
	if err != nil {
		child.stop(r.log)
		return nil, fmt.Errorf("%w: %w", ErrSubprocessFailure, err)
	}

	r.rec.Mark(EndMark)
	res := &api.RunResult{Model: api.Subprocess, Output: msg}
	if iv, err := r.rec.Measure(IntervalName, StartMark, EndMark); err == nil {
		res.Duration = iv.Duration
	}

	child.stop(r.log)
	r.log.Debug("child replied", "pid", msg.Pid, "duration", res.Duration)
	return res, nil
}

type process struct {
	cmd    *exec.Cmd
	stderr *limitWriter
	reply  *oneshot.Value[*api.Reply]
	g      *errgroup.Group
	exited chan struct{}
}

func (r *Runner) start(ctx context.Context, argv []string, p *api.Payload) (*process, error) {
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Env = append(os.Environ(), r.cfg.Env...)
	if r.cfg.Compress {
		cmd.Env = append(cmd.Env, CompressEnv+"=1")
	}
	cmd.WaitDelay = exitGrace

	stderr := &limitWriter{limit: maxStderr}
	cmd.Stderr = stderr

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, err
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, err
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start %s: %w", argv[0], err)
	}

	enc, err := wire.NewEncoder(stdin, r.cfg.Compress)
	if err != nil {
		_ = cmd.Process.Kill()
		_ = cmd.Wait()
		return nil, err
	}

	proc := &process{
		cmd:    cmd,
		stderr: stderr,
		reply:  oneshot.New[*api.Reply]("fork", r.log),
		g:      &errgroup.Group{},
		exited: make(chan struct{}),
	}

	proc.g.Go(func() error {
		defer enc.Close()
		defer stdin.Close()
		if err := enc.Encode(p); err != nil {
			return fmt.Errorf("failed to send payload: %w", err)
		}
		return nil
	})

	proc.g.Go(func() error {
		readErr := proc.readReplies(stdout)
		if readErr != nil {
			_, _ = io.Copy(io.Discard, stdout)
		}
		waitErr := cmd.Wait()
		close(proc.exited)
		proc.reply.Close(proc.exitCause(waitErr))
		return readErr
	})

	return proc, nil
}

// readReplies forwards every frame to the reply future until the child
// closes stdout. Only the first one is kept.
func (proc *process) readReplies(stdout io.Reader) error {
	dec := wire.NewDecoder(stdout)
	defer dec.Close()
	for {
		msg := &api.Reply{}
		err := dec.Decode(msg)
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to read reply: %w", err)
		}
		proc.reply.Send(msg)
	}
}

func (proc *process) exitCause(waitErr error) error {
	tail := tailToRect(strings.TrimSpace(proc.stderr.String()), stderrLines, stderrWidth)
	switch {
	case waitErr != nil && tail != "":
		return fmt.Errorf("child exited: %w; stderr: %s", waitErr, tail)
	case waitErr != nil:
		return fmt.Errorf("child exited: %w", waitErr)
	case tail != "":
		return fmt.Errorf("child exited cleanly; stderr: %s", tail)
	default:
		return errors.New("child exited cleanly")
	}
}

// stop gives the child exitGrace to exit after its stdin is closed, kills it
// if it is still around, and then reaps it.
func (proc *process) stop(log *slog.Logger) {
	select {
	case <-proc.exited:
	case <-time.After(exitGrace):
		log.Warn("child still running after reply, killing", "pid", proc.cmd.Process.Pid)
		if err := proc.cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
			log.Warn("failed to kill child", "error", err)
		}
	}
	proc.reap(log)
}

// reap waits for both pipe goroutines and the child's exit.
func (proc *process) reap(log *slog.Logger) {
	if err := proc.g.Wait(); err != nil {
		log.Warn("child pipe error", "error", err)
	}
	if s := proc.stderr.String(); s != "" {
		log.Debug("child stderr", "stderr", s)
	}
	if dropped := proc.reply.Dropped(); dropped > 0 {
		log.Warn("child sent more than one reply", "extra", dropped)
	}
}
