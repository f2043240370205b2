// Package worker runs the transform on a goroutine that shares the process
// memory but only sees what is handed over at construction.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/programme-lv/forkbench/api"
	"github.com/programme-lv/forkbench/internal/oneshot"
	"github.com/programme-lv/forkbench/internal/perf"
	"github.com/programme-lv/forkbench/internal/transform"
)

const (
	StartMark    = "worker start"
	EndMark      = "worker end"
	IntervalName = "worker"
)

var ErrWorkerFailure = errors.New("worker failure")

// Init is the one-shot initialization record given to a worker when it is created.
type Init struct {
	TaskInput []int64
	Blob      []byte
}

// Entry is the worker body. It must call reply exactly once; further calls are dropped.
type Entry func(ctx context.Context, init Init, reply func(*api.Reply) bool) error

// TransformEntry replies with the transform of init.
func TransformEntry(_ context.Context, init Init, reply func(*api.Reply) bool) error {
	reply(transform.Apply(&api.Payload{TaskInput: init.TaskInput, Blob: init.Blob}))
	return nil
}

type Runner struct {
	rec     *perf.Recorder
	entry   Entry
	timeout time.Duration
	log     *slog.Logger
}

// NewRunner creates a runner executing entry, or TransformEntry when entry is nil.
// A zero timeout waits for as long as ctx allows.
func NewRunner(rec *perf.Recorder, entry Entry, timeout time.Duration, log *slog.Logger) *Runner {
	if entry == nil {
		entry = TransformEntry
	}
	if log == nil {
		log = slog.Default()
	}
	return &Runner{
		rec:     rec,
		entry:   entry,
		timeout: timeout,
		log:     log.With("model", api.InProcess),
	}
}

func (r *Runner) Model() api.Model { return api.InProcess }

func (r *Runner) IntervalName() string { return IntervalName }

// Run spawns one worker, waits for its single reply and records the "worker" interval.
func (r *Runner) Run(ctx context.Context, p *api.Payload) (*api.RunResult, error) {
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	r.rec.Mark(StartMark)
	reply := r.spawn(ctx, Init{TaskInput: p.TaskInput, Blob: p.Blob})

	msg, err := reply.Await(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrWorkerFailure, err)
	}
	if msg == nil {
		return nil, fmt.Errorf("%w: empty reply", ErrWorkerFailure)
	}

	r.rec.Mark(EndMark)
	res := &api.RunResult{Model: api.InProcess, Output: msg}
	if iv, err := r.rec.Measure(IntervalName, StartMark, EndMark); err == nil {
		res.Duration = iv.Duration
	}
	r.log.Debug("worker replied", "duration", res.Duration)
	return res, nil
}

func (r *Runner) spawn(ctx context.Context, init Init) *oneshot.Value[*api.Reply] {
	reply := oneshot.New[*api.Reply]("worker", r.log)
	go func() {
		var err error
		defer func() {
			if p := recover(); p != nil {
				err = fmt.Errorf("worker panicked: %v", p)
			}
			if err != nil {
				r.log.Error("worker terminated", "error", err)
			}
			reply.Close(err)
		}()
		err = r.entry(ctx, init, reply.Send)
	}()
	return reply
}
