// Package harness runs the same payload through each runner in turn and
// reports how long every round trip took.
package harness

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"slices"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/programme-lv/forkbench/api"
	"github.com/programme-lv/forkbench/internal"
	"github.com/programme-lv/forkbench/internal/perf"
)

// Runner executes the payload once on a single concurrency substrate.
type Runner interface {
	Model() api.Model
	// IntervalName is the measurement the runner records on success.
	IntervalName() string
	Run(ctx context.Context, p *api.Payload) (*api.RunResult, error)
}

type Harness struct {
	runUuid string
	rec     *perf.Recorder
	gath    internal.Gatherer
	runners []Runner
	log     *slog.Logger
}

// New wires the gatherer to rec as its only measurement observer.
// The harness owns rec from here on and closes it at the end of Run.
func New(runUuid string, rec *perf.Recorder, gath internal.Gatherer, log *slog.Logger, runners ...Runner) *Harness {
	if log == nil {
		log = slog.Default()
	}
	rec.Observe(perf.ObserverFunc(gath.FinishMeasure))
	return &Harness{
		runUuid: runUuid,
		rec:     rec,
		gath:    gath,
		runners: runners,
		log:     log.With("run", runUuid),
	}
}

// Run dispatches the runners strictly one after another. A failing runner is
// reported and does not stop the ones after it. Run is single use.
func (h *Harness) Run(ctx context.Context, p *api.Payload) *internal.Summary {
	h.gath.StartRun(systemInfo())

	summary := &internal.Summary{
		RunUuid: h.runUuid,
		Failed:  make(map[api.Model]error),
	}
	expected := mapset.NewSet[string]()

	for _, r := range h.runners {
		expected.Add(r.IntervalName())

		res, err := h.runOne(ctx, r, p)
		if err != nil {
			h.log.Error("runner failed", "model", r.Model(), "error", err)
			summary.Failed[r.Model()] = err
			h.gath.FailRunner(r.Model(), err)
			continue
		}
		h.log.Info("runner finished", "model", res.Model, "duration", res.Duration)
		summary.Completed = append(summary.Completed, res)
	}

	// flush pending deliveries before the final report
	h.rec.Close()

	reported := mapset.NewSet[string]()
	for _, iv := range h.rec.Measurements() {
		reported.Add(iv.Name)
		summary.Measurements = append(summary.Measurements, iv)
	}
	summary.Missing = expected.Difference(reported).ToSlice()
	slices.Sort(summary.Missing)
	if len(summary.Missing) > 0 {
		h.log.Warn("measurements missing", "names", summary.Missing)
	}

	h.gath.FinishRun(summary)
	return summary
}

func (h *Harness) runOne(ctx context.Context, r Runner, p *api.Payload) (res *api.RunResult, err error) {
	defer func() {
		if v := recover(); v != nil {
			err = fmt.Errorf("%s runner panicked: %v", r.Model(), v)
		}
	}()
	return r.Run(ctx, p)
}

func systemInfo() string {
	return fmt.Sprintf("%s/%s, %d CPUs, %s", runtime.GOOS, runtime.GOARCH, runtime.NumCPU(), runtime.Version())
}
