package internal

import (
	"slices"

	"github.com/programme-lv/forkbench/api"
	"github.com/programme-lv/forkbench/internal/perf"
)

// Gatherer receives the progress of a single harness run.
// FinishMeasure is called from the recorder's delivery goroutine,
// the rest from the orchestrator, so implementations must be safe for concurrent use.
type Gatherer interface {
	StartRun(systemInfo string)
	FinishMeasure(iv perf.Interval)
	FailRunner(model api.Model, err error)
	FinishRun(summary *Summary)
}

// Summary is the outcome of one harness run.
type Summary struct {
	RunUuid      string
	Completed    []*api.RunResult
	Failed       map[api.Model]error
	Measurements []perf.Interval
	Missing      []string
}

// Result returns the completed result for model, or nil.
func (s *Summary) Result(model api.Model) *api.RunResult {
	for _, r := range s.Completed {
		if r.Model == model {
			return r
		}
	}
	return nil
}

// Measurement returns the reported interval named name.
func (s *Summary) Measurement(name string) (perf.Interval, bool) {
	for _, iv := range s.Measurements {
		if iv.Name == name {
			return iv, true
		}
	}
	return perf.Interval{}, false
}

// NewFinishRun converts a summary into its streamed form.
func NewFinishRun(summary *Summary) api.FinishRun {
	completed := make([]api.Model, 0, len(summary.Completed))
	for _, r := range summary.Completed {
		completed = append(completed, r.Model)
	}
	failed := make([]api.Model, 0, len(summary.Failed))
	for model := range summary.Failed {
		failed = append(failed, model)
	}
	slices.Sort(failed)
	missing := append([]string{}, summary.Missing...)
	return api.NewFinishRun(summary.RunUuid, completed, failed, missing)
}
