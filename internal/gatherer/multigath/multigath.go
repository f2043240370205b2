// Package multigath fans report calls out to several gatherers.
package multigath

import (
	"github.com/programme-lv/forkbench/api"
	"github.com/programme-lv/forkbench/internal"
	"github.com/programme-lv/forkbench/internal/perf"
)

type Gatherers []internal.Gatherer

func New(gs ...internal.Gatherer) Gatherers { return Gatherers(gs) }

func (m Gatherers) StartRun(systemInfo string) {
	for _, g := range m {
		g.StartRun(systemInfo)
	}
}

func (m Gatherers) FinishMeasure(iv perf.Interval) {
	for _, g := range m {
		g.FinishMeasure(iv)
	}
}

func (m Gatherers) FailRunner(model api.Model, err error) {
	for _, g := range m {
		g.FailRunner(model, err)
	}
}

func (m Gatherers) FinishRun(summary *internal.Summary) {
	for _, g := range m {
		g.FinishRun(summary)
	}
}
