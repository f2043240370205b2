package termgath

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/fatih/color"
	"github.com/programme-lv/forkbench/api"
	"github.com/programme-lv/forkbench/internal"
	"github.com/programme-lv/forkbench/internal/perf"
)

type TerminalGatherer struct {
	StartedAt time.Time

	mu  sync.Mutex
	out io.Writer

	header  *color.Color
	measure *color.Color
	fail    *color.Color
}

func New(out io.Writer) *TerminalGatherer {
	return &TerminalGatherer{
		StartedAt: time.Now(),
		out:       out,
		header:    color.New(color.Bold),
		measure:   color.New(color.FgHiGreen),
		fail:      color.New(color.FgHiRed),
	}
}

func (t *TerminalGatherer) StartRun(systemInfo string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.header.Fprintln(t.out, "== Run started ==")
	if systemInfo != "" {
		fmt.Fprintf(t.out, "System: %s\n", systemInfo)
	}
}

func (t *TerminalGatherer) FinishMeasure(iv perf.Interval) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.measure.Fprintf(t.out, "%s: %s\n", iv.Name, formatMs(iv.Duration))
}

func (t *TerminalGatherer) FailRunner(model api.Model, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.fail.Fprintf(t.out, "%s failed: %v\n", model, err)
}

func (t *TerminalGatherer) FinishRun(summary *internal.Summary) {
	t.mu.Lock()
	defer t.mu.Unlock()

	worker, okW := summary.Measurement("worker")
	fork, okF := summary.Measurement("fork")
	if okW && okF && worker.Duration > 0 {
		ratio := float64(fork.Duration) / float64(worker.Duration)
		fmt.Fprintf(t.out, "fork/worker: %.2fx\n", ratio)
	}
	for _, name := range summary.Missing {
		t.fail.Fprintf(t.out, "%s: not measured\n", name)
	}

	dur := time.Since(t.StartedAt).Round(time.Millisecond)
	t.header.Fprintf(t.out, "== Run finished in %s ==\n", dur)
}

func formatMs(d time.Duration) string {
	return fmt.Sprintf("%.4f ms", float64(d)/float64(time.Millisecond))
}
