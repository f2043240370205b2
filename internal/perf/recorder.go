// Package perf records named timestamps and reports the intervals between them.
package perf

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/puzpuzpuz/xsync/v3"
)

var (
	ErrMeasurementGap = errors.New("measurement gap")
	ErrOutOfOrder     = errors.New("end mark precedes start mark")
)

// Mark is a named point in time. Seq is the position in the recorder's log.
type Mark struct {
	Name string
	At   time.Time
	Seq  int
}

// Interval is the time elapsed between two marks, reported under Name.
type Interval struct {
	Name     string
	Start    Mark
	End      Mark
	Duration time.Duration
}

type Observer interface {
	Observe(iv Interval)
}

type ObserverFunc func(iv Interval)

func (f ObserverFunc) Observe(iv Interval) { f(iv) }

// Recorder is an append-only log of marks. Completed measurements are
// delivered to observers on a separate goroutine, in the order they were made.
type Recorder struct {
	log *slog.Logger

	mu       sync.Mutex
	marks    []Mark
	reported []Interval
	closed   bool
	queue    chan Interval

	latest *xsync.MapOf[string, Mark]

	obsMu     sync.Mutex
	observers []Observer

	done chan struct{}
}

func NewRecorder(log *slog.Logger) *Recorder {
	if log == nil {
		log = slog.Default()
	}
	r := &Recorder{
		log:    log.With("component", "perf"),
		latest: xsync.NewMapOf[string, Mark](),
		queue:  make(chan Interval, 64),
		done:   make(chan struct{}),
	}
	go r.dispatch()
	return r
}

// Observe registers an observer for all measurements made after the call.
func (r *Recorder) Observe(o Observer) {
	r.obsMu.Lock()
	defer r.obsMu.Unlock()
	r.observers = append(r.observers, o)
}

// Mark appends a timestamped entry. Duplicate names are allowed;
// the most recent one is used by Measure.
func (r *Recorder) Mark(name string) Mark {
	r.mu.Lock()
	defer r.mu.Unlock()

	m := Mark{Name: name, At: time.Now(), Seq: len(r.marks)}
	r.marks = append(r.marks, m)
	r.latest.Store(name, m)
	return m
}

// Lookup returns the most recent mark with the given name.
func (r *Recorder) Lookup(name string) (Mark, bool) {
	return r.latest.Load(name)
}

// Measure computes the interval between the most recent startName and endName
// marks and emits it under label. A missing mark is a non-fatal gap: it is
// logged, nothing is reported and ErrMeasurementGap is returned.
func (r *Recorder) Measure(label, startName, endName string) (Interval, error) {
	start, ok := r.latest.Load(startName)
	if !ok {
		return Interval{}, r.gap(label, startName)
	}
	end, ok := r.latest.Load(endName)
	if !ok {
		return Interval{}, r.gap(label, endName)
	}

	d := end.At.Sub(start.At)
	if d < 0 {
		err := fmt.Errorf("%w: %s: %q at #%d, %q at #%d",
			ErrOutOfOrder, label, startName, start.Seq, endName, end.Seq)
		r.log.Warn("measurement skipped", "label", label, "error", err)
		return Interval{}, err
	}

	iv := Interval{Name: label, Start: start, End: end, Duration: d}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.reported = append(r.reported, iv)
	if !r.closed {
		r.queue <- iv
	}
	return iv, nil
}

func (r *Recorder) gap(label, missing string) error {
	err := fmt.Errorf("%w: %s: no mark named %q", ErrMeasurementGap, label, missing)
	r.log.Warn("measurement skipped", "label", label, "error", err)
	return err
}

// Marks returns a snapshot of the mark log.
func (r *Recorder) Marks() []Mark {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Mark(nil), r.marks...)
}

// Measurements returns a snapshot of all reported intervals.
func (r *Recorder) Measurements() []Interval {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Interval(nil), r.reported...)
}

// Close stops accepting deliveries and blocks until observers have seen
// every measurement made before the call.
func (r *Recorder) Close() {
	r.mu.Lock()
	if !r.closed {
		r.closed = true
		close(r.queue)
	}
	r.mu.Unlock()
	<-r.done
}

func (r *Recorder) dispatch() {
	defer close(r.done)
	for iv := range r.queue {
		r.obsMu.Lock()
		observers := append([]Observer(nil), r.observers...)
		r.obsMu.Unlock()

		for _, o := range observers {
			o.Observe(iv)
		}
	}
}
