package perf_test

import (
	"sync"
	"testing"
	"time"

	"github.com/programme-lv/forkbench/internal/perf"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMeasureBetweenMarks(t *testing.T) {
	rec := perf.NewRecorder(nil)
	defer rec.Close()

	start := rec.Mark("worker start")
	time.Sleep(2 * time.Millisecond)
	end := rec.Mark("worker end")

	iv, err := rec.Measure("worker", "worker start", "worker end")
	require.NoError(t, err)

	assert.Equal(t, "worker", iv.Name)
	assert.Equal(t, start, iv.Start)
	assert.Equal(t, end, iv.End)
	assert.GreaterOrEqual(t, iv.Duration, 2*time.Millisecond)
	assert.False(t, iv.End.At.Before(iv.Start.At))
	assert.Len(t, rec.Measurements(), 1)
}

func TestMeasureIsIdempotent(t *testing.T) {
	rec := perf.NewRecorder(nil)
	defer rec.Close()

	rec.Mark("a")
	rec.Mark("b")

	first, err := rec.Measure("ab", "a", "b")
	require.NoError(t, err)
	second, err := rec.Measure("ab", "a", "b")
	require.NoError(t, err)

	assert.Equal(t, first.Duration, second.Duration)
}

func TestMeasureMissingMarkIsGap(t *testing.T) {
	rec := perf.NewRecorder(nil)
	defer rec.Close()

	var observed []perf.Interval
	var mu sync.Mutex
	rec.Observe(perf.ObserverFunc(func(iv perf.Interval) {
		mu.Lock()
		defer mu.Unlock()
		observed = append(observed, iv)
	}))

	rec.Mark("fork start")

	_, err := rec.Measure("fork", "fork start", "fork end")
	require.ErrorIs(t, err, perf.ErrMeasurementGap)

	_, err = rec.Measure("never", "nope", "fork start")
	require.ErrorIs(t, err, perf.ErrMeasurementGap)

	rec.Close()
	assert.Empty(t, rec.Measurements())
	assert.Empty(t, observed)
}

func TestMeasureUsesMostRecentMark(t *testing.T) {
	rec := perf.NewRecorder(nil)
	defer rec.Close()

	rec.Mark("start")
	time.Sleep(5 * time.Millisecond)
	latest := rec.Mark("start")
	rec.Mark("end")

	iv, err := rec.Measure("x", "start", "end")
	require.NoError(t, err)
	assert.Equal(t, latest.Seq, iv.Start.Seq)
	assert.Less(t, iv.Duration, 5*time.Millisecond)
}

func TestMeasureRejectsReversedMarks(t *testing.T) {
	rec := perf.NewRecorder(nil)
	defer rec.Close()

	rec.Mark("end")
	time.Sleep(time.Millisecond)
	rec.Mark("start")

	_, err := rec.Measure("x", "start", "end")
	require.ErrorIs(t, err, perf.ErrOutOfOrder)
	assert.Empty(t, rec.Measurements())
}

func TestObserversSeeEmissionOrder(t *testing.T) {
	rec := perf.NewRecorder(nil)

	var names []string
	rec.Observe(perf.ObserverFunc(func(iv perf.Interval) {
		names = append(names, iv.Name)
	}))

	rec.Mark("s")
	rec.Mark("e")
	for _, label := range []string{"one", "two", "three"} {
		_, err := rec.Measure(label, "s", "e")
		require.NoError(t, err)
	}
	rec.Close()

	assert.Equal(t, []string{"one", "two", "three"}, names)
}

func TestConcurrentMarks(t *testing.T) {
	rec := perf.NewRecorder(nil)
	defer rec.Close()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			rec.Mark("tick")
			_, _ = rec.Measure("tick", "tick", "tick")
		}()
	}
	wg.Wait()

	marks := rec.Marks()
	require.Len(t, marks, 50)
	for i, m := range marks {
		assert.Equal(t, i, m.Seq)
		if i > 0 {
			assert.False(t, m.At.Before(marks[i-1].At))
		}
	}
	assert.Len(t, rec.Measurements(), 50)
}
