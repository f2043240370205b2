package fork_test

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/programme-lv/forkbench/api"
	"github.com/programme-lv/forkbench/internal/fork"
	"github.com/programme-lv/forkbench/internal/oneshot"
	"github.com/programme-lv/forkbench/internal/perf"
	"github.com/programme-lv/forkbench/internal/wire"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const childModeEnv = "FORKBENCH_TEST_CHILD"

// TestMain lets the test binary double as the child process.
func TestMain(m *testing.M) {
	mode := os.Getenv(childModeEnv)
	if mode == "" {
		os.Exit(m.Run())
	}
	os.Exit(runChild(mode))
}

func runChild(mode string) int {
	compress := os.Getenv(fork.CompressEnv) == "1"
	switch mode {
	case "serve":
		if err := fork.Serve(os.Stdin, os.Stdout, compress); err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 1
		}
		return 0
	case "crash":
		fmt.Fprintln(os.Stderr, "kaboom")
		return 3
	case "twice":
		if err := fork.Serve(os.Stdin, os.Stdout, compress); err != nil {
			return 1
		}
		enc, _ := wire.NewEncoder(os.Stdout, false)
		_ = enc.Encode(api.Reply{Sum: -1})
		return 0
	case "hang":
		time.Sleep(time.Minute)
		return 0
	case "linger":
		if err := fork.Serve(os.Stdin, os.Stdout, compress); err != nil {
			return 1
		}
		time.Sleep(time.Minute)
		return 0
	}
	return 2
}

func childConfig(mode string) fork.Config {
	return fork.Config{
		Command: []string{os.Args[0]},
		Env:     []string{childModeEnv + "=" + mode},
		Timeout: 10 * time.Second,
	}
}

func testPayload() *api.Payload {
	return &api.Payload{
		TaskInput: []int64{24, 19, 48, 30},
		Blob:      bytes.Repeat([]byte("0123456789"), 100_000),
	}
}

func TestRunChild(t *testing.T) {
	for _, compress := range []bool{false, true} {
		rec := perf.NewRecorder(nil)

		cfg := childConfig("serve")
		cfg.Compress = compress
		res, err := fork.NewRunner(rec, cfg, nil).Run(context.Background(), testPayload())
		require.NoError(t, err)

		assert.Equal(t, api.Subprocess, res.Model)
		require.NotNil(t, res.Output)
		assert.Equal(t, []int64{19, 24, 30, 48}, res.Output.Sorted)
		assert.Equal(t, 1_000_000, res.Output.BlobBytes)
		assert.NotEqual(t, os.Getpid(), res.Output.Pid)
		assert.Greater(t, res.Duration, time.Duration(0))

		ms := rec.Measurements()
		require.Len(t, ms, 1)
		assert.Equal(t, fork.IntervalName, ms[0].Name)
		assert.Equal(t, fork.StartMark, ms[0].Start.Name)
		assert.Equal(t, fork.EndMark, ms[0].End.Name)
		rec.Close()
	}
}

func TestRunChildCrashes(t *testing.T) {
	rec := perf.NewRecorder(nil)
	defer rec.Close()

	_, err := fork.NewRunner(rec, childConfig("crash"), nil).Run(context.Background(), testPayload())
	require.ErrorIs(t, err, fork.ErrSubprocessFailure)
	require.ErrorIs(t, err, oneshot.ErrNoReply)
	assert.Contains(t, err.Error(), "exit status 3")
	assert.Contains(t, err.Error(), "kaboom")
	assert.Empty(t, rec.Measurements())
}

func TestRunChildHangs(t *testing.T) {
	rec := perf.NewRecorder(nil)
	defer rec.Close()

	cfg := childConfig("hang")
	cfg.Timeout = 200 * time.Millisecond
	_, err := fork.NewRunner(rec, cfg, nil).Run(context.Background(), testPayload())
	require.ErrorIs(t, err, fork.ErrSubprocessFailure)
	require.ErrorIs(t, err, oneshot.ErrTimeout)
}

func TestRunChildLingersAfterReply(t *testing.T) {
	rec := perf.NewRecorder(nil)
	defer rec.Close()

	cfg := childConfig("linger")
	cfg.Timeout = 0
	begin := time.Now()
	res, err := fork.NewRunner(rec, cfg, nil).Run(context.Background(), testPayload())
	elapsed := time.Since(begin)

	require.NoError(t, err)
	assert.Equal(t, []int64{19, 24, 30, 48}, res.Output.Sorted)
	assert.Less(t, elapsed, 10*time.Second)
	assert.Less(t, res.Duration, elapsed)
	require.Len(t, rec.Measurements(), 1)
}

func TestRunChildRepliesTwice(t *testing.T) {
	rec := perf.NewRecorder(nil)
	defer rec.Close()

	res, err := fork.NewRunner(rec, childConfig("twice"), nil).Run(context.Background(), testPayload())
	require.NoError(t, err)
	assert.EqualValues(t, 121, res.Output.Sum)
}

func TestRunMissingExecutable(t *testing.T) {
	rec := perf.NewRecorder(nil)
	defer rec.Close()

	cfg := fork.Config{Command: []string{"/nonexistent/forkbench-child"}}
	_, err := fork.NewRunner(rec, cfg, nil).Run(context.Background(), testPayload())
	require.ErrorIs(t, err, fork.ErrSubprocessFailure)
	_, ok := rec.Lookup(fork.EndMark)
	assert.False(t, ok)
}

func TestServe(t *testing.T) {
	var in bytes.Buffer
	enc, err := wire.NewEncoder(&in, false)
	require.NoError(t, err)
	require.NoError(t, enc.Encode(api.Payload{TaskInput: []int64{3, 1, 2}, Blob: []byte("x")}))

	var out bytes.Buffer
	require.NoError(t, fork.Serve(&in, &out, true))

	var r api.Reply
	require.NoError(t, wire.NewDecoder(&out).Decode(&r))
	assert.Equal(t, []int64{1, 2, 3}, r.Sorted)
	assert.Equal(t, 1, r.BlobBytes)

	require.Error(t, fork.Serve(&bytes.Buffer{}, &out, false))
}
