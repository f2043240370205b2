package api

import "time"

// MsgType is a message type for streamed report messages
type MsgType string

const (
	StartRunMsg   MsgType = "run_start"
	MeasureMsg    MsgType = "measure"
	FailRunnerMsg MsgType = "runner_fail"
	FinishRunMsg  MsgType = "run_finish"
)

// Header is the common header for all streamed report messages
type Header struct {
	RunUuid string  `json:"run_uuid"`
	MsgType MsgType `json:"msg_type"`
}

// StartRun is sent once before the first runner is dispatched
type StartRun struct {
	Header
	SystemInfo  string `json:"system_info"`
	StartedTime string `json:"started_time"`
}

// Measure carries one completed interval
type Measure struct {
	Header
	Name       string  `json:"name"`
	StartMark  string  `json:"start_mark"`
	EndMark    string  `json:"end_mark"`
	DurationMs float64 `json:"duration_ms"`
}

// FailRunner is sent when a runner fails without producing a result
type FailRunner struct {
	Header
	Model        Model  `json:"model"`
	ErrorMessage string `json:"error_message"`
}

// FinishRun is sent after both runners resolved and all measurements were flushed
type FinishRun struct {
	Header
	Completed []Model  `json:"completed"`
	Failed    []Model  `json:"failed"`
	Missing   []string `json:"missing_measurements"`
}

func NewHeader(runUuid string, msgType MsgType) Header {
	return Header{
		RunUuid: runUuid,
		MsgType: msgType,
	}
}

func NewStartRun(runUuid, systemInfo string) StartRun {
	return StartRun{
		Header:      NewHeader(runUuid, StartRunMsg),
		SystemInfo:  systemInfo,
		StartedTime: time.Now().Format(time.RFC3339),
	}
}

func NewMeasure(runUuid, name, start, end string, d time.Duration) Measure {
	return Measure{
		Header:     NewHeader(runUuid, MeasureMsg),
		Name:       name,
		StartMark:  start,
		EndMark:    end,
		DurationMs: float64(d) / float64(time.Millisecond),
	}
}

func NewFailRunner(runUuid string, model Model, err error) FailRunner {
	return FailRunner{
		Header:       NewHeader(runUuid, FailRunnerMsg),
		Model:        model,
		ErrorMessage: err.Error(),
	}
}

func NewFinishRun(runUuid string, completed, failed []Model, missing []string) FinishRun {
	return FinishRun{
		Header:    NewHeader(runUuid, FinishRunMsg),
		Completed: completed,
		Failed:    failed,
		Missing:   missing,
	}
}
