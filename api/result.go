package api

import "time"

// Model names the concurrency substrate a run was executed on.
type Model string

const (
	InProcess  Model = "in_process"
	Subprocess Model = "subprocess"
)

// RunResult is produced by a runner after its single invocation completes.
type RunResult struct {
	Model    Model         `json:"model"`
	Output   *Reply        `json:"output"`
	Duration time.Duration `json:"duration_ns"`
}
