package api

// Payload is the unit of work handed to both execution substrates.
// It is loaded once and never mutated afterwards.
type Payload struct {
	TaskInput []int64 `json:"task_input"`
	Blob      []byte  `json:"blob"`
}

// Reply is the single completion message sent back by a worker or a child process.
type Reply struct {
	Sorted []int64 `json:"sorted"`
	Sum    int64   `json:"sum"`
	Min    *int64  `json:"min,omitempty"`
	Max    *int64  `json:"max,omitempty"`

	BlobBytes  int    `json:"blob_bytes"`
	BlobSha256 string `json:"blob_sha256"`

	Pid       int   `json:"pid"`
	HandledAt int64 `json:"handled_at_unix_nano"`
}
