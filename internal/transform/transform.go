// Package transform holds the computation offloaded to both substrates.
package transform

import (
	"crypto/sha256"
	"encoding/hex"
	"os"
	"slices"
	"time"

	"github.com/programme-lv/forkbench/api"
)

// Apply summarises the payload. It reads the payload but never writes to it.
func Apply(p *api.Payload) *api.Reply {
	sorted := slices.Clone(p.TaskInput)
	slices.Sort(sorted)

	reply := &api.Reply{
		Sorted:     sorted,
		BlobBytes:  len(p.Blob),
		BlobSha256: Sha256Hex(p.Blob),
		Pid:        os.Getpid(),
		HandledAt:  time.Now().UnixNano(),
	}
	if reply.Sorted == nil {
		reply.Sorted = []int64{}
	}

	for _, x := range sorted {
		reply.Sum += x
	}
	if len(sorted) > 0 {
		lo, hi := sorted[0], sorted[len(sorted)-1]
		reply.Min = &lo
		reply.Max = &hi
	}
	return reply
}

func Sha256Hex(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}
