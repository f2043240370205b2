// Package payload reads the blob shared by both execution paths.
package payload

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/klauspost/compress/zstd"
	"github.com/programme-lv/forkbench/api"
	"github.com/programme-lv/forkbench/internal/transform"
)

var ErrLoad = errors.New("payload load failure")

// Source describes where the blob lives. Sha256, when set, must match the
// hex digest of the (decompressed) blob.
type Source struct {
	Path   string
	Sha256 string
}

// Load reads the blob once and pairs it with taskInput.
// Files ending in .zst are decompressed while reading.
func Load(src Source, taskInput []int64) (*api.Payload, error) {
	if src.Path == "" {
		return nil, fmt.Errorf("%w: blob path is empty", ErrLoad)
	}

	blob, err := readBlob(src.Path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoad, err)
	}

	if src.Sha256 != "" {
		got := transform.Sha256Hex(blob)
		if !strings.EqualFold(got, src.Sha256) {
			return nil, fmt.Errorf("%w: blob %s has sha256 %s, but expected %s",
				ErrLoad, src.Path, got, src.Sha256)
		}
	}

	return &api.Payload{
		TaskInput: append([]int64(nil), taskInput...),
		Blob:      blob,
	}, nil
}

func readBlob(path string) ([]byte, error) {
	if filepath.Ext(path) != ".zst" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read blob: %w", err)
		}
		return data, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open blob: %w", err)
	}
	defer f.Close()

	d, err := zstd.NewReader(f)
	if err != nil {
		return nil, fmt.Errorf("failed to create zstd reader: %w", err)
	}
	defer d.Close()

	data, err := io.ReadAll(d)
	if err != nil {
		return nil, fmt.Errorf("failed to decompress blob %s: %w", path, err)
	}
	return data, nil
}

// ParseTaskInput parses a comma separated list of integers, e.g. "24,19,48,30".
func ParseTaskInput(s string) ([]int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return []int64{}, nil
	}
	parts := strings.Split(s, ",")
	res := make([]int64, 0, len(parts))
	for _, part := range parts {
		x, err := strconv.ParseInt(strings.TrimSpace(part), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid task input element %q: %w", part, err)
		}
		res = append(res, x)
	}
	return res, nil
}
