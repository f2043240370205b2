package fork

import (
	"fmt"
	"io"

	"github.com/programme-lv/forkbench/api"
	"github.com/programme-lv/forkbench/internal/transform"
	"github.com/programme-lv/forkbench/internal/wire"
)

// Serve is the child side of the channel: it reads exactly one payload
// frame from r and writes exactly one reply frame to w.
func Serve(r io.Reader, w io.Writer, compress bool) error {
	dec := wire.NewDecoder(r)
	defer dec.Close()

	var p api.Payload
	if err := dec.Decode(&p); err != nil {
		return fmt.Errorf("failed to read payload: %w", err)
	}

	enc, err := wire.NewEncoder(w, compress)
	if err != nil {
		return err
	}
	defer enc.Close()

	if err := enc.Encode(transform.Apply(&p)); err != nil {
		return fmt.Errorf("failed to send reply: %w", err)
	}
	return nil
}
