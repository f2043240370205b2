// Package wire frames JSON messages for the parent/child pipe.
//
// A frame is a flag byte, a 4-byte big-endian body length and the body.
// When the compressed flag is set the body is a zstd stream.
package wire

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/klauspost/compress/zstd"
)

const (
	flagZstd byte = 1 << 0

	headerSize   = 5
	MaxFrameSize = 1 << 30
)

var ErrFrameTooLarge = errors.New("frame too large")

type Encoder struct {
	w        io.Writer
	compress bool
	zenc     *zstd.Encoder
}

func NewEncoder(w io.Writer, compress bool) (*Encoder, error) {
	e := &Encoder{w: w, compress: compress}
	if compress {
		zenc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedFastest))
		if err != nil {
			return nil, fmt.Errorf("failed to create zstd encoder: %w", err)
		}
		e.zenc = zenc
	}
	return e, nil
}

// Encode writes v as a single frame.
func (e *Encoder) Encode(v any) error {
	body, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	var flags byte
	if e.compress {
		body = e.zenc.EncodeAll(body, nil)
		flags |= flagZstd
	}
	if len(body) > MaxFrameSize {
		return fmt.Errorf("%w: %d bytes", ErrFrameTooLarge, len(body))
	}

	var hdr [headerSize]byte
	hdr[0] = flags
	binary.BigEndian.PutUint32(hdr[1:], uint32(len(body)))
	if _, err := e.w.Write(hdr[:]); err != nil {
		return fmt.Errorf("failed to write frame header: %w", err)
	}
	if _, err := e.w.Write(body); err != nil {
		return fmt.Errorf("failed to write frame body: %w", err)
	}
	return nil
}

func (e *Encoder) Close() error {
	if e.zenc != nil {
		return e.zenc.Close()
	}
	return nil
}

type Decoder struct {
	r    io.Reader
	zdec *zstd.Decoder
}

func NewDecoder(r io.Reader) *Decoder {
	return &Decoder{r: r}
}

// Decode reads the next frame into v. It returns io.EOF only when the stream
// ends exactly on a frame boundary.
func (d *Decoder) Decode(v any) error {
	var hdr [headerSize]byte
	if _, err := io.ReadFull(d.r, hdr[:]); err != nil {
		return err
	}

	n := binary.BigEndian.Uint32(hdr[1:])
	if n > MaxFrameSize {
		return fmt.Errorf("%w: %d bytes", ErrFrameTooLarge, n)
	}
	body := make([]byte, n)
	if _, err := io.ReadFull(d.r, body); err != nil {
		if errors.Is(err, io.EOF) {
			err = io.ErrUnexpectedEOF
		}
		return fmt.Errorf("failed to read frame body: %w", err)
	}

	if hdr[0]&flagZstd != 0 {
		if d.zdec == nil {
			zdec, err := zstd.NewReader(nil)
			if err != nil {
				return fmt.Errorf("failed to create zstd decoder: %w", err)
			}
			d.zdec = zdec
		}
		var err error
		body, err = d.zdec.DecodeAll(body, nil)
		if err != nil {
			return fmt.Errorf("failed to decompress frame: %w", err)
		}
	}

	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("failed to unmarshal message: %w", err)
	}
	return nil
}

func (d *Decoder) Close() {
	if d.zdec != nil {
		d.zdec.Close()
	}
}
