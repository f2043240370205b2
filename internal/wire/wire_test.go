package wire_test

import (
	"bytes"
	"io"
	"testing"

	"github.com/programme-lv/forkbench/api"
	"github.com/programme-lv/forkbench/internal/wire"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFramesInSequence(t *testing.T) {
	for _, compress := range []bool{false, true} {
		var buf bytes.Buffer
		enc, err := wire.NewEncoder(&buf, compress)
		require.NoError(t, err)

		blob := bytes.Repeat([]byte{0xAB}, 64*1024)
		require.NoError(t, enc.Encode(api.Payload{TaskInput: []int64{24, 19, 48, 30}, Blob: blob}))
		require.NoError(t, enc.Encode(api.Reply{Sum: 121}))
		require.NoError(t, enc.Close())

		if compress {
			assert.Less(t, buf.Len(), len(blob))
		}

		dec := wire.NewDecoder(&buf)
		defer dec.Close()

		var p api.Payload
		require.NoError(t, dec.Decode(&p))
		assert.Equal(t, []int64{24, 19, 48, 30}, p.TaskInput)
		assert.Equal(t, blob, p.Blob)

		var r api.Reply
		require.NoError(t, dec.Decode(&r))
		assert.EqualValues(t, 121, r.Sum)

		require.ErrorIs(t, dec.Decode(&r), io.EOF)
	}
}

func TestTruncatedFrame(t *testing.T) {
	var buf bytes.Buffer
	enc, err := wire.NewEncoder(&buf, false)
	require.NoError(t, err)
	require.NoError(t, enc.Encode(api.Reply{Sum: 1}))

	truncated := buf.Bytes()[:buf.Len()-2]
	err = wire.NewDecoder(bytes.NewReader(truncated)).Decode(&api.Reply{})
	require.ErrorIs(t, err, io.ErrUnexpectedEOF)

	err = wire.NewDecoder(bytes.NewReader(truncated[:3])).Decode(&api.Reply{})
	require.ErrorIs(t, err, io.ErrUnexpectedEOF)
}

func TestOversizedFrameRejected(t *testing.T) {
	hdr := []byte{0, 0xFF, 0xFF, 0xFF, 0xFF}
	err := wire.NewDecoder(bytes.NewReader(hdr)).Decode(&api.Reply{})
	require.ErrorIs(t, err, wire.ErrFrameTooLarge)
}
