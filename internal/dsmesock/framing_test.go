package dsmesock

import (
	"bytes"
	"testing"

	"github.com/dsmed/dsmed/internal/bus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteThenReadFrameRoundTrips(t *testing.T) {
	var buf bytes.Buffer
	msg := bus.New(bus.TypeHeartbeat, nil, 0).WithExtra([]byte("extra-bytes"))

	require.NoError(t, WriteFrame(&buf, msg, []byte("payload")))

	f, err := ReadFrame(&buf)
	require.NoError(t, err)
	assert.Equal(t, bus.TypeHeartbeat, f.Type)
	assert.Equal(t, []byte("payloadextra-bytes"), f.Payload)
}

func TestReadFrameRejectsTruncatedLength(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteFrame(&buf, bus.New(bus.TypeIdle, nil, 0), []byte("x")))

	truncated := buf.Bytes()[:buf.Len()-1]
	_, err := ReadFrame(bytes.NewReader(truncated))
	assert.Error(t, err)
}

func TestReadFrameRejectsLengthBelowHeaderSize(t *testing.T) {
	var buf bytes.Buffer
	buf.Write([]byte{3, 0, 0, 0})
	_, err := ReadFrame(&buf)
	assert.Error(t, err)
}
