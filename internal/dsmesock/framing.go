// Package dsmesock implements the client-facing UNIX domain socket:
// connection accept with peer-credential capture, and the
// length-prefixed wire framing used to exchange bus.Message values
// with connected clients.
package dsmesock

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/dsmed/dsmed/internal/bus"
)

// headerSize is the length prefix (4 bytes) plus the message type id
// (4 bytes) that precede every frame's payload.
const headerSize = 8

// maxFrameSize bounds a single frame so a misbehaving or hostile peer
// can't make the daemon allocate an unbounded buffer.
const maxFrameSize = 1 << 20

// WriteFrame encodes msg onto w as:
//
//	uint32le length (of everything that follows the length field itself, plus the 4 length bytes)
//	uint32le type
//	payload bytes
//	extra bytes
//
// payload must already be the raw bytes to send; callers are
// responsible for their own message-specific marshaling into the
// fixed-size wire format each message type expects.
func WriteFrame(w io.Writer, msg bus.Message, payload []byte) error {
	total := headerSize + len(payload) + len(msg.Extra)
	if total > maxFrameSize {
		return fmt.Errorf("dsmesock: frame of %d bytes exceeds maximum %d", total, maxFrameSize)
	}

	buf := make([]byte, total)
	binary.LittleEndian.PutUint32(buf[0:4], uint32(total))
	binary.LittleEndian.PutUint32(buf[4:8], uint32(msg.Type))
	copy(buf[8:8+len(payload)], payload)
	copy(buf[8+len(payload):], msg.Extra)

	_, err := w.Write(buf)
	return err
}

// Frame is a decoded wire frame, before the payload has been
// interpreted as any particular Go type. Payload holds the fixed
// payload bytes followed by any variable "extra" bytes; splitting the
// two is the caller's job, since only the caller knows the expected
// fixed payload size for Type.
type Frame struct {
	Type    bus.Type
	Payload []byte
}

// ReadFrame decodes exactly one frame from r, blocking until it is
// fully available or an error (including io.EOF on a clean peer
// close) occurs.
func ReadFrame(r io.Reader) (Frame, error) {
	var lenBuf [4]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return Frame{}, err
	}
	total := binary.LittleEndian.Uint32(lenBuf[:])
	if int(total) < headerSize {
		return Frame{}, fmt.Errorf("dsmesock: frame length %d smaller than header", total)
	}
	if total > maxFrameSize {
		return Frame{}, fmt.Errorf("dsmesock: frame of %d bytes exceeds maximum %d", total, maxFrameSize)
	}

	rest := make([]byte, total-4)
	if _, err := io.ReadFull(r, rest); err != nil {
		return Frame{}, err
	}

	typ := bus.Type(binary.LittleEndian.Uint32(rest[0:4]))
	body := rest[4:]
	return Frame{Type: typ, Payload: body}, nil
}
