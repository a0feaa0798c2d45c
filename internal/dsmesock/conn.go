package dsmesock

import (
	"net"

	"github.com/dsmed/dsmed/internal/bus"
	"github.com/google/uuid"
)

// Conn wraps one accepted client connection: the raw socket plus the
// peer credentials captured at accept time, which never change for
// the life of the connection.
type Conn struct {
	*net.UnixConn
	creds Credentials
	id    uuid.UUID
}

// Credentials is an alias kept local to this package so callers don't
// need to import bus just to name the type; the underlying
// representation is shared.
type Credentials = bus.Credentials

// ID returns a process-lifetime-unique identifier for this
// connection, used for logging and as the client endpoint's name.
func (c *Conn) ID() uuid.UUID {
	if c.id == uuid.Nil {
		c.id = uuid.New()
	}
	return c.id
}

// Credentials returns the peer credentials captured when this
// connection was accepted.
func (c *Conn) Credentials() bus.Credentials {
	return c.creds
}

// Endpoint builds the bus.Endpoint representing this connection,
// suitable for use as a Queued message's Sender.
func (c *Conn) Endpoint() *bus.Endpoint {
	return bus.NewClientEndpoint(c.ID().String(), c.creds)
}

// Send writes msg with the given already-marshaled payload to the
// client.
func (c *Conn) Send(msg bus.Message, payload []byte) error {
	return WriteFrame(c, msg, payload)
}

// ReadFrame reads the next frame from the client.
func (c *Conn) ReadFrame() (Frame, error) {
	return ReadFrame(c)
}
