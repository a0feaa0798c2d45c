// Package bus implements the in-process message bus: typed envelopes,
// a FIFO delivery queue, and the endpoint abstraction that identifies
// where a message came from and who it may be sent to.
package bus

import "fmt"

// Type identifies a message kind. Message types are partitioned into
// federated ranges, mirroring the historical split between libdsme,
// libiphb and the dsme core itself: each source of truth owns a
// numeric range and must not collide with another.
type Type uint32

const (
	// CoreBase is the start of the range reserved for types defined by
	// the daemon core itself (mainloop, logger, state machine).
	CoreBase Type = 0x00001000

	// ClientBase is the start of the range reserved for types that
	// cross the client socket boundary.
	ClientBase Type = 0x00001100

	// PluginBase is the start of the range available for use by
	// loaded plugins that need private message types.
	PluginBase Type = 0x00002000
)

// Core / client message types recovered verbatim from the original
// implementation's wire format, where a fixed numeric value is part of
// the documented ABI.
const (
	TypeIdle Type = 0x00001337 // DSM_MSGTYPE_IDLE

	TypeProcesswdPing Type = ClientBase + 1
	TypeProcesswdPong Type = ClientBase + 2

	TypeClose               Type = ClientBase + 7
	TypeAddLoggingInclude   Type = ClientBase + 4
	TypeAddLoggingExclude   Type = ClientBase + 5
	TypeUseLoggingDefaults  Type = ClientBase + 6
	TypeSetLoggingVerbosity Type = 0x00001103

	TypeHeartbeat Type = CoreBase + 1

	TypeStateChangeRequest Type = CoreBase + 2
	TypeStateChangeInd     Type = CoreBase + 3
	TypeShutdown           Type = CoreBase + 4
	TypeReboot             Type = CoreBase + 5
	TypePowerup            Type = CoreBase + 6
)

func (t Type) String() string {
	switch t {
	case TypeIdle:
		return "IDLE"
	case TypeProcesswdPing:
		return "PROCESSWD_PING"
	case TypeProcesswdPong:
		return "PROCESSWD_PONG"
	case TypeClose:
		return "CLOSE"
	case TypeAddLoggingInclude:
		return "ADD_LOGGING_INCLUDE"
	case TypeAddLoggingExclude:
		return "ADD_LOGGING_EXCLUDE"
	case TypeUseLoggingDefaults:
		return "USE_LOGGING_DEFAULTS"
	case TypeSetLoggingVerbosity:
		return "SET_LOGGING_VERBOSITY"
	case TypeHeartbeat:
		return "HEARTBEAT"
	case TypeStateChangeRequest:
		return "STATE_CHANGE_REQ"
	case TypeStateChangeInd:
		return "STATE_CHANGE_IND"
	case TypeShutdown:
		return "SHUTDOWN"
	case TypeReboot:
		return "REBOOT"
	case TypePowerup:
		return "POWERUP"
	default:
		return fmt.Sprintf("TYPE(0x%08x)", uint32(t))
	}
}

// Message is a typed envelope carrying a fixed-shape payload plus an
// optional variable-length "extra" blob. Payload is an opaque value
// whose concrete type is agreed between sender and handler out of
// band (by convention, one Go type per message Type); Extra is raw
// bytes appended after the fixed payload on the wire and is not
// interpreted by the bus itself.
type Message struct {
	Type    Type
	Payload any
	Extra   []byte

	// PayloadSize is the expected marshaled size of Payload in bytes.
	// Handler tables record the size a module was built against; a
	// mismatch at dispatch time means an ABI drift between the core
	// and a stale plugin and the message is dropped rather than
	// delivered, per the modulebase handler-table contract.
	PayloadSize int
}

// New builds a Message with the given type, payload and expected
// payload size, no extra data.
func New(t Type, payload any, payloadSize int) Message {
	return Message{Type: t, Payload: payload, PayloadSize: payloadSize}
}

// WithExtra returns a copy of m carrying the given extra bytes.
func (m Message) WithExtra(extra []byte) Message {
	m.Extra = extra
	return m
}
