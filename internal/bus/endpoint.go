package bus

import "github.com/google/uuid"

// Kind distinguishes the three sources of messages the bus ever sees.
type Kind int

const (
	// KindCore identifies the daemon core itself as sender/recipient.
	KindCore Kind = iota
	// KindPlugin identifies a loaded plugin module.
	KindPlugin
	// KindClient identifies a remote process connected over the
	// client socket.
	KindClient
)

func (k Kind) String() string {
	switch k {
	case KindCore:
		return "core"
	case KindPlugin:
		return "plugin"
	case KindClient:
		return "client"
	default:
		return "unknown"
	}
}

// Credentials are the peer credentials captured at connection accept
// time, via SO_PEERCRED. They are immutable once attached to an
// Endpoint: a connection's identity cannot change mid-life.
//
// NoCredentials is returned when SO_PEERCRED lookup fails; its sentinel
// values (pid 0, uid/gid -1) are documented here to mean "no verified
// identity" and must always fail privilege checks, never pass them.
type Credentials struct {
	PID int32
	UID int32
	GID int32
}

// NoCredentials is the sentinel value assigned when peer credential
// lookup could not be performed.
var NoCredentials = Credentials{PID: 0, UID: -1, GID: -1}

// Known reports whether c represents an actual verified peer identity
// as opposed to the NoCredentials sentinel.
func (c Credentials) Known() bool {
	return c != NoCredentials
}

// Endpoint identifies one origin or destination of a Message: the
// core, a loaded plugin, or a connected client. Endpoints are
// immutable once created; credentials captured at accept time never
// change for the lifetime of the connection they describe.
type Endpoint struct {
	id       uuid.UUID
	kind     Kind
	name     string
	creds    Credentials
	isDaemon bool
}

// NewCoreEndpoint returns the fixed endpoint representing the daemon
// core itself.
func NewCoreEndpoint() *Endpoint {
	return &Endpoint{id: uuid.New(), kind: KindCore, name: "dsme", creds: NoCredentials, isDaemon: true}
}

// NewPluginEndpoint returns an endpoint representing a loaded plugin
// module identified by name.
func NewPluginEndpoint(name string) *Endpoint {
	return &Endpoint{id: uuid.New(), kind: KindPlugin, name: name, creds: NoCredentials}
}

// NewClientEndpoint returns an endpoint representing a connected
// client, with the peer credentials captured at accept time.
func NewClientEndpoint(name string, creds Credentials) *Endpoint {
	return &Endpoint{id: uuid.New(), kind: KindClient, name: name, creds: creds}
}

// ID returns the endpoint's process-lifetime-unique identifier.
func (e *Endpoint) ID() uuid.UUID { return e.id }

// Kind reports whether this endpoint is the core, a plugin, or a
// client.
func (e *Endpoint) Kind() Kind { return e.kind }

// Name is a human-readable label for logging: the plugin's registered
// name, "dsme" for the core, or the client's display name.
func (e *Endpoint) Name() string { return e.name }

// Credentials returns the peer credentials captured for this
// endpoint. Client endpoints carry the SO_PEERCRED result (or
// NoCredentials on capture failure); core and plugin endpoints always
// report NoCredentials since they are not socket peers.
func (e *Endpoint) Credentials() Credentials { return e.creds }

// IsPrivileged reports whether this endpoint's captured credentials
// are sufficient to perform privileged operations. Per the
// NoCredentials contract, an endpoint whose identity could not be
// verified is never privileged, nor is any non-root client.
func (e *Endpoint) IsPrivileged() bool {
	if !e.creds.Known() {
		return false
	}
	return e.creds.UID == 0
}

// IsDsme reports whether this endpoint represents the daemon core
// itself, as opposed to a plugin or external client.
func (e *Endpoint) IsDsme() bool { return e.isDaemon }

// Same reports whether a and b identify the same endpoint instance.
func Same(a, b *Endpoint) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.id == b.id
}
