package dsmesock

import (
	"context"
	"fmt"
	"net"
	"os"
	"syscall"

	"github.com/dsmed/dsmed/internal/bus"
	"golang.org/x/sys/unix"
)

// DefaultSocketPath is used when neither the --socket flag nor the
// DSME_SOCKFILE environment variable is set.
const DefaultSocketPath = "/run/dsmed/dsmed.sock"

// EnvSocketPath is the environment variable that overrides the
// compiled-in default socket path.
const EnvSocketPath = "DSME_SOCKFILE"

// socketMode is the historical dsmesock node permission: 0646, owner
// rw, group r, other rw.
const socketMode = 0646

// ResolveSocketPath applies the documented precedence: an explicit
// path (e.g. from a CLI flag) wins, then the environment variable,
// then the compiled-in default.
func ResolveSocketPath(explicit string) string {
	if explicit != "" {
		return explicit
	}
	if p := os.Getenv(EnvSocketPath); p != "" {
		return p
	}
	return DefaultSocketPath
}

// Server listens on a UNIX domain socket for client connections,
// capturing peer credentials at accept time and returning each
// accepted connection from Accept. Only one client is ever pending
// accept at a time: clients are locally trusted and few, so the
// listen backlog is intentionally kept at exactly 1.
type Server struct {
	path     string
	listener *net.UnixListener
}

// Listen creates and binds the socket at path (removing any stale
// socket file left over from a previous run), chmods it to 0646, and
// begins listening with a backlog of 1.
func Listen(path string) (*Server, error) {
	_ = os.Remove(path)

	addr, err := net.ResolveUnixAddr("unix", path)
	if err != nil {
		return nil, fmt.Errorf("dsmesock: resolving %s: %w", path, err)
	}

	lc := net.ListenConfig{}
	rawListener, err := lc.Listen(context.Background(), "unix", addr.String())
	if err != nil {
		return nil, fmt.Errorf("dsmesock: listening on %s: %w", path, err)
	}
	ul, ok := rawListener.(*net.UnixListener)
	if !ok {
		rawListener.Close()
		return nil, fmt.Errorf("dsmesock: %s did not yield a unix listener", path)
	}

	if err := os.Chmod(path, socketMode); err != nil {
		ul.Close()
		return nil, fmt.Errorf("dsmesock: chmod %s: %w", path, err)
	}

	if err := setListenBacklog(ul); err != nil {
		ul.Close()
		return nil, fmt.Errorf("dsmesock: setting backlog on %s: %w", path, err)
	}

	return &Server{path: path, listener: ul}, nil
}

// setListenBacklog re-asserts a backlog of exactly 1 on the already
// listening socket, by reaching down to the raw file descriptor.
// net.ListenConfig does not expose a backlog knob directly, so this
// drops to the same unix.Listen syscall the stdlib uses internally to
// force the backlog down to 1 explicitly.
func setListenBacklog(ul *net.UnixListener) error {
	rc, err := ul.SyscallConn()
	if err != nil {
		return err
	}
	var sysErr error
	err = rc.Control(func(fd uintptr) {
		sysErr = unix.Listen(int(fd), 1)
	})
	if err != nil {
		return err
	}
	return sysErr
}

// Accept blocks until a client connects, returning the accepted
// connection and its captured peer credentials. On credential lookup
// failure, Conn.Credentials() reports bus.NoCredentials rather than
// failing the accept outright: a missing credential must never be
// treated as privileged.
func (s *Server) Accept() (*Conn, error) {
	uc, err := s.listener.AcceptUnix()
	if err != nil {
		return nil, err
	}
	creds := peerCredentials(uc)
	return &Conn{UnixConn: uc, creds: creds}, nil
}

// Close stops accepting new connections and removes the socket file.
func (s *Server) Close() error {
	err := s.listener.Close()
	_ = os.Remove(s.path)
	return err
}

// peerCredentials captures SO_PEERCRED for the given connection,
// returning bus.NoCredentials if the lookup cannot be performed: a
// SO_PASSCRED/getsockopt failure must never be treated as privileged.
func peerCredentials(uc *net.UnixConn) bus.Credentials {
	rc, err := uc.SyscallConn()
	if err != nil {
		return bus.NoCredentials
	}

	var ucred *unix.Ucred
	var sysErr error
	err = rc.Control(func(fd uintptr) {
		ucred, sysErr = unix.GetsockoptUcred(int(fd), syscall.SOL_SOCKET, unix.SO_PEERCRED)
	})
	if err != nil || sysErr != nil || ucred == nil {
		return bus.NoCredentials
	}

	return bus.Credentials{PID: ucred.Pid, UID: int32(ucred.Uid), GID: int32(ucred.Gid)}
}
