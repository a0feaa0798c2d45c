package dsmesock

import (
	"sync"

	"github.com/google/uuid"
)

// Event is one thing that happened on a client connection, handed
// from a relayer goroutine to whoever is draining Hub.Events (in
// practice, the mainloop goroutine, from its per-pass Iteration).
type Event struct {
	Conn  *Conn
	Frame Frame
	Err   error // non-nil on read error or clean close; Conn is still valid for cleanup
}

// Hub accepts client connections and relays their frames onto a
// single channel. The accept loop and each connection's read loop run
// on their own goroutines, but those goroutines do nothing but block
// on a syscall and forward what comes back: no application logic runs
// on them, preserving the single-threaded-core invariant.
type Hub struct {
	server *Server

	events chan Event

	mu      sync.Mutex
	clients map[uuid.UUID]*Conn

	closed chan struct{}
	wg     sync.WaitGroup
}

// NewHub wraps server, buffering up to 64 pending events before a
// slow consumer applies backpressure to new reads.
func NewHub(server *Server) *Hub {
	return &Hub{
		server:  server,
		events:  make(chan Event, 64),
		clients: make(map[uuid.UUID]*Conn),
		closed:  make(chan struct{}),
	}
}

// Events returns the channel Hub posts accepted-connection activity
// to.
func (h *Hub) Events() <-chan Event {
	return h.events
}

// Run accepts connections until Close is called. It blocks, so the
// caller should invoke it in its own goroutine.
func (h *Hub) Run() {
	for {
		conn, err := h.server.Accept()
		if err != nil {
			select {
			case <-h.closed:
				return
			default:
			}
			continue
		}

		h.mu.Lock()
		h.clients[conn.ID()] = conn
		h.mu.Unlock()

		h.wg.Add(1)
		go h.relay(conn)
	}
}

func (h *Hub) relay(conn *Conn) {
	defer h.wg.Done()
	for {
		frame, err := conn.ReadFrame()
		if err != nil {
			h.forget(conn)
			select {
			case h.events <- Event{Conn: conn, Err: err}:
			case <-h.closed:
			}
			return
		}
		select {
		case h.events <- Event{Conn: conn, Frame: frame}:
		case <-h.closed:
			return
		}
	}
}

func (h *Hub) forget(conn *Conn) {
	h.mu.Lock()
	delete(h.clients, conn.ID())
	h.mu.Unlock()
}

// Disconnect closes a single client connection and forgets it.
func (h *Hub) Disconnect(conn *Conn) error {
	h.forget(conn)
	return conn.Close()
}

// Close stops accepting new connections, closes every live client
// connection, and waits for every relay goroutine to exit.
func (h *Hub) Close() error {
	close(h.closed)
	err := h.server.Close()

	h.mu.Lock()
	conns := make([]*Conn, 0, len(h.clients))
	for _, c := range h.clients {
		conns = append(conns, c)
	}
	h.clients = make(map[uuid.UUID]*Conn)
	h.mu.Unlock()

	for _, c := range conns {
		_ = c.Close()
	}

	h.wg.Wait()
	return err
}
