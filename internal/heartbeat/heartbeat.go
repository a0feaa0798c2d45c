// Package heartbeat implements the watchdog ping/pong contract: a
// single byte read from stdin is answered with a single byte written
// to stdout, and the event is broadcast on the message bus. Any
// read/write failure, including a clean EOF, is treated as fatal: the
// watchdog process on the other end of the pipe is presumed dead, and
// there is no recovery path.
package heartbeat

import (
	"io"
)

// Beat is invoked once per successful ping/pong exchange.
type Beat func()

// Fail is invoked exactly once, the first time the heartbeat pipe
// fails in any way. Callers are expected to quit the daemon with a
// failure exit code from here.
type Fail func(reason string)

// Watcher relays the heartbeat protocol. Its Run method performs
// blocking I/O and should be driven from its own relayer goroutine;
// it posts results back through beat/fail rather than touching any
// shared core state directly, preserving the single-threaded-core
// invariant.
type Watcher struct {
	in   io.Reader
	out  io.Writer
	beat Beat
	fail Fail
}

// New builds a Watcher reading pings from in and writing pongs to
// out.
func New(in io.Reader, out io.Writer, beat Beat, fail Fail) *Watcher {
	return &Watcher{in: in, out: out, beat: beat, fail: fail}
}

// Run blocks, relaying ping/pong exchanges until a fatal I/O error
// (or EOF) occurs, then calls fail exactly once and returns.
func (w *Watcher) Run() {
	buf := make([]byte, 1)
	for {
		n, err := w.in.Read(buf)
		if n == 0 && err == io.EOF {
			w.fail("unexpected EOF")
			return
		}
		if err != nil {
			w.fail("read error: " + err.Error())
			return
		}

		if _, err := w.out.Write([]byte{'*'}); err != nil {
			w.fail("write error: " + err.Error())
			return
		}

		if w.beat != nil {
			w.beat()
		}
	}
}
