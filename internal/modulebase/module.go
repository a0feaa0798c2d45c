// Package modulebase implements the plugin framework: dynamic
// load/unload of modules, their message handler tables, and the
// process-wide "current module" context that every handler, timer
// and socket callback runs scoped inside of.
package modulebase

import (
	"time"

	"github.com/dsmed/dsmed/internal/bus"
	"github.com/dsmed/dsmed/internal/timer"
)

// Handler is the interface a module, built-in or dynamically loaded,
// must implement: Init runs once at load time, Fini once at unload
// time, both scoped to the module's own current-module context.
type Handler interface {
	// Init is called once, immediately after the module is loaded.
	// Returning an error aborts the load.
	Init(ctx *Context) error

	// Fini is called once during unload, after the module has been
	// dropped from the load list and its handler-table entries and
	// scheduled jobs removed, so it no longer receives messages while
	// it runs. Errors are logged but do not prevent unload.
	Fini() error
}

// HandlerTableProvider is implemented by modules that want to receive
// bus messages. HandlerTable returns the module's ordered handler
// bindings, evaluated once at load time.
type HandlerTableProvider interface {
	HandlerTable() []HandlerBinding
}

// HandlerBinding is one entry in a module's handler table: which
// message Type it wants, the payload size it was compiled against
// (used for the ABI drift check at dispatch time), and the function
// to invoke.
type HandlerBinding struct {
	Type        bus.Type
	PayloadSize int
	Handle      bus.HandlerFunc
}

// Context is what a module's Init receives: a narrow capability
// surface onto the runtime, rather than the runtime itself, so a
// module can't reach into another module's state.
type Context struct {
	// Send delivers msg to every registered handler of its type (a
	// broadcast) synchronously, before Send returns. It does not go
	// through the daemon's message queue, and handlers receive a nil
	// sender rather than this module's endpoint.
	Send func(msg bus.Message)

	// Name is this module's own registered name.
	Name string

	// Logf writes one line attributed to this module to the daemon's
	// ambient diagnostic log. Modules do not get direct access to the
	// ring-buffer Logger; only the core decides what goes through the
	// async logging path.
	Logf func(format string, args ...any)

	// Timer starts an interval timer attributed to this module: at
	// each firing, the timer enters this module as current before
	// invoking cb and restores the previous module immediately after,
	// on the mainloop goroutine. interval == 0 fires on every mainloop
	// pass instead of arming a real OS timer.
	Timer func(interval time.Duration, cb timer.Callback) *timer.Gate

	// Schedule registers fn to run on spec's cron schedule, attributed
	// to this module's current-module context. fn is marshaled onto
	// the mainloop goroutine before it runs, so it sees the same
	// single-threaded-core guarantees a handler table entry does.
	// Returns an error if no scheduler is configured.
	Schedule func(spec string, fn func()) error
}
