package modulebase

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/dsmed/dsmed/internal/bus"
	"github.com/dsmed/dsmed/internal/mainloop"
	"github.com/dsmed/dsmed/internal/timer"
)

// loadedModule is one entry in the runtime's load-ordered module
// list.
type loadedModule struct {
	name     string
	priority int
	handler  Handler
	dynamic  bool
	path     string
}

// Runtime is the modulebase: it owns every loaded module, their
// handler-table registrations against the shared Dispatcher, and the
// re-entrant "current module" context stack that every handler,
// timer and socket callback runs scoped inside of.
//
// Runtime is only ever touched from the mainloop goroutine: loading,
// unloading, and dispatch all happen synchronously there, so the
// current-module stack needs no locking of its own.
type Runtime struct {
	disp *bus.Dispatcher
	loop *mainloop.Loop
	warn func(format string, args ...any)

	scheduler *Scheduler

	mu      sync.Mutex // guards modules; dispatch itself runs unlocked on the mainloop goroutine
	modules []*loadedModule

	stack []*loadedModule
}

// NewRuntime returns an empty modulebase runtime dispatching through
// disp, with module timers armed against loop. warn, if non-nil,
// receives diagnostics: modules' Context.Logf lines and the unload
// failures UnloadAll encounters. Load failures are returned from
// LoadModule instead, and ABI mismatches go to the dispatcher's own
// warn function.
func NewRuntime(disp *bus.Dispatcher, loop *mainloop.Loop, warn func(format string, args ...any)) *Runtime {
	return &Runtime{disp: disp, loop: loop, warn: warn}
}

// SetScheduler wires an optional cron-based scheduling facility into
// the runtime, exposed to modules through Context.Schedule. Must be
// called, if at all, before any module is loaded.
func (r *Runtime) SetScheduler(s *Scheduler) {
	r.scheduler = s
}

// LoadModule loads the module registered under name: first checking
// the built-in registry, then, if name ends in ".so", attempting a
// dynamic load via the Go plugin package. priority controls
// delivery order relative to other loaded modules (lower runs
// first); ties are broken by load order.
func (r *Runtime) LoadModule(name string, priority int) error {
	r.mu.Lock()
	for _, m := range r.modules {
		if m.name == name {
			r.mu.Unlock()
			return fmt.Errorf("modulebase: %s is already loaded", name)
		}
	}
	r.mu.Unlock()

	var handler Handler
	dynamic := false
	if factory, ok := lookupBuiltin(name); ok {
		handler = factory()
	} else if strings.HasSuffix(name, ".so") {
		h, err := loadDynamic(name)
		if err != nil {
			return err
		}
		handler = h
		dynamic = true
	} else {
		return fmt.Errorf("modulebase: no built-in module named %q and not a .so path", name)
	}

	lm := &loadedModule{name: name, priority: priority, handler: handler, dynamic: dynamic, path: name}

	prev := r.enter(lm)
	ctx := &Context{
		Name: name,
		Send: func(msg bus.Message) { r.disp.Dispatch(bus.Queued{Msg: msg}) },
		Logf: func(format string, args ...any) {
			if r.warn != nil {
				r.warn("%s: %s", name, fmt.Sprintf(format, args...))
			}
		},
		Timer: func(interval time.Duration, cb timer.Callback) *timer.Gate {
			return r.startTimer(lm, interval, cb)
		},
		Schedule: func(spec string, fn func()) error {
			if r.scheduler == nil {
				return fmt.Errorf("modulebase: no scheduler configured")
			}
			return r.scheduler.Schedule(lm.name, spec, fn)
		},
	}
	err := lm.handler.Init(ctx)
	r.restore(prev)

	if err != nil {
		return fmt.Errorf("modulebase: initializing %s: %w", name, err)
	}

	if provider, ok := lm.handler.(HandlerTableProvider); ok {
		for _, binding := range provider.HandlerTable() {
			r.register(lm, binding)
		}
	}

	r.mu.Lock()
	r.modules = append(r.modules, lm)
	sort.SliceStable(r.modules, func(i, j int) bool {
		return r.modules[i].priority < r.modules[j].priority
	})
	r.mu.Unlock()

	return nil
}

// register wires one handler binding into the shared dispatcher,
// wrapped so the current-module context is entered before the
// binding's Handle runs and restored immediately after, no matter
// what else is on the stack at dispatch time.
func (r *Runtime) register(lm *loadedModule, binding HandlerBinding) {
	wrapped := func(sender *bus.Endpoint, msg bus.Message) {
		prev := r.enter(lm)
		defer r.restore(prev)
		binding.Handle(sender, msg)
	}
	r.disp.Register(lm.name, binding.Type, lm.priority, binding.PayloadSize, wrapped)
}

// startTimer creates and arms a timer whose firing is wrapped so the
// current-module context is entered around cb and restored
// afterward, exactly like register does for handler-table bindings.
func (r *Runtime) startTimer(lm *loadedModule, interval time.Duration, cb timer.Callback) *timer.Gate {
	wrapped := func() bool {
		prev := r.enter(lm)
		defer r.restore(prev)
		return cb()
	}
	g := timer.New(r.loop, interval, wrapped)
	g.Start()
	return g
}

// UnloadModule calls the named module's Fini, scoped to its own
// current-module context, removes its handler-table registrations,
// and drops it from the load list.
func (r *Runtime) UnloadModule(name string) error {
	r.mu.Lock()
	var lm *loadedModule
	kept := r.modules[:0]
	for _, m := range r.modules {
		if m.name == name {
			lm = m
			continue
		}
		kept = append(kept, m)
	}
	r.modules = kept
	r.mu.Unlock()

	if lm == nil {
		return fmt.Errorf("modulebase: %s is not loaded", name)
	}

	r.disp.Unregister(name)
	if r.scheduler != nil {
		r.scheduler.CancelAll(name)
	}

	prev := r.enter(lm)
	err := lm.handler.Fini()
	r.restore(prev)

	if err != nil {
		return fmt.Errorf("modulebase: finalizing %s: %w", name, err)
	}
	return nil
}

// UnloadAll unloads every loaded module, in reverse load order,
// matching the reverse-teardown discipline the rest of the daemon's
// shutdown sequence follows.
func (r *Runtime) UnloadAll() {
	r.mu.Lock()
	names := make([]string, len(r.modules))
	for i, m := range r.modules {
		names[len(r.modules)-1-i] = m.name
	}
	r.mu.Unlock()

	for _, name := range names {
		if err := r.UnloadModule(name); err != nil && r.warn != nil {
			r.warn("modulebase: unloading %s: %v", name, err)
		}
	}
}

// CurrentModule returns the name of whichever module's handler is
// presently executing, or "" if nothing is (i.e. the core itself is
// running).
func (r *Runtime) CurrentModule() string {
	if len(r.stack) == 0 {
		return ""
	}
	return r.stack[len(r.stack)-1].name
}

// Scoped runs fn with the named module entered as current, for
// callers outside the handler-table path (timer callbacks, socket
// accept callbacks) that still need their work attributed to a
// module's context. Returns an error if name is not loaded.
func (r *Runtime) Scoped(name string, fn func()) error {
	r.mu.Lock()
	var lm *loadedModule
	for _, m := range r.modules {
		if m.name == name {
			lm = m
			break
		}
	}
	r.mu.Unlock()
	if lm == nil {
		return fmt.Errorf("modulebase: %s is not loaded", name)
	}

	prev := r.enter(lm)
	defer r.restore(prev)
	fn()
	return nil
}

// enter pushes lm onto the current-module stack and returns the
// previous top, mirroring enter_module(this_module)/enter_module(caller).
func (r *Runtime) enter(lm *loadedModule) *loadedModule {
	var prev *loadedModule
	if len(r.stack) > 0 {
		prev = r.stack[len(r.stack)-1]
	}
	r.stack = append(r.stack, lm)
	return prev
}

// restore pops the current-module stack back to prev.
func (r *Runtime) restore(prev *loadedModule) {
	if len(r.stack) > 0 {
		r.stack = r.stack[:len(r.stack)-1]
	}
	_ = prev
}

// Loaded returns the names of every currently loaded module, in
// delivery-priority order.
func (r *Runtime) Loaded() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	names := make([]string, len(r.modules))
	for i, m := range r.modules {
		names[i] = m.name
	}
	return names
}
