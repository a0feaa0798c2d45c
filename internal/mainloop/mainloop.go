// Package mainloop implements the daemon's single cooperative event
// loop: one goroutine runs every iteration callback and processes the
// message queue; everything else (signal delivery, socket I/O) only
// ever wakes that goroutine up, it never runs application logic
// itself. A Go channel stands in for an epoll-backed event context.
package mainloop

import "sync"

// state tracks the loop's lifecycle through its three possible
// phases.
type state int

const (
	notStarted state = iota
	running
	stopped
)

// Iteration is called once per loop pass, before the loop blocks
// waiting for the next wake-up. It is where the message queue gets
// drained.
type Iteration func()

// Loop is the single cooperative event loop. It is not safe for
// concurrent use by design: Run must only ever be called from the one
// goroutine that is meant to execute application logic.
type Loop struct {
	mu        sync.Mutex
	st        state
	exitCode  int
	wake      chan struct{}
	iteration Iteration
	idle      []func() bool
}

// New returns a Loop that will call iteration once per pass.
func New(iteration Iteration) *Loop {
	return &Loop{
		st:        notStarted,
		wake:      make(chan struct{}, 1),
		iteration: iteration,
	}
}

// Run blocks, alternately invoking the configured Iteration and
// waiting for a wake-up, until Quit is called. It returns the
// monotonic-max exit code accumulated across every Quit call.
func (l *Loop) Run() int {
	l.mu.Lock()
	if l.st != notStarted {
		l.mu.Unlock()
		return l.exitCode
	}
	l.st = running
	l.mu.Unlock()

	for {
		l.mu.Lock()
		st := l.st
		l.mu.Unlock()
		if st != running {
			break
		}

		if l.iteration != nil {
			l.iteration()
		}

		l.mu.Lock()
		st = l.st
		l.mu.Unlock()
		if st != running {
			break
		}

		if l.runIdleOnce() {
			continue
		}

		<-l.wake
	}

	l.mu.Lock()
	code := l.exitCode
	l.mu.Unlock()
	return code
}

// Quit requests the loop stop after its current iteration, with the
// given exit code. If Quit is called more than once, the highest
// exit code ever passed wins: a later, more severe failure must never
// be masked by an earlier success code. Quit is safe to call from
// any goroutine, including a signal handler, since it only touches a
// mutex and a buffered channel send, neither of which can block for
// an unbounded amount of time here.
func (l *Loop) Quit(exitCode int) {
	l.mu.Lock()
	if l.st == running {
		l.st = stopped
	}
	if exitCode > l.exitCode {
		l.exitCode = exitCode
	}
	l.mu.Unlock()

	select {
	case l.wake <- struct{}{}:
	default:
	}
}

// WakeUp nudges the loop to run another iteration without requesting
// it stop, used by anything that queued a message and needs the loop
// to notice.
func (l *Loop) WakeUp() {
	select {
	case l.wake <- struct{}{}:
	default:
	}
}

// ExitCode returns the exit code accumulated so far, valid to call
// any time after Run returns.
func (l *Loop) ExitCode() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.exitCode
}

// AddIdle registers fn to run once on every loop pass, in place of
// waiting on a real OS timer, until it returns false. This is the
// analog of g_idle_add: a zero-interval timer runs here instead of
// through a timer channel, so it fires on every mainloop pass rather
// than competing with the OS timer wheel.
func (l *Loop) AddIdle(fn func() bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.idle = append(l.idle, fn)
	select {
	case l.wake <- struct{}{}:
	default:
	}
}

// runIdleOnce runs every registered idle function once, dropping any
// that return false, and reports whether any idle work remains (in
// which case Run should not block waiting for a wake-up).
func (l *Loop) runIdleOnce() bool {
	l.mu.Lock()
	fns := l.idle
	l.idle = nil
	l.mu.Unlock()

	if len(fns) == 0 {
		return false
	}

	kept := fns[:0]
	for _, fn := range fns {
		if fn() {
			kept = append(kept, fn)
		}
	}

	l.mu.Lock()
	l.idle = append(kept, l.idle...)
	remaining := len(l.idle) > 0
	l.mu.Unlock()
	return remaining
}
