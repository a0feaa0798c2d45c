// Package timer implements interval timers gated on the mainloop: a
// timer's callback always runs on the mainloop goroutine, never on a
// stray time.AfterFunc goroutine, preserving the single-threaded-core
// invariant. A zero interval is a request to run on every mainloop
// pass (an "idle" callback) rather than a real OS timer.
package timer

import (
	"time"

	"github.com/dsmed/dsmed/internal/mainloop"
)

// Callback is invoked once per firing. Its return value decides
// whether the timer repeats: true schedules the next firing, false
// stops the timer permanently.
type Callback func() bool

// Gate wraps a single timer's lifecycle, gating delivery of its
// firing onto the owning mainloop.
type Gate struct {
	loop     *mainloop.Loop
	interval time.Duration
	cb       Callback

	stopCh chan struct{}
	timer  *time.Timer
}

// New creates (but does not start) a timer that, once started, fires
// cb every interval. Gate itself knows nothing about modules; callers
// that need module attribution wrap cb themselves. interval == 0 means "run on every mainloop pass" (the idle case)
// rather than scheduling a real OS timer.
func New(loop *mainloop.Loop, interval time.Duration, cb Callback) *Gate {
	return &Gate{loop: loop, interval: interval, cb: cb, stopCh: make(chan struct{})}
}

// Start arms the timer.
func (g *Gate) Start() {
	if g.interval <= 0 {
		g.loop.AddIdle(g.fireIdle)
		return
	}
	g.armTimeout()
}

func (g *Gate) fireIdle() bool {
	select {
	case <-g.stopCh:
		return false
	default:
	}
	return g.cb()
}

func (g *Gate) armTimeout() {
	g.timer = time.AfterFunc(g.interval, func() {
		select {
		case <-g.stopCh:
			return
		default:
		}
		// Hand the firing to the mainloop goroutine via an idle
		// callback rather than invoking cb() directly from this
		// timer goroutine: application logic, including timer
		// callbacks, must only ever run on the single mainloop
		// goroutine.
		g.loop.AddIdle(func() bool {
			repeat := g.cb()
			if repeat {
				g.armTimeout()
			}
			return false
		})
	})
}

// Stop disarms the timer. Safe to call more than once, and safe to
// call from within the timer's own callback to stop repetition.
func (g *Gate) Stop() {
	select {
	case <-g.stopCh:
	default:
		close(g.stopCh)
	}
	if g.timer != nil {
		g.timer.Stop()
	}
}
