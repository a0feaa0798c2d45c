package logger

import (
	"fmt"
	"sync"
	"sync/atomic"
)

// Logger is the daemon's asynchronous logging facility: producers
// (in practice, only ever the mainloop goroutine) push Entry values
// into a lock-free ring buffer and return immediately; a single
// auxiliary goroutine drains the buffer and hands entries to the
// configured Sink.
//
// This is the one concurrency exception the core otherwise forbids:
// exactly one extra goroutine exists, and it does nothing but drain
// the ring and write to the sink. It never touches the message bus,
// the plugin registry, or any other core state.
type Logger struct {
	ring  ring
	rules *RuleSet
	sink  Sink

	verbosity atomic.Int32 // entries less severe (numerically higher) than this are dropped before reaching the ring, unless an include rule matches

	wake     chan struct{}
	done     chan struct{}
	stopOnce sync.Once

	// degraded is set once the consumer goroutine can no longer be
	// trusted to drain the ring (it panicked). Once set, Log falls
	// back to writing
	// directly to the sink from the producer's own goroutine, trading
	// asynchronous delivery for never silently losing the message that
	// diagnoses the failure itself.
	degraded atomic.Bool

	mu sync.Mutex // guards sink access in the degraded path only
}

// New constructs a Logger writing through sink, gated by rules, with
// the given initial verbosity threshold (0-7, syslog scale).
func New(sink Sink, rules *RuleSet, verbosity Priority) *Logger {
	l := &Logger{
		rules: rules,
		sink:  sink,
		wake:  make(chan struct{}, 1),
		done:  make(chan struct{}),
	}
	l.verbosity.Store(int32(verbosity))
	return l
}

// Start launches the auxiliary consumer goroutine. Must be called
// exactly once.
func (l *Logger) Start() {
	go l.consume()
}

// Stop signals the consumer goroutine to drain whatever remains and
// exit, and waits for it to do so. An unbounded wait is safe here
// since the consumer never blocks on anything but the wake channel
// and its own sink writes.
func (l *Logger) Stop() {
	l.stopOnce.Do(func() {
		close(l.done)
		select {
		case l.wake <- struct{}{}:
		default:
		}
	})
	_ = l.sink.Close()
}

// SetVerbosity changes the priority threshold below which entries are
// dropped before ever reaching the ring buffer.
func (l *Logger) SetVerbosity(p Priority) {
	l.verbosity.Store(int32(p))
}

// Log records one entry if the include/exclude rules and, failing a
// rule match, the verbosity threshold allow it. file and funcName
// identify the call site for rule matching and for the sink's output
// line. An include rule forces the entry through regardless of
// verbosity; an exclude rule drops it regardless of verbosity; only a
// site with no matching rule at all falls back to comparing priority
// against the verbosity threshold.
func (l *Logger) Log(priority Priority, file, funcName string, format string, args ...any) {
	priority = priority.Clamp()

	site := Entry{File: file, Func: funcName}.site()
	switch l.rules.Resolve(site) {
	case Excluded:
		return
	case Included:
		// an include rule forces delivery regardless of verbosity
	default:
		if int32(priority) > l.verbosity.Load() {
			return
		}
	}

	e := Entry{Priority: priority, File: file, Func: funcName, Text: fmt.Sprintf(format, args...)}

	if l.degraded.Load() {
		l.writeDegraded(e)
		return
	}

	if !l.ring.push(e) {
		l.ring.lost.Add(1)
		return
	}

	select {
	case l.wake <- struct{}{}:
	default:
		// a wake-up is already pending; the consumer will see this
		// entry on its next drain regardless.
	}
}

func (l *Logger) writeDegraded(e Entry) {
	l.mu.Lock()
	defer l.mu.Unlock()
	_ = l.sink.Write(e)
}

func (l *Logger) consume() {
	defer func() {
		if r := recover(); r != nil {
			l.degraded.Store(true)
		}
	}()

	for {
		select {
		case <-l.wake:
		case <-l.done:
		}

		l.drain()

		select {
		case <-l.done:
			l.drain()
			return
		default:
		}
	}
}

func (l *Logger) drain() {
	for {
		e, ok := l.ring.pop()
		if !ok {
			break
		}
		_ = l.sink.Write(e)

		if n, recovered := l.ring.recoveredFromOverflow(); recovered {
			notice := Entry{
				Priority: Warning,
				File:     "logger",
				Func:     "drain",
				Text:     fmt.Sprintf("overflow; %d messages lost", n),
			}
			_ = l.sink.Write(notice)
		}
	}
}
