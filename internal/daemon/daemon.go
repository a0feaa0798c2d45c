// Package daemon composes every other internal package into the
// running device state management daemon: startup/shutdown
// orchestration, the mainloop, the message bus, the plugin framework,
// the client socket, and the heartbeat watchdog.
package daemon

import (
	"fmt"
	"os"
	"time"

	"github.com/dsmed/dsmed/internal/bus"
	"github.com/dsmed/dsmed/internal/dsmesock"
	"github.com/dsmed/dsmed/internal/heartbeat"
	"github.com/dsmed/dsmed/internal/logger"
	"github.com/dsmed/dsmed/internal/mainloop"
	"github.com/dsmed/dsmed/internal/modulebase"
	"github.com/dsmed/dsmed/internal/startup"
	"github.com/rs/zerolog"
)

// Daemon wires the whole system together and owns its lifecycle.
type Daemon struct {
	opts Options
	zlog zerolog.Logger

	asyncLogger *logger.Logger
	rules       *logger.RuleSet

	loop       *mainloop.Loop
	queue      *bus.Queue
	dispatcher *bus.Dispatcher
	runtime    *modulebase.Runtime
	scheduler  *modulebase.Scheduler

	hub      *dsmesock.Hub
	stopSigs func()

	core *bus.Endpoint
}

// New constructs a Daemon from opts. Nothing is started until Run is
// called.
func New(opts Options) *Daemon {
	zlog := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
		With().Timestamp().Str("service", "dsmed").Logger()

	return &Daemon{
		opts:  opts,
		zlog:  zlog,
		core:  bus.NewCoreEndpoint(),
		queue: bus.NewQueue(),
	}
}

// Run performs the full ordered startup sequence, runs the mainloop
// until a quit is requested, then tears everything down in reverse
// order and returns the accumulated exit code.
func (d *Daemon) Run() int {
	d.rules = logger.NewRuleSet()
	for _, inc := range d.opts.LogIncludes {
		d.rules.AddInclude(inc)
	}
	for _, exc := range d.opts.LogExcludes {
		d.rules.AddExclude(exc)
	}

	sink, err := logger.NewSink(d.opts.LoggingMethod, d.opts.LogFilePath)
	if err != nil {
		d.zlog.Error().Err(err).Msg("constructing log sink")
		return mainloop.ExitFailure
	}
	d.asyncLogger = logger.New(sink, d.rules, d.opts.Verbosity)

	d.loop = mainloop.New(d.processQueue)

	d.dispatcher = bus.NewDispatcher(func(format string, args ...any) {
		d.zlog.Warn().Msgf(format, args...)
	})
	d.runtime = modulebase.NewRuntime(d.dispatcher, d.loop, func(format string, args ...any) {
		d.zlog.Warn().Msgf(format, args...)
	})
	d.scheduler = modulebase.NewScheduler(d.runtime, d.loop)
	d.runtime.SetScheduler(d.scheduler)

	seq := startup.NewSequence(func(format string, args ...any) {
		d.zlog.Warn().Msgf(format, args...)
	})

	seq.Add(startup.Step{
		Name: "async-logger",
		Up:   func() error { d.asyncLogger.Start(); return nil },
		Down: func() { d.asyncLogger.Stop() },
	})

	seq.Add(startup.Step{
		Name: "oom-protection",
		Up: func() error {
			if err := startup.ProtectFromOOMKiller(); err != nil {
				d.zlog.Warn().Err(err).Msg("could not adjust OOM score")
			}
			return nil
		},
	})

	seq.Add(startup.Step{
		Name: "realtime-priority",
		Up: func() error {
			if err := startup.RaiseRealtimePriority(); err != nil {
				d.zlog.Warn().Err(err).Msg("could not raise realtime priority")
			}
			return nil
		},
	})

	seq.Add(startup.Step{
		Name: "scheduler",
		Up:   func() error { d.scheduler.Start(); return nil },
		Down: func() { d.scheduler.Stop() },
	})

	seq.Add(startup.Step{
		Name: "modulebase",
		Up: func() error {
			for i, m := range d.opts.StartupModules {
				if err := d.runtime.LoadModule(m.Name, i); err != nil {
					return fmt.Errorf("loading %s: %w", m.Name, err)
				}
			}
			return nil
		},
		Down: func() { d.runtime.UnloadAll() },
	})

	seq.Add(startup.Step{
		Name: "client-socket",
		Up: func() error {
			path := dsmesock.ResolveSocketPath(d.opts.SocketPath)
			srv, err := dsmesock.Listen(path)
			if err != nil {
				return err
			}
			d.hub = dsmesock.NewHub(srv)
			go d.hub.Run()
			return nil
		},
		Down: func() {
			if d.hub != nil {
				_ = d.hub.Close()
			}
		},
	})

	seq.Add(startup.Step{
		Name: "chdir",
		Up:   func() error { return startup.Chdir() },
	})

	seq.Add(startup.Step{
		Name: "systemd-notify",
		Up: func() error {
			if !d.opts.Systemd {
				return nil
			}
			if err := startup.NotifyParent(); err != nil {
				d.zlog.Warn().Err(err).Msg("could not notify parent process")
			}
			return nil
		},
	})

	seq.Add(startup.Step{
		Name: "heartbeat",
		Up: func() error {
			watcher := heartbeat.New(os.Stdin, os.Stdout,
				func() { d.enqueueBroadcast(bus.New(bus.TypeHeartbeat, nil, 0)) },
				func(reason string) {
					d.zlog.Error().Str("reason", reason).Msg("heartbeat failed, quitting")
					d.loop.Quit(mainloop.ExitFailure)
				},
			)
			go watcher.Run()
			return nil
		},
	})

	seq.Add(startup.Step{
		Name: "signals",
		Up:   func() error { d.stopSigs = mainloop.WatchSignals(d.loop); return nil },
		Down: func() {
			if d.stopSigs != nil {
				d.stopSigs()
			}
		},
	})

	if err := seq.Run(); err != nil {
		d.zlog.Error().Err(err).Msg("startup failed")
		return mainloop.ExitFailure
	}

	d.zlog.Info().Strs("modules", d.runtime.Loaded()).Msg("dsmed started")

	code := d.loop.Run()

	seq.Shutdown()

	d.zlog.Info().Int("exit_code", code).Msg("dsmed stopped")
	return code
}

// enqueueBroadcast pushes msg onto the shared queue as a broadcast
// (no specific recipient) and wakes the mainloop so it gets dispatched
// promptly instead of waiting for the next unrelated wake-up.
func (d *Daemon) enqueueBroadcast(msg bus.Message) {
	d.queue.Push(bus.Queued{Msg: msg, Sender: d.core})
	d.loop.WakeUp()
}

// processQueue is the mainloop's per-pass Iteration: it also drains
// any client-socket frames that arrived since the last pass, then
// dispatches everything queued so far, in FIFO order.
func (d *Daemon) processQueue() {
	d.drainSocketEvents()
	d.scheduler.RunPending()

	for {
		q, ok := d.queue.Pop()
		if !ok {
			return
		}
		d.dispatcher.Dispatch(q)
	}
}

// drainSocketEvents converts any pending dsmesock.Event into either
// an inline response (handled entirely inside HandleInline) or a
// Queued broadcast from the originating client endpoint.
func (d *Daemon) drainSocketEvents() {
	if d.hub == nil {
		return
	}
	for {
		select {
		case ev := <-d.hub.Events():
			d.handleSocketEvent(ev)
		default:
			return
		}
	}
}

func (d *Daemon) handleSocketEvent(ev dsmesock.Event) {
	if ev.Err != nil {
		d.zlog.Debug().Err(ev.Err).Msg("client connection closed")
		return
	}

	if dsmesock.HandleInline(ev.Conn, ev.Frame, d.rules, d.asyncLogger.SetVerbosity) {
		return
	}

	d.queue.Push(bus.Queued{
		Msg:    bus.New(ev.Frame.Type, ev.Frame.Payload, len(ev.Frame.Payload)),
		Sender: ev.Conn.Endpoint(),
	})
}
