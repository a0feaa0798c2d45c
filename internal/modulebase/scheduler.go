package modulebase

import (
	"fmt"
	"sync"

	"github.com/dsmed/dsmed/internal/mainloop"
	"github.com/robfig/cron/v3"
)

// Scheduler gives loaded modules an optional calendar-schedule
// facility (cron expressions) layered above the core Timer's simple
// interval/idle model. Core mainloop timing never depends on this: it
// exists purely as a convenience a module's Init can reach for when
// "every five seconds" isn't the right shape and "at 03:00 every day"
// is.
type Scheduler struct {
	rt   *Runtime
	loop *mainloop.Loop
	cr   *cron.Cron

	mu  sync.Mutex
	ids map[string][]cron.EntryID

	jobs chan scheduledJob
}

// scheduledJob is one cron firing waiting to run scoped to its
// module, on the mainloop goroutine.
type scheduledJob struct {
	module string
	fn     func()
}

// jobQueueCapacity bounds how many fired-but-not-yet-run jobs can be
// pending at once; a job is dropped rather than blocking cron's own
// goroutine if the mainloop falls this far behind.
const jobQueueCapacity = 64

// NewScheduler returns a Scheduler whose jobs are attributed back to
// rt's current-module context when they run, marshaled onto loop so
// they never touch that context from cron's own goroutine.
func NewScheduler(rt *Runtime, loop *mainloop.Loop) *Scheduler {
	return &Scheduler{
		rt:   rt,
		loop: loop,
		cr:   cron.New(cron.WithSeconds()),
		ids:  make(map[string][]cron.EntryID),
		jobs: make(chan scheduledJob, jobQueueCapacity),
	}
}

// Start begins running scheduled jobs in the scheduler's own
// goroutine (spawned internally by robfig/cron). A firing only
// enqueues a job and wakes the mainloop; RunPending is what actually
// executes job bodies, on the mainloop goroutine.
func (s *Scheduler) Start() { s.cr.Start() }

// Stop waits for any in-flight firing to finish and stops the
// scheduler's goroutine. Jobs already enqueued but not yet run by
// RunPending are discarded.
func (s *Scheduler) Stop() { <-s.cr.Stop().Done() }

// Schedule registers fn to run on spec's cron schedule, attributed to
// moduleName's current-module context. fn itself always runs on the
// mainloop goroutine, scoped exactly like a handler-table callback;
// the cron goroutine only ever enqueues the firing.
func (s *Scheduler) Schedule(moduleName, spec string, fn func()) error {
	id, err := s.cr.AddFunc(spec, func() {
		select {
		case s.jobs <- scheduledJob{module: moduleName, fn: fn}:
			s.loop.WakeUp()
		default:
			// jobQueueCapacity firings are already waiting for the
			// mainloop; drop this one rather than block cron's goroutine.
		}
	})
	if err != nil {
		return fmt.Errorf("modulebase: scheduling %q for %s: %w", spec, moduleName, err)
	}

	s.mu.Lock()
	s.ids[moduleName] = append(s.ids[moduleName], id)
	s.mu.Unlock()
	return nil
}

// RunPending drains every job enqueued since the last call and runs
// each scoped to its owning module. Must only ever be called from the
// mainloop goroutine; wired as part of the daemon's per-pass
// Iteration, alongside draining socket events.
func (s *Scheduler) RunPending() {
	for {
		select {
		case job := <-s.jobs:
			_ = s.rt.Scoped(job.module, job.fn)
		default:
			return
		}
	}
}

// CancelAll removes every job registered by moduleName, called when
// that module is unloaded.
func (s *Scheduler) CancelAll(moduleName string) {
	s.mu.Lock()
	ids := s.ids[moduleName]
	delete(s.ids, moduleName)
	s.mu.Unlock()

	for _, id := range ids {
		s.cr.Remove(id)
	}
}
