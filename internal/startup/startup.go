// Package startup implements the daemon's ordered bring-up and
// reverse teardown sequence, plus the best-effort process tuning
// steps (OOM-kill protection, realtime scheduling, working directory)
// performed before entering the main loop.
package startup

import (
	"fmt"
	"os"
	"runtime"
	"syscall"

	"golang.org/x/sys/unix"
)

// Step is one named bring-up action. Steps run in the order given to
// Sequence.Run; on failure, every step that already succeeded is torn
// down in reverse order before the error is returned.
type Step struct {
	Name string
	Up   func() error
	Down func()
}

// Sequence is an ordered list of bring-up/teardown steps.
type Sequence struct {
	steps []Step
	done  []Step
	warn  func(format string, args ...any)
}

// NewSequence returns an empty Sequence. warn, if non-nil, receives
// one line per step that fails (bring-up steps that are best-effort
// log and continue rather than aborting; see Step docs on individual
// steps below).
func NewSequence(warn func(format string, args ...any)) *Sequence {
	return &Sequence{warn: warn}
}

// Add appends a step to the sequence.
func (s *Sequence) Add(step Step) {
	s.steps = append(s.steps, step)
}

// Run executes every step in order. If a step's Up returns an error,
// every previously succeeded step is torn down in reverse order and
// the error is returned.
func (s *Sequence) Run() error {
	for _, step := range s.steps {
		if err := step.Up(); err != nil {
			if s.warn != nil {
				s.warn("startup: step %s failed: %v", step.Name, err)
			}
			s.Shutdown()
			return fmt.Errorf("startup: %s: %w", step.Name, err)
		}
		s.done = append(s.done, step)
	}
	return nil
}

// Shutdown tears down every step that successfully started, in
// reverse order.
func (s *Sequence) Shutdown() {
	for i := len(s.done) - 1; i >= 0; i-- {
		if s.done[i].Down != nil {
			s.done[i].Down()
		}
	}
	s.done = nil
}

// ProtectFromOOMKiller sets this process's oom_score_adj to -1000,
// which exempts it from the kernel OOM killer. Lowering the value
// needs CAP_SYS_RESOURCE, so the write fails for unprivileged
// processes; callers should treat a failure here as a warning, never
// fatal.
func ProtectFromOOMKiller() error {
	return os.WriteFile("/proc/self/oom_score_adj", []byte("-1000"), 0644)
}

// RaiseRealtimePriority requests the lowest realtime FIFO priority
// plus nice(-1), so the state management daemon is scheduled ahead of
// normal processes without starving them outright. Only root can
// actually obtain SCHED_FIFO; a permission failure here is expected in
// most non-root deployments and should be logged, not treated as
// fatal.
func RaiseRealtimePriority() error {
	minPrio, err := unix.SchedGetPriorityMin(unix.SCHED_FIFO)
	if err != nil {
		return fmt.Errorf("sched_get_priority_min: %w", err)
	}
	param := &unix.SchedParam{Priority: int32(minPrio)}
	if err := unix.SchedSetscheduler(0, unix.SCHED_FIFO, param); err != nil {
		return fmt.Errorf("sched_setscheduler: %w", err)
	}
	if err := syscall.Setpriority(syscall.PRIO_PROCESS, 0, -1); err != nil {
		return fmt.Errorf("setpriority: %w", err)
	}
	runtime.LockOSThread()
	return nil
}

// Chdir changes the working directory to "/", so the daemon never
// pins whatever filesystem it happened to be launched from.
func Chdir() error {
	return os.Chdir("/")
}

// NotifyParent sends SIGUSR1 to the parent process, used when started
// under an init system that wants an explicit "listen socket is up"
// readiness signal (the -s/--systemd flag).
func NotifyParent() error {
	return syscall.Kill(os.Getppid(), syscall.SIGUSR1)
}
