package mainloop

import (
	"os"
	"os/signal"
	"syscall"
)

// ExitSuccess and ExitFailure are the exit codes passed to Quit.
const (
	ExitSuccess = 0
	ExitFailure = 1
)

// WatchSignals arranges for SIGINT and SIGTERM to call
// l.Quit(ExitSuccess). SIGHUP and SIGPIPE are deliberately left at
// their default disposition, only SIGINT/SIGTERM request a clean
// shutdown. The returned function stops watching and releases the
// signal channel; callers should defer it.
func WatchSignals(l *Loop) (stop func()) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	done := make(chan struct{})
	go func() {
		for {
			select {
			case <-sigCh:
				l.Quit(ExitSuccess)
			case <-done:
				return
			}
		}
	}()

	return func() {
		signal.Stop(sigCh)
		close(done)
	}
}
