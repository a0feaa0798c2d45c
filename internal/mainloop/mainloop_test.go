package mainloop

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoopRunsIterationsUntilQuit(t *testing.T) {
	count := 0
	var l *Loop
	l = New(func() {
		count++
		if count == 3 {
			l.Quit(ExitSuccess)
			return
		}
		// Without a wake-up the loop would block after this pass.
		l.WakeUp()
	})

	code := l.Run()

	assert.Equal(t, 3, count)
	assert.Equal(t, ExitSuccess, code)
}

func TestQuitExitCodeIsMonotonicMax(t *testing.T) {
	var l *Loop
	calls := 0
	l = New(func() {
		calls++
		if calls == 1 {
			// The loop stops after this pass, so both calls happen here.
			l.Quit(ExitSuccess)
			l.Quit(7)
		}
	})

	code := l.Run()
	assert.Equal(t, 7, code)
}

func TestQuitAfterStopDoesNotLowerExitCode(t *testing.T) {
	l := New(nil)
	go func() {
		l.Quit(9)
		l.Quit(2)
	}()
	code := l.Run()
	assert.Equal(t, 9, code)
}

func TestWakeUpDoesNotStopTheLoop(t *testing.T) {
	var l *Loop
	passes := 0
	l = New(func() {
		passes++
		if passes == 1 {
			go func() {
				time.Sleep(time.Millisecond)
				l.WakeUp()
			}()
		}
		if passes == 2 {
			l.Quit(ExitSuccess)
		}
	})
	l.Run()
	assert.Equal(t, 2, passes)
}
