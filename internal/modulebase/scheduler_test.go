package modulebase

import (
	"testing"
	"time"

	"github.com/dsmed/dsmed/internal/bus"
	"github.com/dsmed/dsmed/internal/mainloop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSchedulerRunsJobAttributedToModule(t *testing.T) {
	disp := bus.NewDispatcher(nil)
	loop := mainloop.New(func() {})
	rt := NewRuntime(disp, loop, nil)
	RegisterBuiltin("sched-mod", func() Handler { return &fakeModule{} })
	require.NoError(t, rt.LoadModule("sched-mod", 0))

	sched := NewScheduler(rt, loop)
	sched.Start()
	defer sched.Stop()

	done := make(chan string, 1)
	require.NoError(t, sched.Schedule("sched-mod", "@every 1s", func() {
		done <- rt.CurrentModule()
	}))

	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		sched.RunPending()
		select {
		case name := <-done:
			assert.Equal(t, "sched-mod", name)
			return
		default:
			time.Sleep(10 * time.Millisecond)
		}
	}
	t.Fatal("scheduled job never ran")
}

func TestSchedulerCancelAllStopsFutureRuns(t *testing.T) {
	disp := bus.NewDispatcher(nil)
	loop := mainloop.New(func() {})
	rt := NewRuntime(disp, loop, nil)
	RegisterBuiltin("sched-mod-2", func() Handler { return &fakeModule{} })
	require.NoError(t, rt.LoadModule("sched-mod-2", 0))

	sched := NewScheduler(rt, loop)
	sched.Start()
	defer sched.Stop()

	calls := 0
	require.NoError(t, sched.Schedule("sched-mod-2", "@every 1s", func() { calls++ }))
	sched.CancelAll("sched-mod-2")

	time.Sleep(1200 * time.Millisecond)
	sched.RunPending()
	assert.Equal(t, 0, calls)
}

func TestSchedulerJobRunsScopedOnlyViaRunPending(t *testing.T) {
	disp := bus.NewDispatcher(nil)
	loop := mainloop.New(func() {})
	rt := NewRuntime(disp, loop, nil)
	RegisterBuiltin("sched-mod-3", func() Handler { return &fakeModule{} })
	require.NoError(t, rt.LoadModule("sched-mod-3", 0))

	sched := NewScheduler(rt, loop)
	sched.Start()
	defer sched.Stop()

	ran := false
	require.NoError(t, sched.Schedule("sched-mod-3", "@every 1s", func() { ran = true }))

	time.Sleep(1200 * time.Millisecond)
	assert.False(t, ran, "job body must not run before RunPending drains it on the mainloop goroutine")

	sched.RunPending()
	assert.True(t, ran)
}

func TestModuleReachesSchedulerThroughContext(t *testing.T) {
	disp := bus.NewDispatcher(nil)
	loop := mainloop.New(func() {})
	rt := NewRuntime(disp, loop, nil)

	sched := NewScheduler(rt, loop)
	rt.SetScheduler(sched)
	sched.Start()
	defer sched.Stop()

	var ctxRef *Context
	RegisterBuiltin("sched-ctx-mod", func() Handler {
		return &fakeModule{onInit: func(ctx *Context) { ctxRef = ctx }}
	})
	require.NoError(t, rt.LoadModule("sched-ctx-mod", 0))
	require.NotNil(t, ctxRef)

	ran := false
	require.NoError(t, ctxRef.Schedule("@every 1s", func() { ran = true }))

	time.Sleep(1200 * time.Millisecond)
	sched.RunPending()
	assert.True(t, ran, "Context.Schedule must reach the configured Scheduler end to end")
}
