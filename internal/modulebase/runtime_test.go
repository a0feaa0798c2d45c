package modulebase

import (
	"testing"

	"github.com/dsmed/dsmed/internal/bus"
	"github.com/dsmed/dsmed/internal/mainloop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeModule struct {
	onInit    func(ctx *Context)
	onFini    func()
	onHandle  func(sender *bus.Endpoint, msg bus.Message)
	msgType   bus.Type
	sizeCheck int
}

func (f *fakeModule) Init(ctx *Context) error {
	if f.onInit != nil {
		f.onInit(ctx)
	}
	return nil
}

func (f *fakeModule) Fini() error {
	if f.onFini != nil {
		f.onFini()
	}
	return nil
}

func (f *fakeModule) HandlerTable() []HandlerBinding {
	if f.onHandle == nil {
		return nil
	}
	return []HandlerBinding{{Type: f.msgType, PayloadSize: f.sizeCheck, Handle: f.onHandle}}
}

func TestLoadModuleRunsInitScopedAndRegistersHandlers(t *testing.T) {
	disp := bus.NewDispatcher(nil)
	rt := NewRuntime(disp, mainloop.New(func() {}), nil)

	var initCurrent, capturedCurrent string
	handled := false
	mod := &fakeModule{
		onInit:  func(ctx *Context) { initCurrent = rt.CurrentModule() },
		msgType: bus.TypeIdle,
		onHandle: func(sender *bus.Endpoint, msg bus.Message) {
			capturedCurrent = rt.CurrentModule()
			handled = true
		},
	}
	RegisterBuiltin("fake", func() Handler { return mod })

	require.NoError(t, rt.LoadModule("fake", 0))
	assert.Equal(t, "fake", initCurrent)
	assert.Equal(t, []string{"fake"}, rt.Loaded())

	disp.Dispatch(bus.Queued{Msg: bus.New(bus.TypeIdle, nil, 0)})

	assert.True(t, handled)
	assert.Equal(t, "fake", capturedCurrent)
	assert.Equal(t, "", rt.CurrentModule())
}

func TestUnloadModuleCallsFiniAndRemovesHandlers(t *testing.T) {
	disp := bus.NewDispatcher(nil)
	rt := NewRuntime(disp, mainloop.New(func() {}), nil)

	finiCalled := false
	handleCalls := 0
	mod := &fakeModule{
		msgType: bus.TypeHeartbeat,
		onFini:  func() { finiCalled = true },
		onHandle: func(sender *bus.Endpoint, msg bus.Message) {
			handleCalls++
		},
	}
	RegisterBuiltin("fake2", func() Handler { return mod })
	require.NoError(t, rt.LoadModule("fake2", 0))

	disp.Dispatch(bus.Queued{Msg: bus.New(bus.TypeHeartbeat, nil, 0)})
	assert.Equal(t, 1, handleCalls)

	require.NoError(t, rt.UnloadModule("fake2"))
	assert.True(t, finiCalled)

	disp.Dispatch(bus.Queued{Msg: bus.New(bus.TypeHeartbeat, nil, 0)})
	assert.Equal(t, 1, handleCalls, "unloaded module must not receive further messages")
}

func TestHandlerTableRejectsSizeMismatch(t *testing.T) {
	var warning string
	disp := bus.NewDispatcher(func(format string, args ...any) { warning = format })
	rt := NewRuntime(disp, mainloop.New(func() {}), nil)

	called := false
	mod := &fakeModule{
		msgType:   bus.TypeStateChangeInd,
		sizeCheck: 16,
		onHandle:  func(sender *bus.Endpoint, msg bus.Message) { called = true },
	}
	RegisterBuiltin("fake3", func() Handler { return mod })
	require.NoError(t, rt.LoadModule("fake3", 0))

	disp.Dispatch(bus.Queued{Msg: bus.New(bus.TypeStateChangeInd, nil, 4)})

	assert.False(t, called)
	assert.NotEmpty(t, warning)
}

func TestScopedRunsWithNamedModuleCurrent(t *testing.T) {
	disp := bus.NewDispatcher(nil)
	rt := NewRuntime(disp, mainloop.New(func() {}), nil)
	RegisterBuiltin("fake4", func() Handler { return &fakeModule{} })
	require.NoError(t, rt.LoadModule("fake4", 0))

	var seen string
	err := rt.Scoped("fake4", func() { seen = rt.CurrentModule() })
	require.NoError(t, err)
	assert.Equal(t, "fake4", seen)
	assert.Equal(t, "", rt.CurrentModule())
}

func TestLoadModuleRejectsDuplicateName(t *testing.T) {
	disp := bus.NewDispatcher(nil)
	rt := NewRuntime(disp, mainloop.New(func() {}), nil)
	RegisterBuiltin("dup", func() Handler { return &fakeModule{} })
	require.NoError(t, rt.LoadModule("dup", 0))
	assert.Error(t, rt.LoadModule("dup", 0))
}

func TestModuleTimerRunsScopedToOwningModule(t *testing.T) {
	disp := bus.NewDispatcher(nil)
	loop := mainloop.New(func() {})
	rt := NewRuntime(disp, loop, nil)

	var capturedCurrent string
	mod := &fakeModule{
		onInit: func(ctx *Context) {
			ctx.Timer(0, func() bool {
				capturedCurrent = rt.CurrentModule()
				loop.Quit(mainloop.ExitSuccess)
				return false
			})
		},
	}
	RegisterBuiltin("timer-mod", func() Handler { return mod })
	require.NoError(t, rt.LoadModule("timer-mod", 0))

	loop.Run()

	assert.Equal(t, "timer-mod", capturedCurrent)
	assert.Equal(t, "", rt.CurrentModule())
}

func TestModuleScheduleWithoutSchedulerConfiguredErrors(t *testing.T) {
	disp := bus.NewDispatcher(nil)
	rt := NewRuntime(disp, mainloop.New(func() {}), nil)

	var schedErr error
	mod := &fakeModule{
		onInit: func(ctx *Context) {
			schedErr = ctx.Schedule("@every 1s", func() {})
		},
	}
	RegisterBuiltin("sched-ctx-mod", func() Handler { return mod })
	require.NoError(t, rt.LoadModule("sched-ctx-mod", 0))

	assert.Error(t, schedErr)
}
