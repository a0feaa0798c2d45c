package startup

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSequenceRunsStepsInOrder(t *testing.T) {
	var order []string
	seq := NewSequence(nil)
	seq.Add(Step{Name: "a", Up: func() error { order = append(order, "a-up"); return nil }})
	seq.Add(Step{Name: "b", Up: func() error { order = append(order, "b-up"); return nil }})

	require.NoError(t, seq.Run())
	assert.Equal(t, []string{"a-up", "b-up"}, order)
}

func TestSequenceTearsDownInReverseOrderOnFailure(t *testing.T) {
	var order []string
	seq := NewSequence(nil)
	seq.Add(Step{
		Name: "a",
		Up:   func() error { order = append(order, "a-up"); return nil },
		Down: func() { order = append(order, "a-down") },
	})
	seq.Add(Step{
		Name: "b",
		Up:   func() error { order = append(order, "b-up"); return nil },
		Down: func() { order = append(order, "b-down") },
	})
	seq.Add(Step{
		Name: "c",
		Up:   func() error { return errors.New("boom") },
	})

	err := seq.Run()
	require.Error(t, err)
	assert.Equal(t, []string{"a-up", "b-up", "b-down", "a-down"}, order)
}

func TestShutdownIsSafeWithNoStepsRun(t *testing.T) {
	seq := NewSequence(nil)
	seq.Shutdown() // must not panic
}
