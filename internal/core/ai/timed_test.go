package ai

import (
	"testing"

	"github.com/stretchr/testify/require"
)

type countingHooks struct {
	start, running, expired int
	// early makes OnStart and OnRunning finish the node before the deadline.
	early bool
}

func (h *countingHooks) progress() Status {
	if h.early {
		return StatusFinished
	}
	return StatusRunning
}

func (h *countingHooks) OnStart(*AI) Status {
	h.start++
	return h.progress()
}

func (h *countingHooks) OnRunning(*AI) Status {
	h.running++
	return h.progress()
}

func (h *countingHooks) OnExpired(*AI) Status {
	h.expired++
	return StatusFinished
}

func TestTimed(t *testing.T) {
	t.Run("Phases", func(t *testing.T) {
		idle := must(t)(NewIdle(NodeFactoryContext{Parameters: "100"}))
		a, _ := newTestAI(t, idle, 1)

		require.Equal(t, StatusRunning, step(a, 10, false))
		require.Equal(t, int64(100), idle.(*Timed).Remaining(a))
		require.Equal(t, StatusRunning, step(a, 50, false))
		require.Equal(t, int64(50), idle.(*Timed).Remaining(a))
		require.Equal(t, StatusFinished, step(a, 50, false))
		require.Equal(t, int64(-1), idle.(*Timed).Remaining(a))

		require.Equal(t, StatusRunning, step(a, 10, false))
	})

	t.Run("DefaultDuration", func(t *testing.T) {
		idle := must(t)(NewIdle(NodeFactoryContext{}))
		require.Equal(t, int64(1000), idle.(*Timed).Millis())
	})

	t.Run("GatedPastDeadlineExpiresDirectly", func(t *testing.T) {
		hooks := &countingHooks{}
		gate := newToggle(true)
		node, err := NewTimed("Counting", NodeFactoryContext{Parameters: "100", Condition: gate}, 0, hooks)
		require.NoError(t, err)
		a, _ := newTestAI(t, node, 1)

		require.Equal(t, StatusRunning, step(a, 10, false))
		gate.value.Store(false)
		for i := 0; i < 5; i++ {
			require.Equal(t, StatusCannotExecute, step(a, 100, false))
		}
		gate.value.Store(true)
		require.Equal(t, StatusFinished, step(a, 10, false))

		require.Equal(t, 1, hooks.start)
		require.Zero(t, hooks.running)
		require.Equal(t, 1, hooks.expired)
	})

	t.Run("SharedNodeIndependentTimers", func(t *testing.T) {
		idle := must(t)(NewIdle(NodeFactoryContext{Parameters: "100"}))
		a1, _ := newTestAI(t, idle, 1)
		a2, _ := newTestAI(t, idle, 2)

		require.Equal(t, StatusRunning, step(a1, 60, false))
		require.Equal(t, StatusRunning, step(a1, 60, false))
		require.Equal(t, StatusRunning, step(a2, 60, false))
		require.Equal(t, StatusFinished, step(a1, 60, false))
		require.Equal(t, StatusRunning, step(a2, 60, false))
		require.Equal(t, StatusFinished, step(a2, 60, false))
	})

	t.Run("BehaviourSwapClearsTimer", func(t *testing.T) {
		idle := must(t)(NewIdle(NodeFactoryContext{Parameters: "100"}))
		a, _ := newTestAI(t, idle, 1)
		step(a, 10, false)
		require.Equal(t, 1, a.StateSizes().Timers)

		a.SetBehaviour(idle)
		a.Update(10, false)
		require.Zero(t, a.StateSizes().Timers)
	})

	t.Run("FinishedOnStartRestarts", func(t *testing.T) {
		hooks := &countingHooks{early: true}
		node, err := NewTimed("Counting", NodeFactoryContext{Parameters: "100"}, 0, hooks)
		require.NoError(t, err)
		a, _ := newTestAI(t, node, 1)

		require.Equal(t, StatusFinished, step(a, 10, false))
		require.Zero(t, a.StateSizes().Timers)
		require.Equal(t, StatusFinished, step(a, 10, false))

		require.Equal(t, 2, hooks.start)
		require.Zero(t, hooks.running)
		require.Zero(t, hooks.expired)
	})

	t.Run("FinishedWhileRunningRestarts", func(t *testing.T) {
		hooks := &countingHooks{}
		node, err := NewTimed("Counting", NodeFactoryContext{Parameters: "100"}, 0, hooks)
		require.NoError(t, err)
		a, _ := newTestAI(t, node, 1)

		require.Equal(t, StatusRunning, step(a, 10, false))
		hooks.early = true
		require.Equal(t, StatusFinished, step(a, 10, false))
		require.Equal(t, StatusFinished, step(a, 10, false))

		require.Equal(t, 2, hooks.start)
		require.Equal(t, 1, hooks.running)
		require.Zero(t, hooks.expired)
	})
}
