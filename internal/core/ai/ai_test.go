package ai

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAI(t *testing.T) {
	t.Run("CharacterBoundOnce", func(t *testing.T) {
		a := NewAI(nil)
		require.Equal(t, NoCharacter, a.ID())
		require.ErrorIs(t, a.SetCharacter(nil), ErrNilCharacter)
		require.NoError(t, a.SetCharacter(newTestCharacter(4)))
		require.ErrorIs(t, a.SetCharacter(newTestCharacter(5)), ErrCharacterAlreadySet)
		require.Equal(t, CharacterID(4), a.ID())
	})

	t.Run("UpdateAdvancesTimeAndCharacter", func(t *testing.T) {
		a, ch := newTestAI(t, newSpy(StatusFinished), 1)
		a.Update(16, true)
		a.Update(17, false)
		require.Equal(t, int64(33), a.Time())
		require.False(t, a.DebuggingActive())
		require.Equal(t, int64(2), ch.updates.Load())
	})

	t.Run("PauseIsNoop", func(t *testing.T) {
		a, ch := newTestAI(t, newSpy(StatusFinished), 1)
		a.AggroMgr().SetReduceByValue(1000)
		a.AggroMgr().AddAggro(9, 5)
		a.SetPause(true)
		a.Reset()

		a.Update(16, true)
		require.Zero(t, a.Time())
		require.Zero(t, ch.updates.Load())
		require.Equal(t, 1, a.AggroMgr().Count())
		require.True(t, a.Paused())

		a.SetPause(false)
		a.Update(16, true)
		require.Equal(t, int64(16), a.Time())
		require.Zero(t, a.AggroMgr().Count())
	})

	t.Run("SetBehaviourResetsOnNextUpdate", func(t *testing.T) {
		running := newSpy(StatusRunning)
		limit := withChildren(t, must(t)(NewLimit(NodeFactoryContext{Parameters: "10"})), newSpy(StatusFinished))
		root := withChildren(t, must(t)(NewSequence(NodeFactoryContext{})), limit, running)
		a, _ := newTestAI(t, root, 1)

		step(a, 10, true)
		a.AddFilteredEntity(42)
		sizes := a.StateSizes()
		require.NotZero(t, sizes.LastStatus)
		require.NotZero(t, sizes.LastExecMillis)
		require.NotZero(t, sizes.SelectorStates)
		require.NotZero(t, sizes.LimitStates)
		require.NotZero(t, sizes.Filtered)

		next := newSpy(StatusFinished)
		var wg sync.WaitGroup
		wg.Add(1)
		var old TreeNode
		go func() {
			defer wg.Done()
			old = a.SetBehaviour(next)
		}()
		wg.Wait()

		require.Equal(t, root, old)
		require.Equal(t, TreeNode(next), a.Behaviour())
		// state survives until the tick goroutine runs Update
		require.NotZero(t, a.StateSizes().LastStatus)

		a.Update(10, true)
		require.Equal(t, StateSizes{}, a.StateSizes())
		require.Empty(t, a.FilteredEntities())
	})

	t.Run("FilteredEntitiesPersistAcrossTicks", func(t *testing.T) {
		a, _ := newTestAI(t, newSpy(StatusFinished), 1)
		a.SetFilteredEntities([]CharacterID{3, 4})
		step(a, 10, false)
		step(a, 10, false)
		require.Equal(t, []CharacterID{3, 4}, a.FilteredEntities())

		a.ClearFilteredEntities()
		require.Empty(t, a.FilteredEntities())
	})

	t.Run("UpdateDecaysAggro", func(t *testing.T) {
		a, _ := newTestAI(t, newSpy(StatusFinished), 1)
		a.AggroMgr().SetReduceByValue(10)
		a.AggroMgr().AddAggro(2, 15)
		a.Update(1000, false)
		e, ok := a.AggroMgr().Highest()
		require.True(t, ok)
		require.InDelta(t, 5.0, e.Aggro, 1e-9)
	})
}

func TestStatus(t *testing.T) {
	require.Equal(t, "RUNNING", StatusRunning.String())
	require.Equal(t, "UNKNOWN", Status(200).String())
	require.True(t, StatusFailed.Terminal())
	require.False(t, StatusRunning.Terminal())

	s, ok := ParseStatus("finished")
	require.True(t, ok)
	require.Equal(t, StatusFinished, s)
	_, ok = ParseStatus("done")
	require.False(t, ok)
}
