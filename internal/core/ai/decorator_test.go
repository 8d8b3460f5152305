package ai

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFail(t *testing.T) {
	t.Run("ForcesFailure", func(t *testing.T) {
		for _, status := range []Status{StatusFinished, StatusFailed, StatusCannotExecute, StatusException} {
			var child TreeNode = newSpy(status)
			if status == StatusCannotExecute {
				child = newSpyWithCondition(False())
			}
			root := withChildren(t, must(t)(NewFail(NodeFactoryContext{})), child)
			a, _ := newTestAI(t, root, 1)
			require.Equal(t, StatusFailed, step(a, 10, false), status.String())
		}
	})

	t.Run("RunningPassesThrough", func(t *testing.T) {
		root := withChildren(t, must(t)(NewFail(NodeFactoryContext{})), newSpy(StatusRunning))
		a, _ := newTestAI(t, root, 1)
		require.Equal(t, StatusRunning, step(a, 10, false))
	})

	t.Run("SingleChild", func(t *testing.T) {
		root := must(t)(NewFail(NodeFactoryContext{}))
		require.True(t, root.AddChild(newSpy(StatusFinished)))
		require.False(t, root.AddChild(newSpy(StatusFinished)))
		require.NoError(t, Validate(root))
	})

	t.Run("MissingChild", func(t *testing.T) {
		root := must(t)(NewFail(NodeFactoryContext{}))
		require.ErrorIs(t, Validate(root), ErrWrongChildCount)

		a, _ := newTestAI(t, root, 1)
		require.Equal(t, StatusException, step(a, 10, false))
	})

	t.Run("NestedValidation", func(t *testing.T) {
		broken := must(t)(NewInvert(NodeFactoryContext{}))
		root := withChildren(t, must(t)(NewSequence(NodeFactoryContext{})), newSpy(StatusFinished), broken)
		require.ErrorIs(t, Validate(root), ErrWrongChildCount)
	})
}

func TestSucceed(t *testing.T) {
	for status, want := range map[Status]Status{
		StatusFailed:    StatusFinished,
		StatusException: StatusFinished,
		StatusRunning:   StatusRunning,
	} {
		root := withChildren(t, must(t)(NewSucceed(NodeFactoryContext{})), newSpy(status))
		a, _ := newTestAI(t, root, 1)
		require.Equal(t, want, step(a, 10, false), status.String())
	}
}

func TestInvert(t *testing.T) {
	for status, want := range map[Status]Status{
		StatusFinished:  StatusFailed,
		StatusFailed:    StatusFinished,
		StatusRunning:   StatusRunning,
		StatusException: StatusException,
	} {
		root := withChildren(t, must(t)(NewInvert(NodeFactoryContext{})), newSpy(status))
		a, _ := newTestAI(t, root, 1)
		require.Equal(t, want, step(a, 10, false), status.String())
	}

	t.Run("GatedChild", func(t *testing.T) {
		root := withChildren(t, must(t)(NewInvert(NodeFactoryContext{})), newSpyWithCondition(False()))
		a, _ := newTestAI(t, root, 1)
		require.Equal(t, StatusFinished, step(a, 10, false))
	})
}

func TestLimit(t *testing.T) {
	t.Run("UnderAndAtCap", func(t *testing.T) {
		child := newSpy(StatusFinished)
		root := withChildren(t, must(t)(NewLimit(NodeFactoryContext{Parameters: "2"})), child)
		a, _ := newTestAI(t, root, 1)

		require.Equal(t, StatusFinished, step(a, 10, false))
		require.Equal(t, 1, child.Calls())
		require.Equal(t, StatusFinished, step(a, 10, false))
		require.Equal(t, 2, child.Calls())

		require.Equal(t, StatusFinished, step(a, 10, false))
		require.Equal(t, StatusFinished, step(a, 10, false))
		require.Equal(t, 2, child.Calls())
	})

	t.Run("UnderCapPropagatesChild", func(t *testing.T) {
		child := newSpy(StatusFailed)
		root := withChildren(t, must(t)(NewLimit(NodeFactoryContext{Parameters: "1"})), child)
		a, _ := newTestAI(t, root, 1)

		require.Equal(t, StatusFailed, step(a, 10, false))
		require.Equal(t, StatusFinished, step(a, 10, false))
		require.Equal(t, 1, child.Calls())
	})

	t.Run("PerAI", func(t *testing.T) {
		child := newSpy(StatusFinished)
		root := withChildren(t, must(t)(NewLimit(NodeFactoryContext{Parameters: "1"})), child)
		a1, _ := newTestAI(t, root, 1)
		a2, _ := newTestAI(t, root, 2)

		step(a1, 10, false)
		step(a1, 10, false)
		step(a2, 10, false)
		require.Equal(t, 2, child.Calls())
	})

	t.Run("ResetClearsCounter", func(t *testing.T) {
		child := newSpy(StatusFinished)
		root := withChildren(t, must(t)(NewLimit(NodeFactoryContext{Parameters: "1"})), child)
		a, _ := newTestAI(t, root, 1)

		step(a, 10, false)
		step(a, 10, false)
		a.Reset()
		step(a, 10, false)
		require.Equal(t, 2, child.Calls())
	})

	t.Run("Parameters", func(t *testing.T) {
		l, err := NewLimit(NodeFactoryContext{})
		require.NoError(t, err)
		require.Equal(t, 1, l.(*Limit).Amount())

		_, err = NewLimit(NodeFactoryContext{Parameters: "many"})
		require.ErrorIs(t, err, ErrInvalidParameters)

		_, err = NewLimit(NodeFactoryContext{Parameters: "-1"})
		require.ErrorIs(t, err, ErrInvalidParameters)
	})
}
