package bus

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEventBus(t *testing.T) {
	t.Run("PublishSubscribe", func(t *testing.T) {
		b := New()
		var got Event
		_, err := b.Subscribe("ai.spawned", func(e Event) error {
			got = e
			return nil
		})
		require.NoError(t, err)

		require.NoError(t, b.Publish(NewEvent("ai.spawned", "zone", int64(7))))
		require.NotNil(t, got)
		require.Equal(t, "zone", got.Source())
		require.Equal(t, int64(7), got.Data())
	})

	t.Run("Wildcard", func(t *testing.T) {
		b := New()
		calls := 0
		_, err := b.Subscribe(Wildcard, func(Event) error {
			calls++
			return nil
		})
		require.NoError(t, err)

		require.NoError(t, b.PublishBatch(NewEvent("a", "", nil), NewEvent("b", "", nil)))
		require.Equal(t, 2, calls)
	})

	t.Run("ErrorsJoined", func(t *testing.T) {
		b := New()
		e1, e2 := errors.New("first"), errors.New("second")
		_, _ = b.Subscribe("x", func(Event) error { return e1 })
		_, _ = b.Subscribe("x", func(Event) error { return e2 })

		err := b.Publish(NewEvent("x", "", nil))
		require.ErrorIs(t, err, e1)
		require.ErrorIs(t, err, e2)
	})

	t.Run("Cancel", func(t *testing.T) {
		b := New()
		calls := 0
		sub, err := b.Subscribe("x", func(Event) error {
			calls++
			return nil
		})
		require.NoError(t, err)
		require.Equal(t, 1, b.Subscribers("x"))

		require.NoError(t, b.Unsubscribe(sub))
		require.NoError(t, sub.Cancel())
		require.False(t, sub.IsActive())
		require.Zero(t, b.Subscribers("x"))

		require.NoError(t, b.Publish(NewEvent("x", "", nil)))
		require.Zero(t, calls)
	})

	t.Run("BatchJoinsErrors", func(t *testing.T) {
		b := New()
		handlerErr := errors.New("fail")
		_, _ = b.Subscribe("x", func(Event) error { return handlerErr })
		delivered := 0
		_, _ = b.Subscribe("y", func(Event) error {
			delivered++
			return nil
		})

		err := b.PublishBatch(NewEvent("x", "", nil), NewEvent("y", "", nil))
		require.ErrorIs(t, err, handlerErr)
		require.Equal(t, 1, delivered)
	})

	t.Run("Validation", func(t *testing.T) {
		b := New()
		_, err := b.Subscribe("x", nil)
		require.ErrorIs(t, err, ErrNilHandler)
		_, err = b.Subscribe("", func(Event) error { return nil })
		require.ErrorIs(t, err, ErrEmptyEventType)
		require.ErrorIs(t, b.Publish(nil), ErrNilEvent)
	})
}
