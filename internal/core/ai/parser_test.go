package ai

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseTypeExpr(t *testing.T) {
	t.Run("Nested", func(t *testing.T) {
		expr, err := ParseTypeExpr(" Steer{0.7, 0.3} ( Wander{2}, TargetSeek{1,2,3} ) ")
		require.NoError(t, err)
		require.Equal(t, "Steer", expr.Name)
		require.Equal(t, "0.7, 0.3", expr.Parameters)
		require.Len(t, expr.Args, 2)
		require.Equal(t, TypeExpr{Name: "Wander", Parameters: "2"}, expr.Args[0])
		require.Equal(t, "1,2,3", expr.Args[1].Parameters)
		require.Equal(t, "Steer{0.7, 0.3}(Wander{2},TargetSeek{1,2,3})", expr.String())
	})

	t.Run("BalancedBraces", func(t *testing.T) {
		expr, err := ParseTypeExpr(`Expr{attr["hp"] < 10 && {"a": 1}.a == 1}`)
		require.NoError(t, err)
		require.Equal(t, `attr["hp"] < 10 && {"a": 1}.a == 1`, expr.Parameters)
	})

	t.Run("Errors", func(t *testing.T) {
		for _, in := range []string{"", "And(True", "{x}", "Sequence)", "Idle{100", "And(True,)", "Or(True False)"} {
			_, err := ParseTypeExpr(in)
			require.ErrorIs(t, err, ErrSyntax, in)
		}
	})
}

func TestParseCondition(t *testing.T) {
	r := NewRegistry()
	a, _ := newTestAI(t, nil, 1)

	t.Run("Combinators", func(t *testing.T) {
		c, err := ParseCondition(r, "And(True, Not(False), Or(False, True))")
		require.NoError(t, err)
		require.True(t, c.Evaluate(a))
	})

	t.Run("EmptyIsTrue", func(t *testing.T) {
		c, err := ParseCondition(r, "  ")
		require.NoError(t, err)
		require.Equal(t, CondTrue, c.Name())
	})

	t.Run("FilterOperands", func(t *testing.T) {
		c, err := ParseCondition(r, "Filter(Union(SelectHighestAggro, SelectAll))")
		require.NoError(t, err)
		require.IsType(t, &FilterCondition{}, c)
		require.False(t, c.Evaluate(a))

		a.AggroMgr().AddAggro(4, 1)
		require.True(t, c.Evaluate(a))
		require.Equal(t, []CharacterID{4}, a.FilteredEntities())
	})

	t.Run("Errors", func(t *testing.T) {
		_, err := ParseCondition(r, "Not(True, False)")
		require.ErrorIs(t, err, ErrWrongOperandCount)

		_, err = ParseCondition(r, "Maybe")
		require.ErrorIs(t, err, ErrUnknownType)

		_, err = ParseCondition(r, "And(Maybe)")
		require.ErrorIs(t, err, ErrUnknownType)

		_, err = ParseCondition(r, "HasEnemies{lots}")
		require.ErrorIs(t, err, ErrInvalidParameters)
	})
}

func TestParseFilter(t *testing.T) {
	r := NewRegistry()

	f, err := ParseFilter(r, "Intersection(SelectZone, Union(SelectGroupMembers{1}, SelectHighestAggro))")
	require.NoError(t, err)
	require.Equal(t, FilterIntersection, f.Name())

	_, err = ParseFilter(r, "Union")
	require.ErrorIs(t, err, ErrWrongOperandCount)

	_, err = ParseFilter(r, "Union(True)")
	require.ErrorIs(t, err, ErrUnknownType)

	_, err = ParseFilter(r, "Random{-1}(SelectHighestAggro)")
	require.ErrorIs(t, err, ErrInvalidParameters)

	f, err = ParseFilter(r, "Random{0}(SelectHighestAggro)")
	require.NoError(t, err)
	require.Equal(t, FilterRandom, f.Name())
}

func TestParseTreeNode(t *testing.T) {
	r := NewRegistry()

	t.Run("Parameters", func(t *testing.T) {
		n, err := ParseTreeNode(r, "Idle{500}", "wait", nil)
		require.NoError(t, err)
		require.Equal(t, int64(500), n.(*Timed).Millis())
		require.Equal(t, "wait", n.Name())
		require.Equal(t, TypeIdle, n.Type())
		require.Equal(t, "500", n.Parameters())
		require.Equal(t, CondTrue, n.Condition().Name())
	})

	t.Run("Steer", func(t *testing.T) {
		n, err := ParseTreeNode(r, "Steer{0.5,0.5}(Wander, TargetSeek{1,0,0})", "", False())
		require.NoError(t, err)
		require.IsType(t, &Steer{}, n)
		require.Equal(t, CondFalse, n.Condition().Name())

		_, err = ParseTreeNode(r, "Steer(Sequence)", "", nil)
		require.ErrorIs(t, err, ErrUnknownType)

		_, err = ParseTreeNode(r, "Steer", "", nil)
		require.ErrorIs(t, err, ErrWrongOperandCount)
	})

	t.Run("Errors", func(t *testing.T) {
		_, err := ParseTreeNode(r, "Sequence(True)", "", nil)
		require.ErrorIs(t, err, ErrSyntax)

		_, err = ParseTreeNode(r, "Teleport", "", nil)
		require.ErrorIs(t, err, ErrUnknownType)

		_, err = ParseTreeNode(r, "Limit{x}", "", nil)
		require.ErrorIs(t, err, ErrInvalidParameters)
	})
}
