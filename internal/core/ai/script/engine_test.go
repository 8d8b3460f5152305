package script

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/zeusync/aitree/internal/core/ai"
	"github.com/zeusync/aitree/internal/core/observability/log"
)

type character struct {
	id    ai.CharacterID
	attrs map[string]float64
}

func (c *character) ID() ai.CharacterID            { return c.id }
func (c *character) Position() ai.Vec3             { return ai.Vec3{X: 1, Y: 2, Z: 3} }
func (c *character) Update(int64, bool)            {}
func (c *character) Attributes() map[string]float64 { return c.attrs }

func newAI(t *testing.T, root ai.TreeNode, logger log.Log) *ai.AI {
	t.Helper()
	a := ai.NewAI(root, ai.WithLogger(logger))
	require.NoError(t, a.SetCharacter(&character{id: 5, attrs: map[string]float64{"hp": 20}}))
	return a
}

func tick(a *ai.AI) ai.Status {
	a.Update(10, false)
	return a.Behaviour().Execute(a, 10)
}

const chase = `
var ticks = 0;
function execute(ai, dt, params) {
	ticks++;
	if (ai.enemies.length > 0) return "FINISHED";
	return params === "fail" ? 4 : "running";
}
`

func TestScriptNode(t *testing.T) {
	e := New(2, 100*time.Millisecond, log.Nop())
	r := ai.NewRegistry()
	require.NoError(t, e.RegisterNode(r, "Chase", chase))

	t.Run("Statuses", func(t *testing.T) {
		n, err := ai.ParseTreeNode(r, "Chase", "", nil)
		require.NoError(t, err)
		a := newAI(t, n, log.Nop())
		require.Equal(t, ai.StatusRunning, tick(a))

		a.AggroMgr().AddAggro(9, 1)
		require.Equal(t, ai.StatusFinished, tick(a))

		failing, err := ai.ParseTreeNode(r, "Chase{fail}", "", nil)
		require.NoError(t, err)
		require.Equal(t, ai.StatusFailed, tick(newAI(t, failing, log.Nop())))
	})

	t.Run("Gated", func(t *testing.T) {
		n, err := ai.ParseTreeNode(r, "Chase", "", ai.False())
		require.NoError(t, err)
		require.Equal(t, ai.StatusCannotExecute, tick(newAI(t, n, log.Nop())))
	})

	t.Run("ErrorsBecomeException", func(t *testing.T) {
		require.NoError(t, e.RegisterNode(r, "Throw", `function execute() { throw new Error("boom"); }`))
		require.NoError(t, e.RegisterNode(r, "Garbage", `function execute() { return {}; }`))
		require.NoError(t, e.RegisterNode(r, "OutOfRange", `function execute() { return 42; }`))

		for _, typ := range []string{"Throw", "Garbage", "OutOfRange"} {
			core, logs := observer.New(zap.DebugLevel)
			logger := log.FromZap(zap.New(core), log.LevelDebug)
			n, err := ai.ParseTreeNode(r, typ, "", nil)
			require.NoError(t, err)
			require.Equal(t, ai.StatusException, tick(newAI(t, n, logger)), typ)

			entries := logs.FilterMessage("script node failed").All()
			require.Len(t, entries, 1, typ)
			require.Equal(t, typ, entries[0].ContextMap()["node_type"])
			require.Equal(t, int64(5), entries[0].ContextMap()["character_id"])
		}
	})

	t.Run("IsolatedScopes", func(t *testing.T) {
		require.NoError(t, e.RegisterNode(r, "AlwaysFail", `function execute() { return "FAILED"; }`))
		a1, err := ai.ParseTreeNode(r, "AlwaysFail", "", nil)
		require.NoError(t, err)
		a2, err := ai.ParseTreeNode(r, "Chase", "", nil)
		require.NoError(t, err)
		require.Equal(t, ai.StatusFailed, tick(newAI(t, a1, log.Nop())))
		require.Equal(t, ai.StatusRunning, tick(newAI(t, a2, log.Nop())))
	})

	t.Run("MutatesAggro", func(t *testing.T) {
		require.NoError(t, e.RegisterNode(r, "Taunt", `function execute(ai) { ai.addAggro(7, 3); return "FINISHED"; }`))
		n, err := ai.ParseTreeNode(r, "Taunt", "", nil)
		require.NoError(t, err)
		a := newAI(t, n, log.Nop())
		require.Equal(t, ai.StatusFinished, tick(a))
		require.Equal(t, []ai.AggroEntry{{CharacterID: 7, Aggro: 3}}, a.AggroMgr().Entries())
	})
}

func TestScriptTimeout(t *testing.T) {
	e := New(1, 20*time.Millisecond, log.Nop())
	r := ai.NewRegistry()
	require.NoError(t, e.RegisterNode(r, "Spin", `function execute() { while (true) {} }`))
	require.NoError(t, e.RegisterNode(r, "Quick", `function execute() { return "FINISHED"; }`))

	spin, err := ai.ParseTreeNode(r, "Spin", "", nil)
	require.NoError(t, err)
	quick, err := ai.ParseTreeNode(r, "Quick", "", nil)
	require.NoError(t, err)

	require.Equal(t, ai.StatusException, tick(newAI(t, spin, log.Nop())))
	require.Equal(t, ai.StatusFinished, tick(newAI(t, quick, log.Nop())))

	_, err = e.call(spin.(*Node).program, newAI(t, spin, log.Nop()))
	require.ErrorIs(t, err, ErrTimeout)
}

func TestRuntimeReuse(t *testing.T) {
	borrow := func(t *testing.T, e *Engine, hold time.Duration) *runtime {
		t.Helper()
		var got *runtime
		require.NoError(t, e.run(func(rt *runtime) error {
			got = rt
			time.Sleep(hold)
			return nil
		}))
		return got
	}

	t.Run("KeptWhenTimerStopped", func(t *testing.T) {
		e := New(1, time.Second, log.Nop())
		require.Same(t, borrow(t, e, 0), borrow(t, e, 0))
	})

	t.Run("ReplacedWhenTimerFired", func(t *testing.T) {
		e := New(1, 10*time.Millisecond, log.Nop())
		first := borrow(t, e, 50*time.Millisecond)
		require.NotSame(t, first, borrow(t, e, 0))

		r := ai.NewRegistry()
		require.NoError(t, e.RegisterNode(r, "Quick", `function execute() { return "FINISHED"; }`))
		quick, err := ai.ParseTreeNode(r, "Quick", "", nil)
		require.NoError(t, err)
		require.Equal(t, ai.StatusFinished, tick(newAI(t, quick, log.Nop())))
	})
}

func TestScriptCondition(t *testing.T) {
	e := New(2, 100*time.Millisecond, log.Nop())
	r := ai.NewRegistry()
	require.NoError(t, e.RegisterCondition(r, "IsHurt", `function evaluate(ai, params) { return ai.attr.hp < Number(params); }`))
	require.NoError(t, e.RegisterCondition(r, "Broken", `function evaluate() { return "yes"; }`))

	a := newAI(t, nil, log.Nop())

	c, err := ai.ParseCondition(r, "IsHurt{50}")
	require.NoError(t, err)
	require.True(t, c.Evaluate(a))

	c, err = ai.ParseCondition(r, "And(IsHurt{10})")
	require.NoError(t, err)
	require.False(t, c.Evaluate(a))

	c, err = ai.ParseCondition(r, "Broken")
	require.NoError(t, err)
	require.False(t, c.Evaluate(a))
}

func TestScriptFilter(t *testing.T) {
	e := New(2, 100*time.Millisecond, log.Nop())
	r := ai.NewRegistry()
	require.NoError(t, e.RegisterFilter(r, "Angry", `
function filter(ai, params) {
	var min = Number(params || 0);
	return ai.enemies.filter(function (e) { return e.aggro > min; }).map(function (e) { return e.id; });
}`))
	require.NoError(t, e.RegisterFilter(r, "Throws", `function filter() { throw "nope"; }`))

	a := newAI(t, nil, log.Nop())
	a.AggroMgr().AddAggro(1, 5)
	a.AggroMgr().AddAggro(2, 1)
	a.AggroMgr().AddAggro(3, 3)

	f, err := ai.ParseFilter(r, "Angry{2}")
	require.NoError(t, err)
	f.Filter(a)
	require.Equal(t, []ai.CharacterID{1, 3}, a.FilteredEntities())

	f, err = ai.ParseFilter(r, "Throws")
	require.NoError(t, err)
	f.Filter(a)
	require.Equal(t, []ai.CharacterID{1, 3}, a.FilteredEntities())

	c, err := ai.ParseCondition(r, "Filter(Angry{10})")
	require.NoError(t, err)
	a.ClearFilteredEntities()
	require.False(t, c.Evaluate(a))
}

func TestRegistration(t *testing.T) {
	e := New(1, 0, log.Nop())
	r := ai.NewRegistry()

	require.ErrorIs(t, e.RegisterNode(r, "NoEntry", `function evaluate() { return true; }`), ErrMissingFunction)
	require.Error(t, e.RegisterNode(r, "Syntax", `function execute( {`))
	require.ErrorIs(t, e.RegisterNode(r, ai.TypeSequence, `function execute() { return 3; }`), ErrTypeTaken)
	require.ErrorIs(t, e.RegisterCondition(r, ai.CondTrue, `function evaluate() { return true; }`), ErrTypeTaken)
	require.False(t, r.IsCondition("NoEntry"))

	t.Run("LoadDir", func(t *testing.T) {
		dir := t.TempDir()
		write := func(name, src string) {
			require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(src), 0o600))
		}
		write("Attack.node.js", `function execute() { return "FINISHED"; }`)
		write("IsHurt.condition.js", `function evaluate() { return true; }`)
		write("Weakest.filter.js", `function filter() { return [1]; }`)
		write("Odd.thing.js", `function execute() {}`)
		write("notes.txt", "ignored")

		err := e.LoadDir(r, dir)
		require.Error(t, err)
		require.Contains(t, err.Error(), "Odd.thing.js")
		require.True(t, r.IsCondition("IsHurt"))
		require.True(t, r.IsFilter("Weakest"))
		n, err := r.CreateNode("Attack", ai.NodeFactoryContext{})
		require.NoError(t, err)
		require.IsType(t, &Node{}, n)
	})
}
