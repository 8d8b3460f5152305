package loader

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/zeusync/aitree/internal/core/ai"
	"github.com/zeusync/aitree/internal/core/observability/log"
)

const guardYAML = `
trees:
  - name: guard
    root:
      name: root
      type: PrioritySelector
      children:
        - name: fight
          type: Sequence
          condition: HasEnemies
          children:
            - type: Steer(SelectionSeek)
              condition: Filter(SelectHighestAggro)
            - type: Idle{250}
        - name: patrol
          type: Steer{1}(Wander{0.3})
  - name: lazy
    root:
      type: Limit{2}
      children:
        - type: Idle
`

func newLoader() *TreeLoader {
	return New(ai.NewRegistry(), log.Nop())
}

func TestLoadYAML(t *testing.T) {
	doc, err := DecodeYAML(strings.NewReader(guardYAML))
	require.NoError(t, err)

	l := newLoader()
	require.NoError(t, l.Load(doc))
	require.Equal(t, []string{"guard", "lazy"}, l.Names())

	root, ok := l.Tree("guard")
	require.True(t, ok)
	require.Equal(t, ai.TypePrioritySelector, root.Type())
	require.Len(t, root.Children(), 2)

	fight := root.Children()[0]
	require.Equal(t, "fight", fight.Name())
	require.Equal(t, ai.CondHasEnemies, fight.Condition().Name())
	require.Equal(t, ai.CondFilter, fight.Children()[0].Condition().Name())
	require.Equal(t, int64(250), fight.Children()[1].(*ai.Timed).Millis())
	require.Equal(t, ai.CondTrue, root.Children()[1].Condition().Name())

	lazy, ok := l.Tree("lazy")
	require.True(t, ok)
	require.Equal(t, 2, lazy.(*ai.Limit).Amount())

	_, ok = l.Tree("missing")
	require.False(t, ok)
}

func TestLoadJSON(t *testing.T) {
	doc, err := DecodeJSON(strings.NewReader(`{"trees":[{"name":"idle","root":{"type":"Idle{10}","condition":"Not(False)"}}]}`))
	require.NoError(t, err)

	l := newLoader()
	require.NoError(t, l.Load(doc))
	root, ok := l.Tree("idle")
	require.True(t, ok)
	require.Equal(t, ai.CondNot, root.Condition().Name())
}

func TestLoadDiagnostics(t *testing.T) {
	doc := &Document{Trees: []TreeDefinition{
		{Name: "ok", Root: NodeDefinition{Type: "Sequence", Children: []NodeDefinition{{Type: "Idle"}}}},
		{Name: "bad-type", Root: NodeDefinition{Type: "Sequence", Children: []NodeDefinition{{Type: "Teleport"}}}},
		{Name: "bad-condition", Root: NodeDefinition{Type: "Idle", Condition: "And(Maybe)"}},
		{Name: "empty-decorator", Root: NodeDefinition{Type: "Invert"}},
		{Name: "crowded-decorator", Root: NodeDefinition{Type: "Fail", Children: []NodeDefinition{{Type: "Idle"}, {Type: "Idle"}}}},
		{Name: "no-type", Root: NodeDefinition{Name: "nothing"}},
		{Name: ""},
	}}

	l := newLoader()
	err := l.Load(doc)
	require.Error(t, err)
	require.ErrorIs(t, err, ai.ErrUnknownType)
	require.ErrorIs(t, err, ai.ErrWrongChildCount)
	require.ErrorIs(t, err, ErrMissingType)
	require.ErrorIs(t, err, ErrEmptyTreeName)
	require.Contains(t, err.Error(), `tree "bad-type": root.children[0]`)
	require.Contains(t, err.Error(), `root.children[1]`)
	require.Equal(t, []string{"ok"}, l.Names())

	t.Run("Duplicate", func(t *testing.T) {
		err := l.Load(&Document{Trees: []TreeDefinition{{Name: "ok", Root: NodeDefinition{Type: "Idle"}}}})
		require.ErrorIs(t, err, ErrDuplicateTree)
	})
}

func TestLoadPath(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "guard.yaml"), []byte(guardYAML), 0o600))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "more"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "more", "idle.json"),
		[]byte(`{"trees":[{"name":"idle","root":{"type":"Idle"}}]}`), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "README.txt"), []byte("ignored"), 0o600))

	l := newLoader()
	require.NoError(t, l.LoadPath(dir))
	require.Equal(t, []string{"guard", "idle", "lazy"}, l.Names())

	t.Run("UnsupportedFile", func(t *testing.T) {
		err := newLoader().LoadFile(filepath.Join(dir, "README.txt"))
		require.ErrorIs(t, err, ErrUnsupportedFormat)
	})

	t.Run("Missing", func(t *testing.T) {
		require.Error(t, newLoader().LoadPath(filepath.Join(dir, "nope")))
	})
}

func TestLoadedTreeRuns(t *testing.T) {
	doc, err := DecodeYAML(strings.NewReader(guardYAML))
	require.NoError(t, err)
	l := newLoader()
	require.NoError(t, l.Load(doc))

	root, _ := l.Tree("lazy")
	a := ai.NewAI(root, ai.WithLogger(log.Nop()))
	require.NoError(t, a.SetCharacter(&character{id: 1}))

	a.Update(0, false)
	require.Equal(t, ai.StatusRunning, root.Execute(a, 0))
}

type character struct{ id ai.CharacterID }

func (c *character) ID() ai.CharacterID { return c.id }
func (c *character) Position() ai.Vec3  { return ai.Vec3{} }
func (c *character) Update(int64, bool) {}
