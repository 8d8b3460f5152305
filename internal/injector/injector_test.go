package injector

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/zeusync/aitree/internal/config"
	"github.com/zeusync/aitree/internal/core/ai"
	"github.com/zeusync/aitree/internal/core/events/bus"
	"github.com/zeusync/aitree/internal/core/observability/log"
)

const trees = `
trees:
  - name: sentry
    root:
      type: PrioritySelector
      children:
        - type: Idle{100}
          condition: Always
`

func TestInitializeRuntime(t *testing.T) {
	t.Run("Assembles", func(t *testing.T) {
		dir := t.TempDir()
		scripts := filepath.Join(dir, "scripts")
		require.NoError(t, os.Mkdir(scripts, 0o755))
		require.NoError(t, os.WriteFile(filepath.Join(scripts, "Always.condition.js"),
			[]byte(`function evaluate() { return true; }`), 0o644))
		require.NoError(t, os.WriteFile(filepath.Join(dir, "trees.yaml"), []byte(trees), 0o644))

		cfg, err := config.Load("")
		require.NoError(t, err)
		cfg.Log.Level = "error"
		cfg.Zone.Name = "arena"
		cfg.Trees.Path = filepath.Join(dir, "trees.yaml")
		cfg.Script.Dir = scripts

		rt, cleanup, err := InitializeRuntime(cfg)
		require.NoError(t, err)
		defer cleanup()

		require.Equal(t, []string{"sentry"}, rt.Trees.Names())
		require.True(t, rt.Registry.IsCondition("Always"))
		require.Equal(t, "arena", rt.Zone.Name())
		require.Equal(t, []string{"arena"}, rt.Debug.Names())
	})

	t.Run("MissingTreesIsEmpty", func(t *testing.T) {
		cfg, err := config.Load("")
		require.NoError(t, err)
		cfg.Log.Level = "error"
		cfg.Trees.Path = filepath.Join(t.TempDir(), "absent")

		rt, cleanup, err := InitializeRuntime(cfg)
		require.NoError(t, err)
		defer cleanup()
		require.Empty(t, rt.Trees.Names())
	})

	t.Run("BrokenTreesFail", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "bad.yaml")
		require.NoError(t, os.WriteFile(path, []byte("trees:\n  - name: x\n    root:\n      type: Nope\n"), 0o644))

		cfg, err := config.Load("")
		require.NoError(t, err)
		cfg.Log.Level = "error"
		cfg.Trees.Path = path

		_, _, err = InitializeRuntime(cfg)
		require.Error(t, err)
	})
}

func TestProvideTreeLoader(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trees.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
trees:
  - name: lazy
    root:
      type: Idle{100}
  - name: guard
    root:
      type: Sequence
      children:
        - type: Idle{50}
`), 0o644))

	cfg, err := config.Load("")
	require.NoError(t, err)
	cfg.Trees.Path = path

	obs, logs := observer.New(zap.InfoLevel)
	l, err := ProvideTreeLoader(cfg, ai.NewRegistry(), log.FromZap(zap.New(obs), log.LevelInfo))
	require.NoError(t, err)
	require.Equal(t, []string{"guard", "lazy"}, l.Names())

	ready := logs.FilterMessage("behaviour trees ready").All()
	require.Len(t, ready, 1)
	require.Equal(t, []any{"guard", "lazy"}, ready[0].ContextMap()["trees"])
}

type dummy struct{ id ai.CharacterID }

func (d dummy) ID() ai.CharacterID { return d.id }
func (d dummy) Position() ai.Vec3  { return ai.Vec3{} }
func (d dummy) Update(int64, bool) {}

func TestProvideZone(t *testing.T) {
	cfg, err := config.Load("")
	require.NoError(t, err)
	cfg.Zone.Name = "arena"

	events := bus.New()
	_, err = events.Subscribe(ai.EventAISpawned, func(bus.Event) error { return errors.New("nope") })
	require.NoError(t, err)

	obs, logs := observer.New(zap.WarnLevel)
	z := ProvideZone(cfg, events, log.FromZap(zap.New(obs), log.LevelWarn))
	a := ai.NewAI(nil, ai.WithLogger(log.Nop()))
	require.NoError(t, a.SetCharacter(dummy{id: 1}))
	require.NoError(t, z.AddAI(a))
	z.Update(0)

	failed := logs.FilterMessage("event handlers failed").All()
	require.Len(t, failed, 1)
	zones := 0
	for _, f := range failed[0].Context {
		if f.Key == "zone" {
			zones++
		}
	}
	require.Equal(t, 1, zones)
}
