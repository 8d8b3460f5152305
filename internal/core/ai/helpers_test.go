package ai

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/zeusync/aitree/internal/core/observability/log"
)

type testCharacter struct {
	mu          sync.Mutex
	id          CharacterID
	pos         Vec3
	orientation float64
	speed       float64
	attrs       map[string]float64
	updates     atomic.Int64
}

func newTestCharacter(id CharacterID) *testCharacter {
	return &testCharacter{id: id, speed: 1, attrs: map[string]float64{}}
}

func (c *testCharacter) ID() CharacterID { return c.id }

func (c *testCharacter) Position() Vec3 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pos
}

func (c *testCharacter) SetPosition(pos Vec3) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pos = pos
}

func (c *testCharacter) Orientation() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.orientation
}

func (c *testCharacter) SetOrientation(o float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.orientation = o
}

func (c *testCharacter) Speed() float64 { return c.speed }

func (c *testCharacter) Update(int64, bool) { c.updates.Add(1) }

func (c *testCharacter) Attributes() map[string]float64 { return c.attrs }

// plainCharacter cannot be moved.
type plainCharacter struct{ id CharacterID }

func (c plainCharacter) ID() CharacterID    { return c.id }
func (c plainCharacter) Position() Vec3     { return Vec3{} }
func (c plainCharacter) Update(int64, bool) {}

// spyNode returns a scripted sequence of statuses and counts invocations of
// its body, i.e. calls that passed the condition.
type spyNode struct {
	*Node
	statuses []Status
	calls    atomic.Int64
}

func newSpy(statuses ...Status) *spyNode {
	return newSpyWithCondition(nil, statuses...)
}

func newSpyWithCondition(c Condition, statuses ...Status) *spyNode {
	return &spyNode{Node: NewNode("Spy", NodeFactoryContext{Condition: c}), statuses: statuses}
}

func (s *spyNode) Execute(ai *AI, _ int64) Status {
	if !s.Gate(ai) {
		return StatusCannotExecute
	}
	n := s.calls.Add(1)
	idx := min(int(n)-1, len(s.statuses)-1)
	return s.State(ai, s.statuses[idx])
}

func (s *spyNode) Calls() int {
	return int(s.calls.Load())
}

type panicNode struct {
	*Node
}

func (p *panicNode) Execute(*AI, int64) Status {
	panic("broken custom node")
}

type toggleCondition struct {
	BaseCondition
	value atomic.Bool
}

func newToggle(initial bool) *toggleCondition {
	c := &toggleCondition{BaseCondition: NewBaseCondition("Toggle", "")}
	c.value.Store(initial)
	return c
}

func (c *toggleCondition) Evaluate(*AI) bool { return c.value.Load() }

type staticFilter struct {
	BaseFilter
	ids []CharacterID
}

func newStatic(ids ...CharacterID) *staticFilter {
	return &staticFilter{BaseFilter: NewBaseFilter("Static", ""), ids: ids}
}

func (f *staticFilter) Filter(ai *AI) {
	for _, id := range f.ids {
		ai.AddFilteredEntity(id)
	}
}

func newTestAI(t *testing.T, root TreeNode, id CharacterID) (*AI, *testCharacter) {
	t.Helper()
	a := NewAI(root, WithLogger(log.Nop()), WithSeed(uint64(id)+1))
	ch := newTestCharacter(id)
	require.NoError(t, a.SetCharacter(ch))
	return a, ch
}

// step runs one tick the same way a zone does.
func step(a *AI, dt int64, debug bool) Status {
	a.Update(dt, debug)
	return a.Behaviour().Execute(a, dt)
}

// must unwraps a (TreeNode, error) constructor result: must(t)(NewSequence(ctx)).
func must(t *testing.T) func(TreeNode, error) TreeNode {
	return func(n TreeNode, err error) TreeNode {
		t.Helper()
		require.NoError(t, err)
		return n
	}
}

func withChildren(t *testing.T, parent TreeNode, children ...TreeNode) TreeNode {
	t.Helper()
	for _, c := range children {
		require.True(t, parent.AddChild(c))
	}
	return parent
}
