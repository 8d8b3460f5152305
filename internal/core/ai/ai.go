package ai

import (
	"math/rand/v2"
	"sync"
	"sync/atomic"

	"github.com/zeusync/aitree/internal/core/observability/log"
)

// behaviourRef boxes a TreeNode so it can be swapped atomically.
type behaviourRef struct {
	root TreeNode
}

// AI is the execution context binding one shared behaviour tree to one live
// character. All node scoped runtime state lives here, keyed by node id.
//
// Update and TreeNode.Execute for the same AI must only be called from one
// goroutine at a time. SetBehaviour, SetPause and the aggro manager may be used
// from any goroutine.
type AI struct {
	behaviour atomic.Pointer[behaviourRef]
	zone      atomic.Pointer[Zone]

	characterMu sync.RWMutex
	character   Character

	pause        atomic.Bool
	resetPending atomic.Bool

	debuggingActive bool
	time            int64

	lastStatus     map[NodeID]Status
	lastExecMillis map[NodeID]int64
	selectorStates map[NodeID]int
	limitStates    map[NodeID]int
	timers         map[NodeID]int64

	filteredEntities []CharacterID

	aggro  *AggroMgr
	rnd    *rand.Rand
	logger log.Log
}

type AIOption func(*AI)

// WithAggroMgr replaces the default aggro manager.
func WithAggroMgr(mgr *AggroMgr) AIOption {
	return func(a *AI) { a.aggro = mgr }
}

// WithLogger sets the logger node diagnostics are written to.
func WithLogger(l log.Log) AIOption {
	return func(a *AI) { a.logger = l }
}

// WithSeed fixes the random source used by random selectors, filters and steering.
func WithSeed(seed uint64) AIOption {
	return func(a *AI) { a.rnd = rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)) }
}

// NewAI creates an execution context running the given behaviour.
func NewAI(behaviour TreeNode, opts ...AIOption) *AI {
	a := &AI{
		lastStatus:     make(map[NodeID]Status),
		lastExecMillis: make(map[NodeID]int64),
		selectorStates: make(map[NodeID]int),
		limitStates:    make(map[NodeID]int),
		timers:         make(map[NodeID]int64),
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.aggro == nil {
		a.aggro = NewAggroMgr()
	}
	if a.logger == nil {
		a.logger = log.Provide()
	}
	if a.rnd == nil {
		a.rnd = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	a.behaviour.Store(&behaviourRef{root: behaviour})
	return a
}

// SetCharacter binds the character. A character can be bound exactly once.
func (a *AI) SetCharacter(c Character) error {
	if c == nil {
		return ErrNilCharacter
	}
	a.characterMu.Lock()
	defer a.characterMu.Unlock()
	if a.character != nil {
		return ErrCharacterAlreadySet
	}
	a.character = c
	return nil
}

func (a *AI) Character() Character {
	a.characterMu.RLock()
	defer a.characterMu.RUnlock()
	return a.character
}

// ID returns the bound character id or NoCharacter.
func (a *AI) ID() CharacterID {
	c := a.Character()
	if c == nil {
		return NoCharacter
	}
	return c.ID()
}

// Behaviour returns the root of the assigned tree, which may be nil.
func (a *AI) Behaviour() TreeNode {
	ref := a.behaviour.Load()
	if ref == nil {
		return nil
	}
	return ref.root
}

// SetBehaviour swaps the tree and returns the previous root. All node keyed
// state is discarded on the next Update, so this is safe to call from a
// goroutine other than the one ticking the AI.
func (a *AI) SetBehaviour(root TreeNode) TreeNode {
	old := a.behaviour.Swap(&behaviourRef{root: root})
	a.resetPending.Store(true)
	if old == nil {
		return nil
	}
	return old.root
}

// Reset schedules a clear of all node keyed state without swapping the tree.
func (a *AI) Reset() {
	a.resetPending.Store(true)
}

func (a *AI) SetPause(pause bool) {
	a.pause.Store(pause)
}

func (a *AI) Paused() bool {
	return a.pause.Load()
}

// Update advances the context by dt milliseconds. The tree itself is executed
// by the zone, not here.
func (a *AI) Update(dt int64, debuggingActive bool) {
	if a.pause.Load() {
		return
	}

	if c := a.Character(); c != nil {
		c.Update(dt, debuggingActive)
	}

	if a.resetPending.CompareAndSwap(true, false) {
		a.clearState()
	}

	a.debuggingActive = debuggingActive
	a.time += dt
	a.aggro.Update(dt)
}

func (a *AI) clearState() {
	clear(a.lastStatus)
	clear(a.lastExecMillis)
	clear(a.selectorStates)
	clear(a.limitStates)
	clear(a.timers)
	a.filteredEntities = a.filteredEntities[:0]
}

// Time is the accumulated AI time in milliseconds.
func (a *AI) Time() int64 {
	return a.time
}

func (a *AI) DebuggingActive() bool {
	return a.debuggingActive
}

func (a *AI) AggroMgr() *AggroMgr {
	return a.aggro
}

// Zone returns the zone this AI is currently part of, or nil.
func (a *AI) Zone() *Zone {
	return a.zone.Load()
}

func (a *AI) setZone(z *Zone) {
	a.zone.Store(z)
}

// Rand is the per-AI random source. Only use it from the ticking goroutine.
func (a *AI) Rand() *rand.Rand {
	return a.rnd
}

func (a *AI) Logger() log.Log {
	return a.logger
}

// LastStatus returns the status recorded for the node on its last execution or
// StatusUnknown when nothing was recorded (e.g. debugging inactive).
func (a *AI) LastStatus(id NodeID) Status {
	s, ok := a.lastStatus[id]
	if !ok {
		return StatusUnknown
	}
	return s
}

// LastExecMillis returns the AI time of the node's last execution or -1.
func (a *AI) LastExecMillis(id NodeID) int64 {
	t, ok := a.lastExecMillis[id]
	if !ok {
		return -1
	}
	return t
}

// StateSizes reports the number of entries held in each node keyed map.
type StateSizes struct {
	LastStatus     int
	LastExecMillis int
	SelectorStates int
	LimitStates    int
	Timers         int
	Filtered       int
}

func (a *AI) StateSizes() StateSizes {
	return StateSizes{
		LastStatus:     len(a.lastStatus),
		LastExecMillis: len(a.lastExecMillis),
		SelectorStates: len(a.selectorStates),
		LimitStates:    len(a.limitStates),
		Timers:         len(a.timers),
		Filtered:       len(a.filteredEntities),
	}
}

// FilteredEntities returns a copy of the current selection.
func (a *AI) FilteredEntities() []CharacterID {
	out := make([]CharacterID, len(a.filteredEntities))
	copy(out, a.filteredEntities)
	return out
}

// AddFilteredEntity appends a single id to the selection.
func (a *AI) AddFilteredEntity(id CharacterID) {
	a.filteredEntities = append(a.filteredEntities, id)
}

// SetFilteredEntities replaces the selection.
func (a *AI) SetFilteredEntities(ids []CharacterID) {
	a.filteredEntities = append(a.filteredEntities[:0], ids...)
}

func (a *AI) ClearFilteredEntities() {
	a.filteredEntities = a.filteredEntities[:0]
}

// recordStatus is called by nodes on every return path.
func (a *AI) recordStatus(id NodeID, status Status) {
	if !a.debuggingActive {
		return
	}
	a.lastStatus[id] = status
	if status != StatusCannotExecute {
		a.lastExecMillis[id] = a.time
	}
}

func (a *AI) selectorState(id NodeID) (int, bool) {
	idx, ok := a.selectorStates[id]
	return idx, ok
}

func (a *AI) setSelectorState(id NodeID, idx int) {
	a.selectorStates[id] = idx
}

func (a *AI) clearSelectorState(id NodeID) {
	delete(a.selectorStates, id)
}

func (a *AI) limitState(id NodeID) int {
	return a.limitStates[id]
}

func (a *AI) incLimitState(id NodeID) {
	a.limitStates[id]++
}

// forget drops every entry that belongs to the node.
func (a *AI) forget(id NodeID) {
	delete(a.lastStatus, id)
	delete(a.lastExecMillis, id)
	delete(a.selectorStates, id)
	delete(a.limitStates, id)
	delete(a.timers, id)
}
