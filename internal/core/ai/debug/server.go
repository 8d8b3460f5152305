// Package debug exposes the state of running AIs to remote observers and
// lets them pause, step, reset and edit the trees of one zone at a time.
//
// Commands may arrive from any goroutine. They are queued and applied by
// Update, which must be called from the goroutine that ticks the zones,
// right after the zones were updated.
package debug

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"
	"sync"
	"sync/atomic"

	"golang.org/x/time/rate"

	"github.com/zeusync/aitree/internal/core/ai"
	"github.com/zeusync/aitree/internal/core/events/bus"
	"github.com/zeusync/aitree/internal/core/observability/log"
)

var (
	ErrZoneExists   = errors.New("zone already registered")
	ErrZoneNotFound = errors.New("zone not registered")
	ErrNoActiveZone = errors.New("no zone is being debugged")
)

// Broadcaster ships messages to every connected observer.
type Broadcaster interface {
	Broadcast(msg Message) error
}

type command func(z *ai.Zone)

type Option func(*Server)

func WithLogger(l log.Log) Option {
	return func(s *Server) { s.logger = l }
}

// WithBroadcastRate limits state broadcasts to hz per second with the given
// burst. A non-positive hz disables the limit.
func WithBroadcastRate(hz float64, burst int) Option {
	return func(s *Server) {
		if hz <= 0 {
			s.limiter = rate.NewLimiter(rate.Inf, 1)
			return
		}
		s.limiter = rate.NewLimiter(rate.Limit(hz), max(burst, 1))
	}
}

// WithEventBus drops the selection when the selected character despawns.
func WithEventBus(b bus.EventBus) Option {
	return func(s *Server) { s.events = b }
}

type Server struct {
	registry *ai.Registry
	logger   log.Log
	limiter  *rate.Limiter
	events   bus.EventBus
	despawn  bus.Subscription

	mu           sync.RWMutex
	zones        map[string]*ai.Zone
	broadcasters []Broadcaster

	active   atomic.Pointer[ai.Zone]
	selected atomic.Int64
	paused   atomic.Bool

	queueMu sync.Mutex
	queue   []func()

	time int64
}

func New(registry *ai.Registry, opts ...Option) *Server {
	s := &Server{
		registry: registry,
		zones:    make(map[string]*ai.Zone),
	}
	s.selected.Store(int64(ai.NoCharacter))
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = log.Provide()
	}
	if s.limiter == nil {
		s.limiter = rate.NewLimiter(rate.Inf, 1)
	}
	if s.events != nil {
		sub, err := s.events.Subscribe(ai.EventAIDespawned, s.onDespawn)
		if err != nil {
			s.logger.Warn("debug server cannot watch despawns", log.Error(err))
		}
		s.despawn = sub
	}
	return s
}

func (s *Server) onDespawn(e bus.Event) error {
	ev, ok := e.Data().(ai.LifecycleEvent)
	if !ok {
		return nil
	}
	if z := s.active.Load(); z != nil && z.Name() == ev.Zone {
		s.selected.CompareAndSwap(int64(ev.Character), int64(ai.NoCharacter))
	}
	return nil
}

// Close stops watching the event bus.
func (s *Server) Close() error {
	if s.events == nil || s.despawn == nil {
		return nil
	}
	return s.events.Unsubscribe(s.despawn)
}

func (s *Server) AddBroadcaster(b Broadcaster) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.broadcasters = append(s.broadcasters, b)
}

// AddZone makes a zone available for debugging.
func (s *Server) AddZone(z *ai.Zone) error {
	s.mu.Lock()
	if _, exists := s.zones[z.Name()]; exists {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrZoneExists, z.Name())
	}
	s.zones[z.Name()] = z
	s.mu.Unlock()

	s.enqueueFunc(func() { s.broadcast(Names{Zones: s.Names()}) })
	return nil
}

// RemoveZone withdraws a zone. Debugging stops if it was the active one.
func (s *Server) RemoveZone(name string) {
	s.mu.Lock()
	z, ok := s.zones[name]
	delete(s.zones, name)
	s.mu.Unlock()
	if !ok {
		return
	}
	if s.active.CompareAndSwap(z, nil) {
		s.leave(z)
	}
	s.enqueueFunc(func() { s.broadcast(Names{Zones: s.Names()}) })
}

func (s *Server) Names() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Sorted(maps.Keys(s.zones))
}

// SetDebug activates debugging for the named zone and disables it for every
// other zone. An empty name disables debugging.
func (s *Server) SetDebug(name string) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var target *ai.Zone
	if name != "" {
		z, ok := s.zones[name]
		if !ok {
			return fmt.Errorf("%w: %s", ErrZoneNotFound, name)
		}
		target = z
	}
	for _, z := range s.zones {
		z.SetDebug(z == target)
	}
	if old := s.active.Swap(target); old != nil && old != target {
		s.leave(old)
	}
	s.logger.Info("debug zone changed", log.String("zone", name))
	return nil
}

// leave releases a zone that is no longer debugged.
func (s *Server) leave(z *ai.Zone) {
	z.SetDebug(false)
	s.selected.Store(int64(ai.NoCharacter))
	if s.paused.Swap(false) {
		z.Visit(func(a *ai.AI) bool {
			a.SetPause(false)
			return true
		})
	}
}

func (s *Server) ActiveZone() *ai.Zone {
	return s.active.Load()
}

func (s *Server) Selected() ai.CharacterID {
	return ai.CharacterID(s.selected.Load())
}

func (s *Server) Paused() bool {
	return s.paused.Load()
}

// Select sets the character whose details are broadcast.
func (s *Server) Select(id ai.CharacterID) {
	s.enqueue(func(z *ai.Zone) {
		s.selected.Store(int64(id))
		s.broadcastStatic(z)
	})
}

// Pause freezes or resumes every AI of the active zone.
func (s *Server) Pause(pause bool) {
	s.enqueue(func(z *ai.Zone) {
		s.paused.Store(pause)
		z.Visit(func(a *ai.AI) bool {
			a.SetPause(pause)
			return true
		})
		s.broadcast(Pause{Paused: pause})
	})
}

// Step advances the paused AIs of the active zone by millis.
func (s *Server) Step(millis int64) {
	s.enqueue(func(z *ai.Zone) {
		if !s.paused.Load() {
			return
		}
		z.StepPaused(millis)
		s.time += millis
		s.broadcastState(z)
	})
}

// Reset clears the node state of every AI in the active zone.
func (s *Server) Reset() {
	s.enqueue(func(z *ai.Zone) {
		z.Visit(func(a *ai.AI) bool {
			a.Reset()
			return true
		})
	})
}

// OnConnect sends the zone names and the pause state to a new observer.
func (s *Server) OnConnect() {
	s.enqueueFunc(func() {
		s.broadcast(Names{Zones: s.Names()})
		s.broadcast(Pause{Paused: s.paused.Load()})
	})
}

// UpdateNode replaces a node of the tree run by the character, and by every
// other AI sharing that tree. The result arrives once Update applied it.
func (s *Server) UpdateNode(characterID ai.CharacterID, nodeID ai.NodeID, name, typ, condition string) <-chan error {
	return s.edit(func(z *ai.Zone) error {
		_, err := z.UpdateNode(s.registry, characterID, nodeID, name, typ, condition)
		return err
	})
}

func (s *Server) AddNode(characterID ai.CharacterID, parentID ai.NodeID, name, typ, condition string) <-chan error {
	return s.edit(func(z *ai.Zone) error {
		_, err := z.AddNode(s.registry, characterID, parentID, name, typ, condition)
		return err
	})
}

func (s *Server) DeleteNode(characterID ai.CharacterID, nodeID ai.NodeID) <-chan error {
	return s.edit(func(z *ai.Zone) error {
		return z.DeleteNode(characterID, nodeID)
	})
}

func (s *Server) edit(fn func(z *ai.Zone) error) <-chan error {
	result := make(chan error, 1)
	s.enqueue(func(z *ai.Zone) {
		err := fn(z)
		if err != nil {
			s.logger.Warn("tree edit rejected", log.String("zone", z.Name()), log.Error(err))
		} else {
			s.broadcastStatic(z)
		}
		result <- err
	}, func() { result <- ErrNoActiveZone })
	return result
}

// enqueue schedules cmd for the next Update. orphan runs instead if no zone
// is active at that point.
func (s *Server) enqueue(cmd command, orphan ...func()) {
	s.enqueueFunc(func() {
		z := s.active.Load()
		if z == nil {
			for _, fn := range orphan {
				fn()
			}
			return
		}
		cmd(z)
	})
}

// enqueueFunc schedules fn for the next Update regardless of the active zone.
func (s *Server) enqueueFunc(fn func()) {
	s.queueMu.Lock()
	defer s.queueMu.Unlock()
	s.queue = append(s.queue, fn)
}

// Update applies the queued commands and broadcasts the state of the active
// zone, subject to the broadcast rate.
func (s *Server) Update(dt int64) {
	s.time += dt

	s.queueMu.Lock()
	queue := s.queue
	s.queue = nil
	s.queueMu.Unlock()

	for _, fn := range queue {
		fn()
	}

	z := s.active.Load()
	if z == nil || !s.limiter.Allow() {
		return
	}
	s.broadcastState(z)
}

func (s *Server) broadcastState(z *ai.Zone) {
	s.broadcast(s.WorldState(z))
	id := s.Selected()
	if id == ai.NoCharacter {
		return
	}
	var details CharacterDetails
	if !z.Execute(id, func(a *ai.AI) { details = Details(a) }) {
		s.selected.CompareAndSwap(int64(id), int64(ai.NoCharacter))
		return
	}
	s.broadcast(details)
}

func (s *Server) broadcastStatic(z *ai.Zone) {
	id := s.Selected()
	if id == ai.NoCharacter {
		return
	}
	var static CharacterStatic
	if z.Execute(id, func(a *ai.AI) { static = Static(a) }) {
		s.broadcast(static)
	}
}

func (s *Server) broadcast(msg Message) {
	s.mu.RLock()
	broadcasters := slices.Clone(s.broadcasters)
	s.mu.RUnlock()
	for _, b := range broadcasters {
		if err := b.Broadcast(msg); err != nil {
			s.logger.Warn("debug broadcast failed", log.String("message", msg.MessageType()), log.Error(err))
		}
	}
}

// WorldState describes every character of the zone.
func (s *Server) WorldState(z *ai.Zone) WorldState {
	state := WorldState{Zone: z.Name(), Time: s.time, Characters: make([]CharacterState, 0, z.Size())}
	z.Visit(func(a *ai.AI) bool {
		ch := a.Character()
		cs := CharacterState{ID: int64(a.ID()), Position: ch.Position(), Paused: a.Paused()}
		if m, ok := ch.(ai.Mover); ok {
			cs.Orientation = m.Orientation()
		}
		if at, ok := ch.(ai.Attributer); ok {
			cs.Attributes = maps.Clone(at.Attributes())
		}
		state.Characters = append(state.Characters, cs)
		return true
	})
	return state
}

// Details captures the per-node state of one AI. Conditions carry the gate
// outcome recorded by the last tick; they are not evaluated again.
func Details(a *ai.AI) CharacterDetails {
	d := CharacterDetails{CharacterID: int64(a.ID())}
	if root := a.Behaviour(); root != nil {
		d.Root = stateNode(root, a, a.LastStatus(root.ID()) == ai.StatusRunning)
	}
	for _, e := range a.AggroMgr().Entries() {
		d.Aggro = append(d.Aggro, AggroEntry{ID: int64(e.CharacterID), Aggro: e.Aggro})
	}
	for _, id := range a.FilteredEntities() {
		d.Filtered = append(d.Filtered, int64(id))
	}
	return d
}

func stateNode(node ai.TreeNode, a *ai.AI, running bool) StateNode {
	sn := StateNode{
		NodeID:    int32(node.ID()),
		Condition: gateString(node, a),
		Status:    a.LastStatus(node.ID()).String(),
		LastRun:   a.LastExecMillis(node.ID()),
		Running:   running,
	}
	flags := node.RunningChildren(a)
	for i, c := range node.Children() {
		sn.Children = append(sn.Children, stateNode(c, a, i < len(flags) && flags[i]))
	}
	return sn
}

// gateString renders the node condition suffixed with [1] when the last
// recorded status passed the gate and [0] when it did not.
func gateString(node ai.TreeNode, a *ai.AI) string {
	cond := ConditionString(node.Condition())
	switch a.LastStatus(node.ID()) {
	case ai.StatusUnknown:
		return cond
	case ai.StatusCannotExecute:
		return cond + "[0]"
	default:
		return cond + "[1]"
	}
}

// Static lists the nodes of the AI's tree depth first.
func Static(a *ai.AI) CharacterStatic {
	st := CharacterStatic{CharacterID: int64(a.ID())}
	root := a.Behaviour()
	if root == nil {
		return st
	}
	ai.Walk(root, func(n ai.TreeNode) bool {
		st.Nodes = append(st.Nodes, StaticNode{
			NodeID:     int32(n.ID()),
			Name:       n.Name(),
			Type:       n.Type(),
			Parameters: n.Parameters(),
			Condition:  ConditionString(n.Condition()),
		})
		return true
	})
	return st
}

type operands interface {
	Operands() []ai.Condition
}

type filters interface {
	Filters() []ai.Filter
}

// ConditionString renders a condition in the type-string grammar without
// evaluating it, e.g. "And(HasEnemies{2},Filter(SelectHighestAggro))".
func ConditionString(c ai.Condition) string {
	var b strings.Builder
	writeTypeString(&b, c.Name(), c.Parameters())
	var args []string
	if o, ok := c.(operands); ok {
		for _, op := range o.Operands() {
			args = append(args, ConditionString(op))
		}
	}
	if f, ok := c.(filters); ok {
		for _, flt := range f.Filters() {
			args = append(args, filterString(flt))
		}
	}
	writeArgs(&b, args)
	return b.String()
}

func filterString(f ai.Filter) string {
	var b strings.Builder
	writeTypeString(&b, f.Name(), f.Parameters())
	var args []string
	if sub, ok := f.(filters); ok {
		for _, flt := range sub.Filters() {
			args = append(args, filterString(flt))
		}
	}
	writeArgs(&b, args)
	return b.String()
}

func writeArgs(b *strings.Builder, args []string) {
	if len(args) > 0 {
		b.WriteString("(" + strings.Join(args, ",") + ")")
	}
}

func writeTypeString(b *strings.Builder, name, params string) {
	b.WriteString(name)
	if params != "" {
		b.WriteString("{" + params + "}")
	}
}
