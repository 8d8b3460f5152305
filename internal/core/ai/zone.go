package ai

import (
	"encoding/binary"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cespare/xxhash/v2"

	"github.com/zeusync/aitree/internal/core/events/bus"
	"github.com/zeusync/aitree/internal/core/observability/log"
	"github.com/zeusync/aitree/pkg/concurrent"
)

const (
	EventAISpawned        = "ai.spawned"
	EventAIDespawned      = "ai.despawned"
	EventBehaviourChanged = "ai.behaviour_changed"
	EventTickPanicked     = "ai.tick_panicked"
)

// LifecycleEvent is the payload of zone events.
type LifecycleEvent struct {
	Zone      string
	Character CharacterID
}

// TickStats summarises one Zone.Update.
type TickStats struct {
	AIs      int
	Skipped  int
	Statuses map[Status]int
	Duration time.Duration
}

// Zone owns a set of AIs and ticks each of them exactly once per Update.
// Additions and removals are scheduled and applied at the start of the next
// Update, so they may be requested from any goroutine.
type Zone struct {
	name    string
	workers int
	debug   atomic.Bool

	mu  sync.RWMutex
	ais map[CharacterID]*AI

	scheduleMu      sync.Mutex
	scheduledAdd    []*AI
	scheduledRemove []CharacterID

	groups *GroupMgr
	events bus.EventBus
	logger log.Log
}

type ZoneOption func(*Zone)

// WithWorkers sets the number of goroutines ticking shards in parallel. The
// default of 1 ticks every AI on the calling goroutine. With more workers,
// characters read by other AIs (group and selection steering, IsCloseToGroup)
// must make Position and SetPosition safe for concurrent use.
func WithWorkers(n int) ZoneOption {
	return func(z *Zone) { z.workers = n }
}

// WithEventBus publishes lifecycle events to b.
func WithEventBus(b bus.EventBus) ZoneOption {
	return func(z *Zone) { z.events = b }
}

func WithZoneLogger(l log.Log) ZoneOption {
	return func(z *Zone) { z.logger = l }
}

func NewZone(name string, opts ...ZoneOption) *Zone {
	z := &Zone{
		name:    name,
		workers: 1,
		ais:     make(map[CharacterID]*AI),
		groups:  NewGroupMgr(),
	}
	for _, opt := range opts {
		opt(z)
	}
	if z.workers < 1 {
		z.workers = 1
	}
	if z.logger == nil {
		z.logger = log.Provide()
	}
	z.logger = z.logger.With(log.String("zone", name))
	return z
}

func (z *Zone) Name() string {
	return z.name
}

func (z *Zone) GroupMgr() *GroupMgr {
	return z.groups
}

// SetDebug toggles recording of per-node debug state for every AI in the zone.
func (z *Zone) SetDebug(debug bool) {
	z.debug.Store(debug)
}

func (z *Zone) Debug() bool {
	return z.debug.Load()
}

// AddAI schedules the AI for insertion. Its character must be bound.
func (z *Zone) AddAI(a *AI) error {
	if a == nil || a.Character() == nil {
		return ErrNilCharacter
	}
	z.scheduleMu.Lock()
	defer z.scheduleMu.Unlock()
	z.scheduledAdd = append(z.scheduledAdd, a)
	return nil
}

// RemoveAI schedules the removal of the AI bound to id.
func (z *Zone) RemoveAI(id CharacterID) {
	z.scheduleMu.Lock()
	defer z.scheduleMu.Unlock()
	z.scheduledRemove = append(z.scheduledRemove, id)
}

func (z *Zone) applySchedule() {
	z.scheduleMu.Lock()
	adds, removes := z.scheduledAdd, z.scheduledRemove
	z.scheduledAdd, z.scheduledRemove = nil, nil
	z.scheduleMu.Unlock()

	if len(adds) == 0 && len(removes) == 0 {
		return
	}

	var spawned, despawned []CharacterID
	z.mu.Lock()
	for _, a := range adds {
		id := a.ID()
		if _, exists := z.ais[id]; exists {
			z.logger.Warn("ai already in zone", log.Int64("character_id", int64(id)))
			continue
		}
		a.setZone(z)
		z.ais[id] = a
		spawned = append(spawned, id)
	}
	for _, id := range removes {
		a, ok := z.ais[id]
		if !ok {
			continue
		}
		delete(z.ais, id)
		z.groups.RemoveFromAll(a)
		a.setZone(nil)
		despawned = append(despawned, id)
	}
	z.mu.Unlock()

	events := make([]bus.Event, 0, len(spawned)+len(despawned))
	for _, id := range spawned {
		events = append(events, z.lifecycleEvent(EventAISpawned, id))
	}
	for _, id := range despawned {
		events = append(events, z.lifecycleEvent(EventAIDespawned, id))
	}
	z.publishBatch(events)
}

func (z *Zone) lifecycleEvent(typ string, id CharacterID) bus.Event {
	return bus.NewEvent(typ, z.name, LifecycleEvent{Zone: z.name, Character: id})
}

// listening reports whether anybody subscribed to typ, directly or through
// the wildcard.
func (z *Zone) listening(typ string) bool {
	return z.events != nil && z.events.Subscribers(typ)+z.events.Subscribers(bus.Wildcard) > 0
}

func (z *Zone) publish(typ string, id CharacterID) {
	if !z.listening(typ) {
		return
	}
	if err := z.events.Publish(z.lifecycleEvent(typ, id)); err != nil {
		z.logger.Warn("event handler failed",
			log.String("event", typ),
			log.Int64("character_id", int64(id)),
			log.Error(err),
		)
	}
}

func (z *Zone) publishBatch(events []bus.Event) {
	if len(events) == 0 || z.events == nil {
		return
	}
	if err := z.events.PublishBatch(events...); err != nil {
		z.logger.Warn("event handlers failed", log.Int("events", len(events)), log.Error(err))
	}
}

// AI returns the AI bound to id, or nil.
func (z *Zone) AI(id CharacterID) *AI {
	z.mu.RLock()
	defer z.mu.RUnlock()
	return z.ais[id]
}

func (z *Zone) Size() int {
	z.mu.RLock()
	defer z.mu.RUnlock()
	return len(z.ais)
}

// Visit calls fn for every AI, ordered by id, until fn returns false.
func (z *Zone) Visit(fn func(*AI) bool) {
	for _, a := range z.snapshot() {
		if !fn(a) {
			return
		}
	}
}

// Execute runs fn with the AI bound to id and reports whether it was found.
// It must be called from the goroutine driving Update.
func (z *Zone) Execute(id CharacterID, fn func(*AI)) bool {
	a := z.AI(id)
	if a == nil {
		return false
	}
	fn(a)
	return true
}

// SetBehaviour swaps the tree of one AI and publishes the change.
func (z *Zone) SetBehaviour(id CharacterID, root TreeNode) (TreeNode, error) {
	a := z.AI(id)
	if a == nil {
		return nil, fmt.Errorf("%w: %d", ErrAINotFound, id)
	}
	old := a.SetBehaviour(root)
	z.publish(EventBehaviourChanged, id)
	return old, nil
}

func (z *Zone) snapshot() []*AI {
	z.mu.RLock()
	out := make([]*AI, 0, len(z.ais))
	for _, a := range z.ais {
		out = append(out, a)
	}
	z.mu.RUnlock()
	slices.SortFunc(out, func(a, b *AI) int {
		switch {
		case a.ID() < b.ID():
			return -1
		case a.ID() > b.ID():
			return 1
		default:
			return 0
		}
	})
	return out
}

func shardKey(a *AI) uint64 {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], uint64(a.ID()))
	return xxhash.Sum64(buf[:])
}

// Update applies scheduled changes and ticks every AI once: AI.Update followed
// by the root node's Execute. AIs are sharded by id across the configured
// workers; one AI is never ticked by two goroutines at once.
func (z *Zone) Update(dt int64) TickStats {
	start := time.Now()
	z.applySchedule()
	return z.run(dt, start, func(a *AI) bool { return !a.Paused() })
}

// StepPaused advances every paused AI by dt as if it were running, then leaves
// it paused. Used for single stepping from a debugger.
func (z *Zone) StepPaused(dt int64) TickStats {
	start := time.Now()
	return z.run(dt, start, func(a *AI) bool {
		if !a.Paused() {
			return false
		}
		a.SetPause(false)
		return true
	}, func(a *AI) { a.SetPause(true) })
}

func (z *Zone) run(dt int64, start time.Time, accept func(*AI) bool, after ...func(*AI)) TickStats {
	ais := z.snapshot()
	debug := z.debug.Load()

	var counts [len(statusNames)]atomic.Int64
	var skipped atomic.Int64

	shards := concurrent.Partition(ais, z.workers, shardKey)
	_ = concurrent.Concurrent(shards, func(shard []*AI) error {
		for _, a := range shard {
			if !accept(a) {
				skipped.Add(1)
				continue
			}
			status := z.tick(a, dt, debug)
			for _, fn := range after {
				fn(a)
			}
			counts[status].Add(1)
		}
		return nil
	})

	stats := TickStats{
		AIs:      len(ais),
		Skipped:  int(skipped.Load()),
		Statuses: make(map[Status]int),
		Duration: time.Since(start),
	}
	for i := range counts {
		if n := counts[i].Load(); n > 0 {
			stats.Statuses[Status(i)] = int(n)
		}
	}
	return stats
}

// tick contains panics of custom nodes to the AI that raised them.
func (z *Zone) tick(a *AI, dt int64, debug bool) (status Status) {
	defer func() {
		if r := recover(); r != nil {
			z.logger.Error("ai tick panicked",
				log.Int64("character_id", int64(a.ID())),
				log.Any("panic", r),
			)
			z.publish(EventTickPanicked, a.ID())
			status = StatusException
		}
	}()

	a.Update(dt, debug)
	root := a.Behaviour()
	if root == nil {
		return StatusUnknown
	}
	return root.Execute(a, dt)
}
