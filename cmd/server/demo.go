package main

import (
	"fmt"
	"maps"
	"math"
	"math/rand/v2"
	"strings"
	"sync"

	"github.com/zeusync/aitree/internal/core/ai"
	"github.com/zeusync/aitree/internal/core/ai/loader"
	"github.com/zeusync/aitree/internal/core/observability/log"
	"github.com/zeusync/aitree/internal/injector"
)

// fallbackTrees is used when no tree file provides demo.tree.
const fallbackTrees = `
trees:
  - name: skirmisher
    root:
      type: PrioritySelector
      children:
        - name: hunt
          type: Sequence
          condition: HasEnemies
          children:
            - type: Steer(SelectionSeek)
              condition: Filter(SelectHighestAggro)
            - type: Idle{300}
        - name: regroup
          type: Steer{1,0.5}(GroupSeek{1},Wander{0.4})
          condition: And(IsInGroup{1},Not(IsCloseToGroup{1,5}))
        - name: patrol
          type: Steer(Wander{0.3})
`

const demoGroup ai.GroupID = 1

// npc is a minimal movable entity for the demo zone. Its state is guarded
// because other AIs read it while the zone ticks shards in parallel.
type npc struct {
	mu          sync.RWMutex
	id          ai.CharacterID
	pos         ai.Vec3
	orientation float64
	speed       float64
	attributes  map[string]float64
}

func (n *npc) ID() ai.CharacterID { return n.id }
func (n *npc) Speed() float64     { return n.speed }

func (n *npc) Position() ai.Vec3 {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.pos
}

func (n *npc) SetPosition(pos ai.Vec3) {
	n.mu.Lock()
	n.pos = pos
	n.mu.Unlock()
}

func (n *npc) Orientation() float64 {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.orientation
}

func (n *npc) SetOrientation(o float64) {
	n.mu.Lock()
	n.orientation = o
	n.mu.Unlock()
}

// Attributes returns a snapshot.
func (n *npc) Attributes() map[string]float64 {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return maps.Clone(n.attributes)
}

func (n *npc) Update(dt int64, _ bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	hp := n.attributes["hp"] + float64(dt)/1000
	n.attributes["hp"] = math.Min(hp, 100)
}

func demoTree(rt *injector.Runtime) (ai.TreeNode, error) {
	name := rt.Config.Demo.Tree
	if name == "" {
		if names := rt.Trees.Names(); len(names) > 0 {
			name = names[0]
		}
	}
	if root, ok := rt.Trees.Tree(name); ok {
		return root, nil
	}
	if name != "" {
		return nil, fmt.Errorf("demo tree %q not loaded", name)
	}

	doc, err := loader.DecodeYAML(strings.NewReader(fallbackTrees))
	if err != nil {
		return nil, err
	}
	if err = rt.Trees.Load(doc); err != nil {
		return nil, err
	}
	root, _ := rt.Trees.Tree("skirmisher")
	return root, nil
}

// spawnDemo adds demo.characters NPCs sharing one tree. Every other NPC joins
// the demo group and the first one starts with some aggro towards the second.
func spawnDemo(rt *injector.Runtime) error {
	count := rt.Config.Demo.Characters
	if count <= 0 {
		return nil
	}
	root, err := demoTree(rt)
	if err != nil {
		return err
	}

	rnd := rand.New(rand.NewPCG(1, 2))
	var ais []*ai.AI
	for i := range count {
		id := ai.CharacterID(i + 1)
		a := ai.NewAI(root,
			ai.WithLogger(rt.Logger.With(log.Int64("character_id", int64(id)))),
			ai.WithSeed(uint64(id)),
		)
		ch := &npc{
			id:          id,
			pos:         ai.Vec3{X: rnd.Float64()*40 - 20, Z: rnd.Float64()*40 - 20},
			orientation: rnd.Float64() * 2 * math.Pi,
			speed:       2 + rnd.Float64()*2,
			attributes:  map[string]float64{"hp": 50 + rnd.Float64()*50},
		}
		if err = a.SetCharacter(ch); err != nil {
			return err
		}
		if err = rt.Zone.AddAI(a); err != nil {
			return err
		}
		if i%2 == 0 {
			rt.Zone.GroupMgr().Add(demoGroup, a)
		}
		ais = append(ais, a)
	}
	if len(ais) > 1 {
		ais[0].AggroMgr().AddAggro(ais[1].ID(), 50)
	}

	rt.Logger.Info("demo characters spawned",
		log.Int("characters", count),
		log.String("zone", rt.Zone.Name()),
	)
	return nil
}
