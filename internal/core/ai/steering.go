package ai

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

const (
	TypeSteer = "Steer"

	SteeringWander        = "Wander"
	SteeringTargetSeek    = "TargetSeek"
	SteeringTargetFlee    = "TargetFlee"
	SteeringGroupSeek     = "GroupSeek"
	SteeringGroupFlee     = "GroupFlee"
	SteeringSelectionSeek = "SelectionSeek"
	SteeringSelectionFlee = "SelectionFlee"
)

// MoveVector is the desired velocity and heading produced by a steering.
type MoveVector struct {
	Vector   Vec3
	Rotation float64
}

// Steering computes a movement for the AI. ok is false if the steering has
// no opinion this tick (e.g. no target).
type Steering interface {
	Name() string
	Parameters() string
	Execute(ai *AI, speed float64) (mv MoveVector, ok bool)
}

type SteeringFactoryContext struct {
	Parameters string
}

type BaseSteering struct {
	name       string
	parameters string
}

func NewBaseSteering(name, parameters string) BaseSteering {
	return BaseSteering{name: name, parameters: parameters}
}

func (s BaseSteering) Name() string       { return s.name }
func (s BaseSteering) Parameters() string { return s.parameters }

func seek(from, to Vec3, speed float64) (MoveVector, bool) {
	dir := to.Sub(from)
	if dir.IsZero() {
		return MoveVector{}, false
	}
	v := dir.Normalize().Scale(speed)
	return MoveVector{Vector: v, Rotation: v.Angle()}, true
}

func flee(from, away Vec3, speed float64) (MoveVector, bool) {
	dir := from.Sub(away)
	if dir.IsZero() {
		return MoveVector{}, false
	}
	v := dir.Normalize().Scale(speed)
	return MoveVector{Vector: v, Rotation: v.Angle()}, true
}

// Wander turns by a random angle of at most the given radians (default 1).
type Wander struct {
	BaseSteering
	rotation float64
}

func NewWander(ctx SteeringFactoryContext) (Steering, error) {
	rotation := 1.0
	if p := strings.TrimSpace(ctx.Parameters); p != "" {
		v, err := strconv.ParseFloat(p, 64)
		if err != nil {
			return nil, wrapParams(p, err)
		}
		rotation = v
	}
	return &Wander{BaseSteering: NewBaseSteering(SteeringWander, ctx.Parameters), rotation: rotation}, nil
}

func (w *Wander) Execute(ai *AI, speed float64) (MoveVector, bool) {
	m, ok := ai.Character().(Mover)
	if !ok {
		return MoveVector{}, false
	}
	orientation := m.Orientation() + (ai.Rand().Float64()*2-1)*w.rotation
	orientation = math.Mod(orientation, 2*math.Pi)
	return MoveVector{Vector: FromAngle(orientation).Scale(speed), Rotation: orientation}, true
}

// TargetSteering seeks or flees a fixed point given as "x,y,z".
type TargetSteering struct {
	BaseSteering
	target Vec3
	flee   bool
}

func newTargetSteering(name string, fleeing bool) SteeringFactory {
	return func(ctx SteeringFactoryContext) (Steering, error) {
		target, err := parseVec3(ctx.Parameters)
		if err != nil {
			return nil, err
		}
		return &TargetSteering{BaseSteering: NewBaseSteering(name, ctx.Parameters), target: target, flee: fleeing}, nil
	}
}

func (t *TargetSteering) Execute(ai *AI, speed float64) (MoveVector, bool) {
	ch := ai.Character()
	if ch == nil {
		return MoveVector{}, false
	}
	if t.flee {
		return flee(ch.Position(), t.target, speed)
	}
	return seek(ch.Position(), t.target, speed)
}

// GroupSteering seeks or flees the average position of a group.
type GroupSteering struct {
	BaseSteering
	group GroupID
	flee  bool
}

func newGroupSteering(name string, fleeing bool) SteeringFactory {
	return func(ctx SteeringFactoryContext) (Steering, error) {
		g, ok, err := parseGroupParam(ctx.Parameters)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, fmt.Errorf("%w: %s requires a group id", ErrInvalidParameters, name)
		}
		return &GroupSteering{BaseSteering: NewBaseSteering(name, ctx.Parameters), group: g, flee: fleeing}, nil
	}
}

func (g *GroupSteering) Execute(ai *AI, speed float64) (MoveVector, bool) {
	z, ch := ai.Zone(), ai.Character()
	if z == nil || ch == nil {
		return MoveVector{}, false
	}
	target, ok := z.GroupMgr().Position(g.group)
	if !ok {
		return MoveVector{}, false
	}
	if g.flee {
		return flee(ch.Position(), target, speed)
	}
	return seek(ch.Position(), target, speed)
}

// SelectionSteering seeks or flees the first filtered entity.
type SelectionSteering struct {
	BaseSteering
	flee bool
}

func newSelectionSteering(name string, fleeing bool) SteeringFactory {
	return func(ctx SteeringFactoryContext) (Steering, error) {
		return &SelectionSteering{BaseSteering: NewBaseSteering(name, ctx.Parameters), flee: fleeing}, nil
	}
}

func (s *SelectionSteering) Execute(ai *AI, speed float64) (MoveVector, bool) {
	z, ch := ai.Zone(), ai.Character()
	if z == nil || ch == nil || len(ai.filteredEntities) == 0 {
		return MoveVector{}, false
	}
	target := z.AI(ai.filteredEntities[0])
	if target == nil || target.Character() == nil {
		return MoveVector{}, false
	}
	if s.flee {
		return flee(ch.Position(), target.Character().Position(), speed)
	}
	return seek(ch.Position(), target.Character().Position(), speed)
}

// SteerNodeFactoryContext carries the steerings a Steer node blends.
type SteerNodeFactoryContext struct {
	NodeFactoryContext
	Steerings []Steering
}

// Steer blends its steerings by weight and moves the character. Steerings
// without a weight get weight 1.
type Steer struct {
	*Node
	steerings []Steering
	weights   []float64
}

func NewSteer(ctx SteerNodeFactoryContext) (TreeNode, error) {
	if len(ctx.Steerings) == 0 {
		return nil, fmt.Errorf("%w: Steer expects at least 1 steering", ErrWrongOperandCount)
	}
	weights, err := parseFloats(ctx.Parameters)
	if err != nil {
		return nil, err
	}
	if len(weights) > len(ctx.Steerings) {
		return nil, fmt.Errorf("%w: %d weights for %d steerings", ErrInvalidParameters, len(weights), len(ctx.Steerings))
	}
	return &Steer{Node: NewNode(TypeSteer, ctx.NodeFactoryContext), steerings: ctx.Steerings, weights: weights}, nil
}

func (s *Steer) weight(i int) float64 {
	if i < len(s.weights) {
		return s.weights[i]
	}
	return 1
}

func (s *Steer) Execute(ai *AI, dt int64) Status {
	if !s.Gate(ai) {
		return StatusCannotExecute
	}
	m, ok := ai.Character().(Mover)
	if !ok {
		return s.State(ai, StatusFailed)
	}

	var (
		blended  Vec3
		rotation float64
		total    float64
	)
	for i, st := range s.steerings {
		mv, ok := st.Execute(ai, m.Speed())
		if !ok {
			continue
		}
		w := s.weight(i)
		blended = blended.Add(mv.Vector.Scale(w))
		rotation += mv.Rotation * w
		total += w
	}
	if total == 0 {
		return s.State(ai, StatusFailed)
	}

	blended = blended.Scale(1 / total)
	m.SetPosition(m.Position().Add(blended.Scale(float64(dt) / 1000)))
	if !blended.IsZero() {
		m.SetOrientation(blended.Angle())
	} else {
		m.SetOrientation(rotation / total)
	}
	return s.State(ai, StatusFinished)
}

func parseVec3(params string) (Vec3, error) {
	f, err := parseFloats(params)
	if err != nil {
		return Vec3{}, err
	}
	if len(f) != 3 {
		return Vec3{}, fmt.Errorf("%w: expected \"x,y,z\", got %q", ErrInvalidParameters, params)
	}
	return Vec3{X: f[0], Y: f[1], Z: f[2]}, nil
}
