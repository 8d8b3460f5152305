package ai

import (
	"fmt"
	"slices"
	"sync"
)

type (
	NodeFactory      func(NodeFactoryContext) (TreeNode, error)
	SteerNodeFactory func(SteerNodeFactoryContext) (TreeNode, error)
	ConditionFactory func(ConditionFactoryContext) (Condition, error)
	FilterFactory    func(FilterFactoryContext) (Filter, error)
	SteeringFactory  func(SteeringFactoryContext) (Steering, error)
)

// factories is a named set of constructors guarded by a RWMutex.
type factories[F any] struct {
	mu   sync.RWMutex
	kind string
	m    map[string]F
}

func newFactories[F any](kind string) *factories[F] {
	return &factories[F]{kind: kind, m: make(map[string]F)}
}

func (f *factories[F]) register(typ string, factory F) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, exists := f.m[typ]; exists {
		return false
	}
	f.m[typ] = factory
	return true
}

func (f *factories[F]) unregister(typ string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, exists := f.m[typ]; !exists {
		return false
	}
	delete(f.m, typ)
	return true
}

func (f *factories[F]) get(typ string) (F, error) {
	f.mu.RLock()
	factory, ok := f.m[typ]
	f.mu.RUnlock()
	if !ok {
		return factory, fmt.Errorf("%w: %s %q", ErrUnknownType, f.kind, typ)
	}
	return factory, nil
}

func (f *factories[F]) has(typ string) bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	_, ok := f.m[typ]
	return ok
}

func (f *factories[F]) names() []string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := make([]string, 0, len(f.m))
	for name := range f.m {
		out = append(out, name)
	}
	slices.Sort(out)
	return out
}

// Registry maps type names found in tree definitions to constructors. Types
// can be registered at run time, e.g. for scripted nodes. Register returns
// false if the type is already taken.
type Registry struct {
	nodes      *factories[NodeFactory]
	steerNodes *factories[SteerNodeFactory]
	conditions *factories[ConditionFactory]
	filters    *factories[FilterFactory]
	steerings  *factories[SteeringFactory]
}

// NewRegistry returns a registry with all built-in types registered.
func NewRegistry() *Registry {
	r := NewEmptyRegistry()
	registerBuiltins(r)
	return r
}

func NewEmptyRegistry() *Registry {
	return &Registry{
		nodes:      newFactories[NodeFactory]("node"),
		steerNodes: newFactories[SteerNodeFactory]("steer node"),
		conditions: newFactories[ConditionFactory]("condition"),
		filters:    newFactories[FilterFactory]("filter"),
		steerings:  newFactories[SteeringFactory]("steering"),
	}
}

func (r *Registry) RegisterNode(typ string, f NodeFactory) bool {
	return r.nodes.register(typ, f)
}

func (r *Registry) UnregisterNode(typ string) bool {
	return r.nodes.unregister(typ)
}

func (r *Registry) RegisterSteerNode(typ string, f SteerNodeFactory) bool {
	return r.steerNodes.register(typ, f)
}

func (r *Registry) UnregisterSteerNode(typ string) bool {
	return r.steerNodes.unregister(typ)
}

func (r *Registry) RegisterCondition(typ string, f ConditionFactory) bool {
	return r.conditions.register(typ, f)
}

func (r *Registry) UnregisterCondition(typ string) bool {
	return r.conditions.unregister(typ)
}

func (r *Registry) RegisterFilter(typ string, f FilterFactory) bool {
	return r.filters.register(typ, f)
}

func (r *Registry) UnregisterFilter(typ string) bool {
	return r.filters.unregister(typ)
}

func (r *Registry) RegisterSteering(typ string, f SteeringFactory) bool {
	return r.steerings.register(typ, f)
}

func (r *Registry) UnregisterSteering(typ string) bool {
	return r.steerings.unregister(typ)
}

func (r *Registry) CreateNode(typ string, ctx NodeFactoryContext) (TreeNode, error) {
	f, err := r.nodes.get(typ)
	if err != nil {
		return nil, err
	}
	return f(ctx)
}

func (r *Registry) CreateSteerNode(typ string, ctx SteerNodeFactoryContext) (TreeNode, error) {
	f, err := r.steerNodes.get(typ)
	if err != nil {
		return nil, err
	}
	return f(ctx)
}

func (r *Registry) CreateCondition(typ string, ctx ConditionFactoryContext) (Condition, error) {
	f, err := r.conditions.get(typ)
	if err != nil {
		return nil, err
	}
	return f(ctx)
}

func (r *Registry) CreateFilter(typ string, ctx FilterFactoryContext) (Filter, error) {
	f, err := r.filters.get(typ)
	if err != nil {
		return nil, err
	}
	return f(ctx)
}

func (r *Registry) CreateSteering(typ string, ctx SteeringFactoryContext) (Steering, error) {
	f, err := r.steerings.get(typ)
	if err != nil {
		return nil, err
	}
	return f(ctx)
}

func (r *Registry) IsSteerNode(typ string) bool { return r.steerNodes.has(typ) }
func (r *Registry) IsFilter(typ string) bool    { return r.filters.has(typ) }
func (r *Registry) IsCondition(typ string) bool { return r.conditions.has(typ) }

// Types lists the registered names per kind, sorted.
func (r *Registry) Types() map[string][]string {
	return map[string][]string{
		"node":      append(r.nodes.names(), r.steerNodes.names()...),
		"condition": r.conditions.names(),
		"filter":    r.filters.names(),
		"steering":  r.steerings.names(),
	}
}

func registerBuiltins(r *Registry) {
	r.RegisterNode(TypeSequence, NewSequence)
	r.RegisterNode(TypePrioritySelector, NewPrioritySelector)
	r.RegisterNode(TypeProbabilitySelector, NewProbabilitySelector)
	r.RegisterNode(TypeRandomSelector, NewRandomSelector)
	r.RegisterNode(TypeParallel, NewParallel)
	r.RegisterNode(TypeFail, NewFail)
	r.RegisterNode(TypeSucceed, NewSucceed)
	r.RegisterNode(TypeInvert, NewInvert)
	r.RegisterNode(TypeLimit, NewLimit)
	r.RegisterNode(TypeIdle, NewIdle)
	r.RegisterSteerNode(TypeSteer, NewSteer)

	r.RegisterCondition(CondTrue, newTrue)
	r.RegisterCondition(CondFalse, newFalse)
	r.RegisterCondition(CondNot, NewNot)
	r.RegisterCondition(CondAnd, NewAnd)
	r.RegisterCondition(CondOr, NewOr)
	r.RegisterCondition(CondHasEnemies, NewHasEnemies)
	r.RegisterCondition(CondFilter, NewFilterCondition)
	r.RegisterCondition(CondIsGroupLeader, NewIsGroupLeader)
	r.RegisterCondition(CondIsInGroup, NewIsInGroup)
	r.RegisterCondition(CondIsCloseToGroup, NewIsCloseToGroup)
	r.RegisterCondition(CondExpr, NewExprCondition)

	r.RegisterFilter(FilterSelectEmpty, simpleFilter(FilterSelectEmpty, func(b BaseFilter) Filter { return &SelectEmpty{b} }))
	r.RegisterFilter(FilterSelectAll, simpleFilter(FilterSelectAll, func(b BaseFilter) Filter { return &SelectAll{b} }))
	r.RegisterFilter(FilterSelectHighestAggro, simpleFilter(FilterSelectHighestAggro, func(b BaseFilter) Filter { return &SelectHighestAggro{b} }))
	r.RegisterFilter(FilterSelectZone, simpleFilter(FilterSelectZone, func(b BaseFilter) Filter { return &SelectZone{b} }))
	r.RegisterFilter(FilterSelectGroupLeader, NewSelectGroupLeader)
	r.RegisterFilter(FilterSelectGroupMembers, NewSelectGroupMembers)
	r.RegisterFilter(FilterUnion, combinator(FilterUnion, func(b BaseFilter, f []Filter) Filter { return &Union{b, f} }))
	r.RegisterFilter(FilterIntersection, combinator(FilterIntersection, func(b BaseFilter, f []Filter) Filter { return &Intersection{b, f} }))
	r.RegisterFilter(FilterDifference, combinator(FilterDifference, func(b BaseFilter, f []Filter) Filter { return &Difference{b, f} }))
	r.RegisterFilter(FilterFirst, combinator(FilterFirst, func(b BaseFilter, f []Filter) Filter { return &First{b, f} }))
	r.RegisterFilter(FilterLast, combinator(FilterLast, func(b BaseFilter, f []Filter) Filter { return &Last{b, f} }))
	r.RegisterFilter(FilterRandom, NewRandom)

	r.RegisterSteering(SteeringWander, NewWander)
	r.RegisterSteering(SteeringTargetSeek, newTargetSteering(SteeringTargetSeek, false))
	r.RegisterSteering(SteeringTargetFlee, newTargetSteering(SteeringTargetFlee, true))
	r.RegisterSteering(SteeringGroupSeek, newGroupSteering(SteeringGroupSeek, false))
	r.RegisterSteering(SteeringGroupFlee, newGroupSteering(SteeringGroupFlee, true))
	r.RegisterSteering(SteeringSelectionSeek, newSelectionSteering(SteeringSelectionSeek, false))
	r.RegisterSteering(SteeringSelectionFlee, newSelectionSteering(SteeringSelectionFlee, true))
}
