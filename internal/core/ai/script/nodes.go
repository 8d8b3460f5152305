package script

import (
	"fmt"
	"math"

	"github.com/zeusync/aitree/internal/core/ai"
	"github.com/zeusync/aitree/internal/core/observability/log"
)

// Node is a leaf whose body is a script.
type Node struct {
	*ai.Node
	engine  *Engine
	program *program
}

func (n *Node) Execute(a *ai.AI, dt int64) ai.Status {
	if !n.Gate(a) {
		return ai.StatusCannotExecute
	}
	out, err := n.engine.call(n.program, a, dt, n.Parameters())
	if err == nil {
		status, ok := toStatus(out)
		if ok {
			return n.State(a, status)
		}
		err = fmt.Errorf("%w: %v", ErrBadResult, out)
	}
	a.Logger().Error("script node failed",
		log.Int32("node_id", int32(n.ID())),
		log.String("node_type", n.Type()),
		log.Int64("character_id", int64(a.ID())),
		log.Error(err),
	)
	return n.State(a, ai.StatusException)
}

func toStatus(v any) (ai.Status, bool) {
	switch s := v.(type) {
	case string:
		status, ok := ai.ParseStatus(s)
		return status, ok && status != ai.StatusUnknown
	case int64:
		if s > int64(ai.StatusUnknown) && s <= int64(ai.StatusException) {
			return ai.Status(s), true
		}
	case float64:
		if s == math.Trunc(s) {
			return toStatus(int64(s))
		}
	}
	return ai.StatusUnknown, false
}

// Condition evaluates a script. Failures evaluate to false.
type Condition struct {
	ai.BaseCondition
	engine  *Engine
	program *program
}

func (c *Condition) Evaluate(a *ai.AI) bool {
	out, err := c.engine.call(c.program, a, c.Parameters())
	if err == nil {
		if b, ok := out.(bool); ok {
			return b
		}
		err = fmt.Errorf("%w: %v", ErrBadResult, out)
	}
	a.Logger().Warn("script condition failed",
		log.String("condition", c.Name()),
		log.Int64("character_id", int64(a.ID())),
		log.Error(err),
	)
	return false
}

// Filter appends the ids returned by a script. Failures leave the selection
// untouched.
type Filter struct {
	ai.BaseFilter
	engine  *Engine
	program *program
}

func (f *Filter) Filter(a *ai.AI) {
	out, err := f.engine.call(f.program, a, f.Parameters())
	if err == nil {
		var ids []ai.CharacterID
		if ids, err = toIDs(out); err == nil {
			for _, id := range ids {
				a.AddFilteredEntity(id)
			}
			return
		}
	}
	a.Logger().Warn("script filter failed",
		log.String("filter", f.Name()),
		log.Int64("character_id", int64(a.ID())),
		log.Error(err),
	)
}

func toIDs(v any) ([]ai.CharacterID, error) {
	if v == nil {
		return nil, nil
	}
	list, ok := v.([]any)
	if !ok {
		return nil, fmt.Errorf("%w: expected array, got %T", ErrBadResult, v)
	}
	ids := make([]ai.CharacterID, 0, len(list))
	for _, item := range list {
		switch id := item.(type) {
		case int64:
			ids = append(ids, ai.CharacterID(id))
		case float64:
			ids = append(ids, ai.CharacterID(id))
		default:
			return nil, fmt.Errorf("%w: id %v", ErrBadResult, item)
		}
	}
	return ids, nil
}

// RegisterNode makes typ available to tree definitions.
func (e *Engine) RegisterNode(reg *ai.Registry, typ, src string) error {
	p, err := e.prepare(typ, fnExecute, src)
	if err != nil {
		return err
	}
	ok := reg.RegisterNode(typ, func(ctx ai.NodeFactoryContext) (ai.TreeNode, error) {
		return &Node{Node: ai.NewNode(typ, ctx), engine: e, program: p}, nil
	})
	if !ok {
		return fmt.Errorf("%w: node %q", ErrTypeTaken, typ)
	}
	return nil
}

func (e *Engine) RegisterCondition(reg *ai.Registry, typ, src string) error {
	p, err := e.prepare(typ, fnEvaluate, src)
	if err != nil {
		return err
	}
	ok := reg.RegisterCondition(typ, func(ctx ai.ConditionFactoryContext) (ai.Condition, error) {
		return &Condition{BaseCondition: ai.NewBaseCondition(typ, ctx.Parameters), engine: e, program: p}, nil
	})
	if !ok {
		return fmt.Errorf("%w: condition %q", ErrTypeTaken, typ)
	}
	return nil
}

func (e *Engine) RegisterFilter(reg *ai.Registry, typ, src string) error {
	p, err := e.prepare(typ, fnFilter, src)
	if err != nil {
		return err
	}
	ok := reg.RegisterFilter(typ, func(ctx ai.FilterFactoryContext) (ai.Filter, error) {
		return &Filter{BaseFilter: ai.NewBaseFilter(typ, ctx.Parameters), engine: e, program: p}, nil
	})
	if !ok {
		return fmt.Errorf("%w: filter %q", ErrTypeTaken, typ)
	}
	return nil
}

func (e *Engine) prepare(typ, entry, src string) (*program, error) {
	p, err := compile(typ, entry, src)
	if err != nil {
		return nil, err
	}
	if err := e.verify(p); err != nil {
		return nil, err
	}
	return p, nil
}
