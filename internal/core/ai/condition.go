package ai

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"github.com/zeusync/aitree/internal/core/observability/log"
)

const (
	CondTrue           = "True"
	CondFalse          = "False"
	CondNot            = "Not"
	CondAnd            = "And"
	CondOr             = "Or"
	CondHasEnemies     = "HasEnemies"
	CondFilter         = "Filter"
	CondIsGroupLeader  = "IsGroupLeader"
	CondIsInGroup      = "IsInGroup"
	CondIsCloseToGroup = "IsCloseToGroup"
	CondExpr           = "Expr"
)

// Condition gates a node. Evaluate must never panic on bad input; custom
// implementations translate their failures to false.
type Condition interface {
	Name() string
	Parameters() string
	Evaluate(ai *AI) bool
}

// ConditionFactoryContext carries the parsed parameters and operands.
type ConditionFactoryContext struct {
	Parameters string
	Conditions []Condition
	Filters    []Filter
}

// BaseCondition provides the name and parameter accessors.
type BaseCondition struct {
	name       string
	parameters string
}

func NewBaseCondition(name, parameters string) BaseCondition {
	return BaseCondition{name: name, parameters: parameters}
}

func (c BaseCondition) Name() string       { return c.name }
func (c BaseCondition) Parameters() string { return c.parameters }

type constCondition struct {
	BaseCondition
	value bool
}

func (c *constCondition) Evaluate(*AI) bool {
	return c.value
}

var (
	trueCondition  Condition = &constCondition{BaseCondition: NewBaseCondition(CondTrue, ""), value: true}
	falseCondition Condition = &constCondition{BaseCondition: NewBaseCondition(CondFalse, ""), value: false}
)

// True returns the shared always-true condition.
func True() Condition { return trueCondition }

// False returns the shared always-false condition.
func False() Condition { return falseCondition }

func newTrue(ConditionFactoryContext) (Condition, error)  { return trueCondition, nil }
func newFalse(ConditionFactoryContext) (Condition, error) { return falseCondition, nil }

type Not struct {
	BaseCondition
	operand Condition
}

// NewNot requires exactly one operand.
func NewNot(ctx ConditionFactoryContext) (Condition, error) {
	if len(ctx.Conditions) != 1 {
		return nil, fmt.Errorf("%w: Not expects 1 operand, got %d", ErrWrongOperandCount, len(ctx.Conditions))
	}
	return &Not{BaseCondition: NewBaseCondition(CondNot, ctx.Parameters), operand: ctx.Conditions[0]}, nil
}

func (n *Not) Evaluate(ai *AI) bool  { return !n.operand.Evaluate(ai) }
func (n *Not) Operands() []Condition { return []Condition{n.operand} }

type And struct {
	BaseCondition
	operands []Condition
}

func NewAnd(ctx ConditionFactoryContext) (Condition, error) {
	if len(ctx.Conditions) == 0 {
		return nil, fmt.Errorf("%w: And expects at least 1 operand", ErrWrongOperandCount)
	}
	return &And{BaseCondition: NewBaseCondition(CondAnd, ctx.Parameters), operands: ctx.Conditions}, nil
}

func (a *And) Evaluate(ai *AI) bool {
	for _, c := range a.operands {
		if !c.Evaluate(ai) {
			return false
		}
	}
	return true
}

func (a *And) Operands() []Condition { return a.operands }

type Or struct {
	BaseCondition
	operands []Condition
}

func NewOr(ctx ConditionFactoryContext) (Condition, error) {
	if len(ctx.Conditions) == 0 {
		return nil, fmt.Errorf("%w: Or expects at least 1 operand", ErrWrongOperandCount)
	}
	return &Or{BaseCondition: NewBaseCondition(CondOr, ctx.Parameters), operands: ctx.Conditions}, nil
}

func (o *Or) Evaluate(ai *AI) bool {
	for _, c := range o.operands {
		if c.Evaluate(ai) {
			return true
		}
	}
	return false
}

func (o *Or) Operands() []Condition { return o.operands }

// HasEnemies is true when the aggro table holds at least the given number of
// entries (default 1).
type HasEnemies struct {
	BaseCondition
	count int
}

func NewHasEnemies(ctx ConditionFactoryContext) (Condition, error) {
	count, err := parseIntParam(ctx.Parameters, 1)
	if err != nil {
		return nil, err
	}
	return &HasEnemies{BaseCondition: NewBaseCondition(CondHasEnemies, ctx.Parameters), count: count}, nil
}

func (h *HasEnemies) Evaluate(ai *AI) bool {
	return ai.AggroMgr().Count() >= h.count
}

// FilterCondition runs its filters and is true if the selection is not empty.
type FilterCondition struct {
	BaseCondition
	filters []Filter
}

func NewFilterCondition(ctx ConditionFactoryContext) (Condition, error) {
	if len(ctx.Filters) == 0 {
		return nil, fmt.Errorf("%w: Filter expects at least 1 filter", ErrWrongOperandCount)
	}
	return &FilterCondition{BaseCondition: NewBaseCondition(CondFilter, ctx.Parameters), filters: ctx.Filters}, nil
}

func (f *FilterCondition) Evaluate(ai *AI) bool {
	for _, flt := range f.filters {
		flt.Filter(ai)
	}
	return len(ai.filteredEntities) > 0
}

func (f *FilterCondition) Filters() []Filter { return f.filters }

// parseGroupParam reads an optional group id. Missing means "any group".
func parseGroupParam(params string) (GroupID, bool, error) {
	params = strings.TrimSpace(params)
	if params == "" {
		return 0, false, nil
	}
	v, err := strconv.Atoi(params)
	if err != nil {
		return 0, false, wrapParams(params, err)
	}
	return GroupID(v), true, nil
}

type IsGroupLeader struct {
	BaseCondition
	group GroupID
}

func NewIsGroupLeader(ctx ConditionFactoryContext) (Condition, error) {
	g, ok, err := parseGroupParam(ctx.Parameters)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: IsGroupLeader requires a group id", ErrInvalidParameters)
	}
	return &IsGroupLeader{BaseCondition: NewBaseCondition(CondIsGroupLeader, ctx.Parameters), group: g}, nil
}

func (c *IsGroupLeader) Evaluate(ai *AI) bool {
	z := ai.Zone()
	if z == nil {
		return false
	}
	return z.GroupMgr().IsLeader(c.group, ai)
}

// IsInGroup checks membership of one group or, without parameters, of any group.
type IsInGroup struct {
	BaseCondition
	group    GroupID
	hasGroup bool
}

func NewIsInGroup(ctx ConditionFactoryContext) (Condition, error) {
	g, ok, err := parseGroupParam(ctx.Parameters)
	if err != nil {
		return nil, err
	}
	return &IsInGroup{BaseCondition: NewBaseCondition(CondIsInGroup, ctx.Parameters), group: g, hasGroup: ok}, nil
}

func (c *IsInGroup) Evaluate(ai *AI) bool {
	z := ai.Zone()
	if z == nil {
		return false
	}
	if !c.hasGroup {
		return z.GroupMgr().IsInAnyGroup(ai)
	}
	return z.GroupMgr().IsInGroup(c.group, ai)
}

// IsCloseToGroup is true if the character is within distance of the group's
// average position. Parameters: "group,distance".
type IsCloseToGroup struct {
	BaseCondition
	group    GroupID
	distance float64
}

func NewIsCloseToGroup(ctx ConditionFactoryContext) (Condition, error) {
	parts := strings.Split(ctx.Parameters, ",")
	if len(parts) != 2 {
		return nil, fmt.Errorf("%w: IsCloseToGroup expects \"group,distance\"", ErrInvalidParameters)
	}
	g, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil {
		return nil, wrapParams(ctx.Parameters, err)
	}
	d, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return nil, wrapParams(ctx.Parameters, err)
	}
	return &IsCloseToGroup{
		BaseCondition: NewBaseCondition(CondIsCloseToGroup, ctx.Parameters),
		group:         GroupID(g),
		distance:      d,
	}, nil
}

func (c *IsCloseToGroup) Evaluate(ai *AI) bool {
	z := ai.Zone()
	ch := ai.Character()
	if z == nil || ch == nil {
		return false
	}
	pos, ok := z.GroupMgr().Position(c.group)
	if !ok {
		return false
	}
	return ch.Position().Distance(pos) <= c.distance
}

// ExprEnv is the environment visible to Expr conditions.
type ExprEnv struct {
	ID       int64              `expr:"id"`
	Time     int64              `expr:"time"`
	X        float64            `expr:"x"`
	Y        float64            `expr:"y"`
	Z        float64            `expr:"z"`
	Enemies  int                `expr:"enemies"`
	Filtered int                `expr:"filtered"`
	Attr     map[string]float64 `expr:"attr"`
	InGroup  func(int) bool     `expr:"in_group"`
}

// ExprCondition evaluates an expr-lang boolean expression against ExprEnv.
type ExprCondition struct {
	BaseCondition
	program *vm.Program
}

func NewExprCondition(ctx ConditionFactoryContext) (Condition, error) {
	expression := strings.TrimSpace(ctx.Parameters)
	if expression == "" {
		return nil, fmt.Errorf("%w: Expr requires an expression", ErrInvalidParameters)
	}
	program, err := expr.Compile(expression,
		expr.Env(ExprEnv{}),
		expr.AsBool(),
		expr.AllowUndefinedVariables(),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: compile %q: %v", ErrInvalidParameters, expression, err)
	}
	return &ExprCondition{BaseCondition: NewBaseCondition(CondExpr, ctx.Parameters), program: program}, nil
}

func (c *ExprCondition) Evaluate(ai *AI) bool {
	out, err := expr.Run(c.program, newExprEnv(ai))
	if err != nil {
		ai.Logger().Warn("expression condition failed",
			log.String("expression", c.Parameters()),
			log.Int64("character_id", int64(ai.ID())),
			log.Error(err),
		)
		return false
	}
	b, ok := out.(bool)
	return ok && b
}

func newExprEnv(ai *AI) ExprEnv {
	env := ExprEnv{
		ID:       int64(ai.ID()),
		Time:     ai.Time(),
		Enemies:  ai.AggroMgr().Count(),
		Filtered: len(ai.filteredEntities),
		Attr:     map[string]float64{},
		InGroup: func(g int) bool {
			z := ai.Zone()
			return z != nil && z.GroupMgr().IsInGroup(GroupID(g), ai)
		},
	}
	if ch := ai.Character(); ch != nil {
		pos := ch.Position()
		env.X, env.Y, env.Z = pos.X, pos.Y, pos.Z
		if attr, ok := ch.(Attributer); ok {
			env.Attr = attr.Attributes()
		}
	}
	return env
}
