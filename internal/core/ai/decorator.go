package ai

import (
	"fmt"

	"github.com/zeusync/aitree/internal/core/observability/log"
)

const (
	TypeFail    = "Fail"
	TypeSucceed = "Succeed"
	TypeInvert  = "Invert"
	TypeLimit   = "Limit"
)

// Validator is implemented by nodes with structural preconditions that can
// only be checked once children are attached.
type Validator interface {
	Validate() error
}

// Validate checks every node of the tree that implements Validator.
func Validate(root TreeNode) error {
	var err error
	Walk(root, func(n TreeNode) bool {
		if v, ok := n.(Validator); ok {
			if verr := v.Validate(); verr != nil {
				err = fmt.Errorf("node %d (%s): %w", n.ID(), n.Type(), verr)
				return false
			}
		}
		return true
	})
	return err
}

// decorator is the base for nodes wrapping exactly one child.
type decorator struct {
	*Node
}

func newDecorator(typ string, ctx NodeFactoryContext) *decorator {
	return &decorator{Node: NewNode(typ, ctx)}
}

// AddChild refuses a second child.
func (d *decorator) AddChild(child TreeNode) bool {
	if len(d.Children()) >= 1 {
		return false
	}
	return d.Node.AddChild(child)
}

func (d *decorator) Validate() error {
	if n := len(d.Children()); n != 1 {
		return fmt.Errorf("%w: %s expects 1 child, has %d", ErrWrongChildCount, d.Type(), n)
	}
	return nil
}

// child returns the wrapped node. A missing child at run time is a broken
// tree: it is logged and the caller reports StatusException.
func (d *decorator) child(ai *AI) (TreeNode, bool) {
	children := d.Children()
	if len(children) != 1 {
		ai.Logger().Error("decorator has wrong child count",
			log.Int32("node_id", int32(d.ID())),
			log.String("node_type", d.Type()),
			log.Int("children", len(children)),
			log.Int64("character_id", int64(ai.ID())),
		)
		return nil, false
	}
	return children[0], true
}

func (d *decorator) RunningChildren(ai *AI) []bool {
	children := d.Children()
	running := make([]bool, len(children))
	if len(children) == 1 {
		running[0] = ai.LastStatus(children[0].ID()) == StatusRunning
	}
	return running
}

// Fail forces every terminal child outcome to StatusFailed.
type Fail struct {
	*decorator
}

func NewFail(ctx NodeFactoryContext) (TreeNode, error) {
	return &Fail{decorator: newDecorator(TypeFail, ctx)}, nil
}

func (f *Fail) Execute(ai *AI, dt int64) Status {
	if !f.Gate(ai) {
		return StatusCannotExecute
	}
	c, ok := f.child(ai)
	if !ok {
		return f.State(ai, StatusException)
	}
	if c.Execute(ai, dt) == StatusRunning {
		return f.State(ai, StatusRunning)
	}
	return f.State(ai, StatusFailed)
}

// Succeed forces every terminal child outcome to StatusFinished.
type Succeed struct {
	*decorator
}

func NewSucceed(ctx NodeFactoryContext) (TreeNode, error) {
	return &Succeed{decorator: newDecorator(TypeSucceed, ctx)}, nil
}

func (s *Succeed) Execute(ai *AI, dt int64) Status {
	if !s.Gate(ai) {
		return StatusCannotExecute
	}
	c, ok := s.child(ai)
	if !ok {
		return s.State(ai, StatusException)
	}
	if c.Execute(ai, dt) == StatusRunning {
		return s.State(ai, StatusRunning)
	}
	return s.State(ai, StatusFinished)
}

// Invert swaps success and failure. Running and Exception pass through.
type Invert struct {
	*decorator
}

func NewInvert(ctx NodeFactoryContext) (TreeNode, error) {
	return &Invert{decorator: newDecorator(TypeInvert, ctx)}, nil
}

func (i *Invert) Execute(ai *AI, dt int64) Status {
	if !i.Gate(ai) {
		return StatusCannotExecute
	}
	c, ok := i.child(ai)
	if !ok {
		return i.State(ai, StatusException)
	}
	switch status := c.Execute(ai, dt); status {
	case StatusFinished:
		return i.State(ai, StatusFailed)
	case StatusFailed, StatusCannotExecute:
		return i.State(ai, StatusFinished)
	default:
		return i.State(ai, status)
	}
}

// Limit runs its child at most Amount times per AI and finishes without
// touching the child afterwards.
type Limit struct {
	*decorator
	amount int
}

func NewLimit(ctx NodeFactoryContext) (TreeNode, error) {
	amount, err := parseIntParam(ctx.Parameters, 1)
	if err != nil {
		return nil, err
	}
	if amount < 0 {
		return nil, fmt.Errorf("%w: limit must not be negative", ErrInvalidParameters)
	}
	return &Limit{decorator: newDecorator(TypeLimit, ctx), amount: amount}, nil
}

func (l *Limit) Amount() int {
	return l.amount
}

func (l *Limit) Execute(ai *AI, dt int64) Status {
	if !l.Gate(ai) {
		return StatusCannotExecute
	}
	if ai.limitState(l.ID()) >= l.amount {
		return l.State(ai, StatusFinished)
	}
	c, ok := l.child(ai)
	if !ok {
		return l.State(ai, StatusException)
	}
	ai.incLimitState(l.ID())
	return l.State(ai, c.Execute(ai, dt))
}
