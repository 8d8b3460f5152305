package ai

import (
	"strconv"
	"strings"
)

const (
	TypeSequence            = "Sequence"
	TypePrioritySelector    = "PrioritySelector"
	TypeProbabilitySelector = "ProbabilitySelector"
	TypeRandomSelector      = "RandomSelector"
	TypeParallel            = "Parallel"
)

// abandon drops the resumable state of a subtree that will not be continued.
// Limit counters survive so caps hold across runs.
func abandon(ai *AI, node TreeNode) {
	Walk(node, func(n TreeNode) bool {
		ai.clearSelectorState(n.ID())
		delete(ai.timers, n.ID())
		return true
	})
}

// selectorRunning marks the remembered child as running.
func selectorRunning(ai *AI, id NodeID, count int) []bool {
	running := make([]bool, count)
	if idx, ok := ai.selectorState(id); ok && idx >= 0 && idx < count {
		running[idx] = true
	}
	return running
}

// Sequence runs its children in order and resumes at a running child on the
// next tick. A child that cannot execute aborts the sequence as failed.
type Sequence struct {
	*Node
}

func NewSequence(ctx NodeFactoryContext) (TreeNode, error) {
	return &Sequence{Node: NewNode(TypeSequence, ctx)}, nil
}

func (s *Sequence) Execute(ai *AI, dt int64) Status {
	if !s.Gate(ai) {
		return StatusCannotExecute
	}

	children := s.Children()
	start, _ := ai.selectorState(s.ID())
	if start >= len(children) {
		start = 0
	}

	for i := start; i < len(children); i++ {
		switch status := children[i].Execute(ai, dt); status {
		case StatusFinished:
			continue
		case StatusRunning:
			ai.setSelectorState(s.ID(), i)
			return s.State(ai, StatusRunning)
		case StatusException:
			s.finish(ai, children)
			return s.State(ai, StatusException)
		default:
			s.finish(ai, children)
			return s.State(ai, StatusFailed)
		}
	}

	s.finish(ai, children)
	return s.State(ai, StatusFinished)
}

func (s *Sequence) finish(ai *AI, children []TreeNode) {
	ai.clearSelectorState(s.ID())
	for _, c := range children {
		abandon(ai, c)
	}
}

func (s *Sequence) RunningChildren(ai *AI) []bool {
	return selectorRunning(ai, s.ID(), len(s.Children()))
}

// PrioritySelector runs the first child that neither fails nor is gated. A
// running child is resumed on the next tick.
type PrioritySelector struct {
	*Node
}

func NewPrioritySelector(ctx NodeFactoryContext) (TreeNode, error) {
	return &PrioritySelector{Node: NewNode(TypePrioritySelector, ctx)}, nil
}

func (p *PrioritySelector) Execute(ai *AI, dt int64) Status {
	if !p.Gate(ai) {
		return StatusCannotExecute
	}

	children := p.Children()
	start, _ := ai.selectorState(p.ID())
	if start >= len(children) {
		start = 0
	}

	result := StatusFailed
	selected := -1
	for i := start; i < len(children); i++ {
		status := children[i].Execute(ai, dt)
		if status == StatusCannotExecute || status == StatusFailed {
			continue
		}
		result = status
		selected = i
		break
	}

	for i, c := range children {
		if i != selected {
			abandon(ai, c)
		}
	}
	if result == StatusRunning {
		ai.setSelectorState(p.ID(), selected)
	} else {
		ai.clearSelectorState(p.ID())
	}
	return p.State(ai, result)
}

func (p *PrioritySelector) RunningChildren(ai *AI) []bool {
	return selectorRunning(ai, p.ID(), len(p.Children()))
}

// ProbabilitySelector picks one child per run using the weights given as
// parameters. Children without a weight get weight 1.
type ProbabilitySelector struct {
	*Node
	weights []float64
}

func NewProbabilitySelector(ctx NodeFactoryContext) (TreeNode, error) {
	weights, err := parseFloats(ctx.Parameters)
	if err != nil {
		return nil, err
	}
	return &ProbabilitySelector{Node: NewNode(TypeProbabilitySelector, ctx), weights: weights}, nil
}

func (p *ProbabilitySelector) weight(i int) float64 {
	if i < len(p.weights) {
		return p.weights[i]
	}
	return 1
}

func (p *ProbabilitySelector) Execute(ai *AI, dt int64) Status {
	if !p.Gate(ai) {
		return StatusCannotExecute
	}

	children := p.Children()
	if len(children) == 0 {
		return p.State(ai, StatusFailed)
	}

	idx, running := ai.selectorState(p.ID())
	if !running || idx >= len(children) {
		idx = p.pick(ai, len(children))
	}

	status := children[idx].Execute(ai, dt)
	if status == StatusRunning {
		ai.setSelectorState(p.ID(), idx)
		return p.State(ai, StatusRunning)
	}
	ai.clearSelectorState(p.ID())
	if status == StatusCannotExecute {
		status = StatusFailed
	}
	return p.State(ai, status)
}

func (p *ProbabilitySelector) pick(ai *AI, n int) int {
	var total float64
	for i := 0; i < n; i++ {
		total += p.weight(i)
	}
	if total <= 0 {
		return ai.Rand().IntN(n)
	}
	r := ai.Rand().Float64() * total
	for i := 0; i < n; i++ {
		r -= p.weight(i)
		if r < 0 {
			return i
		}
	}
	return n - 1
}

func (p *ProbabilitySelector) RunningChildren(ai *AI) []bool {
	return selectorRunning(ai, p.ID(), len(p.Children()))
}

// RandomSelector executes one uniformly chosen child per run.
type RandomSelector struct {
	*Node
}

func NewRandomSelector(ctx NodeFactoryContext) (TreeNode, error) {
	return &RandomSelector{Node: NewNode(TypeRandomSelector, ctx)}, nil
}

func (r *RandomSelector) Execute(ai *AI, dt int64) Status {
	if !r.Gate(ai) {
		return StatusCannotExecute
	}

	children := r.Children()
	if len(children) == 0 {
		return r.State(ai, StatusFailed)
	}

	idx, running := ai.selectorState(r.ID())
	if !running || idx >= len(children) {
		idx = ai.Rand().IntN(len(children))
	}

	status := children[idx].Execute(ai, dt)
	if status == StatusRunning {
		ai.setSelectorState(r.ID(), idx)
		return r.State(ai, StatusRunning)
	}
	ai.clearSelectorState(r.ID())
	if status == StatusCannotExecute {
		status = StatusFailed
	}
	return r.State(ai, status)
}

func (r *RandomSelector) RunningChildren(ai *AI) []bool {
	return selectorRunning(ai, r.ID(), len(r.Children()))
}

// Parallel executes every child on every tick regardless of their results.
type Parallel struct {
	*Node
}

func NewParallel(ctx NodeFactoryContext) (TreeNode, error) {
	return &Parallel{Node: NewNode(TypeParallel, ctx)}, nil
}

func (p *Parallel) Execute(ai *AI, dt int64) Status {
	if !p.Gate(ai) {
		return StatusCannotExecute
	}

	result := StatusFinished
	for _, c := range p.Children() {
		switch c.Execute(ai, dt) {
		case StatusRunning:
			if result != StatusException {
				result = StatusRunning
			}
		case StatusException:
			result = StatusException
		}
	}
	return p.State(ai, result)
}

// RunningChildren relies on recorded statuses and is only meaningful while debugging.
func (p *Parallel) RunningChildren(ai *AI) []bool {
	children := p.Children()
	running := make([]bool, len(children))
	for i, c := range children {
		running[i] = ai.LastStatus(c.ID()) == StatusRunning
	}
	return running
}

func parseFloats(params string) ([]float64, error) {
	params = strings.TrimSpace(params)
	if params == "" {
		return nil, nil
	}
	parts := strings.Split(params, ",")
	out := make([]float64, 0, len(parts))
	for _, part := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(part), 64)
		if err != nil {
			return nil, wrapParams(params, err)
		}
		out = append(out, f)
	}
	return out, nil
}

func parseIntParam(params string, def int) (int, error) {
	params = strings.TrimSpace(params)
	if params == "" {
		return def, nil
	}
	v, err := strconv.Atoi(params)
	if err != nil {
		return 0, wrapParams(params, err)
	}
	return v, nil
}
