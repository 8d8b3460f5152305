package ai

const TypeIdle = "Idle"

// TimedHooks are the phases of a timed node.
type TimedHooks interface {
	OnStart(ai *AI) Status
	OnRunning(ai *AI) Status
	OnExpired(ai *AI) Status
}

// Timed runs a countdown per AI. The deadline is stored in the AI, so a shared
// node can back many concurrently ticking characters. If the condition blocks
// the node past its deadline, the next run goes straight to OnExpired.
type Timed struct {
	*Node
	millis int64
	hooks  TimedHooks
}

// NewTimed builds a timed node. The millisecond duration is read from the
// parameters and falls back to def.
func NewTimed(typ string, ctx NodeFactoryContext, def int64, hooks TimedHooks) (*Timed, error) {
	millis, err := parseIntParam(ctx.Parameters, int(def))
	if err != nil {
		return nil, err
	}
	return &Timed{Node: NewNode(typ, ctx), millis: int64(millis), hooks: hooks}, nil
}

func (t *Timed) Millis() int64 {
	return t.millis
}

func (t *Timed) Execute(ai *AI, _ int64) Status {
	if !t.Gate(ai) {
		return StatusCannotExecute
	}

	deadline, started := ai.timers[t.ID()]
	if !started {
		ai.timers[t.ID()] = ai.Time() + t.millis
		return t.finish(ai, t.hooks.OnStart(ai))
	}
	if ai.Time() < deadline {
		return t.finish(ai, t.hooks.OnRunning(ai))
	}
	delete(ai.timers, t.ID())
	return t.State(ai, t.hooks.OnExpired(ai))
}

// finish records s and drops the timer when a hook ends the node early, so
// the next execution starts over.
func (t *Timed) finish(ai *AI, s Status) Status {
	if s == StatusFinished {
		delete(ai.timers, t.ID())
	}
	return t.State(ai, s)
}

// Remaining reports the milliseconds left for the AI, or -1 when not started.
func (t *Timed) Remaining(ai *AI) int64 {
	deadline, started := ai.timers[t.ID()]
	if !started {
		return -1
	}
	return max(deadline-ai.Time(), 0)
}

type idleHooks struct{}

func (idleHooks) OnStart(*AI) Status   { return StatusRunning }
func (idleHooks) OnRunning(*AI) Status { return StatusRunning }
func (idleHooks) OnExpired(*AI) Status { return StatusFinished }

// NewIdle waits the given milliseconds (default 1000) and then finishes.
func NewIdle(ctx NodeFactoryContext) (TreeNode, error) {
	t, err := NewTimed(TypeIdle, ctx, 1000, idleHooks{})
	if err != nil {
		return nil, err
	}
	return t, nil
}
