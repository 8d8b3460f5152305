// Package script implements tree nodes, conditions and filters in JavaScript.
//
// A node script defines execute(ai, dt, params) and returns a status name
// ("RUNNING", "FINISHED", ...) or its number. A condition script defines
// evaluate(ai, params) returning a boolean, and a filter script defines
// filter(ai, params) returning an array of character ids that is appended to
// the selection. Scripts run on a pool of goja runtimes with a per-call
// timeout, so they can back trees ticked from many goroutines.
package script

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dop251/goja"

	"github.com/zeusync/aitree/internal/core/ai"
	"github.com/zeusync/aitree/internal/core/observability/log"
)

var (
	ErrTimeout         = errors.New("script: execution timed out")
	ErrPanic           = errors.New("script: runtime panic")
	ErrMissingFunction = errors.New("script: missing entry function")
	ErrTypeTaken       = errors.New("script: type already registered")
	ErrBadResult       = errors.New("script: invalid return value")
)

const (
	fnExecute  = "execute"
	fnEvaluate = "evaluate"
	fnFilter   = "filter"
)

// program is a compiled script. Each runtime evaluates it once and keeps the
// resulting entry points.
type program struct {
	name     string
	entry    string
	compiled *goja.Program
}

type runtime struct {
	vm      *goja.Runtime
	exports map[*program]goja.Callable
}

// Engine owns the runtime pool.
type Engine struct {
	pool    chan *runtime
	timeout time.Duration
	logger  log.Log
}

// New creates an engine with size runtimes and a per-call timeout.
func New(size int, timeout time.Duration, logger log.Log) *Engine {
	if size <= 0 {
		size = 4
	}
	if timeout <= 0 {
		timeout = 50 * time.Millisecond
	}
	if logger == nil {
		logger = log.Provide()
	}
	e := &Engine{
		pool:    make(chan *runtime, size),
		timeout: timeout,
		logger:  logger,
	}
	for range size {
		e.pool <- e.newRuntime()
	}
	return e
}

func (e *Engine) newRuntime() *runtime {
	vm := goja.New()
	for _, name := range []string{"require", "eval"} {
		_ = vm.Set(name, goja.Undefined())
	}
	_ = vm.Set("log", func(msg string) {
		e.logger.Info("script log", log.String("message", msg))
	})
	return &runtime{vm: vm, exports: make(map[*program]goja.Callable)}
}

// compile wraps the source in its own function scope so that scripts sharing
// a runtime cannot see each other's entry points.
func compile(name, entry, src string) (*program, error) {
	wrapped := "(function() {\n" + src + "\n;return typeof " + entry + " === 'function' ? " + entry + " : undefined;\n})()"
	compiled, err := goja.Compile(name, wrapped, false)
	if err != nil {
		return nil, fmt.Errorf("compile %s: %w", name, err)
	}
	return &program{name: name, entry: entry, compiled: compiled}, nil
}

// load resolves the entry point of p in rt, evaluating the script on first use.
func (rt *runtime) load(p *program) (goja.Callable, error) {
	if fn, ok := rt.exports[p]; ok {
		return fn, nil
	}
	v, err := rt.vm.RunProgram(p.compiled)
	if err != nil {
		return nil, err
	}
	fn, ok := goja.AssertFunction(v)
	if !ok {
		return nil, fmt.Errorf("%w: %s does not define %s()", ErrMissingFunction, p.name, p.entry)
	}
	rt.exports[p] = fn
	return fn, nil
}

// verify loads the program once so that missing entry points are reported
// at registration.
func (e *Engine) verify(p *program) error {
	return e.run(func(rt *runtime) error {
		_, err := rt.load(p)
		return err
	})
}

// call runs the entry point of p with the AI view and the given arguments.
func (e *Engine) call(p *program, a *ai.AI, args ...any) (result any, err error) {
	err = e.run(func(rt *runtime) error {
		fn, err := rt.load(p)
		if err != nil {
			return err
		}
		values := make([]goja.Value, 0, len(args)+1)
		values = append(values, newAIObject(rt.vm, a))
		for _, arg := range args {
			values = append(values, rt.vm.ToValue(arg))
		}
		out, err := fn(goja.Undefined(), values...)
		if err != nil {
			return err
		}
		if out != nil && !goja.IsUndefined(out) && !goja.IsNull(out) {
			result = out.Export()
		}
		return nil
	})
	return result, err
}

// run borrows a runtime for fn under the engine timeout. The runtime goes
// back to the pool only when the timeout timer was stopped before firing; an
// interrupt that lands late would otherwise fail the next borrower.
func (e *Engine) run(fn func(rt *runtime) error) (err error) {
	rt := <-e.pool
	timer := time.AfterFunc(e.timeout, func() { rt.vm.Interrupt(ErrTimeout) })
	defer func() {
		r := recover()
		if r != nil {
			err = fmt.Errorf("%w: %v", ErrPanic, r)
		}
		if timer.Stop() && r == nil {
			e.pool <- rt
			return
		}
		e.pool <- e.newRuntime()
	}()

	err = fn(rt)
	var interrupted *goja.InterruptedError
	if errors.As(err, &interrupted) {
		return ErrTimeout
	}
	return err
}

// newAIObject exposes a read-mostly view of the AI to scripts.
func newAIObject(vm *goja.Runtime, a *ai.AI) goja.Value {
	o := vm.NewObject()
	_ = o.Set("id", int64(a.ID()))
	_ = o.Set("time", a.Time())

	var pos ai.Vec3
	attrs := map[string]any{}
	if ch := a.Character(); ch != nil {
		pos = ch.Position()
		if at, ok := ch.(ai.Attributer); ok {
			for k, v := range at.Attributes() {
				attrs[k] = v
			}
		}
	}
	_ = o.Set("x", pos.X)
	_ = o.Set("y", pos.Y)
	_ = o.Set("z", pos.Z)
	_ = o.Set("attr", attrs)

	entries := a.AggroMgr().Entries()
	enemies := make([]any, 0, len(entries))
	for _, entry := range entries {
		enemies = append(enemies, map[string]any{"id": int64(entry.CharacterID), "aggro": entry.Aggro})
	}
	_ = o.Set("enemies", enemies)

	filtered := a.FilteredEntities()
	ids := make([]any, 0, len(filtered))
	for _, id := range filtered {
		ids = append(ids, int64(id))
	}
	_ = o.Set("filtered", ids)

	_ = o.Set("addAggro", func(id int64, amount float64) float64 {
		return a.AggroMgr().AddAggro(ai.CharacterID(id), amount)
	})
	_ = o.Set("inGroup", func(g int) bool {
		z := a.Zone()
		return z != nil && z.GroupMgr().IsInGroup(ai.GroupID(g), a)
	})
	return o
}

// LoadDir registers every script file below dir. The file name selects the
// kind: Attack.node.js, IsHurt.condition.js, Weakest.filter.js.
func (e *Engine) LoadDir(reg *ai.Registry, dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}
	var errs []error
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".js") {
			continue
		}
		base := strings.TrimSuffix(entry.Name(), ".js")
		dot := strings.LastIndexByte(base, '.')
		if dot <= 0 {
			errs = append(errs, fmt.Errorf("%s: expected <Type>.<kind>.js", entry.Name()))
			continue
		}
		typ, kind := base[:dot], base[dot+1:]

		src, err := os.ReadFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			errs = append(errs, err)
			continue
		}
		switch kind {
		case "node":
			err = e.RegisterNode(reg, typ, string(src))
		case "condition":
			err = e.RegisterCondition(reg, typ, string(src))
		case "filter":
			err = e.RegisterFilter(reg, typ, string(src))
		default:
			err = fmt.Errorf("unknown script kind %q", kind)
		}
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", entry.Name(), err))
			continue
		}
		e.logger.Info("script registered", log.String("type", typ), log.String("kind", kind))
	}
	return errors.Join(errs...)
}
