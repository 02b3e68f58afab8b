package query

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sync"

	"golang.org/x/sync/singleflight"
)

// errEnsureCycle signals that validating a cached entry looped back into
// the entry being validated. The validator treats the entry as dirty and
// recomputes it, which routes the cycle through the normal fixed-point
// machinery.
var errEnsureCycle = errors.New("query validation re-entered itself")

// MaxCycleIterations bounds fixed-point iteration over cyclic queries.
// A cycle that does not stabilize within the bound degrades to the query
// family's bottom value and is reported through OnUnstableCycle.
const MaxCycleIterations = 16

// Fn computes one query result. It may call rt.Get for other queries;
// every such call is recorded as a dependency edge of this computation.
type Fn func(ctx context.Context, rt *Runtime, arg string) (any, error)

type queryDef struct {
	fn     Fn
	bottom any // provisional value handed to re-entrant calls
	cyclic bool
}

type entry struct {
	value      any
	deps       []Key
	changedAt  uint64 // revision at which the output last differed
	verifiedAt uint64 // revision at which validity was last confirmed
	input      bool
}

// Runtime is the demand-driven memoization engine. Cached values are
// re-validated lazily, top-down: a value is reused when none of its
// transitive inputs changed, and a dependent is not recomputed when a
// dependency re-ran but produced an equal output (early cutoff).
type Runtime struct {
	mu       sync.Mutex
	entries  map[Key]*entry
	defs     map[string]queryDef
	revision uint64

	// group deduplicates concurrent recomputes of non-cyclic keys only.
	// Cyclic keys never wait on another goroutine's in-flight computation;
	// see recompute.
	group singleflight.Group
	stats Stats

	// Equal compares query outputs for early cutoff. Defaults to
	// reflect.DeepEqual.
	Equal func(a, b any) bool

	// OnUnstableCycle is invoked when a cycle exhausts the iteration
	// bound; the key's value degrades to the family's bottom.
	OnUnstableCycle func(key Key)
}

func NewRuntime() *Runtime {
	return &Runtime{
		entries: make(map[Key]*entry),
		defs:    make(map[string]queryDef),
		Equal:   reflect.DeepEqual,
	}
}

// Register binds a compute function to a query kind.
func (rt *Runtime) Register(kind string, fn Fn) {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	rt.defs[kind] = queryDef{fn: fn}
}

// RegisterCyclic binds a compute function that may legally re-enter
// itself. Re-entrant calls observe bottom (or the current provisional
// value) and the head iterates to a fixed point.
func (rt *Runtime) RegisterCyclic(kind string, fn Fn, bottom any) {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	rt.defs[kind] = queryDef{fn: fn, bottom: bottom, cyclic: true}
}

// Stats exposes engine counters for instrumentation and tests.
func (rt *Runtime) Stats() *Stats {
	return &rt.stats
}

// Revision returns the current global revision stamp.
func (rt *Runtime) Revision() uint64 {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	return rt.revision
}

// SetInput publishes an input value. Writing an equal value bumps the
// revision but keeps the old change stamp, so dependents stay valid.
func (rt *Runtime) SetInput(key Key, value any) {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	rt.revision++
	e, ok := rt.entries[key]
	if !ok {
		rt.entries[key] = &entry{
			value:      value,
			changedAt:  rt.revision,
			verifiedAt: rt.revision,
			input:      true,
		}
		return
	}
	if !rt.equal(e.value, value) {
		e.changedAt = rt.revision
	}
	e.value = value
	e.verifiedAt = rt.revision
	e.input = true
}

// GetInput reads an input value without recording a dependency. Intended
// for callers outside any active computation.
func (rt *Runtime) GetInput(key Key) (any, bool) {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	e, ok := rt.entries[key]
	if !ok || !e.input {
		return nil, false
	}
	return e.value, true
}

// Forget drops a derived entry, forcing recomputation on next demand.
func (rt *Runtime) Forget(key Key) {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	rt.revision++
	delete(rt.entries, key)
}

func (rt *Runtime) equal(a, b any) bool {
	if rt.Equal != nil {
		return rt.Equal(a, b)
	}
	return reflect.DeepEqual(a, b)
}

// frame tracks the active computation on this goroutine's call path.
type frame struct {
	key    Key
	parent *frame
	deps   []Key
	// cycleHead помечает запрос, в который вернулся его же потомок
	cycleHead bool
	// cycleMember помечает промежуточные запросы цикла: их результат
	// вычислен против provisional-значения и кешированию не подлежит
	cycleMember bool

	// provisional-значение головы цикла живёт на её фрейме, а не в
	// Runtime: итерация не делит состояние с другими горутинами
	prov    any
	hasProv bool
}

type frameCtxKey struct{}

func withFrame(ctx context.Context, f *frame) context.Context {
	return context.WithValue(ctx, frameCtxKey{}, f)
}

func activeFrame(ctx context.Context) *frame {
	f, _ := ctx.Value(frameCtxKey{}).(*frame)
	return f
}

// ensureChain tracks keys currently being validated on this goroutine.
type ensureChain struct {
	key    Key
	parent *ensureChain
}

type ensureCtxKey struct{}

func withEnsure(ctx context.Context, key Key) context.Context {
	parent, _ := ctx.Value(ensureCtxKey{}).(*ensureChain)
	return context.WithValue(ctx, ensureCtxKey{}, &ensureChain{key: key, parent: parent})
}

func ensuring(ctx context.Context, key Key) bool {
	c, _ := ctx.Value(ensureCtxKey{}).(*ensureChain)
	for ; c != nil; c = c.parent {
		if c.key == key {
			return true
		}
	}
	return false
}

// Get returns the up-to-date value for key, recomputing only what the
// change history requires. Called from inside a compute function it also
// records the dependency edge. Cancellation is honored at query
// boundaries only.
func (rt *Runtime) Get(ctx context.Context, key Key) (any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	caller := activeFrame(ctx)
	if caller != nil {
		caller.deps = append(caller.deps, key)
	}

	// повторный вход в активный запрос - это цикл
	if head := findActive(caller, key); head != nil {
		return rt.enterCycle(key, head, caller)
	}

	e, err := rt.ensure(ctx, key)
	if err != nil {
		return nil, err
	}
	return e.value, nil
}

func findActive(f *frame, key Key) *frame {
	for ; f != nil; f = f.parent {
		if f.key == key {
			return f
		}
	}
	return nil
}

func (rt *Runtime) enterCycle(key Key, head, caller *frame) (any, error) {
	rt.mu.Lock()
	def, ok := rt.defs[key.Kind]
	rt.mu.Unlock()
	if !ok || !def.cyclic {
		return nil, fmt.Errorf("query cycle through non-cyclic %s", key)
	}
	head.cycleHead = true
	for f := caller; f != nil && f != head; f = f.parent {
		f.cycleMember = true
	}
	if head.hasProv {
		return head.prov, nil
	}
	return def.bottom, nil
}

// ensure brings the entry for key up to date and returns it.
func (rt *Runtime) ensure(ctx context.Context, key Key) (*entry, error) {
	if ensuring(ctx, key) {
		return nil, errEnsureCycle
	}
	ctx = withEnsure(ctx, key)

	rt.mu.Lock()
	currentRev := rt.revision
	e, exists := rt.entries[key]
	if exists && (e.input || e.verifiedAt == currentRev) {
		rt.mu.Unlock()
		rt.stats.hits.Add(1)
		return e, nil
	}
	rt.mu.Unlock()

	if exists {
		rt.stats.validations.Add(1)
		clean, err := rt.depsClean(ctx, e, currentRev)
		if err != nil {
			return nil, err
		}
		if clean {
			rt.mu.Lock()
			e.verifiedAt = currentRev
			rt.mu.Unlock()
			rt.stats.hits.Add(1)
			return e, nil
		}
	}

	return rt.recompute(ctx, key)
}

// depsClean re-validates each direct dependency; a dependency whose
// output changed after our last verification dirties us.
func (rt *Runtime) depsClean(ctx context.Context, e *entry, rev uint64) (bool, error) {
	rt.mu.Lock()
	verifiedAt := e.verifiedAt
	deps := make([]Key, len(e.deps))
	copy(deps, e.deps)
	rt.mu.Unlock()

	for _, dep := range deps {
		de, err := rt.ensure(ctx, dep)
		if errors.Is(err, errEnsureCycle) {
			// зависимость упёрлась в нас же: валидация невозможна,
			// пересчёт прогонит цикл через fixed-point
			return false, nil
		}
		if err != nil {
			return false, err
		}
		rt.mu.Lock()
		depChanged := de.changedAt > verifiedAt
		rt.mu.Unlock()
		if depChanged {
			return false, nil
		}
	}
	return true, nil
}

// recompute runs the query function, deduplicating concurrent callers of
// the same non-cyclic key through singleflight. Cyclic keys are computed
// on the demanding goroutine instead: blocking on another goroutine's
// in-flight cycle can deadlock when that cycle loops back into a key
// active on our own stack, so each goroutine iterates the cycle itself
// and equal results meet at the store through early cutoff.
func (rt *Runtime) recompute(ctx context.Context, key Key) (*entry, error) {
	rt.mu.Lock()
	def, ok := rt.defs[key.Kind]
	rt.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("no query registered for kind %q", key.Kind)
	}
	if def.cyclic {
		return rt.compute(ctx, key, def)
	}
	v, err, _ := rt.group.Do(key.String(), func() (any, error) {
		return rt.compute(ctx, key, def)
	})
	if err != nil {
		return nil, err
	}
	return v.(*entry), nil
}

func (rt *Runtime) compute(ctx context.Context, key Key, def queryDef) (*entry, error) {
	rt.mu.Lock()
	// другой вызов мог успеть пересчитать, пока мы ждали singleflight
	if e, ok := rt.entries[key]; ok && e.verifiedAt == rt.revision {
		rt.mu.Unlock()
		return e, nil
	}
	rt.mu.Unlock()

	value, deps, flags, err := rt.runOnce(ctx, key, def, nil, false)
	if err != nil {
		return nil, err
	}

	if flags.head {
		value, deps, err = rt.iterateCycle(ctx, key, def, value)
		if err != nil {
			return nil, err
		}
	}

	rt.mu.Lock()
	defer rt.mu.Unlock()
	if flags.member && !flags.head {
		// участник незавершённого цикла: результат получен против
		// provisional-значения головы и жить дольше одной итерации не должен
		return &entry{value: value, deps: deps, changedAt: rt.revision, verifiedAt: 0}, nil
	}
	currentRev := rt.revision
	e, exists := rt.entries[key]
	if !exists {
		e = &entry{changedAt: currentRev}
		rt.entries[key] = e
	} else if !rt.equal(e.value, value) {
		e.changedAt = currentRev
	}
	// равный результат сохраняет старый changedAt: ранняя отсечка
	e.value = value
	e.deps = deps
	e.verifiedAt = currentRev
	return e, nil
}

type runFlags struct {
	head   bool
	member bool
}

func (rt *Runtime) runOnce(ctx context.Context, key Key, def queryDef, prov any, hasProv bool) (any, []Key, runFlags, error) {
	f := &frame{key: key, parent: activeFrame(ctx), prov: prov, hasProv: hasProv}
	rt.stats.recomputes.Add(1)
	value, err := def.fn(withFrame(ctx, f), rt, key.Arg)
	if err != nil {
		return nil, nil, runFlags{}, err
	}
	return value, f.deps, runFlags{head: f.cycleHead, member: f.cycleMember}, nil
}

// iterateCycle re-runs the head of a detected cycle with the previous
// round's value as the provisional answer until the output stabilizes.
func (rt *Runtime) iterateCycle(ctx context.Context, key Key, def queryDef, value any) (any, []Key, error) {
	var deps []Key
	stable := false
	for i := 0; i < MaxCycleIterations; i++ {
		rt.stats.cycleIters.Add(1)

		next, nextDeps, _, err := rt.runOnce(ctx, key, def, value, true)
		if err != nil {
			return nil, nil, err
		}
		deps = nextDeps
		if rt.equal(value, next) {
			stable = true
			break
		}
		value = next
	}

	if !stable {
		rt.stats.unstableCycles.Add(1)
		value = def.bottom
		if rt.OnUnstableCycle != nil {
			rt.OnUnstableCycle(key)
		}
	}
	return value, deps, nil
}
