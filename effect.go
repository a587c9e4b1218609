package reactor

import (
	"sync/atomic"

	"github.com/corefx/reactor/internal"
)

// EffectRunner re-runs a side-effecting function whenever a reactive
// value it read during its last run changes (spec section 4.8). Unlike
// DerivedCell, it has no cached value and no subscribers of its own — it
// is the terminal node of a dependency chain, run for its side effects.
type EffectRunner struct {
	rt       *Runtime
	fn       func()
	disposed atomic.Bool
	identity any
	weakSelf internal.WeakDependent
}

func newEffect(rt *Runtime, fn func()) *EffectRunner {
	e := &EffectRunner{rt: rt, fn: fn}
	e.identity, e.weakSelf = internal.WeakRef(e)
	e.run()
	return e
}

// NewEffect registers fn as a reactive effect bound to the active
// Runtime: it runs immediately, tracking whatever it reads, and re-runs
// whenever one of those dependencies changes.
func NewEffect(fn func()) (*EffectRunner, error) {
	if fn == nil {
		return nil, ErrNilArgument
	}
	rt, err := currentRuntime()
	if err != nil {
		return nil, err
	}
	return newEffect(rt, fn), nil
}

// NewEffectIn registers fn as a reactive effect bound to an explicit
// Runtime. Panics if fn is nil.
func NewEffectIn(rt *Runtime, fn func()) *EffectRunner {
	if fn == nil {
		panic(ErrNilArgument)
	}
	return newEffect(rt, fn)
}

// OnDependencyChanged implements internal.Dependent.
func (e *EffectRunner) OnDependencyChanged() {
	if e.disposed.Load() {
		return
	}
	e.run()
}

func (e *EffectRunner) run() {
	e.rt.tracker.StartTracking(e.identity, e.weakSelf)
	defer func() {
		e.rt.tracker.StopTracking()
		if r := recover(); r != nil {
			e.rt.onPanic(r)
		}
	}()
	e.fn()
}

// Dispose detaches the effect from the dependency graph. After Dispose
// returns, the effect body will never run again. A run already in
// progress on another goroutine is not interrupted.
func (e *EffectRunner) Dispose() {
	if !e.disposed.CompareAndSwap(false, true) {
		return
	}
	e.rt.tracker.StartTracking(e.identity, e.weakSelf)
	e.rt.tracker.StopTracking()
}
