package reactor

import (
	"reflect"
	"sync"
	"sync/atomic"

	"github.com/corefx/reactor/internal"
)

// Mode selects whether a DerivedCell recomputes on the next read (Lazy)
// or proactively in the background as soon as a dependency changes
// (Eager), per spec section 4.3.
type Mode int

const (
	ModeLazy Mode = iota
	ModeEager
)

// DerivedCell is a memoised, pure computation over other reactive nodes.
// Its value is recomputed at most once per dependency change before being
// read again (spec section 3's DerivedCell[T]).
type DerivedCell[T any] struct {
	rt      *Runtime
	compute func() T
	equal   EqualFunc[T]
	mode    Mode

	mu        sync.RWMutex
	cached    T
	hasValue  bool // guarded by mu; set by the first successful compute
	dirty     atomic.Bool
	computing atomic.Bool

	subs     *internal.SubscriptionList[changeEvent[T]]
	notifier internal.Notifier
	identity any
	weakSelf internal.WeakDependent
}

func newDerivedCell[T any](rt *Runtime, compute func() T, mode Mode, opts ...CellOption[T]) *DerivedCell[T] {
	cfg := cellConfig[T]{}
	for _, opt := range opts {
		opt(&cfg)
	}
	d := &DerivedCell[T]{
		rt:      rt,
		compute: compute,
		equal:   cfg.equal,
		mode:    mode,
		subs:    internal.NewSubscriptionList[changeEvent[T]](),
	}
	d.dirty.Store(true)
	d.identity, d.weakSelf = internal.WeakRef(d)
	return d
}

// NewDerivedCell creates a lazily-evaluated derived cell bound to the
// active Runtime: compute runs on the first Get, and again on the first
// Get after any dependency changes.
func NewDerivedCell[T any](compute func() T, opts ...CellOption[T]) (*DerivedCell[T], error) {
	if compute == nil {
		return nil, ErrNilArgument
	}
	rt, err := currentRuntime()
	if err != nil {
		return nil, err
	}
	return newDerivedCell(rt, compute, ModeLazy, opts...), nil
}

// NewEagerDerivedCell creates a derived cell that recomputes in the
// background via the Runtime's executor as soon as a dependency changes,
// rather than waiting for the next Get (spec section 4.3's eager mode).
func NewEagerDerivedCell[T any](compute func() T, opts ...CellOption[T]) (*DerivedCell[T], error) {
	if compute == nil {
		return nil, ErrNilArgument
	}
	rt, err := currentRuntime()
	if err != nil {
		return nil, err
	}
	return newDerivedCell(rt, compute, ModeEager, opts...), nil
}

// NewDerivedCellIn creates a lazily-evaluated derived cell bound to an
// explicit Runtime. Panics if compute is nil.
func NewDerivedCellIn[T any](rt *Runtime, compute func() T, opts ...CellOption[T]) *DerivedCell[T] {
	if compute == nil {
		panic(ErrNilArgument)
	}
	return newDerivedCell(rt, compute, ModeLazy, opts...)
}

// NewEagerDerivedCellIn creates an eagerly-recomputing derived cell bound
// to an explicit Runtime. Panics if compute is nil.
func NewEagerDerivedCellIn[T any](rt *Runtime, compute func() T, opts ...CellOption[T]) *DerivedCell[T] {
	if compute == nil {
		panic(ErrNilArgument)
	}
	return newDerivedCell(rt, compute, ModeEager, opts...)
}

func (d *DerivedCell[T]) isEqual(a, b T) bool {
	if d.equal != nil {
		return d.equal(a, b)
	}
	return reflect.DeepEqual(a, b)
}

// Get returns the cell's current value, recomputing it first if dirty.
// Recomputation of a given cell is serialized across goroutines by the
// cell's own lock; a compute() that reads the cell itself (directly or
// transitively, on the same goroutine) returns a *CycleError instead of
// deadlocking. A panic inside compute() is recovered and returned, leaving
// the cell dirty so the next Get retries: a panic value that is an error is
// returned as is, any other value wrapped in a *ListenerError. The first
// successful computation does not notify watchers; later ones do when the
// value changed.
func (d *DerivedCell[T]) Get() (T, error) {
	d.rt.tracker.TrackAccess(d.identity)

	if !d.dirty.Load() {
		d.mu.RLock()
		v := d.cached
		d.mu.RUnlock()
		return v, nil
	}

	if d.rt.tracker.IsActive(d.identity) {
		var zero T
		return zero, &CycleError{}
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.dirty.Load() {
		return d.cached, nil
	}

	d.computing.Store(true)
	d.rt.tracker.StartTracking(d.identity, d.weakSelf)

	var (
		result T
		err    error
	)
	func() {
		defer func() {
			if r := recover(); r != nil {
				// A panic that is already an error (for instance a
				// *CycleError surfacing through a nested Read() call on
				// this same cell) keeps its concrete type instead of
				// being wrapped, so callers can errors.As for it.
				if e, ok := r.(error); ok {
					err = e
				} else {
					err = &ListenerError{Recovered: r}
				}
			}
		}()
		result = d.compute()
	}()

	d.rt.tracker.StopTracking()
	d.computing.Store(false)

	if err != nil {
		return d.cached, err
	}

	old := d.cached
	hadValue := d.hasValue
	d.cached = result
	d.hasValue = true
	d.dirty.Store(false)

	if hadValue && !d.isEqual(old, result) {
		d.publishLocked(old, result)
	}

	return d.cached, nil
}

// Read is a convenience wrapper around Get that panics if Get returns an
// error. It exists so DerivedCell satisfies Readable[T] alongside Cell,
// letting Map/FlatMap/With compose over either — appropriate here since a
// CycleError or a compute() panic both represent a programmer error in
// the dependency graph, not a recoverable runtime condition.
func (d *DerivedCell[T]) Read() T {
	v, err := d.Get()
	if err != nil {
		panic(err)
	}
	return v
}

// Computing reports whether a goroutine is currently inside this cell's
// compute() function, realizing spec section 3's explicit "computing"
// state. Cycle detection itself is done by the dependency tracker's
// per-goroutine stack (see DependencyTracker.IsActive), which catches a
// same-call-chain re-entrance before it would ever contend on the lock
// this flag is set under; Computing is exposed for callers that want to
// observe in-flight recomputation from the outside (metrics, diagnostics)
// without racing on the cell's own lock.
func (d *DerivedCell[T]) Computing() bool {
	return d.computing.Load()
}

// Invalidate marks the cell dirty without recomputing it immediately and
// propagates that fact to its own dependents, as if a dependency had
// changed. Useful for derived cells whose compute() reads external state
// the tracker cannot see.
func (d *DerivedCell[T]) Invalidate() {
	d.dirty.Store(true)
	d.rt.tracker.NotifyDependents(d.identity, d.rt.onPanic)
}

// OnDependencyChanged implements internal.Dependent: marks the cell dirty
// (first writer wins) and propagates that to its own dependents. If the
// cell is eager, or currently has live subscribers, a background
// recomputation is submitted to the Runtime's executor so that watchers
// observe the new value without needing to poll Get.
func (d *DerivedCell[T]) OnDependencyChanged() {
	if !d.dirty.CompareAndSwap(false, true) {
		return
	}

	d.rt.tracker.NotifyDependents(d.identity, d.rt.onPanic)

	if d.mode == ModeEager || d.subs.Len() > 0 {
		d.rt.executor.Submit(func() {
			_, _ = d.Get()
		})
	}
}

func (d *DerivedCell[T]) publishLocked(old, new T) {
	d.notifier.Notify(func() {
		d.subs.Notify(changeEvent[T]{old, new}, d.rt.onPanic)
	}, d.rt.tracker, d.identity, d.rt.onPanic)
}

// Watch registers listener to run with the cell's new value whenever a
// recomputation produces a structurally different value.
func (d *DerivedCell[T]) Watch(listener func(T)) Subscription {
	return Subscription(d.subs.Add(func(e changeEvent[T]) { listener(e.new) }))
}

// WatchChange registers listener to run with (old, new) on every such
// recomputation.
func (d *DerivedCell[T]) WatchChange(listener func(old, new T)) Subscription {
	return Subscription(d.subs.Add(func(e changeEvent[T]) { listener(e.old, e.new) }))
}
