package internal

import (
	"sync"

	"github.com/petermattis/goid"
)

// ctxFrame is one entry in a goroutine's tracking stack: the computation
// currently being (re)computed on that goroutine, and the set of
// dependency identities it has read so far.
type ctxFrame struct {
	identity  any
	weakSelf  WeakDependent
	accessed  map[any]struct{}
	untracked bool
}

// contextStack is the per-goroutine LIFO stack of in-flight computations,
// mirroring the teacher's single currentComputation field but generalized
// to a real stack so nested DerivedCell/EffectRunner recomputations on the
// same goroutine (A reads B reads C) track correctly.
type contextStack struct {
	mu     sync.Mutex
	frames []*ctxFrame
}

func (s *contextStack) push(f *ctxFrame) {
	s.mu.Lock()
	s.frames = append(s.frames, f)
	s.mu.Unlock()
}

func (s *contextStack) pop() *ctxFrame {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := len(s.frames)
	if n == 0 {
		return nil
	}
	f := s.frames[n-1]
	s.frames = s.frames[:n-1]
	return f
}

func (s *contextStack) topFrame() *ctxFrame {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := len(s.frames)
	if n == 0 {
		return nil
	}
	return s.frames[n-1]
}

func (s *contextStack) contains(identity any) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, f := range s.frames {
		if f.identity == identity {
			return true
		}
	}
	return false
}

// DependencyTracker is the ambient dependency-tracking mechanism shared by
// every Cell/DerivedCell/Trigger/ResourceCell/EffectRunner created under one
// Runtime. It keeps two maps: depsOf (a node's own strong set of the
// dependencies it last read — replaced wholesale on every
// StartTracking/StopTracking pair) and dependents (the weak reverse index
// used to walk "who do I need to notify" without keeping those dependents
// alive). Tracking state itself is kept per-goroutine, keyed by goid.Get(),
// the same trick the teacher's internal/runtime_default.go uses to find
// "the current runtime" without threading it through every call — except
// here it locates "the current tracking frame" rather than a global
// runtime singleton.
type DependencyTracker struct {
	mu         sync.Mutex
	dependents map[any][]WeakDependent
	depsOf     map[any]map[any]struct{}

	stacks sync.Map // goid (int64) -> *contextStack
}

func NewDependencyTracker() *DependencyTracker {
	return &DependencyTracker{
		dependents: make(map[any][]WeakDependent),
		depsOf:     make(map[any]map[any]struct{}),
	}
}

func (t *DependencyTracker) stackForCurrentGoroutine() *contextStack {
	gid := goid.Get()
	if s, ok := t.stacks.Load(gid); ok {
		return s.(*contextStack)
	}
	s := &contextStack{}
	actual, _ := t.stacks.LoadOrStore(gid, s)
	return actual.(*contextStack)
}

// StartTracking clears identity's previously recorded dependency set and
// pushes a fresh tracking frame for it onto the calling goroutine's stack.
// Every StartTracking must be paired with exactly one StopTracking on the
// same goroutine.
func (t *DependencyTracker) StartTracking(identity any, self WeakDependent) {
	t.mu.Lock()
	t.clearDepsOfLocked(identity)
	t.mu.Unlock()

	t.stackForCurrentGoroutine().push(&ctxFrame{
		identity: identity,
		weakSelf: self,
		accessed: make(map[any]struct{}),
	})
}

// TrackAccess records depIdentity as read by whatever computation is on
// top of the calling goroutine's stack, if any, and registers a weak
// back-edge from depIdentity to that computation. A no-op outside any
// tracked computation, and a no-op inside a RunUntracked scope.
func (t *DependencyTracker) TrackAccess(depIdentity any) {
	frame := t.stackForCurrentGoroutine().topFrame()
	if frame == nil || frame.untracked {
		return
	}
	if _, already := frame.accessed[depIdentity]; already {
		return
	}
	frame.accessed[depIdentity] = struct{}{}

	t.mu.Lock()
	defer t.mu.Unlock()
	for _, e := range t.dependents[depIdentity] {
		if e.Identity == frame.identity {
			return
		}
	}
	t.dependents[depIdentity] = append(t.dependents[depIdentity], frame.weakSelf)
}

// StopTracking pops the calling goroutine's top frame, installs its
// accumulated set as the dependent's new strong dependency set, and
// returns that set.
func (t *DependencyTracker) StopTracking() map[any]struct{} {
	frame := t.stackForCurrentGoroutine().pop()
	if frame == nil {
		return nil
	}

	t.mu.Lock()
	t.depsOf[frame.identity] = frame.accessed
	t.mu.Unlock()

	return frame.accessed
}

// IsActive reports whether identity is already present somewhere on the
// calling goroutine's tracking stack — i.e. whether a computation is
// re-entering itself, directly or transitively, on this same logical call
// chain. Callers use this to raise a CycleError instead of deadlocking on
// a per-node lock.
func (t *DependencyTracker) IsActive(identity any) bool {
	return t.stackForCurrentGoroutine().contains(identity)
}

// RunUntracked suppresses TrackAccess for the duration of fn, for the
// computation currently on top of the calling goroutine's stack (if any),
// matching the teacher's Tracker.RunUntracked / spec's untrack().
func (t *DependencyTracker) RunUntracked(fn func()) {
	frame := t.stackForCurrentGoroutine().topFrame()
	if frame == nil {
		fn()
		return
	}
	prev := frame.untracked
	frame.untracked = true
	defer func() { frame.untracked = prev }()
	fn()
}

func (t *DependencyTracker) clearDepsOfLocked(identity any) {
	prev := t.depsOf[identity]
	delete(t.depsOf, identity)
	for depIdentity := range prev {
		edges := t.dependents[depIdentity]
		filtered := edges[:0]
		for _, e := range edges {
			if e.Identity != identity {
				filtered = append(filtered, e)
			}
		}
		if len(filtered) == 0 {
			delete(t.dependents, depIdentity)
		} else {
			t.dependents[depIdentity] = filtered
		}
	}
}

// NotifyDependents invokes OnDependencyChanged on every live dependent
// weakly linked to depIdentity. References that resolve to nil (the
// dependent has been collected) are pruned from the index. A panicking
// dependent is recovered and reported via onPanic; the walk continues.
func (t *DependencyTracker) NotifyDependents(depIdentity any, onPanic func(any)) {
	t.mu.Lock()
	edges := append([]WeakDependent(nil), t.dependents[depIdentity]...)
	t.mu.Unlock()

	if len(edges) == 0 {
		return
	}

	live := make([]WeakDependent, 0, len(edges))
	for _, e := range edges {
		d := e.Resolve()
		if d == nil {
			continue
		}
		live = append(live, e)
		invokeSafely(d.OnDependencyChanged, onPanic)
	}

	if len(live) != len(edges) {
		t.mu.Lock()
		t.dependents[depIdentity] = live
		t.mu.Unlock()
	}
}

func invokeSafely(fn func(), onPanic func(any)) {
	defer func() {
		if r := recover(); r != nil && onPanic != nil {
			onPanic(r)
		}
	}()
	fn()
}
