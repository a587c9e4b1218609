package reactor

import (
	"context"
	"reflect"
	"sync"
	"time"

	"github.com/corefx/reactor/internal"
)

// ResourceStatus is a ResourceCell's current phase, per spec section 3's
// ResourceCell[T] state machine.
type ResourceStatus int

const (
	StatusIdle ResourceStatus = iota
	StatusLoading
	StatusSuccess
	StatusError
	StatusCancelled
)

func (s ResourceStatus) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusLoading:
		return "loading"
	case StatusSuccess:
		return "success"
	case StatusError:
		return "error"
	case StatusCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// ResourceState is a snapshot of a ResourceCell: its phase, its
// last-known-good value (retained across Loading/Error/Cancelled so a UI
// never has to blank out while refetching), and, for Error/Cancelled, the
// error that caused the transition.
type ResourceState[T any] struct {
	Status  ResourceStatus
	Data    T
	HasData bool
	Err     error
}

// ResourceOption configures a ResourceCell.
type ResourceOption[T any] func(*resourceConfig[T])

type resourceConfig[T any] struct {
	autoFetch bool
	executor  *internal.Executor
	debounce  time.Duration
	equal     EqualFunc[T]
}

// WithAutoFetch starts an initial fetch as soon as the ResourceCell is
// constructed, instead of waiting for the first explicit Fetch call.
func WithAutoFetch[T any](auto bool) ResourceOption[T] {
	return func(c *resourceConfig[T]) { c.autoFetch = auto }
}

// WithDebounce collapses fetch() calls made within d of one another into
// a single run, per spec section 4.7's debounce behavior.
func WithDebounce[T any](d time.Duration) ResourceOption[T] {
	return func(c *resourceConfig[T]) { c.debounce = d }
}

// WithResourceEqual installs a custom equality function used only to
// decide whether two consecutive successful fetches are worth re-reporting
// (ResourceCell notifications are not otherwise gated by equality, since a
// fresh Loading/Error/Cancelled transition is always observable).
func WithResourceEqual[T any](eq EqualFunc[T]) ResourceOption[T] {
	return func(c *resourceConfig[T]) { c.equal = eq }
}

// WithExecutorFrom runs this ResourceCell's fetch continuations on
// another Runtime's executor instead of its own, per spec section 4.7's
// "executor: where async continuations run" option.
func WithExecutorFrom[T any](rt *Runtime) ResourceOption[T] {
	return func(c *resourceConfig[T]) { c.executor = rt.executor }
}

// Completion is a future resolving with the outcome of a single Fetch
// call — either its own result or the fact that it was superseded before
// completing.
type Completion[T any] struct {
	done  chan struct{}
	state ResourceState[T]
}

func newCompletion[T any]() *Completion[T] {
	return &Completion[T]{done: make(chan struct{})}
}

func (c *Completion[T]) resolve(s ResourceState[T]) {
	c.state = s
	close(c.done)
}

// Wait blocks until the request completes (including by cancellation or
// supersession) or ctx is done, whichever comes first.
func (c *Completion[T]) Wait(ctx context.Context) (ResourceState[T], error) {
	select {
	case <-c.done:
		return c.state, nil
	case <-ctx.Done():
		var zero ResourceState[T]
		return zero, ctx.Err()
	}
}

// ResourceCell is the asynchronous counterpart to DerivedCell: its value
// comes from an explicit fetch function run on the Runtime's executor,
// and a new Fetch call always supersedes whatever request is already in
// flight (spec section 4.7).
type ResourceCell[T any] struct {
	rt       *Runtime
	fetch    func(context.Context) (T, error)
	executor *internal.Executor
	debounce time.Duration
	equal    EqualFunc[T]

	mu     sync.Mutex
	state  ResourceState[T]
	gen    uint64
	cancel context.CancelFunc

	debounceMu     sync.Mutex
	debounceCancel func()
	pending        *Completion[T]

	subs     *internal.SubscriptionList[ResourceState[T]]
	notifier internal.Notifier
	identity any
	weakSelf internal.WeakDependent
}

func newResourceCell[T any](rt *Runtime, fetch func(context.Context) (T, error), opts ...ResourceOption[T]) *ResourceCell[T] {
	cfg := resourceConfig[T]{executor: rt.executor}
	for _, opt := range opts {
		opt(&cfg)
	}

	r := &ResourceCell[T]{
		rt:       rt,
		fetch:    fetch,
		executor: cfg.executor,
		debounce: cfg.debounce,
		equal:    cfg.equal,
		state:    ResourceState[T]{Status: StatusIdle},
		subs:     internal.NewSubscriptionList[ResourceState[T]](),
	}
	r.identity, r.weakSelf = internal.WeakRef(r)

	if cfg.autoFetch {
		r.Fetch()
	}
	return r
}

// NewResourceCell creates an asynchronous resource cell bound to the
// active Runtime.
func NewResourceCell[T any](fetch func(context.Context) (T, error), opts ...ResourceOption[T]) (*ResourceCell[T], error) {
	if fetch == nil {
		return nil, ErrNilArgument
	}
	rt, err := currentRuntime()
	if err != nil {
		return nil, err
	}
	return newResourceCell(rt, fetch, opts...), nil
}

// NewResourceCellIn creates an asynchronous resource cell bound to an
// explicit Runtime. Panics if fetch is nil.
func NewResourceCellIn[T any](rt *Runtime, fetch func(context.Context) (T, error), opts ...ResourceOption[T]) *ResourceCell[T] {
	if fetch == nil {
		panic(ErrNilArgument)
	}
	return newResourceCell(rt, fetch, opts...)
}

// State returns the current snapshot, tracking a dependency edge if
// called from within a tracked computation.
func (r *ResourceCell[T]) State() ResourceState[T] {
	r.rt.tracker.TrackAccess(r.identity)
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Peek returns the current snapshot without tracking a dependency.
func (r *ResourceCell[T]) Peek() ResourceState[T] {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Fetch starts (or, under debounce, schedules) a new fetch, superseding
// any in-flight or pending request on this cell. Without debounce, the
// returned Completion resolves with this request's own outcome, or
// Cancelled if it is superseded. Under debounce, every Fetch call made
// while a run is pending returns the same Completion, which resolves with
// the outcome of that single run.
func (r *ResourceCell[T]) Fetch() *Completion[T] {
	if r.debounce > 0 {
		return r.scheduleDebounced()
	}
	return r.startRequest()
}

// Refetch is an alias for Fetch, read more naturally at call sites that
// are re-running a request rather than starting the first one.
func (r *ResourceCell[T]) Refetch() *Completion[T] {
	return r.Fetch()
}

// Cancel cancels the current in-flight (or pending debounced) request and
// moves the cell to Idle, retaining its last-known-good data.
func (r *ResourceCell[T]) Cancel() {
	r.debounceMu.Lock()
	if r.debounceCancel != nil {
		r.debounceCancel()
		r.debounceCancel = nil
	}
	pending := r.pending
	r.pending = nil
	r.debounceMu.Unlock()

	if pending != nil {
		pending.resolve(ResourceState[T]{Status: StatusCancelled, Err: &CancelledError{}})
	}

	r.mu.Lock()
	if r.cancel != nil {
		r.cancel()
		r.cancel = nil
	}
	r.gen++
	r.state = ResourceState[T]{Status: StatusIdle, Data: r.state.Data, HasData: r.state.HasData}
	r.mu.Unlock()

	r.publish()
}

func (r *ResourceCell[T]) startRequest() *Completion[T] {
	r.mu.Lock()
	if r.cancel != nil {
		r.cancel()
	}
	r.gen++
	myGen := r.gen
	ctx, cancel := context.WithCancel(context.Background())
	r.cancel = cancel
	prevStatus, prevData, hadData := r.state.Status, r.state.Data, r.state.HasData
	r.state = ResourceState[T]{Status: StatusLoading, Data: prevData, HasData: hadData}
	r.mu.Unlock()

	r.publish()

	completion := newCompletion[T]()

	r.executor.Submit(func() {
		// The synchronous call to fetch is tracked: a fetcher that reads
		// other Cells/DerivedCells during this call creates back-edges to
		// this ResourceCell, so it refetches when those change (spec
		// section 4.7). Everything after this call — the state
		// transition and notification — is the untracked continuation.
		// A panicking fetcher is reported to the Runtime's panic handler
		// and the request ends in the Error state.
		r.rt.tracker.StartTracking(r.identity, r.weakSelf)
		value, err := func() (v T, err error) {
			defer func() {
				if p := recover(); p != nil {
					r.rt.onPanic(p)
					err = &ListenerError{Recovered: p}
				}
			}()
			return r.fetch(ctx)
		}()
		r.rt.tracker.StopTracking()

		r.completeRequest(myGen, prevStatus, ctx, value, err, completion)
	})

	return completion
}

// completeRequest applies the outcome of request myGen. prevStatus is the
// status the cell had before that request moved it to Loading.
func (r *ResourceCell[T]) completeRequest(myGen uint64, prevStatus ResourceStatus, ctx context.Context, value T, err error, completion *Completion[T]) {
	r.mu.Lock()
	if myGen != r.gen {
		r.mu.Unlock()
		completion.resolve(ResourceState[T]{Status: StatusCancelled, Err: &CancelledError{}})
		return
	}

	prev := r.state
	var next ResourceState[T]
	switch {
	case ctx.Err() != nil:
		next = ResourceState[T]{Status: StatusCancelled, Data: prev.Data, HasData: prev.HasData, Err: &CancelledError{Cause: ctx.Err()}}
	case err != nil:
		next = ResourceState[T]{Status: StatusError, Data: prev.Data, HasData: prev.HasData, Err: &FetchError{Cause: err}}
	default:
		next = ResourceState[T]{Status: StatusSuccess, Data: value, HasData: true}
	}
	r.state = next
	r.cancel = nil

	// A Loading/Error/Cancelled transition is always observable, but two
	// consecutive successful fetches producing an equal value (per a
	// custom WithResourceEqual, or reflect.DeepEqual by default) are
	// collapsed into one notification, mirroring Cell's equality gate.
	// Subscribers are notified before the Completion resolves, so a caller
	// returning from Wait has already seen this transition delivered.
	skipNotify := prevStatus == StatusSuccess && next.Status == StatusSuccess && r.isEqual(prev.Data, next.Data)
	r.mu.Unlock()

	if !skipNotify {
		r.publish()
	}
	completion.resolve(next)
}

func (r *ResourceCell[T]) isEqual(a, b T) bool {
	if r.equal != nil {
		return r.equal(a, b)
	}
	return reflect.DeepEqual(a, b)
}

// scheduleDebounced collapses repeated Fetch calls made within the
// debounce window into a single run sharing one completion future,
// grounded on the NVIDIA OSMO resource listener's debounced flush loop
// (adapted here from a periodic ticker to a resettable one-shot timer,
// since reactor needs collapse-to-one rather than periodic-flush).
func (r *ResourceCell[T]) scheduleDebounced() *Completion[T] {
	r.debounceMu.Lock()
	defer r.debounceMu.Unlock()

	if r.pending != nil {
		if r.debounceCancel != nil {
			r.debounceCancel()
		}
		r.debounceCancel = r.executor.After(r.debounce, r.runDebounced)
		return r.pending
	}

	completion := newCompletion[T]()
	r.pending = completion
	r.debounceCancel = r.executor.After(r.debounce, r.runDebounced)
	return completion
}

func (r *ResourceCell[T]) runDebounced() {
	r.debounceMu.Lock()
	completion := r.pending
	r.pending = nil
	r.debounceCancel = nil
	r.debounceMu.Unlock()

	if completion == nil {
		return
	}

	real := r.startRequest()
	go func() {
		state, _ := real.Wait(context.Background())
		completion.resolve(state)
	}()
}

func (r *ResourceCell[T]) publish() {
	r.mu.Lock()
	snapshot := r.state
	r.mu.Unlock()

	r.notifier.Notify(func() {
		r.subs.Notify(snapshot, r.rt.onPanic)
	}, r.rt.tracker, r.identity, r.rt.onPanic)
}

// OnDependencyChanged implements internal.Dependent: a changed dependency
// read during a prior fetch's synchronous portion triggers a refetch.
func (r *ResourceCell[T]) OnDependencyChanged() {
	r.Fetch()
}

// Watch registers listener to run with every new ResourceState snapshot.
func (r *ResourceCell[T]) Watch(listener func(ResourceState[T])) Subscription {
	return Subscription(r.subs.Add(listener))
}
