package reactor

import (
	"log"
	"runtime/debug"
	"sync/atomic"

	"github.com/corefx/reactor/internal"
)

// active holds the single Runtime the package-level constructors (NewCell,
// NewDerivedCell, NewTrigger, NewResourceCell, NewEffect) resolve against.
// Constructors that want an explicit Runtime instead (NewCellIn,
// NewDerivedCellIn, ...) bypass this entirely — it exists purely for the
// no-argument ergonomics the teacher's package-level sig.NewSignal offers,
// not as a substitute for the DependencyTracker's own per-goroutine state.
var active atomic.Pointer[Runtime]

// RuntimeOption configures a Runtime constructed by InitRuntime.
type RuntimeOption func(*runtimeConfig)

type runtimeConfig struct {
	workers int
	onPanic func(any)
}

// WithWorkers sets the Runtime's executor pool size. n <= 0 defaults to
// runtime.NumCPU() workers.
func WithWorkers(n int) RuntimeOption {
	return func(c *runtimeConfig) { c.workers = n }
}

// WithPanicHandler installs the handler invoked whenever a listener, an
// effect body, a dependent's change notification, or a fetcher panics. A
// panic inside a DerivedCell's compute() is not passed to the handler; it
// is returned from DerivedCell.Get. The default logs via the standard log
// package and runtime/debug.Stack(), matching coregx-signals' OnPanic.
func WithPanicHandler(fn func(any)) RuntimeOption {
	return func(c *runtimeConfig) { c.onPanic = fn }
}

func defaultPanicHandler(r any) {
	log.Printf("reactor: recovered panic: %v\n%s", r, debug.Stack())
}

// Runtime owns the executor (worker pool + timer) and dependency tracker
// shared by every reactive node created under it.
type Runtime struct {
	executor *internal.Executor
	tracker  *internal.DependencyTracker
	onPanic  func(any)
}

// InitRuntime creates a Runtime's executor and dependency tracker and
// installs it as the active Runtime used by the package-level
// constructors. Only one Runtime may be active at a time; InitRuntime
// called again before the prior one's Shutdown returns
// ErrRuntimeAlreadyInitialized.
func InitRuntime(opts ...RuntimeOption) (*Runtime, error) {
	cfg := runtimeConfig{onPanic: defaultPanicHandler}
	for _, opt := range opts {
		opt(&cfg)
	}

	r := &Runtime{
		executor: internal.NewExecutor(cfg.workers),
		tracker:  internal.NewDependencyTracker(),
		onPanic:  cfg.onPanic,
	}

	if !active.CompareAndSwap(nil, r) {
		r.executor.Shutdown()
		return nil, ErrRuntimeAlreadyInitialized
	}
	return r, nil
}

// Shutdown releases this Runtime's executor and, if this Runtime is the
// active one, clears it so package-level constructors again fail with
// ErrRuntimeNotInitialized until the next InitRuntime.
func (r *Runtime) Shutdown() {
	active.CompareAndSwap(r, nil)
	r.executor.Shutdown()
}

// WithRuntime acquires a Runtime, runs body with it, and guarantees
// Shutdown on every exit path including a panic from body, per spec
// section 9's scoped-acquisition combinator.
func WithRuntime(body func(*Runtime) error, opts ...RuntimeOption) error {
	if body == nil {
		return ErrNilArgument
	}
	r, err := InitRuntime(opts...)
	if err != nil {
		return err
	}
	defer r.Shutdown()
	return body(r)
}

func currentRuntime() (*Runtime, error) {
	r := active.Load()
	if r == nil {
		return nil, ErrRuntimeNotInitialized
	}
	return r, nil
}
