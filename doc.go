// Package reactor is a concurrent, fine-grained reactive runtime.
//
// Reactive values come in four shapes:
//
//   - Cell[T] is a mutable leaf value. Set/Update write it; Read tracks a
//     dependency on it from within any computation currently running.
//   - DerivedCell[T] is a memoised, pure computation over other reactive
//     values, recomputed at most once per dependency change before being
//     read again.
//   - Trigger is a value-less event source for signaling "something
//     happened" without carrying any data.
//   - ResourceCell[T] is the asynchronous counterpart to DerivedCell: its
//     value comes from a fetch function run on a background executor, with
//     automatic cancellation of a superseded request and optional
//     debouncing of rapid Fetch calls.
//
// Dependencies are tracked ambiently: a DerivedCell or EffectRunner does
// not declare what it depends on up front. Instead, every Cell/DerivedCell/
// Trigger/ResourceCell read during a computation's synchronous execution
// registers itself, and the computation is re-run (or, for DerivedCell,
// marked dirty) the next time any of those values change. This tracking is
// scoped per goroutine, so concurrent recomputations never see each
// other's reads.
//
// A Runtime owns the executor pool and dependency tracker shared by every
// node created under it. Call InitRuntime once at startup (or WithRuntime
// for a scoped acquisition), then use the package-level constructors
// (NewCell, NewDerivedCell, NewTrigger, NewResourceCell, NewEffect) freely;
// they resolve against whichever Runtime is currently active.
package reactor
