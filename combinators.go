package reactor

import "github.com/corefx/reactor/internal"

// Map returns a lazily-evaluated DerivedCell bound to the active Runtime
// whose value is f applied to src's tracked value, recomputing whenever
// src changes (spec section 6's combinator surface).
func Map[T, U any](src Readable[T], f func(T) U) (*DerivedCell[U], error) {
	if src == nil || f == nil {
		return nil, ErrNilArgument
	}
	rt, err := currentRuntime()
	if err != nil {
		return nil, err
	}
	return newDerivedCell(rt, func() U { return f(src.Read()) }, ModeLazy), nil
}

// MapIn is Map bound to an explicit Runtime. Panics if src or f is nil.
func MapIn[T, U any](rt *Runtime, src Readable[T], f func(T) U) *DerivedCell[U] {
	if src == nil || f == nil {
		panic(ErrNilArgument)
	}
	return newDerivedCell(rt, func() U { return f(src.Read()) }, ModeLazy)
}

// FlatMap returns a DerivedCell that reads outer for a pointer-identified
// switch key, selects an inner Readable[U] via selector, and reads
// through to that inner value. selector is invoked at most once per
// distinct, currently-reachable key pointer: results are memoised in a
// bounded, weak-keyed cache (spec section 4.9's WeakKeyedLRU) so that
// switching back to a previously-seen key reuses the inner node instead of
// re-running selector, while the cache itself never keeps a key alive. An
// entry whose key has been collected, and the inner node it holds, stay in
// the cache until the cacheSize bound evicts them.
func FlatMap[K, U any](rt *Runtime, outer Readable[*K], selector func(*K) Readable[U], cacheSize int) *DerivedCell[U] {
	if outer == nil || selector == nil {
		panic(ErrNilArgument)
	}
	cache := internal.NewWeakKeyedLRU[K, Readable[U]](cacheSize)
	return newDerivedCell(rt, func() U {
		key := outer.Read()
		inner := cache.GetOrCompute(key, func() Readable[U] { return selector(key) })
		return inner.Read()
	}, ModeLazy)
}

// With reads src's tracked value and applies f to it, without
// constructing a new reactive node. Useful inside an existing tracked
// computation (a DerivedCell's compute or an EffectRunner's body) where a
// one-off transformation doesn't warrant its own memoised cell.
func With[T, U any](src Readable[T], f func(T) U) U {
	if src == nil || f == nil {
		panic(ErrNilArgument)
	}
	return f(src.Read())
}

// WithValue is an alias for With, for call sites that read more naturally
// as "with the current value, do f".
func WithValue[T, U any](src Readable[T], f func(T) U) U {
	return With(src, f)
}
