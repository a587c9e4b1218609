package internal

import "weak"

// Dependent is any reactive node or effect that can be notified when a
// dependency it read during its last recomputation changes.
type Dependent interface {
	OnDependencyChanged()
}

// WeakDependent is a weak back-edge target: it resolves to the live
// Dependent it points to, or nil once that dependent has been collected.
// Identity is the weak.Pointer identifying the dependent, used as the map
// key for deduplication and for clearing edges on re-tracking. It is
// deliberately not the dependent's raw pointer boxed in an any: boxing a
// *T in an any is itself a strong GC reference, which would mean every
// map keyed (or valued) by Identity pins the dependent in memory forever
// — exactly the "tracker never extends lifetime" guarantee spec section 3
// rules out. weak.Pointer[T] is comparable and safe to box without that
// effect: two weak.Pointer[T] obtained from the same *T compare equal, but
// neither holds the referent alive.
type WeakDependent struct {
	Identity any
	Resolve  func() Dependent
}

// Identity returns a comparable, non-retaining handle for ptr, for use as
// a map key by nodes (Cell, Trigger) that are only ever a dependency —
// never a Dependent themselves, so they have no need for WeakRef's
// Resolve callback, but still must not be kept alive merely by having
// once been read inside a tracked computation.
func Identity[T any](ptr *T) any {
	return any(weak.Make(ptr))
}

// WeakRef wraps ptr (a *T implementing Dependent) as a weak back-edge
// target keyed by its own identity. Adapted from the teacher's
// pointer-identity dependency links (internal/node.go's DependencyLink),
// generalized here to hold a weak reference instead of a strong one, per
// spec section 3's "weak reference on the dependency side" requirement.
func WeakRef[T any](ptr *T) (identity any, ref WeakDependent) {
	wp := weak.Make(ptr)
	identity = any(wp)
	ref = WeakDependent{
		Identity: identity,
		Resolve: func() Dependent {
			p := wp.Value()
			if p == nil {
				return nil
			}
			d, _ := any(p).(Dependent)
			return d
		},
	}
	return identity, ref
}
