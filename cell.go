package reactor

import (
	"reflect"
	"sync"

	"github.com/corefx/reactor/internal"
)

// EqualFunc reports whether two values of T should be considered equal
// for the purposes of a Cell's or DerivedCell's change-notification gate.
type EqualFunc[T any] func(a, b T) bool

// CellOption configures a Cell or DerivedCell.
type CellOption[T any] func(*cellConfig[T])

type cellConfig[T any] struct {
	equal EqualFunc[T]
}

// WithEqual installs a custom equality function, overriding the default
// structural (reflect.DeepEqual) comparison. Use this for types where
// structural equality is too strict (or too expensive) to compute on
// every write, such as comparing only an ID field of a larger struct.
func WithEqual[T any](eq EqualFunc[T]) CellOption[T] {
	return func(c *cellConfig[T]) { c.equal = eq }
}

// Readable is any reactive node whose current value can be read, tracking
// a dependency edge if called from within a tracked computation. Cell and
// DerivedCell both satisfy it, which is what lets Map/FlatMap/With compose
// over either.
type Readable[T any] interface {
	Read() T
}

type changeEvent[T any] struct {
	old, new T
}

// Cell is a mutable, thread-safe reactive value holder: the leaf node of
// the dependency graph (spec section 3's Cell[T]).
type Cell[T any] struct {
	rt    *Runtime
	equal EqualFunc[T]

	mu    sync.RWMutex
	value T

	subs     *internal.SubscriptionList[changeEvent[T]]
	notifier internal.Notifier
	identity any
}

func newCell[T any](rt *Runtime, initial T, opts ...CellOption[T]) *Cell[T] {
	cfg := cellConfig[T]{}
	for _, opt := range opts {
		opt(&cfg)
	}
	c := &Cell[T]{
		rt:    rt,
		value: initial,
		equal: cfg.equal,
		subs:  internal.NewSubscriptionList[changeEvent[T]](),
	}
	c.identity = internal.Identity(c)
	return c
}

// NewCell creates a writable reactive cell bound to the active Runtime.
func NewCell[T any](initial T, opts ...CellOption[T]) (*Cell[T], error) {
	rt, err := currentRuntime()
	if err != nil {
		return nil, err
	}
	return newCell(rt, initial, opts...), nil
}

// NewCellIn creates a writable reactive cell bound to an explicit Runtime,
// for programs managing more than one Runtime.
func NewCellIn[T any](rt *Runtime, initial T, opts ...CellOption[T]) *Cell[T] {
	return newCell(rt, initial, opts...)
}

func (c *Cell[T]) isEqual(a, b T) bool {
	if c.equal != nil {
		return c.equal(a, b)
	}
	return reflect.DeepEqual(a, b)
}

// Read returns the current value, recording a dependency edge if called
// from within a tracked computation (a DerivedCell's compute or an
// EffectRunner's body).
func (c *Cell[T]) Read() T {
	c.rt.tracker.TrackAccess(c.identity)
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.value
}

// Peek returns the current value without tracking a dependency — for
// reading a cell's value incidentally, without subscribing the calling
// computation to its future changes.
func (c *Cell[T]) Peek() T {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.value
}

// Set replaces the cell's value. If v is structurally equal to the
// current value (or equal per a custom EqualFunc), no notification fires.
func (c *Cell[T]) Set(v T) {
	c.mu.Lock()
	old := c.value
	if c.isEqual(old, v) {
		c.mu.Unlock()
		return
	}
	c.value = v
	c.mu.Unlock()

	c.publish(old, v)
}

// Update replaces the cell's value with fn applied to the current value,
// under the same lock, then applies the same equality gate as Set.
func (c *Cell[T]) Update(fn func(T) T) {
	c.mu.Lock()
	old := c.value
	v := fn(old)
	if c.isEqual(old, v) {
		c.mu.Unlock()
		return
	}
	c.value = v
	c.mu.Unlock()

	c.publish(old, v)
}

func (c *Cell[T]) publish(old, new T) {
	c.notifier.Notify(func() {
		c.subs.Notify(changeEvent[T]{old, new}, c.rt.onPanic)
	}, c.rt.tracker, c.identity, c.rt.onPanic)
}

// Watch registers listener to run with the cell's new value on every
// notifying write. Returns a disposable Subscription.
func (c *Cell[T]) Watch(listener func(T)) Subscription {
	return Subscription(c.subs.Add(func(e changeEvent[T]) { listener(e.new) }))
}

// WatchChange registers listener to run with (old, new) on every
// notifying write.
func (c *Cell[T]) WatchChange(listener func(old, new T)) Subscription {
	return Subscription(c.subs.Add(func(e changeEvent[T]) { listener(e.old, e.new) }))
}
