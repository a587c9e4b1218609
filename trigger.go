package reactor

import "github.com/corefx/reactor/internal"

// Trigger is a stateless, value-less reactive event source (spec section
// 3's Trigger): each Fire is an observable occurrence with no cached
// value and no equality gate — every Fire notifies, unconditionally.
type Trigger struct {
	rt       *Runtime
	notifier internal.Notifier
	subs     *internal.SubscriptionList[struct{}]
	identity any
}

func newTrigger(rt *Runtime) *Trigger {
	t := &Trigger{rt: rt, subs: internal.NewSubscriptionList[struct{}]()}
	t.identity = internal.Identity(t)
	return t
}

// NewTrigger creates a Trigger bound to the active Runtime.
func NewTrigger() (*Trigger, error) {
	rt, err := currentRuntime()
	if err != nil {
		return nil, err
	}
	return newTrigger(rt), nil
}

// NewTriggerIn creates a Trigger bound to an explicit Runtime.
func NewTriggerIn(rt *Runtime) *Trigger {
	return newTrigger(rt)
}

// Track records this trigger as a dependency of the surrounding tracked
// computation, without firing it — for a DerivedCell or EffectRunner that
// wants to re-run whenever the trigger fires but has no value to read.
func (t *Trigger) Track() {
	t.rt.tracker.TrackAccess(t.identity)
}

// Fire notifies direct subscribers and dependents that this event
// occurred.
func (t *Trigger) Fire() {
	t.notifier.Notify(func() {
		t.subs.Notify(struct{}{}, t.rt.onPanic)
	}, t.rt.tracker, t.identity, t.rt.onPanic)
}

// Watch subscribes fn to this trigger's firings.
func (t *Trigger) Watch(fn func()) Subscription {
	return Subscription(t.subs.Add(func(struct{}) { fn() }))
}
