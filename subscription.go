package reactor

// Subscription is an opaque disposable returned by Watch. Dispose is
// idempotent; once it returns, the associated listener is never invoked
// again.
type Subscription func()

// Dispose cancels the subscription. Safe to call more than once, and safe
// to call on a nil Subscription.
func (s Subscription) Dispose() {
	if s != nil {
		s()
	}
}
