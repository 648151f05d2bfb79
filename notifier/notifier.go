// Package notifier is a minimal synchronous subject/observer pair, used
// where a component fans an event out to interested parties on the caller's
// stack. For deferred delivery use eventbus instead, as the I²C and SPI
// driver descriptors do for their peripheral events.
package notifier

import (
	"embedcore-go/status"
	"embedcore-go/x/ilist"
)

// Callback receives a notification: an event code plus two event-specific
// parameters.
type Callback func(event uint32, p1, p2 any)

// Observer is one subscriber. Initialise with Init.
type Observer struct {
	node ilist.Node[Observer]
	fn   Callback
}

// Init binds the observer's callback.
func (o *Observer) Init(fn Callback) error {
	if fn == nil {
		return status.ArgInvalid
	}
	o.node.Init(o)
	o.fn = fn
	return nil
}

// Subject is an observer list. The zero value needs Init before use.
type Subject struct {
	observers ilist.List[Observer]
}

// Init empties the subject.
func (s *Subject) Init() { s.observers.Init() }

// Reset drops all observers.
func (s *Subject) Reset() { s.observers.Init() }

// Subscribe attaches an observer.
func (s *Subject) Subscribe(o *Observer) error {
	if o == nil || o.fn == nil {
		return status.ArgInvalid
	}
	s.observers.PushTail(&o.node)
	return nil
}

// Unsubscribe detaches an observer. Safe on one that is not attached.
func (s *Subject) Unsubscribe(o *Observer) {
	if o != nil {
		o.node.Unlink()
	}
}

// Notify invokes every observer synchronously in subscription order.
func (s *Subject) Notify(event uint32, p1, p2 any) {
	s.observers.Each(func(o *Observer) bool {
		o.fn(event, p1, p2)
		return true
	})
}

// NumObservers returns the number of attached observers.
func (s *Subject) NumObservers() int { return s.observers.Len() }
