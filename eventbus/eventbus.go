// Package eventbus implements asynchronous in-process pub/sub with a
// deferred delivery queue. Publishers enqueue; delivery happens when the
// owner pumps Run, so listeners never run on the publisher's stack.
//
// The bus has no internal lock: Send and Run must be invoked from the same
// task. A listener may Send to the bus it is listening on; such events are
// delivered on a later Run turn. Listeners must not call Run re-entrantly.
package eventbus

import (
	"encoding/binary"

	"embedcore-go/queue"
	"embedcore-go/status"
	"embedcore-go/x/ilist"
)

// codeSize is the wire size of the event code element.
const codeSize = 4

// ListenerFunc receives one delivered event.
type ListenerFunc func(code uint32, data []byte) error

// Listener is one registered callback. Initialise with Init, then attach
// with Bus.Subscribe.
type Listener struct {
	node ilist.Node[Listener]
	fn   ListenerFunc
}

// Init binds the listener's callback.
func (l *Listener) Init(fn ListenerFunc) error {
	if fn == nil {
		return status.ArgInvalid
	}
	l.node.Init(l)
	l.fn = fn
	return nil
}

// Bus is one event channel. Initialise with Init before use.
type Bus struct {
	listeners ilist.List[Listener]
	events    queue.Queue
}

// Init empties the listener list and creates the event queue over buf.
func (b *Bus) Init(buf []byte) error {
	b.listeners.Init()
	return b.events.Init(buf)
}

// Ready reports whether Init has completed.
func (b *Bus) Ready() bool { return b.events.Ready() }

// Reset drops all listeners and pending events.
func (b *Bus) Reset() {
	b.listeners.Init()
	for b.events.Len() > 0 {
		_ = b.events.PopFront()
	}
}

// Subscribe attaches a listener at the head: delivery order is
// most-recently-added first.
func (b *Bus) Subscribe(l *Listener) error {
	if l == nil || l.fn == nil {
		return status.ArgInvalid
	}
	b.listeners.PushHead(&l.node)
	return nil
}

// Unsubscribe detaches a listener. Safe on one that is not attached.
func (b *Bus) Unsubscribe(l *Listener) {
	if l != nil {
		l.node.Unlink()
	}
}

// Send queues one event as two sequential elements: the 4-byte code, then
// the payload. The pair is committed atomically; when either reservation
// fails both are released and the caller is informed, so no partial event
// is ever visible.
func (b *Bus) Send(code uint32, data []byte) error {
	rc, err := b.events.Reserve(codeSize)
	if err != nil {
		return err
	}
	rp, err := b.events.Reserve(len(data))
	if err != nil {
		_ = rc.Release()
		return err
	}
	binary.BigEndian.PutUint32(rc.Bytes(), code)
	copy(rp.Bytes(), data)
	_ = rc.Commit()
	_ = rp.Commit()
	return nil
}

// Run delivers the front event, if any, to every listener synchronously in
// list order. One event per call.
func (b *Bus) Run() {
	if b.events.Len() < 2 {
		return
	}
	front, err := b.events.Front()
	if err != nil || len(front) != codeSize {
		return
	}
	code := binary.BigEndian.Uint32(front)
	_ = b.events.PopFront()

	payload, err := b.events.Front()
	if err != nil {
		return
	}
	b.listeners.Each(func(l *Listener) bool {
		_ = l.fn(code, payload)
		return true
	})
	_ = b.events.PopFront()
}

// Pending returns the number of queued events.
func (b *Bus) Pending() int { return b.events.Len() / 2 }

// NumListeners returns the number of attached listeners.
func (b *Bus) NumListeners() int { return b.listeners.Len() }
