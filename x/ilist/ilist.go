// Package ilist provides an intrusive doubly-linked list.
//
// Semantics
//   - A Node is embedded in its owning record; the list never owns storage.
//   - The list head is a sentinel whose prev/next point to itself when empty.
//   - Invariant: for any linked node n, n.prev.next == n and n.next.prev == n.
//   - Owner recovery is an explicit owner pointer set at Init, not offset
//     arithmetic; Owner() is O(1).
//   - Not safe for concurrent use; callers serialise access to the
//     containing entity.
package ilist

// Node is one link in a list. Embed it in the record it belongs to and
// initialise it with Init before first use.
type Node[T any] struct {
	prev, next *Node[T]
	owner      *T
}

// Init resets n to the unlinked state and binds it to its owning record.
func (n *Node[T]) Init(owner *T) {
	n.prev = n
	n.next = n
	n.owner = owner
}

// Owner returns the record this node is embedded in, or nil for sentinels.
func (n *Node[T]) Owner() *T { return n.owner }

// Linked reports whether n is currently part of a list.
func (n *Node[T]) Linked() bool { return n.next != nil && n.next != n }

// Unlink removes n from whatever list it is in. Safe on an unlinked node.
func (n *Node[T]) Unlink() {
	if n.next == nil || n.next == n {
		return
	}
	n.prev.next = n.next
	n.next.prev = n.prev
	n.prev = n
	n.next = n
}

// insertAfter links n directly after pos.
func insertAfter[T any](pos, n *Node[T]) {
	n.prev = pos
	n.next = pos.next
	pos.next.prev = n
	pos.next = n
}

// List is a sentinel-headed intrusive list of records of type T.
// The zero value must be initialised with Init before use.
type List[T any] struct {
	head Node[T]
}

// Init empties the list.
func (l *List[T]) Init() {
	l.head.prev = &l.head
	l.head.next = &l.head
	l.head.owner = nil
}

func (l *List[T]) initialised() bool { return l.head.next != nil }

// Empty reports whether the list holds no nodes.
func (l *List[T]) Empty() bool { return !l.initialised() || l.head.next == &l.head }

// PushHead links n as the first node.
func (l *List[T]) PushHead(n *Node[T]) {
	if !l.initialised() {
		l.Init()
	}
	insertAfter(&l.head, n)
}

// PushTail links n as the last node.
func (l *List[T]) PushTail(n *Node[T]) {
	if !l.initialised() {
		l.Init()
	}
	insertAfter(l.head.prev, n)
}

// InsertBefore links n directly before pos. pos must be in l; passing nil
// appends at the tail.
func (l *List[T]) InsertBefore(n, pos *Node[T]) {
	if pos == nil {
		l.PushTail(n)
		return
	}
	insertAfter(pos.prev, n)
}

// FrontNode returns the first node, or nil when the list is empty.
func (l *List[T]) FrontNode() *Node[T] {
	if l.Empty() {
		return nil
	}
	return l.head.next
}

// BackNode returns the last node, or nil when the list is empty.
func (l *List[T]) BackNode() *Node[T] {
	if l.Empty() {
		return nil
	}
	return l.head.prev
}

// Front returns the first record, or nil when the list is empty.
func (l *List[T]) Front() *T {
	if n := l.FrontNode(); n != nil {
		return n.owner
	}
	return nil
}

// Back returns the last record, or nil when the list is empty.
func (l *List[T]) Back() *T {
	if n := l.BackNode(); n != nil {
		return n.owner
	}
	return nil
}

// NextOf returns the node after n, or nil when n is the last node.
func (l *List[T]) NextOf(n *Node[T]) *Node[T] {
	if n == nil || n.next == &l.head {
		return nil
	}
	return n.next
}

// Len walks the list and counts nodes. O(n).
func (l *List[T]) Len() int {
	cnt := 0
	l.EachNode(func(*Node[T]) bool {
		cnt++
		return true
	})
	return cnt
}

// Each calls fn for every record front to back; returning false stops early.
// fn must not unlink nodes other than the one it was called with.
func (l *List[T]) Each(fn func(*T) bool) {
	l.EachNode(func(n *Node[T]) bool { return fn(n.owner) })
}

// EachNode is Each at node granularity, for callers that need to insert
// relative to a position.
func (l *List[T]) EachNode(fn func(*Node[T]) bool) {
	if !l.initialised() {
		return
	}
	for n := l.head.next; n != &l.head; {
		next := n.next
		if !fn(n) {
			return
		}
		n = next
	}
}
