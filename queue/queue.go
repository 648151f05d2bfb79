// Package queue implements a bounded FIFO of variable-size elements backed by
// a staticmem allocator, so a queue's total footprint is its buffer.
//
// Each element costs two allocations: a fixed overhead span standing in for
// the item header and the payload itself. Popping an element frees both.
//
// The two-phase push (Reserve -> fill -> Commit/Release) lets producers write
// data in place, e.g. a deserialising byte pump, without an intermediate
// copy. Every Reserve must be matched by exactly one Commit or Release.
//
// Not safe for concurrent use; callers serialise access (the task worker
// holds its semaphore around queue operations).
package queue

import (
	"embedcore-go/status"
	"embedcore-go/x/ilist"
	"embedcore-go/x/staticmem"
)

// itemOverhead is the per-element header charge taken from the buffer,
// mirroring the storage an in-buffer item header would occupy.
const itemOverhead = 16

// maxItems bounds live elements (queued plus reserved) per queue.
const maxItems = 64

type item struct {
	node    ilist.Node[item]
	hdr     []byte // overhead span, freed with the payload
	payload []byte // full reserved span
	size    int    // requested element size (<= len(payload))
	used    bool
}

// Queue is a FIFO over a caller-supplied buffer. Call Init before use.
type Queue struct {
	items ilist.List[item]
	mem   staticmem.MemList
	pool  [maxItems]item
}

// Reserved is the opaque handle between Reserve and its matching
// Commit/Release.
type Reserved struct {
	q    *Queue
	it   *item
	done bool
}

// Init wraps buf in an allocator and empties the item list.
func (q *Queue) Init(buf []byte) error {
	if err := q.mem.Init(buf); err != nil {
		return err
	}
	q.items.Init()
	for i := range q.pool {
		q.pool[i].used = false
	}
	return nil
}

// Ready reports whether Init has completed.
func (q *Queue) Ready() bool { return q.mem.Ready() }

// Push copies data into the queue as one element.
func (q *Queue) Push(data []byte) error {
	r, err := q.Reserve(len(data))
	if err != nil {
		return err
	}
	copy(r.Bytes(), data)
	return r.Commit()
}

// Reserve allocates an element of the given size without making it visible
// to consumers. size zero is legal and yields an empty element.
func (q *Queue) Reserve(size int) (*Reserved, error) {
	if !q.mem.Ready() || size < 0 {
		return nil, status.ArgInvalid
	}
	it := q.takeItem()
	if it == nil {
		return nil, status.Fail
	}
	it.hdr = q.mem.Alloc(itemOverhead)
	if it.hdr == nil {
		it.used = false
		return nil, status.Fail
	}
	alloc := size
	if alloc == 0 {
		alloc = 1 // keep a zero-size element addressable
	}
	it.payload = q.mem.Alloc(alloc)
	if it.payload == nil {
		q.mem.Free(it.hdr)
		it.used = false
		return nil, status.Fail
	}
	it.size = size
	return &Reserved{q: q, it: it}, nil
}

// Bytes returns the reserved element's mutable payload. The slice is valid
// until the element is popped.
func (r *Reserved) Bytes() []byte {
	if r == nil || r.it == nil {
		return nil
	}
	return r.it.payload[:r.it.size]
}

// Commit links the reserved element at the tail, making it visible. O(1).
func (r *Reserved) Commit() error {
	if r == nil || r.q == nil || r.done {
		return status.ArgInvalid
	}
	r.done = true
	r.q.items.PushTail(&r.it.node)
	return nil
}

// Release frees the reserved element without linking it. Legal only before
// Commit; afterwards it fails and leaves the queue untouched.
func (r *Reserved) Release() error {
	if r == nil || r.q == nil || r.done {
		return status.ArgInvalid
	}
	r.done = true
	r.q.freeItem(r.it)
	return nil
}

// PopFront unlinks the front element and frees its storage.
func (q *Queue) PopFront() error { return q.pop(q.items.FrontNode()) }

// PopBack unlinks the back element and frees its storage.
func (q *Queue) PopBack() error { return q.pop(q.items.BackNode()) }

func (q *Queue) pop(n *ilist.Node[item]) error {
	if n == nil {
		return status.Fail
	}
	it := n.Owner()
	n.Unlink()
	q.freeItem(it)
	return nil
}

// Front borrows the front element's payload. Valid until the next pop.
func (q *Queue) Front() ([]byte, error) {
	it := q.items.Front()
	if it == nil {
		return nil, status.Fail
	}
	return it.payload[:it.size], nil
}

// Back borrows the back element's payload. Valid until the next pop.
func (q *Queue) Back() ([]byte, error) {
	it := q.items.Back()
	if it == nil {
		return nil, status.Fail
	}
	return it.payload[:it.size], nil
}

// Len walks the element list. O(n); the counter-less design is deliberate,
// element counts are tiny at the target.
func (q *Queue) Len() int { return q.items.Len() }

// Allocated returns the byte total currently drawn from the buffer,
// including per-element overhead.
func (q *Queue) Allocated() int { return q.mem.Allocated() }

func (q *Queue) takeItem() *item {
	for i := range q.pool {
		if !q.pool[i].used {
			it := &q.pool[i]
			it.used = true
			it.node.Init(it)
			return it
		}
	}
	return nil
}

func (q *Queue) freeItem(it *item) {
	q.mem.Free(it.payload)
	q.mem.Free(it.hdr)
	it.payload = nil
	it.hdr = nil
	it.size = 0
	it.used = false
}
