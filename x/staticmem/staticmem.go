// Package staticmem implements a first-fit allocator over a caller-owned
// byte buffer.
//
// Semantics
//   - Free spans are kept in a list sorted by ascending buffer offset so
//     adjacency is O(1) to check; adjacent free spans are always coalesced.
//   - Allocated spans are kept in allocation order; a payload slice uniquely
//     identifies its span.
//   - Span headers come from a fixed pool sized at build time; allocation
//     fails when the pool is exhausted.
//   - Single-owner: callers serialise access to the containing entity.
package staticmem

import (
	"embedcore-go/status"
	"embedcore-go/x/ilist"
)

// headerPoolSize bounds the number of live spans (free + allocated) per list.
const headerPoolSize = 128

type block struct {
	node ilist.Node[block]
	off  int
	size int
	used bool // header in use (free-list or alloc-list membership)
}

// MemList manages one caller-supplied buffer. The buffer must outlive the
// MemList. The zero value is unusable; call Init first.
type MemList struct {
	buf   []byte
	free  ilist.List[block]
	alloc ilist.List[block]
	pool  [headerPoolSize]block
}

// Init zeroes the buffer and installs a single free span covering all of it.
// Re-initialising drops all previous allocations.
func (m *MemList) Init(buf []byte) error {
	if len(buf) == 0 {
		return status.ArgInvalid
	}
	for i := range buf {
		buf[i] = 0
	}
	m.buf = buf
	m.free.Init()
	m.alloc.Init()
	for i := range m.pool {
		m.pool[i].used = false
	}

	b := m.takeHeader()
	b.off = 0
	b.size = len(buf)
	m.free.PushHead(&b.node)
	return nil
}

// Ready reports whether Init has completed.
func (m *MemList) Ready() bool { return m.buf != nil }

// BufferSize returns the size of the managed buffer.
func (m *MemList) BufferSize() int { return len(m.buf) }

// Alloc returns a zeroed payload of exactly size bytes, or nil when no free
// span is large enough or the header pool is empty.
func (m *MemList) Alloc(size int) []byte {
	if m.buf == nil || size <= 0 {
		return nil
	}

	// First fit over the address-sorted free list.
	var sel *block
	m.free.Each(func(b *block) bool {
		if b.size >= size {
			sel = b
			return false
		}
		return true
	})
	if sel == nil {
		return nil
	}

	if sel.size > size {
		rem := m.takeHeader()
		if rem == nil {
			return nil
		}
		rem.off = sel.off + size
		rem.size = sel.size - size
		// The remainder is adjacent to sel, so sel's old slot is its
		// address-sorted position.
		m.free.InsertBefore(&rem.node, m.free.NextOf(&sel.node))
		sel.size = size
	}

	sel.node.Unlink()
	m.alloc.PushTail(&sel.node)
	return m.buf[sel.off : sel.off+sel.size]
}

// Free releases the span whose payload is p. Returns false when p does not
// identify a live allocation (double free included); the lists are untouched
// in that case.
func (m *MemList) Free(p []byte) bool {
	if m.buf == nil || len(p) == 0 {
		return false
	}
	var sel *block
	m.alloc.Each(func(b *block) bool {
		if &m.buf[b.off] == &p[0] {
			sel = b
			return false
		}
		return true
	})
	if sel == nil {
		return false
	}

	sel.node.Unlink()
	for i := sel.off; i < sel.off+sel.size; i++ {
		m.buf[i] = 0
	}
	m.insertFreeSorted(sel)
	m.coalesce()
	return true
}

// Allocated returns the byte total of live allocations. O(n).
func (m *MemList) Allocated() int {
	total := 0
	m.alloc.Each(func(b *block) bool {
		total += b.size
		return true
	})
	return total
}

// NumAllocs returns the number of live allocations. O(n).
func (m *MemList) NumAllocs() int { return m.alloc.Len() }

func (m *MemList) insertFreeSorted(b *block) {
	var pos *ilist.Node[block]
	m.free.EachNode(func(n *ilist.Node[block]) bool {
		if n.Owner().off > b.off {
			pos = n
			return false
		}
		return true
	})
	m.free.InsertBefore(&b.node, pos)
}

// coalesce merges every pair of adjacent spans in the address-sorted free
// list and returns the absorbed headers to the pool.
func (m *MemList) coalesce() {
	n := m.free.FrontNode()
	for n != nil {
		next := m.free.NextOf(n)
		if next == nil {
			return
		}
		cur, nxt := n.Owner(), next.Owner()
		if cur.off+cur.size == nxt.off {
			cur.size += nxt.size
			next.Unlink()
			nxt.used = false
			continue // re-check cur against the new neighbour
		}
		n = next
	}
}

func (m *MemList) takeHeader() *block {
	for i := range m.pool {
		if !m.pool[i].used {
			b := &m.pool[i]
			b.used = true
			b.node.Init(b)
			return b
		}
	}
	return nil
}
