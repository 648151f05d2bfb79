package ilist

import "testing"

type rec struct {
	node Node[rec]
	v    int
}

func newRec(v int) *rec {
	r := &rec{v: v}
	r.node.Init(r)
	return r
}

func collect(l *List[rec]) []int {
	var out []int
	l.Each(func(r *rec) bool {
		out = append(out, r.v)
		return true
	})
	return out
}

func eq(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestPushOrderAndOwnerRecovery(t *testing.T) {
	var l List[rec]
	l.Init()
	if !l.Empty() {
		t.Fatal("fresh list not empty")
	}

	a, b, c := newRec(1), newRec(2), newRec(3)
	l.PushTail(&a.node)
	l.PushTail(&c.node)
	l.PushHead(&b.node)

	if got := collect(&l); !eq(got, []int{2, 1, 3}) {
		t.Fatalf("order = %v", got)
	}
	if l.Front() != b || l.Back() != c {
		t.Fatal("front/back owner recovery failed")
	}
	if l.Len() != 3 {
		t.Fatalf("len = %d", l.Len())
	}
}

func TestUnlinkKeepsNeighboursLinked(t *testing.T) {
	var l List[rec]
	l.Init()
	a, b, c := newRec(1), newRec(2), newRec(3)
	for _, r := range []*rec{a, b, c} {
		l.PushTail(&r.node)
	}

	b.node.Unlink()
	if got := collect(&l); !eq(got, []int{1, 3}) {
		t.Fatalf("after unlink = %v", got)
	}
	if b.node.Linked() {
		t.Fatal("unlinked node still reports linked")
	}
	// Double unlink must be harmless.
	b.node.Unlink()
	if got := collect(&l); !eq(got, []int{1, 3}) {
		t.Fatalf("after double unlink = %v", got)
	}
}

func TestInsertBefore(t *testing.T) {
	var l List[rec]
	l.Init()
	a, c := newRec(1), newRec(3)
	l.PushTail(&a.node)
	l.PushTail(&c.node)

	b := newRec(2)
	l.InsertBefore(&b.node, &c.node)
	if got := collect(&l); !eq(got, []int{1, 2, 3}) {
		t.Fatalf("order = %v", got)
	}

	d := newRec(4)
	l.InsertBefore(&d.node, nil)
	if got := collect(&l); !eq(got, []int{1, 2, 3, 4}) {
		t.Fatalf("nil pos should append, got %v", got)
	}
}

func TestEachNodeSupportsRemovalOfCurrent(t *testing.T) {
	var l List[rec]
	l.Init()
	for i := 1; i <= 4; i++ {
		l.PushTail(&newRec(i).node)
	}
	l.EachNode(func(n *Node[rec]) bool {
		if n.Owner().v%2 == 0 {
			n.Unlink()
		}
		return true
	})
	if got := collect(&l); !eq(got, []int{1, 3}) {
		t.Fatalf("after filtered removal = %v", got)
	}
}
