package staticmem

import "testing"

func TestAllocExactAndExhaustion(t *testing.T) {
	var m MemList
	if err := m.Init(make([]byte, 64)); err != nil {
		t.Fatal(err)
	}

	a := m.Alloc(64)
	if a == nil || len(a) != 64 {
		t.Fatalf("full-buffer alloc failed, len=%d", len(a))
	}
	if m.Alloc(1) != nil {
		t.Fatal("alloc from empty free list should fail")
	}
	if !m.Free(a) {
		t.Fatal("free of valid payload failed")
	}
	if b := m.Alloc(64); b == nil {
		t.Fatal("realloc after free failed")
	}
}

func TestSplitAndCoalesce(t *testing.T) {
	var m MemList
	if err := m.Init(make([]byte, 128)); err != nil {
		t.Fatal(err)
	}

	a := m.Alloc(32)
	b := m.Alloc(32)
	c := m.Alloc(32)
	if a == nil || b == nil || c == nil {
		t.Fatal("alloc failed")
	}
	if m.Allocated() != 96 {
		t.Fatalf("allocated = %d", m.Allocated())
	}

	// Free out of order; the free list must coalesce back to one span.
	if !m.Free(b) || !m.Free(a) || !m.Free(c) {
		t.Fatal("free failed")
	}
	if m.Allocated() != 0 || m.NumAllocs() != 0 {
		t.Fatalf("leak: allocated=%d n=%d", m.Allocated(), m.NumAllocs())
	}
	if d := m.Alloc(128); d == nil {
		t.Fatal("coalescing failed: full-size alloc rejected")
	}
}

func TestDoubleFreeReturnsFalse(t *testing.T) {
	var m MemList
	if err := m.Init(make([]byte, 64)); err != nil {
		t.Fatal(err)
	}
	a := m.Alloc(16)
	if !m.Free(a) {
		t.Fatal("first free failed")
	}
	if m.Free(a) {
		t.Fatal("double free must fail")
	}
	// Lists must still be usable afterwards.
	if b := m.Alloc(64); b == nil {
		t.Fatal("allocator corrupted after double free")
	}
}

func TestFreeZeroesPayload(t *testing.T) {
	var m MemList
	if err := m.Init(make([]byte, 32)); err != nil {
		t.Fatal(err)
	}
	a := m.Alloc(8)
	for i := range a {
		a[i] = 0xAA
	}
	if !m.Free(a) {
		t.Fatal("free failed")
	}
	b := m.Alloc(8)
	for i, v := range b {
		if v != 0 {
			t.Fatalf("byte %d not zeroed: %#x", i, v)
		}
	}
}

func TestExactRemainderDoesNotSplit(t *testing.T) {
	var m MemList
	if err := m.Init(make([]byte, 64)); err != nil {
		t.Fatal(err)
	}
	a := m.Alloc(32)
	b := m.Alloc(32) // exactly the remaining span
	if a == nil || b == nil {
		t.Fatal("alloc failed")
	}
	if m.Allocated() != 64 {
		t.Fatalf("allocated = %d", m.Allocated())
	}
}
