package taskworker

import (
	"encoding/binary"
	"testing"
)

// sumTask adds the two uint32 operands in ctx and reports the total.
func sumTask(ctx []byte, cb CallbackFunc) {
	a := binary.BigEndian.Uint32(ctx[0:4])
	b := binary.BigEndian.Uint32(ctx[4:8])
	cb(0, a+b)
}

func sumCtx(a, b uint32) []byte {
	ctx := make([]byte, 8)
	binary.BigEndian.PutUint32(ctx[0:4], a)
	binary.BigEndian.PutUint32(ctx[4:8], b)
	return ctx
}

func TestSuperloopOrdering(t *testing.T) {
	var w Worker
	if err := w.Init("sums", make([]byte, 512), 0); err != nil {
		t.Fatal(err)
	}
	defer w.Deinit()

	var results []uint32
	cb := func(event uint8, result any) {
		results = append(results, result.(uint32))
	}

	pairs := [][2]uint32{{10, 12}, {4, 5}, {100, 200}}
	for _, p := range pairs {
		if err := w.Enqueue(sumTask, cb, sumCtx(p[0], p[1]), 0); err != nil {
			t.Fatalf("enqueue %v: %v", p, err)
		}
	}
	if w.Len() != 3 {
		t.Fatalf("len = %d", w.Len())
	}

	want := []uint32{22, 9, 300}
	for i := 0; i < 3; i++ {
		RunSuperloop()
		if got := w.Len(); got != 2-i {
			t.Fatalf("after turn %d len = %d", i+1, got)
		}
	}
	if len(results) != 3 {
		t.Fatalf("results = %v", results)
	}
	for i := range want {
		if results[i] != want[i] {
			t.Fatalf("results = %v, want %v", results, want)
		}
	}
}

func TestContextSnapshotIsCopied(t *testing.T) {
	var w Worker
	if err := w.Init("snap", make([]byte, 256), 0); err != nil {
		t.Fatal(err)
	}
	defer w.Deinit()

	ctx := sumCtx(1, 2)
	var got uint32
	if err := w.Enqueue(sumTask, func(_ uint8, r any) { got = r.(uint32) }, ctx, 0); err != nil {
		t.Fatal(err)
	}
	// Clobber the caller's buffer; the queued snapshot must be unaffected.
	for i := range ctx {
		ctx[i] = 0xFF
	}
	RunSuperloop()
	if got != 3 {
		t.Fatalf("sum = %d", got)
	}
}

func TestEnqueueFailsWhenQueueFull(t *testing.T) {
	var w Worker
	if err := w.Init("tiny", make([]byte, 64), 0); err != nil {
		t.Fatal(err)
	}
	defer w.Deinit()

	nop := func(ctx []byte, cb CallbackFunc) { cb(0, nil) }
	cb := func(uint8, any) {}
	if err := w.Enqueue(nop, cb, make([]byte, 16), 0); err != nil {
		t.Fatal(err)
	}
	if err := w.Enqueue(nop, cb, make([]byte, 64), 0); err == nil {
		t.Fatal("enqueue into full queue must fail")
	}
	// The failed enqueue must not desync blocks from the queue.
	RunSuperloop()
	if w.Len() != 0 {
		t.Fatalf("len = %d", w.Len())
	}
}
