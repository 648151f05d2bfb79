package hosted_test

import (
	"sync/atomic"
	"testing"
	"time"

	"embedcore-go/osal"
	"embedcore-go/osal/hosted"
	"embedcore-go/status"
)

// install runs once per test binary; the OSAL backend is process-wide.
func install(t *testing.T) {
	t.Helper()
	if !osal.Installed() {
		if err := osal.Use(hosted.New(hosted.Config{})); err != nil {
			t.Fatal(err)
		}
	}
}

func TestSemaphoreTakeGiveAndTimeout(t *testing.T) {
	install(t)

	h := osal.SemaphoreHandle{MaxCount: 1}
	if err := osal.SemaphoreCreate(&h); err != nil {
		t.Fatal(err)
	}
	if err := osal.SemaphoreTake(&h, 10); err != nil {
		t.Fatalf("first take: %v", err)
	}
	start := time.Now()
	if err := osal.SemaphoreTake(&h, 30); status.Of(err) != status.Timeout {
		t.Fatalf("contended take = %v, want timeout", err)
	}
	if time.Since(start) < 25*time.Millisecond {
		t.Fatal("timeout returned too early")
	}
	if err := osal.SemaphoreGive(&h); err != nil {
		t.Fatal(err)
	}
	if err := osal.SemaphoreTake(&h, 10); err != nil {
		t.Fatalf("take after give: %v", err)
	}
	_ = osal.SemaphoreGive(&h)
	if err := osal.SemaphoreGive(&h); status.Of(err) != status.Fail {
		t.Fatalf("give above max = %v, want fail", err)
	}
}

func TestEventWaitConsumesOnlyRequestedBits(t *testing.T) {
	install(t)

	h := osal.EventHandle{}
	if err := osal.EventCreate(&h); err != nil {
		t.Fatal(err)
	}
	if err := osal.EventSet(&h, 0x5); err != nil {
		t.Fatal(err)
	}
	got, err := osal.EventWait(&h, 0x1, 10)
	if err != nil || got != 0x1 {
		t.Fatalf("wait = %#x, %v", got, err)
	}
	// Bit 0x4 must still be pending.
	got, err = osal.EventWait(&h, 0x4, 10)
	if err != nil || got != 0x4 {
		t.Fatalf("wait = %#x, %v", got, err)
	}
	// Everything consumed: a further wait times out with 0.
	got, err = osal.EventWait(&h, 0x7, 20)
	if got != 0 || status.Of(err) != status.Timeout {
		t.Fatalf("wait on drained group = %#x, %v", got, err)
	}
}

func TestEventWaitWakesOnSet(t *testing.T) {
	install(t)

	h := osal.EventHandle{}
	if err := osal.EventCreate(&h); err != nil {
		t.Fatal(err)
	}
	go func() {
		time.Sleep(20 * time.Millisecond)
		_ = osal.EventSet(&h, 0x2)
	}()
	got, err := osal.EventWait(&h, 0x2, 500)
	if err != nil || got != 0x2 {
		t.Fatalf("wait = %#x, %v", got, err)
	}
}

func TestTimerFiresPeriodically(t *testing.T) {
	install(t)

	var fired atomic.Int32
	h := osal.TimerHandle{
		Name:        "tick",
		PeriodTicks: 10,
		Fn:          func(any) { fired.Add(1) },
	}
	if err := osal.TimerCreate(&h); err != nil {
		t.Fatal(err)
	}
	if err := osal.TimerStart(&h); err != nil {
		t.Fatal(err)
	}
	time.Sleep(55 * time.Millisecond)
	if err := osal.TimerStop(&h); err != nil {
		t.Fatal(err)
	}
	n := fired.Load()
	if n < 2 {
		t.Fatalf("fired %d times, want >= 2", n)
	}
	time.Sleep(30 * time.Millisecond)
	if fired.Load() != n {
		t.Fatal("timer fired after stop")
	}
}

func TestTickCountAdvances(t *testing.T) {
	install(t)

	a := osal.TickCount()
	time.Sleep(25 * time.Millisecond)
	b := osal.TickCount()
	if b <= a {
		t.Fatalf("tick count did not advance: %d -> %d", a, b)
	}
}
