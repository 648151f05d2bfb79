// Package hosted is the OSAL backend for OS-hosted targets: tasks are
// goroutines, semaphores wrap golang.org/x/sync, timers and ticks come from
// the runtime clock.
//
// The backend is dynamic; StaticResource slots on handles are ignored.
// Suspend/Resume take effect at the task's next TaskDelay call, the closest
// hosted analogue of a scheduler suspension point.
package hosted

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"embedcore-go/osal"
	"embedcore-go/status"
)

// Config tunes the backend. TickHz is the tick-to-wallclock ratio used by
// TaskDelay, TickCount and all tick-typed timeouts.
type Config struct {
	TickHz uint32 // default 1000 (1 tick = 1 ms)
}

// Backend implements osal.Interface. Create with New and install with
// osal.Use.
type Backend struct {
	cfg   Config
	epoch time.Time
	quit  chan struct{}
}

func New(cfg Config) *Backend {
	if cfg.TickHz == 0 {
		cfg.TickHz = 1000
	}
	return &Backend{cfg: cfg, quit: make(chan struct{})}
}

func (b *Backend) Init() error {
	b.epoch = time.Now()
	return nil
}

func (b *Backend) tickDur(ticks uint32) time.Duration {
	return time.Duration(ticks) * time.Second / time.Duration(b.cfg.TickHz)
}

// ---- Tasks ----

type hostedTask struct {
	mu     sync.Mutex
	paused bool
	cond   *sync.Cond
	done   chan struct{}
}

func (b *Backend) TaskCreate(h *osal.TaskHandle) error {
	t := &hostedTask{done: make(chan struct{})}
	t.cond = sync.NewCond(&t.mu)
	h.Impl = t
	go func() {
		defer close(t.done)
		h.Fn(h.Arg)
	}()
	return nil
}

// TaskDelete detaches the handle. The goroutine itself runs until its
// entry function returns; there is no forced kill on a hosted target.
func (b *Backend) TaskDelete(h *osal.TaskHandle) error {
	h.Impl = nil
	return nil
}

func (b *Backend) TaskSuspend(h *osal.TaskHandle) error {
	t, ok := h.Impl.(*hostedTask)
	if !ok {
		return status.ArgInvalid
	}
	t.mu.Lock()
	t.paused = true
	t.mu.Unlock()
	return nil
}

func (b *Backend) TaskResume(h *osal.TaskHandle) error {
	t, ok := h.Impl.(*hostedTask)
	if !ok {
		return status.ArgInvalid
	}
	t.mu.Lock()
	t.paused = false
	t.mu.Unlock()
	t.cond.Broadcast()
	return nil
}

func (b *Backend) TaskDelay(h *osal.TaskHandle, ticks uint32) error {
	time.Sleep(b.tickDur(ticks))
	if h == nil {
		return nil
	}
	if t, ok := h.Impl.(*hostedTask); ok {
		t.mu.Lock()
		for t.paused {
			t.cond.Wait()
		}
		t.mu.Unlock()
	}
	return nil
}

func (b *Backend) TickCount() uint32 {
	return uint32(time.Since(b.epoch) * time.Duration(b.cfg.TickHz) / time.Second)
}

// StartScheduler blocks until Stop; goroutines already run, so there is
// nothing to hand control to.
func (b *Backend) StartScheduler() error {
	<-b.quit
	return nil
}

// Stop releases StartScheduler. Not part of the OSAL contract; hosted
// programs use it for orderly shutdown.
func (b *Backend) Stop() { close(b.quit) }

// ---- Semaphores ----

type hostedSem struct {
	w    *semaphore.Weighted
	mu   sync.Mutex
	held uint32 // tokens currently taken
	max  uint32
}

func (b *Backend) SemaphoreCreate(h *osal.SemaphoreHandle) error {
	h.Impl = &hostedSem{w: semaphore.NewWeighted(int64(h.MaxCount)), max: h.MaxCount}
	return nil
}

func (b *Backend) SemaphoreDelete(h *osal.SemaphoreHandle) error {
	h.Impl = nil
	return nil
}

func (b *Backend) SemaphoreTake(h *osal.SemaphoreHandle, ticks uint32) error {
	s, ok := h.Impl.(*hostedSem)
	if !ok {
		return status.ArgInvalid
	}
	if s.w.TryAcquire(1) {
		s.bump(1)
		return nil
	}
	if ticks == 0 {
		return status.Timeout
	}
	ctx, cancel := context.WithTimeout(context.Background(), b.tickDur(ticks))
	defer cancel()
	if err := s.w.Acquire(ctx, 1); err != nil {
		return status.Timeout
	}
	s.bump(1)
	return nil
}

func (b *Backend) SemaphoreGive(h *osal.SemaphoreHandle) error {
	s, ok := h.Impl.(*hostedSem)
	if !ok {
		return status.ArgInvalid
	}
	s.mu.Lock()
	if s.held == 0 {
		s.mu.Unlock()
		return status.Fail
	}
	s.held--
	s.mu.Unlock()
	s.w.Release(1)
	return nil
}

func (s *hostedSem) bump(n uint32) {
	s.mu.Lock()
	s.held += n
	s.mu.Unlock()
}

// ---- Timers ----

type hostedTimer struct {
	stop chan struct{}
	mu   sync.Mutex
	on   bool
}

func (b *Backend) TimerCreate(h *osal.TimerHandle) error {
	h.Impl = &hostedTimer{}
	return nil
}

func (b *Backend) TimerDelete(h *osal.TimerHandle) error {
	_ = b.TimerStop(h)
	h.Impl = nil
	return nil
}

func (b *Backend) TimerStart(h *osal.TimerHandle) error {
	t, ok := h.Impl.(*hostedTimer)
	if !ok {
		return status.ArgInvalid
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.on {
		return nil
	}
	t.on = true
	t.stop = make(chan struct{})
	stop := t.stop
	period := b.tickDur(h.PeriodTicks)
	go func() {
		tk := time.NewTicker(period)
		defer tk.Stop()
		for {
			select {
			case <-stop:
				return
			case <-tk.C:
				h.Fn(h.Arg)
			}
		}
	}()
	return nil
}

func (b *Backend) TimerStop(h *osal.TimerHandle) error {
	t, ok := h.Impl.(*hostedTimer)
	if !ok {
		return status.ArgInvalid
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.on {
		return nil
	}
	t.on = false
	close(t.stop)
	return nil
}

// ---- Event groups ----

type hostedEvent struct {
	mu    sync.Mutex
	flags uint32
	ch    chan struct{} // replaced on every Set; closed to broadcast
}

func (b *Backend) EventCreate(h *osal.EventHandle) error {
	h.Impl = &hostedEvent{ch: make(chan struct{})}
	return nil
}

func (b *Backend) EventDelete(h *osal.EventHandle) error {
	h.Impl = nil
	return nil
}

func (b *Backend) EventWait(h *osal.EventHandle, mask uint32, ticks uint32) (uint32, error) {
	e, ok := h.Impl.(*hostedEvent)
	if !ok {
		return 0, status.ArgInvalid
	}
	deadline := time.NewTimer(b.tickDur(ticks))
	defer deadline.Stop()
	for {
		e.mu.Lock()
		if got := e.flags & mask; got != 0 {
			e.flags &^= got // consume
			e.mu.Unlock()
			return got, nil
		}
		ch := e.ch
		e.mu.Unlock()
		select {
		case <-ch:
		case <-deadline.C:
			return 0, status.Timeout
		}
	}
}

func (b *Backend) EventSet(h *osal.EventHandle, mask uint32) error {
	e, ok := h.Impl.(*hostedEvent)
	if !ok {
		return status.ArgInvalid
	}
	e.mu.Lock()
	e.flags |= mask
	close(e.ch)
	e.ch = make(chan struct{})
	e.mu.Unlock()
	return nil
}

func (b *Backend) EventClear(h *osal.EventHandle, mask uint32) error {
	e, ok := h.Impl.(*hostedEvent)
	if !ok {
		return status.ArgInvalid
	}
	e.mu.Lock()
	e.flags &^= mask
	e.mu.Unlock()
	return nil
}
