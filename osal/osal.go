// Package osal is the OS abstraction layer: a single process-wide backend
// interface dispatching task, semaphore, timer and event-group operations.
//
// A backend is installed exactly once at startup with Use; every package
// function validates its arguments, forwards to the backend, and fails with
// a warning log when no backend is installed. Status codes are the shared
// three-state set plus Timeout: see package status.
package osal

import (
	"github.com/sirupsen/logrus"

	"embedcore-go/status"
)

var log = logrus.WithField("mod", "osal")

// TaskFunc is a task entry point. arg is the handle's Arg.
type TaskFunc func(arg any)

// TimerFunc runs on each timer expiry. arg is the handle's Arg.
type TimerFunc func(arg any)

// TaskHandle carries the caller-visible task configuration. Populate it
// fully before TaskCreate. Impl belongs to the backend; StaticResource
// points to caller-provided backing memory when the backend is configured
// for static allocation.
type TaskHandle struct {
	Name           string
	StackSize      uint32
	Priority       uint8
	Fn             TaskFunc
	Arg            any
	StaticResource any
	Impl           any
}

// SemaphoreHandle configures a counting semaphore. The semaphore is created
// with all MaxCount tokens available.
type SemaphoreHandle struct {
	MaxCount       uint32
	StaticResource any
	Impl           any
}

// TimerHandle configures a periodic software timer. Period is in ticks and
// the callback must be set before TimerCreate.
type TimerHandle struct {
	Name           string
	PeriodTicks    uint32
	Fn             TimerFunc
	Arg            any
	StaticResource any
	Impl           any
}

// EventHandle configures an event group of bitmask flags.
type EventHandle struct {
	StaticResource any
	Impl           any
}

// Interface is the backend contract. Concrete backends live in
// subpackages (osal/hosted for OS-hosted targets); RTOS ports implement the
// same contract out of tree.
//
// SemaphoreTake returns status.Timeout, distinct from status.Fail, when the
// wait elapses without acquisition. EventWait returns the bitmask that was
// actually set on wake (consumed bits are cleared), or 0 on timeout; wait
// semantics are any-of (OR).
type Interface interface {
	Init() error

	TaskCreate(h *TaskHandle) error
	TaskDelete(h *TaskHandle) error
	TaskSuspend(h *TaskHandle) error
	TaskResume(h *TaskHandle) error
	// TaskDelay blocks the calling task. h may be nil when the caller has
	// no handle; backends then apply a plain sleep.
	TaskDelay(h *TaskHandle, ticks uint32) error
	TickCount() uint32
	StartScheduler() error

	SemaphoreCreate(h *SemaphoreHandle) error
	SemaphoreDelete(h *SemaphoreHandle) error
	SemaphoreTake(h *SemaphoreHandle, ticks uint32) error
	SemaphoreGive(h *SemaphoreHandle) error

	TimerCreate(h *TimerHandle) error
	TimerDelete(h *TimerHandle) error
	TimerStart(h *TimerHandle) error
	TimerStop(h *TimerHandle) error

	EventCreate(h *EventHandle) error
	EventDelete(h *EventHandle) error
	EventWait(h *EventHandle, mask uint32, ticks uint32) (uint32, error)
	EventSet(h *EventHandle, mask uint32) error
	EventClear(h *EventHandle, mask uint32) error
}

var backend Interface

// Use installs the process-wide backend and runs its Init hook.
// It panics on a second install to catch mistakes at start-up.
func Use(i Interface) error {
	if i == nil {
		return status.ArgInvalid
	}
	if backend != nil {
		panic("osal: backend already installed")
	}
	backend = i
	return i.Init()
}

// Installed reports whether a backend has been installed.
func Installed() bool { return backend != nil }

func missing(op string) error {
	log.Warnf("%s: no backend installed", op)
	return status.Fail
}

// ---- Tasks ----

func TaskCreate(h *TaskHandle) error {
	if h == nil || h.Fn == nil {
		return status.ArgInvalid
	}
	if backend == nil {
		return missing("TaskCreate")
	}
	return backend.TaskCreate(h)
}

func TaskDelete(h *TaskHandle) error {
	if h == nil {
		return status.ArgInvalid
	}
	if backend == nil {
		return missing("TaskDelete")
	}
	return backend.TaskDelete(h)
}

func TaskSuspend(h *TaskHandle) error {
	if h == nil {
		return status.ArgInvalid
	}
	if backend == nil {
		return missing("TaskSuspend")
	}
	return backend.TaskSuspend(h)
}

func TaskResume(h *TaskHandle) error {
	if h == nil {
		return status.ArgInvalid
	}
	if backend == nil {
		return missing("TaskResume")
	}
	return backend.TaskResume(h)
}

// TaskDelay blocks the calling task for the given number of ticks.
func TaskDelay(h *TaskHandle, ticks uint32) error {
	if backend == nil {
		return missing("TaskDelay")
	}
	return backend.TaskDelay(h, ticks)
}

// TickCount returns the backend's tick counter, 0 with no backend.
func TickCount() uint32 {
	if backend == nil {
		return 0
	}
	return backend.TickCount()
}

// StartScheduler hands control to the backend scheduler. RTOS backends do
// not return from this call.
func StartScheduler() error {
	if backend == nil {
		return missing("StartScheduler")
	}
	return backend.StartScheduler()
}

// ---- Semaphores ----

func SemaphoreCreate(h *SemaphoreHandle) error {
	if h == nil || h.MaxCount == 0 {
		return status.ArgInvalid
	}
	if backend == nil {
		return missing("SemaphoreCreate")
	}
	return backend.SemaphoreCreate(h)
}

func SemaphoreDelete(h *SemaphoreHandle) error {
	if h == nil {
		return status.ArgInvalid
	}
	if backend == nil {
		return missing("SemaphoreDelete")
	}
	return backend.SemaphoreDelete(h)
}

// SemaphoreTake acquires one token, waiting up to ticks. Returns
// status.Timeout when the wait elapses.
func SemaphoreTake(h *SemaphoreHandle, ticks uint32) error {
	if h == nil {
		return status.ArgInvalid
	}
	if backend == nil {
		return missing("SemaphoreTake")
	}
	return backend.SemaphoreTake(h, ticks)
}

func SemaphoreGive(h *SemaphoreHandle) error {
	if h == nil {
		return status.ArgInvalid
	}
	if backend == nil {
		return missing("SemaphoreGive")
	}
	return backend.SemaphoreGive(h)
}

// ---- Timers ----

func TimerCreate(h *TimerHandle) error {
	if h == nil || h.Fn == nil || h.PeriodTicks == 0 {
		return status.ArgInvalid
	}
	if backend == nil {
		return missing("TimerCreate")
	}
	return backend.TimerCreate(h)
}

func TimerDelete(h *TimerHandle) error {
	if h == nil {
		return status.ArgInvalid
	}
	if backend == nil {
		return missing("TimerDelete")
	}
	return backend.TimerDelete(h)
}

func TimerStart(h *TimerHandle) error {
	if h == nil {
		return status.ArgInvalid
	}
	if backend == nil {
		return missing("TimerStart")
	}
	return backend.TimerStart(h)
}

func TimerStop(h *TimerHandle) error {
	if h == nil {
		return status.ArgInvalid
	}
	if backend == nil {
		return missing("TimerStop")
	}
	return backend.TimerStop(h)
}

// ---- Event groups ----

func EventCreate(h *EventHandle) error {
	if h == nil {
		return status.ArgInvalid
	}
	if backend == nil {
		return missing("EventCreate")
	}
	return backend.EventCreate(h)
}

func EventDelete(h *EventHandle) error {
	if h == nil {
		return status.ArgInvalid
	}
	if backend == nil {
		return missing("EventDelete")
	}
	return backend.EventDelete(h)
}

// EventWait blocks until any flag in mask is set or ticks elapse. Consumed
// flags are cleared; the return value is the consumed mask, 0 on timeout.
func EventWait(h *EventHandle, mask uint32, ticks uint32) (uint32, error) {
	if h == nil || mask == 0 {
		return 0, status.ArgInvalid
	}
	if backend == nil {
		return 0, missing("EventWait")
	}
	return backend.EventWait(h, mask, ticks)
}

func EventSet(h *EventHandle, mask uint32) error {
	if h == nil || mask == 0 {
		return status.ArgInvalid
	}
	if backend == nil {
		return missing("EventSet")
	}
	return backend.EventSet(h, mask)
}

func EventClear(h *EventHandle, mask uint32) error {
	if h == nil || mask == 0 {
		return status.ArgInvalid
	}
	if backend == nil {
		return missing("EventClear")
	}
	return backend.EventClear(h, mask)
}
