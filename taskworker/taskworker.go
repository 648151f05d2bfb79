// Package taskworker provides cooperative task-dispatch queues. A worker
// executes enqueued work units in order, either inside its own OSAL task or
// from a superloop when no OSAL backend is installed.
package taskworker

import (
	"github.com/sirupsen/logrus"

	"embedcore-go/osal"
	"embedcore-go/queue"
	"embedcore-go/status"
	"embedcore-go/x/ilist"
)

var log = logrus.WithField("mod", "taskworker")

// TaskFunc performs one unit of work. ctx is the context snapshot taken at
// enqueue time. The function MUST invoke cb to report the outcome; error
// reporting happens through the callback arguments, not through panics.
type TaskFunc func(ctx []byte, cb CallbackFunc)

// CallbackFunc reports a task's outcome: an 8-bit event code plus result
// data.
type CallbackFunc func(event uint8, result any)

// taskAvailable is the worker event-group flag signalling queued work.
const taskAvailable uint32 = 0x01

// taskBlock pairs the functions of one queued unit. The context bytes live
// in the worker's queue; function values are GC-managed and tracked here in
// the same FIFO order.
type taskBlock struct {
	task TaskFunc
	cb   CallbackFunc
}

// Worker is one dispatch queue. Initialise with Init; not safe for use
// before that.
type Worker struct {
	Name       string
	SleepTicks uint32 // execute-loop wait, OSAL mode

	q      queue.Queue
	blocks []taskBlock

	task   osal.TaskHandle
	sem    osal.SemaphoreHandle
	events osal.EventHandle

	node ilist.Node[Worker]
}

var workerList ilist.List[Worker]

// Init creates the worker's queue over buf. With an OSAL backend installed
// it also creates the worker's task, semaphore and event group and starts
// the execute loop; otherwise the worker joins the superloop list.
func (w *Worker) Init(name string, buf []byte, sleepTicks uint32) error {
	if name == "" || len(buf) == 0 {
		return status.ArgInvalid
	}
	if err := w.q.Init(buf); err != nil {
		return err
	}
	w.Name = name
	w.SleepTicks = sleepTicks
	w.blocks = w.blocks[:0]
	w.node.Init(w)

	if !osal.Installed() {
		workerList.PushTail(&w.node)
		return nil
	}

	w.sem.MaxCount = 1
	if err := osal.SemaphoreCreate(&w.sem); err != nil {
		return err
	}
	if err := osal.EventCreate(&w.events); err != nil {
		return err
	}
	w.task = osal.TaskHandle{
		Name: name,
		Fn:   func(any) { w.loop() },
	}
	return osal.TaskCreate(&w.task)
}

// Deinit detaches the worker from the superloop list. OSAL resources are
// deleted; the execute loop winds down at its next wait.
func (w *Worker) Deinit() {
	w.node.Unlink()
	if osal.Installed() {
		_ = osal.TaskDelete(&w.task)
		_ = osal.EventDelete(&w.events)
		_ = osal.SemaphoreDelete(&w.sem)
	}
}

// Enqueue appends a work unit. ctx is copied into the worker's queue, so the
// caller's buffer is free to reuse on return. waitTicks bounds the wait for
// the worker's semaphore in OSAL mode.
func (w *Worker) Enqueue(task TaskFunc, cb CallbackFunc, ctx []byte, waitTicks uint32) error {
	if task == nil || cb == nil {
		return status.ArgInvalid
	}
	if !osal.Installed() {
		return w.enqueueLocked(task, cb, ctx)
	}

	if err := osal.SemaphoreTake(&w.sem, waitTicks); err != nil {
		return err
	}
	err := w.enqueueLocked(task, cb, ctx)
	if err == nil {
		_ = osal.EventSet(&w.events, taskAvailable)
	}
	_ = osal.SemaphoreGive(&w.sem)
	return err
}

func (w *Worker) enqueueLocked(task TaskFunc, cb CallbackFunc, ctx []byte) error {
	r, err := w.q.Reserve(len(ctx))
	if err != nil {
		log.Warnf("worker %s: queue full", w.Name)
		return err
	}
	copy(r.Bytes(), ctx)
	if err := r.Commit(); err != nil {
		return err
	}
	w.blocks = append(w.blocks, taskBlock{task: task, cb: cb})
	return nil
}

// Execute runs at most one queued task, waiting up to waitTicks for work.
// OSAL mode only; the worker's own task calls this in a loop, but a host
// application may drive it directly instead of setting SleepTicks.
func (w *Worker) Execute(waitTicks uint32) {
	got, err := osal.EventWait(&w.events, taskAvailable, waitTicks)
	if err != nil || got == 0 {
		return
	}
	if err := osal.SemaphoreTake(&w.sem, waitTicks); err != nil {
		// Put the consumed flag back so the work is not stranded.
		_ = osal.EventSet(&w.events, taskAvailable)
		return
	}
	w.executeFront()
	// The flag stays set exactly as long as queued tasks exist.
	if w.q.Len() > 0 {
		_ = osal.EventSet(&w.events, taskAvailable)
	}
	_ = osal.SemaphoreGive(&w.sem)
}

func (w *Worker) loop() {
	for w.events.Impl != nil {
		w.Execute(w.SleepTicks)
	}
}

// executeFront invokes the front task block, then pops it.
func (w *Worker) executeFront() {
	ctx, err := w.q.Front()
	if err != nil || len(w.blocks) == 0 {
		return
	}
	blk := w.blocks[0]
	blk.task(ctx, blk.cb)
	_ = w.q.PopFront()
	w.blocks = w.blocks[1:]
}

// Len returns the number of queued tasks.
func (w *Worker) Len() int { return w.q.Len() }

// RunSuperloop pumps every registered worker once: each worker with a
// non-empty queue executes exactly its front task. Call it from the
// application superloop when no OSAL backend is present.
func RunSuperloop() {
	workerList.Each(func(w *Worker) bool {
		if w.q.Len() > 0 {
			w.executeFront()
		}
		return true
	})
}
