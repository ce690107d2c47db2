package engine

import (
	"context"
	"sync"

	"github.com/avetrano/matrixflow/internal/logging"
)

// TaskKind labels an outbox submission for logging and observers.
type TaskKind string

const (
	TaskSeedRoot      TaskKind = "seedRoot"
	TaskAddUtility    TaskKind = "addUtility"
	TaskUpdateStatus  TaskKind = "updateUtilityStatus"
	TaskUpdateProfile TaskKind = "updateMember"
)

// Task is one fire-and-forget remote submission. Submit runs on the outbox
// worker; Done, when set, observes the outcome (tests assert on delivery
// through it). Failures are logged and absorbed, never retried.
type Task struct {
	Kind   TaskKind
	Submit func(ctx context.Context) error
	Done   func(err error)
}

// Outbox serializes background remote submissions on a single worker
// goroutine, so fire-and-forget writes cannot reorder against each other.
type Outbox struct {
	log   logging.Logger
	tasks chan Task
	wg    sync.WaitGroup

	closeOnce sync.Once
	done      chan struct{}
}

func NewOutbox(log logging.Logger) *Outbox {
	o := &Outbox{
		log:   log.With("module", "outbox"),
		tasks: make(chan Task, 64),
		done:  make(chan struct{}),
	}
	go o.run()
	return o
}

func (o *Outbox) run() {
	defer close(o.done)
	for task := range o.tasks {
		err := task.Submit(context.Background())
		if err != nil {
			o.log.Error(context.Background(), "background submission failed",
				"kind", string(task.Kind), "err", err)
		}
		if task.Done != nil {
			task.Done(err)
		}
		o.wg.Done()
	}
}

// Enqueue hands a task to the worker. Blocks only if the buffer is full.
func (o *Outbox) Enqueue(t Task) {
	o.wg.Add(1)
	o.tasks <- t
}

// Flush waits until every enqueued task has been processed.
func (o *Outbox) Flush() {
	o.wg.Wait()
}

// Close flushes pending tasks and stops the worker.
func (o *Outbox) Close() {
	o.closeOnce.Do(func() {
		o.wg.Wait()
		close(o.tasks)
		<-o.done
	})
}
