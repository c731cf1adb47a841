package thread

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/gekko3d/realtimemesh/rt/guard"
)

// GameThread is a task queue owned by whichever goroutine pumps it. The host
// frame loop calls Pump once per frame; tests and tools may call Start to
// give it a dedicated goroutine instead.
type GameThread struct {
	id atomic.Int64

	mu    sync.Mutex
	tasks []func()
	wake  chan struct{}
}

func NewGameThread() *GameThread {
	return &GameThread{wake: make(chan struct{}, 1)}
}

// Bind makes the calling goroutine the game thread.
func (gt *GameThread) Bind() {
	gt.id.Store(guard.GoroutineID())
}

func (gt *GameThread) IsCurrent() bool {
	return gt.id.Load() == guard.GoroutineID()
}

func (gt *GameThread) Enqueue(fn func()) {
	gt.mu.Lock()
	gt.tasks = append(gt.tasks, fn)
	gt.mu.Unlock()
	select {
	case gt.wake <- struct{}{}:
	default:
	}
}

// RunOrEnqueue runs fn inline on the game thread, otherwise enqueues it.
func (gt *GameThread) RunOrEnqueue(fn func()) {
	if gt.IsCurrent() {
		fn()
		return
	}
	gt.Enqueue(fn)
}

// Pending is the number of queued tasks.
func (gt *GameThread) Pending() int {
	gt.mu.Lock()
	defer gt.mu.Unlock()
	return len(gt.tasks)
}

// Pump binds the caller as the game thread and runs every queued task,
// including tasks queued while pumping. It returns the number of tasks run.
func (gt *GameThread) Pump() int {
	gt.Bind()
	n := 0
	for {
		gt.mu.Lock()
		tasks := gt.tasks
		gt.tasks = nil
		gt.mu.Unlock()
		if len(tasks) == 0 {
			return n
		}
		for _, task := range tasks {
			task()
		}
		n += len(tasks)
	}
}

// Start pumps the queue on a new goroutine until ctx is done.
func (gt *GameThread) Start(ctx context.Context) {
	started := make(chan struct{})
	go func() {
		gt.Bind()
		close(started)
		for {
			select {
			case <-gt.wake:
				gt.Pump()
			case <-ctx.Done():
				gt.Pump()
				return
			}
		}
	}()
	<-started
}
