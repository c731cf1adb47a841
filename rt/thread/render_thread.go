// Package thread provides the render and game thread executors that the
// data and proxy hierarchies are pinned to.
package thread

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/gekko3d/realtimemesh/rt/core"
	"github.com/gekko3d/realtimemesh/rt/guard"
)

var ErrClosed = errors.New("thread: render thread is closed")

// Command is one unit of render thread work.
type Command struct {
	Name string
	Fn   func()
}

// RenderThread runs commands on a single dedicated goroutine in FIFO order.
type RenderThread struct {
	queue  chan Command
	id     atomic.Int64
	log    core.Logger
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu     sync.RWMutex
	closed bool

	// nested holds commands enqueued by the render thread itself. Only the
	// render goroutine touches it.
	nested []Command

	executed atomic.Uint64
}

func NewRenderThread(queueSize int, log core.Logger) *RenderThread {
	if queueSize <= 0 {
		queueSize = 256
	}
	if log == nil {
		log = core.NewNopLogger()
	}
	ctx, cancel := context.WithCancel(context.Background())
	rt := &RenderThread{
		queue:  make(chan Command, queueSize),
		log:    log,
		ctx:    ctx,
		cancel: cancel,
	}
	started := make(chan struct{})
	rt.wg.Add(1)
	go rt.loop(started)
	<-started
	return rt
}

func (rt *RenderThread) loop(started chan<- struct{}) {
	defer rt.wg.Done()
	rt.id.Store(guard.GoroutineID())
	close(started)

	for {
		select {
		case cmd := <-rt.queue:
			rt.execute(cmd)
		case <-rt.ctx.Done():
			// Drain what was accepted before Close.
			for {
				select {
				case cmd := <-rt.queue:
					rt.execute(cmd)
				default:
					return
				}
			}
		}
	}
}

func (rt *RenderThread) execute(cmd Command) {
	rt.run(cmd)
	for len(rt.nested) > 0 {
		next := rt.nested[0]
		rt.nested = rt.nested[1:]
		rt.run(next)
	}
}

func (rt *RenderThread) run(cmd Command) {
	if rt.log.DebugEnabled() {
		rt.log.Debugf("render thread: %s", cmd.Name)
	}
	cmd.Fn()
	rt.executed.Add(1)
}

// IsCurrent reports whether the caller is running on the render thread.
func (rt *RenderThread) IsCurrent() bool {
	return rt.id.Load() == guard.GoroutineID()
}

// Executed is the number of commands run so far.
func (rt *RenderThread) Executed() uint64 { return rt.executed.Load() }

// Enqueue appends a command. It blocks while the queue is full and fails
// once the thread is closed. Commands enqueued from the render thread itself
// run right after the current command, ahead of the shared queue.
func (rt *RenderThread) Enqueue(name string, fn func()) error {
	rt.mu.RLock()
	defer rt.mu.RUnlock()
	if rt.closed {
		return ErrClosed
	}
	cmd := Command{Name: name, Fn: fn}
	if rt.IsCurrent() {
		rt.nested = append(rt.nested, cmd)
		return nil
	}
	rt.queue <- cmd
	return nil
}

// RunOrEnqueue runs fn inline when called on the render thread, otherwise enqueues it.
func (rt *RenderThread) RunOrEnqueue(name string, fn func()) error {
	if rt.IsCurrent() {
		fn()
		return nil
	}
	return rt.Enqueue(name, fn)
}

// Flush waits until every command enqueued before the call has run.
func (rt *RenderThread) Flush(ctx context.Context) error {
	if rt.IsCurrent() {
		return nil
	}
	fence := make(chan struct{})
	if err := rt.Enqueue("Fence", func() { close(fence) }); err != nil {
		return err
	}
	select {
	case <-fence:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops accepting commands, runs the ones already queued and waits for
// the goroutine to exit.
func (rt *RenderThread) Close() {
	if rt.IsCurrent() {
		panic("thread: render thread cannot close itself")
	}
	rt.mu.Lock()
	if rt.closed {
		rt.mu.Unlock()
		return
	}
	rt.closed = true
	rt.mu.Unlock()
	rt.cancel()
	rt.wg.Wait()
}

// AssertCurrent panics when called off the render thread.
func (rt *RenderThread) AssertCurrent(what string) {
	if !rt.IsCurrent() {
		panic(what + " must only be touched on the render thread")
	}
}
