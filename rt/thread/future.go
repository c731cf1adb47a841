package thread

import (
	"context"
	"sync"
	"sync/atomic"
)

// Promise is the write side of a Future. SetValue may be called once;
// later calls are ignored.
type Promise[T any] struct {
	once  sync.Once
	done  chan struct{}
	value T
}

func NewPromise[T any]() *Promise[T] {
	return &Promise[T]{done: make(chan struct{})}
}

func (p *Promise[T]) SetValue(v T) {
	p.once.Do(func() {
		p.value = v
		close(p.done)
	})
}

func (p *Promise[T]) Future() *Future[T] {
	return &Future[T]{p: p}
}

// Future is the read side of a Promise.
type Future[T any] struct {
	p *Promise[T]
}

// Resolved returns a Future that is already ready with v.
func Resolved[T any](v T) *Future[T] {
	p := NewPromise[T]()
	p.SetValue(v)
	return p.Future()
}

func (f *Future[T]) Done() <-chan struct{} { return f.p.done }

func (f *Future[T]) IsReady() bool {
	select {
	case <-f.p.done:
		return true
	default:
		return false
	}
}

// Get blocks until the value is available.
func (f *Future[T]) Get() T {
	<-f.p.done
	return f.p.value
}

// Wait blocks until the value is available or ctx is done.
func (f *Future[T]) Wait(ctx context.Context) (T, error) {
	select {
	case <-f.p.done:
		return f.p.value, nil
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// Then runs fn with the value once it is available, on a new goroutine
// unless the future is already ready.
func (f *Future[T]) Then(fn func(T)) {
	if f.IsReady() {
		fn(f.p.value)
		return
	}
	go func() { fn(f.Get()) }()
}

// Barrier calls fire once after Arrive has been called n times. It joins
// completions that happen on different threads into one signal.
type Barrier struct {
	remaining atomic.Int32
	fire      func()
}

func NewBarrier(n int, fire func()) *Barrier {
	b := &Barrier{fire: fire}
	b.remaining.Store(int32(n))
	return b
}

func (b *Barrier) Arrive() {
	switch left := b.remaining.Add(-1); {
	case left == 0:
		b.fire()
	case left < 0:
		panic("thread: barrier arrived more times than expected")
	}
}
