package thread

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderThread_FIFO(t *testing.T) {
	rt := NewRenderThread(4, nil)
	defer rt.Close()

	var mu sync.Mutex
	var order []int
	for i := 0; i < 50; i++ {
		require.NoError(t, rt.Enqueue("Append", func() {
			mu.Lock()
			order = append(order, i)
			mu.Unlock()
		}))
	}
	require.NoError(t, rt.Flush(context.Background()))

	require.Len(t, order, 50)
	for i, v := range order {
		assert.Equal(t, i, v)
	}
}

func TestRenderThread_IsCurrentAndNested(t *testing.T) {
	rt := NewRenderThread(0, nil)
	defer rt.Close()
	assert.False(t, rt.IsCurrent())

	var seen []string
	done := make(chan struct{})
	require.NoError(t, rt.Enqueue("Outer", func() {
		assert.True(t, rt.IsCurrent())
		seen = append(seen, "outer")
		_ = rt.Enqueue("Nested", func() { seen = append(seen, "nested") })
		_ = rt.RunOrEnqueue("Inline", func() { seen = append(seen, "inline") })
	}))
	require.NoError(t, rt.Enqueue("Done", func() { close(done) }))
	<-done

	assert.Equal(t, []string{"outer", "inline", "nested"}, seen)
}

func TestRenderThread_CloseRejects(t *testing.T) {
	rt := NewRenderThread(1, nil)
	ran := false
	require.NoError(t, rt.Enqueue("Run", func() { ran = true }))
	rt.Close()
	assert.True(t, ran)
	assert.ErrorIs(t, rt.Enqueue("Late", func() {}), ErrClosed)
	rt.Close()
}

func TestGameThread_Pump(t *testing.T) {
	gt := NewGameThread()
	count := 0
	gt.Enqueue(func() {
		count++
		assert.True(t, gt.IsCurrent())
		gt.Enqueue(func() { count++ })
	})
	assert.Equal(t, 1, gt.Pending())
	assert.Equal(t, 2, gt.Pump())
	assert.Equal(t, 2, count)
	assert.Zero(t, gt.Pending())
}

func TestGameThread_Start(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	gt := NewGameThread()
	gt.Start(ctx)

	done := make(chan bool)
	gt.Enqueue(func() { done <- gt.IsCurrent() })
	select {
	case onGame := <-done:
		assert.True(t, onGame)
	case <-time.After(2 * time.Second):
		t.Fatal("game thread task never ran")
	}
	assert.False(t, gt.IsCurrent())
}

func TestFuture_ResolvedAndWait(t *testing.T) {
	f := Resolved(7)
	assert.True(t, f.IsReady())
	assert.Equal(t, 7, f.Get())

	p := NewPromise[string]()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err := p.Future().Wait(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	p.SetValue("a")
	p.SetValue("b")
	v, err := p.Future().Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "a", v)
}

func TestBarrier_FiresOnceAtZero(t *testing.T) {
	fired := 0
	b := NewBarrier(2, func() { fired++ })
	b.Arrive()
	assert.Zero(t, fired)
	b.Arrive()
	assert.Equal(t, 1, fired)
	assert.Panics(t, func() { b.Arrive() })
}
