package guard

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

func TestGoroutineID(t *testing.T) {
	main := GoroutineID()
	require.NotZero(t, main)

	other := make(chan int64)
	go func() { other <- GoroutineID() }()
	assert.NotEqual(t, main, <-other)
	assert.Equal(t, main, GoroutineID())
}

func TestGuard_RecursiveRead(t *testing.T) {
	g := New()
	g.ReadLock()
	g.ReadLock()
	r, w := g.Depths()
	assert.Equal(t, 2, r)
	assert.Equal(t, 0, w)

	g.ReadUnlock()
	g.ReadUnlock()
	r, _ = g.Depths()
	assert.Equal(t, 0, r)
	assert.False(t, g.HoldsRead())
}

func TestGuard_ReadInsideWrite(t *testing.T) {
	g := New()
	g.WriteLock()
	g.WriteLock()
	g.ReadLock()

	r, w := g.Depths()
	assert.Equal(t, 1, r)
	assert.Equal(t, 2, w)
	assert.True(t, g.HoldsWrite())

	g.ReadUnlock()
	g.WriteUnlock()
	_, w = g.Depths()
	assert.Equal(t, 1, w)
	g.WriteUnlock()
	assert.False(t, g.HoldsWrite())

	// The lock must be fully released for another goroutine.
	done := make(chan struct{})
	go func() {
		g.WriteLock()
		g.WriteUnlock()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("writer on another goroutine never acquired the guard")
	}
}

func TestGuard_UpgradePanics(t *testing.T) {
	g := New()
	g.ReadLock()
	require.PanicsWithValue(t, "guard: cannot upgrade a read lock to a write lock", func() {
		g.WriteLock()
	})
	g.ReadUnlock()
}

func TestGuard_UnlockWithoutLockPanics(t *testing.T) {
	g := New()
	assert.Panics(t, func() { g.ReadUnlock() })
	assert.Panics(t, func() { g.WriteUnlock() })
}

func TestGuard_WriteReleasedBeforeNestedRead(t *testing.T) {
	g := New()
	g.WriteLock()
	g.ReadLock()
	assert.Panics(t, func() { g.WriteUnlock() })
	g.ReadUnlock()
	g.WriteUnlock()
}

func TestScopeGuards_EarlyUnlock(t *testing.T) {
	g := New()
	w := NewScopeWrite(g)
	assert.True(t, g.HoldsWrite())
	w.Unlock()
	w.Unlock()
	assert.False(t, g.HoldsWrite())

	r := NewScopeRead(g)
	assert.True(t, g.HoldsRead())
	r.Unlock()
	assert.False(t, g.HoldsRead())
}

// Writers bump two counters in sequence; a reader must never observe them apart.
func TestGuard_Stress(t *testing.T) {
	g := New()
	var a, b int64
	var torn atomic.Int32

	var eg errgroup.Group
	for i := 0; i < 8; i++ {
		eg.Go(func() error {
			for j := 0; j < 500; j++ {
				g.WriteLock()
				a++
				g.ReadLock()
				b++
				g.ReadUnlock()
				g.WriteUnlock()
			}
			return nil
		})
	}
	for i := 0; i < 4; i++ {
		eg.Go(func() error {
			for j := 0; j < 1000; j++ {
				s := NewScopeRead(g)
				if a != b {
					torn.Add(1)
				}
				s.Unlock()
			}
			return nil
		})
	}
	require.NoError(t, eg.Wait())

	assert.Zero(t, torn.Load())
	assert.Equal(t, int64(8*500), a)
	assert.Equal(t, a, b)
}
