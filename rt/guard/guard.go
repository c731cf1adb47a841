// Package guard provides the recursive reader/writer lock that protects one
// mesh's whole data hierarchy.
package guard

import (
	"sync"
	"sync/atomic"
)

// Guard allows one writer or many readers. A goroutine may re-acquire the
// read or write side it already holds, and a writer may take read locks
// without blocking on itself. Upgrading a held read lock to a write lock is
// not supported and panics.
//
// Violations of the locking contract (unlock without lock, read->write
// upgrade, releasing a write lock while nested read locks are still held)
// are programmer errors and panic.
type Guard struct {
	rw     sync.RWMutex
	writer atomic.Int64 // goroutine id of the writer, 0 when unowned

	mu     sync.Mutex
	depths map[int64]*depth
}

// depth is only ever mutated by the goroutine it belongs to. The map that
// holds it is shared, so lookups go through Guard.mu.
type depth struct {
	read      int
	write     int
	holdsRead bool
}

func New() *Guard {
	return &Guard{depths: make(map[int64]*depth)}
}

func (g *Guard) lookup(id int64, create bool) *depth {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.depths == nil {
		g.depths = make(map[int64]*depth)
	}
	d, ok := g.depths[id]
	if !ok && create {
		d = &depth{}
		g.depths[id] = d
	}
	return d
}

func (g *Guard) release(id int64, d *depth) {
	if d.read != 0 || d.write != 0 {
		return
	}
	g.mu.Lock()
	delete(g.depths, id)
	g.mu.Unlock()
}

func (g *Guard) ReadLock() {
	id := GoroutineID()
	d := g.lookup(id, true)
	d.read++
	if d.read == 1 && g.writer.Load() != id {
		g.rw.RLock()
		d.holdsRead = true
	}
}

func (g *Guard) ReadUnlock() {
	id := GoroutineID()
	d := g.lookup(id, false)
	if d == nil || d.read == 0 {
		panic("guard: ReadUnlock without a matching ReadLock")
	}
	d.read--
	if d.read == 0 && d.holdsRead {
		d.holdsRead = false
		g.rw.RUnlock()
	}
	g.release(id, d)
}

func (g *Guard) WriteLock() {
	id := GoroutineID()
	d := g.lookup(id, true)
	if g.writer.Load() == id {
		d.write++
		return
	}
	if d.read > 0 {
		panic("guard: cannot upgrade a read lock to a write lock")
	}
	g.rw.Lock()
	g.writer.Store(id)
	d.write = 1
}

func (g *Guard) WriteUnlock() {
	id := GoroutineID()
	d := g.lookup(id, false)
	if d == nil || d.write == 0 || g.writer.Load() != id {
		panic("guard: WriteUnlock without a matching WriteLock")
	}
	if d.write == 1 && d.read > 0 {
		panic("guard: write lock released while nested read locks are still held")
	}
	d.write--
	if d.write == 0 {
		g.writer.Store(0)
		g.rw.Unlock()
	}
	g.release(id, d)
}

// HoldsWrite reports whether the calling goroutine owns the write lock.
func (g *Guard) HoldsWrite() bool {
	return g.writer.Load() == GoroutineID()
}

// HoldsRead reports whether the calling goroutine holds a read or write lock.
func (g *Guard) HoldsRead() bool {
	id := GoroutineID()
	if g.writer.Load() == id {
		return true
	}
	d := g.lookup(id, false)
	return d != nil && d.read > 0
}

// Depths returns the calling goroutine's nested read and write depth.
func (g *Guard) Depths() (read, write int) {
	d := g.lookup(GoroutineID(), false)
	if d == nil {
		return 0, 0
	}
	return d.read, d.write
}

// ScopeGuardRead holds a read lock until Unlock is called. Unlock may be
// called early and is idempotent, so it is safe to also defer it.
type ScopeGuardRead struct {
	g      *Guard
	locked bool
}

func NewScopeRead(g *Guard) *ScopeGuardRead {
	g.ReadLock()
	return &ScopeGuardRead{g: g, locked: true}
}

func (s *ScopeGuardRead) Unlock() {
	if s.locked {
		s.locked = false
		s.g.ReadUnlock()
	}
}

// ScopeGuardWrite holds the write lock until Unlock is called.
type ScopeGuardWrite struct {
	g      *Guard
	locked bool
}

func NewScopeWrite(g *Guard) *ScopeGuardWrite {
	g.WriteLock()
	return &ScopeGuardWrite{g: g, locked: true}
}

func (s *ScopeGuardWrite) Unlock() {
	if s.locked {
		s.locked = false
		s.g.WriteUnlock()
	}
}
