package data

import (
	"sync"

	"github.com/gekko3d/realtimemesh/rt/core"
)

type ChangeType uint8

const (
	Added ChangeType = iota
	Updated
	Removed
)

func (c ChangeType) String() string {
	switch c {
	case Added:
		return "Added"
	case Updated:
		return "Updated"
	case Removed:
		return "Removed"
	default:
		return "Unknown"
	}
}

// Subscription identifies a handler bound to an Event.
type Subscription uint64

// Event is a multicast delegate. The zero value is ready to use.
// Handlers run synchronously on the broadcasting goroutine, in subscription order.
type Event[T any] struct {
	mu       sync.RWMutex
	next     Subscription
	handlers []handler[T]
}

type handler[T any] struct {
	id Subscription
	fn func(T)
}

func (e *Event[T]) Subscribe(fn func(T)) Subscription {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.next++
	e.handlers = append(e.handlers, handler[T]{id: e.next, fn: fn})
	return e.next
}

func (e *Event[T]) Unsubscribe(id Subscription) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for i, h := range e.handlers {
		if h.id == id {
			e.handlers = append(e.handlers[:i:i], e.handlers[i+1:]...)
			return
		}
	}
}

func (e *Event[T]) IsBound() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.handlers) > 0
}

func (e *Event[T]) Broadcast(v T) {
	e.mu.RLock()
	handlers := e.handlers
	e.mu.RUnlock()
	for _, h := range handlers {
		h.fn(v)
	}
}

type SectionChange struct {
	Keys   []core.SectionKey
	Change ChangeType
}

type SectionGroupChange struct {
	Keys   []core.SectionGroupKey
	Change ChangeType
}

type LODChange struct {
	Keys   []core.LODKey
	Change ChangeType
}

type StreamChange struct {
	Group  core.SectionGroupKey
	Stream core.StreamKey
	Change ChangeType
}

// Events is the change notification bus exposed to external subscribers
// such as collision or navigation systems.
type Events struct {
	SectionChanged            Event[SectionChange]
	SectionConfigChanged      Event[core.SectionKey]
	SectionStreamRangeChanged Event[core.SectionKey]
	SectionBoundsChanged      Event[core.SectionKey]

	SectionGroupChanged       Event[SectionGroupChange]
	SectionGroupConfigChanged Event[core.SectionGroupKey]
	SectionGroupStreamChanged Event[StreamChange]
	SectionGroupBoundsChanged Event[core.SectionGroupKey]

	LODChanged       Event[LODChange]
	LODConfigChanged Event[core.LODKey]
	LODBoundsChanged Event[core.LODKey]

	MeshConfigChanged Event[core.MeshConfig]
	MeshBoundsChanged Event[struct{}]
}
