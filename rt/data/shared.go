// Package data holds the game thread side of a realtime mesh: the
// Mesh -> LOD -> SectionGroup -> Section hierarchy, the command batches that
// mirror its changes onto the render proxy, and the shared per mesh state.
package data

import (
	"sync"
	"weak"

	"github.com/gekko3d/realtimemesh/rt/core"
	"github.com/gekko3d/realtimemesh/rt/guard"
	"github.com/gekko3d/realtimemesh/rt/proxy"
	"github.com/gekko3d/realtimemesh/rt/thread"
	"github.com/google/uuid"
)

// RenderStateOwner is the host object that presents a mesh's proxy to the
// renderer, typically a mesh component.
type RenderStateOwner interface {
	// MarkRenderStateDirty is called on the game thread after a committed
	// batch was applied. recreateProxy asks for the presented proxy to be
	// swapped on the next frame rather than patched.
	MarkRenderStateDirty(recreateProxy bool)
}

// Factory creates the concrete nodes of a mesh. Geometry layers substitute
// their own factory to attach behaviour to the nodes they create.
type Factory interface {
	CreateLOD(shared *SharedResources, key core.LODKey) *LOD
	CreateSectionGroup(shared *SharedResources, key core.SectionGroupKey) *SectionGroup
	CreateSection(shared *SharedResources, key core.SectionKey) *Section
	CreateRenderProxy(shared *SharedResources) *proxy.RenderProxy
}

// DefaultFactory creates plain nodes.
type DefaultFactory struct{}

func (DefaultFactory) CreateLOD(shared *SharedResources, key core.LODKey) *LOD {
	return NewLOD(shared, key)
}

func (DefaultFactory) CreateSectionGroup(shared *SharedResources, key core.SectionGroupKey) *SectionGroup {
	return NewSectionGroup(shared, key)
}

func (DefaultFactory) CreateSection(shared *SharedResources, key core.SectionKey) *Section {
	return NewSection(shared, key)
}

func (DefaultFactory) CreateRenderProxy(shared *SharedResources) *proxy.RenderProxy {
	return proxy.NewRenderProxy(shared.RenderThread(), shared.Allocator(), shared.Logger())
}

type Options struct {
	RenderThread *thread.RenderThread
	GameThread   *thread.GameThread
	Allocator    proxy.BufferAllocator
	Logger       core.Logger
	Factory      Factory
}

// SharedResources is the state shared by every node of one mesh: the guard,
// the event bus, the node factory and weak references back to the mesh and
// its render proxy.
type SharedResources struct {
	id           uuid.UUID
	guard        *guard.Guard
	events       *Events
	factory      Factory
	log          core.Logger
	renderThread *thread.RenderThread
	gameThread   *thread.GameThread
	alloc        proxy.BufferAllocator

	// Written under the guard's write lock.
	mesh  weak.Pointer[Mesh]
	proxy weak.Pointer[proxy.RenderProxy]

	mu               sync.Mutex
	owner            RenderStateOwner
	collisionHandler CollisionUpdateHandler
}

func NewSharedResources(opts Options) *SharedResources {
	if opts.RenderThread == nil || opts.GameThread == nil {
		panic("data: SharedResources needs a render thread and a game thread")
	}
	if opts.Logger == nil {
		opts.Logger = core.NewNopLogger()
	}
	if opts.Allocator == nil {
		opts.Allocator = proxy.NewNullAllocator()
	}
	if opts.Factory == nil {
		opts.Factory = DefaultFactory{}
	}
	return &SharedResources{
		id:           uuid.New(),
		guard:        guard.New(),
		events:       &Events{},
		factory:      opts.Factory,
		log:          opts.Logger,
		renderThread: opts.RenderThread,
		gameThread:   opts.GameThread,
		alloc:        opts.Allocator,
	}
}

func (s *SharedResources) ID() uuid.UUID                      { return s.id }
func (s *SharedResources) Guard() *guard.Guard                { return s.guard }
func (s *SharedResources) Events() *Events                    { return s.events }
func (s *SharedResources) Factory() Factory                   { return s.factory }
func (s *SharedResources) Logger() core.Logger                { return s.log }
func (s *SharedResources) RenderThread() *thread.RenderThread { return s.renderThread }
func (s *SharedResources) GameThread() *thread.GameThread     { return s.gameThread }
func (s *SharedResources) Allocator() proxy.BufferAllocator   { return s.alloc }

// Mesh returns the owning mesh, or nil once it has been collected.
func (s *SharedResources) Mesh() *Mesh { return s.mesh.Value() }

func (s *SharedResources) setMesh(m *Mesh) { s.mesh = weak.Make(m) }

// Proxy returns the live render proxy without creating one.
func (s *SharedResources) Proxy() *proxy.RenderProxy {
	s.guard.ReadLock()
	defer s.guard.ReadUnlock()
	return s.proxy.Value()
}

func (s *SharedResources) setProxy(p *proxy.RenderProxy) {
	if p == nil {
		s.proxy = weak.Pointer[proxy.RenderProxy]{}
		return
	}
	s.proxy = weak.Make(p)
}

func (s *SharedResources) SetOwner(owner RenderStateOwner) {
	s.mu.Lock()
	s.owner = owner
	s.mu.Unlock()
}

func (s *SharedResources) Owner() RenderStateOwner {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.owner
}

// SetCollisionUpdateHandler binds the single collision subscriber, replacing any previous one.
func (s *SharedResources) SetCollisionUpdateHandler(h CollisionUpdateHandler) {
	s.mu.Lock()
	s.collisionHandler = h
	s.mu.Unlock()
}

func (s *SharedResources) ClearCollisionUpdateHandler() {
	s.SetCollisionUpdateHandler(nil)
}

func (s *SharedResources) CollisionHandler() CollisionUpdateHandler {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.collisionHandler
}

// NewCommandBatch opens a batch against this mesh. The batch is live when
// a render proxy exists.
func (s *SharedResources) NewCommandBatch() *ProxyCommandBatch {
	return newCommandBatch(s, s.Proxy())
}

// Bounds invalidation walks the known ancestor chain directly, then tells
// external subscribers. Callers hold the write lock.

func (s *SharedResources) sectionBoundsChanged(key core.SectionKey) {
	s.events.SectionBoundsChanged.Broadcast(key)
	if m := s.Mesh(); m != nil {
		if g := m.GetSectionGroup(key.Group); g != nil {
			g.childBoundsChanged()
		}
	}
}

func (s *SharedResources) sectionGroupBoundsChanged(key core.SectionGroupKey) {
	s.events.SectionGroupBoundsChanged.Broadcast(key)
	if m := s.Mesh(); m != nil {
		if l := m.GetLOD(key.LOD); l != nil {
			l.childBoundsChanged()
		}
	}
}

func (s *SharedResources) lodBoundsChanged(key core.LODKey) {
	s.events.LODBoundsChanged.Broadcast(key)
	if m := s.Mesh(); m != nil {
		m.childBoundsChanged()
	}
}

// runAsync opens a batch, lets fn fill it and commits it.
func (s *SharedResources) runAsync(fn func(b *ProxyCommandBatch)) *thread.Future[CommitStatus] {
	b := s.NewCommandBatch()
	fn(b)
	return b.Commit()
}
