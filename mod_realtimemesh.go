package realtimemesh

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/gekko3d/realtimemesh/rt/core"
	"github.com/gekko3d/realtimemesh/rt/data"
	"github.com/gekko3d/realtimemesh/rt/proxy"
	"github.com/gekko3d/realtimemesh/rt/simple"
	"github.com/gekko3d/realtimemesh/rt/thread"
)

// RealtimeMeshModule runs the mesh render thread and presents the proxies of
// every MeshComponent created through the Runtime resource.
type RealtimeMeshModule struct {
	// QueueSize is the render command queue depth. Zero means 256.
	QueueSize int
	// Allocator backs proxy stream buffers. Nil keeps them in host memory.
	Allocator proxy.BufferAllocator
	// Backend names the allocator for the single renderer check.
	Backend string
}

func (m RealtimeMeshModule) Install(app *App, cmd *Commands) {
	backend := m.Backend
	if backend == "" {
		backend = "null"
	}
	ensureSingleRenderer(app, "realtimemesh/"+backend)

	queue := m.QueueSize
	if queue <= 0 {
		queue = 256
	}
	alloc := m.Allocator
	if alloc == nil {
		alloc = proxy.NewNullAllocator()
	}
	log := app.Logger()
	cmd.AddResources(&Runtime{
		RenderThread: thread.NewRenderThread(queue, log),
		GameThread:   thread.NewGameThread(),
		Allocator:    alloc,
		Logger:       log,
	})

	app.UseSystem(System(pumpGameThreadSystem).InStage(PreUpdate).RunAlways())
	app.UseSystem(System(collectDrawCallsSystem).InStage(Render).RunAlways())
	app.UseSystem(System(presentProxiesSystem).InStage(PostRender).RunAlways())
}

// Runtime is the resource shared by every realtime mesh of an app. The app
// goroutine is the game thread: it is bound the first time PreUpdate runs.
type Runtime struct {
	RenderThread *thread.RenderThread
	GameThread   *thread.GameThread
	Allocator    proxy.BufferAllocator
	Logger       core.Logger

	mu     sync.Mutex
	meshes []*MeshComponent
	last   RenderFrame
}

// RenderFrame is what the render thread collected for one frame.
type RenderFrame struct {
	Frame     uint64
	DrawCalls map[string][]proxy.DrawCall
}

func (r *Runtime) Options() data.Options {
	return data.Options{
		RenderThread: r.RenderThread,
		GameThread:   r.GameThread,
		Allocator:    r.Allocator,
		Logger:       r.Logger,
	}
}

// AddMesh creates an empty mesh, builds its render proxy and starts
// presenting it.
func (r *Runtime) AddMesh(name string) *MeshComponent {
	c := &MeshComponent{Name: name, ScreenSize: 1, Mesh: simple.NewMesh(r.Options())}
	c.Mesh.Shared().SetOwner(c)
	c.presented = c.Mesh.GetRenderProxy(true)

	r.mu.Lock()
	r.meshes = append(r.meshes, c)
	r.mu.Unlock()
	r.Logger.Debugf("realtime mesh %q added (%s)", name, c.Mesh.Shared().ID())
	return c
}

// RemoveMesh stops presenting c and releases its proxy.
func (r *Runtime) RemoveMesh(c *MeshComponent) {
	r.mu.Lock()
	r.meshes = slices.DeleteFunc(r.meshes, func(m *MeshComponent) bool { return m == c })
	r.mu.Unlock()
	c.Mesh.Shared().SetOwner(nil)
	c.Mesh.ReleaseRenderProxy()
}

func (r *Runtime) Meshes() []*MeshComponent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.meshes)
}

// LastFrame returns the most recent frame the render thread finished.
func (r *Runtime) LastFrame() RenderFrame {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.last
}

// Flush waits for every render command queued so far.
func (r *Runtime) Flush(timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return r.RenderThread.Flush(ctx)
}

// Close releases every mesh proxy and stops the render thread.
func (r *Runtime) Close() {
	for _, c := range r.Meshes() {
		r.RemoveMesh(c)
	}
	r.RenderThread.Close()
}

// MeshComponent presents one mesh to the renderer. Committed batches mark it
// dirty; the presented proxy is swapped in PostRender when a batch asked for
// recreation.
type MeshComponent struct {
	Name string
	Mesh *simple.Mesh
	// ScreenSize drives LOD selection.
	ScreenSize float32

	mu              sync.Mutex
	dirty           bool
	pendingRecreate bool
	presented       *proxy.RenderProxy
	swaps           int
}

func (c *MeshComponent) MarkRenderStateDirty(recreateProxy bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.dirty = true
	c.pendingRecreate = c.pendingRecreate || recreateProxy
}

func (c *MeshComponent) IsRenderStateDirty() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.dirty
}

// Presented is the proxy the render system draws.
func (c *MeshComponent) Presented() *proxy.RenderProxy {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.presented
}

// Swaps counts the proxy swaps done so far. The proxy built by AddMesh
// requests one, so a mesh that was never edited reports 1 after a frame.
func (c *MeshComponent) Swaps() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.swaps
}

func (c *MeshComponent) String() string {
	return fmt.Sprintf("MeshComponent(%s)", c.Name)
}

func pumpGameThreadSystem(rt *Runtime) {
	rt.GameThread.Pump()
}

func collectDrawCallsSystem(rt *Runtime, cmd *Commands) {
	type target struct {
		name string
		p    *proxy.RenderProxy
		size float32
	}
	var targets []target
	for _, c := range rt.Meshes() {
		if p := c.Presented(); p != nil {
			targets = append(targets, target{c.Name, p, c.ScreenSize})
		}
	}
	frame := cmd.app.Frame()

	err := rt.RenderThread.Enqueue("CollectDrawCalls", func() {
		out := RenderFrame{Frame: frame, DrawCalls: make(map[string][]proxy.DrawCall, len(targets))}
		for _, t := range targets {
			// A proxy swapped out this frame may already be gone.
			if t.p.IsReleased() {
				continue
			}
			out.DrawCalls[t.name] = t.p.CollectDrawCalls(t.size, core.DrawMainPass)
		}
		rt.mu.Lock()
		rt.last = out
		rt.mu.Unlock()
	})
	if err != nil {
		rt.Logger.Warnf("render frame %d dropped: %v", frame, err)
	}
}

func presentProxiesSystem(rt *Runtime) {
	for _, c := range rt.Meshes() {
		c.mu.Lock()
		if !c.dirty {
			c.mu.Unlock()
			continue
		}
		recreate := c.pendingRecreate
		c.dirty, c.pendingRecreate = false, false
		c.mu.Unlock()

		if !recreate {
			continue
		}
		// GetRenderProxy takes the mesh guard, so it runs outside c.mu.
		p := c.Mesh.GetRenderProxy(true)
		c.mu.Lock()
		c.presented = p
		c.swaps++
		c.mu.Unlock()
		rt.Logger.Debugf("%s: proxy swapped", c)
	}
}
