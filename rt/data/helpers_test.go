package data

import (
	"context"
	"encoding/binary"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/gekko3d/realtimemesh/rt/core"
	"github.com/gekko3d/realtimemesh/rt/proxy"
	"github.com/gekko3d/realtimemesh/rt/thread"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

const (
	timeout = 5 * time.Second
	tick    = 5 * time.Millisecond
)

type fixture struct {
	rt     *thread.RenderThread
	gt     *thread.GameThread
	alloc  *proxy.NullAllocator
	logs   *observer.ObservedLogs
	shared *SharedResources
	mesh   *Mesh
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	obsCore, logs := observer.New(zap.DebugLevel)
	log := core.WrapZap(zap.New(obsCore))

	rt := thread.NewRenderThread(64, log)
	t.Cleanup(rt.Close)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	gt := thread.NewGameThread()
	gt.Start(ctx)

	alloc := proxy.NewNullAllocator()
	shared := NewSharedResources(Options{
		RenderThread: rt,
		GameThread:   gt,
		Allocator:    alloc,
		Logger:       log,
	})
	return &fixture{rt: rt, gt: gt, alloc: alloc, logs: logs, shared: shared, mesh: NewMesh(shared)}
}

// flush waits for every render command queued so far.
func (f *fixture) flush(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	require.NoError(t, f.rt.Flush(ctx))
}

func wait[T any](t *testing.T, fut *thread.Future[T]) T {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	v, err := fut.Wait(ctx)
	require.NoError(t, err)
	return v
}

func positionStream(points ...mgl32.Vec3) *core.Stream {
	data := make([]byte, 0, len(points)*12)
	for _, p := range points {
		for _, c := range p {
			data = binary.LittleEndian.AppendUint32(data, math.Float32bits(c))
		}
	}
	return core.NewStream(core.PositionStreamKey, core.LayoutFloat3, data)
}

func triangleStream(indices ...uint32) *core.Stream {
	data := make([]byte, 0, len(indices)*4)
	for _, i := range indices {
		data = binary.LittleEndian.AppendUint32(data, i)
	}
	return core.NewStream(core.TrianglesStreamKey, core.StreamLayout{ElementType: core.ElementUint32, Components: 3}, data)
}

// twoQuads returns positions for a unit quad at the origin and one shifted
// by 10 on X, plus the triangles of both.
func twoQuads() (*core.Stream, *core.Stream) {
	pos := positionStream(
		mgl32.Vec3{0, 0, 0}, mgl32.Vec3{1, 0, 0}, mgl32.Vec3{1, 1, 0}, mgl32.Vec3{0, 1, 0},
		mgl32.Vec3{10, 0, 0}, mgl32.Vec3{11, 0, 0}, mgl32.Vec3{11, 1, 0}, mgl32.Vec3{10, 1, 0},
	)
	tris := triangleStream(0, 1, 2, 0, 2, 3, 4, 5, 6, 4, 6, 7)
	return pos, tris
}

// buildTwoSections fills LOD 0 with one group holding two quad sections.
func buildTwoSections(t *testing.T, m *Mesh, batch *ProxyCommandBatch) (*SectionGroup, core.SectionKey, core.SectionKey) {
	t.Helper()
	lod := m.GetLOD(0)
	require.NotNil(t, lod)
	groupKey := core.NewSectionGroupKey(0, "main")
	g := lod.CreateOrUpdateSectionGroup(batch, groupKey, core.DefaultSectionGroupConfig())
	pos, tris := twoQuads()
	g.CreateOrUpdateStream(batch, pos)
	g.CreateOrUpdateStream(batch, tris)
	a := core.NewSectionKey(groupKey, "a")
	b := core.NewSectionKey(groupKey, "b")
	g.CreateOrUpdateSection(batch, a, core.DefaultSectionConfig(), core.NewStreamRange(0, 4, 0, 6))
	g.CreateOrUpdateSection(batch, b, core.DefaultSectionConfig(), core.NewStreamRange(4, 8, 6, 12))
	return g, a, b
}

type recordingOwner struct {
	mu    sync.Mutex
	calls []bool
}

func (o *recordingOwner) MarkRenderStateDirty(recreate bool) {
	o.mu.Lock()
	o.calls = append(o.calls, recreate)
	o.mu.Unlock()
}

func (o *recordingOwner) Calls() []bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]bool(nil), o.calls...)
}
