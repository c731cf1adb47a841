package proxy

import (
	"context"
	"encoding/binary"
	"math"
	"testing"

	"github.com/gekko3d/realtimemesh/rt/core"
	"github.com/gekko3d/realtimemesh/rt/thread"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func positions(n int) *core.Stream {
	data := make([]byte, 0, n*12)
	for i := 0; i < n; i++ {
		for _, f := range []float32{float32(i), 0, 0} {
			data = binary.LittleEndian.AppendUint32(data, math.Float32bits(f))
		}
	}
	return core.NewStream(core.PositionStreamKey, core.LayoutFloat3, data)
}

func triangles(n int) *core.Stream {
	data := make([]byte, 0, n*12)
	for i := 0; i < n*3; i++ {
		data = binary.LittleEndian.AppendUint32(data, uint32(i%3))
	}
	return core.NewStream(core.TrianglesStreamKey, core.StreamLayout{ElementType: core.ElementUint32, Components: 3}, data)
}

// buildProxy creates one LOD per screen size, each with a single drawable section.
func buildProxy(t *testing.T, alloc BufferAllocator, screenSizes ...float32) *RenderProxy {
	t.Helper()
	p := NewRenderProxy(nil, alloc, nil)
	for i, size := range screenSizes {
		lod := p.CreateLODIfNotExists(core.LODKey(i))
		lod.UpdateConfig(core.NewLODConfig(size))
		groupKey := core.NewSectionGroupKey(core.LODKey(i), "main")
		g := lod.CreateSectionGroupIfNotExists(groupKey)
		require.NoError(t, g.CreateOrUpdateStream(positions(4)))
		require.NoError(t, g.CreateOrUpdateStream(triangles(2)))
		s := g.CreateSectionIfNotExists(core.NewSectionKey(groupKey, "s0"))
		s.UpdateStreamRange(core.NewStreamRange(0, 4, 0, 6))
	}
	return p
}

func TestRenderProxy_HandleUpdatesBuildsMasks(t *testing.T) {
	p := buildProxy(t, nil, 1.0)
	assert.True(t, p.HandleUpdates(false))

	want := core.DrawStaticPass | core.DrawShadowPass | core.DrawMainPass
	assert.Equal(t, want, p.DrawMask())
	assert.Equal(t, LODRange{Min: 0, Max: 1}, p.ValidLODRange())
	assert.False(t, p.IsStateDirty())

	// Nothing changed: no work.
	assert.False(t, p.HandleUpdates(false))
	assert.True(t, p.HandleUpdates(true))
}

func TestRenderProxy_SectionOutOfRangeIsNotDrawable(t *testing.T) {
	p := buildProxy(t, nil, 1.0)
	key := core.NewSectionKey(core.NewSectionGroupKey(0, "main"), "s0")
	s, ok := p.Section(key)
	require.True(t, ok)
	s.UpdateStreamRange(core.NewStreamRange(0, 40, 0, 6))

	p.HandleUpdates(false)
	assert.Equal(t, core.DrawMaskNone, s.DrawMask())
	assert.Equal(t, core.DrawMaskNone, p.DrawMask())
	assert.True(t, p.ValidLODRange().IsEmpty())
}

func TestRenderProxy_StreamRemovalInvalidatesSections(t *testing.T) {
	p := buildProxy(t, nil, 1.0)
	p.HandleUpdates(false)
	require.True(t, p.DrawMask().HasAny())

	g, ok := p.SectionGroup(core.NewSectionGroupKey(0, "main"))
	require.True(t, ok)
	require.NoError(t, g.RemoveStream(core.TrianglesStreamKey))
	assert.False(t, g.HasValidVertexFactory())

	assert.True(t, p.HandleUpdates(false))
	assert.False(t, p.DrawMask().HasAny())
}

func TestRenderProxy_HiddenLOD(t *testing.T) {
	p := buildProxy(t, nil, 1.0, 0.5)
	lod, _ := p.LOD(0)
	lod.UpdateConfig(core.LODConfig{IsVisible: false, ScreenSize: 1.0})
	p.HandleUpdates(false)

	assert.Equal(t, LODRange{Min: 1, Max: 2}, p.ValidLODRange())
	key, ok := p.SelectLOD(2.0)
	require.True(t, ok)
	assert.Equal(t, core.LODKey(1), key)
}

func TestRenderProxy_SelectLOD(t *testing.T) {
	p := buildProxy(t, nil, 1.0, 0.5, 0.25)
	p.HandleUpdates(false)

	cases := []struct {
		screen float32
		want   core.LODKey
	}{
		{2.0, 0},
		{0.75, 1},
		{0.3, 2},
		{0.01, 2},
	}
	for _, c := range cases {
		got, ok := p.SelectLOD(c.screen)
		require.True(t, ok)
		assert.Equal(t, c.want, got, "screen size %v", c.screen)
	}

	p.UpdateConfig(core.MeshConfig{ForcedLOD: 1})
	p.HandleUpdates(false)
	assert.Equal(t, LODRange{Min: 1, Max: 2}, p.ValidLODRange())
	got, _ := p.SelectLOD(2.0)
	assert.Equal(t, core.LODKey(1), got)
}

func TestRenderProxy_CollectDrawCalls(t *testing.T) {
	p := buildProxy(t, nil, 1.0)
	p.HandleUpdates(false)

	calls := p.CollectDrawCalls(1.0, core.DrawMainPass)
	require.Len(t, calls, 1)
	assert.Equal(t, int32(2), calls[0].NumPrimitives)
	assert.Equal(t, int32(3), calls[0].MaxVertex)
	assert.NotNil(t, calls[0].IndexBuffer)

	assert.Empty(t, p.CollectDrawCalls(1.0, core.DrawDynamicPass))
}

func TestRenderProxy_ResetAndRemoveReleaseBuffers(t *testing.T) {
	alloc := NewNullAllocator()
	p := buildProxy(t, alloc, 1.0, 0.5)
	assert.Equal(t, int64(4), alloc.Live())

	assert.Error(t, p.RemoveTrailingLOD(0), "only the trailing LOD can be removed")
	assert.Equal(t, 2, p.NumLODs())
	require.NoError(t, p.RemoveTrailingLOD(1))
	assert.Equal(t, 1, p.NumLODs())
	assert.Equal(t, int64(2), alloc.Live())
	assert.Error(t, p.RemoveTrailingLOD(1))
	assert.Equal(t, 1, p.NumLODs())

	require.NoError(t, p.Reset())
	assert.Zero(t, p.NumLODs())
	assert.Zero(t, alloc.Live())
}

func TestSectionGroupProxy_StreamBufferReuse(t *testing.T) {
	alloc := NewNullAllocator()
	p := NewRenderProxy(nil, alloc, nil)
	g := p.CreateLODIfNotExists(0).CreateSectionGroupIfNotExists(core.NewSectionGroupKey(0, "g"))

	require.NoError(t, g.CreateOrUpdateStream(positions(8)))
	require.NoError(t, g.CreateOrUpdateStream(positions(4)))
	assert.Equal(t, int64(1), alloc.Created())
	assert.Equal(t, 4, g.StreamElements(core.PositionStreamKey))

	require.NoError(t, g.CreateOrUpdateStream(positions(16)))
	assert.Equal(t, int64(2), alloc.Created())
	assert.Equal(t, int64(1), alloc.Live())
}

func TestProxy_KeyMismatchPanics(t *testing.T) {
	p := NewRenderProxy(nil, nil, nil)
	lod := p.CreateLODIfNotExists(0)
	assert.Panics(t, func() {
		lod.CreateSectionGroupIfNotExists(core.NewSectionGroupKey(1, "x"))
	})
	assert.Panics(t, func() { p.CreateLODIfNotExists(core.MaxLODs) })
}

func TestRenderProxy_RenderThreadOwnership(t *testing.T) {
	rt := thread.NewRenderThread(8, nil)
	defer rt.Close()
	alloc := NewNullAllocator()
	p := NewRenderProxy(rt, alloc, nil)

	assert.Panics(t, func() { p.CreateLODIfNotExists(0) })

	require.NoError(t, rt.Enqueue("Build", func() {
		g := p.CreateLODIfNotExists(0).CreateSectionGroupIfNotExists(core.NewSectionGroupKey(0, "g"))
		_ = g.CreateOrUpdateStream(positions(3))
	}))
	require.NoError(t, p.Release())
	require.NoError(t, rt.Flush(context.Background()))

	assert.True(t, p.IsReleased())
	assert.Zero(t, alloc.Live())
}
