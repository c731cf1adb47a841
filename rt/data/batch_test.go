package data

import (
	"bytes"
	"testing"

	"github.com/gekko3d/realtimemesh/rt/core"
	"github.com/gekko3d/realtimemesh/rt/proxy"
	"github.com/gekko3d/realtimemesh/rt/thread"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBatch_EmptyCommitIsNoUpdate(t *testing.T) {
	f := newFixture(t)
	fut := f.shared.NewCommandBatch().Commit()
	assert.True(t, fut.IsReady())
	assert.Equal(t, CommitNoUpdate, fut.Get())
}

func TestBatch_NotLiveWithoutProxy(t *testing.T) {
	f := newFixture(t)
	batch := f.shared.NewCommandBatch()
	assert.False(t, batch.IsLive())

	buildTwoSections(t, f.mesh, batch)
	assert.Zero(t, batch.NumCommands())
	assert.Equal(t, CommitNoUpdate, wait(t, batch.Commit()))
	assert.Nil(t, f.mesh.GetRenderProxy(false))
}

func TestBatch_CreateProxyFromData(t *testing.T) {
	f := newFixture(t)
	owner := &recordingOwner{}
	f.shared.SetOwner(owner)
	buildTwoSections(t, f.mesh, f.shared.NewCommandBatch())

	p := f.mesh.GetRenderProxy(true)
	require.NotNil(t, p)
	assert.Same(t, p, f.shared.Proxy())
	assert.Same(t, p, f.mesh.GetRenderProxy(true), "existing proxy is reused")

	// The render side is applied before CreateRenderProxy returns.
	assert.Equal(t, 1, p.NumLODs())
	want := core.DrawStaticPass | core.DrawShadowPass | core.DrawMainPass
	assert.Equal(t, want, p.DrawMask())
	assert.Equal(t, int64(2), f.alloc.Live())

	assert.Eventually(t, func() bool { return len(owner.Calls()) == 1 }, timeout, tick)
	assert.Equal(t, []bool{true}, owner.Calls())
}

func TestBatch_CommitAppliesInOrder(t *testing.T) {
	f := newFixture(t)
	g, a, _ := buildTwoSections(t, f.mesh, f.shared.NewCommandBatch())
	p := f.mesh.GetRenderProxy(true)

	batch := f.shared.NewCommandBatch()
	require.True(t, batch.IsLive())
	g.GetSection(a).UpdateConfig(batch, core.SectionConfig{DrawType: core.DrawDynamic, IsVisible: true, IsMainPassRenderable: true})
	g.RemoveSection(batch, core.NewSectionKey(g.Key(), "b"))
	kinds := make([]CommandKind, 0, batch.NumCommands())
	for _, c := range batch.Commands() {
		kinds = append(kinds, c.Kind())
	}
	assert.Equal(t, []CommandKind{KindUpdateSectionConfig, KindRemoveSection}, kinds)

	assert.Equal(t, CommitUpdated, wait(t, batch.Commit()))
	assert.Zero(t, batch.NumCommands(), "a committed batch is empty")

	sp, ok := p.Section(a)
	require.True(t, ok)
	assert.Equal(t, core.DrawDynamicPass|core.DrawMainPass, sp.DrawMask())
	_, ok = p.Section(core.NewSectionKey(g.Key(), "b"))
	assert.False(t, ok)
	assert.Equal(t, core.DrawDynamicPass|core.DrawMainPass, p.DrawMask())
}

func TestBatch_RecreateFlag(t *testing.T) {
	f := newFixture(t)
	owner := &recordingOwner{}
	f.shared.SetOwner(owner)
	g, a, _ := buildTwoSections(t, f.mesh, f.shared.NewCommandBatch())
	f.mesh.GetRenderProxy(true)
	require.Eventually(t, func() bool { return len(owner.Calls()) == 1 }, timeout, tick)

	dyn := core.DefaultSectionConfig()
	dyn.DrawType = core.DrawDynamic
	batch := f.shared.NewCommandBatch()
	g.GetSection(a).UpdateConfig(batch, dyn)
	assert.False(t, batch.RequiresProxyRecreate(), "a section that ends up dynamic patches in place")
	wait(t, batch.Commit())

	g.GetSection(a).SetVisibility(batch, false)
	assert.False(t, batch.RequiresProxyRecreate(), "dynamic sections patch in place")
	wait(t, batch.Commit())

	g.GetSection(a).UpdateConfig(batch, core.DefaultSectionConfig())
	assert.True(t, batch.RequiresProxyRecreate(), "a section that ends up static rebuilds")
	wait(t, batch.Commit())

	g.CreateOrUpdateStream(batch, positionStream())
	assert.True(t, batch.RequiresProxyRecreate(), "stream changes always rebuild")
	wait(t, batch.Commit())

	assert.Equal(t, []bool{true, false, false, true, true}, owner.Calls())
}

func TestBatch_ReleasedTargetDropsCommands(t *testing.T) {
	f := newFixture(t)
	buildTwoSections(t, f.mesh, f.shared.NewCommandBatch())
	wait(t, f.mesh.AddLODAsync(core.NewLODConfig(0.5)))
	old := f.mesh.GetRenderProxy(true)
	require.Equal(t, 2, old.NumLODs())

	batch := f.shared.NewCommandBatch()
	require.Same(t, old, batch.Target())
	require.True(t, f.mesh.RemoveTrailingLOD(batch))
	f.mesh.ReleaseRenderProxy()

	assert.Equal(t, CommitNoProxy, wait(t, batch.Commit()))
	assert.Nil(t, f.mesh.GetRenderProxy(false), "commit does not rebuild a released proxy")
	assert.False(t, batch.IsLive())

	p := f.mesh.GetRenderProxy(true)
	assert.Equal(t, 1, f.mesh.GetNumLODs())
	assert.Equal(t, f.mesh.GetNumLODs(), p.NumLODs())
}

func TestBatch_ReplacedTargetDropsCommands(t *testing.T) {
	f := newFixture(t)
	buildTwoSections(t, f.mesh, f.shared.NewCommandBatch())
	wait(t, f.mesh.AddLODAsync(core.NewLODConfig(0.5)))
	f.mesh.GetRenderProxy(true)

	batch := f.shared.NewCommandBatch()
	require.True(t, f.mesh.RemoveTrailingLOD(batch))
	p := f.mesh.CreateRenderProxy(true)
	require.Equal(t, 1, p.NumLODs())

	assert.Equal(t, CommitNoProxy, wait(t, batch.Commit()))
	f.flush(t)
	assert.Same(t, p, f.mesh.GetRenderProxy(false))
	assert.Equal(t, 1, p.NumLODs(), "the new proxy already mirrors the data")
	assert.Same(t, p, batch.Target(), "a committed batch follows the current proxy")
}

func TestBatch_ResetRemovingProxyIsNotUndoneByCommit(t *testing.T) {
	f := newFixture(t)
	g, a, _ := buildTwoSections(t, f.mesh, f.shared.NewCommandBatch())
	p := f.mesh.GetRenderProxy(true)

	batch := f.shared.NewCommandBatch()
	g.GetSection(a).SetVisibility(batch, false)
	f.mesh.Reset(batch, true)
	assert.Equal(t, CommitNoProxy, wait(t, batch.Commit()))
	f.flush(t)

	assert.Nil(t, f.mesh.GetRenderProxy(false))
	assert.True(t, p.IsReleased())
	assert.Zero(t, f.alloc.Live())
}

func TestBatch_CustomTasks(t *testing.T) {
	f := newFixture(t)
	g, a, _ := buildTwoSections(t, f.mesh, f.shared.NewCommandBatch())
	f.mesh.GetRenderProxy(true)

	var order []string
	batch := f.shared.NewCommandBatch()
	batch.AddMeshTask(func(p *proxy.RenderProxy) { order = append(order, "mesh") }, false)
	batch.AddLODTask(0, func(l *proxy.LODProxy) { order = append(order, "lod") }, false)
	batch.AddSectionGroupTask(g.Key(), func(sg *proxy.SectionGroupProxy) { order = append(order, "group") }, false)
	batch.AddSectionTask(a, func(s *proxy.SectionProxy) { order = append(order, "section") }, false)
	batch.AddLODTask(5, func(l *proxy.LODProxy) { order = append(order, "missing") }, false)

	assert.Equal(t, CommitUpdated, wait(t, batch.Commit()))
	assert.Equal(t, []string{"mesh", "lod", "group", "section"}, order)
}

func TestBatch_AsyncWrappers(t *testing.T) {
	f := newFixture(t)
	g, a, _ := buildTwoSections(t, f.mesh, f.shared.NewCommandBatch())
	assert.Equal(t, CommitNoUpdate, wait(t, g.GetSection(a).SetVisibilityAsync(false)))

	p := f.mesh.GetRenderProxy(true)
	assert.Equal(t, CommitUpdated, wait(t, g.GetSection(a).SetVisibilityAsync(true)))
	assert.Equal(t, CommitUpdated, wait(t, f.mesh.AddLODAsync(core.NewLODConfig(0.5))))
	assert.Equal(t, 2, p.NumLODs())
	assert.Equal(t, CommitUpdated, wait(t, f.mesh.RemoveTrailingLODAsync()))
	assert.Equal(t, 1, p.NumLODs())
}

func TestBatch_CommitAfterRenderThreadClosed(t *testing.T) {
	f := newFixture(t)
	g, a, _ := buildTwoSections(t, f.mesh, f.shared.NewCommandBatch())
	f.mesh.GetRenderProxy(true)

	batch := f.shared.NewCommandBatch()
	g.GetSection(a).SetVisibility(batch, false)
	f.rt.Close()
	assert.Equal(t, CommitNoProxy, wait(t, batch.Commit()))
	assert.Equal(t, 1, f.logs.FilterMessageSnippet("dropping").Len())
}

func TestMesh_ResetRemovesProxy(t *testing.T) {
	f := newFixture(t)
	buildTwoSections(t, f.mesh, f.shared.NewCommandBatch())
	p := f.mesh.GetRenderProxy(true)
	require.Equal(t, int64(2), f.alloc.Live())

	f.mesh.Reset(f.shared.NewCommandBatch(), true)
	f.flush(t)
	assert.Nil(t, f.mesh.GetRenderProxy(false))
	assert.True(t, p.IsReleased())
	assert.Zero(t, f.alloc.Live())
	assert.Equal(t, 1, f.mesh.GetNumLODs())
	assert.Zero(t, f.mesh.GetLOD(0).NumSectionGroups())
}

func TestMesh_ResetInPlace(t *testing.T) {
	f := newFixture(t)
	buildTwoSections(t, f.mesh, f.shared.NewCommandBatch())
	p := f.mesh.GetRenderProxy(true)

	assert.Equal(t, CommitUpdated, wait(t, f.mesh.ResetAsync(false)))
	assert.Same(t, p, f.mesh.GetRenderProxy(false))
	assert.Equal(t, 1, p.NumLODs())
	assert.False(t, p.DrawMask().HasAny())
	assert.Zero(t, f.alloc.Live())
}

func TestMesh_LoadRebuildsLiveProxy(t *testing.T) {
	src := newFixture(t)
	buildTwoSections(t, src.mesh, src.shared.NewCommandBatch())
	var buf bytes.Buffer
	require.NoError(t, src.mesh.Save(&buf))

	f := newFixture(t)
	old := f.mesh.GetRenderProxy(true)
	require.NoError(t, f.mesh.Load(&buf))
	f.flush(t)

	p := f.mesh.GetRenderProxy(false)
	require.NotNil(t, p)
	assert.NotSame(t, old, p)
	assert.True(t, old.IsReleased())
	assert.True(t, p.DrawMask().HasAny())
}

func TestMesh_UpdateCollision(t *testing.T) {
	f := newFixture(t)
	g, a, b := buildTwoSections(t, f.mesh, f.shared.NewCommandBatch())

	assert.Equal(t, CollisionIgnored, wait(t, f.mesh.UpdateCollision(false)))

	var got *CollisionData
	f.shared.SetCollisionUpdateHandler(func(p *thread.Promise[CollisionResult], data *CollisionData, async bool) {
		got = data
		p.SetValue(CollisionUpdated)
	})
	assert.Equal(t, CollisionUpdated, wait(t, f.mesh.UpdateCollision(true)))
	require.NotNil(t, got)
	assert.Len(t, got.Positions, 8)
	assert.Len(t, got.Triangles, 4)
	assert.Equal(t, [3]uint32{4, 5, 6}, got.Triangles[2])

	g.GetSection(b).SetVisibility(f.shared.NewCommandBatch(), false)
	wait(t, f.mesh.UpdateCollision(true))
	assert.Len(t, got.Triangles, 2, "hidden sections do not collide")

	g.GetSection(a).SetVisibility(f.shared.NewCommandBatch(), false)
	got = nil
	assert.Equal(t, CollisionUpdated, wait(t, f.mesh.UpdateCollision(true)), "empty geometry still reaches the handler")
	require.NotNil(t, got)
	assert.True(t, got.IsEmpty())

	f.shared.ClearCollisionUpdateHandler()
	assert.Equal(t, CollisionIgnored, wait(t, f.mesh.UpdateCollision(false)))
}
