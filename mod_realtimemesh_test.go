package realtimemesh

import (
	"testing"
	"time"

	"github.com/gekko3d/realtimemesh/rt/core"
	"github.com/gekko3d/realtimemesh/rt/data"
	"github.com/gekko3d/realtimemesh/rt/simple"
	"github.com/gekko3d/realtimemesh/rt/thread"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMeshApp(t *testing.T) (*App, *Runtime) {
	t.Helper()
	app := NewAppBuilder().UseModule(RealtimeMeshModule{QueueSize: 16}).Build()
	t.Cleanup(func() { assert.NoError(t, app.Shutdown()) })
	rt := Resource[Runtime](app)
	require.NotNil(t, rt)
	return app, rt
}

func unitBox(polyGroup int32) *simple.StreamBuilder {
	b := simple.NewStreamBuilder()
	b.AppendBox(mgl32.Vec3{}, mgl32.Vec3{1, 1, 1}, polyGroup)
	return b
}

func stepAndFlush(t *testing.T, app *App, rt *Runtime) RenderFrame {
	t.Helper()
	app.Step()
	require.NoError(t, rt.Flush(5*time.Second))
	return rt.LastFrame()
}

func TestRealtimeMeshModule_PresentsAndDraws(t *testing.T) {
	app, rt := newMeshApp(t)
	c := rt.AddMesh("crate")
	require.NotNil(t, c.Presented())

	key := core.NewSectionGroupKey(0, "box")
	_, err := c.Mesh.CreateSectionGroupAsync(key, unitBox(3), simple.DefaultGroupOptions())
	require.NoError(t, err)

	frame := stepAndFlush(t, app, rt)
	assert.Equal(t, uint64(0), frame.Frame)
	require.Len(t, frame.DrawCalls["crate"], 1)
	call := frame.DrawCalls["crate"][0]
	assert.Equal(t, int32(3), call.MaterialSlot)
	assert.Equal(t, int32(12), call.NumPrimitives)

	assert.False(t, c.IsRenderStateDirty())
	assert.Equal(t, 1, c.Swaps())

	frame = stepAndFlush(t, app, rt)
	assert.Equal(t, uint64(1), frame.Frame)
	assert.Equal(t, 1, c.Swaps(), "no edits, no swap")
}

func TestRealtimeMeshModule_EditsFromSystems(t *testing.T) {
	app, rt := newMeshApp(t)
	c := rt.AddMesh("grid")
	key := core.NewSectionGroupKey(0, "cells")
	_, err := c.Mesh.CreateSectionGroup(c.Mesh.Shared().NewCommandBatch(), key, unitBox(0), simple.DefaultGroupOptions())
	require.NoError(t, err)
	stepAndFlush(t, app, rt)
	swaps := c.Swaps()

	var futures []*thread.Future[data.CommitStatus]
	app.UseSystem(System(func(rt *Runtime) {
		if app.Frame() != 1 {
			return
		}
		section := c.Mesh.GetSection(core.SectionKeyFromPolyGroup(key, 0))
		futures = append(futures, section.SetVisibilityAsync(false))
	}))

	frame := stepAndFlush(t, app, rt)
	require.Len(t, futures, 1)
	assert.Equal(t, data.CommitUpdated, futures[0].Get())
	assert.Empty(t, frame.DrawCalls["grid"])
	assert.Equal(t, swaps+1, c.Swaps(), "static section edits recreate the proxy")
}

func TestRealtimeMeshModule_RemoveMesh(t *testing.T) {
	app, rt := newMeshApp(t)
	a := rt.AddMesh("a")
	rt.AddMesh("b")
	require.Len(t, rt.Meshes(), 2)

	rt.RemoveMesh(a)
	frame := stepAndFlush(t, app, rt)
	assert.NotContains(t, frame.DrawCalls, "a")
	assert.Contains(t, frame.DrawCalls, "b")
	assert.Nil(t, a.Mesh.GetRenderProxy(false))
}

func TestRealtimeMeshModule_ShutdownStopsRenderThread(t *testing.T) {
	app := NewAppBuilder().UseModule(LoggingModule{}, RealtimeMeshModule{}).Build()
	rt := Resource[Runtime](app)
	c := rt.AddMesh("m")

	app.UseSystem(System(func(cmd *Commands) { cmd.Exit() }))
	app.Run()

	assert.ErrorIs(t, rt.RenderThread.Enqueue("late", func() {}), thread.ErrClosed)
	assert.Nil(t, c.Mesh.GetRenderProxy(false))
}

func TestRealtimeMeshModule_SingleRenderer(t *testing.T) {
	assert.PanicsWithValue(t, "Multiple renderers installed: realtimemesh/null and realtimemesh/wgpu", func() {
		NewAppBuilder().UseModule(RealtimeMeshModule{}, RealtimeMeshModule{Backend: "wgpu"}).Build()
	})
}
