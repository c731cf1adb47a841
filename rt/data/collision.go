package data

import (
	"encoding/binary"

	"github.com/gekko3d/realtimemesh/rt/core"
	"github.com/gekko3d/realtimemesh/rt/thread"
	"github.com/go-gl/mathgl/mgl32"
)

type CollisionResult uint8

const (
	// CollisionUpdated means the handler cooked and applied the geometry.
	CollisionUpdated CollisionResult = iota
	// CollisionIgnored means no handler was bound.
	CollisionIgnored
	CollisionError
)

func (r CollisionResult) String() string {
	switch r {
	case CollisionUpdated:
		return "Updated"
	case CollisionIgnored:
		return "Ignored"
	case CollisionError:
		return "Error"
	default:
		return "Unknown"
	}
}

// CollisionData is triangle soup gathered from one LOD.
type CollisionData struct {
	Positions []mgl32.Vec3
	Triangles [][3]uint32
	// Materials holds the material slot of each triangle.
	Materials []int32
}

func (d *CollisionData) IsEmpty() bool { return len(d.Triangles) == 0 }

// AppendSection copies the triangles of one section range, rebasing indices
// onto the vertices already in d. Out of range indices are dropped.
func (d *CollisionData) AppendSection(positions, triangles *core.Stream, rng core.StreamRange, material int32) {
	if positions == nil || triangles == nil || rng.IsEmpty() {
		return
	}
	numVerts := positions.NumElements()
	numIndices := len(triangles.Data) / 4
	if !rng.Vertices.Within(numVerts) || !rng.Indices.Within(numIndices) {
		return
	}
	base := uint32(len(d.Positions))
	for v := rng.Vertices.Min; v < rng.Vertices.Max; v++ {
		d.Positions = append(d.Positions, positions.Vec3At(int(v)))
	}
	index := func(i int32) (uint32, bool) {
		raw := binary.LittleEndian.Uint32(triangles.Data[i*4:])
		if raw < uint32(rng.Vertices.Min) || raw >= uint32(rng.Vertices.Max) {
			return 0, false
		}
		return base + raw - uint32(rng.Vertices.Min), true
	}
	for i := rng.Indices.Min; i+2 < rng.Indices.Max; i += 3 {
		a, okA := index(i)
		b, okB := index(i + 1)
		c, okC := index(i + 2)
		if !okA || !okB || !okC {
			continue
		}
		d.Triangles = append(d.Triangles, [3]uint32{a, b, c})
		d.Materials = append(d.Materials, material)
	}
}

// CollisionUpdateHandler cooks collision data on the game thread and
// resolves promise when done. async asks the handler to cook off thread.
type CollisionUpdateHandler func(promise *thread.Promise[CollisionResult], data *CollisionData, async bool)

// CollisionLOD is the LOD collision geometry is gathered from.
const CollisionLOD core.LODKey = 0

// UpdateCollision gathers collision geometry and hands it to the bound
// handler on the game thread, even when there is no geometry so the handler
// can clear a previous body. Groups with an extension provide their own
// geometry; other groups contribute their visible sections' triangles.
// Without a handler the result is CollisionIgnored.
func (m *Mesh) UpdateCollision(async bool) *thread.Future[CollisionResult] {
	data := m.gatherCollision()
	promise := thread.NewPromise[CollisionResult]()
	m.shared.gameThread.RunOrEnqueue(func() {
		h := m.shared.CollisionHandler()
		if h == nil {
			promise.SetValue(CollisionIgnored)
			return
		}
		h(promise, data, async)
	})
	return promise.Future()
}

func (m *Mesh) gatherCollision() *CollisionData {
	data := &CollisionData{}
	lod := m.GetLOD(CollisionLOD)
	if lod == nil {
		return data
	}
	lod.ProcessSectionGroups(func(g *SectionGroup) {
		if ext := g.Extension(); ext != nil && ext.AppendCollision(g, data) {
			return
		}
		g.appendCollision(data)
	})
	return data
}

func (g *SectionGroup) appendCollision(out *CollisionData) {
	g.shared.guard.ReadLock()
	defer g.shared.guard.ReadUnlock()
	pos, _ := g.streams.Find(core.PositionStreamKey)
	tris, _ := g.streams.Find(core.TrianglesStreamKey)
	for _, k := range g.sortedSectionKeys() {
		s := g.sections[k]
		if !s.config.IsVisible {
			continue
		}
		out.AppendSection(pos, tris, s.rng, s.config.MaterialSlot)
	}
}
