// Package simple is the ready made geometry layer on top of rt/data: a
// vertex/triangle builder that encodes the well known streams and a mesh
// type that turns polygroups into sections.
package simple

import (
	"encoding/binary"
	"fmt"
	"math"
	"slices"

	"github.com/gekko3d/realtimemesh/rt/core"
	"github.com/go-gl/mathgl/mgl32"
)

// Color is an 8 bit RGBA vertex color.
type Color [4]uint8

var White = Color{255, 255, 255, 255}

// StreamBuilder accumulates vertices and triangles. Per vertex attributes
// other than the position are optional, but when used they must be given
// for every vertex.
type StreamBuilder struct {
	Positions  []mgl32.Vec3
	Normals    []mgl32.Vec3
	TexCoords  []mgl32.Vec2
	Colors     []Color
	Triangles  [][3]uint32
	PolyGroups []int32
}

func NewStreamBuilder() *StreamBuilder { return &StreamBuilder{} }

func (b *StreamBuilder) NumVertices() int  { return len(b.Positions) }
func (b *StreamBuilder) NumTriangles() int { return len(b.Triangles) }

// AddVertex appends a fully specified vertex and returns its index.
func (b *StreamBuilder) AddVertex(pos, normal mgl32.Vec3, uv mgl32.Vec2, color Color) uint32 {
	b.Positions = append(b.Positions, pos)
	b.Normals = append(b.Normals, normal)
	b.TexCoords = append(b.TexCoords, uv)
	b.Colors = append(b.Colors, color)
	return uint32(len(b.Positions) - 1)
}

func (b *StreamBuilder) AddTriangle(v0, v1, v2 uint32, polyGroup int32) {
	b.Triangles = append(b.Triangles, [3]uint32{v0, v1, v2})
	b.PolyGroups = append(b.PolyGroups, polyGroup)
}

// AppendQuad adds two triangles over four new vertices given counter clockwise.
func (b *StreamBuilder) AppendQuad(corners [4]mgl32.Vec3, normal mgl32.Vec3, polyGroup int32) {
	uvs := [4]mgl32.Vec2{{0, 0}, {1, 0}, {1, 1}, {0, 1}}
	var idx [4]uint32
	for i, c := range corners {
		idx[i] = b.AddVertex(c, normal, uvs[i], White)
	}
	b.AddTriangle(idx[0], idx[1], idx[2], polyGroup)
	b.AddTriangle(idx[0], idx[2], idx[3], polyGroup)
}

// AppendBox adds an axis aligned box centred on center. Each face gets its own
// vertices so normals stay flat.
func (b *StreamBuilder) AppendBox(center, halfExtent mgl32.Vec3, polyGroup int32) {
	x, y, z := halfExtent.X(), halfExtent.Y(), halfExtent.Z()
	faces := []struct {
		normal  mgl32.Vec3
		corners [4]mgl32.Vec3
	}{
		{mgl32.Vec3{0, 0, 1}, [4]mgl32.Vec3{{-x, -y, z}, {x, -y, z}, {x, y, z}, {-x, y, z}}},
		{mgl32.Vec3{0, 0, -1}, [4]mgl32.Vec3{{x, -y, -z}, {-x, -y, -z}, {-x, y, -z}, {x, y, -z}}},
		{mgl32.Vec3{1, 0, 0}, [4]mgl32.Vec3{{x, -y, z}, {x, -y, -z}, {x, y, -z}, {x, y, z}}},
		{mgl32.Vec3{-1, 0, 0}, [4]mgl32.Vec3{{-x, -y, -z}, {-x, -y, z}, {-x, y, z}, {-x, y, -z}}},
		{mgl32.Vec3{0, 1, 0}, [4]mgl32.Vec3{{-x, y, z}, {x, y, z}, {x, y, -z}, {-x, y, -z}}},
		{mgl32.Vec3{0, -1, 0}, [4]mgl32.Vec3{{-x, -y, -z}, {x, -y, -z}, {x, -y, z}, {-x, -y, z}}},
	}
	for _, f := range faces {
		var corners [4]mgl32.Vec3
		for i, c := range f.corners {
			corners[i] = center.Add(c)
		}
		b.AppendQuad(corners, f.normal, polyGroup)
	}
}

// Validate checks attribute counts and that every index references a vertex.
func (b *StreamBuilder) Validate() error {
	n := len(b.Positions)
	for name, count := range map[string]int{"normals": len(b.Normals), "texcoords": len(b.TexCoords), "colors": len(b.Colors)} {
		if count != 0 && count != n {
			return fmt.Errorf("simple: %d %s for %d vertices", count, name, n)
		}
	}
	if len(b.PolyGroups) != len(b.Triangles) {
		return fmt.Errorf("simple: %d polygroups for %d triangles", len(b.PolyGroups), len(b.Triangles))
	}
	for i, tri := range b.Triangles {
		for _, v := range tri {
			if int(v) >= n {
				return fmt.Errorf("simple: triangle %d references vertex %d of %d", i, v, n)
			}
		}
	}
	return nil
}

// SortByPolyGroup orders triangles so each polygroup is contiguous, keeping
// the relative order within a group.
func (b *StreamBuilder) SortByPolyGroup() {
	order := make([]int, len(b.Triangles))
	for i := range order {
		order[i] = i
	}
	slices.SortStableFunc(order, func(x, y int) int { return int(b.PolyGroups[x]) - int(b.PolyGroups[y]) })
	tris := make([][3]uint32, len(order))
	groups := make([]int32, len(order))
	for i, o := range order {
		tris[i] = b.Triangles[o]
		groups[i] = b.PolyGroups[o]
	}
	b.Triangles, b.PolyGroups = tris, groups
}

// PolyGroupRange is the stream range drawn by one polygroup.
type PolyGroupRange struct {
	PolyGroup int32
	Range     core.StreamRange
}

// PolyGroupRanges returns one range per contiguous polygroup run. Call
// SortByPolyGroup first so each polygroup forms a single run.
func (b *StreamBuilder) PolyGroupRanges() []PolyGroupRange {
	var out []PolyGroupRange
	for start := 0; start < len(b.Triangles); {
		pg := b.PolyGroups[start]
		end := start
		minV, maxV := uint32(math.MaxUint32), uint32(0)
		for ; end < len(b.Triangles) && b.PolyGroups[end] == pg; end++ {
			for _, v := range b.Triangles[end] {
				minV, maxV = min(minV, v), max(maxV, v)
			}
		}
		out = append(out, PolyGroupRange{
			PolyGroup: pg,
			Range:     core.NewStreamRange(int32(minV), int32(maxV)+1, int32(start*3), int32(end*3)),
		})
		start = end
	}
	return out
}

// Streams encodes the builder into the well known streams.
func (b *StreamBuilder) Streams() core.StreamSet {
	set := core.StreamSet{}
	set.Add(core.NewStream(core.PositionStreamKey, core.LayoutFloat3, encodeVec3(b.Positions)))
	if len(b.Normals) > 0 {
		set.Add(core.NewStream(core.TangentsStreamKey, core.LayoutFloat3, encodeVec3(b.Normals)))
	}
	if len(b.TexCoords) > 0 {
		data := make([]byte, 0, len(b.TexCoords)*8)
		for _, uv := range b.TexCoords {
			data = appendFloats(data, uv[:]...)
		}
		set.Add(core.NewStream(core.TexCoordsStreamKey, core.LayoutFloat2, data))
	}
	if len(b.Colors) > 0 {
		data := make([]byte, 0, len(b.Colors)*4)
		for _, c := range b.Colors {
			data = append(data, c[:]...)
		}
		set.Add(core.NewStream(core.ColorStreamKey, core.LayoutColor, data))
	}

	tris := make([]byte, 0, len(b.Triangles)*12)
	for _, t := range b.Triangles {
		for _, v := range t {
			tris = binary.LittleEndian.AppendUint32(tris, v)
		}
	}
	set.Add(core.NewStream(core.TrianglesStreamKey, core.StreamLayout{ElementType: core.ElementUint32, Components: 3}, tris))

	groups := make([]byte, 0, len(b.PolyGroups)*4)
	for _, pg := range b.PolyGroups {
		groups = binary.LittleEndian.AppendUint32(groups, uint32(pg))
	}
	set.Add(core.NewStream(core.PolyGroupsStreamKey, core.StreamLayout{ElementType: core.ElementInt32, Components: 1}, groups))
	return set
}

func encodeVec3(vs []mgl32.Vec3) []byte {
	data := make([]byte, 0, len(vs)*12)
	for _, v := range vs {
		data = appendFloats(data, v[:]...)
	}
	return data
}

func appendFloats(dst []byte, fs ...float32) []byte {
	for _, f := range fs {
		dst = binary.LittleEndian.AppendUint32(dst, math.Float32bits(f))
	}
	return dst
}
