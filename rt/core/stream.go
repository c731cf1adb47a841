package core

import (
	"encoding/binary"
	"fmt"
	"math"
	"sort"

	"github.com/go-gl/mathgl/mgl32"
)

type StreamType uint8

const (
	StreamVertex StreamType = iota
	StreamIndex
)

func (t StreamType) String() string {
	if t == StreamIndex {
		return "Index"
	}
	return "Vertex"
}

// StreamKey identifies one named vertex or index stream of a section group.
type StreamKey struct {
	Type StreamType
	Name string
}

func (k StreamKey) String() string { return k.Type.String() + ":" + k.Name }

func (k StreamKey) Less(o StreamKey) bool {
	if k.Type != o.Type {
		return k.Type < o.Type
	}
	return k.Name < o.Name
}

// Well known streams.
var (
	PositionStreamKey           = StreamKey{Type: StreamVertex, Name: "Position"}
	TangentsStreamKey           = StreamKey{Type: StreamVertex, Name: "Tangents"}
	TexCoordsStreamKey          = StreamKey{Type: StreamVertex, Name: "TexCoords"}
	ColorStreamKey              = StreamKey{Type: StreamVertex, Name: "Color"}
	TrianglesStreamKey          = StreamKey{Type: StreamIndex, Name: "Triangles"}
	DepthOnlyTrianglesStreamKey = StreamKey{Type: StreamIndex, Name: "DepthOnlyTriangles"}
	PolyGroupsStreamKey         = StreamKey{Type: StreamVertex, Name: "PolyGroups"}
)

type ElementType uint8

const (
	ElementFloat32 ElementType = iota
	ElementUint32
	ElementUint16
	ElementUint8
	ElementInt32
)

func (e ElementType) Size() int {
	switch e {
	case ElementUint16:
		return 2
	case ElementUint8:
		return 1
	default:
		return 4
	}
}

// StreamLayout describes one element of a stream: Components values of ElementType.
type StreamLayout struct {
	ElementType ElementType
	Components  int
}

func (l StreamLayout) Stride() int { return l.ElementType.Size() * l.Components }

func (l StreamLayout) IsValid() bool { return l.Components > 0 }

var (
	LayoutFloat3 = StreamLayout{ElementType: ElementFloat32, Components: 3}
	LayoutFloat2 = StreamLayout{ElementType: ElementFloat32, Components: 2}
	LayoutFloat4 = StreamLayout{ElementType: ElementFloat32, Components: 4}
	LayoutUint32 = StreamLayout{ElementType: ElementUint32, Components: 1}
	LayoutColor  = StreamLayout{ElementType: ElementUint8, Components: 4}
)

// Stream holds the raw little-endian bytes of one geometry stream.
type Stream struct {
	Key    StreamKey
	Layout StreamLayout
	Data   []byte
}

func NewStream(key StreamKey, layout StreamLayout, data []byte) *Stream {
	return &Stream{Key: key, Layout: layout, Data: data}
}

func (s *Stream) NumElements() int {
	stride := s.Layout.Stride()
	if stride == 0 {
		return 0
	}
	return len(s.Data) / stride
}

func (s *Stream) Clone() *Stream {
	data := make([]byte, len(s.Data))
	copy(data, s.Data)
	return &Stream{Key: s.Key, Layout: s.Layout, Data: data}
}

// Vec3At decodes element i of a float3 stream.
func (s *Stream) Vec3At(i int) mgl32.Vec3 {
	off := i * s.Layout.Stride()
	return mgl32.Vec3{
		math.Float32frombits(binary.LittleEndian.Uint32(s.Data[off:])),
		math.Float32frombits(binary.LittleEndian.Uint32(s.Data[off+4:])),
		math.Float32frombits(binary.LittleEndian.Uint32(s.Data[off+8:])),
	}
}

// Uint32At decodes component 0 of element i of a uint32 stream.
func (s *Stream) Uint32At(i int) uint32 {
	off := i * s.Layout.Stride()
	return binary.LittleEndian.Uint32(s.Data[off:])
}

// StreamSet maps stream keys to streams. It is not safe for concurrent use.
type StreamSet map[StreamKey]*Stream

func (ss StreamSet) Add(s *Stream) { ss[s.Key] = s }

func (ss StreamSet) Find(key StreamKey) (*Stream, bool) {
	s, ok := ss[key]
	return s, ok
}

// Keys returns the stream keys in stable order.
func (ss StreamSet) Keys() []StreamKey {
	keys := make([]StreamKey, 0, len(ss))
	for k := range ss {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].Less(keys[j]) })
	return keys
}

// Interval is a half open [Min, Max) range of elements.
type Interval struct {
	Min int32
	Max int32
}

func NewInterval(min, max int32) Interval { return Interval{Min: min, Max: max} }

func (i Interval) Len() int32 {
	if i.Max <= i.Min {
		return 0
	}
	return i.Max - i.Min
}

func (i Interval) IsEmpty() bool { return i.Len() == 0 }

// Hull returns the smallest interval covering both i and o. Empty intervals
// are ignored.
func (i Interval) Hull(o Interval) Interval {
	if i.IsEmpty() {
		return o
	}
	if o.IsEmpty() {
		return i
	}
	return Interval{Min: min(i.Min, o.Min), Max: max(i.Max, o.Max)}
}

func (i Interval) Within(count int) bool {
	return i.Min >= 0 && int(i.Max) <= count
}

func (i Interval) String() string { return fmt.Sprintf("[%d,%d)", i.Min, i.Max) }

// StreamRange is the slice of a section group's shared streams drawn by one section.
type StreamRange struct {
	Vertices Interval
	Indices  Interval
}

func NewStreamRange(minVertex, maxVertex, minIndex, maxIndex int32) StreamRange {
	return StreamRange{
		Vertices: Interval{Min: minVertex, Max: maxVertex},
		Indices:  Interval{Min: minIndex, Max: maxIndex},
	}
}

func (r StreamRange) NumVertices() int32   { return r.Vertices.Len() }
func (r StreamRange) NumPrimitives() int32 { return r.Indices.Len() / 3 }

func (r StreamRange) IsEmpty() bool { return r.Vertices.IsEmpty() || r.Indices.IsEmpty() }

func (r StreamRange) Hull(o StreamRange) StreamRange {
	return StreamRange{Vertices: r.Vertices.Hull(o.Vertices), Indices: r.Indices.Hull(o.Indices)}
}

func (r StreamRange) String() string {
	return fmt.Sprintf("V%s I%s", r.Vertices, r.Indices)
}
