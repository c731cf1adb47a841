package proxy

import (
	"fmt"
	"sort"

	"github.com/gekko3d/realtimemesh/rt/core"
	"go.uber.org/multierr"
)

// gpuStream is one uploaded stream.
type gpuStream struct {
	layout      core.StreamLayout
	numElements int
	buffer      GPUBuffer
}

// SectionGroupProxy mirrors a data section group. It owns the GPU buffers
// for the group's streams and the proxies of its sections.
type SectionGroupProxy struct {
	shared   *proxyShared
	key      core.SectionGroupKey
	config   core.SectionGroupConfig
	streams  map[core.StreamKey]*gpuStream
	sections map[core.SectionKey]*SectionProxy
	drawMask core.DrawMask
	dirty    bool

	streamsChanged bool
}

func newSectionGroupProxy(shared *proxyShared, key core.SectionGroupKey) *SectionGroupProxy {
	return &SectionGroupProxy{
		shared:   shared,
		key:      key,
		config:   core.DefaultSectionGroupConfig(),
		streams:  make(map[core.StreamKey]*gpuStream),
		sections: make(map[core.SectionKey]*SectionProxy),
		dirty:    true,
	}
}

func (g *SectionGroupProxy) Key() core.SectionGroupKey       { return g.key }
func (g *SectionGroupProxy) Config() core.SectionGroupConfig { return g.config }
func (g *SectionGroupProxy) DrawMask() core.DrawMask         { return g.drawMask }
func (g *SectionGroupProxy) IsStateDirty() bool              { return g.dirty }
func (g *SectionGroupProxy) NumSections() int                { return len(g.sections) }

func (g *SectionGroupProxy) UpdateConfig(cfg core.SectionGroupConfig) {
	g.shared.checkThread()
	g.config = cfg
	g.dirty = true
}

// CreateOrUpdateStream uploads the stream, reusing the existing buffer when it is large enough.
func (g *SectionGroupProxy) CreateOrUpdateStream(s *core.Stream) error {
	g.shared.checkThread()
	usage := BufferUsageVertex
	if s.Key.Type == core.StreamIndex {
		usage = BufferUsageIndex
	}

	existing, ok := g.streams[s.Key]
	if ok && existing.buffer != nil && existing.buffer.Size() >= AlignedSize(len(s.Data)) {
		if err := existing.buffer.Write(s.Data); err != nil {
			return fmt.Errorf("update stream %s of %s: %w", s.Key, g.key, err)
		}
	} else {
		if ok && existing.buffer != nil {
			if err := existing.buffer.Release(); err != nil {
				g.shared.log.Warnf("release stream %s of %s: %v", s.Key, g.key, err)
			}
		}
		buf, err := g.shared.alloc.CreateBuffer(g.key.String()+"/"+s.Key.String(), usage, s.Data)
		if err != nil {
			delete(g.streams, s.Key)
			g.streamsChanged = true
			g.dirty = true
			return fmt.Errorf("create stream %s of %s: %w", s.Key, g.key, err)
		}
		existing = &gpuStream{buffer: buf}
		g.streams[s.Key] = existing
	}
	existing.layout = s.Layout
	existing.numElements = s.NumElements()
	g.streamsChanged = true
	g.dirty = true
	return nil
}

func (g *SectionGroupProxy) RemoveStream(key core.StreamKey) error {
	g.shared.checkThread()
	s, ok := g.streams[key]
	if !ok {
		return nil
	}
	delete(g.streams, key)
	g.streamsChanged = true
	g.dirty = true
	if s.buffer != nil {
		return s.buffer.Release()
	}
	return nil
}

func (g *SectionGroupProxy) HasStream(key core.StreamKey) bool {
	_, ok := g.streams[key]
	return ok
}

// StreamElements returns the element count of an uploaded stream, or 0.
func (g *SectionGroupProxy) StreamElements(key core.StreamKey) int {
	if s, ok := g.streams[key]; ok {
		return s.numElements
	}
	return 0
}

// StreamBuffer returns the GPU buffer of an uploaded stream.
func (g *SectionGroupProxy) StreamBuffer(key core.StreamKey) (GPUBuffer, bool) {
	s, ok := g.streams[key]
	if !ok {
		return nil, false
	}
	return s.buffer, true
}

func (g *SectionGroupProxy) vertexFactory() vertexFactoryState {
	pos, hasPos := g.streams[core.PositionStreamKey]
	tris, hasTris := g.streams[core.TrianglesStreamKey]
	if !hasPos || !hasTris || pos.numElements == 0 || tris.numElements == 0 {
		return vertexFactoryState{}
	}
	return vertexFactoryState{
		valid:       true,
		numVertices: pos.numElements,
		numIndices:  tris.numElements * tris.layout.Components,
	}
}

// HasValidVertexFactory reports whether positions and triangles are uploaded.
func (g *SectionGroupProxy) HasValidVertexFactory() bool {
	return g.vertexFactory().valid
}

func (g *SectionGroupProxy) CreateSectionIfNotExists(key core.SectionKey) *SectionProxy {
	g.shared.checkThread()
	if !key.IsPartOf(g.key) {
		panic(fmt.Sprintf("section %s is not part of section group %s", key, g.key))
	}
	if s, ok := g.sections[key]; ok {
		return s
	}
	s := newSectionProxy(g.shared, key)
	g.sections[key] = s
	g.dirty = true
	return s
}

func (g *SectionGroupProxy) RemoveSection(key core.SectionKey) {
	g.shared.checkThread()
	if s, ok := g.sections[key]; ok {
		s.Reset()
		delete(g.sections, key)
		g.dirty = true
	}
}

func (g *SectionGroupProxy) Section(key core.SectionKey) (*SectionProxy, bool) {
	s, ok := g.sections[key]
	return s, ok
}

// SectionKeys returns the section keys in stable order.
func (g *SectionGroupProxy) SectionKeys() []core.SectionKey {
	keys := make([]core.SectionKey, 0, len(g.sections))
	for k := range g.sections {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].Less(keys[j]) })
	return keys
}

// Reset drops every section and releases every stream buffer.
func (g *SectionGroupProxy) Reset() error {
	g.shared.checkThread()
	for _, s := range g.sections {
		s.Reset()
	}
	clear(g.sections)
	err := g.releaseStreams()
	g.config = core.DefaultSectionGroupConfig()
	g.drawMask = core.DrawMaskNone
	g.dirty = true
	return err
}

func (g *SectionGroupProxy) releaseStreams() error {
	var err error
	for _, s := range g.streams {
		if s.buffer != nil {
			err = multierr.Append(err, s.buffer.Release())
		}
	}
	clear(g.streams)
	g.streamsChanged = true
	return err
}

// HandleUpdates refreshes the sections first, then this group's draw mask.
func (g *SectionGroupProxy) HandleUpdates(force bool) bool {
	vf := g.vertexFactory()
	childForce := force || g.streamsChanged
	for _, s := range g.sections {
		if s.handleUpdates(childForce, vf) {
			g.dirty = true
		}
	}
	if !g.dirty && !force {
		return false
	}

	mask := core.DrawMaskNone
	if vf.valid {
		for _, s := range g.sections {
			mask |= s.drawMask
		}
	}
	g.drawMask = mask
	g.streamsChanged = false
	g.dirty = false
	return true
}

func (g *SectionGroupProxy) collectDrawCalls(pass core.DrawMask, out []DrawCall) []DrawCall {
	if g.drawMask&pass == 0 {
		return out
	}
	indexBuffer, _ := g.StreamBuffer(core.TrianglesStreamKey)
	for _, key := range g.SectionKeys() {
		s := g.sections[key]
		if s.drawMask&pass != 0 {
			out = append(out, s.drawCall(indexBuffer))
		}
	}
	return out
}
