package proxy

import "github.com/gekko3d/realtimemesh/rt/core"

// vertexFactoryState is what a section needs to know about its group's
// uploaded streams to decide whether it can draw.
type vertexFactoryState struct {
	valid       bool
	numVertices int
	numIndices  int
}

// SectionProxy mirrors one data section and holds its per draw call state.
type SectionProxy struct {
	shared   *proxyShared
	key      core.SectionKey
	config   core.SectionConfig
	rng      core.StreamRange
	drawMask core.DrawMask
	dirty    bool
}

func newSectionProxy(shared *proxyShared, key core.SectionKey) *SectionProxy {
	return &SectionProxy{shared: shared, key: key, config: core.DefaultSectionConfig(), dirty: true}
}

func (s *SectionProxy) Key() core.SectionKey          { return s.key }
func (s *SectionProxy) Config() core.SectionConfig    { return s.config }
func (s *SectionProxy) StreamRange() core.StreamRange { return s.rng }
func (s *SectionProxy) DrawMask() core.DrawMask       { return s.drawMask }
func (s *SectionProxy) IsStateDirty() bool            { return s.dirty }

func (s *SectionProxy) UpdateConfig(cfg core.SectionConfig) {
	s.shared.checkThread()
	s.config = cfg
	s.dirty = true
}

func (s *SectionProxy) UpdateStreamRange(rng core.StreamRange) {
	s.shared.checkThread()
	s.rng = rng
	s.dirty = true
}

func (s *SectionProxy) Reset() {
	s.shared.checkThread()
	s.config = core.DefaultSectionConfig()
	s.rng = core.StreamRange{}
	s.drawMask = core.DrawMaskNone
	s.dirty = true
}

func (s *SectionProxy) handleUpdates(force bool, vf vertexFactoryState) bool {
	if !s.dirty && !force {
		return false
	}
	drawable := vf.valid && !s.rng.IsEmpty() &&
		s.rng.Vertices.Within(vf.numVertices) && s.rng.Indices.Within(vf.numIndices)
	if drawable {
		s.drawMask = core.DrawMaskFor(s.config)
	} else {
		s.drawMask = core.DrawMaskNone
	}
	s.dirty = false
	return true
}

// DrawCall describes one indexed draw of a section.
type DrawCall struct {
	Section       core.SectionKey
	MaterialSlot  int32
	FirstIndex    int32
	NumPrimitives int32
	MinVertex     int32
	MaxVertex     int32
	Mask          core.DrawMask
	ForceOpaque   bool
	IndexBuffer   GPUBuffer
}

func (s *SectionProxy) drawCall(indexBuffer GPUBuffer) DrawCall {
	return DrawCall{
		Section:       s.key,
		MaterialSlot:  s.config.MaterialSlot,
		FirstIndex:    s.rng.Indices.Min,
		NumPrimitives: s.rng.NumPrimitives(),
		MinVertex:     s.rng.Vertices.Min,
		MaxVertex:     s.rng.Vertices.Max - 1,
		Mask:          s.drawMask,
		ForceOpaque:   s.config.ForceOpaque,
		IndexBuffer:   indexBuffer,
	}
}
