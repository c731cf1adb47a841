// Package proxy holds the render thread mirror of a mesh's data hierarchy.
// Every type here is owned by the render thread; the game thread only
// reaches it through commands executed there.
package proxy

import (
	"fmt"

	"github.com/gekko3d/realtimemesh/rt/core"
	"github.com/gekko3d/realtimemesh/rt/thread"
	"go.uber.org/multierr"
)

// proxyShared is the per proxy tree state every node needs.
type proxyShared struct {
	rt    *thread.RenderThread
	alloc BufferAllocator
	log   core.Logger
}

func (s *proxyShared) checkThread() {
	if s.rt != nil {
		s.rt.AssertCurrent("render proxy")
	}
}

// LODRange is a half open range of LOD indices.
type LODRange struct {
	Min int
	Max int
}

func (r LODRange) IsEmpty() bool       { return r.Max <= r.Min }
func (r LODRange) Contains(i int) bool { return i >= r.Min && i < r.Max }

// RenderProxy is the root of the proxy hierarchy.
type RenderProxy struct {
	shared    *proxyShared
	config    core.MeshConfig
	lods      []*LODProxy
	drawMask  core.DrawMask
	validLODs LODRange
	dirty     bool
	released  bool

	generation uint64
}

// NewRenderProxy creates an empty proxy bound to rt. A nil rt disables the
// render thread assertions, which is only meant for single threaded tools.
func NewRenderProxy(rt *thread.RenderThread, alloc BufferAllocator, log core.Logger) *RenderProxy {
	if alloc == nil {
		alloc = NewNullAllocator()
	}
	if log == nil {
		log = core.NewNopLogger()
	}
	return &RenderProxy{
		shared: &proxyShared{rt: rt, alloc: alloc, log: log},
		config: core.DefaultMeshConfig(),
		lods:   make([]*LODProxy, 0, core.MaxLODs),
		dirty:  true,
	}
}

func (p *RenderProxy) Config() core.MeshConfig { return p.config }
func (p *RenderProxy) DrawMask() core.DrawMask { return p.drawMask }
func (p *RenderProxy) ValidLODRange() LODRange { return p.validLODs }
func (p *RenderProxy) NumLODs() int            { return len(p.lods) }
func (p *RenderProxy) IsStateDirty() bool      { return p.dirty }
func (p *RenderProxy) IsReleased() bool        { return p.released }

// Generation counts HandleUpdates passes that changed cached state.
func (p *RenderProxy) Generation() uint64 { return p.generation }

func (p *RenderProxy) UpdateConfig(cfg core.MeshConfig) {
	p.shared.checkThread()
	p.config = cfg
	p.dirty = true
}

// CreateLODIfNotExists grows the LOD array so that key exists.
func (p *RenderProxy) CreateLODIfNotExists(key core.LODKey) *LODProxy {
	p.shared.checkThread()
	if !key.IsValid() {
		panic(fmt.Sprintf("render proxy: %s exceeds the maximum of %d LODs", key, core.MaxLODs))
	}
	for len(p.lods) <= key.Index() {
		p.lods = append(p.lods, newLODProxy(p.shared, core.LODKey(len(p.lods))))
		p.dirty = true
	}
	return p.lods[key.Index()]
}

// RemoveTrailingLOD removes the last LOD, which must be key. A proxy whose
// last LOD is not key is left unchanged.
func (p *RenderProxy) RemoveTrailingLOD(key core.LODKey) error {
	p.shared.checkThread()
	if len(p.lods) == 0 || p.lods[len(p.lods)-1].Key() != key {
		return fmt.Errorf("render proxy: %s is not the trailing LOD of %d", key, len(p.lods))
	}
	last := p.lods[len(p.lods)-1]
	p.lods = p.lods[:len(p.lods)-1]
	p.dirty = true
	return last.Reset()
}

func (p *RenderProxy) LOD(key core.LODKey) (*LODProxy, bool) {
	if key.Index() >= len(p.lods) {
		return nil, false
	}
	return p.lods[key.Index()], true
}

func (p *RenderProxy) SectionGroup(key core.SectionGroupKey) (*SectionGroupProxy, bool) {
	lod, ok := p.LOD(key.LOD)
	if !ok {
		return nil, false
	}
	return lod.SectionGroup(key)
}

func (p *RenderProxy) Section(key core.SectionKey) (*SectionProxy, bool) {
	g, ok := p.SectionGroup(key.Group)
	if !ok {
		return nil, false
	}
	return g.Section(key)
}

// Reset clears every LOD and the config in place, keeping the proxy alive.
func (p *RenderProxy) Reset() error {
	p.shared.checkThread()
	var err error
	for _, l := range p.lods {
		err = multierr.Append(err, l.Reset())
	}
	p.lods = p.lods[:0]
	p.config = core.DefaultMeshConfig()
	p.drawMask = core.DrawMaskNone
	p.validLODs = LODRange{}
	p.dirty = true
	return err
}

// HandleUpdates refreshes cached draw state bottom up and reports whether
// anything changed.
func (p *RenderProxy) HandleUpdates(force bool) bool {
	p.shared.checkThread()
	for _, l := range p.lods {
		if l.HandleUpdates(force) {
			p.dirty = true
		}
	}
	if !p.dirty && !force {
		return false
	}

	valid := LODRange{Min: -1}
	if forced := int(p.config.ForcedLOD); forced >= 0 && forced < len(p.lods) {
		if p.lods[forced].drawMask.HasAny() {
			valid = LODRange{Min: forced, Max: forced + 1}
		}
	} else {
		for i, l := range p.lods {
			if !l.drawMask.HasAny() {
				continue
			}
			if valid.Min < 0 {
				valid.Min = i
			}
			valid.Max = i + 1
		}
	}
	if valid.Min < 0 {
		valid = LODRange{}
	}

	mask := core.DrawMaskNone
	for i := valid.Min; i < valid.Max; i++ {
		mask |= p.lods[i].drawMask
	}
	if mask.HasAny() && valid.IsEmpty() {
		panic("render proxy: drawable mask with an empty LOD range")
	}

	p.validLODs = valid
	p.drawMask = mask
	p.dirty = false
	p.generation++
	return true
}

// SelectLOD picks the most detailed drawable LOD whose screen size
// threshold is met, honouring the forced LOD override.
func (p *RenderProxy) SelectLOD(screenSize float32) (core.LODKey, bool) {
	if p.validLODs.IsEmpty() {
		return core.InvalidLODKey, false
	}
	if forced := int(p.config.ForcedLOD); p.validLODs.Contains(forced) {
		return core.LODKey(forced), true
	}
	for i := p.validLODs.Min; i < p.validLODs.Max; i++ {
		l := p.lods[i]
		if l.drawMask.HasAny() && screenSize >= l.config.ScreenSize {
			return core.LODKey(i), true
		}
	}
	for i := p.validLODs.Max - 1; i >= p.validLODs.Min; i-- {
		if p.lods[i].drawMask.HasAny() {
			return core.LODKey(i), true
		}
	}
	return core.InvalidLODKey, false
}

// CollectDrawCalls returns the draw calls for the LOD selected at screenSize
// whose sections render in pass.
func (p *RenderProxy) CollectDrawCalls(screenSize float32, pass core.DrawMask) []DrawCall {
	p.shared.checkThread()
	key, ok := p.SelectLOD(screenSize)
	if !ok {
		return nil
	}
	return p.lods[key.Index()].collectDrawCalls(pass, nil)
}

// Release tears the proxy down and frees its GPU buffers. It always runs on
// the render thread: when called elsewhere the teardown is enqueued and
// errors are logged instead of returned.
func (p *RenderProxy) Release() error {
	rt := p.shared.rt
	if rt == nil || rt.IsCurrent() {
		return p.destroy()
	}
	return rt.Enqueue("ReleaseRenderProxy", func() {
		if err := p.destroy(); err != nil {
			p.shared.log.Errorf("release render proxy: %v", err)
		}
	})
}

func (p *RenderProxy) destroy() error {
	if p.released {
		return nil
	}
	err := p.Reset()
	p.released = true
	return err
}
