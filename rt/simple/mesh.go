package simple

import (
	"fmt"
	"sync"

	"github.com/gekko3d/realtimemesh/rt/core"
	"github.com/gekko3d/realtimemesh/rt/data"
	"github.com/gekko3d/realtimemesh/rt/thread"
)

// Factory creates section groups that carry per section collision flags.
type Factory struct {
	data.DefaultFactory
}

func (Factory) CreateSectionGroup(shared *data.SharedResources, key core.SectionGroupKey) *data.SectionGroup {
	g := data.NewSectionGroup(shared, key)
	g.SetExtension(&groupCollision{disabled: map[core.SectionKey]bool{}})
	return g
}

// groupCollision contributes the triangles of every section whose collision
// was not disabled, regardless of visibility.
type groupCollision struct {
	mu       sync.Mutex
	disabled map[core.SectionKey]bool
}

func (c *groupCollision) setEnabled(key core.SectionKey, enabled bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if enabled {
		delete(c.disabled, key)
	} else {
		c.disabled[key] = true
	}
}

func (c *groupCollision) enabled(key core.SectionKey) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return !c.disabled[key]
}

func (c *groupCollision) AppendCollision(g *data.SectionGroup, out *data.CollisionData) bool {
	pos, _ := g.GetStream(core.PositionStreamKey)
	tris, _ := g.GetStream(core.TrianglesStreamKey)
	g.ProcessSections(func(s *data.Section) {
		if c.enabled(s.Key()) {
			out.AppendSection(pos, tris, s.StreamRange(), s.Config().MaterialSlot)
		}
	})
	return true
}

// Mesh is a data.Mesh built from StreamBuilders.
type Mesh struct {
	*data.Mesh
}

// NewMesh creates a mesh whose nodes come from Factory.
func NewMesh(opts data.Options) *Mesh {
	opts.Factory = Factory{}
	return &Mesh{Mesh: data.NewMesh(data.NewSharedResources(opts))}
}

// GroupOptions controls how a builder is applied to a section group.
type GroupOptions struct {
	Config core.SectionGroupConfig
	// AutoCreateSections creates one section per polygroup, keyed by
	// SectionKeyFromPolyGroup, and removes polygroup sections that no
	// longer exist.
	AutoCreateSections bool
	// SectionConfig is used for auto created sections. MaterialSlot is
	// replaced by the polygroup index.
	SectionConfig core.SectionConfig
}

func DefaultGroupOptions() GroupOptions {
	return GroupOptions{
		Config:             core.DefaultSectionGroupConfig(),
		AutoCreateSections: true,
		SectionConfig:      core.DefaultSectionConfig(),
	}
}

// CreateSectionGroup creates or replaces the group at key from builder.
func (m *Mesh) CreateSectionGroup(batch *data.ProxyCommandBatch, key core.SectionGroupKey, builder *StreamBuilder, opts GroupOptions) (*data.SectionGroup, error) {
	lod := m.GetLOD(key.LOD)
	if lod == nil {
		return nil, fmt.Errorf("simple: %s has no %s", key, key.LOD)
	}
	if err := builder.Validate(); err != nil {
		return nil, err
	}
	g := lod.CreateOrUpdateSectionGroup(batch, key, opts.Config)
	if err := m.UpdateSectionGroup(batch, key, builder, opts); err != nil {
		return nil, err
	}
	return g, nil
}

func (m *Mesh) CreateSectionGroupAsync(key core.SectionGroupKey, builder *StreamBuilder, opts GroupOptions) (*thread.Future[data.CommitStatus], error) {
	batch := m.Shared().NewCommandBatch()
	if _, err := m.CreateSectionGroup(batch, key, builder, opts); err != nil {
		return nil, err
	}
	return batch.Commit(), nil
}

// UpdateSectionGroup replaces the streams of an existing group with the
// builder's and, when asked, reconciles the polygroup sections.
func (m *Mesh) UpdateSectionGroup(batch *data.ProxyCommandBatch, key core.SectionGroupKey, builder *StreamBuilder, opts GroupOptions) error {
	g := m.GetSectionGroup(key)
	if g == nil {
		return fmt.Errorf("simple: unknown section group %s", key)
	}
	if err := builder.Validate(); err != nil {
		return err
	}
	if opts.AutoCreateSections {
		builder.SortByPolyGroup()
	}

	lock := m.Shared().Guard()
	lock.WriteLock()
	defer lock.WriteUnlock()

	g.SetAllStreams(batch, builder.Streams())
	if !opts.AutoCreateSections {
		return nil
	}

	keep := map[core.SectionKey]bool{}
	for _, r := range builder.PolyGroupRanges() {
		sk := core.SectionKeyFromPolyGroup(key, int(r.PolyGroup))
		cfg := opts.SectionConfig
		cfg.MaterialSlot = r.PolyGroup
		g.CreateOrUpdateSection(batch, sk, cfg, r.Range)
		keep[sk] = true
	}
	for _, sk := range g.SectionKeys() {
		if !keep[sk] && isPolyGroupSection(key, sk) {
			g.RemoveSection(batch, sk)
		}
	}
	return nil
}

func isPolyGroupSection(group core.SectionGroupKey, key core.SectionKey) bool {
	var pg int
	_, err := fmt.Sscanf(key.Name, "PolyGroup_%d", &pg)
	return err == nil && core.SectionKeyFromPolyGroup(group, pg) == key
}

func (m *Mesh) UpdateSectionGroupAsync(key core.SectionGroupKey, builder *StreamBuilder, opts GroupOptions) (*thread.Future[data.CommitStatus], error) {
	batch := m.Shared().NewCommandBatch()
	if err := m.UpdateSectionGroup(batch, key, builder, opts); err != nil {
		return nil, err
	}
	return batch.Commit(), nil
}

// CreateSection adds a manually ranged section to an existing group.
func (m *Mesh) CreateSection(batch *data.ProxyCommandBatch, key core.SectionKey, cfg core.SectionConfig, rng core.StreamRange, collision bool) (*data.Section, error) {
	g := m.GetSectionGroup(key.Group)
	if g == nil {
		return nil, fmt.Errorf("simple: unknown section group %s", key.Group)
	}
	s := g.CreateOrUpdateSection(batch, key, cfg, rng)
	m.SetCollisionEnabled(key, collision)
	return s, nil
}

// SetCollisionEnabled includes or excludes a section from collision gathering.
func (m *Mesh) SetCollisionEnabled(key core.SectionKey, enabled bool) {
	g := m.GetSectionGroup(key.Group)
	if g == nil {
		return
	}
	if c, ok := g.Extension().(*groupCollision); ok {
		c.setEnabled(key, enabled)
	}
}

func (m *Mesh) IsCollisionEnabled(key core.SectionKey) bool {
	g := m.GetSectionGroup(key.Group)
	if g == nil {
		return false
	}
	if c, ok := g.Extension().(*groupCollision); ok {
		return c.enabled(key)
	}
	return true
}
