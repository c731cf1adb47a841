package data

import (
	"github.com/gekko3d/realtimemesh/rt/archive"
	"github.com/gekko3d/realtimemesh/rt/core"
	"github.com/gekko3d/realtimemesh/rt/thread"
)

// Section is a drawable range of its section group's streams with its own
// material slot and visibility.
type Section struct {
	shared *SharedResources
	key    core.SectionKey
	config core.SectionConfig
	rng    core.StreamRange
	bounds core.BoundsCache
}

func NewSection(shared *SharedResources, key core.SectionKey) *Section {
	return &Section{shared: shared, key: key, config: core.DefaultSectionConfig()}
}

func (s *Section) Key() core.SectionKey { return s.key }

func (s *Section) Config() core.SectionConfig {
	s.shared.guard.ReadLock()
	defer s.shared.guard.ReadUnlock()
	return s.config
}

func (s *Section) StreamRange() core.StreamRange {
	s.shared.guard.ReadLock()
	defer s.shared.guard.ReadUnlock()
	return s.rng
}

func (s *Section) IsVisible() bool       { return s.Config().IsVisible }
func (s *Section) IsCastingShadow() bool { return s.Config().CastsShadow }

// ShouldRecreateProxyOnChange is true for static sections, whose cached
// draw state cannot be patched in place.
func (s *Section) ShouldRecreateProxyOnChange() bool {
	return s.Config().DrawType == core.DrawStatic
}

// Initialize sets config and range without broadcasting. The parent reports
// the section as added.
func (s *Section) Initialize(batch *ProxyCommandBatch, cfg core.SectionConfig, rng core.StreamRange) {
	g := s.shared.guard
	g.WriteLock()
	defer g.WriteUnlock()
	s.config = cfg
	s.rng = rng
	s.bounds.ClearCachedValue()
	s.InitializeProxy(batch)
}

// InitializeProxy enqueues the section's full state.
func (s *Section) InitializeProxy(batch *ProxyCommandBatch) {
	s.shared.guard.ReadLock()
	defer s.shared.guard.ReadUnlock()
	recreate := s.config.DrawType == core.DrawStatic
	batch.Add(UpdateSectionConfig{Key: s.key, Config: s.config}, recreate)
	batch.Add(UpdateSectionRange{Key: s.key, Range: s.rng}, recreate)
}

func (s *Section) UpdateConfig(batch *ProxyCommandBatch, cfg core.SectionConfig) {
	g := s.shared.guard
	g.WriteLock()
	defer g.WriteUnlock()
	s.config = cfg
	batch.Add(UpdateSectionConfig{Key: s.key, Config: cfg}, s.ShouldRecreateProxyOnChange())
	s.shared.events.SectionConfigChanged.Broadcast(s.key)
}

func (s *Section) UpdateConfigAsync(cfg core.SectionConfig) *thread.Future[CommitStatus] {
	return s.shared.runAsync(func(b *ProxyCommandBatch) { s.UpdateConfig(b, cfg) })
}

// EditConfig applies edit to a copy of the current config and stores the result.
func (s *Section) EditConfig(batch *ProxyCommandBatch, edit func(cfg *core.SectionConfig)) {
	g := s.shared.guard
	g.WriteLock()
	defer g.WriteUnlock()
	cfg := s.config
	edit(&cfg)
	s.UpdateConfig(batch, cfg)
}

func (s *Section) EditConfigAsync(edit func(cfg *core.SectionConfig)) *thread.Future[CommitStatus] {
	return s.shared.runAsync(func(b *ProxyCommandBatch) { s.EditConfig(b, edit) })
}

func (s *Section) SetVisibility(batch *ProxyCommandBatch, visible bool) {
	s.EditConfig(batch, func(cfg *core.SectionConfig) { cfg.IsVisible = visible })
}

func (s *Section) SetVisibilityAsync(visible bool) *thread.Future[CommitStatus] {
	return s.shared.runAsync(func(b *ProxyCommandBatch) { s.SetVisibility(b, visible) })
}

func (s *Section) SetCastShadow(batch *ProxyCommandBatch, cast bool) {
	s.EditConfig(batch, func(cfg *core.SectionConfig) { cfg.CastsShadow = cast })
}

func (s *Section) SetCastShadowAsync(cast bool) *thread.Future[CommitStatus] {
	return s.shared.runAsync(func(b *ProxyCommandBatch) { s.SetCastShadow(b, cast) })
}

func (s *Section) UpdateStreamRange(batch *ProxyCommandBatch, rng core.StreamRange) {
	g := s.shared.guard
	g.WriteLock()
	defer g.WriteUnlock()
	s.rng = rng
	batch.Add(UpdateSectionRange{Key: s.key, Range: rng}, s.config.DrawType == core.DrawStatic)
	s.bounds.ClearCachedValue()
	s.shared.events.SectionStreamRangeChanged.Broadcast(s.key)
	s.shared.sectionBoundsChanged(s.key)
}

func (s *Section) UpdateStreamRangeAsync(rng core.StreamRange) *thread.Future[CommitStatus] {
	return s.shared.runAsync(func(b *ProxyCommandBatch) { s.UpdateStreamRange(b, rng) })
}

// GetLocalBounds returns the override bounds when set, otherwise the bounds
// of the position stream over this section's vertex range.
func (s *Section) GetLocalBounds() core.BoxSphereBounds {
	s.shared.guard.ReadLock()
	defer s.shared.guard.ReadUnlock()
	return s.bounds.Get(s.calculateBounds)
}

func (s *Section) calculateBounds() core.BoxSphereBounds {
	m := s.shared.Mesh()
	if m == nil {
		return core.DefaultBounds
	}
	group := m.GetSectionGroup(s.key.Group)
	if group == nil {
		return core.DefaultBounds
	}
	return group.boundsForRange(s.rng.Vertices)
}

func (s *Section) SetOverrideBounds(b core.BoxSphereBounds) {
	g := s.shared.guard
	g.WriteLock()
	defer g.WriteUnlock()
	s.bounds.SetUserSetBounds(b)
	s.shared.sectionBoundsChanged(s.key)
}

func (s *Section) ClearOverrideBounds() {
	g := s.shared.guard
	g.WriteLock()
	defer g.WriteUnlock()
	s.bounds.ClearUserSetBounds()
	s.shared.sectionBoundsChanged(s.key)
}

func (s *Section) OverrideBounds() (core.BoxSphereBounds, bool) {
	return s.bounds.UserSetBounds()
}

// invalidateBounds drops the computed bounds after the group's positions changed.
func (s *Section) invalidateBounds() {
	s.bounds.ClearCachedValue()
	s.shared.events.SectionBoundsChanged.Broadcast(s.key)
}

// Reset returns the section to its default config and an empty range.
func (s *Section) Reset(batch *ProxyCommandBatch) {
	g := s.shared.guard
	g.WriteLock()
	defer g.WriteUnlock()
	s.config = core.DefaultSectionConfig()
	s.rng = core.StreamRange{}
	s.bounds.Reset()
	s.InitializeProxy(batch)
}

func (s *Section) Serialize(ar *archive.Archive) {
	g := s.shared.guard
	if ar.IsLoading() {
		g.WriteLock()
		defer g.WriteUnlock()
	} else {
		g.ReadLock()
		defer g.ReadUnlock()
	}

	ar.Int32(&s.config.MaterialSlot)
	ar.DrawType(&s.config.DrawType)
	ar.Bool(&s.config.IsVisible)
	ar.Bool(&s.config.CastsShadow)
	ar.Bool(&s.config.IsMainPassRenderable)
	ar.Bool(&s.config.ForceOpaque)
	ar.StreamRange(&s.rng)
	if ar.IsLoading() {
		s.bounds.Reset()
	}
	serializeUserBounds(ar, &s.bounds)
}

// serializeUserBounds persists a node's override bounds when the archive supports them.
func serializeUserBounds(ar *archive.Archive, cache *core.BoundsCache) {
	if ar.Version() < core.VersionUserSetBounds {
		return
	}
	b, present := cache.UserSetBounds()
	ar.OptionalBounds(&b, &present)
	if ar.IsLoading() && ar.Err() == nil {
		if present {
			cache.SetUserSetBounds(b)
		} else {
			cache.ClearUserSetBounds()
		}
	}
}
