package data

import (
	"fmt"
	"slices"

	"github.com/gekko3d/realtimemesh/rt/archive"
	"github.com/gekko3d/realtimemesh/rt/core"
	"github.com/gekko3d/realtimemesh/rt/thread"
)

// SectionGroupExtension attaches geometry specific behaviour to a section
// group created by a substituted Factory.
type SectionGroupExtension interface {
	// AppendCollision adds the group's collision geometry to out. Returning
	// true replaces the default gathering of visible sections.
	AppendCollision(g *SectionGroup, out *CollisionData) bool
}

// SectionGroup owns a set of streams and the sections that draw ranges of them.
type SectionGroup struct {
	shared    *SharedResources
	key       core.SectionGroupKey
	config    core.SectionGroupConfig
	streams   core.StreamSet
	sections  map[core.SectionKey]*Section
	bounds    core.BoundsCache
	extension SectionGroupExtension
}

func NewSectionGroup(shared *SharedResources, key core.SectionGroupKey) *SectionGroup {
	return &SectionGroup{
		shared:   shared,
		key:      key,
		config:   core.DefaultSectionGroupConfig(),
		streams:  core.StreamSet{},
		sections: map[core.SectionKey]*Section{},
	}
}

func (g *SectionGroup) Key() core.SectionGroupKey { return g.key }

func (g *SectionGroup) Extension() SectionGroupExtension { return g.extension }

// SetExtension binds ext. Factories call it right after creating the group.
func (g *SectionGroup) SetExtension(ext SectionGroupExtension) { g.extension = ext }

func (g *SectionGroup) Config() core.SectionGroupConfig {
	g.shared.guard.ReadLock()
	defer g.shared.guard.ReadUnlock()
	return g.config
}

// ShouldRecreateProxyOnStreamChange is always true: stream layout changes
// invalidate the vertex factory of any presented proxy.
func (g *SectionGroup) ShouldRecreateProxyOnStreamChange() bool { return true }

func (g *SectionGroup) Initialize(batch *ProxyCommandBatch, cfg core.SectionGroupConfig) {
	lock := g.shared.guard
	lock.WriteLock()
	defer lock.WriteUnlock()
	g.config = cfg
	batch.Add(UpdateSectionGroupConfig{Key: g.key, Config: cfg}, false)
}

func (g *SectionGroup) UpdateConfig(batch *ProxyCommandBatch, cfg core.SectionGroupConfig) {
	lock := g.shared.guard
	lock.WriteLock()
	defer lock.WriteUnlock()
	recreate := g.config.DrawType != cfg.DrawType
	g.config = cfg
	batch.Add(UpdateSectionGroupConfig{Key: g.key, Config: cfg}, recreate)
	g.shared.events.SectionGroupConfigChanged.Broadcast(g.key)
}

func (g *SectionGroup) UpdateConfigAsync(cfg core.SectionGroupConfig) *thread.Future[CommitStatus] {
	return g.shared.runAsync(func(b *ProxyCommandBatch) { g.UpdateConfig(b, cfg) })
}

// InitializeProxy enqueues the group's config, streams and sections.
func (g *SectionGroup) InitializeProxy(batch *ProxyCommandBatch) {
	g.shared.guard.ReadLock()
	defer g.shared.guard.ReadUnlock()
	batch.Add(UpdateSectionGroupConfig{Key: g.key, Config: g.config}, false)
	for _, k := range g.streams.Keys() {
		batch.Add(CreateOrUpdateStream{Group: g.key, Stream: g.streams[k]}, true)
	}
	for _, k := range g.sortedSectionKeys() {
		batch.Add(CreateSection{Key: k}, false)
		g.sections[k].InitializeProxy(batch)
	}
}

// Streams

// CreateOrUpdateStream stores s, replacing any stream with the same key.
// The group takes ownership: s must not be mutated afterwards.
func (g *SectionGroup) CreateOrUpdateStream(batch *ProxyCommandBatch, s *core.Stream) {
	lock := g.shared.guard
	lock.WriteLock()
	defer lock.WriteUnlock()

	change := Added
	if _, ok := g.streams[s.Key]; ok {
		change = Updated
	}
	g.streams.Add(s)
	batch.Add(CreateOrUpdateStream{Group: g.key, Stream: s}, g.ShouldRecreateProxyOnStreamChange())
	g.shared.events.SectionGroupStreamChanged.Broadcast(StreamChange{Group: g.key, Stream: s.Key, Change: change})
	if s.Key == core.PositionStreamKey {
		g.positionsChanged()
	}
}

func (g *SectionGroup) CreateOrUpdateStreamAsync(s *core.Stream) *thread.Future[CommitStatus] {
	return g.shared.runAsync(func(b *ProxyCommandBatch) { g.CreateOrUpdateStream(b, s) })
}

func (g *SectionGroup) RemoveStream(batch *ProxyCommandBatch, key core.StreamKey) bool {
	lock := g.shared.guard
	lock.WriteLock()
	defer lock.WriteUnlock()

	if _, ok := g.streams[key]; !ok {
		return false
	}
	delete(g.streams, key)
	batch.Add(RemoveStream{Group: g.key, Key: key}, g.ShouldRecreateProxyOnStreamChange())
	g.shared.events.SectionGroupStreamChanged.Broadcast(StreamChange{Group: g.key, Stream: key, Change: Removed})
	if key == core.PositionStreamKey {
		g.positionsChanged()
	}
	return true
}

func (g *SectionGroup) RemoveStreamAsync(key core.StreamKey) *thread.Future[CommitStatus] {
	return g.shared.runAsync(func(b *ProxyCommandBatch) { g.RemoveStream(b, key) })
}

// SetAllStreams replaces the whole stream set. Streams not in set are removed.
func (g *SectionGroup) SetAllStreams(batch *ProxyCommandBatch, set core.StreamSet) {
	lock := g.shared.guard
	lock.WriteLock()
	defer lock.WriteUnlock()
	for _, k := range g.streams.Keys() {
		if _, keep := set[k]; !keep {
			g.RemoveStream(batch, k)
		}
	}
	for _, k := range set.Keys() {
		g.CreateOrUpdateStream(batch, set[k])
	}
}

func (g *SectionGroup) SetAllStreamsAsync(set core.StreamSet) *thread.Future[CommitStatus] {
	return g.shared.runAsync(func(b *ProxyCommandBatch) { g.SetAllStreams(b, set) })
}

func (g *SectionGroup) GetStream(key core.StreamKey) (*core.Stream, bool) {
	g.shared.guard.ReadLock()
	defer g.shared.guard.ReadUnlock()
	return g.streams.Find(key)
}

func (g *SectionGroup) HasStream(key core.StreamKey) bool {
	_, ok := g.GetStream(key)
	return ok
}

func (g *SectionGroup) StreamKeys() []core.StreamKey {
	g.shared.guard.ReadLock()
	defer g.shared.guard.ReadUnlock()
	return g.streams.Keys()
}

// positionsChanged invalidates every section's computed bounds. Callers hold the write lock.
func (g *SectionGroup) positionsChanged() {
	for _, s := range g.sections {
		s.invalidateBounds()
	}
	g.childBoundsChanged()
}

// boundsForRange bounds the position stream over vertices.
func (g *SectionGroup) boundsForRange(vertices core.Interval) core.BoxSphereBounds {
	g.shared.guard.ReadLock()
	defer g.shared.guard.ReadUnlock()
	pos, ok := g.streams.Find(core.PositionStreamKey)
	if !ok {
		return core.DefaultBounds
	}
	return core.BoundsFromPositionStream(pos, vertices)
}

// Sections

// CreateOrUpdateSection creates the section or updates an existing one in place.
// key must belong to this group.
func (g *SectionGroup) CreateOrUpdateSection(batch *ProxyCommandBatch, key core.SectionKey, cfg core.SectionConfig, rng core.StreamRange) *Section {
	if !key.IsPartOf(g.key) {
		panic(fmt.Sprintf("data: section %s does not belong to %s", key, g.key))
	}
	lock := g.shared.guard
	lock.WriteLock()
	defer lock.WriteUnlock()

	if s, ok := g.sections[key]; ok {
		s.UpdateConfig(batch, cfg)
		s.UpdateStreamRange(batch, rng)
		g.shared.events.SectionChanged.Broadcast(SectionChange{Keys: []core.SectionKey{key}, Change: Updated})
		return s
	}

	s := g.shared.factory.CreateSection(g.shared, key)
	g.sections[key] = s
	batch.Add(CreateSection{Key: key}, false)
	s.Initialize(batch, cfg, rng)
	g.shared.events.SectionChanged.Broadcast(SectionChange{Keys: []core.SectionKey{key}, Change: Added})
	g.childBoundsChanged()
	return s
}

func (g *SectionGroup) CreateOrUpdateSectionAsync(key core.SectionKey, cfg core.SectionConfig, rng core.StreamRange) *thread.Future[CommitStatus] {
	return g.shared.runAsync(func(b *ProxyCommandBatch) { g.CreateOrUpdateSection(b, key, cfg, rng) })
}

func (g *SectionGroup) UpdateSectionConfig(batch *ProxyCommandBatch, key core.SectionKey, cfg core.SectionConfig) bool {
	s := g.GetSection(key)
	if s == nil {
		g.shared.log.Warnf("realtime mesh %s: update config of unknown section %s", g.shared.id, key)
		return false
	}
	s.UpdateConfig(batch, cfg)
	return true
}

func (g *SectionGroup) UpdateSectionStreamRange(batch *ProxyCommandBatch, key core.SectionKey, rng core.StreamRange) bool {
	s := g.GetSection(key)
	if s == nil {
		g.shared.log.Warnf("realtime mesh %s: update range of unknown section %s", g.shared.id, key)
		return false
	}
	s.UpdateStreamRange(batch, rng)
	return true
}

func (g *SectionGroup) RemoveSection(batch *ProxyCommandBatch, key core.SectionKey) bool {
	lock := g.shared.guard
	lock.WriteLock()
	defer lock.WriteUnlock()
	if _, ok := g.sections[key]; !ok {
		return false
	}
	delete(g.sections, key)
	batch.Add(RemoveSection{Key: key}, true)
	g.shared.events.SectionChanged.Broadcast(SectionChange{Keys: []core.SectionKey{key}, Change: Removed})
	g.childBoundsChanged()
	return true
}

func (g *SectionGroup) RemoveSectionAsync(key core.SectionKey) *thread.Future[CommitStatus] {
	return g.shared.runAsync(func(b *ProxyCommandBatch) { g.RemoveSection(b, key) })
}

func (g *SectionGroup) RemoveAllSections(batch *ProxyCommandBatch) {
	lock := g.shared.guard
	lock.WriteLock()
	defer lock.WriteUnlock()
	keys := g.sortedSectionKeys()
	if len(keys) == 0 {
		return
	}
	for _, k := range keys {
		delete(g.sections, k)
		batch.Add(RemoveSection{Key: k}, true)
	}
	g.shared.events.SectionChanged.Broadcast(SectionChange{Keys: keys, Change: Removed})
	g.childBoundsChanged()
}

func (g *SectionGroup) GetSection(key core.SectionKey) *Section {
	g.shared.guard.ReadLock()
	defer g.shared.guard.ReadUnlock()
	return g.sections[key]
}

func (g *SectionGroup) NumSections() int {
	g.shared.guard.ReadLock()
	defer g.shared.guard.ReadUnlock()
	return len(g.sections)
}

// SectionKeys returns the section keys in sorted order.
func (g *SectionGroup) SectionKeys() []core.SectionKey {
	g.shared.guard.ReadLock()
	defer g.shared.guard.ReadUnlock()
	return g.sortedSectionKeys()
}

func (g *SectionGroup) sortedSectionKeys() []core.SectionKey {
	keys := make([]core.SectionKey, 0, len(g.sections))
	for k := range g.sections {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, func(a, b core.SectionKey) int {
		switch {
		case a.Less(b):
			return -1
		case b.Less(a):
			return 1
		}
		return 0
	})
	return keys
}

// ProcessSections calls fn for each section in key order under the read lock.
func (g *SectionGroup) ProcessSections(fn func(s *Section)) {
	g.shared.guard.ReadLock()
	defer g.shared.guard.ReadUnlock()
	for _, k := range g.sortedSectionKeys() {
		fn(g.sections[k])
	}
}

// GetInUseRange is the hull of all section ranges.
func (g *SectionGroup) GetInUseRange() core.StreamRange {
	g.shared.guard.ReadLock()
	defer g.shared.guard.ReadUnlock()
	var hull core.StreamRange
	for _, s := range g.sections {
		hull = hull.Hull(s.rng)
	}
	return hull
}

// Bounds

func (g *SectionGroup) GetLocalBounds() core.BoxSphereBounds {
	g.shared.guard.ReadLock()
	defer g.shared.guard.ReadUnlock()
	return g.bounds.Get(g.calculateBounds)
}

func (g *SectionGroup) calculateBounds() core.BoxSphereBounds {
	if len(g.sections) == 0 {
		return core.DefaultBounds
	}
	all := make([]core.BoxSphereBounds, 0, len(g.sections))
	for _, k := range g.sortedSectionKeys() {
		all = append(all, g.sections[k].GetLocalBounds())
	}
	return core.UnionAll(all)
}

func (g *SectionGroup) SetOverrideBounds(b core.BoxSphereBounds) {
	lock := g.shared.guard
	lock.WriteLock()
	defer lock.WriteUnlock()
	g.bounds.SetUserSetBounds(b)
	g.shared.sectionGroupBoundsChanged(g.key)
}

func (g *SectionGroup) ClearOverrideBounds() {
	lock := g.shared.guard
	lock.WriteLock()
	defer lock.WriteUnlock()
	g.bounds.ClearUserSetBounds()
	g.shared.sectionGroupBoundsChanged(g.key)
}

// childBoundsChanged is called by sections, under the write lock.
func (g *SectionGroup) childBoundsChanged() {
	g.bounds.ClearCachedValue()
	g.shared.sectionGroupBoundsChanged(g.key)
}

// Reset removes all sections and streams and restores the default config.
func (g *SectionGroup) Reset(batch *ProxyCommandBatch) {
	lock := g.shared.guard
	lock.WriteLock()
	defer lock.WriteUnlock()
	removed := g.sortedSectionKeys()
	g.sections = map[core.SectionKey]*Section{}
	g.streams = core.StreamSet{}
	g.config = core.DefaultSectionGroupConfig()
	g.bounds.Reset()
	batch.Add(ResetSectionGroup{Key: g.key}, true)
	if len(removed) > 0 {
		g.shared.events.SectionChanged.Broadcast(SectionChange{Keys: removed, Change: Removed})
	}
	g.childBoundsChanged()
}

func (g *SectionGroup) ResetAsync() *thread.Future[CommitStatus] {
	return g.shared.runAsync(func(b *ProxyCommandBatch) { g.Reset(b) })
}

// Serialize persists config, streams, sections and override bounds. Archives
// older than VersionDataRestructure key sections by index.
func (g *SectionGroup) Serialize(ar *archive.Archive) {
	lock := g.shared.guard
	if ar.IsLoading() {
		lock.WriteLock()
		defer lock.WriteUnlock()
	} else {
		lock.ReadLock()
		defer lock.ReadUnlock()
	}

	if ar.Version() >= core.VersionSectionGroupConfig {
		ar.DrawType(&g.config.DrawType)
	}

	streamKeys := g.streams.Keys()
	n := len(streamKeys)
	ar.Count(&n)
	if ar.IsLoading() {
		g.streams = core.StreamSet{}
		for i := 0; i < n && ar.Err() == nil; i++ {
			s := &core.Stream{}
			ar.Stream(s)
			g.streams.Add(s)
		}
	} else {
		for _, k := range streamKeys {
			ar.Stream(g.streams[k])
		}
	}

	sectionKeys := g.sortedSectionKeys()
	n = len(sectionKeys)
	ar.Count(&n)
	if ar.IsLoading() {
		g.sections = map[core.SectionKey]*Section{}
		for i := 0; i < n && ar.Err() == nil; i++ {
			key := g.serializeSectionKey(ar, core.SectionKey{}, i)
			s := g.shared.factory.CreateSection(g.shared, key)
			s.Serialize(ar)
			g.sections[key] = s
		}
	} else {
		for i, k := range sectionKeys {
			g.serializeSectionKey(ar, k, i)
			g.sections[k].Serialize(ar)
		}
	}

	if ar.IsLoading() {
		g.bounds.Reset()
	}
	serializeUserBounds(ar, &g.bounds)
}

func (g *SectionGroup) serializeSectionKey(ar *archive.Archive, key core.SectionKey, index int) core.SectionKey {
	if ar.Version() >= core.VersionDataRestructure {
		name := key.Name
		ar.String(&name)
		return core.NewSectionKey(g.key, name)
	}
	idx := int32(index)
	ar.Int32(&idx)
	return core.SectionKeyFromIndex(g.key, int(idx))
}
