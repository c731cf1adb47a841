package data

import (
	"fmt"
	"slices"

	"github.com/gekko3d/realtimemesh/rt/archive"
	"github.com/gekko3d/realtimemesh/rt/core"
	"github.com/gekko3d/realtimemesh/rt/thread"
)

// LOD is one level of detail of a mesh and owns its section groups.
type LOD struct {
	shared *SharedResources
	key    core.LODKey
	config core.LODConfig
	groups map[core.SectionGroupKey]*SectionGroup
	bounds core.BoundsCache
}

func NewLOD(shared *SharedResources, key core.LODKey) *LOD {
	return &LOD{
		shared: shared,
		key:    key,
		config: core.DefaultLODConfig(),
		groups: map[core.SectionGroupKey]*SectionGroup{},
	}
}

func (l *LOD) Key() core.LODKey { return l.key }

func (l *LOD) Config() core.LODConfig {
	l.shared.guard.ReadLock()
	defer l.shared.guard.ReadUnlock()
	return l.config
}

func (l *LOD) Initialize(batch *ProxyCommandBatch, cfg core.LODConfig) {
	g := l.shared.guard
	g.WriteLock()
	defer g.WriteUnlock()
	l.config = cfg
	batch.Add(UpdateLODConfig{Key: l.key, Config: cfg}, false)
}

func (l *LOD) UpdateConfig(batch *ProxyCommandBatch, cfg core.LODConfig) {
	g := l.shared.guard
	g.WriteLock()
	defer g.WriteUnlock()
	l.config = cfg
	batch.Add(UpdateLODConfig{Key: l.key, Config: cfg}, false)
	l.shared.events.LODConfigChanged.Broadcast(l.key)
}

func (l *LOD) UpdateConfigAsync(cfg core.LODConfig) *thread.Future[CommitStatus] {
	return l.shared.runAsync(func(b *ProxyCommandBatch) { l.UpdateConfig(b, cfg) })
}

func (l *LOD) EditConfig(batch *ProxyCommandBatch, edit func(cfg *core.LODConfig)) {
	g := l.shared.guard
	g.WriteLock()
	defer g.WriteUnlock()
	cfg := l.config
	edit(&cfg)
	l.UpdateConfig(batch, cfg)
}

func (l *LOD) SetScreenSize(batch *ProxyCommandBatch, size float32) {
	l.EditConfig(batch, func(cfg *core.LODConfig) { cfg.ScreenSize = size })
}

func (l *LOD) SetVisibility(batch *ProxyCommandBatch, visible bool) {
	l.EditConfig(batch, func(cfg *core.LODConfig) { cfg.IsVisible = visible })
}

func (l *LOD) InitializeProxy(batch *ProxyCommandBatch) {
	l.shared.guard.ReadLock()
	defer l.shared.guard.ReadUnlock()
	batch.Add(UpdateLODConfig{Key: l.key, Config: l.config}, false)
	for _, k := range l.sortedGroupKeys() {
		batch.Add(CreateSectionGroup{Key: k}, false)
		l.groups[k].InitializeProxy(batch)
	}
}

// CreateOrUpdateSectionGroup creates the group or updates the config of an
// existing one. key must belong to this LOD.
func (l *LOD) CreateOrUpdateSectionGroup(batch *ProxyCommandBatch, key core.SectionGroupKey, cfg core.SectionGroupConfig) *SectionGroup {
	if !key.IsPartOf(l.key) {
		panic(fmt.Sprintf("data: section group %s does not belong to %s", key, l.key))
	}
	g := l.shared.guard
	g.WriteLock()
	defer g.WriteUnlock()

	if group, ok := l.groups[key]; ok {
		group.UpdateConfig(batch, cfg)
		l.shared.events.SectionGroupChanged.Broadcast(SectionGroupChange{Keys: []core.SectionGroupKey{key}, Change: Updated})
		return group
	}

	group := l.shared.factory.CreateSectionGroup(l.shared, key)
	l.groups[key] = group
	batch.Add(CreateSectionGroup{Key: key}, false)
	group.Initialize(batch, cfg)
	l.shared.events.SectionGroupChanged.Broadcast(SectionGroupChange{Keys: []core.SectionGroupKey{key}, Change: Added})
	l.childBoundsChanged()
	return group
}

func (l *LOD) CreateOrUpdateSectionGroupAsync(key core.SectionGroupKey, cfg core.SectionGroupConfig) *thread.Future[CommitStatus] {
	return l.shared.runAsync(func(b *ProxyCommandBatch) { l.CreateOrUpdateSectionGroup(b, key, cfg) })
}

func (l *LOD) RemoveSectionGroup(batch *ProxyCommandBatch, key core.SectionGroupKey) bool {
	g := l.shared.guard
	g.WriteLock()
	defer g.WriteUnlock()
	if _, ok := l.groups[key]; !ok {
		return false
	}
	delete(l.groups, key)
	batch.Add(RemoveSectionGroup{Key: key}, true)
	l.shared.events.SectionGroupChanged.Broadcast(SectionGroupChange{Keys: []core.SectionGroupKey{key}, Change: Removed})
	l.childBoundsChanged()
	return true
}

func (l *LOD) RemoveSectionGroupAsync(key core.SectionGroupKey) *thread.Future[CommitStatus] {
	return l.shared.runAsync(func(b *ProxyCommandBatch) { l.RemoveSectionGroup(b, key) })
}

func (l *LOD) RemoveAllSectionGroups(batch *ProxyCommandBatch) {
	g := l.shared.guard
	g.WriteLock()
	defer g.WriteUnlock()
	keys := l.sortedGroupKeys()
	if len(keys) == 0 {
		return
	}
	for _, k := range keys {
		delete(l.groups, k)
		batch.Add(RemoveSectionGroup{Key: k}, true)
	}
	l.shared.events.SectionGroupChanged.Broadcast(SectionGroupChange{Keys: keys, Change: Removed})
	l.childBoundsChanged()
}

func (l *LOD) GetSectionGroup(key core.SectionGroupKey) *SectionGroup {
	l.shared.guard.ReadLock()
	defer l.shared.guard.ReadUnlock()
	return l.groups[key]
}

func (l *LOD) NumSectionGroups() int {
	l.shared.guard.ReadLock()
	defer l.shared.guard.ReadUnlock()
	return len(l.groups)
}

func (l *LOD) SectionGroupKeys() []core.SectionGroupKey {
	l.shared.guard.ReadLock()
	defer l.shared.guard.ReadUnlock()
	return l.sortedGroupKeys()
}

func (l *LOD) sortedGroupKeys() []core.SectionGroupKey {
	keys := make([]core.SectionGroupKey, 0, len(l.groups))
	for k := range l.groups {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, func(a, b core.SectionGroupKey) int {
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

// ProcessSectionGroups calls fn for each group in key order under the read lock.
func (l *LOD) ProcessSectionGroups(fn func(g *SectionGroup)) {
	l.shared.guard.ReadLock()
	defer l.shared.guard.ReadUnlock()
	for _, k := range l.sortedGroupKeys() {
		fn(l.groups[k])
	}
}

func (l *LOD) GetLocalBounds() core.BoxSphereBounds {
	l.shared.guard.ReadLock()
	defer l.shared.guard.ReadUnlock()
	return l.bounds.Get(l.calculateBounds)
}

func (l *LOD) calculateBounds() core.BoxSphereBounds {
	if len(l.groups) == 0 {
		return core.DefaultBounds
	}
	all := make([]core.BoxSphereBounds, 0, len(l.groups))
	for _, k := range l.sortedGroupKeys() {
		all = append(all, l.groups[k].GetLocalBounds())
	}
	return core.UnionAll(all)
}

func (l *LOD) SetOverrideBounds(b core.BoxSphereBounds) {
	g := l.shared.guard
	g.WriteLock()
	defer g.WriteUnlock()
	l.bounds.SetUserSetBounds(b)
	l.shared.lodBoundsChanged(l.key)
}

func (l *LOD) ClearOverrideBounds() {
	g := l.shared.guard
	g.WriteLock()
	defer g.WriteUnlock()
	l.bounds.ClearUserSetBounds()
	l.shared.lodBoundsChanged(l.key)
}

func (l *LOD) childBoundsChanged() {
	l.bounds.ClearCachedValue()
	l.shared.lodBoundsChanged(l.key)
}

// Reset removes all section groups and restores the default config.
func (l *LOD) Reset(batch *ProxyCommandBatch) {
	g := l.shared.guard
	g.WriteLock()
	defer g.WriteUnlock()
	removed := l.sortedGroupKeys()
	l.groups = map[core.SectionGroupKey]*SectionGroup{}
	l.config = core.DefaultLODConfig()
	l.bounds.Reset()
	batch.Add(ResetLOD{Key: l.key}, true)
	batch.Add(UpdateLODConfig{Key: l.key, Config: l.config}, false)
	if len(removed) > 0 {
		l.shared.events.SectionGroupChanged.Broadcast(SectionGroupChange{Keys: removed, Change: Removed})
	}
	l.childBoundsChanged()
}

func (l *LOD) ResetAsync() *thread.Future[CommitStatus] {
	return l.shared.runAsync(func(b *ProxyCommandBatch) { l.Reset(b) })
}

func (l *LOD) Serialize(ar *archive.Archive) {
	g := l.shared.guard
	if ar.IsLoading() {
		g.WriteLock()
		defer g.WriteUnlock()
	} else {
		g.ReadLock()
		defer g.ReadUnlock()
	}

	ar.Bool(&l.config.IsVisible)
	ar.Float32(&l.config.ScreenSize)

	keys := l.sortedGroupKeys()
	n := len(keys)
	ar.Count(&n)
	if ar.IsLoading() {
		l.groups = map[core.SectionGroupKey]*SectionGroup{}
		for i := 0; i < n && ar.Err() == nil; i++ {
			key := l.serializeGroupKey(ar, core.SectionGroupKey{}, i)
			group := l.shared.factory.CreateSectionGroup(l.shared, key)
			group.Serialize(ar)
			l.groups[key] = group
		}
	} else {
		for i, k := range keys {
			l.serializeGroupKey(ar, k, i)
			l.groups[k].Serialize(ar)
		}
	}

	if ar.IsLoading() {
		l.bounds.Reset()
	}
	serializeUserBounds(ar, &l.bounds)
}

func (l *LOD) serializeGroupKey(ar *archive.Archive, key core.SectionGroupKey, index int) core.SectionGroupKey {
	if ar.Version() >= core.VersionDataRestructure {
		name := key.Name
		ar.String(&name)
		return core.NewSectionGroupKey(l.key, name)
	}
	idx := int32(index)
	ar.Int32(&idx)
	return core.SectionGroupKeyFromIndex(l.key, int(idx))
}
