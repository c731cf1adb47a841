package data

import (
	"fmt"
	"io"

	"github.com/gekko3d/realtimemesh/rt/archive"
	"github.com/gekko3d/realtimemesh/rt/core"
	"github.com/gekko3d/realtimemesh/rt/guard"
	"github.com/gekko3d/realtimemesh/rt/proxy"
	"github.com/gekko3d/realtimemesh/rt/thread"
)

// Mesh is the root of the data hierarchy. It always has at least one LOD.
type Mesh struct {
	shared *SharedResources
	config core.MeshConfig
	lods   []*LOD
	bounds core.BoundsCache

	renderProxy *proxy.RenderProxy
}

// NewMesh creates a mesh with a single default LOD.
func NewMesh(shared *SharedResources) *Mesh {
	m := &Mesh{shared: shared, config: core.DefaultMeshConfig()}
	shared.setMesh(m)
	m.lods = []*LOD{shared.factory.CreateLOD(shared, 0)}
	return m
}

func (m *Mesh) Shared() *SharedResources { return m.shared }

func (m *Mesh) Config() core.MeshConfig {
	m.shared.guard.ReadLock()
	defer m.shared.guard.ReadUnlock()
	return m.config
}

func (m *Mesh) UpdateConfig(batch *ProxyCommandBatch, cfg core.MeshConfig) {
	g := m.shared.guard
	g.WriteLock()
	defer g.WriteUnlock()
	m.config = cfg
	batch.Add(UpdateMeshConfig{Config: cfg}, false)
	m.shared.events.MeshConfigChanged.Broadcast(cfg)
}

func (m *Mesh) UpdateConfigAsync(cfg core.MeshConfig) *thread.Future[CommitStatus] {
	return m.shared.runAsync(func(b *ProxyCommandBatch) { m.UpdateConfig(b, cfg) })
}

func (m *Mesh) EditConfig(batch *ProxyCommandBatch, edit func(cfg *core.MeshConfig)) {
	g := m.shared.guard
	g.WriteLock()
	defer g.WriteUnlock()
	cfg := m.config
	edit(&cfg)
	m.UpdateConfig(batch, cfg)
}

// LODs

// InitializeLODs replaces every LOD with one fresh LOD per config. The call
// is ignored when configs is empty or longer than MaxLODs.
func (m *Mesh) InitializeLODs(batch *ProxyCommandBatch, configs []core.LODConfig) bool {
	if len(configs) == 0 || len(configs) > core.MaxLODs {
		m.shared.log.Errorf("realtime mesh %s: cannot initialize %d LODs, want 1..%d", m.shared.id, len(configs), core.MaxLODs)
		return false
	}
	g := m.shared.guard
	g.WriteLock()
	defer g.WriteUnlock()

	removed := m.lodKeys()
	m.lods = m.lods[:0]
	batch.Add(ResetProxy{}, true)
	batch.Add(UpdateMeshConfig{Config: m.config}, false)
	m.shared.events.LODChanged.Broadcast(LODChange{Keys: removed, Change: Removed})

	added := make([]core.LODKey, 0, len(configs))
	for i, cfg := range configs {
		key := core.LODKey(i)
		lod := m.shared.factory.CreateLOD(m.shared, key)
		m.lods = append(m.lods, lod)
		batch.Add(CreateLOD{Key: key}, false)
		lod.Initialize(batch, cfg)
		added = append(added, key)
	}
	m.shared.events.LODChanged.Broadcast(LODChange{Keys: added, Change: Added})
	m.childBoundsChanged()
	return true
}

func (m *Mesh) InitializeLODsAsync(configs []core.LODConfig) *thread.Future[CommitStatus] {
	return m.shared.runAsync(func(b *ProxyCommandBatch) { m.InitializeLODs(b, configs) })
}

// AddLOD appends a LOD. It fails once MaxLODs exist.
func (m *Mesh) AddLOD(batch *ProxyCommandBatch, cfg core.LODConfig) (core.LODKey, bool) {
	g := m.shared.guard
	g.WriteLock()
	defer g.WriteUnlock()

	if len(m.lods) >= core.MaxLODs {
		m.shared.log.Errorf("realtime mesh %s: cannot add LOD, already at the limit of %d", m.shared.id, core.MaxLODs)
		return core.InvalidLODKey, false
	}
	key := core.LODKey(len(m.lods))
	lod := m.shared.factory.CreateLOD(m.shared, key)
	m.lods = append(m.lods, lod)
	batch.Add(CreateLOD{Key: key}, false)
	lod.Initialize(batch, cfg)
	m.shared.events.LODChanged.Broadcast(LODChange{Keys: []core.LODKey{key}, Change: Added})
	m.childBoundsChanged()
	return key, true
}

func (m *Mesh) AddLODAsync(cfg core.LODConfig) *thread.Future[CommitStatus] {
	return m.shared.runAsync(func(b *ProxyCommandBatch) { m.AddLOD(b, cfg) })
}

// RemoveTrailingLOD drops the last LOD. The last remaining LOD cannot be removed.
func (m *Mesh) RemoveTrailingLOD(batch *ProxyCommandBatch) bool {
	g := m.shared.guard
	g.WriteLock()
	defer g.WriteUnlock()

	if len(m.lods) <= 1 {
		m.shared.log.Errorf("realtime mesh %s: cannot remove the only LOD", m.shared.id)
		return false
	}
	last := m.lods[len(m.lods)-1]
	m.lods = m.lods[:len(m.lods)-1]
	batch.Add(RemoveTrailingLOD{Key: last.key}, true)
	m.shared.events.LODChanged.Broadcast(LODChange{Keys: []core.LODKey{last.key}, Change: Removed})
	m.childBoundsChanged()
	return true
}

func (m *Mesh) RemoveTrailingLODAsync() *thread.Future[CommitStatus] {
	return m.shared.runAsync(func(b *ProxyCommandBatch) { m.RemoveTrailingLOD(b) })
}

func (m *Mesh) GetNumLODs() int {
	m.shared.guard.ReadLock()
	defer m.shared.guard.ReadUnlock()
	return len(m.lods)
}

func (m *Mesh) GetLOD(key core.LODKey) *LOD {
	m.shared.guard.ReadLock()
	defer m.shared.guard.ReadUnlock()
	if int(key) >= len(m.lods) {
		return nil
	}
	return m.lods[key]
}

func (m *Mesh) GetSectionGroup(key core.SectionGroupKey) *SectionGroup {
	if lod := m.GetLOD(key.LOD); lod != nil {
		return lod.GetSectionGroup(key)
	}
	return nil
}

func (m *Mesh) GetSection(key core.SectionKey) *Section {
	if g := m.GetSectionGroup(key.Group); g != nil {
		return g.GetSection(key)
	}
	return nil
}

// ProcessLODs calls fn for each LOD in order under the read lock.
func (m *Mesh) ProcessLODs(fn func(l *LOD)) {
	m.shared.guard.ReadLock()
	defer m.shared.guard.ReadUnlock()
	for _, l := range m.lods {
		fn(l)
	}
}

func (m *Mesh) lodKeys() []core.LODKey {
	keys := make([]core.LODKey, len(m.lods))
	for i, l := range m.lods {
		keys[i] = l.key
	}
	return keys
}

// Bounds

// GetLocalBounds is the union of all LOD bounds, or the override when set.
func (m *Mesh) GetLocalBounds() core.BoxSphereBounds {
	m.shared.guard.ReadLock()
	defer m.shared.guard.ReadUnlock()
	return m.bounds.Get(m.calculateBounds)
}

func (m *Mesh) calculateBounds() core.BoxSphereBounds {
	if len(m.lods) == 0 {
		return core.DefaultBounds
	}
	all := make([]core.BoxSphereBounds, 0, len(m.lods))
	for _, l := range m.lods {
		all = append(all, l.GetLocalBounds())
	}
	return core.UnionAll(all)
}

func (m *Mesh) SetOverrideBounds(b core.BoxSphereBounds) {
	g := m.shared.guard
	g.WriteLock()
	defer g.WriteUnlock()
	m.bounds.SetUserSetBounds(b)
	m.shared.events.MeshBoundsChanged.Broadcast(struct{}{})
}

func (m *Mesh) ClearOverrideBounds() {
	g := m.shared.guard
	g.WriteLock()
	defer g.WriteUnlock()
	m.bounds.ClearUserSetBounds()
	m.shared.events.MeshBoundsChanged.Broadcast(struct{}{})
}

func (m *Mesh) childBoundsChanged() {
	m.bounds.ClearCachedValue()
	m.shared.events.MeshBoundsChanged.Broadcast(struct{}{})
}

// Render proxy

// GetRenderProxy returns the proxy, creating it when asked to and none exists.
// It must not be called while holding a read lock on the guard.
func (m *Mesh) GetRenderProxy(createIfNotExists bool) *proxy.RenderProxy {
	lock := guard.NewScopeRead(m.shared.guard)
	p := m.renderProxy
	lock.Unlock()
	if p != nil || !createIfNotExists {
		return p
	}
	return m.CreateRenderProxy(false)
}

// CreateRenderProxy builds a proxy from the full data state. An existing
// proxy is returned as is unless forceRecreate is set, in which case it is
// replaced and the old one is released on the render thread. The call
// returns after the render thread applied the initial state.
func (m *Mesh) CreateRenderProxy(forceRecreate bool) *proxy.RenderProxy {
	g := m.shared.guard
	g.WriteLock()
	defer g.WriteUnlock()

	if m.renderProxy != nil && !forceRecreate {
		return m.renderProxy
	}
	p := m.shared.factory.CreateRenderProxy(m.shared)
	if p == nil {
		m.shared.log.Errorf("realtime mesh %s: factory returned no render proxy", m.shared.id)
		return nil
	}
	if old := m.renderProxy; old != nil {
		if err := old.Release(); err != nil {
			m.shared.log.Warnf("realtime mesh %s: release render proxy: %v", m.shared.id, err)
		}
	}
	m.renderProxy = p
	m.shared.setProxy(p)

	batch := newCommandBatch(m.shared, p)
	m.InitializeProxy(batch)
	_, applied := batch.dispatch(p)
	// The owner notification needs the game thread, which may be the caller
	// or may be blocked on this guard; only the render side is awaited.
	<-applied
	return p
}

// InitializeProxy enqueues the mesh's full state.
func (m *Mesh) InitializeProxy(batch *ProxyCommandBatch) {
	m.shared.guard.ReadLock()
	defer m.shared.guard.ReadUnlock()
	batch.Add(UpdateMeshConfig{Config: m.config}, true)
	for _, l := range m.lods {
		batch.Add(CreateLOD{Key: l.key}, false)
		l.InitializeProxy(batch)
	}
}

// ReleaseRenderProxy drops the proxy. Batches opened against it commit as
// CommitNoProxy; GetRenderProxy(true) builds a new one from the data.
func (m *Mesh) ReleaseRenderProxy() {
	g := m.shared.guard
	g.WriteLock()
	defer g.WriteUnlock()
	m.releaseProxy()
}

func (m *Mesh) releaseProxy() {
	p := m.renderProxy
	if p == nil {
		return
	}
	m.renderProxy = nil
	m.shared.setProxy(nil)
	if err := p.Release(); err != nil {
		m.shared.log.Warnf("realtime mesh %s: release render proxy: %v", m.shared.id, err)
	}
}

// Reset returns the mesh to a single default LOD. With removeRenderProxy the
// proxy is released instead of being reset in place.
func (m *Mesh) Reset(batch *ProxyCommandBatch, removeRenderProxy bool) {
	g := m.shared.guard
	g.WriteLock()
	defer g.WriteUnlock()

	removed := m.lodKeys()
	m.config = core.DefaultMeshConfig()
	m.lods = []*LOD{m.shared.factory.CreateLOD(m.shared, 0)}
	m.bounds.Reset()
	m.shared.events.LODChanged.Broadcast(LODChange{Keys: removed, Change: Removed})
	m.shared.events.LODChanged.Broadcast(LODChange{Keys: []core.LODKey{0}, Change: Added})
	m.shared.events.MeshBoundsChanged.Broadcast(struct{}{})

	if removeRenderProxy {
		m.releaseProxy()
		return
	}
	batch.Add(ResetProxy{}, true)
	batch.Add(UpdateMeshConfig{Config: m.config}, false)
	batch.Add(CreateLOD{Key: 0}, false)
	m.lods[0].InitializeProxy(batch)
}

func (m *Mesh) ResetAsync(removeRenderProxy bool) *thread.Future[CommitStatus] {
	return m.shared.runAsync(func(b *ProxyCommandBatch) { m.Reset(b, removeRenderProxy) })
}

// Persistence

// Serialize reads or writes the mesh body. Loading replaces the whole
// hierarchy without touching the proxy; see Load.
func (m *Mesh) Serialize(ar *archive.Archive) {
	g := m.shared.guard
	if ar.IsLoading() {
		g.WriteLock()
		defer g.WriteUnlock()
		m.load(ar)
		return
	}
	g.ReadLock()
	defer g.ReadUnlock()

	ar.Int32(&m.config.ForcedLOD)
	n := len(m.lods)
	ar.Count(&n)
	for _, l := range m.lods {
		l.Serialize(ar)
	}
	serializeUserBounds(ar, &m.bounds)
}

// load reads the whole body before touching the mesh, so a failed read
// leaves config, LODs and bounds as they were.
func (m *Mesh) load(ar *archive.Archive) {
	forced := m.config.ForcedLOD
	ar.Int32(&forced)
	n := 0
	ar.Count(&n)
	if ar.Err() == nil && (n == 0 || n > core.MaxLODs) {
		ar.Fail(fmt.Errorf("archive: %d LODs, want 1..%d", n, core.MaxLODs))
	}
	lods := make([]*LOD, 0, n)
	for i := 0; i < n && ar.Err() == nil; i++ {
		lod := m.shared.factory.CreateLOD(m.shared, core.LODKey(i))
		lod.Serialize(ar)
		lods = append(lods, lod)
	}
	var loaded core.BoundsCache
	serializeUserBounds(ar, &loaded)
	if ar.Err() != nil {
		return
	}

	m.config.ForcedLOD = forced
	m.lods = lods
	m.bounds.Reset()
	if b, ok := loaded.UserSetBounds(); ok {
		m.bounds.SetUserSetBounds(b)
	}
}

// Save writes a versioned archive of the mesh to w.
func (m *Mesh) Save(w io.Writer) error {
	return m.SaveVersion(w, core.VersionLatest)
}

// SaveVersion writes an archive in the layout of an older version.
func (m *Mesh) SaveVersion(w io.Writer, version int32) error {
	ar := archive.NewWriter(w)
	ar.SetVersion(version)
	if err := ar.Header(); err != nil {
		return err
	}
	m.Serialize(ar)
	return ar.Err()
}

// Load replaces the mesh content with the archive read from r. A live
// render proxy is rebuilt from the loaded state.
func (m *Mesh) Load(r io.Reader) error {
	ar := archive.NewReader(r)
	if err := ar.Header(); err != nil {
		return err
	}
	m.Serialize(ar)
	if err := ar.Err(); err != nil {
		return fmt.Errorf("load realtime mesh: %w", err)
	}

	lods := make([]core.LODKey, 0, core.MaxLODs)
	m.ProcessLODs(func(l *LOD) { lods = append(lods, l.key) })
	m.shared.events.LODChanged.Broadcast(LODChange{Keys: lods, Change: Updated})
	m.shared.events.MeshBoundsChanged.Broadcast(struct{}{})

	if m.GetRenderProxy(false) != nil {
		m.CreateRenderProxy(true)
	}
	return nil
}
