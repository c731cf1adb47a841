package proxy

import (
	"fmt"
	"sort"

	"github.com/gekko3d/realtimemesh/rt/core"
	"go.uber.org/multierr"
)

// LODProxy mirrors one data LOD.
type LODProxy struct {
	shared   *proxyShared
	key      core.LODKey
	config   core.LODConfig
	groups   map[core.SectionGroupKey]*SectionGroupProxy
	drawMask core.DrawMask
	dirty    bool
}

func newLODProxy(shared *proxyShared, key core.LODKey) *LODProxy {
	return &LODProxy{
		shared: shared,
		key:    key,
		config: core.DefaultLODConfig(),
		groups: make(map[core.SectionGroupKey]*SectionGroupProxy),
		dirty:  true,
	}
}

func (l *LODProxy) Key() core.LODKey        { return l.key }
func (l *LODProxy) Config() core.LODConfig  { return l.config }
func (l *LODProxy) DrawMask() core.DrawMask { return l.drawMask }
func (l *LODProxy) IsStateDirty() bool      { return l.dirty }
func (l *LODProxy) NumSectionGroups() int   { return len(l.groups) }
func (l *LODProxy) ScreenSize() float32     { return l.config.ScreenSize }

func (l *LODProxy) UpdateConfig(cfg core.LODConfig) {
	l.shared.checkThread()
	l.config = cfg
	l.dirty = true
}

func (l *LODProxy) CreateSectionGroupIfNotExists(key core.SectionGroupKey) *SectionGroupProxy {
	l.shared.checkThread()
	if !key.IsPartOf(l.key) {
		panic(fmt.Sprintf("section group %s is not part of %s", key, l.key))
	}
	if g, ok := l.groups[key]; ok {
		return g
	}
	g := newSectionGroupProxy(l.shared, key)
	l.groups[key] = g
	l.dirty = true
	return g
}

func (l *LODProxy) RemoveSectionGroup(key core.SectionGroupKey) error {
	l.shared.checkThread()
	g, ok := l.groups[key]
	if !ok {
		return nil
	}
	delete(l.groups, key)
	l.dirty = true
	return g.Reset()
}

func (l *LODProxy) SectionGroup(key core.SectionGroupKey) (*SectionGroupProxy, bool) {
	g, ok := l.groups[key]
	return g, ok
}

// SectionGroupKeys returns the group keys in stable order.
func (l *LODProxy) SectionGroupKeys() []core.SectionGroupKey {
	keys := make([]core.SectionGroupKey, 0, len(l.groups))
	for k := range l.groups {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].Less(keys[j]) })
	return keys
}

func (l *LODProxy) Reset() error {
	l.shared.checkThread()
	var err error
	for _, g := range l.groups {
		err = multierr.Append(err, g.Reset())
	}
	clear(l.groups)
	l.config = core.DefaultLODConfig()
	l.drawMask = core.DrawMaskNone
	l.dirty = true
	return err
}

func (l *LODProxy) HandleUpdates(force bool) bool {
	for _, g := range l.groups {
		if g.HandleUpdates(force) {
			l.dirty = true
		}
	}
	if !l.dirty && !force {
		return false
	}

	mask := core.DrawMaskNone
	if l.config.IsVisible && l.config.ScreenSize >= 0 {
		for _, g := range l.groups {
			mask |= g.drawMask
		}
	}
	l.drawMask = mask
	l.dirty = false
	return true
}

func (l *LODProxy) collectDrawCalls(pass core.DrawMask, out []DrawCall) []DrawCall {
	if l.drawMask&pass == 0 {
		return out
	}
	for _, key := range l.SectionGroupKeys() {
		out = l.groups[key].collectDrawCalls(pass, out)
	}
	return out
}
