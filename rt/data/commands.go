package data

import (
	"fmt"

	"github.com/gekko3d/realtimemesh/rt/core"
	"github.com/gekko3d/realtimemesh/rt/proxy"
)

// CommandKind tags the proxy mutation a Command performs.
type CommandKind uint8

const (
	KindMeshTask CommandKind = iota
	KindLODTask
	KindSectionGroupTask
	KindSectionTask
	KindUpdateMeshConfig
	KindResetProxy
	KindCreateLOD
	KindRemoveTrailingLOD
	KindUpdateLODConfig
	KindResetLOD
	KindCreateSectionGroup
	KindRemoveSectionGroup
	KindUpdateSectionGroupConfig
	KindResetSectionGroup
	KindCreateOrUpdateStream
	KindRemoveStream
	KindCreateSection
	KindRemoveSection
	KindUpdateSectionConfig
	KindUpdateSectionRange
)

var kindNames = [...]string{
	KindMeshTask:                 "MeshTask",
	KindLODTask:                  "LODTask",
	KindSectionGroupTask:         "SectionGroupTask",
	KindSectionTask:              "SectionTask",
	KindUpdateMeshConfig:         "UpdateMeshConfig",
	KindResetProxy:               "ResetProxy",
	KindCreateLOD:                "CreateLOD",
	KindRemoveTrailingLOD:        "RemoveTrailingLOD",
	KindUpdateLODConfig:          "UpdateLODConfig",
	KindResetLOD:                 "ResetLOD",
	KindCreateSectionGroup:       "CreateSectionGroup",
	KindRemoveSectionGroup:       "RemoveSectionGroup",
	KindUpdateSectionGroupConfig: "UpdateSectionGroupConfig",
	KindResetSectionGroup:        "ResetSectionGroup",
	KindCreateOrUpdateStream:     "CreateOrUpdateStream",
	KindRemoveStream:             "RemoveStream",
	KindCreateSection:            "CreateSection",
	KindRemoveSection:            "RemoveSection",
	KindUpdateSectionConfig:      "UpdateSectionConfig",
	KindUpdateSectionRange:       "UpdateSectionRange",
}

func (k CommandKind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("CommandKind(%d)", k)
}

// Command is one deferred proxy mutation. Apply runs on the render thread;
// commands addressing a node the proxy no longer has are skipped.
type Command interface {
	Kind() CommandKind
	Apply(p *proxy.RenderProxy) error
}

type meshTask struct {
	fn func(*proxy.RenderProxy)
}

func (meshTask) Kind() CommandKind { return KindMeshTask }

func (c meshTask) Apply(p *proxy.RenderProxy) error {
	c.fn(p)
	return nil
}

type lodTask struct {
	key core.LODKey
	fn  func(*proxy.LODProxy)
}

func (lodTask) Kind() CommandKind { return KindLODTask }

func (c lodTask) Apply(p *proxy.RenderProxy) error {
	if l, ok := p.LOD(c.key); ok {
		c.fn(l)
	}
	return nil
}

type sectionGroupTask struct {
	key core.SectionGroupKey
	fn  func(*proxy.SectionGroupProxy)
}

func (sectionGroupTask) Kind() CommandKind { return KindSectionGroupTask }

func (c sectionGroupTask) Apply(p *proxy.RenderProxy) error {
	if g, ok := p.SectionGroup(c.key); ok {
		c.fn(g)
	}
	return nil
}

type sectionTask struct {
	key core.SectionKey
	fn  func(*proxy.SectionProxy)
}

func (sectionTask) Kind() CommandKind { return KindSectionTask }

func (c sectionTask) Apply(p *proxy.RenderProxy) error {
	if s, ok := p.Section(c.key); ok {
		c.fn(s)
	}
	return nil
}

type UpdateMeshConfig struct{ Config core.MeshConfig }

func (UpdateMeshConfig) Kind() CommandKind { return KindUpdateMeshConfig }

func (c UpdateMeshConfig) Apply(p *proxy.RenderProxy) error {
	p.UpdateConfig(c.Config)
	return nil
}

type ResetProxy struct{}

func (ResetProxy) Kind() CommandKind                { return KindResetProxy }
func (ResetProxy) Apply(p *proxy.RenderProxy) error { return p.Reset() }

type CreateLOD struct{ Key core.LODKey }

func (CreateLOD) Kind() CommandKind { return KindCreateLOD }

func (c CreateLOD) Apply(p *proxy.RenderProxy) error {
	p.CreateLODIfNotExists(c.Key)
	return nil
}

type RemoveTrailingLOD struct{ Key core.LODKey }

func (RemoveTrailingLOD) Kind() CommandKind                  { return KindRemoveTrailingLOD }
func (c RemoveTrailingLOD) Apply(p *proxy.RenderProxy) error { return p.RemoveTrailingLOD(c.Key) }

type UpdateLODConfig struct {
	Key    core.LODKey
	Config core.LODConfig
}

func (UpdateLODConfig) Kind() CommandKind { return KindUpdateLODConfig }

func (c UpdateLODConfig) Apply(p *proxy.RenderProxy) error {
	if l, ok := p.LOD(c.Key); ok {
		l.UpdateConfig(c.Config)
	}
	return nil
}

type ResetLOD struct{ Key core.LODKey }

func (ResetLOD) Kind() CommandKind { return KindResetLOD }

func (c ResetLOD) Apply(p *proxy.RenderProxy) error {
	if l, ok := p.LOD(c.Key); ok {
		return l.Reset()
	}
	return nil
}

type CreateSectionGroup struct{ Key core.SectionGroupKey }

func (CreateSectionGroup) Kind() CommandKind { return KindCreateSectionGroup }

func (c CreateSectionGroup) Apply(p *proxy.RenderProxy) error {
	if l, ok := p.LOD(c.Key.LOD); ok {
		l.CreateSectionGroupIfNotExists(c.Key)
	}
	return nil
}

type RemoveSectionGroup struct{ Key core.SectionGroupKey }

func (RemoveSectionGroup) Kind() CommandKind { return KindRemoveSectionGroup }

func (c RemoveSectionGroup) Apply(p *proxy.RenderProxy) error {
	if l, ok := p.LOD(c.Key.LOD); ok {
		return l.RemoveSectionGroup(c.Key)
	}
	return nil
}

type UpdateSectionGroupConfig struct {
	Key    core.SectionGroupKey
	Config core.SectionGroupConfig
}

func (UpdateSectionGroupConfig) Kind() CommandKind { return KindUpdateSectionGroupConfig }

func (c UpdateSectionGroupConfig) Apply(p *proxy.RenderProxy) error {
	if g, ok := p.SectionGroup(c.Key); ok {
		g.UpdateConfig(c.Config)
	}
	return nil
}

type ResetSectionGroup struct{ Key core.SectionGroupKey }

func (ResetSectionGroup) Kind() CommandKind { return KindResetSectionGroup }

func (c ResetSectionGroup) Apply(p *proxy.RenderProxy) error {
	if g, ok := p.SectionGroup(c.Key); ok {
		return g.Reset()
	}
	return nil
}

// CreateOrUpdateStream uploads a stream. The stream is shared with the data
// side and must not be mutated after it was handed to a section group.
type CreateOrUpdateStream struct {
	Group  core.SectionGroupKey
	Stream *core.Stream
}

func (CreateOrUpdateStream) Kind() CommandKind { return KindCreateOrUpdateStream }

func (c CreateOrUpdateStream) Apply(p *proxy.RenderProxy) error {
	if g, ok := p.SectionGroup(c.Group); ok {
		if err := g.CreateOrUpdateStream(c.Stream); err != nil {
			return fmt.Errorf("%s %s: %w", c.Group, c.Stream.Key, err)
		}
	}
	return nil
}

type RemoveStream struct {
	Group core.SectionGroupKey
	Key   core.StreamKey
}

func (RemoveStream) Kind() CommandKind { return KindRemoveStream }

func (c RemoveStream) Apply(p *proxy.RenderProxy) error {
	if g, ok := p.SectionGroup(c.Group); ok {
		return g.RemoveStream(c.Key)
	}
	return nil
}

type CreateSection struct{ Key core.SectionKey }

func (CreateSection) Kind() CommandKind { return KindCreateSection }

func (c CreateSection) Apply(p *proxy.RenderProxy) error {
	if g, ok := p.SectionGroup(c.Key.Group); ok {
		g.CreateSectionIfNotExists(c.Key)
	}
	return nil
}

type RemoveSection struct{ Key core.SectionKey }

func (RemoveSection) Kind() CommandKind { return KindRemoveSection }

func (c RemoveSection) Apply(p *proxy.RenderProxy) error {
	if g, ok := p.SectionGroup(c.Key.Group); ok {
		g.RemoveSection(c.Key)
	}
	return nil
}

type UpdateSectionConfig struct {
	Key    core.SectionKey
	Config core.SectionConfig
}

func (UpdateSectionConfig) Kind() CommandKind { return KindUpdateSectionConfig }

func (c UpdateSectionConfig) Apply(p *proxy.RenderProxy) error {
	if s, ok := p.Section(c.Key); ok {
		s.UpdateConfig(c.Config)
	}
	return nil
}

type UpdateSectionRange struct {
	Key   core.SectionKey
	Range core.StreamRange
}

func (UpdateSectionRange) Kind() CommandKind { return KindUpdateSectionRange }

func (c UpdateSectionRange) Apply(p *proxy.RenderProxy) error {
	if s, ok := p.Section(c.Key); ok {
		s.UpdateStreamRange(c.Range)
	}
	return nil
}
