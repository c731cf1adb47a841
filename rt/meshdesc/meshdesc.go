// Package meshdesc builds meshes from YAML descriptions.
//
//	forced_lod: -1
//	lods:
//	  - screen_size: 1.0
//	    groups:
//	      - name: body
//	        draw_type: static
//	        primitives:
//	          - {type: box, center: [0, 0, 0], half_extent: [1, 1, 1], polygroup: 0}
package meshdesc

import (
	"fmt"
	"os"
	"strings"

	"github.com/gekko3d/realtimemesh/rt/core"
	"github.com/gekko3d/realtimemesh/rt/data"
	"github.com/gekko3d/realtimemesh/rt/simple"
	"github.com/go-gl/mathgl/mgl32"
	"gopkg.in/yaml.v3"
)

// Mesh is the root of a description.
type Mesh struct {
	ForcedLOD *int32  `yaml:"forced_lod"`
	Bounds    *Bounds `yaml:"bounds"`
	LODs      []LOD   `yaml:"lods"`
}

// Bounds is an axis aligned override box.
type Bounds struct {
	Min []float32 `yaml:"min"`
	Max []float32 `yaml:"max"`
}

type LOD struct {
	ScreenSize float32 `yaml:"screen_size"`
	Visible    *bool   `yaml:"visible"`
	Groups     []Group `yaml:"groups"`
}

type Group struct {
	Name     string `yaml:"name"`
	DrawType string `yaml:"draw_type"`
	// AutoSections creates one section per polygroup. Defaults to true.
	AutoSections *bool       `yaml:"auto_sections"`
	Section      Section     `yaml:"section"`
	Primitives   []Primitive `yaml:"primitives"`
	Sections     []Section   `yaml:"sections"`
}

// Section describes either the defaults of auto created sections (inside
// Group.Section) or a manually ranged section (inside Group.Sections).
type Section struct {
	Name        string  `yaml:"name"`
	Material    int32   `yaml:"material"`
	DrawType    string  `yaml:"draw_type"`
	Visible     *bool   `yaml:"visible"`
	CastShadow  *bool   `yaml:"cast_shadow"`
	ForceOpaque bool    `yaml:"force_opaque"`
	Collision   *bool   `yaml:"collision"`
	Vertices    []int32 `yaml:"vertices"`
	Indices     []int32 `yaml:"indices"`
}

type Primitive struct {
	Type       string      `yaml:"type"`
	PolyGroup  int32       `yaml:"polygroup"`
	Center     []float32   `yaml:"center"`
	HalfExtent []float32   `yaml:"half_extent"`
	Corners    [][]float32 `yaml:"corners"`
	Normal     []float32   `yaml:"normal"`
}

// Load reads and parses a description file.
func Load(path string) (*Mesh, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read mesh description: %w", err)
	}
	return Parse(raw)
}

// Parse decodes and validates a description.
func Parse(raw []byte) (*Mesh, error) {
	var desc Mesh
	if err := yaml.Unmarshal(raw, &desc); err != nil {
		return nil, fmt.Errorf("parse mesh description: %w", err)
	}
	if err := desc.Validate(); err != nil {
		return nil, err
	}
	return &desc, nil
}

// Validate checks everything that can be checked without building geometry.
func (d *Mesh) Validate() error {
	if len(d.LODs) == 0 || len(d.LODs) > core.MaxLODs {
		return fmt.Errorf("meshdesc: %d lods, want 1..%d", len(d.LODs), core.MaxLODs)
	}
	if d.Bounds != nil {
		if _, err := d.Bounds.box(); err != nil {
			return err
		}
	}
	for li, lod := range d.LODs {
		seen := map[string]bool{}
		for gi, g := range lod.Groups {
			where := fmt.Sprintf("lods[%d].groups[%d]", li, gi)
			if g.Name == "" {
				return fmt.Errorf("meshdesc: %s: missing name", where)
			}
			if seen[g.Name] {
				return fmt.Errorf("meshdesc: %s: duplicate group %q", where, g.Name)
			}
			seen[g.Name] = true
			if _, err := parseDrawType(g.DrawType); err != nil {
				return fmt.Errorf("meshdesc: %s: %w", where, err)
			}
			if _, err := g.Section.config(); err != nil {
				return fmt.Errorf("meshdesc: %s.section: %w", where, err)
			}
			for pi, p := range g.Primitives {
				if err := p.appendTo(simple.NewStreamBuilder()); err != nil {
					return fmt.Errorf("meshdesc: %s.primitives[%d]: %w", where, pi, err)
				}
			}
			for si, s := range g.Sections {
				if s.Name == "" {
					return fmt.Errorf("meshdesc: %s.sections[%d]: missing name", where, si)
				}
				if _, err := s.config(); err != nil {
					return fmt.Errorf("meshdesc: %s.sections[%d]: %w", where, si, err)
				}
				if _, err := s.streamRange(); err != nil {
					return fmt.Errorf("meshdesc: %s.sections[%d]: %w", where, si, err)
				}
			}
		}
	}
	return nil
}

// Builder returns the geometry of a group.
func (g *Group) Builder() (*simple.StreamBuilder, error) {
	b := simple.NewStreamBuilder()
	for i, p := range g.Primitives {
		if err := p.appendTo(b); err != nil {
			return nil, fmt.Errorf("primitives[%d]: %w", i, err)
		}
	}
	return b, nil
}

// Apply replaces the LODs of m with the description. Nothing is committed;
// the caller owns batch.
func (d *Mesh) Apply(m *simple.Mesh, batch *data.ProxyCommandBatch) error {
	forced := core.NoForcedLOD
	if d.ForcedLOD != nil {
		forced = *d.ForcedLOD
	}
	m.UpdateConfig(batch, core.MeshConfig{ForcedLOD: forced})

	configs := make([]core.LODConfig, len(d.LODs))
	for i, lod := range d.LODs {
		configs[i] = core.LODConfig{IsVisible: boolOr(lod.Visible, true), ScreenSize: lod.ScreenSize}
	}
	if !m.InitializeLODs(batch, configs) {
		return fmt.Errorf("meshdesc: cannot initialize %d lods", len(configs))
	}

	for li, lod := range d.LODs {
		for _, g := range lod.Groups {
			if err := applyGroup(m, batch, core.LODKey(li), g); err != nil {
				return fmt.Errorf("meshdesc: lod %d group %q: %w", li, g.Name, err)
			}
		}
	}

	if d.Bounds != nil {
		b, err := d.Bounds.box()
		if err != nil {
			return err
		}
		m.SetOverrideBounds(b)
	} else {
		m.ClearOverrideBounds()
	}
	return nil
}

func applyGroup(m *simple.Mesh, batch *data.ProxyCommandBatch, lod core.LODKey, g Group) error {
	key := core.NewSectionGroupKey(lod, g.Name)
	builder, err := g.Builder()
	if err != nil {
		return err
	}
	drawType, err := parseDrawType(g.DrawType)
	if err != nil {
		return err
	}
	sectionCfg, err := g.Section.config()
	if err != nil {
		return err
	}
	opts := simple.GroupOptions{
		Config:             core.SectionGroupConfig{DrawType: drawType},
		AutoCreateSections: boolOr(g.AutoSections, true),
		SectionConfig:      sectionCfg,
	}
	if _, err := m.CreateSectionGroup(batch, key, builder, opts); err != nil {
		return err
	}
	if !boolOr(g.Section.Collision, true) {
		for _, sk := range m.GetSectionGroup(key).SectionKeys() {
			m.SetCollisionEnabled(sk, false)
		}
	}

	for _, s := range g.Sections {
		cfg, err := s.config()
		if err != nil {
			return err
		}
		rng, err := s.streamRange()
		if err != nil {
			return err
		}
		if _, err := m.CreateSection(batch, core.NewSectionKey(key, s.Name), cfg, rng, boolOr(s.Collision, true)); err != nil {
			return err
		}
	}
	return nil
}

// Build creates a new mesh from the description and commits it.
func (d *Mesh) Build(opts data.Options) (*simple.Mesh, error) {
	m := simple.NewMesh(opts)
	batch := m.Shared().NewCommandBatch()
	if err := d.Apply(m, batch); err != nil {
		return nil, err
	}
	batch.Commit()
	return m, nil
}

func (s Section) config() (core.SectionConfig, error) {
	drawType, err := parseDrawType(s.DrawType)
	if err != nil {
		return core.SectionConfig{}, err
	}
	cfg := core.DefaultSectionConfig()
	cfg.MaterialSlot = s.Material
	cfg.DrawType = drawType
	cfg.IsVisible = boolOr(s.Visible, true)
	cfg.CastsShadow = boolOr(s.CastShadow, true)
	cfg.ForceOpaque = s.ForceOpaque
	return cfg, nil
}

func (s Section) streamRange() (core.StreamRange, error) {
	if len(s.Vertices) != 2 || len(s.Indices) != 2 {
		return core.StreamRange{}, fmt.Errorf("section %q needs vertices and indices as [min, max]", s.Name)
	}
	if s.Vertices[0] > s.Vertices[1] || s.Indices[0] > s.Indices[1] {
		return core.StreamRange{}, fmt.Errorf("section %q has an inverted range", s.Name)
	}
	return core.NewStreamRange(s.Vertices[0], s.Vertices[1], s.Indices[0], s.Indices[1]), nil
}

func (p Primitive) appendTo(b *simple.StreamBuilder) error {
	switch strings.ToLower(p.Type) {
	case "box":
		center, err := vec3OrZero("center", p.Center)
		if err != nil {
			return err
		}
		half, err := vec3("half_extent", p.HalfExtent)
		if err != nil {
			return err
		}
		b.AppendBox(center, half, p.PolyGroup)
	case "quad":
		if len(p.Corners) != 4 {
			return fmt.Errorf("quad needs 4 corners, got %d", len(p.Corners))
		}
		var corners [4]mgl32.Vec3
		for i, c := range p.Corners {
			v, err := vec3(fmt.Sprintf("corners[%d]", i), c)
			if err != nil {
				return err
			}
			corners[i] = v
		}
		normal, err := vec3OrZero("normal", p.Normal)
		if err != nil {
			return err
		}
		if len(p.Normal) == 0 {
			normal = corners[1].Sub(corners[0]).Cross(corners[2].Sub(corners[0])).Normalize()
		}
		b.AppendQuad(corners, normal, p.PolyGroup)
	default:
		return fmt.Errorf("unknown primitive type %q", p.Type)
	}
	return nil
}

func (b *Bounds) box() (core.BoxSphereBounds, error) {
	minB, err := vec3("bounds.min", b.Min)
	if err != nil {
		return core.BoxSphereBounds{}, fmt.Errorf("meshdesc: %w", err)
	}
	maxB, err := vec3("bounds.max", b.Max)
	if err != nil {
		return core.BoxSphereBounds{}, fmt.Errorf("meshdesc: %w", err)
	}
	return core.BoundsFromBox(minB, maxB), nil
}

func parseDrawType(s string) (core.DrawType, error) {
	switch strings.ToLower(s) {
	case "", "static":
		return core.DrawStatic, nil
	case "dynamic":
		return core.DrawDynamic, nil
	default:
		return core.DrawStatic, fmt.Errorf("unknown draw type %q", s)
	}
}

func vec3(field string, v []float32) (mgl32.Vec3, error) {
	if len(v) != 3 {
		return mgl32.Vec3{}, fmt.Errorf("%s needs 3 components, got %d", field, len(v))
	}
	return mgl32.Vec3{v[0], v[1], v[2]}, nil
}

func vec3OrZero(field string, v []float32) (mgl32.Vec3, error) {
	if len(v) == 0 {
		return mgl32.Vec3{}, nil
	}
	return vec3(field, v)
}

func boolOr(b *bool, def bool) bool {
	if b == nil {
		return def
	}
	return *b
}
