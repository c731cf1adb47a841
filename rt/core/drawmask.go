package core

import "strings"

// DrawMask records which passes a proxy node contributes to.
type DrawMask uint8

const (
	DrawStaticPass DrawMask = 1 << iota
	DrawDynamicPass
	DrawShadowPass
	DrawMainPass

	DrawMaskNone DrawMask = 0
)

func (m DrawMask) HasAny() bool                  { return m != 0 }
func (m DrawMask) Has(flags DrawMask) bool       { return m&flags == flags }
func (m DrawMask) ShouldRenderStaticPath() bool  { return m&DrawStaticPass != 0 }
func (m DrawMask) ShouldRenderDynamicPath() bool { return m&DrawDynamicPass != 0 }
func (m DrawMask) ShouldRenderShadow() bool      { return m&DrawShadowPass != 0 }
func (m DrawMask) ShouldRenderMainPass() bool    { return m&DrawMainPass != 0 }

// DrawMaskFor derives a section's mask from its config.
func DrawMaskFor(cfg SectionConfig) DrawMask {
	if !cfg.IsVisible {
		return DrawMaskNone
	}
	var m DrawMask
	if cfg.DrawType == DrawStatic {
		m |= DrawStaticPass
	} else {
		m |= DrawDynamicPass
	}
	if cfg.CastsShadow {
		m |= DrawShadowPass
	}
	if cfg.IsMainPassRenderable {
		m |= DrawMainPass
	}
	return m
}

func (m DrawMask) String() string {
	if m == DrawMaskNone {
		return "None"
	}
	var parts []string
	if m.ShouldRenderStaticPath() {
		parts = append(parts, "Static")
	}
	if m.ShouldRenderDynamicPath() {
		parts = append(parts, "Dynamic")
	}
	if m.ShouldRenderShadow() {
		parts = append(parts, "Shadow")
	}
	if m.ShouldRenderMainPass() {
		parts = append(parts, "MainPass")
	}
	return strings.Join(parts, "|")
}
