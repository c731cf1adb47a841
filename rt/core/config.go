package core

// DrawType selects the render path of a section.
type DrawType uint8

const (
	// DrawStatic sections are cached by the renderer; any change rebuilds the proxy.
	DrawStatic DrawType = iota
	// DrawDynamic sections are gathered every frame and can be patched in place.
	DrawDynamic
)

func (d DrawType) IsValid() bool { return d <= DrawDynamic }

func (d DrawType) String() string {
	switch d {
	case DrawStatic:
		return "Static"
	case DrawDynamic:
		return "Dynamic"
	default:
		return "Unknown"
	}
}

type SectionConfig struct {
	MaterialSlot         int32
	DrawType             DrawType
	IsVisible            bool
	CastsShadow          bool
	IsMainPassRenderable bool
	ForceOpaque          bool
}

func DefaultSectionConfig() SectionConfig {
	return SectionConfig{
		DrawType:             DrawStatic,
		IsVisible:            true,
		CastsShadow:          true,
		IsMainPassRenderable: true,
	}
}

type SectionGroupConfig struct {
	DrawType DrawType
}

func DefaultSectionGroupConfig() SectionGroupConfig {
	return SectionGroupConfig{DrawType: DrawStatic}
}

type LODConfig struct {
	IsVisible bool
	// ScreenSize is the minimum on-screen size at which this LOD is selected.
	ScreenSize float32
}

func DefaultLODConfig() LODConfig {
	return LODConfig{IsVisible: true, ScreenSize: 1.0}
}

// NewLODConfig returns a visible LOD config with the given screen size.
func NewLODConfig(screenSize float32) LODConfig {
	return LODConfig{IsVisible: true, ScreenSize: screenSize}
}

// NoForcedLOD disables the forced LOD override.
const NoForcedLOD int32 = -1

type MeshConfig struct {
	ForcedLOD int32
}

func DefaultMeshConfig() MeshConfig {
	return MeshConfig{ForcedLOD: NoForcedLOD}
}
