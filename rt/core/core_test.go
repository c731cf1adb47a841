package core

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeys_IsPartOf(t *testing.T) {
	group := NewSectionGroupKey(LODKey(1), "terrain")
	section := NewSectionKey(group, "grass")

	assert.True(t, group.IsPartOf(1))
	assert.False(t, group.IsPartOf(0))
	assert.True(t, section.IsPartOf(group))
	assert.True(t, section.IsPartOfLOD(1))
	assert.False(t, section.IsPartOf(NewSectionGroupKey(1, "rocks")))
	assert.Equal(t, "LOD:1/Group:terrain/Section:grass", section.String())
}

func TestKeys_UniqueAndLegacy(t *testing.T) {
	a := NewUniqueSectionGroupKey(0)
	b := NewUniqueSectionGroupKey(0)
	assert.NotEqual(t, a, b)

	assert.Equal(t, SectionGroupKeyFromIndex(2, 3), SectionGroupKeyFromIndex(2, 3))
	assert.True(t, SectionGroupKeyFromIndex(0, 1).Less(SectionGroupKeyFromIndex(1, 0)))
	assert.False(t, InvalidLODKey.IsValid())
}

func TestStreamRange_Hull(t *testing.T) {
	a := NewStreamRange(0, 4, 0, 6)
	b := NewStreamRange(10, 14, 12, 18)

	h := a.Hull(b)
	assert.Equal(t, NewStreamRange(0, 14, 0, 18), h)
	assert.Equal(t, int32(2), a.NumPrimitives())

	assert.Equal(t, b, StreamRange{}.Hull(b))
	assert.True(t, StreamRange{}.IsEmpty())
}

func TestBounds_FromPointsAndUnion(t *testing.T) {
	b := BoundsFromPoints([]mgl32.Vec3{{-1, -1, -1}, {1, 1, 1}})
	assert.True(t, b.Origin.ApproxEqual(mgl32.Vec3{0, 0, 0}))
	assert.True(t, b.BoxExtent.ApproxEqual(mgl32.Vec3{1, 1, 1}))

	c := BoundsFromPoints([]mgl32.Vec3{{2, 2, 2}, {4, 4, 4}})
	u := b.Union(c)
	assert.True(t, u.Min().ApproxEqual(mgl32.Vec3{-1, -1, -1}))
	assert.True(t, u.Max().ApproxEqual(mgl32.Vec3{4, 4, 4}))

	assert.Equal(t, DefaultBounds, BoundsFromPoints(nil))
	assert.Equal(t, DefaultBounds, UnionAll(nil))
}

func TestBounds_FromPositionStream(t *testing.T) {
	s := NewStream(PositionStreamKey, LayoutFloat3, nil)
	s.Data = appendVec3(s.Data, mgl32.Vec3{0, 0, 0})
	s.Data = appendVec3(s.Data, mgl32.Vec3{2, 0, 0})
	s.Data = appendVec3(s.Data, mgl32.Vec3{10, 10, 10})
	require.Equal(t, 3, s.NumElements())

	b := BoundsFromPositionStream(s, NewInterval(0, 2))
	assert.True(t, b.Max().ApproxEqual(mgl32.Vec3{2, 0, 0}))

	assert.Equal(t, DefaultBounds, BoundsFromPositionStream(s, NewInterval(0, 4)))
	assert.Equal(t, DefaultBounds, BoundsFromPositionStream(nil, NewInterval(0, 1)))
}

func TestBoundsCache_ComputesOnce(t *testing.T) {
	var cache BoundsCache
	var calls atomic.Int32
	compute := func() BoxSphereBounds {
		calls.Add(1)
		return BoundsFromPoints([]mgl32.Vec3{{0, 0, 0}, {1, 2, 3}})
	}

	first := cache.Get(compute)
	second := cache.Get(compute)
	assert.Equal(t, first, second)
	assert.Equal(t, int32(1), calls.Load())

	cache.ClearCachedValue()
	cache.Get(compute)
	assert.Equal(t, int32(2), calls.Load())
}

func TestBoundsCache_ConcurrentMissComputesOnce(t *testing.T) {
	var cache BoundsCache
	var calls atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			cache.Get(func() BoxSphereBounds {
				calls.Add(1)
				return DefaultBounds
			})
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), calls.Load())
}

func TestBoundsCache_UserOverride(t *testing.T) {
	var cache BoundsCache
	override := BoundsFromPoints([]mgl32.Vec3{{5, 5, 5}, {6, 6, 6}})
	computed := 0
	compute := func() BoxSphereBounds {
		computed++
		return DefaultBounds
	}

	cache.SetUserSetBounds(override)
	assert.Equal(t, override, cache.Get(compute))
	cache.ClearCachedValue()
	assert.Equal(t, override, cache.Get(compute))
	assert.Zero(t, computed)

	cache.ClearUserSetBounds()
	assert.Equal(t, DefaultBounds, cache.Get(compute))
	assert.Equal(t, 1, computed)
}

func TestDrawMaskFor(t *testing.T) {
	cfg := DefaultSectionConfig()
	m := DrawMaskFor(cfg)
	assert.True(t, m.Has(DrawStaticPass|DrawShadowPass|DrawMainPass))
	assert.False(t, m.ShouldRenderDynamicPath())

	cfg.DrawType = DrawDynamic
	cfg.CastsShadow = false
	m = DrawMaskFor(cfg)
	assert.Equal(t, DrawDynamicPass|DrawMainPass, m)
	assert.Equal(t, "Dynamic|MainPass", m.String())

	cfg.IsVisible = false
	assert.Equal(t, DrawMaskNone, DrawMaskFor(cfg))
}
