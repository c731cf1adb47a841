package core

import (
	"math"
	"sync"

	"github.com/go-gl/mathgl/mgl32"
)

// BoxSphereBounds is an axis aligned box and a bounding sphere sharing one origin.
type BoxSphereBounds struct {
	Origin       mgl32.Vec3
	BoxExtent    mgl32.Vec3
	SphereRadius float32
}

// DefaultBounds is reported by nodes with nothing to bound: a unit sphere at the origin.
var DefaultBounds = BoxSphereBounds{
	Origin:       mgl32.Vec3{0, 0, 0},
	BoxExtent:    mgl32.Vec3{1, 1, 1},
	SphereRadius: 1,
}

func (b BoxSphereBounds) Min() mgl32.Vec3 { return b.Origin.Sub(b.BoxExtent) }
func (b BoxSphereBounds) Max() mgl32.Vec3 { return b.Origin.Add(b.BoxExtent) }

// AABB returns the box as a [min, max] pair.
func (b BoxSphereBounds) AABB() [2]mgl32.Vec3 {
	return [2]mgl32.Vec3{b.Min(), b.Max()}
}

func BoundsFromBox(minB, maxB mgl32.Vec3) BoxSphereBounds {
	origin := minB.Add(maxB).Mul(0.5)
	extent := maxB.Sub(minB).Mul(0.5)
	return BoxSphereBounds{Origin: origin, BoxExtent: extent, SphereRadius: extent.Len()}
}

// BoundsFromPoints bounds the given points. It returns DefaultBounds for an empty slice.
func BoundsFromPoints(points []mgl32.Vec3) BoxSphereBounds {
	if len(points) == 0 {
		return DefaultBounds
	}
	inf := float32(math.MaxFloat32)
	minB := mgl32.Vec3{inf, inf, inf}
	maxB := mgl32.Vec3{-inf, -inf, -inf}
	for _, p := range points {
		minB = mgl32.Vec3{min(minB.X(), p.X()), min(minB.Y(), p.Y()), min(minB.Z(), p.Z())}
		maxB = mgl32.Vec3{max(maxB.X(), p.X()), max(maxB.Y(), p.Y()), max(maxB.Z(), p.Z())}
	}
	b := BoundsFromBox(minB, maxB)

	var r2 float32
	for _, p := range points {
		d := p.Sub(b.Origin)
		r2 = max(r2, d.Dot(d))
	}
	b.SphereRadius = float32(math.Sqrt(float64(r2)))
	return b
}

// BoundsFromPositionStream bounds the positions of a float3 stream within the
// vertex interval. Missing, mis-typed or out of range data yields DefaultBounds.
func BoundsFromPositionStream(s *Stream, vertices Interval) BoxSphereBounds {
	if s == nil || s.Layout != LayoutFloat3 || vertices.IsEmpty() || !vertices.Within(s.NumElements()) {
		return DefaultBounds
	}
	points := make([]mgl32.Vec3, 0, vertices.Len())
	for i := vertices.Min; i < vertices.Max; i++ {
		points = append(points, s.Vec3At(int(i)))
	}
	return BoundsFromPoints(points)
}

// Union returns bounds enclosing both b and o.
func (b BoxSphereBounds) Union(o BoxSphereBounds) BoxSphereBounds {
	a0, a1 := b.Min(), b.Max()
	b0, b1 := o.Min(), o.Max()
	minB := mgl32.Vec3{min(a0.X(), b0.X()), min(a0.Y(), b0.Y()), min(a0.Z(), b0.Z())}
	maxB := mgl32.Vec3{max(a1.X(), b1.X()), max(a1.Y(), b1.Y()), max(a1.Z(), b1.Z())}
	u := BoundsFromBox(minB, maxB)

	sphere := max(b.Origin.Sub(u.Origin).Len()+b.SphereRadius, o.Origin.Sub(u.Origin).Len()+o.SphereRadius)
	u.SphereRadius = min(u.BoxExtent.Len(), sphere)
	return u
}

// UnionAll folds Union over the slice. An empty slice yields DefaultBounds.
func UnionAll(all []BoxSphereBounds) BoxSphereBounds {
	if len(all) == 0 {
		return DefaultBounds
	}
	out := all[0]
	for _, b := range all[1:] {
		out = out.Union(b)
	}
	return out
}

func (b BoxSphereBounds) ApproxEqual(o BoxSphereBounds) bool {
	return b.Origin.ApproxEqual(o.Origin) && b.BoxExtent.ApproxEqual(o.BoxExtent) &&
		mgl32.FloatEqual(b.SphereRadius, o.SphereRadius)
}

// BoundsCache holds an optional user override and a lazily computed value.
// While an override is set, Get never computes.
type BoundsCache struct {
	mu        sync.RWMutex
	user      BoxSphereBounds
	hasUser   bool
	cached    BoxSphereBounds
	hasCached bool
}

func (c *BoundsCache) Get(compute func() BoxSphereBounds) BoxSphereBounds {
	c.mu.RLock()
	if c.hasUser {
		b := c.user
		c.mu.RUnlock()
		return b
	}
	if c.hasCached {
		b := c.cached
		c.mu.RUnlock()
		return b
	}
	c.mu.RUnlock()

	c.mu.Lock()
	defer c.mu.Unlock()
	// Another goroutine may have filled the cache between the two locks.
	if c.hasUser {
		return c.user
	}
	if !c.hasCached {
		c.cached = compute()
		c.hasCached = true
	}
	return c.cached
}

// ClearCachedValue drops the computed value. The user override is untouched.
func (c *BoundsCache) ClearCachedValue() {
	c.mu.Lock()
	c.hasCached = false
	c.mu.Unlock()
}

func (c *BoundsCache) SetUserSetBounds(b BoxSphereBounds) {
	c.mu.Lock()
	c.user = b
	c.hasUser = true
	c.mu.Unlock()
}

func (c *BoundsCache) ClearUserSetBounds() {
	c.mu.Lock()
	c.hasUser = false
	c.mu.Unlock()
}

func (c *BoundsCache) UserSetBounds() (BoxSphereBounds, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.user, c.hasUser
}

func (c *BoundsCache) HasUserSetBounds() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.hasUser
}

// Reset clears both the override and the computed value.
func (c *BoundsCache) Reset() {
	c.mu.Lock()
	c.hasUser = false
	c.hasCached = false
	c.mu.Unlock()
}
