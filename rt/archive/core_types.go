package archive

import (
	"fmt"

	"github.com/gekko3d/realtimemesh/rt/core"
)

func (a *Archive) Bounds(b *core.BoxSphereBounds) {
	a.Vec3(&b.Origin)
	a.Vec3(&b.BoxExtent)
	a.Float32(&b.SphereRadius)
}

// OptionalBounds persists a value that may be absent, such as user override bounds.
func (a *Archive) OptionalBounds(b *core.BoxSphereBounds, present *bool) {
	a.Bool(present)
	if *present {
		a.Bounds(b)
	}
}

func (a *Archive) Interval(i *core.Interval) {
	a.Int32(&i.Min)
	a.Int32(&i.Max)
}

func (a *Archive) StreamRange(r *core.StreamRange) {
	a.Interval(&r.Vertices)
	a.Interval(&r.Indices)
}

// DrawType persists a draw type. Loading an unknown value fails the archive
// and leaves d unchanged.
func (a *Archive) DrawType(d *core.DrawType) {
	v := uint8(*d)
	a.Uint8(&v)
	if !a.IsLoading() || a.Err() != nil {
		return
	}
	if !core.DrawType(v).IsValid() {
		a.Fail(fmt.Errorf("archive: unknown draw type %d", v))
		return
	}
	*d = core.DrawType(v)
}

func (a *Archive) StreamKey(k *core.StreamKey) {
	t := uint8(k.Type)
	a.Uint8(&t)
	a.String(&k.Name)
	if a.IsLoading() {
		k.Type = core.StreamType(t)
	}
}

func (a *Archive) StreamLayout(l *core.StreamLayout) {
	et := uint8(l.ElementType)
	comps := int32(l.Components)
	a.Uint8(&et)
	a.Int32(&comps)
	if a.IsLoading() {
		l.ElementType = core.ElementType(et)
		l.Components = int(comps)
	}
}

func (a *Archive) Stream(s *core.Stream) {
	if a.Version() >= core.VersionStreamsHoldEntireKey {
		a.StreamKey(&s.Key)
	} else {
		// Older archives only stored the name; the type follows from the name.
		a.String(&s.Key.Name)
		if a.IsLoading() {
			s.Key.Type = legacyStreamType(s.Key.Name)
		}
	}
	a.StreamLayout(&s.Layout)
	a.Bytes(&s.Data)
}

func legacyStreamType(name string) core.StreamType {
	switch name {
	case core.TrianglesStreamKey.Name, core.DepthOnlyTrianglesStreamKey.Name:
		return core.StreamIndex
	default:
		return core.StreamVertex
	}
}
