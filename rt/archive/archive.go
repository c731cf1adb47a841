// Package archive implements the bidirectional binary archive used to persist
// mesh data. The same Serialize body reads or writes depending on the mode.
package archive

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/gekko3d/realtimemesh/rt/core"
	"github.com/go-gl/mathgl/mgl32"
)

var (
	ErrBadGUID       = errors.New("archive: custom version guid mismatch")
	ErrFutureVersion = errors.New("archive: archive version is newer than this build")
)

// maxBlob bounds length prefixes read from untrusted input.
const maxBlob = 1 << 30

// Archive is a little-endian binary reader or writer with a sticky error.
// After the first failure every call is a no-op and Err reports the failure.
type Archive struct {
	loading bool
	r       io.Reader
	w       io.Writer
	version int32
	err     error
	scratch [8]byte
}

func NewWriter(w io.Writer) *Archive {
	return &Archive{w: w, version: core.VersionLatest}
}

func NewReader(r io.Reader) *Archive {
	return &Archive{r: r, loading: true, version: core.VersionLatest}
}

func (a *Archive) IsLoading() bool { return a.loading }
func (a *Archive) IsSaving() bool  { return !a.loading }
func (a *Archive) Version() int32  { return a.version }
func (a *Archive) Err() error      { return a.err }

// SetVersion overrides the version written by Header. Only meaningful when saving.
func (a *Archive) SetVersion(v int32) { a.version = v }

// Fail records err unless an earlier error is already pending.
func (a *Archive) Fail(err error) {
	if a.err == nil && err != nil {
		a.err = err
	}
}

// Header writes or reads the custom version tag. Reading adopts the stored version.
func (a *Archive) Header() error {
	guid := core.CustomVersionGUID
	a.raw(guid[:])
	version := a.version
	a.Int32(&version)
	if a.err != nil {
		return a.err
	}
	if a.loading {
		if guid != core.CustomVersionGUID {
			a.Fail(fmt.Errorf("%w: got %s", ErrBadGUID, guid))
			return a.err
		}
		if version > core.VersionLatest || version < 0 {
			a.Fail(fmt.Errorf("%w: %d > %d", ErrFutureVersion, version, core.VersionLatest))
			return a.err
		}
		a.version = version
	}
	return nil
}

func (a *Archive) raw(b []byte) {
	if a.err != nil {
		return
	}
	if a.loading {
		if _, err := io.ReadFull(a.r, b); err != nil {
			a.Fail(fmt.Errorf("archive read: %w", err))
		}
		return
	}
	if _, err := a.w.Write(b); err != nil {
		a.Fail(fmt.Errorf("archive write: %w", err))
	}
}

func (a *Archive) Uint8(v *uint8) {
	b := a.scratch[:1]
	b[0] = *v
	a.raw(b)
	if a.loading && a.err == nil {
		*v = b[0]
	}
}

func (a *Archive) Bool(v *bool) {
	var b uint8
	if *v {
		b = 1
	}
	a.Uint8(&b)
	if a.loading {
		*v = b != 0
	}
}

func (a *Archive) Uint32(v *uint32) {
	b := a.scratch[:4]
	binary.LittleEndian.PutUint32(b, *v)
	a.raw(b)
	if a.loading && a.err == nil {
		*v = binary.LittleEndian.Uint32(b)
	}
}

func (a *Archive) Int32(v *int32) {
	u := uint32(*v)
	a.Uint32(&u)
	if a.loading {
		*v = int32(u)
	}
}

func (a *Archive) Float32(v *float32) {
	u := math.Float32bits(*v)
	a.Uint32(&u)
	if a.loading {
		*v = math.Float32frombits(u)
	}
}

func (a *Archive) Vec3(v *mgl32.Vec3) {
	for i := range v {
		a.Float32(&v[i])
	}
}

// Count reads or writes a non-negative element count.
func (a *Archive) Count(n *int) {
	c := int32(*n)
	a.Int32(&c)
	if a.loading {
		if c < 0 || c > maxBlob {
			a.Fail(fmt.Errorf("archive: invalid count %d", c))
			c = 0
		}
		*n = int(c)
	}
}

func (a *Archive) Bytes(v *[]byte) {
	n := len(*v)
	a.Count(&n)
	if a.loading {
		if a.err != nil {
			return
		}
		*v = make([]byte, n)
	}
	a.raw(*v)
}

func (a *Archive) String(v *string) {
	b := []byte(*v)
	a.Bytes(&b)
	if a.loading {
		*v = string(b)
	}
}
