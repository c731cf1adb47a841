package core

import (
	"fmt"
	"strconv"

	"github.com/google/uuid"
)

// MaxLODs is the fixed capacity of a mesh's LOD array.
const MaxLODs = 8

// LODKey identifies a LOD by its position in the mesh's LOD array.
type LODKey uint8

// InvalidLODKey is returned where a LOD could not be created.
const InvalidLODKey LODKey = 0xFF

func (k LODKey) Index() int    { return int(k) }
func (k LODKey) IsValid() bool { return k < MaxLODs }

func (k LODKey) String() string {
	return "LOD:" + strconv.Itoa(int(k))
}

// SectionGroupKey names a section group within one LOD.
type SectionGroupKey struct {
	LOD  LODKey
	Name string
}

func NewSectionGroupKey(lod LODKey, name string) SectionGroupKey {
	return SectionGroupKey{LOD: lod, Name: name}
}

// NewUniqueSectionGroupKey returns a key with a random, collision-free name.
func NewUniqueSectionGroupKey(lod LODKey) SectionGroupKey {
	return SectionGroupKey{LOD: lod, Name: uuid.NewString()}
}

// SectionGroupKeyFromIndex synthesizes the name-based key for section groups
// that older archives addressed by index.
func SectionGroupKeyFromIndex(lod LODKey, index int) SectionGroupKey {
	return SectionGroupKey{LOD: lod, Name: "SectionGroup_" + strconv.Itoa(index)}
}

func (k SectionGroupKey) IsPartOf(lod LODKey) bool { return k.LOD == lod }

func (k SectionGroupKey) String() string {
	return fmt.Sprintf("%s/Group:%s", k.LOD, k.Name)
}

// Less orders keys by LOD then name. Used for stable serialization.
func (k SectionGroupKey) Less(o SectionGroupKey) bool {
	if k.LOD != o.LOD {
		return k.LOD < o.LOD
	}
	return k.Name < o.Name
}

// SectionKey names a section within one section group.
type SectionKey struct {
	Group SectionGroupKey
	Name  string
}

func NewSectionKey(group SectionGroupKey, name string) SectionKey {
	return SectionKey{Group: group, Name: name}
}

// SectionKeyFromPolyGroup is the key used for sections generated from a
// polygroup index.
func SectionKeyFromPolyGroup(group SectionGroupKey, polyGroup int) SectionKey {
	return SectionKey{Group: group, Name: "PolyGroup_" + strconv.Itoa(polyGroup)}
}

// SectionKeyFromIndex synthesizes keys for sections stored by index in older archives.
func SectionKeyFromIndex(group SectionGroupKey, index int) SectionKey {
	return SectionKey{Group: group, Name: "Section_" + strconv.Itoa(index)}
}

func (k SectionKey) LOD() LODKey { return k.Group.LOD }

func (k SectionKey) IsPartOf(group SectionGroupKey) bool { return k.Group == group }

func (k SectionKey) IsPartOfLOD(lod LODKey) bool { return k.Group.LOD == lod }

func (k SectionKey) String() string {
	return fmt.Sprintf("%s/Section:%s", k.Group, k.Name)
}

func (k SectionKey) Less(o SectionKey) bool {
	if k.Group != o.Group {
		return k.Group.Less(o.Group)
	}
	return k.Name < o.Name
}
