package core

import "github.com/google/uuid"

// CustomVersionGUID tags archives written by this package.
var CustomVersionGUID = uuid.MustParse("6a8c1f4e-3d27-4b9a-9e51-0c7f2b8d4a63")

// Archive format versions. New versions are only ever appended.
const (
	VersionInitial int32 = iota
	// VersionStreamsHoldEntireKey stores full stream keys instead of stream names.
	VersionStreamsHoldEntireKey
	// VersionSectionGroupConfig adds SectionGroupConfig to section groups.
	VersionSectionGroupConfig
	// VersionDataRestructure replaces index based group/section keys with names.
	VersionDataRestructure
	// VersionUserSetBounds persists user override bounds on every node.
	VersionUserSetBounds

	versionPlusOne
	VersionLatest = versionPlusOne - 1
)
