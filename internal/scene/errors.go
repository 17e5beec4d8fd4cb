package scene

import "errors"

var (
	// ErrNoGroups is returned when group selection runs against an
	// empty catalog.
	ErrNoGroups = errors.New("no scene groups found (empty results)")

	// ErrMissingFrameMetadata is returned when single-frame
	// enforcement is requested but no scene in the chosen group
	// carries a frame identifier.
	ErrMissingFrameMetadata = errors.New("frame metadata not found in search results")
)
