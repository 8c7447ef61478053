package amr

import "errors"

var (
	// ErrConfig marks a refinement setting that cannot be used. It is returned
	// before the mesh is touched.
	ErrConfig = errors.New("illegal refinement configuration")
	// ErrLevelMismatch marks cell or point levels that disagree with the
	// topology engine after a mesh change
	ErrLevelMismatch = errors.New("refinement level mismatch")
)
