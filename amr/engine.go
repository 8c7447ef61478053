// Package amr decides which cells of a hexahedral mesh to split or merge from
// an error indicator field, keeps the mesh 2:1 balanced and carries levels,
// protection and fields across every topology change.
package amr

import (
	"github.com/notargets/hexamr/mesh"
)

// TopologyEngine performs the cell splitting and merging and owns the
// refinement history of the mesh
type TopologyEngine interface {
	Mesh() *mesh.PolyMesh
	CellLevel() []int
	PointLevel() []int
	SetRefinement(cells []int) (*mesh.TopoChange, error)
	// SetUnrefinement takes split points, or split edges when UseEdges is true
	SetUnrefinement(splitPointsEdges []int) (*mesh.TopoChange, error)
	ChangeMesh(tc *mesh.TopoChange, inflate bool) (*mesh.MeshMap, error)
	UpdateMesh(mm *mesh.MeshMap) error
	ConsistentRefinement(cells []int, addToSet bool) []int
	ConsistentUnrefinement(splitPointsEdges []int, addToSet bool) []int
	SplitPointsEdges() []int
	UseEdges() bool
	CheckRefinementLevels() error
}

// FieldStore holds the cell fields that follow the mesh
type FieldStore interface {
	Field(name string) ([]float64, error)
	PatchInternalField(name string, patch int) ([]float64, error)
	// PatchNeighbourFields returns the values across every coupled patch,
	// keyed by patch index. Collective.
	PatchNeighbourFields(name string) (map[int][]float64, error)
	UpdateMesh(m *mesh.PolyMesh, mm *mesh.MeshMap) error
}

// CellSetWriter persists a named set of cells
type CellSetWriter interface {
	WriteCellSet(set *CellSet) error
}
