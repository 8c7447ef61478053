// Package mesh holds the face based polyhedral mesh the refinement code
// operates on, its derived addressing and the coupled face exchanges.
package mesh

import (
	"fmt"

	"github.com/notargets/hexamr/parallel"
	"github.com/notargets/hexamr/types"
)

// Patch types
const (
	PatchGeneric   = "patch"
	PatchWall      = "wall"
	PatchEmpty     = "empty"
	PatchSymmetry  = "symmetry"
	PatchWedge     = "wedge"
	PatchProcessor = "processor"
)

// Patch is a contiguous range of boundary faces
type Patch struct {
	Name         string
	Type         string
	Start, Size  int // Face range [Start, Start+Size)
	NeighbProcNo int // Partition on the other side of a processor patch, -1 otherwise
}

// Coupled reports whether the faces of the patch have a neighbour cell on
// another partition
func (p Patch) Coupled() bool {
	return p.Type == PatchProcessor
}

/*
PolyMesh is a face based mesh. Faces list their points in order, the normal
pointing out of the owner cell. Internal faces come first, in upper triangular
order (sorted by owner, then neighbour), followed by the boundary faces grouped
by patch.
*/
type PolyMesh struct {
	Points    [][3]float64
	Faces     [][]int
	Owner     []int
	Neighbour []int // One per internal face
	Patches   []Patch
	NCells    int
	Comm      parallel.Comm

	// Derived addressing, built on first use
	cells       [][]int
	cellPoints  [][]int
	pointCells  [][]int
	pointFaces  [][]int
	edges       []types.EdgeKey
	pointEdges  [][]int
	cellCentres [][3]float64
}

func NewPolyMesh(points [][3]float64, faces [][]int, owner, neighbour []int,
	patches []Patch) (m *PolyMesh, err error) {
	m = &PolyMesh{
		Points:    points,
		Faces:     faces,
		Owner:     owner,
		Neighbour: neighbour,
		Patches:   patches,
		Comm:      parallel.Serial{},
	}
	if len(owner) != len(faces) {
		err = fmt.Errorf("have %d owners for %d faces", len(owner), len(faces))
		return
	}
	if len(neighbour) > len(faces) {
		err = fmt.Errorf("have %d neighbours for %d faces", len(neighbour), len(faces))
		return
	}
	for _, c := range owner {
		m.NCells = max(m.NCells, c+1)
	}
	for _, c := range neighbour {
		m.NCells = max(m.NCells, c+1)
	}
	if err = m.checkPatches(); err != nil {
		return
	}
	return
}

func (m *PolyMesh) checkPatches() (err error) {
	var (
		start = m.NInternalFaces()
	)
	for _, p := range m.Patches {
		if p.Start != start {
			return fmt.Errorf("patch %s starts at face %d, expected %d", p.Name, p.Start, start)
		}
		if p.Coupled() && (p.NeighbProcNo < 0) {
			return fmt.Errorf("processor patch %s has no neighbour partition", p.Name)
		}
		start += p.Size
	}
	if start != m.NFaces() {
		return fmt.Errorf("patches cover %d faces of %d", start, m.NFaces())
	}
	return
}

func (m *PolyMesh) NPoints() int              { return len(m.Points) }
func (m *PolyMesh) NFaces() int               { return len(m.Faces) }
func (m *PolyMesh) NInternalFaces() int       { return len(m.Neighbour) }
func (m *PolyMesh) NBoundaryFaces() int       { return len(m.Faces) - len(m.Neighbour) }
func (m *PolyMesh) IsInternalFace(f int) bool { return f < len(m.Neighbour) }

// WhichPatch returns the index of the patch holding face f, -1 for internal faces
func (m *PolyMesh) WhichPatch(f int) int {
	for i, p := range m.Patches {
		if f >= p.Start && f < p.Start+p.Size {
			return i
		}
	}
	return -1
}

// FindPatch returns the index of the named patch or -1
func (m *PolyMesh) FindPatch(name string) int {
	for i, p := range m.Patches {
		if p.Name == name {
			return i
		}
	}
	return -1
}

// HasWedge reports whether any partition has a wedge patch
func (m *PolyMesh) HasWedge() bool {
	var wedge bool
	for _, p := range m.Patches {
		if p.Type == PatchWedge {
			wedge = true
			break
		}
	}
	return m.Comm.Or(wedge)
}

// ClearAddressing drops the derived addressing after points or faces change
func (m *PolyMesh) ClearAddressing() {
	m.cells = nil
	m.cellPoints = nil
	m.pointCells = nil
	m.pointFaces = nil
	m.edges = nil
	m.pointEdges = nil
	m.cellCentres = nil
}

// Check verifies the face to cell addressing
func (m *PolyMesh) Check() (err error) {
	var (
		nIF = m.NInternalFaces()
	)
	for f := 0; f < nIF; f++ {
		own, nei := m.Owner[f], m.Neighbour[f]
		if own >= nei {
			return fmt.Errorf("internal face %d has owner %d not below neighbour %d", f, own, nei)
		}
		if f > 0 {
			pOwn, pNei := m.Owner[f-1], m.Neighbour[f-1]
			if own < pOwn || (own == pOwn && nei < pNei) {
				return fmt.Errorf("internal face %d is not in upper triangular order", f)
			}
		}
	}
	for f, face := range m.Faces {
		if len(face) < 3 {
			return fmt.Errorf("face %d has %d points", f, len(face))
		}
		for _, p := range face {
			if p < 0 || p >= m.NPoints() {
				return fmt.Errorf("face %d uses point %d outside [0,%d)", f, p, m.NPoints())
			}
		}
	}
	for c, cFaces := range m.Cells() {
		if len(cFaces) < 4 {
			return fmt.Errorf("cell %d has only %d faces", c, len(cFaces))
		}
	}
	return m.checkPatches()
}
