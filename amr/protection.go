package amr

import (
	"github.com/notargets/hexamr/mesh"
)

// ProtectedCellSetName is the name the structural protection is written under
const ProtectedCellSetName = "protectedCells"

/*
StructuralProtection marks the cells that cannot be split as hexahedra:

  - cells with fewer than 6 faces (5 when the mesh has wedge patches), or
    with a face of fewer than 4 points (3 with wedges)
  - cells using a face with more than 4 anchor points, or exactly 2, where a
    face point is an anchor when its level is at most the higher level of the
    two cells on the face
  - cells with more than 8 anchor points, or without wedge patches any number
    other than 8

nProtected is the global number of protected cells. When it is zero the set
is returned empty. Collective.
*/
func StructuralProtection(m *mesh.PolyMesh, levels *LevelTracker) (protected *CellSet, nProtected int) {
	var (
		cellLevel  = levels.CellLevels()
		pointLevel = levels.PointLevels()
		nIF        = m.NInternalFaces()
		wedge      = m.HasWedge()
		nAnchors   = make([]int, m.NCells)
	)
	protected = NewCellSet(ProtectedCellSetName, m.NCells)

	for p, pCells := range m.PointCells() {
		for _, c := range pCells {
			if pointLevel[p] <= cellLevel[c] {
				nAnchors[c]++
			}
		}
	}
	for c, n := range nAnchors {
		if n > 8 || (!wedge && n != 8) {
			protected.Set(c)
		}
	}

	// A coupled face can be one level finer than its owner because the cell
	// on the other side is refined
	neiLevel := make([]int, m.NFaces())
	for f := 0; f < nIF; f++ {
		neiLevel[f] = cellLevel[m.Neighbour[f]]
	}
	for f := nIF; f < m.NFaces(); f++ {
		neiLevel[f] = cellLevel[m.Owner[f]]
	}
	mesh.SwapFaceList(m, neiLevel)

	protectedFace := make([]bool, m.NFaces())
	for f, face := range m.Faces {
		var (
			faceLevel = max(cellLevel[m.Owner[f]], neiLevel[f])
			n         int
		)
		for _, p := range face {
			if pointLevel[p] <= faceLevel {
				n++
			}
		}
		protectedFace[f] = n > 4 || n == 2
	}
	mesh.SyncFaceListOr(m, protectedFace)
	for f, pf := range protectedFace {
		if !pf {
			continue
		}
		protected.Set(m.Owner[f])
		if f < nIF {
			protected.Set(m.Neighbour[f])
		}
	}

	minFaces, minFacePoints := 6, 4
	if wedge {
		minFaces, minFacePoints = 5, 3
	}
	for c, cFaces := range m.Cells() {
		if len(cFaces) < minFaces {
			protected.Set(c)
			continue
		}
		for _, f := range cFaces {
			if len(m.Faces[f]) < minFacePoints {
				protected.Set(c)
				break
			}
		}
	}

	if nProtected = m.Comm.SumInt(protected.Count()); nProtected == 0 {
		protected.Clear()
	}
	return
}

/*
PropagateProtection grows a protected set so that splitting any cell left
outside it can never force a protected cell to split through the 2:1 rule. A
face is a seed when the cell on one side is protected and the other side is
finer; both cells of every seed face become protected. The loop stops when no
partition extended its set. The seed set is not modified, and a seed with no
cell marked on any partition gives an empty set. Collective.
*/
func PropagateProtection(m *mesh.PolyMesh, levels *LevelTracker, seed *CellSet) (unrefineable *CellSet) {
	if m.Comm.SumInt(seed.Count()) == 0 {
		return &CellSet{Name: seed.Name}
	}
	var (
		cellLevel = levels.CellLevels()
		nIF       = m.NInternalFaces()
		neiLevel  = mesh.NeighbourCellValues(m, cellLevel)
		maxIter   = m.Comm.SumInt(m.NCells) + 1
	)
	unrefineable = seed.Copy()
	for iter := 0; iter < maxIter; iter++ {
		seedFace := make([]bool, m.NFaces())
		for f := 0; f < nIF; f++ {
			own, nei := m.Owner[f], m.Neighbour[f]
			switch {
			case unrefineable.Get(own) && cellLevel[nei] > cellLevel[own]:
				seedFace[f] = true
			case unrefineable.Get(nei) && cellLevel[own] > cellLevel[nei]:
				seedFace[f] = true
			}
		}
		for f := nIF; f < m.NFaces(); f++ {
			own := m.Owner[f]
			if unrefineable.Get(own) && neiLevel[f-nIF] > cellLevel[own] {
				seedFace[f] = true
			}
		}
		mesh.SyncFaceListOr(m, seedFace)

		var hasExtended bool
		for f, sf := range seedFace {
			if !sf {
				continue
			}
			if unrefineable.Set(m.Owner[f]) {
				hasExtended = true
			}
			if f < nIF && unrefineable.Set(m.Neighbour[f]) {
				hasExtended = true
			}
		}
		if !m.Comm.Or(hasExtended) {
			break
		}
	}
	return
}
