package hexref

import (
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/notargets/hexamr/mesh"
)

func uniqueSorted(list []int) (out []int) {
	out = append([]int{}, list...)
	sort.Ints(out)
	var n int
	for i, v := range out {
		if i == 0 || v != out[n-1] {
			out[n] = v
			n++
		}
	}
	return out[:n]
}

// SetRefinement records the cells to split. The resulting levels must keep
// faces 2:1 balanced.
func (e *Engine) SetRefinement(cells []int) (tc *mesh.TopoChange, err error) {
	if e.stale {
		return nil, fmt.Errorf("%w: levels not updated after the last change", ErrRefinement)
	}
	cells = uniqueSorted(cells)
	refine := make([]bool, len(e.cells))
	for _, ci := range cells {
		if ci < 0 || ci >= len(e.cells) {
			return nil, fmt.Errorf("%w: cell %d outside [0,%d)", ErrRefinement, ci, len(e.cells))
		}
		if e.cells[ci].Level >= e.lt.cfg.MaxLevel {
			return nil, fmt.Errorf("%w: cell %d is at the maximum level %d",
				ErrRefinement, ci, e.lt.cfg.MaxLevel)
		}
		refine[ci] = true
	}
	newLevel := func(ci int) int {
		if refine[ci] {
			return e.cellLevel[ci] + 1
		}
		return e.cellLevel[ci]
	}
	if f := e.unbalancedFace(newLevel); f >= 0 {
		return nil, fmt.Errorf("%w: refinement breaks 2:1 balance at face %d", ErrRefinement, f)
	}
	tc = &mesh.TopoChange{RefineCells: cells}
	return
}

// SetUnrefinement records the split points (split edges in two dimensional
// mode) whose cells are to be merged
func (e *Engine) SetUnrefinement(splitPointsEdges []int) (tc *mesh.TopoChange, err error) {
	if e.stale {
		return nil, fmt.Errorf("%w: levels not updated after the last change", ErrRefinement)
	}
	splitPointsEdges = uniqueSorted(splitPointsEdges)
	merged := make([]bool, len(e.cells))
	for _, sp := range splitPointsEdges {
		parent, ok := e.splitParents()[sp]
		if !ok {
			return nil, fmt.Errorf("%w: %d is not a split point or edge", ErrRefinement, sp)
		}
		for _, ch := range e.lt.children(parent) {
			merged[e.cellIndex[ch]] = true
		}
	}
	newLevel := func(ci int) int {
		if merged[ci] {
			return e.cellLevel[ci] - 1
		}
		return e.cellLevel[ci]
	}
	if f := e.unbalancedFace(newLevel); f >= 0 {
		return nil, fmt.Errorf("%w: unrefinement breaks 2:1 balance at face %d", ErrRefinement, f)
	}
	tc = &mesh.TopoChange{
		UnrefinePointsEdges: splitPointsEdges,
		FaceToSplitPoint:    make(map[int]int),
	}
	return
}

// unbalancedFace returns the first internal face whose cells would differ by
// more than one level, or -1
func (e *Engine) unbalancedFace(newLevel func(ci int) int) int {
	m := e.mesh
	for f := 0; f < m.NInternalFaces(); f++ {
		d := newLevel(m.Owner[f]) - newLevel(m.Neighbour[f])
		if d > 1 || d < -1 {
			return f
		}
	}
	return -1
}

// ChangeMesh builds the new leaves and mesh. Levels are brought up to date by
// UpdateMesh. Meshes are always built at their final size, inflate has no
// effect.
func (e *Engine) ChangeMesh(tc *mesh.TopoChange, inflate bool) (mm *mesh.MeshMap, err error) {
	var (
		nOldCells  = len(e.cells)
		nOldPoints = len(e.points)
		newCells   []cellKey
		cellMap    []int
		cff        = make(map[int][]int)
	)
	switch {
	case len(tc.RefineCells) > 0 && len(tc.UnrefinePointsEdges) > 0:
		return nil, fmt.Errorf("%w: cannot refine and unrefine in one change", ErrRefinement)
	case len(tc.RefineCells) > 0:
		refine := make(map[int]bool, len(tc.RefineCells))
		for _, ci := range tc.RefineCells {
			refine[ci] = true
		}
		for ci, k := range e.cells {
			if !refine[ci] {
				newCells, cellMap = append(newCells, k), append(cellMap, ci)
				continue
			}
			for _, ch := range e.lt.children(k) {
				newCells, cellMap = append(newCells, ch), append(cellMap, ci)
			}
		}
	case len(tc.UnrefinePointsEdges) > 0:
		if err = e.checkFaceMergePoints(tc); err != nil {
			return nil, err
		}
		var (
			parents = make(map[cellKey]bool)
			placed  = make(map[cellKey]int)
		)
		for _, sp := range tc.UnrefinePointsEdges {
			parents[e.splitParents()[sp]] = true
		}
		for ci, k := range e.cells {
			if k.Level > 0 {
				if p := e.lt.parent(k); parents[p] {
					if ni, ok := placed[p]; ok {
						cff[ni] = append(cff[ni], ci)
						continue
					}
					placed[p] = len(newCells)
					cff[len(newCells)] = []int{ci}
					newCells, cellMap = append(newCells, p), append(cellMap, ci)
					continue
				}
			}
			newCells, cellMap = append(newCells, k), append(cellMap, ci)
		}
	default:
		return mesh.IdentityMap(nOldCells, nOldPoints), nil
	}

	pointMap, err := e.rebuild(newCells)
	if err != nil {
		return nil, err
	}
	e.stale = true
	mm = &mesh.MeshMap{
		NOldCells:      nOldCells,
		NOldPoints:     nOldPoints,
		CellMap:        cellMap,
		PointMap:       pointMap,
		CellsFromCells: cff,
	}
	mm.Reverse()
	e.logger.Debug("changed lattice mesh",
		zap.Int("oldCells", nOldCells), zap.Int("cells", len(newCells)),
		zap.Int("oldPoints", nOldPoints), zap.Int("points", len(pointMap)))
	return
}

// checkFaceMergePoints requires, for every split point or edge, a face whose
// recorded merge target is next to it
func (e *Engine) checkFaceMergePoints(tc *mesh.TopoChange) error {
	var (
		m       = e.mesh
		targets = make(map[int]bool)
	)
	for _, p := range tc.FaceToSplitPoint {
		targets[p] = true
	}
	for _, sp := range tc.UnrefinePointsEdges {
		var found bool
		if e.UseEdges() {
			verts := m.Edges()[sp].GetVertices(false)
			found = targets[verts[0]] || targets[verts[1]]
		} else {
			for _, pe := range m.PointEdges()[sp] {
				found = found || targets[m.Edges()[pe].OtherVertex(sp)]
			}
		}
		if !found {
			return fmt.Errorf("%w: no face merge point recorded for split %d", ErrRefinement, sp)
		}
	}
	return nil
}

// UpdateMesh brings the levels up to date with the mesh made by ChangeMesh
func (e *Engine) UpdateMesh(mm *mesh.MeshMap) error {
	if mm.NCells() != len(e.cells) || mm.NPoints() != len(e.points) {
		return fmt.Errorf("%w: map of %d cells and %d points does not match mesh of %d cells and %d points",
			ErrRefinement, mm.NCells(), mm.NPoints(), len(e.cells), len(e.points))
	}
	e.updateLevels()
	return nil
}
