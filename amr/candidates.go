package amr

import (
	"go.uber.org/zap"

	"github.com/notargets/hexamr/mesh"
)

// RefineCellSetName names the set of cells marked for refinement
const RefineCellSetName = "refineCells"

// SelectRefineCandidates marks the cells whose error, taken through the
// points, lies inside [low, high]
func SelectRefineCandidates(m *mesh.PolyMesh, vFld []float64, low, high float64) (candidates *CellSet) {
	var (
		cellError = MaxPointField(m, BoundedError(CellToPoint(m, vFld), low, high))
	)
	candidates = NewCellSet(RefineCellSetName, m.NCells)
	for c, e := range cellError {
		if e > 0 {
			candidates.Set(c)
		}
	}
	return
}

/*
ExtendMarkedCells grows the marked set by one layer of face neighbours. Only
cells below their maximum refinement level grow the set on the top layer;
later layers grow from every marked cell. Collective.
*/
func ExtendMarkedCells(m *mesh.PolyMesh, marked *CellSet, maxRefinement, cellLevel []int, top bool) {
	var (
		nIF        = m.NInternalFaces()
		markedFace = make([]bool, m.NFaces())
	)
	for c, cFaces := range m.Cells() {
		if !marked.Get(c) || (top && maxRefinement[c] <= cellLevel[c]) {
			continue
		}
		for _, f := range cFaces {
			markedFace[f] = true
		}
	}
	mesh.SyncFaceListOr(m, markedFace)
	for f, mf := range markedFace {
		if !mf {
			continue
		}
		marked.Set(m.Owner[f])
		if f < nIF {
			marked.Set(m.Neighbour[f])
		}
	}
}

/*
BudgetedCandidates picks the candidates to split given room for nTotToRefine
more splits. Candidates that are protected or at their maximum level are
skipped. When the candidates do not fit, cells are taken level by level from
the coarsest, stopping after the first level that exceeds the budget.
Collective.
*/
func BudgetedCandidates(m *mesh.PolyMesh, nTotToRefine int, maxRefinement, cellLevel []int,
	candidates, unrefineable *CellSet) (cells []int) {
	eligible := func(c int) bool {
		return candidates.Get(c) && !unrefineable.Get(c) && cellLevel[c] < maxRefinement[c]
	}
	if m.Comm.SumInt(candidates.Count()) < nTotToRefine {
		for c := 0; c < m.NCells; c++ {
			if eligible(c) {
				cells = append(cells, c)
			}
		}
		return
	}
	var maxLevel int
	for _, l := range maxRefinement {
		maxLevel = max(maxLevel, l)
	}
	maxLevel = m.Comm.MaxInt(maxLevel)
	for level := 0; level < maxLevel; level++ {
		for c := 0; c < m.NCells; c++ {
			if cellLevel[c] == level && eligible(c) {
				cells = append(cells, c)
			}
		}
		if m.Comm.SumInt(len(cells)) > nTotToRefine {
			break
		}
	}
	return
}

// SelectRefineCells turns the candidates into a balanced set of cells to
// split that keeps the mesh within maxCells. Collective.
func SelectRefineCells(m *mesh.PolyMesh, balance BalanceEnforcer, maxCells int, maxRefinement []int,
	levels *LevelTracker, candidates, protected *CellSet, logger *zap.Logger) (consistent []int) {
	var (
		nTotalCells = m.Comm.SumInt(m.NCells)
		// Every split adds 7 cells
		nTotToRefine = (maxCells - nTotalCells) / 7
		unrefineable = PropagateProtection(m, levels, protected)
	)
	cells := BudgetedCandidates(m, nTotToRefine, maxRefinement, levels.CellLevels(), candidates, unrefineable)
	consistent = balance.ConsistentRefinement(cells)
	infof(m, logger, "Selected %d cells for refinement out of %d.",
		m.Comm.SumInt(len(consistent)), nTotalCells)
	return
}

/*
SelectUnrefinePointsEdges picks the split points (split edges) whose field
value is below unrefineLevel and whose cells are all unmarked, then drops the
ones that would break the 2:1 balance. An edge qualifies through either of
its end points. unrefineLevel is compared with the point field value, not
with a refinement level. Collective.
*/
func SelectUnrefinePointsEdges(m *mesh.PolyMesh, balance BalanceEnforcer, unrefineLevel float64,
	marked *CellSet, pFld []float64, logger *zap.Logger) (consistent []int) {
	var (
		splitPointsEdges = balance.Engine.SplitPointsEdges()
		pointCells       = m.PointCells()
		candidates       []int
	)
	free := func(p int) bool {
		if pFld[p] >= unrefineLevel {
			return false
		}
		for _, c := range pointCells[p] {
			if marked.Get(c) {
				return false
			}
		}
		return true
	}
	useEdges := balance.Engine.UseEdges()
	for _, sp := range splitPointsEdges {
		if useEdges {
			verts := m.Edges()[sp].GetVertices(false)
			if free(verts[0]) || free(verts[1]) {
				candidates = append(candidates, sp)
			}
			continue
		}
		if free(sp) {
			candidates = append(candidates, sp)
		}
	}
	consistent = balance.ConsistentUnrefinement(candidates)
	kind := "points"
	if useEdges {
		kind = "edges"
	}
	infof(m, logger, "Selected %d split %s out of a possible %d.",
		m.Comm.SumInt(len(consistent)), kind, m.Comm.SumInt(len(splitPointsEdges)))
	return
}

// remapRefineCandidates moves the marked set onto a refined mesh. New cells,
// other than the first child of a split cell, are marked; the rest keep the
// flag of their old cell.
func remapRefineCandidates(marked *CellSet, mm *mesh.MeshMap) (remapped *CellSet) {
	remapped = NewCellSet(marked.Name, mm.NCells())
	for c, oc := range mm.CellMap {
		if oc < 0 || mm.ReverseCellMap[oc] != c || marked.Get(oc) {
			remapped.Set(c)
		}
	}
	return
}

// infof logs a message about global quantities once, from the first partition
func infof(m *mesh.PolyMesh, logger *zap.Logger, template string, args ...interface{}) {
	if m.Comm.Rank() == 0 {
		logger.Sugar().Infof(template, args...)
	}
}
