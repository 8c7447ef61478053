package amr

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/notargets/hexamr/mesh"
)

/*
State is what the controller keeps between adapt cycles. Every topology
change re-indexes it exactly once, through remap. DefaultMaxRefinement is
given to cells that have no predecessor; Strict turns level mismatches after
a change into errors.
*/
type State struct {
	Levels               *LevelTracker
	Protected            *CellSet
	MaxRefinement        []int
	DefaultMaxRefinement int
	Strict               bool
}

// NewState starts from the levels held by the engine. The protected set is
// empty until StructuralProtection fills it.
func NewState(engine TopologyEngine, maxRefinement []int) *State {
	defaultMax := 1
	for _, l := range maxRefinement {
		defaultMax = max(defaultMax, l)
	}
	return &State{
		Levels:               NewLevelTracker(engine.CellLevel(), engine.PointLevel()),
		Protected:            &CellSet{Name: ProtectedCellSetName},
		MaxRefinement:        append([]int{}, maxRefinement...),
		DefaultMaxRefinement: defaultMax,
	}
}

func (st *State) remap(m *mesh.PolyMesh, mm *mesh.MeshMap, cellLevel func(newCell, oldCell int) int) {
	var (
		pointCells = m.PointCells()
	)
	st.Levels.Remap(mm, cellLevel, func(p int, newCellLevel []int) (level int) {
		for _, c := range pointCells[p] {
			level = max(level, newCellLevel[c])
		}
		return
	})
	st.Protected.Remap(mm)
	maxRefinement := make([]int, mm.NCells())
	for c, oc := range mm.CellMap {
		maxRefinement[c] = st.DefaultMaxRefinement
		if oc >= 0 {
			maxRefinement[c] = st.MaxRefinement[oc]
		}
	}
	st.MaxRefinement = maxRefinement
}

// checkLevels compares the tracked levels with the engine and checks the 2:1
// balance across faces
func (st *State) checkLevels(engine TopologyEngine, logger *zap.Logger) (err error) {
	if err = engine.CheckRefinementLevels(); err == nil {
		if cell, point := st.Levels.Mismatch(engine.CellLevel(), engine.PointLevel()); cell >= 0 {
			err = fmt.Errorf("cell %d", cell)
		} else if point >= 0 {
			err = fmt.Errorf("point %d", point)
		}
	}
	if err == nil {
		return
	}
	logger.Warn("refinement levels inconsistent after mesh change", zap.Error(err))
	if st.Strict {
		return fmt.Errorf("%w: %w", ErrLevelMismatch, err)
	}
	return nil
}

// Refine splits the cells, moves the fields onto the new mesh and remaps the
// state. Children are one level finer than their parent. Collective.
func Refine(engine TopologyEngine, fields FieldStore, st *State, cells []int,
	logger *zap.Logger) (mm *mesh.MeshMap, err error) {
	var (
		tc      *mesh.TopoChange
		refined = make(map[int]bool, len(cells))
	)
	if tc, err = engine.SetRefinement(cells); err != nil {
		return
	}
	for _, c := range tc.RefineCells {
		refined[c] = true
	}
	if mm, err = applyChange(engine, fields, tc, "Refined", logger); err != nil {
		return
	}
	newLevel := engine.CellLevel()
	st.remap(engine.Mesh(), mm, func(c, oc int) int {
		switch {
		case oc < 0:
			return newLevel[c]
		case refined[oc]:
			return st.Levels.CellLevel(oc) + 1
		}
		return st.Levels.CellLevel(oc)
	})
	err = st.checkLevels(engine, logger)
	return
}

/*
Unrefine merges the cells around the split points (edges), moves the fields
onto the new mesh and remaps the state. Merged cells are one level coarser;
cells that disappear are dropped. Collective.
*/
func Unrefine(engine TopologyEngine, fields FieldStore, st *State, splitPointsEdges []int,
	logger *zap.Logger) (mm *mesh.MeshMap, err error) {
	var (
		m  = engine.Mesh()
		tc *mesh.TopoChange
	)
	if tc, err = engine.SetUnrefinement(splitPointsEdges); err != nil {
		return
	}
	recordFaceMergePoints(m, tc, engine.UseEdges())
	if mm, err = applyChange(engine, fields, tc, "Unrefined", logger); err != nil {
		return
	}
	newLevel := engine.CellLevel()
	st.remap(engine.Mesh(), mm, func(c, oc int) int {
		if _, merged := mm.CellsFromCells[c]; merged && oc >= 0 {
			return st.Levels.CellLevel(oc) - 1
		}
		if oc < 0 {
			return newLevel[c]
		}
		return st.Levels.CellLevel(oc)
	})
	err = st.checkLevels(engine, logger)
	return
}

/*
recordFaceMergePoints stores, for every face that is about to be merged, the
point it collapses onto. In edge mode these are the ends of the split edges,
in point mode the points one edge away from the split points. The first
point found for a face is kept.
*/
func recordFaceMergePoints(m *mesh.PolyMesh, tc *mesh.TopoChange, useEdges bool) {
	var (
		pointFaces = m.PointFaces()
	)
	if tc.FaceToSplitPoint == nil {
		tc.FaceToSplitPoint = make(map[int]int)
	}
	insert := func(p int) {
		for _, f := range pointFaces[p] {
			if _, ok := tc.FaceToSplitPoint[f]; !ok {
				tc.FaceToSplitPoint[f] = p
			}
		}
	}
	for _, sp := range tc.UnrefinePointsEdges {
		if useEdges {
			verts := m.Edges()[sp].GetVertices(false)
			insert(verts[0])
			insert(verts[1])
			continue
		}
		for _, e := range m.PointEdges()[sp] {
			insert(m.Edges()[e].OtherVertex(sp))
		}
	}
}

// applyChange runs the engine's mesh change and brings the fields and engine
// levels up to date
func applyChange(engine TopologyEngine, fields FieldStore, tc *mesh.TopoChange, verb string,
	logger *zap.Logger) (mm *mesh.MeshMap, err error) {
	if mm, err = engine.ChangeMesh(tc, false); err != nil {
		return
	}
	m := engine.Mesh()
	infof(m, logger, "%s from %d to %d cells.", verb, m.Comm.SumInt(mm.NOldCells), m.Comm.SumInt(m.NCells))
	if err = fields.UpdateMesh(m, mm); err != nil {
		return
	}
	err = engine.UpdateMesh(mm)
	return
}
