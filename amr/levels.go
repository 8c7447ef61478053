package amr

import (
	"github.com/notargets/hexamr/mesh"
)

// LevelTracker holds the refinement level of every cell and point in the
// current mesh numbering
type LevelTracker struct {
	cellLevel  []int
	pointLevel []int
}

func NewLevelTracker(cellLevel, pointLevel []int) *LevelTracker {
	return &LevelTracker{
		cellLevel:  append([]int{}, cellLevel...),
		pointLevel: append([]int{}, pointLevel...),
	}
}

func (lt *LevelTracker) CellLevel(c int) int  { return lt.cellLevel[c] }
func (lt *LevelTracker) PointLevel(p int) int { return lt.pointLevel[p] }
func (lt *LevelTracker) CellLevels() []int    { return lt.cellLevel }
func (lt *LevelTracker) PointLevels() []int   { return lt.pointLevel }
func (lt *LevelTracker) NCells() int          { return len(lt.cellLevel) }
func (lt *LevelTracker) NPoints() int         { return len(lt.pointLevel) }

/*
Remap rebuilds both level arrays in the numbering of a changed mesh. The cell
callback gives the level of every new cell from the old cell it came from
(-1 when there is none). Points that existed before keep their level; the
level of a new point comes from the point callback, which sees the already
remapped cell levels.
*/
func (lt *LevelTracker) Remap(mm *mesh.MeshMap,
	cellLevel func(newCell, oldCell int) int,
	pointLevel func(newPoint int, cellLevel []int) int) {
	var (
		newCellLevel  = make([]int, mm.NCells())
		newPointLevel = make([]int, mm.NPoints())
	)
	for c, oc := range mm.CellMap {
		newCellLevel[c] = cellLevel(c, oc)
	}
	lt.cellLevel = newCellLevel
	for p, op := range mm.PointMap {
		if op >= 0 {
			newPointLevel[p] = lt.pointLevel[op]
			continue
		}
		newPointLevel[p] = pointLevel(p, newCellLevel)
	}
	lt.pointLevel = newPointLevel
}

// Mismatch returns the first cell, then the first point, whose level differs
// from the given arrays
func (lt *LevelTracker) Mismatch(cellLevel, pointLevel []int) (cell, point int) {
	cell, point = firstDifference(lt.cellLevel, cellLevel), firstDifference(lt.pointLevel, pointLevel)
	return
}

func firstDifference(a, b []int) int {
	if len(a) != len(b) {
		return min(len(a), len(b))
	}
	for i := range a {
		if a[i] != b[i] {
			return i
		}
	}
	return -1
}
