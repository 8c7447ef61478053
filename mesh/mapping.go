package mesh

/*
MeshMap records how the cells and points of a mesh were renumbered by a
topology change. Negative entries mean "no counterpart".

	CellMap[newCell]        = old cell it came from (a split cell's children all
	                          map to the parent)
	ReverseCellMap[oldCell] = new cell it went to (the first child of a split
	                          cell), -1 when removed
	CellsFromCells[newCell] = old cells merged into newCell, only for merges
*/
type MeshMap struct {
	NOldCells, NOldPoints int
	CellMap               []int
	ReverseCellMap        []int
	PointMap              []int
	ReversePointMap       []int
	CellsFromCells        map[int][]int
}

func (mm *MeshMap) NCells() int  { return len(mm.CellMap) }
func (mm *MeshMap) NPoints() int { return len(mm.PointMap) }

// IdentityMap is the map of a change that renumbered nothing
func IdentityMap(nCells, nPoints int) (mm *MeshMap) {
	mm = &MeshMap{
		NOldCells:       nCells,
		NOldPoints:      nPoints,
		CellMap:         make([]int, nCells),
		ReverseCellMap:  make([]int, nCells),
		PointMap:        make([]int, nPoints),
		ReversePointMap: make([]int, nPoints),
		CellsFromCells:  make(map[int][]int),
	}
	for i := 0; i < nCells; i++ {
		mm.CellMap[i], mm.ReverseCellMap[i] = i, i
	}
	for i := 0; i < nPoints; i++ {
		mm.PointMap[i], mm.ReversePointMap[i] = i, i
	}
	return
}

// Reverse fills the reverse maps from the forward maps, the first new index
// mapping to an old one wins
func (mm *MeshMap) Reverse() {
	mm.ReverseCellMap = reverseOf(mm.CellMap, mm.NOldCells)
	mm.ReversePointMap = reverseOf(mm.PointMap, mm.NOldPoints)
	for newCell, olds := range mm.CellsFromCells {
		for _, old := range olds {
			if mm.ReverseCellMap[old] != newCell {
				mm.ReverseCellMap[old] = -1
			}
		}
	}
}

func reverseOf(fwd []int, nOld int) (rev []int) {
	rev = make([]int, nOld)
	for i := range rev {
		rev[i] = -1
	}
	for n, o := range fwd {
		if o >= 0 && rev[o] < 0 {
			rev[o] = n
		}
	}
	return
}

// TopoChange describes a pending refinement or unrefinement. FaceToSplitPoint
// holds, for faces about to be merged, the point they collapse onto.
type TopoChange struct {
	RefineCells         []int
	UnrefinePointsEdges []int
	FaceToSplitPoint    map[int]int
}
