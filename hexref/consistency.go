package hexref

import (
	"fmt"
	"sort"

	"github.com/notargets/hexamr/mesh"
)

// maxConsistencyIterations bounds the closure loops; each pass moves the
// front by at least one cell
const maxConsistencyIterations = 1000

/*
ConsistentRefinement adjusts a set of cells to split so that face neighbours
end up at most one level apart. With addToSet the set grows to include the
coarser neighbours that must also split, otherwise cells are dropped until
the set is balanced. Cells already at the maximum level are dropped.
*/
func (e *Engine) ConsistentRefinement(cells []int, addToSet bool) (consistent []int) {
	var (
		m      = e.mesh
		refine = make([]bool, len(e.cells))
	)
	for _, ci := range cells {
		if e.cellLevel[ci] < e.lt.cfg.MaxLevel {
			refine[ci] = true
		}
	}
	level := func(ci int) int {
		if refine[ci] {
			return e.cellLevel[ci] + 1
		}
		return e.cellLevel[ci]
	}
	for iter := 0; iter < maxConsistencyIterations; iter++ {
		var changed bool
		for f := 0; f < m.NInternalFaces(); f++ {
			own, nei := m.Owner[f], m.Neighbour[f]
			fine, coarse := own, nei
			if level(nei) > level(own) {
				fine, coarse = nei, own
			}
			if level(fine)-level(coarse) <= 1 {
				continue
			}
			if addToSet {
				refine[coarse] = true
			} else {
				refine[fine] = false
			}
			changed = true
		}
		if !m.Comm.Or(changed) {
			break
		}
	}
	for ci, r := range refine {
		if r {
			consistent = append(consistent, ci)
		}
	}
	return
}

/*
ConsistentUnrefinement adjusts a set of split points (edges in two
dimensional mode) so that merging their cells keeps face neighbours at most
one level apart. Without addToSet offending splits are dropped; with it the
finer neighbour's split is added when there is one.
*/
func (e *Engine) ConsistentUnrefinement(splitPointsEdges []int, addToSet bool) (consistent []int) {
	var (
		m       = e.mesh
		parents = e.splitParents()
		byCell  = make(map[int]int) // Child cell to its split
		active  = make(map[int]bool)
	)
	for sp, parent := range parents {
		for _, ch := range e.lt.children(parent) {
			byCell[e.cellIndex[ch]] = sp
		}
	}
	for _, sp := range splitPointsEdges {
		if _, ok := parents[sp]; ok {
			active[sp] = true
		}
	}
	level := func(ci int) int {
		if sp, ok := byCell[ci]; ok && active[sp] {
			return e.cellLevel[ci] - 1
		}
		return e.cellLevel[ci]
	}
	for iter := 0; iter < maxConsistencyIterations; iter++ {
		var changed bool
		for f := 0; f < m.NInternalFaces(); f++ {
			own, nei := m.Owner[f], m.Neighbour[f]
			fine, coarse := own, nei
			if level(nei) > level(own) {
				fine, coarse = nei, own
			}
			if level(fine)-level(coarse) <= 1 {
				continue
			}
			if sp, ok := byCell[fine]; addToSet && ok && !active[sp] {
				active[sp] = true
			} else if sp, ok := byCell[coarse]; ok {
				active[sp] = false
			} else {
				continue
			}
			changed = true
		}
		if !m.Comm.Or(changed) {
			break
		}
	}
	for sp, on := range active {
		if on {
			consistent = append(consistent, sp)
		}
	}
	sort.Ints(consistent)
	return
}

// SplitPointsEdges lists the points (edges in two dimensional mode) at the
// centre of every cell whose children are all leaves
func (e *Engine) SplitPointsEdges() (list []int) {
	for sp := range e.splitParents() {
		list = append(list, sp)
	}
	sort.Ints(list)
	return
}

func (e *Engine) splitParents() map[int]cellKey {
	if e.split != nil {
		return e.split
	}
	e.split = make(map[int]cellKey)
	checked := make(map[cellKey]bool)
	for _, k := range e.cells {
		if k.Level == 0 {
			continue
		}
		p := e.lt.parent(k)
		if checked[p] {
			continue
		}
		checked[p] = true
		allLeaves := true
		for _, ch := range e.lt.children(p) {
			_, leaf := e.cellIndex[ch]
			allLeaves = allLeaves && leaf
		}
		if !allLeaves {
			continue
		}
		c := e.lt.centre(p)
		if !e.UseEdges() {
			e.split[e.pointIndex[c]] = p
			continue
		}
		lo, hi := e.lt.span(p)
		p0 := e.pointIndex[[3]int{c[0], c[1], lo[2]}]
		p1 := e.pointIndex[[3]int{c[0], c[1], hi[2]}]
		if edge := e.mesh.FindEdge(p0, p1); edge >= 0 {
			e.split[edge] = p
		}
	}
	return e.split
}

// CheckRefinementLevels reports the first face, internal or coupled, whose
// cells differ by more than one level
func (e *Engine) CheckRefinementLevels() (err error) {
	var (
		m   = e.mesh
		nIF = m.NInternalFaces()
	)
	if e.stale {
		return fmt.Errorf("%w: levels not updated after the last change", ErrRefinement)
	}
	for f := 0; f < nIF; f++ {
		own, nei := e.cellLevel[m.Owner[f]], e.cellLevel[m.Neighbour[f]]
		if own-nei > 1 || nei-own > 1 {
			err = fmt.Errorf("%w: face %d has cell levels %d and %d", ErrRefinement, f, own, nei)
			break
		}
	}
	neiLevel := mesh.NeighbourCellValues(m, e.cellLevel)
	for i, nl := range neiLevel {
		own := e.cellLevel[m.Owner[nIF+i]]
		if err == nil && (own-nl > 1 || nl-own > 1) {
			err = fmt.Errorf("%w: boundary face %d has cell levels %d and %d", ErrRefinement, nIF+i, own, nl)
		}
	}
	return
}
