package hexref

import (
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/notargets/hexamr/mesh"
	"github.com/notargets/hexamr/parallel"
)

/*
Engine holds the leaves of the lattice and the mesh built from them. Cells
are numbered in leaf order; the points are the corners of the leaves. Faces
between cells of different level are the faces of the finer cell, so a coarse
cell next to a refined one has four faces on that side, and every point lying
on the edge of a face is part of the face.
*/
type Engine struct {
	lt         lattice
	cells      []cellKey
	cellIndex  map[cellKey]int
	points     [][3]int
	pointIndex map[[3]int]int
	mesh       *mesh.PolyMesh
	cellLevel  []int
	pointLevel []int
	stale      bool // Levels lag behind the mesh until UpdateMesh
	split      map[int]cellKey
	logger     *zap.Logger
}

func New(cfg Config, logger *zap.Logger) (e *Engine, err error) {
	if err = cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRefinement, err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	e = &Engine{
		lt:     newLattice(cfg),
		logger: logger,
	}
	if _, err = e.rebuild(e.lt.baseCells()); err != nil {
		return nil, err
	}
	e.updateLevels()
	return
}

func (e *Engine) Mesh() *mesh.PolyMesh { return e.mesh }
func (e *Engine) CellLevel() []int     { return e.cellLevel }
func (e *Engine) PointLevel() []int    { return e.pointLevel }
func (e *Engine) UseEdges() bool       { return e.lt.cfg.TwoD }
func (e *Engine) Config() Config       { return e.lt.cfg }

// leafAt returns the leaf equal to or containing k, -1 if k is subdivided
func (e *Engine) leafAt(k cellKey) int {
	for {
		if ci, ok := e.cellIndex[k]; ok {
			return ci
		}
		if k.Level == 0 {
			return -1
		}
		k = e.lt.parent(k)
	}
}

// leavesFacing collects the leaves inside k that touch the side of k facing
// direction -dir along axis a
func (e *Engine) leavesFacing(k cellKey, a, dir int, leaves []int) []int {
	if ci, ok := e.cellIndex[k]; ok {
		return append(leaves, ci)
	}
	want := 0
	if dir < 0 {
		want = 1
	}
	for _, ch := range e.lt.children(k) {
		if e.lt.index(ch, a)&1 == want {
			leaves = e.leavesFacing(ch, a, dir, leaves)
		}
	}
	return leaves
}

// neighbours returns the leaves across side (a, dir) of cell ci. A single
// entry is a leaf at the same or a coarser level.
func (e *Engine) neighbours(ci, a, dir int) (nbrs []int, boundary bool) {
	k := e.cells[ci]
	n := e.lt.withIndex(k, a, e.lt.index(k, a)+dir)
	if !e.lt.inDomain(n) {
		return nil, true
	}
	if li := e.leafAt(n); li >= 0 {
		return []int{li}, false
	}
	return e.leavesFacing(n, a, dir, nil), false
}

// faceLoop lists the points on the perimeter of the side (a, dir) of a cell,
// oriented so the normal points along the sign of normal
func (e *Engine) faceLoop(k cellKey, a, dir, normal int) (loop []int) {
	var (
		lo, hi = e.lt.span(k)
		b, c   = (a + 1) % 3, (a + 2) % 3
		w      = lo[a]
		cs     = [4][2]int{{lo[b], lo[c]}, {hi[b], lo[c]}, {hi[b], hi[c]}, {lo[b], hi[c]}}
	)
	if dir > 0 {
		w = hi[a]
	}
	at := func(ub, uc int) (p [3]int) {
		p[a], p[b], p[c] = w, ub, uc
		return
	}
	for i := 0; i < 4; i++ {
		from, to := cs[i], cs[(i+1)%4]
		db, dc := sign(to[0]-from[0]), sign(to[1]-from[1])
		for ub, uc := from[0], from[1]; ub != to[0] || uc != to[1]; ub, uc = ub+db, uc+dc {
			if pi, ok := e.pointIndex[at(ub, uc)]; ok {
				loop = append(loop, pi)
			}
		}
	}
	// The loop above runs counterclockwise about +a
	if normal < 0 {
		loop = reverseLoop(loop)
	}
	return
}

func sign(i int) int {
	switch {
	case i > 0:
		return 1
	case i < 0:
		return -1
	}
	return 0
}

func reverseLoop(loop []int) (rev []int) {
	rev = make([]int, len(loop))
	rev[0] = loop[0]
	for i := 1; i < len(loop); i++ {
		rev[i] = loop[len(loop)-i]
	}
	return
}

/*
rebuild makes cells the new leaf list and regenerates points and mesh. Points
still used keep their relative order, new points follow in cell order. The
returned pointMap gives the previous index of every point or -1.
*/
func (e *Engine) rebuild(cells []cellKey) (pointMap []int, err error) {
	var (
		alive      = make(map[[3]int]bool)
		points     [][3]int
		pointIndex = make(map[[3]int]int)
		cellIndex  = make(map[cellKey]int, len(cells))
	)
	for ci, k := range cells {
		if _, dup := cellIndex[k]; dup {
			return nil, fmt.Errorf("%w: cell %v listed twice", ErrRefinement, k)
		}
		cellIndex[k] = ci
		for _, p := range e.lt.corners(k) {
			alive[p] = true
		}
	}
	for pi, p := range e.points {
		if alive[p] {
			pointIndex[p] = len(points)
			points = append(points, p)
			pointMap = append(pointMap, pi)
		}
	}
	for _, k := range cells {
		for _, p := range e.lt.corners(k) {
			if _, ok := pointIndex[p]; !ok {
				pointIndex[p] = len(points)
				points = append(points, p)
				pointMap = append(pointMap, -1)
			}
		}
	}
	e.cells, e.cellIndex = cells, cellIndex
	e.points, e.pointIndex = points, pointIndex
	e.split = nil

	var comm parallel.Comm = parallel.Serial{}
	if e.mesh != nil {
		comm = e.mesh.Comm
	}
	if e.mesh, err = e.buildMesh(); err != nil {
		return nil, err
	}
	e.mesh.Comm = comm
	return
}

func (e *Engine) buildMesh() (m *mesh.PolyMesh, err error) {
	type faceRec struct {
		verts    []int
		own, nei int
	}
	var (
		internal []faceRec
		boundary [6][]faceRec
	)
	for ci, k := range e.cells {
		for a := 0; a < 3; a++ {
			for _, dir := range [2]int{-1, 1} {
				nbrs, isBoundary := e.neighbours(ci, a, dir)
				switch {
				case isBoundary:
					side := 2 * a
					if dir > 0 {
						side++
					}
					boundary[side] = append(boundary[side], faceRec{
						verts: e.faceLoop(k, a, dir, dir), own: ci, nei: -1})
				case len(nbrs) == 1:
					ni := nbrs[0]
					nk := e.cells[ni]
					// Equal levels are generated once, coarser neighbours never generate
					if nk.Level == k.Level && ni < ci {
						continue
					}
					own, nei, normalDir := ci, ni, dir
					if ni < ci {
						own, nei, normalDir = ni, ci, -dir
					}
					internal = append(internal, faceRec{
						verts: e.faceLoop(k, a, dir, normalDir), own: own, nei: nei})
				}
			}
		}
	}
	sort.SliceStable(internal, func(i, j int) bool {
		if internal[i].own != internal[j].own {
			return internal[i].own < internal[j].own
		}
		return internal[i].nei < internal[j].nei
	})

	var (
		points     = make([][3]float64, len(e.points))
		faces      [][]int
		owner, nei []int
		patches    []mesh.Patch
	)
	for pi, p := range e.points {
		points[pi] = e.lt.position(p)
	}
	for _, fr := range internal {
		faces = append(faces, fr.verts)
		owner = append(owner, fr.own)
		nei = append(nei, fr.nei)
	}
	for side, frs := range boundary {
		patches = append(patches, mesh.Patch{
			Name:         SideNames[side],
			Type:         e.lt.cfg.patchType(side),
			Start:        len(faces),
			Size:         len(frs),
			NeighbProcNo: -1,
		})
		for _, fr := range frs {
			faces = append(faces, fr.verts)
			owner = append(owner, fr.own)
		}
	}
	return mesh.NewPolyMesh(points, faces, owner, nei, patches)
}

func (e *Engine) updateLevels() {
	e.cellLevel = make([]int, len(e.cells))
	for ci, k := range e.cells {
		e.cellLevel[ci] = k.Level
	}
	e.pointLevel = make([]int, len(e.points))
	for pi, p := range e.points {
		e.pointLevel[pi] = e.lt.pointLevel(p)
	}
	e.stale = false
}
