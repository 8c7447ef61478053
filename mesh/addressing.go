package mesh

import (
	"math"
	"sort"

	"github.com/james-bowman/sparse"

	"github.com/notargets/hexamr/types"
)

// incidence assembles a 0/1 relation between nr rows and nc columns and
// returns it read both ways, each list sorted
func incidence(nr, nc int, fill func(set func(i, j int))) (rows, cols [][]int) {
	rows, cols = make([][]int, nr), make([][]int, nc)
	if nr == 0 || nc == 0 {
		return
	}
	dok := sparse.NewDOK(nr, nc)
	fill(func(i, j int) { dok.Set(i, j, 1) })
	csr := dok.ToCSR().RawMatrix()
	for i := 0; i < nr; i++ {
		rows[i] = append([]int{}, csr.Ind[csr.Indptr[i]:csr.Indptr[i+1]]...)
		sort.Ints(rows[i])
	}
	csc := dok.ToCSC().RawMatrix()
	for j := 0; j < nc; j++ {
		cols[j] = append([]int{}, csc.Ind[csc.Indptr[j]:csc.Indptr[j+1]]...)
		sort.Ints(cols[j])
	}
	return
}

// Cells returns the faces of every cell
func (m *PolyMesh) Cells() [][]int {
	if m.cells == nil {
		m.cells, _ = incidence(m.NCells, m.NFaces(), func(set func(i, j int)) {
			for f, own := range m.Owner {
				set(own, f)
			}
			for f, nei := range m.Neighbour {
				set(nei, f)
			}
		})
	}
	return m.cells
}

func (m *PolyMesh) buildPointCells() {
	m.cellPoints, m.pointCells = incidence(m.NCells, m.NPoints(), func(set func(i, j int)) {
		for f, face := range m.Faces {
			for _, p := range face {
				set(m.Owner[f], p)
				if m.IsInternalFace(f) {
					set(m.Neighbour[f], p)
				}
			}
		}
	})
}

// CellPoints returns the points of every cell in ascending order
func (m *PolyMesh) CellPoints() [][]int {
	if m.cellPoints == nil {
		m.buildPointCells()
	}
	return m.cellPoints
}

// PointCells returns the cells using every point in ascending order
func (m *PolyMesh) PointCells() [][]int {
	if m.pointCells == nil {
		m.buildPointCells()
	}
	return m.pointCells
}

// PointFaces returns the faces using every point in ascending order
func (m *PolyMesh) PointFaces() [][]int {
	if m.pointFaces == nil {
		_, m.pointFaces = incidence(m.NFaces(), m.NPoints(), func(set func(i, j int)) {
			for f, face := range m.Faces {
				for _, p := range face {
					set(f, p)
				}
			}
		})
	}
	return m.pointFaces
}

// Edges returns every edge of the face loops, sorted by key
func (m *PolyMesh) Edges() []types.EdgeKey {
	if m.edges == nil {
		m.buildEdges()
	}
	return m.edges
}

// PointEdges returns the indices into Edges of the edges using every point
func (m *PolyMesh) PointEdges() [][]int {
	if m.pointEdges == nil {
		m.buildEdges()
	}
	return m.pointEdges
}

func (m *PolyMesh) buildEdges() {
	var (
		seen = make(map[types.EdgeKey]struct{})
	)
	m.edges = make([]types.EdgeKey, 0)
	for _, face := range m.Faces {
		for i, p := range face {
			en := types.NewEdgeKey([2]int{p, face[(i+1)%len(face)]})
			if _, ok := seen[en]; !ok {
				seen[en] = struct{}{}
				m.edges = append(m.edges, en)
			}
		}
	}
	sort.Slice(m.edges, func(i, j int) bool { return m.edges[i] < m.edges[j] })
	m.pointEdges = make([][]int, m.NPoints())
	for e, en := range m.edges {
		verts := en.GetVertices(false)
		m.pointEdges[verts[0]] = append(m.pointEdges[verts[0]], e)
		m.pointEdges[verts[1]] = append(m.pointEdges[verts[1]], e)
	}
}

// FindEdge returns the index of the edge between p0 and p1, or -1
func (m *PolyMesh) FindEdge(p0, p1 int) int {
	key := types.NewEdgeKey([2]int{p0, p1})
	edges := m.Edges()
	e := sort.Search(len(edges), func(i int) bool { return edges[i] >= key })
	if e < len(edges) && edges[e] == key {
		return e
	}
	return -1
}

// CellCentres returns the midpoint of the bounding box of every cell
func (m *PolyMesh) CellCentres() [][3]float64 {
	if m.cellCentres != nil {
		return m.cellCentres
	}
	m.cellCentres = make([][3]float64, m.NCells)
	for c, pts := range m.CellPoints() {
		var (
			lo = [3]float64{math.Inf(1), math.Inf(1), math.Inf(1)}
			hi = [3]float64{math.Inf(-1), math.Inf(-1), math.Inf(-1)}
		)
		for _, p := range pts {
			for d := 0; d < 3; d++ {
				lo[d] = math.Min(lo[d], m.Points[p][d])
				hi[d] = math.Max(hi[d], m.Points[p][d])
			}
		}
		for d := 0; d < 3; d++ {
			m.cellCentres[c][d] = 0.5 * (lo[d] + hi[d])
		}
	}
	return m.cellCentres
}

// FaceCentre returns the mean of the points of face f
func (m *PolyMesh) FaceCentre(f int) (fc [3]float64) {
	face := m.Faces[f]
	for _, p := range face {
		for d := 0; d < 3; d++ {
			fc[d] += m.Points[p][d]
		}
	}
	for d := 0; d < 3; d++ {
		fc[d] /= float64(len(face))
	}
	return
}
