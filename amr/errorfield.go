package amr

import (
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/notargets/hexamr/mesh"
)

// discontinuityTol is the jump across a face above which a field counts as
// discontinuous
const discontinuityTol = 1e-6

// CellToPoint averages cell values onto the points
func CellToPoint(m *mesh.PolyMesh, vFld []float64) (pFld []float64) {
	var (
		vals []float64
	)
	pFld = make([]float64, m.NPoints())
	for p, pCells := range m.PointCells() {
		if len(pCells) == 0 {
			continue
		}
		vals = vals[:0]
		for _, c := range pCells {
			vals = append(vals, vFld[c])
		}
		pFld[p] = floats.Sum(vals) / float64(len(vals))
	}
	return
}

// MaxPointField gives every cell the largest value found on its points
func MaxPointField(m *mesh.PolyMesh, pFld []float64) (vFld []float64) {
	vFld = make([]float64, m.NCells)
	for c := range vFld {
		vFld[c] = math.Inf(-1)
	}
	for p, pCells := range m.PointCells() {
		for _, c := range pCells {
			vFld[c] = max(vFld[c], pFld[p])
		}
	}
	return
}

// MaxCellField gives every point the largest value of the cells using it
func MaxCellField(m *mesh.PolyMesh, vFld []float64) (pFld []float64) {
	pFld = make([]float64, m.NPoints())
	for p, pCells := range m.PointCells() {
		pFld[p] = math.Inf(-1)
		for _, c := range pCells {
			pFld[p] = max(pFld[p], vFld[c])
		}
	}
	return
}

// BoundedError returns, per value, its distance to the nearer end of
// [low, high], or -1 for values outside the range
func BoundedError(fld []float64, low, high float64) (e []float64) {
	e = make([]float64, len(fld))
	for i, v := range fld {
		e[i] = -1
		if d := min(v-low, high-v); d >= 0 {
			e[i] = d
		}
	}
	return
}

/*
FaceDiscontinuity raises the error of cells that already have a positive
error wherever one of the named fields jumps across a face: the face
contributes +1 when the jump is at least 1e-6 and -10 otherwise, and a cell
keeps the largest of its error and the contributions of its faces. Internal
faces and coupled boundary faces are used. Collective.
*/
func FaceDiscontinuity(m *mesh.PolyMesh, fields FieldStore, errField []float64, names []string) (err error) {
	var (
		nIF       = m.NInternalFaces()
		errorOrig = append([]float64{}, errField...)
	)
	contribute := func(c int, a, b float64) {
		e := -10.0
		if math.Abs(a-b) >= discontinuityTol {
			e = 1
		}
		if errorOrig[c] > 0 {
			errField[c] = max(errField[c], e)
		}
	}
	for _, name := range names {
		var (
			fld []float64
			pnf map[int][]float64
		)
		if fld, err = fields.Field(name); err != nil {
			return
		}
		for f := 0; f < nIF; f++ {
			own, nei := m.Owner[f], m.Neighbour[f]
			contribute(own, fld[own], fld[nei])
			contribute(nei, fld[own], fld[nei])
		}
		if pnf, err = fields.PatchNeighbourFields(name); err != nil {
			return
		}
		for pi, p := range m.Patches {
			if !p.Coupled() {
				continue
			}
			var pif []float64
			if pif, err = fields.PatchInternalField(name, pi); err != nil {
				return
			}
			for i, v := range pif {
				contribute(m.Owner[p.Start+i], v, pnf[pi][i])
			}
		}
	}
	return
}
