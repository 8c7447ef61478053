package mesh

import (
	"fmt"
	"sort"

	"github.com/notargets/hexamr/parallel"
)

// Decomposition is a mesh split into partitions, with the addressing back to
// the undecomposed mesh
type Decomposition struct {
	NP              int
	Meshes          []*PolyMesh
	CellAddressing  [][]int // Local cell to global cell, per partition
	PointAddressing [][]int
	FaceAddressing  [][]int
}

// BlockCellProc assigns contiguous blocks of cells to NP partitions
func BlockCellProc(nCells, NP int) (cellProc []int) {
	var (
		pm = parallel.NewPartitionMap(NP, nCells)
	)
	cellProc = make([]int, nCells)
	for np := 0; np < NP; np++ {
		kMin, kMax := pm.GetBucketRange(np)
		for k := kMin; k < kMax; k++ {
			cellProc[k] = np
		}
	}
	return
}

/*
Decompose splits m into NP partitions following cellProc. Internal faces
between partitions become faces of a processor patch on both sides, listed in
the order of the undecomposed mesh. The side holding the neighbour cell owns a
reversed copy of the face.
*/
func Decompose(m *PolyMesh, cellProc []int, NP int) (d *Decomposition, err error) {
	if len(cellProc) != m.NCells {
		return nil, fmt.Errorf("have %d processor labels for %d cells", len(cellProc), m.NCells)
	}
	d = &Decomposition{
		NP:              NP,
		Meshes:          make([]*PolyMesh, NP),
		CellAddressing:  make([][]int, NP),
		PointAddressing: make([][]int, NP),
		FaceAddressing:  make([][]int, NP),
	}
	for c, np := range cellProc {
		if np < 0 || np >= NP {
			return nil, fmt.Errorf("cell %d assigned to partition %d outside [0,%d)", c, np, NP)
		}
		d.CellAddressing[np] = append(d.CellAddressing[np], c)
	}
	for np := 0; np < NP; np++ {
		if d.Meshes[np], err = d.buildPartition(m, cellProc, np); err != nil {
			return nil, fmt.Errorf("partition %d: %w", np, err)
		}
	}
	return
}

func (d *Decomposition) buildPartition(m *PolyMesh, cellProc []int, np int) (sub *PolyMesh, err error) {
	var (
		nIF        = m.NInternalFaces()
		localCell  = make(map[int]int)
		faces      [][]int
		owner, nei []int
		faceAddr   []int
		patches    []Patch
		procFaces  = make(map[int][]int)
		procs      []int
	)
	for l, c := range d.CellAddressing[np] {
		localCell[c] = l
	}
	addFace := func(f int, verts []int, own int) {
		faces = append(faces, verts)
		owner = append(owner, own)
		faceAddr = append(faceAddr, f)
	}
	for f := 0; f < nIF; f++ {
		pOwn, pNei := cellProc[m.Owner[f]], cellProc[m.Neighbour[f]]
		switch {
		case pOwn == np && pNei == np:
			addFace(f, m.Faces[f], localCell[m.Owner[f]])
			nei = append(nei, localCell[m.Neighbour[f]])
		case pOwn == np:
			procFaces[pNei] = append(procFaces[pNei], f)
		case pNei == np:
			procFaces[pOwn] = append(procFaces[pOwn], f)
		}
	}
	for _, p := range m.Patches {
		if p.Coupled() {
			return nil, fmt.Errorf("mesh is already decomposed, found patch %s", p.Name)
		}
		start := len(faces)
		for f := p.Start; f < p.Start+p.Size; f++ {
			if cellProc[m.Owner[f]] == np {
				addFace(f, m.Faces[f], localCell[m.Owner[f]])
			}
		}
		patches = append(patches, Patch{Name: p.Name, Type: p.Type, Start: start,
			Size: len(faces) - start, NeighbProcNo: -1})
	}
	for proc := range procFaces {
		procs = append(procs, proc)
	}
	sort.Ints(procs)
	for _, proc := range procs {
		start := len(faces)
		for _, f := range procFaces[proc] {
			if cellProc[m.Owner[f]] == np {
				addFace(f, m.Faces[f], localCell[m.Owner[f]])
			} else {
				addFace(f, reverseFace(m.Faces[f]), localCell[m.Neighbour[f]])
			}
		}
		patches = append(patches, Patch{
			Name:         fmt.Sprintf("procBoundary%dto%d", np, proc),
			Type:         PatchProcessor,
			Start:        start,
			Size:         len(faces) - start,
			NeighbProcNo: proc,
		})
	}

	// Points keep their global order
	var (
		usedPoint  = make(map[int]int)
		pointAddr  []int
		points     [][3]float64
		localFaces = make([][]int, len(faces))
	)
	for _, face := range faces {
		for _, p := range face {
			usedPoint[p] = -1
		}
	}
	for p := range usedPoint {
		pointAddr = append(pointAddr, p)
	}
	sort.Ints(pointAddr)
	for l, p := range pointAddr {
		usedPoint[p] = l
		points = append(points, m.Points[p])
	}
	for i, face := range faces {
		localFaces[i] = make([]int, len(face))
		for j, p := range face {
			localFaces[i][j] = usedPoint[p]
		}
	}
	d.PointAddressing[np] = pointAddr
	d.FaceAddressing[np] = faceAddr
	return NewPolyMesh(points, localFaces, owner, nei, patches)
}

// reverseFace flips the normal of a face, keeping its first point
func reverseFace(face []int) (rev []int) {
	rev = make([]int, len(face))
	rev[0] = face[0]
	for i := 1; i < len(face); i++ {
		rev[i] = face[len(face)-i]
	}
	return
}

// ScatterCells picks the values of partition np out of a global cell list
func ScatterCells[T any](d *Decomposition, np int, global []T) (local []T) {
	local = make([]T, len(d.CellAddressing[np]))
	for l, g := range d.CellAddressing[np] {
		local[l] = global[g]
	}
	return
}

// ScatterPoints picks the values of partition np out of a global point list
func ScatterPoints[T any](d *Decomposition, np int, global []T) (local []T) {
	local = make([]T, len(d.PointAddressing[np]))
	for l, g := range d.PointAddressing[np] {
		local[l] = global[g]
	}
	return
}

// GatherCells writes the values of every partition into one global cell list
func GatherCells[T any](d *Decomposition, locals [][]T) (global []T) {
	var nCells int
	for _, ca := range d.CellAddressing {
		nCells += len(ca)
	}
	global = make([]T, nCells)
	for np, ca := range d.CellAddressing {
		for l, g := range ca {
			global[g] = locals[np][l]
		}
	}
	return
}
