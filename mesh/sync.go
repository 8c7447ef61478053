package mesh

import (
	"fmt"

	"github.com/notargets/hexamr/parallel"
)

// exchangePatches sends, for every processor patch, the values of its faces
// (taken from the boundary face list vals) and returns what arrived keyed by
// patch index. Both sides of a processor patch list the shared faces in the
// same order.
func exchangePatches[T any](m *PolyMesh, vals []T) (recv map[int][]T) {
	var (
		nIF     = m.NInternalFaces()
		send    = make(map[int][]T)
		byProc  = make(map[int]int)
		coupled bool
	)
	for i, p := range m.Patches {
		if !p.Coupled() {
			continue
		}
		if _, dup := byProc[p.NeighbProcNo]; dup {
			panic(fmt.Errorf("more than one processor patch faces partition %d", p.NeighbProcNo))
		}
		byProc[p.NeighbProcNo] = i
		send[p.NeighbProcNo] = append([]T{}, vals[p.Start-nIF:p.Start-nIF+p.Size]...)
		coupled = true
	}
	recv = make(map[int][]T)
	if !parallel.IsParallel(m.Comm) {
		if coupled {
			panic("processor patches on a serial mesh")
		}
		return
	}
	for proc, vs := range parallel.ExchangeSlices(m.Comm, send) {
		pi := byProc[proc]
		if len(vs) != m.Patches[pi].Size {
			panic(fmt.Errorf("patch %s received %d values for %d faces",
				m.Patches[pi].Name, len(vs), m.Patches[pi].Size))
		}
		recv[pi] = vs
	}
	return
}

// SwapBoundaryFaceList replaces, on coupled patches, the per boundary face
// values with the values from the other side. Other patches are unchanged.
// Collective.
func SwapBoundaryFaceList[T any](m *PolyMesh, vals []T) {
	var (
		nIF = m.NInternalFaces()
	)
	for pi, vs := range exchangePatches(m, vals) {
		copy(vals[m.Patches[pi].Start-nIF:], vs)
	}
}

// SwapFaceList is SwapBoundaryFaceList on a list over all faces
func SwapFaceList[T any](m *PolyMesh, vals []T) {
	SwapBoundaryFaceList(m, vals[m.NInternalFaces():])
}

// SyncFaceListOr combines the flags of every coupled face with the flag on the
// other side. Collective.
func SyncFaceListOr(m *PolyMesh, faceFlags []bool) {
	var (
		bnd = faceFlags[m.NInternalFaces():]
		nIF = m.NInternalFaces()
	)
	for pi, vs := range exchangePatches(m, bnd) {
		start := m.Patches[pi].Start - nIF
		for i, v := range vs {
			bnd[start+i] = bnd[start+i] || v
		}
	}
}

// NeighbourCellValues returns, for every boundary face, the value of the cell
// on the other side: the owner's own value on uncoupled patches and the
// remote owner's value on coupled ones. Collective.
func NeighbourCellValues[T any](m *PolyMesh, cellVals []T) (nei []T) {
	var (
		nIF = m.NInternalFaces()
	)
	nei = make([]T, m.NBoundaryFaces())
	for i := range nei {
		nei[i] = cellVals[m.Owner[nIF+i]]
	}
	SwapBoundaryFaceList(m, nei)
	return
}
