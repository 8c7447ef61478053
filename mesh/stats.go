package mesh

import (
	"fmt"
	"sort"
)

// CellShape classifies a cell by its face and point counts
func (m *PolyMesh) CellShape(c int) string {
	nFaces, nPoints := len(m.Cells()[c]), len(m.CellPoints()[c])
	switch {
	case nFaces == 6 && nPoints == 8:
		return "hex"
	case nFaces == 5 && nPoints == 6:
		return "prism"
	case nFaces == 5 && nPoints == 5:
		return "pyramid"
	case nFaces == 4 && nPoints == 4:
		return "tet"
	}
	return "polyhedron"
}

// Statistics are the global counts of a mesh
type Statistics struct {
	Points, Faces, InternalFaces, Cells int
	Shapes                              map[string]int
	PatchSizes                          map[string]int
}

// Statistics sums the counts over every partition. Collective.
func (m *PolyMesh) Statistics() (st Statistics) {
	st = Statistics{
		Points:        m.Comm.SumInt(m.NPoints()),
		Faces:         m.Comm.SumInt(m.NFaces()),
		InternalFaces: m.Comm.SumInt(m.NInternalFaces()),
		Cells:         m.Comm.SumInt(m.NCells),
		Shapes:        make(map[string]int),
		PatchSizes:    make(map[string]int),
	}
	for c := 0; c < m.NCells; c++ {
		st.Shapes[m.CellShape(c)]++
	}
	for _, shape := range []string{"hex", "prism", "pyramid", "tet", "polyhedron"} {
		st.Shapes[shape] = m.Comm.SumInt(st.Shapes[shape])
		if st.Shapes[shape] == 0 {
			delete(st.Shapes, shape)
		}
	}
	// Every partition lists the same uncoupled patches in the same order
	for _, p := range m.Patches {
		if !p.Coupled() {
			st.PatchSizes[p.Name] = m.Comm.SumInt(p.Size)
		}
	}
	return
}

// Print writes the statistics to stdout
func (st Statistics) Print() {
	fmt.Printf("Mesh Statistics:\n")
	fmt.Printf("  Points: %d\n", st.Points)
	fmt.Printf("  Faces: %d (%d internal)\n", st.Faces, st.InternalFaces)
	fmt.Printf("  Cells: %d\n", st.Cells)
	fmt.Printf("  Cell shapes:\n")
	for _, shape := range sortedKeys(st.Shapes) {
		fmt.Printf("    %s: %d\n", shape, st.Shapes[shape])
	}
	fmt.Printf("  Patches:\n")
	for _, name := range sortedKeys(st.PatchSizes) {
		fmt.Printf("    %s: %d\n", name, st.PatchSizes[name])
	}
}

func sortedKeys(m map[string]int) (keys []string) {
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return
}
