package mesh

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/notargets/hexamr/parallel"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestBlockToPolyMesh(t *testing.T) {
	var (
		nx, ny, nz = 3, 2, 1
		m          = blockPolyMesh(t, nx, ny, nz)
	)
	assert.NoError(t, m.Check())
	assert.Equal(t, 6, m.NCells)
	assert.Equal(t, 24, m.NPoints())
	assert.Equal(t, 7, m.NInternalFaces())
	assert.Equal(t, 22, m.NBoundaryFaces())
	require.Len(t, m.Patches, 1)
	assert.Equal(t, "defaultFaces", m.Patches[0].Name)
	assert.Equal(t, PatchGeneric, m.Patches[0].Type)
	assert.Equal(t, 0, m.FindPatch("defaultFaces"))
	assert.Equal(t, -1, m.FindPatch("inlet"))
	assert.Equal(t, -1, m.WhichPatch(0))
	assert.Equal(t, 0, m.WhichPatch(m.NFaces()-1))
	assert.False(t, m.HasWedge())

	// Normals point from owner to neighbour, and out of the mesh on the boundary
	cc := m.CellCentres()
	for f := 0; f < m.NFaces(); f++ {
		n := faceNormal(m, f)
		var d [3]float64
		if m.IsInternalFace(f) {
			d = sub(cc[m.Neighbour[f]], cc[m.Owner[f]])
		} else {
			d = sub(m.FaceCentre(f), cc[m.Owner[f]])
		}
		assert.Greater(t, n[0]*d[0]+n[1]*d[1]+n[2]*d[2], 0., "face %d", f)
	}
	for c := 0; c < m.NCells; c++ {
		assert.Len(t, m.Cells()[c], 6)
		assert.Len(t, m.CellPoints()[c], 8)
		assert.Equal(t, "hex", m.CellShape(c))
	}
	assert.Equal(t, []float64{0.5, 0.5, 0.5}, cc[0][:])
}

func sub(a, b [3]float64) [3]float64 {
	return [3]float64{a[0] - b[0], a[1] - b[1], a[2] - b[2]}
}

func TestAddressing(t *testing.T) {
	m := blockPolyMesh(t, 3, 2, 1)
	// Point 0 is a corner, point 5 sits in the middle of the bottom
	assert.Equal(t, []int{0}, m.PointCells()[0])
	assert.Equal(t, []int{0, 1, 3, 4}, m.PointCells()[5])
	assert.Len(t, m.PointFaces()[0], 3)
	assert.Len(t, m.Edges(), 46)
	assert.Len(t, m.PointEdges()[0], 3)
	assert.Len(t, m.PointEdges()[5], 5)
	e := m.FindEdge(1, 0)
	require.GreaterOrEqual(t, e, 0)
	assert.Equal(t, 1, m.Edges()[e].OtherVertex(0))
	assert.Equal(t, -1, m.FindEdge(0, 5))
	for p, pEdges := range m.PointEdges() {
		for _, e := range pEdges {
			assert.NotEqual(t, -1, m.Edges()[e].OtherVertex(p))
		}
	}
	m.ClearAddressing()
	assert.Len(t, m.Edges(), 46)
}

func TestNewPolyMeshErrors(t *testing.T) {
	m := blockPolyMesh(t, 2, 1, 1)
	_, err := NewPolyMesh(m.Points, m.Faces, m.Owner[1:], m.Neighbour, m.Patches)
	assert.Error(t, err)
	bad := append([]Patch{}, m.Patches...)
	bad[0].Size--
	_, err = NewPolyMesh(m.Points, m.Faces, m.Owner, m.Neighbour, bad)
	assert.Error(t, err)
	bad = append([]Patch{}, m.Patches...)
	bad[0].Type = PatchProcessor
	bad[0].NeighbProcNo = -1
	_, err = NewPolyMesh(m.Points, m.Faces, m.Owner, m.Neighbour, bad)
	assert.Error(t, err)
}

func TestReadGmsh(t *testing.T) {
	content := `$MeshFormat
2.2 0 8
$EndMeshFormat
$PhysicalNames
2
2 10 "inlet"
3 20 "fluid"
$EndPhysicalNames
$Nodes
12
1 0 0 0
2 1 0 0
3 2 0 0
4 0 1 0
5 1 1 0
6 2 1 0
7 0 0 1
8 1 0 1
9 2 0 1
10 0 1 1
11 1 1 1
12 2 1 1
$EndNodes
$Elements
4
1 1 2 10 1 1 4
2 3 2 10 1 1 4 10 7
3 5 2 20 1 1 2 5 4 7 8 11 10
4 5 2 20 1 2 3 6 5 8 9 12 11
$EndElements
$NodeData
1
"ignored"
$EndNodeData
`
	em, err := ReadGmsh(createTempMshFile(t, content))
	require.NoError(t, err)
	assert.Len(t, em.Vertices, 12)
	assert.Equal(t, []ElementType{Hex, Hex}, em.ElementTypes)
	assert.Equal(t, []int{20, 20}, em.ElementTags)
	assert.Equal(t, []int{10}, em.BoundaryFaceTags)
	assert.Equal(t, "inlet", em.BoundaryTags[10])

	m, err := em.ToPolyMesh()
	require.NoError(t, err)
	require.NoError(t, m.Check())
	assert.Equal(t, 2, m.NCells)
	assert.Equal(t, 1, m.NInternalFaces())
	require.Len(t, m.Patches, 2)
	assert.Equal(t, Patch{Name: "inlet", Type: PatchGeneric, Start: 1, Size: 1, NeighbProcNo: -1}, m.Patches[0])
	assert.Equal(t, "defaultFaces", m.Patches[1].Name)
	assert.Equal(t, 9, m.Patches[1].Size)
	assert.Equal(t, 0, m.Owner[1])
}

func TestReadGmshErrors(t *testing.T) {
	_, err := ReadGmsh(createTempMshFile(t, "$MeshFormat\n4.1 0 8\n$EndMeshFormat\n"))
	assert.Error(t, err)
	_, err = ReadGmsh(createTempMshFile(t, "$MeshFormat\n2.2 0 8\n$EndMeshFormat\n$Nodes\n1\n1 0 0\n$EndNodes\n"))
	assert.Error(t, err)
	_, err = ReadGmsh(createTempMshFile(t, "$Nodes\n1\n1 0 0 0\n$EndNodes\n$Elements\n1\n1 4 0 1 2 3 4\n$EndElements\n"))
	assert.Error(t, err)
	_, err = ReadGmsh("does-not-exist.msh")
	assert.Error(t, err)
}

func TestPatchTypeFromName(t *testing.T) {
	assert.Equal(t, PatchWall, PatchTypeFromName("wallLower"))
	assert.Equal(t, PatchEmpty, PatchTypeFromName("frontAndBack"))
	assert.Equal(t, PatchWedge, PatchTypeFromName("wedge0"))
	assert.Equal(t, PatchGeneric, PatchTypeFromName("inlet"))
}

func TestDecomposeAndSync(t *testing.T) {
	var (
		m        = blockPolyMesh(t, 4, 1, 1)
		NP       = 2
		cellProc = BlockCellProc(m.NCells, NP)
	)
	assert.Equal(t, []int{0, 0, 1, 1}, cellProc)
	d, err := Decompose(m, cellProc, NP)
	require.NoError(t, err)
	for np := 0; np < NP; np++ {
		pm := d.Meshes[np]
		assert.Equal(t, 2, pm.NCells)
		assert.Equal(t, 1, pm.NInternalFaces())
		require.Len(t, pm.Patches, 2)
		assert.Equal(t, PatchProcessor, pm.Patches[1].Type)
		assert.Equal(t, 1, pm.Patches[1].Size)
		assert.Equal(t, 1-np, pm.Patches[1].NeighbProcNo)
		assert.Equal(t, 12, pm.NPoints())
	}
	assert.Equal(t, []int{2, 3}, d.CellAddressing[1])
	assert.Equal(t, []int{0, 1}, ScatterCells(d, 0, []int{0, 1, 2, 3}))

	var (
		w        = parallel.NewWorld(NP)
		neiCells = make([][]int, NP)
		flags    = make([][]bool, NP)
		stats    = make([]Statistics, NP)
	)
	err = w.Run(func(c parallel.Comm) error {
		var (
			np = c.Rank()
			pm = d.Meshes[np]
		)
		pm.Comm = c
		neiCells[np] = NeighbourCellValues(pm, ScatterCells(d, np, []int{0, 1, 2, 3}))
		ff := make([]bool, pm.NFaces())
		ff[pm.Patches[1].Start] = np == 1
		SyncFaceListOr(pm, ff)
		flags[np] = ff
		stats[np] = pm.Statistics()
		return nil
	})
	require.NoError(t, err)
	// The processor face sees the cell across the cut
	assert.Equal(t, 2, neiCells[0][len(neiCells[0])-1])
	assert.Equal(t, 1, neiCells[1][len(neiCells[1])-1])
	for np := 0; np < NP; np++ {
		pm := d.Meshes[np]
		assert.True(t, flags[np][pm.Patches[1].Start])
		assert.Equal(t, 4, stats[np].Cells)
		assert.Equal(t, map[string]int{"hex": 4}, stats[np].Shapes)
		assert.Equal(t, m.Patches[0].Size, stats[np].PatchSizes["defaultFaces"])
	}
	// Uncoupled boundary faces see their own cell
	assert.Equal(t, 0, neiCells[0][0])
}

func TestDecomposeFaceOrientation(t *testing.T) {
	m := blockPolyMesh(t, 2, 2, 1)
	d, err := Decompose(m, []int{0, 1, 1, 0}, 2)
	require.NoError(t, err)
	for np, pm := range d.Meshes {
		require.NoError(t, pm.Check())
		cc := pm.CellCentres()
		for f := pm.NInternalFaces(); f < pm.NFaces(); f++ {
			n := faceNormal(pm, f)
			dd := sub(pm.FaceCentre(f), cc[pm.Owner[f]])
			assert.Greater(t, n[0]*dd[0]+n[1]*dd[1]+n[2]*dd[2], 0., "partition %d face %d", np, f)
		}
	}
	_, err = Decompose(m, []int{0, 1}, 2)
	assert.Error(t, err)
	_, err = Decompose(m, []int{0, 1, 2, 0}, 2)
	assert.Error(t, err)
}

func TestSwapOnSerialMesh(t *testing.T) {
	m := blockPolyMesh(t, 2, 1, 1)
	vals := make([]int, m.NFaces())
	for i := range vals {
		vals[i] = i
	}
	SwapFaceList(m, vals)
	for i := range vals {
		assert.Equal(t, i, vals[i])
	}
	mm := IdentityMap(m.NCells, m.NPoints())
	assert.Equal(t, 2, mm.NCells())
	mm.CellMap = []int{0, 0, 1}
	mm.CellsFromCells = map[int][]int{}
	mm.Reverse()
	assert.Equal(t, []int{0, 2}, mm.ReverseCellMap)
}
