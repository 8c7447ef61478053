package mesh

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// blockElementMesh returns an nx*ny*nz block of unit hexes, numbered x fastest
func blockElementMesh(nx, ny, nz int) (em *ElementMesh) {
	em = NewElementMesh()
	vid := func(i, j, k int) int { return i + (nx+1)*(j+(ny+1)*k) }
	for k := 0; k <= nz; k++ {
		for j := 0; j <= ny; j++ {
			for i := 0; i <= nx; i++ {
				em.Vertices = append(em.Vertices, [3]float64{float64(i), float64(j), float64(k)})
			}
		}
	}
	for k := 0; k < nz; k++ {
		for j := 0; j < ny; j++ {
			for i := 0; i < nx; i++ {
				em.Elements = append(em.Elements, []int{
					vid(i, j, k), vid(i+1, j, k), vid(i+1, j+1, k), vid(i, j+1, k),
					vid(i, j, k+1), vid(i+1, j, k+1), vid(i+1, j+1, k+1), vid(i, j+1, k+1),
				})
				em.ElementTypes = append(em.ElementTypes, Hex)
				em.ElementTags = append(em.ElementTags, 0)
			}
		}
	}
	return
}

func blockPolyMesh(t *testing.T, nx, ny, nz int) *PolyMesh {
	t.Helper()
	m, err := blockElementMesh(nx, ny, nz).ToPolyMesh()
	require.NoError(t, err)
	return m
}

// faceNormal is the Newell normal of face f
func faceNormal(m *PolyMesh, f int) (n [3]float64) {
	face := m.Faces[f]
	for i, p := range face {
		a, b := m.Points[p], m.Points[face[(i+1)%len(face)]]
		n[0] += (a[1] - b[1]) * (a[2] + b[2])
		n[1] += (a[2] - b[2]) * (a[0] + b[0])
		n[2] += (a[0] - b[0]) * (a[1] + b[1])
	}
	return
}

func createTempMshFile(t *testing.T, content string) string {
	t.Helper()
	tmpFile := filepath.Join(t.TempDir(), "test.msh")
	if err := os.WriteFile(tmpFile, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to create temp file: %v", err)
	}
	return tmpFile
}
