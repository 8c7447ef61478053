package mesh

import (
	"fmt"
	"sort"
	"strings"
)

// ElementType represents different element types
type ElementType int

const (
	Line ElementType = iota
	Triangle
	Quad
	Tet
	Hex
	Prism
	Pyramid
)

func (e ElementType) String() string {
	return [...]string{"Line", "Triangle", "Quad", "Tet", "Hex", "Prism", "Pyramid"}[e]
}

func (e ElementType) Dimension() int {
	switch e {
	case Line:
		return 1
	case Triangle, Quad:
		return 2
	}
	return 3
}

// ElementMesh is a vertex based mesh as read from a mesh generator
type ElementMesh struct {
	Vertices [][3]float64

	Elements     [][]int       // Element to vertex connectivity [nelems][nverts_per_elem]
	ElementTypes []ElementType // Element type for each element
	ElementTags  []int         // Physical group/tag for each element

	BoundaryFaces    [][]int        // Tagged surface elements
	BoundaryFaceTags []int          // Physical group of each surface element
	BoundaryTags     map[int]string // Physical group names

	nodeIndex map[int]int // File node ID to vertex index
}

func NewElementMesh() *ElementMesh {
	return &ElementMesh{
		BoundaryTags: make(map[int]string),
		nodeIndex:    make(map[int]int),
	}
}

// GetElementFaces returns the face vertices for each element type, ordered so
// the normals point out of the element
func GetElementFaces(elemType ElementType, vertices []int) [][]int {
	switch elemType {
	case Tet:
		return [][]int{
			{vertices[0], vertices[2], vertices[1]},
			{vertices[0], vertices[1], vertices[3]},
			{vertices[1], vertices[2], vertices[3]},
			{vertices[0], vertices[3], vertices[2]},
		}
	case Hex:
		return [][]int{
			{vertices[0], vertices[3], vertices[2], vertices[1]}, // Bottom
			{vertices[4], vertices[5], vertices[6], vertices[7]}, // Top
			{vertices[0], vertices[1], vertices[5], vertices[4]},
			{vertices[1], vertices[2], vertices[6], vertices[5]},
			{vertices[2], vertices[3], vertices[7], vertices[6]},
			{vertices[3], vertices[0], vertices[4], vertices[7]},
		}
	case Prism:
		return [][]int{
			{vertices[0], vertices[2], vertices[1]},
			{vertices[3], vertices[4], vertices[5]},
			{vertices[0], vertices[1], vertices[4], vertices[3]},
			{vertices[1], vertices[2], vertices[5], vertices[4]},
			{vertices[2], vertices[0], vertices[3], vertices[5]},
		}
	case Pyramid:
		return [][]int{
			{vertices[0], vertices[3], vertices[2], vertices[1]}, // Base
			{vertices[0], vertices[1], vertices[4]},
			{vertices[1], vertices[2], vertices[4]},
			{vertices[2], vertices[3], vertices[4]},
			{vertices[3], vertices[0], vertices[4]},
		}
	default:
		return [][]int{}
	}
}

func faceKey(verts []int) string {
	sorted := append([]int{}, verts...)
	sort.Ints(sorted)
	return fmt.Sprintf("%v", sorted)
}

// PatchTypeFromName guesses the patch type from the usual naming of physical
// groups, falling back to a generic patch
func PatchTypeFromName(name string) string {
	lower := strings.ToLower(name)
	for _, pt := range []string{PatchWall, PatchEmpty, PatchSymmetry, PatchWedge} {
		if strings.HasPrefix(lower, pt) {
			return pt
		}
	}
	if lower == "frontandback" {
		return PatchEmpty
	}
	return PatchGeneric
}

/*
ToPolyMesh converts the element mesh into a face based mesh. Faces shared by
two elements become internal faces owned by the lower numbered element.
Unshared faces are grouped into one patch per physical group of the matching
surface element; faces with no surface element go to "defaultFaces".
*/
func (em *ElementMesh) ToPolyMesh() (m *PolyMesh, err error) {
	type faceInfo struct {
		verts    []int
		own, nei int
	}
	var (
		faceMap  = make(map[string]int)
		allFaces []faceInfo
	)
	for elemID, elemType := range em.ElementTypes {
		for _, fv := range GetElementFaces(elemType, em.Elements[elemID]) {
			key := faceKey(fv)
			if fi, exists := faceMap[key]; exists {
				if allFaces[fi].nei >= 0 {
					return nil, fmt.Errorf("face %s is shared by more than two elements", key)
				}
				allFaces[fi].nei = elemID
				continue
			}
			faceMap[key] = len(allFaces)
			allFaces = append(allFaces, faceInfo{verts: fv, own: elemID, nei: -1})
		}
	}

	var (
		internal []faceInfo
		byTag    = make(map[int][]faceInfo)
		tagOf    = make(map[string]int)
		tags     []int
		other    []faceInfo
	)
	for i, bf := range em.BoundaryFaces {
		tagOf[faceKey(bf)] = em.BoundaryFaceTags[i]
	}
	for _, fi := range allFaces {
		if fi.nei >= 0 {
			internal = append(internal, fi)
			continue
		}
		if tag, ok := tagOf[faceKey(fi.verts)]; ok {
			if _, seen := byTag[tag]; !seen {
				tags = append(tags, tag)
			}
			byTag[tag] = append(byTag[tag], fi)
			continue
		}
		other = append(other, fi)
	}
	sort.SliceStable(internal, func(i, j int) bool {
		if internal[i].own != internal[j].own {
			return internal[i].own < internal[j].own
		}
		return internal[i].nei < internal[j].nei
	})
	sort.Ints(tags)

	var (
		faces      [][]int
		owner, nei []int
		patches    []Patch
		addPatch   func(name string, fis []faceInfo)
	)
	for _, fi := range internal {
		faces = append(faces, fi.verts)
		owner = append(owner, fi.own)
		nei = append(nei, fi.nei)
	}
	addPatch = func(name string, fis []faceInfo) {
		patches = append(patches, Patch{
			Name:         name,
			Type:         PatchTypeFromName(name),
			Start:        len(faces),
			Size:         len(fis),
			NeighbProcNo: -1,
		})
		for _, fi := range fis {
			faces = append(faces, fi.verts)
			owner = append(owner, fi.own)
		}
	}
	for _, tag := range tags {
		name, ok := em.BoundaryTags[tag]
		if !ok {
			name = fmt.Sprintf("patch%d", tag)
		}
		addPatch(name, byTag[tag])
	}
	if len(other) > 0 {
		addPatch("defaultFaces", other)
	}
	return NewPolyMesh(em.Vertices, faces, owner, nei, patches)
}
