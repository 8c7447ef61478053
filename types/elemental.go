package types

import (
	"fmt"
	"math"
)

/*
EdgeKey packs the two point indices of a mesh edge into one always positive
number. The smaller index is stored in the low 32 bits, so an edge between
points [7] and [2] has the same key as the edge between [2] and [7].
*/
type EdgeKey uint64

func NewEdgeKey(verts [2]int) (packed EdgeKey) {
	var (
		limit = math.MaxUint32
	)
	for _, vert := range verts {
		if vert < 0 || vert > limit {
			panic(fmt.Errorf("unable to pack two ints into a uint64, have %d and %d as inputs",
				verts[0], verts[1]))
		}
	}
	var i1, i2 int
	if verts[0] <= verts[1] {
		i1, i2 = verts[0], verts[1]
	} else {
		i1, i2 = verts[1], verts[0]
	}
	packed = EdgeKey(uint64(i1) | uint64(i2)<<32)
	return
}

// GetVertices returns the points in ascending order, or descending when rev is set
func (ek EdgeKey) GetVertices(rev bool) (verts [2]int) {
	verts[0] = int(uint64(ek) & math.MaxUint32)
	verts[1] = int(uint64(ek) >> 32)
	if rev {
		verts[0], verts[1] = verts[1], verts[0]
	}
	return
}

// OtherVertex returns the end of the edge that is not pt, or -1 if pt is not on the edge
func (ek EdgeKey) OtherVertex(pt int) int {
	verts := ek.GetVertices(false)
	switch pt {
	case verts[0]:
		return verts[1]
	case verts[1]:
		return verts[0]
	}
	return -1
}
