package mesh

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// gmshElementTypes maps the Gmsh 2.2 element type to ours and the number of
// nodes used. Second order tets keep their corner nodes only.
var gmshElementTypes = map[int]struct {
	Type     ElementType
	NumNodes int
}{
	2:  {Triangle, 3},
	3:  {Quad, 4},
	4:  {Tet, 4},
	5:  {Hex, 8},
	6:  {Prism, 6},
	7:  {Pyramid, 5},
	11: {Tet, 4},
}

// ReadGmsh reads an ASCII Gmsh 2.2 file. Volume elements become cells,
// triangles and quads become tagged boundary faces.
func ReadGmsh(filename string) (em *ElementMesh, err error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	em = NewElementMesh()
	scanner := bufio.NewScanner(file)
	const maxScanTokenSize = 1024 * 1024 * 10
	scanner.Buffer(make([]byte, maxScanTokenSize), maxScanTokenSize)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		switch line {
		case "$MeshFormat":
			err = readMeshFormat(scanner)
		case "$PhysicalNames":
			err = readPhysicalNames(scanner, em)
		case "$Nodes":
			err = readNodes(scanner, em)
		case "$Elements":
			err = readElements(scanner, em)
		default:
			if strings.HasPrefix(line, "$") && !strings.HasPrefix(line, "$End") {
				err = skipSection(scanner, "$End"+line[1:])
			}
		}
		if err != nil {
			return nil, fmt.Errorf("%s: %w", filename, err)
		}
	}
	if err = scanner.Err(); err != nil {
		return nil, fmt.Errorf("scanner error: %w", err)
	}
	return
}

func readMeshFormat(scanner *bufio.Scanner) error {
	if !scanner.Scan() {
		return fmt.Errorf("unexpected EOF in MeshFormat")
	}
	parts := strings.Fields(scanner.Text())
	if len(parts) < 3 {
		return fmt.Errorf("invalid MeshFormat line")
	}
	if !strings.HasPrefix(parts[0], "2") {
		return fmt.Errorf("unsupported Gmsh version: %s", parts[0])
	}
	if parts[1] != "0" {
		return fmt.Errorf("binary Gmsh files are not supported")
	}
	return skipSection(scanner, "$EndMeshFormat")
}

func readPhysicalNames(scanner *bufio.Scanner, em *ElementMesh) error {
	if !scanner.Scan() {
		return fmt.Errorf("unexpected EOF in PhysicalNames")
	}
	numPhysical, err := strconv.Atoi(strings.TrimSpace(scanner.Text()))
	if err != nil {
		return fmt.Errorf("invalid number of physical names: %w", err)
	}
	for i := 0; i < numPhysical; i++ {
		if !scanner.Scan() {
			return fmt.Errorf("unexpected EOF in PhysicalNames")
		}
		fields := strings.Fields(scanner.Text())
		if len(fields) < 3 {
			return fmt.Errorf("invalid physical name entry")
		}
		tag, err := strconv.Atoi(fields[1])
		if err != nil {
			return fmt.Errorf("invalid physical tag: %w", err)
		}
		em.BoundaryTags[tag] = strings.Trim(strings.Join(fields[2:], " "), "\"")
	}
	return skipSection(scanner, "$EndPhysicalNames")
}

func readNodes(scanner *bufio.Scanner, em *ElementMesh) error {
	if !scanner.Scan() {
		return fmt.Errorf("unexpected EOF in Nodes")
	}
	numNodes, err := strconv.Atoi(strings.TrimSpace(scanner.Text()))
	if err != nil {
		return fmt.Errorf("invalid number of nodes: %w", err)
	}
	for i := 0; i < numNodes; i++ {
		if !scanner.Scan() {
			return fmt.Errorf("unexpected EOF in Nodes at node %d", i)
		}
		fields := strings.Fields(scanner.Text())
		if len(fields) < 4 {
			return fmt.Errorf("invalid node entry at line %d", i+1)
		}
		nodeID, err := strconv.Atoi(fields[0])
		if err != nil {
			return fmt.Errorf("invalid node ID: %w", err)
		}
		var coords [3]float64
		for j := 0; j < 3; j++ {
			if coords[j], err = strconv.ParseFloat(fields[j+1], 64); err != nil {
				return fmt.Errorf("invalid coordinate: %w", err)
			}
		}
		em.nodeIndex[nodeID] = len(em.Vertices)
		em.Vertices = append(em.Vertices, coords)
	}
	return skipSection(scanner, "$EndNodes")
}

func readElements(scanner *bufio.Scanner, em *ElementMesh) error {
	if !scanner.Scan() {
		return fmt.Errorf("unexpected EOF in Elements")
	}
	numElems, err := strconv.Atoi(strings.TrimSpace(scanner.Text()))
	if err != nil {
		return fmt.Errorf("invalid number of elements: %w", err)
	}
	for i := 0; i < numElems; i++ {
		if !scanner.Scan() {
			return fmt.Errorf("unexpected EOF in Elements at element %d", i)
		}
		fields := strings.Fields(scanner.Text())
		if len(fields) < 3 {
			return fmt.Errorf("invalid element entry at line %d", i+1)
		}
		gmshType, err := strconv.Atoi(fields[1])
		if err != nil {
			return fmt.Errorf("invalid element type: %w", err)
		}
		numTags, err := strconv.Atoi(fields[2])
		if err != nil {
			return fmt.Errorf("invalid number of tags: %w", err)
		}
		et, ok := gmshElementTypes[gmshType]
		if !ok {
			continue // Points, lines and higher order shapes
		}
		startIdx := 3 + numTags
		if len(fields) < startIdx+et.NumNodes {
			return fmt.Errorf("element %s expects %d nodes, got %d",
				fields[0], et.NumNodes, len(fields)-startIdx)
		}
		physTag := 0
		if numTags > 0 {
			physTag, _ = strconv.Atoi(fields[3])
		}
		verts := make([]int, et.NumNodes)
		for j := range verts {
			id, err := strconv.Atoi(fields[startIdx+j])
			if err != nil {
				return fmt.Errorf("invalid node ID: %w", err)
			}
			if verts[j], ok = em.nodeIndex[id]; !ok {
				return fmt.Errorf("element %s uses unknown node %d", fields[0], id)
			}
		}
		if et.Type.Dimension() == 2 {
			em.BoundaryFaces = append(em.BoundaryFaces, verts)
			em.BoundaryFaceTags = append(em.BoundaryFaceTags, physTag)
			continue
		}
		em.Elements = append(em.Elements, verts)
		em.ElementTypes = append(em.ElementTypes, et.Type)
		em.ElementTags = append(em.ElementTags, physTag)
	}
	return skipSection(scanner, "$EndElements")
}

func skipSection(scanner *bufio.Scanner, endMarker string) error {
	for scanner.Scan() {
		if strings.TrimSpace(scanner.Text()) == endMarker {
			return nil
		}
	}
	return fmt.Errorf("missing %s", endMarker)
}
