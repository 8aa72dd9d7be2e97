package readfiles

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/notargets/mortar/fem"
)

// ReadFEMesh loads a low-order surface mesh from the GiD-style text format:
// a node block of "id x y z" lines followed by an element block of
// "numNodes id..." lines referencing node ids.
func ReadFEMesh(filename string, verbose bool) (m *fem.Mesh) {
	var (
		file *os.File
		err  error
	)
	if verbose {
		fmt.Printf("Reading FE mesh file named: %s\n", filename)
	}
	if file, err = os.Open(filename); err != nil {
		panic(fmt.Errorf("unable to open file %s\n %s", filename, err))
	}
	defer file.Close()
	return readFEMesh(bufio.NewReader(file), verbose)
}

func readFEMesh(reader *bufio.Reader, verbose bool) (m *fem.Mesh) {
	var (
		name     = readLabel(reader, "MESH")
		numNodes = readNumber(reader, "NUMNODES")
		nodeIDs  = make([]int, numNodes)
		nodes    = make([]float64, 3*numNodes)
		position = make(map[int]int, numNodes)
		err      error
	)
	for i := 0; i < numNodes; i++ {
		line := getLineNoComments(reader)
		if _, err = fmt.Sscanf(line, "%d %f %f %f",
			&nodeIDs[i], &nodes[3*i], &nodes[3*i+1], &nodes[3*i+2]); err != nil {
			panic(fmt.Errorf("bad node line [%s]: %s", line, err))
		}
		if _, dup := position[nodeIDs[i]]; dup {
			panic(fmt.Errorf("duplicate node id %d", nodeIDs[i]))
		}
		position[nodeIDs[i]] = i
	}
	var (
		numElems        = readNumber(reader, "NUMELEMS")
		numNodesPerElem = make([]int, numElems)
		elems           []int
	)
	for e := 0; e < numElems; e++ {
		fields := strings.Fields(getLineNoComments(reader))
		n := len(fields) - 1
		if n != 3 && n != 4 {
			panic(fmt.Errorf("element %d has %d nodes, only triangles and quads are supported", e, n))
		}
		numNodesPerElem[e] = n
		for _, f := range fields[1:] {
			var id int
			if _, err = fmt.Sscanf(f, "%d", &id); err != nil {
				panic(fmt.Errorf("bad element node id [%s]", f))
			}
			pos, ok := position[id]
			if !ok {
				panic(fmt.Errorf("element references unknown node id %d", id))
			}
			elems = append(elems, pos)
		}
	}
	if m, err = fem.NewMesh(name, nodeIDs, nodes, numNodesPerElem, elems); err != nil {
		panic(err)
	}
	if verbose {
		fmt.Printf("Read FE mesh [%s]: %d nodes, %d elements\n", name, numNodes, numElems)
	}
	return
}
