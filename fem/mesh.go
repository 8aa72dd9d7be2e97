package fem

import (
	"fmt"
	"math"

	"github.com/notargets/mortar/utils"
)

// Mesh is a low-order finite element surface mesh: triangles and quads only.
// Node coordinates are stored flat, three per node, and elements reference
// node positions (not IDs).
type Mesh struct {
	Name            string
	NodeIDs         []int
	Nodes           []float64 // x,y,z per node
	NumNodesPerElem []int
	Elems           []int // flattened connectivity
	elemOffset      []int
}

func NewMesh(name string, nodeIDs []int, nodes []float64,
	numNodesPerElem []int, elems []int) (m *Mesh, err error) {
	if len(nodes) != 3*len(nodeIDs) {
		return nil, fmt.Errorf("node coordinate count %d does not match %d node ids",
			len(nodes), len(nodeIDs))
	}
	m = &Mesh{
		Name:            name,
		NodeIDs:         nodeIDs,
		Nodes:           nodes,
		NumNodesPerElem: numNodesPerElem,
		Elems:           elems,
	}
	m.buildOffsets()
	var total int
	for e, n := range numNodesPerElem {
		if n != 3 && n != 4 {
			return nil, fmt.Errorf("element %d has %d nodes, only triangles and quads are supported", e, n)
		}
		total += n
	}
	if total != len(elems) {
		return nil, fmt.Errorf("connectivity length %d does not match element sizes summing to %d",
			len(elems), total)
	}
	for _, n := range elems {
		if n < 0 || n >= m.NumNodes() {
			return nil, fmt.Errorf("element node position %d out of range [0,%d)", n, m.NumNodes())
		}
	}
	return
}

func (m *Mesh) buildOffsets() {
	m.elemOffset = make([]int, len(m.NumNodesPerElem)+1)
	for e, n := range m.NumNodesPerElem {
		m.elemOffset[e+1] = m.elemOffset[e] + n
	}
}

func (m *Mesh) NumNodes() int { return len(m.NodeIDs) }
func (m *Mesh) NumElems() int { return len(m.NumNodesPerElem) }

// ElemNodes returns the node positions of element e as a subslice of the
// connectivity table.
func (m *Mesh) ElemNodes(e int) []int {
	return m.Elems[m.elemOffset[e]:m.elemOffset[e+1]]
}

// NodeCoords returns the Cartesian coordinates of node position n.
func (m *Mesh) NodeCoords(n int) []float64 {
	return m.Nodes[3*n : 3*n+3]
}

// NodeToElemTable maps each node position to the elements containing it.
func (m *Mesh) NodeToElemTable() (tbl [][]int) {
	tbl = make([][]int, m.NumNodes())
	for e := 0; e < m.NumElems(); e++ {
		for _, n := range m.ElemNodes(e) {
			tbl[n] = append(tbl[n], e)
		}
	}
	return
}

// quadWarp measures how far the fourth node of a quad lies off the plane of
// the first three, relative to the element size.
func (m *Mesh) quadWarp(nodes []int) float64 {
	var (
		a = m.NodeCoords(nodes[0])
		b = m.NodeCoords(nodes[1])
		c = m.NodeCoords(nodes[2])
		d = m.NodeCoords(nodes[3])
		e1, e2, n [3]float64
	)
	for i := 0; i < 3; i++ {
		e1[i] = b[i] - a[i]
		e2[i] = c[i] - a[i]
	}
	utils.CrossProduct(e1[:], e2[:], n[:])
	l := utils.VectorLength(n[:])
	if l < 1.e-14 {
		return 0
	}
	var off float64
	for i := 0; i < 3; i++ {
		off += (d[i] - a[i]) * n[i] / l
	}
	size := math.Max(utils.VectorLength(e1[:]), utils.VectorLength(e2[:]))
	return math.Abs(off) / size
}

// Triangulate returns a mesh where warped quads are split into two
// triangles along the shorter diagonal. Planar quads within tol and all
// triangles pass through unchanged; the original mesh is returned when
// nothing needed splitting.
func (m *Mesh) Triangulate(tol float64) (out *Mesh) {
	split := false
	for e := 0; e < m.NumElems(); e++ {
		if m.NumNodesPerElem[e] == 4 && m.quadWarp(m.ElemNodes(e)) > tol {
			split = true
			break
		}
	}
	if !split {
		return m
	}
	out = &Mesh{
		Name:    m.Name,
		NodeIDs: m.NodeIDs,
		Nodes:   m.Nodes,
	}
	for e := 0; e < m.NumElems(); e++ {
		nodes := m.ElemNodes(e)
		if m.NumNodesPerElem[e] == 3 || m.quadWarp(nodes) <= tol {
			out.NumNodesPerElem = append(out.NumNodesPerElem, m.NumNodesPerElem[e])
			out.Elems = append(out.Elems, nodes...)
			continue
		}
		d02 := utils.PointDistance(m.NodeCoords(nodes[0]), m.NodeCoords(nodes[2]))
		d13 := utils.PointDistance(m.NodeCoords(nodes[1]), m.NodeCoords(nodes[3]))
		var tris [2][3]int
		if d02 <= d13 {
			tris = [2][3]int{{nodes[0], nodes[1], nodes[2]}, {nodes[0], nodes[2], nodes[3]}}
		} else {
			tris = [2][3]int{{nodes[0], nodes[1], nodes[3]}, {nodes[1], nodes[2], nodes[3]}}
		}
		for _, tri := range tris {
			out.NumNodesPerElem = append(out.NumNodesPerElem, 3)
			out.Elems = append(out.Elems, tri[0], tri[1], tri[2])
		}
	}
	out.buildOffsets()
	return
}
