package fem

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func unitQuadMesh() *Mesh {
	m, err := NewMesh("quad",
		[]int{1, 2, 3, 4},
		[]float64{
			0, 0, 0,
			1, 0, 0,
			1, 1, 0,
			0, 1, 0,
		},
		[]int{4},
		[]int{0, 1, 2, 3})
	if err != nil {
		panic(err)
	}
	return m
}

func TestMeshTables(t *testing.T) {
	m, err := NewMesh("two-tris",
		[]int{10, 20, 30, 40},
		[]float64{
			0, 0, 0,
			1, 0, 0,
			1, 1, 0,
			0, 1, 0,
		},
		[]int{3, 3},
		[]int{0, 1, 2, 0, 2, 3})
	assert.NoError(t, err)
	assert.Equal(t, 4, m.NumNodes())
	assert.Equal(t, 2, m.NumElems())
	assert.Equal(t, []int{0, 2, 3}, m.ElemNodes(1))
	assert.Equal(t, []float64{1, 1, 0}, m.NodeCoords(2))
	tbl := m.NodeToElemTable()
	assert.Equal(t, []int{0, 1}, tbl[0])
	assert.Equal(t, []int{0}, tbl[1])
	assert.Equal(t, []int{1}, tbl[3])
}

func TestMeshValidation(t *testing.T) {
	_, err := NewMesh("bad", []int{1, 2, 3, 4, 5},
		make([]float64, 15), []int{5}, []int{0, 1, 2, 3, 4})
	assert.Error(t, err) // five-node elements rejected
	_, err = NewMesh("bad", []int{1, 2, 3},
		make([]float64, 9), []int{3}, []int{0, 1, 7})
	assert.Error(t, err) // node position out of range
}

func TestTriangulate(t *testing.T) {
	{ // Planar quad survives untouched
		m := unitQuadMesh()
		out := m.Triangulate(1.e-6)
		assert.Equal(t, m, out)
		assert.Equal(t, 1, out.NumElems())
	}
	{ // Warped quad splits into two triangles
		m := unitQuadMesh()
		m.Nodes[11] = 0.5 // lift the fourth node off the plane
		out := m.Triangulate(1.e-6)
		assert.Equal(t, 2, out.NumElems())
		assert.Equal(t, []int{3, 3}, out.NumNodesPerElem)
		// Connectivity still covers all four nodes
		seen := map[int]bool{}
		for _, n := range out.Elems {
			seen[n] = true
		}
		assert.Equal(t, 4, len(seen))
	}
}
