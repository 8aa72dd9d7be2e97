package mortar

import (
	"bufio"
	"fmt"
	"math"
	"os"
	"path/filepath"

	"github.com/notargets/mortar/geometry2D"
)

// debugPolygon is one integrated cell in patch parametric space.
type debugPolygon struct {
	Patch int
	Poly  geometry2D.Polygon2D
}

// gpRecord captures one integration point for postprocessing, e.g. L2 error
// norms over the interface.
type gpRecord struct {
	Element, Patch int
	U, V           float64
	Weight         float64
	Jacobian       float64
	FEShape        []float64
	IGAShape       []float64
}

func (m *Mapper) writeDebugFiles() (err error) {
	if err = m.writeProjectedNodes(); err != nil {
		return
	}
	if err = m.writeClippedPolygonsVTK(); err != nil {
		return
	}
	return m.writeGaussPointsCSV()
}

// writeProjectedNodes reports every FE node with its parametric image per
// patch and the residual projection distance.
func (m *Mapper) writeProjectedNodes() (err error) {
	var file *os.File
	path := filepath.Join(m.Params.OutputDir, m.Name+"_projectedNodes.txt")
	if file, err = os.Create(path); err != nil {
		return
	}
	defer file.Close()
	w := bufio.NewWriter(file)
	defer w.Flush()
	fmt.Fprintf(w, "# nodeID patch u v distance\n")
	for n := range m.projectedCoords {
		P := m.MeshFE.NodeCoords(n)
		for p, uv := range m.projectedCoords[n] {
			S := m.MeshIGA.Patches[p].Cartesian(uv[0], uv[1])
			var d2 float64
			for i := 0; i < 3; i++ {
				d2 += (S[i] - P[i]) * (S[i] - P[i])
			}
			fmt.Fprintf(w, "%d %d %.12g %.12g %.6g\n",
				m.MeshFE.NodeIDs[n], p, uv[0], uv[1], math.Sqrt(d2))
		}
	}
	return
}

// writeClippedPolygonsVTK exports the integrated parametric cells mapped
// back to Cartesian space as legacy VTK POLYDATA, for inspection of the
// clipping cascade.
func (m *Mapper) writeClippedPolygonsVTK() (err error) {
	var file *os.File
	path := filepath.Join(m.Params.OutputDir, m.Name+"_clippedPolygons.vtk")
	if file, err = os.Create(path); err != nil {
		return
	}
	defer file.Close()
	w := bufio.NewWriter(file)
	defer w.Flush()
	var nPoints, connSize int
	for _, dp := range m.clippedPolygons {
		nPoints += len(dp.Poly)
		connSize += len(dp.Poly) + 1
	}
	fmt.Fprintf(w, "# vtk DataFile Version 2.0\n")
	fmt.Fprintf(w, "Mortar integration cells of mapper %s\n", m.Name)
	fmt.Fprintf(w, "ASCII\nDATASET POLYDATA\n")
	fmt.Fprintf(w, "POINTS %d double\n", nPoints)
	for _, dp := range m.clippedPolygons {
		patch := m.MeshIGA.Patches[dp.Patch]
		for _, pt := range dp.Poly {
			P := patch.Cartesian(pt.X[0], pt.X[1])
			fmt.Fprintf(w, "%.12g %.12g %.12g\n", P[0], P[1], P[2])
		}
	}
	fmt.Fprintf(w, "POLYGONS %d %d\n", len(m.clippedPolygons), connSize)
	offset := 0
	for _, dp := range m.clippedPolygons {
		fmt.Fprintf(w, "%d", len(dp.Poly))
		for k := range dp.Poly {
			fmt.Fprintf(w, " %d", offset+k)
		}
		fmt.Fprintf(w, "\n")
		offset += len(dp.Poly)
	}
	return
}

// writeGaussPointsCSV streams the integration point data: location, weight,
// combined Jacobian and the shape function values of both sides.
func (m *Mapper) writeGaussPointsCSV() (err error) {
	var file *os.File
	path := filepath.Join(m.Params.OutputDir, m.Name+"_gaussPoints.csv")
	if file, err = os.Create(path); err != nil {
		return
	}
	defer file.Close()
	w := bufio.NewWriter(file)
	defer w.Flush()
	fmt.Fprintf(w, "element,patch,u,v,weight,jacobian,feShape,igaShape\n")
	for _, gp := range m.gaussPoints {
		fmt.Fprintf(w, "%d,%d,%.12g,%.12g,%.12g,%.12g,", gp.Element, gp.Patch,
			gp.U, gp.V, gp.Weight, gp.Jacobian)
		for k, v := range gp.FEShape {
			if k > 0 {
				fmt.Fprintf(w, ";")
			}
			fmt.Fprintf(w, "%.8g", v)
		}
		fmt.Fprintf(w, ",")
		for k, v := range gp.IGAShape {
			if k > 0 {
				fmt.Fprintf(w, ";")
			}
			fmt.Fprintf(w, "%.8g", v)
		}
		fmt.Fprintf(w, "\n")
	}
	return
}
