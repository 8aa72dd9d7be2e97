package mortar

import (
	"fmt"
	"math"
	"sync"

	"github.com/notargets/mortar/geometry2D"
	"github.com/notargets/mortar/quadrature"
	"github.com/notargets/mortar/utils"
)

// computeCouplingMatrices runs the mortar integration over all FE elements.
// Elements are independent, so the loop is partitioned over a worker pool;
// workers compute local element matrices and scatter-add them into the
// shared store under the assembly mutex.
func (m *Mapper) computeCouplingMatrices() (err error) {
	var (
		nElems = m.MeshFE.NumElems()
		pm     = utils.NewPartitionMap(m.Params.ParallelDegree, nElems)
		wg     sync.WaitGroup
		mtx    sync.Mutex
		errs   = make([]error, pm.ParallelDegree)
	)
	fmt.Printf("Assembling coupling matrices over %d FE elements (%d workers)...\n",
		nElems, pm.ParallelDegree)
	for np := 0; np < pm.ParallelDegree; np++ {
		wg.Add(1)
		go func(np int) {
			defer wg.Done()
			kMin, kMax := pm.GetBucketRange(np)
			for e := kMin; e < kMax; e++ {
				if errs[np] = m.assembleElement(e, &mtx); errs[np] != nil {
					return
				}
			}
		}(np)
	}
	wg.Wait()
	for _, e := range errs {
		if e != nil {
			return e
		}
	}
	return nil
}

// assembleElement pushes one FE element through the polygon pipeline on
// every patch it touches and integrates the resulting pieces.
func (m *Mapper) assembleElement(e int, mtx *sync.Mutex) (err error) {
	elemNodes := m.MeshFE.ElemNodes(e)
	patches, full := m.getPatchesIndexElementIsOn(elemNodes)
	for _, p := range patches {
		var projElem geometry2D.Polygon2D
		if full[p] {
			projElem = m.buildFullParametricElement(elemNodes, p)
		} else {
			projElem, err = m.buildBoundaryParametricElement(elemNodes, p)
			if err != nil {
				if m.elementTouchesPatchEdgeOnly(elemNodes, p) {
					// Zero-measure overlap: the element meets this patch only
					// along its domain boundary, nothing to integrate
					err = nil
					continue
				}
				if m.MeshIGA.Patches[p].IsTrimmed() {
					fmt.Printf("Warning: skipping element %d on trimmed patch %d: %s\n", e, p, err)
					err = nil
					continue
				}
				return fmt.Errorf("element %d: %w", e, err)
			}
		}
		clipped := m.clipByPatch(projElem, p)
		if len(clipped) < 3 {
			continue
		}
		for _, piece := range m.clipByTrimming(clipped, p) {
			for _, sp := range m.clipByKnotSpan(piece, p) {
				for _, cell := range geometry2D.Triangulate(sp.Poly) {
					m.integrate(e, p, sp.SpanU, sp.SpanV, cell, projElem, elemNodes, mtx)
				}
			}
		}
	}
	return nil
}

// integrate evaluates the mortar integrals of one integration cell, a
// triangle or quad in the parametric space of patch p lying in a single
// knot span, and scatter-adds the local matrices into the store.
func (m *Mapper) integrate(e, p, spanU, spanV int, cell, projElem geometry2D.Polygon2D,
	elemNodes []int, mtx *sync.Mutex) {
	var (
		patch  = m.MeshIGA.Patches[p]
		nFE    = len(elemNodes)
		rule   *quadrature.Rule
		triCell = len(cell) == 3
	)
	if triCell {
		rule = quadrature.NewTriangleRule(m.Params.NumGPTriangle)
	} else {
		rule = quadrature.NewQuadRule(m.Params.NumGPQuad)
	}
	// IGA element freedom table: control point DOF indices on this span
	var (
		local   = patch.LocalControlPoints(spanU, spanV)
		igaDofs = make([]int, len(local))
	)
	for k, ci := range local {
		igaDofs[k] = patch.CP[ci].DofIndex
	}
	var (
		nIGA       = len(igaDofs)
		nMaster    = nIGA
		nSlave     = nFE
		masterDofs = igaDofs
		slaveDofs  = elemNodes
	)
	if m.Params.MappingIGA2FEM {
		nMaster, nSlave = nFE, nIGA
		masterDofs, slaveDofs = elemNodes, igaDofs
	}
	var (
		elemCNN  = make([]float64, nMaster*nMaster)
		elemCNR  = make([]float64, nMaster*nSlave)
		cellArea = math.Abs(cell.Area())
		gps      []gpRecord
	)
	for g := 0; g < rule.NGP; g++ {
		var (
			gp    = rule.Coords[g]
			u, v  float64
			detJ1 float64
		)
		if triCell {
			N := triangleShape(gp[0], gp[1])
			for k := 0; k < 3; k++ {
				u += N[k] * cell[k].X[0]
				v += N[k] * cell[k].X[1]
			}
			detJ1 = cellArea
		} else {
			N, dXi, dEta := bilinearShape(gp[0], gp[1])
			var j00, j01, j10, j11 float64
			for k := 0; k < 4; k++ {
				u += N[k] * cell[k].X[0]
				v += N[k] * cell[k].X[1]
				j00 += dXi[k] * cell[k].X[0]
				j01 += dEta[k] * cell[k].X[0]
				j10 += dXi[k] * cell[k].X[1]
				j11 += dEta[k] * cell[k].X[1]
			}
			detJ1 = math.Abs(j00*j11 - j01*j10)
		}
		// FE shape functions at the canonical image of (u,v) in the element
		xi, eta := computeCanonicalElement(u, v, projElem)
		feShape := make([]float64, nFE)
		if nFE == 3 {
			N := triangleShape(xi, eta)
			copy(feShape, N[:])
		} else {
			N, _, _ := bilinearShape(xi, eta)
			copy(feShape, N[:])
		}
		// NURBS basis and surface Jacobian at (u,v)
		var (
			R      = patch.Basis.BasisFunctions(u, spanU, v, spanV)
			G1, G2 = patch.BaseVectors(u, v)
			detJ2  = 2 * utils.TriangleArea(G1[0], G1[1], G1[2], G2[0], G2[1], G2[2])
			factor = rule.Weights[g] * detJ1 * detJ2
		)
		master, slave := R, feShape
		if m.Params.MappingIGA2FEM {
			master, slave = feShape, R
		}
		for i := 0; i < nMaster; i++ {
			for j := 0; j < nMaster; j++ {
				elemCNN[i*nMaster+j] += master[i] * master[j] * factor
			}
			for j := 0; j < nSlave; j++ {
				elemCNR[i*nSlave+j] += master[i] * slave[j] * factor
			}
		}
		if m.Params.Debug {
			gps = append(gps, gpRecord{
				Element: e, Patch: p,
				U: u, V: v, Weight: rule.Weights[g],
				Jacobian: detJ1 * detJ2,
				FEShape:  feShape, IGAShape: R,
			})
		}
	}
	mtx.Lock()
	defer mtx.Unlock()
	for i := 0; i < nMaster; i++ {
		for j := 0; j < nMaster; j++ {
			if elemCNN[i*nMaster+j] != 0 {
				m.C.AddCNN(masterDofs[i], masterDofs[j], elemCNN[i*nMaster+j])
			}
		}
		for j := 0; j < nSlave; j++ {
			if elemCNR[i*nSlave+j] != 0 {
				m.C.AddCNR(masterDofs[i], slaveDofs[j], elemCNR[i*nSlave+j])
			}
		}
	}
	if m.Params.Debug {
		m.gaussPoints = append(m.gaussPoints, gps...)
		m.clippedPolygons = append(m.clippedPolygons, debugPolygon{Patch: p, Poly: cell})
	}
}
