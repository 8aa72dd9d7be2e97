package mortar

import (
	"fmt"
	"math"
	"runtime"
	"strings"

	"github.com/notargets/mortar/IGA"
	"github.com/notargets/mortar/InputParameters"
	"github.com/notargets/mortar/fem"
)

// Mapper builds and applies the mortar coupling between a multipatch NURBS
// surface and a low-order FE surface mesh. The mapping direction fixes the
// master side: IGA2FEM makes the FE mesh the master (CNN over FE nodes),
// FEM2IGA makes the NURBS control points the master.
type Mapper struct {
	Name    string
	MeshIGA *IGA.Mesh
	MeshFE  *fem.Mesh
	Params  *InputParameters.MapperParameters

	// projectedCoords[node] maps patch index to the parametric image of the
	// FE node on that patch.
	projectedCoords []map[int][2]float64
	nodeToElem      [][]int

	C *CouplingMatrices

	// Debug collections, populated when Params.Debug is set
	clippedPolygons []debugPolygon
	gaussPoints     []gpRecord
}

// NewMapper projects the FE mesh onto the patches, assembles the coupling
// matrices, applies penalties and Dirichlet conditions, and verifies
// consistency. The returned mapper is ready for mapping calls.
func NewMapper(name string, meshIGA *IGA.Mesh, meshFE *fem.Mesh,
	prm *InputParameters.MapperParameters) (m *Mapper, err error) {
	if meshIGA == nil || meshFE == nil {
		return nil, fmt.Errorf("mapper %s: both meshes are required", name)
	}
	if prm == nil {
		prm = InputParameters.DefaultParameters()
	}
	if prm.ParallelDegree <= 0 {
		prm.ParallelDegree = runtime.GOMAXPROCS(0)
	}
	m = &Mapper{
		Name:    name,
		MeshIGA: meshIGA,
		MeshFE:  meshFE,
		Params:  prm,
	}
	meshFE = meshFE.Triangulate(1.e-6)
	m.MeshFE = meshFE
	m.initTables()
	if err = m.projectPointsToSurface(); err != nil {
		return nil, err
	}
	if err = m.computeCouplingMatrices(); err != nil {
		return nil, err
	}
	if prm.WeakContinuity && !prm.MappingIGA2FEM && len(meshIGA.WeakConditions) > 0 {
		m.computeWeakContinuityConditionMatrices()
	}
	if prm.DirichletBCs && !prm.MappingIGA2FEM && len(meshIGA.ClampedDofs) > 0 {
		m.applyStrongDirichletBCs()
	}
	if !prm.MappingIGA2FEM {
		// Control points still without support after penalties and clamping
		// get a unit diagonal so the master system stays regular
		if n := m.C.EnforceCNN(); n > 0 {
			fmt.Printf("Enforced %d empty master rows with unit diagonal\n", n)
		}
	}
	if err = m.C.Factorize(); err != nil {
		return nil, fmt.Errorf("mapper %s: %w", name, err)
	}
	if prm.EnforceConsistency && !prm.DirichletBCs {
		if err = m.checkConsistency(); err != nil {
			return nil, fmt.Errorf("mapper %s: %w", name, err)
		}
	}
	if prm.Debug {
		if err = m.writeDebugFiles(); err != nil {
			return nil, err
		}
	}
	return
}

// IsExpanded reports whether the coupling matrices carry three Cartesian
// DOFs per node, required by penalties and clamped DOFs.
func (m *Mapper) IsExpanded() bool {
	if m.Params.MappingIGA2FEM {
		return false
	}
	return (m.Params.WeakContinuity && len(m.MeshIGA.WeakConditions) > 0) ||
		(m.Params.DirichletBCs && len(m.MeshIGA.ClampedDofs) > 0)
}

func (m *Mapper) initTables() {
	m.nodeToElem = m.MeshFE.NodeToElemTable()
	m.projectedCoords = make([]map[int][2]float64, m.MeshFE.NumNodes())
	for i := range m.projectedCoords {
		m.projectedCoords[i] = make(map[int][2]float64)
	}
	var sizeN, sizeR int
	if m.Params.MappingIGA2FEM {
		sizeN, sizeR = m.MeshFE.NumNodes(), m.MeshIGA.NumDofs
	} else {
		sizeN, sizeR = m.MeshIGA.NumDofs, m.MeshFE.NumNodes()
	}
	m.C = NewCouplingMatrices(sizeN, sizeR, m.IsExpanded())
}

func (m *Mapper) nrParams() IGA.ProjectionParams {
	return IGA.ProjectionParams{
		MaxIterations: m.Params.NewtonRaphsonMaxIterations,
		Tolerance:     m.Params.NewtonRaphsonTolerance,
	}
}

func (m *Mapper) boundaryParams() IGA.BoundaryProjectionParams {
	return IGA.BoundaryProjectionParams{
		MaxIterations:          m.Params.NewtonRaphsonBoundaryMaxIterations,
		Tolerance:              m.Params.NewtonRaphsonBoundaryTolerance,
		BisectionMaxIterations: m.Params.BisectionMaxIterations,
		BisectionTolerance:     m.Params.BisectionTolerance,
	}
}

// projectPointsToSurface computes the parametric image of every FE node on
// every candidate patch. Pass one seeds Newton from already-projected
// neighbor nodes and accepts projections within MaxProjectionDistance. Pass
// two retries leftover nodes with the Newton tolerance relaxed tenfold, the
// distance bound unchanged, and a final forced pass takes the best point of
// a fine grid sample on every candidate patch unconditionally. Projections
// onto additional patches are kept only while their distance stays within
// MaxDistanceForProjectedPointsOnDifferentPatches of the best one, which
// retains seam nodes shared between patches.
func (m *Mapper) projectPointsToSurface() (err error) {
	var (
		prm        = m.Params
		nNodes     = m.MeshFE.NumNodes()
		candidates = make([][]int, nNodes)
	)
	// Bounding box pass
	for n := 0; n < nNodes; n++ {
		P := m.MeshFE.NodeCoords(n)
		for p, patch := range m.MeshIGA.Patches {
			if patch.BBox.Contains(P, prm.MaxProjectionDistance) {
				candidates[n] = append(candidates[n], p)
			}
		}
		if len(candidates[n]) == 0 {
			return fmt.Errorf(
				"FE node %d at (%g, %g, %g) lies outside every patch bounding box; "+
					"increase MaxProjectionDistance or check the mesh alignment",
				m.MeshFE.NodeIDs[n], P[0], P[1], P[2])
		}
	}
	minDistance := make([]float64, nNodes)
	for n := range minDistance {
		minDistance[n] = math.Inf(1)
	}
	// First pass
	for n := 0; n < nNodes; n++ {
		for _, p := range candidates[n] {
			m.projectNodeOnPatch(n, p, m.nrParams(), prm.MaxProjectionDistance, minDistance)
		}
	}
	m.dropDistantDuplicates(minDistance)
	// Second pass with relaxed Newton tolerance for nodes that found no patch
	relaxed := m.nrParams()
	relaxed.Tolerance *= 10
	secondPass := false
	for n := 0; n < nNodes; n++ {
		if len(m.projectedCoords[n]) > 0 {
			continue
		}
		secondPass = true
		for _, p := range candidates[n] {
			m.projectNodeOnPatch(n, p, relaxed, prm.MaxProjectionDistance, minDistance)
		}
		if len(m.projectedCoords[n]) == 0 {
			m.forceProjectNode(n, candidates[n])
		}
	}
	if secondPass {
		fmt.Printf("Projection required a relaxed second pass for some FE nodes\n")
	}
	var missing []string
	for n := 0; n < nNodes; n++ {
		if len(m.projectedCoords[n]) == 0 {
			P := m.MeshFE.NodeCoords(n)
			missing = append(missing, fmt.Sprintf("node %d at (%g, %g, %g)",
				m.MeshFE.NodeIDs[n], P[0], P[1], P[2]))
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("unable to project FE nodes onto the NURBS surface: %s; "+
			"increase MaxProjectionDistance or refine the initial guess grid",
			strings.Join(missing, ", "))
	}
	return nil
}

// projectNodeOnPatch runs one Newton projection of node n onto patch p,
// seeded from the latest projected sibling node on the same patch when one
// exists. Existing projections are left alone.
func (m *Mapper) projectNodeOnPatch(n, p int, nr IGA.ProjectionParams,
	maxDistance float64, minDistance []float64) {
	if _, done := m.projectedCoords[n][p]; done {
		return
	}
	var (
		patch  = m.MeshIGA.Patches[p]
		P      = m.MeshFE.NodeCoords(n)
		u0, v0 float64
		seeded bool
	)
	// Last matching neighbor wins as the seed
	for _, e := range m.nodeToElem[n] {
		for _, sibling := range m.MeshFE.ElemNodes(e) {
			if uv, ok := m.projectedCoords[sibling][p]; ok && sibling != n {
				u0, v0 = uv[0], uv[1]
				seeded = true
			}
		}
	}
	if !seeded {
		g := m.Params.NumRefinementForInitialGuess
		u0, v0 = patch.InitialGuess(P, g, g)
	}
	u, v, converged, dist := patch.ProjectPoint(P, u0, v0, nr)
	if converged && dist <= maxDistance {
		m.projectedCoords[n][p] = [2]float64{u, v}
		if dist < minDistance[n] {
			minDistance[n] = dist
		}
	}
}

// dropDistantDuplicates removes projections onto secondary patches whose
// distance exceeds the best projection by more than the seam tolerance.
func (m *Mapper) dropDistantDuplicates(minDistance []float64) {
	tol := m.Params.MaxDistanceForProjectedPointsOnDifferentPatches
	for n := range m.projectedCoords {
		if len(m.projectedCoords[n]) < 2 {
			continue
		}
		P := m.MeshFE.NodeCoords(n)
		for p, uv := range m.projectedCoords[n] {
			S := m.MeshIGA.Patches[p].Cartesian(uv[0], uv[1])
			var d [3]float64
			for i := 0; i < 3; i++ {
				d[i] = S[i] - P[i]
			}
			dist := math.Sqrt(d[0]*d[0] + d[1]*d[1] + d[2]*d[2])
			if dist > minDistance[n]+tol {
				delete(m.projectedCoords[n], p)
			}
		}
	}
}

// forceProjectNode runs Newton from a fine grid sample on every candidate
// patch of node n and accepts the results unconditionally: the closest
// projection always, plus any other within the seam retention tolerance.
func (m *Mapper) forceProjectNode(n int, candidates []int) {
	type forced struct {
		patch int
		uv    [2]float64
		dist  float64
	}
	var (
		P    = m.MeshFE.NodeCoords(n)
		best = math.Inf(1)
		hits []forced
	)
	for _, p := range candidates {
		patch := m.MeshIGA.Patches[p]
		u0, v0 := patch.InitialGuess(P, 200, 200)
		u, v, _, dist := patch.ProjectPoint(P, u0, v0, m.nrParams())
		hits = append(hits, forced{patch: p, uv: [2]float64{u, v}, dist: dist})
		if dist < best {
			best = dist
		}
	}
	tol := m.Params.MaxDistanceForProjectedPointsOnDifferentPatches
	for _, h := range hits {
		if h.dist > best+tol {
			continue
		}
		m.projectedCoords[n][h.patch] = h.uv
		fmt.Printf("Forced projection of FE node %d onto patch %d at (u,v)=(%g,%g)\n",
			m.MeshFE.NodeIDs[n], h.patch, h.uv[0], h.uv[1])
	}
}

// getPatchesIndexElementIsOn lists the patches at least one element node
// projects onto, and whether all nodes landed on that patch.
func (m *Mapper) getPatchesIndexElementIsOn(elemNodes []int) (patches []int, full map[int]bool) {
	var seen = make(map[int]bool)
	full = make(map[int]bool)
	for _, p := range m.sortedPatchIndices() {
		inside := 0
		any := false
		for _, n := range elemNodes {
			if _, ok := m.projectedCoords[n][p]; ok {
				inside++
				any = true
			}
		}
		if any && !seen[p] {
			seen[p] = true
			patches = append(patches, p)
			full[p] = inside == len(elemNodes)
		}
	}
	return
}

func (m *Mapper) sortedPatchIndices() (idx []int) {
	idx = make([]int, len(m.MeshIGA.Patches))
	for i := range idx {
		idx[i] = i
	}
	return
}
