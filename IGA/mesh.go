package IGA

import (
	"fmt"

	"github.com/notargets/mortar/quadrature"
	"github.com/notargets/mortar/utils"
)

// Mesh is a multipatch NURBS surface. Control points shared across patch
// interfaces carry the same DofIndex; NumDofs counts the distinct indices.
type Mesh struct {
	Name           string
	Patches        []*PatchSurface
	NumDofs        int
	WeakConditions []*WeakContinuityCondition
	// ClampedDofs lists control-point DOF indices held fixed, ClampedDirections
	// the Cartesian directions (subset of 0,1,2) the clamping applies to.
	ClampedDofs       []int
	ClampedDirections []int
}

func NewMesh(name string, patches []*PatchSurface) (m *Mesh) {
	maxDof := -1
	for _, p := range patches {
		for _, c := range p.CP {
			if c.DofIndex > maxDof {
				maxDof = c.DofIndex
			}
		}
	}
	return &Mesh{Name: name, Patches: patches, NumDofs: maxDof + 1}
}

// ContinuityGP is one precomputed Gauss point on a patch interface curve.
// Tangents live in the parametric spaces of their patches and point along
// the interface in the master's traversal direction.
type ContinuityGP struct {
	MasterUV      [2]float64
	SlaveUV       [2]float64
	MasterTangent [2]float64
	SlaveTangent  [2]float64
	// ElementLength is the physical curve Jacobian times the Gauss weight,
	// the integration measure attached to this point.
	ElementLength float64
}

// WeakContinuityCondition couples the displacement field across one patch
// interface by penalties. Edges use the boundaryCurve numbering: 0 u=min,
// 1 u=max, 2 v=min, 3 v=max. SlaveReversed flips the slave traversal when
// the two edges run in opposite parametric directions.
type WeakContinuityCondition struct {
	MasterPatch, SlavePatch int
	MasterEdge, SlaveEdge   int
	SlaveReversed           bool
	GPs                     []ContinuityGP
}

// CreateGPData lays nGP Gauss-Legendre points per master knot span along the
// interface and precomputes the parametric locations, tangents and curve
// measure each penalty integration needs.
func (wc *WeakContinuityCondition) CreateGPData(patches []*PatchSurface, nGP int) {
	var (
		master = patches[wc.MasterPatch]
		slave  = patches[wc.SlavePatch]
		x, w   = quadrature.GaussLegendre(nGP)
	)
	mCurve, mMin, mMax := master.boundaryCurve(wc.MasterEdge)
	sCurve, sMin, sMax := slave.boundaryCurve(wc.SlaveEdge)
	spans := wc.masterEdgeSpans(master)
	wc.GPs = wc.GPs[:0]
	for s := 0; s < len(spans)-1; s++ {
		t0, t1 := spans[s], spans[s+1]
		if t1-t0 <= 0 {
			continue
		}
		for g := 0; g < nGP; g++ {
			t := 0.5*(t0+t1) + 0.5*(t1-t0)*x[g]
			weight := 0.5 * (t1 - t0) * w[g]
			mu, mv := mCurve(t)
			// Linear reparametrization onto the slave edge
			frac := (t - mMin) / (mMax - mMin)
			if wc.SlaveReversed {
				frac = 1 - frac
			}
			su, sv := sCurve(sMin + frac*(sMax-sMin))
			gp := ContinuityGP{
				MasterUV:      [2]float64{mu, mv},
				SlaveUV:       [2]float64{su, sv},
				MasterTangent: edgeTangent(wc.MasterEdge, 1),
				SlaveTangent:  edgeTangent(wc.SlaveEdge, slaveSign(wc.SlaveReversed)),
			}
			G1, G2 := master.BaseVectors(mu, mv)
			var dC [3]float64
			for d := 0; d < 3; d++ {
				dC[d] = G1[d]*gp.MasterTangent[0] + G2[d]*gp.MasterTangent[1]
			}
			gp.ElementLength = utils.VectorLength(dC[:]) * weight
			wc.GPs = append(wc.GPs, gp)
		}
	}
	if len(wc.GPs) == 0 {
		panic(fmt.Errorf("no gauss points generated for interface %d->%d",
			wc.MasterPatch, wc.SlavePatch))
	}
}

// masterEdgeSpans returns the distinct knot values along the running
// direction of the master edge.
func (wc *WeakContinuityCondition) masterEdgeSpans(master *PatchSurface) []float64 {
	switch wc.MasterEdge {
	case 0, 1:
		return master.Basis.VBasis.UniqueKnots()
	default:
		return master.Basis.UBasis.UniqueKnots()
	}
}

func edgeTangent(edge int, sign float64) [2]float64 {
	switch edge {
	case 0, 1:
		return [2]float64{0, sign}
	default:
		return [2]float64{sign, 0}
	}
}

func slaveSign(reversed bool) float64 {
	if reversed {
		return -1
	}
	return 1
}
