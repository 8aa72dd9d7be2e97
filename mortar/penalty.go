package mortar

import (
	"fmt"

	"github.com/notargets/mortar/IGA"
	"github.com/notargets/mortar/utils"
)

// Orientation checks across a patch interface must see clearly aligned or
// clearly opposed vectors; a dot product this close to zero means the two
// parametrizations disagree about the interface geometry.
const tolAngle = 1.e-1

// computeWeakContinuityConditionMatrices adds the continuity penalties to the
// expanded master matrix. Per precomputed interface Gauss point, the
// displacement jump operator between the two patch discretizations is squared
// and scaled by DispPenalty and the curve measure; the rotation jump
// operators about the interface tangent and the in-plane outward normal are
// squared and scaled by RotPenalty the same way. Slave rotation terms carry
// the sign aligning the slave's axes with the master's.
func (m *Mapper) computeWeakContinuityConditionMatrices() {
	var (
		alphaPrim = m.Params.DispPenalty
		alphaSec  = m.Params.RotPenalty
	)
	fmt.Printf("Applying weak continuity penalties on %d patch interfaces (disp=%g, rot=%g)...\n",
		len(m.MeshIGA.WeakConditions), alphaPrim, alphaSec)
	for _, wc := range m.MeshIGA.WeakConditions {
		if len(wc.GPs) == 0 {
			wc.CreateGPData(m.MeshIGA.Patches, m.Params.ContinuityGPPerSpan)
		}
		var (
			master = m.MeshIGA.Patches[wc.MasterPatch]
			slave  = m.MeshIGA.Patches[wc.SlavePatch]
		)
		for _, gp := range wc.GPs {
			signT, signO := m.checkInterfaceOrientation(wc.MasterPatch, wc.SlavePatch,
				gp.MasterUV, gp.SlaveUV, gp.MasterTangent, gp.SlaveTangent)
			var (
				mu, mv       = gp.MasterUV[0], gp.MasterUV[1]
				su, sv       = gp.SlaveUV[0], gp.SlaveUV[1]
				mSpanU       = master.Basis.UBasis.FindKnotSpan(master.Basis.UBasis.ClampKnot(mu))
				mSpanV       = master.Basis.VBasis.FindKnotSpan(master.Basis.VBasis.ClampKnot(mv))
				sSpanU       = slave.Basis.UBasis.FindKnotSpan(slave.Basis.UBasis.ClampKnot(su))
				sSpanV       = slave.Basis.VBasis.FindKnotSpan(slave.Basis.VBasis.ClampKnot(sv))
				mR           = master.Basis.BasisFunctions(mu, mSpanU, mv, mSpanV)
				sR           = slave.Basis.BasisFunctions(su, sSpanU, sv, sSpanV)
				mDofs, sDofs []int
				scale        = alphaPrim * gp.ElementLength
			)
			for _, ci := range master.LocalControlPoints(mSpanU, mSpanV) {
				mDofs = append(mDofs, master.CP[ci].DofIndex)
			}
			for _, ci := range slave.LocalControlPoints(sSpanU, sSpanV) {
				sDofs = append(sDofs, slave.CP[ci].DofIndex)
			}
			// K = scale * (Bm - Bs)^T (Bm - Bs), assembled blockwise:
			// master-master, slave-slave positive, cross terms negative
			for d := 0; d < 3; d++ {
				for i, di := range mDofs {
					for j, dj := range mDofs {
						m.addPenalty(3*di+d, 3*dj+d, scale*mR[i]*mR[j])
					}
					for j, dj := range sDofs {
						m.addPenalty(3*di+d, 3*dj+d, -scale*mR[i]*sR[j])
						m.addPenalty(3*dj+d, 3*di+d, -scale*sR[j]*mR[i])
					}
				}
				for i, di := range sDofs {
					for j, dj := range sDofs {
						m.addPenalty(3*di+d, 3*dj+d, scale*sR[i]*sR[j])
					}
				}
			}
			if alphaSec == 0 {
				continue
			}
			var (
				mBt, mBo = rotationOperators(master, mu, mv, gp.MasterTangent, mSpanU, mSpanV)
				sBt, sBo = rotationOperators(slave, su, sv, gp.SlaveTangent, sSpanU, sSpanV)
				rows     = make([]int, 3*(len(mDofs)+len(sDofs)))
			)
			for i, di := range mDofs {
				for d := 0; d < 3; d++ {
					rows[3*i+d] = 3*di + d
				}
			}
			off := 3 * len(mDofs)
			for j, dj := range sDofs {
				for d := 0; d < 3; d++ {
					rows[off+3*j+d] = 3*dj + d
				}
			}
			m.addRotationJumpPenalty(rows, mBt, sBt, signT, alphaSec*gp.ElementLength)
			m.addRotationJumpPenalty(rows, mBo, sBo, signO, alphaSec*gp.ElementLength)
		}
	}
}

func (m *Mapper) addPenalty(i, j int, v float64) {
	if v != 0 {
		m.C.AddCNNDof(i, j, v)
	}
}

// addRotationJumpPenalty assembles scale * J^T J for the rotation jump row
// operator J: master entries as-is, slave entries sign-flipped into the
// master's axis orientation and subtracted. rows maps the stacked local DOFs
// to expanded matrix indices.
func (m *Mapper) addRotationJumpPenalty(rows []int, Bm, Bs []float64, sign, scale float64) {
	nM := len(Bm)
	J := make([]float64, nM+len(Bs))
	copy(J, Bm)
	for j, v := range Bs {
		J[nM+j] = -sign * v
	}
	K := make([]float64, len(J)*len(J))
	utils.TransposeMatrixProduct(1, len(J), len(J), J, J, K)
	for a, ra := range rows {
		for b, rb := range rows {
			if v := scale * K[a*len(rows)+b]; v != 0 {
				m.C.AddCNNDof(ra, rb, v)
			}
		}
	}
}

// rotationOperators builds the linearized rotation row operators at (u,v):
// Bt maps stacked control point displacements (3 per local function, local
// ordering of the basis) to the rotation about the interface tangent, Bo to
// the rotation about the in-plane outward normal n x t. The rotation vector
// is omega = n x dn with dn the linearized change of the unit normal, so a
// constant displacement field produces zero rotation.
func rotationOperators(patch *IGA.PatchSurface, u, v float64, tan [2]float64,
	spanU, spanV int) (Bt, Bo []float64) {
	var (
		D      = patch.Basis.BasisFunctionsAndDerivatives(1, u, spanU, v, spanV)
		nDeriv = IGA.NumDerivatives(1)
		nLocal = patch.Basis.NumLocalBasis()
		G1, G2 = patch.BaseVectors(u, v)
		A      [3]float64
	)
	utils.CrossProduct(G1[:], G2[:], A[:])
	lA := utils.VectorLength(A[:])
	if lA < 1.e-14 {
		panic(fmt.Errorf("degenerate surface normal at (u,v)=(%g,%g)", u, v))
	}
	var n, t, o [3]float64
	for d := 0; d < 3; d++ {
		n[d] = A[d] / lA
		t[d] = G1[d]*tan[0] + G2[d]*tan[1]
	}
	normalize(&t)
	utils.CrossProduct(n[:], t[:], o[:])
	Bt = make([]float64, 3*nLocal)
	Bo = make([]float64, 3*nLocal)
	for k := 0; k < nLocal; k++ {
		var (
			dRdu = D[k*nDeriv+IGA.DerivIndex(1, 1, 0)]
			dRdv = D[k*nDeriv+IGA.DerivIndex(1, 0, 1)]
		)
		for d := 0; d < 3; d++ {
			var e, c1, c2, dA, dn, omega [3]float64
			e[d] = 1
			// dA = d(G1 x G2) for a unit displacement of this DOF
			utils.CrossProduct(e[:], G2[:], c1[:])
			utils.CrossProduct(G1[:], e[:], c2[:])
			for i := 0; i < 3; i++ {
				dA[i] = dRdu*c1[i] + dRdv*c2[i]
			}
			nd := utils.DotProduct(n[:], dA[:])
			for i := 0; i < 3; i++ {
				dn[i] = (dA[i] - nd*n[i]) / lA
			}
			utils.CrossProduct(n[:], dn[:], omega[:])
			Bt[3*k+d] = utils.DotProduct(t[:], omega[:])
			Bo[3*k+d] = utils.DotProduct(o[:], omega[:])
		}
	}
	return
}

// checkInterfaceOrientation verifies that the two patches agree on the
// interface geometry: their surface normals must be clearly parallel or
// antiparallel, as must the physical interface tangents and the resulting
// outward normals n x t. An ambiguous orientation is a modeling error, so it
// panics rather than guessing a sign; otherwise the signs aligning the
// slave's tangent and outward normal with the master's are returned.
func (m *Mapper) checkInterfaceOrientation(pm, ps int, mUV, sUV, mTan, sTan [2]float64) (signT, signO float64) {
	var (
		master = m.MeshIGA.Patches[pm]
		slave  = m.MeshIGA.Patches[ps]
		mN     = master.SurfaceNormal(mUV[0], mUV[1])
		sN     = slave.SurfaceNormal(sUV[0], sUV[1])
	)
	dotN := utils.DotProduct(mN[:], sN[:])
	if dotN < tolAngle && dotN > -tolAngle {
		panic(fmt.Errorf(
			"patch interface %d->%d: surface normals nearly orthogonal (dot=%g), "+
				"the parametrizations are geometrically inconsistent", pm, ps, dotN))
	}
	var (
		mG1, mG2 = master.BaseVectors(mUV[0], mUV[1])
		sG1, sG2 = slave.BaseVectors(sUV[0], sUV[1])
		mT, sT   [3]float64
	)
	for d := 0; d < 3; d++ {
		mT[d] = mG1[d]*mTan[0] + mG2[d]*mTan[1]
		sT[d] = sG1[d]*sTan[0] + sG2[d]*sTan[1]
	}
	normalize(&mT)
	normalize(&sT)
	dotT := utils.DotProduct(mT[:], sT[:])
	if dotT < tolAngle && dotT > -tolAngle {
		panic(fmt.Errorf(
			"patch interface %d->%d: interface tangents nearly orthogonal (dot=%g)", pm, ps, dotT))
	}
	var mOut, sOut [3]float64
	utils.CrossProduct(mN[:], mT[:], mOut[:])
	utils.CrossProduct(sN[:], sT[:], sOut[:])
	dotO := utils.DotProduct(mOut[:], sOut[:])
	if dotO < tolAngle && dotO > -tolAngle {
		panic(fmt.Errorf(
			"patch interface %d->%d: outward normals nearly orthogonal (dot=%g)", pm, ps, dotO))
	}
	signT, signO = 1, 1
	if dotT < 0 {
		signT = -1
	}
	if dotO < 0 {
		signO = -1
	}
	return
}

func normalize(v *[3]float64) {
	l := utils.VectorLength(v[:])
	for d := range v {
		v[d] /= l
	}
}

// applyStrongDirichletBCs eliminates the clamped control point DOFs from the
// expanded system: their rows and columns are zeroed, the diagonal set to
// one, and the cross matrix row cleared, before factorization.
func (m *Mapper) applyStrongDirichletBCs() {
	fmt.Printf("Eliminating %d clamped control points in %d directions...\n",
		len(m.MeshIGA.ClampedDofs), len(m.MeshIGA.ClampedDirections))
	for _, dof := range m.MeshIGA.ClampedDofs {
		for _, dir := range m.MeshIGA.ClampedDirections {
			i := 3*dof + dir
			m.C.DeleteRowCNN(i)
			m.C.DeleteColCNN(i)
			m.C.SetCNNDiagonal(i, 1)
			m.C.DeleteRowCNR(i)
		}
	}
}
