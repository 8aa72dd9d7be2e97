package mortar

import (
	"fmt"

	"github.com/james-bowman/sparse"
	"gonum.org/v1/gonum/mat"
)

// CouplingMatrices holds the two mortar integrals: CNN, the square mass
// matrix of the master discretization, and CNR, the rectangular cross mass
// matrix between master rows and slave columns. Entries accumulate in DOK
// form during assembly; Factorize freezes CNN into an LU decomposition for
// the mapping solves.
//
// Factor is 1 for scalar (per node) coupling and 3 when the matrices are
// expanded to one row per Cartesian DOF, which penalty and Dirichlet terms
// require. Nodal contributions replicate onto the three diagonal DOF blocks.
type CouplingMatrices struct {
	SizeN, SizeR int // nodal sizes, before expansion
	Factor       int
	CNN, CNR     *sparse.DOK
	cnnCols      []map[int]struct{} // per-row occupied columns, for row surgery
	cnrCols      []map[int]struct{}
	lu           mat.LU
	luValid      bool
	enforcedRows map[int]struct{} // structurally empty rows given a unit diagonal
}

func NewCouplingMatrices(sizeN, sizeR int, expanded bool) (cm *CouplingMatrices) {
	factor := 1
	if expanded {
		factor = 3
	}
	var (
		n = sizeN * factor
		r = sizeR * factor
	)
	cm = &CouplingMatrices{
		SizeN:        sizeN,
		SizeR:        sizeR,
		Factor:       factor,
		CNN:          sparse.NewDOK(n, n),
		CNR:          sparse.NewDOK(n, r),
		cnnCols:      make([]map[int]struct{}, n),
		cnrCols:      make([]map[int]struct{}, n),
		enforcedRows: make(map[int]struct{}),
	}
	return
}

// RowsN is the row dimension of both matrices after expansion.
func (cm *CouplingMatrices) RowsN() int { return cm.SizeN * cm.Factor }

// ColsR is the column dimension of CNR after expansion.
func (cm *CouplingMatrices) ColsR() int { return cm.SizeR * cm.Factor }

// AddCNN accumulates a nodal contribution, replicated over the DOF blocks
// when the store is expanded.
func (cm *CouplingMatrices) AddCNN(i, j int, v float64) {
	for d := 0; d < cm.Factor; d++ {
		cm.addCNNDof(cm.Factor*i+d, cm.Factor*j+d, v)
	}
}

// AddCNR accumulates a nodal cross contribution, replicated like AddCNN.
func (cm *CouplingMatrices) AddCNR(i, j int, v float64) {
	for d := 0; d < cm.Factor; d++ {
		cm.addCNRDof(cm.Factor*i+d, cm.Factor*j+d, v)
	}
}

// AddCNNDof accumulates directly at expanded DOF indices, used by the
// penalty assembly which couples different Cartesian directions.
func (cm *CouplingMatrices) AddCNNDof(i, j int, v float64) {
	if cm.Factor == 1 {
		panic("DOF-indexed accumulation requires the expanded store")
	}
	cm.addCNNDof(i, j, v)
}

func (cm *CouplingMatrices) addCNNDof(i, j int, v float64) {
	cm.CNN.Set(i, j, cm.CNN.At(i, j)+v)
	if cm.cnnCols[i] == nil {
		cm.cnnCols[i] = make(map[int]struct{})
	}
	cm.cnnCols[i][j] = struct{}{}
	cm.luValid = false
}

func (cm *CouplingMatrices) addCNRDof(i, j int, v float64) {
	cm.CNR.Set(i, j, cm.CNR.At(i, j)+v)
	if cm.cnrCols[i] == nil {
		cm.cnrCols[i] = make(map[int]struct{})
	}
	cm.cnrCols[i][j] = struct{}{}
}

// EnforceCNN gives structurally empty CNN rows a unit diagonal so the system
// stays regular. The affected rows are remembered and excluded from the
// consistency norm.
func (cm *CouplingMatrices) EnforceCNN() (numEnforced int) {
	for i := 0; i < cm.RowsN(); i++ {
		if len(cm.cnnCols[i]) == 0 {
			cm.addCNNDof(i, i, 1)
			cm.enforcedRows[i] = struct{}{}
			numEnforced++
		}
	}
	return
}

// IsEnforcedRow reports whether row i only exists through EnforceCNN.
func (cm *CouplingMatrices) IsEnforcedRow(i int) bool {
	_, ok := cm.enforcedRows[i]
	return ok
}

// DeleteRowCNN zeroes CNN row i.
func (cm *CouplingMatrices) DeleteRowCNN(i int) {
	for j := range cm.cnnCols[i] {
		cm.CNN.Set(i, j, 0)
	}
	cm.cnnCols[i] = nil
	cm.luValid = false
}

// DeleteColCNN zeroes CNN column j.
func (cm *CouplingMatrices) DeleteColCNN(j int) {
	for i := 0; i < cm.RowsN(); i++ {
		if cm.cnnCols[i] != nil {
			if _, ok := cm.cnnCols[i][j]; ok {
				cm.CNN.Set(i, j, 0)
				delete(cm.cnnCols[i], j)
			}
		}
	}
	cm.luValid = false
}

// DeleteRowCNR zeroes CNR row i.
func (cm *CouplingMatrices) DeleteRowCNR(i int) {
	for j := range cm.cnrCols[i] {
		cm.CNR.Set(i, j, 0)
	}
	cm.cnrCols[i] = nil
}

// SetCNNDiagonal overwrites the diagonal entry of row i.
func (cm *CouplingMatrices) SetCNNDiagonal(i int, v float64) {
	cm.CNN.Set(i, i, v)
	if cm.cnnCols[i] == nil {
		cm.cnnCols[i] = make(map[int]struct{})
	}
	cm.cnnCols[i][i] = struct{}{}
	cm.luValid = false
}

// RowSumCNR returns the sum of CNR row i.
func (cm *CouplingMatrices) RowSumCNR(i int) (sum float64) {
	for j := range cm.cnrCols[i] {
		sum += cm.CNR.At(i, j)
	}
	return
}

// Factorize computes the LU decomposition of CNN. Mapping calls reuse the
// factorization until the matrix changes again.
func (cm *CouplingMatrices) Factorize() error {
	n := cm.RowsN()
	dense := mat.NewDense(n, n, nil)
	cm.CNN.ToCSR().DoNonZero(func(i, j int, v float64) {
		dense.Set(i, j, v)
	})
	cm.lu.Factorize(dense)
	if cm.lu.Cond() > 1.e16 {
		return fmt.Errorf("master mass matrix is singular to working precision")
	}
	cm.luValid = true
	return nil
}

// ConsistentMapping maps a slave field to the master: solves
// CNN*x = CNR*slaveField. The field length must match the expanded slave
// dimension.
func (cm *CouplingMatrices) ConsistentMapping(slaveField []float64) (masterField []float64, err error) {
	if len(slaveField) != cm.ColsR() {
		return nil, fmt.Errorf("slave field length %d, expected %d", len(slaveField), cm.ColsR())
	}
	if !cm.luValid {
		if err = cm.Factorize(); err != nil {
			return nil, err
		}
	}
	n := cm.RowsN()
	rhs := mat.NewVecDense(n, nil)
	cm.CNR.ToCSR().DoNonZero(func(i, j int, v float64) {
		rhs.SetVec(i, rhs.AtVec(i)+v*slaveField[j])
	})
	x := mat.NewVecDense(n, nil)
	if err = cm.lu.SolveVecTo(x, false, rhs); err != nil {
		return nil, fmt.Errorf("consistent mapping solve failed: %w", err)
	}
	masterField = make([]float64, n)
	copy(masterField, x.RawVector().Data)
	return
}

// ConservativeMapping maps a master flux-like field to the slave as
// CNR^T * CNN^-1 * masterField, the transpose of the consistent map.
func (cm *CouplingMatrices) ConservativeMapping(masterField []float64) (slaveField []float64, err error) {
	if len(masterField) != cm.RowsN() {
		return nil, fmt.Errorf("master field length %d, expected %d", len(masterField), cm.RowsN())
	}
	if !cm.luValid {
		if err = cm.Factorize(); err != nil {
			return nil, err
		}
	}
	var (
		n   = cm.RowsN()
		rhs = mat.NewVecDense(n, masterField)
		x   = mat.NewVecDense(n, nil)
	)
	// The transpose of CNN^-1 acting on the master field
	if err = cm.lu.SolveVecTo(x, true, rhs); err != nil {
		return nil, fmt.Errorf("conservative mapping solve failed: %w", err)
	}
	slaveField = make([]float64, cm.ColsR())
	cm.CNR.ToCSR().DoNonZero(func(i, j int, v float64) {
		slaveField[j] += v * x.AtVec(i)
	})
	return
}
