package joint

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r3"
)

// sac solves [K_p | -R·K_d]·r = a_p - R·a_d in the least-squares sense.
type sac struct{}

func (sac) method() Method       { return SAC }
func (sac) needsRotations() bool { return true }

func (sac) solve(p *SegmentPair, idx []int) (Estimate, error) {
	m := len(idx)
	a, b := sacSystem(p, idx)

	var svd mat.SVD
	if ok := svd.Factorize(a, mat.SVDThin); !ok {
		return Estimate{}, fmt.Errorf("%w: SVD did not converge", ErrNumerical)
	}
	rows, cols := a.Dims()
	// Default singular value cutoff of LAPACK gelsd.
	rcond := epsilon * float64(max(rows, cols))
	rank := svd.Rank(rcond)
	if rank < cols {
		return Estimate{}, fmt.Errorf("%w: system has rank %d < %d, offsets are not identifiable", ErrNumerical, rank, cols)
	}

	var x mat.VecDense
	svd.SolveVecTo(&x, b, rank)

	var e mat.VecDense
	e.MulVec(a, &x)
	e.SubVec(&e, b)
	ssr := mat.Dot(&e, &e)
	if math.IsNaN(ssr) || math.IsInf(ssr, 0) {
		return Estimate{}, fmt.Errorf("%w: non-finite residual", ErrNumerical)
	}

	return Estimate{
		Proximal: r3.Vec{X: x.AtVec(0), Y: x.AtVec(1), Z: x.AtVec(2)},
		Distal:   r3.Vec{X: x.AtVec(3), Y: x.AtVec(4), Z: x.AtVec(5)},
		Residual: scaleResidual(ssr, m),
		Rank:     rank,
		Cond:     svd.Cond(),
	}, nil
}

// epsilon is the float64 machine epsilon.
const epsilon = 0x1p-52

// sacSystem stacks one 3×6 block of A and one 3-vector of b per retained
// sample.
func sacSystem(p *SegmentPair, idx []int) (*mat.Dense, *mat.VecDense) {
	m := len(idx)
	a := mat.NewDense(3*m, 6, nil)
	b := mat.NewVecDense(3*m, nil)

	kp := operators(p.Proximal, idx)
	kd := operators(p.Distal, idx)
	for j, i := range idx {
		rot := p.Rotations[i]
		var rkd r3.Mat
		rkd.Mul(rot, kd[j])
		rad := rot.MulVec(p.Distal.Acc[i])
		ap := p.Proximal.Acc[i]
		diff := [3]float64{ap.X - rad.X, ap.Y - rad.Y, ap.Z - rad.Z}
		for row := 0; row < 3; row++ {
			for col := 0; col < 3; col++ {
				a.Set(3*j+row, col, kp[j].At(row, col))
				a.Set(3*j+row, 3+col, -rkd.At(row, col))
			}
			b.SetVec(3*j+row, diff[row])
		}
	}
	return a, b
}
