package joint

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r3"

	"imu-jointcenter/internal/lsq"
)

// ssfc matches the magnitude of the acceleration transported to the joint
// center from either sensor. Magnitudes do not depend on the sensor frame,
// so no rotations are needed.
type ssfc struct {
	settings lsq.Settings
}

func (ssfc) method() Method       { return SSFC }
func (ssfc) needsRotations() bool { return false }

func (s ssfc) solve(p *SegmentPair, idx []int) (Estimate, error) {
	m := len(idx)
	prob := magnitudeProblem(p, idx)

	res, err := lsq.Solve(prob, make([]float64, 6), s.settings)
	if err != nil {
		if errors.Is(err, lsq.ErrMaxEvaluations) || errors.Is(err, lsq.ErrNonFinite) || errors.Is(err, lsq.ErrDamping) {
			return Estimate{}, fmt.Errorf("%w: %v", ErrNumerical, err)
		}
		return Estimate{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	x := res.X
	return Estimate{
		Proximal:    r3.Vec{X: x[0], Y: x[1], Z: x[2]},
		Distal:      r3.Vec{X: x[3], Y: x[4], Z: x[5]},
		Residual:    scaleResidual(res.Cost, m),
		Iterations:  res.Iterations,
		Evaluations: res.Evaluations,
	}, nil
}

type magnitudeData struct {
	ap, ad []r3.Vec
	kp, kd []*r3.Mat
}

// MagnitudeResiduals writes e_i = |a_p - K_p·r_p| - |a_d - K_d·r_d| for every
// sample of p into dst and returns it. It is the SSFC objective evaluated at
// one candidate pair of offsets.
func MagnitudeResiduals(dst []float64, p *SegmentPair, rp, rd r3.Vec) []float64 {
	idx := All(p.Len()).Indices()
	d := newMagnitudeData(p, idx)
	if cap(dst) < len(idx) {
		dst = make([]float64, len(idx))
	}
	dst = dst[:len(idx)]
	d.residuals(dst, []float64{rp.X, rp.Y, rp.Z, rd.X, rd.Y, rd.Z})
	return dst
}

func newMagnitudeData(p *SegmentPair, idx []int) *magnitudeData {
	d := &magnitudeData{
		ap: make([]r3.Vec, len(idx)),
		ad: make([]r3.Vec, len(idx)),
		kp: operators(p.Proximal, idx),
		kd: operators(p.Distal, idx),
	}
	for j, i := range idx {
		d.ap[j] = p.Proximal.Acc[i]
		d.ad[j] = p.Distal.Acc[i]
	}
	return d
}

func splitOffsets(x []float64) (rp, rd r3.Vec) {
	return r3.Vec{X: x[0], Y: x[1], Z: x[2]}, r3.Vec{X: x[3], Y: x[4], Z: x[5]}
}

func (d *magnitudeData) residuals(dst, x []float64) {
	rp, rd := splitOffsets(x)
	for j := range d.ap {
		dst[j] = r3.Norm(transported(d.ap[j], d.kp[j], rp)) - r3.Norm(transported(d.ad[j], d.kd[j], rd))
	}
}

// jacobian: ∂|a - K·r|/∂r = -(Kᵀ·û)ᵀ with û the unit transported vector.
func (d *magnitudeData) jacobian(dst *mat.Dense, x []float64) {
	rp, rd := splitOffsets(x)
	for j := range d.ap {
		gp := unitGradient(d.kp[j], transported(d.ap[j], d.kp[j], rp))
		gd := unitGradient(d.kd[j], transported(d.ad[j], d.kd[j], rd))
		dst.Set(j, 0, -gp.X)
		dst.Set(j, 1, -gp.Y)
		dst.Set(j, 2, -gp.Z)
		dst.Set(j, 3, gd.X)
		dst.Set(j, 4, gd.Y)
		dst.Set(j, 5, gd.Z)
	}
}

// unitGradient returns Kᵀ·u/|u|, or zero when u vanishes.
func unitGradient(k *r3.Mat, u r3.Vec) r3.Vec {
	n := r3.Norm(u)
	if n == 0 {
		return r3.Vec{}
	}
	return k.MulVecTrans(r3.Scale(1/n, u))
}

func magnitudeProblem(p *SegmentPair, idx []int) lsq.Problem {
	d := newMagnitudeData(p, idx)
	return lsq.Problem{
		M:    len(idx),
		N:    6,
		Func: d.residuals,
		Jac:  d.jacobian,
	}
}
