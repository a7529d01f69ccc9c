package lsq

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/diff/fd"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// Solve minimizes Σf_i(x)² starting from x0.
//
// The damping parameter follows Nielsen's update: it shrinks by at most a
// factor of three after a successful step and doubles repeatedly after
// rejected ones.
func Solve(p Problem, x0 []float64, s Settings) (Result, error) {
	if p.Func == nil || p.M <= 0 || p.N <= 0 || len(x0) != p.N {
		return Result{}, fmt.Errorf("lsq: malformed problem (m=%d n=%d len(x0)=%d)", p.M, p.N, len(x0))
	}
	if err := s.Validate(); err != nil {
		return Result{}, fmt.Errorf("lsq: %w", err)
	}
	if s.Jacobian == JacobianAnalytic && p.Jac == nil {
		s.Jacobian = JacobianForward
	}
	s = s.withDefaults(p.N)

	m, n := p.M, p.N
	res := Result{X: append([]float64(nil), x0...)}
	eval := func(dst, x []float64) {
		res.Evaluations++
		p.Func(dst, x)
	}

	x := res.X
	f := make([]float64, m)
	eval(f, x)
	cost := floats.Dot(f, f)
	if !finite(cost) {
		return res, ErrNonFinite
	}

	jac := mat.NewDense(m, n, nil)
	var a mat.SymDense
	g := mat.NewVecDense(n, nil)
	linearize := func() {
		switch s.Jacobian {
		case JacobianAnalytic:
			p.Jac(jac, x)
		case JacobianForward:
			fd.Jacobian(jac, eval, x, &fd.JacobianSettings{Formula: fd.Forward, OriginValue: f})
		case JacobianCentral:
			fd.Jacobian(jac, eval, x, &fd.JacobianSettings{Formula: fd.Central})
		}
		a.SymOuterK(1, jac.T())
		g.MulVec(jac.T(), mat.NewVecDense(m, f))
	}
	linearize()

	mu := 0.0
	for i := 0; i < n; i++ {
		mu = math.Max(mu, a.At(i, i))
	}
	mu *= s.InitialDamping
	if mu == 0 {
		mu = s.InitialDamping
	}
	nu := 2.0

	damped := mat.NewSymDense(n, nil)
	var chol mat.Cholesky
	step := mat.NewVecDense(n, nil)
	xNew := make([]float64, n)
	fNew := make([]float64, m)

	for {
		if cost == 0 {
			res.Cost, res.Status = 0, StatusZero
			return res, nil
		}
		if mat.Norm(g, math.Inf(1)) <= s.GTol {
			res.Cost, res.Status = cost, StatusGTol
			return res, nil
		}
		if res.Evaluations >= s.MaxEvaluations {
			res.Cost = cost
			return res, fmt.Errorf("%w (%d)", ErrMaxEvaluations, s.MaxEvaluations)
		}
		if math.IsInf(mu, 0) {
			res.Cost = cost
			return res, ErrDamping
		}

		damped.CopySym(&a)
		for i := 0; i < n; i++ {
			damped.SetSym(i, i, damped.At(i, i)+mu)
		}
		if ok := chol.Factorize(damped); !ok {
			mu *= nu
			nu *= 2
			continue
		}
		if err := chol.SolveVecTo(step, g); err != nil {
			mu *= nu
			nu *= 2
			continue
		}
		step.ScaleVec(-1, step)
		h := step.RawVector().Data

		if floats.Norm(h, 2) <= s.XTol*(floats.Norm(x, 2)+s.XTol) {
			res.Cost, res.Status = cost, StatusXTol
			return res, nil
		}

		floats.AddTo(xNew, x, h)
		eval(fNew, xNew)
		costNew := floats.Dot(fNew, fNew)
		res.Iterations++

		// predicted = hᵀ(μh − g), the decrease of the linear model.
		predicted := mu*floats.Dot(h, h) - floats.Dot(h, g.RawVector().Data)
		rho := -1.0
		if finite(costNew) && predicted > 0 {
			rho = (cost - costNew) / predicted
		}
		if rho <= 0 {
			mu *= nu
			nu *= 2
			continue
		}

		decrease := cost - costNew
		prev := cost
		copy(x, xNew)
		copy(f, fNew)
		cost = costNew
		linearize()
		mu *= math.Max(1.0/3, 1-math.Pow(2*rho-1, 3))
		nu = 2

		if decrease <= s.FTol*prev {
			res.Cost, res.Status = cost, StatusFTol
			return res, nil
		}
	}
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
