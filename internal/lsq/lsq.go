// Package lsq minimizes sums of squared residuals with the Levenberg-Marquardt
// method.
//
// The cost reported by Solve is the plain sum of squares Σf_i², not half of it.
package lsq

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

var (
	// ErrMaxEvaluations is returned when the evaluation budget runs out before
	// a convergence test passes.
	ErrMaxEvaluations = errors.New("lsq: maximum number of evaluations reached")
	// ErrNonFinite is returned when the residuals at the starting point are
	// NaN or infinite.
	ErrNonFinite = errors.New("lsq: non-finite residuals")
	// ErrDamping is returned when no damping keeps the normal equations
	// positive definite.
	ErrDamping = errors.New("lsq: damped normal equations are singular")
)

// JacobianKind selects how the Jacobian is obtained.
type JacobianKind int

const (
	// JacobianAnalytic uses Problem.Jac. Solve falls back to forward
	// differences when Problem.Jac is nil.
	JacobianAnalytic JacobianKind = iota
	// JacobianForward uses forward finite differences.
	JacobianForward
	// JacobianCentral uses central finite differences.
	JacobianCentral
)

func (k JacobianKind) String() string {
	switch k {
	case JacobianAnalytic:
		return "analytic"
	case JacobianForward:
		return "forward"
	case JacobianCentral:
		return "central"
	default:
		return fmt.Sprintf("JacobianKind(%d)", int(k))
	}
}

// ParseJacobianKind parses "analytic", "forward" or "central".
func ParseJacobianKind(s string) (JacobianKind, error) {
	switch s {
	case "analytic", "":
		return JacobianAnalytic, nil
	case "forward", "2-point":
		return JacobianForward, nil
	case "central", "3-point":
		return JacobianCentral, nil
	}
	return 0, fmt.Errorf("unknown jacobian %q", s)
}

// Settings are the solver options. The zero value of a field selects its
// default. Settings is a plain value, so sharing one between goroutines is
// safe.
type Settings struct {
	// FTol stops when an accepted step reduces the cost by less than
	// FTol·cost.
	FTol float64
	// XTol stops when the step is shorter than XTol·(‖x‖ + XTol).
	XTol float64
	// GTol stops when the infinity norm of the gradient Jᵀf drops below GTol.
	GTol float64
	// MaxEvaluations bounds residual evaluations, including those spent on
	// finite differences.
	MaxEvaluations int
	// InitialDamping scales the largest diagonal entry of JᵀJ into the first
	// damping parameter.
	InitialDamping float64
	Jacobian       JacobianKind
}

const (
	DefaultFTol           = 1e-8
	DefaultXTol           = 1e-8
	DefaultGTol           = 1e-8
	DefaultInitialDamping = 1e-3
)

// DefaultSettings returns Settings with every default filled in except
// MaxEvaluations, which depends on the problem size.
func DefaultSettings() Settings {
	return Settings{
		FTol:           DefaultFTol,
		XTol:           DefaultXTol,
		GTol:           DefaultGTol,
		InitialDamping: DefaultInitialDamping,
	}
}

func (s Settings) withDefaults(n int) Settings {
	if s.FTol == 0 {
		s.FTol = DefaultFTol
	}
	if s.XTol == 0 {
		s.XTol = DefaultXTol
	}
	if s.GTol == 0 {
		s.GTol = DefaultGTol
	}
	if s.InitialDamping == 0 {
		s.InitialDamping = DefaultInitialDamping
	}
	if s.MaxEvaluations == 0 {
		if s.Jacobian == JacobianAnalytic {
			s.MaxEvaluations = 100 * n
		} else {
			s.MaxEvaluations = 100 * n * (n + 1)
		}
	}
	return s
}

// Validate reports nonsensical settings.
func (s Settings) Validate() error {
	switch {
	case s.FTol < 0 || math.IsNaN(s.FTol):
		return fmt.Errorf("ftol must be >= 0")
	case s.XTol < 0 || math.IsNaN(s.XTol):
		return fmt.Errorf("xtol must be >= 0")
	case s.GTol < 0 || math.IsNaN(s.GTol):
		return fmt.Errorf("gtol must be >= 0")
	case s.MaxEvaluations < 0:
		return fmt.Errorf("max_evaluations must be >= 0")
	case s.InitialDamping < 0 || math.IsNaN(s.InitialDamping):
		return fmt.Errorf("initial_damping must be >= 0")
	case s.Jacobian < JacobianAnalytic || s.Jacobian > JacobianCentral:
		return fmt.Errorf("unknown jacobian %v", s.Jacobian)
	}
	return nil
}

// Problem describes M residuals of N parameters.
type Problem struct {
	M, N int
	// Func writes the residuals at x into dst (len M). It must not retain x.
	Func func(dst, x []float64)
	// Jac writes ∂f_i/∂x_j into dst (M×N). Optional.
	Jac func(dst *mat.Dense, x []float64)
}

// Status tells which test ended the iteration.
type Status int

const (
	StatusFTol Status = iota + 1
	StatusXTol
	StatusGTol
	// StatusZero means the residuals vanished exactly.
	StatusZero
)

func (s Status) String() string {
	switch s {
	case StatusFTol:
		return "ftol"
	case StatusXTol:
		return "xtol"
	case StatusGTol:
		return "gtol"
	case StatusZero:
		return "zero residual"
	default:
		return fmt.Sprintf("Status(%d)", int(s))
	}
}

// Result is the outcome of Solve.
type Result struct {
	X           []float64
	Cost        float64
	Status      Status
	Iterations  int
	Evaluations int
}
