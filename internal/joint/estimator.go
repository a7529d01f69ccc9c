package joint

import (
	"fmt"
	"math"
	"strings"

	"imu-jointcenter/internal/lsq"
)

// Method selects the estimation algorithm.
type Method int

const (
	// SAC is the closed-form linear method. Needs rotations.
	SAC Method = iota
	// SSFC is the iterative magnitude-matching method.
	SSFC
	// SSFCv compares transported vectors instead of magnitudes. Reserved.
	SSFCv
)

func (m Method) String() string {
	switch m {
	case SAC:
		return "SAC"
	case SSFC:
		return "SSFC"
	case SSFCv:
		return "SSFCv"
	default:
		return fmt.Sprintf("Method(%d)", int(m))
	}
}

// ParseMethod parses a method name case-insensitively.
func ParseMethod(s string) (Method, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "SAC", "":
		return SAC, nil
	case "SSFC":
		return SSFC, nil
	case "SSFCV":
		return SSFCv, nil
	}
	return 0, fmt.Errorf("unknown method %q", s)
}

// NeedsRotations reports whether m consumes SegmentPair.Rotations.
func (m Method) NeedsRotations() bool {
	return m == SAC || m == SSFCv
}

const (
	DefaultGravity    = 9.81
	DefaultMinSamples = 1000
)

// Config is the estimator configuration. Use DefaultConfig and override
// fields; NewEstimator does not fill in zero values.
type Config struct {
	// Gravity is the local gravitational acceleration in m/s².
	Gravity float64
	Method  Method
	// MaskInput drops quasi-static samples before fitting.
	MaskInput  bool
	MinSamples int
	Mask       MaskSettings
	// Solver is used by SSFC only.
	Solver lsq.Settings
}

// DefaultConfig returns SAC with masking enabled and the default thresholds.
func DefaultConfig() Config {
	return Config{
		Gravity:    DefaultGravity,
		Method:     SAC,
		MaskInput:  true,
		MinSamples: DefaultMinSamples,
		Mask:       DefaultMaskSettings(),
		Solver:     lsq.DefaultSettings(),
	}
}

// solver is one estimation method working on the retained samples.
type solver interface {
	method() Method
	needsRotations() bool
	solve(p *SegmentPair, idx []int) (Estimate, error)
}

// Estimator computes joint centers. It holds only its configuration, which is
// copied at construction, so one Estimator may serve concurrent Compute calls.
type Estimator struct {
	cfg    Config
	solver solver
}

// NewEstimator validates cfg and returns an Estimator.
func NewEstimator(cfg Config) (*Estimator, error) {
	if !(cfg.Gravity > 0) || math.IsInf(cfg.Gravity, 0) {
		return nil, fmt.Errorf("gravity must be a positive finite value")
	}
	if cfg.MinSamples <= 0 {
		return nil, fmt.Errorf("min_samples must be > 0")
	}
	if cfg.MaskInput {
		if err := cfg.Mask.validate(); err != nil {
			return nil, err
		}
	}

	var s solver
	switch cfg.Method {
	case SAC:
		s = sac{}
	case SSFC:
		if err := cfg.Solver.Validate(); err != nil {
			return nil, err
		}
		s = ssfc{settings: cfg.Solver}
	case SSFCv:
		return nil, fmt.Errorf("%w: %s", ErrNotImplemented, cfg.Method)
	default:
		return nil, fmt.Errorf("unknown method %v", cfg.Method)
	}
	return &Estimator{cfg: cfg, solver: s}, nil
}

// Config returns a copy of the estimator configuration.
func (e *Estimator) Config() Config {
	return e.cfg
}

// Mask returns the samples of p that Compute would fit.
func (e *Estimator) Mask(p *SegmentPair) (Mask, error) {
	if err := p.validate(false); err != nil {
		return Mask{}, err
	}
	return e.mask(p)
}

func (e *Estimator) mask(p *SegmentPair) (Mask, error) {
	if !e.cfg.MaskInput {
		return All(p.Len()), nil
	}
	prox := DynamicMagnitude(p.Proximal.Acc, e.cfg.Gravity)
	dist := DynamicMagnitude(p.Distal.Acc, e.cfg.Gravity)
	return SelectSamples(prox, dist, e.cfg.Mask, e.cfg.MinSamples)
}

// Compute estimates the proximal and distal sensor offsets for one trial.
func (e *Estimator) Compute(p *SegmentPair) (Estimate, error) {
	if err := p.validate(e.solver.needsRotations()); err != nil {
		return Estimate{}, err
	}
	mask, err := e.mask(p)
	if err != nil {
		return Estimate{}, err
	}
	idx := mask.Indices()
	if len(idx) == 0 {
		return Estimate{}, fmt.Errorf("%w: no samples retained", ErrInsufficientMotion)
	}

	est, err := e.solver.solve(p, idx)
	if err != nil {
		return Estimate{}, fmt.Errorf("%s: %w", e.solver.method(), err)
	}
	est.Method = e.solver.method()
	est.Samples = len(idx)
	est.Threshold = mask.Threshold
	return est, nil
}

// scaleResidual divides a total squared error by the retained sample count.
func scaleResidual(total float64, retained int) float64 {
	if retained <= 0 {
		return math.NaN()
	}
	return total / float64(retained)
}
