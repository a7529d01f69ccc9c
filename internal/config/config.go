package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"

	"imu-jointcenter/internal/joint"
	"imu-jointcenter/internal/lsq"
)

type Config struct {
	Estimator EstimatorConfig `yaml:"estimator"`
	Output    OutputConfig    `yaml:"output"`
	Log       LogConfig       `yaml:"log"`
}

type EstimatorConfig struct {
	Method     string       `yaml:"method"`
	Gravity    float64      `yaml:"gravity"`
	MaskInput  *bool        `yaml:"mask_input"`
	MinSamples int          `yaml:"min_samples"`
	Mask       MaskConfig   `yaml:"mask"`
	Solver     SolverConfig `yaml:"solver"`
}

type MaskConfig struct {
	Policy  string   `yaml:"policy"`
	Initial *float64 `yaml:"initial"`
	Step    float64  `yaml:"step"`
	Floor   *float64 `yaml:"floor"`
}

type SolverConfig struct {
	FTol           float64 `yaml:"ftol"`
	XTol           float64 `yaml:"xtol"`
	GTol           float64 `yaml:"gtol"`
	MaxEvaluations int     `yaml:"max_evaluations"`
	InitialDamping float64 `yaml:"initial_damping"`
	Jacobian       string  `yaml:"jacobian"`
}

type OutputConfig struct {
	Format  string `yaml:"format"`
	PlotDir string `yaml:"plot_dir"`
}

type LogConfig struct {
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
	Compress   bool   `yaml:"compress"`
}

// Load reads the YAML config at path. An empty path yields the defaults.
func Load(path string) (Config, error) {
	if path == "" {
		return Parse(nil)
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	return Parse(b)
}

// Parse unmarshals b, applies defaults and validates the result.
func Parse(b []byte) (Config, error) {
	var cfg Config
	if err := decodeStrict(b, &cfg); err != nil {
		return Config{}, err
	}

	e := &cfg.Estimator
	if e.Method == "" {
		e.Method = joint.SAC.String()
	}
	if _, err := joint.ParseMethod(e.Method); err != nil {
		return Config{}, fmt.Errorf("estimator.method must be SAC, SSFC or SSFCv (got %q)", e.Method)
	}
	if e.Gravity == 0 {
		e.Gravity = joint.DefaultGravity
	}
	if e.Gravity < 0 {
		return Config{}, fmt.Errorf("estimator.gravity must be > 0")
	}
	if e.MaskInput == nil {
		on := true
		e.MaskInput = &on
	}
	if e.MinSamples == 0 {
		e.MinSamples = joint.DefaultMinSamples
	}
	if e.MinSamples < 0 {
		return Config{}, fmt.Errorf("estimator.min_samples must be > 0")
	}

	// Mask defaults (safe even if masking is disabled).
	if e.Mask.Policy == "" {
		e.Mask.Policy = joint.MaskLadder.String()
	}
	if _, err := joint.ParseMaskPolicy(e.Mask.Policy); err != nil {
		return Config{}, fmt.Errorf("estimator.mask.policy must be ladder or order_statistic (got %q)", e.Mask.Policy)
	}
	if e.Mask.Initial == nil {
		v := joint.DefaultMaskInitial
		e.Mask.Initial = &v
	}
	if e.Mask.Floor == nil {
		v := joint.DefaultMaskFloor
		e.Mask.Floor = &v
	}
	if e.Mask.Step == 0 {
		e.Mask.Step = joint.DefaultMaskStep
	}
	if e.Mask.Step < 0 {
		return Config{}, fmt.Errorf("estimator.mask.step must be > 0")
	}
	if *e.Mask.Floor < 0 {
		return Config{}, fmt.Errorf("estimator.mask.floor must be >= 0")
	}
	if *e.Mask.Initial < *e.Mask.Floor {
		return Config{}, fmt.Errorf("estimator.mask.initial must be >= estimator.mask.floor")
	}

	// Solver defaults.
	s := &e.Solver
	if s.FTol == 0 {
		s.FTol = lsq.DefaultFTol
	}
	if s.XTol == 0 {
		s.XTol = lsq.DefaultXTol
	}
	if s.GTol == 0 {
		s.GTol = lsq.DefaultGTol
	}
	if s.InitialDamping == 0 {
		s.InitialDamping = lsq.DefaultInitialDamping
	}
	if s.Jacobian == "" {
		s.Jacobian = lsq.JacobianAnalytic.String()
	}
	if _, err := lsq.ParseJacobianKind(s.Jacobian); err != nil {
		return Config{}, fmt.Errorf("estimator.solver.jacobian must be analytic, forward or central (got %q)", s.Jacobian)
	}
	if s.FTol < 0 || s.XTol < 0 || s.GTol < 0 {
		return Config{}, fmt.Errorf("estimator.solver tolerances must be >= 0")
	}
	if s.MaxEvaluations < 0 {
		return Config{}, fmt.Errorf("estimator.solver.max_evaluations must be >= 0")
	}
	if s.InitialDamping < 0 {
		return Config{}, fmt.Errorf("estimator.solver.initial_damping must be >= 0")
	}

	if cfg.Output.Format == "" {
		cfg.Output.Format = "table"
	}
	if cfg.Output.Format != "table" && cfg.Output.Format != "json" {
		return Config{}, fmt.Errorf("output.format must be table or json (got %q)", cfg.Output.Format)
	}

	// Log rotation defaults (used only when log.file is set).
	if cfg.Log.MaxSizeMB <= 0 {
		cfg.Log.MaxSizeMB = 10
	}
	if cfg.Log.MaxBackups <= 0 {
		cfg.Log.MaxBackups = 3
	}
	if cfg.Log.MaxAgeDays <= 0 {
		cfg.Log.MaxAgeDays = 28
	}

	return cfg, nil
}

var linePrefix = regexp.MustCompile(`^line \d+: `)

// decodeStrict unmarshals b and rejects keys that map to no field.
func decodeStrict(b []byte, cfg *Config) error {
	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)
	err := dec.Decode(cfg)
	if err == nil || errors.Is(err, io.EOF) {
		return nil
	}
	var te *yaml.TypeError
	if errors.As(err, &te) {
		var unknown, other []string
		for _, m := range te.Errors {
			m = linePrefix.ReplaceAllString(m, "")
			if strings.Contains(m, " not found in type ") {
				unknown = append(unknown, m)
			} else {
				other = append(other, m)
			}
		}
		if len(other) > 0 {
			return fmt.Errorf("invalid config: %s", strings.Join(other, "; "))
		}
		return fmt.Errorf("config contains unknown fields: %s", strings.Join(unknown, "; "))
	}
	return err
}

// Joint converts the estimator section into a joint.Config. Parse has
// already validated every field.
func (e EstimatorConfig) Joint() joint.Config {
	method, _ := joint.ParseMethod(e.Method)
	policy, _ := joint.ParseMaskPolicy(e.Mask.Policy)
	jac, _ := lsq.ParseJacobianKind(e.Solver.Jacobian)

	cfg := joint.DefaultConfig()
	cfg.Method = method
	cfg.Gravity = e.Gravity
	cfg.MaskInput = e.MaskInput == nil || *e.MaskInput
	cfg.MinSamples = e.MinSamples
	cfg.Mask = joint.MaskSettings{Policy: policy, Step: e.Mask.Step}
	if e.Mask.Initial != nil {
		cfg.Mask.Initial = *e.Mask.Initial
	}
	if e.Mask.Floor != nil {
		cfg.Mask.Floor = *e.Mask.Floor
	}
	cfg.Solver = lsq.Settings{
		FTol:           e.Solver.FTol,
		XTol:           e.Solver.XTol,
		GTol:           e.Solver.GTol,
		MaxEvaluations: e.Solver.MaxEvaluations,
		InitialDamping: e.Solver.InitialDamping,
		Jacobian:       jac,
	}
	return cfg
}
