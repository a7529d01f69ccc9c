package joint_test

import (
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"

	"imu-jointcenter/internal/joint"
	"imu-jointcenter/internal/lsq"
	"imu-jointcenter/internal/sim"
	"imu-jointcenter/internal/trial"
)

func swingScript() sim.ScenarioScript {
	return sim.ScenarioScript{
		Version:  1,
		Duration: 8 * time.Second,
		RateHz:   100,
		Gravity:  9.81,
		Seed:     42,
		Center: []sim.Harmonic{
			{Axis: [3]float64{1, 0, 0}, Amplitude: 0.3, FreqHz: 1.0},
			{Axis: [3]float64{0, 1, 1}, Amplitude: 0.1, FreqHz: 0.45, PhaseDeg: 30},
		},
		Proximal: sim.SegmentScript{
			Offset: [3]float64{0.05, -0.12, 0.20},
			Rotations: []sim.AxisRotation{
				{Axis: [3]float64{0, 0, 1}, AmplitudeDeg: 60, FreqHz: 0.7},
				{Axis: [3]float64{1, 0, 0}, AmplitudeDeg: 40, FreqHz: 0.35, PhaseDeg: 45},
			},
		},
		Distal: sim.SegmentScript{
			Offset: [3]float64{-0.03, 0.25, 0.04},
			Rotations: []sim.AxisRotation{
				{Axis: [3]float64{0, 1, 0}, AmplitudeDeg: 70, FreqHz: 0.55, BiasDeg: 10},
				{Axis: [3]float64{1, 1, 0}, AmplitudeDeg: 35, FreqHz: 0.9, PhaseDeg: 90},
			},
		},
	}
}

func generate(t *testing.T, script sim.ScenarioScript) (trial.Trial, sim.Truth) {
	t.Helper()
	sc, err := sim.NewScenario(script)
	require.NoError(t, err)
	return sc.Generate(), sc.Truth()
}

func newEstimator(t *testing.T, mutate func(*joint.Config)) *joint.Estimator {
	t.Helper()
	cfg := joint.DefaultConfig()
	cfg.MinSamples = 200
	if mutate != nil {
		mutate(&cfg)
	}
	est, err := joint.NewEstimator(cfg)
	require.NoError(t, err)
	return est
}

func requireOffsets(t *testing.T, want sim.Truth, got joint.Estimate, tol float64) {
	t.Helper()
	opt := cmpopts.EquateApprox(0, tol)
	if diff := cmp.Diff(want.Proximal, got.Proximal, opt); diff != "" {
		t.Fatalf("proximal offset mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(want.Distal, got.Distal, opt); diff != "" {
		t.Fatalf("distal offset mismatch (-want +got):\n%s", diff)
	}
}

func TestCompute_RecoversOffsets(t *testing.T) {
	tr, truth := generate(t, swingScript())

	cases := []struct {
		name   string
		mutate func(*joint.Config)
		tol    float64
	}{
		{"SAC", func(c *joint.Config) { c.Method = joint.SAC }, 1e-6},
		{"SACUnmasked", func(c *joint.Config) { c.Method = joint.SAC; c.MaskInput = false }, 1e-6},
		{"SSFC", func(c *joint.Config) { c.Method = joint.SSFC }, 1e-4},
		{"SSFCUnmasked", func(c *joint.Config) { c.Method = joint.SSFC; c.MaskInput = false }, 1e-4},
		{"SSFCCentralDifferences", func(c *joint.Config) {
			c.Method = joint.SSFC
			c.Solver.Jacobian = lsq.JacobianCentral
		}, 1e-4},
		{"SSFCOrderStatisticMask", func(c *joint.Config) {
			c.Method = joint.SSFC
			c.Mask.Policy = joint.MaskOrderStatistic
		}, 1e-4},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			est := newEstimator(t, tc.mutate)
			got, err := est.Compute(&tr.Pair)
			require.NoError(t, err)
			requireOffsets(t, truth, got, tc.tol)
			assert.Equal(t, est.Config().Method, got.Method)
			assert.GreaterOrEqual(t, got.Residual, 0.0)
			assert.Less(t, got.Residual, 1e-6)
		})
	}
}

func TestCompute_SACDiagnostics(t *testing.T) {
	tr, _ := generate(t, swingScript())
	got, err := newEstimator(t, nil).Compute(&tr.Pair)
	require.NoError(t, err)
	assert.Equal(t, 6, got.Rank)
	assert.GreaterOrEqual(t, got.Cond, 1.0)
	assert.Zero(t, got.Iterations)
}

func TestCompute_SSFCDoesNotNeedRotations(t *testing.T) {
	tr, truth := generate(t, swingScript())
	tr.Pair.Rotations = nil

	got, err := newEstimator(t, func(c *joint.Config) { c.Method = joint.SSFC }).Compute(&tr.Pair)
	require.NoError(t, err)
	requireOffsets(t, truth, got, 1e-4)
	assert.Positive(t, got.Iterations)
	assert.GreaterOrEqual(t, got.Evaluations, got.Iterations)
}

func TestCompute_MaskDisabledRetainsAllSamples(t *testing.T) {
	tr, _ := generate(t, swingScript())
	for _, m := range []joint.Method{joint.SAC, joint.SSFC} {
		est := newEstimator(t, func(c *joint.Config) { c.Method = m; c.MaskInput = false })
		got, err := est.Compute(&tr.Pair)
		require.NoError(t, err)
		assert.Equal(t, tr.Len(), got.Samples)
		assert.Zero(t, got.Threshold)
	}
}

func TestCompute_MaskUsesFirstQualifyingStep(t *testing.T) {
	tr, _ := generate(t, swingScript())
	est := newEstimator(t, func(c *joint.Config) { c.MinSamples = 400 })

	g := est.Config().Gravity
	prox := joint.DynamicMagnitude(tr.Pair.Proximal.Acc, g)
	dist := joint.DynamicMagnitude(tr.Pair.Distal.Acc, g)
	var want joint.LadderStep
	for _, s := range joint.LadderCounts(prox, dist, joint.DefaultMaskSettings()) {
		if s.Count >= 400 {
			want = s
			break
		}
	}
	require.NotZero(t, want.Count, "scenario never reaches 400 samples")

	got, err := est.Compute(&tr.Pair)
	require.NoError(t, err)
	assert.Equal(t, want.Count, got.Samples)
	assert.InDelta(t, want.Threshold, got.Threshold, 1e-12)

	mask, err := est.Mask(&tr.Pair)
	require.NoError(t, err)
	assert.Equal(t, got.Samples, mask.Count())
}

func TestCompute_InsufficientMotion(t *testing.T) {
	tr, _ := generate(t, swingScript())
	est := newEstimator(t, func(c *joint.Config) { c.MinSamples = tr.Len() + 1 })
	_, err := est.Compute(&tr.Pair)
	require.Error(t, err)
	assert.True(t, errors.Is(err, joint.ErrInsufficientMotion), "err=%v", err)
}

func TestCompute_Deterministic(t *testing.T) {
	tr, _ := generate(t, swingScript())
	for _, m := range []joint.Method{joint.SAC, joint.SSFC} {
		est := newEstimator(t, func(c *joint.Config) { c.Method = m })
		a, err := est.Compute(&tr.Pair)
		require.NoError(t, err)
		b, err := est.Compute(&tr.Pair)
		require.NoError(t, err)
		assert.Equal(t, a, b)
	}
}

func TestCompute_ConcurrentCallsShareEstimator(t *testing.T) {
	tr, _ := generate(t, swingScript())
	est := newEstimator(t, func(c *joint.Config) { c.Method = joint.SSFC })
	want, err := est.Compute(&tr.Pair)
	require.NoError(t, err)

	var wg sync.WaitGroup
	results := make([]joint.Estimate, 4)
	errs := make([]error, 4)
	for i := range results {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i], errs[i] = est.Compute(&tr.Pair)
		}()
	}
	wg.Wait()
	for i := range results {
		require.NoError(t, errs[i])
		assert.Equal(t, want, results[i])
	}
}

func TestCompute_ResidualScalesWithNoiseVariance(t *testing.T) {
	residual := func(sigma float64, m joint.Method) float64 {
		script := swingScript()
		script.Noise.Acc = sigma
		tr, _ := generate(t, script)
		est := newEstimator(t, func(c *joint.Config) { c.Method = m; c.MaskInput = false })
		got, err := est.Compute(&tr.Pair)
		require.NoError(t, err)
		return got.Residual
	}

	// Accelerometer noise enters SAC only through b, so the residual is
	// quadratic in sigma for a fixed seed.
	r1 := residual(0.05, joint.SAC)
	r2 := residual(0.10, joint.SAC)
	assert.Positive(t, r1)
	assert.InEpsilon(t, 4.0, r2/r1, 1e-6)

	s0 := residual(0, joint.SSFC)
	s1 := residual(0.05, joint.SSFC)
	s2 := residual(0.10, joint.SSFC)
	assert.Less(t, s0, s1)
	assert.Less(t, s1, s2)
}

func TestCompute_RankDeficient(t *testing.T) {
	// Without rotation K vanishes and the offsets are not identifiable.
	n := 50
	p := joint.SegmentPair{
		Proximal:  staticSeries(n),
		Distal:    staticSeries(n),
		Rotations: make([]*r3.Mat, n),
	}
	for i := range p.Rotations {
		p.Rotations[i] = r3.Eye()
	}
	est := newEstimator(t, func(c *joint.Config) { c.MaskInput = false })
	_, err := est.Compute(&p)
	require.Error(t, err)
	assert.True(t, errors.Is(err, joint.ErrNumerical), "err=%v", err)
}

func TestCompute_SSFCNonConvergence(t *testing.T) {
	tr, _ := generate(t, swingScript())
	est := newEstimator(t, func(c *joint.Config) {
		c.Method = joint.SSFC
		c.Solver.MaxEvaluations = 3
	})
	_, err := est.Compute(&tr.Pair)
	require.Error(t, err)
	assert.True(t, errors.Is(err, joint.ErrNumerical), "err=%v", err)
	assert.Contains(t, err.Error(), lsq.ErrMaxEvaluations.Error())
}

func staticSeries(n int) joint.SensorSeries {
	s := joint.SensorSeries{
		Acc:    make([]r3.Vec, n),
		Gyr:    make([]r3.Vec, n),
		AngAcc: make([]r3.Vec, n),
	}
	for i := range s.Acc {
		s.Acc[i] = r3.Vec{Z: 9.81}
	}
	return s
}

func TestCompute_InvalidInput(t *testing.T) {
	cases := []struct {
		name   string
		method joint.Method
		mutate func(p *joint.SegmentPair)
	}{
		{"MismatchedLengths", joint.SSFC, func(p *joint.SegmentPair) { p.Distal.Acc = p.Distal.Acc[1:] }},
		{"ProximalSeriesDisagree", joint.SSFC, func(p *joint.SegmentPair) { p.Proximal.Gyr = p.Proximal.Gyr[:10] }},
		{"Empty", joint.SSFC, func(p *joint.SegmentPair) { *p = joint.SegmentPair{} }},
		{"MissingRotations", joint.SAC, func(p *joint.SegmentPair) { p.Rotations = nil }},
		{"NonOrthonormalRotation", joint.SAC, func(p *joint.SegmentPair) {
			p.Rotations[3] = r3.NewMat([]float64{2, 0, 0, 0, 1, 0, 0, 0, 1})
		}},
		{"NilRotation", joint.SAC, func(p *joint.SegmentPair) { p.Rotations[5] = nil }},
		{"NaN", joint.SSFC, func(p *joint.SegmentPair) { p.Distal.Gyr[7].Y = math.NaN() }},
		{"Inf", joint.SAC, func(p *joint.SegmentPair) { p.Proximal.Acc[0].X = math.Inf(1) }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			tr, _ := generate(t, swingScript())
			tc.mutate(&tr.Pair)
			est := newEstimator(t, func(c *joint.Config) { c.Method = tc.method })
			_, err := est.Compute(&tr.Pair)
			require.Error(t, err)
			assert.True(t, errors.Is(err, joint.ErrInvalidInput), "err=%v", err)
		})
	}

	_, err := newEstimator(t, nil).Compute(nil)
	assert.True(t, errors.Is(err, joint.ErrInvalidInput), "err=%v", err)
}

func TestNewEstimator_Validation(t *testing.T) {
	cfg := joint.DefaultConfig()
	cfg.Method = joint.SSFCv
	_, err := joint.NewEstimator(cfg)
	assert.True(t, errors.Is(err, joint.ErrNotImplemented), "err=%v", err)

	cfg = joint.DefaultConfig()
	cfg.Gravity = 0
	_, err = joint.NewEstimator(cfg)
	assert.Error(t, err)

	cfg = joint.DefaultConfig()
	cfg.MinSamples = 0
	_, err = joint.NewEstimator(cfg)
	assert.Error(t, err)

	cfg = joint.DefaultConfig()
	cfg.Method = joint.SSFC
	cfg.Solver.FTol = -1
	_, err = joint.NewEstimator(cfg)
	assert.Error(t, err)

	// Mask settings are ignored when masking is off.
	cfg = joint.DefaultConfig()
	cfg.MaskInput = false
	cfg.Mask.Step = 0
	_, err = joint.NewEstimator(cfg)
	assert.NoError(t, err)
}

func TestParseMethod(t *testing.T) {
	for in, want := range map[string]joint.Method{"": joint.SAC, "sac": joint.SAC, "SSFC": joint.SSFC, " ssfcv ": joint.SSFCv} {
		got, err := joint.ParseMethod(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := joint.ParseMethod("ransac")
	assert.Error(t, err)
	assert.True(t, joint.SAC.NeedsRotations())
	assert.False(t, joint.SSFC.NeedsRotations())
}

func TestMagnitudeResiduals_VanishAtTruth(t *testing.T) {
	tr, truth := generate(t, swingScript())
	res := joint.MagnitudeResiduals(nil, &tr.Pair, truth.Proximal, truth.Distal)
	require.Len(t, res, tr.Len())
	for i, e := range res {
		require.InDelta(t, 0, e, 1e-9, "sample %d", i)
	}

	off := joint.MagnitudeResiduals(res, &tr.Pair, r3.Vec{}, r3.Vec{})
	var ss float64
	for _, e := range off {
		ss += e * e
	}
	assert.Positive(t, ss)
}
