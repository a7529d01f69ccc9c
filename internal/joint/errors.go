package joint

import "errors"

// Sentinel errors. Callers match them with errors.Is; the package wraps them
// with context via fmt.Errorf("...: %w", ErrX).
var (
	// ErrInsufficientMotion is returned when the mask cannot retain MinSamples
	// samples before the threshold floor is crossed. Retry with another trial
	// or disable masking.
	ErrInsufficientMotion = errors.New("joint: insufficient dynamic motion")

	// ErrNumerical is returned when the linear or nonlinear solver fails:
	// factorization failure, rank deficiency, non-convergence or a non-finite
	// cost.
	ErrNumerical = errors.New("joint: numerical failure")

	// ErrInvalidInput marks precondition violations such as mismatched sample
	// counts, missing or non-orthonormal rotations and non-finite samples.
	ErrInvalidInput = errors.New("joint: invalid input")

	// ErrNotImplemented is returned for reserved methods.
	ErrNotImplemented = errors.New("joint: method not implemented")
)
