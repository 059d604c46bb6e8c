// Package errkind defines the closed set of error kinds from spec §7
// as errors.Is-compatible sentinels, rather than matching on strings.
package errkind

import "errors"

var (
	// ErrMissingInput: reader cannot open a file, table, or required column.
	ErrMissingInput = errors.New("missing-input")
	// ErrTypeMismatch: access with a type different from the first binding.
	ErrTypeMismatch = errors.New("type-mismatch")
	// ErrMissingKey: EventStore get on an absent key.
	ErrMissingKey = errors.New("missing-key")
	// ErrConfigError: unknown alg/type name, malformed YAML, missing required key.
	ErrConfigError = errors.New("config-error")
	// ErrCalibrationEmpty: predicate filter left zero calibration rows.
	ErrCalibrationEmpty = errors.New("calibration-empty")
	// ErrDuplicateRegistration: two modules registering the same name.
	ErrDuplicateRegistration = errors.New("duplicate-registration")
	// ErrNumericDegenerate: KF innovation covariance determinant below 1e-24.
	ErrNumericDegenerate = errors.New("numeric-degenerate")
)

// all lists every sentinel in the order Kind checks them.
var all = []error{
	ErrMissingInput, ErrTypeMismatch, ErrMissingKey, ErrConfigError,
	ErrCalibrationEmpty, ErrDuplicateRegistration, ErrNumericDegenerate,
}

// Kind classifies err by the first of the package's sentinels it
// wraps, for callers (metrics, logging) that need a short, stable
// label rather than the full error string. Returns "unknown" for an
// error that wraps none of them.
func Kind(err error) string {
	for _, sentinel := range all {
		if errors.Is(err, sentinel) {
			return sentinel.Error()
		}
	}
	return "unknown"
}
