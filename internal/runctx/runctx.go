// Package runctx holds the run-wide context threaded through every
// algorithm (spec original_source/common/RunContext.hpp): the parsed
// run options, the fixed condition store, and handles to the
// process-wide services (geometry cache, calibration store) that
// algorithms are constructed with rather than
// reaching for through a global.
package runctx

// Config mirrors the spec §6 `run` section.
type Config struct {
	Input      string
	Output     string
	LogFile    string
	LogLevel   string
	RunNumber  int
	PoolIndex  int
	MC         bool
	NEvents    int64 // -1 = until EOF
	MetricsAddr string
}

// Conditions is fixed, run-wide, non-calibration configuration that
// does not fit any one algorithm (spec's ConditionStore placeholder).
type Conditions struct {
	SkipLayers []int
}

// Geometry resolves a cellID to a detector position. Implemented by
// internal/geocache.Cache.
type Geometry interface {
	Position(cellID int32) (x, y, z float64)
}

// Calibration resolves the per-channel constants ADC→Energy needs.
// Implemented by internal/calib.Store.
type Calibration interface {
	MIP(cellID int32) float64
	PedHG(cellID int32) float64
	PedLG(cellID int32) float64
	GainRatio(cellID int32) float64
	GainPlat(cellID int32) float64
}

// Context is passed to every algorithm's constructor by the pipeline
// factory, alongside its own `cfg` YAML node.
type Context struct {
	Config     Config
	Conditions Conditions

	// Services, resolved once per run and shared by every algorithm
	// that needs them. Concrete types live in their own packages
	// (internal/geocache, internal/calib) to avoid this package
	// depending on them; Context only forwards interfaces.
	Geometry    Geometry
	Calibration Calibration
}
