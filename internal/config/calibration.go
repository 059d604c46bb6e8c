package config

// CalibrationTable mirrors internal/calib.TableConfig in the YAML
// `calibration` top-level section.
type CalibrationTable struct {
	Table string `yaml:"table"`
	Cut   string `yaml:"cut"`
}

// Calibration is the run-wide calibration service configuration (spec
// §4.F, §6 "calibration tables"): one sqlite database, three tables,
// and the cellID-version layer permutation. Every field is optional —
// an omitted table name means every channel falls back to the
// reference constants (internal/calib's RefMIP/RefPedHG/...).
type Calibration struct {
	DB            string           `yaml:"db"`
	MIP           CalibrationTable `yaml:"mip"`
	Pedestal      CalibrationTable `yaml:"pedestal"`
	DAC           CalibrationTable `yaml:"dac"`
	CellIDVersion int              `yaml:"cellid_version"`
}
