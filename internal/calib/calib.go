// Package calib loads the three calibration tables (MIP, pedestal,
// DAC) ADC→Energy needs, applying the missing-channel / low-MIP
// reference-constant fallback and the cellID-version layer
// permutation (spec §4.F, §6). Grounded on the teacher's sqlite
// connection pattern (internal/repository/dbConnection.go), simplified:
// the teacher wraps the driver with a query-audit hook
// (qustavo/sqlhooks) this pipeline has no use for (no query audit
// requirement — see DESIGN.md), so the driver is opened directly.
package calib

import (
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"

	"github.com/ahcal-reco/ahcal-reco/internal/edm"
	"github.com/ahcal-reco/ahcal-reco/internal/errkind"
	"github.com/ahcal-reco/ahcal-reco/pkg/rlog"
)

// Reference fallback constants, used whenever a channel has no
// calibration row, or its MIP value is below the sanity floor (spec
// §4.F). Named after the values spec §8 scenario S4/S5 exercises.
const (
	RefMIP       = 344.3
	RefPedHG     = 390.0
	RefPedLG     = 384.0
	RefGainRatio = 26.0
	RefGainPlat  = 2000.0

	minSaneMIP = 100.0
)

// TableConfig names a table and optional row-filter predicate.
type TableConfig struct {
	Table string
	Cut   string // optional SQL boolean expression, passed through verbatim
}

// Config drives Load.
type Config struct {
	MIP           TableConfig
	Pedestal      TableConfig
	DAC           TableConfig
	CellIDVersion int // 0: physical→logical layer permutation; 1: identity
}

// Store is the read-only, fully-populated calibration lookup table
// (spec §4.C "calibration tables are read-only after load"). Every
// cellID within geometry bounds has an entry in every map, either a
// loaded value or a reference fallback (spec §8 invariant 5).
type Store struct {
	mip       map[int32]float64
	pedHG     map[int32]float64
	pedLG     map[int32]float64
	gainRatio map[int32]float64
	gainPlat  map[int32]float64
}

// Open connects to a sqlite3 calibration database at path.
func Open(path string) (*sqlx.DB, error) {
	db, err := sqlx.Open("sqlite3", path+"?_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("calib: %w: open %q: %v", errkind.ErrMissingInput, path, err)
	}
	db.SetMaxOpenConns(1) // sqlite does not multithread
	return db, nil
}

type mipRow struct {
	CellID int32   `db:"cellid"`
	MPV    float64 `db:"MPV"`
}

type pedestalRow struct {
	CellID  int32   `db:"cellid"`
	HGPeak  float64 `db:"highgain_peak"`
	LGPeak  float64 `db:"lowgain_peak"`
}

type dacRow struct {
	CellID int32   `db:"cellid"`
	Slope  float64 `db:"slope"`
	Plat   float64 `db:"plat"`
}

// Load reads all three tables and fills the fallback-complete maps.
func Load(db *sqlx.DB, cfg Config) (*Store, error) {
	mipRows, err := queryRows[mipRow](db, cfg.MIP)
	if err != nil {
		return nil, err
	}
	pedRows, err := queryRows[pedestalRow](db, cfg.Pedestal)
	if err != nil {
		return nil, err
	}
	dacRows, err := queryRows[dacRow](db, cfg.DAC)
	if err != nil {
		return nil, err
	}

	mipByCell := map[int32]float64{}
	for _, r := range mipRows {
		mipByCell[permuteCellID(r.CellID, cfg.CellIDVersion)] = r.MPV
	}
	pedHGByCell := map[int32]float64{}
	pedLGByCell := map[int32]float64{}
	for _, r := range pedRows {
		c := permuteCellID(r.CellID, cfg.CellIDVersion)
		pedHGByCell[c] = r.HGPeak
		pedLGByCell[c] = r.LGPeak
	}
	gainRatioByCell := map[int32]float64{}
	gainPlatByCell := map[int32]float64{}
	for _, r := range dacRows {
		c := permuteCellID(r.CellID, cfg.CellIDVersion)
		gainRatioByCell[c] = r.Slope
		gainPlatByCell[c] = r.Plat
	}

	s := &Store{
		mip:       map[int32]float64{},
		pedHG:     map[int32]float64{},
		pedLG:     map[int32]float64{},
		gainRatio: map[int32]float64{},
		gainPlat:  map[int32]float64{},
	}

	fallbacks := 0
	for layer := 0; layer < edm.NumLayers; layer++ {
		for chip := 0; chip < edm.NumChips; chip++ {
			for channel := 0; channel < edm.NumChannels; channel++ {
				c := edm.EncodeCellID(layer, chip, channel)

				mip, ok := mipByCell[c]
				if !ok || mip < minSaneMIP {
					mip = RefMIP
					fallbacks++
				}
				s.mip[c] = mip

				if v, ok := pedHGByCell[c]; ok {
					s.pedHG[c] = v
				} else {
					s.pedHG[c] = RefPedHG
				}
				if v, ok := pedLGByCell[c]; ok {
					s.pedLG[c] = v
				} else {
					s.pedLG[c] = RefPedLG
				}
				if v, ok := gainRatioByCell[c]; ok {
					s.gainRatio[c] = v
				} else {
					s.gainRatio[c] = RefGainRatio
				}
				if v, ok := gainPlatByCell[c]; ok {
					s.gainPlat[c] = v
				} else {
					s.gainPlat[c] = RefGainPlat
				}
			}
		}
	}

	if fallbacks > 0 {
		rlog.Warnf("calib: %d of %d channels fell back to reference MIP constants", fallbacks, edm.NumLayers*edm.NumChips*edm.NumChannels)
	}
	return s, nil
}

func queryRows[T any](db *sqlx.DB, tc TableConfig) ([]T, error) {
	if tc.Table == "" {
		return nil, nil
	}
	qb := sq.Select("*").From(tc.Table)
	if tc.Cut != "" {
		qb = qb.Where(tc.Cut)
	}
	query, args, err := qb.ToSql()
	if err != nil {
		return nil, fmt.Errorf("calib: %w: build query for %q: %v", errkind.ErrConfigError, tc.Table, err)
	}

	var rows []T
	if err := db.Select(&rows, query, args...); err != nil {
		return nil, fmt.Errorf("calib: %w: query %q: %v", errkind.ErrMissingInput, tc.Table, err)
	}
	if tc.Cut != "" && len(rows) == 0 {
		return nil, fmt.Errorf("calib: %w: predicate %q on %q matched zero rows", errkind.ErrCalibrationEmpty, tc.Cut, tc.Table)
	}
	return rows, nil
}

// permuteCellID applies the cellID-version layer permutation: version
// 0 maps the physical acquisition layer order to the logical
// position order (AHCALGeometry::HBUPositionOrder/PosToLayerID);
// version 1 is the identity.
func permuteCellID(cellID int32, version int) int32 {
	if version != 0 {
		return cellID
	}
	layer, chip, channel := edm.DecodeCellID(cellID)
	if layer < 0 || layer >= edm.NumLayers {
		return cellID
	}
	return edm.EncodeCellID(hbuPositionOrder[layer], chip, channel)
}

// hbuPositionOrder is AHCALGeometry::HBUPositionOrder: for physical
// layer index i, hbuPositionOrder[i] is its logical position order.
var hbuPositionOrder = [edm.NumLayers]int{
	39, 38, 37, 27, 14, 6, 7, 9, 12, 0,
	2, 3, 5, 8, 10, 11, 13, 15, 16, 1,
	17, 18, 19, 20, 21, 22, 23, 24, 25, 4,
	26, 28, 29, 30, 31, 32, 33, 35, 34, 36,
}

// PosToLayerID is AHCALGeometry::PosToLayerID: inverse lookup of
// hbuPositionOrder, returning -1 if positionOrder is not a physical
// layer index.
func PosToLayerID(positionOrder int) int {
	for i, v := range hbuPositionOrder {
		if v == positionOrder {
			return i
		}
	}
	return -1
}

// MIP returns the per-channel most-probable-value calibration constant.
func (s *Store) MIP(cellID int32) float64 { return s.mip[cellID] }

// PedHG returns the high-gain pedestal.
func (s *Store) PedHG(cellID int32) float64 { return s.pedHG[cellID] }

// PedLG returns the low-gain pedestal.
func (s *Store) PedLG(cellID int32) float64 { return s.pedLG[cellID] }

// GainRatio returns the LG→HG scale factor.
func (s *Store) GainRatio(cellID int32) float64 { return s.gainRatio[cellID] }

// GainPlat returns the HG/LG switch-point plateau.
func (s *Store) GainPlat(cellID int32) float64 { return s.gainPlat[cellID] }
