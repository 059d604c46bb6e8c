package calib

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ahcal-reco/ahcal-reco/internal/edm"
	"github.com/ahcal-reco/ahcal-reco/internal/errkind"
)

func TestLoadFillsEveryChannelWithFallbacksWhenTablesEmpty(t *testing.T) {
	db, err := Open(":memory:")
	require.NoError(t, err)
	defer db.Close()

	s, err := Load(db, Config{})
	require.NoError(t, err)

	id := edm.EncodeCellID(0, 0, 0)
	require.Equal(t, RefMIP, s.MIP(id))
	require.Equal(t, RefPedHG, s.PedHG(id))
	require.Equal(t, RefPedLG, s.PedLG(id))
	require.Equal(t, RefGainRatio, s.GainRatio(id))
	require.Equal(t, RefGainPlat, s.GainPlat(id))
}

func TestLoadUsesTableRowsWhenPresent(t *testing.T) {
	db, err := Open(":memory:")
	require.NoError(t, err)
	defer db.Close()

	_, err = db.Exec(`CREATE TABLE mip (cellid INTEGER, MPV REAL)`)
	require.NoError(t, err)
	_, err = db.Exec(`CREATE TABLE pedestal (cellid INTEGER, highgain_peak REAL, lowgain_peak REAL)`)
	require.NoError(t, err)
	_, err = db.Exec(`CREATE TABLE dac (cellid INTEGER, slope REAL, plat REAL)`)
	require.NoError(t, err)

	id := edm.EncodeCellID(1, 2, 3)
	_, err = db.Exec(`INSERT INTO mip (cellid, MPV) VALUES (?, ?)`, id, 500.0)
	require.NoError(t, err)
	_, err = db.Exec(`INSERT INTO pedestal (cellid, highgain_peak, lowgain_peak) VALUES (?, ?, ?)`, id, 400.0, 395.0)
	require.NoError(t, err)
	_, err = db.Exec(`INSERT INTO dac (cellid, slope, plat) VALUES (?, ?, ?)`, id, 27.0, 2100.0)
	require.NoError(t, err)

	s, err := Load(db, Config{
		MIP:           TableConfig{Table: "mip"},
		Pedestal:      TableConfig{Table: "pedestal"},
		DAC:           TableConfig{Table: "dac"},
		CellIDVersion: 1, // identity permutation, so the inserted cellid matches directly
	})
	require.NoError(t, err)

	require.Equal(t, 500.0, s.MIP(id))
	require.Equal(t, 400.0, s.PedHG(id))
	require.Equal(t, 395.0, s.PedLG(id))
	require.Equal(t, 27.0, s.GainRatio(id))
	require.Equal(t, 2100.0, s.GainPlat(id))

	other := edm.EncodeCellID(2, 2, 3)
	require.Equal(t, RefMIP, s.MIP(other))
}

func TestLoadFallsBackBelowSaneMIPFloor(t *testing.T) {
	db, err := Open(":memory:")
	require.NoError(t, err)
	defer db.Close()

	_, err = db.Exec(`CREATE TABLE mip (cellid INTEGER, MPV REAL)`)
	require.NoError(t, err)

	id := edm.EncodeCellID(0, 0, 0)
	_, err = db.Exec(`INSERT INTO mip (cellid, MPV) VALUES (?, ?)`, id, 5.0) // below minSaneMIP
	require.NoError(t, err)

	s, err := Load(db, Config{MIP: TableConfig{Table: "mip"}, CellIDVersion: 1})
	require.NoError(t, err)
	require.Equal(t, RefMIP, s.MIP(id))
}

func TestLoadEmptyPredicateMatchIsCalibrationEmptyError(t *testing.T) {
	db, err := Open(":memory:")
	require.NoError(t, err)
	defer db.Close()

	_, err = db.Exec(`CREATE TABLE mip (cellid INTEGER, MPV REAL)`)
	require.NoError(t, err)

	_, err = Load(db, Config{MIP: TableConfig{Table: "mip", Cut: "cellid = 999999"}})
	require.Error(t, err)
	require.ErrorIs(t, err, errkind.ErrCalibrationEmpty)
}

func TestPermuteCellIDVersion0RoundTripsThroughPosToLayerID(t *testing.T) {
	for layer := 0; layer < edm.NumLayers; layer++ {
		id := edm.EncodeCellID(layer, 2, 5)
		permuted := permuteCellID(id, 0)
		permLayer, permChip, permChannel := edm.DecodeCellID(permuted)

		require.Equal(t, hbuPositionOrder[layer], permLayer)
		require.Equal(t, 2, permChip)
		require.Equal(t, 5, permChannel)
		require.Equal(t, layer, PosToLayerID(permLayer))
	}
}

func TestPermuteCellIDVersion1IsIdentity(t *testing.T) {
	id := edm.EncodeCellID(10, 3, 8)
	require.Equal(t, id, permuteCellID(id, 1))
}

func TestPosToLayerIDUnknownPositionReturnsMinusOne(t *testing.T) {
	require.Equal(t, -1, PosToLayerID(-1))
	require.Equal(t, -1, PosToLayerID(edm.NumLayers))
}
