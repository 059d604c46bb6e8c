package edm_test

import (
	"testing"

	"github.com/c2h5oh/datasize"
	"github.com/stretchr/testify/require"

	"github.com/ahcal-reco/ahcal-reco/internal/column"
	"github.com/ahcal-reco/ahcal-reco/internal/edm"
	"github.com/ahcal-reco/ahcal-reco/internal/registry"
)

// memTarget is an in-memory column.Target, avoiding a temp file for
// these small per-type round-trip tests.
type memTarget struct {
	files map[string][]byte
}

func newMemTarget() *memTarget { return &memTarget{files: map[string][]byte{}} }

func (m *memTarget) WriteFile(name string, data []byte) error {
	m.files[name] = data
	return nil
}

func (m *memTarget) ReadFile(name string) ([]byte, error) {
	return m.files[name], nil
}

func TestRawHitSliceRoundTrip(t *testing.T) {
	target := newMemTarget()
	w := column.NewWriter(target, "events", 64*datasize.MB)

	entry, ok := registry.Lookup("RawHit")
	require.True(t, ok)

	want := []edm.RawHit{
		{CellID: edm.EncodeCellID(3, 4, 27), HGADC: 111, LGADC: 22, HitTag: 1, BCID: 9, Index: 0},
		{CellID: edm.EncodeCellID(7, 1, 5), HGADC: 222, LGADC: 44, HitTag: 0, BCID: 9, Index: 1},
	}
	require.NoError(t, entry.Write(want, w, "RawHits"))
	require.NoError(t, w.Fill())
	require.NoError(t, w.Close())

	r, err := column.Open(target, "events")
	require.NoError(t, err)
	require.NoError(t, r.ReadEntry(0))

	got, err := entry.Read(r, "RawHits")
	require.NoError(t, err)
	require.Equal(t, want, got)
}

func TestTrackScalarRoundTrip(t *testing.T) {
	target := newMemTarget()
	w := column.NewWriter(target, "events", 64*datasize.MB)

	entry, ok := registry.Lookup("Track")
	require.True(t, ok)

	want := &edm.Track{
		X: 1.5, Y: -2.5, TX: 0.01, TY: -0.02, Z: 100,
		Chi2: 3.2, Ndof: 4, ConsecutiveSkips: 1, Valid: true,
		InTrackHitsIndices:  []int64{0, 1, 2},
		OutTrackHitsIndices: []int64{3, 4},
	}
	require.NoError(t, entry.Write(want, w, "Track"))
	require.NoError(t, w.Fill())
	require.NoError(t, w.Close())

	r, err := column.Open(target, "events")
	require.NoError(t, err)
	require.NoError(t, r.ReadEntry(0))

	got, err := entry.Read(r, "Track")
	require.NoError(t, err)
	require.Equal(t, want, got)
}

func TestCellIDEncodeDecodeRoundTrip(t *testing.T) {
	for _, tc := range []struct{ layer, chip, channel int }{
		{0, 0, 0},
		{39, 8, 35},
		{3, 4, 27},
	} {
		id := edm.EncodeCellID(tc.layer, tc.chip, tc.channel)
		gotLayer, gotChip, gotChannel := edm.DecodeCellID(id)
		require.Equal(t, tc.layer, gotLayer)
		require.Equal(t, tc.chip, gotChip)
		require.Equal(t, tc.channel, gotChannel)
	}
}
