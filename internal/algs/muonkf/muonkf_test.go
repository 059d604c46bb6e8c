package muonkf

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ahcal-reco/ahcal-reco/internal/edm"
	"github.com/ahcal-reco/ahcal-reco/internal/errkind"
	"github.com/ahcal-reco/ahcal-reco/internal/store"
)

// fakeGeo places layer L at a fixed straight line: x=0.1*L, y=0.2*L,
// z=10*L, so a noiseless KF sweep should recover slopes 0.01 / 0.02.
type fakeGeo struct{}

func (fakeGeo) Position(cellID int32) (x, y, z float64) {
	layer, _, _ := edm.DecodeCellID(cellID)
	l := float64(layer)
	return 0.1 * l, 0.2 * l, 10 * l
}

func newTestAlg() *Alg {
	return &Alg{
		name: "kf",
		geo:  fakeGeo{},
		cfg: cfg{
			InputKey:            "RecoHits",
			OutputKey:           "MuonKFTrack",
			LastNLayers:         10,
			MinUsedLayers:       4,
			MaxConsecutiveSkips: 3,
			UseNmipWindow:       false,
			MeasSigmaXYmm:       1.0,
			SigmaTheta:          0.004,
			GateD2:              9.0,
			SeedLayerGap:        1,
			MaxSeedHitsPerLayer: 8,
		},
	}
}

func straightLineHits(n int) []edm.RecoHit {
	hits := make([]edm.RecoHit, 0, n)
	for l := 0; l < n; l++ {
		hits = append(hits, edm.RecoHit{
			CellID: edm.EncodeCellID(l, 0, 0),
			Nmip:   1.0,
			Index:  int64(l),
		})
	}
	return hits
}

func TestExecuteFindsTrackAlongStraightLine(t *testing.T) {
	a := newTestAlg()
	s := store.New()
	store.Put(s, "RecoHits", straightLineHits(10))

	require.NoError(t, a.Execute(s))

	track, err := store.Get[edm.Track](s, "MuonKFTrack")
	require.NoError(t, err)
	require.True(t, track.Valid)
	require.InDelta(t, 0.01, track.TX, 0.005)
	require.InDelta(t, 0.02, track.TY, 0.005)
	require.GreaterOrEqual(t, len(track.InTrackHitsIndices), a.cfg.MinUsedLayers)
}

func TestExecuteTooFewLayersIsInvalid(t *testing.T) {
	a := newTestAlg()
	s := store.New()
	store.Put(s, "RecoHits", straightLineHits(2)) // below the 3-layer minimum

	require.NoError(t, a.Execute(s))
	track, err := store.Get[edm.Track](s, "MuonKFTrack")
	require.NoError(t, err)
	require.False(t, track.Valid)
}

func TestExecuteNoHitsIsInvalid(t *testing.T) {
	a := newTestAlg()
	s := store.New()
	store.Put(s, "RecoHits", []edm.RecoHit{})

	require.NoError(t, a.Execute(s))
	track, err := store.Get[edm.Track](s, "MuonKFTrack")
	require.NoError(t, err)
	require.False(t, track.Valid)
}

func TestExecuteMissingInputIsWrappedError(t *testing.T) {
	a := newTestAlg()
	s := store.New()
	err := a.Execute(s)
	require.Error(t, err)
	require.ErrorIs(t, err, errkind.ErrMissingKey)
}

func TestSkipLayersExcludesHitsInThatLayer(t *testing.T) {
	a := newTestAlg()
	a.skipLayer[3] = true

	s := store.New()
	store.Put(s, "RecoHits", straightLineHits(10))
	require.NoError(t, a.Execute(s))

	track, err := store.Get[edm.Track](s, "MuonKFTrack")
	require.NoError(t, err)
	if track.Valid {
		for _, idx := range track.InTrackHitsIndices {
			require.NotEqual(t, int64(3), idx)
		}
	}
}

func TestDefaultCfgMatchesSpecDefaults(t *testing.T) {
	c := defaultCfg()
	require.Equal(t, 40, c.LastNLayers)
	require.Equal(t, 10, c.MinUsedLayers)
	require.Equal(t, []int{0, 2, 14}, c.SkipLayers)
}
