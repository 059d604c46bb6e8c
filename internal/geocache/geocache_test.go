package geocache

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ahcal-reco/ahcal-reco/internal/edm"
)

func TestPositionIsStableAcrossCalls(t *testing.T) {
	c := New(1024)
	id := edm.EncodeCellID(5, 2, 10)

	x1, y1, z1 := c.Position(id)
	x2, y2, z2 := c.Position(id)
	require.Equal(t, x1, x2)
	require.Equal(t, y1, y2)
	require.Equal(t, z1, z2)
}

func TestPositionVariesByLayerOnlyInZ(t *testing.T) {
	c := New(1024)
	idLayer0 := edm.EncodeCellID(0, 2, 10)
	idLayer1 := edm.EncodeCellID(1, 2, 10)

	x0, y0, z0 := c.Position(idLayer0)
	x1, y1, z1 := c.Position(idLayer1)

	require.Equal(t, x0, x1)
	require.Equal(t, y0, y1)
	require.InDelta(t, layerZ, z1-z0, 1e-9)
}

func TestLayerZIsMonotonicallyIncreasing(t *testing.T) {
	require.Less(t, layerIndex(0).toZ(), layerIndex(1).toZ())
	require.Less(t, layerIndex(1).toZ(), layerIndex(2).toZ())
}

func TestPositionCoversEveryChannelWithoutPanicking(t *testing.T) {
	c := New(edm.NumChannels * edm.NumChips)
	for chip := 0; chip < edm.NumChips; chip++ {
		for channel := 0; channel < edm.NumChannels; channel++ {
			id := edm.EncodeCellID(0, chip, channel)
			x, y, _ := c.Position(id)
			require.False(t, x == 0 && y == 0, "chip %d channel %d resolved to origin", chip, channel)
		}
	}
}
