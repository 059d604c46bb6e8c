package ioreader

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ahcal-reco/ahcal-reco/internal/edm"
	"github.com/ahcal-reco/ahcal-reco/internal/errkind"
	"github.com/ahcal-reco/ahcal-reco/internal/store"
)

func writeBinaryFixture(t *testing.T, path string, events [][]edm.RawHit) {
	t.Helper()
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	for _, hits := range events {
		require.NoError(t, binary.Write(f, binary.LittleEndian, int32(len(hits))))
		for _, h := range hits {
			require.NoError(t, binary.Write(f, binary.LittleEndian, h.CellID))
			require.NoError(t, binary.Write(f, binary.LittleEndian, h.HGADC))
			require.NoError(t, binary.Write(f, binary.LittleEndian, h.LGADC))
			require.NoError(t, binary.Write(f, binary.LittleEndian, h.HitTag))
			require.NoError(t, binary.Write(f, binary.LittleEndian, h.BCID))
		}
		var tlu edm.TLURawData
		tlu.Timestamp, tlu.BCID, tlu.RunID, tlu.CycleID, tlu.TriggerID, tlu.EventTime = 1, 2, 3, 4, 5, 6
		require.NoError(t, binary.Write(f, binary.LittleEndian, tlu.Timestamp))
		require.NoError(t, binary.Write(f, binary.LittleEndian, tlu.BCID))
		require.NoError(t, binary.Write(f, binary.LittleEndian, tlu.DigitalInputs))
		require.NoError(t, binary.Write(f, binary.LittleEndian, tlu.FineTimestamps))
		require.NoError(t, binary.Write(f, binary.LittleEndian, tlu.RunID))
		require.NoError(t, binary.Write(f, binary.LittleEndian, tlu.CycleID))
		require.NoError(t, binary.Write(f, binary.LittleEndian, tlu.TriggerID))
		require.NoError(t, binary.Write(f, binary.LittleEndian, tlu.EventTime))
	}
}

func TestBinaryRawHitReaderRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.bin")
	writeBinaryFixture(t, path, [][]edm.RawHit{
		{
			{CellID: 100001, HGADC: 10, LGADC: 1, HitTag: 0, BCID: 7},
			{CellID: 100002, HGADC: 20, LGADC: 2, HitTag: 1, BCID: 7},
		},
		{
			{CellID: 100003, HGADC: 30, LGADC: 3, HitTag: 0, BCID: 8},
		},
	})

	r, err := newBinaryRawHitReader(path)
	require.NoError(t, err)
	defer r.Close()

	require.Equal(t, 2, r.NumEntries())

	s := store.New()
	require.NoError(t, r.ReadEntry(0, s))
	hits, err := store.Get[[]edm.RawHit](s, "RawHits")
	require.NoError(t, err)
	require.Len(t, hits, 2)
	require.Equal(t, int32(100001), hits[0].CellID)
	require.Equal(t, int64(0), hits[0].Index) // Index is the hit's position within its event
	require.Equal(t, int64(1), hits[1].Index)

	tlu, err := store.Get[edm.TLURawData](s, "TLURawData")
	require.NoError(t, err)
	require.Equal(t, int64(1), tlu.Timestamp)

	require.NoError(t, r.ReadEntry(1, s))
	hits, err = store.Get[[]edm.RawHit](s, "RawHits")
	require.NoError(t, err)
	require.Len(t, hits, 1)
	require.Equal(t, int64(0), hits[0].Index)
}

func TestBinaryRawHitReaderEntryOutOfRange(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.bin")
	writeBinaryFixture(t, path, [][]edm.RawHit{{{CellID: 1}}})

	r, err := newBinaryRawHitReader(path)
	require.NoError(t, err)

	err = r.ReadEntry(5, store.New())
	require.Error(t, err)
	require.ErrorIs(t, err, errkind.ErrMissingInput)
}

func TestBinaryRawHitReaderMissingFileIsMissingInput(t *testing.T) {
	_, err := newBinaryRawHitReader(filepath.Join(t.TempDir(), "nope.bin"))
	require.Error(t, err)
	require.ErrorIs(t, err, errkind.ErrMissingInput)
}

func TestOpenUnknownReaderTypeIsConfigError(t *testing.T) {
	_, err := Open(Config{Type: "NoSuchReader"}, nil, "")
	require.Error(t, err)
	require.ErrorIs(t, err, errkind.ErrConfigError)
}
