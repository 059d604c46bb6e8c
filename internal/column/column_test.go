package column

import (
	"testing"

	"github.com/c2h5oh/datasize"
	"github.com/stretchr/testify/require"

	"github.com/ahcal-reco/ahcal-reco/internal/errkind"
)

func TestFileTargetWriteReadRoundTrip(t *testing.T) {
	target, err := NewFileTarget(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, target.WriteFile("events.parquet", []byte("hello")))
	got, err := target.ReadFile("events.parquet")
	require.NoError(t, err)
	require.Equal(t, []byte("hello"), got)
}

func TestFileTargetDefaultsToCurrentDirWhenDirEmpty(t *testing.T) {
	target, err := NewFileTarget("")
	require.NoError(t, err)
	require.Equal(t, ".", target.dir)
}

func TestOpenTargetPlainPathSplitsDirAndName(t *testing.T) {
	dir := t.TempDir()
	target, name, err := OpenTarget(dir+"/out.parquet", nil)
	require.NoError(t, err)
	require.Equal(t, "out.parquet", name)
	_, ok := target.(*FileTarget)
	require.True(t, ok)
}

func TestOpenTargetS3RequiresConfig(t *testing.T) {
	_, _, err := OpenTarget("s3://bucket/prefix/out.parquet", nil)
	require.Error(t, err)
}

func TestWriterReaderScalarColumnRoundTrip(t *testing.T) {
	target, err := NewFileTarget(t.TempDir())
	require.NoError(t, err)

	w := NewWriter(target, "events", 64*datasize.MB)
	hg, err := GetOrMakeColumn[int32](w, "hgADC")
	require.NoError(t, err)
	e, err := GetOrMakeColumn[float64](w, "energy")
	require.NoError(t, err)

	*hg, *e = 100, 1.5
	require.NoError(t, w.Fill())
	*hg, *e = 200, 3.0
	require.NoError(t, w.Fill())

	require.Equal(t, 2, w.NumRows())
	require.NoError(t, w.Close())

	r, err := Open(target, "events")
	require.NoError(t, err)
	require.Equal(t, 2, r.NumEntries())

	hgAddr, err := GetOrMakeAddress[int32](r, "hgADC")
	require.NoError(t, err)
	eAddr, err := GetOrMakeAddress[float64](r, "energy")
	require.NoError(t, err)

	require.NoError(t, r.ReadEntry(0))
	require.Equal(t, int32(100), *hgAddr)
	require.Equal(t, 1.5, *eAddr)

	require.True(t, r.Next())
	require.Equal(t, int32(200), *hgAddr)
	require.Equal(t, 3.0, *eAddr)

	require.False(t, r.Next())
}

func TestGetOrMakeColumnRejectsTypeChange(t *testing.T) {
	target, err := NewFileTarget(t.TempDir())
	require.NoError(t, err)
	w := NewWriter(target, "events", 64*datasize.MB)

	_, err = GetOrMakeColumn[int32](w, "x")
	require.NoError(t, err)

	_, err = GetOrMakeColumn[float64](w, "x")
	require.Error(t, err)
	require.ErrorIs(t, err, errkind.ErrTypeMismatch)
}

func TestGetOrMakeAddressRejectsTypeMismatchAgainstFile(t *testing.T) {
	target, err := NewFileTarget(t.TempDir())
	require.NoError(t, err)
	w := NewWriter(target, "events", 64*datasize.MB)
	col, err := GetOrMakeColumn[int32](w, "hgADC")
	require.NoError(t, err)
	*col = 42
	require.NoError(t, w.Fill())
	require.NoError(t, w.Close())

	r, err := Open(target, "events")
	require.NoError(t, err)

	_, err = GetOrMakeAddress[float64](r, "hgADC")
	require.Error(t, err)
	require.ErrorIs(t, err, errkind.ErrTypeMismatch)
}

func TestGetOrMakeAddressRejectsTypeChangeAfterBind(t *testing.T) {
	target, err := NewFileTarget(t.TempDir())
	require.NoError(t, err)
	w := NewWriter(target, "events", 64*datasize.MB)
	col, err := GetOrMakeColumn[int32](w, "hgADC")
	require.NoError(t, err)
	*col = 42
	require.NoError(t, w.Fill())
	require.NoError(t, w.Close())

	r, err := Open(target, "events")
	require.NoError(t, err)
	_, err = GetOrMakeAddress[int32](r, "hgADC")
	require.NoError(t, err)

	_, err = GetOrMakeAddress[int32](r, "hgADC")
	require.NoError(t, err) // same type rebind is fine

	_, err = GetOrMakeAddress[string](r, "hgADC")
	require.Error(t, err)
	require.ErrorIs(t, err, errkind.ErrTypeMismatch)
}

func TestReadEntryOutOfRangeIsMissingInput(t *testing.T) {
	target, err := NewFileTarget(t.TempDir())
	require.NoError(t, err)
	w := NewWriter(target, "events", 64*datasize.MB)
	col, err := GetOrMakeColumn[int32](w, "x")
	require.NoError(t, err)
	*col = 1
	require.NoError(t, w.Fill())
	require.NoError(t, w.Close())

	r, err := Open(target, "events")
	require.NoError(t, err)

	err = r.ReadEntry(5)
	require.Error(t, err)
	require.ErrorIs(t, err, errkind.ErrMissingInput)
}

func TestCloseWithNoColumnsWritesNothing(t *testing.T) {
	target, err := NewFileTarget(t.TempDir())
	require.NoError(t, err)
	w := NewWriter(target, "empty", 64*datasize.MB)
	require.NoError(t, w.Close())

	_, err = target.ReadFile("empty")
	require.Error(t, err)
}

func TestSequenceLenDecodesJSONArrayColumn(t *testing.T) {
	target, err := NewFileTarget(t.TempDir())
	require.NoError(t, err)
	w := NewWriter(target, "events", 64*datasize.MB)
	col, err := GetOrMakeColumn[[]byte](w, "hits")
	require.NoError(t, err)
	*col = []byte(`[1,2,3]`)
	require.NoError(t, w.Fill())
	require.NoError(t, w.Close())

	r, err := Open(target, "events")
	require.NoError(t, err)
	require.NoError(t, r.ReadEntry(0))

	n, err := r.SequenceLen("hits")
	require.NoError(t, err)
	require.Equal(t, 3, n)
}
