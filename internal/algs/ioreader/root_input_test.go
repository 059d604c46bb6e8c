package ioreader

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ahcal-reco/ahcal-reco/internal/column"
	"github.com/ahcal-reco/ahcal-reco/internal/edm"
	"github.com/ahcal-reco/ahcal-reco/internal/errkind"
	"github.com/ahcal-reco/ahcal-reco/internal/registry"
	"github.com/ahcal-reco/ahcal-reco/internal/runctx"
	"github.com/ahcal-reco/ahcal-reco/internal/store"

	_ "github.com/ahcal-reco/ahcal-reco/internal/algs/iowriter"
)

func TestRootInputReadsDeclaredEntryList(t *testing.T) {
	dir := t.TempDir()
	output := filepath.Join(dir, "events.parquet")

	writerCfg := decodeCfgNode(t, `
outputlist:
  - {key: RecoHits, type: RecoHit}
`)
	ctx := &runctx.Context{Config: runctx.Config{Output: output}}
	writerAlg, err := registry.DefaultAlgRegistry().Create("RootOutput", ctx, "writer", writerCfg)
	require.NoError(t, err)
	require.NoError(t, writerAlg.Initialize())

	want := []edm.RecoHit{{CellID: 1, Edep: 0.5, Nmip: 1.2, Index: 0}}
	s := store.New()
	store.Put(s, "RecoHits", want)
	require.NoError(t, writerAlg.Execute(s))
	require.NoError(t, writerAlg.Finalize())

	target, name, err := column.OpenTarget(output, nil)
	require.NoError(t, err)

	r, err := newRootInput(target, name, []Entry{{Key: "RecoHits", Type: "RecoHit"}})
	require.NoError(t, err)
	require.Equal(t, 1, r.NumEntries())

	out := store.New()
	require.NoError(t, r.ReadEntry(0, out))
	got, err := store.Get[[]edm.RecoHit](out, "RecoHits")
	require.NoError(t, err)
	require.Equal(t, want, got)
}

func TestRootInputRejectsEmptyEntryList(t *testing.T) {
	_, err := newRootInput(nil, "events", nil)
	require.Error(t, err)
	require.ErrorIs(t, err, errkind.ErrConfigError)
}

func TestRootInputUnknownTypeIsConfigError(t *testing.T) {
	dir := t.TempDir()
	output := filepath.Join(dir, "events.parquet")

	writerCfg := decodeCfgNode(t, `
outputlist:
  - {key: RecoHits, type: RecoHit}
`)
	ctx := &runctx.Context{Config: runctx.Config{Output: output}}
	writerAlg, err := registry.DefaultAlgRegistry().Create("RootOutput", ctx, "writer", writerCfg)
	require.NoError(t, err)
	require.NoError(t, writerAlg.Initialize())
	s := store.New()
	store.Put(s, "RecoHits", []edm.RecoHit{{CellID: 1}})
	require.NoError(t, writerAlg.Execute(s))
	require.NoError(t, writerAlg.Finalize())

	target, name, err := column.OpenTarget(output, nil)
	require.NoError(t, err)

	r, err := newRootInput(target, name, []Entry{{Key: "RecoHits", Type: "NoSuchType"}})
	require.NoError(t, err)

	err = r.ReadEntry(0, store.New())
	require.Error(t, err)
	require.ErrorIs(t, err, errkind.ErrConfigError)
}

func TestDerefUnwrapsPointerButPassesThroughValues(t *testing.T) {
	x := 42
	require.Equal(t, 42, deref(&x))
	require.Equal(t, []int{1, 2}, deref([]int{1, 2}))
}
