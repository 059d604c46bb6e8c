package iowriter_test

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/ahcal-reco/ahcal-reco/internal/edm"
	"github.com/ahcal-reco/ahcal-reco/internal/errkind"
	"github.com/ahcal-reco/ahcal-reco/internal/registry"
	"github.com/ahcal-reco/ahcal-reco/internal/runctx"
	"github.com/ahcal-reco/ahcal-reco/internal/store"

	_ "github.com/ahcal-reco/ahcal-reco/internal/algs/iowriter"
)

func decodeCfgNode(t *testing.T, yamlText string) *yaml.Node {
	t.Helper()
	var doc yaml.Node
	require.NoError(t, yaml.Unmarshal([]byte(yamlText), &doc))
	return doc.Content[0]
}

func TestCreateRejectsEmptyOutputList(t *testing.T) {
	dir := t.TempDir()
	ctx := &runctx.Context{Config: runctx.Config{Output: filepath.Join(dir, "events.parquet")}}
	_, err := registry.DefaultAlgRegistry().Create("RootOutput", ctx, "writer", decodeCfgNode(t, `outputlist: []`))
	require.Error(t, err)
	require.ErrorIs(t, err, errkind.ErrConfigError)
}

func TestCreateRejectsMissingOutput(t *testing.T) {
	ctx := &runctx.Context{Config: runctx.Config{}}
	_, err := registry.DefaultAlgRegistry().Create("RootOutput", ctx, "writer", decodeCfgNode(t, `
outputlist:
  - {key: RawHits, type: RawHit}
`))
	require.Error(t, err)
	require.ErrorIs(t, err, errkind.ErrConfigError)
}

func TestCreateRejectsUnknownType(t *testing.T) {
	dir := t.TempDir()
	ctx := &runctx.Context{Config: runctx.Config{Output: filepath.Join(dir, "events.parquet")}}
	_, err := registry.DefaultAlgRegistry().Create("RootOutput", ctx, "writer", decodeCfgNode(t, `
outputlist:
  - {key: Widgets, type: NotARegisteredType}
`))
	require.Error(t, err)
	require.ErrorIs(t, err, errkind.ErrConfigError)
}

func TestExecuteMissingKeyIsMissingInput(t *testing.T) {
	dir := t.TempDir()
	ctx := &runctx.Context{Config: runctx.Config{Output: filepath.Join(dir, "events.parquet")}}
	alg, err := registry.DefaultAlgRegistry().Create("RootOutput", ctx, "writer", decodeCfgNode(t, `
outputlist:
  - {key: RawHits, type: RawHit}
`))
	require.NoError(t, err)
	require.NoError(t, alg.Initialize())
	defer alg.Finalize()

	err = alg.Execute(store.New())
	require.Error(t, err)
	require.ErrorIs(t, err, errkind.ErrMissingInput)
}

func TestFinalizeIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	ctx := &runctx.Context{Config: runctx.Config{Output: filepath.Join(dir, "events.parquet")}}
	alg, err := registry.DefaultAlgRegistry().Create("RootOutput", ctx, "writer", decodeCfgNode(t, `
outputlist:
  - {key: RawHits, type: RawHit}
`))
	require.NoError(t, err)
	require.NoError(t, alg.Initialize())

	s := store.New()
	store.Put(s, "RawHits", []edm.RawHit{{CellID: 1, HGADC: 2, LGADC: 3, HitTag: 0, BCID: 0, Index: 0}})
	require.NoError(t, alg.Execute(s))

	require.NoError(t, alg.Finalize())
	require.NoError(t, alg.Finalize())
}
