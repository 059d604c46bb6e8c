package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, []byte(content), 0o640))
	return p
}

func TestLoadResolvesIncludeAndDefaults(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "algs.yaml", `
- type: AdcToEnergyAlg
  name: adc
`)
	main := writeFile(t, dir, "run.yaml", `
run:
  input: in.parquet
  output: out.parquet
reader:
  type: RootRawHitReader
algs: !include algs.yaml
`)

	cfg, err := Load(main)
	require.NoError(t, err)
	require.Equal(t, "in.parquet", cfg.Run.Input)
	require.Equal(t, "info", cfg.Run.LogLevel)
	require.EqualValues(t, -1, cfg.Run.NEvents)
	require.Len(t, cfg.Algs, 1)
	require.Equal(t, "AdcToEnergyAlg", cfg.Algs[0].Type)
}

func TestLoadRejectsMissingRequiredKeys(t *testing.T) {
	dir := t.TempDir()
	main := writeFile(t, dir, "run.yaml", `
run:
  input: in.parquet
algs: []
`)
	_, err := Load(main)
	require.Error(t, err)
}

func TestLoadRejectsUnknownReaderType(t *testing.T) {
	dir := t.TempDir()
	main := writeFile(t, dir, "run.yaml", `
run:
  input: in.parquet
  output: out.parquet
reader:
  type: NotARealReader
algs: []
`)
	_, err := Load(main)
	require.Error(t, err)
}
