// Package ioreader implements the three reader types of spec §6
// (RootRawHitReader, BinaryRawHitReader, RootInput), grounded on
// original_source/IO/reader/. Unlike the algorithm registry (spec
// §4.B), the reader section of a run config selects exactly one
// concrete reader, not a named-and-chained sequence, so this package
// exposes a small switch-on-type factory rather than a registry.
package ioreader

import (
	"fmt"

	"github.com/ahcal-reco/ahcal-reco/internal/column"
	"github.com/ahcal-reco/ahcal-reco/internal/errkind"
	"github.com/ahcal-reco/ahcal-reco/internal/store"
)

// Reader produces one event's worth of EventStore entries per index,
// the common shape behind RootRawHitReader/BinaryRawHitReader/RootInput.
type Reader interface {
	NumEntries() int
	ReadEntry(i int, s *store.Store) error
	Close() error
}

// Entry names one column to read into a given EventStore key, via the
// registered type-name — the reading counterpart of the writer's
// outputlist (internal/algs/iowriter).
type Entry struct {
	Key  string `yaml:"key"`
	Type string `yaml:"type"`
}

// Config is the YAML `reader` top-level section (spec §6).
type Config struct {
	Type      string  `yaml:"type"`
	Filename  string  `yaml:"filename"`
	Treename  string  `yaml:"treename"`
	InputList []Entry `yaml:"inputlist"`
}

// Open selects and constructs the configured reader. target/inputPath
// are resolved from run.input by the caller (internal/runtime):
// inputPath is the dataset filename within target for the two
// column-backed readers, or the raw filesystem path for
// BinaryRawHitReader. cfg.Treename/cfg.Filename, when set, override
// that resolved default — a run can still point a reader at a
// dataset named differently than its input file's own basename.
func Open(cfg Config, target column.Target, inputPath string) (Reader, error) {
	switch cfg.Type {
	case "RootRawHitReader":
		treename := cfg.Treename
		if treename == "" {
			treename = inputPath
		}
		return newRootRawHitReader(target, treename)
	case "BinaryRawHitReader":
		filename := cfg.Filename
		if filename == "" {
			filename = inputPath
		}
		return newBinaryRawHitReader(filename)
	case "RootInput":
		treename := cfg.Treename
		if treename == "" {
			treename = inputPath
		}
		return newRootInput(target, treename, cfg.InputList)
	default:
		return nil, fmt.Errorf("ioreader: %w: unknown reader type %q", errkind.ErrConfigError, cfg.Type)
	}
}
