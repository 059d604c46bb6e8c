// Package iowriter implements the writer side of spec §6/§4.D
// ("Writer configuration: cfg.outputlist: [type-name, …] registers
// column writers by type-name"), grounded on
// original_source/IO/writer/{WriterRegistry,RootOutput,RootWriterAlg}.hpp.
// It is registered as an ordinary pipeline algorithm (original_source's
// RootWriterAlg wraps RootOutput the same way) so the runtime drives it
// through the same Initialize/Execute/Finalize contract as every other
// stage, with Execute called at its own position in the configured
// algorithm order.
package iowriter

import (
	"fmt"
	"reflect"

	"github.com/c2h5oh/datasize"
	"gopkg.in/yaml.v3"

	"github.com/ahcal-reco/ahcal-reco/internal/column"
	"github.com/ahcal-reco/ahcal-reco/internal/errkind"
	"github.com/ahcal-reco/ahcal-reco/internal/registry"
	"github.com/ahcal-reco/ahcal-reco/internal/runctx"
	"github.com/ahcal-reco/ahcal-reco/internal/store"
)

// Entry names one EventStore key to persist under a column prefix as
// its registered type — the writing counterpart of ioreader.Entry.
type Entry struct {
	Key  string `yaml:"key"`
	Type string `yaml:"type"`
}

type cfg struct {
	Treename   string  `yaml:"treename"`
	OutputList []Entry `yaml:"outputlist"`
}

// Alg is the pipeline-facing writer algorithm: one instance owns one
// column.Writer and, each Execute, fills it from the configured
// outputlist entries' current EventStore values (spec §4.D "fill()
// advances one row").
type Alg struct {
	name    string
	cfg     cfg
	writer  *column.Writer
	entries []registry.Entry
	closed  bool
}

func init() {
	registry.DefaultAlgRegistry().MustRegisterAlg("RootOutput", func(ctx *runctx.Context, name string, node *yaml.Node) (registry.Alg, error) {
		a := &Alg{name: name, cfg: cfg{Treename: "events"}}
		if node != nil {
			if err := node.Decode(&a.cfg); err != nil {
				return nil, fmt.Errorf("iowriter: %w: decode cfg: %v", errkind.ErrConfigError, err)
			}
		}
		if len(a.cfg.OutputList) == 0 {
			return nil, fmt.Errorf("iowriter: %w: outputlist must name at least one type", errkind.ErrConfigError)
		}
		if ctx.Config.Output == "" {
			return nil, fmt.Errorf("iowriter: %w: run.output is required", errkind.ErrConfigError)
		}

		target, datasetName, err := column.OpenTarget(ctx.Config.Output, nil)
		if err != nil {
			return nil, fmt.Errorf("iowriter: %w: open output target: %v", errkind.ErrMissingInput, err)
		}
		a.writer = column.NewWriter(target, datasetName, 256*datasize.MB)

		a.entries = make([]registry.Entry, len(a.cfg.OutputList))
		for i, e := range a.cfg.OutputList {
			reg, ok := registry.Lookup(e.Type)
			if !ok {
				return nil, fmt.Errorf("iowriter: %w: unknown type %q in outputlist", errkind.ErrConfigError, e.Type)
			}
			a.entries[i] = reg
		}
		return a, nil
	})
}

func (a *Alg) Name() string      { return a.name }
func (a *Alg) Initialize() error { return nil }

// Execute writes the current value of every configured key, then
// advances the writer one row. A configured key absent from the
// EventStore for a given event is a missing-input error (spec §7):
// the outputlist is a per-run contract, not an optional projection.
func (a *Alg) Execute(s *store.Store) error {
	for i, e := range a.cfg.OutputList {
		v, ok := s.Any(e.Key)
		if !ok {
			return fmt.Errorf("iowriter: %w: key %q (type %q) not in event store", errkind.ErrMissingInput, e.Key, e.Type)
		}
		if err := a.entries[i].Write(toWriteValue(v), a.writer, e.Key); err != nil {
			return fmt.Errorf("iowriter: %w: writing key %q: %v", errkind.ErrConfigError, e.Key, err)
		}
	}
	return a.writer.Fill()
}

// Finalize closes the dataset exactly once, matching RootOutput's
// scoped-acquisition contract (open at construction, close on exit,
// idempotent against repeated calls).
func (a *Alg) Finalize() error {
	if a.closed {
		return nil
	}
	a.closed = true
	return a.writer.Close()
}

// toWriteValue adapts an EventStore value into the shape
// registry.Entry.Write expects: slice-valued records (sliceEntry) take
// []T directly, but scalar records (scalarEntry) assert *T, matching
// the pointer the reader side hands back from Read — see
// ioreader.deref for the inverse direction.
func toWriteValue(v interface{}) interface{} {
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Slice {
		return v
	}
	ptr := reflect.New(rv.Type())
	ptr.Elem().Set(rv)
	return ptr.Interface()
}
