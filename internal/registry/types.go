// Package registry is the process-global map from a wire type name
// (as written in a pipeline YAML's reader/writer inputlist/outputlist)
// to the code that knows how to move a value of that type between the
// EventStore and a column dataset (spec §4.B, grounded on
// original_source/IO/IOTypeRegistry.hpp). Record types self-register by
// calling MustRegister from a package init(), mirroring the original's
// header-only AHCAL_REGISTER_IO_STRUCT self-registration macro.
package registry

import (
	"fmt"
	"sync"

	"github.com/ahcal-reco/ahcal-reco/internal/column"
	"github.com/ahcal-reco/ahcal-reco/internal/errkind"
)

// Entry is everything the pipeline runtime needs to know about one
// wire type: how to persist the EventStore value it names under a
// column prefix, and how to reconstruct it from a dataset.
type Entry struct {
	// Write persists value (the current EventStore contents for this
	// key) into w under prefix.
	Write func(value interface{}, w *column.Writer, prefix string) error
	// Read reconstructs a fresh value of this type from r at prefix,
	// ready to be handed to store.Put.
	Read func(r *column.Reader, prefix string) (interface{}, error)
}

var (
	mu      sync.Mutex
	entries = map[string]Entry{}
)

// Register adds name to the registry, or returns ErrDuplicateRegistration
// if it is already present.
func Register(name string, e Entry) error {
	mu.Lock()
	defer mu.Unlock()
	if _, exists := entries[name]; exists {
		return fmt.Errorf("registry: %w: type %q already registered", errkind.ErrDuplicateRegistration, name)
	}
	entries[name] = e
	return nil
}

// MustRegister panics on duplicate registration. Self-registration
// happens at package init time, before main runs, where there is no
// sensible error return path — a duplicate there is a build-time
// programming error, not a runtime condition to recover from.
func MustRegister(name string, e Entry) {
	if err := Register(name, e); err != nil {
		panic(err)
	}
}

// Lookup returns the entry for name, or ok=false if name was never
// registered (spec §7 config-error: "unknown alg/type name").
func Lookup(name string) (Entry, bool) {
	mu.Lock()
	defer mu.Unlock()
	e, ok := entries[name]
	return e, ok
}

// Names returns every registered wire type name, for diagnostics and
// config-error messages.
func Names() []string {
	mu.Lock()
	defer mu.Unlock()
	out := make([]string, 0, len(entries))
	for n := range entries {
		out = append(out, n)
	}
	return out
}
