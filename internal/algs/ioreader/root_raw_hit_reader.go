package ioreader

import (
	"fmt"

	"github.com/ahcal-reco/ahcal-reco/internal/column"
	"github.com/ahcal-reco/ahcal-reco/internal/errkind"
	"github.com/ahcal-reco/ahcal-reco/internal/registry"
	"github.com/ahcal-reco/ahcal-reco/internal/store"
)

// rootRawHitReader reads hits+TLU from a tabular dataset (spec §6),
// grounded on original_source/IO/reader/RootRawHitReader.cpp. The
// original hand-binds one ROOT branch per field; here the dataset was
// produced (upstream of this pipeline) with the same column
// convention this package's own Writer uses, so reading it back is
// just the Type Registry's ordinary "RawHit"/"TLURawData" readers
// applied to the fixed "RawHits"/"TLURawData" keys, rather than a
// bespoke branch-binding type.
type rootRawHitReader struct {
	col *column.Reader
}

func newRootRawHitReader(target column.Target, dataset string) (*rootRawHitReader, error) {
	col, err := column.Open(target, dataset)
	if err != nil {
		return nil, fmt.Errorf("ioreader: %w", err)
	}
	return &rootRawHitReader{col: col}, nil
}

func (r *rootRawHitReader) NumEntries() int { return r.col.NumEntries() }
func (r *rootRawHitReader) Close() error    { return nil }

func (r *rootRawHitReader) ReadEntry(i int, s *store.Store) error {
	if err := r.col.ReadEntry(i); err != nil {
		return fmt.Errorf("ioreader: %w", err)
	}

	rawHitEntry, ok := registry.Lookup("RawHit")
	if !ok {
		return fmt.Errorf("ioreader: %w: type %q not registered", errkind.ErrConfigError, "RawHit")
	}
	hits, err := rawHitEntry.Read(r.col, "RawHits")
	if err != nil {
		return fmt.Errorf("ioreader: %w", err)
	}
	store.Put(s, "RawHits", hits)

	tluEntry, ok := registry.Lookup("TLURawData")
	if !ok {
		return fmt.Errorf("ioreader: %w: type %q not registered", errkind.ErrConfigError, "TLURawData")
	}
	tlu, err := tluEntry.Read(r.col, "TLURawData")
	if err != nil {
		return fmt.Errorf("ioreader: %w", err)
	}
	store.Put(s, "TLURawData", deref(tlu))
	return nil
}
