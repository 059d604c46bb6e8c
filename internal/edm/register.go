package edm

import (
	"fmt"

	"github.com/ahcal-reco/ahcal-reco/internal/column"
	"github.com/ahcal-reco/ahcal-reco/internal/registry"
)

// scalarEntry adapts a Descriptor over T into a registry.Entry, the
// Go-idiom replacement for the original's AHCAL_REGISTER_IO_STRUCT
// macro (spec §4.B): instead of a header-only static initializer, an
// explicit init() below calls registry.MustRegister once per type.
func scalarEntry[T any](d Descriptor) registry.Entry {
	return registry.Entry{
		Write: func(value interface{}, w *column.Writer, prefix string) error {
			rec, ok := value.(*T)
			if !ok {
				return fmt.Errorf("edm: expected *%T for prefix %q, got %T", *new(T), prefix, value)
			}
			return d.Write(rec, w, prefix)
		},
		Read: func(r *column.Reader, prefix string) (interface{}, error) {
			rec := new(T)
			if err := d.Read(rec, r, prefix); err != nil {
				return nil, err
			}
			return rec, nil
		},
	}
}

// sliceEntry adapts a SliceDescriptor over T into a registry.Entry for
// a []T stored at the EventStore key (the vector-of-R form, spec §4.A).
func sliceEntry[T any](d SliceDescriptor) registry.Entry {
	return registry.Entry{
		Write: func(value interface{}, w *column.Writer, prefix string) error {
			recs, ok := value.([]T)
			if !ok {
				return fmt.Errorf("edm: expected []%T for prefix %q, got %T", *new(T), prefix, value)
			}
			ptrs := make([]interface{}, len(recs))
			for i := range recs {
				ptrs[i] = &recs[i]
			}
			return d.Write(ptrs, w, prefix)
		},
		Read: func(r *column.Reader, prefix string) (interface{}, error) {
			n, err := d.Size(r, prefix)
			if err != nil {
				return nil, err
			}
			recs := make([]T, n)
			ptrs := make([]interface{}, n)
			for i := range recs {
				ptrs[i] = &recs[i]
			}
			if err := d.Read(ptrs, r, prefix); err != nil {
				return nil, err
			}
			return recs, nil
		},
	}
}

// init self-registers every record type this package defines under
// the wire-type names a pipeline YAML's inputlist/outputlist refer to
// by. One registration per (record type, name) pair, as spec §4.B
// requires.
func init() {
	registry.MustRegister("RawHit", sliceEntry[RawHit](DescribeRawHit()))
	registry.MustRegister("RecoHit", sliceEntry[RecoHit](DescribeRecoHit()))
	registry.MustRegister("TrueHit", sliceEntry[TrueHit](DescribeTrueHit()))
	registry.MustRegister("TLURawData", scalarEntry[TLURawData](DescribeTLURawData()))
	registry.MustRegister("Track", scalarEntry[Track](DescribeTrack()))
	registry.MustRegister("SimpleFittedTrack", scalarEntry[SimpleFittedTrack](DescribeSimpleFittedTrack()))
	registry.MustRegister("MCinfo", scalarEntry[MCinfo](DescribeMCinfo()))
	registry.MustRegister("TrackFindOutput", scalarEntry[TrackFindOutput](DescribeTrackFindOutput()))
}
