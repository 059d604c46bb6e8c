package edm

import (
	"encoding/json"
	"fmt"

	"github.com/ahcal-reco/ahcal-reco/internal/column"
)

// ScalarField is one (name, write, read) triple of a record's field
// descriptor (spec §4.A). write/read bind a stable column address
// named prefix+"."+Name, where prefix is the EventStore key.
type ScalarField struct {
	Name  string
	Write func(rec interface{}, w *column.Writer, prefix string) error
	Read  func(rec interface{}, r *column.Reader, prefix string) error
}

// Descriptor is describe(R): an ordered field list, stable across runs
// of the same binary (spec §9).
type Descriptor []ScalarField

// Write runs every field's Write closure against rec.
func (d Descriptor) Write(rec interface{}, w *column.Writer, prefix string) error {
	for _, f := range d {
		if err := f.Write(rec, w, prefix); err != nil {
			return fmt.Errorf("edm: write field %s.%s: %w", prefix, f.Name, err)
		}
	}
	return nil
}

// Read runs every field's Read closure against rec.
func (d Descriptor) Read(rec interface{}, r *column.Reader, prefix string) error {
	for _, f := range d {
		if err := f.Read(rec, r, prefix); err != nil {
			return fmt.Errorf("edm: read field %s.%s: %w", prefix, f.Name, err)
		}
	}
	return nil
}

// SeqField is describe_vector(R)'s per-field entry: write accepts the
// full slice of record pointers, read accepts the slice of mutable
// element pointers, and Size tells the reader how many rows to
// allocate before Read is called (spec §4.A, §4.D ReaderRegistry).
type SeqField struct {
	Name  string
	Write func(recs []interface{}, w *column.Writer, prefix string) error
	Read  func(recs []interface{}, r *column.Reader, prefix string) error
	Size  func(r *column.Reader, prefix string) (int, error)
}

// SliceDescriptor is describe_vector(R).
type SliceDescriptor []SeqField

func (d SliceDescriptor) Write(recs []interface{}, w *column.Writer, prefix string) error {
	for _, f := range d {
		if err := f.Write(recs, w, prefix); err != nil {
			return fmt.Errorf("edm: write sequence field %s.v.%s: %w", prefix, f.Name, err)
		}
	}
	return nil
}

// Size asks the first field descriptor how many elements are present.
func (d SliceDescriptor) Size(r *column.Reader, prefix string) (int, error) {
	if len(d) == 0 {
		return 0, nil
	}
	return d[0].Size(r, prefix)
}

func (d SliceDescriptor) Read(recs []interface{}, r *column.Reader, prefix string) error {
	for _, f := range d {
		if err := f.Read(recs, r, prefix); err != nil {
			return fmt.Errorf("edm: read sequence field %s.v.%s: %w", prefix, f.Name, err)
		}
	}
	return nil
}

// --- scalar field constructors, one per wire kind -----------------------

func int32Field(name string, get func(interface{}) int32, set func(interface{}, int32)) ScalarField {
	return ScalarField{
		Name: name,
		Write: func(rec interface{}, w *column.Writer, prefix string) error {
			ptr, err := column.GetOrMakeColumn[int32](w, prefix+"."+name)
			if err != nil {
				return err
			}
			*ptr = get(rec)
			return nil
		},
		Read: func(rec interface{}, r *column.Reader, prefix string) error {
			ptr, err := column.GetOrMakeAddress[int32](r, prefix+"."+name)
			if err != nil {
				return err
			}
			set(rec, *ptr)
			return nil
		},
	}
}

func int64Field(name string, get func(interface{}) int64, set func(interface{}, int64)) ScalarField {
	return ScalarField{
		Name: name,
		Write: func(rec interface{}, w *column.Writer, prefix string) error {
			ptr, err := column.GetOrMakeColumn[int64](w, prefix+"."+name)
			if err != nil {
				return err
			}
			*ptr = get(rec)
			return nil
		},
		Read: func(rec interface{}, r *column.Reader, prefix string) error {
			ptr, err := column.GetOrMakeAddress[int64](r, prefix+"."+name)
			if err != nil {
				return err
			}
			set(rec, *ptr)
			return nil
		},
	}
}

func float64Field(name string, get func(interface{}) float64, set func(interface{}, float64)) ScalarField {
	return ScalarField{
		Name: name,
		Write: func(rec interface{}, w *column.Writer, prefix string) error {
			ptr, err := column.GetOrMakeColumn[float64](w, prefix+"."+name)
			if err != nil {
				return err
			}
			*ptr = get(rec)
			return nil
		},
		Read: func(rec interface{}, r *column.Reader, prefix string) error {
			ptr, err := column.GetOrMakeAddress[float64](r, prefix+"."+name)
			if err != nil {
				return err
			}
			set(rec, *ptr)
			return nil
		},
	}
}

func boolField(name string, get func(interface{}) bool, set func(interface{}, bool)) ScalarField {
	return ScalarField{
		Name: name,
		Write: func(rec interface{}, w *column.Writer, prefix string) error {
			ptr, err := column.GetOrMakeColumn[bool](w, prefix+"."+name)
			if err != nil {
				return err
			}
			*ptr = get(rec)
			return nil
		},
		Read: func(rec interface{}, r *column.Reader, prefix string) error {
			ptr, err := column.GetOrMakeAddress[bool](r, prefix+"."+name)
			if err != nil {
				return err
			}
			set(rec, *ptr)
			return nil
		},
	}
}

// jsonField flattens a nested or sequence-valued member (e.g. a []int64
// index list, or a fixed-size array) into a single JSON-encoded byte
// column, the same way the teacher stores semi-structured record
// members as a JSON blob column (ParquetJobRow.ResourcesJSON etc.)
// rather than a nested parquet structure.
func jsonField(name string, get func(interface{}) interface{}, set func(interface{}, []byte) error) ScalarField {
	return ScalarField{
		Name: name,
		Write: func(rec interface{}, w *column.Writer, prefix string) error {
			data, err := json.Marshal(get(rec))
			if err != nil {
				return fmt.Errorf("marshal %s: %w", name, err)
			}
			ptr, err := column.GetOrMakeColumn[[]byte](w, prefix+"."+name)
			if err != nil {
				return err
			}
			*ptr = data
			return nil
		},
		Read: func(rec interface{}, r *column.Reader, prefix string) error {
			ptr, err := column.GetOrMakeAddress[[]byte](r, prefix+"."+name)
			if err != nil {
				return err
			}
			return set(rec, *ptr)
		},
	}
}

// --- sequence field constructors, one per wire kind ---------------------

func int32SeqField(name string, get func(interface{}) int32, set func(interface{}, int32)) SeqField {
	colName := func(prefix string) string { return prefix + ".v." + name }
	return SeqField{
		Name: name,
		Write: func(recs []interface{}, w *column.Writer, prefix string) error {
			vals := make([]int32, len(recs))
			for i, rec := range recs {
				vals[i] = get(rec)
			}
			data, err := json.Marshal(vals)
			if err != nil {
				return err
			}
			ptr, err := column.GetOrMakeColumn[[]byte](w, colName(prefix))
			if err != nil {
				return err
			}
			*ptr = data
			return nil
		},
		Read: func(recs []interface{}, r *column.Reader, prefix string) error {
			ptr, err := column.GetOrMakeAddress[[]byte](r, colName(prefix))
			if err != nil {
				return err
			}
			var vals []int32
			if err := json.Unmarshal(*ptr, &vals); err != nil {
				return err
			}
			for i, rec := range recs {
				if i < len(vals) {
					set(rec, vals[i])
				}
			}
			return nil
		},
		Size: func(r *column.Reader, prefix string) (int, error) {
			return r.SequenceLen(colName(prefix))
		},
	}
}

func int64SeqField(name string, get func(interface{}) int64, set func(interface{}, int64)) SeqField {
	colName := func(prefix string) string { return prefix + ".v." + name }
	return SeqField{
		Name: name,
		Write: func(recs []interface{}, w *column.Writer, prefix string) error {
			vals := make([]int64, len(recs))
			for i, rec := range recs {
				vals[i] = get(rec)
			}
			data, err := json.Marshal(vals)
			if err != nil {
				return err
			}
			ptr, err := column.GetOrMakeColumn[[]byte](w, colName(prefix))
			if err != nil {
				return err
			}
			*ptr = data
			return nil
		},
		Read: func(recs []interface{}, r *column.Reader, prefix string) error {
			ptr, err := column.GetOrMakeAddress[[]byte](r, colName(prefix))
			if err != nil {
				return err
			}
			var vals []int64
			if err := json.Unmarshal(*ptr, &vals); err != nil {
				return err
			}
			for i, rec := range recs {
				if i < len(vals) {
					set(rec, vals[i])
				}
			}
			return nil
		},
		Size: func(r *column.Reader, prefix string) (int, error) {
			return r.SequenceLen(colName(prefix))
		},
	}
}

func float64SeqField(name string, get func(interface{}) float64, set func(interface{}, float64)) SeqField {
	colName := func(prefix string) string { return prefix + ".v." + name }
	return SeqField{
		Name: name,
		Write: func(recs []interface{}, w *column.Writer, prefix string) error {
			vals := make([]float64, len(recs))
			for i, rec := range recs {
				vals[i] = get(rec)
			}
			data, err := json.Marshal(vals)
			if err != nil {
				return err
			}
			ptr, err := column.GetOrMakeColumn[[]byte](w, colName(prefix))
			if err != nil {
				return err
			}
			*ptr = data
			return nil
		},
		Read: func(recs []interface{}, r *column.Reader, prefix string) error {
			ptr, err := column.GetOrMakeAddress[[]byte](r, colName(prefix))
			if err != nil {
				return err
			}
			var vals []float64
			if err := json.Unmarshal(*ptr, &vals); err != nil {
				return err
			}
			for i, rec := range recs {
				if i < len(vals) {
					set(rec, vals[i])
				}
			}
			return nil
		},
		Size: func(r *column.Reader, prefix string) (int, error) {
			return r.SequenceLen(colName(prefix))
		},
	}
}

// --- per-type descriptors ------------------------------------------------

// DescribeRawHit is describe_vector(RawHit): []RawHit flattens to one
// JSON-sequence column per field (spec §4.A, §8 scenario S6).
func DescribeRawHit() SliceDescriptor {
	return SliceDescriptor{
		int32SeqField("cellID", func(r interface{}) int32 { return r.(*RawHit).CellID }, func(r interface{}, v int32) { r.(*RawHit).CellID = v }),
		int64SeqField("hg_adc", func(r interface{}) int64 { return r.(*RawHit).HGADC }, func(r interface{}, v int64) { r.(*RawHit).HGADC = v }),
		int64SeqField("lg_adc", func(r interface{}) int64 { return r.(*RawHit).LGADC }, func(r interface{}, v int64) { r.(*RawHit).LGADC = v }),
		int64SeqField("hittag", func(r interface{}) int64 { return r.(*RawHit).HitTag }, func(r interface{}, v int64) { r.(*RawHit).HitTag = v }),
		int64SeqField("bcid", func(r interface{}) int64 { return r.(*RawHit).BCID }, func(r interface{}, v int64) { r.(*RawHit).BCID = v }),
		int64SeqField("index", func(r interface{}) int64 { return r.(*RawHit).Index }, func(r interface{}, v int64) { r.(*RawHit).Index = v }),
	}
}

// DescribeRecoHit is describe_vector(RecoHit).
func DescribeRecoHit() SliceDescriptor {
	return SliceDescriptor{
		int32SeqField("cellID", func(r interface{}) int32 { return r.(*RecoHit).CellID }, func(r interface{}, v int32) { r.(*RecoHit).CellID = v }),
		float64SeqField("Edep", func(r interface{}) float64 { return r.(*RecoHit).Edep }, func(r interface{}, v float64) { r.(*RecoHit).Edep = v }),
		float64SeqField("Nmip", func(r interface{}) float64 { return r.(*RecoHit).Nmip }, func(r interface{}, v float64) { r.(*RecoHit).Nmip = v }),
		int64SeqField("index", func(r interface{}) int64 { return r.(*RecoHit).Index }, func(r interface{}, v int64) { r.(*RecoHit).Index = v }),
	}
}

// DescribeTrueHit is describe_vector(TrueHit).
func DescribeTrueHit() SliceDescriptor {
	return SliceDescriptor{
		int32SeqField("cellID", func(r interface{}) int32 { return r.(*TrueHit).CellID }, func(r interface{}, v int32) { r.(*TrueHit).CellID = v }),
		float64SeqField("Edep", func(r interface{}) float64 { return r.(*TrueHit).Edep }, func(r interface{}, v float64) { r.(*TrueHit).Edep = v }),
		int64SeqField("trackID", func(r interface{}) int64 { return r.(*TrueHit).TrackID }, func(r interface{}, v int64) { r.(*TrueHit).TrackID = v }),
		int64SeqField("pdgID", func(r interface{}) int64 { return r.(*TrueHit).PdgID }, func(r interface{}, v int64) { r.(*TrueHit).PdgID = v }),
		float64SeqField("x", func(r interface{}) float64 { return r.(*TrueHit).X }, func(r interface{}, v float64) { r.(*TrueHit).X = v }),
		float64SeqField("y", func(r interface{}) float64 { return r.(*TrueHit).Y }, func(r interface{}, v float64) { r.(*TrueHit).Y = v }),
		float64SeqField("z", func(r interface{}) float64 { return r.(*TrueHit).Z }, func(r interface{}, v float64) { r.(*TrueHit).Z = v }),
	}
}

// DescribeTLURawData is describe(TLURawData).
func DescribeTLURawData() Descriptor {
	return Descriptor{
		int64Field("timestamp", func(r interface{}) int64 { return r.(*TLURawData).Timestamp }, func(r interface{}, v int64) { r.(*TLURawData).Timestamp = v }),
		int64Field("bcid", func(r interface{}) int64 { return r.(*TLURawData).BCID }, func(r interface{}, v int64) { r.(*TLURawData).BCID = v }),
		jsonField("digitalInputs", func(r interface{}) interface{} { return r.(*TLURawData).DigitalInputs }, func(r interface{}, data []byte) error {
			var v [6]int32
			if err := json.Unmarshal(data, &v); err != nil {
				return err
			}
			r.(*TLURawData).DigitalInputs = v
			return nil
		}),
		jsonField("fineTimestamps", func(r interface{}) interface{} { return r.(*TLURawData).FineTimestamps }, func(r interface{}, data []byte) error {
			var v [6]int64
			if err := json.Unmarshal(data, &v); err != nil {
				return err
			}
			r.(*TLURawData).FineTimestamps = v
			return nil
		}),
		int64Field("runID", func(r interface{}) int64 { return r.(*TLURawData).RunID }, func(r interface{}, v int64) { r.(*TLURawData).RunID = v }),
		int64Field("cycleID", func(r interface{}) int64 { return r.(*TLURawData).CycleID }, func(r interface{}, v int64) { r.(*TLURawData).CycleID = v }),
		int64Field("triggerID", func(r interface{}) int64 { return r.(*TLURawData).TriggerID }, func(r interface{}, v int64) { r.(*TLURawData).TriggerID = v }),
		int64Field("eventTime", func(r interface{}) int64 { return r.(*TLURawData).EventTime }, func(r interface{}, v int64) { r.(*TLURawData).EventTime = v }),
	}
}

// DescribeTrack is describe(Track).
func DescribeTrack() Descriptor {
	return Descriptor{
		float64Field("x", func(r interface{}) float64 { return r.(*Track).X }, func(r interface{}, v float64) { r.(*Track).X = v }),
		float64Field("y", func(r interface{}) float64 { return r.(*Track).Y }, func(r interface{}, v float64) { r.(*Track).Y = v }),
		float64Field("tx", func(r interface{}) float64 { return r.(*Track).TX }, func(r interface{}, v float64) { r.(*Track).TX = v }),
		float64Field("ty", func(r interface{}) float64 { return r.(*Track).TY }, func(r interface{}, v float64) { r.(*Track).TY = v }),
		float64Field("z", func(r interface{}) float64 { return r.(*Track).Z }, func(r interface{}, v float64) { r.(*Track).Z = v }),
		float64Field("chi2", func(r interface{}) float64 { return r.(*Track).Chi2 }, func(r interface{}, v float64) { r.(*Track).Chi2 = v }),
		int64Field("ndof", func(r interface{}) int64 { return r.(*Track).Ndof }, func(r interface{}, v int64) { r.(*Track).Ndof = v }),
		int64Field("consecutiveSkips", func(r interface{}) int64 { return r.(*Track).ConsecutiveSkips }, func(r interface{}, v int64) { r.(*Track).ConsecutiveSkips = v }),
		boolField("valid", func(r interface{}) bool { return r.(*Track).Valid }, func(r interface{}, v bool) { r.(*Track).Valid = v }),
		jsonField("inTrackHitsIndices", func(r interface{}) interface{} { return r.(*Track).InTrackHitsIndices }, func(r interface{}, data []byte) error {
			var v []int64
			if err := json.Unmarshal(data, &v); err != nil {
				return err
			}
			r.(*Track).InTrackHitsIndices = v
			return nil
		}),
		jsonField("outTrackHitsIndices", func(r interface{}) interface{} { return r.(*Track).OutTrackHitsIndices }, func(r interface{}, data []byte) error {
			var v []int64
			if err := json.Unmarshal(data, &v); err != nil {
				return err
			}
			r.(*Track).OutTrackHitsIndices = v
			return nil
		}),
	}
}

// DescribeSimpleFittedTrack is describe(SimpleFittedTrack).
func DescribeSimpleFittedTrack() Descriptor {
	return Descriptor{
		float64Field("x0", func(r interface{}) float64 { return r.(*SimpleFittedTrack).X0 }, func(r interface{}, v float64) { r.(*SimpleFittedTrack).X0 = v }),
		float64Field("y0", func(r interface{}) float64 { return r.(*SimpleFittedTrack).Y0 }, func(r interface{}, v float64) { r.(*SimpleFittedTrack).Y0 = v }),
		float64Field("tx", func(r interface{}) float64 { return r.(*SimpleFittedTrack).TX }, func(r interface{}, v float64) { r.(*SimpleFittedTrack).TX = v }),
		float64Field("ty", func(r interface{}) float64 { return r.(*SimpleFittedTrack).TY }, func(r interface{}, v float64) { r.(*SimpleFittedTrack).TY = v }),
		float64Field("chi2x", func(r interface{}) float64 { return r.(*SimpleFittedTrack).Chi2X }, func(r interface{}, v float64) { r.(*SimpleFittedTrack).Chi2X = v }),
		float64Field("chi2y", func(r interface{}) float64 { return r.(*SimpleFittedTrack).Chi2Y }, func(r interface{}, v float64) { r.(*SimpleFittedTrack).Chi2Y = v }),
		int64Field("ndf", func(r interface{}) int64 { return r.(*SimpleFittedTrack).Ndf }, func(r interface{}, v int64) { r.(*SimpleFittedTrack).Ndf = v }),
		boolField("valid", func(r interface{}) bool { return r.(*SimpleFittedTrack).Valid }, func(r interface{}, v bool) { r.(*SimpleFittedTrack).Valid = v }),
		jsonField("inTrackHitsIndices", func(r interface{}) interface{} { return r.(*SimpleFittedTrack).InTrackHitsIndices }, func(r interface{}, data []byte) error {
			var v []int64
			if err := json.Unmarshal(data, &v); err != nil {
				return err
			}
			r.(*SimpleFittedTrack).InTrackHitsIndices = v
			return nil
		}),
		jsonField("outTrackHitsIndices", func(r interface{}) interface{} { return r.(*SimpleFittedTrack).OutTrackHitsIndices }, func(r interface{}, data []byte) error {
			var v []int64
			if err := json.Unmarshal(data, &v); err != nil {
				return err
			}
			r.(*SimpleFittedTrack).OutTrackHitsIndices = v
			return nil
		}),
	}
}

// DescribeMCinfo is describe(MCinfo).
func DescribeMCinfo() Descriptor {
	return Descriptor{
		int64Field("eventID", func(r interface{}) int64 { return r.(*MCinfo).EventID }, func(r interface{}, v int64) { r.(*MCinfo).EventID = v }),
		float64Field("energy", func(r interface{}) float64 { return r.(*MCinfo).Energy }, func(r interface{}, v float64) { r.(*MCinfo).Energy = v }),
		float64Field("px", func(r interface{}) float64 { return r.(*MCinfo).Px }, func(r interface{}, v float64) { r.(*MCinfo).Px = v }),
		float64Field("py", func(r interface{}) float64 { return r.(*MCinfo).Py }, func(r interface{}, v float64) { r.(*MCinfo).Py = v }),
		float64Field("pz", func(r interface{}) float64 { return r.(*MCinfo).Pz }, func(r interface{}, v float64) { r.(*MCinfo).Pz = v }),
		float64Field("vx", func(r interface{}) float64 { return r.(*MCinfo).VX }, func(r interface{}, v float64) { r.(*MCinfo).VX = v }),
		float64Field("vy", func(r interface{}) float64 { return r.(*MCinfo).VY }, func(r interface{}, v float64) { r.(*MCinfo).VY = v }),
		float64Field("vz", func(r interface{}) float64 { return r.(*MCinfo).VZ }, func(r interface{}, v float64) { r.(*MCinfo).VZ = v }),
	}
}

// nested wraps d's fields so they write/read under an extra prefix
// segment and operate on the value project(rec) returns, rather than
// on rec directly. Used to compose TrackFindOutput out of Track and
// SimpleFittedTrack's own descriptors instead of hand-duplicating
// their fields.
func nested(segment string, d Descriptor, project func(rec interface{}) interface{}) Descriptor {
	out := make(Descriptor, len(d))
	for i, f := range d {
		f := f
		out[i] = ScalarField{
			Name: segment + "." + f.Name,
			Write: func(rec interface{}, w *column.Writer, prefix string) error {
				return f.Write(project(rec), w, prefix+"."+segment)
			},
			Read: func(rec interface{}, r *column.Reader, prefix string) error {
				return f.Read(project(rec), r, prefix+"."+segment)
			},
		}
	}
	return out
}

// DescribeTrackFindOutput is describe(TrackFindOutput): the writer
// output bundling a KF Track and a linear-fit SimpleFittedTrack under
// one EventStore key (SPEC_FULL.md §3), built by nesting each
// sub-record's own descriptor rather than duplicating their fields.
func DescribeTrackFindOutput() Descriptor {
	var out Descriptor
	out = append(out, nested("track", DescribeTrack(), func(rec interface{}) interface{} {
		return &rec.(*TrackFindOutput).Track
	})...)
	out = append(out, nested("fit", DescribeSimpleFittedTrack(), func(rec interface{}) interface{} {
		return &rec.(*TrackFindOutput).SimpleFittedTrack
	})...)
	return out
}
