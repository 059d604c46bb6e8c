// Package edm holds the event data model (spec §3): the record types
// that flow through the EventStore, and their field descriptors
// (spec §4.A) used by the column I/O layer.
package edm

// RawHit is a single scintillator tile readout (spec §3).
// cellID packs layer*100000 + chip*10000 + channel; those subfields
// are derived on demand (see DecodeCellID), never stored independently.
type RawHit struct {
	CellID int32
	HGADC  int64
	LGADC  int64
	HitTag int64
	BCID   int64
	Index  int64
}

// TLURawData is the per-event trigger-level record (spec §3).
type TLURawData struct {
	Timestamp      int64
	BCID           int64
	DigitalInputs  [6]int32
	FineTimestamps [6]int64
	RunID          int64
	CycleID        int64
	TriggerID      int64
	EventTime      int64
}

// RecoHit is a calibrated energy deposit (spec §3). Position is a
// pure function of CellID via the geometry table (internal/geocache),
// not stored here.
type RecoHit struct {
	CellID int32
	Edep   float64
	Nmip   float64
	Index  int64
}

// Track is the muon Kalman filter's output (spec §3, §4.H).
type Track struct {
	X, Y, TX, TY, Z    float64
	Chi2               float64
	Ndof               int64
	ConsecutiveSkips   int64
	Valid              bool
	InTrackHitsIndices  []int64
	OutTrackHitsIndices []int64
}

// SimpleFittedTrack is the straight-line fit's output (spec §3, §4.G).
type SimpleFittedTrack struct {
	X0, Y0       float64
	TX, TY       float64
	Chi2X, Chi2Y float64
	Ndf          int64
	Valid        bool
	InTrackHitsIndices  []int64
	OutTrackHitsIndices []int64
}

// TrueHit is a Monte-Carlo truth hit, present only on MC-driven runs
// (spec original_source/common/edm/TrueHit.hpp, see SPEC_FULL.md §3).
type TrueHit struct {
	CellID  int32
	Edep    float64
	TrackID int64
	PdgID   int64
	X, Y, Z float64
}

// MCinfo is the per-event MC primary-particle record, loaded only by
// RootInput when listed in cfg.inputlist.
type MCinfo struct {
	EventID int64
	Energy  float64
	Px, Py, Pz float64
	VX, VY, VZ float64
}

// TrackFindOutput bundles a Track and a SimpleFittedTrack so one
// outputlist entry can persist both, a projection convenience
// (SPEC_FULL.md §3), not a new invariant. No algorithm in this module
// puts one into the EventStore.
type TrackFindOutput struct {
	Track             Track
	SimpleFittedTrack SimpleFittedTrack
}

// CellIDLayout is the fixed geometric subdivision (spec glossary).
const (
	NumLayers   = 40
	NumChips    = 9
	NumChannels = 36
)

// DecodeCellID splits a packed cellID into (layer, chip, channel).
func DecodeCellID(cellID int32) (layer, chip, channel int) {
	c := int(cellID)
	layer = c / 100000
	chip = (c / 10000) % 10
	channel = c % 10000
	return
}

// EncodeCellID is the inverse of DecodeCellID (spec §8 invariant 7).
func EncodeCellID(layer, chip, channel int) int32 {
	return int32(layer*100000 + chip*10000 + channel)
}
