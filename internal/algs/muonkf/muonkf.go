// Package muonkf implements the backward-sweeping 4-state Kalman
// filter muon tagger (spec §4.H), grounded on
// original_source/reco_alg/module/MuonKFAlg/MuonKFAlg.cpp. State and
// covariance are kept as small fixed-size arrays rather than a
// general matrix type, per the design note that a 4x4/2x2 filter
// should not reach for a linear-algebra dependency.
package muonkf

import (
	"fmt"
	"math"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/ahcal-reco/ahcal-reco/internal/edm"
	"github.com/ahcal-reco/ahcal-reco/internal/errkind"
	"github.com/ahcal-reco/ahcal-reco/internal/geocache"
	"github.com/ahcal-reco/ahcal-reco/internal/registry"
	"github.com/ahcal-reco/ahcal-reco/internal/runctx"
	"github.com/ahcal-reco/ahcal-reco/internal/store"
)

type cfg struct {
	InputKey  string `yaml:"in_recohit_key"`
	OutputKey string `yaml:"out_track_key"`

	LastNLayers        int `yaml:"lastNLayers"`
	MinUsedLayers      int `yaml:"minUsedLayers"`
	MaxConsecutiveSkips int `yaml:"maxConsecutiveSkips"`

	UseNmipWindow bool    `yaml:"useNmipWindow"`
	NmipMin       float64 `yaml:"nmipMin"`
	NmipMax       float64 `yaml:"nmipMax"`

	MeasSigmaXYmm float64 `yaml:"measSigmaXY_mm"`
	SigmaTheta    float64 `yaml:"sigmaTheta"`
	GateD2        float64 `yaml:"gateD2"`

	SeedLayerGap        int `yaml:"seedLayerGap"`
	MaxSeedHitsPerLayer int `yaml:"maxSeedHitsPerLayer"`

	SkipLayers []int `yaml:"skipLayers"`
}

func defaultCfg() cfg {
	return cfg{
		InputKey:            "RecoHits",
		OutputKey:           "MuonKFTrack",
		LastNLayers:         40,
		MinUsedLayers:       10,
		MaxConsecutiveSkips: 3,
		UseNmipWindow:       true,
		NmipMin:             0.2,
		NmipMax:             3.0,
		SigmaTheta:          0.004,
		GateD2:              9.0,
		SeedLayerGap:        4,
		MaxSeedHitsPerLayer: 8,
		SkipLayers:          []int{0, 2, 14},
	}
}

// Alg is the muon Kalman filter track tagger.
type Alg struct {
	name       string
	cfg        cfg
	geo        runctx.Geometry
	skipLayer  [edm.NumLayers]bool
}

func init() {
	registry.DefaultAlgRegistry().MustRegisterAlg("MuonKFAlg", func(ctx *runctx.Context, name string, node *yaml.Node) (registry.Alg, error) {
		a := &Alg{name: name, geo: ctx.Geometry, cfg: defaultCfg()}
		if node != nil {
			if err := node.Decode(&a.cfg); err != nil {
				return nil, fmt.Errorf("muonkf: %w: decode cfg: %v", errkind.ErrConfigError, err)
			}
		}
		if a.geo == nil {
			return nil, fmt.Errorf("muonkf: %w: no geometry provider in run context", errkind.ErrConfigError)
		}
		for _, l := range a.cfg.SkipLayers {
			if l >= 0 && l < edm.NumLayers {
				a.skipLayer[l] = true
			}
		}
		return a, nil
	})
}

func (a *Alg) Name() string      { return a.name }
func (a *Alg) Initialize() error { return nil }
func (a *Alg) Finalize() error   { return nil }

type hit struct {
	cellID int32
	x, y, z float64
	nmip   float64
	index  int64
}

// state4 is the KF's (x, y, tx, ty) state with its 4x4 covariance,
// kept as plain arrays since every operation here is closed-form.
type state4 struct {
	v [4]float64
	c [4][4]float64
	z float64

	chi2             float64
	ndof             int64
	consecutiveSkips int64
	used             []hit
}

func eye4() [4][4]float64 {
	var m [4][4]float64
	for i := 0; i < 4; i++ {
		m[i][i] = 1
	}
	return m
}

func mul4(a, b [4][4]float64) [4][4]float64 {
	var r [4][4]float64
	for i := 0; i < 4; i++ {
		for j := 0; j < 4; j++ {
			var s float64
			for k := 0; k < 4; k++ {
				s += a[i][k] * b[k][j]
			}
			r[i][j] = s
		}
	}
	return r
}

func transpose4(a [4][4]float64) [4][4]float64 {
	var r [4][4]float64
	for i := 0; i < 4; i++ {
		for j := 0; j < 4; j++ {
			r[i][j] = a[j][i]
		}
	}
	return r
}

// propagate advances the state to zTo: x += tx*dz, y += ty*dz, slopes
// unchanged, plus process noise sigmaTheta^2 on both slope variances.
func (s *state4) propagate(zTo, sigmaTheta float64) {
	dz := zTo - s.z
	f := eye4()
	f[0][2] = dz
	f[1][3] = dz

	var xNew [4]float64
	for i := 0; i < 4; i++ {
		var sum float64
		for j := 0; j < 4; j++ {
			sum += f[i][j] * s.v[j]
		}
		xNew[i] = sum
	}
	s.v = xNew

	ft := transpose4(f)
	fc := mul4(f, s.c)
	fcft := mul4(fc, ft)

	var q [4][4]float64
	q[2][2] = sigmaTheta * sigmaTheta
	q[3][3] = sigmaTheta * sigmaTheta
	for i := 0; i < 4; i++ {
		for j := 0; j < 4; j++ {
			s.c[i][j] = fcft[i][j] + q[i][j]
		}
	}
	s.z = zTo
}

// update applies the standard 2D-measurement KF update, returning
// false (numeric-degenerate or gated out) without mutating the state.
func (s *state4) update(h hit, sigmaXY, gateD2 float64) (d2 float64, ok bool) {
	rx := h.x - s.v[0]
	ry := h.y - s.v[1]

	s00 := s.c[0][0] + sigmaXY*sigmaXY
	s01 := s.c[0][1]
	s10 := s.c[1][0]
	s11 := s.c[1][1] + sigmaXY*sigmaXY

	det := s00*s11 - s01*s10
	if math.Abs(det) < 1e-24 {
		return 0, false
	}

	inv00 := s11 / det
	inv01 := -s01 / det
	inv10 := -s10 / det
	inv11 := s00 / det

	d2 = rx*(inv00*rx+inv01*ry) + ry*(inv10*rx+inv11*ry)
	if d2 > gateD2 {
		return d2, false
	}

	var k [4][2]float64
	for i := 0; i < 4; i++ {
		c0 := s.c[i][0]
		c1 := s.c[i][1]
		k[i][0] = c0*inv00 + c1*inv10
		k[i][1] = c0*inv01 + c1*inv11
	}

	for i := 0; i < 4; i++ {
		s.v[i] += k[i][0]*rx + k[i][1]*ry
	}

	m := eye4()
	for i := 0; i < 4; i++ {
		m[i][0] -= k[i][0]
		m[i][1] -= k[i][1]
	}
	mc := mul4(m, s.c)
	s.c = mc

	s.chi2 += d2
	s.ndof += 2
	s.consecutiveSkips = 0
	s.used = append(s.used, h)
	return d2, true
}

func defaultSigmaMM() float64 {
	return geocache.XYSize / math.Sqrt(12.0)
}

// Execute runs the seed-enumeration and backward sweep for one event
// (spec §4.H, §8 invariants 8-9, scenario S3).
func (a *Alg) Execute(s *store.Store) error {
	recoHits, err := store.Get[[]edm.RecoHit](s, a.cfg.InputKey)
	if err != nil {
		return fmt.Errorf("muonkf: %w", err)
	}

	track, ok := a.findMuonTrack(recoHits)
	if !ok {
		track = edm.Track{Valid: false}
	}
	store.Put(s, a.cfg.OutputKey, track)
	return nil
}

func (a *Alg) topKForSeed(hits []hit) []hit {
	out := make([]hit, 0, len(hits))
	for _, h := range hits {
		if a.cfg.UseNmipWindow && (h.nmip < a.cfg.NmipMin || h.nmip > a.cfg.NmipMax) {
			continue
		}
		out = append(out, h)
	}
	sort.Slice(out, func(i, j int) bool {
		return math.Abs(out[i].nmip-1.0) < math.Abs(out[j].nmip-1.0)
	})
	if len(out) > a.cfg.MaxSeedHitsPerLayer {
		out = out[:a.cfg.MaxSeedHitsPerLayer]
	}
	return out
}

func (a *Alg) pickNearest(hits []hit, xPred, yPred float64) (hit, bool) {
	best := hit{}
	bestD2 := math.Inf(1)
	found := false
	for _, h := range hits {
		if a.cfg.UseNmipWindow && (h.nmip < a.cfg.NmipMin || h.nmip > a.cfg.NmipMax) {
			continue
		}
		dx := h.x - xPred
		dy := h.y - yPred
		d2 := dx*dx + dy*dy
		if d2 < bestD2 {
			bestD2 = d2
			best = h
			found = true
		}
	}
	return best, found
}

func (a *Alg) findMuonTrack(recoHits []edm.RecoHit) (edm.Track, bool) {
	if len(recoHits) == 0 {
		return edm.Track{}, false
	}

	var byLayer [edm.NumLayers][]hit
	maxLayer := -1
	for _, rh := range recoHits {
		layer, _, _ := edm.DecodeCellID(rh.CellID)
		if layer < 0 || layer >= edm.NumLayers || a.skipLayer[layer] {
			continue
		}
		x, y, z := a.geo.Position(rh.CellID)
		byLayer[layer] = append(byLayer[layer], hit{cellID: rh.CellID, x: x, y: y, z: z, nmip: rh.Nmip, index: rh.Index})
		if layer > maxLayer {
			maxLayer = layer
		}
	}
	if maxLayer < 0 {
		return edm.Track{}, false
	}

	lEnd := maxLayer
	lStart := lEnd - a.cfg.LastNLayers + 1
	if lStart < 0 {
		lStart = 0
	}

	var layers []int
	for l := lStart; l <= lEnd; l++ {
		if a.skipLayer[l] {
			continue
		}
		if len(byLayer[l]) > 0 {
			layers = append(layers, l)
		}
	}
	if len(layers) < 3 {
		return edm.Track{}, false
	}

	sigmaXY := a.cfg.MeasSigmaXYmm
	if sigmaXY <= 0 {
		sigmaXY = defaultSigmaMM()
	}

	l2 := layers[len(layers)-1]
	hitsL2 := a.topKForSeed(byLayer[l2])
	if len(hitsL2) == 0 {
		return edm.Track{}, false
	}

	var seedL1s []int
	for i := len(layers) - 2; i >= 0 && len(seedL1s) < 4; i-- {
		if l2-layers[i] >= a.cfg.SeedLayerGap {
			seedL1s = append(seedL1s, layers[i])
		}
	}
	if len(seedL1s) == 0 {
		return edm.Track{}, false
	}

	z2 := byLayer[l2][0].z

	found := false
	bestScore := math.Inf(1)
	var best state4

	for _, l1 := range seedL1s {
		hitsL1 := a.topKForSeed(byLayer[l1])
		if len(hitsL1) == 0 {
			continue
		}
		z1 := byLayer[l1][0].z
		dz := z2 - z1
		if math.Abs(dz) < 1e-6 {
			continue
		}

		for _, h1 := range hitsL1 {
			for _, h2 := range hitsL2 {
				trk := state4{z: z2}
				trk.v[0] = h2.x
				trk.v[1] = h2.y
				trk.v[2] = (h2.x - h1.x) / dz
				trk.v[3] = (h2.y - h1.y) / dz
				trk.c[0][0] = sigmaXY * sigmaXY
				trk.c[1][1] = sigmaXY * sigmaXY
				const slope0 = 0.05
				trk.c[2][2] = slope0 * slope0
				trk.c[3][3] = slope0 * slope0
				trk.used = []hit{h2}

				for idx := len(layers) - 2; idx >= 0; idx-- {
					l := layers[idx]
					z := byLayer[l][0].z
					trk.propagate(z, a.cfg.SigmaTheta)

					candidate, ok := a.pickNearest(byLayer[l], trk.v[0], trk.v[1])
					if !ok {
						trk.consecutiveSkips++
						if trk.consecutiveSkips > int64(a.cfg.MaxConsecutiveSkips) {
							break
						}
						continue
					}

					if _, ok := trk.update(candidate, sigmaXY, a.cfg.GateD2); !ok {
						trk.consecutiveSkips++
						if trk.consecutiveSkips > int64(a.cfg.MaxConsecutiveSkips) {
							break
						}
						continue
					}
				}

				nUsed := len(trk.used)
				if nUsed < a.cfg.MinUsedLayers {
					continue
				}

				chi2ndof := 1e9
				if trk.ndof > 0 {
					chi2ndof = trk.chi2 / float64(trk.ndof)
				}
				score := chi2ndof + 2.0/float64(nUsed)

				if score < bestScore {
					bestScore = score
					best = trk
					found = true
				}
			}
		}
	}

	if !found {
		return edm.Track{}, false
	}

	out := edm.Track{
		X:                best.v[0],
		Y:                best.v[1],
		TX:               best.v[2],
		TY:               best.v[3],
		Z:                best.z,
		Chi2:             best.chi2,
		Ndof:             best.ndof,
		ConsecutiveSkips: best.consecutiveSkips,
		Valid:            true,
	}

	usedIndex := make(map[int64]bool, len(best.used))
	for _, h := range best.used {
		usedIndex[h.index] = true
		out.InTrackHitsIndices = append(out.InTrackHitsIndices, h.index)
	}
	for _, rh := range recoHits {
		if !usedIndex[rh.Index] {
			out.OutTrackHitsIndices = append(out.OutTrackHitsIndices, rh.Index)
		}
	}

	return out, true
}
