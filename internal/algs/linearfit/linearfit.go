// Package linearfit implements the straight-line track fit (spec
// §4.G), grounded on
// original_source/reco_alg/module/TrackFitAlg/TrackFitAlg.cpp. The
// original fits via ROOT's TGraphErrors+TF1; this package computes the
// same weighted linear regression in closed form instead of reaching
// for a general linear-algebra dependency, matching the KF's own
// design note that 1- and 2-parameter fits don't need one.
package linearfit

import (
	"fmt"
	"math"

	"gopkg.in/yaml.v3"

	"github.com/ahcal-reco/ahcal-reco/internal/edm"
	"github.com/ahcal-reco/ahcal-reco/internal/errkind"
	"github.com/ahcal-reco/ahcal-reco/internal/geocache"
	"github.com/ahcal-reco/ahcal-reco/internal/registry"
	"github.com/ahcal-reco/ahcal-reco/internal/runctx"
	"github.com/ahcal-reco/ahcal-reco/internal/store"
)

const maxSlope = 20.0

type cfg struct {
	InputKey    string  `yaml:"in_recohit_key"`
	OutputKey   string  `yaml:"out_track_key"`
	ThresholdXY float64 `yaml:"threshold_xy"`
}

// Alg is the two-projection weighted linear regression fit.
type Alg struct {
	name string
	cfg  cfg
	geo  runctx.Geometry
}

func init() {
	registry.DefaultAlgRegistry().MustRegisterAlg("TrackFitAlg", func(ctx *runctx.Context, name string, node *yaml.Node) (registry.Alg, error) {
		a := &Alg{
			name: name,
			geo:  ctx.Geometry,
			cfg:  cfg{InputKey: "RecoHits", OutputKey: "SimpleFittedTrack", ThresholdXY: 1.0},
		}
		if node != nil {
			if err := node.Decode(&a.cfg); err != nil {
				return nil, fmt.Errorf("linearfit: %w: decode cfg: %v", errkind.ErrConfigError, err)
			}
		}
		if a.geo == nil {
			return nil, fmt.Errorf("linearfit: %w: no geometry provider in run context", errkind.ErrConfigError)
		}
		return a, nil
	})
}

func (a *Alg) Name() string      { return a.name }
func (a *Alg) Initialize() error { return nil }
func (a *Alg) Finalize() error   { return nil }

type point struct {
	z, x, y float64
	index   int
}

// Execute fits the straight line and classifies every input hit (spec
// §4.G, §8 invariant 4, scenarios S1/S2).
func (a *Alg) Execute(s *store.Store) error {
	recoHits, err := store.Get[[]edm.RecoHit](s, a.cfg.InputKey)
	if err != nil {
		return fmt.Errorf("linearfit: %w", err)
	}

	pts := make([]point, 0, len(recoHits))
	for _, hit := range recoHits {
		if hit.Nmip < 0.5 {
			continue
		}
		x, y, z := a.geo.Position(hit.CellID)
		pts = append(pts, point{z: z, x: x, y: y, index: int(hit.Index)})
	}

	if len(pts) < 3 {
		store.Put(s, a.cfg.OutputKey, edm.SimpleFittedTrack{Valid: false})
		return nil
	}

	sigmaXY := geocache.XYSize / 2
	w := 1.0 / (sigmaXY * sigmaXY)

	ax, bx, chi2x := weightedLinFit(pts, w, func(p point) float64 { return p.x })
	ay, by, chi2y := weightedLinFit(pts, w, func(p point) float64 { return p.y })

	ax = clampSlope(ax)
	ay = clampSlope(ay)

	track := edm.SimpleFittedTrack{
		X0:    bx,
		Y0:    by,
		TX:    ax,
		TY:    ay,
		Chi2X: chi2x,
		Chi2Y: chi2y,
		Ndf:   int64(len(pts) - 2),
		Valid: true,
	}

	for _, hit := range recoHits {
		x, y, z := a.geo.Position(hit.CellID)
		xPred := bx + ax*z
		yPred := by + ay*z
		if math.Abs(x-xPred) < a.cfg.ThresholdXY && math.Abs(y-yPred) < a.cfg.ThresholdXY {
			track.InTrackHitsIndices = append(track.InTrackHitsIndices, hit.Index)
		} else {
			track.OutTrackHitsIndices = append(track.OutTrackHitsIndices, hit.Index)
		}
	}

	store.Put(s, a.cfg.OutputKey, track)
	return nil
}

// weightedLinFit solves y = a*z + b by weighted least squares with a
// uniform weight w, returning the fitted slope, intercept and chi2.
func weightedLinFit(pts []point, w float64, get func(point) float64) (a, b, chi2 float64) {
	var sumW, sumWz, sumWy, sumWzz, sumWzy float64
	for _, p := range pts {
		y := get(p)
		sumW += w
		sumWz += w * p.z
		sumWy += w * y
		sumWzz += w * p.z * p.z
		sumWzy += w * p.z * y
	}

	delta := sumW*sumWzz - sumWz*sumWz
	if delta == 0 {
		return 0, 0, 0
	}
	a = (sumW*sumWzy - sumWz*sumWy) / delta
	b = (sumWzz*sumWy - sumWz*sumWzy) / delta

	for _, p := range pts {
		y := get(p)
		res := y - (a*p.z + b)
		chi2 += w * res * res
	}
	return a, b, chi2
}

func clampSlope(a float64) float64 {
	if a > maxSlope {
		return maxSlope
	}
	if a < -maxSlope {
		return -maxSlope
	}
	return a
}
