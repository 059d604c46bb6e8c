// Package adctoenergy implements the gain-switch ADC→Energy
// reconstruction (spec §4.F), grounded on
// original_source/adc_to_energy/AdcToEnergyReadTTreeAlg.cpp. Table
// loading itself lives in internal/calib; this package only applies
// the per-hit physics.
package adctoenergy

import (
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/ahcal-reco/ahcal-reco/internal/edm"
	"github.com/ahcal-reco/ahcal-reco/internal/errkind"
	"github.com/ahcal-reco/ahcal-reco/internal/registry"
	"github.com/ahcal-reco/ahcal-reco/internal/runctx"
	"github.com/ahcal-reco/ahcal-reco/internal/store"
)

// Reference constants from AHCALRefValues.hpp.
const (
	mipEnergyMeV  = 0.461
	switchPointHG = 500.0
)

type cfg struct {
	InputKey  string `yaml:"input_key"`
	OutputKey string `yaml:"output_key"`
}

// Alg converts a RawHit sequence into a RecoHit sequence.
type Alg struct {
	name string
	cfg  cfg
	calib runctx.Calibration
}

func init() {
	registry.DefaultAlgRegistry().MustRegisterAlg("AdcToEnergyAlg", func(ctx *runctx.Context, name string, node *yaml.Node) (registry.Alg, error) {
		a := &Alg{name: name, calib: ctx.Calibration, cfg: cfg{InputKey: "RawHits", OutputKey: "RecoHits"}}
		if node != nil {
			if err := node.Decode(&a.cfg); err != nil {
				return nil, fmt.Errorf("adctoenergy: %w: decode cfg: %v", errkind.ErrConfigError, err)
			}
		}
		if a.calib == nil {
			return nil, fmt.Errorf("adctoenergy: %w: no calibration store in run context", errkind.ErrConfigError)
		}
		return a, nil
	})
}

func (a *Alg) Name() string { return a.name }

func (a *Alg) Initialize() error { return nil }

func (a *Alg) Finalize() error { return nil }

// Execute runs the gain-switch reconstruction for every RawHit (spec
// §4.F). Reconstruction is per-hit and carries no algorithm state, so
// a calibration load failure surfaced earlier would already have
// stopped pipeline construction; this step cannot itself fail.
func (a *Alg) Execute(s *store.Store) error {
	raw, err := store.Get[[]edm.RawHit](s, a.cfg.InputKey)
	if err != nil {
		return fmt.Errorf("adctoenergy: %w", err)
	}

	out := make([]edm.RecoHit, len(raw))
	for i, hit := range raw {
		out[i] = a.reconstruct(hit)
	}
	store.Put(s, a.cfg.OutputKey, out)
	return nil
}

func (a *Alg) reconstruct(hit edm.RawHit) edm.RecoHit {
	c := hit.CellID
	mip := a.calib.MIP(c)
	pedHG := a.calib.PedHG(c)
	pedLG := a.calib.PedLG(c)
	gainRatio := a.calib.GainRatio(c)
	gainPlat := a.calib.GainPlat(c)

	var nmip float64
	if float64(hit.HGADC)-pedHG < gainPlat-switchPointHG {
		nmip = (float64(hit.HGADC) - pedHG) / mip
	} else {
		nmip = (float64(hit.LGADC) - pedLG) * gainRatio / mip
	}

	edep := nmip * mipEnergyMeV
	if edep < 0 {
		edep = 0
		nmip = 0
	}

	return edm.RecoHit{
		CellID: c,
		Edep:   edep,
		Nmip:   nmip,
		Index:  hit.Index,
	}
}
