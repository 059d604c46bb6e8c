package registry

import (
	"fmt"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/ahcal-reco/ahcal-reco/internal/errkind"
	"github.com/ahcal-reco/ahcal-reco/internal/runctx"
	"github.com/ahcal-reco/ahcal-reco/internal/store"
)

// Alg is the contract every pipeline algorithm implements (spec §4.E,
// grounded on original_source/common/IAlg.hpp). The factory combines
// construction and cfg parsing into one Creator call rather than the
// original's separate construct-then-parse_cfg step, since Go
// constructors can simply take the cfg node as an argument.
type Alg interface {
	Name() string
	Initialize() error
	Execute(s *store.Store) error
	Finalize() error
}

// Creator builds one algorithm instance from the run context, its
// declared pretty name, and its YAML cfg node.
type Creator func(ctx *runctx.Context, name string, cfg *yaml.Node) (Alg, error)

// AlgRegistry is the process-global algorithm-type → Creator map
// (grounded on original_source/common/AlgRegistry.hpp).
type AlgRegistry struct {
	mu       sync.Mutex
	creators map[string]Creator
}

var defaultAlgRegistry = &AlgRegistry{creators: map[string]Creator{}}

// DefaultAlgRegistry is the process-wide singleton algorithms
// self-register into from their package init() functions.
func DefaultAlgRegistry() *AlgRegistry { return defaultAlgRegistry }

// RegisterAlg adds type to the registry, or fails if already present.
func (r *AlgRegistry) RegisterAlg(typ string, c Creator) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.creators[typ]; exists {
		return fmt.Errorf("registry: %w: alg type %q already registered", errkind.ErrDuplicateRegistration, typ)
	}
	r.creators[typ] = c
	return nil
}

// MustRegisterAlg panics on duplicate registration; self-registration
// at package init time has no sensible error return path.
func (r *AlgRegistry) MustRegisterAlg(typ string, c Creator) {
	if err := r.RegisterAlg(typ, c); err != nil {
		panic(err)
	}
}

// Create constructs the named algorithm type.
func (r *AlgRegistry) Create(typ string, ctx *runctx.Context, name string, cfg *yaml.Node) (Alg, error) {
	r.mu.Lock()
	c, ok := r.creators[typ]
	r.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("registry: %w: unknown alg type %q", errkind.ErrConfigError, typ)
	}
	return c(ctx, name, cfg)
}

// AlgTypes returns every registered algorithm type name.
func (r *AlgRegistry) AlgTypes() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.creators))
	for t := range r.creators {
		out = append(out, t)
	}
	return out
}
