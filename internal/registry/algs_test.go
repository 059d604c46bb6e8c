package registry

import (
	"testing"

	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/ahcal-reco/ahcal-reco/internal/errkind"
	"github.com/ahcal-reco/ahcal-reco/internal/runctx"
	"github.com/ahcal-reco/ahcal-reco/internal/store"
)

type fakeAlg struct {
	name string
}

func (a *fakeAlg) Name() string                 { return a.name }
func (a *fakeAlg) Initialize() error            { return nil }
func (a *fakeAlg) Execute(s *store.Store) error { return nil }
func (a *fakeAlg) Finalize() error              { return nil }

func newTestRegistry() *AlgRegistry {
	return &AlgRegistry{creators: map[string]Creator{}}
}

func TestCreateBuildsRegisteredType(t *testing.T) {
	r := newTestRegistry()
	var gotName string
	r.MustRegisterAlg("FakeAlg", func(ctx *runctx.Context, name string, cfg *yaml.Node) (Alg, error) {
		gotName = name
		return &fakeAlg{name: name}, nil
	})

	alg, err := r.Create("FakeAlg", &runctx.Context{}, "myalg", nil)
	require.NoError(t, err)
	require.Equal(t, "myalg", alg.Name())
	require.Equal(t, "myalg", gotName)
}

func TestCreateUnknownTypeIsConfigError(t *testing.T) {
	r := newTestRegistry()
	_, err := r.Create("NoSuchType", &runctx.Context{}, "x", nil)
	require.Error(t, err)
	require.ErrorIs(t, err, errkind.ErrConfigError)
}

func TestRegisterAlgDuplicatePanics(t *testing.T) {
	r := newTestRegistry()
	creator := func(ctx *runctx.Context, name string, cfg *yaml.Node) (Alg, error) {
		return &fakeAlg{name: name}, nil
	}
	r.MustRegisterAlg("Dup", creator)

	require.Panics(t, func() {
		r.MustRegisterAlg("Dup", creator)
	})
}

func TestAlgTypesListsRegistered(t *testing.T) {
	r := newTestRegistry()
	r.MustRegisterAlg("A", func(ctx *runctx.Context, name string, cfg *yaml.Node) (Alg, error) { return nil, nil })
	r.MustRegisterAlg("B", func(ctx *runctx.Context, name string, cfg *yaml.Node) (Alg, error) { return nil, nil })

	require.ElementsMatch(t, []string{"A", "B"}, r.AlgTypes())
}
