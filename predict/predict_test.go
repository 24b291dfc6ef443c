package predict

import (
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/YuminosukeSato/tce/cluster"
	"github.com/YuminosukeSato/tce/correlation"
	"github.com/YuminosukeSato/tce/lattice"
	"github.com/YuminosukeSato/tce/pkg/errors"
)

var binary = lattice.Alphabet{"A", "B"}

func chain(t *testing.T) (*lattice.Lattice, []cluster.Orbit) {
	t.Helper()
	lat, err := lattice.Preset(lattice.Chain, 1.0, binary)
	require.NoError(t, err)
	orbits, err := cluster.EnumerateOrbits(lat, 2, 1.0)
	require.NoError(t, err)
	require.Len(t, orbits, 3)
	return lat, orbits
}

func chainConfiguration(t *testing.T, lat *lattice.Lattice, species ...string) *lattice.Configuration {
	t.Helper()
	sc, err := lat.EnumerateSupercell([3][3]float64{{float64(len(species)), 0, 0}, {0, 1, 0}, {0, 0, 1}})
	require.NoError(t, err)
	cfg, err := lattice.NewConfiguration(sc, species)
	require.NoError(t, err)
	return cfg
}

func TestPredict(t *testing.T) {
	lat, orbits := chain(t)
	eci := []float64{0.5, 0.1, -1}

	e, err := Predict(chainConfiguration(t, lat, "A", "B"), orbits, eci)
	require.NoError(t, err)
	require.InDelta(t, 1.5, e, 1e-15)

	e, err = Predict(chainConfiguration(t, lat, "A", "A"), orbits, eci)
	require.NoError(t, err)
	require.InDelta(t, -0.4, e, 1e-15)

	_, err = Predict(chainConfiguration(t, lat, "A", "A"), orbits, eci[:2])
	require.True(t, errors.IsShapeError(err))
}

func TestPredictBatchMatchesIndividualCalls(t *testing.T) {
	lat, orbits := chain(t)
	eci := []float64{-0.3, 0.02, 0.125}
	rng := rand.New(rand.NewPCG(1, 2))

	var cfgs []*lattice.Configuration
	for i := 0; i < 12; i++ {
		species := make([]string, 2+i)
		for j := range species {
			species[j] = binary[rng.IntN(2)]
		}
		cfgs = append(cfgs, chainConfiguration(t, lat, species...))
	}

	ev := correlation.NewEvaluator(correlation.WithStrategy(correlation.Sparse))
	batch, err := PredictBatch(cfgs, orbits, eci, WithEvaluator(ev))
	require.NoError(t, err)
	require.Len(t, batch, len(cfgs))
	for i, cfg := range cfgs {
		single, err := Predict(cfg, orbits, eci, WithEvaluator(ev))
		require.NoError(t, err)
		require.Equal(t, single, batch[i], "configuration %d", i)
	}

	_, err = PredictBatch(cfgs, orbits, eci[:1])
	require.True(t, errors.IsShapeError(err))
}

func TestSwapEnergy(t *testing.T) {
	lat, orbits := chain(t)
	eci := []float64{0.5, 0.1, -1}

	before := chainConfiguration(t, lat, "A", "A", "B", "B")
	after, err := before.Swap(1, 2)
	require.NoError(t, err)

	delta, err := SwapEnergy(before, 1, 2, orbits, eci)
	require.NoError(t, err)
	require.InDelta(t, 1.0, delta, 1e-12)

	e0, err := Predict(before, orbits, eci)
	require.NoError(t, err)
	e1, err := Predict(after, orbits, eci)
	require.NoError(t, err)
	require.InDelta(t, e1-e0, delta, 1e-12)

	_, err = SwapEnergy(before, 1, 2, orbits, eci[:2])
	require.True(t, errors.IsShapeError(err))
}
