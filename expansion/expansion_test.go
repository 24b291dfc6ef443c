package expansion

import (
	"bytes"
	"encoding/json"
	"math"
	"math/rand/v2"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/YuminosukeSato/tce/cluster"
	"github.com/YuminosukeSato/tce/config"
	"github.com/YuminosukeSato/tce/correlation"
	"github.com/YuminosukeSato/tce/lattice"
	"github.com/YuminosukeSato/tce/pkg/errors"
	"github.com/YuminosukeSato/tce/pkg/log"
)

var (
	binary   = lattice.Alphabet{"A", "B"}
	trueECI  = []float64{-0.5, 0.1, -1}
	chainCfg = func() config.Config {
		c := config.Default()
		c.MaxOrder = 2
		c.MaxDiameter = 1.0
		c.Regularization = []float64{0, 1e-8}
		c.Folds = 3
		return c
	}
)

func randomChain(t *testing.T, lat *lattice.Lattice, rng *rand.Rand, n int) *lattice.Configuration {
	t.Helper()
	sc, err := lat.EnumerateSupercell([3][3]float64{{float64(n), 0, 0}, {0, 1, 0}, {0, 0, 1}})
	require.NoError(t, err)
	idx := make([]int, n)
	for i := range idx {
		idx[i] = rng.IntN(2)
	}
	cfg, err := lattice.NewConfigurationFromIndices(sc, idx)
	require.NoError(t, err)
	return cfg
}

// samples labelled by the model trueECI (per site).
func chainSamples(t *testing.T) (*lattice.Lattice, []Sample) {
	t.Helper()
	lat, err := lattice.Preset(lattice.Chain, 1.0, binary)
	require.NoError(t, err)
	orbits, err := cluster.EnumerateOrbits(lat, 2, 1.0)
	require.NoError(t, err)

	rng := rand.New(rand.NewPCG(11, 13))
	var samples []Sample
	for i := 0; i < 15; i++ {
		cfg := randomChain(t, lat, rng, 2+i%7)
		phi, err := correlation.EvaluateVector(cfg, orbits)
		require.NoError(t, err)
		var e float64
		for k := range phi {
			e += trueECI[k] * phi[k]
		}
		samples = append(samples, Sample{ID: string(rune('a' + i)), Configuration: cfg, Energy: e * float64(cfg.NumSites())})
	}
	return lat, samples
}

func silenceWarnings(t *testing.T) {
	t.Helper()
	errors.SetZerologWarnFunc(nil)
	errors.SetWarningHandler(func(error) {})
}

func TestTrainRecoversModel(t *testing.T) {
	silenceWarnings(t)
	lat, samples := chainSamples(t)
	cache, err := cluster.NewCache(4)
	require.NoError(t, err)
	logger, _ := log.NewTestLogger(log.LevelInfo)

	ce, err := Train(samples, chainCfg(), WithOrbitCache(cache), WithLogger(logger))
	require.NoError(t, err)
	require.Len(t, ce.Orbits, 3)
	require.InDeltaSlice(t, trueECI, []float64(ce.ECI), 1e-6)
	require.Less(t, ce.Diagnostics.CVRMSE, 1e-6)
	require.True(t, logger.ContainsMessage("trained cluster expansion"))

	rng := rand.New(rand.NewPCG(5, 5))
	cfg := randomChain(t, lat, rng, 9)
	phi, err := ce.Correlations(cfg)
	require.NoError(t, err)
	var want float64
	for k := range phi {
		want += trueECI[k] * phi[k]
	}
	got, err := ce.Predict(cfg)
	require.NoError(t, err)
	require.InDelta(t, want, got, 1e-6)

	// every training energy is reproduced within the in-sample RMSE bound
	bound := math.Sqrt(float64(len(samples)))*ce.Diagnostics.RMSE + 1e-9
	for _, s := range samples {
		e, err := ce.Predict(s.Configuration)
		require.NoError(t, err)
		require.InDelta(t, s.Energy/float64(s.Configuration.NumSites()), e, bound, s.ID)
	}

	// second call hits the orbit cache
	_, err = Train(samples, chainCfg(), WithOrbitCache(cache), WithLogger(logger))
	require.NoError(t, err)
	hits, _ := cache.Stats()
	require.Equal(t, int64(1), hits)
}

func TestTrainErrors(t *testing.T) {
	silenceWarnings(t)
	_, samples := chainSamples(t)

	_, err := Train(nil, chainCfg())
	require.True(t, errors.IsConfigurationError(err))

	bad := chainCfg()
	bad.Folds = 1
	_, err = Train(samples, bad)
	require.True(t, errors.IsConfigurationError(err))

	weighted := append([]Sample(nil), samples...)
	weighted[0].Weight = 2
	_, err = Train(weighted, chainCfg())
	require.True(t, errors.IsConfigurationError(err))

	many := chainCfg()
	many.Folds = 20
	_, err = Train(samples, many)
	require.True(t, errors.IsFitError(err))
}

func TestJSONRoundTripPreservesPredictions(t *testing.T) {
	silenceWarnings(t)
	lat, samples := chainSamples(t)
	ce, err := Train(samples, chainCfg())
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, ce.WriteJSON(&buf))
	loaded, err := ReadJSON(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)

	require.Equal(t, ce.Lattice.Fingerprint(), loaded.Lattice.Fingerprint())
	require.Equal(t, []float64(ce.ECI), []float64(loaded.ECI))
	require.Equal(t, ce.Params, loaded.Params)
	require.Equal(t, ce.Diagnostics.Path, loaded.Diagnostics.Path)
	require.Equal(t, ce.Diagnostics.MAE, loaded.Diagnostics.MAE)
	require.Equal(t, ce.Diagnostics.MaxError, loaded.Diagnostics.MaxError)
	require.Equal(t, ce.Diagnostics.R2, loaded.Diagnostics.R2)
	require.Contains(t, buf.String(), `"max_error"`)

	rng := rand.New(rand.NewPCG(21, 22))
	var cfgs []*lattice.Configuration
	for i := 0; i < 6; i++ {
		cfgs = append(cfgs, randomChain(t, lat, rng, 3+i))
	}
	want, err := ce.PredictBatch(cfgs)
	require.NoError(t, err)
	got, err := loaded.PredictBatch(cfgs)
	require.NoError(t, err)
	require.Equal(t, want, got)

	dWant, err := ce.SwapEnergy(cfgs[5], 0, 1)
	require.NoError(t, err)
	dGot, err := loaded.SwapEnergy(cfgs[5], 0, 1)
	require.NoError(t, err)
	require.Equal(t, dWant, dGot)
}

func TestGobRoundTrip(t *testing.T) {
	silenceWarnings(t)
	lat, samples := chainSamples(t)
	ce, err := Train(samples, chainCfg())
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "chain.gob")
	require.NoError(t, ce.Save(path))
	loaded, err := Load(path)
	require.NoError(t, err)

	cfg := randomChain(t, lat, rand.New(rand.NewPCG(1, 1)), 8)
	want, err := ce.Predict(cfg)
	require.NoError(t, err)
	got, err := loaded.Predict(cfg)
	require.NoError(t, err)
	require.Equal(t, want, got)

	_, err = Load(filepath.Join(t.TempDir(), "missing.gob"))
	require.Error(t, err)
}

func TestReadJSONRejectsInconsistentDocuments(t *testing.T) {
	silenceWarnings(t)
	_, samples := chainSamples(t)
	ce, err := Train(samples, chainCfg())
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, ce.WriteJSON(&buf))
	edit := func(f func(d *document)) *bytes.Reader {
		var doc document
		require.NoError(t, json.Unmarshal(buf.Bytes(), &doc))
		f(&doc)
		out, err := json.Marshal(doc)
		require.NoError(t, err)
		return bytes.NewReader(out)
	}

	_, err = ReadJSON(edit(func(d *document) { d.Lattice.Fingerprint = "0000" }))
	require.True(t, errors.IsConfigurationError(err))

	_, err = ReadJSON(edit(func(d *document) { d.ECI = d.ECI[:2] }))
	require.True(t, errors.IsShapeError(err))

	_, err = ReadJSON(edit(func(d *document) { d.Version = 99 }))
	require.True(t, errors.IsConfigurationError(err))

	_, err = ReadJSON(edit(func(d *document) { d.Orbits[1].Multiplicity = 7 }))
	require.True(t, errors.IsConfigurationError(err))

	_, err = ReadJSON(edit(func(d *document) { d.Orbits[2].Functions = []int{1} }))
	require.True(t, errors.IsShapeError(err))

	_, err = ReadJSON(strings.NewReader(`{"version": 1, "extra": true}`))
	require.True(t, errors.IsConfigurationError(err))
}

func TestWriteECITable(t *testing.T) {
	silenceWarnings(t)
	_, samples := chainSamples(t)
	ce, err := Train(samples, chainCfg())
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, ce.WriteECITable(&buf))
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 4)
	require.Equal(t, "index,order,diameter,multiplicity,representative,eci", lines[0])
	require.True(t, strings.HasPrefix(lines[1], "0,0,0,1,{},"))

	table := ce.ECITable()
	require.Equal(t, 2, table[2].Order)
	require.Equal(t, 1.0, table[2].Diameter)
}
