package config

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/YuminosukeSato/tce/correlation"
	"github.com/YuminosukeSato/tce/lattice"
	"github.com/YuminosukeSato/tce/pkg/errors"
	"github.com/YuminosukeSato/tce/pkg/log"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(strings.NewReader(""))
	require.NoError(t, err)
	require.Equal(t, Default(), cfg)
	require.Equal(t, 3, cfg.MaxOrder)
	require.Equal(t, 5, cfg.Folds)
	require.True(t, cfg.PerAtom)
	require.Equal(t, log.LevelInfo, cfg.Level())
}

func TestLoadOverrides(t *testing.T) {
	in := `
max_order: 2
max_diameter: 1.5
regularization: [0.01, 0.1]
penalty: lasso
l1_ratio: 0.5
folds: 3
shuffle: true
seed: 7
per_atom: false
basis: indicator
contraction: sparse
log_level: debug
log_format: slog
`
	cfg, err := Load(strings.NewReader(in))
	require.NoError(t, err)
	require.Equal(t, 2, cfg.MaxOrder)
	require.Equal(t, 1.5, cfg.MaxDiameter)
	require.Equal(t, []float64{0.01, 0.1}, cfg.Regularization)
	require.Equal(t, "lasso", cfg.Penalty)
	require.Equal(t, 0.5, cfg.L1Ratio)
	require.Equal(t, 3, cfg.Folds)
	require.True(t, cfg.Shuffle)
	require.Equal(t, 7, cfg.Seed)
	require.False(t, cfg.PerAtom)
	require.Equal(t, log.LevelDebug, cfg.Level())
	require.Equal(t, "slog", cfg.LogFormat)
	// untouched fields keep defaults
	require.Equal(t, 2, cfg.MaxShell)
	require.Equal(t, 16, cfg.TableCache)

	ev, err := cfg.Evaluator(nil)
	require.NoError(t, err)
	require.Equal(t, "indicator", ev.Basis().Name())
	require.Equal(t, correlation.Sparse, ev.Strategy())

	opts, err := cfg.FitOptions()
	require.NoError(t, err)
	require.Len(t, opts, 6)
}

func TestLoadRejectsInvalid(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"unknown key", "max_orders: 2\n"},
		{"malformed", "max_order: [\n"},
		{"negative diameter", "max_diameter: -1\n"},
		{"no shell", "max_shell: 0\n"},
		{"empty grid", "regularization: []\n"},
		{"negative lambda", "regularization: [0.1, -1]\n"},
		{"penalty", "penalty: l0\n"},
		{"l1 ratio", "l1_ratio: 2\n"},
		{"folds", "folds: 1\n"},
		{"basis", "basis: chebyshev\n"},
		{"contraction", "contraction: dense\n"},
		{"cache", "table_cache: -1\n"},
		{"log level", "log_level: loud\n"},
		{"log format", "log_format: logfmt\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(strings.NewReader(tt.input))
			require.Error(t, err)
			require.True(t, errors.IsConfigurationError(err), "%v", err)
		})
	}
}

func TestCutoff(t *testing.T) {
	lat, err := lattice.Preset(lattice.FCC, 1.0, lattice.Alphabet{"A", "B"})
	require.NoError(t, err)

	cfg := Default()
	d, err := cfg.Cutoff(lat)
	require.NoError(t, err)
	require.InDelta(t, 1.0, d, 1e-8)

	cfg.MaxShell = 1
	d, err = cfg.Cutoff(lat)
	require.NoError(t, err)
	require.InDelta(t, 1/1.4142135623730951, d, 1e-8)

	cfg.MaxDiameter = 2.5
	d, err = cfg.Cutoff(lat)
	require.NoError(t, err)
	require.Equal(t, 2.5, d)
}
