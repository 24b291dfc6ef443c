// Package config holds the training parameters of a cluster expansion and
// loads them from YAML.
package config

import (
	"io"
	"math"

	"gopkg.in/yaml.v3"

	"github.com/YuminosukeSato/tce/correlation"
	"github.com/YuminosukeSato/tce/design"
	"github.com/YuminosukeSato/tce/fit"
	"github.com/YuminosukeSato/tce/lattice"
	"github.com/YuminosukeSato/tce/pkg/errors"
	"github.com/YuminosukeSato/tce/pkg/log"
)

// Config is the full set of training parameters.
type Config struct {
	// MaxOrder is the largest cluster order. Below 1 only the empty cluster
	// is kept.
	MaxOrder int `yaml:"max_order" json:"max_order"`
	// MaxDiameter is the cluster diameter cutoff. Zero means the MaxShell-th
	// neighbour shell distance.
	MaxDiameter float64 `yaml:"max_diameter" json:"max_diameter"`
	MaxShell    int     `yaml:"max_shell" json:"max_shell"`

	Regularization []float64 `yaml:"regularization" json:"regularization"`
	Penalty        string    `yaml:"penalty" json:"penalty"`
	L1Ratio        float64   `yaml:"l1_ratio" json:"l1_ratio"`
	Folds          int       `yaml:"folds" json:"folds"`
	Shuffle        bool      `yaml:"shuffle" json:"shuffle"`
	Seed           int       `yaml:"seed" json:"seed"`

	PerAtom              bool   `yaml:"per_atom" json:"per_atom"`
	Basis                string `yaml:"basis" json:"basis"`
	Contraction          string `yaml:"contraction" json:"contraction"`
	TableCache           int    `yaml:"table_cache" json:"table_cache"`
	LargeSystemThreshold int    `yaml:"large_system_threshold" json:"large_system_threshold"`

	LogLevel string `yaml:"log_level" json:"log_level"`
	// LogFormat selects the logging backend: zerolog or slog.
	LogFormat string `yaml:"log_format" json:"log_format"`
}

// Default returns the default configuration.
func Default() Config {
	return Config{
		MaxOrder:             3,
		MaxShell:             2,
		Regularization:       fit.DefaultGrid(),
		Penalty:              string(fit.Ridge),
		L1Ratio:              1.0,
		Folds:                5,
		PerAtom:              true,
		Basis:                correlation.Trigonometric{}.Name(),
		Contraction:          correlation.Auto.String(),
		TableCache:           16,
		LargeSystemThreshold: design.DefaultLargeSystemThreshold,
		LogLevel:             "info",
		LogFormat:            "zerolog",
	}
}

// Load decodes YAML from r on top of the defaults and validates the result.
// Unknown keys are rejected. An empty document yields the defaults.
func Load(r io.Reader) (Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && err != io.EOF {
		return Config{}, errors.NewConfigurationErrorf("config.Load", "yaml", "%v", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks every field and returns a ConfigurationError naming the
// first invalid one.
func (c Config) Validate() error {
	const op = "config.Validate"
	if math.IsNaN(c.MaxDiameter) || math.IsInf(c.MaxDiameter, 0) || c.MaxDiameter < 0 {
		return errors.NewValidationError("max_diameter", "must be finite and non-negative", c.MaxDiameter)
	}
	if c.MaxDiameter == 0 && c.MaxShell < 1 {
		return errors.NewConfigurationErrorf(op, "max_shell", "must be at least 1 when max_diameter is unset, got %d", c.MaxShell)
	}
	if len(c.Regularization) == 0 {
		return errors.NewConfigurationError(op, "regularization", "empty grid")
	}
	for _, l := range c.Regularization {
		if !(l >= 0) || math.IsInf(l, 0) {
			return errors.NewConfigurationErrorf(op, "regularization", "must be finite and non-negative, got %g", l)
		}
	}
	if _, err := fit.ParsePenalty(c.Penalty); err != nil {
		return err
	}
	if !(c.L1Ratio >= 0 && c.L1Ratio <= 1) {
		return errors.NewValidationError("l1_ratio", "must be in [0, 1]", c.L1Ratio)
	}
	if c.Folds < 2 {
		return errors.NewValidationError("folds", "must be at least 2", c.Folds)
	}
	if _, err := correlation.ParseBasis(c.Basis); err != nil {
		return err
	}
	if _, err := correlation.ParseStrategy(c.Contraction); err != nil {
		return err
	}
	if c.TableCache < 0 {
		return errors.NewValidationError("table_cache", "must be non-negative", c.TableCache)
	}
	if _, ok := log.ParseLevel(c.LogLevel); !ok {
		return errors.NewConfigurationErrorf(op, "log_level", "unknown level %q", c.LogLevel)
	}
	if _, ok := log.ParseFormat(c.LogFormat); !ok {
		return errors.NewConfigurationErrorf(op, "log_format", "unknown format %q", c.LogFormat)
	}
	return nil
}

// Cutoff returns the diameter cutoff for lat.
func (c Config) Cutoff(lat *lattice.Lattice) (float64, error) {
	if c.MaxDiameter > 0 {
		return c.MaxDiameter, nil
	}
	shells := lat.NeighborShells(c.MaxShell)
	if len(shells) < c.MaxShell || c.MaxShell < 1 {
		return 0, errors.NewConfigurationErrorf("config.Cutoff", "max_shell", "lattice has fewer than %d neighbour shells", c.MaxShell)
	}
	// slightly past the shell so rounding never drops it
	return shells[c.MaxShell-1] * (1 + 1e-9), nil
}

// Evaluator builds the correlation evaluator the configuration describes.
func (c Config) Evaluator(logger log.Logger) (*correlation.Evaluator, error) {
	b, err := correlation.ParseBasis(c.Basis)
	if err != nil {
		return nil, err
	}
	s, err := correlation.ParseStrategy(c.Contraction)
	if err != nil {
		return nil, err
	}
	opts := []correlation.Option{correlation.WithBasis(b), correlation.WithStrategy(s)}
	if c.TableCache > 0 {
		opts = append(opts, correlation.WithTableCache(c.TableCache))
	}
	if logger != nil {
		opts = append(opts, correlation.WithLogger(logger))
	}
	return correlation.NewEvaluator(opts...), nil
}

// FitOptions translates the fitting fields into fit options.
func (c Config) FitOptions() ([]fit.Option, error) {
	p, err := fit.ParsePenalty(c.Penalty)
	if err != nil {
		return nil, err
	}
	return []fit.Option{
		fit.WithGrid(c.Regularization),
		fit.WithPenalty(p),
		fit.WithL1Ratio(c.L1Ratio),
		fit.WithFolds(c.Folds),
		fit.WithShuffle(c.Shuffle),
		fit.WithSeed(c.Seed),
	}, nil
}

// Level returns the configured log level.
func (c Config) Level() log.Level {
	l, _ := log.ParseLevel(c.LogLevel)
	return l
}
