// Package predict evaluates a fitted cluster expansion on new configurations.
package predict

import (
	"github.com/YuminosukeSato/tce/cluster"
	"github.com/YuminosukeSato/tce/core/parallel"
	"github.com/YuminosukeSato/tce/correlation"
	"github.com/YuminosukeSato/tce/lattice"
	"github.com/YuminosukeSato/tce/pkg/errors"
	"gonum.org/v1/gonum/floats"
)

// configurations per goroutine
const batchParallelThreshold = 4

type options struct {
	evaluator *correlation.Evaluator
}

// Option configures prediction.
type Option func(*options)

// WithEvaluator sets the correlation evaluator. It must use the basis the
// interactions were fitted with.
func WithEvaluator(e *correlation.Evaluator) Option {
	return func(o *options) { o.evaluator = e }
}

func resolve(opts []Option) options {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	if o.evaluator == nil {
		o.evaluator = correlation.NewEvaluator()
	}
	return o
}

// Predict returns the energy Σ ECI_o Φ_o(cfg).
func Predict(cfg *lattice.Configuration, orbits []cluster.Orbit, eci []float64, opts ...Option) (float64, error) {
	o := resolve(opts)
	return energy(o.evaluator, cfg, orbits, eci)
}

// PredictBatch predicts every configuration, in input order. Each entry
// equals the corresponding Predict call exactly.
func PredictBatch(cfgs []*lattice.Configuration, orbits []cluster.Orbit, eci []float64, opts ...Option) ([]float64, error) {
	const op = "predict.PredictBatch"
	if len(eci) != len(orbits) {
		return nil, errors.NewShapeError(op, "interactions", len(orbits), len(eci))
	}
	o := resolve(opts)

	out := make([]float64, len(cfgs))
	errs := make([]error, len(cfgs))
	parallel.ForEach(len(cfgs), batchParallelThreshold, func(i int) {
		errs[i] = errors.SafeExecute(op, func() error {
			e, err := energy(o.evaluator, cfgs[i], orbits, eci)
			if err != nil {
				return errors.Wrapf(err, "configuration %d", i)
			}
			out[i] = e
			return nil
		})
	})
	if err := errors.FirstError(errs); err != nil {
		return nil, err
	}
	return out, nil
}

// SwapEnergy returns the energy change of exchanging the species at sites
// i and j.
func SwapEnergy(cfg *lattice.Configuration, i, j int, orbits []cluster.Orbit, eci []float64, opts ...Option) (float64, error) {
	const op = "predict.SwapEnergy"
	if len(eci) != len(orbits) {
		return 0, errors.NewShapeError(op, "interactions", len(orbits), len(eci))
	}
	o := resolve(opts)
	delta, err := o.evaluator.SwapDelta(cfg, i, j, orbits)
	if err != nil {
		return 0, err
	}
	return floats.Dot(delta, eci), nil
}

func energy(ev *correlation.Evaluator, cfg *lattice.Configuration, orbits []cluster.Orbit, eci []float64) (float64, error) {
	const op = "predict.Predict"
	if len(eci) != len(orbits) {
		return 0, errors.NewShapeError(op, "interactions", len(orbits), len(eci))
	}
	if cfg == nil {
		return 0, errors.NewConfigurationError(op, "configuration", "nil configuration")
	}
	phi, err := ev.EvaluateVector(cfg, orbits)
	if err != nil {
		return 0, err
	}
	return floats.Dot(phi, eci), nil
}
