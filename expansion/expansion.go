// Package expansion ties the pipeline together: it trains a cluster
// expansion from labelled configurations, predicts with it and persists it.
package expansion

import (
	"sync"

	"github.com/YuminosukeSato/tce/cluster"
	"github.com/YuminosukeSato/tce/config"
	"github.com/YuminosukeSato/tce/correlation"
	"github.com/YuminosukeSato/tce/fit"
	"github.com/YuminosukeSato/tce/lattice"
	"github.com/YuminosukeSato/tce/pkg/errors"
	"github.com/YuminosukeSato/tce/predict"
)

// ClusterExpansion is a fitted effective Hamiltonian. Predictions are in the
// units it was trained on: per site when Params.PerAtom is set.
type ClusterExpansion struct {
	Lattice     *lattice.Lattice
	Orbits      []cluster.Orbit
	ECI         fit.ECIVector
	Diagnostics fit.Diagnostics
	Params      config.Config

	once      sync.Once
	evaluator *correlation.Evaluator
	evalErr   error
}

// New assembles an expansion and checks that its parts agree.
func New(lat *lattice.Lattice, orbits []cluster.Orbit, eci []float64, diag fit.Diagnostics, params config.Config) (*ClusterExpansion, error) {
	const op = "expansion.New"
	if lat == nil {
		return nil, errors.NewConfigurationError(op, "lattice", "nil lattice")
	}
	if len(eci) != len(orbits) {
		return nil, errors.NewShapeError(op, "interactions", len(orbits), len(eci))
	}
	if err := errors.CheckFinite(op, "interaction", eci); err != nil {
		return nil, err
	}
	for i, o := range orbits {
		if o.Lattice != "" && o.Lattice != lat.Fingerprint() {
			return nil, errors.NewConfigurationErrorf(op, "orbit", "orbit %d belongs to a different lattice", i)
		}
	}
	if err := params.Validate(); err != nil {
		return nil, err
	}
	return &ClusterExpansion{
		Lattice:     lat,
		Orbits:      orbits,
		ECI:         append(fit.ECIVector(nil), eci...),
		Diagnostics: diag,
		Params:      params,
	}, nil
}

func (ce *ClusterExpansion) options() ([]predict.Option, error) {
	ce.once.Do(func() {
		ce.evaluator, ce.evalErr = ce.Params.Evaluator(nil)
	})
	if ce.evalErr != nil {
		return nil, ce.evalErr
	}
	return []predict.Option{predict.WithEvaluator(ce.evaluator)}, nil
}

// Correlations returns the correlation vector of cfg.
func (ce *ClusterExpansion) Correlations(cfg *lattice.Configuration) ([]float64, error) {
	if _, err := ce.options(); err != nil {
		return nil, err
	}
	return ce.evaluator.EvaluateVector(cfg, ce.Orbits)
}

// Predict returns the energy of cfg.
func (ce *ClusterExpansion) Predict(cfg *lattice.Configuration) (float64, error) {
	opts, err := ce.options()
	if err != nil {
		return 0, err
	}
	return predict.Predict(cfg, ce.Orbits, ce.ECI, opts...)
}

// PredictBatch predicts every configuration in input order.
func (ce *ClusterExpansion) PredictBatch(cfgs []*lattice.Configuration) ([]float64, error) {
	opts, err := ce.options()
	if err != nil {
		return nil, err
	}
	return predict.PredictBatch(cfgs, ce.Orbits, ce.ECI, opts...)
}

// SwapEnergy returns the energy change of exchanging the species at sites i
// and j of cfg.
func (ce *ClusterExpansion) SwapEnergy(cfg *lattice.Configuration, i, j int) (float64, error) {
	opts, err := ce.options()
	if err != nil {
		return 0, err
	}
	return predict.SwapEnergy(cfg, i, j, ce.Orbits, ce.ECI, opts...)
}
