package expansion

import (
	"fmt"

	"github.com/YuminosukeSato/tce/cluster"
	"github.com/YuminosukeSato/tce/config"
	"github.com/YuminosukeSato/tce/design"
	"github.com/YuminosukeSato/tce/fit"
	"github.com/YuminosukeSato/tce/lattice"
	"github.com/YuminosukeSato/tce/pkg/errors"
	"github.com/YuminosukeSato/tce/pkg/log"
)

// Sample is one labelled training configuration.
type Sample struct {
	ID            string
	Configuration *lattice.Configuration
	Energy        float64
	// Weight of the sample in the fit. When every sample leaves it at zero
	// all samples weigh 1.
	Weight float64
}

type trainOptions struct {
	cache  *cluster.Cache
	logger log.Logger
}

// TrainOption configures Train.
type TrainOption func(*trainOptions)

// WithOrbitCache reuses orbit enumerations across Train calls.
func WithOrbitCache(c *cluster.Cache) TrainOption {
	return func(o *trainOptions) { o.cache = c }
}

// WithLogger sets the logger passed down to every stage.
func WithLogger(l log.Logger) TrainOption {
	return func(o *trainOptions) { o.logger = l }
}

// Train enumerates orbits on the samples' lattice, builds the design matrix
// and fits the interactions.
func Train(samples []Sample, cfg config.Config, opts ...TrainOption) (*ClusterExpansion, error) {
	const op = "expansion.Train"
	var o trainOptions
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = log.GetLoggerWithName("tce.expansion")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if len(samples) == 0 {
		return nil, errors.NewConfigurationError(op, "samples", "no training samples")
	}

	cfgs := make([]*lattice.Configuration, len(samples))
	energies := make([]float64, len(samples))
	var weights []float64
	for i, s := range samples {
		if s.Configuration == nil {
			return nil, errors.NewConfigurationError(op, sampleName(i, s), "nil configuration")
		}
		cfgs[i] = s.Configuration
		energies[i] = s.Energy
		if s.Weight != 0 && weights == nil {
			weights = make([]float64, len(samples))
		}
	}
	if weights != nil {
		for i, s := range samples {
			weights[i] = s.Weight
		}
	}

	lat := cfgs[0].Lattice()
	cutoff, err := cfg.Cutoff(lat)
	if err != nil {
		return nil, err
	}
	var orbits []cluster.Orbit
	if o.cache != nil {
		orbits, err = o.cache.EnumerateOrbits(lat, cfg.MaxOrder, cutoff)
	} else {
		orbits, err = cluster.EnumerateOrbits(lat, cfg.MaxOrder, cutoff)
	}
	if err != nil {
		return nil, err
	}

	ev, err := cfg.Evaluator(o.logger)
	if err != nil {
		return nil, err
	}
	buildOpts := []design.Option{
		design.WithPerAtom(cfg.PerAtom),
		design.WithEvaluator(ev),
		design.WithLargeSystemThreshold(cfg.LargeSystemThreshold),
		design.WithLogger(o.logger),
	}
	if weights != nil {
		buildOpts = append(buildOpts, design.WithWeights(weights))
	}
	m, err := design.Build(cfgs, energies, orbits, buildOpts...)
	if err != nil {
		return nil, err
	}

	fitOpts, err := cfg.FitOptions()
	if err != nil {
		return nil, err
	}
	eci, diag, err := fit.Fit(m, append(fitOpts, fit.WithLogger(o.logger))...)
	if err != nil {
		return nil, err
	}

	ce, err := New(lat, orbits, eci, diag, cfg)
	if err != nil {
		return nil, err
	}
	ce.evaluator = ev
	ce.once.Do(func() {})

	o.logger.Info("trained cluster expansion",
		log.SamplesKey, len(samples),
		log.OrbitsKey, len(orbits),
		log.MaxOrderKey, cfg.MaxOrder,
		log.MaxDiameterKey, cutoff,
		log.CVRMSEKey, diag.CVRMSE,
	)
	return ce, nil
}

func sampleName(i int, s Sample) string {
	if s.ID != "" {
		return fmt.Sprintf("sample %d (%s)", i, s.ID)
	}
	return fmt.Sprintf("sample %d", i)
}
