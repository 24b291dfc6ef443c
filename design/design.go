// Package design assembles the design matrix of a cluster expansion fit:
// one row of correlation functions per training configuration, paired with
// the training energies and per-sample weights.
package design

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/tce/cluster"
	"github.com/YuminosukeSato/tce/core/parallel"
	"github.com/YuminosukeSato/tce/correlation"
	"github.com/YuminosukeSato/tce/lattice"
	"github.com/YuminosukeSato/tce/pkg/errors"
	"github.com/YuminosukeSato/tce/pkg/log"
)

// DefaultLargeSystemThreshold is the site count above which Build warns
// that correlation evaluation may be slow.
const DefaultLargeSystemThreshold = 20000

// rows per goroutine
const rowParallelThreshold = 4

// Matrix is a design matrix with its targets and weights. Rows follow the
// order of the input configurations.
type Matrix struct {
	X *mat.Dense
	Y *mat.VecDense
	W *mat.VecDense
	// Sites is the number of sites of each row's configuration.
	Sites []int
}

// Dims returns the number of rows and correlation columns.
func (m *Matrix) Dims() (rows, cols int) { return m.X.Dims() }

// Subset returns a new matrix holding the given rows, in the given order.
func (m *Matrix) Subset(rows []int) *Matrix {
	_, c := m.X.Dims()
	out := &Matrix{
		X:     mat.NewDense(len(rows), c, nil),
		Y:     mat.NewVecDense(len(rows), nil),
		W:     mat.NewVecDense(len(rows), nil),
		Sites: make([]int, len(rows)),
	}
	for i, r := range rows {
		out.X.SetRow(i, mat.Row(nil, r, m.X))
		out.Y.SetVec(i, m.Y.AtVec(r))
		out.W.SetVec(i, m.W.AtVec(r))
		out.Sites[i] = m.Sites[r]
	}
	return out
}

type options struct {
	weights        []float64
	perAtom        bool
	evaluator      *correlation.Evaluator
	logger         log.Logger
	largeThreshold int
}

// Option configures Build.
type Option func(*options)

// WithWeights sets per-sample weights; they must be positive and finite.
func WithWeights(w []float64) Option {
	return func(o *options) { o.weights = w }
}

// WithPerAtom divides every energy by its configuration's site count.
func WithPerAtom(perAtom bool) Option {
	return func(o *options) { o.perAtom = perAtom }
}

// WithEvaluator sets the correlation evaluator.
func WithEvaluator(e *correlation.Evaluator) Option {
	return func(o *options) { o.evaluator = e }
}

// WithLogger sets the logger.
func WithLogger(l log.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithLargeSystemThreshold sets the site count above which a
// LargeSystemWarning is raised. Zero or less disables the warning.
func WithLargeSystemThreshold(sites int) Option {
	return func(o *options) { o.largeThreshold = sites }
}

// Build evaluates the correlation vector of every configuration and stacks
// them into a design matrix. It fails with a ShapeError when the number of
// energies or weights differs from the number of configurations or an energy
// is not finite, and with a ConfigurationError for invalid weights or
// configurations from different lattices.
func Build(cfgs []*lattice.Configuration, energies []float64, orbits []cluster.Orbit, opts ...Option) (*Matrix, error) {
	const op = "design.Build"
	o := options{largeThreshold: DefaultLargeSystemThreshold}
	for _, opt := range opts {
		opt(&o)
	}
	if o.evaluator == nil {
		o.evaluator = correlation.NewEvaluator()
	}
	if o.logger == nil {
		o.logger = log.GetLoggerWithName("tce.design")
	}

	if len(cfgs) != len(energies) {
		return nil, errors.NewShapeError(op, "energies", len(cfgs), len(energies))
	}
	if len(cfgs) == 0 {
		return nil, errors.NewConfigurationError(op, "configurations", "no configurations given")
	}
	if len(orbits) == 0 {
		return nil, errors.NewConfigurationError(op, "orbits", "no orbits given")
	}
	if err := errors.CheckFinite(op, "energy", energies); err != nil {
		return nil, err
	}
	weights := o.weights
	if weights == nil {
		weights = make([]float64, len(cfgs))
		for i := range weights {
			weights[i] = 1
		}
	}
	if len(weights) != len(cfgs) {
		return nil, errors.NewShapeError(op, "weights", len(cfgs), len(weights))
	}
	for i, w := range weights {
		if !(w > 0) || math.IsInf(w, 0) {
			return nil, errors.NewConfigurationErrorf(op, fmt.Sprintf("weight %d", i), "must be positive and finite, got %g", w)
		}
	}
	for i, cfg := range cfgs {
		if cfg == nil {
			return nil, errors.NewConfigurationError(op, fmt.Sprintf("configuration %d", i), "nil configuration")
		}
		if cfg.Lattice().Fingerprint() != cfgs[0].Lattice().Fingerprint() {
			return nil, errors.NewConfigurationError(op, fmt.Sprintf("configuration %d", i),
				"incompatible geometry: built on a different lattice than configuration 0")
		}
		if o.largeThreshold > 0 && cfg.NumSites() > o.largeThreshold {
			errors.Warn(&errors.LargeSystemWarning{Index: i, Sites: cfg.NumSites(), Threshold: o.largeThreshold})
		}
	}

	n, k := len(cfgs), len(orbits)
	m := &Matrix{
		X:     mat.NewDense(n, k, nil),
		Y:     mat.NewVecDense(n, nil),
		W:     mat.NewVecDense(n, append([]float64(nil), weights...)),
		Sites: make([]int, n),
	}
	errs := make([]error, n)
	parallel.ForEach(n, rowParallelThreshold, func(i int) {
		errs[i] = errors.SafeExecute(op, func() error {
			row, err := o.evaluator.EvaluateVector(cfgs[i], orbits)
			if err != nil {
				return errors.Wrapf(err, "configuration %d", i)
			}
			m.X.SetRow(i, row)
			return nil
		})
		m.Sites[i] = cfgs[i].NumSites()
		e := energies[i]
		if o.perAtom {
			e /= float64(m.Sites[i])
		}
		m.Y.SetVec(i, e)
	})
	if err := errors.FirstError(errs); err != nil {
		return nil, err
	}

	o.logger.Debug("built design matrix",
		log.OperationKey, log.OperationBuild,
		log.SamplesKey, n,
		log.FeaturesKey, k,
	)
	return m, nil
}
