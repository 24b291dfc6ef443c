// Package fit selects the regularisation strength of a cluster expansion by
// k-fold cross-validation and refits the effective cluster interactions on
// all training data.
package fit

import (
	"fmt"
	"math"
	"strings"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/tce/core/model"
	"github.com/YuminosukeSato/tce/core/parallel"
	"github.com/YuminosukeSato/tce/design"
	"github.com/YuminosukeSato/tce/linear"
	"github.com/YuminosukeSato/tce/metrics"
	"github.com/YuminosukeSato/tce/pkg/errors"
	"github.com/YuminosukeSato/tce/pkg/log"
)

// ECIVector holds one effective cluster interaction per orbit.
type ECIVector []float64

// Penalty selects the regularised solver.
type Penalty string

const (
	// Ridge penalises the squared L2 norm.
	Ridge Penalty = "ridge"
	// Lasso penalises the L1 norm (elastic net when the L1 ratio is below 1).
	Lasso Penalty = "lasso"
)

// ParsePenalty converts a configuration string into a Penalty.
func ParsePenalty(s string) (Penalty, error) {
	switch p := Penalty(strings.ToLower(s)); p {
	case "", Ridge:
		return Ridge, nil
	case Lasso:
		return Lasso, nil
	default:
		return "", errors.NewConfigurationErrorf("fit.ParsePenalty", "penalty", "unknown penalty %q", s)
	}
}

// DefaultGrid returns 0 followed by 1e-6 … 1e1 in decades.
func DefaultGrid() []float64 {
	grid := []float64{0}
	for e := -6; e <= 1; e++ {
		grid = append(grid, math.Pow(10, float64(e)))
	}
	return grid
}

// Score is the cross-validation result of one regularisation strength.
type Score struct {
	Regularization float64 `json:"regularization"`
	CVMSE          float64 `json:"cv_mse"`
}

// Diagnostics summarises a fit.
type Diagnostics struct {
	RMSE           float64 `json:"rmse"`
	MAE            float64 `json:"mae"`
	MaxError       float64 `json:"max_error"`
	R2             float64 `json:"r2"`
	CVRMSE         float64 `json:"cv_rmse"`
	Regularization float64 `json:"regularization"`
	Condition      float64 `json:"condition"`
	Path           []Score `json:"path"`
	ActiveECI      int     `json:"active_eci"`
}

// tie tolerance between CV scores, relative
const tieTolerance = 1e-12

// (λ, fold) tasks per goroutine
const taskParallelThreshold = 2

type options struct {
	grid           []float64
	folds          int
	shuffle        bool
	seed           int
	penalty        Penalty
	l1Ratio        float64
	unpenalized    []int
	unpenalizedSet bool
	logger         log.Logger
}

// Option configures Fit.
type Option func(*options)

// WithGrid sets the candidate regularisation strengths.
func WithGrid(grid []float64) Option {
	return func(o *options) { o.grid = append([]float64(nil), grid...) }
}

// WithFolds sets the number of cross-validation folds.
func WithFolds(k int) Option {
	return func(o *options) { o.folds = k }
}

// WithShuffle shuffles rows before splitting.
func WithShuffle(shuffle bool) Option {
	return func(o *options) { o.shuffle = shuffle }
}

// WithSeed sets the shuffle seed.
func WithSeed(seed int) Option {
	return func(o *options) { o.seed = seed }
}

// WithPenalty selects ridge or lasso.
func WithPenalty(p Penalty) Option {
	return func(o *options) { o.penalty = p }
}

// WithL1Ratio sets the elastic-net mixing of the lasso penalty.
func WithL1Ratio(rho float64) Option {
	return func(o *options) { o.l1Ratio = rho }
}

// WithUnpenalized lists the columns left out of the penalty. Without this
// option a leading all-ones column (the empty cluster) is unpenalised.
func WithUnpenalized(cols ...int) Option {
	return func(o *options) {
		o.unpenalized = append([]int(nil), cols...)
		o.unpenalizedSet = true
	}
}

// WithLogger sets the logger.
func WithLogger(l log.Logger) Option {
	return func(o *options) { o.logger = l }
}

// Fit runs k-fold cross-validation of every grid value, picks the one with
// the lowest mean held-out weighted MSE (ties go to the larger value) and
// refits on all rows.
func Fit(m *design.Matrix, opts ...Option) (ECIVector, Diagnostics, error) {
	const op = "fit.Fit"
	o := options{
		grid:    DefaultGrid(),
		folds:   5,
		penalty: Ridge,
		l1Ratio: 1.0,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = log.GetLoggerWithName("tce.fit")
	}

	if m == nil || m.X == nil {
		return nil, Diagnostics{}, errors.NewFitError(op, "nil design matrix")
	}
	rows, cols := m.Dims()
	if rows < 2 {
		return nil, Diagnostics{}, errors.NewFitErrorf(op, "need at least 2 rows, got %d", rows)
	}
	if len(o.grid) == 0 {
		return nil, Diagnostics{}, errors.NewFitError(op, "empty regularization grid")
	}
	for _, lambda := range o.grid {
		if !(lambda >= 0) || math.IsInf(lambda, 0) {
			return nil, Diagnostics{}, errors.NewFitErrorf(op, "regularization must be finite and non-negative, got %g", lambda)
		}
	}
	if o.penalty != Ridge && o.penalty != Lasso {
		return nil, Diagnostics{}, errors.NewFitErrorf(op, "unknown penalty %q", o.penalty)
	}
	if !o.unpenalizedSet && constantColumn(m, 0) {
		o.unpenalized = []int{0}
	}
	factory := o.factory()

	folds, err := NewKFold(o.folds, o.shuffle, o.seed).Split(rows)
	if err != nil {
		return nil, Diagnostics{}, errors.Wrap(err, op)
	}
	trains := make([]*design.Matrix, len(folds))
	tests := make([]*design.Matrix, len(folds))
	for f, fold := range folds {
		trains[f] = m.Subset(fold.Train)
		tests[f] = m.Subset(fold.Test)
	}

	// each (λ, fold) task owns one slot
	nTasks := len(o.grid) * len(folds)
	scores := make([]float64, nTasks)
	errs := make([]error, nTasks)
	parallel.ForEach(nTasks, taskParallelThreshold, func(t int) {
		g, f := t/len(folds), t%len(folds)
		errs[t] = errors.SafeExecute(op, func() error {
			s, err := heldOut(factory(o.grid[g]), trains[f], tests[f])
			if err != nil {
				return errors.Wrapf(err, "regularization %g, fold %d", o.grid[g], f)
			}
			scores[t] = s
			return nil
		})
	})
	if err := errors.FirstError(errs); err != nil {
		return nil, Diagnostics{}, err
	}

	path := make([]Score, len(o.grid))
	for g, lambda := range o.grid {
		var sum float64
		for f := range folds {
			sum += scores[g*len(folds)+f]
		}
		path[g] = Score{Regularization: lambda, CVMSE: sum / float64(len(folds))}
		if err := errors.CheckScalar(op, path[g].CVMSE, g); err != nil {
			return nil, Diagnostics{}, err
		}
	}
	best := selectBest(path)

	final := factory(path[best].Regularization)
	if err := final.Fit(m.X, m.Y, m.W); err != nil {
		return nil, Diagnostics{}, errors.Wrap(err, op)
	}
	pred, err := final.Predict(m.X)
	if err != nil {
		return nil, Diagnostics{}, errors.Wrap(err, op)
	}
	diag, err := inSample(m, pred)
	if err != nil {
		return nil, Diagnostics{}, errors.Wrap(err, op)
	}

	eci := ECIVector(final.Coefficients())
	diag.CVRMSE = math.Sqrt(path[best].CVMSE)
	diag.Regularization = path[best].Regularization
	diag.Path = path
	if c, ok := final.(model.Conditioner); ok {
		diag.Condition = c.Condition()
	}
	for _, v := range eci {
		if v != 0 {
			diag.ActiveECI++
		}
	}

	o.logger.Info("cross-validation finished",
		log.OperationKey, log.OperationFit,
		log.SamplesKey, rows,
		log.FeaturesKey, cols,
		log.FoldsKey, len(folds),
		log.RegularizationKey, diag.Regularization,
		log.RMSEKey, diag.RMSE,
		log.MAEKey, diag.MAE,
		log.MaxErrorKey, diag.MaxError,
		log.R2Key, diag.R2,
		log.CVRMSEKey, diag.CVRMSE,
		log.ConditionKey, diag.Condition,
		log.ActiveECIKey, diag.ActiveECI,
	)
	return eci, diag, nil
}

func (o *options) factory() model.RegressorFactory {
	unpenalized := o.unpenalized
	if o.penalty == Lasso {
		rho := o.l1Ratio
		return func(lambda float64) model.Regressor {
			return linear.NewLasso(lambda, linear.WithUnpenalized(unpenalized...), linear.WithL1Ratio(rho))
		}
	}
	return func(lambda float64) model.Regressor {
		return linear.NewRidge(lambda, linear.WithUnpenalized(unpenalized...))
	}
}

// heldOut fits on train and returns the weighted MSE on test.
func heldOut(r model.Regressor, train, test *design.Matrix) (float64, error) {
	if err := r.Fit(train.X, train.Y, train.W); err != nil {
		return 0, err
	}
	pred, err := r.Predict(test.X)
	if err != nil {
		return 0, err
	}
	return metrics.MSE(test.Y, pred, test.W)
}

// inSample scores the refitted model on its own training rows.
func inSample(m *design.Matrix, pred mat.Vector) (Diagnostics, error) {
	var d Diagnostics
	var err error
	if d.RMSE, err = metrics.RMSE(m.Y, pred, m.W); err != nil {
		return d, err
	}
	if d.MAE, err = metrics.MAE(m.Y, pred, m.W); err != nil {
		return d, err
	}
	if d.MaxError, err = metrics.MaxError(m.Y, pred, m.W); err != nil {
		return d, err
	}
	d.R2, err = metrics.R2(m.Y, pred, m.W)
	return d, err
}

// selectBest returns the index of the lowest score. Scores within the tie
// tolerance of the minimum go to the largest regularisation.
func selectBest(path []Score) int {
	lowest := math.Inf(1)
	for _, s := range path {
		lowest = math.Min(lowest, s.CVMSE)
	}
	best := -1
	for i, s := range path {
		if s.CVMSE-lowest > tieTolerance*math.Abs(lowest) {
			continue
		}
		if best < 0 || s.Regularization > path[best].Regularization {
			best = i
		}
	}
	return best
}

func constantColumn(m *design.Matrix, j int) bool {
	rows, cols := m.Dims()
	if j >= cols {
		return false
	}
	for i := 0; i < rows; i++ {
		if m.X.At(i, j) != 1 {
			return false
		}
	}
	return true
}

// String formats the diagnostics on one line.
func (d Diagnostics) String() string {
	return fmt.Sprintf("rmse=%.6g mae=%.6g max=%.6g r2=%.6g cv_rmse=%.6g lambda=%g cond=%.3g active=%d",
		d.RMSE, d.MAE, d.MaxError, d.R2, d.CVRMSE, d.Regularization, d.Condition, d.ActiveECI)
}
