package linear

// Option configures Ridge and Lasso.
type Option func(*config)

type config struct {
	unpenalized []int
	maxIter     int
	tol         float64
	l1Ratio     float64
	rcond       float64
	illCond     float64
}

func defaultConfig() config {
	return config{
		maxIter: 10000,
		tol:     1e-8,
		l1Ratio: 1.0,
		rcond:   1e-12,
		illCond: 1e12,
	}
}

// WithUnpenalized excludes the given columns from the penalty. The constant
// (empty cluster) column is usually left unpenalised.
func WithUnpenalized(cols ...int) Option {
	return func(c *config) {
		c.unpenalized = append([]int(nil), cols...)
	}
}

// WithMaxIter sets the maximum number of coordinate-descent sweeps (Lasso).
func WithMaxIter(n int) Option {
	return func(c *config) {
		c.maxIter = n
	}
}

// WithTol sets the convergence tolerance on the largest coefficient update
// (Lasso).
func WithTol(tol float64) Option {
	return func(c *config) {
		c.tol = tol
	}
}

// WithL1Ratio sets the elastic-net mixing ρ: 1 is pure L1, 0 pure L2 (Lasso).
func WithL1Ratio(rho float64) Option {
	return func(c *config) {
		c.l1Ratio = rho
	}
}

// WithRcond sets the relative singular-value cutoff of the minimum-norm
// fallback (Ridge).
func WithRcond(rcond float64) Option {
	return func(c *config) {
		c.rcond = rcond
	}
}

// WithIllConditionThreshold sets the 2-norm condition number above which an
// IllConditionedWarning is raised and Ridge solves by SVD.
func WithIllConditionThreshold(cond float64) Option {
	return func(c *config) {
		c.illCond = cond
	}
}
