// Package correlation evaluates cluster correlation functions of
// configurations: for each orbit, the mean over all concrete instances in the
// supercell of the product of site basis functions.
//
// Two contraction strategies produce identical results. Naive walks every
// instance and evaluates the site basis on the fly. Sparse compiles the
// instances into flat column tables and contracts them against a
// per-configuration table of basis values, one goroutine range per block of
// orbits. Both multiply site values and sum instances in the same order, so
// they agree bit for bit.
package correlation

import (
	"context"
	"fmt"
	"strings"

	lru "github.com/hashicorp/golang-lru"

	"github.com/YuminosukeSato/tce/cluster"
	"github.com/YuminosukeSato/tce/core/parallel"
	"github.com/YuminosukeSato/tce/lattice"
	"github.com/YuminosukeSato/tce/performance"
	"github.com/YuminosukeSato/tce/pkg/errors"
	"github.com/YuminosukeSato/tce/pkg/log"
)

// Strategy selects the contraction kernel.
type Strategy int

const (
	// Auto uses Sparse once the instance tables exceed the auto threshold.
	Auto Strategy = iota
	Naive
	Sparse
)

func (s Strategy) String() string {
	switch s {
	case Naive:
		return "naive"
	case Sparse:
		return "sparse"
	default:
		return "auto"
	}
}

// ParseStrategy resolves a strategy by name.
func ParseStrategy(name string) (Strategy, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "auto":
		return Auto, nil
	case "naive":
		return Naive, nil
	case "sparse":
		return Sparse, nil
	}
	return Auto, errors.NewConfigurationErrorf("correlation.ParseStrategy", "contraction strategy", "unknown strategy %q", name)
}

const (
	// DefaultAutoThreshold is the table size (instances × order) above which
	// Auto switches to Sparse.
	DefaultAutoThreshold = 4096

	// orbits per goroutine in the sparse kernel
	orbitParallelThreshold = 8
)

// Evaluator computes correlation functions. It is safe for concurrent use.
type Evaluator struct {
	basis         Basis
	strategy      Strategy
	autoThreshold int
	tables        *lru.Cache
	scratch       *performance.BufferPool
	logger        log.Logger
}

// Option configures an Evaluator.
type Option func(*Evaluator)

// WithBasis sets the site basis. Defaults to Trigonometric.
func WithBasis(b Basis) Option {
	return func(e *Evaluator) { e.basis = b }
}

// WithStrategy sets the contraction strategy. Defaults to Auto.
func WithStrategy(s Strategy) Option {
	return func(e *Evaluator) { e.strategy = s }
}

// WithAutoThreshold sets the table size at which Auto picks Sparse.
func WithAutoThreshold(n int) Option {
	return func(e *Evaluator) { e.autoThreshold = n }
}

// WithTableCache keeps up to size compiled instance tables, keyed by
// supercell and orbit list.
func WithTableCache(size int) Option {
	return func(e *Evaluator) {
		if c, err := lru.New(size); err == nil {
			e.tables = c
		}
	}
}

// WithBufferPool recycles the sparse kernel's value tables through pool,
// which may be shared between evaluators. Defaults to a private pool.
func WithBufferPool(pool *performance.BufferPool) Option {
	return func(e *Evaluator) { e.scratch = pool }
}

// WithLogger sets the logger.
func WithLogger(l log.Logger) Option {
	return func(e *Evaluator) { e.logger = l }
}

// NewEvaluator returns an evaluator. Without WithTableCache nothing is cached
// between calls.
func NewEvaluator(opts ...Option) *Evaluator {
	e := &Evaluator{
		basis:         Trigonometric{},
		strategy:      Auto,
		autoThreshold: DefaultAutoThreshold,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.basis == nil {
		e.basis = Trigonometric{}
	}
	if e.scratch == nil {
		e.scratch = performance.NewBufferPool()
	}
	if e.logger == nil {
		e.logger = log.GetLoggerWithName("tce.correlation")
	}
	return e
}

// Basis returns the site basis in use.
func (e *Evaluator) Basis() Basis { return e.basis }

// Strategy returns the configured strategy.
func (e *Evaluator) Strategy() Strategy { return e.strategy }

// Evaluate returns the correlation of cfg for a single orbit. The constant
// orbit always yields exactly 1.
func Evaluate(cfg *lattice.Configuration, orbit cluster.Orbit) (float64, error) {
	return NewEvaluator().Evaluate(cfg, orbit)
}

// EvaluateVector returns the correlation vector of cfg, one entry per orbit.
func EvaluateVector(cfg *lattice.Configuration, orbits []cluster.Orbit) ([]float64, error) {
	return NewEvaluator().EvaluateVector(cfg, orbits)
}

// Evaluate returns the correlation of cfg for a single orbit.
func (e *Evaluator) Evaluate(cfg *lattice.Configuration, orbit cluster.Orbit) (float64, error) {
	v, err := e.EvaluateVector(cfg, []cluster.Orbit{orbit})
	if err != nil {
		return 0, err
	}
	return v[0], nil
}

// EvaluateVector returns the correlation vector of cfg. It fails with a
// ConfigurationError when a site holds a species outside its alphabet or an
// orbit belongs to a different lattice.
func (e *Evaluator) EvaluateVector(cfg *lattice.Configuration, orbits []cluster.Orbit) ([]float64, error) {
	const op = "correlation.EvaluateVector"
	c, err := e.prepare(op, cfg, orbits)
	if err != nil {
		return nil, err
	}
	out := make([]float64, len(orbits))
	switch e.resolve(c) {
	case Sparse:
		e.contractSparse(cfg, c, out)
	default:
		e.contractNaive(cfg, c, out)
	}
	return out, nil
}

func (e *Evaluator) prepare(op string, cfg *lattice.Configuration, orbits []cluster.Orbit) (*compiled, error) {
	if cfg == nil {
		return nil, errors.NewConfigurationError(op, "configuration", "nil configuration")
	}
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, op)
	}
	lat := cfg.Lattice()
	for i, o := range orbits {
		if o.Order > 0 && o.Lattice != lat.Fingerprint() {
			return nil, errors.NewConfigurationErrorf(op, fmt.Sprintf("orbit %d", i),
				"enumerated on a different lattice than the configuration")
		}
	}
	return e.tablesFor(cfg.Supercell(), orbits), nil
}

func (e *Evaluator) tablesFor(sc *lattice.Supercell, orbits []cluster.Orbit) *compiled {
	if e.tables == nil {
		return e.compile(sc, orbits)
	}
	key := tableKey(sc, orbits)
	if v, ok := e.tables.Get(key); ok {
		return v.(*compiled)
	}
	c := e.compile(sc, orbits)
	e.tables.Add(key, c)
	return c
}

func (e *Evaluator) compile(sc *lattice.Supercell, orbits []cluster.Orbit) *compiled {
	c := compile(sc, orbits)
	if e.logger.Enabled(context.Background(), log.LevelDebug) {
		e.logger.Debug("compiled instance tables",
			log.OperationKey, log.OperationEvaluate,
			log.OrbitsKey, len(orbits),
			log.SitesKey, sc.NumSites(),
			log.InstancesKey, c.total,
			log.StrategyKey, e.resolve(c).String(),
		)
	}
	return c
}

func (e *Evaluator) resolve(c *compiled) Strategy {
	if e.strategy != Auto {
		return e.strategy
	}
	if c.total >= e.autoThreshold {
		return Sparse
	}
	return Naive
}

func (e *Evaluator) siteValue(cfg *lattice.Configuration, site, fn int) float64 {
	size := len(cfg.Lattice().AlphabetOf(cfg.Supercell().Point(site).Basis))
	return e.basis.Value(cfg.SpeciesIndex(site), fn, size)
}

func (e *Evaluator) contractNaive(cfg *lattice.Configuration, c *compiled, out []float64) {
	for o, t := range c.tables {
		if t.order == 0 {
			out[o] = 1
			continue
		}
		var sum float64
		for r := 0; r < t.n; r++ {
			prod := 1.0
			for k := r * t.order; k < (r+1)*t.order; k++ {
				prod *= e.siteValue(cfg, t.sites[k], t.funcs[k])
			}
			sum += prod
		}
		out[o] = sum / float64(t.n)
	}
}

// value tables are recycled across configurations
// valueTable returns θ_α(σ_site) at site*stride+α for every site and α.
// The caller releases the buffer.
func (e *Evaluator) valueTable(cfg *lattice.Configuration, stride int) *performance.Buffer {
	buf := e.scratch.Get(cfg.NumSites() * stride)
	vals := buf.Data
	for s := 0; s < cfg.NumSites(); s++ {
		size := len(cfg.Lattice().AlphabetOf(cfg.Supercell().Point(s).Basis))
		for fn := 1; fn < size; fn++ {
			vals[s*stride+fn] = e.basis.Value(cfg.SpeciesIndex(s), fn, size)
		}
	}
	return buf
}

func (e *Evaluator) contractSparse(cfg *lattice.Configuration, c *compiled, out []float64) {
	buf := e.valueTable(cfg, c.stride)
	defer buf.Release()
	vals := buf.Data
	parallel.ForEach(len(c.tables), orbitParallelThreshold, func(o int) {
		t := c.tables[o]
		if t.order == 0 {
			out[o] = 1
			return
		}
		var sum float64
		for r := 0; r < t.n; r++ {
			prod := 1.0
			for _, col := range t.cols[r*t.order : (r+1)*t.order] {
				prod *= vals[col]
			}
			sum += prod
		}
		out[o] = sum / float64(t.n)
	})
}

// SwapDelta returns the change of every correlation when the species on
// sites i and j are exchanged. Only instances touching i or j are visited.
func (e *Evaluator) SwapDelta(cfg *lattice.Configuration, i, j int, orbits []cluster.Orbit) ([]float64, error) {
	const op = "correlation.SwapDelta"
	c, err := e.prepare(op, cfg, orbits)
	if err != nil {
		return nil, err
	}
	swapped, err := cfg.Swap(i, j)
	if err != nil {
		return nil, err
	}
	out := make([]float64, len(orbits))
	if cfg.SpeciesIndex(i) == cfg.SpeciesIndex(j) {
		return out, nil
	}
	for o, t := range c.tables {
		if t.order == 0 {
			continue
		}
		touched := append([]int(nil), t.incidence[i]...)
		for _, r := range t.incidence[j] {
			if !containsSite(t, r, i) {
				touched = append(touched, r)
			}
		}
		var delta float64
		for _, r := range touched {
			before, after := 1.0, 1.0
			for k := r * t.order; k < (r+1)*t.order; k++ {
				before *= e.siteValue(cfg, t.sites[k], t.funcs[k])
				after *= e.siteValue(swapped, t.sites[k], t.funcs[k])
			}
			delta += after - before
		}
		out[o] = delta / float64(t.n)
	}
	return out, nil
}

func containsSite(t *table, r, site int) bool {
	for _, s := range t.sites[r*t.order : (r+1)*t.order] {
		if s == site {
			return true
		}
	}
	return false
}

// SwapDelta is Evaluator.SwapDelta with a default evaluator.
func SwapDelta(cfg *lattice.Configuration, i, j int, orbits []cluster.Orbit) ([]float64, error) {
	return NewEvaluator().SwapDelta(cfg, i, j, orbits)
}
