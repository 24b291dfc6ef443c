// Package lattice defines the crystal lattice a cluster expansion lives on:
// basis sites with sublattice ids, per-sublattice species alphabets, the
// space-group operations mapping the lattice onto itself, finite supercells
// and the configurations hosted by them.
//
// Symmetry operations act on fractional coordinates. Once a Lattice is
// constructed every operation is tabulated per basis site, so mapping a
// LatticePoint is exact integer arithmetic.
package lattice

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/YuminosukeSato/tce/pkg/errors"
)

// DefaultTolerance is the fractional-coordinate tolerance used when matching sites.
const DefaultTolerance = 1e-5

// maxGroupOrder bounds the closure of user-supplied generators.
const maxGroupOrder = 4096

// Site is a basis site: a fractional position inside the unit cell and the
// sublattice it belongs to.
type Site struct {
	Position   Vec3
	Sublattice int
}

// Alphabet is the ordered set of species allowed on a sublattice.
type Alphabet []string

// Index returns the position of species in the alphabet, or -1.
func (a Alphabet) Index(species string) int {
	for i, s := range a {
		if s == species {
			return i
		}
	}
	return -1
}

// Active reports whether the sublattice is disordered (two or more species).
func (a Alphabet) Active() bool { return len(a) >= 2 }

// LatticePoint is a lattice-relative site: basis site Basis in the unit cell
// translated by Cell lattice vectors.
type LatticePoint struct {
	Cell  [3]int
	Basis int
}

// Less orders points by cell, then basis.
func (p LatticePoint) Less(q LatticePoint) bool {
	for k := 0; k < 3; k++ {
		if p.Cell[k] != q.Cell[k] {
			return p.Cell[k] < q.Cell[k]
		}
	}
	return p.Basis < q.Basis
}

// Translate returns p shifted by n lattice vectors.
func (p LatticePoint) Translate(n [3]int) LatticePoint {
	return LatticePoint{Cell: [3]int{p.Cell[0] + n[0], p.Cell[1] + n[1], p.Cell[2] + n[2]}, Basis: p.Basis}
}

// Lattice is an immutable crystal lattice with its symmetry group.
type Lattice struct {
	cell      [3]Vec3
	cellInv   *mat.Dense
	sites     []Site
	alphabets []Alphabet
	ops       []SymOp
	tol       float64

	// imageBasis[op][b] and imageShift[op][b] tabulate op(p_b) = p_{b'} + shift.
	imageBasis [][]int
	imageShift [][][3]int

	fingerprint string
}

// Option configures lattice construction.
type Option func(*options)

type options struct {
	tol float64
}

// WithTolerance sets the fractional-coordinate matching tolerance.
func WithTolerance(tol float64) Option {
	return func(o *options) { o.tol = tol }
}

// New constructs a lattice from a cell (rows are Cartesian lattice vectors),
// basis sites, one alphabet per sublattice id, and symmetry generators. The
// generators are closed into a group; the identity is always included.
// It fails with a ConfigurationError if the basis is not closed under the
// group, a rotation does not preserve the metric, or the inputs are malformed.
func New(cell [3]Vec3, sites []Site, alphabets []Alphabet, generators []SymOp, opts ...Option) (*Lattice, error) {
	const op = "lattice.New"
	o := options{tol: DefaultTolerance}
	for _, opt := range opts {
		opt(&o)
	}
	if o.tol <= 0 {
		return nil, errors.NewConfigurationErrorf(op, "tolerance", "must be positive, got %g", o.tol)
	}
	if len(sites) == 0 {
		return nil, errors.NewConfigurationError(op, "basis", "no basis sites")
	}

	c := cellDense(cell)
	if math.Abs(mat.Det(c)) < 1e-12 {
		return nil, errors.NewConfigurationError(op, "cell", "lattice vectors are linearly dependent")
	}
	var inv mat.Dense
	if err := inv.Inverse(c); err != nil {
		return nil, errors.NewConfigurationError(op, "cell", "lattice vectors are not invertible")
	}

	if err := validateAlphabets(op, alphabets); err != nil {
		return nil, err
	}
	for b, s := range sites {
		if s.Sublattice < 0 || s.Sublattice >= len(alphabets) {
			return nil, errors.NewConfigurationErrorf(op, fmt.Sprintf("site %d", b),
				"sublattice %d has no alphabet (%d alphabets given)", s.Sublattice, len(alphabets))
		}
		for a := 0; a < b; a++ {
			if samePosition(sites[a].Position, s.Position, o.tol) {
				return nil, errors.NewConfigurationErrorf(op, fmt.Sprintf("site %d", b),
					"coincides with site %d", a)
			}
		}
	}

	ops, err := closeGroup(generators, o.tol)
	if err != nil {
		return nil, err
	}

	g := metric(cell)
	l := &Lattice{
		cell:      cell,
		cellInv:   &inv,
		sites:     append([]Site(nil), sites...),
		alphabets: copyAlphabets(alphabets),
		ops:       ops,
		tol:       o.tol,
	}
	l.imageBasis = make([][]int, len(ops))
	l.imageShift = make([][][3]int, len(ops))
	for k, sym := range ops {
		if !preservesMetric(sym.Rotation, g, 1e-6) {
			return nil, errors.NewConfigurationErrorf(op, fmt.Sprintf("symmetry operation %d", k),
				"rotation %v does not preserve the lattice metric", sym.Rotation)
		}
		l.imageBasis[k] = make([]int, len(sites))
		l.imageShift[k] = make([][3]int, len(sites))
		hit := make([]bool, len(sites))
		for b, s := range sites {
			target, shift, ok := locate(sym.Apply(s.Position), s.Sublattice, sites, o.tol)
			if !ok {
				return nil, errors.NewConfigurationErrorf(op, fmt.Sprintf("site %d", b),
					"not mapped onto a basis site of sublattice %d by symmetry operation %d", s.Sublattice, k)
			}
			if hit[target] {
				return nil, errors.NewConfigurationErrorf(op, fmt.Sprintf("site %d", target),
					"hit twice by symmetry operation %d", k)
			}
			hit[target] = true
			l.imageBasis[k][b] = target
			l.imageShift[k][b] = shift
		}
	}
	l.fingerprint = l.computeFingerprint()
	return l, nil
}

// NewWithDetectedSymmetry constructs a lattice whose symmetry group is found
// by DetectSymmetry.
func NewWithDetectedSymmetry(cell [3]Vec3, sites []Site, alphabets []Alphabet, opts ...Option) (*Lattice, error) {
	o := options{tol: DefaultTolerance}
	for _, opt := range opts {
		opt(&o)
	}
	return New(cell, sites, alphabets, DetectSymmetry(cell, sites, o.tol), opts...)
}

func validateAlphabets(op string, alphabets []Alphabet) error {
	if len(alphabets) == 0 {
		return errors.NewConfigurationError(op, "alphabets", "no species alphabet given")
	}
	for i, a := range alphabets {
		if len(a) == 0 {
			return errors.NewConfigurationErrorf(op, fmt.Sprintf("sublattice %d", i), "empty alphabet")
		}
		seen := map[string]bool{}
		for _, s := range a {
			if s == "" {
				return errors.NewConfigurationErrorf(op, fmt.Sprintf("sublattice %d", i), "empty species name")
			}
			if seen[s] {
				return errors.NewConfigurationErrorf(op, fmt.Sprintf("sublattice %d", i), "duplicate species %q", s)
			}
			seen[s] = true
		}
	}
	return nil
}

func closeGroup(generators []SymOp, tol float64) ([]SymOp, error) {
	ops := []SymOp{Identity()}
	seen := map[string]bool{ops[0].key(): true}
	gens := make([]SymOp, 0, len(generators))
	for _, g := range generators {
		gens = append(gens, g.reduced(tol))
	}
	for i := 0; i < len(ops); i++ {
		for _, g := range gens {
			c := g.Compose(ops[i]).reduced(tol)
			k := c.key()
			if seen[k] {
				continue
			}
			seen[k] = true
			ops = append(ops, c)
			if len(ops) > maxGroupOrder {
				return nil, errors.NewConfigurationErrorf("lattice.New", "symmetry generators",
					"group closure exceeds %d operations", maxGroupOrder)
			}
		}
	}
	return ops, nil
}

func samePosition(a, b Vec3, tol float64) bool {
	for k := 0; k < 3; k++ {
		if _, ok := nearInteger(a[k]-b[k], tol); !ok {
			return false
		}
	}
	return true
}

func copyAlphabets(in []Alphabet) []Alphabet {
	out := make([]Alphabet, len(in))
	for i, a := range in {
		out[i] = append(Alphabet(nil), a...)
	}
	return out
}

func (l *Lattice) computeFingerprint() string {
	h := sha256.New()
	for _, v := range l.cell {
		fmt.Fprintf(h, "%.9g,%.9g,%.9g;", v[0], v[1], v[2])
	}
	for _, s := range l.sites {
		fmt.Fprintf(h, "%.9g,%.9g,%.9g/%d;", s.Position[0], s.Position[1], s.Position[2], s.Sublattice)
	}
	for _, a := range l.alphabets {
		fmt.Fprintf(h, "%q;", []string(a))
	}
	keys := make([]string, len(l.ops))
	for i, op := range l.ops {
		keys[i] = op.key()
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(h, "%s;", k)
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Fingerprint identifies the lattice (cell, basis, alphabets, symmetry group).
// Two lattices with equal fingerprints are interchangeable.
func (l *Lattice) Fingerprint() string { return l.fingerprint }

// Cell returns the lattice vectors (rows, Cartesian).
func (l *Lattice) Cell() [3]Vec3 { return l.cell }

// Tolerance returns the matching tolerance.
func (l *Lattice) Tolerance() float64 { return l.tol }

// NumSites returns the number of basis sites.
func (l *Lattice) NumSites() int { return len(l.sites) }

// Sites returns a copy of the basis sites.
func (l *Lattice) Sites() []Site { return append([]Site(nil), l.sites...) }

// Site returns basis site b.
func (l *Lattice) Site(b int) Site { return l.sites[b] }

// Alphabets returns a copy of the per-sublattice alphabets.
func (l *Lattice) Alphabets() []Alphabet { return copyAlphabets(l.alphabets) }

// AlphabetOf returns the alphabet of basis site b.
func (l *Lattice) AlphabetOf(b int) Alphabet { return l.alphabets[l.sites[b].Sublattice] }

// IsActive reports whether basis site b is on a disordered sublattice.
func (l *Lattice) IsActive(b int) bool { return l.AlphabetOf(b).Active() }

// NumOps returns the order of the symmetry group.
func (l *Lattice) NumOps() int { return len(l.ops) }

// Ops returns a copy of the symmetry operations; index 0 is the identity.
func (l *Lattice) Ops() []SymOp { return append([]SymOp(nil), l.ops...) }

// ApplySymmetry maps a lattice point with symmetry operation op (an index
// into Ops).
func (l *Lattice) ApplySymmetry(op int, p LatticePoint) LatticePoint {
	r := l.ops[op].Rotation
	shift := l.imageShift[op][p.Basis]
	var out LatticePoint
	out.Basis = l.imageBasis[op][p.Basis]
	for i := 0; i < 3; i++ {
		out.Cell[i] = shift[i]
		for j := 0; j < 3; j++ {
			out.Cell[i] += r[i][j] * p.Cell[j]
		}
	}
	return out
}

// Position returns the fractional coordinate of a lattice point.
func (l *Lattice) Position(p LatticePoint) Vec3 {
	s := l.sites[p.Basis].Position
	return Vec3{float64(p.Cell[0]) + s[0], float64(p.Cell[1]) + s[1], float64(p.Cell[2]) + s[2]}
}

// Cartesian converts a fractional coordinate to Cartesian.
func (l *Lattice) Cartesian(x Vec3) Vec3 {
	var out r3.Vec
	for i, v := range l.cell {
		out = r3.Add(out, r3.Scale(x[i], v.vec()))
	}
	return fromVec(out)
}

// Distance returns the Cartesian distance between two lattice points.
func (l *Lattice) Distance(p, q LatticePoint) float64 {
	return r3.Norm(r3.Sub(l.Cartesian(l.Position(p)).vec(), l.Cartesian(l.Position(q)).vec()))
}

// PointsWithin returns the points within radius (inclusive, up to tolerance)
// of center, sorted. If activeOnly is set, points on single-species
// sublattices are skipped.
func (l *Lattice) PointsWithin(center LatticePoint, radius float64, activeOnly bool) []LatticePoint {
	c := l.Position(center)
	var lo, hi [3]int
	for i := 0; i < 3; i++ {
		var colNorm float64
		for j := 0; j < 3; j++ {
			v := l.cellInv.At(j, i)
			colNorm += v * v
		}
		reach := radius * math.Sqrt(colNorm)
		lo[i] = int(math.Floor(c[i]-reach)) - 1
		hi[i] = int(math.Ceil(c[i]+reach)) + 1
	}
	var out []LatticePoint
	for n0 := lo[0]; n0 <= hi[0]; n0++ {
		for n1 := lo[1]; n1 <= hi[1]; n1++ {
			for n2 := lo[2]; n2 <= hi[2]; n2++ {
				for b := range l.sites {
					if activeOnly && !l.IsActive(b) {
						continue
					}
					p := LatticePoint{Cell: [3]int{n0, n1, n2}, Basis: b}
					if l.InRange(l.Distance(center, p), radius) {
						out = append(out, p)
					}
				}
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Less(out[j]) })
	return out
}

// InRange reports whether distance d lies within radius, up to the
// distance tolerance.
func (l *Lattice) InRange(d, radius float64) bool {
	return d <= radius+l.distanceTol(radius)
}

// distanceTol is the absolute tolerance used when comparing Cartesian distances.
func (l *Lattice) distanceTol(scale float64) float64 {
	return 1e-8 * math.Max(1, scale)
}

// NeighborShells returns the first n distinct distances between active
// sites, in increasing order (0 excluded). Fewer are returned only if the
// lattice has no active sites.
func (l *Lattice) NeighborShells(n int) []float64 {
	if n <= 0 {
		return nil
	}
	var longest float64
	for _, v := range l.cell {
		longest = math.Max(longest, r3.Norm(v.vec()))
	}
	for radius := longest; radius < longest*64; radius *= 2 {
		var dists []float64
		for b := range l.sites {
			if !l.IsActive(b) {
				continue
			}
			center := LatticePoint{Basis: b}
			for _, p := range l.PointsWithin(center, radius, true) {
				if d := l.Distance(center, p); d > l.distanceTol(d) {
					dists = append(dists, d)
				}
			}
		}
		if len(dists) == 0 {
			return nil
		}
		sort.Float64s(dists)
		var shells []float64
		for _, d := range dists {
			if len(shells) == 0 || d-shells[len(shells)-1] > 1e-6*math.Max(1, d) {
				shells = append(shells, d)
			}
		}
		// the outermost shell may be incomplete, require one extra
		if len(shells) > n {
			return shells[:n]
		}
	}
	return nil
}
