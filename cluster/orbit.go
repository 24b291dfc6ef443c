package cluster

import (
	"fmt"
	"math"
	"sort"

	"github.com/YuminosukeSato/tce/lattice"
	"github.com/YuminosukeSato/tce/pkg/errors"
	"github.com/YuminosukeSato/tce/pkg/log"
)

// Orbit is the set of symmetry images of a decorated representative cluster.
type Orbit struct {
	// Representative is the canonical member of the orbit.
	Representative Cluster
	Order          int
	Diameter       float64
	// Images are the distinct members modulo lattice translation, in
	// normal form and sorted. The representative is Images[0].
	Images []Cluster
	// Multiplicity is len(Images), the number of members per primitive cell.
	Multiplicity int
	// Lattice is the fingerprint of the lattice the orbit lives on; empty
	// for the constant orbit, which fits any lattice.
	Lattice string
}

// IsEmpty reports whether this is the constant (order 0) orbit.
func (o Orbit) IsEmpty() bool { return o.Order == 0 }

func (o Orbit) String() string {
	return fmt.Sprintf("orbit(order=%d, diameter=%.4f, multiplicity=%d, %s)",
		o.Order, o.Diameter, o.Multiplicity, o.Representative)
}

// EmptyOrbit returns the constant term.
func EmptyOrbit() Orbit {
	return Orbit{Images: []Cluster{{}}, Multiplicity: 1}
}

// NewOrbit builds the orbit of a representative cluster. Points and
// Functions must have equal length, every point must lie on an active
// sublattice and every function index must be in [1, alphabet size).
func NewOrbit(lat *lattice.Lattice, representative Cluster) (Orbit, error) {
	const op = "cluster.NewOrbit"
	if len(representative.Points) == 0 {
		return EmptyOrbit(), nil
	}
	if len(representative.Functions) != len(representative.Points) {
		return Orbit{}, errors.NewShapeError(op, "cluster functions", len(representative.Points), len(representative.Functions))
	}
	seen := make(map[lattice.LatticePoint]bool, len(representative.Points))
	for i, p := range representative.Points {
		if p.Basis < 0 || p.Basis >= lat.NumSites() {
			return Orbit{}, errors.NewConfigurationErrorf(op, fmt.Sprintf("cluster point %d", i),
				"basis index %d out of range [0, %d)", p.Basis, lat.NumSites())
		}
		alpha := lat.AlphabetOf(p.Basis)
		if !alpha.Active() {
			return Orbit{}, errors.NewConfigurationErrorf(op, fmt.Sprintf("cluster point %d", i),
				"basis site %d is on an inactive sublattice", p.Basis)
		}
		if f := representative.Functions[i]; f < 1 || f >= len(alpha) {
			return Orbit{}, errors.NewConfigurationErrorf(op, fmt.Sprintf("cluster point %d", i),
				"basis function %d out of range [1, %d)", f, len(alpha))
		}
		if seen[p] {
			return Orbit{}, errors.NewConfigurationErrorf(op, fmt.Sprintf("cluster point %d", i), "duplicate point %v", p)
		}
		seen[p] = true
	}
	return buildOrbit(lat, representative), nil
}

func buildOrbit(lat *lattice.Lattice, c Cluster) Orbit {
	images := Images(lat, c)
	return Orbit{
		Representative: images[0],
		Order:          len(c.Points),
		Diameter:       images[0].Diameter(lat),
		Images:         images,
		Multiplicity:   len(images),
		Lattice:        lat.Fingerprint(),
	}
}

// EnumerateOrbits returns every orbit of decorated clusters with at most
// maxOrder points and diameter at most maxDiameter, on active sublattices.
// The constant orbit comes first; the rest are sorted by order, diameter,
// point offsets and decoration, so repeated calls return identical lists.
// maxOrder < 1 yields only the constant orbit. maxDiameter must be positive.
func EnumerateOrbits(lat *lattice.Lattice, maxOrder int, maxDiameter float64) ([]Orbit, error) {
	const op = "cluster.EnumerateOrbits"
	if lat == nil {
		return nil, errors.NewConfigurationError(op, "lattice", "nil lattice")
	}
	if !(maxDiameter > 0) || math.IsInf(maxDiameter, 0) {
		return nil, errors.NewConfigurationErrorf(op, "max diameter", "must be positive and finite, got %g", maxDiameter)
	}

	logger := log.GetLoggerWithName("tce.cluster")
	orbits := []Orbit{EmptyOrbit()}
	if maxOrder < 1 {
		return orbits, nil
	}

	// geometric representatives per order, undecorated (all functions 1)
	var shells [][]Cluster
	var points []Cluster
	seen := make(map[string]bool)
	for b := 0; b < lat.NumSites(); b++ {
		if !lat.IsActive(b) {
			continue
		}
		c := Canonical(lat, Cluster{Points: []lattice.LatticePoint{{Basis: b}}, Functions: []int{1}})
		if k := c.Key(); !seen[k] {
			seen[k] = true
			points = append(points, c)
		}
	}
	shells = append(shells, points)

	for order := 2; order <= maxOrder; order++ {
		var next []Cluster
		for _, rep := range shells[len(shells)-1] {
			for _, q := range lat.PointsWithin(rep.Points[0], maxDiameter, true) {
				if !extends(lat, rep, q, maxDiameter) {
					continue
				}
				grown := Cluster{
					Points:    append(append([]lattice.LatticePoint(nil), rep.Points...), q),
					Functions: make([]int, order),
				}
				for i := range grown.Functions {
					grown.Functions[i] = 1
				}
				c := Canonical(lat, grown)
				if k := c.Key(); !seen[k] {
					seen[k] = true
					next = append(next, c)
				}
			}
		}
		if len(next) == 0 {
			break
		}
		shells = append(shells, next)
	}

	var decorated []Orbit
	for _, shell := range shells {
		for _, geo := range shell {
			decorated = append(decorated, decorate(lat, geo)...)
		}
	}
	sortOrbits(decorated)
	orbits = append(orbits, decorated...)

	logger.Debug("enumerated cluster orbits",
		log.OperationKey, log.OperationEnumerate,
		log.OrbitsKey, len(orbits),
		log.MaxOrderKey, maxOrder,
		log.MaxDiameterKey, maxDiameter,
		log.SymmetryOpsKey, lat.NumOps(),
	)
	return orbits, nil
}

// extends reports whether q can be added to c within the diameter cutoff.
func extends(lat *lattice.Lattice, c Cluster, q lattice.LatticePoint, maxDiameter float64) bool {
	for _, p := range c.Points {
		if p == q || !lat.InRange(lat.Distance(p, q), maxDiameter) {
			return false
		}
	}
	return true
}

// decorate splits a geometric cluster into orbits per basis-function
// assignment. Binary sublattices carry a single function.
func decorate(lat *lattice.Lattice, geo Cluster) []Orbit {
	sizes := make([]int, len(geo.Points))
	for i, p := range geo.Points {
		sizes[i] = len(lat.AlphabetOf(p.Basis)) - 1
	}
	seen := make(map[string]bool)
	var out []Orbit
	funcs := make([]int, len(geo.Points))
	var walk func(i int)
	walk = func(i int) {
		if i == len(funcs) {
			c := Canonical(lat, Cluster{Points: geo.Points, Functions: append([]int(nil), funcs...)})
			if k := c.Key(); !seen[k] {
				seen[k] = true
				out = append(out, buildOrbit(lat, c))
			}
			return
		}
		for f := 1; f <= sizes[i]; f++ {
			funcs[i] = f
			walk(i + 1)
		}
	}
	walk(0)
	return out
}

// diameterQuantum is the resolution at which diameters are considered equal
// when sorting.
const diameterQuantum = 1e-8

func sortOrbits(orbits []Orbit) {
	sort.SliceStable(orbits, func(i, j int) bool {
		a, b := orbits[i], orbits[j]
		if a.Order != b.Order {
			return a.Order < b.Order
		}
		da, db := math.Round(a.Diameter/diameterQuantum), math.Round(b.Diameter/diameterQuantum)
		if da != db {
			return da < db
		}
		return Compare(a.Representative, b.Representative) < 0
	})
}
