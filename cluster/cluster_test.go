package cluster

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/YuminosukeSato/tce/lattice"
	"github.com/YuminosukeSato/tce/pkg/errors"
)

var binary = lattice.Alphabet{"A", "B"}

func twoSiteChain(t *testing.T, alphabets []lattice.Alphabet, sublattices [2]int) *lattice.Lattice {
	t.Helper()
	cell := [3]lattice.Vec3{{2, 0, 0}, {0, 5, 0}, {0, 0, 5}}
	sites := []lattice.Site{
		{Position: lattice.Vec3{0, 0, 0}, Sublattice: sublattices[0]},
		{Position: lattice.Vec3{0.5, 0, 0}, Sublattice: sublattices[1]},
	}
	gens := []lattice.SymOp{{Rotation: [3][3]int{{-1, 0, 0}, {0, 1, 0}, {0, 0, 1}}}}
	if sublattices[0] == sublattices[1] {
		gens = append(gens, lattice.SymOp{Rotation: lattice.Identity().Rotation, Translation: lattice.Vec3{0.5, 0, 0}})
	}
	l, err := lattice.New(cell, sites, alphabets, gens)
	require.NoError(t, err)
	return l
}

func TestEnumerateOrbitsTwoSiteScenario(t *testing.T) {
	l := twoSiteChain(t, []lattice.Alphabet{binary}, [2]int{0, 0})

	orbits, err := EnumerateOrbits(l, 2, 1.0)
	require.NoError(t, err)
	require.Len(t, orbits, 3)

	require.True(t, orbits[0].IsEmpty())
	require.Equal(t, 1, orbits[1].Order)
	require.Equal(t, 2, orbits[1].Multiplicity) // both basis sites
	require.Equal(t, 2, orbits[2].Order)
	require.InDelta(t, 1.0, orbits[2].Diameter, 1e-12)
}

func TestEnumerateOrbitsCounts(t *testing.T) {
	fcc, err := lattice.Preset(lattice.FCC, 1.0, binary)
	require.NoError(t, err)
	chain, err := lattice.Preset(lattice.Chain, 1.0, binary)
	require.NoError(t, err)
	ternaryChain, err := lattice.Preset(lattice.Chain, 1.0, lattice.Alphabet{"A", "B", "C"})
	require.NoError(t, err)

	tests := []struct {
		name        string
		lat         *lattice.Lattice
		maxOrder    int
		maxDiameter float64
		want        int
	}{
		{"chain pairs", chain, 2, 1.0, 3},
		{"chain triplets", chain, 3, 2.0, 5},
		{"fcc pairs", fcc, 2, 1.0, 4},
		{"fcc triplets", fcc, 3, 1.0, 6},
		{"ternary chain", ternaryChain, 2, 1.0, 6},
		{"order zero", fcc, 0, 1.0, 1},
		{"negative order", fcc, -3, 1.0, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			orbits, err := EnumerateOrbits(tt.lat, tt.maxOrder, tt.maxDiameter)
			require.NoError(t, err)
			require.Len(t, orbits, tt.want)
			require.True(t, orbits[0].IsEmpty())
		})
	}
}

func TestEnumerateOrbitsFCCMultiplicity(t *testing.T) {
	fcc, err := lattice.Preset(lattice.FCC, 1.0, binary)
	require.NoError(t, err)
	orbits, err := EnumerateOrbits(fcc, 2, 1.0)
	require.NoError(t, err)

	// per conventional cell of four sites
	require.Equal(t, 4, orbits[1].Multiplicity)
	require.Equal(t, 24, orbits[2].Multiplicity)
	require.InDelta(t, 1/math.Sqrt2, orbits[2].Diameter, 1e-12)
	require.Equal(t, 12, orbits[3].Multiplicity)
	require.InDelta(t, 1.0, orbits[3].Diameter, 1e-12)
}

func TestEnumerateOrbitsIdempotentAndSorted(t *testing.T) {
	hcp, err := lattice.Preset(lattice.HCP, 1.0, lattice.Alphabet{"Co", "Ni", "Cr"})
	require.NoError(t, err)

	first, err := EnumerateOrbits(hcp, 3, 1.0)
	require.NoError(t, err)
	second, err := EnumerateOrbits(hcp, 3, 1.0)
	require.NoError(t, err)
	require.Equal(t, first, second)

	for i := 2; i < len(first); i++ {
		a, b := first[i-1], first[i]
		require.LessOrEqual(t, a.Order, b.Order)
		if a.Order == b.Order {
			require.LessOrEqual(t, a.Diameter, b.Diameter+1e-9)
		}
	}
}

func TestOrbitClosedUnderSymmetry(t *testing.T) {
	fcc, err := lattice.Preset(lattice.FCC, 1.0, binary)
	require.NoError(t, err)
	orbits, err := EnumerateOrbits(fcc, 3, 1.0)
	require.NoError(t, err)

	for _, o := range orbits[1:] {
		keys := map[string]bool{}
		for _, img := range o.Images {
			keys[img.Key()] = true
		}
		for _, img := range o.Images {
			for op := 0; op < fcc.NumOps(); op++ {
				require.True(t, keys[img.Transform(fcc, op).Key()], "%s not closed under op %d", o, op)
			}
			require.Equal(t, o.Representative, Canonical(fcc, img))
		}
	}
}

func TestEnumerateOrbitsSkipsInactiveSublattice(t *testing.T) {
	l := twoSiteChain(t, []lattice.Alphabet{binary, {"X"}}, [2]int{0, 1})

	orbits, err := EnumerateOrbits(l, 2, 2.0)
	require.NoError(t, err)
	require.Len(t, orbits, 3)
	for _, o := range orbits {
		for _, p := range o.Representative.Points {
			require.Equal(t, 0, p.Basis)
		}
	}
}

func TestEnumerateOrbitsInvalidDiameter(t *testing.T) {
	chain, err := lattice.Preset(lattice.Chain, 1.0, binary)
	require.NoError(t, err)

	for _, d := range []float64{0, -1, math.NaN(), math.Inf(1)} {
		_, err := EnumerateOrbits(chain, 2, d)
		require.True(t, errors.IsConfigurationError(err), "diameter %v", d)
	}
}

func TestNewOrbit(t *testing.T) {
	hcp, err := lattice.Preset(lattice.HCP, 1.0, lattice.Alphabet{"A", "B", "C"})
	require.NoError(t, err)
	orbits, err := EnumerateOrbits(hcp, 2, 1.0)
	require.NoError(t, err)

	for _, o := range orbits {
		rebuilt, err := NewOrbit(hcp, o.Representative)
		require.NoError(t, err)
		require.Equal(t, o, rebuilt)
	}

	_, err = NewOrbit(hcp, Cluster{
		Points:    []lattice.LatticePoint{{Basis: 0}},
		Functions: []int{3},
	})
	require.True(t, errors.IsConfigurationError(err))

	_, err = NewOrbit(hcp, Cluster{
		Points:    []lattice.LatticePoint{{Basis: 0}, {Basis: 0}},
		Functions: []int{1, 1},
	})
	require.True(t, errors.IsConfigurationError(err))

	_, err = NewOrbit(hcp, Cluster{Points: []lattice.LatticePoint{{Basis: 0}}})
	require.True(t, errors.IsShapeError(err))
}

func TestCache(t *testing.T) {
	chain, err := lattice.Preset(lattice.Chain, 1.0, binary)
	require.NoError(t, err)

	cache, err := NewCache(4)
	require.NoError(t, err)

	a, err := cache.EnumerateOrbits(chain, 3, 2.0)
	require.NoError(t, err)
	b, err := cache.EnumerateOrbits(chain, 3, 2.0)
	require.NoError(t, err)
	require.Equal(t, a, b)

	hits, misses := cache.Stats()
	require.Equal(t, int64(1), hits)
	require.Equal(t, int64(1), misses)
	require.Equal(t, 1, cache.Len())

	_, err = cache.EnumerateOrbits(chain, 3, -1)
	require.True(t, errors.IsConfigurationError(err))
	require.Equal(t, 1, cache.Len())

	_, err = NewCache(0)
	require.Error(t, err)
}
