package lattice

import (
	"fmt"

	"github.com/YuminosukeSato/tce/pkg/errors"
)

// Configuration assigns one species to every site of a supercell. It is
// immutable; operations that change occupation return a new value.
type Configuration struct {
	supercell *Supercell
	species   []int
}

// NewConfiguration builds a configuration from species names in supercell
// site order. It fails with a ShapeError on a length mismatch and with a
// ConfigurationError naming the site when a species is not in the site's
// sublattice alphabet.
func NewConfiguration(sc *Supercell, species []string) (*Configuration, error) {
	const op = "lattice.NewConfiguration"
	if sc == nil {
		return nil, errors.NewConfigurationError(op, "supercell", "nil supercell")
	}
	if len(species) != sc.NumSites() {
		return nil, errors.NewShapeError(op, "species assignment", sc.NumSites(), len(species))
	}
	idx := make([]int, len(species))
	for i, name := range species {
		alpha := sc.lattice.AlphabetOf(sc.points[i].Basis)
		k := alpha.Index(name)
		if k < 0 {
			return nil, errors.NewConfigurationErrorf(op, siteName(sc, i),
				"species %q not in alphabet %v", name, []string(alpha))
		}
		idx[i] = k
	}
	return &Configuration{supercell: sc, species: idx}, nil
}

// NewConfigurationFromIndices builds a configuration from alphabet indices.
func NewConfigurationFromIndices(sc *Supercell, indices []int) (*Configuration, error) {
	const op = "lattice.NewConfigurationFromIndices"
	if sc == nil {
		return nil, errors.NewConfigurationError(op, "supercell", "nil supercell")
	}
	if len(indices) != sc.NumSites() {
		return nil, errors.NewShapeError(op, "species assignment", sc.NumSites(), len(indices))
	}
	c := &Configuration{supercell: sc, species: append([]int(nil), indices...)}
	if err := c.validate(op); err != nil {
		return nil, err
	}
	return c, nil
}

func siteName(sc *Supercell, i int) string {
	p := sc.points[i]
	return fmt.Sprintf("site %d (cell %v, basis %d)", i, p.Cell, p.Basis)
}

// Validate re-checks every site against its alphabet.
func (c *Configuration) Validate() error {
	return c.validate("lattice.Configuration.Validate")
}

func (c *Configuration) validate(op string) error {
	for i, k := range c.species {
		alpha := c.supercell.lattice.AlphabetOf(c.supercell.points[i].Basis)
		if k < 0 || k >= len(alpha) {
			return errors.NewConfigurationErrorf(op, siteName(c.supercell, i),
				"species index %d outside alphabet %v", k, []string(alpha))
		}
	}
	return nil
}

// Supercell returns the hosting supercell.
func (c *Configuration) Supercell() *Supercell { return c.supercell }

// Lattice returns the underlying lattice.
func (c *Configuration) Lattice() *Lattice { return c.supercell.lattice }

// NumSites returns the number of sites.
func (c *Configuration) NumSites() int { return len(c.species) }

// SpeciesIndex returns the alphabet index of the species on site i.
func (c *Configuration) SpeciesIndex(i int) int { return c.species[i] }

// Species returns the species name on site i.
func (c *Configuration) Species(i int) string {
	return c.supercell.lattice.AlphabetOf(c.supercell.points[i].Basis)[c.species[i]]
}

// Indices returns a copy of the per-site alphabet indices.
func (c *Configuration) Indices() []int { return append([]int(nil), c.species...) }

// SpeciesNames returns the per-site species names.
func (c *Configuration) SpeciesNames() []string {
	out := make([]string, len(c.species))
	for i := range c.species {
		out[i] = c.Species(i)
	}
	return out
}

// Composition counts sites per species.
func (c *Configuration) Composition() map[string]int {
	out := make(map[string]int)
	for i := range c.species {
		out[c.Species(i)]++
	}
	return out
}

// ApplySymmetry returns the configuration carried by symmetry operation op:
// the species on site i moves to the image of i. It fails with a
// ConfigurationError if op does not map the supercell onto itself.
func (c *Configuration) ApplySymmetry(op int) (*Configuration, error) {
	const name = "lattice.Configuration.ApplySymmetry"
	if op < 0 || op >= c.supercell.lattice.NumOps() {
		return nil, errors.NewConfigurationErrorf(name, "symmetry operation",
			"index %d out of range [0, %d)", op, c.supercell.lattice.NumOps())
	}
	if !c.supercell.Compatible(op) {
		return nil, errors.NewConfigurationErrorf(name, fmt.Sprintf("symmetry operation %d", op),
			"does not map supercell %s onto itself", c.supercell.key)
	}
	out := make([]int, len(c.species))
	for i, k := range c.species {
		out[c.supercell.MapSite(op, i)] = k
	}
	return &Configuration{supercell: c.supercell, species: out}, nil
}

// Swap returns a copy with the species on sites i and j exchanged. Both
// sites must share a sublattice.
func (c *Configuration) Swap(i, j int) (*Configuration, error) {
	const op = "lattice.Configuration.Swap"
	n := len(c.species)
	if i < 0 || i >= n || j < 0 || j >= n {
		return nil, errors.NewConfigurationErrorf(op, "site", "swap (%d, %d) out of range [0, %d)", i, j, n)
	}
	si := c.supercell.lattice.Site(c.supercell.points[i].Basis).Sublattice
	sj := c.supercell.lattice.Site(c.supercell.points[j].Basis).Sublattice
	if si != sj {
		return nil, errors.NewConfigurationErrorf(op, siteName(c.supercell, j),
			"sublattice %d differs from sublattice %d of site %d", sj, si, i)
	}
	out := append([]int(nil), c.species...)
	out[i], out[j] = out[j], out[i]
	return &Configuration{supercell: c.supercell, species: out}, nil
}
