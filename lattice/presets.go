package lattice

import (
	"fmt"
	"math"
	"strings"

	"github.com/YuminosukeSato/tce/pkg/errors"
)

// Structure names a common crystal structure.
type Structure string

const (
	SC  Structure = "sc"
	BCC Structure = "bcc"
	FCC Structure = "fcc"
	HCP Structure = "hcp"
	// Chain is a one-dimensional chain along x; the perpendicular lattice
	// vectors are long enough that chains do not interact below 8a.
	Chain Structure = "chain"
)

// ParseStructure accepts the structure name case-insensitively.
func ParseStructure(s string) (Structure, error) {
	switch st := Structure(strings.ToLower(strings.TrimSpace(s))); st {
	case SC, BCC, FCC, HCP, Chain:
		return st, nil
	}
	return "", errors.NewConfigurationErrorf("lattice.ParseStructure", "structure", "unknown structure %q", s)
}

// Preset builds a single-sublattice lattice of the given structure with
// lattice constant a. Cubic structures use the conventional cubic cell;
// HCP uses the ideal c/a ratio. The symmetry group is detected.
func Preset(structure Structure, a float64, alphabet Alphabet, opts ...Option) (*Lattice, error) {
	const op = "lattice.Preset"
	if !(a > 0) || math.IsInf(a, 0) {
		return nil, errors.NewConfigurationErrorf(op, "lattice constant", "must be positive and finite, got %g", a)
	}

	var cell [3]Vec3
	var positions []Vec3
	switch structure {
	case SC, BCC, FCC:
		cell = [3]Vec3{{a, 0, 0}, {0, a, 0}, {0, 0, a}}
		positions = []Vec3{{0, 0, 0}}
		if structure == BCC {
			positions = append(positions, Vec3{0.5, 0.5, 0.5})
		}
		if structure == FCC {
			positions = append(positions, Vec3{0, 0.5, 0.5}, Vec3{0.5, 0, 0.5}, Vec3{0.5, 0.5, 0})
		}
	case HCP:
		cell = [3]Vec3{
			{a, 0, 0},
			{-a / 2, a * math.Sqrt(3) / 2, 0},
			{0, 0, a * math.Sqrt(8.0/3.0)},
		}
		positions = []Vec3{{0, 0, 0}, {2.0 / 3.0, 1.0 / 3.0, 0.5}}
	case Chain:
		cell = [3]Vec3{{a, 0, 0}, {0, 8 * a, 0}, {0, 0, 8 * a}}
		positions = []Vec3{{0, 0, 0}}
	default:
		return nil, errors.NewConfigurationError(op, "structure", fmt.Sprintf("unknown structure %q", structure))
	}

	sites := make([]Site, len(positions))
	for i, p := range positions {
		sites[i] = Site{Position: p}
	}
	return NewWithDetectedSymmetry(cell, sites, []Alphabet{alphabet}, opts...)
}
