package correlation

import (
	"math"
	"strings"

	"github.com/YuminosukeSato/tce/pkg/errors"
)

// Basis maps a species index σ on a site with an alphabet of size M to the
// value of site function α (1 ≤ α < M).
type Basis interface {
	Value(species, function, size int) float64
	Name() string
}

// Trigonometric is the Fourier site basis:
//
//	θ_α(σ) = cos(2π⌈α/2⌉σ/M)  for odd α
//	θ_α(σ) = sin(2π(α/2)σ/M)  for even α
//
// For a binary alphabet it reduces to the spin variable +1/-1.
type Trigonometric struct{}

// Value implements Basis.
func (Trigonometric) Value(species, function, size int) float64 {
	if size == 2 {
		if species == 0 {
			return 1
		}
		return -1
	}
	k := float64((function + 1) / 2)
	arg := 2 * math.Pi * k * float64(species) / float64(size)
	if function%2 == 1 {
		return math.Cos(arg)
	}
	return math.Sin(arg)
}

// Name implements Basis.
func (Trigonometric) Name() string { return "trigonometric" }

// Indicator is the occupation basis: θ_α(σ) = 1 if σ = α, else 0.
type Indicator struct{}

// Value implements Basis.
func (Indicator) Value(species, function, _ int) float64 {
	if species == function {
		return 1
	}
	return 0
}

// Name implements Basis.
func (Indicator) Name() string { return "indicator" }

// ParseBasis resolves a basis by name.
func ParseBasis(name string) (Basis, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "trigonometric", "trig":
		return Trigonometric{}, nil
	case "indicator", "occupation":
		return Indicator{}, nil
	}
	return nil, errors.NewConfigurationErrorf("correlation.ParseBasis", "basis", "unknown basis %q", name)
}
