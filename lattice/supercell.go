package lattice

import (
	"fmt"
	"math"
	"strings"

	"github.com/YuminosukeSato/tce/pkg/errors"
)

// Supercell is a finite periodic repetition of a lattice. Row i of the
// transform is the i-th supercell vector in units of the lattice vectors.
type Supercell struct {
	lattice   *Lattice
	transform [3][3]int
	adj       [3][3]int // adj·det⁻¹ = transform⁻¹, normalised so det > 0
	det       int

	points       []LatticePoint
	index        map[LatticePoint]int
	translations [][3]int
	key          string
}

// EnumerateSupercell builds the supercell generated by transform. Sites are
// ordered by cell (lexicographically over the cells inside the supercell),
// then by basis index. It fails with a DimensionError when transform is
// singular or not integer valued.
func (l *Lattice) EnumerateSupercell(transform [3][3]float64) (*Supercell, error) {
	const op = "lattice.EnumerateSupercell"
	var t [3][3]int
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			v := transform[i][j]
			if math.IsNaN(v) || math.IsInf(v, 0) || v != math.Trunc(v) {
				return nil, errors.NewDimensionError(op, transform,
					fmt.Sprintf("entry (%d,%d)=%g is not an integer", i, j, v))
			}
			t[i][j] = int(v)
		}
	}
	det := det3(t)
	if det == 0 {
		return nil, errors.NewDimensionError(op, transform, "transform is singular")
	}
	adj := adjugate(t)
	if det < 0 {
		det = -det
		for i := range adj {
			for j := range adj[i] {
				adj[i][j] = -adj[i][j]
			}
		}
	}

	s := &Supercell{lattice: l, transform: t, adj: adj, det: det}
	lo, hi := boundingBox(t)
	for n0 := lo[0]; n0 <= hi[0]; n0++ {
		for n1 := lo[1]; n1 <= hi[1]; n1++ {
			for n2 := lo[2]; n2 <= hi[2]; n2++ {
				n := [3]int{n0, n1, n2}
				if !s.inside(n) {
					continue
				}
				s.translations = append(s.translations, n)
			}
		}
	}
	if len(s.translations) != det {
		// unreachable for a consistent adjugate
		return nil, errors.NewDimensionError(op, transform,
			fmt.Sprintf("enumerated %d cells, expected %d", len(s.translations), det))
	}

	s.points = make([]LatticePoint, 0, det*l.NumSites())
	s.index = make(map[LatticePoint]int, det*l.NumSites())
	for _, n := range s.translations {
		for b := 0; b < l.NumSites(); b++ {
			p := LatticePoint{Cell: n, Basis: b}
			s.index[p] = len(s.points)
			s.points = append(s.points, p)
		}
	}

	var kb strings.Builder
	for i := 0; i < 3; i++ {
		fmt.Fprintf(&kb, "%d,%d,%d;", t[i][0], t[i][1], t[i][2])
	}
	s.key = kb.String()
	return s, nil
}

func det3(t [3][3]int) int {
	return t[0][0]*(t[1][1]*t[2][2]-t[1][2]*t[2][1]) -
		t[0][1]*(t[1][0]*t[2][2]-t[1][2]*t[2][0]) +
		t[0][2]*(t[1][0]*t[2][1]-t[1][1]*t[2][0])
}

// adjugate returns adj(t) with t·adj(t) = det(t)·I.
func adjugate(t [3][3]int) [3][3]int {
	var a [3][3]int
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			r0, r1 := (j+1)%3, (j+2)%3
			c0, c1 := (i+1)%3, (i+2)%3
			a[i][j] = t[r0][c0]*t[r1][c1] - t[r0][c1]*t[r1][c0]
		}
	}
	return a
}

// boundingBox spans the corners of the parallelepiped m·t, m ∈ {0,1}³.
func boundingBox(t [3][3]int) (lo, hi [3]int) {
	for m := 0; m < 8; m++ {
		var c [3]int
		for i := 0; i < 3; i++ {
			if m&(1<<i) == 0 {
				continue
			}
			for k := 0; k < 3; k++ {
				c[k] += t[i][k]
			}
		}
		for k := 0; k < 3; k++ {
			if c[k] < lo[k] {
				lo[k] = c[k]
			}
			if c[k] > hi[k] {
				hi[k] = c[k]
			}
		}
	}
	return lo, hi
}

func floorDiv(a, b int) int {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}

// reduce returns k = floor(n·transform⁻¹).
func (s *Supercell) reduce(n [3]int) [3]int {
	var k [3]int
	for j := 0; j < 3; j++ {
		m := 0
		for i := 0; i < 3; i++ {
			m += n[i] * s.adj[i][j]
		}
		k[j] = floorDiv(m, s.det)
	}
	return k
}

func (s *Supercell) inside(n [3]int) bool {
	return s.reduce(n) == [3]int{}
}

// WrapCell maps a cell offset into the supercell.
func (s *Supercell) WrapCell(n [3]int) [3]int {
	k := s.reduce(n)
	for j := 0; j < 3; j++ {
		for i := 0; i < 3; i++ {
			n[j] -= k[i] * s.transform[i][j]
		}
	}
	return n
}

// Wrap maps a lattice point onto its periodic image inside the supercell.
func (s *Supercell) Wrap(p LatticePoint) LatticePoint {
	return LatticePoint{Cell: s.WrapCell(p.Cell), Basis: p.Basis}
}

// SiteIndex returns the supercell site index of p after wrapping.
func (s *Supercell) SiteIndex(p LatticePoint) int {
	return s.index[s.Wrap(p)]
}

// Lattice returns the underlying lattice.
func (s *Supercell) Lattice() *Lattice { return s.lattice }

// Transform returns the integer transform.
func (s *Supercell) Transform() [3][3]int { return s.transform }

// TransformFloat returns the transform as floats, the form accepted by
// EnumerateSupercell.
func (s *Supercell) TransformFloat() [3][3]float64 {
	var out [3][3]float64
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			out[i][j] = float64(s.transform[i][j])
		}
	}
	return out
}

// NumCells returns |det(transform)|.
func (s *Supercell) NumCells() int { return s.det }

// NumSites returns the number of concrete sites.
func (s *Supercell) NumSites() int { return len(s.points) }

// Point returns site i as a lattice point.
func (s *Supercell) Point(i int) LatticePoint { return s.points[i] }

// Points returns a copy of the ordered sites.
func (s *Supercell) Points() []LatticePoint { return append([]LatticePoint(nil), s.points...) }

// Translations returns the lattice translations inside the supercell, one
// per primitive cell, in site order.
func (s *Supercell) Translations() [][3]int { return append([][3]int(nil), s.translations...) }

// Key identifies the supercell shape within its lattice.
func (s *Supercell) Key() string { return s.key }

// Compatible reports whether symmetry operation op maps the supercell
// lattice onto itself, so that it permutes the supercell sites.
func (s *Supercell) Compatible(op int) bool {
	r := s.lattice.ops[op].Rotation
	for i := 0; i < 3; i++ {
		var v [3]int
		for a := 0; a < 3; a++ {
			for b := 0; b < 3; b++ {
				v[a] += r[a][b] * s.transform[i][b]
			}
		}
		for j := 0; j < 3; j++ {
			m := 0
			for k := 0; k < 3; k++ {
				m += v[k] * s.adj[k][j]
			}
			if m%s.det != 0 {
				return false
			}
		}
	}
	return true
}

// MapSite returns the index of the site that site i is carried to by op.
// The result is a permutation only when Compatible(op) holds.
func (s *Supercell) MapSite(op, i int) int {
	return s.SiteIndex(s.lattice.ApplySymmetry(op, s.points[i]))
}
