// Package cluster enumerates symmetry-distinct clusters of lattice sites.
//
// A Cluster is a set of lattice points together with the basis function
// attached to each point. Clusters are kept in normal form: points sorted,
// translated so that the first point sits in the origin cell. Two clusters
// belong to the same orbit when a symmetry operation of the lattice maps one
// onto the other modulo a lattice translation; the canonical form of an orbit
// is the lexicographically smallest normal form over all operations.
package cluster

import (
	"fmt"
	"sort"
	"strings"

	"github.com/YuminosukeSato/tce/lattice"
)

// Cluster is a decorated set of lattice points. Functions[i] is the basis
// function index (1 ≤ α < alphabet size) on Points[i].
type Cluster struct {
	Points    []lattice.LatticePoint
	Functions []int
}

// Order returns the number of points.
func (c Cluster) Order() int { return len(c.Points) }

// Diameter returns the largest pairwise Cartesian distance.
func (c Cluster) Diameter(lat *lattice.Lattice) float64 {
	var d float64
	for i := range c.Points {
		for j := i + 1; j < len(c.Points); j++ {
			if dij := lat.Distance(c.Points[i], c.Points[j]); dij > d {
				d = dij
			}
		}
	}
	return d
}

// Clone returns a deep copy.
func (c Cluster) Clone() Cluster {
	return Cluster{
		Points:    append([]lattice.LatticePoint(nil), c.Points...),
		Functions: append([]int(nil), c.Functions...),
	}
}

// Key encodes the cluster for use as a map key.
func (c Cluster) Key() string {
	var b strings.Builder
	for i, p := range c.Points {
		fmt.Fprintf(&b, "%d,%d,%d/%d:%d;", p.Cell[0], p.Cell[1], p.Cell[2], p.Basis, c.Functions[i])
	}
	return b.String()
}

func (c Cluster) String() string {
	parts := make([]string, len(c.Points))
	for i, p := range c.Points {
		parts[i] = fmt.Sprintf("%v/%d(α=%d)", p.Cell, p.Basis, c.Functions[i])
	}
	return "{" + strings.Join(parts, " ") + "}"
}

// Normalize sorts the points (carrying their functions) and translates the
// cluster so the first point lies in the origin cell.
func (c Cluster) Normalize() Cluster {
	if len(c.Points) == 0 {
		return Cluster{}
	}
	idx := make([]int, len(c.Points))
	for i := range idx {
		idx[i] = i
	}
	sort.Slice(idx, func(a, b int) bool {
		pa, pb := c.Points[idx[a]], c.Points[idx[b]]
		if pa != pb {
			return pa.Less(pb)
		}
		return c.Functions[idx[a]] < c.Functions[idx[b]]
	})
	origin := c.Points[idx[0]].Cell
	shift := [3]int{-origin[0], -origin[1], -origin[2]}
	out := Cluster{
		Points:    make([]lattice.LatticePoint, len(idx)),
		Functions: make([]int, len(idx)),
	}
	for i, k := range idx {
		out.Points[i] = c.Points[k].Translate(shift)
		out.Functions[i] = c.Functions[k]
	}
	return out
}

// Transform applies symmetry operation op and returns the normal form.
func (c Cluster) Transform(lat *lattice.Lattice, op int) Cluster {
	out := Cluster{
		Points:    make([]lattice.LatticePoint, len(c.Points)),
		Functions: append([]int(nil), c.Functions...),
	}
	for i, p := range c.Points {
		out.Points[i] = lat.ApplySymmetry(op, p)
	}
	return out.Normalize()
}

// Compare orders normal-form clusters by order, then points, then functions.
func Compare(a, b Cluster) int {
	if len(a.Points) != len(b.Points) {
		if len(a.Points) < len(b.Points) {
			return -1
		}
		return 1
	}
	for i := range a.Points {
		if a.Points[i] != b.Points[i] {
			if a.Points[i].Less(b.Points[i]) {
				return -1
			}
			return 1
		}
	}
	for i := range a.Functions {
		if a.Functions[i] != b.Functions[i] {
			if a.Functions[i] < b.Functions[i] {
				return -1
			}
			return 1
		}
	}
	return 0
}

// Canonical returns the orbit signature of c: the smallest normal form over
// all symmetry operations.
func Canonical(lat *lattice.Lattice, c Cluster) Cluster {
	best := c.Normalize()
	for op := 1; op < lat.NumOps(); op++ {
		if img := c.Transform(lat, op); Compare(img, best) < 0 {
			best = img
		}
	}
	return best
}

// Images returns the distinct normal-form images of c under the symmetry
// group, sorted.
func Images(lat *lattice.Lattice, c Cluster) []Cluster {
	seen := make(map[string]bool)
	var out []Cluster
	for op := 0; op < lat.NumOps(); op++ {
		img := c.Transform(lat, op)
		k := img.Key()
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, img)
	}
	sort.Slice(out, func(i, j int) bool { return Compare(out[i], out[j]) < 0 })
	return out
}
