package lattice

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r3"
)

// Vec3 is a 3-vector, fractional or Cartesian depending on context.
type Vec3 [3]float64

func (v Vec3) vec() r3.Vec { return r3.Vec{X: v[0], Y: v[1], Z: v[2]} }

func fromVec(v r3.Vec) Vec3 { return Vec3{v.X, v.Y, v.Z} }

// SymOp is an affine map on fractional coordinates, x' = Rotation·x + Translation.
type SymOp struct {
	Rotation    [3][3]int
	Translation Vec3
}

// Identity returns the identity operation.
func Identity() SymOp {
	return SymOp{Rotation: [3][3]int{{1, 0, 0}, {0, 1, 0}, {0, 0, 1}}}
}

// Apply maps a fractional coordinate.
func (op SymOp) Apply(x Vec3) Vec3 {
	var y Vec3
	for i := 0; i < 3; i++ {
		y[i] = op.Translation[i]
		for j := 0; j < 3; j++ {
			y[i] += float64(op.Rotation[i][j]) * x[j]
		}
	}
	return y
}

// Compose returns op∘other, the map applying other first.
func (op SymOp) Compose(other SymOp) SymOp {
	var out SymOp
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			for k := 0; k < 3; k++ {
				out.Rotation[i][j] += op.Rotation[i][k] * other.Rotation[k][j]
			}
		}
	}
	out.Translation = op.Apply(other.Translation)
	return out
}

// reduced brings the translation into [0, 1).
func (op SymOp) reduced(tol float64) SymOp {
	for i := range op.Translation {
		op.Translation[i] = wrapUnit(op.Translation[i], tol)
	}
	return op
}

func (op SymOp) key() string {
	var b strings.Builder
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			fmt.Fprintf(&b, "%d,", op.Rotation[i][j])
		}
	}
	for i := 0; i < 3; i++ {
		fmt.Fprintf(&b, "%d,", int64(math.Round(op.Translation[i]*1e4)))
	}
	return b.String()
}

func (op SymOp) isIdentity(tol float64) bool {
	id := Identity()
	if op.Rotation != id.Rotation {
		return false
	}
	r := op.reduced(tol)
	return math.Abs(r.Translation[0])+math.Abs(r.Translation[1])+math.Abs(r.Translation[2]) < tol
}

func (op SymOp) det() int {
	r := op.Rotation
	return r[0][0]*(r[1][1]*r[2][2]-r[1][2]*r[2][1]) -
		r[0][1]*(r[1][0]*r[2][2]-r[1][2]*r[2][0]) +
		r[0][2]*(r[1][0]*r[2][1]-r[1][1]*r[2][0])
}

// wrapUnit maps x into [0, 1), snapping values within tol of an integer to 0.
func wrapUnit(x, tol float64) float64 {
	f := x - math.Floor(x)
	if f < tol || 1-f < tol {
		return 0
	}
	return f
}

// nearInteger reports whether x is within tol of an integer and returns it.
func nearInteger(x, tol float64) (int, bool) {
	r := math.Round(x)
	return int(r), math.Abs(x-r) < tol
}

// metric returns G = C·Cᵀ for a cell whose rows are lattice vectors.
func metric(cell [3]Vec3) *mat.Dense {
	c := cellDense(cell)
	var g mat.Dense
	g.Mul(c, c.T())
	return &g
}

func cellDense(cell [3]Vec3) *mat.Dense {
	return mat.NewDense(3, 3, []float64{
		cell[0][0], cell[0][1], cell[0][2],
		cell[1][0], cell[1][1], cell[1][2],
		cell[2][0], cell[2][1], cell[2][2],
	})
}

// preservesMetric checks Rᵀ·G·R = G.
func preservesMetric(r [3][3]int, g *mat.Dense, tol float64) bool {
	rd := mat.NewDense(3, 3, nil)
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			rd.Set(i, j, float64(r[i][j]))
		}
	}
	var tmp, out mat.Dense
	tmp.Mul(rd.T(), g)
	out.Mul(&tmp, rd)
	scale := mat.Max(g)
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			if math.Abs(out.At(i, j)-g.At(i, j)) > tol*scale {
				return false
			}
		}
	}
	return true
}

// mapsBasis reports whether op maps every basis site onto a basis site of the
// same sublattice modulo lattice translations.
func mapsBasis(op SymOp, sites []Site, tol float64) bool {
	for _, s := range sites {
		if _, _, ok := locate(op.Apply(s.Position), s.Sublattice, sites, tol); !ok {
			return false
		}
	}
	return true
}

// locate finds the basis site b with y - position(b) integral, returning b and
// the integer shift.
func locate(y Vec3, sublattice int, sites []Site, tol float64) (int, [3]int, bool) {
	for b, s := range sites {
		if s.Sublattice != sublattice {
			continue
		}
		var shift [3]int
		ok := true
		for k := 0; k < 3; k++ {
			n, isInt := nearInteger(y[k]-s.Position[k], tol)
			if !isInt {
				ok = false
				break
			}
			shift[k] = n
		}
		if ok {
			return b, shift, true
		}
	}
	return 0, [3]int{}, false
}

// DetectSymmetry returns the space group of the decorated basis modulo lattice
// translations: every rotation with entries in {-1, 0, 1} that preserves the
// metric, paired with each translation that maps the basis onto itself.
// The identity is always first; the rest are sorted by key.
func DetectSymmetry(cell [3]Vec3, sites []Site, tol float64) []SymOp {
	if len(sites) == 0 {
		return []SymOp{Identity()}
	}
	g := metric(cell)
	seen := map[string]bool{}
	var ops []SymOp

	var r [3][3]int
	var search func(k int)
	search = func(k int) {
		if k == 9 {
			op := SymOp{Rotation: r}
			if d := op.det(); d != 1 && d != -1 {
				return
			}
			if !preservesMetric(r, g, 1e-6) {
				return
			}
			origin := op.Apply(sites[0].Position)
			for _, target := range sites {
				if target.Sublattice != sites[0].Sublattice {
					continue
				}
				cand := op
				cand.Translation = fromVec(r3.Sub(target.Position.vec(), origin.vec()))
				cand = cand.reduced(tol)
				if !mapsBasis(cand, sites, tol) {
					continue
				}
				if key := cand.key(); !seen[key] {
					seen[key] = true
					ops = append(ops, cand)
				}
			}
			return
		}
		for _, v := range []int{-1, 0, 1} {
			r[k/3][k%3] = v
			search(k + 1)
		}
	}
	search(0)

	sort.SliceStable(ops, func(i, j int) bool {
		ii, jj := ops[i].isIdentity(tol), ops[j].isIdentity(tol)
		if ii != jj {
			return ii
		}
		return ops[i].key() < ops[j].key()
	})
	return ops
}
