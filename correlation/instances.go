package correlation

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"

	"github.com/YuminosukeSato/tce/cluster"
	"github.com/YuminosukeSato/tce/lattice"
)

// table lists the concrete instances of one orbit in one supercell. Instance
// r occupies sites[r*order : (r+1)*order] with site functions at the same
// positions in funcs; cols holds site*stride+function for the sparse kernel.
type table struct {
	order int
	n     int
	sites []int
	funcs []int
	cols  []int

	// incidence[site] lists the instances touching site, each once.
	incidence map[int][]int
}

// compiled holds the tables of an orbit list for one supercell.
type compiled struct {
	stride int
	tables []*table
	total  int // sum of n*order
}

// buildTable maps every image of the orbit by every supercell translation,
// wraps it into the supercell and drops duplicates by sorted (site, function)
// tuples.
func buildTable(sc *lattice.Supercell, o cluster.Orbit, stride int) *table {
	t := &table{order: o.Order}
	if o.Order == 0 {
		t.n = 1
		return t
	}
	seen := make(map[string]struct{})
	type entry struct{ site, fn int }
	buf := make([]entry, o.Order)
	var kb strings.Builder
	for _, img := range o.Images {
		for _, tr := range sc.Translations() {
			for k, p := range img.Points {
				buf[k] = entry{sc.SiteIndex(p.Translate(tr)), img.Functions[k]}
			}
			sort.Slice(buf, func(a, b int) bool {
				if buf[a].site != buf[b].site {
					return buf[a].site < buf[b].site
				}
				return buf[a].fn < buf[b].fn
			})
			kb.Reset()
			for _, e := range buf {
				fmt.Fprintf(&kb, "%d:%d,", e.site, e.fn)
			}
			key := kb.String()
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			for _, e := range buf {
				t.sites = append(t.sites, e.site)
				t.funcs = append(t.funcs, e.fn)
				t.cols = append(t.cols, e.site*stride+e.fn)
			}
			t.n++
		}
	}
	t.incidence = make(map[int][]int)
	for r := 0; r < t.n; r++ {
		for k := 0; k < t.order; k++ {
			s := t.sites[r*t.order+k]
			list := t.incidence[s]
			if len(list) == 0 || list[len(list)-1] != r {
				t.incidence[s] = append(list, r)
			}
		}
	}
	return t
}

func compile(sc *lattice.Supercell, orbits []cluster.Orbit) *compiled {
	c := &compiled{stride: maxAlphabet(sc.Lattice()), tables: make([]*table, len(orbits))}
	for i, o := range orbits {
		c.tables[i] = buildTable(sc, o, c.stride)
		c.total += c.tables[i].n * c.tables[i].order
	}
	return c
}

func maxAlphabet(lat *lattice.Lattice) int {
	m := 0
	for _, a := range lat.Alphabets() {
		if len(a) > m {
			m = len(a)
		}
	}
	return m
}

// tableKey identifies the tables of an orbit list in a supercell.
func tableKey(sc *lattice.Supercell, orbits []cluster.Orbit) string {
	h := sha256.New()
	fmt.Fprintf(h, "%s|%s|", sc.Lattice().Fingerprint(), sc.Key())
	for _, o := range orbits {
		fmt.Fprintf(h, "%s#", o.Representative.Key())
	}
	return hex.EncodeToString(h.Sum(nil))
}
