package expansion

import (
	"encoding/json"
	"fmt"
	"io"
	"math"

	"github.com/gocarina/gocsv"

	"github.com/YuminosukeSato/tce/cluster"
	"github.com/YuminosukeSato/tce/config"
	"github.com/YuminosukeSato/tce/core/model"
	"github.com/YuminosukeSato/tce/fit"
	"github.com/YuminosukeSato/tce/lattice"
	"github.com/YuminosukeSato/tce/pkg/errors"
)

// formatVersion is bumped whenever the document layout changes.
const formatVersion = 1

type document struct {
	Version     int            `json:"version"`
	Lattice     latticeDoc     `json:"lattice"`
	Orbits      []orbitDoc     `json:"orbits"`
	ECI         []float64      `json:"eci"`
	Diagnostics diagnosticsDoc `json:"diagnostics"`
	Params      config.Config  `json:"params"`
}

type latticeDoc struct {
	Cell        [3][3]float64 `json:"cell"`
	Sites       []siteDoc     `json:"sites"`
	Alphabets   [][]string    `json:"alphabets"`
	Ops         []opDoc       `json:"symmetry_ops"`
	Tolerance   float64       `json:"tolerance"`
	Fingerprint string        `json:"fingerprint"`
}

type siteDoc struct {
	Position   [3]float64 `json:"position"`
	Sublattice int        `json:"sublattice"`
}

type opDoc struct {
	Rotation    [3][3]int  `json:"rotation"`
	Translation [3]float64 `json:"translation"`
}

type pointDoc struct {
	Cell  [3]int `json:"cell"`
	Basis int    `json:"basis"`
}

type orbitDoc struct {
	Points       []pointDoc `json:"points"`
	Functions    []int      `json:"functions"`
	Multiplicity int        `json:"multiplicity"`
}

// diagnosticsDoc mirrors fit.Diagnostics; JSON has no infinity, so a
// non-finite condition number is left out.
type diagnosticsDoc struct {
	RMSE           float64     `json:"rmse"`
	MAE            float64     `json:"mae"`
	MaxError       float64     `json:"max_error"`
	R2             float64     `json:"r2"`
	CVRMSE         float64     `json:"cv_rmse"`
	Regularization float64     `json:"regularization"`
	Condition      *float64    `json:"condition,omitempty"`
	Path           []fit.Score `json:"path"`
	ActiveECI      int         `json:"active_eci"`
}

func (ce *ClusterExpansion) document() document {
	lat := ce.Lattice
	doc := document{
		Version: formatVersion,
		Lattice: latticeDoc{
			Tolerance:   lat.Tolerance(),
			Fingerprint: lat.Fingerprint(),
		},
		ECI:    append([]float64(nil), ce.ECI...),
		Params: ce.Params,
	}
	for i, v := range lat.Cell() {
		doc.Lattice.Cell[i] = v
	}
	for _, s := range lat.Sites() {
		doc.Lattice.Sites = append(doc.Lattice.Sites, siteDoc{Position: s.Position, Sublattice: s.Sublattice})
	}
	for _, a := range lat.Alphabets() {
		doc.Lattice.Alphabets = append(doc.Lattice.Alphabets, []string(a))
	}
	for _, op := range lat.Ops() {
		doc.Lattice.Ops = append(doc.Lattice.Ops, opDoc{Rotation: op.Rotation, Translation: op.Translation})
	}
	for _, o := range ce.Orbits {
		od := orbitDoc{
			Points:       []pointDoc{},
			Functions:    append([]int{}, o.Representative.Functions...),
			Multiplicity: o.Multiplicity,
		}
		for _, p := range o.Representative.Points {
			od.Points = append(od.Points, pointDoc{Cell: p.Cell, Basis: p.Basis})
		}
		doc.Orbits = append(doc.Orbits, od)
	}

	d := ce.Diagnostics
	doc.Diagnostics = diagnosticsDoc{
		RMSE:           d.RMSE,
		MAE:            d.MAE,
		MaxError:       d.MaxError,
		R2:             d.R2,
		CVRMSE:         d.CVRMSE,
		Regularization: d.Regularization,
		Path:           d.Path,
		ActiveECI:      d.ActiveECI,
	}
	if !math.IsInf(d.Condition, 0) && !math.IsNaN(d.Condition) {
		c := d.Condition
		doc.Diagnostics.Condition = &c
	}
	return doc
}

// fromDocument rebuilds an expansion, re-deriving the lattice group and
// every orbit and checking them against the stored values.
func fromDocument(doc document) (*ClusterExpansion, error) {
	const op = "expansion.Load"
	if doc.Version != formatVersion {
		return nil, errors.NewConfigurationErrorf(op, "version", "unsupported document version %d", doc.Version)
	}

	var cell [3]lattice.Vec3
	for i, v := range doc.Lattice.Cell {
		cell[i] = v
	}
	sites := make([]lattice.Site, len(doc.Lattice.Sites))
	for i, s := range doc.Lattice.Sites {
		sites[i] = lattice.Site{Position: s.Position, Sublattice: s.Sublattice}
	}
	alphabets := make([]lattice.Alphabet, len(doc.Lattice.Alphabets))
	for i, a := range doc.Lattice.Alphabets {
		alphabets[i] = lattice.Alphabet(a)
	}
	ops := make([]lattice.SymOp, len(doc.Lattice.Ops))
	for i, o := range doc.Lattice.Ops {
		ops[i] = lattice.SymOp{Rotation: o.Rotation, Translation: o.Translation}
	}
	var latOpts []lattice.Option
	if doc.Lattice.Tolerance > 0 {
		latOpts = append(latOpts, lattice.WithTolerance(doc.Lattice.Tolerance))
	}
	lat, err := lattice.New(cell, sites, alphabets, ops, latOpts...)
	if err != nil {
		return nil, errors.Wrap(err, op)
	}
	if doc.Lattice.Fingerprint != "" && doc.Lattice.Fingerprint != lat.Fingerprint() {
		return nil, errors.NewConfigurationError(op, "lattice", "stored fingerprint does not match the rebuilt lattice")
	}

	orbits := make([]cluster.Orbit, len(doc.Orbits))
	for i, od := range doc.Orbits {
		rep := cluster.Cluster{Functions: append([]int(nil), od.Functions...)}
		for _, p := range od.Points {
			rep.Points = append(rep.Points, lattice.LatticePoint{Cell: p.Cell, Basis: p.Basis})
		}
		o, err := cluster.NewOrbit(lat, rep)
		if err != nil {
			return nil, errors.Wrapf(err, "%s: orbit %d", op, i)
		}
		if od.Multiplicity != 0 && od.Multiplicity != o.Multiplicity {
			return nil, errors.NewConfigurationErrorf(op, fmt.Sprintf("orbit %d", i),
				"stored multiplicity %d, rebuilt %d", od.Multiplicity, o.Multiplicity)
		}
		orbits[i] = o
	}

	d := doc.Diagnostics
	diag := fit.Diagnostics{
		RMSE:           d.RMSE,
		MAE:            d.MAE,
		MaxError:       d.MaxError,
		R2:             d.R2,
		CVRMSE:         d.CVRMSE,
		Regularization: d.Regularization,
		Condition:      math.Inf(1),
		Path:           d.Path,
		ActiveECI:      d.ActiveECI,
	}
	if d.Condition != nil {
		diag.Condition = *d.Condition
	}
	return New(lat, orbits, doc.ECI, diag, doc.Params)
}

// WriteJSON writes a self-describing JSON document of the expansion.
func (ce *ClusterExpansion) WriteJSON(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(ce.document()); err != nil {
		return errors.Wrap(err, "failed to encode expansion")
	}
	return nil
}

// ReadJSON reads and validates a document written by WriteJSON.
func ReadJSON(r io.Reader) (*ClusterExpansion, error) {
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	var doc document
	if err := dec.Decode(&doc); err != nil {
		return nil, errors.NewConfigurationErrorf("expansion.ReadJSON", "document", "%v", err)
	}
	return fromDocument(doc)
}

// Save writes the expansion to filename in gob format.
func (ce *ClusterExpansion) Save(filename string) error {
	doc := ce.document()
	return model.SaveModel(&doc, filename)
}

// Load reads an expansion saved with Save.
func Load(filename string) (*ClusterExpansion, error) {
	var doc document
	if err := model.LoadModel(&doc, filename); err != nil {
		return nil, err
	}
	return fromDocument(doc)
}

// ECIRecord is one row of the interaction table.
type ECIRecord struct {
	Index          int     `csv:"index"`
	Order          int     `csv:"order"`
	Diameter       float64 `csv:"diameter"`
	Multiplicity   int     `csv:"multiplicity"`
	Representative string  `csv:"representative"`
	ECI            float64 `csv:"eci"`
}

// ECITable lists every orbit with its interaction.
func (ce *ClusterExpansion) ECITable() []ECIRecord {
	out := make([]ECIRecord, len(ce.Orbits))
	for i, o := range ce.Orbits {
		out[i] = ECIRecord{
			Index:          i,
			Order:          o.Order,
			Diameter:       o.Diameter,
			Multiplicity:   o.Multiplicity,
			Representative: o.Representative.String(),
			ECI:            ce.ECI[i],
		}
	}
	return out
}

// WriteECITable writes ECITable as CSV.
func (ce *ClusterExpansion) WriteECITable(w io.Writer) error {
	records := ce.ECITable()
	if err := gocsv.Marshal(&records, w); err != nil {
		return errors.Wrap(err, "failed to write interaction table")
	}
	return nil
}
