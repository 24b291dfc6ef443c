package design

import (
	"fmt"
	"io"
	"math"

	"github.com/gocarina/gocsv"

	"github.com/YuminosukeSato/tce/pkg/errors"
)

// EnergyRecord is one row of a two-column energy table: a configuration
// identifier and its energy.
type EnergyRecord struct {
	ID     string  `csv:"id"`
	Energy float64 `csv:"energy"`
}

// ReadEnergies parses an "id,energy" CSV table with a header row. Identifiers
// must be unique and non-empty; energies must be finite.
func ReadEnergies(r io.Reader) ([]EnergyRecord, error) {
	const op = "design.ReadEnergies"
	var records []EnergyRecord
	if err := gocsv.Unmarshal(r, &records); err != nil {
		return nil, errors.Wrap(err, op)
	}
	seen := make(map[string]int, len(records))
	for i, rec := range records {
		if rec.ID == "" {
			return nil, errors.NewConfigurationErrorf(op, fmt.Sprintf("row %d", i+1), "empty identifier")
		}
		if prev, dup := seen[rec.ID]; dup {
			return nil, errors.NewConfigurationErrorf(op, fmt.Sprintf("row %d", i+1),
				"identifier %q already used in row %d", rec.ID, prev+1)
		}
		seen[rec.ID] = i
		if math.IsNaN(rec.Energy) || math.IsInf(rec.Energy, 0) {
			return nil, errors.NewNonFiniteError(op, fmt.Sprintf("energy of %q", rec.ID), i, rec.Energy)
		}
	}
	return records, nil
}

// WriteEnergies writes records as an "id,energy" CSV table.
func WriteEnergies(w io.Writer, records []EnergyRecord) error {
	if err := gocsv.Marshal(records, w); err != nil {
		return errors.Wrap(err, "design.WriteEnergies")
	}
	return nil
}

// Lookup returns the energies of ids in the given order. A missing
// identifier is a ShapeError.
func Lookup(records []EnergyRecord, ids []string) ([]float64, error) {
	byID := make(map[string]float64, len(records))
	for _, rec := range records {
		byID[rec.ID] = rec.Energy
	}
	out := make([]float64, len(ids))
	for i, id := range ids {
		e, ok := byID[id]
		if !ok {
			return nil, errors.NewShapeError("design.Lookup", fmt.Sprintf("energy records for configuration %q", id), 1, 0)
		}
		out[i] = e
	}
	return out, nil
}
