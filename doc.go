// Package tce fits and evaluates topological cluster expansions of alloy
// energetics.
//
// A cluster expansion writes the energy of an atomic configuration on a
// crystal lattice as E(σ) = Σ_o ECI_o · Φ_o(σ), a sum over symmetry-distinct
// cluster orbits o of an effective cluster interaction times the orbit's
// correlation function. This module enumerates the orbits, evaluates
// correlations on periodic supercells, fits the interactions by
// cross-validated regularised least squares and predicts energies of new
// configurations.
//
// # Packages
//
//   - lattice: crystal lattices, symmetry groups, supercells and configurations
//   - cluster: cluster orbits, canonical forms and an orbit cache
//   - correlation: basis functions and correlation evaluation (naive and sparse)
//   - design: design matrix assembly and energy tables
//   - linear: weighted ridge and elastic-net solvers
//   - fit: k-fold cross-validated regularisation selection
//   - metrics: weighted error metrics
//   - predict: energies, batch prediction and swap energies
//   - expansion: end-to-end training, JSON/gob persistence, ECI tables
//   - config: YAML training parameters
//   - core/parallel, core/model, pkg/errors, pkg/log: shared infrastructure
//
// # Quick Start
//
//	lat, _ := lattice.Preset(lattice.FCC, 3.6, lattice.Alphabet{"Cu", "Au"})
//	cfg, _ := config.Load(strings.NewReader("max_order: 3\nmax_shell: 2\n"))
//
//	samples := []expansion.Sample{ /* labelled configurations on lat */ }
//	ce, err := expansion.Train(samples, cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	e, _ := ce.Predict(newConfiguration)
//
// See examples/binary_chain for a runnable program.
package tce
