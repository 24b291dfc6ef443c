// Package log defines standard attribute keys for cluster expansion operations.
//
// Keys follow a hierarchical naming convention ("data.samples",
// "tce.orbits") so that log lines from different stages can be filtered
// together.

package log

// Operation context.
const (
	// ComponentKey identifies which package is logging.
	// Examples: "tce.cluster", "tce.design", "tce.fit"
	ComponentKey = "ml.component"

	// OperationKey specifies the stage being performed.
	OperationKey = "ml.operation"
)

// Data shape.
const (
	// SamplesKey is the number of training configurations (design matrix rows).
	SamplesKey = "data.samples"

	// FeaturesKey is the number of correlation functions (design matrix columns).
	FeaturesKey = "data.features"

	// SitesKey is the number of sites in a supercell.
	SitesKey = "data.sites"

	// ConfigurationIndexKey identifies a configuration by its input position.
	ConfigurationIndexKey = "data.configuration"
)

// Cluster expansion specifics.
const (
	// OrbitsKey is the number of retained cluster orbits.
	OrbitsKey = "tce.orbits"

	// MaxOrderKey is the largest cluster order enumerated.
	MaxOrderKey = "tce.max_order"

	// MaxDiameterKey is the enumeration cutoff on cluster diameter.
	MaxDiameterKey = "tce.max_diameter"

	// SymmetryOpsKey is the size of the lattice symmetry group.
	SymmetryOpsKey = "tce.symmetry_ops"

	// InstancesKey is the number of concrete cluster instances in a supercell.
	InstancesKey = "tce.instances"

	// StrategyKey names the contraction strategy in use.
	StrategyKey = "tce.contraction"

	// ActiveECIKey is the number of non-zero effective cluster interactions.
	ActiveECIKey = "tce.active_eci"
)

// Fit diagnostics.
const (
	// RegularizationKey records regularization strength.
	RegularizationKey = "hyperparams.regularization"

	// FoldsKey is the number of cross-validation folds.
	FoldsKey = "hyperparams.folds"

	// RMSEKey records an in-sample root mean squared error.
	RMSEKey = "metrics.rmse"

	// MAEKey records an in-sample mean absolute error.
	MAEKey = "metrics.mae"

	// MaxErrorKey records the largest in-sample absolute error.
	MaxErrorKey = "metrics.max_error"

	// R2Key records the in-sample coefficient of determination.
	R2Key = "metrics.r2"

	// CVRMSEKey records a cross-validated root mean squared error.
	CVRMSEKey = "metrics.cv_rmse"

	// ConditionKey records the condition number of the normal equations.
	ConditionKey = "metrics.condition"

	// IterationKey records the iteration count of an iterative solver.
	IterationKey = "training.iteration"

	// DurationMsKey records the execution time of an operation in milliseconds.
	DurationMsKey = "perf.duration_ms"
)

// Error context.
const (
	// ErrorTypeKey categorizes the type of error encountered.
	ErrorTypeKey = "error.type"
)

// Standard operation values.
const (
	OperationEnumerate = "enumerate"
	OperationEvaluate  = "evaluate"
	OperationBuild     = "build"
	OperationFit       = "fit"
	OperationPredict   = "predict"
)
