package errors

import (
	"fmt"
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewConfigurationError(t *testing.T) {
	tests := []struct {
		name    string
		op      string
		entity  string
		reason  string
		wantMsg string
	}{
		{
			name:    "with entity",
			op:      "NewConfiguration",
			entity:  "site 3",
			reason:  `species "Xe" not in alphabet [Co Ni]`,
			wantMsg: `tce: NewConfiguration: invalid configuration of site 3: species "Xe" not in alphabet [Co Ni]`,
		},
		{
			name:    "without entity",
			op:      "New",
			reason:  "no basis sites",
			wantMsg: "tce: New: invalid configuration: no basis sites",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewConfigurationError(tt.op, tt.entity, tt.reason)
			require.Equal(t, tt.wantMsg, err.Error())
			require.True(t, IsConfigurationError(err))
			require.False(t, IsShapeError(err))

			// スタックトレースの存在確認
			formatted := fmt.Sprintf("%+v", err)
			require.True(t, strings.Contains(formatted, "errors_test.go"), "expected stack trace")
		})
	}
}

func TestShapeErrorKinds(t *testing.T) {
	err := NewShapeError("Build", "energies", 3, 2)
	require.Equal(t, "tce: Build: shape mismatch for energies. Expected 3, got 2", err.Error())
	require.True(t, IsShapeError(err))

	nonFinite := NewNonFiniteError("Build", "energies", 1, math.NaN())
	require.True(t, IsShapeError(nonFinite))
	require.Contains(t, nonFinite.Error(), "energies[1]")
}

func TestFitAndDimensionErrors(t *testing.T) {
	fitErr := NewFitErrorf("Fit", "need at least 2 rows, got %d", 1)
	require.True(t, IsFitError(fitErr))
	require.Equal(t, "tce: Fit: cannot fit: need at least 2 rows, got 1", fitErr.Error())

	dimErr := NewDimensionError("EnumerateSupercell", [3][3]float64{{1, 0, 0}, {0, 1, 0}, {0, 0, 0}}, "singular")
	require.True(t, IsDimensionError(dimErr))
	require.False(t, IsFitError(dimErr))

	wrapped := Wrap(dimErr, "building supercell")
	require.True(t, IsDimensionError(wrapped))
}

func TestValidationErrorIsConfigurationError(t *testing.T) {
	err := NewValidationError("folds", "must be at least 2", 1)
	require.True(t, IsConfigurationError(err))
	require.Contains(t, err.Error(), "'folds'")
}

func TestWarnRouting(t *testing.T) {
	var got []error
	SetWarningHandler(func(w error) { got = append(got, w) })
	defer SetWarningHandler(func(w error) {})

	Warn(NewConvergenceWarning("Lasso", 10, ""))
	require.Len(t, got, 1)
	require.Contains(t, got[0].Error(), "Lasso failed to converge after 10 iterations")

	var viaZerolog []error
	SetZerologWarnFunc(func(w error) { viaZerolog = append(viaZerolog, w) })
	defer SetZerologWarnFunc(nil)

	Warn(NewIllConditionedWarning("Ridge", 1e14, 0))
	require.Len(t, got, 1, "zerolog sink takes precedence")
	require.Len(t, viaZerolog, 1)
}

func TestNumericalChecks(t *testing.T) {
	require.NoError(t, CheckNumericalStability("op", []float64{1, 2}, 0))
	require.Error(t, CheckNumericalStability("op", []float64{1, math.Inf(1)}, 3))
	require.Error(t, CheckScalar("op", math.NaN(), 0))

	err := CheckFinite("Build", "energies", []float64{0, 1, math.Inf(-1)})
	var nf *NonFiniteError
	require.True(t, As(err, &nf))
	require.Equal(t, 2, nf.Index)

	require.Equal(t, 0.5, SoftThreshold(1.5, 1))
	require.Equal(t, -0.5, SoftThreshold(-1.5, 1))
	require.Equal(t, 0.0, SoftThreshold(0.3, 1))
}
