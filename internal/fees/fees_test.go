package fees

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCompute(t *testing.T) {
	tests := []struct {
		name       string
		gross      int64
		pct        float64
		wantFee    int64
		wantPayout int64
	}{
		{"twenty percent of 299.99", 29999, 0.20, 6000, 23999},
		{"zero fee", 29999, 0, 0, 29999},
		{"rounds half up", 1001, 0.125, 125, 876}, // 125.125 -> 125
		{"half rounds up", 50, 0.05, 3, 47},       // 2.5 -> 3
		{"single cent", 1, 0.20, 0, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fee, payout, err := Compute(tt.gross, tt.pct)
			require.NoError(t, err)
			require.Equal(t, tt.wantFee, fee)
			require.Equal(t, tt.wantPayout, payout)
			require.Equal(t, tt.gross, fee+payout)
		})
	}
}

func TestComputeAdditiveInvariant(t *testing.T) {
	pcts := []float64{0, 0.01, 0.05, 0.1, 0.125, 0.2, 0.333, 0.5, 0.999}
	for gross := int64(1); gross < 5000; gross += 7 {
		for _, pct := range pcts {
			fee, payout, err := Compute(gross, pct)
			require.NoError(t, err)
			require.GreaterOrEqual(t, fee, int64(0))
			require.Equal(t, gross, fee+payout, "gross=%d pct=%f", gross, pct)
		}
	}
}

func TestComputeInvalidArguments(t *testing.T) {
	_, _, err := Compute(0, 0.2)
	require.ErrorIs(t, err, ErrInvalidGross)

	_, _, err = Compute(-100, 0.2)
	require.ErrorIs(t, err, ErrInvalidGross)

	_, _, err = Compute(100, -0.1)
	require.ErrorIs(t, err, ErrInvalidPercentage)

	_, _, err = Compute(100, 1)
	require.ErrorIs(t, err, ErrInvalidPercentage)

	_, _, err = Compute(100, 1.5)
	require.ErrorIs(t, err, ErrInvalidPercentage)
}
