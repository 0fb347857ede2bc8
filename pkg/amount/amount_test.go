package amount_test

import (
	"testing"

	"github.com/arkade-os/lotteryd/pkg/amount"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		fixtures := []struct {
			amount   string
			decimals int32
			expected uint64
		}{
			{"0.01", 8, 1_000_000},
			{" 1 ", 8, 100_000_000},
			{"0", 8, 0},
			{"0.00000001", 8, 1},
			{"12.5", 2, 1250},
			{"7", 0, 7},
			{"184467440737.09551615", 8, 18446744073709551615},
		}
		for _, f := range fixtures {
			t.Run(f.amount, func(t *testing.T) {
				units, err := amount.Parse(f.amount, f.decimals)
				require.NoError(t, err)
				require.Equal(t, f.expected, units)
			})
		}
	})

	t.Run("invalid", func(t *testing.T) {
		fixtures := []struct {
			amount        string
			decimals      int32
			expectedError string
		}{
			{"", 8, "missing amount"},
			{"one", 8, "invalid amount format"},
			{"-0.01", 8, "amount must not be negative"},
			{"0.000000001", 8, "has more than 8 decimals"},
			{"0.5", 0, "has more than 0 decimals"},
			{"184467440737.09551616", 8, "is too large"},
		}
		for _, f := range fixtures {
			t.Run(f.amount, func(t *testing.T) {
				units, err := amount.Parse(f.amount, f.decimals)
				require.ErrorContains(t, err, f.expectedError)
				require.Zero(t, units)
			})
		}
	})
}

func TestFormat(t *testing.T) {
	require.Equal(t, "0.01000000", amount.Format(1_000_000, 8))
	require.Equal(t, "0.00000000", amount.Format(0, 8))
	require.Equal(t, "12.50", amount.Format(1250, 2))
	require.Equal(t, "7", amount.Format(7, 0))
}
