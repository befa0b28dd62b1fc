package payment

import (
	"math"
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Freeeeeet/tutor_backend/internal/apperror"
)

func TestSplit_Invariant(t *testing.T) {
	for total := int64(1); total <= 50_000; total += 137 {
		for pct := int64(0); pct <= 100; pct += 3 {
			platform, teacher := Split(total, pct)
			assert.Equal(t, total, platform+teacher)
			assert.Equal(t, int64(math.Round(float64(total)*float64(pct)/100)), platform,
				"total=%d pct=%d", total, pct)
		}
	}
}

func TestSplit_LargeTotals(t *testing.T) {
	totals := []int64{math.MaxInt64, math.MaxInt64 - 49, math.MaxInt64/100 + 1, 1 << 62}

	for _, total := range totals {
		for _, pct := range []int64{0, 1, 15, 20, 50, 99, 100} {
			platform, teacher := Split(total, pct)

			// (total*pct + 50) / 100 без ограничения разрядности
			want := new(big.Int).Mul(big.NewInt(total), big.NewInt(pct))
			want.Add(want, big.NewInt(50))
			want.Quo(want, big.NewInt(100))

			assert.Equal(t, want.Int64(), platform, "total=%d pct=%d", total, pct)
			assert.GreaterOrEqual(t, teacher, int64(0))
			assert.Equal(t, total, platform+teacher)
		}
	}
}

func TestSplit_RoundsHalfUp(t *testing.T) {
	platform, teacher := Split(250, 1) // 2.5
	assert.Equal(t, int64(3), platform)
	assert.Equal(t, int64(247), teacher)
}

func TestCheckSplit(t *testing.T) {
	assert.NoError(t, CheckSplit(10000, 20, 2000, 8000))

	err := CheckSplit(10000, 20, 1500, 8500)
	require.Error(t, err)
	assert.ErrorIs(t, err, apperror.ErrInvariantViolation)
	assert.Equal(t, ReasonAmountMismatch, apperror.Reason(err))

	var mismatch *MismatchError
	require.ErrorAs(t, err, &mismatch)
	assert.Equal(t, int64(2000), mismatch.ExpectedPlatform)

	// сумма сходится, но доля платформы неверна
	assert.ErrorIs(t, CheckSplit(10000, 20, 2001, 7999), apperror.ErrInvariantViolation)
	// доля платформы верна, сумма не сходится
	assert.ErrorIs(t, CheckSplit(10000, 20, 2000, 7000), apperror.ErrInvariantViolation)
}

func TestValidateTerms(t *testing.T) {
	assert.ErrorIs(t, ValidateTerms(0, 20), apperror.ErrInvalidInput)
	assert.ErrorIs(t, ValidateTerms(100, -1), apperror.ErrInvalidInput)
	assert.ErrorIs(t, ValidateTerms(100, 101), apperror.ErrInvalidInput)
	assert.NoError(t, ValidateTerms(100, 100))
}
