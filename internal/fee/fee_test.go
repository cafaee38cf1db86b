package fee

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ignatzorin/escrow-engine/internal/pkg/apperror"
)

func TestCalculateSplit(t *testing.T) {
	split, err := CalculateSplit(1000)
	assert.NoError(t, err)
	assert.Equal(t, int64(700), split.FreelancerAmount)
	assert.Equal(t, int64(300), split.PlatformFee)
}

func TestCalculateSplitRemainderGoesToPlatform(t *testing.T) {
	// 101 * 70 / 100 = 70 (целочисленно), остаток уходит платформе.
	split, err := CalculateSplit(101)
	assert.NoError(t, err)
	assert.Equal(t, int64(70), split.FreelancerAmount)
	assert.Equal(t, int64(31), split.PlatformFee)
}

func TestCalculateSplitConservation(t *testing.T) {
	amounts := []int64{1, 2, 3, 7, 10, 99, 101, 333, 1000, 12345, 9999999999}
	for _, total := range amounts {
		split, err := CalculateSplit(total)
		assert.NoError(t, err)
		assert.Equal(t, total, split.FreelancerAmount+split.PlatformFee,
			"сумма долей должна равняться исходной для %d", total)
		assert.GreaterOrEqual(t, split.FreelancerAmount, int64(0))
		assert.GreaterOrEqual(t, split.PlatformFee, int64(0))
	}
}

func TestCalculateSplitRejectsNonPositive(t *testing.T) {
	for _, total := range []int64{0, -1, -1000} {
		_, err := CalculateSplit(total)
		assert.Error(t, err)

		var appErr *apperror.AppError
		assert.ErrorAs(t, err, &appErr)
		assert.Equal(t, apperror.ErrCodeValidation, appErr.Code)
	}
}
