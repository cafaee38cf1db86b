// Package fee считает разделение суммы сделки между фрилансером и платформой.
// Все суммы в минорных единицах валюты, остаток округления достаётся
// комиссии платформы, поэтому части всегда в точности складываются в целое.
package fee

import (
	"github.com/ignatzorin/escrow-engine/internal/pkg/apperror"
)

// Доли фиксируются на момент создания сделки: 70% фрилансеру, 30% платформе.
const (
	FreelancerSharePercent = 70
	PlatformSharePercent   = 30
)

// Split — результат разделения суммы.
type Split struct {
	FreelancerAmount int64
	PlatformFee      int64
}

// CalculateSplit делит сумму по модели 70/30.
// Инвариант: FreelancerAmount + PlatformFee == total.
func CalculateSplit(total int64) (Split, error) {
	if total <= 0 {
		return Split{}, apperror.New(apperror.ErrCodeValidation, "сумма должна быть положительной")
	}

	freelancerAmount := total * FreelancerSharePercent / 100
	return Split{
		FreelancerAmount: freelancerAmount,
		PlatformFee:      total - freelancerAmount,
	}, nil
}
