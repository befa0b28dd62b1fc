// Package payment считает разделение суммы урока между платформой и учителем.
// Деньги хранятся в минорных единицах (int64), допуск сверки нулевой.
package payment

import (
	"fmt"

	"github.com/Freeeeeet/tutor_backend/internal/apperror"
)

const (
	ReasonAmountMismatch = "amount mismatch"
	ReasonBadTotal       = "total amount must be positive"
	ReasonBadCommission  = "commission must be between 0 and 100"
)

// Split возвращает ожидаемые доли: комиссия округляется половиной вверх.
// total*pct не вычисляется целиком: для больших total он выходит за int64
func Split(total, pct int64) (platform, teacher int64) {
	platform = (total/100)*pct + ((total%100)*pct+50)/100
	return platform, total - platform
}

// ValidateTerms проверяет сумму и процент комиссии
func ValidateTerms(total, pct int64) error {
	if total <= 0 {
		return apperror.InvalidInput(ReasonBadTotal)
	}
	if pct < 0 || pct > 100 {
		return apperror.InvalidInput(ReasonBadCommission)
	}
	return nil
}

// CheckSplit сверяет присланные суммы с пересчитанными
func CheckSplit(total, pct, platform, teacher int64) error {
	if err := ValidateTerms(total, pct); err != nil {
		return err
	}

	expectedPlatform, expectedTeacher := Split(total, pct)
	if platform != expectedPlatform || teacher != expectedTeacher {
		return &MismatchError{
			Total:            total,
			Pct:              pct,
			Platform:         platform,
			Teacher:          teacher,
			ExpectedPlatform: expectedPlatform,
			ExpectedTeacher:  expectedTeacher,
		}
	}

	return nil
}

// MismatchError расхождение сумм; сигнал ошибки вызывающей стороны
type MismatchError struct {
	Total            int64
	Pct              int64
	Platform         int64
	Teacher          int64
	ExpectedPlatform int64
	ExpectedTeacher  int64
}

func (e *MismatchError) Error() string {
	return fmt.Sprintf("%s: platform %d (expected %d), teacher %d (expected %d) for total %d at %d%%",
		ReasonAmountMismatch, e.Platform, e.ExpectedPlatform, e.Teacher, e.ExpectedTeacher, e.Total, e.Pct)
}

func (e *MismatchError) Unwrap() error {
	return apperror.Invariant(ReasonAmountMismatch)
}
