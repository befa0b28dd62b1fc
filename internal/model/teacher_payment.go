package model

import (
	"time"

	"github.com/google/uuid"
)

// PaymentState состояние выплаты: PaymentLive либо PaymentCanceled
type PaymentState interface {
	isPaymentState()
}

// PaymentLive действующая выплата
type PaymentLive struct{}

// PaymentCanceled отменённая выплата, неизменяема
type PaymentCanceled struct {
	By     uuid.UUID `json:"canceled_by"`
	Reason string    `json:"canceled_reason"`
	At     time.Time `json:"canceled_at"`
}

func (PaymentLive) isPaymentState()     {}
func (PaymentCanceled) isPaymentState() {}

// TeacherPayment выплата учителю за урок. Суммы в минорных единицах
type TeacherPayment struct {
	ID                    uuid.UUID    `json:"id"`
	TeacherID             uuid.UUID    `json:"teacher_id"`
	LessonID              uuid.UUID    `json:"lesson_id"`
	TotalLessonAmount     int64        `json:"total_lesson_amount"`
	PlatformCommissionPct int64        `json:"platform_commission_pct"`
	PlatformAmount        int64        `json:"platform_amount"`
	TeacherAmount         int64        `json:"teacher_amount"`
	PaidBy                uuid.UUID    `json:"paid_by"`
	PaidAt                time.Time    `json:"paid_at"`
	State                 PaymentState `json:"-"`
	Notes                 *string      `json:"notes"`
	IsDeleted             bool         `json:"is_deleted"`
	CreatedAt             time.Time    `json:"created_at"`
}

// IsCanceled отменена ли выплата
func (p *TeacherPayment) IsCanceled() bool {
	_, ok := p.State.(PaymentCanceled)
	return ok
}

// Cancellation данные отмены, если выплата отменена
func (p *TeacherPayment) Cancellation() (PaymentCanceled, bool) {
	c, ok := p.State.(PaymentCanceled)
	return c, ok
}
