package httpapi

import (
	"time"

	"github.com/google/uuid"

	"github.com/Freeeeeet/tutor_backend/internal/model"
)

type loginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type teacherLoginRequest struct {
	Phone    string `json:"phone" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type sendOTPRequest struct {
	TeacherID uuid.UUID `json:"teacher_id" validate:"required"`
	Phone     string    `json:"phone" validate:"required"`
}

type verifyOTPRequest struct {
	Phone string `json:"phone" validate:"required"`
	Code  string `json:"code" validate:"required,len=6,numeric"`
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
}

type createLessonRequest struct {
	TeacherID uuid.UUID  `json:"teacher_id" validate:"required"`
	StudentID *uuid.UUID `json:"student_id"`
	Name      string     `json:"name" validate:"required,max=200"`
	Start     time.Time  `json:"start_time" validate:"required"`
	End       time.Time  `json:"end_time" validate:"required"`
	Price     int64      `json:"price" validate:"gte=0"`
}

type updateLessonTimeRequest struct {
	Start time.Time `json:"start_time" validate:"required"`
	End   time.Time `json:"end_time" validate:"required"`
}

type bookStudentRequest struct {
	StudentID uuid.UUID `json:"student_id" validate:"required"`
}

type transitionRequest struct {
	Status model.LessonStatus `json:"status" validate:"required,oneof=available booked completed cancelled"`
}

type createPaymentRequest struct {
	LessonID       uuid.UUID `json:"lesson_id" validate:"required"`
	TotalAmount    int64     `json:"total_lesson_amount" validate:"gt=0"`
	CommissionPct  *int64    `json:"platform_commission_pct" validate:"omitempty,gte=0,lte=100"`
	PlatformAmount int64     `json:"platform_amount" validate:"gte=0"`
	TeacherAmount  int64     `json:"teacher_amount" validate:"gte=0"`
	IsCanceled     bool      `json:"is_canceled"`
	Notes          *string   `json:"notes"`
}

type updatePaymentRequest struct {
	TotalAmount    *int64  `json:"total_lesson_amount" validate:"omitempty,gt=0"`
	CommissionPct  *int64  `json:"platform_commission_pct" validate:"omitempty,gte=0,lte=100"`
	PlatformAmount *int64  `json:"platform_amount" validate:"omitempty,gte=0"`
	TeacherAmount  *int64  `json:"teacher_amount" validate:"omitempty,gte=0"`
	Notes          *string `json:"notes"`
}

type cancelPaymentRequest struct {
	Reason string `json:"reason" validate:"required"`
}

// paymentResponse выплата вместе с данными отмены
type paymentResponse struct {
	*model.TeacherPayment
	IsCanceled     bool       `json:"is_canceled"`
	CanceledBy     *uuid.UUID `json:"canceled_by,omitempty"`
	CanceledReason *string    `json:"canceled_reason,omitempty"`
	CanceledAt     *time.Time `json:"canceled_at,omitempty"`
}

func newPaymentResponse(p *model.TeacherPayment) paymentResponse {
	resp := paymentResponse{TeacherPayment: p}
	if c, ok := p.Cancellation(); ok {
		resp.IsCanceled = true
		resp.CanceledBy = &c.By
		resp.CanceledReason = &c.Reason
		resp.CanceledAt = &c.At
	}
	return resp
}

type teacherPaymentsResponse struct {
	Payments      []paymentResponse `json:"payments"`
	TotalAmount   int64             `json:"total_amount"`
	PlatformTotal int64             `json:"platform_total"`
	TeacherTotal  int64             `json:"teacher_total"`
}

type createHistoryRequest struct {
	LessonID uuid.UUID `json:"lesson_id" validate:"required"`
	Star     int       `json:"star" validate:"gte=1,lte=5"`
	Feedback *string   `json:"feedback" validate:"omitempty,max=2000"`
}

type archiveTeacherRequest struct {
	Reason    string     `json:"reason" validate:"required"`
	RestoreAt *time.Time `json:"restore_at"`
}

type linkCalendarRequest struct {
	Linked bool `json:"linked"`
}

type createAdminRequest struct {
	Username string     `json:"username" validate:"required,max=100"`
	Phone    string     `json:"phone"`
	Password string     `json:"password" validate:"required,min=8"`
	Role     model.Role `json:"role" validate:"required,oneof=admin superAdmin"`
}

type changeRoleRequest struct {
	Role model.Role `json:"role" validate:"required,oneof=admin superAdmin"`
}
