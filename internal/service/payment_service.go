package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Freeeeeet/tutor_backend/internal/access"
	"github.com/Freeeeeet/tutor_backend/internal/apperror"
	"github.com/Freeeeeet/tutor_backend/internal/model"
	"github.com/Freeeeeet/tutor_backend/internal/payment"
	"github.com/Freeeeeet/tutor_backend/internal/repository"
)

const (
	ReasonPreCanceled       = "cannot create pre-canceled"
	ReasonAlreadyCanceled   = "already canceled"
	ReasonModifyCanceled    = "cannot modify canceled payment"
	ReasonCancelReasonEmpty = "cancel reason is required"
)

type CreatePaymentInput struct {
	LessonID       uuid.UUID
	TotalAmount    int64
	CommissionPct  *int64 // nil: комиссия платформы по умолчанию
	PlatformAmount int64
	TeacherAmount  int64
	IsCanceled     bool
	Notes          *string
}

// UpdatePaymentInput nil поля не меняются
type UpdatePaymentInput struct {
	TotalAmount    *int64
	CommissionPct  *int64
	PlatformAmount *int64
	TeacherAmount  *int64
	Notes          *string
}

// TeacherPayments выплаты учителя и итоги по неотменённым
type TeacherPayments struct {
	Payments      []*model.TeacherPayment `json:"payments"`
	TotalAmount   int64                   `json:"total_amount"`
	PlatformTotal int64                   `json:"platform_total"`
	TeacherTotal  int64                   `json:"teacher_total"`
}

type PaymentService struct {
	payments   PaymentStore
	lessons    LessonStore
	defaultPct int64
	logger     *zap.Logger
	now        func() time.Time
}

func NewPaymentService(payments PaymentStore, lessons LessonStore, defaultPct int64, logger *zap.Logger) *PaymentService {
	return &PaymentService{
		payments:   payments,
		lessons:    lessons,
		defaultPct: defaultPct,
		logger:     logger,
		now:        time.Now,
	}
}

// CreatePayment одна живая выплата на урок; суммы пересчитываются и сверяются
func (s *PaymentService) CreatePayment(ctx context.Context, p *model.Principal, in CreatePaymentInput) (*model.TeacherPayment, error) {
	if d := access.RequireLevel(p, model.RoleAdmin); !d.Allowed {
		return nil, d.Err()
	}
	if in.IsCanceled {
		return nil, apperror.InvalidInput(ReasonPreCanceled)
	}

	lesson, err := s.lessons.GetByID(ctx, in.LessonID)
	if err != nil {
		return nil, fmt.Errorf("get lesson: %w", err)
	}
	if lesson == nil || lesson.IsDeleted {
		return nil, apperror.NotFound("lesson")
	}

	pct := s.defaultPct
	if in.CommissionPct != nil {
		pct = *in.CommissionPct
	}

	if err := s.checkSplit(in.LessonID, in.TotalAmount, pct, in.PlatformAmount, in.TeacherAmount); err != nil {
		return nil, err
	}

	exists, err := s.payments.ExistsLive(ctx, in.LessonID)
	if err != nil {
		return nil, fmt.Errorf("check live payment: %w", err)
	}
	if exists {
		return nil, apperror.Conflict(repository.ReasonDuplicatePayment)
	}

	pm := &model.TeacherPayment{
		TeacherID:             lesson.TeacherID,
		LessonID:              lesson.ID,
		TotalLessonAmount:     in.TotalAmount,
		PlatformCommissionPct: pct,
		PlatformAmount:        in.PlatformAmount,
		TeacherAmount:         in.TeacherAmount,
		PaidBy:                p.ID,
		Notes:                 in.Notes,
		State:                 model.PaymentLive{},
	}
	if err := s.payments.Create(ctx, pm); err != nil {
		return nil, err
	}

	s.logger.Info("Payment created",
		zap.String("payment_id", pm.ID.String()),
		zap.String("lesson_id", pm.LessonID.String()),
		zap.String("teacher_id", pm.TeacherID.String()),
		zap.Int64("total", pm.TotalLessonAmount),
		zap.Int64("platform", pm.PlatformAmount),
		zap.Int64("teacher", pm.TeacherAmount))

	return pm, nil
}

// CancelPayment отменённая выплата дальше не меняется
func (s *PaymentService) CancelPayment(ctx context.Context, p *model.Principal, id uuid.UUID, reason string) (*model.TeacherPayment, error) {
	if d := access.RequireLevel(p, model.RoleAdmin); !d.Allowed {
		return nil, d.Err()
	}

	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, apperror.InvalidInput(ReasonCancelReasonEmpty)
	}

	current, err := s.getPayment(ctx, id)
	if err != nil {
		return nil, err
	}
	if current.IsCanceled() {
		return nil, apperror.Conflict(ReasonAlreadyCanceled)
	}

	canceled, err := s.payments.Cancel(ctx, id, model.PaymentCanceled{By: p.ID, Reason: reason, At: s.now()})
	if err != nil {
		return nil, fmt.Errorf("cancel payment: %w", err)
	}
	if canceled == nil {
		// параллельная отмена успела раньше
		return nil, apperror.Conflict(ReasonAlreadyCanceled)
	}

	s.logger.Info("Payment canceled",
		zap.String("payment_id", id.String()),
		zap.String("canceled_by", p.ID.String()),
		zap.String("reason", reason))

	return canceled, nil
}

// UpdatePayment пересчитывает разделение по новым значениям
func (s *PaymentService) UpdatePayment(ctx context.Context, p *model.Principal, id uuid.UUID, in UpdatePaymentInput) (*model.TeacherPayment, error) {
	if d := access.RequireLevel(p, model.RoleAdmin); !d.Allowed {
		return nil, d.Err()
	}

	current, err := s.getPayment(ctx, id)
	if err != nil {
		return nil, err
	}
	if current.IsCanceled() {
		return nil, apperror.Conflict(ReasonModifyCanceled)
	}

	next := *current
	if in.TotalAmount != nil {
		next.TotalLessonAmount = *in.TotalAmount
	}
	if in.CommissionPct != nil {
		next.PlatformCommissionPct = *in.CommissionPct
	}
	if in.PlatformAmount != nil {
		next.PlatformAmount = *in.PlatformAmount
	}
	if in.TeacherAmount != nil {
		next.TeacherAmount = *in.TeacherAmount
	}
	if in.Notes != nil {
		next.Notes = in.Notes
	}

	if err := s.checkSplit(next.LessonID, next.TotalLessonAmount, next.PlatformCommissionPct, next.PlatformAmount, next.TeacherAmount); err != nil {
		return nil, err
	}

	updated, err := s.payments.Update(ctx, &next)
	if err != nil {
		return nil, fmt.Errorf("update payment: %w", err)
	}
	if updated == nil {
		return nil, apperror.Conflict(ReasonModifyCanceled)
	}

	s.logger.Info("Payment updated",
		zap.String("payment_id", id.String()),
		zap.Int64("total", updated.TotalLessonAmount),
		zap.Int64("platform", updated.PlatformAmount),
		zap.Int64("teacher", updated.TeacherAmount))

	return updated, nil
}

// GetPayment админам и учителю выплаты
func (s *PaymentService) GetPayment(ctx context.Context, p *model.Principal, id uuid.UUID) (*model.TeacherPayment, error) {
	if d := access.RequireLevel(p, model.RoleTeacher); !d.Allowed {
		return nil, d.Err()
	}

	pm, err := s.getPayment(ctx, id)
	if err != nil {
		return nil, err
	}
	if d := access.PaymentOwner(p, pm); !d.Allowed {
		return nil, d.Err()
	}
	return pm, nil
}

// ListTeacherPayments выплаты учителя; итоги только по неотменённым
func (s *PaymentService) ListTeacherPayments(ctx context.Context, p *model.Principal, teacherID uuid.UUID) (*TeacherPayments, error) {
	if d := access.TeacherOwns(p, teacherID); !d.Allowed {
		return nil, d.Err()
	}

	payments, err := s.payments.ListByTeacher(ctx, teacherID)
	if err != nil {
		return nil, fmt.Errorf("list payments: %w", err)
	}

	result := &TeacherPayments{Payments: payments}
	for _, pm := range payments {
		if pm.IsCanceled() {
			continue
		}
		result.TotalAmount += pm.TotalLessonAmount
		result.PlatformTotal += pm.PlatformAmount
		result.TeacherTotal += pm.TeacherAmount
	}
	return result, nil
}

func (s *PaymentService) getPayment(ctx context.Context, id uuid.UUID) (*model.TeacherPayment, error) {
	pm, err := s.payments.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get payment: %w", err)
	}
	if pm == nil {
		return nil, apperror.NotFound("payment")
	}
	return pm, nil
}

// checkSplit расхождение сумм это ошибка вызывающего, пишем её в лог целиком
func (s *PaymentService) checkSplit(lessonID uuid.UUID, total, pct, platform, teacher int64) error {
	err := payment.CheckSplit(total, pct, platform, teacher)

	var mismatch *payment.MismatchError
	if errors.As(err, &mismatch) {
		s.logger.Error("Payment amount mismatch",
			zap.String("lesson_id", lessonID.String()),
			zap.Int64("total", mismatch.Total),
			zap.Int64("commission_pct", mismatch.Pct),
			zap.Int64("platform", mismatch.Platform),
			zap.Int64("expected_platform", mismatch.ExpectedPlatform),
			zap.Int64("teacher", mismatch.Teacher),
			zap.Int64("expected_teacher", mismatch.ExpectedTeacher))
	}
	return err
}
