package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Freeeeeet/tutor_backend/internal/apperror"
	"github.com/Freeeeeet/tutor_backend/internal/model"
	"github.com/Freeeeeet/tutor_backend/internal/repository/base"
)

// ReasonDuplicatePayment у урока уже есть живая выплата
const ReasonDuplicatePayment = "duplicate payment"

const paymentColumns = `
	id, teacher_id, lesson_id, total_lesson_amount, platform_commission_pct, platform_amount,
	teacher_amount, paid_by, paid_at, is_canceled, canceled_by, canceled_reason, canceled_at,
	notes, is_deleted, created_at`

type PaymentRepository struct {
	pool *pgxpool.Pool
}

func NewPaymentRepository(pool *pgxpool.Pool) *PaymentRepository {
	return &PaymentRepository{pool: pool}
}

// Create вставляет живую выплату; уникальный индекс не пускает вторую
func (r *PaymentRepository) Create(ctx context.Context, p *model.TeacherPayment) error {
	query := `
		INSERT INTO teacher_payments (teacher_id, lesson_id, total_lesson_amount, platform_commission_pct,
			platform_amount, teacher_amount, paid_by, notes)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, paid_at, created_at
	`

	err := r.pool.QueryRow(
		ctx, query,
		p.TeacherID,
		p.LessonID,
		p.TotalLessonAmount,
		p.PlatformCommissionPct,
		p.PlatformAmount,
		p.TeacherAmount,
		p.PaidBy,
		p.Notes,
	).Scan(&p.ID, &p.PaidAt, &p.CreatedAt)
	if err != nil {
		if base.IsUniqueViolation(err) {
			return apperror.Conflict(ReasonDuplicatePayment)
		}
		return fmt.Errorf("create payment: %w", err)
	}

	p.State = model.PaymentLive{}
	return nil
}

// GetByID возвращает nil, если выплаты нет
func (r *PaymentRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.TeacherPayment, error) {
	query := `SELECT ` + paymentColumns + ` FROM teacher_payments WHERE id = $1 AND NOT is_deleted`

	p, err := scanPayment(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if base.IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get payment by id: %w", err)
	}
	return p, nil
}

// ExistsLive есть ли у урока неотменённая выплата
func (r *PaymentRepository) ExistsLive(ctx context.Context, lessonID uuid.UUID) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM teacher_payments
			WHERE lesson_id = $1 AND NOT is_deleted AND NOT is_canceled
		)
	`

	var exists bool
	if err := r.pool.QueryRow(ctx, query, lessonID).Scan(&exists); err != nil {
		return false, fmt.Errorf("check live payment: %w", err)
	}
	return exists, nil
}

// Cancel условное обновление; nil если выплата уже отменена или исчезла
func (r *PaymentRepository) Cancel(ctx context.Context, id uuid.UUID, c model.PaymentCanceled) (*model.TeacherPayment, error) {
	query := `
		UPDATE teacher_payments
		SET is_canceled = TRUE, canceled_by = $2, canceled_reason = $3, canceled_at = $4
		WHERE id = $1 AND NOT is_deleted AND NOT is_canceled
		RETURNING ` + paymentColumns

	p, err := scanPayment(r.pool.QueryRow(ctx, query, id, c.By, c.Reason, c.At))
	if err != nil {
		if base.IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("cancel payment: %w", err)
	}
	return p, nil
}

// Update меняет суммы и заметки только у неотменённой выплаты; nil если не обновлено
func (r *PaymentRepository) Update(ctx context.Context, p *model.TeacherPayment) (*model.TeacherPayment, error) {
	query := `
		UPDATE teacher_payments
		SET total_lesson_amount = $2, platform_commission_pct = $3, platform_amount = $4,
			teacher_amount = $5, notes = $6
		WHERE id = $1 AND NOT is_deleted AND NOT is_canceled
		RETURNING ` + paymentColumns

	updated, err := scanPayment(r.pool.QueryRow(
		ctx, query,
		p.ID,
		p.TotalLessonAmount,
		p.PlatformCommissionPct,
		p.PlatformAmount,
		p.TeacherAmount,
		p.Notes,
	))
	if err != nil {
		if base.IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("update payment: %w", err)
	}
	return updated, nil
}

// ListByTeacher все неудалённые выплаты учителя, новые первыми
func (r *PaymentRepository) ListByTeacher(ctx context.Context, teacherID uuid.UUID) ([]*model.TeacherPayment, error) {
	query := `
		SELECT ` + paymentColumns + `
		FROM teacher_payments
		WHERE teacher_id = $1 AND NOT is_deleted
		ORDER BY paid_at DESC
	`

	rows, err := r.pool.Query(ctx, query, teacherID)
	if err != nil {
		return nil, fmt.Errorf("list payments by teacher: %w", err)
	}
	defer rows.Close()

	var payments []*model.TeacherPayment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, fmt.Errorf("scan payment: %w", err)
		}
		payments = append(payments, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate payments: %w", err)
	}
	return payments, nil
}

func scanPayment(row pgx.Row) (*model.TeacherPayment, error) {
	var (
		p              model.TeacherPayment
		isCanceled     bool
		canceledBy     *uuid.UUID
		canceledReason *string
		canceledAt     *time.Time
	)

	err := row.Scan(
		&p.ID,
		&p.TeacherID,
		&p.LessonID,
		&p.TotalLessonAmount,
		&p.PlatformCommissionPct,
		&p.PlatformAmount,
		&p.TeacherAmount,
		&p.PaidBy,
		&p.PaidAt,
		&isCanceled,
		&canceledBy,
		&canceledReason,
		&canceledAt,
		&p.Notes,
		&p.IsDeleted,
		&p.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	p.State = model.PaymentLive{}
	if isCanceled && canceledBy != nil && canceledReason != nil && canceledAt != nil {
		p.State = model.PaymentCanceled{By: *canceledBy, Reason: *canceledReason, At: *canceledAt}
	}
	return &p, nil
}
