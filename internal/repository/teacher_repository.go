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

const (
	ReasonTeacherAlreadyDeleted = "teacher already deleted"
	ReasonPhoneInUse            = "phone already in use"
)

const teacherSelect = `
	SELECT t.id, t.full_name, t.phone, t.password_hash, t.is_active, t.has_calendar,
		t.telegram_chat_id, t.is_deleted, d.deleted_at, d.restore_at, t.created_at
	FROM teachers t
	LEFT JOIN teacher_deletions d ON d.teacher_id = t.id`

type TeacherRepository struct {
	pool *pgxpool.Pool
}

func NewTeacherRepository(pool *pgxpool.Pool) *TeacherRepository {
	return &TeacherRepository{pool: pool}
}

// GetByID возвращает и архивированных учителей; nil если нет
func (r *TeacherRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Teacher, error) {
	teacher, err := scanTeacher(r.pool.QueryRow(ctx, teacherSelect+` WHERE t.id = $1`, id))
	if err != nil {
		if base.IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get teacher by id: %w", err)
	}
	return teacher, nil
}

// GetByPhone учитель по подтверждённому телефону
func (r *TeacherRepository) GetByPhone(ctx context.Context, phone string) (*model.Teacher, error) {
	teacher, err := scanTeacher(r.pool.QueryRow(ctx, teacherSelect+` WHERE t.phone = $1`, phone))
	if err != nil {
		if base.IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get teacher by phone: %w", err)
	}
	return teacher, nil
}

// SetCalendar включает или выключает признак привязанного календаря
func (r *TeacherRepository) SetCalendar(ctx context.Context, id uuid.UUID, linked bool) error {
	tag, err := r.pool.Exec(ctx, `UPDATE teachers SET has_calendar = $2 WHERE id = $1 AND NOT is_deleted`, id, linked)
	if err != nil {
		return fmt.Errorf("set calendar: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperror.NotFound("teacher")
	}
	return nil
}

// SetPhone привязывает подтверждённый телефон
func (r *TeacherRepository) SetPhone(ctx context.Context, id uuid.UUID, phone string) error {
	tag, err := r.pool.Exec(ctx, `UPDATE teachers SET phone = $2 WHERE id = $1 AND NOT is_deleted`, id, phone)
	if err != nil {
		if base.IsUniqueViolation(err) {
			return apperror.Conflict(ReasonPhoneInUse)
		}
		return fmt.Errorf("set phone: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperror.NotFound("teacher")
	}
	return nil
}

// Archive ставит флаг удаления и пишет запись об архивации одной транзакцией
func (r *TeacherRepository) Archive(ctx context.Context, d *model.TeacherDeletion) error {
	return base.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `UPDATE teachers SET is_deleted = TRUE WHERE id = $1 AND NOT is_deleted`, d.TeacherID)
		if err != nil {
			return fmt.Errorf("mark teacher deleted: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return apperror.Conflict(ReasonTeacherAlreadyDeleted)
		}

		query := `
			INSERT INTO teacher_deletions (teacher_id, deleted_by, reason, restore_at)
			VALUES ($1, $2, $3, $4)
			RETURNING id, deleted_at
		`
		err = tx.QueryRow(ctx, query, d.TeacherID, d.DeletedBy, d.Reason, d.RestoreAt).Scan(&d.ID, &d.DeletedAt)
		if err != nil {
			if base.IsUniqueViolation(err) {
				return apperror.Conflict(ReasonTeacherAlreadyDeleted)
			}
			return fmt.Errorf("insert teacher deletion: %w", err)
		}
		return nil
	})
}

// Restore снимает флаг и удаляет запись об архивации одной транзакцией
func (r *TeacherRepository) Restore(ctx context.Context, teacherID uuid.UUID) error {
	return base.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `DELETE FROM teacher_deletions WHERE teacher_id = $1`, teacherID)
		if err != nil {
			return fmt.Errorf("delete teacher deletion: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return apperror.NotFound("teacher deletion")
		}

		if _, err := tx.Exec(ctx, `UPDATE teachers SET is_deleted = FALSE WHERE id = $1`, teacherID); err != nil {
			return fmt.Errorf("clear teacher deleted: %w", err)
		}
		return nil
	})
}

// GetDeletion запись об архивации учителя либо nil
func (r *TeacherRepository) GetDeletion(ctx context.Context, teacherID uuid.UUID) (*model.TeacherDeletion, error) {
	query := `
		SELECT id, teacher_id, deleted_by, reason, restore_at, deleted_at
		FROM teacher_deletions
		WHERE teacher_id = $1
	`

	var d model.TeacherDeletion
	err := r.pool.QueryRow(ctx, query, teacherID).Scan(
		&d.ID,
		&d.TeacherID,
		&d.DeletedBy,
		&d.Reason,
		&d.RestoreAt,
		&d.DeletedAt,
	)
	if err != nil {
		if base.IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get teacher deletion: %w", err)
	}
	return &d, nil
}

func scanTeacher(row pgx.Row) (*model.Teacher, error) {
	var (
		t         model.Teacher
		isDeleted bool
		deletedAt *time.Time
		restoreAt *time.Time
	)

	err := row.Scan(
		&t.ID,
		&t.FullName,
		&t.Phone,
		&t.PasswordHash,
		&t.IsActive,
		&t.HasCalendar,
		&t.TelegramChatID,
		&isDeleted,
		&deletedAt,
		&restoreAt,
		&t.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	t.State = model.TeacherStateOf(isDeleted, deletedAt, restoreAt)
	return &t, nil
}
