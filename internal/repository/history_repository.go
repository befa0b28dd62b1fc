package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Freeeeeet/tutor_backend/internal/apperror"
	"github.com/Freeeeeet/tutor_backend/internal/model"
	"github.com/Freeeeeet/tutor_backend/internal/repository/base"
)

// ReasonDuplicateHistory у урока уже есть живая история
const ReasonDuplicateHistory = "duplicate history"

type HistoryRepository struct {
	pool *pgxpool.Pool
}

func NewHistoryRepository(pool *pgxpool.Pool) *HistoryRepository {
	return &HistoryRepository{pool: pool}
}

// Create вставка от пользователя, повтор это Conflict
func (r *HistoryRepository) Create(ctx context.Context, h *model.LessonHistory) error {
	query := `
		INSERT INTO lesson_histories (lesson_id, teacher_id, student_id, star, feedback)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at
	`

	err := r.pool.QueryRow(ctx, query, h.LessonID, h.TeacherID, h.StudentID, h.Star, h.Feedback).
		Scan(&h.ID, &h.CreatedAt)
	if err != nil {
		if base.IsUniqueViolation(err) {
			return apperror.Conflict(ReasonDuplicateHistory)
		}
		return fmt.Errorf("create history: %w", err)
	}
	return nil
}

// CreateIfAbsent вставка для сверки; false если живая история уже есть
func (r *HistoryRepository) CreateIfAbsent(ctx context.Context, h *model.LessonHistory) (bool, error) {
	query := `
		INSERT INTO lesson_histories (lesson_id, teacher_id, student_id, star, feedback)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (lesson_id) WHERE NOT is_deleted DO NOTHING
		RETURNING id, created_at
	`

	err := r.pool.QueryRow(ctx, query, h.LessonID, h.TeacherID, h.StudentID, h.Star, h.Feedback).
		Scan(&h.ID, &h.CreatedAt)
	if err != nil {
		if base.IsNotFound(err) {
			return false, nil
		}
		return false, fmt.Errorf("create history if absent: %w", err)
	}
	return true, nil
}

// GetByLessonID живая история урока либо nil
func (r *HistoryRepository) GetByLessonID(ctx context.Context, lessonID uuid.UUID) (*model.LessonHistory, error) {
	query := `
		SELECT id, lesson_id, teacher_id, student_id, star, feedback, is_deleted, created_at
		FROM lesson_histories
		WHERE lesson_id = $1 AND NOT is_deleted
	`

	var h model.LessonHistory
	err := r.pool.QueryRow(ctx, query, lessonID).Scan(
		&h.ID,
		&h.LessonID,
		&h.TeacherID,
		&h.StudentID,
		&h.Star,
		&h.Feedback,
		&h.IsDeleted,
		&h.CreatedAt,
	)
	if err != nil {
		if base.IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get history by lesson: %w", err)
	}
	return &h, nil
}
