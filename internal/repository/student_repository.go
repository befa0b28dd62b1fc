package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Freeeeeet/tutor_backend/internal/model"
	"github.com/Freeeeeet/tutor_backend/internal/repository/base"
)

type StudentRepository struct {
	pool *pgxpool.Pool
}

func NewStudentRepository(pool *pgxpool.Pool) *StudentRepository {
	return &StudentRepository{pool: pool}
}

// GetByID получает студента по ID
func (r *StudentRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Student, error) {
	query := `
		SELECT id, full_name, phone, telegram_chat_id, blocked_at, created_at
		FROM students
		WHERE id = $1
	`

	var (
		s         model.Student
		blockedAt *time.Time
	)
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&s.ID,
		&s.FullName,
		&s.Phone,
		&s.TelegramChatID,
		&blockedAt,
		&s.CreatedAt,
	)
	if err != nil {
		if base.IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get student by id: %w", err)
	}

	s.State = model.StudentStateOf(blockedAt)
	return &s, nil
}
