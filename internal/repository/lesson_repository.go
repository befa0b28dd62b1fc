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
	"github.com/Freeeeeet/tutor_backend/internal/schedule"
)

const lessonColumns = `
	id, teacher_id, student_id, name, start_time, end_time, status, price, is_paid,
	meeting_url, external_event_id, is_deleted, deleted_at, created_at, updated_at`

// ConflictCheck проверка нового интервала против уже записанных уроков
type ConflictCheck func(lesson *model.Lesson, existing []*model.Lesson) error

type LessonRepository struct {
	pool *pgxpool.Pool
}

func NewLessonRepository(pool *pgxpool.Pool) *LessonRepository {
	return &LessonRepository{pool: pool}
}

// CreateChecked проверка и вставка в одной транзакции под блокировкой учителя и студента
func (r *LessonRepository) CreateChecked(ctx context.Context, lesson *model.Lesson, check ConflictCheck) error {
	return base.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		if err := r.runCheck(ctx, tx, lesson, check); err != nil {
			return err
		}

		query := `
			INSERT INTO lessons (teacher_id, student_id, name, start_time, end_time, status, price,
				is_paid, meeting_url, external_event_id)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
			RETURNING id, created_at, updated_at
		`

		err := tx.QueryRow(
			ctx, query,
			lesson.TeacherID,
			lesson.StudentID,
			lesson.Name,
			lesson.StartTime,
			lesson.EndTime,
			lesson.Status,
			lesson.Price,
			lesson.IsPaid,
			lesson.MeetingURL,
			lesson.ExternalEventID,
		).Scan(&lesson.ID, &lesson.CreatedAt, &lesson.UpdatedAt)
		if err != nil {
			return lessonWriteError("create lesson", err)
		}
		return nil
	})
}

// UpdateChecked перечитывает урок под FOR UPDATE, применяет apply и,
// если check задан, проверяет новый интервал. Всё в одной транзакции
func (r *LessonRepository) UpdateChecked(
	ctx context.Context,
	id uuid.UUID,
	apply func(lesson *model.Lesson) error,
	check ConflictCheck,
) (*model.Lesson, error) {
	var updated *model.Lesson

	err := base.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		lesson, err := getLesson(ctx, tx, id, true)
		if err != nil {
			return err
		}
		if lesson == nil || lesson.IsDeleted {
			return apperror.NotFound("lesson")
		}

		before := *lesson
		if err := apply(lesson); err != nil {
			return err
		}

		if check != nil {
			if err := r.runCheck(ctx, tx, lesson, check); err != nil {
				return err
			}
		}

		if lessonUnchanged(&before, lesson) {
			updated = lesson
			return nil
		}

		query := `
			UPDATE lessons
			SET student_id = $2, name = $3, start_time = $4, end_time = $5, status = $6,
				price = $7, is_paid = $8, is_deleted = $9, deleted_at = $10, updated_at = NOW()
			WHERE id = $1
			RETURNING updated_at
		`

		err = tx.QueryRow(
			ctx, query,
			lesson.ID,
			lesson.StudentID,
			lesson.Name,
			lesson.StartTime,
			lesson.EndTime,
			lesson.Status,
			lesson.Price,
			lesson.IsPaid,
			lesson.IsDeleted,
			lesson.DeletedAt,
		).Scan(&lesson.UpdatedAt)
		if err != nil {
			return lessonWriteError("update lesson", err)
		}

		updated = lesson
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (r *LessonRepository) runCheck(ctx context.Context, tx pgx.Tx, lesson *model.Lesson, check ConflictCheck) error {
	var studentID uuid.UUID
	if lesson.StudentID != nil {
		studentID = *lesson.StudentID
	}

	if err := base.LockKeys(ctx, tx, lesson.TeacherID, studentID); err != nil {
		return err
	}

	existing, err := conflictCandidates(ctx, tx, lesson.TeacherID, lesson.StudentID, lesson.StartTime, lesson.EndTime)
	if err != nil {
		return err
	}
	return check(lesson, existing)
}

// conflictCandidates живые уроки учителя или студента рядом с интервалом, с запасом на перерыв
func conflictCandidates(
	ctx context.Context,
	q base.Querier,
	teacherID uuid.UUID,
	studentID *uuid.UUID,
	start, end time.Time,
) ([]*model.Lesson, error) {
	query := `
		SELECT ` + lessonColumns + `
		FROM lessons
		WHERE NOT is_deleted
		  AND (teacher_id = $1 OR ($2::uuid IS NOT NULL AND student_id = $2))
		  AND start_time < $4
		  AND end_time > $3
	`

	rows, err := q.Query(ctx, query, teacherID, studentID, start.Add(-schedule.TeacherBreak), end.Add(schedule.TeacherBreak))
	if err != nil {
		return nil, fmt.Errorf("list conflict candidates: %w", err)
	}
	return scanLessons(rows)
}

// GetByID возвращает nil, если урока нет
func (r *LessonRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Lesson, error) {
	return getLesson(ctx, r.pool, id, false)
}

// ListByTeacher живые уроки учителя с началом в [from, to)
func (r *LessonRepository) ListByTeacher(ctx context.Context, teacherID uuid.UUID, from, to time.Time) ([]*model.Lesson, error) {
	query := `
		SELECT ` + lessonColumns + `
		FROM lessons
		WHERE teacher_id = $1
		  AND NOT is_deleted
		  AND start_time >= $2
		  AND start_time < $3
		ORDER BY start_time
	`

	rows, err := r.pool.Query(ctx, query, teacherID, from, to)
	if err != nil {
		return nil, fmt.Errorf("list lessons by teacher: %w", err)
	}
	return scanLessons(rows)
}

// ListEndedWithoutHistory закончившиеся уроки со студентом и без живой истории,
// страница по (end_time, id) после after; after nil - с начала
func (r *LessonRepository) ListEndedWithoutHistory(
	ctx context.Context,
	now time.Time,
	after *model.LessonCursor,
	limit int,
) ([]*model.Lesson, error) {
	query := `
		SELECT ` + lessonColumns + `
		FROM lessons l
		WHERE NOT l.is_deleted
		  AND l.end_time <= $1
		  AND l.student_id IS NOT NULL
		  AND ($2::timestamptz IS NULL OR (l.end_time, l.id) > ($2::timestamptz, $3::uuid))
		  AND NOT EXISTS (
			SELECT 1 FROM lesson_histories h
			WHERE h.lesson_id = l.id AND NOT h.is_deleted
		  )
		ORDER BY l.end_time, l.id
		LIMIT $4
	`

	var (
		afterEnd *time.Time
		afterID  *uuid.UUID
	)
	if after != nil {
		afterEnd, afterID = &after.EndTime, &after.ID
	}

	rows, err := r.pool.Query(ctx, query, now, afterEnd, afterID, limit)
	if err != nil {
		return nil, fmt.Errorf("list ended lessons without history: %w", err)
	}
	return scanLessons(rows)
}

func getLesson(ctx context.Context, q base.Querier, id uuid.UUID, forUpdate bool) (*model.Lesson, error) {
	query := `SELECT ` + lessonColumns + ` FROM lessons WHERE id = $1`
	if forUpdate {
		query += ` FOR UPDATE`
	}

	lesson, err := scanLesson(q.QueryRow(ctx, query, id))
	if err != nil {
		if base.IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get lesson by id: %w", err)
	}
	return lesson, nil
}

func scanLesson(row pgx.Row) (*model.Lesson, error) {
	var l model.Lesson
	err := row.Scan(
		&l.ID,
		&l.TeacherID,
		&l.StudentID,
		&l.Name,
		&l.StartTime,
		&l.EndTime,
		&l.Status,
		&l.Price,
		&l.IsPaid,
		&l.MeetingURL,
		&l.ExternalEventID,
		&l.IsDeleted,
		&l.DeletedAt,
		&l.CreatedAt,
		&l.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &l, nil
}

func scanLessons(rows pgx.Rows) ([]*model.Lesson, error) {
	defer rows.Close()

	var lessons []*model.Lesson
	for rows.Next() {
		lesson, err := scanLesson(rows)
		if err != nil {
			return nil, fmt.Errorf("scan lesson: %w", err)
		}
		lessons = append(lessons, lesson)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate lessons: %w", err)
	}
	return lessons, nil
}

// lessonWriteError exclusion constraint означает, что гонку проиграла проверка в коде
func lessonWriteError(op string, err error) error {
	if base.IsExclusionViolation(err) {
		switch base.ConstraintName(err) {
		case "lessons_teacher_no_overlap":
			return apperror.Conflict(schedule.ReasonTeacherBusy)
		case "lessons_student_no_overlap":
			return apperror.Conflict(schedule.ReasonStudentBusy)
		}
	}
	return fmt.Errorf("%s: %w", op, err)
}

func lessonUnchanged(a, b *model.Lesson) bool {
	sameStudent := (a.StudentID == nil && b.StudentID == nil) ||
		(a.StudentID != nil && b.StudentID != nil && *a.StudentID == *b.StudentID)

	return sameStudent &&
		a.Name == b.Name &&
		a.StartTime.Equal(b.StartTime) &&
		a.EndTime.Equal(b.EndTime) &&
		a.Status == b.Status &&
		a.Price == b.Price &&
		a.IsPaid == b.IsPaid &&
		a.IsDeleted == b.IsDeleted
}
