package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Freeeeeet/tutor_backend/internal/access"
	"github.com/Freeeeeet/tutor_backend/internal/apperror"
	"github.com/Freeeeeet/tutor_backend/internal/model"
)

const (
	ReasonLessonNotEnded = "lesson has not ended"
	ReasonNoStudent      = "lesson has no student"
	ReasonBadStar        = "star must be between 1 and 5"
)

// reconcileBatch сколько уроков сверка берёт за один проход
const reconcileBatch = 500

type CreateHistoryInput struct {
	LessonID uuid.UUID
	Star     int
	Feedback *string
}

// ReconcileReport итог одного прохода сверки
type ReconcileReport struct {
	Scanned int
	Created int
	Skipped int // история появилась параллельно
	Failed  int
}

type HistoryService struct {
	histories HistoryStore
	lessons   LessonStore
	batch     int
	logger    *zap.Logger
	now       func() time.Time
}

func NewHistoryService(histories HistoryStore, lessons LessonStore, logger *zap.Logger) *HistoryService {
	return &HistoryService{
		histories: histories,
		lessons:   lessons,
		batch:     reconcileBatch,
		logger:    logger,
		now:       time.Now,
	}
}

// CreateHistory отзыв по закончившемуся уроку, не больше одного
func (s *HistoryService) CreateHistory(ctx context.Context, p *model.Principal, in CreateHistoryInput) (*model.LessonHistory, error) {
	if d := access.RequireLevel(p, model.RoleTeacher); !d.Allowed {
		return nil, d.Err()
	}
	if in.Star < model.MinStar || in.Star > model.MaxStar {
		return nil, apperror.InvalidInput(ReasonBadStar)
	}

	lesson, err := s.lessons.GetByID(ctx, in.LessonID)
	if err != nil {
		return nil, fmt.Errorf("get lesson: %w", err)
	}
	if lesson == nil || lesson.IsDeleted {
		return nil, apperror.NotFound("lesson")
	}
	if d := access.LessonOwner(p, lesson); !d.Allowed {
		return nil, d.Err()
	}
	if !lesson.HasStudent() {
		return nil, apperror.InvalidInput(ReasonNoStudent)
	}
	if !lesson.HasEnded(s.now()) {
		return nil, apperror.InvalidInput(ReasonLessonNotEnded)
	}

	h := &model.LessonHistory{
		LessonID:  lesson.ID,
		TeacherID: lesson.TeacherID,
		StudentID: *lesson.StudentID,
		Star:      in.Star,
		Feedback:  in.Feedback,
	}
	if err := s.histories.Create(ctx, h); err != nil {
		return nil, err
	}

	s.logger.Info("History created",
		zap.String("history_id", h.ID.String()),
		zap.String("lesson_id", h.LessonID.String()),
		zap.Int("star", h.Star))

	return h, nil
}

// ReconcileOnce создаёт заглушки истории для закончившихся уроков.
// Проход идёт страницами по курсору, поэтому урок с постоянной ошибкой не загораживает остальные.
// Ошибка по одному уроку не прерывает проход; ошибкой считается только сбой выборки
func (s *HistoryService) ReconcileOnce(ctx context.Context) (ReconcileReport, error) {
	var (
		report ReconcileReport
		after  *model.LessonCursor
	)
	now := s.now()

	for {
		lessons, err := s.lessons.ListEndedWithoutHistory(ctx, now, after, s.batch)
		if err != nil {
			return report, fmt.Errorf("list ended lessons: %w", err)
		}
		report.Scanned += len(lessons)

		for _, lesson := range lessons {
			s.reconcileLesson(ctx, lesson, &report)
		}

		if len(lessons) < s.batch {
			break
		}
		cursor := lessons[len(lessons)-1].Cursor()
		after = &cursor

		if err := ctx.Err(); err != nil {
			return report, err
		}
	}

	s.logger.Info("History reconciliation finished",
		zap.Int("scanned", report.Scanned),
		zap.Int("created", report.Created),
		zap.Int("skipped", report.Skipped),
		zap.Int("failed", report.Failed))

	return report, nil
}

func (s *HistoryService) reconcileLesson(ctx context.Context, lesson *model.Lesson, report *ReconcileReport) {
	if !lesson.HasStudent() {
		report.Skipped++
		return
	}

	created, err := s.histories.CreateIfAbsent(ctx, model.NewPlaceholderHistory(lesson))
	switch {
	case err != nil:
		report.Failed++
		s.logger.Warn("Failed to create placeholder history",
			zap.String("lesson_id", lesson.ID.String()),
			zap.Error(err))
	case created:
		report.Created++
	default:
		report.Skipped++
	}
}
