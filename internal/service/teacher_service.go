package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Freeeeeet/tutor_backend/internal/access"
	"github.com/Freeeeeet/tutor_backend/internal/apperror"
	"github.com/Freeeeeet/tutor_backend/internal/model"
	"github.com/Freeeeeet/tutor_backend/internal/repository"
)

const (
	ReasonArchiveReasonEmpty = "archive reason is required"
	ReasonRestoreAtPast      = "restore date must be in the future"
	ReasonRestoreNotReached  = "restore date not reached"
)

type TeacherService struct {
	teachers TeacherStore
	logger   *zap.Logger
	now      func() time.Time
}

func NewTeacherService(teachers TeacherStore, logger *zap.Logger) *TeacherService {
	return &TeacherService{
		teachers: teachers,
		logger:   logger,
		now:      time.Now,
	}
}

// ArchiveTeacher флаг учителя и запись об архивации меняются вместе
func (s *TeacherService) ArchiveTeacher(
	ctx context.Context,
	p *model.Principal,
	teacherID uuid.UUID,
	reason string,
	restoreAt *time.Time,
) (*model.TeacherDeletion, error) {
	if d := access.RequireLevel(p, model.RoleAdmin); !d.Allowed {
		return nil, d.Err()
	}

	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, apperror.InvalidInput(ReasonArchiveReasonEmpty)
	}
	if restoreAt != nil && !restoreAt.After(s.now()) {
		return nil, apperror.InvalidInput(ReasonRestoreAtPast)
	}

	teacher, err := s.teachers.GetByID(ctx, teacherID)
	if err != nil {
		return nil, fmt.Errorf("get teacher: %w", err)
	}
	if teacher == nil {
		return nil, apperror.NotFound("teacher")
	}
	if teacher.IsDeleted() {
		return nil, apperror.Conflict(repository.ReasonTeacherAlreadyDeleted)
	}

	deletion := &model.TeacherDeletion{
		TeacherID: teacherID,
		DeletedBy: p.ID,
		Reason:    reason,
		RestoreAt: restoreAt,
	}
	if err := s.teachers.Archive(ctx, deletion); err != nil {
		return nil, err
	}

	s.logger.Info("Teacher archived",
		zap.String("teacher_id", teacherID.String()),
		zap.String("deleted_by", p.ID.String()),
		zap.String("reason", reason))

	return deletion, nil
}

// RestoreTeacher возвращает учителя, если дата восстановления наступила
func (s *TeacherService) RestoreTeacher(ctx context.Context, p *model.Principal, teacherID uuid.UUID) error {
	if d := access.RequireLevel(p, model.RoleAdmin); !d.Allowed {
		return d.Err()
	}

	deletion, err := s.teachers.GetDeletion(ctx, teacherID)
	if err != nil {
		return fmt.Errorf("get teacher deletion: %w", err)
	}
	if deletion == nil {
		return apperror.NotFound("teacher deletion")
	}
	if !deletion.CanRestore(s.now()) {
		return apperror.InvalidInput(ReasonRestoreNotReached)
	}

	if err := s.teachers.Restore(ctx, teacherID); err != nil {
		return err
	}

	s.logger.Info("Teacher restored",
		zap.String("teacher_id", teacherID.String()),
		zap.String("restored_by", p.ID.String()))

	return nil
}

// LinkCalendar учитель сам себе или админ
func (s *TeacherService) LinkCalendar(ctx context.Context, p *model.Principal, teacherID uuid.UUID, linked bool) error {
	if d := access.SelfOrSuperior(p, teacherID, model.RoleTeacher); !d.Allowed {
		return d.Err()
	}

	if err := s.teachers.SetCalendar(ctx, teacherID, linked); err != nil {
		return err
	}

	s.logger.Info("Teacher calendar flag changed",
		zap.String("teacher_id", teacherID.String()),
		zap.Bool("linked", linked))

	return nil
}
