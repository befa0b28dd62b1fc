package service

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/Freeeeeet/tutor_backend/internal/model"
	"github.com/Freeeeeet/tutor_backend/internal/repository"
)

// Хранилища, которые нужны сервисам. Реализации в internal/repository

type LessonStore interface {
	CreateChecked(ctx context.Context, lesson *model.Lesson, check repository.ConflictCheck) error
	UpdateChecked(ctx context.Context, id uuid.UUID, apply func(*model.Lesson) error, check repository.ConflictCheck) (*model.Lesson, error)
	GetByID(ctx context.Context, id uuid.UUID) (*model.Lesson, error)
	ListByTeacher(ctx context.Context, teacherID uuid.UUID, from, to time.Time) ([]*model.Lesson, error)
	ListEndedWithoutHistory(ctx context.Context, now time.Time, after *model.LessonCursor, limit int) ([]*model.Lesson, error)
}

type HistoryStore interface {
	Create(ctx context.Context, h *model.LessonHistory) error
	CreateIfAbsent(ctx context.Context, h *model.LessonHistory) (bool, error)
}

type PaymentStore interface {
	Create(ctx context.Context, p *model.TeacherPayment) error
	GetByID(ctx context.Context, id uuid.UUID) (*model.TeacherPayment, error)
	ExistsLive(ctx context.Context, lessonID uuid.UUID) (bool, error)
	Cancel(ctx context.Context, id uuid.UUID, c model.PaymentCanceled) (*model.TeacherPayment, error)
	Update(ctx context.Context, p *model.TeacherPayment) (*model.TeacherPayment, error)
	ListByTeacher(ctx context.Context, teacherID uuid.UUID) ([]*model.TeacherPayment, error)
}

type TeacherStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*model.Teacher, error)
	GetByPhone(ctx context.Context, phone string) (*model.Teacher, error)
	SetCalendar(ctx context.Context, id uuid.UUID, linked bool) error
	SetPhone(ctx context.Context, id uuid.UUID, phone string) error
	Archive(ctx context.Context, d *model.TeacherDeletion) error
	Restore(ctx context.Context, teacherID uuid.UUID) error
	GetDeletion(ctx context.Context, teacherID uuid.UUID) (*model.TeacherDeletion, error)
}

type StudentStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*model.Student, error)
}

type AdminStore interface {
	Create(ctx context.Context, a *model.Admin) error
	GetByID(ctx context.Context, id uuid.UUID) (*model.Admin, error)
	GetByUsername(ctx context.Context, username string) (*model.Admin, error)
	SuperAdminExists(ctx context.Context) (bool, error)
	UpdateRole(ctx context.Context, id uuid.UUID, role model.Role) error
}
