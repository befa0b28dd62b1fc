package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Freeeeeet/tutor_backend/internal/access"
	"github.com/Freeeeeet/tutor_backend/internal/apperror"
	"github.com/Freeeeeet/tutor_backend/internal/calendar"
	"github.com/Freeeeeet/tutor_backend/internal/model"
	"github.com/Freeeeeet/tutor_backend/internal/notify"
	"github.com/Freeeeeet/tutor_backend/internal/schedule"
)

const (
	ReasonLessonFinalized   = "lesson is finalized"
	ReasonLessonStarted     = "started lesson cannot be removed"
	ReasonStudentBlocked    = "student is blocked"
	ReasonStudentRequired   = "student is required to book a lesson"
	ReasonBadRange          = "bad range"
	ReasonLessonNameMissing = "lesson name is required"
)

type CreateLessonInput struct {
	TeacherID uuid.UUID
	StudentID *uuid.UUID
	Name      string
	Start     time.Time
	End       time.Time
	Price     int64
}

type LessonService struct {
	lessons  LessonStore
	teachers TeacherStore
	students StudentStore
	calendar calendar.Capability
	meetings calendar.MeetingCreator
	notifier notify.Notifier
	logger   *zap.Logger
	now      func() time.Time
}

func NewLessonService(
	lessons LessonStore,
	teachers TeacherStore,
	students StudentStore,
	capability calendar.Capability,
	meetings calendar.MeetingCreator,
	notifier notify.Notifier,
	logger *zap.Logger,
) *LessonService {
	return &LessonService{
		lessons:  lessons,
		teachers: teachers,
		students: students,
		calendar: capability,
		meetings: meetings,
		notifier: notifier,
		logger:   logger,
		now:      time.Now,
	}
}

// CreateLesson создаёт слот; со студентом он сразу booked
func (s *LessonService) CreateLesson(ctx context.Context, p *model.Principal, in CreateLessonInput) (*model.Lesson, error) {
	if d := access.Authorize(p, access.Resource{TeacherID: &in.TeacherID}, model.RoleTeacher); !d.Allowed {
		return nil, d.Err()
	}

	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, apperror.InvalidInput(ReasonLessonNameMissing)
	}
	if in.Price < 0 {
		return nil, apperror.InvalidInput("price must not be negative")
	}

	teacher, err := s.teachers.GetByID(ctx, in.TeacherID)
	if err != nil {
		return nil, fmt.Errorf("get teacher: %w", err)
	}
	if teacher == nil {
		return nil, apperror.NotFound("teacher")
	}

	var student *model.Student
	if in.StudentID != nil {
		if student, err = s.bindableStudent(ctx, *in.StudentID); err != nil {
			return nil, err
		}
	}

	schedulable := false
	if teacher.IsActive && !teacher.IsDeleted() {
		if schedulable, err = s.calendar.HasLinkedCalendar(ctx, teacher.ID); err != nil {
			return nil, fmt.Errorf("check calendar: %w", err)
		}
	}

	now := s.now()
	proposal := schedule.Proposal{
		TeacherID:          teacher.ID,
		StudentID:          in.StudentID,
		Start:              in.Start,
		End:                in.End,
		TeacherSchedulable: schedulable,
	}

	// правила без чужих уроков проверяем до создания встречи
	if err := schedule.Validate(now, proposal, nil); err != nil {
		return nil, err
	}

	meeting, err := s.meetings.CreateMeeting(ctx, teacher.ID, in.Start, in.End, name)
	if err != nil {
		s.logger.Error("Failed to create meeting",
			zap.String("teacher_id", teacher.ID.String()),
			zap.Error(err))
		return nil, fmt.Errorf("create meeting: %w", err)
	}

	lesson := &model.Lesson{
		TeacherID:       teacher.ID,
		StudentID:       in.StudentID,
		Name:            name,
		StartTime:       in.Start,
		EndTime:         in.End,
		Status:          model.LessonStatusAvailable,
		Price:           in.Price,
		MeetingURL:      meeting.JoinURL,
		ExternalEventID: meeting.ExternalEventID,
	}
	if in.StudentID != nil {
		lesson.Status = model.LessonStatusBooked
	}

	err = s.lessons.CreateChecked(ctx, lesson, func(_ *model.Lesson, existing []*model.Lesson) error {
		return schedule.Validate(now, proposal, existing)
	})
	if err != nil {
		s.cancelMeeting(ctx, teacher.ID, meeting)
		return nil, err
	}

	s.logger.Info("Lesson created",
		zap.String("lesson_id", lesson.ID.String()),
		zap.String("teacher_id", lesson.TeacherID.String()),
		zap.String("status", string(lesson.Status)),
		zap.Time("start", lesson.StartTime))

	if student != nil {
		s.notifyStudent(ctx, student, lesson)
	}

	return lesson, nil
}

// cancelMeeting откат встречи для несохранённого урока; ошибка только в лог
func (s *LessonService) cancelMeeting(ctx context.Context, teacherID uuid.UUID, meeting calendar.Meeting) {
	if err := s.meetings.CancelMeeting(context.WithoutCancel(ctx), teacherID, meeting.ExternalEventID); err != nil {
		s.logger.Warn("Failed to cancel meeting of rejected lesson",
			zap.String("teacher_id", teacherID.String()),
			zap.String("external_event_id", meeting.ExternalEventID),
			zap.Error(err))
	}
}

// UpdateLessonTime переносит урок; проверка конфликтов как для нового, без самого урока
func (s *LessonService) UpdateLessonTime(ctx context.Context, p *model.Principal, id uuid.UUID, start, end time.Time) (*model.Lesson, error) {
	lesson, err := s.ownedLesson(ctx, p, id)
	if err != nil {
		return nil, err
	}

	teacher, err := s.teachers.GetByID(ctx, lesson.TeacherID)
	if err != nil {
		return nil, fmt.Errorf("get teacher: %w", err)
	}

	schedulable := false
	if teacher != nil && teacher.IsActive && !teacher.IsDeleted() {
		if schedulable, err = s.calendar.HasLinkedCalendar(ctx, teacher.ID); err != nil {
			return nil, fmt.Errorf("check calendar: %w", err)
		}
	}

	now := s.now()
	updated, err := s.lessons.UpdateChecked(ctx, id,
		func(l *model.Lesson) error {
			if l.Status.IsTerminal() {
				return apperror.InvalidInput(ReasonLessonFinalized)
			}
			l.StartTime, l.EndTime = start, end
			return nil
		},
		func(l *model.Lesson, existing []*model.Lesson) error {
			return schedule.Validate(now, schedule.Proposal{
				LessonID:           &l.ID,
				TeacherID:          l.TeacherID,
				StudentID:          l.StudentID,
				Start:              l.StartTime,
				End:                l.EndTime,
				TeacherSchedulable: schedulable,
			}, existing)
		},
	)
	if err != nil {
		return nil, err
	}

	s.logger.Info("Lesson rescheduled",
		zap.String("lesson_id", id.String()),
		zap.Time("start", start),
		zap.Time("end", end))

	return updated, nil
}

// BookStudent привязывает студента к свободному слоту
func (s *LessonService) BookStudent(ctx context.Context, p *model.Principal, id, studentID uuid.UUID) (*model.Lesson, error) {
	if _, err := s.ownedLesson(ctx, p, id); err != nil {
		return nil, err
	}

	student, err := s.bindableStudent(ctx, studentID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	updated, err := s.lessons.UpdateChecked(ctx, id,
		func(l *model.Lesson) error {
			if err := model.ValidateTransition(l.Status, model.LessonStatusBooked); err != nil {
				return err
			}
			l.StudentID = &studentID
			l.Status = model.LessonStatusBooked
			return nil
		},
		func(l *model.Lesson, existing []*model.Lesson) error {
			return schedule.ValidateStudentLeg(now, l.ID, studentID, l.StartTime, l.EndTime, existing)
		},
	)
	if err != nil {
		return nil, err
	}

	s.logger.Info("Student booked",
		zap.String("lesson_id", id.String()),
		zap.String("student_id", studentID.String()))

	s.notifyStudent(ctx, student, updated)
	return updated, nil
}

// TransitionLesson переводит урок в target; повторный completed ничего не меняет
func (s *LessonService) TransitionLesson(ctx context.Context, p *model.Principal, id uuid.UUID, target model.LessonStatus) (*model.Lesson, error) {
	lesson, err := s.ownedLesson(ctx, p, id)
	if err != nil {
		return nil, err
	}

	if target == model.LessonStatusBooked {
		return nil, apperror.InvalidInput(ReasonStudentRequired)
	}
	if lesson.Status == model.LessonStatusCompleted && target == model.LessonStatusCompleted {
		return lesson, nil
	}

	from := lesson.Status
	updated, err := s.lessons.UpdateChecked(ctx, id, func(l *model.Lesson) error {
		from = l.Status
		if l.Status == model.LessonStatusCompleted && target == model.LessonStatusCompleted {
			return nil
		}
		if err := model.ValidateTransition(l.Status, target); err != nil {
			return err
		}
		l.Status = target
		return nil
	}, nil)
	if err != nil {
		return nil, err
	}

	if from != updated.Status {
		s.logger.Info("Lesson status changed",
			zap.String("lesson_id", id.String()),
			zap.String("from", string(from)),
			zap.String("to", string(updated.Status)))
	}

	return updated, nil
}

func (s *LessonService) CompleteLesson(ctx context.Context, p *model.Principal, id uuid.UUID) (*model.Lesson, error) {
	return s.TransitionLesson(ctx, p, id, model.LessonStatusCompleted)
}

func (s *LessonService) CancelLesson(ctx context.Context, p *model.Principal, id uuid.UUID) (*model.Lesson, error) {
	return s.TransitionLesson(ctx, p, id, model.LessonStatusCancelled)
}

// DeleteLesson мягкое удаление, только до начала урока
func (s *LessonService) DeleteLesson(ctx context.Context, p *model.Principal, id uuid.UUID) error {
	if _, err := s.ownedLesson(ctx, p, id); err != nil {
		return err
	}

	now := s.now()
	_, err := s.lessons.UpdateChecked(ctx, id, func(l *model.Lesson) error {
		if !l.Status.IsRemovable() {
			return apperror.InvalidInput(ReasonLessonFinalized)
		}
		if l.HasStarted(now) {
			return apperror.InvalidInput(ReasonLessonStarted)
		}
		l.IsDeleted = true
		l.DeletedAt = &now
		return nil
	}, nil)
	if err != nil {
		return err
	}

	s.logger.Info("Lesson deleted", zap.String("lesson_id", id.String()))
	return nil
}

// GetLesson доступен учителю, привязанному студенту и админам
func (s *LessonService) GetLesson(ctx context.Context, p *model.Principal, id uuid.UUID) (*model.Lesson, error) {
	if d := access.RequireLevel(p, model.RoleTeacher); !d.Allowed {
		return nil, d.Err()
	}

	lesson, err := s.getLesson(ctx, id)
	if err != nil {
		return nil, err
	}
	if d := access.LessonReader(p, lesson); !d.Allowed {
		return nil, d.Err()
	}
	return lesson, nil
}

// ListTeacherLessons уроки учителя с началом в [from, to)
func (s *LessonService) ListTeacherLessons(ctx context.Context, p *model.Principal, teacherID uuid.UUID, from, to time.Time) ([]*model.Lesson, error) {
	if d := access.TeacherOwns(p, teacherID); !d.Allowed {
		return nil, d.Err()
	}
	if !from.Before(to) {
		return nil, apperror.InvalidInput(ReasonBadRange)
	}

	lessons, err := s.lessons.ListByTeacher(ctx, teacherID, from, to)
	if err != nil {
		return nil, fmt.Errorf("list lessons: %w", err)
	}
	return lessons, nil
}

// ownedLesson проверка входа, затем владения; удалённый урок не найден
func (s *LessonService) ownedLesson(ctx context.Context, p *model.Principal, id uuid.UUID) (*model.Lesson, error) {
	if d := access.RequireLevel(p, model.RoleTeacher); !d.Allowed {
		return nil, d.Err()
	}

	lesson, err := s.getLesson(ctx, id)
	if err != nil {
		return nil, err
	}
	if d := access.LessonOwner(p, lesson); !d.Allowed {
		return nil, d.Err()
	}
	return lesson, nil
}

func (s *LessonService) getLesson(ctx context.Context, id uuid.UUID) (*model.Lesson, error) {
	lesson, err := s.lessons.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get lesson: %w", err)
	}
	if lesson == nil || lesson.IsDeleted {
		return nil, apperror.NotFound("lesson")
	}
	return lesson, nil
}

func (s *LessonService) bindableStudent(ctx context.Context, id uuid.UUID) (*model.Student, error) {
	student, err := s.students.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get student: %w", err)
	}
	if student == nil {
		return nil, apperror.NotFound("student")
	}
	if student.IsBlocked() {
		return nil, apperror.InvalidInput(ReasonStudentBlocked)
	}
	return student, nil
}

// notifyStudent доставка не влияет на результат бронирования
func (s *LessonService) notifyStudent(ctx context.Context, student *model.Student, lesson *model.Lesson) {
	if student.TelegramChatID == nil {
		return
	}

	text := fmt.Sprintf("Вы записаны на урок «%s» %s. Ссылка: %s",
		lesson.Name, lesson.StartTime.Format("02.01.2006 15:04"), lesson.MeetingURL)

	if !s.notifier.Send(ctx, strconv.FormatInt(*student.TelegramChatID, 10), text) {
		s.logger.Warn("Student notification not sent",
			zap.String("lesson_id", lesson.ID.String()),
			zap.String("student_id", student.ID.String()))
	}
}
