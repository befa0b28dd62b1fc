// Package schedule проверяет допустимость интервала урока относительно
// правил длительности, перерыва учителя и уже существующих уроков.
// Все функции чистые: время передаётся параметром, ввода-вывода нет.
package schedule

import (
	"time"

	"github.com/google/uuid"

	"github.com/Freeeeeet/tutor_backend/internal/apperror"
	"github.com/Freeeeeet/tutor_backend/internal/model"
)

// TeacherBreak обязательный перерыв учителя после урока
const TeacherBreak = 15 * time.Minute

// Причины отказа
const (
	ReasonBadInterval    = "bad interval"
	ReasonPastInterval   = "past interval"
	ReasonBadDuration    = "bad duration"
	ReasonNotSchedulable = "teacher not schedulable"
	ReasonTeacherBusy    = "teacher busy"
	ReasonStudentBusy    = "student busy"
)

// AllowedDurations допустимые длительности урока в минутах
var AllowedDurations = []int{30, 45, 60, 90, 120}

// Proposal предлагаемый интервал урока
type Proposal struct {
	LessonID           *uuid.UUID // при обновлении: сам урок исключается из проверки
	TeacherID          uuid.UUID
	StudentID          *uuid.UUID
	Start              time.Time
	End                time.Time
	TeacherSchedulable bool
}

// IsAllowedDuration длительность ровно в минутах и из списка
func IsAllowedDuration(d time.Duration) bool {
	if d%time.Minute != 0 {
		return false
	}
	minutes := int(d / time.Minute)
	for _, allowed := range AllowedDurations {
		if minutes == allowed {
			return true
		}
	}
	return false
}

// Overlaps пересекаются ли полуинтервалы [aStart, aEnd) и [bStart, bEnd)
func Overlaps(aStart, aEnd, bStart, bEnd time.Time) bool {
	return aStart.Before(bEnd) && bStart.Before(aEnd)
}

// overlapsWithBreak пересечение с учётом перерыва после любого из двух уроков
func overlapsWithBreak(start, end time.Time, existing *model.Lesson) bool {
	// новый урок с перерывом задевает существующий
	if existing.StartTime.Before(end.Add(TeacherBreak)) && existing.EndTime.After(start) {
		return true
	}
	// перерыв после существующего задевает новый
	return existing.EndTime.Add(TeacherBreak).After(start) && existing.StartTime.Before(end)
}

// Validate проверяет предложение; первое нарушенное правило побеждает
func Validate(now time.Time, p Proposal, existing []*model.Lesson) error {
	if err := validateInterval(now, p.Start, p.End); err != nil {
		return err
	}

	if !IsAllowedDuration(p.End.Sub(p.Start)) {
		return apperror.InvalidInput(ReasonBadDuration)
	}

	if !p.TeacherSchedulable {
		return apperror.InvalidInput(ReasonNotSchedulable)
	}

	for _, lesson := range existing {
		if skip(lesson, p.LessonID) || lesson.TeacherID != p.TeacherID {
			continue
		}
		if overlapsWithBreak(p.Start, p.End, lesson) {
			return apperror.Conflict(ReasonTeacherBusy)
		}
	}

	if p.StudentID != nil {
		return checkStudent(p.LessonID, *p.StudentID, p.Start, p.End, existing)
	}

	return nil
}

// ValidateStudentLeg проверка при привязке студента к свободному слоту
func ValidateStudentLeg(now time.Time, lessonID, studentID uuid.UUID, start, end time.Time, existing []*model.Lesson) error {
	if err := validateInterval(now, start, end); err != nil {
		return err
	}
	return checkStudent(&lessonID, studentID, start, end, existing)
}

func validateInterval(now, start, end time.Time) error {
	if !start.Before(end) {
		return apperror.InvalidInput(ReasonBadInterval)
	}
	if !start.After(now) || !end.After(now) {
		return apperror.InvalidInput(ReasonPastInterval)
	}
	return nil
}

func checkStudent(self *uuid.UUID, studentID uuid.UUID, start, end time.Time, existing []*model.Lesson) error {
	for _, lesson := range existing {
		if skip(lesson, self) || !lesson.IsStudent(studentID) {
			continue
		}
		if Overlaps(start, end, lesson.StartTime, lesson.EndTime) {
			return apperror.Conflict(ReasonStudentBusy)
		}
	}
	return nil
}

func skip(lesson *model.Lesson, self *uuid.UUID) bool {
	if lesson.IsDeleted {
		return true
	}
	return self != nil && lesson.ID == *self
}
