package model

import (
	"fmt"

	"github.com/Freeeeeet/tutor_backend/internal/apperror"
)

type LessonStatus string

const (
	LessonStatusAvailable LessonStatus = "available" // Свободный слот без студента
	LessonStatusBooked    LessonStatus = "booked"    // Студент привязан
	LessonStatusCompleted LessonStatus = "completed" // Проведён
	LessonStatusCancelled LessonStatus = "cancelled" // Отменён
)

// lessonTransitions допустимые переходы; completed -> completed это no-op повтор
var lessonTransitions = map[LessonStatus][]LessonStatus{
	LessonStatusAvailable: {LessonStatusBooked, LessonStatusCancelled},
	LessonStatusBooked:    {LessonStatusCompleted, LessonStatusCancelled},
	LessonStatusCompleted: {LessonStatusCompleted},
	LessonStatusCancelled: {},
}

// IsValid известен ли статус
func (s LessonStatus) IsValid() bool {
	_, ok := lessonTransitions[s]
	return ok
}

// IsTerminal из статуса нет выхода
func (s LessonStatus) IsTerminal() bool {
	return s == LessonStatusCompleted || s == LessonStatusCancelled
}

// IsRemovable из статуса разрешено мягкое удаление
func (s LessonStatus) IsRemovable() bool {
	return s == LessonStatusAvailable || s == LessonStatusBooked
}

// CanTransition проверяет переход from -> to
func CanTransition(from, to LessonStatus) bool {
	for _, next := range lessonTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// ValidateTransition возвращает InvalidInput для недопустимого перехода
func ValidateTransition(from, to LessonStatus) error {
	if !to.IsValid() {
		return apperror.InvalidInput(fmt.Sprintf("unknown status %q", to))
	}
	if !CanTransition(from, to) {
		return apperror.InvalidInput(fmt.Sprintf("invalid transition %s -> %s", from, to))
	}
	return nil
}
