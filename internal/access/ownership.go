package access

import (
	"github.com/google/uuid"

	"github.com/Freeeeeet/tutor_backend/internal/model"
)

// Predicate решение о доступе принципала к конкретному ресурсу
type Predicate[T any] func(p *model.Principal, resource T) Decision

// Owns строит предикат владения по функции, извлекающей учителя-владельца
func Owns[T any](owner func(T) uuid.UUID) Predicate[T] {
	return func(p *model.Principal, resource T) Decision {
		return TeacherOwns(p, owner(resource))
	}
}

var (
	LessonOwner = Owns(func(l *model.Lesson) uuid.UUID { return l.TeacherID })

	PaymentOwner = Owns(func(pm *model.TeacherPayment) uuid.UUID { return pm.TeacherID })

	HistoryOwner = Owns(func(h *model.LessonHistory) uuid.UUID { return h.TeacherID })
)

// LessonReader владелец, админы или привязанный студент
func LessonReader(p *model.Principal, l *model.Lesson) Decision {
	d := LessonOwner(p, l)
	if d.Allowed || d.Reason != ReasonForbidden {
		return d
	}
	if l.IsStudent(p.ID) {
		return Allow()
	}
	return d
}
