package model

import (
	"bytes"
	"time"

	"github.com/google/uuid"
)

type Lesson struct {
	ID              uuid.UUID    `json:"id"`
	TeacherID       uuid.UUID    `json:"teacher_id"`
	StudentID       *uuid.UUID   `json:"student_id"` // nil только пока урок available
	Name            string       `json:"name"`
	StartTime       time.Time    `json:"start_time"`
	EndTime         time.Time    `json:"end_time"`
	Status          LessonStatus `json:"status"`
	Price           int64        `json:"price"` // в минорных единицах
	IsPaid          bool         `json:"is_paid"`
	MeetingURL      string       `json:"meeting_url"`
	ExternalEventID string       `json:"external_event_id"`
	IsDeleted       bool         `json:"is_deleted"`
	DeletedAt       *time.Time   `json:"deleted_at,omitempty"`
	CreatedAt       time.Time    `json:"created_at"`
	UpdatedAt       time.Time    `json:"updated_at"`
}

// DurationMinutes длительность урока в минутах
func (l *Lesson) DurationMinutes() int {
	return int(l.EndTime.Sub(l.StartTime) / time.Minute)
}

// HasEnded урок закончился к моменту now
func (l *Lesson) HasEnded(now time.Time) bool {
	return !l.EndTime.After(now)
}

// HasStarted урок уже начался к моменту now
func (l *Lesson) HasStarted(now time.Time) bool {
	return !now.Before(l.StartTime)
}

// HasStudent привязан ли студент
func (l *Lesson) HasStudent() bool {
	return l.StudentID != nil
}

// IsStudent проверяет что id совпадает с привязанным студентом
func (l *Lesson) IsStudent(id uuid.UUID) bool {
	return l.StudentID != nil && *l.StudentID == id
}

// LessonCursor позиция постраничного обхода уроков по (end_time, id)
type LessonCursor struct {
	EndTime time.Time
	ID      uuid.UUID
}

// Cursor позиция сразу за уроком
func (l *Lesson) Cursor() LessonCursor {
	return LessonCursor{EndTime: l.EndTime, ID: l.ID}
}

// Precedes урок идёт строго после курсора; uuid сравниваются побайтно, как в postgres
func (c LessonCursor) Precedes(l *Lesson) bool {
	if !l.EndTime.Equal(c.EndTime) {
		return l.EndTime.After(c.EndTime)
	}
	return bytes.Compare(l.ID[:], c.ID[:]) > 0
}
