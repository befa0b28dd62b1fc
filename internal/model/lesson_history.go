package model

import (
	"time"

	"github.com/google/uuid"
)

// PlaceholderFeedback текст истории, созданной фоновой сверкой
const PlaceholderFeedback = "Feedback not provided"

// PlaceholderStar оценка заглушки; пользователь ставит от 1 до 5
const PlaceholderStar = 0

const (
	MinStar = 1
	MaxStar = 5
)

// LessonHistory отзыв/история по проведённому уроку, не больше одной живой на урок
type LessonHistory struct {
	ID        uuid.UUID `json:"id"`
	LessonID  uuid.UUID `json:"lesson_id"`
	TeacherID uuid.UUID `json:"teacher_id"`
	StudentID uuid.UUID `json:"student_id"`
	Star      int       `json:"star"`
	Feedback  *string   `json:"feedback"`
	IsDeleted bool      `json:"is_deleted"`
	CreatedAt time.Time `json:"created_at"`
}

// IsPlaceholder создана ли история сверкой
func (h *LessonHistory) IsPlaceholder() bool {
	return h.Star == PlaceholderStar
}

// NewPlaceholderHistory заглушка истории для закончившегося урока
func NewPlaceholderHistory(lesson *Lesson) *LessonHistory {
	feedback := PlaceholderFeedback
	return &LessonHistory{
		LessonID:  lesson.ID,
		TeacherID: lesson.TeacherID,
		StudentID: *lesson.StudentID,
		Star:      PlaceholderStar,
		Feedback:  &feedback,
	}
}
