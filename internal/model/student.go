package model

import (
	"time"

	"github.com/google/uuid"
)

// StudentState StudentActive либо StudentBlocked
type StudentState interface {
	isStudentState()
}

type StudentActive struct{}

type StudentBlocked struct {
	At time.Time
}

func (StudentActive) isStudentState()  {}
func (StudentBlocked) isStudentState() {}

type Student struct {
	ID             uuid.UUID    `json:"id"`
	FullName       string       `json:"full_name"`
	Phone          *string      `json:"phone"`
	TelegramChatID *int64       `json:"telegram_chat_id"`
	State          StudentState `json:"-"`
	CreatedAt      time.Time    `json:"created_at"`
}

// IsBlocked заблокирован ли студент
func (s *Student) IsBlocked() bool {
	_, blocked := s.State.(StudentBlocked)
	return blocked
}

// StudentStateOf собирает состояние из колонки blocked_at
func StudentStateOf(blockedAt *time.Time) StudentState {
	if blockedAt == nil {
		return StudentActive{}
	}
	return StudentBlocked{At: *blockedAt}
}
