package model

import (
	"time"

	"github.com/google/uuid"
)

// TeacherState состояние учителя: TeacherActive, TeacherDeleted или TeacherRestorable
type TeacherState interface {
	isTeacherState()
}

type TeacherActive struct{}

// TeacherDeleted архивирован без даты восстановления
type TeacherDeleted struct {
	At time.Time
}

// TeacherRestorable архивирован, восстановить можно начиная с Until
type TeacherRestorable struct {
	At    time.Time
	Until time.Time
}

func (TeacherActive) isTeacherState()     {}
func (TeacherDeleted) isTeacherState()    {}
func (TeacherRestorable) isTeacherState() {}

type Teacher struct {
	ID             uuid.UUID    `json:"id"`
	FullName       string       `json:"full_name"`
	Phone          *string      `json:"phone"`
	PasswordHash   string       `json:"-"`
	IsActive       bool         `json:"is_active"`
	HasCalendar    bool         `json:"has_calendar"` // привязан внешний календарь
	TelegramChatID *int64       `json:"telegram_chat_id"`
	State          TeacherState `json:"-"`
	CreatedAt      time.Time    `json:"created_at"`
}

// IsDeleted архивирован ли учитель
func (t *Teacher) IsDeleted() bool {
	_, active := t.State.(TeacherActive)
	return !active
}

// Principal учитель как участник запроса
func (t *Teacher) Principal() *Principal {
	return &Principal{ID: t.ID, Role: RoleTeacher, IsActive: t.IsActive && !t.IsDeleted()}
}

// TeacherStateOf собирает состояние из флагов строки
func TeacherStateOf(isDeleted bool, deletedAt, restoreAt *time.Time) TeacherState {
	if !isDeleted {
		return TeacherActive{}
	}
	var at time.Time
	if deletedAt != nil {
		at = *deletedAt
	}
	if restoreAt != nil {
		return TeacherRestorable{At: at, Until: *restoreAt}
	}
	return TeacherDeleted{At: at}
}

// TeacherDeletion запись об архивировании учителя
type TeacherDeletion struct {
	ID        uuid.UUID  `json:"id"`
	TeacherID uuid.UUID  `json:"teacher_id"`
	DeletedBy uuid.UUID  `json:"deleted_by"`
	Reason    string     `json:"reason"`
	RestoreAt *time.Time `json:"restore_at"`
	DeletedAt time.Time  `json:"deleted_at"`
}

// CanRestore наступила ли дата восстановления
func (d *TeacherDeletion) CanRestore(now time.Time) bool {
	return d.RestoreAt == nil || !d.RestoreAt.After(now)
}
