package calendar

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Freeeeeet/tutor_backend/internal/model"
)

// Capability может ли учитель вообще создавать слоты
type Capability interface {
	HasLinkedCalendar(ctx context.Context, teacherID uuid.UUID) (bool, error)
}

// Meeting ссылка на созданную встречу, ядро её не разбирает
type Meeting struct {
	JoinURL         string
	ExternalEventID string
}

// MeetingCreator создаёт встречу для урока и отменяет её, если урок не сохранился
type MeetingCreator interface {
	CreateMeeting(ctx context.Context, teacherID uuid.UUID, start, end time.Time, title string) (Meeting, error)
	CancelMeeting(ctx context.Context, teacherID uuid.UUID, externalEventID string) error
}

type teacherGetter interface {
	GetByID(ctx context.Context, id uuid.UUID) (*model.Teacher, error)
}

// TeacherFlag читает флаг has_calendar из строки учителя
type TeacherFlag struct {
	teachers teacherGetter
}

func NewTeacherFlag(teachers teacherGetter) *TeacherFlag {
	return &TeacherFlag{teachers: teachers}
}

func (f *TeacherFlag) HasLinkedCalendar(ctx context.Context, teacherID uuid.UUID) (bool, error) {
	teacher, err := f.teachers.GetByID(ctx, teacherID)
	if err != nil {
		return false, fmt.Errorf("get teacher: %w", err)
	}
	if teacher == nil {
		return false, nil
	}
	return teacher.HasCalendar, nil
}

// RoomLinks выдаёт ссылку на комнату вида <base>/<room>
type RoomLinks struct {
	baseURL string
}

func NewRoomLinks(baseURL string) *RoomLinks {
	return &RoomLinks{baseURL: strings.TrimRight(baseURL, "/")}
}

func (r *RoomLinks) CreateMeeting(_ context.Context, teacherID uuid.UUID, start, _ time.Time, _ string) (Meeting, error) {
	if r.baseURL == "" {
		return Meeting{}, fmt.Errorf("meeting base url is not configured")
	}

	eventID := uuid.New()
	room := fmt.Sprintf("lesson-%s-%d", teacherID.String()[:8], start.Unix())

	return Meeting{
		JoinURL:         fmt.Sprintf("%s/%s-%s", r.baseURL, room, eventID.String()[:8]),
		ExternalEventID: eventID.String(),
	}, nil
}

// CancelMeeting комнаты создаются при первом входе, удалять нечего
func (r *RoomLinks) CancelMeeting(context.Context, uuid.UUID, string) error {
	return nil
}
