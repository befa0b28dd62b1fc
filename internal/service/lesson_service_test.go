package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Freeeeeet/tutor_backend/internal/apperror"
	"github.com/Freeeeeet/tutor_backend/internal/model"
	"github.com/Freeeeeet/tutor_backend/internal/schedule"
)

func assertReason(t *testing.T, err error, kind error, reason string) {
	t.Helper()
	require.Error(t, err)
	assert.ErrorIs(t, err, kind)
	assert.Equal(t, reason, apperror.Reason(err))
}

func createLesson(t *testing.T, env *lessonEnv, teacherID uuid.UUID, studentID *uuid.UUID, start, end time.Time) *model.Lesson {
	t.Helper()
	lesson, err := env.lessonSvc.CreateLesson(context.Background(), teacherPrincipal(teacherID), CreateLessonInput{
		TeacherID: teacherID,
		StudentID: studentID,
		Name:      "Math",
		Start:     start,
		End:       end,
		Price:     10000,
	})
	require.NoError(t, err)
	return lesson
}

func TestCreateLesson_TeacherBreak(t *testing.T) {
	env := newLessonEnv()
	teacher := env.teachers.add()
	p := teacherPrincipal(teacher.ID)
	ctx := context.Background()

	createLesson(t, env, teacher.ID, nil, at(3, 10, 0), at(3, 11, 0))

	_, err := env.lessonSvc.CreateLesson(ctx, p, CreateLessonInput{
		TeacherID: teacher.ID, Name: "Math", Start: at(3, 11, 5), End: at(3, 12, 5),
	})
	assertReason(t, err, apperror.ErrConflict, schedule.ReasonTeacherBusy)

	// встреча отклонённого урока отменена
	require.Len(t, env.meetings.created, 2)
	assert.Equal(t, env.meetings.created[1:], env.meetings.canceled)

	lesson, err := env.lessonSvc.CreateLesson(ctx, p, CreateLessonInput{
		TeacherID: teacher.ID, Name: "Math", Start: at(3, 11, 15), End: at(3, 12, 0),
	})
	require.NoError(t, err)
	assert.Equal(t, model.LessonStatusAvailable, lesson.Status)
	assert.NotEmpty(t, lesson.MeetingURL)
	assert.NotEmpty(t, lesson.ExternalEventID)
	assert.Len(t, env.meetings.canceled, 1)
}

func TestCreateLesson_StudentOverlapAcrossTeachers(t *testing.T) {
	env := newLessonEnv()
	teacherA, teacherB := env.teachers.add(), env.teachers.add()
	student := env.students.add(false)

	booked := createLesson(t, env, teacherA.ID, &student.ID, at(3, 9, 0), at(3, 10, 0))
	assert.Equal(t, model.LessonStatusBooked, booked.Status)

	_, err := env.lessonSvc.CreateLesson(context.Background(), teacherPrincipal(teacherB.ID), CreateLessonInput{
		TeacherID: teacherB.ID, StudentID: &student.ID, Name: "Physics", Start: at(3, 9, 30), End: at(3, 10, 30),
	})
	assertReason(t, err, apperror.ErrConflict, schedule.ReasonStudentBusy)

	createLesson(t, env, teacherB.ID, &student.ID, at(3, 10, 0), at(3, 11, 0))

	// студента уведомили о двух бронированиях
	assert.Len(t, env.notifier.messages(), 2)
}

func TestCreateLesson_Rejections(t *testing.T) {
	env := newLessonEnv()
	teacher := env.teachers.add()
	p := teacherPrincipal(teacher.ID)
	ctx := context.Background()

	_, err := env.lessonSvc.CreateLesson(ctx, p, CreateLessonInput{
		TeacherID: teacher.ID, Name: "Math", Start: at(1, 10, 0), End: at(1, 11, 0),
	})
	assertReason(t, err, apperror.ErrInvalidInput, schedule.ReasonPastInterval)

	_, err = env.lessonSvc.CreateLesson(ctx, p, CreateLessonInput{
		TeacherID: teacher.ID, Name: "Math", Start: at(3, 10, 0), End: at(3, 10, 50),
	})
	assertReason(t, err, apperror.ErrInvalidInput, schedule.ReasonBadDuration)

	_, err = env.lessonSvc.CreateLesson(ctx, p, CreateLessonInput{
		TeacherID: teacher.ID, Start: at(3, 10, 0), End: at(3, 11, 0),
	})
	assertReason(t, err, apperror.ErrInvalidInput, ReasonLessonNameMissing)

	blocked := env.students.add(true)
	_, err = env.lessonSvc.CreateLesson(ctx, p, CreateLessonInput{
		TeacherID: teacher.ID, StudentID: &blocked.ID, Name: "Math", Start: at(3, 10, 0), End: at(3, 11, 0),
	})
	assertReason(t, err, apperror.ErrInvalidInput, ReasonStudentBlocked)

	require.NoError(t, env.teachers.SetCalendar(ctx, teacher.ID, false))
	_, err = env.lessonSvc.CreateLesson(ctx, p, CreateLessonInput{
		TeacherID: teacher.ID, Name: "Math", Start: at(3, 10, 0), End: at(3, 11, 0),
	})
	assertReason(t, err, apperror.ErrInvalidInput, schedule.ReasonNotSchedulable)

	assert.Zero(t, env.lessons.writes)
}

func TestCreateLesson_AuthorizationBeforeConflicts(t *testing.T) {
	env := newLessonEnv()
	teacher := env.teachers.add()
	other := env.teachers.add()
	ctx := context.Background()

	// чужой учитель получает Forbidden даже для заведомо неверного интервала
	_, err := env.lessonSvc.CreateLesson(ctx, teacherPrincipal(other.ID), CreateLessonInput{
		TeacherID: teacher.ID, Name: "Math", Start: at(1, 10, 0), End: at(1, 11, 0),
	})
	assert.ErrorIs(t, err, apperror.ErrForbidden)

	_, err = env.lessonSvc.CreateLesson(ctx, nil, CreateLessonInput{TeacherID: teacher.ID})
	assert.ErrorIs(t, err, apperror.ErrUnauthenticated)

	inactive := teacherPrincipal(teacher.ID)
	inactive.IsActive = false
	_, err = env.lessonSvc.CreateLesson(ctx, inactive, CreateLessonInput{TeacherID: teacher.ID})
	assert.ErrorIs(t, err, apperror.ErrUnauthenticated)

	// админ создаёт урок за учителя
	_, err = env.lessonSvc.CreateLesson(ctx, adminPrincipal(), CreateLessonInput{
		TeacherID: teacher.ID, Name: "Math", Start: at(3, 10, 0), End: at(3, 11, 0),
	})
	assert.NoError(t, err)
}

func TestCreateLesson_ArchivedTeacherNotSchedulable(t *testing.T) {
	env := newLessonEnv()
	teacher := env.teachers.add()
	ctx := context.Background()

	require.NoError(t, env.teachers.Archive(ctx, &model.TeacherDeletion{TeacherID: teacher.ID, Reason: "left"}))

	_, err := env.lessonSvc.CreateLesson(ctx, adminPrincipal(), CreateLessonInput{
		TeacherID: teacher.ID, Name: "Math", Start: at(3, 10, 0), End: at(3, 11, 0),
	})
	assertReason(t, err, apperror.ErrInvalidInput, schedule.ReasonNotSchedulable)
}

func TestCreateLesson_ConcurrentBookingsKeepOneWinner(t *testing.T) {
	env := newLessonEnv()
	teacher := env.teachers.add()
	p := teacherPrincipal(teacher.ID)

	const attempts = 8
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		created int
	)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(offset int) {
			defer wg.Done()
			start := at(3, 10, 0).Add(time.Duration(offset) * 5 * time.Minute)
			_, err := env.lessonSvc.CreateLesson(context.Background(), p, CreateLessonInput{
				TeacherID: teacher.ID, Name: "Math", Start: start, End: start.Add(time.Hour),
			})
			if err == nil {
				mu.Lock()
				created++
				mu.Unlock()
			}
		}(i)
	}
	wg.Wait()

	// все попытки попадают в перерыв друг друга
	assert.Equal(t, 1, created)
}

func TestUpdateLessonTime(t *testing.T) {
	env := newLessonEnv()
	teacher := env.teachers.add()
	student := env.students.add(false)
	p := teacherPrincipal(teacher.ID)
	ctx := context.Background()

	first := createLesson(t, env, teacher.ID, &student.ID, at(3, 10, 0), at(3, 11, 0))
	second := createLesson(t, env, teacher.ID, nil, at(3, 13, 0), at(3, 14, 0))

	// самого себя урок не блокирует
	moved, err := env.lessonSvc.UpdateLessonTime(ctx, p, first.ID, at(3, 10, 30), at(3, 11, 30))
	require.NoError(t, err)
	assert.Equal(t, at(3, 10, 30), moved.StartTime)

	_, err = env.lessonSvc.UpdateLessonTime(ctx, p, first.ID, at(3, 12, 0), at(3, 13, 0))
	assertReason(t, err, apperror.ErrConflict, schedule.ReasonTeacherBusy)

	_, err = env.lessonSvc.UpdateLessonTime(ctx, p, second.ID, at(1, 13, 0), at(1, 14, 0))
	assertReason(t, err, apperror.ErrInvalidInput, schedule.ReasonPastInterval)

	_, err = env.lessonSvc.CancelLesson(ctx, p, second.ID)
	require.NoError(t, err)
	_, err = env.lessonSvc.UpdateLessonTime(ctx, p, second.ID, at(4, 13, 0), at(4, 14, 0))
	assertReason(t, err, apperror.ErrInvalidInput, ReasonLessonFinalized)
}

func TestBookStudent(t *testing.T) {
	env := newLessonEnv()
	teacherA, teacherB := env.teachers.add(), env.teachers.add()
	student := env.students.add(false)
	ctx := context.Background()

	createLesson(t, env, teacherA.ID, &student.ID, at(3, 9, 0), at(3, 10, 0))
	slot := createLesson(t, env, teacherB.ID, nil, at(3, 9, 30), at(3, 10, 30))

	_, err := env.lessonSvc.BookStudent(ctx, teacherPrincipal(teacherB.ID), slot.ID, student.ID)
	assertReason(t, err, apperror.ErrConflict, schedule.ReasonStudentBusy)

	free := env.students.add(false)
	booked, err := env.lessonSvc.BookStudent(ctx, teacherPrincipal(teacherB.ID), slot.ID, free.ID)
	require.NoError(t, err)
	assert.Equal(t, model.LessonStatusBooked, booked.Status)
	assert.True(t, booked.IsStudent(free.ID))

	// booked -> booked недопустим
	_, err = env.lessonSvc.BookStudent(ctx, teacherPrincipal(teacherB.ID), slot.ID, free.ID)
	assert.ErrorIs(t, err, apperror.ErrInvalidInput)

	_, err = env.lessonSvc.BookStudent(ctx, teacherPrincipal(teacherB.ID), slot.ID, uuid.New())
	assert.ErrorIs(t, err, apperror.ErrNotFound)
}

func TestTransitionLesson(t *testing.T) {
	env := newLessonEnv()
	teacher := env.teachers.add()
	student := env.students.add(false)
	p := teacherPrincipal(teacher.ID)
	ctx := context.Background()

	lesson := createLesson(t, env, teacher.ID, &student.ID, at(3, 10, 0), at(3, 11, 0))

	// урок уже начался, но завершить его можно
	env.setNow(at(3, 10, 30))
	completed, err := env.lessonSvc.CompleteLesson(ctx, p, lesson.ID)
	require.NoError(t, err)
	assert.Equal(t, model.LessonStatusCompleted, completed.Status)

	writes := env.lessons.writes
	again, err := env.lessonSvc.CompleteLesson(ctx, p, lesson.ID)
	require.NoError(t, err)
	assert.Equal(t, model.LessonStatusCompleted, again.Status)
	assert.Equal(t, writes, env.lessons.writes)

	_, err = env.lessonSvc.CancelLesson(ctx, p, lesson.ID)
	assert.ErrorIs(t, err, apperror.ErrInvalidInput)

	slot := createLesson(t, env, teacher.ID, nil, at(4, 10, 0), at(4, 11, 0))
	_, err = env.lessonSvc.TransitionLesson(ctx, p, slot.ID, model.LessonStatusBooked)
	assertReason(t, err, apperror.ErrInvalidInput, ReasonStudentRequired)

	_, err = env.lessonSvc.CompleteLesson(ctx, p, slot.ID)
	assert.ErrorIs(t, err, apperror.ErrInvalidInput)
}

func TestDeleteLesson(t *testing.T) {
	env := newLessonEnv()
	teacher := env.teachers.add()
	other := env.teachers.add()
	p := teacherPrincipal(teacher.ID)
	ctx := context.Background()

	lesson := createLesson(t, env, teacher.ID, nil, at(3, 10, 0), at(3, 11, 0))

	err := env.lessonSvc.DeleteLesson(ctx, teacherPrincipal(other.ID), lesson.ID)
	assert.ErrorIs(t, err, apperror.ErrForbidden)

	env.setNow(at(3, 10, 0))
	err = env.lessonSvc.DeleteLesson(ctx, p, lesson.ID)
	assertReason(t, err, apperror.ErrInvalidInput, ReasonLessonStarted)

	env.setNow(testNow)
	require.NoError(t, env.lessonSvc.DeleteLesson(ctx, p, lesson.ID))

	_, err = env.lessonSvc.GetLesson(ctx, p, lesson.ID)
	assert.ErrorIs(t, err, apperror.ErrNotFound)

	// на освободившееся время можно ставить новый урок
	createLesson(t, env, teacher.ID, nil, at(3, 10, 0), at(3, 11, 0))
}

func TestListTeacherLessons(t *testing.T) {
	env := newLessonEnv()
	teacher := env.teachers.add()
	other := env.teachers.add()
	ctx := context.Background()

	createLesson(t, env, teacher.ID, nil, at(3, 10, 0), at(3, 11, 0))
	createLesson(t, env, teacher.ID, nil, at(5, 10, 0), at(5, 11, 0))

	lessons, err := env.lessonSvc.ListTeacherLessons(ctx, teacherPrincipal(teacher.ID), teacher.ID, at(3, 0, 0), at(4, 0, 0))
	require.NoError(t, err)
	assert.Len(t, lessons, 1)

	_, err = env.lessonSvc.ListTeacherLessons(ctx, teacherPrincipal(other.ID), teacher.ID, at(3, 0, 0), at(4, 0, 0))
	assert.ErrorIs(t, err, apperror.ErrForbidden)

	_, err = env.lessonSvc.ListTeacherLessons(ctx, adminPrincipal(), teacher.ID, at(4, 0, 0), at(3, 0, 0))
	assertReason(t, err, apperror.ErrInvalidInput, ReasonBadRange)
}
