package service

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/Freeeeeet/tutor_backend/internal/access"
	"github.com/Freeeeeet/tutor_backend/internal/apperror"
	"github.com/Freeeeeet/tutor_backend/internal/calendar"
	"github.com/Freeeeeet/tutor_backend/internal/model"
	"github.com/Freeeeeet/tutor_backend/internal/otp"
	"github.com/Freeeeeet/tutor_backend/internal/repository"
)

var testNow = time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)

func at(day, hour, minute int) time.Time {
	return time.Date(2026, 3, day, hour, minute, 0, 0, time.UTC)
}

func clock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func teacherPrincipal(id uuid.UUID) *model.Principal {
	return &model.Principal{ID: id, Role: model.RoleTeacher, IsActive: true}
}

func adminPrincipal() *model.Principal {
	return &model.Principal{ID: uuid.New(), Role: model.RoleAdmin, IsActive: true}
}

func superAdminPrincipal() *model.Principal {
	return &model.Principal{ID: uuid.New(), Role: model.RoleSuperAdmin, IsActive: true}
}

// fakeLessons хранилище уроков в памяти; проверка и запись под одним мьютексом, как в транзакции
type fakeLessons struct {
	mu      sync.Mutex
	lessons map[uuid.UUID]*model.Lesson
	writes  int

	hasHistory func(lessonID uuid.UUID) bool
}

func newFakeLessons() *fakeLessons {
	return &fakeLessons{lessons: make(map[uuid.UUID]*model.Lesson)}
}

func (f *fakeLessons) snapshot() []*model.Lesson {
	out := make([]*model.Lesson, 0, len(f.lessons))
	for _, l := range f.lessons {
		c := *l
		out = append(out, &c)
	}
	return out
}

func (f *fakeLessons) CreateChecked(_ context.Context, lesson *model.Lesson, check repository.ConflictCheck) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if check != nil {
		if err := check(lesson, f.snapshot()); err != nil {
			return err
		}
	}
	lesson.ID = uuid.New()
	lesson.CreatedAt = testNow
	lesson.UpdatedAt = testNow
	c := *lesson
	f.lessons[lesson.ID] = &c
	f.writes++
	return nil
}

func (f *fakeLessons) UpdateChecked(
	_ context.Context,
	id uuid.UUID,
	apply func(*model.Lesson) error,
	check repository.ConflictCheck,
) (*model.Lesson, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	current, ok := f.lessons[id]
	if !ok || current.IsDeleted {
		return nil, apperror.NotFound("lesson")
	}

	next := *current
	if err := apply(&next); err != nil {
		return nil, err
	}
	if next == *current {
		c := next
		return &c, nil
	}
	if check != nil {
		if err := check(&next, f.snapshot()); err != nil {
			return nil, err
		}
	}

	f.lessons[id] = &next
	f.writes++
	c := next
	return &c, nil
}

func (f *fakeLessons) GetByID(_ context.Context, id uuid.UUID) (*model.Lesson, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	l, ok := f.lessons[id]
	if !ok {
		return nil, nil
	}
	c := *l
	return &c, nil
}

func (f *fakeLessons) ListByTeacher(_ context.Context, teacherID uuid.UUID, from, to time.Time) ([]*model.Lesson, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var out []*model.Lesson
	for _, l := range f.lessons {
		if l.TeacherID == teacherID && !l.IsDeleted && !l.StartTime.Before(from) && l.StartTime.Before(to) {
			c := *l
			out = append(out, &c)
		}
	}
	return out, nil
}

// ListEndedWithoutHistory смотрит в связанное хранилище историй
func (f *fakeLessons) ListEndedWithoutHistory(_ context.Context, now time.Time, after *model.LessonCursor, limit int) ([]*model.Lesson, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var out []*model.Lesson
	for _, l := range f.lessons {
		if l.IsDeleted || l.EndTime.After(now) {
			continue
		}
		if after != nil && !after.Precedes(l) {
			continue
		}
		if f.hasHistory != nil && f.hasHistory(l.ID) {
			continue
		}
		c := *l
		out = append(out, &c)
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].Cursor().Precedes(out[j])
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeLessons) put(l *model.Lesson) *model.Lesson {
	f.mu.Lock()
	defer f.mu.Unlock()

	if l.ID == uuid.Nil {
		l.ID = uuid.New()
	}
	c := *l
	f.lessons[l.ID] = &c
	return l
}

type fakeHistories struct {
	mu        sync.Mutex
	histories map[uuid.UUID]*model.LessonHistory // по lesson_id, только живые
	failFor   map[uuid.UUID]bool
}

func newFakeHistories() *fakeHistories {
	return &fakeHistories{
		histories: make(map[uuid.UUID]*model.LessonHistory),
		failFor:   make(map[uuid.UUID]bool),
	}
}

func (f *fakeHistories) has(lessonID uuid.UUID) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.histories[lessonID]
	return ok
}

func (f *fakeHistories) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.histories)
}

func (f *fakeHistories) Create(_ context.Context, h *model.LessonHistory) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, ok := f.histories[h.LessonID]; ok {
		return apperror.Conflict(repository.ReasonDuplicateHistory)
	}
	h.ID = uuid.New()
	c := *h
	f.histories[h.LessonID] = &c
	return nil
}

func (f *fakeHistories) CreateIfAbsent(_ context.Context, h *model.LessonHistory) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.failFor[h.LessonID] {
		return false, errors.New("connection reset")
	}
	if _, ok := f.histories[h.LessonID]; ok {
		return false, nil
	}
	h.ID = uuid.New()
	c := *h
	f.histories[h.LessonID] = &c
	return true, nil
}

type fakePayments struct {
	mu       sync.Mutex
	payments map[uuid.UUID]*model.TeacherPayment
}

func newFakePayments() *fakePayments {
	return &fakePayments{payments: make(map[uuid.UUID]*model.TeacherPayment)}
}

func (f *fakePayments) Create(_ context.Context, p *model.TeacherPayment) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, existing := range f.payments {
		if existing.LessonID == p.LessonID && !existing.IsCanceled() && !existing.IsDeleted {
			return apperror.Conflict(repository.ReasonDuplicatePayment)
		}
	}
	p.ID = uuid.New()
	p.PaidAt = testNow
	c := *p
	f.payments[p.ID] = &c
	return nil
}

func (f *fakePayments) GetByID(_ context.Context, id uuid.UUID) (*model.TeacherPayment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	p, ok := f.payments[id]
	if !ok {
		return nil, nil
	}
	c := *p
	return &c, nil
}

func (f *fakePayments) ExistsLive(_ context.Context, lessonID uuid.UUID) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, p := range f.payments {
		if p.LessonID == lessonID && !p.IsCanceled() && !p.IsDeleted {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakePayments) Cancel(_ context.Context, id uuid.UUID, c model.PaymentCanceled) (*model.TeacherPayment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	p, ok := f.payments[id]
	if !ok || p.IsCanceled() {
		return nil, nil
	}
	p.State = c
	out := *p
	return &out, nil
}

func (f *fakePayments) Update(_ context.Context, p *model.TeacherPayment) (*model.TeacherPayment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	current, ok := f.payments[p.ID]
	if !ok || current.IsCanceled() {
		return nil, nil
	}
	c := *p
	f.payments[p.ID] = &c
	out := c
	return &out, nil
}

func (f *fakePayments) ListByTeacher(_ context.Context, teacherID uuid.UUID) ([]*model.TeacherPayment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var out []*model.TeacherPayment
	for _, p := range f.payments {
		if p.TeacherID == teacherID {
			c := *p
			out = append(out, &c)
		}
	}
	return out, nil
}

type fakeTeachers struct {
	mu        sync.Mutex
	teachers  map[uuid.UUID]*model.Teacher
	deletions map[uuid.UUID]*model.TeacherDeletion
}

func newFakeTeachers() *fakeTeachers {
	return &fakeTeachers{
		teachers:  make(map[uuid.UUID]*model.Teacher),
		deletions: make(map[uuid.UUID]*model.TeacherDeletion),
	}
}

// add активный учитель с привязанным календарём
func (f *fakeTeachers) add() *model.Teacher {
	t := &model.Teacher{
		ID:          uuid.New(),
		FullName:    "Teacher",
		IsActive:    true,
		HasCalendar: true,
		State:       model.TeacherActive{},
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	c := *t
	f.teachers[t.ID] = &c
	return t
}

func (f *fakeTeachers) GetByID(_ context.Context, id uuid.UUID) (*model.Teacher, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	t, ok := f.teachers[id]
	if !ok {
		return nil, nil
	}
	c := *t
	return &c, nil
}

func (f *fakeTeachers) GetByPhone(_ context.Context, phone string) (*model.Teacher, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, t := range f.teachers {
		if t.Phone != nil && *t.Phone == phone {
			c := *t
			return &c, nil
		}
	}
	return nil, nil
}

func (f *fakeTeachers) SetCalendar(_ context.Context, id uuid.UUID, linked bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	t, ok := f.teachers[id]
	if !ok {
		return apperror.NotFound("teacher")
	}
	t.HasCalendar = linked
	return nil
}

func (f *fakeTeachers) SetPhone(_ context.Context, id uuid.UUID, phone string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	t, ok := f.teachers[id]
	if !ok {
		return apperror.NotFound("teacher")
	}
	for _, other := range f.teachers {
		if other.ID != id && other.Phone != nil && *other.Phone == phone {
			return apperror.Conflict(repository.ReasonPhoneInUse)
		}
	}
	t.Phone = &phone
	return nil
}

func (f *fakeTeachers) Archive(_ context.Context, d *model.TeacherDeletion) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	t, ok := f.teachers[d.TeacherID]
	if !ok {
		return apperror.NotFound("teacher")
	}
	if _, exists := f.deletions[d.TeacherID]; exists {
		return apperror.Conflict(repository.ReasonTeacherAlreadyDeleted)
	}
	d.ID = uuid.New()
	d.DeletedAt = testNow
	c := *d
	f.deletions[d.TeacherID] = &c
	t.State = model.TeacherStateOf(true, &d.DeletedAt, d.RestoreAt)
	return nil
}

func (f *fakeTeachers) Restore(_ context.Context, teacherID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, ok := f.deletions[teacherID]; !ok {
		return apperror.NotFound("teacher deletion")
	}
	delete(f.deletions, teacherID)
	f.teachers[teacherID].State = model.TeacherActive{}
	return nil
}

func (f *fakeTeachers) GetDeletion(_ context.Context, teacherID uuid.UUID) (*model.TeacherDeletion, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	d, ok := f.deletions[teacherID]
	if !ok {
		return nil, nil
	}
	c := *d
	return &c, nil
}

type fakeStudents struct {
	students map[uuid.UUID]*model.Student
}

func newFakeStudents() *fakeStudents {
	return &fakeStudents{students: make(map[uuid.UUID]*model.Student)}
}

func (f *fakeStudents) add(blocked bool) *model.Student {
	chatID := int64(1000 + len(f.students))
	s := &model.Student{
		ID:             uuid.New(),
		FullName:       "Student",
		TelegramChatID: &chatID,
		State:          model.StudentActive{},
	}
	if blocked {
		s.State = model.StudentBlocked{At: testNow}
	}
	f.students[s.ID] = s
	return s
}

func (f *fakeStudents) GetByID(_ context.Context, id uuid.UUID) (*model.Student, error) {
	s, ok := f.students[id]
	if !ok {
		return nil, nil
	}
	c := *s
	return &c, nil
}

type fakeAdmins struct {
	mu     sync.Mutex
	admins map[uuid.UUID]*model.Admin
}

func newFakeAdmins() *fakeAdmins {
	return &fakeAdmins{admins: make(map[uuid.UUID]*model.Admin)}
}

func (f *fakeAdmins) Create(_ context.Context, a *model.Admin) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, existing := range f.admins {
		if existing.Username == a.Username {
			return apperror.Conflict(repository.ReasonUsernameTaken)
		}
		if a.Role == model.RoleSuperAdmin && existing.Role == model.RoleSuperAdmin {
			return apperror.Conflict(repository.ReasonSuperAdminExists)
		}
	}
	a.ID = uuid.New()
	a.IsActive = true
	a.CreatedAt = testNow
	c := *a
	f.admins[a.ID] = &c
	return nil
}

func (f *fakeAdmins) GetByID(_ context.Context, id uuid.UUID) (*model.Admin, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	a, ok := f.admins[id]
	if !ok {
		return nil, nil
	}
	c := *a
	return &c, nil
}

func (f *fakeAdmins) GetByUsername(_ context.Context, username string) (*model.Admin, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, a := range f.admins {
		if a.Username == username {
			c := *a
			return &c, nil
		}
	}
	return nil, nil
}

func (f *fakeAdmins) SuperAdminExists(_ context.Context) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, a := range f.admins {
		if a.Role == model.RoleSuperAdmin {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeAdmins) UpdateRole(_ context.Context, id uuid.UUID, role model.Role) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	a, ok := f.admins[id]
	if !ok {
		return apperror.NotFound("admin")
	}
	a.Role = role
	return nil
}

type sentMessage struct {
	Destination string
	Payload     string
}

type fakeNotifier struct {
	mu   sync.Mutex
	sent []sentMessage
	ok   bool
}

func (f *fakeNotifier) Send(_ context.Context, destination, payload string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, sentMessage{Destination: destination, Payload: payload})
	return f.ok
}

func (f *fakeNotifier) messages() []sentMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]sentMessage(nil), f.sent...)
}

type fakeMeetings struct {
	mu       sync.Mutex
	created  []string
	canceled []string
}

func (f *fakeMeetings) CreateMeeting(_ context.Context, teacherID uuid.UUID, _, _ time.Time, _ string) (calendar.Meeting, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	m := calendar.Meeting{
		JoinURL:         "https://meet.example.com/" + teacherID.String()[:8],
		ExternalEventID: uuid.NewString(),
	}
	f.created = append(f.created, m.ExternalEventID)
	return m, nil
}

func (f *fakeMeetings) CancelMeeting(_ context.Context, _ uuid.UUID, externalEventID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.canceled = append(f.canceled, externalEventID)
	return nil
}

// lessonEnv сервисы уроков, выплат и историй поверх общих фейков
type lessonEnv struct {
	lessons   *fakeLessons
	histories *fakeHistories
	payments  *fakePayments
	teachers  *fakeTeachers
	students  *fakeStudents
	notifier  *fakeNotifier
	meetings  *fakeMeetings

	lessonSvc  *LessonService
	paymentSvc *PaymentService
	historySvc *HistoryService
}

func newLessonEnv() *lessonEnv {
	logger := zap.NewNop()
	env := &lessonEnv{
		lessons:   newFakeLessons(),
		histories: newFakeHistories(),
		payments:  newFakePayments(),
		teachers:  newFakeTeachers(),
		students:  newFakeStudents(),
		notifier:  &fakeNotifier{ok: true},
		meetings:  &fakeMeetings{},
	}
	env.lessons.hasHistory = env.histories.has

	env.lessonSvc = NewLessonService(env.lessons, env.teachers, env.students,
		calendar.NewTeacherFlag(env.teachers), env.meetings, env.notifier, logger)
	env.lessonSvc.now = clock(testNow)

	env.paymentSvc = NewPaymentService(env.payments, env.lessons, 20, logger)
	env.paymentSvc.now = clock(testNow)

	env.historySvc = NewHistoryService(env.histories, env.lessons, logger)
	env.historySvc.now = clock(testNow)

	return env
}

func (e *lessonEnv) setNow(t time.Time) {
	e.lessonSvc.now = clock(t)
	e.paymentSvc.now = clock(t)
	e.historySvc.now = clock(t)
}

// authEnv сервисы админов, учителей и входа
type authEnv struct {
	admins   *fakeAdmins
	teachers *fakeTeachers
	notifier *fakeNotifier
	codes    *otp.MemoryStore
	hasher   *access.PasswordHasher

	adminTokens   *access.TokenIssuer
	teacherTokens *access.TokenIssuer
	verifier      *access.CombinedVerifier

	adminSvc   *AdminService
	teacherSvc *TeacherService
	authSvc    *AuthService
}

func newAuthEnv() *authEnv {
	logger := zap.NewNop()
	env := &authEnv{
		admins:        newFakeAdmins(),
		teachers:      newFakeTeachers(),
		codes:         otp.NewMemoryStore(),
		notifier:      &fakeNotifier{ok: true},
		hasher:        access.NewPasswordHasher(bcrypt.MinCost),
		adminTokens:   access.NewTokenIssuer("admin-secret", access.ScopeAdmin, time.Hour),
		teacherTokens: access.NewTokenIssuer("teacher-secret", access.ScopeTeacher, time.Hour),
	}
	env.verifier = access.NewCombinedVerifier(
		access.NewJWTVerifier("admin-secret", access.ScopeAdmin),
		access.NewJWTVerifier("teacher-secret", access.ScopeTeacher),
	)

	env.adminSvc = NewAdminService(env.admins, env.hasher, logger)
	env.teacherSvc = NewTeacherService(env.teachers, logger)
	env.teacherSvc.now = clock(testNow)
	env.authSvc = NewAuthService(env.admins, env.teachers, env.codes, env.notifier,
		env.hasher, env.adminTokens, env.teacherTokens, 5*time.Minute, logger)

	return env
}
