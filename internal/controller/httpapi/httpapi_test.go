package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Freeeeeet/tutor_backend/internal/access"
	"github.com/Freeeeeet/tutor_backend/internal/apperror"
	"github.com/Freeeeeet/tutor_backend/internal/model"
	"github.com/Freeeeeet/tutor_backend/internal/payment"
	"github.com/Freeeeeet/tutor_backend/internal/service"
)

type stubLessons struct {
	LessonAPI
	created service.CreateLessonInput
	err     error
}

func (s *stubLessons) CreateLesson(_ context.Context, p *model.Principal, in service.CreateLessonInput) (*model.Lesson, error) {
	if s.err != nil {
		return nil, s.err
	}
	s.created = in
	return &model.Lesson{
		ID:        uuid.New(),
		TeacherID: in.TeacherID,
		Name:      in.Name,
		StartTime: in.Start,
		EndTime:   in.End,
		Status:    model.LessonStatusAvailable,
	}, nil
}

func (s *stubLessons) DeleteLesson(context.Context, *model.Principal, uuid.UUID) error {
	return s.err
}

type stubPayments struct {
	PaymentAPI
	err error
}

func (s *stubPayments) CreatePayment(_ context.Context, p *model.Principal, in service.CreatePaymentInput) (*model.TeacherPayment, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &model.TeacherPayment{ID: uuid.New(), LessonID: in.LessonID, PaidBy: p.ID, State: model.PaymentLive{}}, nil
}

func (s *stubPayments) CancelPayment(_ context.Context, p *model.Principal, id uuid.UUID, reason string) (*model.TeacherPayment, error) {
	return &model.TeacherPayment{
		ID:    id,
		State: model.PaymentCanceled{By: p.ID, Reason: reason, At: time.Unix(0, 0).UTC()},
	}, nil
}

type stubAuth struct {
	AuthAPI
}

func (stubAuth) Login(_ context.Context, username, password string) (string, error) {
	if username == "ops" && password == "secret" {
		return "token", nil
	}
	return "", apperror.Unauthenticated()
}

type pinger struct{ err error }

func (p pinger) Ping(context.Context) error { return p.err }

type testServer struct {
	lessons  *stubLessons
	payments *stubPayments
	handler  http.Handler
	admin    *access.TokenIssuer
	teacher  *access.TokenIssuer
}

func newTestServer(db Pinger) *testServer {
	ts := &testServer{
		lessons:  &stubLessons{},
		payments: &stubPayments{},
		admin:    access.NewTokenIssuer("admin-key", access.ScopeAdmin, time.Hour),
		teacher:  access.NewTokenIssuer("teacher-key", access.ScopeTeacher, time.Hour),
	}
	verifier := access.NewCombinedVerifier(
		access.NewJWTVerifier("admin-key", access.ScopeAdmin),
		access.NewJWTVerifier("teacher-key", access.ScopeTeacher),
	)

	h := NewHandler(Services{
		Lessons:  ts.lessons,
		Payments: ts.payments,
		Auth:     stubAuth{},
	}, zap.NewNop())
	ts.handler = NewRouter(h, verifier, db, zap.NewNop())
	return ts
}

func (ts *testServer) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)
	return rec
}

func (ts *testServer) teacherToken(t *testing.T, id uuid.UUID) string {
	t.Helper()
	token, err := ts.teacher.Issue(&model.Principal{ID: id, Role: model.RoleTeacher, IsActive: true})
	require.NoError(t, err)
	return token
}

func errorOf(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body errorBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body.Error
}

func TestStatusOf(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{apperror.Unauthenticated(), http.StatusUnauthorized},
		{apperror.Inactive(), http.StatusUnauthorized},
		{apperror.Forbidden(), http.StatusForbidden},
		{apperror.NotFound("lesson"), http.StatusNotFound},
		{apperror.InvalidInput("bad interval"), http.StatusBadRequest},
		{fmt.Errorf("create: %w", apperror.Conflict("teacher busy")), http.StatusConflict},
		{&payment.MismatchError{Total: 100}, http.StatusUnprocessableEntity},
		{errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, statusOf(tt.err), tt.err.Error())
	}
}

func TestAuthenticator(t *testing.T) {
	ts := newTestServer(pinger{})
	path := "/api/lessons/" + uuid.NewString()

	rec := ts.do(t, http.MethodDelete, path, "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "unauthenticated", errorOf(t, rec))

	rec = ts.do(t, http.MethodDelete, path, "garbage", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	inactive, err := ts.teacher.Issue(&model.Principal{ID: uuid.New(), Role: model.RoleTeacher})
	require.NoError(t, err)
	rec = ts.do(t, http.MethodDelete, path, inactive, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "inactive", errorOf(t, rec))

	rec = ts.do(t, http.MethodDelete, path, ts.teacherToken(t, uuid.New()), nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestCreateLesson(t *testing.T) {
	ts := newTestServer(pinger{})
	teacherID := uuid.New()
	start := time.Date(2026, 3, 3, 10, 0, 0, 0, time.UTC)

	rec := ts.do(t, http.MethodPost, "/api/lessons", ts.teacherToken(t, teacherID), map[string]any{
		"teacher_id": teacherID,
		"name":       "Math",
		"start_time": start,
		"end_time":   start.Add(time.Hour),
		"price":      1500,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var lesson model.Lesson
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &lesson))
	assert.Equal(t, teacherID, lesson.TeacherID)
	assert.Equal(t, "Math", ts.lessons.created.Name)
	assert.EqualValues(t, 1500, ts.lessons.created.Price)
}

func TestCreateLesson_Validation(t *testing.T) {
	ts := newTestServer(pinger{})
	token := ts.teacherToken(t, uuid.New())

	rec := ts.do(t, http.MethodPost, "/api/lessons", token, map[string]any{"name": "Math"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, errorOf(t, rec), "teacher_id is required")

	rec = ts.do(t, http.MethodPost, "/api/lessons", token, map[string]any{"unknown": 1})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, msgBadBody, errorOf(t, rec))
}

func TestCreateLesson_ServiceErrors(t *testing.T) {
	ts := newTestServer(pinger{})
	teacherID := uuid.New()
	token := ts.teacherToken(t, teacherID)
	start := time.Date(2026, 3, 3, 10, 0, 0, 0, time.UTC)
	body := map[string]any{
		"teacher_id": teacherID,
		"name":       "Math",
		"start_time": start,
		"end_time":   start.Add(time.Hour),
	}

	ts.lessons.err = fmt.Errorf("create lesson: %w", apperror.Conflict("teacher busy"))
	rec := ts.do(t, http.MethodPost, "/api/lessons", token, body)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "teacher busy", errorOf(t, rec))

	ts.lessons.err = errors.New("connection refused")
	rec = ts.do(t, http.MethodPost, "/api/lessons", token, body)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, msgInternal, errorOf(t, rec))
}

func TestCreatePayment_MismatchIsHidden(t *testing.T) {
	ts := newTestServer(pinger{})
	token, err := ts.admin.Issue(&model.Principal{ID: uuid.New(), Role: model.RoleAdmin, IsActive: true})
	require.NoError(t, err)

	ts.payments.err = &payment.MismatchError{Total: 10000, Pct: 20, Platform: 1500, Teacher: 8500, ExpectedPlatform: 2000, ExpectedTeacher: 8000}
	rec := ts.do(t, http.MethodPost, "/api/payments", token, map[string]any{
		"lesson_id":           uuid.New(),
		"total_lesson_amount": 10000,
		"platform_amount":     1500,
		"teacher_amount":      8500,
	})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, msgRejected, errorOf(t, rec))
}

func TestCancelPayment_Response(t *testing.T) {
	ts := newTestServer(pinger{})
	adminID := uuid.New()
	token, err := ts.admin.Issue(&model.Principal{ID: adminID, Role: model.RoleAdmin, IsActive: true})
	require.NoError(t, err)

	rec := ts.do(t, http.MethodPost, "/api/payments/"+uuid.NewString()+"/cancel", token, map[string]any{"reason": "refund"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, true, body["is_canceled"])
	assert.Equal(t, "refund", body["canceled_reason"])
	assert.Equal(t, adminID.String(), body["canceled_by"])
}

func TestAdminLogin(t *testing.T) {
	ts := newTestServer(pinger{})

	rec := ts.do(t, http.MethodPost, "/api/auth/admin/login", "", map[string]any{"username": "ops", "password": "secret"})
	require.Equal(t, http.StatusOK, rec.Code)
	var resp tokenResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "token", resp.AccessToken)

	rec = ts.do(t, http.MethodPost, "/api/auth/admin/login", "", map[string]any{"username": "ops", "password": "nope"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestPathIDMustBeUUID(t *testing.T) {
	ts := newTestServer(pinger{})

	rec := ts.do(t, http.MethodDelete, "/api/lessons/42", ts.teacherToken(t, uuid.New()), nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHealthz(t *testing.T) {
	ts := newTestServer(pinger{})
	rec := ts.do(t, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	ts = newTestServer(pinger{err: errors.New("down")})
	rec = ts.do(t, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
