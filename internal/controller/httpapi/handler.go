package httpapi

import (
	"context"
	"net/http"
	"reflect"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Freeeeeet/tutor_backend/internal/apperror"
	"github.com/Freeeeeet/tutor_backend/internal/model"
	"github.com/Freeeeeet/tutor_backend/internal/service"
)

// Сервисы, которые нужны обработчикам. Реализации в internal/service

type LessonAPI interface {
	CreateLesson(ctx context.Context, p *model.Principal, in service.CreateLessonInput) (*model.Lesson, error)
	GetLesson(ctx context.Context, p *model.Principal, id uuid.UUID) (*model.Lesson, error)
	UpdateLessonTime(ctx context.Context, p *model.Principal, id uuid.UUID, start, end time.Time) (*model.Lesson, error)
	BookStudent(ctx context.Context, p *model.Principal, id, studentID uuid.UUID) (*model.Lesson, error)
	TransitionLesson(ctx context.Context, p *model.Principal, id uuid.UUID, target model.LessonStatus) (*model.Lesson, error)
	DeleteLesson(ctx context.Context, p *model.Principal, id uuid.UUID) error
	ListTeacherLessons(ctx context.Context, p *model.Principal, teacherID uuid.UUID, from, to time.Time) ([]*model.Lesson, error)
}

type PaymentAPI interface {
	CreatePayment(ctx context.Context, p *model.Principal, in service.CreatePaymentInput) (*model.TeacherPayment, error)
	GetPayment(ctx context.Context, p *model.Principal, id uuid.UUID) (*model.TeacherPayment, error)
	UpdatePayment(ctx context.Context, p *model.Principal, id uuid.UUID, in service.UpdatePaymentInput) (*model.TeacherPayment, error)
	CancelPayment(ctx context.Context, p *model.Principal, id uuid.UUID, reason string) (*model.TeacherPayment, error)
	ListTeacherPayments(ctx context.Context, p *model.Principal, teacherID uuid.UUID) (*service.TeacherPayments, error)
}

type HistoryAPI interface {
	CreateHistory(ctx context.Context, p *model.Principal, in service.CreateHistoryInput) (*model.LessonHistory, error)
}

type TeacherAPI interface {
	ArchiveTeacher(ctx context.Context, p *model.Principal, teacherID uuid.UUID, reason string, restoreAt *time.Time) (*model.TeacherDeletion, error)
	RestoreTeacher(ctx context.Context, p *model.Principal, teacherID uuid.UUID) error
	LinkCalendar(ctx context.Context, p *model.Principal, teacherID uuid.UUID, linked bool) error
}

type AdminAPI interface {
	CreateAdmin(ctx context.Context, p *model.Principal, in service.CreateAdminInput) (*model.Admin, error)
	ChangeRole(ctx context.Context, p *model.Principal, adminID uuid.UUID, role model.Role) (*model.Admin, error)
}

type AuthAPI interface {
	Login(ctx context.Context, username, password string) (string, error)
	TeacherLogin(ctx context.Context, phone, password string) (string, error)
	SendOTP(ctx context.Context, p *model.Principal, teacherID uuid.UUID, phone string) error
	VerifyOTP(ctx context.Context, phone, code string) (string, error)
}

// Services набор сервисов для роутера
type Services struct {
	Lessons   LessonAPI
	Payments  PaymentAPI
	Histories HistoryAPI
	Teachers  TeacherAPI
	Admins    AdminAPI
	Auth      AuthAPI
}

type Handler struct {
	svc       Services
	validator *validator.Validate
	logger    *zap.Logger
}

func NewHandler(svc Services, logger *zap.Logger) *Handler {
	v := validator.New(validator.WithRequiredStructEnabled())
	// в сообщениях об ошибках имена полей из json тегов
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" || name == "" {
			return f.Name
		}
		return name
	})

	return &Handler{svc: svc, validator: v, logger: logger}
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	writeError(w, h.logger, r, err)
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := decode(r, h.validator, dst); err != nil {
		h.fail(w, r, err)
		return false
	}
	return true
}

// pathID uuid из сегмента пути
func (h *Handler) pathID(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		h.fail(w, r, apperror.InvalidInput(name+" must be a uuid"))
		return uuid.Nil, false
	}
	return id, true
}

// Auth

func (h *Handler) adminLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !h.decode(w, r, &req) {
		return
	}

	token, err := h.svc.Auth.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tokenResponse{AccessToken: token})
}

func (h *Handler) teacherLogin(w http.ResponseWriter, r *http.Request) {
	var req teacherLoginRequest
	if !h.decode(w, r, &req) {
		return
	}

	token, err := h.svc.Auth.TeacherLogin(r.Context(), req.Phone, req.Password)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tokenResponse{AccessToken: token})
}

func (h *Handler) sendOTP(w http.ResponseWriter, r *http.Request) {
	var req sendOTPRequest
	if !h.decode(w, r, &req) {
		return
	}

	if err := h.svc.Auth.SendOTP(r.Context(), PrincipalFrom(r.Context()), req.TeacherID, req.Phone); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func (h *Handler) verifyOTP(w http.ResponseWriter, r *http.Request) {
	var req verifyOTPRequest
	if !h.decode(w, r, &req) {
		return
	}

	token, err := h.svc.Auth.VerifyOTP(r.Context(), req.Phone, req.Code)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tokenResponse{AccessToken: token})
}

// Lessons

func (h *Handler) createLesson(w http.ResponseWriter, r *http.Request) {
	var req createLessonRequest
	if !h.decode(w, r, &req) {
		return
	}

	lesson, err := h.svc.Lessons.CreateLesson(r.Context(), PrincipalFrom(r.Context()), service.CreateLessonInput{
		TeacherID: req.TeacherID,
		StudentID: req.StudentID,
		Name:      req.Name,
		Start:     req.Start,
		End:       req.End,
		Price:     req.Price,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, lesson)
}

func (h *Handler) getLesson(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}

	lesson, err := h.svc.Lessons.GetLesson(r.Context(), PrincipalFrom(r.Context()), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, lesson)
}

func (h *Handler) updateLessonTime(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}
	var req updateLessonTimeRequest
	if !h.decode(w, r, &req) {
		return
	}

	lesson, err := h.svc.Lessons.UpdateLessonTime(r.Context(), PrincipalFrom(r.Context()), id, req.Start, req.End)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, lesson)
}

func (h *Handler) bookStudent(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}
	var req bookStudentRequest
	if !h.decode(w, r, &req) {
		return
	}

	lesson, err := h.svc.Lessons.BookStudent(r.Context(), PrincipalFrom(r.Context()), id, req.StudentID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, lesson)
}

func (h *Handler) transitionLesson(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}
	var req transitionRequest
	if !h.decode(w, r, &req) {
		return
	}

	lesson, err := h.svc.Lessons.TransitionLesson(r.Context(), PrincipalFrom(r.Context()), id, req.Status)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, lesson)
}

func (h *Handler) deleteLesson(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}

	if err := h.svc.Lessons.DeleteLesson(r.Context(), PrincipalFrom(r.Context()), id); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// listTeacherLessons ?from=&to= в RFC3339
func (h *Handler) listTeacherLessons(w http.ResponseWriter, r *http.Request) {
	teacherID, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}

	from, err := time.Parse(time.RFC3339, r.URL.Query().Get("from"))
	if err != nil {
		h.fail(w, r, apperror.InvalidInput("from must be RFC3339"))
		return
	}
	to, err := time.Parse(time.RFC3339, r.URL.Query().Get("to"))
	if err != nil {
		h.fail(w, r, apperror.InvalidInput("to must be RFC3339"))
		return
	}

	lessons, err := h.svc.Lessons.ListTeacherLessons(r.Context(), PrincipalFrom(r.Context()), teacherID, from, to)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if lessons == nil {
		lessons = []*model.Lesson{}
	}
	writeJSON(w, http.StatusOK, lessons)
}

// Payments

func (h *Handler) createPayment(w http.ResponseWriter, r *http.Request) {
	var req createPaymentRequest
	if !h.decode(w, r, &req) {
		return
	}

	pm, err := h.svc.Payments.CreatePayment(r.Context(), PrincipalFrom(r.Context()), service.CreatePaymentInput{
		LessonID:       req.LessonID,
		TotalAmount:    req.TotalAmount,
		CommissionPct:  req.CommissionPct,
		PlatformAmount: req.PlatformAmount,
		TeacherAmount:  req.TeacherAmount,
		IsCanceled:     req.IsCanceled,
		Notes:          req.Notes,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, newPaymentResponse(pm))
}

func (h *Handler) getPayment(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}

	pm, err := h.svc.Payments.GetPayment(r.Context(), PrincipalFrom(r.Context()), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newPaymentResponse(pm))
}

func (h *Handler) updatePayment(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}
	var req updatePaymentRequest
	if !h.decode(w, r, &req) {
		return
	}

	pm, err := h.svc.Payments.UpdatePayment(r.Context(), PrincipalFrom(r.Context()), id, service.UpdatePaymentInput{
		TotalAmount:    req.TotalAmount,
		CommissionPct:  req.CommissionPct,
		PlatformAmount: req.PlatformAmount,
		TeacherAmount:  req.TeacherAmount,
		Notes:          req.Notes,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newPaymentResponse(pm))
}

func (h *Handler) cancelPayment(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}
	var req cancelPaymentRequest
	if !h.decode(w, r, &req) {
		return
	}

	pm, err := h.svc.Payments.CancelPayment(r.Context(), PrincipalFrom(r.Context()), id, req.Reason)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newPaymentResponse(pm))
}

func (h *Handler) listTeacherPayments(w http.ResponseWriter, r *http.Request) {
	teacherID, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}

	result, err := h.svc.Payments.ListTeacherPayments(r.Context(), PrincipalFrom(r.Context()), teacherID)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	resp := teacherPaymentsResponse{
		Payments:      make([]paymentResponse, 0, len(result.Payments)),
		TotalAmount:   result.TotalAmount,
		PlatformTotal: result.PlatformTotal,
		TeacherTotal:  result.TeacherTotal,
	}
	for _, pm := range result.Payments {
		resp.Payments = append(resp.Payments, newPaymentResponse(pm))
	}
	writeJSON(w, http.StatusOK, resp)
}

// Histories

func (h *Handler) createHistory(w http.ResponseWriter, r *http.Request) {
	var req createHistoryRequest
	if !h.decode(w, r, &req) {
		return
	}

	history, err := h.svc.Histories.CreateHistory(r.Context(), PrincipalFrom(r.Context()), service.CreateHistoryInput{
		LessonID: req.LessonID,
		Star:     req.Star,
		Feedback: req.Feedback,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, history)
}

// Teachers

func (h *Handler) archiveTeacher(w http.ResponseWriter, r *http.Request) {
	teacherID, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}
	var req archiveTeacherRequest
	if !h.decode(w, r, &req) {
		return
	}

	deletion, err := h.svc.Teachers.ArchiveTeacher(r.Context(), PrincipalFrom(r.Context()), teacherID, req.Reason, req.RestoreAt)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, deletion)
}

func (h *Handler) restoreTeacher(w http.ResponseWriter, r *http.Request) {
	teacherID, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}

	if err := h.svc.Teachers.RestoreTeacher(r.Context(), PrincipalFrom(r.Context()), teacherID); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) linkCalendar(w http.ResponseWriter, r *http.Request) {
	teacherID, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}
	var req linkCalendarRequest
	if !h.decode(w, r, &req) {
		return
	}

	if err := h.svc.Teachers.LinkCalendar(r.Context(), PrincipalFrom(r.Context()), teacherID, req.Linked); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Admins

func (h *Handler) createAdmin(w http.ResponseWriter, r *http.Request) {
	var req createAdminRequest
	if !h.decode(w, r, &req) {
		return
	}

	admin, err := h.svc.Admins.CreateAdmin(r.Context(), PrincipalFrom(r.Context()), service.CreateAdminInput{
		Username: req.Username,
		Phone:    req.Phone,
		Password: req.Password,
		Role:     req.Role,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, admin)
}

func (h *Handler) changeRole(w http.ResponseWriter, r *http.Request) {
	adminID, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}
	var req changeRoleRequest
	if !h.decode(w, r, &req) {
		return
	}

	admin, err := h.svc.Admins.ChangeRole(r.Context(), PrincipalFrom(r.Context()), adminID, req.Role)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, admin)
}
