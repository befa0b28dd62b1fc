package service

import (
	"context"
	"crypto/subtle"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Freeeeeet/tutor_backend/internal/access"
	"github.com/Freeeeeet/tutor_backend/internal/apperror"
	"github.com/Freeeeeet/tutor_backend/internal/model"
	"github.com/Freeeeeet/tutor_backend/internal/notify"
	"github.com/Freeeeeet/tutor_backend/internal/otp"
	"github.com/Freeeeeet/tutor_backend/internal/repository"
)

const (
	ReasonOTPExpired      = "otp expired"
	ReasonOTPMismatch     = "otp mismatch"
	ReasonOTPRateLimited  = "too many otp requests"
	ReasonPhoneRequired   = "phone is required"
	ReasonTeacherArchived = "teacher is archived"
)

type AuthService struct {
	admins        AdminStore
	teachers      TeacherStore
	codes         otp.Store
	notifier      notify.Notifier
	hasher        *access.PasswordHasher
	adminTokens   *access.TokenIssuer
	teacherTokens *access.TokenIssuer
	otpTTL        time.Duration
	logger        *zap.Logger
	now           func() time.Time
}

func NewAuthService(
	admins AdminStore,
	teachers TeacherStore,
	codes otp.Store,
	notifier notify.Notifier,
	hasher *access.PasswordHasher,
	adminTokens *access.TokenIssuer,
	teacherTokens *access.TokenIssuer,
	otpTTL time.Duration,
	logger *zap.Logger,
) *AuthService {
	return &AuthService{
		admins:        admins,
		teachers:      teachers,
		codes:         codes,
		notifier:      notifier,
		hasher:        hasher,
		adminTokens:   adminTokens,
		teacherTokens: teacherTokens,
		otpTTL:        otpTTL,
		logger:        logger,
		now:           time.Now,
	}
}

// Login токен админской области. Не сообщает, что именно не совпало
func (s *AuthService) Login(ctx context.Context, username, password string) (string, error) {
	admin, err := s.admins.GetByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		return "", fmt.Errorf("get admin: %w", err)
	}
	if admin == nil {
		return "", apperror.Unauthenticated()
	}

	if err := s.checkPassword(password, admin.PasswordHash); err != nil {
		return "", err
	}

	principal := admin.Principal()
	if !principal.IsActive {
		return "", apperror.Inactive()
	}

	token, err := s.adminTokens.Issue(principal)
	if err != nil {
		return "", err
	}

	s.logger.Info("Admin logged in", zap.String("admin_id", admin.ID.String()))
	return token, nil
}

// TeacherLogin токен учительской области по телефону и паролю
func (s *AuthService) TeacherLogin(ctx context.Context, phone, password string) (string, error) {
	teacher, err := s.teachers.GetByPhone(ctx, strings.TrimSpace(phone))
	if err != nil {
		return "", fmt.Errorf("get teacher: %w", err)
	}
	if teacher == nil {
		return "", apperror.Unauthenticated()
	}

	if err := s.checkPassword(password, teacher.PasswordHash); err != nil {
		return "", err
	}

	principal := teacher.Principal()
	if !principal.IsActive {
		return "", apperror.Inactive()
	}

	token, err := s.teacherTokens.Issue(principal)
	if err != nil {
		return "", err
	}

	s.logger.Info("Teacher logged in", zap.String("teacher_id", teacher.ID.String()))
	return token, nil
}

// SendOTP выдаёт код для привязки телефона. Доставка не блокирует и не возвращает ошибку
func (s *AuthService) SendOTP(ctx context.Context, p *model.Principal, teacherID uuid.UUID, phone string) error {
	if d := access.SelfOrSuperior(p, teacherID, model.RoleTeacher); !d.Allowed {
		return d.Err()
	}

	phone = strings.TrimSpace(phone)
	if phone == "" {
		return apperror.InvalidInput(ReasonPhoneRequired)
	}

	teacher, err := s.teachers.GetByID(ctx, teacherID)
	if err != nil {
		return fmt.Errorf("get teacher: %w", err)
	}
	if teacher == nil {
		return apperror.NotFound("teacher")
	}
	if teacher.IsDeleted() {
		return apperror.InvalidInput(ReasonTeacherArchived)
	}

	owner, err := s.teachers.GetByPhone(ctx, phone)
	if err != nil {
		return fmt.Errorf("get teacher by phone: %w", err)
	}
	if owner != nil && owner.ID != teacherID {
		return apperror.Conflict(repository.ReasonPhoneInUse)
	}

	allowed, err := s.codes.Allow(ctx, phone)
	if err != nil {
		return fmt.Errorf("otp rate limit: %w", err)
	}
	if !allowed {
		return apperror.InvalidInput(ReasonOTPRateLimited)
	}

	code, err := otp.Generate()
	if err != nil {
		return err
	}

	entry := otp.Entry{
		Destination: phone,
		Code:        code,
		TeacherID:   teacherID,
		ExpiresAt:   s.now().Add(s.otpTTL),
	}
	if err := s.codes.Put(ctx, entry); err != nil {
		return fmt.Errorf("store otp: %w", err)
	}

	destination := phone
	if teacher.TelegramChatID != nil {
		destination = strconv.FormatInt(*teacher.TelegramChatID, 10)
	}
	if !s.notifier.Send(ctx, destination, fmt.Sprintf("Код подтверждения: %s", code)) {
		s.logger.Warn("OTP delivery failed",
			zap.String("teacher_id", teacherID.String()),
			zap.String("phone", phone))
	}

	s.logger.Info("OTP issued",
		zap.String("teacher_id", teacherID.String()),
		zap.Time("expires_at", entry.ExpiresAt))

	return nil
}

// VerifyOTP привязывает телефон к учителю и возвращает токен
func (s *AuthService) VerifyOTP(ctx context.Context, phone, code string) (string, error) {
	phone = strings.TrimSpace(phone)

	entry, err := s.codes.Get(ctx, phone)
	if err != nil {
		return "", fmt.Errorf("get otp: %w", err)
	}
	if entry == nil || entry.Expired(s.now()) {
		return "", apperror.InvalidInput(ReasonOTPExpired)
	}
	if subtle.ConstantTimeCompare([]byte(entry.Code), []byte(strings.TrimSpace(code))) != 1 {
		locked, err := s.codes.RecordFailure(ctx, phone)
		if err != nil {
			return "", fmt.Errorf("record otp failure: %w", err)
		}
		if locked {
			s.logger.Warn("OTP attempts exhausted, code revoked",
				zap.String("teacher_id", entry.TeacherID.String()),
				zap.String("phone", phone))
			return "", apperror.InvalidInput(ReasonOTPRateLimited)
		}
		return "", apperror.InvalidInput(ReasonOTPMismatch)
	}

	if err := s.teachers.SetPhone(ctx, entry.TeacherID, phone); err != nil {
		return "", err
	}
	if err := s.codes.Delete(ctx, phone); err != nil {
		s.logger.Warn("Failed to delete used OTP", zap.String("phone", phone), zap.Error(err))
	}

	teacher, err := s.teachers.GetByID(ctx, entry.TeacherID)
	if err != nil {
		return "", fmt.Errorf("get teacher: %w", err)
	}
	if teacher == nil {
		return "", apperror.NotFound("teacher")
	}

	principal := teacher.Principal()
	if !principal.IsActive {
		return "", apperror.Inactive()
	}

	s.logger.Info("Teacher phone verified", zap.String("teacher_id", teacher.ID.String()))
	return s.teacherTokens.Issue(principal)
}

func (s *AuthService) checkPassword(password, hash string) error {
	if hash == "" || password == "" {
		return apperror.Unauthenticated()
	}
	ok, err := s.hasher.Verify(password, hash)
	if err != nil {
		s.logger.Warn("Stored password hash is unreadable", zap.Error(err))
		return apperror.Unauthenticated()
	}
	if !ok {
		return apperror.Unauthenticated()
	}
	return nil
}
