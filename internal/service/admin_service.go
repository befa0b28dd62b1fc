package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Freeeeeet/tutor_backend/internal/access"
	"github.com/Freeeeeet/tutor_backend/internal/apperror"
	"github.com/Freeeeeet/tutor_backend/internal/model"
	"github.com/Freeeeeet/tutor_backend/internal/repository"
)

const (
	ReasonBadAdminRole       = "role must be admin or superAdmin"
	ReasonLastSuperAdmin     = "cannot downgrade last superAdmin"
	ReasonCredentialsMissing = "username and password are required"
)

type CreateAdminInput struct {
	Username string
	Phone    string
	Password string
	Role     model.Role
}

type AdminService struct {
	admins AdminStore
	hasher *access.PasswordHasher
	logger *zap.Logger
}

func NewAdminService(admins AdminStore, hasher *access.PasswordHasher, logger *zap.Logger) *AdminService {
	return &AdminService{admins: admins, hasher: hasher, logger: logger}
}

// CreateAdmin только superAdmin; второй superAdmin запрещён
func (s *AdminService) CreateAdmin(ctx context.Context, p *model.Principal, in CreateAdminInput) (*model.Admin, error) {
	if d := access.RequireLevel(p, model.RoleSuperAdmin); !d.Allowed {
		return nil, d.Err()
	}
	if !in.Role.IsAdmin() {
		return nil, apperror.InvalidInput(ReasonBadAdminRole)
	}

	username := strings.TrimSpace(in.Username)
	if username == "" || in.Password == "" {
		return nil, apperror.InvalidInput(ReasonCredentialsMissing)
	}

	if in.Role == model.RoleSuperAdmin {
		exists, err := s.admins.SuperAdminExists(ctx)
		if err != nil {
			return nil, fmt.Errorf("check super admin: %w", err)
		}
		if exists {
			return nil, apperror.Conflict(repository.ReasonSuperAdminExists)
		}
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, err
	}

	admin := &model.Admin{
		Username:     username,
		Phone:        in.Phone,
		PasswordHash: hash,
		Role:         in.Role,
	}
	if err := s.admins.Create(ctx, admin); err != nil {
		return nil, err
	}

	s.logger.Info("Admin created",
		zap.String("admin_id", admin.ID.String()),
		zap.String("username", admin.Username),
		zap.String("role", string(admin.Role)))

	return admin, nil
}

// ChangeRole superAdmin всегда ровно один, поэтому его роль не понижается
func (s *AdminService) ChangeRole(ctx context.Context, p *model.Principal, adminID uuid.UUID, role model.Role) (*model.Admin, error) {
	if d := access.RequireLevel(p, model.RoleSuperAdmin); !d.Allowed {
		return nil, d.Err()
	}
	if !role.IsAdmin() {
		return nil, apperror.InvalidInput(ReasonBadAdminRole)
	}

	admin, err := s.admins.GetByID(ctx, adminID)
	if err != nil {
		return nil, fmt.Errorf("get admin: %w", err)
	}
	if admin == nil {
		return nil, apperror.NotFound("admin")
	}
	if admin.Role == role {
		return admin, nil
	}
	if admin.Role == model.RoleSuperAdmin {
		return nil, apperror.Conflict(ReasonLastSuperAdmin)
	}

	if role == model.RoleSuperAdmin {
		exists, err := s.admins.SuperAdminExists(ctx)
		if err != nil {
			return nil, fmt.Errorf("check super admin: %w", err)
		}
		if exists {
			return nil, apperror.Conflict(repository.ReasonSuperAdminExists)
		}
	}

	if err := s.admins.UpdateRole(ctx, adminID, role); err != nil {
		return nil, err
	}

	s.logger.Info("Admin role changed",
		zap.String("admin_id", adminID.String()),
		zap.String("from", string(admin.Role)),
		zap.String("to", string(role)))

	admin.Role = role
	return admin, nil
}
