package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Freeeeeet/tutor_backend/internal/apperror"
	"github.com/Freeeeeet/tutor_backend/internal/model"
	"github.com/Freeeeeet/tutor_backend/internal/repository/base"
)

const (
	ReasonSuperAdminExists = "superAdmin already exists"
	ReasonUsernameTaken    = "username already taken"
)

const adminColumns = `id, username, phone, password_hash, role, is_active, is_deleted, created_at`

type AdminRepository struct {
	pool *pgxpool.Pool
}

func NewAdminRepository(pool *pgxpool.Pool) *AdminRepository {
	return &AdminRepository{pool: pool}
}

// Create создаёт админа; второй superAdmin упрётся в частичный уникальный индекс
func (r *AdminRepository) Create(ctx context.Context, a *model.Admin) error {
	query := `
		INSERT INTO admins (username, phone, password_hash, role)
		VALUES ($1, $2, $3, $4)
		RETURNING id, is_active, created_at
	`

	err := r.pool.QueryRow(ctx, query, a.Username, a.Phone, a.PasswordHash, a.Role).
		Scan(&a.ID, &a.IsActive, &a.CreatedAt)
	if err != nil {
		return adminWriteError("create admin", err)
	}
	return nil
}

// GetByID неудалённый админ либо nil
func (r *AdminRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Admin, error) {
	a, err := scanAdmin(r.pool.QueryRow(ctx, `SELECT `+adminColumns+` FROM admins WHERE id = $1 AND NOT is_deleted`, id))
	if err != nil {
		if base.IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get admin by id: %w", err)
	}
	return a, nil
}

// GetByUsername неудалённый админ по логину либо nil
func (r *AdminRepository) GetByUsername(ctx context.Context, username string) (*model.Admin, error) {
	a, err := scanAdmin(r.pool.QueryRow(ctx, `SELECT `+adminColumns+` FROM admins WHERE username = $1 AND NOT is_deleted`, username))
	if err != nil {
		if base.IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get admin by username: %w", err)
	}
	return a, nil
}

// SuperAdminExists есть ли неудалённый superAdmin
func (r *AdminRepository) SuperAdminExists(ctx context.Context) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM admins WHERE role = 'superAdmin' AND NOT is_deleted)`).
		Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check super admin: %w", err)
	}
	return exists, nil
}

// UpdateRole меняет роль админа
func (r *AdminRepository) UpdateRole(ctx context.Context, id uuid.UUID, role model.Role) error {
	tag, err := r.pool.Exec(ctx, `UPDATE admins SET role = $2 WHERE id = $1 AND NOT is_deleted`, id, role)
	if err != nil {
		return adminWriteError("update admin role", err)
	}
	if tag.RowsAffected() == 0 {
		return apperror.NotFound("admin")
	}
	return nil
}

func adminWriteError(op string, err error) error {
	if base.IsUniqueViolation(err) {
		if base.ConstraintName(err) == "admins_single_super_admin" {
			return apperror.Conflict(ReasonSuperAdminExists)
		}
		return apperror.Conflict(ReasonUsernameTaken)
	}
	return fmt.Errorf("%s: %w", op, err)
}

func scanAdmin(row pgx.Row) (*model.Admin, error) {
	var a model.Admin
	err := row.Scan(
		&a.ID,
		&a.Username,
		&a.Phone,
		&a.PasswordHash,
		&a.Role,
		&a.IsActive,
		&a.IsDeleted,
		&a.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &a, nil
}
