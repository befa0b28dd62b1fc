package model

import "github.com/google/uuid"

// Principal аутентифицированный участник запроса
type Principal struct {
	ID       uuid.UUID `json:"id"`
	Role     Role      `json:"role"`
	IsActive bool      `json:"is_active"`
}

// IsAdmin admin или superAdmin
func (p *Principal) IsAdmin() bool {
	return p != nil && p.Role.IsAdmin()
}
