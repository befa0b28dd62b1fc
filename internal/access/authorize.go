package access

import (
	"github.com/google/uuid"

	"github.com/Freeeeeet/tutor_backend/internal/model"
)

// Resource описание целевого ресурса
type Resource struct {
	OwnerID   uuid.UUID  // естественный владелец, uuid.Nil если нет
	OwnerRole model.Role // уровень владельца
	TeacherID *uuid.UUID // учитель, которому принадлежит урок
}

// authenticated общая проверка перед любой ролью
func authenticated(p *model.Principal) Decision {
	if p == nil || p.ID == uuid.Nil {
		return Deny(ReasonUnauthenticated)
	}
	if !p.IsActive {
		return Deny(ReasonInactive)
	}
	return Allow()
}

// RequireLevel допускает принципала с уровнем роли не ниже min
func RequireLevel(p *model.Principal, min model.Role) Decision {
	if d := authenticated(p); !d.Allowed {
		return d
	}
	if !p.Role.AtLeast(min) {
		return Deny(ReasonForbidden)
	}
	return Allow()
}

// SelfOrSuperior допускает владельца ресурса или того, кто старше его роли
func SelfOrSuperior(p *model.Principal, ownerID uuid.UUID, ownerRole model.Role) Decision {
	if d := authenticated(p); !d.Allowed {
		return d
	}
	if !p.Role.IsKnown() {
		return Deny(ReasonForbidden)
	}
	if p.Role.Outranks(ownerRole) || p.ID == ownerID {
		return Allow()
	}
	return Deny(ReasonForbidden)
}

// Authorize проверяет уровень, затем владение ресурсом
func Authorize(p *model.Principal, res Resource, min model.Role) Decision {
	if d := RequireLevel(p, min); !d.Allowed {
		return d
	}

	if res.OwnerID != uuid.Nil {
		if d := SelfOrSuperior(p, res.OwnerID, res.OwnerRole); !d.Allowed {
			return d
		}
	}

	if res.TeacherID != nil {
		return TeacherOwns(p, *res.TeacherID)
	}

	return Allow()
}

// TeacherOwns админы проходят, учитель только если он владелец
func TeacherOwns(p *model.Principal, teacherID uuid.UUID) Decision {
	if d := authenticated(p); !d.Allowed {
		return d
	}
	if p.Role.IsAdmin() {
		return Allow()
	}
	if p.Role == model.RoleTeacher && p.ID == teacherID {
		return Allow()
	}
	return Deny(ReasonForbidden)
}
