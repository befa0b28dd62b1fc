// Package access решает, может ли принципал выполнить операцию над ресурсом:
// иерархия ролей, предикаты владения и проверка токенов двух областей.
package access

import "github.com/Freeeeeet/tutor_backend/internal/apperror"

const (
	ReasonUnauthenticated = "unauthenticated"
	ReasonInactive        = "inactive"
	ReasonForbidden       = "forbidden"
)

// Decision результат проверки доступа
type Decision struct {
	Allowed bool
	Reason  string
}

func Allow() Decision {
	return Decision{Allowed: true}
}

func Deny(reason string) Decision {
	return Decision{Allowed: false, Reason: reason}
}

// Err переводит отказ в ошибку движка; nil если доступ разрешён
func (d Decision) Err() error {
	if d.Allowed {
		return nil
	}
	switch d.Reason {
	case ReasonUnauthenticated:
		return apperror.Unauthenticated()
	case ReasonInactive:
		return apperror.Inactive()
	default:
		return apperror.Forbidden()
	}
}
