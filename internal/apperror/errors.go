package apperror

import (
	"errors"
	"fmt"
)

// Базовые виды ошибок, проверяются через errors.Is
var (
	ErrUnauthenticated    = errors.New("unauthenticated")
	ErrForbidden          = errors.New("forbidden")
	ErrNotFound           = errors.New("not found")
	ErrInvalidInput       = errors.New("invalid input")
	ErrConflict           = errors.New("conflict")
	ErrInvariantViolation = errors.New("invariant violation")
)

// Error ошибка движка с видом и причиной для клиента
type Error struct {
	Kind   error
	Reason string
}

func (e *Error) Error() string {
	if e.Reason == "" {
		return e.Kind.Error()
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Reason)
}

// Is позволяет сравнивать с видом ошибки
func (e *Error) Is(target error) bool {
	return e.Kind == target
}

func (e *Error) Unwrap() error {
	return e.Kind
}

func newError(kind error, reason string) *Error {
	return &Error{Kind: kind, Reason: reason}
}

// Unauthenticated не раскрывает причину
func Unauthenticated() *Error {
	return newError(ErrUnauthenticated, "unauthenticated")
}

// Inactive принципал аутентифицирован, но деактивирован
func Inactive() *Error {
	return newError(ErrUnauthenticated, "inactive")
}

// Forbidden не раскрывает, почему ресурс скрыт
func Forbidden() *Error {
	return newError(ErrForbidden, "forbidden")
}

func NotFound(what string) *Error {
	return newError(ErrNotFound, what+" not found")
}

func InvalidInput(reason string) *Error {
	return newError(ErrInvalidInput, reason)
}

func Conflict(reason string) *Error {
	return newError(ErrConflict, reason)
}

func Invariant(reason string) *Error {
	return newError(ErrInvariantViolation, reason)
}

// Reason возвращает причину для клиента либо пустую строку для чужих ошибок
func Reason(err error) string {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Reason
	}
	return ""
}

// HasReason проверяет вид и точную причину
func HasReason(err error, kind error, reason string) bool {
	return errors.Is(err, kind) && Reason(err) == reason
}
