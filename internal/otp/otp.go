package otp

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"time"

	"github.com/google/uuid"
)

const (
	// SendsPerMinute сколько кодов можно отправить на один адрес за минуту
	SendsPerMinute = 3
	// MaxVerifyAttempts после стольких неверных попыток код сгорает
	MaxVerifyAttempts = 5
)

// Entry выданный код подтверждения
type Entry struct {
	Destination string    `json:"destination"`
	Code        string    `json:"code"`
	TeacherID   uuid.UUID `json:"teacher_id"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// Expired истёк ли код к моменту now
func (e *Entry) Expired(now time.Time) bool {
	return !now.Before(e.ExpiresAt)
}

// Store хранилище кодов по адресу доставки. Get возвращает nil для отсутствующего или истёкшего.
// Put сбрасывает счётчик неверных попыток; RecordFailure возвращает true,
// когда попытки исчерпаны и код уже удалён
type Store interface {
	Put(ctx context.Context, entry Entry) error
	Get(ctx context.Context, destination string) (*Entry, error)
	Delete(ctx context.Context, destination string) error
	Allow(ctx context.Context, destination string) (bool, error)
	RecordFailure(ctx context.Context, destination string) (bool, error)
}

// Generate шестизначный код
func Generate() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1_000_000))
	if err != nil {
		return "", fmt.Errorf("generate otp: %w", err)
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}
