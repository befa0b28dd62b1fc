package access

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"

	"github.com/Freeeeeet/tutor_backend/internal/apperror"
	"github.com/Freeeeeet/tutor_backend/internal/model"
)

// Scope область секрета, которым подписан токен
type Scope string

const (
	ScopeAdmin   Scope = "admin"
	ScopeTeacher Scope = "teacher"
)

// ErrInvalidToken токен не прошёл проверку в данной области
var ErrInvalidToken = errors.New("invalid token")

// TokenVerifier проверяет токен и возвращает принципала
type TokenVerifier interface {
	Verify(ctx context.Context, token string) (*model.Principal, error)
}

// Claims содержимое access токена
type Claims struct {
	Role     model.Role `json:"role"`
	IsActive bool       `json:"is_active"`
	Scope    Scope      `json:"scope"`
	jwt.RegisteredClaims
}

// admits какие роли может подписывать область
func (s Scope) admits(role model.Role) bool {
	switch s {
	case ScopeAdmin:
		return role.IsAdmin()
	case ScopeTeacher:
		return role == model.RoleTeacher
	default:
		return false
	}
}

// TokenIssuer выпускает токены одной области
type TokenIssuer struct {
	secret []byte
	scope  Scope
	ttl    time.Duration
}

func NewTokenIssuer(secret string, scope Scope, ttl time.Duration) *TokenIssuer {
	return &TokenIssuer{secret: []byte(secret), scope: scope, ttl: ttl}
}

// Issue подписывает токен для принципала
func (i *TokenIssuer) Issue(p *model.Principal) (string, error) {
	if !i.scope.admits(p.Role) {
		return "", fmt.Errorf("scope %s cannot sign role %s", i.scope, p.Role)
	}

	now := time.Now()
	claims := Claims{
		Role:     p.Role,
		IsActive: p.IsActive,
		Scope:    i.scope,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   p.ID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.ttl)),
		},
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return token, nil
}

// JWTVerifier проверяет HS256 токены одной области
type JWTVerifier struct {
	secret []byte
	scope  Scope
}

func NewJWTVerifier(secret string, scope Scope) *JWTVerifier {
	return &JWTVerifier{secret: []byte(secret), scope: scope}
}

// Verify возвращает ErrInvalidToken для любой проблемы с подписью или сроком
func (v *JWTVerifier) Verify(_ context.Context, raw string) (*model.Principal, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return v.secret, nil
	})
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}

	if claims.Scope != v.scope || !v.scope.admits(claims.Role) {
		return nil, ErrInvalidToken
	}

	id, err := uuid.Parse(claims.Subject)
	if err != nil {
		return nil, ErrInvalidToken
	}

	return &model.Principal{ID: id, Role: claims.Role, IsActive: claims.IsActive}, nil
}

// CombinedVerifier принимает токен любой из двух областей
type CombinedVerifier struct {
	admin   TokenVerifier
	teacher TokenVerifier
}

func NewCombinedVerifier(admin, teacher TokenVerifier) *CombinedVerifier {
	return &CombinedVerifier{admin: admin, teacher: teacher}
}

// Verify не сообщает, какая область отвергла токен
func (c *CombinedVerifier) Verify(ctx context.Context, raw string) (*model.Principal, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, apperror.Unauthenticated()
	}

	principal, err := c.admin.Verify(ctx, raw)
	if err != nil {
		principal, err = c.teacher.Verify(ctx, raw)
	}
	if err != nil {
		return nil, apperror.Unauthenticated()
	}

	if !principal.IsActive {
		return nil, apperror.Inactive()
	}
	return principal, nil
}

// BearerToken достаёт токен из заголовка "Bearer <token>"
func BearerToken(header string) (string, bool) {
	scheme, token, found := strings.Cut(header, " ")
	if !found || scheme != "Bearer" || strings.TrimSpace(token) == "" {
		return "", false
	}
	return token, true
}
