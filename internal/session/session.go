// Package session выпускает и проверяет подписанные токены сессий.
package session

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/mmeshcher/corpdiscounts/internal/model"
)

const issuer = "corpdiscounts"

var (
	// ErrInvalidToken возвращается, если токен повреждён, подписан чужим ключом или истёк.
	ErrInvalidToken = errors.New("invalid session token")
	// ErrRevoked возвращается для токена завершённой сессии.
	ErrRevoked = errors.New("session revoked")
)

// Claims содержит утверждения токена сессии.
type Claims struct {
	Kind      model.AccountKind `json:"kind"`
	Email     string            `json:"email"`
	CompanyID string            `json:"company_id,omitempty"`
	jwt.RegisteredClaims
}

// Principal восстанавливает субъекта из утверждений токена.
func (c *Claims) Principal() (model.Principal, error) {
	id, err := uuid.Parse(c.Subject)
	if err != nil {
		return model.Principal{}, fmt.Errorf("%w: bad subject", ErrInvalidToken)
	}

	p := model.Principal{
		AccountID: id,
		Email:     c.Email,
		Kind:      c.Kind,
	}
	if c.CompanyID != "" {
		companyID, err := uuid.Parse(c.CompanyID)
		if err != nil {
			return model.Principal{}, fmt.Errorf("%w: bad company id", ErrInvalidToken)
		}
		p.CompanyID = &companyID
	}
	return p, nil
}

// Revoker хранит идентификаторы отозванных токенов до истечения их срока действия.
type Revoker interface {
	Revoke(ctx context.Context, tokenID string, until time.Time) error
	Revoked(ctx context.Context, tokenID string) (bool, error)
}

// Manager выпускает, проверяет и отзывает токены сессий.
type Manager struct {
	secret  []byte
	ttl     time.Duration
	revoker Revoker
	now     func() time.Time
}

// NewManager создаёт менеджер сессий. Пустой secret заменяется случайным ключом:
// сессии тогда не переживают перезапуск процесса. revoker может быть nil.
func NewManager(secret string, ttl time.Duration, revoker Revoker) *Manager {
	key := []byte(secret)
	if len(key) == 0 {
		key = make([]byte, 32)
		if _, err := rand.Read(key); err != nil {
			key = []byte(uuid.NewString())
		}
	}

	return &Manager{
		secret:  key,
		ttl:     ttl,
		revoker: revoker,
		now:     time.Now,
	}
}

// Issue выпускает токен для субъекта p и возвращает его вместе с моментом истечения.
func (m *Manager) Issue(p model.Principal) (string, time.Time, error) {
	now := m.now()
	expiresAt := now.Add(m.ttl)

	claims := &Claims{
		Kind:  p.Kind,
		Email: p.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   p.AccountID.String(),
			Issuer:    issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	if p.CompanyID != nil {
		claims.CompanyID = p.CompanyID.String()
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return token, expiresAt, nil
}

// Parse проверяет подпись и срок действия токена, а также то, что сессия не отозвана.
func (m *Manager) Parse(ctx context.Context, token string) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(token, claims,
		func(t *jwt.Token) (any, error) {
			return m.secret, nil
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithTimeFunc(m.now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if claims.ExpiresAt == nil || claims.ID == "" {
		return nil, fmt.Errorf("%w: missing exp or jti", ErrInvalidToken)
	}

	if m.revoker != nil {
		revoked, err := m.revoker.Revoked(ctx, claims.ID)
		if err != nil {
			return nil, fmt.Errorf("check revocation: %w", err)
		}
		if revoked {
			return nil, ErrRevoked
		}
	}

	return claims, nil
}

// Revoke завершает сессию. Без хранилища отзыва токен остаётся действительным до истечения срока.
func (m *Manager) Revoke(ctx context.Context, c *Claims) error {
	if m.revoker == nil || c == nil || c.ExpiresAt == nil {
		return nil
	}
	return m.revoker.Revoke(ctx, c.ID, c.ExpiresAt.Time)
}
