package identity

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/mmeshcher/corpdiscounts/internal/model"
	"github.com/mmeshcher/corpdiscounts/internal/repository"
)

// CredentialStore описывает хранилище учётных данных локального провайдера.
type CredentialStore interface {
	CreateCredential(ctx context.Context, c *model.Credential) error
	GetCredentialByEmail(ctx context.Context, email string) (*model.Credential, error)
}

// Local реализует провайдера идентификации, хранящего учётные данные в собственной БД сервиса.
type Local struct {
	store CredentialStore
	// dummyHash сравнивается с паролем для неизвестного адреса, чтобы время ответа не выдавало наличие учётной записи.
	dummyHash []byte
}

// NewLocal создаёт локального провайдера поверх store.
func NewLocal(store CredentialStore) *Local {
	dummy, _ := HashPassword(uuid.NewString())
	return &Local{store: store, dummyHash: dummy}
}

// CreateAccount сохраняет учётные данные и возвращает идентификатор новой учётной записи.
func (l *Local) CreateAccount(ctx context.Context, acc NewAccount) (uuid.UUID, error) {
	if len(acc.PasswordHash) == 0 {
		return uuid.Nil, fmt.Errorf("create account: empty password hash")
	}

	c := &model.Credential{
		ID:            uuid.New(),
		Email:         acc.Email,
		PasswordHash:  acc.PasswordHash,
		EmailVerified: acc.Verified,
		Metadata:      acc.Metadata,
	}
	if err := l.store.CreateCredential(ctx, c); err != nil {
		if errors.Is(err, repository.ErrAlreadyExists) {
			return uuid.Nil, ErrEmailTaken
		}
		return uuid.Nil, fmt.Errorf("create account: %w", err)
	}
	return c.ID, nil
}

// Authenticate проверяет пароль и возвращает идентификатор учётной записи.
func (l *Local) Authenticate(ctx context.Context, email, password string) (uuid.UUID, error) {
	c, err := l.store.GetCredentialByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			CheckPassword(l.dummyHash, password)
			return uuid.Nil, ErrInvalidCredentials
		}
		return uuid.Nil, fmt.Errorf("authenticate: %w", err)
	}

	if !CheckPassword(c.PasswordHash, password) {
		return uuid.Nil, ErrInvalidCredentials
	}
	return c.ID, nil
}

// Lookup возвращает идентификатор учётной записи по адресу.
func (l *Local) Lookup(ctx context.Context, email string) (uuid.UUID, error) {
	c, err := l.store.GetCredentialByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return uuid.Nil, ErrNotFound
		}
		return uuid.Nil, fmt.Errorf("lookup: %w", err)
	}
	return c.ID, nil
}
