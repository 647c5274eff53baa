package repository

import (
	"context"
	"fmt"

	"github.com/mmeshcher/corpdiscounts/internal/model"
)

// CreateCredential сохраняет учётные данные локального провайдера идентификации.
func (r *PostgresRepository) CreateCredential(ctx context.Context, c *model.Credential) error {
	metadata := c.Metadata
	if metadata == nil {
		metadata = map[string]string{}
	}

	err := r.pool.QueryRow(ctx,
		`INSERT INTO credentials (id, email, password_hash, email_verified, metadata)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING created_at`,
		c.ID, c.Email, c.PasswordHash, c.EmailVerified, metadata,
	).Scan(&c.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert credential: %w", mapPgError(err))
	}
	return nil
}

// GetCredentialByEmail возвращает учётные данные по адресу электронной почты без учёта регистра.
func (r *PostgresRepository) GetCredentialByEmail(ctx context.Context, email string) (*model.Credential, error) {
	var c model.Credential
	err := r.pool.QueryRow(ctx,
		`SELECT id, email, password_hash, email_verified, metadata, created_at
		 FROM credentials
		 WHERE lower(email) = lower($1)`,
		email,
	).Scan(&c.ID, &c.Email, &c.PasswordHash, &c.EmailVerified, &c.Metadata, &c.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("get credential: %w", notFound(err))
	}
	return &c, nil
}
