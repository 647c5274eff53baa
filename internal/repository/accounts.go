package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/mmeshcher/corpdiscounts/internal/model"
)

const accountColumns = `id, email, kind, company_id, created_at`

func scanAccount(row pgx.Row) (*model.Account, error) {
	var (
		a    model.Account
		kind string
	)
	if err := row.Scan(&a.ID, &a.Email, &kind, &a.CompanyID, &a.CreatedAt); err != nil {
		return nil, err
	}
	a.Kind = model.AccountKind(kind)
	return &a, nil
}

// CreateAccount добавляет запись в реестр субъектов.
func (r *PostgresRepository) CreateAccount(ctx context.Context, a *model.Account) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO accounts (id, email, kind, company_id) VALUES ($1, $2, $3, $4)`,
		a.ID, a.Email, string(a.Kind), a.CompanyID,
	)
	if err != nil {
		return fmt.Errorf("insert account: %w", mapPgError(err))
	}
	return nil
}

// GetAccount возвращает запись реестра по идентификатору.
func (r *PostgresRepository) GetAccount(ctx context.Context, id uuid.UUID) (*model.Account, error) {
	a, err := scanAccount(r.pool.QueryRow(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE id = $1`, id,
	))
	if err != nil {
		return nil, fmt.Errorf("get account: %w", notFound(err))
	}
	return a, nil
}

// AccountEmailTaken сообщает, занят ли адрес электронной почты какой-либо учётной записью.
func (r *PostgresRepository) AccountEmailTaken(ctx context.Context, email string) (bool, error) {
	var taken bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM accounts WHERE lower(email) = lower($1))`, email,
	).Scan(&taken)
	if err != nil {
		return false, fmt.Errorf("check account email: %w", err)
	}
	return taken, nil
}
