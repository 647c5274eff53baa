package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/mmeshcher/corpdiscounts/internal/model"
)

const companyColumns = `id, name, description, industry, website, phone, address, email, status, created_at`

func scanCompany(row pgx.Row) (*model.Company, error) {
	var (
		c      model.Company
		status string
	)
	err := row.Scan(
		&c.ID,
		&c.Profile.Name,
		&c.Profile.Description,
		&c.Profile.Industry,
		&c.Profile.Website,
		&c.Profile.Phone,
		&c.Profile.Address,
		&c.Email,
		&status,
		&c.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	c.Status = model.CompanyStatus(status)
	return &c, nil
}

// GetCompany возвращает компанию по идентификатору.
func (r *PostgresRepository) GetCompany(ctx context.Context, id uuid.UUID) (*model.Company, error) {
	c, err := scanCompany(r.pool.QueryRow(ctx,
		`SELECT `+companyColumns+` FROM companies WHERE id = $1`, id,
	))
	if err != nil {
		return nil, fmt.Errorf("get company: %w", notFound(err))
	}
	return c, nil
}

// CompanyEmailActive сообщает, использует ли адрес активная компания.
func (r *PostgresRepository) CompanyEmailActive(ctx context.Context, email string) (bool, error) {
	var active bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM companies WHERE lower(email) = lower($1) AND status = $2)`,
		email, string(model.CompanyStatusActive),
	).Scan(&active)
	if err != nil {
		return false, fmt.Errorf("check company email: %w", err)
	}
	return active, nil
}

// ListCompanies возвращает все компании в порядке регистрации, начиная с новых.
func (r *PostgresRepository) ListCompanies(ctx context.Context) ([]model.Company, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+companyColumns+` FROM companies ORDER BY created_at DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("select companies: %w", err)
	}
	defer rows.Close()

	var res []model.Company
	for rows.Next() {
		c, err := scanCompany(rows)
		if err != nil {
			return nil, fmt.Errorf("scan company: %w", err)
		}
		res = append(res, *c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return res, nil
}
