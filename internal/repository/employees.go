package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/mmeshcher/corpdiscounts/internal/model"
)

// CreateEmployee в одной транзакции добавляет учётную запись сотрудника и его профиль.
func (r *PostgresRepository) CreateEmployee(ctx context.Context, e *model.Employee) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx,
		`INSERT INTO accounts (id, email, kind, company_id) VALUES ($1, $2, $3, $4)`,
		e.ID, e.Email, string(model.AccountKindEmployee), e.CompanyID,
	)
	if err != nil {
		return fmt.Errorf("insert employee account: %w", mapPgError(err))
	}

	err = tx.QueryRow(ctx,
		`INSERT INTO employees (id, company_id, full_name, position)
		 VALUES ($1, $2, $3, $4)
		 RETURNING created_at`,
		e.ID, e.CompanyID, e.FullName, e.Position,
	).Scan(&e.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert employee: %w", mapPgError(err))
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}

	return nil
}

// ListEmployees возвращает сотрудников компании или, если companyID равен nil, всех сотрудников.
func (r *PostgresRepository) ListEmployees(ctx context.Context, companyID *uuid.UUID) ([]model.Employee, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT e.id, e.company_id, a.email, e.full_name, e.position, e.created_at
		 FROM employees e
		 JOIN accounts a ON a.id = e.id
		 WHERE $1::uuid IS NULL OR e.company_id = $1
		 ORDER BY e.created_at DESC`,
		companyID,
	)
	if err != nil {
		return nil, fmt.Errorf("select employees: %w", err)
	}
	defer rows.Close()

	var res []model.Employee
	for rows.Next() {
		var e model.Employee
		if err := rows.Scan(&e.ID, &e.CompanyID, &e.Email, &e.FullName, &e.Position, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan employee: %w", err)
		}
		res = append(res, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return res, nil
}
