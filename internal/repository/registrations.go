package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/mmeshcher/corpdiscounts/internal/model"
)

const registrationColumns = `id, name, description, industry, website, phone, address,
	contact_email, password_hash, status, created_at, updated_at, reviewed_at`

func scanRegistration(row pgx.Row) (*model.RegistrationRequest, error) {
	var (
		req    model.RegistrationRequest
		status string
	)
	err := row.Scan(
		&req.ID,
		&req.Profile.Name,
		&req.Profile.Description,
		&req.Profile.Industry,
		&req.Profile.Website,
		&req.Profile.Phone,
		&req.Profile.Address,
		&req.ContactEmail,
		&req.PasswordHash,
		&status,
		&req.CreatedAt,
		&req.UpdatedAt,
		&req.ReviewedAt,
	)
	if err != nil {
		return nil, err
	}
	req.Status = model.RegistrationStatus(status)
	return &req, nil
}

// CreateRegistrationRequest сохраняет новую заявку в статусе PENDING.
// Возвращает ErrAlreadyExists, если для адреса уже есть заявка в статусе PENDING или APPROVED.
func (r *PostgresRepository) CreateRegistrationRequest(ctx context.Context, req *model.RegistrationRequest) error {
	p := req.Profile
	err := r.pool.QueryRow(ctx,
		`INSERT INTO registration_requests
		    (id, name, description, industry, website, phone, address, contact_email, password_hash, status)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		 RETURNING created_at, updated_at`,
		req.ID, p.Name, p.Description, p.Industry, p.Website, p.Phone, p.Address,
		req.ContactEmail, req.PasswordHash, string(model.RegistrationStatusPending),
	).Scan(&req.CreatedAt, &req.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert registration request: %w", mapPgError(err))
	}
	req.Status = model.RegistrationStatusPending
	return nil
}

// GetRegistrationRequest возвращает заявку по идентификатору.
func (r *PostgresRepository) GetRegistrationRequest(ctx context.Context, id uuid.UUID) (*model.RegistrationRequest, error) {
	req, err := scanRegistration(r.pool.QueryRow(ctx,
		`SELECT `+registrationColumns+` FROM registration_requests WHERE id = $1`, id,
	))
	if err != nil {
		return nil, fmt.Errorf("get registration request: %w", notFound(err))
	}
	return req, nil
}

// RegistrationOpen сообщает, есть ли для адреса заявка в статусе PENDING или APPROVED.
func (r *PostgresRepository) RegistrationOpen(ctx context.Context, email string) (bool, error) {
	var open bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS (
		    SELECT 1 FROM registration_requests
		    WHERE lower(contact_email) = lower($1) AND status IN ($2, $3)
		 )`,
		email, string(model.RegistrationStatusPending), string(model.RegistrationStatusApproved),
	).Scan(&open)
	if err != nil {
		return false, fmt.Errorf("check open registration: %w", err)
	}
	return open, nil
}

// ListRegistrationRequests возвращает заявки, при необходимости отфильтрованные по статусу.
func (r *PostgresRepository) ListRegistrationRequests(ctx context.Context, status *model.RegistrationStatus) ([]model.RegistrationRequest, error) {
	var filter *string
	if status != nil {
		s := string(*status)
		filter = &s
	}

	rows, err := r.pool.Query(ctx,
		`SELECT `+registrationColumns+`
		 FROM registration_requests
		 WHERE $1::text IS NULL OR status = $1
		 ORDER BY created_at DESC`,
		filter,
	)
	if err != nil {
		return nil, fmt.Errorf("select registration requests: %w", err)
	}
	defer rows.Close()

	var res []model.RegistrationRequest
	for rows.Next() {
		req, err := scanRegistration(rows)
		if err != nil {
			return nil, fmt.Errorf("scan registration request: %w", err)
		}
		res = append(res, *req)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return res, nil
}

// ApproveRegistration в одной транзакции переводит заявку из PENDING в APPROVED,
// создаёт активную компанию с идентификатором companyID и её учётную запись.
// Возвращает ErrStatusChanged, если заявка уже не в статусе PENDING.
func (r *PostgresRepository) ApproveRegistration(ctx context.Context, requestID, companyID uuid.UUID) (*model.Company, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	req, err := scanRegistration(tx.QueryRow(ctx,
		`UPDATE registration_requests
		 SET status = $2, updated_at = now(), reviewed_at = now()
		 WHERE id = $1 AND status = $3
		 RETURNING `+registrationColumns,
		requestID, string(model.RegistrationStatusApproved), string(model.RegistrationStatusPending),
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrStatusChanged
		}
		return nil, fmt.Errorf("approve registration request: %w", err)
	}

	p := req.Profile
	company, err := scanCompany(tx.QueryRow(ctx,
		`INSERT INTO companies (id, name, description, industry, website, phone, address, email, status)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 RETURNING `+companyColumns,
		companyID, p.Name, p.Description, p.Industry, p.Website, p.Phone, p.Address,
		req.ContactEmail, string(model.CompanyStatusActive),
	))
	if err != nil {
		return nil, fmt.Errorf("insert company: %w", mapPgError(err))
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO accounts (id, email, kind, company_id) VALUES ($1, $2, $3, $1)`,
		companyID, req.ContactEmail, string(model.AccountKindCompany),
	)
	if err != nil {
		return nil, fmt.Errorf("insert company account: %w", mapPgError(err))
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}

	return company, nil
}

// RejectRegistration в одной транзакции удаляет компанию и её учётную запись, созданные
// под контактным адресом заявки (если они есть), и переводит заявку из PENDING в REJECTED.
func (r *PostgresRepository) RejectRegistration(ctx context.Context, requestID uuid.UUID) (*model.RegistrationRequest, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	req, err := scanRegistration(tx.QueryRow(ctx,
		`SELECT `+registrationColumns+` FROM registration_requests WHERE id = $1 FOR UPDATE`,
		requestID,
	))
	if err != nil {
		return nil, fmt.Errorf("lock registration request: %w", notFound(err))
	}
	if req.Status != model.RegistrationStatusPending {
		return nil, ErrStatusChanged
	}

	_, err = tx.Exec(ctx,
		`DELETE FROM accounts WHERE lower(email) = lower($1) AND kind = $2`,
		req.ContactEmail, string(model.AccountKindCompany),
	)
	if err != nil {
		return nil, fmt.Errorf("delete company account: %w", mapPgError(err))
	}

	_, err = tx.Exec(ctx,
		`DELETE FROM companies WHERE lower(email) = lower($1)`,
		req.ContactEmail,
	)
	if err != nil {
		return nil, fmt.Errorf("delete company: %w", mapPgError(err))
	}

	req, err = scanRegistration(tx.QueryRow(ctx,
		`UPDATE registration_requests
		 SET status = $2, updated_at = now(), reviewed_at = now()
		 WHERE id = $1
		 RETURNING `+registrationColumns,
		requestID, string(model.RegistrationStatusRejected),
	))
	if err != nil {
		return nil, fmt.Errorf("reject registration request: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}

	return req, nil
}
