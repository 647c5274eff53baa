package repository

import (
	"context"
	"fmt"
	"iter"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/mmeshcher/corpdiscounts/internal/model"
)

// offerColumns ожидает псевдонимы o (offers) и co (companies).
const offerColumns = `o.id, o.company_id, co.name, o.title, o.description,
	o.discount_kind, o.discount_value::text, o.valid_from, o.valid_until,
	ARRAY(SELECT e.company_id::text FROM offer_eligible_companies e WHERE e.offer_id = o.id ORDER BY e.company_id),
	o.created_at, o.updated_at`

const offerFrom = ` FROM offers o JOIN companies co ON co.id = o.company_id`

// offerScan собирает предложение из строки выборки; dest можно дополнить своими полями.
type offerScan struct {
	offer    model.Offer
	kind     string
	value    string
	eligible []string
}

func (s *offerScan) dest() []any {
	o := &s.offer
	return []any{
		&o.ID, &o.CompanyID, &o.CompanyName, &o.Title, &o.Description,
		&s.kind, &s.value, &o.ValidFrom, &o.ValidUntil,
		&s.eligible,
		&o.CreatedAt, &o.UpdatedAt,
	}
}

func (s *offerScan) build() (*model.Offer, error) {
	o := s.offer
	o.DiscountKind = model.DiscountKind(s.kind)

	value, err := decimal.NewFromString(s.value)
	if err != nil {
		return nil, fmt.Errorf("parse discount value %q: %w", s.value, err)
	}
	o.DiscountValue = value

	o.EligibleCompanyIDs = make([]uuid.UUID, 0, len(s.eligible))
	for _, raw := range s.eligible {
		id, err := uuid.Parse(raw)
		if err != nil {
			return nil, fmt.Errorf("parse eligible company id %q: %w", raw, err)
		}
		o.EligibleCompanyIDs = append(o.EligibleCompanyIDs, id)
	}
	return &o, nil
}

func scanOffer(row pgx.Row) (*model.Offer, error) {
	var s offerScan
	if err := row.Scan(s.dest()...); err != nil {
		return nil, err
	}
	return s.build()
}

type queryRower interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func getOffer(ctx context.Context, q queryRower, id uuid.UUID) (*model.Offer, error) {
	o, err := scanOffer(q.QueryRow(ctx, `SELECT `+offerColumns+offerFrom+` WHERE o.id = $1`, id))
	if err != nil {
		return nil, fmt.Errorf("get offer: %w", notFound(err))
	}
	return o, nil
}

// GetOffer возвращает предложение по идентификатору.
func (r *PostgresRepository) GetOffer(ctx context.Context, id uuid.UUID) (*model.Offer, error) {
	return getOffer(ctx, r.pool, id)
}

func replaceEligibleCompanies(ctx context.Context, tx pgx.Tx, offerID uuid.UUID, companyIDs []uuid.UUID) error {
	if _, err := tx.Exec(ctx, `DELETE FROM offer_eligible_companies WHERE offer_id = $1`, offerID); err != nil {
		return fmt.Errorf("clear eligible companies: %w", err)
	}
	if len(companyIDs) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, companyID := range companyIDs {
		batch.Queue(
			`INSERT INTO offer_eligible_companies (offer_id, company_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`,
			offerID, companyID,
		)
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("insert eligible companies: %w", mapPgError(err))
	}
	return nil
}

// CreateOffer сохраняет новое предложение вместе со списком допущенных компаний.
func (r *PostgresRepository) CreateOffer(ctx context.Context, o *model.Offer) (*model.Offer, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx,
		`INSERT INTO offers (id, company_id, title, description, discount_kind, discount_value, valid_from, valid_until)
		 VALUES ($1, $2, $3, $4, $5, $6::numeric, $7, $8)`,
		o.ID, o.CompanyID, o.Title, o.Description, string(o.DiscountKind), o.DiscountValue.String(),
		o.ValidFrom, o.ValidUntil,
	)
	if err != nil {
		return nil, fmt.Errorf("insert offer: %w", mapPgError(err))
	}

	if err := replaceEligibleCompanies(ctx, tx, o.ID, o.EligibleCompanyIDs); err != nil {
		return nil, err
	}

	created, err := getOffer(ctx, tx, o.ID)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}

	return created, nil
}

// UpdateOffer перезаписывает изменяемые поля предложения и список допущенных компаний.
func (r *PostgresRepository) UpdateOffer(ctx context.Context, o *model.Offer) (*model.Offer, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx,
		`UPDATE offers
		 SET title = $2, description = $3, discount_kind = $4, discount_value = $5::numeric,
		     valid_from = $6, valid_until = $7, updated_at = now()
		 WHERE id = $1`,
		o.ID, o.Title, o.Description, string(o.DiscountKind), o.DiscountValue.String(),
		o.ValidFrom, o.ValidUntil,
	)
	if err != nil {
		return nil, fmt.Errorf("update offer: %w", mapPgError(err))
	}
	if tag.RowsAffected() == 0 {
		return nil, ErrNotFound
	}

	if err := replaceEligibleCompanies(ctx, tx, o.ID, o.EligibleCompanyIDs); err != nil {
		return nil, err
	}

	updated, err := getOffer(ctx, tx, o.ID)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}

	return updated, nil
}

// ListOffers возвращает предложения компании или, если companyID равен nil, все предложения.
func (r *PostgresRepository) ListOffers(ctx context.Context, companyID *uuid.UUID) ([]model.Offer, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+offerColumns+offerFrom+`
		 WHERE $1::uuid IS NULL OR o.company_id = $1
		 ORDER BY o.created_at DESC`,
		companyID,
	)
	if err != nil {
		return nil, fmt.Errorf("select offers: %w", err)
	}
	defer rows.Close()

	var res []model.Offer
	for rows.Next() {
		o, err := scanOffer(rows)
		if err != nil {
			return nil, fmt.Errorf("scan offer: %w", err)
		}
		res = append(res, *o)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return res, nil
}

// AvailableOffers возвращает ленивую последовательность предложений, действующих в момент f.At
// и доступных компании f.ViewerCompanyID. Каждый проход по последовательности выполняет новый запрос.
func (r *PostgresRepository) AvailableOffers(ctx context.Context, f model.OfferFilter) iter.Seq2[model.Offer, error] {
	pattern := "%" + escapeLike(f.Search) + "%"

	return func(yield func(model.Offer, error) bool) {
		rows, err := r.pool.Query(ctx,
			`SELECT `+offerColumns+offerFrom+`
			 WHERE o.valid_from <= $1 AND o.valid_until >= $1
			   AND ($2 = '' OR o.title ILIKE $3 OR o.description ILIKE $3 OR co.name ILIKE $3)
			   AND ($4::uuid IS NULL OR o.company_id = $4)
			   AND (
			       NOT EXISTS (SELECT 1 FROM offer_eligible_companies e WHERE e.offer_id = o.id)
			       OR EXISTS (SELECT 1 FROM offer_eligible_companies e WHERE e.offer_id = o.id AND e.company_id = $5::uuid)
			   )
			 ORDER BY o.created_at DESC`,
			f.At, f.Search, pattern, f.CompanyID, f.ViewerCompanyID,
		)
		if err != nil {
			yield(model.Offer{}, fmt.Errorf("select available offers: %w", err))
			return
		}
		defer rows.Close()

		for rows.Next() {
			o, err := scanOffer(rows)
			if err != nil {
				yield(model.Offer{}, fmt.Errorf("scan offer: %w", err))
				return
			}
			if !yield(*o, nil) {
				return
			}
		}

		if err := rows.Err(); err != nil {
			yield(model.Offer{}, fmt.Errorf("rows error: %w", err))
		}
	}
}
