package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/mmeshcher/corpdiscounts/internal/model"
)

// ErrCouponCodeTaken возвращается, если сгенерированный код купона уже занят.
var ErrCouponCodeTaken = errors.New("coupon code already taken")

const couponColumns = `cp.id, cp.code, cp.user_id, cp.offer_id, cp.status, cp.issued_at, cp.redeemed_at`

// couponWithOfferFrom ожидает, что выборка начинается с couponColumns, за которыми идут offerColumns.
const couponWithOfferFrom = ` FROM coupons cp
	JOIN offers o ON o.id = cp.offer_id
	JOIN companies co ON co.id = o.company_id`

func scanCoupon(row pgx.Row) (*model.Coupon, error) {
	var (
		c      model.Coupon
		status string
	)
	if err := row.Scan(&c.ID, &c.Code, &c.UserID, &c.OfferID, &status, &c.IssuedAt, &c.RedeemedAt); err != nil {
		return nil, err
	}
	c.Status = model.CouponStatus(status)
	return &c, nil
}

func scanCouponWithOffer(row pgx.Row) (*model.Coupon, error) {
	var (
		c      model.Coupon
		status string
		offer  offerScan
	)
	dest := append([]any{&c.ID, &c.Code, &c.UserID, &c.OfferID, &status, &c.IssuedAt, &c.RedeemedAt}, offer.dest()...)
	if err := row.Scan(dest...); err != nil {
		return nil, err
	}
	c.Status = model.CouponStatus(status)

	built, err := offer.build()
	if err != nil {
		return nil, err
	}
	c.Offer = built
	return &c, nil
}

// CreateCoupon выпускает купон. Если у пользователя уже есть купон на это предложение,
// возвращает существующий купон и признак existed = true.
// Возвращает ErrCouponCodeTaken при совпадении кода с кодом другого купона.
func (r *PostgresRepository) CreateCoupon(ctx context.Context, c *model.Coupon) (*model.Coupon, bool, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	created, err := scanCoupon(tx.QueryRow(ctx,
		`INSERT INTO coupons AS cp (id, code, user_id, offer_id, status)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (user_id, offer_id) DO NOTHING
		 RETURNING `+couponColumns,
		c.ID, c.Code, c.UserID, c.OfferID, string(model.CouponStatusActive),
	))
	existed := false
	switch {
	case err == nil:
	case errors.Is(err, pgx.ErrNoRows):
		existed = true
		created, err = scanCoupon(tx.QueryRow(ctx,
			`SELECT `+couponColumns+` FROM coupons cp WHERE cp.user_id = $1 AND cp.offer_id = $2`,
			c.UserID, c.OfferID,
		))
		if err != nil {
			return nil, false, fmt.Errorf("select existing coupon: %w", err)
		}
	case isUniqueViolation(err, "coupons_code_key"):
		return nil, false, ErrCouponCodeTaken
	default:
		return nil, false, fmt.Errorf("insert coupon: %w", mapPgError(err))
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, false, fmt.Errorf("commit tx: %w", err)
	}

	return created, existed, nil
}

// GetCouponByCode возвращает купон вместе с предложением одной выборкой.
func (r *PostgresRepository) GetCouponByCode(ctx context.Context, code string) (*model.Coupon, error) {
	c, err := scanCouponWithOffer(r.pool.QueryRow(ctx,
		`SELECT `+couponColumns+`, `+offerColumns+couponWithOfferFrom+` WHERE cp.code = $1`,
		code,
	))
	if err != nil {
		return nil, fmt.Errorf("get coupon: %w", notFound(err))
	}
	return c, nil
}

// TransitionCoupon переводит купон из ACTIVE в status. Обновление условное: если купон
// уже не в статусе ACTIVE, ничего не меняется и возвращается ErrStatusChanged.
func (r *PostgresRepository) TransitionCoupon(ctx context.Context, id uuid.UUID, status model.CouponStatus, redeemedAt *time.Time) (*model.Coupon, error) {
	c, err := scanCoupon(r.pool.QueryRow(ctx,
		`UPDATE coupons AS cp
		 SET status = $2, redeemed_at = $3
		 WHERE cp.id = $1 AND cp.status = $4
		 RETURNING `+couponColumns,
		id, string(status), redeemedAt, string(model.CouponStatusActive),
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrStatusChanged
		}
		return nil, fmt.Errorf("transition coupon: %w", err)
	}
	return c, nil
}

// ListCoupons возвращает купоны пользователя или, если userID равен nil, все купоны, начиная с новых.
func (r *PostgresRepository) ListCoupons(ctx context.Context, userID *uuid.UUID) ([]model.Coupon, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+couponColumns+`, `+offerColumns+couponWithOfferFrom+`
		 WHERE $1::uuid IS NULL OR cp.user_id = $1
		 ORDER BY cp.issued_at DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("select coupons: %w", err)
	}
	defer rows.Close()

	var res []model.Coupon
	for rows.Next() {
		c, err := scanCouponWithOffer(rows)
		if err != nil {
			return nil, fmt.Errorf("scan coupon: %w", err)
		}
		res = append(res, *c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return res, nil
}

// ExpireLapsedCoupons переводит в EXPIRED все активные купоны, срок предложения которых истёк к моменту now.
func (r *PostgresRepository) ExpireLapsedCoupons(ctx context.Context, now time.Time) (int64, error) {
	var expired int64
	err := r.withRetry(ctx, func() error {
		tag, err := r.pool.Exec(ctx,
			`UPDATE coupons AS cp
			 SET status = $1
			 FROM offers o
			 WHERE o.id = cp.offer_id AND cp.status = $2 AND o.valid_until < $3`,
			string(model.CouponStatusExpired), string(model.CouponStatusActive), now,
		)
		if err != nil {
			return err
		}
		expired = tag.RowsAffected()
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("expire lapsed coupons: %w", err)
	}
	return expired, nil
}
