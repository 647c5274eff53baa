package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mmeshcher/corpdiscounts/internal/model"
	"github.com/mmeshcher/corpdiscounts/internal/repository"
	"github.com/mmeshcher/corpdiscounts/internal/validation"
)

const maxCodeAttempts = 5

func invalidCouponState(status model.CouponStatus) error {
	switch status {
	case model.CouponStatusUsed:
		return fmt.Errorf("%w: coupon has already been used", ErrInvalidState)
	case model.CouponStatusExpired:
		return fmt.Errorf("%w: coupon has already expired", ErrInvalidState)
	default:
		return fmt.Errorf("%w: coupon is %s", ErrInvalidState, status)
	}
}

// RedeemCoupon погашает купон по коду от имени пользователя userID.
// Купон с истёкшим предложением переводится в EXPIRED, и возвращается ErrExpired.
func (s *Service) RedeemCoupon(ctx context.Context, code string, userID uuid.UUID) (*model.Coupon, error) {
	c, err := s.repo.GetCouponByCode(ctx, code)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%w: coupon %s", ErrNotFound, code)
		}
		return nil, err
	}

	if c.UserID != userID {
		return nil, fmt.Errorf("%w: coupon belongs to another user", ErrForbidden)
	}
	if c.Status.Terminal() {
		return nil, invalidCouponState(c.Status)
	}
	if c.Offer == nil {
		return nil, fmt.Errorf("coupon %s: offer not loaded", code)
	}

	now := s.now()
	if now.After(c.Offer.ValidUntil) {
		if _, err := s.repo.TransitionCoupon(ctx, c.ID, model.CouponStatusExpired, nil); err != nil {
			return nil, s.transitionFailed(ctx, code, err)
		}
		return nil, fmt.Errorf("%w: offer ended at %s", ErrExpired, c.Offer.ValidUntil.Format(time.RFC3339))
	}

	updated, err := s.repo.TransitionCoupon(ctx, c.ID, model.CouponStatusUsed, &now)
	if err != nil {
		return nil, s.transitionFailed(ctx, code, err)
	}
	updated.Offer = c.Offer
	return updated, nil
}

// transitionFailed перечитывает купон, если условное обновление не применилось,
// и возвращает ошибку с фактическим статусом.
func (s *Service) transitionFailed(ctx context.Context, code string, err error) error {
	if !errors.Is(err, repository.ErrStatusChanged) {
		return err
	}

	current, rerr := s.repo.GetCouponByCode(ctx, code)
	if rerr != nil {
		return rerr
	}
	return invalidCouponState(current.Status)
}

// ClaimCoupon выпускает купон на предложение offerID для пользователя userID.
// Повторный вызов возвращает уже выпущенный купон и признак claimed = true.
func (s *Service) ClaimCoupon(ctx context.Context, userID, offerID uuid.UUID) (*model.Coupon, bool, error) {
	account, err := s.account(ctx, userID)
	if err != nil {
		return nil, false, err
	}

	offer, err := s.repo.GetOffer(ctx, offerID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, false, fmt.Errorf("%w: offer %s", ErrNotFound, offerID)
		}
		return nil, false, err
	}

	if now := s.now(); !offer.ActiveAt(now) {
		if now.After(offer.ValidUntil) {
			return nil, false, fmt.Errorf("%w: offer ended at %s", ErrExpired, offer.ValidUntil.Format(time.RFC3339))
		}
		return nil, false, fmt.Errorf("%w: offer starts at %s", ErrInvalidState, offer.ValidFrom.Format(time.RFC3339))
	}
	if !offer.EligibleFor(account.CompanyID) {
		return nil, false, fmt.Errorf("%w: offer is not available to your company", ErrForbidden)
	}

	for range maxCodeAttempts {
		code, err := validation.GenerateCouponCode()
		if err != nil {
			return nil, false, fmt.Errorf("generate coupon code: %w", err)
		}

		c, claimed, err := s.repo.CreateCoupon(ctx, &model.Coupon{
			ID:      uuid.New(),
			Code:    code,
			UserID:  userID,
			OfferID: offerID,
		})
		if errors.Is(err, repository.ErrCouponCodeTaken) {
			continue
		}
		if err != nil {
			return nil, false, err
		}

		c.Offer = offer
		return c, claimed, nil
	}

	return nil, false, fmt.Errorf("generate coupon code: %d collisions in a row", maxCodeAttempts)
}

// ListCoupons возвращает купоны пользователя, начиная с новых.
func (s *Service) ListCoupons(ctx context.Context, userID uuid.UUID) ([]model.Coupon, error) {
	return s.repo.ListCoupons(ctx, &userID)
}

// ListAllCoupons возвращает все купоны для администратора.
func (s *Service) ListAllCoupons(ctx context.Context) ([]model.Coupon, error) {
	return s.repo.ListCoupons(ctx, nil)
}

// RunExpirySweep периодически переводит в EXPIRED активные купоны истёкших предложений.
// Блокирует до отмены ctx; при interval <= 0 сразу возвращает управление.
func (s *Service) RunExpirySweep(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		return nil
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			s.sweepExpired(ctx)
		}
	}
}

func (s *Service) sweepExpired(ctx context.Context) {
	n, err := s.repo.ExpireLapsedCoupons(ctx, s.now())
	if err != nil {
		if ctx.Err() == nil {
			s.logger.Error("expiry sweep failed", zap.Error(err))
		}
		return
	}
	if n > 0 {
		s.logger.Info("expired lapsed coupons", zap.Int64("count", n))
	}
}
