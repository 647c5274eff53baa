package service

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/mmeshcher/corpdiscounts/internal/model"
	"github.com/mmeshcher/corpdiscounts/internal/repository"
)

var maxPercent = decimal.NewFromInt(100)

// ListAvailableOffers возвращает ленивую последовательность предложений, доступных сотруднику userID
// в текущий момент. search ищет подстроку в названии, описании и имени компании без учёта регистра;
// companyID ограничивает выборку одной компанией.
func (s *Service) ListAvailableOffers(ctx context.Context, userID uuid.UUID, search string, companyID *uuid.UUID) (iter.Seq2[model.Offer, error], error) {
	account, err := s.account(ctx, userID)
	if err != nil {
		return nil, err
	}

	return s.repo.AvailableOffers(ctx, model.OfferFilter{
		At:              s.now(),
		Search:          strings.TrimSpace(search),
		CompanyID:       companyID,
		ViewerCompanyID: account.CompanyID,
	}), nil
}

func normalizeOfferInput(in model.OfferInput) (model.OfferInput, error) {
	in.Title = strings.TrimSpace(in.Title)
	in.Description = strings.TrimSpace(in.Description)
	if in.Title == "" {
		return in, fmt.Errorf("%w: title is required", ErrInvalidInput)
	}

	in.DiscountValue = in.DiscountValue.Round(2)
	switch in.DiscountKind {
	case model.DiscountKindPercent:
		if !in.DiscountValue.IsPositive() || in.DiscountValue.GreaterThan(maxPercent) {
			return in, fmt.Errorf("%w: percent discount must be in (0, 100]", ErrInvalidInput)
		}
	case model.DiscountKindFixed:
		if !in.DiscountValue.IsPositive() {
			return in, fmt.Errorf("%w: fixed discount must be positive", ErrInvalidInput)
		}
	default:
		return in, fmt.Errorf("%w: unknown discount kind %q", ErrInvalidInput, in.DiscountKind)
	}

	if !in.ValidFrom.Before(in.ValidUntil) {
		return in, fmt.Errorf("%w: valid_from must be before valid_until", ErrInvalidInput)
	}

	seen := make(map[uuid.UUID]struct{}, len(in.EligibleCompanyIDs))
	ids := make([]uuid.UUID, 0, len(in.EligibleCompanyIDs))
	for _, id := range in.EligibleCompanyIDs {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	in.EligibleCompanyIDs = ids

	return in, nil
}

func applyOfferInput(o *model.Offer, in model.OfferInput) {
	o.Title = in.Title
	o.Description = in.Description
	o.DiscountKind = in.DiscountKind
	o.DiscountValue = in.DiscountValue
	o.ValidFrom = in.ValidFrom
	o.ValidUntil = in.ValidUntil
	o.EligibleCompanyIDs = in.EligibleCompanyIDs
}

func offerWriteError(err error) error {
	if errors.Is(err, repository.ErrInvalidReference) {
		return fmt.Errorf("%w: unknown eligible company", ErrInvalidInput)
	}
	return err
}

// CreateOffer публикует новое предложение компании companyID.
func (s *Service) CreateOffer(ctx context.Context, companyID uuid.UUID, in model.OfferInput) (*model.Offer, error) {
	in, err := normalizeOfferInput(in)
	if err != nil {
		return nil, err
	}

	o := &model.Offer{ID: uuid.New(), CompanyID: companyID}
	applyOfferInput(o, in)

	created, err := s.repo.CreateOffer(ctx, o)
	if err != nil {
		return nil, offerWriteError(err)
	}
	return created, nil
}

// UpdateOffer изменяет предложение offerID. Изменять предложение может только компания-владелец.
func (s *Service) UpdateOffer(ctx context.Context, companyID, offerID uuid.UUID, in model.OfferInput) (*model.Offer, error) {
	in, err := normalizeOfferInput(in)
	if err != nil {
		return nil, err
	}

	o, err := s.repo.GetOffer(ctx, offerID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%w: offer %s", ErrNotFound, offerID)
		}
		return nil, err
	}
	if o.CompanyID != companyID {
		return nil, fmt.Errorf("%w: offer belongs to another company", ErrForbidden)
	}

	applyOfferInput(o, in)

	updated, err := s.repo.UpdateOffer(ctx, o)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%w: offer %s", ErrNotFound, offerID)
		}
		return nil, offerWriteError(err)
	}
	return updated, nil
}

// ListCompanyOffers возвращает все предложения компании, включая неактивные.
func (s *Service) ListCompanyOffers(ctx context.Context, companyID uuid.UUID) ([]model.Offer, error) {
	return s.repo.ListOffers(ctx, &companyID)
}

// ListAllOffers возвращает все предложения для администратора.
func (s *Service) ListAllOffers(ctx context.Context) ([]model.Offer, error) {
	return s.repo.ListOffers(ctx, nil)
}
