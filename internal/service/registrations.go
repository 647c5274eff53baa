package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mmeshcher/corpdiscounts/internal/identity"
	"github.com/mmeshcher/corpdiscounts/internal/model"
	"github.com/mmeshcher/corpdiscounts/internal/repository"
	"github.com/mmeshcher/corpdiscounts/internal/validation"
)

func trimProfile(p model.CompanyProfile) model.CompanyProfile {
	return model.CompanyProfile{
		Name:        strings.TrimSpace(p.Name),
		Description: strings.TrimSpace(p.Description),
		Industry:    strings.TrimSpace(p.Industry),
		Website:     strings.TrimSpace(p.Website),
		Phone:       strings.TrimSpace(p.Phone),
		Address:     strings.TrimSpace(p.Address),
	}
}

// SubmitRegistration сохраняет заявку компании в статусе PENDING.
// Пароль сохраняется только в виде bcrypt-хеша.
func (s *Service) SubmitRegistration(ctx context.Context, profile model.CompanyProfile, contactEmail, password string) (*model.RegistrationRequest, error) {
	email := validation.NormalizeEmail(contactEmail)
	profile = trimProfile(profile)
	if email == "" || password == "" || profile.Name == "" {
		return nil, fmt.Errorf("%w: name, contact email and password are required", ErrInvalidInput)
	}

	active, err := s.repo.CompanyEmailActive(ctx, email)
	if err != nil {
		return nil, err
	}
	if active {
		return nil, fmt.Errorf("%w: a company with this email is already registered", ErrConflict)
	}

	open, err := s.repo.RegistrationOpen(ctx, email)
	if err != nil {
		return nil, err
	}
	if open {
		return nil, fmt.Errorf("%w: a registration request for this email already exists", ErrConflict)
	}

	taken, err := s.repo.AccountEmailTaken(ctx, email)
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, fmt.Errorf("%w: email is already in use", ErrConflict)
	}

	hash, err := hashPassword(password)
	if err != nil {
		return nil, err
	}

	req := &model.RegistrationRequest{
		ID:           uuid.New(),
		Profile:      profile,
		ContactEmail: email,
		PasswordHash: hash,
	}
	if err := s.repo.CreateRegistrationRequest(ctx, req); err != nil {
		if errors.Is(err, repository.ErrAlreadyExists) {
			return nil, fmt.Errorf("%w: a registration request for this email already exists", ErrConflict)
		}
		return nil, err
	}
	return req, nil
}

// ApproveRegistration одобряет заявку: создаёт учётную запись у провайдера идентификации,
// затем в одной транзакции переводит заявку в APPROVED и создаёт компанию.
// Если учётная запись у провайдера уже создана предыдущей неудачной попыткой, она переиспользуется.
func (s *Service) ApproveRegistration(ctx context.Context, requestID uuid.UUID) (*model.Company, error) {
	req, err := s.repo.GetRegistrationRequest(ctx, requestID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%w: registration request %s", ErrNotFound, requestID)
		}
		return nil, err
	}
	if req.Status != model.RegistrationStatusPending {
		return nil, fmt.Errorf("%w: request is %s", ErrInvalidState, strings.ToLower(string(req.Status)))
	}

	companyID, err := s.provisionIdentity(ctx, identity.NewAccount{
		Email:        req.ContactEmail,
		PasswordHash: req.PasswordHash,
		Verified:     true,
		Metadata: map[string]string{
			"company_name": req.Profile.Name,
			"role":         strings.ToLower(string(model.AccountKindCompany)),
		},
	})
	if err != nil {
		return nil, err
	}

	company, err := s.repo.ApproveRegistration(ctx, req.ID, companyID)
	switch {
	case err == nil:
		return company, nil
	case errors.Is(err, repository.ErrStatusChanged):
		return nil, fmt.Errorf("%w: request is no longer pending", ErrInvalidState)
	case errors.Is(err, repository.ErrAlreadyExists):
		return nil, fmt.Errorf("%w: email is already in use", ErrConflict)
	default:
		return nil, err
	}
}

// provisionIdentity создаёт учётную запись у провайдера. Учётная запись с тем же адресом,
// которой ещё нет в реестре, считается оставшейся от прерванной попытки и переиспользуется.
func (s *Service) provisionIdentity(ctx context.Context, acc identity.NewAccount) (uuid.UUID, error) {
	id, err := s.identities.CreateAccount(ctx, acc)
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, identity.ErrEmailTaken) {
		return uuid.Nil, fmt.Errorf("create identity: %w", err)
	}

	id, err = s.identities.Lookup(ctx, acc.Email)
	if err != nil {
		return uuid.Nil, fmt.Errorf("lookup identity: %w", err)
	}

	_, err = s.repo.GetAccount(ctx, id)
	switch {
	case err == nil:
		return uuid.Nil, fmt.Errorf("%w: email is already in use", ErrConflict)
	case errors.Is(err, repository.ErrNotFound):
		s.logger.Warn("reusing identity left by an interrupted provisioning",
			zap.String("email", acc.Email), zap.Stringer("id", id))
		return id, nil
	default:
		return uuid.Nil, err
	}
}

// RejectRegistration отклоняет заявку в статусе PENDING.
func (s *Service) RejectRegistration(ctx context.Context, requestID uuid.UUID) (*model.RegistrationRequest, error) {
	req, err := s.repo.RejectRegistration(ctx, requestID)
	switch {
	case err == nil:
		return req, nil
	case errors.Is(err, repository.ErrNotFound):
		return nil, fmt.Errorf("%w: registration request %s", ErrNotFound, requestID)
	case errors.Is(err, repository.ErrStatusChanged):
		return nil, fmt.Errorf("%w: request is no longer pending", ErrInvalidState)
	default:
		return nil, err
	}
}

// ListRegistrationRequests возвращает заявки, при необходимости отфильтрованные по статусу.
func (s *Service) ListRegistrationRequests(ctx context.Context, status *model.RegistrationStatus) ([]model.RegistrationRequest, error) {
	if status != nil {
		switch *status {
		case model.RegistrationStatusPending, model.RegistrationStatusApproved, model.RegistrationStatusRejected:
		default:
			return nil, fmt.Errorf("%w: unknown status %q", ErrInvalidInput, *status)
		}
	}
	return s.repo.ListRegistrationRequests(ctx, status)
}
