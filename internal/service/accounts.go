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

// EmployeeInput содержит данные для создания сотрудника.
type EmployeeInput struct {
	Email    string
	Password string
	FullName string
	Position string
}

func (s *Service) account(ctx context.Context, id uuid.UUID) (*model.Account, error) {
	a, err := s.repo.GetAccount(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%w: unknown account", ErrUnauthenticated)
		}
		return nil, err
	}
	return a, nil
}

// SignIn проверяет учётные данные у провайдера идентификации и возвращает субъекта из реестра.
func (s *Service) SignIn(ctx context.Context, email, password string) (model.Principal, error) {
	id, err := s.identities.Authenticate(ctx, validation.NormalizeEmail(email), password)
	if err != nil {
		if errors.Is(err, identity.ErrInvalidCredentials) {
			return model.Principal{}, fmt.Errorf("%w: invalid email or password", ErrUnauthenticated)
		}
		return model.Principal{}, fmt.Errorf("authenticate: %w", err)
	}

	a, err := s.account(ctx, id)
	if err != nil {
		return model.Principal{}, err
	}
	return model.PrincipalFromAccount(a), nil
}

func hashPassword(password string) ([]byte, error) {
	hash, err := identity.HashPassword(password)
	if errors.Is(err, identity.ErrPasswordTooLong) {
		return nil, fmt.Errorf("%w: password must not exceed %d bytes", ErrInvalidInput, identity.MaxPasswordBytes)
	}
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	return hash, nil
}

// EnsureAdmin создаёт учётную запись администратора, если её ещё нет.
func (s *Service) EnsureAdmin(ctx context.Context, email, password string) error {
	email = validation.NormalizeEmail(email)
	if email == "" || password == "" {
		return fmt.Errorf("%w: admin email and password are required", ErrInvalidInput)
	}

	id, err := s.identities.Lookup(ctx, email)
	if errors.Is(err, identity.ErrNotFound) {
		hash, herr := hashPassword(password)
		if herr != nil {
			return herr
		}
		id, err = s.identities.CreateAccount(ctx, identity.NewAccount{
			Email:        email,
			PasswordHash: hash,
			Verified:     true,
			Metadata:     map[string]string{"role": strings.ToLower(string(model.AccountKindAdmin))},
		})
	}
	if err != nil {
		return fmt.Errorf("ensure admin identity: %w", err)
	}

	a, err := s.repo.GetAccount(ctx, id)
	switch {
	case err == nil:
		if a.Kind != model.AccountKindAdmin {
			return fmt.Errorf("%w: %s is registered as %s", ErrConflict, email, a.Kind)
		}
		return nil
	case !errors.Is(err, repository.ErrNotFound):
		return err
	}

	err = s.repo.CreateAccount(ctx, &model.Account{
		ID:    id,
		Email: email,
		Kind:  model.AccountKindAdmin,
	})
	if err != nil {
		return fmt.Errorf("create admin account: %w", err)
	}

	s.logger.Info("admin account created", zap.String("email", email))
	return nil
}

// GetCompany возвращает профиль компании.
func (s *Service) GetCompany(ctx context.Context, companyID uuid.UUID) (*model.Company, error) {
	c, err := s.repo.GetCompany(ctx, companyID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%w: company %s", ErrNotFound, companyID)
		}
		return nil, err
	}
	return c, nil
}

// ListCompanies возвращает все компании для администратора.
func (s *Service) ListCompanies(ctx context.Context) ([]model.Company, error) {
	return s.repo.ListCompanies(ctx)
}

// CreateEmployee создаёт сотрудника компании companyID вместе с его учётной записью.
func (s *Service) CreateEmployee(ctx context.Context, companyID uuid.UUID, in EmployeeInput) (*model.Employee, error) {
	email := validation.NormalizeEmail(in.Email)
	fullName := strings.TrimSpace(in.FullName)
	if email == "" || in.Password == "" || fullName == "" {
		return nil, fmt.Errorf("%w: email, password and full name are required", ErrInvalidInput)
	}

	taken, err := s.repo.AccountEmailTaken(ctx, email)
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, fmt.Errorf("%w: email is already in use", ErrConflict)
	}

	hash, err := hashPassword(in.Password)
	if err != nil {
		return nil, err
	}

	id, err := s.identities.CreateAccount(ctx, identity.NewAccount{
		Email:        email,
		PasswordHash: hash,
		Verified:     true,
		Metadata: map[string]string{
			"full_name": fullName,
			"role":      strings.ToLower(string(model.AccountKindEmployee)),
		},
	})
	if err != nil {
		if errors.Is(err, identity.ErrEmailTaken) {
			return nil, fmt.Errorf("%w: email is already in use", ErrConflict)
		}
		return nil, fmt.Errorf("create identity: %w", err)
	}

	e := &model.Employee{
		ID:        id,
		CompanyID: companyID,
		Email:     email,
		FullName:  fullName,
		Position:  strings.TrimSpace(in.Position),
	}
	if err := s.repo.CreateEmployee(ctx, e); err != nil {
		if errors.Is(err, repository.ErrAlreadyExists) {
			return nil, fmt.Errorf("%w: email is already in use", ErrConflict)
		}
		return nil, err
	}
	return e, nil
}

// ListEmployees возвращает сотрудников компании.
func (s *Service) ListEmployees(ctx context.Context, companyID uuid.UUID) ([]model.Employee, error) {
	return s.repo.ListEmployees(ctx, &companyID)
}

// ListAllEmployees возвращает сотрудников всех компаний для администратора.
func (s *Service) ListAllEmployees(ctx context.Context) ([]model.Employee, error) {
	return s.repo.ListEmployees(ctx, nil)
}
