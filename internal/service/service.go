// Package service реализует бизнес-логику сервиса корпоративных скидок.
package service

import (
	"context"
	"errors"
	"iter"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mmeshcher/corpdiscounts/internal/identity"
	"github.com/mmeshcher/corpdiscounts/internal/model"
)

// Ошибки бизнес-логики. Обработчики HTTP сопоставляют их с кодами ответа.
var (
	ErrNotFound        = errors.New("not found")
	ErrForbidden       = errors.New("forbidden")
	ErrInvalidState    = errors.New("invalid state")
	ErrExpired         = errors.New("expired")
	ErrConflict        = errors.New("conflict")
	ErrUnauthenticated = errors.New("unauthenticated")
	ErrInvalidInput    = errors.New("invalid input")
)

// Repository описывает контракт доступа к данным, используемый сервисом.
type Repository interface {
	Close() error
	Ping(ctx context.Context) error

	CreateAccount(ctx context.Context, a *model.Account) error
	GetAccount(ctx context.Context, id uuid.UUID) (*model.Account, error)
	AccountEmailTaken(ctx context.Context, email string) (bool, error)

	GetCompany(ctx context.Context, id uuid.UUID) (*model.Company, error)
	CompanyEmailActive(ctx context.Context, email string) (bool, error)
	ListCompanies(ctx context.Context) ([]model.Company, error)

	CreateRegistrationRequest(ctx context.Context, req *model.RegistrationRequest) error
	GetRegistrationRequest(ctx context.Context, id uuid.UUID) (*model.RegistrationRequest, error)
	RegistrationOpen(ctx context.Context, email string) (bool, error)
	ListRegistrationRequests(ctx context.Context, status *model.RegistrationStatus) ([]model.RegistrationRequest, error)
	ApproveRegistration(ctx context.Context, requestID, companyID uuid.UUID) (*model.Company, error)
	RejectRegistration(ctx context.Context, requestID uuid.UUID) (*model.RegistrationRequest, error)

	CreateEmployee(ctx context.Context, e *model.Employee) error
	ListEmployees(ctx context.Context, companyID *uuid.UUID) ([]model.Employee, error)

	GetOffer(ctx context.Context, id uuid.UUID) (*model.Offer, error)
	CreateOffer(ctx context.Context, o *model.Offer) (*model.Offer, error)
	UpdateOffer(ctx context.Context, o *model.Offer) (*model.Offer, error)
	ListOffers(ctx context.Context, companyID *uuid.UUID) ([]model.Offer, error)
	AvailableOffers(ctx context.Context, f model.OfferFilter) iter.Seq2[model.Offer, error]

	CreateCoupon(ctx context.Context, c *model.Coupon) (*model.Coupon, bool, error)
	GetCouponByCode(ctx context.Context, code string) (*model.Coupon, error)
	TransitionCoupon(ctx context.Context, id uuid.UUID, status model.CouponStatus, redeemedAt *time.Time) (*model.Coupon, error)
	ListCoupons(ctx context.Context, userID *uuid.UUID) ([]model.Coupon, error)
	ExpireLapsedCoupons(ctx context.Context, now time.Time) (int64, error)
}

// Service содержит бизнес-логику сервиса корпоративных скидок.
type Service struct {
	repo       Repository
	identities identity.Provider
	logger     *zap.Logger
	now        func() time.Time
}

// NewService создаёт новый сервис с указанным репозиторием и провайдером идентификации.
func NewService(repo Repository, identities identity.Provider, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		repo:       repo,
		identities: identities,
		logger:     logger,
		now:        time.Now,
	}
}

// Close закрывает ресурсы сервиса.
func (s *Service) Close() error {
	if s.repo != nil {
		return s.repo.Close()
	}
	return nil
}

// Ping проверяет доступность хранилища.
func (s *Service) Ping(ctx context.Context) error {
	return s.repo.Ping(ctx)
}
