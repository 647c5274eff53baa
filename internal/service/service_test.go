package service

import (
	"context"
	"fmt"
	"iter"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/mmeshcher/corpdiscounts/internal/identity"
	"github.com/mmeshcher/corpdiscounts/internal/model"
	"github.com/mmeshcher/corpdiscounts/internal/repository"
)

type stubRepo struct {
	mu sync.Mutex

	accounts         map[uuid.UUID]*model.Account
	createAccountErr error
	emailTaken       bool

	companies     map[uuid.UUID]*model.Company
	companyActive bool

	requests         map[uuid.UUID]*model.RegistrationRequest
	registrationOpen bool
	createRequestErr error
	approveErr       error

	employees         []model.Employee
	createEmployeeErr error

	offers        map[uuid.UUID]*model.Offer
	offerWriteErr error
	lastFilter    model.OfferFilter

	coupons        map[string]*model.Coupon
	codeCollisions int
	beforeCAS      func(c *model.Coupon)

	expired     int64
	expireErr   error
	expireCalls atomic.Int32
}

func newStubRepo() *stubRepo {
	return &stubRepo{
		accounts:  make(map[uuid.UUID]*model.Account),
		companies: make(map[uuid.UUID]*model.Company),
		requests:  make(map[uuid.UUID]*model.RegistrationRequest),
		offers:    make(map[uuid.UUID]*model.Offer),
		coupons:   make(map[string]*model.Coupon),
	}
}

func notFound(what string) error {
	return fmt.Errorf("get %s: %w", what, repository.ErrNotFound)
}

func (s *stubRepo) Close() error { return nil }

func (s *stubRepo) Ping(context.Context) error { return nil }

func (s *stubRepo) CreateAccount(_ context.Context, a *model.Account) error {
	if s.createAccountErr != nil {
		return s.createAccountErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *a
	s.accounts[a.ID] = &cp
	return nil
}

func (s *stubRepo) GetAccount(_ context.Context, id uuid.UUID) (*model.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.accounts[id]
	if !ok {
		return nil, notFound("account")
	}
	cp := *a
	return &cp, nil
}

func (s *stubRepo) AccountEmailTaken(_ context.Context, email string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range s.accounts {
		if strings.EqualFold(a.Email, email) {
			return true, nil
		}
	}
	return s.emailTaken, nil
}

func (s *stubRepo) GetCompany(_ context.Context, id uuid.UUID) (*model.Company, error) {
	c, ok := s.companies[id]
	if !ok {
		return nil, notFound("company")
	}
	return c, nil
}

func (s *stubRepo) CompanyEmailActive(context.Context, string) (bool, error) {
	return s.companyActive, nil
}

func (s *stubRepo) ListCompanies(context.Context) ([]model.Company, error) {
	var res []model.Company
	for _, c := range s.companies {
		res = append(res, *c)
	}
	return res, nil
}

func (s *stubRepo) CreateRegistrationRequest(_ context.Context, req *model.RegistrationRequest) error {
	if s.createRequestErr != nil {
		return s.createRequestErr
	}
	req.Status = model.RegistrationStatusPending
	cp := *req
	s.requests[req.ID] = &cp
	return nil
}

func (s *stubRepo) GetRegistrationRequest(_ context.Context, id uuid.UUID) (*model.RegistrationRequest, error) {
	req, ok := s.requests[id]
	if !ok {
		return nil, notFound("registration request")
	}
	cp := *req
	return &cp, nil
}

func (s *stubRepo) RegistrationOpen(context.Context, string) (bool, error) {
	return s.registrationOpen, nil
}

func (s *stubRepo) ListRegistrationRequests(_ context.Context, status *model.RegistrationStatus) ([]model.RegistrationRequest, error) {
	var res []model.RegistrationRequest
	for _, req := range s.requests {
		if status == nil || req.Status == *status {
			res = append(res, *req)
		}
	}
	return res, nil
}

func (s *stubRepo) ApproveRegistration(_ context.Context, requestID, companyID uuid.UUID) (*model.Company, error) {
	if s.approveErr != nil {
		return nil, s.approveErr
	}
	req, ok := s.requests[requestID]
	if !ok || req.Status != model.RegistrationStatusPending {
		return nil, repository.ErrStatusChanged
	}
	req.Status = model.RegistrationStatusApproved

	c := &model.Company{
		ID:      companyID,
		Profile: req.Profile,
		Email:   req.ContactEmail,
		Status:  model.CompanyStatusActive,
	}
	s.companies[companyID] = c
	s.accounts[companyID] = &model.Account{ID: companyID, Email: req.ContactEmail, Kind: model.AccountKindCompany, CompanyID: &companyID}
	return c, nil
}

func (s *stubRepo) RejectRegistration(_ context.Context, requestID uuid.UUID) (*model.RegistrationRequest, error) {
	req, ok := s.requests[requestID]
	if !ok {
		return nil, notFound("registration request")
	}
	if req.Status != model.RegistrationStatusPending {
		return nil, repository.ErrStatusChanged
	}
	req.Status = model.RegistrationStatusRejected
	cp := *req
	return &cp, nil
}

func (s *stubRepo) CreateEmployee(_ context.Context, e *model.Employee) error {
	if s.createEmployeeErr != nil {
		return s.createEmployeeErr
	}
	companyID := e.CompanyID
	s.accounts[e.ID] = &model.Account{ID: e.ID, Email: e.Email, Kind: model.AccountKindEmployee, CompanyID: &companyID}
	s.employees = append(s.employees, *e)
	return nil
}

func (s *stubRepo) ListEmployees(_ context.Context, companyID *uuid.UUID) ([]model.Employee, error) {
	var res []model.Employee
	for _, e := range s.employees {
		if companyID == nil || e.CompanyID == *companyID {
			res = append(res, e)
		}
	}
	return res, nil
}

func (s *stubRepo) GetOffer(_ context.Context, id uuid.UUID) (*model.Offer, error) {
	o, ok := s.offers[id]
	if !ok {
		return nil, notFound("offer")
	}
	cp := *o
	return &cp, nil
}

func (s *stubRepo) CreateOffer(_ context.Context, o *model.Offer) (*model.Offer, error) {
	if s.offerWriteErr != nil {
		return nil, s.offerWriteErr
	}
	cp := *o
	s.offers[o.ID] = &cp
	return o, nil
}

func (s *stubRepo) UpdateOffer(_ context.Context, o *model.Offer) (*model.Offer, error) {
	if s.offerWriteErr != nil {
		return nil, s.offerWriteErr
	}
	if _, ok := s.offers[o.ID]; !ok {
		return nil, repository.ErrNotFound
	}
	cp := *o
	s.offers[o.ID] = &cp
	return o, nil
}

func (s *stubRepo) ListOffers(_ context.Context, companyID *uuid.UUID) ([]model.Offer, error) {
	var res []model.Offer
	for _, o := range s.offers {
		if companyID == nil || o.CompanyID == *companyID {
			res = append(res, *o)
		}
	}
	return res, nil
}

func (s *stubRepo) AvailableOffers(_ context.Context, f model.OfferFilter) iter.Seq2[model.Offer, error] {
	s.lastFilter = f
	return func(yield func(model.Offer, error) bool) {
		for _, o := range s.offers {
			if !o.ActiveAt(f.At) || !o.EligibleFor(f.ViewerCompanyID) {
				continue
			}
			if !yield(*o, nil) {
				return
			}
		}
	}
}

func (s *stubRepo) CreateCoupon(_ context.Context, c *model.Coupon) (*model.Coupon, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.codeCollisions > 0 {
		s.codeCollisions--
		return nil, false, repository.ErrCouponCodeTaken
	}
	for _, existing := range s.coupons {
		if existing.UserID == c.UserID && existing.OfferID == c.OfferID {
			cp := *existing
			return &cp, true, nil
		}
	}

	created := *c
	created.Status = model.CouponStatusActive
	created.IssuedAt = time.Now()
	s.coupons[c.Code] = &created
	cp := created
	return &cp, false, nil
}

func (s *stubRepo) GetCouponByCode(_ context.Context, code string) (*model.Coupon, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.coupons[code]
	if !ok {
		return nil, notFound("coupon")
	}
	cp := *c
	if o, ok := s.offers[c.OfferID]; ok {
		offer := *o
		cp.Offer = &offer
	}
	return &cp, nil
}

func (s *stubRepo) TransitionCoupon(_ context.Context, id uuid.UUID, status model.CouponStatus, redeemedAt *time.Time) (*model.Coupon, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, c := range s.coupons {
		if c.ID != id {
			continue
		}
		if s.beforeCAS != nil {
			s.beforeCAS(c)
		}
		if c.Status != model.CouponStatusActive {
			return nil, repository.ErrStatusChanged
		}
		c.Status = status
		c.RedeemedAt = redeemedAt
		cp := *c
		return &cp, nil
	}
	return nil, repository.ErrStatusChanged
}

func (s *stubRepo) ListCoupons(_ context.Context, userID *uuid.UUID) ([]model.Coupon, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var res []model.Coupon
	for _, c := range s.coupons {
		if userID == nil || c.UserID == *userID {
			res = append(res, *c)
		}
	}
	return res, nil
}

func (s *stubRepo) ExpireLapsedCoupons(context.Context, time.Time) (int64, error) {
	s.expireCalls.Add(1)
	return s.expired, s.expireErr
}

type stubIdentity struct {
	users     map[string]uuid.UUID
	hashes    map[string][]byte
	created   []identity.NewAccount
	createErr error
}

func newStubIdentity() *stubIdentity {
	return &stubIdentity{
		users:  make(map[string]uuid.UUID),
		hashes: make(map[string][]byte),
	}
}

func (s *stubIdentity) CreateAccount(_ context.Context, acc identity.NewAccount) (uuid.UUID, error) {
	if s.createErr != nil {
		return uuid.Nil, s.createErr
	}
	if _, ok := s.users[acc.Email]; ok {
		return uuid.Nil, identity.ErrEmailTaken
	}
	id := uuid.New()
	s.users[acc.Email] = id
	s.hashes[acc.Email] = acc.PasswordHash
	s.created = append(s.created, acc)
	return id, nil
}

func (s *stubIdentity) Authenticate(_ context.Context, email, password string) (uuid.UUID, error) {
	id, ok := s.users[email]
	if !ok || !identity.CheckPassword(s.hashes[email], password) {
		return uuid.Nil, identity.ErrInvalidCredentials
	}
	return id, nil
}

func (s *stubIdentity) Lookup(_ context.Context, email string) (uuid.UUID, error) {
	id, ok := s.users[email]
	if !ok {
		return uuid.Nil, identity.ErrNotFound
	}
	return id, nil
}

func newTestService(repo *stubRepo, ids *stubIdentity, now time.Time) *Service {
	svc := NewService(repo, ids, nil)
	svc.now = func() time.Time { return now }
	return svc
}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
