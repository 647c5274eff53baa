// Package handler содержит HTTP-обработчики API сервиса корпоративных скидок.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"iter"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mmeshcher/corpdiscounts/internal/middleware"
	"github.com/mmeshcher/corpdiscounts/internal/model"
	"github.com/mmeshcher/corpdiscounts/internal/service"
	"github.com/mmeshcher/corpdiscounts/internal/validation"
)

const maxBodyBytes = 1 << 20

// Service определяет контракт бизнес-логики, используемой HTTP-обработчиками.
type Service interface {
	Ping(ctx context.Context) error
	SignIn(ctx context.Context, email, password string) (model.Principal, error)

	SubmitRegistration(ctx context.Context, profile model.CompanyProfile, contactEmail, password string) (*model.RegistrationRequest, error)
	ListRegistrationRequests(ctx context.Context, status *model.RegistrationStatus) ([]model.RegistrationRequest, error)
	ApproveRegistration(ctx context.Context, requestID uuid.UUID) (*model.Company, error)
	RejectRegistration(ctx context.Context, requestID uuid.UUID) (*model.RegistrationRequest, error)

	ListAvailableOffers(ctx context.Context, userID uuid.UUID, search string, companyID *uuid.UUID) (iter.Seq2[model.Offer, error], error)
	ClaimCoupon(ctx context.Context, userID, offerID uuid.UUID) (*model.Coupon, bool, error)
	ListCoupons(ctx context.Context, userID uuid.UUID) ([]model.Coupon, error)
	RedeemCoupon(ctx context.Context, code string, userID uuid.UUID) (*model.Coupon, error)

	GetCompany(ctx context.Context, companyID uuid.UUID) (*model.Company, error)
	ListCompanyOffers(ctx context.Context, companyID uuid.UUID) ([]model.Offer, error)
	CreateOffer(ctx context.Context, companyID uuid.UUID, in model.OfferInput) (*model.Offer, error)
	UpdateOffer(ctx context.Context, companyID, offerID uuid.UUID, in model.OfferInput) (*model.Offer, error)
	ListEmployees(ctx context.Context, companyID uuid.UUID) ([]model.Employee, error)
	CreateEmployee(ctx context.Context, companyID uuid.UUID, in service.EmployeeInput) (*model.Employee, error)

	ListCompanies(ctx context.Context) ([]model.Company, error)
	ListAllEmployees(ctx context.Context) ([]model.Employee, error)
	ListAllOffers(ctx context.Context) ([]model.Offer, error)
	ListAllCoupons(ctx context.Context) ([]model.Coupon, error)
}

// Handler реализует HTTP-обработчики API сервиса корпоративных скидок.
type Handler struct {
	service        Service
	logger         *zap.Logger
	authMiddleware *middleware.AuthMiddleware
}

// NewHandler создаёт новый экземпляр обработчика HTTP-запросов.
func NewHandler(s Service, logger *zap.Logger, auth *middleware.AuthMiddleware) *Handler {
	return &Handler{
		service:        s,
		logger:         logger,
		authMiddleware: auth,
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, service.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrUnauthenticated):
		return http.StatusUnauthorized
	case errors.Is(err, service.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, service.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, service.ErrConflict), errors.Is(err, service.ErrInvalidState):
		return http.StatusConflict
	case errors.Is(err, service.ErrExpired):
		return http.StatusGone
	default:
		return http.StatusInternalServerError
	}
}

// writeServiceError отвечает кодом, соответствующим ошибке бизнес-логики.
// Непредвиденные ошибки журналируются, клиент получает общее сообщение.
func (h *Handler) writeServiceError(w http.ResponseWriter, r *http.Request, err error, msg string) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		h.logger.Error(msg,
			zap.Error(err),
			zap.String("request_id", chimiddleware.GetReqID(r.Context())),
		)
		writeError(w, status, "internal server error")
		return
	}
	writeError(w, status, err.Error())
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	defer r.Body.Close()

	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "malformed JSON body")
		return false
	}
	if err := validation.Struct(dst); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return false
	}
	return true
}

func uuidParam(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid "+name)
		return uuid.Nil, false
	}
	return id, true
}

func principal(w http.ResponseWriter, r *http.Request) (model.Principal, bool) {
	p, ok := middleware.GetPrincipalFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return model.Principal{}, false
	}
	return p, true
}

func companyPrincipal(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	p, ok := principal(w, r)
	if !ok {
		return uuid.Nil, false
	}
	if p.CompanyID == nil {
		writeError(w, http.StatusForbidden, "forbidden")
		return uuid.Nil, false
	}
	return *p.CompanyID, true
}

// Health сообщает о доступности сервиса и БД.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := h.service.Ping(ctx); err != nil {
		h.logger.Warn("health check failed", zap.Error(err))
		writeError(w, http.StatusServiceUnavailable, "database unavailable")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
