package handler

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/mmeshcher/corpdiscounts/internal/model"
	"github.com/mmeshcher/corpdiscounts/internal/service"
)

type registrationRequest struct {
	Name         string `json:"name" validate:"notblank,max=200"`
	Description  string `json:"description" validate:"max=2000"`
	Industry     string `json:"industry" validate:"max=100"`
	Website      string `json:"website" validate:"omitempty,url,max=300"`
	Phone        string `json:"phone" validate:"max=50"`
	Address      string `json:"address" validate:"max=300"`
	ContactEmail string `json:"contact_email" validate:"required,email"`
	Password     string `json:"password" validate:"required,min=8,maxbytes=72"`
}

// RegisterCompany принимает заявку компании на подключение к платформе.
func (h *Handler) RegisterCompany(w http.ResponseWriter, r *http.Request) {
	var req registrationRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	profile := model.CompanyProfile{
		Name:        req.Name,
		Description: req.Description,
		Industry:    req.Industry,
		Website:     req.Website,
		Phone:       req.Phone,
		Address:     req.Address,
	}

	created, err := h.service.SubmitRegistration(r.Context(), profile, req.ContactEmail, req.Password)
	if err != nil {
		h.writeServiceError(w, r, err, "submit registration error")
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{"request": created})
}

// CompanyProfile возвращает профиль текущей компании.
func (h *Handler) CompanyProfile(w http.ResponseWriter, r *http.Request) {
	companyID, ok := companyPrincipal(w, r)
	if !ok {
		return
	}

	c, err := h.service.GetCompany(r.Context(), companyID)
	if err != nil {
		h.writeServiceError(w, r, err, "get company error")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"company": c})
}

type offerRequest struct {
	Title              string          `json:"title" validate:"notblank,max=200"`
	Description        string          `json:"description" validate:"max=2000"`
	DiscountKind       string          `json:"discount_kind" validate:"required,oneof=PERCENT FIXED"`
	DiscountValue      decimal.Decimal `json:"discount_value"`
	ValidFrom          time.Time       `json:"valid_from" validate:"required"`
	ValidUntil         time.Time       `json:"valid_until" validate:"required,gtfield=ValidFrom"`
	EligibleCompanyIDs []uuid.UUID     `json:"eligible_company_ids" validate:"max=500"`
}

func (req offerRequest) input() model.OfferInput {
	return model.OfferInput{
		Title:              req.Title,
		Description:        req.Description,
		DiscountKind:       model.DiscountKind(req.DiscountKind),
		DiscountValue:      req.DiscountValue,
		ValidFrom:          req.ValidFrom,
		ValidUntil:         req.ValidUntil,
		EligibleCompanyIDs: req.EligibleCompanyIDs,
	}
}

// ListCompanyOffers возвращает предложения текущей компании.
func (h *Handler) ListCompanyOffers(w http.ResponseWriter, r *http.Request) {
	companyID, ok := companyPrincipal(w, r)
	if !ok {
		return
	}

	offers, err := h.service.ListCompanyOffers(r.Context(), companyID)
	if err != nil {
		h.writeServiceError(w, r, err, "list company offers error")
		return
	}
	if offers == nil {
		offers = []model.Offer{}
	}

	writeJSON(w, http.StatusOK, map[string]any{"offers": offers})
}

// CreateOffer публикует предложение текущей компании.
func (h *Handler) CreateOffer(w http.ResponseWriter, r *http.Request) {
	companyID, ok := companyPrincipal(w, r)
	if !ok {
		return
	}

	var req offerRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	o, err := h.service.CreateOffer(r.Context(), companyID, req.input())
	if err != nil {
		h.writeServiceError(w, r, err, "create offer error")
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{"offer": o})
}

// UpdateOffer изменяет предложение текущей компании.
func (h *Handler) UpdateOffer(w http.ResponseWriter, r *http.Request) {
	companyID, ok := companyPrincipal(w, r)
	if !ok {
		return
	}
	offerID, ok := uuidParam(w, r, "offerID")
	if !ok {
		return
	}

	var req offerRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	o, err := h.service.UpdateOffer(r.Context(), companyID, offerID, req.input())
	if err != nil {
		h.writeServiceError(w, r, err, "update offer error")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"offer": o})
}

type employeeRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8,maxbytes=72"`
	FullName string `json:"full_name" validate:"notblank,max=200"`
	Position string `json:"position" validate:"max=200"`
}

// ListEmployees возвращает сотрудников текущей компании.
func (h *Handler) ListEmployees(w http.ResponseWriter, r *http.Request) {
	companyID, ok := companyPrincipal(w, r)
	if !ok {
		return
	}

	employees, err := h.service.ListEmployees(r.Context(), companyID)
	if err != nil {
		h.writeServiceError(w, r, err, "list employees error")
		return
	}
	if employees == nil {
		employees = []model.Employee{}
	}

	writeJSON(w, http.StatusOK, map[string]any{"employees": employees})
}

// CreateEmployee добавляет сотрудника текущей компании.
func (h *Handler) CreateEmployee(w http.ResponseWriter, r *http.Request) {
	companyID, ok := companyPrincipal(w, r)
	if !ok {
		return
	}

	var req employeeRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	e, err := h.service.CreateEmployee(r.Context(), companyID, service.EmployeeInput{
		Email:    req.Email,
		Password: req.Password,
		FullName: req.FullName,
		Position: req.Position,
	})
	if err != nil {
		h.writeServiceError(w, r, err, "create employee error")
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{"employee": e})
}
