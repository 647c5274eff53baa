package handler

import (
	"net/http"
	"strings"

	"github.com/mmeshcher/corpdiscounts/internal/model"
)

// ListRegistrations возвращает заявки компаний, при необходимости отфильтрованные по статусу.
func (h *Handler) ListRegistrations(w http.ResponseWriter, r *http.Request) {
	var status *model.RegistrationStatus
	if raw := strings.TrimSpace(r.URL.Query().Get("status")); raw != "" {
		s := model.RegistrationStatus(strings.ToUpper(raw))
		status = &s
	}

	requests, err := h.service.ListRegistrationRequests(r.Context(), status)
	if err != nil {
		h.writeServiceError(w, r, err, "list registration requests error")
		return
	}
	if requests == nil {
		requests = []model.RegistrationRequest{}
	}

	writeJSON(w, http.StatusOK, map[string]any{"requests": requests})
}

// ApproveRegistration одобряет заявку компании.
func (h *Handler) ApproveRegistration(w http.ResponseWriter, r *http.Request) {
	requestID, ok := uuidParam(w, r, "requestID")
	if !ok {
		return
	}

	c, err := h.service.ApproveRegistration(r.Context(), requestID)
	if err != nil {
		h.writeServiceError(w, r, err, "approve registration error")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"company": c})
}

// RejectRegistration отклоняет заявку компании.
func (h *Handler) RejectRegistration(w http.ResponseWriter, r *http.Request) {
	requestID, ok := uuidParam(w, r, "requestID")
	if !ok {
		return
	}

	req, err := h.service.RejectRegistration(r.Context(), requestID)
	if err != nil {
		h.writeServiceError(w, r, err, "reject registration error")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"request": req})
}

// AdminCompanies возвращает все компании.
func (h *Handler) AdminCompanies(w http.ResponseWriter, r *http.Request) {
	companies, err := h.service.ListCompanies(r.Context())
	if err != nil {
		h.writeServiceError(w, r, err, "list companies error")
		return
	}
	if companies == nil {
		companies = []model.Company{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"companies": companies})
}

// AdminEmployees возвращает сотрудников всех компаний.
func (h *Handler) AdminEmployees(w http.ResponseWriter, r *http.Request) {
	employees, err := h.service.ListAllEmployees(r.Context())
	if err != nil {
		h.writeServiceError(w, r, err, "list employees error")
		return
	}
	if employees == nil {
		employees = []model.Employee{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"employees": employees})
}

// AdminOffers возвращает все предложения.
func (h *Handler) AdminOffers(w http.ResponseWriter, r *http.Request) {
	offers, err := h.service.ListAllOffers(r.Context())
	if err != nil {
		h.writeServiceError(w, r, err, "list offers error")
		return
	}
	if offers == nil {
		offers = []model.Offer{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"offers": offers})
}

// AdminCoupons возвращает все купоны.
func (h *Handler) AdminCoupons(w http.ResponseWriter, r *http.Request) {
	coupons, err := h.service.ListAllCoupons(r.Context())
	if err != nil {
		h.writeServiceError(w, r, err, "list coupons error")
		return
	}
	if coupons == nil {
		coupons = []model.Coupon{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"coupons": coupons})
}
