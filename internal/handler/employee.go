package handler

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/mmeshcher/corpdiscounts/internal/model"
	"github.com/mmeshcher/corpdiscounts/internal/validation"
)

// ListOffers возвращает предложения, доступные текущему сотруднику.
func (h *Handler) ListOffers(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}

	var companyID *uuid.UUID
	if raw := r.URL.Query().Get("company_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid company_id")
			return
		}
		companyID = &id
	}

	offers, err := h.service.ListAvailableOffers(r.Context(), p.AccountID, r.URL.Query().Get("search"), companyID)
	if err != nil {
		h.writeServiceError(w, r, err, "list offers error")
		return
	}

	resp := make([]model.Offer, 0)
	for o, err := range offers {
		if err != nil {
			h.writeServiceError(w, r, err, "list offers error")
			return
		}
		resp = append(resp, o)
	}

	writeJSON(w, http.StatusOK, map[string]any{"offers": resp})
}

// ClaimOffer выпускает купон на предложение для текущего сотрудника.
func (h *Handler) ClaimOffer(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	offerID, ok := uuidParam(w, r, "offerID")
	if !ok {
		return
	}

	c, claimed, err := h.service.ClaimCoupon(r.Context(), p.AccountID, offerID)
	if err != nil {
		h.writeServiceError(w, r, err, "claim coupon error")
		return
	}

	status := http.StatusCreated
	if claimed {
		status = http.StatusOK
	}
	writeJSON(w, status, map[string]any{"coupon": c})
}

// ListCoupons возвращает купоны текущего сотрудника.
func (h *Handler) ListCoupons(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}

	coupons, err := h.service.ListCoupons(r.Context(), p.AccountID)
	if err != nil {
		h.writeServiceError(w, r, err, "list coupons error")
		return
	}
	if coupons == nil {
		coupons = []model.Coupon{}
	}

	writeJSON(w, http.StatusOK, map[string]any{"coupons": coupons})
}

type redeemParams struct {
	Code string `json:"code" validate:"required,coupon_code"`
}

// RedeemCoupon погашает купон текущего сотрудника.
func (h *Handler) RedeemCoupon(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}

	params := redeemParams{Code: strings.TrimSpace(chi.URLParam(r, "code"))}
	if err := validation.Struct(&params); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	c, err := h.service.RedeemCoupon(r.Context(), params.Code, p.AccountID)
	if err != nil {
		h.writeServiceError(w, r, err, "redeem coupon error")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"coupon": c})
}
