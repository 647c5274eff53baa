package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	custommiddleware "github.com/mmeshcher/corpdiscounts/internal/middleware"
	"github.com/mmeshcher/corpdiscounts/internal/model"
)

// SetupRouter настраивает HTTP-маршруты и middleware сервиса корпоративных скидок.
func (h *Handler) SetupRouter() *chi.Mux {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.Recoverer)
	r.Use(custommiddleware.GzipMiddleware)
	r.Use(custommiddleware.Logger(h.logger))

	r.Get("/healthz", h.Health)

	r.Route("/api", func(r chi.Router) {
		r.Post("/auth/login", h.Login)
		r.Post("/companies/register", h.RegisterCompany)

		r.Group(func(r chi.Router) {
			r.Use(h.authMiddleware.Middleware)

			r.Post("/auth/logout", h.Logout)
			r.Get("/auth/me", h.Me)

			r.Group(func(r chi.Router) {
				r.Use(custommiddleware.RequireKind(model.AccountKindEmployee))

				r.Get("/offers", h.ListOffers)
				r.Post("/offers/{offerID}/claim", h.ClaimOffer)
				r.Get("/coupons", h.ListCoupons)
				r.Post("/coupons/{code}/redeem", h.RedeemCoupon)
			})

			r.Route("/company", func(r chi.Router) {
				r.Use(custommiddleware.RequireKind(model.AccountKindCompany))

				r.Get("/profile", h.CompanyProfile)
				r.Get("/offers", h.ListCompanyOffers)
				r.Post("/offers", h.CreateOffer)
				r.Put("/offers/{offerID}", h.UpdateOffer)
				r.Get("/employees", h.ListEmployees)
				r.Post("/employees", h.CreateEmployee)
			})

			r.Route("/admin", func(r chi.Router) {
				r.Use(custommiddleware.RequireKind(model.AccountKindAdmin))

				r.Get("/registrations", h.ListRegistrations)
				r.Post("/registrations/{requestID}/approve", h.ApproveRegistration)
				r.Post("/registrations/{requestID}/reject", h.RejectRegistration)
				r.Get("/companies", h.AdminCompanies)
				r.Get("/employees", h.AdminEmployees)
				r.Get("/offers", h.AdminOffers)
				r.Get("/coupons", h.AdminCoupons)
			})
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "not found")
	})

	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	})

	return r
}
