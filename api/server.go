/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. RequestID:  Unique ID per request for tracing
  2. Logger:     Request logging
  3. Recoverer:  Panic recovery (500 instead of crash)
  4. CORS:       Cross-origin requests for the web client
  5. Auth:       Bearer token on every route except /auth/* and /health
  6. Role:       ADMIN on /admin/* and scenario loading

ROUTE GROUPS:
  /auth/*               Login and registration (public)
  /usuarios/me/*        Current account, profile and password
  /cartoes/*            Own cards
  /compras/*            Own purchases and status changes
  /dashboard            Points summary
  /notificacoes/*       Own notifications
  /relatorios/*         CSV and PDF statements
  /promocoes/*          Program promotions (read-only)
  /scenarios/*          Demo scenarios (load/reset need ADMIN)
  /admin/*              Flags, points programs and crediting runs (ADMIN)

SEE ALSO:
  - handlers.go: Handler implementations
  - auth/middleware.go: Token and role checks
  - cmd/server/main.go: Server startup
*/
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/milhas/loyalty-engine/auth"
	"github.com/milhas/loyalty-engine/loyalty"
)

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler, allowedOrigins []string) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Content-Disposition"},
		AllowCredentials: true,
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	// Public routes
	r.Route("/auth", func(r chi.Router) {
		r.Post("/register", h.Register)
		r.Post("/login", h.Login)
	})

	// Authenticated routes
	r.Group(func(r chi.Router) {
		r.Use(h.Tokens.Middleware)

		r.Route("/usuarios/me", func(r chi.Router) {
			r.Get("/", h.Me)
			r.Put("/", h.UpdateMe)
			r.Put("/senha", h.ChangePassword)
		})

		r.Route("/cartoes", func(r chi.Router) {
			r.Get("/", h.ListCards)
			r.Post("/", h.CreateCard)
			r.Get("/{id}", h.GetCard)
			r.Put("/{id}", h.UpdateCard)
			r.Delete("/{id}", h.DeleteCard)
		})

		r.Route("/compras", func(r chi.Router) {
			r.Get("/", h.ListPurchases)
			r.Post("/", h.CreatePurchase)
			r.Get("/{id}", h.GetPurchase)
			r.Patch("/{id}/status", h.UpdatePurchaseStatus)
		})

		r.Get("/dashboard", h.GetDashboard)

		r.Route("/notificacoes", func(r chi.Router) {
			r.Get("/", h.ListNotifications)
			r.Get("/nao-lidas/count", h.CountUnread)
			r.Patch("/todas-lidas", h.MarkAllNotificationsRead)
			r.Patch("/{id}/lida", h.MarkNotificationRead)
		})

		r.Route("/relatorios/movimentacoes", func(r chi.Router) {
			r.Get("/csv", h.ExportCSV)
			r.Get("/pdf", h.ExportPDF)
		})

		r.Route("/promocoes", func(r chi.Router) {
			r.Get("/", h.ListPromotions)
			r.Get("/ativas", h.ListActivePromotions)
			r.Get("/{id}", h.GetPromotion)
		})

		r.Route("/scenarios", func(r chi.Router) {
			r.Get("/", h.ListScenarios)
			r.Get("/current", h.GetCurrentScenario)
			r.With(auth.RequireRole(loyalty.RoleAdmin)).Post("/load", h.LoadScenario)
			r.With(auth.RequireRole(loyalty.RoleAdmin)).Post("/reset", h.ResetDatabase)
		})

		// Admin routes
		r.Route("/admin", func(r chi.Router) {
			r.Use(auth.RequireRole(loyalty.RoleAdmin))

			r.Route("/bandeiras", func(r chi.Router) {
				r.Get("/", h.ListFlags)
				r.Post("/", h.CreateFlag)
				r.Get("/{id}", h.GetFlag)
				r.Put("/{id}", h.UpdateFlag)
				r.Delete("/{id}", h.DeleteFlag)
			})

			r.Route("/programas", func(r chi.Router) {
				r.Get("/", h.ListPrograms)
				r.Post("/", h.CreateProgram)
				r.Get("/{id}", h.GetProgram)
				r.Put("/{id}", h.UpdateProgram)
				r.Delete("/{id}", h.DeleteProgram)
			})

			r.Get("/creditar", h.GetCreditingStatus)
			r.Post("/creditar", h.CreditNow)
		})
	})

	return r
}
