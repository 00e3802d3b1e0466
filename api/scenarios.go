/*
scenarios.go - Demo scenario loaders for testing and demonstrations

PURPOSE:

	Provides pre-built scenarios that populate the database with realistic
	data for demos. Every purchase goes through the same RegisterPurchase
	path real clients use, so points and due dates are computed, not typed.

AVAILABLE SCENARIOS:

	first-purchase: One user, one card (factor 2.5), one R$ 100,00 purchase
	busy-semester:  Two cards, six months of purchases, mixed statuses
	due-today:      Pending purchases already past their due date, ready
	                for the crediting scheduler

ACCOUNTS (all scenarios):

	admin@milhas.com / senha123  (ADMIN)
	teste@milhas.com / senha123  (USER)

HOW SCENARIOS WORK:
 1. Reset database (clear all data)
 2. Create accounts, flags, programs and promotions
 3. Create cards
 4. Register purchases through the core service
 5. Optionally credit or cancel some of them

USAGE VIA API:

	POST /scenarios/load
	{"scenario_id": "busy-semester"}

NOTE:

	Scenarios reset the database. Only use in development/demo environments.

SEE ALSO:
  - server.go: Scenario routes (ADMIN only for load/reset)
  - cmd/server/main.go: -scenario flag loads one at startup
*/
package api

import (
	"context"
	"fmt"
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/milhas/loyalty-engine/auth"
	"github.com/milhas/loyalty-engine/loyalty"
)

// Demo credentials shared by every scenario.
const (
	DemoAdminEmail = "admin@milhas.com"
	DemoUserEmail  = "teste@milhas.com"
	DemoPassword   = "senha123"
)

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

var scenarios = []ScenarioDTO{
	{
		ID:          "first-purchase",
		Name:        "First Purchase",
		Description: "One Visa card converting 2.5 points per real and a single R$ 100,00 purchase",
		Category:    "basics",
	},
	{
		ID:          "busy-semester",
		Name:        "Busy Semester",
		Description: "Two cards and six months of purchases: credited, pending and cancelled",
		Category:    "dashboard",
	},
	{
		ID:          "due-today",
		Name:        "Due Today",
		Description: "Pending purchases past their credit date, picked up by the crediting scheduler",
		Category:    "crediting",
	},
}

var scenarioLoaders = map[string]func(h *Handler, ctx context.Context) error{
	"first-purchase": (*Handler).loadFirstPurchaseScenario,
	"busy-semester":  (*Handler).loadBusySemesterScenario,
	"due-today":      (*Handler).loadDueTodayScenario,
}

// ListScenarios returns available scenarios.
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, scenarios)
}

// GetCurrentScenario returns the currently loaded scenario, if any.
func (h *Handler) GetCurrentScenario(w http.ResponseWriter, r *http.Request) {
	current := h.CurrentScenario()
	if current == "" {
		writeJSON(w, http.StatusOK, nil)
		return
	}

	for _, s := range scenarios {
		if s.ID == current {
			writeJSON(w, http.StatusOK, s)
			return
		}
	}
	writeJSON(w, http.StatusOK, ScenarioDTO{ID: current, Name: current})
}

// LoadScenario resets the database and loads a predefined scenario.
// POST /scenarios/load
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	var req LoadScenarioRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if _, ok := scenarioLoaders[req.ScenarioID]; !ok {
		writeError(w, http.StatusBadRequest, "Unknown scenario", nil)
		return
	}

	if err := h.Seed(r.Context(), req.ScenarioID); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load scenario", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "loaded", "scenario": req.ScenarioID})
}

// ResetDatabase clears every table.
// POST /scenarios/reset
func (h *Handler) ResetDatabase(w http.ResponseWriter, r *http.Request) {
	if err := h.Store.Reset(r.Context()); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to reset database", err)
		return
	}
	h.setCurrentScenario("")
	h.Log.Warn("database reset")
	writeJSON(w, http.StatusOK, map[string]string{"status": "reset"})
}

// Seed resets the database and loads the scenario with the given id.
func (h *Handler) Seed(ctx context.Context, id string) error {
	load, ok := scenarioLoaders[id]
	if !ok {
		return fmt.Errorf("unknown scenario %q", id)
	}

	if err := h.Store.Reset(ctx); err != nil {
		return fmt.Errorf("failed to reset database: %w", err)
	}
	h.setCurrentScenario("")

	if err := load(h, ctx); err != nil {
		return fmt.Errorf("scenario %s: %w", id, err)
	}

	h.setCurrentScenario(id)
	h.Log.Info("scenario loaded", "scenario", id)
	return nil
}

// CurrentScenario returns the id of the last loaded scenario.
func (h *Handler) CurrentScenario() string {
	h.scenarioMu.Lock()
	defer h.scenarioMu.Unlock()
	return h.currentScenario
}

func (h *Handler) setCurrentScenario(id string) {
	h.scenarioMu.Lock()
	defer h.scenarioMu.Unlock()
	h.currentScenario = id
}

// =============================================================================
// SCENARIO LOADERS
// =============================================================================

type demoCatalog struct {
	user   loyalty.User
	visa   loyalty.Flag
	master loyalty.Flag
	livelo loyalty.Program
	smiles loyalty.Program
}

// seedCatalog creates the demo accounts, flags and programs.
func (h *Handler) seedCatalog(ctx context.Context) (demoCatalog, error) {
	hash, err := auth.HashPassword(DemoPassword)
	if err != nil {
		return demoCatalog{}, err
	}

	var c demoCatalog
	if _, err := h.Store.CreateUser(ctx, loyalty.User{
		Name: "Administrador", Email: DemoAdminEmail, PasswordHash: hash, Role: loyalty.RoleAdmin,
	}); err != nil {
		return c, err
	}
	if c.user, err = h.Store.CreateUser(ctx, loyalty.User{
		Name: "Usuario Teste", Email: DemoUserEmail, PasswordHash: hash, Role: loyalty.RoleUser,
	}); err != nil {
		return c, err
	}

	if c.visa, err = h.Store.SaveFlag(ctx, loyalty.Flag{Name: "Visa", Active: true}); err != nil {
		return c, err
	}
	if c.master, err = h.Store.SaveFlag(ctx, loyalty.Flag{Name: "Mastercard", Active: true}); err != nil {
		return c, err
	}
	if c.livelo, err = h.Store.SaveProgram(ctx, loyalty.Program{
		Name: "Livelo", Description: "Programa de pontos multiparceiro",
		DefaultFactor: decimal.RequireFromString("1.0"), Active: true,
	}); err != nil {
		return c, err
	}
	if c.smiles, err = h.Store.SaveProgram(ctx, loyalty.Program{
		Name: "Smiles", Description: "Programa de milhas aereas",
		DefaultFactor: decimal.RequireFromString("2.0"), Active: true,
	}); err != nil {
		return c, err
	}
	return c, h.seedPromotions(ctx, c)
}

// seedPromotions adds one running, one finished and one upcoming promotion.
func (h *Handler) seedPromotions(ctx context.Context, c demoCatalog) error {
	today := h.today()
	promos := []loyalty.Promotion{
		{
			Title: "Livelo em dobro", Description: "Pontos em dobro nas compras com cartoes Livelo",
			ProgramID: c.livelo.ID, BonusFactor: decimal.RequireFromString("2.0"),
			StartDate: today.AddDays(-5), EndDate: today.AddDays(25), Active: true,
		},
		{
			Title: "Smiles de verao", Description: "30% a mais de milhas",
			ProgramID: c.smiles.ID, BonusFactor: decimal.RequireFromString("1.3"),
			StartDate: today.AddDays(-60), EndDate: today.AddDays(-30), Active: true,
		},
		{
			Title: "Semana Smiles", Description: "Bonus de 50% na semana do cliente",
			ProgramID: c.smiles.ID, BonusFactor: decimal.RequireFromString("1.5"),
			StartDate: today.AddDays(10), EndDate: today.AddDays(17), Active: true,
		},
	}
	for _, p := range promos {
		if _, err := h.Store.SavePromotion(ctx, p); err != nil {
			return err
		}
	}
	return nil
}

type demoPurchase struct {
	description string
	amount      string
	daysAgo     int
	card        loyalty.CardID
	status      loyalty.PurchaseStatus
}

// registerAll registers each purchase through the core service, then moves
// it to its target status.
func (h *Handler) registerAll(ctx context.Context, email string, purchases []demoPurchase) error {
	today := h.today()
	for _, dp := range purchases {
		resp, err := h.Purchases.RegisterPurchase(ctx, loyalty.PurchaseRequest{
			Description:  dp.description,
			Amount:       decimal.RequireFromString(dp.amount),
			PurchaseDate: today.AddDays(-dp.daysAgo),
			CardID:       dp.card,
		}, email)
		if err != nil {
			return err
		}
		if dp.status != "" && dp.status != loyalty.StatusPending {
			if _, err := loyalty.Transition(ctx, h.Store, 0, resp.ID, dp.status); err != nil {
				return err
			}
		}
	}
	return nil
}

func (h *Handler) loadFirstPurchaseScenario(ctx context.Context) error {
	c, err := h.seedCatalog(ctx)
	if err != nil {
		return err
	}

	card, err := h.Store.CreateCard(ctx, loyalty.Card{
		Name: "Visa Infinite", LastDigits: "1234", ConversionFactor: decimal.RequireFromString("2.5"),
		OwnerID: c.user.ID, FlagID: c.visa.ID, ProgramID: c.livelo.ID, Active: true,
	})
	if err != nil {
		return err
	}

	return h.registerAll(ctx, DemoUserEmail, []demoPurchase{
		{description: "Primeira compra", amount: "100.00", card: card.ID},
	})
}

func (h *Handler) loadBusySemesterScenario(ctx context.Context) error {
	c, err := h.seedCatalog(ctx)
	if err != nil {
		return err
	}

	visa, err := h.Store.CreateCard(ctx, loyalty.Card{
		Name: "Visa Infinite", LastDigits: "1234", ConversionFactor: decimal.RequireFromString("2.5"),
		OwnerID: c.user.ID, FlagID: c.visa.ID, ProgramID: c.livelo.ID, Active: true,
	})
	if err != nil {
		return err
	}
	black, err := h.Store.CreateCard(ctx, loyalty.Card{
		Name: "Mastercard Black", LastDigits: "9876", ConversionFactor: decimal.RequireFromString("3.2"),
		OwnerID: c.user.ID, FlagID: c.master.ID, ProgramID: c.smiles.ID, Active: true,
	})
	if err != nil {
		return err
	}

	return h.registerAll(ctx, DemoUserEmail, []demoPurchase{
		{"Passagem aerea", "2350.00", 160, black.ID, loyalty.StatusCredited},
		{"Supermercado", "612.47", 140, visa.ID, loyalty.StatusCredited},
		{"Farmacia", "89.90", 120, visa.ID, loyalty.StatusCancelled},
		{"Restaurante", "245.30", 95, black.ID, loyalty.StatusCredited},
		{"Eletronicos", "3199.99", 70, visa.ID, loyalty.StatusCredited},
		{"Hotel", "1280.00", 40, black.ID, loyalty.StatusCredited},
		{"Combustivel", "310.15", 20, visa.ID, loyalty.StatusPending},
		{"Livraria", "154.70", 8, black.ID, loyalty.StatusPending},
		{"Academia", "129.90", 2, visa.ID, loyalty.StatusPending},
	})
}

func (h *Handler) loadDueTodayScenario(ctx context.Context) error {
	c, err := h.seedCatalog(ctx)
	if err != nil {
		return err
	}

	card, err := h.Store.CreateCard(ctx, loyalty.Card{
		Name: "Visa Platinum", LastDigits: "4321", ConversionFactor: decimal.RequireFromString("1.75"),
		OwnerID: c.user.ID, FlagID: c.visa.ID, ProgramID: c.livelo.ID, Active: true,
	})
	if err != nil {
		return err
	}

	overdue := loyalty.CreditTermDays
	return h.registerAll(ctx, DemoUserEmail, []demoPurchase{
		{description: "Vence hoje", amount: "400.00", daysAgo: overdue, card: card.ID},
		{description: "Venceu ontem", amount: "99.99", daysAgo: overdue + 1, card: card.ID},
		{description: "Ainda no prazo", amount: "250.00", daysAgo: 3, card: card.ID},
	})
}
