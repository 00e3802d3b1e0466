package api

import (
	"context"
	"fmt"
	"net/http"

	"github.com/milhas/loyalty-engine/auth"
	"github.com/milhas/loyalty-engine/loyalty"
)

// =============================================================================
// PURCHASE ENDPOINTS
// =============================================================================

// CreatePurchase registers a purchase for the caller through the core service.
// The token's email goes straight to the core, which resolves the user.
// POST /compras
func (h *Handler) CreatePurchase(w http.ResponseWriter, r *http.Request) {
	principal, ok := auth.PrincipalFrom(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Not authenticated", nil)
		return
	}
	var req BuyRequest
	if !decodeBody(w, r, &req) {
		return
	}

	purchaseDate := req.DataCompra
	if purchaseDate.IsZero() {
		purchaseDate = h.today()
	}

	resp, err := h.Purchases.RegisterPurchase(r.Context(), loyalty.PurchaseRequest{
		Description:  req.Descricao,
		Amount:       req.Valor,
		PurchaseDate: purchaseDate,
		CardID:       loyalty.CardID(req.CardID),
	}, principal.Email)
	if err != nil {
		if statusFor(err) == http.StatusInternalServerError {
			h.Log.Error("purchase registration failed", "email", principal.Email, "error", err)
		}
		writeDomainError(w, "Failed to register purchase", err)
		return
	}

	h.Log.Info("purchase registered",
		"purchase_id", resp.ID, "user_id", resp.UserID, "card_id", resp.CardID, "points", resp.Points.String())
	h.notify(r.Context(), resp.UserID, "Compra registrada",
		fmt.Sprintf("%s: %s pontos previstos para %s.", resp.Description, resp.Points.StringFixed(loyalty.PointsScale), resp.DueDate))

	writeJSON(w, http.StatusCreated, fromPurchaseResponse(resp))
}

// ListPurchases returns the caller's purchases, newest first.
// GET /compras?cardId=&status=&dataInicio=&dataFim=
func (h *Handler) ListPurchases(w http.ResponseWriter, r *http.Request) {
	user, ok := h.currentUser(w, r)
	if !ok {
		return
	}
	filter, err := purchaseFilterFromQuery(r, user.ID)
	if err != nil {
		writeDomainError(w, "Invalid filter", err)
		return
	}

	purchases, err := h.Store.ListPurchases(r.Context(), filter)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list purchases", err)
		return
	}
	names, err := h.cardNames(r.Context(), user.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list cards", err)
		return
	}

	dtos := make([]BuyDTO, len(purchases))
	for i, p := range purchases {
		dtos[i] = toBuyDTO(p, names[p.CardID])
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetPurchase returns one of the caller's purchases.
// GET /compras/{id}
func (h *Handler) GetPurchase(w http.ResponseWriter, r *http.Request) {
	user, ok := h.currentUser(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	p, err := h.Store.GetPurchase(r.Context(), loyalty.PurchaseID(id))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get purchase", err)
		return
	}
	if p == nil || p.UserID != user.ID {
		writeDomainError(w, "Purchase not found", loyalty.NotFound(loyalty.KindPurchase, id))
		return
	}

	card, err := h.Store.FindCardByID(r.Context(), p.CardID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get card", err)
		return
	}
	var cardName string
	if card != nil {
		cardName = card.Name
	}
	writeJSON(w, http.StatusOK, toBuyDTO(*p, cardName))
}

// UpdatePurchaseStatus credits or cancels one of the caller's pending purchases.
// PATCH /compras/{id}/status
func (h *Handler) UpdatePurchaseStatus(w http.ResponseWriter, r *http.Request) {
	user, ok := h.currentUser(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req StatusRequest
	if !decodeBody(w, r, &req) {
		return
	}

	p, err := loyalty.Transition(r.Context(), h.Store, user.ID, loyalty.PurchaseID(id), req.Status)
	if err != nil {
		writeDomainError(w, "Failed to update purchase status", err)
		return
	}

	h.Log.Info("purchase status changed", "purchase_id", p.ID, "status", p.Status)
	names, err := h.cardNames(r.Context(), user.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list cards", err)
		return
	}
	writeJSON(w, http.StatusOK, toBuyDTO(p, names[p.CardID]))
}

// =============================================================================
// DASHBOARD
// =============================================================================

// GetDashboard summarizes the caller's points.
// GET /dashboard
func (h *Handler) GetDashboard(w http.ResponseWriter, r *http.Request) {
	user, ok := h.currentUser(w, r)
	if !ok {
		return
	}
	ctx := r.Context()

	cards, err := h.Store.ListCardsByOwner(ctx, user.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list cards", err)
		return
	}
	purchases, err := h.Store.ListPurchases(ctx, loyalty.PurchaseFilter{UserID: user.ID})
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list purchases", err)
		return
	}
	programs, err := h.Store.ListPrograms(ctx)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list programs", err)
		return
	}

	programNames := make(map[loyalty.ProgramID]string, len(programs))
	for _, p := range programs {
		programNames[p.ID] = p.Name
	}
	cardNames := make(map[loyalty.CardID]string, len(cards))
	for _, c := range cards {
		cardNames[c.ID] = c.Name
	}

	d := loyalty.BuildDashboard(cards, purchases, programNames, h.today())
	writeJSON(w, http.StatusOK, toDashboardDTO(d, cardNames))
}

// =============================================================================
// HELPERS
// =============================================================================

func (h *Handler) cardNames(ctx context.Context, owner loyalty.UserID) (map[loyalty.CardID]string, error) {
	cards, err := h.Store.ListCardsByOwner(ctx, owner)
	if err != nil {
		return nil, err
	}
	names := make(map[loyalty.CardID]string, len(cards))
	for _, c := range cards {
		names[c.ID] = c.Name
	}
	return names, nil
}

// purchaseFilterFromQuery reads dataInicio, dataFim, cardId and status.
func purchaseFilterFromQuery(r *http.Request, owner loyalty.UserID) (loyalty.PurchaseFilter, error) {
	q := r.URL.Query()
	filter := loyalty.PurchaseFilter{UserID: owner}
	verr := &loyalty.ValidationError{}

	if v := q.Get("dataInicio"); v != "" {
		d, err := loyalty.ParseDate(v)
		if err != nil {
			verr.Add("dataInicio", "must be YYYY-MM-DD")
		}
		filter.From = d
	}
	if v := q.Get("dataFim"); v != "" {
		d, err := loyalty.ParseDate(v)
		if err != nil {
			verr.Add("dataFim", "must be YYYY-MM-DD")
		}
		filter.To = d
	}
	if v := q.Get("cardId"); v != "" {
		var id flexID
		if err := id.UnmarshalJSON([]byte(v)); err != nil || id <= 0 {
			verr.Add("cardId", "must be a positive integer")
		}
		filter.CardID = loyalty.CardID(id)
	}
	if v := q.Get("status"); v != "" {
		status := loyalty.PurchaseStatus(v)
		if !status.Valid() {
			verr.Add("status", "must be one of PENDENTE, CREDITADO, CANCELADO")
		}
		filter.Status = status
	}
	if !filter.From.IsZero() && !filter.To.IsZero() && filter.To.Before(filter.From) {
		verr.Add("dataFim", "must not be before dataInicio")
	}
	return filter, verr.OrNil()
}
