package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/milhas/loyalty-engine/loyalty"
)

// =============================================================================
// CARD ENDPOINTS
// =============================================================================

// ListCards returns the caller's cards with their points balance.
// GET /cartoes
func (h *Handler) ListCards(w http.ResponseWriter, r *http.Request) {
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
	purchases, err := h.Store.ListPurchases(ctx, loyalty.PurchaseFilter{UserID: user.ID, Status: loyalty.StatusCredited})
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load purchases", err)
		return
	}
	balances := creditedByCard(purchases)

	dtos := make([]CardDTO, 0, len(cards))
	for _, c := range cards {
		dto, err := h.toCardDTO(ctx, c, balances[c.ID])
		if err != nil {
			writeError(w, http.StatusInternalServerError, "Failed to load card details", err)
			return
		}
		dtos = append(dtos, dto)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetCard returns one of the caller's cards.
// GET /cartoes/{id}
func (h *Handler) GetCard(w http.ResponseWriter, r *http.Request) {
	user, ok := h.currentUser(w, r)
	if !ok {
		return
	}
	card, ok := h.ownCard(w, r, user)
	if !ok {
		return
	}

	purchases, err := h.Store.ListPurchases(r.Context(), loyalty.PurchaseFilter{
		UserID: user.ID, CardID: card.ID, Status: loyalty.StatusCredited,
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load purchases", err)
		return
	}

	dto, err := h.toCardDTO(r.Context(), *card, creditedByCard(purchases)[card.ID])
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load card details", err)
		return
	}
	writeJSON(w, http.StatusOK, dto)
}

// CreateCard registers a card for the caller.
// POST /cartoes
func (h *Handler) CreateCard(w http.ResponseWriter, r *http.Request) {
	user, ok := h.currentUser(w, r)
	if !ok {
		return
	}
	var req CardRequest
	if !decodeBody(w, r, &req) {
		return
	}
	ctx := r.Context()

	verr := &loyalty.ValidationError{}
	if strings.TrimSpace(req.NomePersonalizado) == "" {
		verr.Add("nomePersonalizado", "must not be blank")
	}
	if !req.FatorConversao.IsPositive() {
		verr.Add("fatorConversao", "must be greater than zero")
	}
	if len(req.UltimosDigitos) > 4 {
		verr.Add("ultimosDigitos", "must have at most 4 digits")
	}
	if err := h.checkReferences(ctx, req, verr); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to check references", err)
		return
	}
	if err := verr.OrNil(); err != nil {
		writeDomainError(w, "Invalid card", err)
		return
	}

	card, err := h.Store.CreateCard(ctx, loyalty.Card{
		Name:             strings.TrimSpace(req.NomePersonalizado),
		LastDigits:       req.UltimosDigitos,
		ConversionFactor: req.FatorConversao,
		OwnerID:          user.ID,
		FlagID:           loyalty.FlagID(req.BandeiraID),
		ProgramID:        loyalty.ProgramID(req.ProgPontosID),
		Active:           true,
	})
	if err != nil {
		writeDomainError(w, "Failed to create card", err)
		return
	}

	dto, err := h.toCardDTO(ctx, card, decimal.Zero)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load card details", err)
		return
	}
	writeJSON(w, http.StatusCreated, dto)
}

// UpdateCard changes the given fields of one of the caller's cards. Points of
// purchases already registered keep the factor they were computed with.
// PUT /cartoes/{id}
func (h *Handler) UpdateCard(w http.ResponseWriter, r *http.Request) {
	user, ok := h.currentUser(w, r)
	if !ok {
		return
	}
	card, ok := h.ownCard(w, r, user)
	if !ok {
		return
	}
	var req CardUpdateRequest
	if !decodeBody(w, r, &req) {
		return
	}
	ctx := r.Context()

	merged := CardRequest{
		NomePersonalizado: card.Name,
		UltimosDigitos:    card.LastDigits,
		FatorConversao:    card.ConversionFactor,
		BandeiraID:        flexID(card.FlagID),
		ProgPontosID:      flexID(card.ProgramID),
	}
	if req.NomePersonalizado != nil {
		merged.NomePersonalizado = *req.NomePersonalizado
	}
	if req.UltimosDigitos != nil {
		merged.UltimosDigitos = *req.UltimosDigitos
	}
	if req.FatorConversao != nil {
		merged.FatorConversao = *req.FatorConversao
	}
	if req.BandeiraID != nil {
		merged.BandeiraID = *req.BandeiraID
	}
	if req.ProgPontosID != nil {
		merged.ProgPontosID = *req.ProgPontosID
	}

	verr := &loyalty.ValidationError{}
	if strings.TrimSpace(merged.NomePersonalizado) == "" {
		verr.Add("nomePersonalizado", "must not be blank")
	}
	if !merged.FatorConversao.IsPositive() {
		verr.Add("fatorConversao", "must be greater than zero")
	}
	if len(merged.UltimosDigitos) > 4 {
		verr.Add("ultimosDigitos", "must have at most 4 digits")
	}
	if err := h.checkReferences(ctx, merged, verr); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to check references", err)
		return
	}
	if err := verr.OrNil(); err != nil {
		writeDomainError(w, "Invalid card", err)
		return
	}

	card.Name = strings.TrimSpace(merged.NomePersonalizado)
	card.LastDigits = merged.UltimosDigitos
	card.ConversionFactor = merged.FatorConversao
	card.FlagID = loyalty.FlagID(merged.BandeiraID)
	card.ProgramID = loyalty.ProgramID(merged.ProgPontosID)
	card.Active = boolOr(req.Ativo, card.Active)

	if err := h.Store.UpdateCard(ctx, *card); err != nil {
		writeDomainError(w, "Failed to update card", err)
		return
	}

	purchases, err := h.Store.ListPurchases(ctx, loyalty.PurchaseFilter{
		UserID: user.ID, CardID: card.ID, Status: loyalty.StatusCredited,
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load purchases", err)
		return
	}
	dto, err := h.toCardDTO(ctx, *card, creditedByCard(purchases)[card.ID])
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load card details", err)
		return
	}
	h.Log.Info("card updated", "card_id", card.ID, "user_id", user.ID)
	writeJSON(w, http.StatusOK, dto)
}

// DeleteCard removes one of the caller's cards. Cards with purchases stay.
// DELETE /cartoes/{id}
func (h *Handler) DeleteCard(w http.ResponseWriter, r *http.Request) {
	user, ok := h.currentUser(w, r)
	if !ok {
		return
	}
	card, ok := h.ownCard(w, r, user)
	if !ok {
		return
	}
	if err := h.Store.DeleteCard(r.Context(), card.ID); err != nil {
		writeDomainError(w, "Failed to delete card", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ownCard loads the {id} card, hiding cards of other users.
func (h *Handler) ownCard(w http.ResponseWriter, r *http.Request, user *loyalty.User) (*loyalty.Card, bool) {
	id, ok := pathID(w, r)
	if !ok {
		return nil, false
	}
	card, err := h.Store.FindCardByID(r.Context(), loyalty.CardID(id))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get card", err)
		return nil, false
	}
	if card == nil || !card.OwnedBy(user.ID) {
		writeDomainError(w, "Card not found", loyalty.NotFound(loyalty.KindCard, id))
		return nil, false
	}
	return card, true
}

func (h *Handler) checkReferences(ctx context.Context, req CardRequest, verr *loyalty.ValidationError) error {
	if req.BandeiraID <= 0 {
		verr.Add("bandeiraId", "is required")
	} else {
		f, err := h.Store.GetFlag(ctx, loyalty.FlagID(req.BandeiraID))
		if err != nil {
			return err
		}
		if f == nil {
			verr.Add("bandeiraId", "does not exist")
		}
	}

	if req.ProgPontosID <= 0 {
		verr.Add("progPontosId", "is required")
	} else {
		p, err := h.Store.GetProgram(ctx, loyalty.ProgramID(req.ProgPontosID))
		if err != nil {
			return err
		}
		if p == nil {
			verr.Add("progPontosId", "does not exist")
		}
	}
	return nil
}

func (h *Handler) toCardDTO(ctx context.Context, c loyalty.Card, balance decimal.Decimal) (CardDTO, error) {
	dto := CardDTO{
		ID:                c.ID,
		NomePersonalizado: c.Name,
		UltimosDigitos:    c.LastDigits,
		FatorConversao:    c.ConversionFactor,
		SaldoPontos:       balance,
		Ativo:             c.Active,
		CreatedAt:         formatTime(c.CreatedAt),
	}
	if c.FlagID != 0 {
		f, err := h.Store.GetFlag(ctx, c.FlagID)
		if err != nil {
			return CardDTO{}, err
		}
		if f != nil {
			fd := toFlagDTO(*f)
			dto.Bandeira = &fd
		}
	}
	if c.ProgramID != 0 {
		p, err := h.Store.GetProgram(ctx, c.ProgramID)
		if err != nil {
			return CardDTO{}, err
		}
		if p != nil {
			pd := toProgramDTO(*p)
			dto.ProgramaPontos = &pd
		}
	}
	return dto, nil
}

// creditedByCard sums points per card. Callers pass credited purchases only.
func creditedByCard(purchases []loyalty.Purchase) map[loyalty.CardID]decimal.Decimal {
	out := make(map[loyalty.CardID]decimal.Decimal)
	for _, p := range purchases {
		out[p.CardID] = out[p.CardID].Add(p.Points)
	}
	return out
}
