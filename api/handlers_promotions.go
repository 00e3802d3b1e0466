package api

import (
	"context"
	"net/http"

	"github.com/milhas/loyalty-engine/loyalty"
)

// =============================================================================
// PROMOTION ENDPOINTS (read-only)
// =============================================================================

// ListPromotions returns every promotion, latest first.
// GET /promocoes
func (h *Handler) ListPromotions(w http.ResponseWriter, r *http.Request) {
	h.writePromotions(w, r, func(loyalty.Promotion) bool { return true })
}

// ListActivePromotions returns the promotions running today.
// GET /promocoes/ativas
func (h *Handler) ListActivePromotions(w http.ResponseWriter, r *http.Request) {
	today := h.today()
	h.writePromotions(w, r, func(p loyalty.Promotion) bool { return p.RunningOn(today) })
}

// GetPromotion returns one promotion.
// GET /promocoes/{id}
func (h *Handler) GetPromotion(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	p, err := h.Store.GetPromotion(r.Context(), loyalty.PromotionID(id))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get promotion", err)
		return
	}
	if p == nil {
		writeDomainError(w, "Promotion not found", loyalty.NotFound(loyalty.KindPromotion, id))
		return
	}

	dto, err := h.toPromotionDTO(r.Context(), *p)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load promotion details", err)
		return
	}
	writeJSON(w, http.StatusOK, dto)
}

func (h *Handler) writePromotions(w http.ResponseWriter, r *http.Request, keep func(loyalty.Promotion) bool) {
	promos, err := h.Store.ListPromotions(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list promotions", err)
		return
	}

	dtos := make([]PromotionDTO, 0, len(promos))
	for _, p := range promos {
		if !keep(p) {
			continue
		}
		dto, err := h.toPromotionDTO(r.Context(), p)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "Failed to load promotion details", err)
			return
		}
		dtos = append(dtos, dto)
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) toPromotionDTO(ctx context.Context, p loyalty.Promotion) (PromotionDTO, error) {
	dto := PromotionDTO{
		ID:         p.ID,
		Titulo:     p.Title,
		Descricao:  p.Description,
		ImagemURL:  p.ImageURL,
		FatorBonus: p.BonusFactor,
		DataInicio: p.StartDate,
		DataFim:    p.EndDate,
		Ativo:      p.Active,
	}
	if p.ProgramID != 0 {
		prog, err := h.Store.GetProgram(ctx, p.ProgramID)
		if err != nil {
			return PromotionDTO{}, err
		}
		if prog != nil {
			pd := toProgramDTO(*prog)
			dto.ProgramaPontos = &pd
		}
	}
	return dto, nil
}
