package api

import (
	"net/http"
	"strings"

	"github.com/milhas/loyalty-engine/loyalty"
)

// =============================================================================
// FLAG ENDPOINTS (bandeiras) - ADMIN only
// =============================================================================

// ListFlags returns all card flags.
// GET /admin/bandeiras
func (h *Handler) ListFlags(w http.ResponseWriter, r *http.Request) {
	flags, err := h.Store.ListFlags(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list flags", err)
		return
	}

	dtos := make([]FlagDTO, len(flags))
	for i, f := range flags {
		dtos[i] = toFlagDTO(f)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetFlag returns one flag.
// GET /admin/bandeiras/{id}
func (h *Handler) GetFlag(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	f, err := h.Store.GetFlag(r.Context(), loyalty.FlagID(id))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get flag", err)
		return
	}
	if f == nil {
		writeDomainError(w, "Flag not found", loyalty.NotFound(loyalty.KindFlag, id))
		return
	}
	writeJSON(w, http.StatusOK, toFlagDTO(*f))
}

// CreateFlag adds a flag.
// POST /admin/bandeiras
func (h *Handler) CreateFlag(w http.ResponseWriter, r *http.Request) {
	var req FlagRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if err := validateName(req.Nome); err != nil {
		writeDomainError(w, "Invalid flag", err)
		return
	}

	f, err := h.Store.SaveFlag(r.Context(), loyalty.Flag{
		Name:    strings.TrimSpace(req.Nome),
		LogoURL: req.LogoURL,
		Active:  boolOr(req.Ativo, true),
	})
	if err != nil {
		writeDomainError(w, "Failed to create flag", err)
		return
	}
	writeJSON(w, http.StatusCreated, toFlagDTO(f))
}

// UpdateFlag replaces a flag's fields.
// PUT /admin/bandeiras/{id}
func (h *Handler) UpdateFlag(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req FlagRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if err := validateName(req.Nome); err != nil {
		writeDomainError(w, "Invalid flag", err)
		return
	}

	f, err := h.Store.SaveFlag(r.Context(), loyalty.Flag{
		ID:      loyalty.FlagID(id),
		Name:    strings.TrimSpace(req.Nome),
		LogoURL: req.LogoURL,
		Active:  boolOr(req.Ativo, true),
	})
	if err != nil {
		writeDomainError(w, "Failed to update flag", err)
		return
	}
	writeJSON(w, http.StatusOK, toFlagDTO(f))
}

// DeleteFlag removes a flag no card uses.
// DELETE /admin/bandeiras/{id}
func (h *Handler) DeleteFlag(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := h.Store.DeleteFlag(r.Context(), loyalty.FlagID(id)); err != nil {
		writeDomainError(w, "Failed to delete flag", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// PROGRAM ENDPOINTS (programas de pontos) - ADMIN only
// =============================================================================

// ListPrograms returns all points programs.
// GET /admin/programas
func (h *Handler) ListPrograms(w http.ResponseWriter, r *http.Request) {
	programs, err := h.Store.ListPrograms(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list programs", err)
		return
	}

	dtos := make([]ProgramDTO, len(programs))
	for i, p := range programs {
		dtos[i] = toProgramDTO(p)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetProgram returns one program.
// GET /admin/programas/{id}
func (h *Handler) GetProgram(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	p, err := h.Store.GetProgram(r.Context(), loyalty.ProgramID(id))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get program", err)
		return
	}
	if p == nil {
		writeDomainError(w, "Program not found", loyalty.NotFound(loyalty.KindProgram, id))
		return
	}
	writeJSON(w, http.StatusOK, toProgramDTO(*p))
}

// CreateProgram adds a points program.
// POST /admin/programas
func (h *Handler) CreateProgram(w http.ResponseWriter, r *http.Request) {
	var req ProgramRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if err := validateProgram(req); err != nil {
		writeDomainError(w, "Invalid program", err)
		return
	}

	p, err := h.Store.SaveProgram(r.Context(), programFromRequest(0, req))
	if err != nil {
		writeDomainError(w, "Failed to create program", err)
		return
	}
	writeJSON(w, http.StatusCreated, toProgramDTO(p))
}

// UpdateProgram replaces a program's fields.
// PUT /admin/programas/{id}
func (h *Handler) UpdateProgram(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req ProgramRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if err := validateProgram(req); err != nil {
		writeDomainError(w, "Invalid program", err)
		return
	}

	p, err := h.Store.SaveProgram(r.Context(), programFromRequest(loyalty.ProgramID(id), req))
	if err != nil {
		writeDomainError(w, "Failed to update program", err)
		return
	}
	writeJSON(w, http.StatusOK, toProgramDTO(p))
}

// DeleteProgram removes a program no card uses.
// DELETE /admin/programas/{id}
func (h *Handler) DeleteProgram(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := h.Store.DeleteProgram(r.Context(), loyalty.ProgramID(id)); err != nil {
		writeDomainError(w, "Failed to delete program", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func programFromRequest(id loyalty.ProgramID, req ProgramRequest) loyalty.Program {
	return loyalty.Program{
		ID:            id,
		Name:          strings.TrimSpace(req.Nome),
		Description:   req.Descricao,
		LogoURL:       req.LogoURL,
		DefaultFactor: req.FatorPadrao,
		Active:        boolOr(req.Ativo, true),
	}
}

func validateName(name string) error {
	verr := &loyalty.ValidationError{}
	if strings.TrimSpace(name) == "" {
		verr.Add("nome", "must not be blank")
	}
	return verr.OrNil()
}

func validateProgram(req ProgramRequest) error {
	verr := &loyalty.ValidationError{}
	if strings.TrimSpace(req.Nome) == "" {
		verr.Add("nome", "must not be blank")
	}
	if !req.FatorPadrao.IsPositive() {
		verr.Add("fatorPadrao", "must be greater than zero")
	}
	return verr.OrNil()
}

func boolOr(b *bool, fallback bool) bool {
	if b == nil {
		return fallback
	}
	return *b
}

// =============================================================================
// CREDITING - ADMIN only
// =============================================================================

// CreditNow credits every due purchase right away.
// POST /admin/creditar
func (h *Handler) CreditNow(w http.ResponseWriter, r *http.Request) {
	n, err := h.Crediting.CreditDue(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to credit purchases", err)
		return
	}
	h.Log.Info("manual crediting run", "credited", n)

	dto := h.creditingStatus()
	dto.Creditadas = &n
	writeJSON(w, http.StatusOK, dto)
}

// GetCreditingStatus reports whether the scheduler runs and when it runs next.
// GET /admin/creditar
func (h *Handler) GetCreditingStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.creditingStatus())
}

func (h *Handler) creditingStatus() CreditingDTO {
	return CreditingDTO{
		Ativo:           h.Crediting.Running(),
		Intervalo:       h.Crediting.CheckInterval.String(),
		ProximaExecucao: formatTime(h.Crediting.NextRunTime()),
	}
}
