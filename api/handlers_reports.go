package api

import (
	"bytes"
	"fmt"
	"net/http"

	"github.com/milhas/loyalty-engine/loyalty"
	"github.com/milhas/loyalty-engine/report"
)

// =============================================================================
// REPORT ENDPOINTS
// =============================================================================

type reportFormat struct {
	contentType string
	extension   string
	write       func(*bytes.Buffer, report.Statement) error
}

var (
	csvFormat = reportFormat{
		contentType: report.CSVContentType,
		extension:   "csv",
		write:       func(b *bytes.Buffer, st report.Statement) error { return report.WriteCSV(b, st) },
	}
	pdfFormat = reportFormat{
		contentType: report.PDFContentType,
		extension:   "pdf",
		write:       func(b *bytes.Buffer, st report.Statement) error { return report.WritePDF(b, st) },
	}
)

// ExportCSV downloads the caller's purchases as CSV.
// GET /relatorios/movimentacoes/csv?dataInicio=&dataFim=&cardId=&status=
func (h *Handler) ExportCSV(w http.ResponseWriter, r *http.Request) {
	h.export(w, r, csvFormat)
}

// ExportPDF downloads the caller's purchases as PDF.
// GET /relatorios/movimentacoes/pdf?dataInicio=&dataFim=&cardId=&status=
func (h *Handler) ExportPDF(w http.ResponseWriter, r *http.Request) {
	h.export(w, r, pdfFormat)
}

func (h *Handler) export(w http.ResponseWriter, r *http.Request, format reportFormat) {
	user, ok := h.currentUser(w, r)
	if !ok {
		return
	}
	filter, err := purchaseFilterFromQuery(r, user.ID)
	if err != nil {
		writeDomainError(w, "Invalid filter", err)
		return
	}
	ctx := r.Context()

	purchases, err := h.Store.ListPurchases(ctx, filter)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list purchases", err)
		return
	}
	cards, err := h.Store.ListCardsByOwner(ctx, user.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list cards", err)
		return
	}
	byID := make(map[loyalty.CardID]loyalty.Card, len(cards))
	for _, c := range cards {
		byID[c.ID] = c
	}

	st := report.NewStatement("Extrato de movimentacoes - "+user.Name, purchases, byID)

	// Rendered before any header is written.
	var buf bytes.Buffer
	if err := format.write(&buf, st); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to render report", err)
		return
	}

	filename := fmt.Sprintf("movimentacoes-%s.%s", h.today(), format.extension)
	w.Header().Set("Content-Type", format.contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.WriteHeader(http.StatusOK)
	w.Write(buf.Bytes())
}
