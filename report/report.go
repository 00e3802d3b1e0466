/*
Package report renders purchase statements for download.

FORMATS:
  CSV - semicolon separated, one row per purchase
  PDF - plain paginated text listing

Both renderers take the same Statement so the HTTP layer filters once and
picks the encoder by route.

SEE ALSO:
  - api/handlers_reports.go: /relatorios/movimentacoes/{csv,pdf}
*/
package report

import (
	"github.com/shopspring/decimal"

	"github.com/milhas/loyalty-engine/loyalty"
)

// Line is one purchase as it appears in a statement.
type Line struct {
	PurchaseDate loyalty.Date
	Description  string
	CardName     string
	Amount       decimal.Decimal
	Points       decimal.Decimal
	Status       loyalty.PurchaseStatus
	DueDate      loyalty.Date
}

// Statement is an ordered list of lines plus their totals.
type Statement struct {
	Title       string
	Lines       []Line
	TotalAmount decimal.Decimal
	TotalPoints decimal.Decimal
}

// NewStatement builds a statement from purchases, resolving card names from
// cards. Cancelled purchases are listed but left out of the totals.
func NewStatement(title string, purchases []loyalty.Purchase, cards map[loyalty.CardID]loyalty.Card) Statement {
	st := Statement{
		Title:       title,
		Lines:       make([]Line, 0, len(purchases)),
		TotalAmount: decimal.Zero,
		TotalPoints: decimal.Zero,
	}
	for _, p := range purchases {
		st.Lines = append(st.Lines, Line{
			PurchaseDate: p.PurchaseDate,
			Description:  p.Description,
			CardName:     cards[p.CardID].Name,
			Amount:       p.Amount,
			Points:       p.Points,
			Status:       p.Status,
			DueDate:      p.DueDate,
		})
		if p.Status != loyalty.StatusCancelled {
			st.TotalAmount = st.TotalAmount.Add(p.Amount)
			st.TotalPoints = st.TotalPoints.Add(p.Points)
		}
	}
	return st
}

func formatAmount(d decimal.Decimal) string { return d.StringFixed(2) }

func formatPoints(d decimal.Decimal) string { return d.StringFixed(loyalty.PointsScale) }
