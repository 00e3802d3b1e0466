/*
dashboard.go - Per-user points summary

PURPOSE:
  Aggregates a user's cards and purchases into the figures shown on the
  dashboard. Pure function over already-loaded data; no store access.

FIGURES:
  TotalPoints:       Sum of CREDITADO points
  PendingPoints:     Sum of PENDENTE points
  ActiveCards:       Cards with Active set
  AverageCreditDays: Mean days until credit of pending purchases (1 place)
  PointsByCard:      Non-cancelled points per card, with share of the total
  Monthly:           Last DashboardMonths months, oldest first
  Recent:            Latest DashboardRecent purchases

Cancelled purchases never count towards any sum.
*/
package loyalty

import (
	"sort"

	"github.com/shopspring/decimal"
)

const (
	DashboardMonths = 6
	DashboardRecent = 5
)

var hundred = decimal.NewFromInt(100)

type CardPoints struct {
	CardID      CardID
	CardName    string
	ProgramName string
	Points      decimal.Decimal
	Percent     decimal.Decimal
}

type MonthlyPoints struct {
	Month     string // YYYY-MM
	Points    decimal.Decimal
	Purchases int
}

type Dashboard struct {
	TotalPoints       decimal.Decimal
	PendingPoints     decimal.Decimal
	ActiveCards       int
	AverageCreditDays decimal.Decimal
	PointsByCard      []CardPoints
	Monthly           []MonthlyPoints
	Recent            []Purchase
}

// BuildDashboard summarizes purchases as of the given day. programNames maps
// each card's program to its display name and may be nil.
func BuildDashboard(cards []Card, purchases []Purchase, programNames map[ProgramID]string, asOf Date) Dashboard {
	d := Dashboard{
		TotalPoints:       decimal.Zero,
		PendingPoints:     decimal.Zero,
		AverageCreditDays: decimal.Zero,
		PointsByCard:      []CardPoints{},
		Monthly:           []MonthlyPoints{},
		Recent:            []Purchase{},
	}

	perCard := make(map[CardID]decimal.Decimal, len(cards))
	for _, c := range cards {
		if c.Active {
			d.ActiveCards++
		}
		perCard[c.ID] = decimal.Zero
	}

	firstMonth := asOf.StartOfMonth().AddMonths(-(DashboardMonths - 1))
	monthIndex := make(map[string]int, DashboardMonths)
	for i := 0; i < DashboardMonths; i++ {
		key := firstMonth.AddMonths(i).Format("2006-01")
		monthIndex[key] = i
		d.Monthly = append(d.Monthly, MonthlyPoints{Month: key, Points: decimal.Zero})
	}

	pendingDays := 0
	pendingCount := 0
	allPoints := decimal.Zero

	for _, p := range purchases {
		switch p.Status {
		case StatusCancelled:
			continue
		case StatusCredited:
			d.TotalPoints = d.TotalPoints.Add(p.Points)
		case StatusPending:
			d.PendingPoints = d.PendingPoints.Add(p.Points)
			days := DaysBetween(asOf, p.DueDate)
			if days < 0 {
				days = 0
			}
			pendingDays += days
			pendingCount++
		}

		allPoints = allPoints.Add(p.Points)
		if sum, ok := perCard[p.CardID]; ok {
			perCard[p.CardID] = sum.Add(p.Points)
		}
		if i, ok := monthIndex[p.PurchaseDate.Format("2006-01")]; ok {
			d.Monthly[i].Points = d.Monthly[i].Points.Add(p.Points)
			d.Monthly[i].Purchases++
		}
	}

	if pendingCount > 0 {
		d.AverageCreditDays = decimal.NewFromInt(int64(pendingDays)).
			Div(decimal.NewFromInt(int64(pendingCount))).Round(1)
	}

	for _, c := range cards {
		points := perCard[c.ID]
		percent := decimal.Zero
		if allPoints.IsPositive() {
			percent = points.Mul(hundred).Div(allPoints).Round(1)
		}
		d.PointsByCard = append(d.PointsByCard, CardPoints{
			CardID:      c.ID,
			CardName:    c.Name,
			ProgramName: programNames[c.ProgramID],
			Points:      points,
			Percent:     percent,
		})
	}
	sort.SliceStable(d.PointsByCard, func(i, j int) bool {
		return d.PointsByCard[i].Points.GreaterThan(d.PointsByCard[j].Points)
	})

	d.Recent = append(d.Recent, purchases...)
	SortNewestFirst(d.Recent)
	if len(d.Recent) > DashboardRecent {
		d.Recent = d.Recent[:DashboardRecent]
	}

	return d
}

// SortNewestFirst orders purchases by purchase date, then ID, descending.
func SortNewestFirst(ps []Purchase) {
	sort.SliceStable(ps, func(i, j int) bool {
		if !ps[i].PurchaseDate.Equal(ps[j].PurchaseDate) {
			return ps[i].PurchaseDate.After(ps[j].PurchaseDate)
		}
		return ps[i].ID > ps[j].ID
	})
}
