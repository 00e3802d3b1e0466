/*
purchase.go - Purchase registration workflow

PURPOSE:
  Turns a purchase request from an authenticated user into a stored
  purchase with its earned points. This is the only way purchases are
  created.

FLOW:
  1. Validate request shape (amount > 0, description, date, card reference)
  2. Resolve the acting user by email      -> NotFound(user)
  3. Resolve the card by identifier        -> NotFound(card)
     A card owned by someone else is reported as not found.
  4. points  = amount x card factor, PointsScale places
  5. status  = PENDENTE
  6. dueDate = purchaseDate + CreditTermDays
  7. Persist once, then build the response

FAIL FAST:
  Every check runs before the single SavePurchase call. A failed call
  writes nothing, so retrying a failed call has no side effects.

CONCURRENCY:
  PurchaseService holds no mutable state. Concurrent registrations are
  independent; uniqueness constraints belong to the store.

SEE ALSO:
  - policy.go: CalculatePoints, DueDateFor
  - store.go: Collaborator interfaces
  - api/handlers_purchases.go: HTTP entry point
*/
package loyalty

import (
	"context"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// PurchaseRequest is the input of RegisterPurchase.
type PurchaseRequest struct {
	Description  string
	Amount       decimal.Decimal
	PurchaseDate Date
	CardID       CardID
}

// Validate checks the request shape. It never touches a collaborator.
func (r PurchaseRequest) Validate() error {
	verr := &ValidationError{}
	if strings.TrimSpace(r.Description) == "" {
		verr.Add("descricao", "must not be blank")
	}
	if !r.Amount.IsPositive() {
		verr.Add("valor", "must be greater than zero")
	} else if !r.Amount.Equal(r.Amount.Round(AmountScale)) {
		verr.Add("valor", "must have at most 2 decimal places")
	}
	if r.PurchaseDate.IsZero() {
		verr.Add("dataCompra", "is required")
	}
	if r.CardID <= 0 {
		verr.Add("cardId", "is required")
	}
	return verr.OrNil()
}

// PurchaseResponse is what callers get back for a purchase.
type PurchaseResponse struct {
	ID             PurchaseID
	Description    string
	Amount         decimal.Decimal
	Points         decimal.Decimal
	PurchaseDate   Date
	DueDate        Date
	Status         PurchaseStatus
	CardID         CardID
	CardName       string
	UserID         UserID
	CreditTermDays int
}

// NewPurchaseResponse assembles the response for a stored purchase.
func NewPurchaseResponse(p Purchase, card Card) PurchaseResponse {
	return PurchaseResponse{
		ID:             p.ID,
		Description:    p.Description,
		Amount:         p.Amount,
		Points:         p.Points,
		PurchaseDate:   p.PurchaseDate,
		DueDate:        p.DueDate,
		Status:         p.Status,
		CardID:         card.ID,
		CardName:       card.Name,
		UserID:         p.UserID,
		CreditTermDays: DaysBetween(p.PurchaseDate, p.DueDate),
	}
}

// =============================================================================
// PURCHASE SERVICE
// =============================================================================

// PurchaseService registers purchases.
type PurchaseService struct {
	users     UserDirectory
	cards     CardRegistry
	purchases PurchaseStore

	now func() time.Time
}

func NewPurchaseService(users UserDirectory, cards CardRegistry, purchases PurchaseStore) *PurchaseService {
	return &PurchaseService{
		users:     users,
		cards:     cards,
		purchases: purchases,
		now:       time.Now,
	}
}

// RegisterPurchase validates req, computes the earned points and stores the
// purchase on behalf of the user identified by actingEmail.
func (s *PurchaseService) RegisterPurchase(ctx context.Context, req PurchaseRequest, actingEmail string) (PurchaseResponse, error) {
	if err := req.Validate(); err != nil {
		return PurchaseResponse{}, err
	}

	user, err := s.users.FindUserByEmail(ctx, actingEmail)
	if err != nil {
		return PurchaseResponse{}, err
	}
	if user == nil {
		return PurchaseResponse{}, NotFound(KindUser, actingEmail)
	}

	card, err := s.cards.FindCardByID(ctx, req.CardID)
	if err != nil {
		return PurchaseResponse{}, err
	}
	if card == nil || !card.OwnedBy(user.ID) {
		return PurchaseResponse{}, NotFound(KindCard, req.CardID)
	}

	purchase := Purchase{
		Description:  strings.TrimSpace(req.Description),
		Amount:       req.Amount,
		PurchaseDate: req.PurchaseDate,
		Points:       CalculatePoints(req.Amount, card.ConversionFactor),
		Status:       StatusPending,
		CardID:       card.ID,
		UserID:       user.ID,
		DueDate:      DueDateFor(req.PurchaseDate),
		CreatedAt:    s.now().UTC(),
	}

	saved, err := s.purchases.SavePurchase(ctx, purchase)
	if err != nil {
		return PurchaseResponse{}, err
	}

	return NewPurchaseResponse(saved, *card), nil
}
