package loyalty

import (
	"context"
)

// =============================================================================
// PURCHASE LIFECYCLE
// =============================================================================
//
//   PENDENTE ──► CREDITADO
//       │
//       └─────► CANCELADO
//
// CREDITADO and CANCELADO are terminal.

var transitions = map[PurchaseStatus][]PurchaseStatus{
	StatusPending: {StatusCredited, StatusCancelled},
}

// CanTransition reports whether a purchase may move from one status to another.
func CanTransition(from, to PurchaseStatus) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Transition moves a purchase owned by userID to status to.
// A purchase owned by another user is reported as not found.
func Transition(ctx context.Context, ledger PurchaseLedger, userID UserID, id PurchaseID, to PurchaseStatus) (Purchase, error) {
	if !to.Valid() {
		verr := &ValidationError{}
		verr.Add("status", "must be one of PENDENTE, CREDITADO, CANCELADO")
		return Purchase{}, verr
	}

	p, err := ledger.GetPurchase(ctx, id)
	if err != nil {
		return Purchase{}, err
	}
	if p == nil || (userID != 0 && p.UserID != userID) {
		return Purchase{}, NotFound(KindPurchase, id)
	}
	if !CanTransition(p.Status, to) {
		return Purchase{}, &TransitionError{PurchaseID: id, From: p.Status, To: to}
	}

	if err := ledger.UpdatePurchaseStatus(ctx, id, p.Status, to); err != nil {
		return Purchase{}, err
	}
	p.Status = to
	return *p, nil
}
