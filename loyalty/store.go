/*
store.go - Persistence interfaces consumed by the loyalty core

PURPOSE:
  Defines the boundary between the purchase workflow and storage.
  Different implementations can use SQLite or in-memory storage.

KEY INTERFACES:
  UserDirectory:  Lookup of users by email (the authenticated principal)
  CardRegistry:   Lookup of cards by identifier
  PurchaseStore:  Create-only persistence of purchases
  PurchaseLedger: Purchase queries and status updates (outside the core)

LOOKUP CONTRACT:
  Find* methods return (nil, nil) when the entity does not exist. An error
  is reserved for infrastructure failures, which callers propagate as-is.

IDENTIFIERS:
  SavePurchase assigns the identifier. The caller never sets Purchase.ID.

IMPLEMENTATIONS:
  - store/sqlite/sqlite.go: Durable SQLite storage
  - loyalty/store/memory.go: In-memory for testing/dev

SEE ALSO:
  - purchase.go: Uses UserDirectory, CardRegistry, PurchaseStore
*/
package loyalty

import "context"

// UserDirectory resolves users by email.
type UserDirectory interface {
	FindUserByEmail(ctx context.Context, email string) (*User, error)
}

// CardRegistry resolves cards by identifier.
type CardRegistry interface {
	FindCardByID(ctx context.Context, id CardID) (*Card, error)
}

// PurchaseStore persists new purchases.
type PurchaseStore interface {
	// SavePurchase persists p and returns it with its generated ID.
	// Durable before returning.
	SavePurchase(ctx context.Context, p Purchase) (Purchase, error)
}

// PurchaseFilter narrows purchase listings. Zero values match everything.
type PurchaseFilter struct {
	UserID   UserID
	CardID   CardID
	Status   PurchaseStatus
	From     Date
	To       Date
	DueUntil Date // DueDate <= DueUntil
}

// Matches reports whether p passes the filter.
func (f PurchaseFilter) Matches(p Purchase) bool {
	if f.UserID != 0 && p.UserID != f.UserID {
		return false
	}
	if f.CardID != 0 && p.CardID != f.CardID {
		return false
	}
	if f.Status != "" && p.Status != f.Status {
		return false
	}
	if !f.From.IsZero() && p.PurchaseDate.Before(f.From) {
		return false
	}
	if !f.To.IsZero() && p.PurchaseDate.After(f.To) {
		return false
	}
	if !f.DueUntil.IsZero() && p.DueDate.After(f.DueUntil) {
		return false
	}
	return true
}

// PurchaseLedger extends PurchaseStore with reads and status updates.
type PurchaseLedger interface {
	PurchaseStore

	GetPurchase(ctx context.Context, id PurchaseID) (*Purchase, error)

	// ListPurchases returns matching purchases, newest purchase date first.
	ListPurchases(ctx context.Context, filter PurchaseFilter) ([]Purchase, error)

	// UpdatePurchaseStatus moves a purchase from one status to another.
	// It fails with a TransitionError when the stored status is not from.
	UpdatePurchaseStatus(ctx context.Context, id PurchaseID, from, to PurchaseStatus) error
}
