/*
Package loyalty provides the core of the miles engine: credit-card purchases
that earn loyalty points.

PURPOSE:
  A user registers purchases made with one of their cards. Each card carries
  a conversion factor (points earned per currency unit spent), so every
  purchase earns amount x factor points. Points start PENDENTE and become
  CREDITADO once the credit term elapses.

KEY CONCEPTS IN THIS FILE (types.go):
  - User: The account owning cards and purchases (email is the principal)
  - Flag / Program: Admin-managed card brands and points programs
  - Card: A user's card with its conversion factor
  - Purchase: An immutable purchase record with computed points
  - Notification: A message shown to a user

DESIGN PRINCIPLES:
  1. Precision: Money, factors and points use decimal.Decimal, never float64
  2. Type Safety: Distinct ID types prevent mixing user/card/purchase IDs
  3. Ownership: Cards and purchases always point at exactly one user

SEE ALSO:
  - purchase.go: Purchase registration workflow
  - policy.go: Points scale and credit term constants
  - store.go: Collaborator interfaces
*/
package loyalty

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

type UserID int64
type FlagID int64
type ProgramID int64
type CardID int64
type PurchaseID int64
type NotificationID int64

// =============================================================================
// USER
// =============================================================================

type Role string

const (
	RoleUser  Role = "USER"
	RoleAdmin Role = "ADMIN"
)

func (r Role) Valid() bool { return r == RoleUser || r == RoleAdmin }

type User struct {
	ID           UserID
	Name         string
	Email        string
	PasswordHash string
	Role         Role
	CreatedAt    time.Time
}

// NormalizeEmail trims and lower-cases an email before it is stored.
// Lookups compare emails exactly, so every write path normalizes first.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// =============================================================================
// FLAG (BANDEIRA) AND POINTS PROGRAM
// =============================================================================

// Flag is a card brand (Visa, Mastercard, ...).
type Flag struct {
	ID      FlagID
	Name    string
	LogoURL string
	Active  bool
}

// Program is a points program (Livelo, Smiles, ...).
type Program struct {
	ID            ProgramID
	Name          string
	Description   string
	LogoURL       string
	DefaultFactor decimal.Decimal
	Active        bool
}

// =============================================================================
// CARD
// =============================================================================

type Card struct {
	ID               CardID
	Name             string
	LastDigits       string
	ConversionFactor decimal.Decimal // points per currency unit
	OwnerID          UserID
	FlagID           FlagID
	ProgramID        ProgramID
	Active           bool
	CreatedAt        time.Time
}

// OwnedBy reports whether the card belongs to the given user.
func (c Card) OwnedBy(id UserID) bool { return c.OwnerID == id }

// =============================================================================
// PURCHASE
// =============================================================================

type PurchaseStatus string

const (
	StatusPending   PurchaseStatus = "PENDENTE"
	StatusCredited  PurchaseStatus = "CREDITADO"
	StatusCancelled PurchaseStatus = "CANCELADO"
)

func (s PurchaseStatus) Valid() bool {
	switch s {
	case StatusPending, StatusCredited, StatusCancelled:
		return true
	}
	return false
}

// Purchase is created only by RegisterPurchase. After creation only Status
// may change, through Transition.
type Purchase struct {
	ID           PurchaseID
	Description  string
	Amount       decimal.Decimal
	PurchaseDate Date
	Points       decimal.Decimal
	Status       PurchaseStatus
	CardID       CardID
	UserID       UserID
	DueDate      Date
	CreatedAt    time.Time
}

// =============================================================================
// PROMOTION
// =============================================================================

type PromotionID int64

// Promotion is a time-boxed bonus announced for a points program.
type Promotion struct {
	ID          PromotionID
	Title       string
	Description string
	ImageURL    string
	ProgramID   ProgramID // zero when the promotion applies to every program
	BonusFactor decimal.Decimal
	StartDate   Date
	EndDate     Date
	Active      bool
}

// RunningOn reports whether the promotion is active and day falls inside
// [StartDate, EndDate].
func (p Promotion) RunningOn(day Date) bool {
	return p.Active && p.StartDate.BeforeOrEqual(day) && day.BeforeOrEqual(p.EndDate)
}

// =============================================================================
// NOTIFICATION
// =============================================================================

type NotificationKind string

const (
	NotificationNotice    NotificationKind = "AVISO"
	NotificationAlert     NotificationKind = "ALERTA"
	NotificationPromotion NotificationKind = "PROMOCAO"
)

type Notification struct {
	ID        NotificationID
	UserID    UserID
	Title     string
	Message   string
	Kind      NotificationKind
	Read      bool
	CreatedAt time.Time
}
