/*
errors.go - Centralized error types for the loyalty core

PURPOSE:
  All error types in one place for consistency and discoverability.
  The HTTP layer maps them to status codes; the core never does.

ERROR CATEGORIES:
  1. Validation - Malformed or out-of-range input (client error, 400)
  2. NotFound   - Referenced entity absent, parameterized by kind (404)
  3. Conflict   - Uniqueness violations reported by stores (409)
  4. Anything else is Unexpected and propagates unchanged (500)

USAGE:
  if loyalty.IsNotFound(err) {
      var nf *loyalty.NotFoundError
      errors.As(err, &nf) // nf.Kind == loyalty.KindCard
  }

SEE ALSO:
  - purchase.go: Produces Validation and NotFound errors
  - api/handlers.go: statusFor() maps these to HTTP statuses
*/
package loyalty

import (
	"errors"
	"fmt"
	"strings"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrValidation is returned when request fields are malformed or out of range.
	ErrValidation = errors.New("validation failed")

	// ErrNotFound is returned when a referenced entity doesn't exist.
	ErrNotFound = errors.New("not found")

	// ErrDuplicate is returned when a unique field (email, flag name) is taken.
	ErrDuplicate = errors.New("already exists")

	// ErrInUse is returned when deleting an entity that others still reference.
	ErrInUse = errors.New("still referenced")

	// ErrInvalidTransition is returned when a purchase status change is not allowed.
	ErrInvalidTransition = errors.New("invalid status transition")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// EntityKind names what a NotFoundError could not find.
type EntityKind string

const (
	KindUser         EntityKind = "user"
	KindCard         EntityKind = "card"
	KindPurchase     EntityKind = "purchase"
	KindFlag         EntityKind = "flag"
	KindProgram      EntityKind = "program"
	KindNotification EntityKind = "notification"
	KindPromotion    EntityKind = "promotion"
)

// NotFoundError reports a missing entity of a given kind.
type NotFoundError struct {
	Kind EntityKind
	Key  string // email or identifier that did not resolve
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Kind, e.Key)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

func NotFound(kind EntityKind, key any) *NotFoundError {
	return &NotFoundError{Kind: kind, Key: fmt.Sprint(key)}
}

// FieldError describes one invalid request field.
type FieldError struct {
	Field   string `json:"campo"`
	Message string `json:"mensagem"`
}

// ValidationError collects every invalid field of a request.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	parts := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		parts[i] = f.Field + ": " + f.Message
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// Add records an invalid field.
func (e *ValidationError) Add(field, message string) {
	e.Fields = append(e.Fields, FieldError{Field: field, Message: message})
}

// OrNil returns e when any field was recorded, nil otherwise.
func (e *ValidationError) OrNil() error {
	if len(e.Fields) == 0 {
		return nil
	}
	return e
}

// TransitionError details a rejected status change.
type TransitionError struct {
	PurchaseID PurchaseID
	From       PurchaseStatus
	To         PurchaseStatus
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("purchase %d cannot move from %s to %s", e.PurchaseID, e.From, e.To)
}

func (e *TransitionError) Unwrap() error { return ErrInvalidTransition }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError returns true if the error is due to invalid client input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrInvalidTransition)
}

// IsNotFound returns true if the error indicates a missing resource.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsConflict returns true if the error is a uniqueness or reference violation.
func IsConflict(err error) bool {
	return errors.Is(err, ErrDuplicate) || errors.Is(err, ErrInUse)
}

// NotFoundKind returns the entity kind of a NotFoundError in err's chain.
func NotFoundKind(err error) (EntityKind, bool) {
	var nf *NotFoundError
	if errors.As(err, &nf) {
		return nf.Kind, true
	}
	return "", false
}
