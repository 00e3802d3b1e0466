/*
handlers.go - HTTP API handlers for the loyalty miles service

PURPOSE:
  Exposes the loyalty core via REST API. Handles HTTP request/response,
  JSON serialization, authentication context, and delegates to domain logic.

ENDPOINTS:
  Accounts (public):
    POST   /auth/register              Create a USER account
    POST   /auth/login                 Exchange email/senha for a token

  Accounts (authenticated):
    GET    /usuarios/me                Current user
    PUT    /usuarios/me                Update name and email
    PUT    /usuarios/me/senha          Change password

  Resources (authenticated, see handlers_*.go):
    /cartoes, /compras, /dashboard, /notificacoes, /relatorios, /promocoes,
    /scenarios

  Admin (ADMIN role):
    /admin/bandeiras, /admin/programas, /admin/creditar, /scenarios/load,
    /scenarios/reset

ARCHITECTURE:
  Handler struct holds all dependencies:
  - Store: Database access (SQLite)
  - Purchases: The core purchase registration service
  - Tokens: JWT issue/verify
  - Crediting: Background crediting of due purchases
  - Log: Structured application logger

REQUEST FLOW:
  1. Parse HTTP request
  2. Resolve the caller from the token (auth.Middleware)
  3. Call domain logic
  4. Serialize response
  5. Map errors with statusFor

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, invalid status transitions, malformed bodies
  - 401: Missing/invalid token, bad credentials
  - 403: Role not allowed
  - 404: Resource not found (including other users' resources)
  - 409: Conflict (duplicate email or name, entity still referenced)
  - 500: Internal errors

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
  - auth/: Token handling
*/
package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/milhas/loyalty-engine/auth"
	"github.com/milhas/loyalty-engine/loyalty"
	"github.com/milhas/loyalty-engine/store/sqlite"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store     *sqlite.Store
	Purchases *loyalty.PurchaseService
	Tokens    *auth.TokenManager
	Crediting *CreditingScheduler
	Log       *slog.Logger

	// Track currently loaded scenario
	scenarioMu      sync.Mutex
	currentScenario string

	today func() loyalty.Date
}

// NewHandler creates a new handler with the given store.
func NewHandler(store *sqlite.Store, tokens *auth.TokenManager, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	h := &Handler{
		Store:     store,
		Purchases: loyalty.NewPurchaseService(store, store, store),
		Tokens:    tokens,
		Log:       logger,
		today:     loyalty.Today,
	}
	h.Crediting = NewCreditingScheduler(store, logger)
	h.Crediting.today = func() loyalty.Date { return h.today() }
	return h
}

// =============================================================================
// ACCOUNT HANDLERS
// =============================================================================

// Register creates a USER account.
// POST /auth/register
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if !decodeBody(w, r, &req) {
		return
	}

	verr := &loyalty.ValidationError{}
	if strings.TrimSpace(req.Nome) == "" {
		verr.Add("nome", "must not be blank")
	}
	if !strings.Contains(req.Email, "@") {
		verr.Add("email", "must be a valid email")
	}
	if len(req.Senha) < 6 {
		verr.Add("senha", "must have at least 6 characters")
	}
	if req.Role != "" && !req.Role.Valid() {
		verr.Add("role", "must be USER or ADMIN")
	}
	if err := verr.OrNil(); err != nil {
		writeDomainError(w, "Invalid registration", err)
		return
	}
	if req.Role == loyalty.RoleAdmin {
		writeError(w, http.StatusForbidden, "Admin accounts cannot self-register", nil)
		return
	}

	hash, err := auth.HashPassword(req.Senha)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to hash password", err)
		return
	}

	user, err := h.Store.CreateUser(r.Context(), loyalty.User{
		Name:         strings.TrimSpace(req.Nome),
		Email:        loyalty.NormalizeEmail(req.Email),
		PasswordHash: hash,
		Role:         loyalty.RoleUser,
	})
	if err != nil {
		writeDomainError(w, "Failed to create user", err)
		return
	}

	h.Log.Info("user registered", "user_id", user.ID)
	writeJSON(w, http.StatusCreated, toUserDTO(user))
}

// Login verifies credentials and issues a token.
// POST /auth/login
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if !decodeBody(w, r, &req) {
		return
	}

	verr := &loyalty.ValidationError{}
	if strings.TrimSpace(req.Email) == "" {
		verr.Add("email", "is required")
	}
	if req.Senha == "" {
		verr.Add("senha", "is required")
	}
	if err := verr.OrNil(); err != nil {
		writeDomainError(w, "Invalid login", err)
		return
	}

	user, err := h.Store.FindUserByEmail(r.Context(), loyalty.NormalizeEmail(req.Email))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load user", err)
		return
	}
	if user == nil {
		writeError(w, http.StatusUnauthorized, "Invalid email or password", auth.ErrInvalidCredentials)
		return
	}
	if err := auth.VerifyPassword(user.PasswordHash, req.Senha); err != nil {
		writeError(w, http.StatusUnauthorized, "Invalid email or password", err)
		return
	}

	token, err := h.Tokens.Issue(user.Email, user.Role)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to issue token", err)
		return
	}

	writeJSON(w, http.StatusOK, LoginResponse{
		Token:     token,
		ExpiresIn: int64(h.Tokens.TTL() / time.Second),
		User:      toUserDTO(*user),
	})
}

// Me returns the authenticated user.
// GET /usuarios/me
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	user, ok := h.currentUser(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, toUserDTO(*user))
}

// UpdateMe changes the caller's name and email. A new email invalidates the
// caller's tokens, so the reply carries a fresh one.
// PUT /usuarios/me
func (h *Handler) UpdateMe(w http.ResponseWriter, r *http.Request) {
	user, ok := h.currentUser(w, r)
	if !ok {
		return
	}
	var req ProfileRequest
	if !decodeBody(w, r, &req) {
		return
	}

	verr := &loyalty.ValidationError{}
	if req.Nome != nil {
		if strings.TrimSpace(*req.Nome) == "" {
			verr.Add("nome", "must not be blank")
		}
		user.Name = strings.TrimSpace(*req.Nome)
	}
	emailChanged := false
	if req.Email != nil {
		email := loyalty.NormalizeEmail(*req.Email)
		if !strings.Contains(email, "@") {
			verr.Add("email", "must be a valid email")
		}
		emailChanged = email != user.Email
		user.Email = email
	}
	if err := verr.OrNil(); err != nil {
		writeDomainError(w, "Invalid profile", err)
		return
	}

	if err := h.Store.UpdateUser(r.Context(), *user); err != nil {
		writeDomainError(w, "Failed to update profile", err)
		return
	}

	resp := ProfileDTO{UserDTO: toUserDTO(*user)}
	if emailChanged {
		token, err := h.Tokens.Issue(user.Email, user.Role)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "Failed to issue token", err)
			return
		}
		resp.Token = token
	}
	h.Log.Info("profile updated", "user_id", user.ID, "email_changed", emailChanged)
	writeJSON(w, http.StatusOK, resp)
}

// ChangePassword replaces the caller's password after checking the current one.
// PUT /usuarios/me/senha
func (h *Handler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	user, ok := h.currentUser(w, r)
	if !ok {
		return
	}
	var req PasswordRequest
	if !decodeBody(w, r, &req) {
		return
	}

	verr := &loyalty.ValidationError{}
	if req.SenhaAtual == "" {
		verr.Add("senhaAtual", "is required")
	} else if err := auth.VerifyPassword(user.PasswordHash, req.SenhaAtual); err != nil {
		verr.Add("senhaAtual", "does not match")
	}
	if len(req.NovaSenha) < 6 {
		verr.Add("novaSenha", "must have at least 6 characters")
	}
	if err := verr.OrNil(); err != nil {
		writeDomainError(w, "Invalid password change", err)
		return
	}

	hash, err := auth.HashPassword(req.NovaSenha)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to hash password", err)
		return
	}
	user.PasswordHash = hash
	if err := h.Store.UpdateUser(r.Context(), *user); err != nil {
		writeDomainError(w, "Failed to change password", err)
		return
	}

	h.Log.Info("password changed", "user_id", user.ID)
	w.WriteHeader(http.StatusNoContent)
}

// currentUser loads the caller's account. On failure it has already written
// the response.
func (h *Handler) currentUser(w http.ResponseWriter, r *http.Request) (*loyalty.User, bool) {
	p, ok := auth.PrincipalFrom(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Not authenticated", nil)
		return nil, false
	}
	user, err := h.Store.FindUserByEmail(r.Context(), p.Email)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load user", err)
		return nil, false
	}
	if user == nil {
		writeError(w, http.StatusUnauthorized, "Account no longer exists", nil)
		return nil, false
	}
	return user, true
}

// =============================================================================
// HELPERS
// =============================================================================

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return false
	}
	return true
}

// pathID parses the {id} URL parameter.
func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "Invalid id", err)
		return 0, false
	}
	return id, true
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// statusFor maps loyalty errors to HTTP statuses.
func statusFor(err error) int {
	switch {
	case loyalty.IsClientError(err):
		return http.StatusBadRequest
	case loyalty.IsNotFound(err):
		return http.StatusNotFound
	case loyalty.IsConflict(err):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// writeDomainError writes err with the status statusFor picks. Validation
// errors carry their field list; unexpected errors keep their details out
// of the body.
func writeDomainError(w http.ResponseWriter, message string, err error) {
	status := statusFor(err)
	resp := ErrorResponse{Error: message, Details: err.Error()}

	var verr *loyalty.ValidationError
	if errors.As(err, &verr) {
		resp.Fields = verr.Fields
	}
	if kind, ok := loyalty.NotFoundKind(err); ok {
		resp.Error = notFoundMessages[kind]
	}
	if status == http.StatusInternalServerError {
		resp.Details = ""
	}
	writeJSON(w, status, resp)
}

var notFoundMessages = map[loyalty.EntityKind]string{
	loyalty.KindUser:         "User not found",
	loyalty.KindCard:         "Card not found",
	loyalty.KindPurchase:     "Purchase not found",
	loyalty.KindFlag:         "Flag not found",
	loyalty.KindProgram:      "Program not found",
	loyalty.KindNotification: "Notification not found",
	loyalty.KindPromotion:    "Promotion not found",
}
