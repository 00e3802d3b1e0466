/*
handlers_test.go - HTTP tests for the API handlers

Tests for:
- Login and registration
- Purchase registration through POST /compras
- Ownership (other users' cards are not found)
- Profile, password and card updates
- Promotions and admin crediting runs
- Authentication and role checks
- Status changes, notifications and CSV export
*/
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/milhas/loyalty-engine/auth"
	"github.com/milhas/loyalty-engine/loyalty"
	"github.com/milhas/loyalty-engine/report"
	"github.com/milhas/loyalty-engine/store/sqlite"
)

var testToday = loyalty.NewDate(2025, time.March, 10)

type testServer struct {
	h      *Handler
	router *chi.Mux
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	tokens := auth.NewTokenManager("test-secret", "milhas", time.Hour)
	h := NewHandler(store, tokens, slog.New(slog.NewTextHandler(io.Discard, nil)))
	h.today = func() loyalty.Date { return testToday }

	return &testServer{h: h, router: NewRouter(h, []string{"*"})}
}

// seeded loads the first-purchase scenario: one card (factor 2.5) with a
// single purchase already registered.
func seeded(t *testing.T) *testServer {
	t.Helper()
	ts := newTestServer(t)
	require.NoError(t, ts.h.Seed(context.Background(), "first-purchase"))
	return ts
}

func (ts *testServer) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	ts.router.ServeHTTP(rec, req)
	return rec
}

func (ts *testServer) login(t *testing.T, email string) string {
	t.Helper()
	rec := ts.do(t, http.MethodPost, "/auth/login", "", LoginRequest{Email: email, Senha: DemoPassword})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp LoginResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.Token)
	return resp.Token
}

func (ts *testServer) firstCard(t *testing.T) loyalty.Card {
	t.Helper()
	ctx := context.Background()
	u, err := ts.h.Store.FindUserByEmail(ctx, DemoUserEmail)
	require.NoError(t, err)
	require.NotNil(t, u)
	cards, err := ts.h.Store.ListCardsByOwner(ctx, u.ID)
	require.NoError(t, err)
	require.NotEmpty(t, cards)
	return cards[0]
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

// =============================================================================
// ACCOUNTS
// =============================================================================

func TestLogin_BadPassword(t *testing.T) {
	ts := seeded(t)

	rec := ts.do(t, http.MethodPost, "/auth/login", "", LoginRequest{Email: DemoUserEmail, Senha: "wrong"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRegister_CreatesUserAndRejectsDuplicates(t *testing.T) {
	ts := newTestServer(t)
	req := RegisterRequest{Nome: "Maria", Email: "maria@milhas.com", Senha: "segredo"}

	rec := ts.do(t, http.MethodPost, "/auth/register", "", req)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	user := decode[UserDTO](t, rec)
	assert.Equal(t, loyalty.RoleUser, user.Role)

	rec = ts.do(t, http.MethodPost, "/auth/register", "", req)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestRegister_AdminIsForbidden(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodPost, "/auth/register", "",
		RegisterRequest{Nome: "Root", Email: "root@milhas.com", Senha: "segredo", Role: loyalty.RoleAdmin})
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestRegister_ValidationFields(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodPost, "/auth/register", "", RegisterRequest{Email: "nope", Senha: "123"})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	resp := decode[ErrorResponse](t, rec)
	fields := make([]string, len(resp.Fields))
	for i, f := range resp.Fields {
		fields[i] = f.Field
	}
	assert.ElementsMatch(t, []string{"nome", "email", "senha"}, fields)
}

// =============================================================================
// PURCHASES
// =============================================================================

func TestCreatePurchase_CalculatesPointsAndDueDate(t *testing.T) {
	// GIVEN: A user with a card converting 2.5 points per real
	ts := seeded(t)
	token := ts.login(t, DemoUserEmail)
	card := ts.firstCard(t)

	// WHEN: They register a R$ 100,00 purchase
	rec := ts.do(t, http.MethodPost, "/compras", token, map[string]any{
		"descricao":  "Mercado",
		"valor":      100.00,
		"dataCompra": "2025-03-01",
		"cardId":     card.ID,
	})

	// THEN: 250 points are pending until 30 days later
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	buy := decode[BuyDTO](t, rec)
	assert.True(t, decimal.NewFromInt(250).Equal(buy.PontosCalculados), buy.PontosCalculados.String())
	assert.Equal(t, loyalty.StatusPending, buy.Status)
	assert.Equal(t, "2025-03-31", buy.DataPrevCredito.String())
	assert.Equal(t, card.ID, buy.CardID)
	assert.Positive(t, int64(buy.ID))
}

func TestCreatePurchase_CardIDAsString(t *testing.T) {
	ts := seeded(t)
	token := ts.login(t, DemoUserEmail)
	card := ts.firstCard(t)

	rec := ts.do(t, http.MethodPost, "/compras", token, map[string]any{
		"descricao":  "Cafe",
		"valor":      "12.34",
		"dataCompra": "2025-03-01",
		"cardId":     strconv.FormatInt(int64(card.ID), 10),
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	buy := decode[BuyDTO](t, rec)
	assert.Equal(t, "30.85", buy.PontosCalculados.String())
}

func TestCreatePurchase_MissingDateDefaultsToToday(t *testing.T) {
	ts := seeded(t)
	token := ts.login(t, DemoUserEmail)
	card := ts.firstCard(t)

	rec := ts.do(t, http.MethodPost, "/compras", token, map[string]any{
		"descricao": "Sem data", "valor": 10, "cardId": card.ID,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	buy := decode[BuyDTO](t, rec)
	assert.Equal(t, testToday.String(), buy.DataCompra.String())
	assert.Equal(t, loyalty.CreditTermDays, buy.DiasParaCredito)
}

func TestCreatePurchase_TokenForUnknownUser(t *testing.T) {
	// GIVEN: A valid token whose subject has no account
	ts := seeded(t)
	card := ts.firstCard(t)
	token, err := ts.h.Tokens.Issue("ghost@milhas.com", loyalty.RoleUser)
	require.NoError(t, err)

	// WHEN: Registering a purchase with it
	rec := ts.do(t, http.MethodPost, "/compras", token, map[string]any{
		"descricao": "X", "valor": 10, "dataCompra": "2025-03-01", "cardId": card.ID,
	})

	// THEN: The core's user lookup answers, not the authentication layer
	require.Equal(t, http.StatusNotFound, rec.Code, rec.Body.String())
	assert.Equal(t, "User not found", decode[ErrorResponse](t, rec).Error)
}

func TestCreatePurchase_AmountWithThreeDecimals(t *testing.T) {
	ts := seeded(t)
	token := ts.login(t, DemoUserEmail)
	card := ts.firstCard(t)

	rec := ts.do(t, http.MethodPost, "/compras", token, map[string]any{
		"descricao": "X", "valor": "10.005", "dataCompra": "2025-03-01", "cardId": card.ID,
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	resp := decode[ErrorResponse](t, rec)
	require.Len(t, resp.Fields, 1)
	assert.Equal(t, "valor", resp.Fields[0].Field)
}

func TestCreatePurchase_UnknownCard(t *testing.T) {
	ts := seeded(t)
	token := ts.login(t, DemoUserEmail)

	rec := ts.do(t, http.MethodPost, "/compras", token, map[string]any{
		"descricao": "X", "valor": 10, "dataCompra": "2025-03-01", "cardId": 999,
	})
	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Card not found", decode[ErrorResponse](t, rec).Error)
}

func TestCreatePurchase_OtherUsersCardIsNotFound(t *testing.T) {
	// GIVEN: A second user who does not own the demo card
	ts := seeded(t)
	card := ts.firstCard(t)
	rec := ts.do(t, http.MethodPost, "/auth/register", "",
		RegisterRequest{Nome: "Outro", Email: "outro@milhas.com", Senha: DemoPassword})
	require.Equal(t, http.StatusCreated, rec.Code)
	token := ts.login(t, "outro@milhas.com")

	before, err := ts.h.Store.ListPurchases(context.Background(), loyalty.PurchaseFilter{})
	require.NoError(t, err)

	// WHEN: They try to register a purchase on it
	rec = ts.do(t, http.MethodPost, "/compras", token, map[string]any{
		"descricao": "X", "valor": 10, "dataCompra": "2025-03-01", "cardId": card.ID,
	})

	// THEN: The card is not found and nothing is written
	assert.Equal(t, http.StatusNotFound, rec.Code)
	after, err := ts.h.Store.ListPurchases(context.Background(), loyalty.PurchaseFilter{})
	require.NoError(t, err)
	assert.Len(t, after, len(before))
}

func TestCreatePurchase_Validation(t *testing.T) {
	ts := seeded(t)
	token := ts.login(t, DemoUserEmail)

	rec := ts.do(t, http.MethodPost, "/compras", token, map[string]any{
		"descricao": " ", "valor": 0, "dataCompra": "2025-03-01",
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	resp := decode[ErrorResponse](t, rec)
	fields := make([]string, len(resp.Fields))
	for i, f := range resp.Fields {
		fields[i] = f.Field
	}
	assert.ElementsMatch(t, []string{"descricao", "valor", "cardId"}, fields)
}

func TestCreatePurchase_MalformedBody(t *testing.T) {
	ts := seeded(t)
	token := ts.login(t, DemoUserEmail)

	req := httptest.NewRequest(http.MethodPost, "/compras", strings.NewReader("{"))
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	ts.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListPurchases_FiltersByStatus(t *testing.T) {
	ts := newTestServer(t)
	require.NoError(t, ts.h.Seed(context.Background(), "busy-semester"))
	token := ts.login(t, DemoUserEmail)

	rec := ts.do(t, http.MethodGet, "/compras?status=CANCELADO", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	buys := decode[[]BuyDTO](t, rec)
	require.Len(t, buys, 1)
	assert.Equal(t, "Farmacia", buys[0].Descricao)

	rec = ts.do(t, http.MethodGet, "/compras?status=PAGO", token, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUpdatePurchaseStatus(t *testing.T) {
	ts := seeded(t)
	token := ts.login(t, DemoUserEmail)

	rec := ts.do(t, http.MethodGet, "/compras", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	buys := decode[[]BuyDTO](t, rec)
	require.Len(t, buys, 1)
	path := "/compras/" + strconv.FormatInt(int64(buys[0].ID), 10) + "/status"

	rec = ts.do(t, http.MethodPatch, path, token, StatusRequest{Status: loyalty.StatusCancelled})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, loyalty.StatusCancelled, decode[BuyDTO](t, rec).Status)

	// Cancelled is final
	rec = ts.do(t, http.MethodPatch, path, token, StatusRequest{Status: loyalty.StatusCredited})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDashboard(t *testing.T) {
	ts := seeded(t)
	token := ts.login(t, DemoUserEmail)

	rec := ts.do(t, http.MethodGet, "/dashboard", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	d := decode[DashboardDTO](t, rec)
	assert.Equal(t, 1, d.CartoesAtivos)
	assert.True(t, decimal.NewFromInt(250).Equal(d.PontosPendentes))
	assert.True(t, d.TotalPontos.IsZero())
}

// =============================================================================
// AUTHENTICATION AND ROLES
// =============================================================================

func TestRoutes_RequireToken(t *testing.T) {
	ts := seeded(t)

	for _, path := range []string{"/cartoes", "/compras", "/dashboard", "/usuarios/me"} {
		rec := ts.do(t, http.MethodGet, path, "", nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code, path)
	}
}

func TestAdminRoutes_RequireAdmin(t *testing.T) {
	ts := seeded(t)

	userToken := ts.login(t, DemoUserEmail)
	rec := ts.do(t, http.MethodGet, "/admin/bandeiras", userToken, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	adminToken := ts.login(t, DemoAdminEmail)
	rec = ts.do(t, http.MethodPost, "/admin/bandeiras", adminToken, FlagRequest{Nome: "Elo"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	flag := decode[FlagDTO](t, rec)
	assert.Equal(t, "Elo", flag.Nome)
	assert.True(t, flag.Ativo)

	rec = ts.do(t, http.MethodGet, "/admin/bandeiras", adminToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]FlagDTO](t, rec), 3)
}

func TestMe(t *testing.T) {
	ts := seeded(t)
	token := ts.login(t, DemoUserEmail)

	rec := ts.do(t, http.MethodGet, "/usuarios/me", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, DemoUserEmail, decode[UserDTO](t, rec).Email)
}

func TestLogin_NormalizesEmail(t *testing.T) {
	ts := seeded(t)

	rec := ts.do(t, http.MethodPost, "/auth/login", "", LoginRequest{Email: " TESTE@Milhas.com ", Senha: DemoPassword})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, DemoUserEmail, decode[LoginResponse](t, rec).User.Email)
}

func TestRegister_StoresNormalizedEmail(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodPost, "/auth/register", "",
		RegisterRequest{Nome: "Maria", Email: "  Maria@Milhas.COM ", Senha: "segredo"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, "maria@milhas.com", decode[UserDTO](t, rec).Email)

	// The same address in another case is a duplicate
	rec = ts.do(t, http.MethodPost, "/auth/register", "",
		RegisterRequest{Nome: "Maria", Email: "MARIA@milhas.com", Senha: "segredo"})
	assert.Equal(t, http.StatusConflict, rec.Code)
}

// =============================================================================
// PROFILE
// =============================================================================

func TestUpdateMe_ChangesNameKeepsToken(t *testing.T) {
	ts := seeded(t)
	token := ts.login(t, DemoUserEmail)

	rec := ts.do(t, http.MethodPut, "/usuarios/me", token, map[string]any{"nome": "  Novo Nome "})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	profile := decode[ProfileDTO](t, rec)
	assert.Equal(t, "Novo Nome", profile.Nome)
	assert.Equal(t, DemoUserEmail, profile.Email)
	assert.Empty(t, profile.Token)

	rec = ts.do(t, http.MethodGet, "/usuarios/me", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Novo Nome", decode[UserDTO](t, rec).Nome)
}

func TestUpdateMe_NewEmailIssuesToken(t *testing.T) {
	// GIVEN: The demo user
	ts := seeded(t)
	token := ts.login(t, DemoUserEmail)

	// WHEN: They change their email
	rec := ts.do(t, http.MethodPut, "/usuarios/me", token, map[string]any{"email": " Novo@Milhas.com "})

	// THEN: The stored email is normalized and a token for it is returned
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	profile := decode[ProfileDTO](t, rec)
	assert.Equal(t, "novo@milhas.com", profile.Email)
	require.NotEmpty(t, profile.Token)

	rec = ts.do(t, http.MethodGet, "/usuarios/me", profile.Token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "novo@milhas.com", decode[UserDTO](t, rec).Email)

	// The old token no longer names an account
	rec = ts.do(t, http.MethodGet, "/usuarios/me", token, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestUpdateMe_TakenEmailConflicts(t *testing.T) {
	ts := seeded(t)
	token := ts.login(t, DemoUserEmail)

	rec := ts.do(t, http.MethodPut, "/usuarios/me", token, map[string]any{"email": DemoAdminEmail})
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestUpdateMe_Validation(t *testing.T) {
	ts := seeded(t)
	token := ts.login(t, DemoUserEmail)

	rec := ts.do(t, http.MethodPut, "/usuarios/me", token, map[string]any{"nome": " ", "email": "nope"})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	resp := decode[ErrorResponse](t, rec)
	fields := make([]string, len(resp.Fields))
	for i, f := range resp.Fields {
		fields[i] = f.Field
	}
	assert.ElementsMatch(t, []string{"nome", "email"}, fields)
}

func TestChangePassword(t *testing.T) {
	// GIVEN: The demo user
	ts := seeded(t)
	token := ts.login(t, DemoUserEmail)

	// WHEN: They change their password with the right current one
	rec := ts.do(t, http.MethodPut, "/usuarios/me/senha", token,
		PasswordRequest{SenhaAtual: DemoPassword, NovaSenha: "outra123"})
	require.Equal(t, http.StatusNoContent, rec.Code, rec.Body.String())

	// THEN: Only the new password logs in
	rec = ts.do(t, http.MethodPost, "/auth/login", "", LoginRequest{Email: DemoUserEmail, Senha: DemoPassword})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	rec = ts.do(t, http.MethodPost, "/auth/login", "", LoginRequest{Email: DemoUserEmail, Senha: "outra123"})
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestChangePassword_WrongCurrentPassword(t *testing.T) {
	ts := seeded(t)
	token := ts.login(t, DemoUserEmail)

	rec := ts.do(t, http.MethodPut, "/usuarios/me/senha", token,
		PasswordRequest{SenhaAtual: "errada", NovaSenha: "12"})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	resp := decode[ErrorResponse](t, rec)
	fields := make([]string, len(resp.Fields))
	for i, f := range resp.Fields {
		fields[i] = f.Field
	}
	assert.ElementsMatch(t, []string{"senhaAtual", "novaSenha"}, fields)

	// Nothing changed
	ts.login(t, DemoUserEmail)
}

// =============================================================================
// CARDS
// =============================================================================

func TestUpdateCard_PartialUpdateKeepsExistingPoints(t *testing.T) {
	// GIVEN: The demo card (factor 2.5) with one 250-point purchase
	ts := seeded(t)
	token := ts.login(t, DemoUserEmail)
	card := ts.firstCard(t)
	path := "/cartoes/" + strconv.FormatInt(int64(card.ID), 10)

	// WHEN: Changing only the name and factor
	rec := ts.do(t, http.MethodPut, path, token, map[string]any{
		"nomePersonalizado": "Visa Black", "fatorConversao": "4",
	})

	// THEN: Other fields stay and the old purchase keeps its points
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	dto := decode[CardDTO](t, rec)
	assert.Equal(t, "Visa Black", dto.NomePersonalizado)
	assert.Equal(t, card.LastDigits, dto.UltimosDigitos)
	assert.True(t, decimal.NewFromInt(4).Equal(dto.FatorConversao))
	assert.True(t, dto.Ativo)
	require.NotNil(t, dto.Bandeira)
	assert.Equal(t, card.FlagID, dto.Bandeira.ID)

	all, err := ts.h.Store.ListPurchases(context.Background(), loyalty.PurchaseFilter{CardID: card.ID})
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.True(t, decimal.NewFromInt(250).Equal(all[0].Points))

	// New purchases use the new factor
	rec = ts.do(t, http.MethodPost, "/compras", token, map[string]any{
		"descricao": "Livro", "valor": 10, "dataCompra": "2025-03-01", "cardId": card.ID,
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.True(t, decimal.NewFromInt(40).Equal(decode[BuyDTO](t, rec).PontosCalculados))
}

func TestUpdateCard_Validation(t *testing.T) {
	ts := seeded(t)
	token := ts.login(t, DemoUserEmail)
	card := ts.firstCard(t)
	path := "/cartoes/" + strconv.FormatInt(int64(card.ID), 10)

	rec := ts.do(t, http.MethodPut, path, token, map[string]any{
		"fatorConversao": 0, "bandeiraId": 999, "ultimosDigitos": "123456",
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	resp := decode[ErrorResponse](t, rec)
	fields := make([]string, len(resp.Fields))
	for i, f := range resp.Fields {
		fields[i] = f.Field
	}
	assert.ElementsMatch(t, []string{"fatorConversao", "bandeiraId", "ultimosDigitos"}, fields)
}

func TestUpdateCard_OtherUsersCardIsNotFound(t *testing.T) {
	ts := seeded(t)
	card := ts.firstCard(t)
	rec := ts.do(t, http.MethodPost, "/auth/register", "",
		RegisterRequest{Nome: "Outro", Email: "outro@milhas.com", Senha: DemoPassword})
	require.Equal(t, http.StatusCreated, rec.Code)
	token := ts.login(t, "outro@milhas.com")

	rec = ts.do(t, http.MethodPut, "/cartoes/"+strconv.FormatInt(int64(card.ID), 10), token,
		map[string]any{"nomePersonalizado": "Meu"})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	unchanged, err := ts.h.Store.FindCardByID(context.Background(), card.ID)
	require.NoError(t, err)
	assert.Equal(t, card.Name, unchanged.Name)
}

// =============================================================================
// PROMOTIONS
// =============================================================================

func TestPromotions_ListAndActive(t *testing.T) {
	ts := seeded(t)
	token := ts.login(t, DemoUserEmail)

	rec := ts.do(t, http.MethodGet, "/promocoes", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	all := decode[[]PromotionDTO](t, rec)
	require.Len(t, all, 3)
	assert.Equal(t, "Semana Smiles", all[0].Titulo, "latest start first")

	rec = ts.do(t, http.MethodGet, "/promocoes/ativas", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	active := decode[[]PromotionDTO](t, rec)
	require.Len(t, active, 1)
	assert.Equal(t, "Livelo em dobro", active[0].Titulo)
	require.NotNil(t, active[0].ProgramaPontos)
	assert.Equal(t, "Livelo", active[0].ProgramaPontos.Nome)

	rec = ts.do(t, http.MethodGet, "/promocoes/"+strconv.FormatInt(int64(active[0].ID), 10), token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, active[0].ID, decode[PromotionDTO](t, rec).ID)
}

func TestPromotions_UnknownIsNotFound(t *testing.T) {
	ts := seeded(t)
	token := ts.login(t, DemoUserEmail)

	rec := ts.do(t, http.MethodGet, "/promocoes/999", token, nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Promotion not found", decode[ErrorResponse](t, rec).Error)

	rec = ts.do(t, http.MethodGet, "/promocoes", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

// =============================================================================
// CREDITING
// =============================================================================

func TestCreditNow(t *testing.T) {
	// GIVEN: Two purchases past their due date
	ts := newTestServer(t)
	require.NoError(t, ts.h.Seed(context.Background(), "due-today"))
	adminToken := ts.login(t, DemoAdminEmail)

	// WHEN: An admin triggers a crediting run
	rec := ts.do(t, http.MethodPost, "/admin/creditar", adminToken, nil)

	// THEN: Both are credited and a second run finds nothing
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	dto := decode[CreditingDTO](t, rec)
	require.NotNil(t, dto.Creditadas)
	assert.Equal(t, 2, *dto.Creditadas)
	assert.Equal(t, 2, purchasesByStatus(t, ts.h)[loyalty.StatusCredited])

	rec = ts.do(t, http.MethodPost, "/admin/creditar", adminToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 0, *decode[CreditingDTO](t, rec).Creditadas)

	userToken := ts.login(t, DemoUserEmail)
	rec = ts.do(t, http.MethodPost, "/admin/creditar", userToken, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestCreditingStatus(t *testing.T) {
	ts := seeded(t)
	adminToken := ts.login(t, DemoAdminEmail)

	rec := ts.do(t, http.MethodGet, "/admin/creditar", adminToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	dto := decode[CreditingDTO](t, rec)
	assert.False(t, dto.Ativo)
	assert.Empty(t, dto.ProximaExecucao)
	assert.Nil(t, dto.Creditadas)

	ts.h.Crediting.Start()
	defer ts.h.Crediting.Stop()

	rec = ts.do(t, http.MethodGet, "/admin/creditar", adminToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	dto = decode[CreditingDTO](t, rec)
	assert.True(t, dto.Ativo)
	assert.Equal(t, "1h0m0s", dto.Intervalo)
	assert.NotEmpty(t, dto.ProximaExecucao)
}

// =============================================================================
// NOTIFICATIONS AND REPORTS
// =============================================================================

func TestNotifications_PurchaseCreatesOne(t *testing.T) {
	ts := seeded(t)
	token := ts.login(t, DemoUserEmail)
	card := ts.firstCard(t)

	rec := ts.do(t, http.MethodPost, "/compras", token, map[string]any{
		"descricao": "Livro", "valor": 40, "dataCompra": "2025-03-01", "cardId": card.ID,
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = ts.do(t, http.MethodGet, "/notificacoes", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	notes := decode[[]NotificationDTO](t, rec)
	require.Len(t, notes, 1)
	assert.Equal(t, "Compra registrada", notes[0].Titulo)
	assert.False(t, notes[0].Lida)

	rec = ts.do(t, http.MethodGet, "/notificacoes/nao-lidas/count", token, nil)
	assert.Equal(t, 1, decode[CountDTO](t, rec).Count)

	rec = ts.do(t, http.MethodPatch, "/notificacoes/"+strconv.FormatInt(int64(notes[0].ID), 10)+"/lida", token, nil)
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = ts.do(t, http.MethodGet, "/notificacoes/nao-lidas/count", token, nil)
	assert.Equal(t, 0, decode[CountDTO](t, rec).Count)
}

func TestExportCSV(t *testing.T) {
	ts := seeded(t)
	token := ts.login(t, DemoUserEmail)

	rec := ts.do(t, http.MethodGet, "/relatorios/movimentacoes/csv", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, report.CSVContentType, rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "movimentacoes-")
	assert.Contains(t, rec.Body.String(), "Primeira compra;Visa Infinite;100.00;250.000;PENDENTE")
}

func TestExportPDF(t *testing.T) {
	ts := seeded(t)
	token := ts.login(t, DemoUserEmail)

	rec := ts.do(t, http.MethodGet, "/relatorios/movimentacoes/pdf", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, report.PDFContentType, rec.Header().Get("Content-Type"))
	assert.True(t, strings.HasPrefix(rec.Body.String(), "%PDF-"))
}
