/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal domain model from the external API contract. Field names
  follow the web client (Portuguese camelCase).

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

NUMBERS:
  Decimals are encoded as JSON numbers, not strings, because the client
  does arithmetic on them. IDs are accepted either as numbers or as
  numeric strings.

VALIDATION:
  Validation is done in handlers and in the loyalty core, not in DTOs.
  DTOs are pure data carriers.

SEE ALSO:
  - handlers.go: Uses these types
  - loyalty/types.go: Domain model
*/
package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/milhas/loyalty-engine/loyalty"
)

func init() {
	decimal.MarshalJSONWithoutQuotes = true
}

// =============================================================================
// SHARED
// =============================================================================

// flexID decodes 12 and "12" alike.
type flexID int64

func (id *flexID) UnmarshalJSON(data []byte) error {
	data = bytes.Trim(data, `"`)
	if len(data) == 0 || string(data) == "null" {
		*id = 0
		return nil
	}
	n, err := strconv.ParseInt(string(data), 10, 64)
	if err != nil {
		return fmt.Errorf("invalid id %q", data)
	}
	*id = flexID(n)
	return nil
}

// ErrorResponse is the body of every error reply.
type ErrorResponse struct {
	Error   string               `json:"error"`
	Details string               `json:"details,omitempty"`
	Fields  []loyalty.FieldError `json:"fields,omitempty"`
}

type CountDTO struct {
	Count int `json:"count"`
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

// =============================================================================
// ACCOUNTS
// =============================================================================

type UserDTO struct {
	ID        loyalty.UserID `json:"id"`
	Nome      string         `json:"nome"`
	Email     string         `json:"email"`
	Role      loyalty.Role   `json:"role"`
	CreatedAt string         `json:"createdAt,omitempty"`
}

func toUserDTO(u loyalty.User) UserDTO {
	return UserDTO{ID: u.ID, Nome: u.Name, Email: u.Email, Role: u.Role, CreatedAt: formatTime(u.CreatedAt)}
}

type LoginRequest struct {
	Email string `json:"email"`
	Senha string `json:"senha"`
}

type LoginResponse struct {
	Token     string  `json:"token"`
	ExpiresIn int64   `json:"expiresIn"`
	User      UserDTO `json:"user"`
}

type ProfileRequest struct {
	Nome  *string `json:"nome"`
	Email *string `json:"email"`
}

// ProfileDTO carries a new token when the email changed.
type ProfileDTO struct {
	UserDTO
	Token string `json:"token,omitempty"`
}

type PasswordRequest struct {
	SenhaAtual string `json:"senhaAtual"`
	NovaSenha  string `json:"novaSenha"`
}

type RegisterRequest struct {
	Nome  string       `json:"nome"`
	Email string       `json:"email"`
	Senha string       `json:"senha"`
	Role  loyalty.Role `json:"role,omitempty"`
}

// =============================================================================
// ADMIN CATALOG
// =============================================================================

type FlagDTO struct {
	ID      loyalty.FlagID `json:"id"`
	Nome    string         `json:"nome"`
	LogoURL string         `json:"logoUrl,omitempty"`
	Ativo   bool           `json:"ativo"`
}

func toFlagDTO(f loyalty.Flag) FlagDTO {
	return FlagDTO{ID: f.ID, Nome: f.Name, LogoURL: f.LogoURL, Ativo: f.Active}
}

type FlagRequest struct {
	Nome    string `json:"nome"`
	LogoURL string `json:"logoUrl"`
	Ativo   *bool  `json:"ativo"`
}

type ProgramDTO struct {
	ID          loyalty.ProgramID `json:"id"`
	Nome        string            `json:"nome"`
	Descricao   string            `json:"descricao,omitempty"`
	LogoURL     string            `json:"logoUrl,omitempty"`
	FatorPadrao decimal.Decimal   `json:"fatorPadrao"`
	Ativo       bool              `json:"ativo"`
}

func toProgramDTO(p loyalty.Program) ProgramDTO {
	return ProgramDTO{
		ID: p.ID, Nome: p.Name, Descricao: p.Description, LogoURL: p.LogoURL,
		FatorPadrao: p.DefaultFactor, Ativo: p.Active,
	}
}

type ProgramRequest struct {
	Nome        string          `json:"nome"`
	Descricao   string          `json:"descricao"`
	LogoURL     string          `json:"logoUrl"`
	FatorPadrao decimal.Decimal `json:"fatorPadrao"`
	Ativo       *bool           `json:"ativo"`
}

// =============================================================================
// CARDS
// =============================================================================

type CardDTO struct {
	ID                loyalty.CardID  `json:"id"`
	NomePersonalizado string          `json:"nomePersonalizado"`
	UltimosDigitos    string          `json:"ultimosDigitos"`
	FatorConversao    decimal.Decimal `json:"fatorConversao"`
	Bandeira          *FlagDTO        `json:"bandeira,omitempty"`
	ProgramaPontos    *ProgramDTO     `json:"programaPontos,omitempty"`
	SaldoPontos       decimal.Decimal `json:"saldoPontos"`
	Ativo             bool            `json:"ativo"`
	CreatedAt         string          `json:"createdAt,omitempty"`
}

type CardRequest struct {
	NomePersonalizado string          `json:"nomePersonalizado"`
	UltimosDigitos    string          `json:"ultimosDigitos"`
	FatorConversao    decimal.Decimal `json:"fatorConversao"`
	BandeiraID        flexID          `json:"bandeiraId"`
	ProgPontosID      flexID          `json:"progPontosId"`
}

// CardUpdateRequest leaves absent fields unchanged.
type CardUpdateRequest struct {
	NomePersonalizado *string          `json:"nomePersonalizado"`
	UltimosDigitos    *string          `json:"ultimosDigitos"`
	FatorConversao    *decimal.Decimal `json:"fatorConversao"`
	BandeiraID        *flexID          `json:"bandeiraId"`
	ProgPontosID      *flexID          `json:"progPontosId"`
	Ativo             *bool            `json:"ativo"`
}

// =============================================================================
// PROMOTIONS
// =============================================================================

type PromotionDTO struct {
	ID             loyalty.PromotionID `json:"id"`
	Titulo         string              `json:"titulo"`
	Descricao      string              `json:"descricao,omitempty"`
	ImagemURL      string              `json:"imagemUrl,omitempty"`
	ProgramaPontos *ProgramDTO         `json:"programaPontos,omitempty"`
	FatorBonus     decimal.Decimal     `json:"fatorBonus"`
	DataInicio     loyalty.Date        `json:"dataInicio"`
	DataFim        loyalty.Date        `json:"dataFim"`
	Ativo          bool                `json:"ativo"`
}

// =============================================================================
// CREDITING
// =============================================================================

// CreditingDTO reports the scheduler state; Creditadas is set after a run.
type CreditingDTO struct {
	Ativo           bool   `json:"ativo"`
	Intervalo       string `json:"intervalo"`
	ProximaExecucao string `json:"proximaExecucao,omitempty"`
	Creditadas      *int   `json:"creditadas,omitempty"`
}

// =============================================================================
// PURCHASES
// =============================================================================

type BuyDTO struct {
	ID               loyalty.PurchaseID     `json:"id"`
	Descricao        string                 `json:"descricao"`
	Valor            decimal.Decimal        `json:"valor"`
	DataCompra       loyalty.Date           `json:"dataCompra"`
	DataPrevCredito  loyalty.Date           `json:"dataPrevCredito"`
	DiasParaCredito  int                    `json:"diasParaCredito"`
	PontosCalculados decimal.Decimal        `json:"pontosCalculados"`
	Status           loyalty.PurchaseStatus `json:"status"`
	CardID           loyalty.CardID         `json:"cardId"`
	CardNome         string                 `json:"cardNome,omitempty"`
	CreatedAt        string                 `json:"createdAt,omitempty"`
}

func fromPurchaseResponse(resp loyalty.PurchaseResponse) BuyDTO {
	return BuyDTO{
		ID:               resp.ID,
		Descricao:        resp.Description,
		Valor:            resp.Amount,
		DataCompra:       resp.PurchaseDate,
		DataPrevCredito:  resp.DueDate,
		DiasParaCredito:  resp.CreditTermDays,
		PontosCalculados: resp.Points,
		Status:           resp.Status,
		CardID:           resp.CardID,
		CardNome:         resp.CardName,
	}
}

func toBuyDTO(p loyalty.Purchase, cardName string) BuyDTO {
	dto := fromPurchaseResponse(loyalty.NewPurchaseResponse(p, loyalty.Card{ID: p.CardID, Name: cardName}))
	dto.CreatedAt = formatTime(p.CreatedAt)
	return dto
}

type BuyRequest struct {
	Valor      decimal.Decimal `json:"valor"`
	DataCompra loyalty.Date    `json:"dataCompra"`
	Descricao  string          `json:"descricao"`
	CardID     flexID          `json:"cardId"`
}

type StatusRequest struct {
	Status loyalty.PurchaseStatus `json:"status"`
}

// =============================================================================
// DASHBOARD
// =============================================================================

type CardPointsDTO struct {
	CardID       loyalty.CardID  `json:"cardId"`
	CardNome     string          `json:"cardNome"`
	ProgramaNome string          `json:"programaNome"`
	Pontos       decimal.Decimal `json:"pontos"`
	Percentual   decimal.Decimal `json:"percentual"`
}

type MonthlyDTO struct {
	Mes     string          `json:"mes"`
	Pontos  decimal.Decimal `json:"pontos"`
	Compras int             `json:"compras"`
}

type DashboardDTO struct {
	TotalPontos           decimal.Decimal `json:"totalPontos"`
	PontosPendentes       decimal.Decimal `json:"pontosPendentes"`
	CartoesAtivos         int             `json:"cartoesAtivos"`
	PrazoMedioRecebimento decimal.Decimal `json:"prazoMedioRecebimento"`
	PontosPorCartao       []CardPointsDTO `json:"pontosPorCartao"`
	HistoricoMensal       []MonthlyDTO    `json:"historicoMensal"`
	UltimasCompras        []BuyDTO        `json:"ultimasCompras"`
}

func toDashboardDTO(d loyalty.Dashboard, cardNames map[loyalty.CardID]string) DashboardDTO {
	dto := DashboardDTO{
		TotalPontos:           d.TotalPoints,
		PontosPendentes:       d.PendingPoints,
		CartoesAtivos:         d.ActiveCards,
		PrazoMedioRecebimento: d.AverageCreditDays,
		PontosPorCartao:       make([]CardPointsDTO, len(d.PointsByCard)),
		HistoricoMensal:       make([]MonthlyDTO, len(d.Monthly)),
		UltimasCompras:        make([]BuyDTO, len(d.Recent)),
	}
	for i, c := range d.PointsByCard {
		dto.PontosPorCartao[i] = CardPointsDTO{
			CardID: c.CardID, CardNome: c.CardName, ProgramaNome: c.ProgramName,
			Pontos: c.Points, Percentual: c.Percent,
		}
	}
	for i, m := range d.Monthly {
		dto.HistoricoMensal[i] = MonthlyDTO{Mes: m.Month, Pontos: m.Points, Compras: m.Purchases}
	}
	for i, p := range d.Recent {
		dto.UltimasCompras[i] = toBuyDTO(p, cardNames[p.CardID])
	}
	return dto
}

// =============================================================================
// NOTIFICATIONS
// =============================================================================

type NotificationDTO struct {
	ID        loyalty.NotificationID   `json:"id"`
	Titulo    string                   `json:"titulo"`
	Mensagem  string                   `json:"mensagem"`
	Tipo      loyalty.NotificationKind `json:"tipo"`
	Lida      bool                     `json:"lida"`
	CreatedAt string                   `json:"createdAt"`
}

func toNotificationDTO(n loyalty.Notification) NotificationDTO {
	return NotificationDTO{
		ID: n.ID, Titulo: n.Title, Mensagem: n.Message, Tipo: n.Kind,
		Lida: n.Read, CreatedAt: formatTime(n.CreatedAt),
	}
}

// =============================================================================
// SCENARIOS
// =============================================================================

// ScenarioDTO describes a demo scenario.
type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Category    string `json:"category"`
}

// LoadScenarioRequest is the request to load a scenario.
type LoadScenarioRequest struct {
	ScenarioID string `json:"scenario_id"`
}

var _ json.Unmarshaler = (*flexID)(nil)
