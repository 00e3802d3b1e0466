package sqlite_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/milhas/loyalty-engine/loyalty"
	"github.com/milhas/loyalty-engine/store/sqlite"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

func newTestStore(t *testing.T) *sqlite.Store {
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

type fixture struct {
	user loyalty.User
	card loyalty.Card
}

func seed(t *testing.T, store *sqlite.Store) fixture {
	t.Helper()
	ctx := context.Background()

	user, err := store.CreateUser(ctx, loyalty.User{
		Name: "Teste", Email: "teste@milhas.com", PasswordHash: "x", Role: loyalty.RoleUser,
	})
	require.NoError(t, err)

	flag, err := store.SaveFlag(ctx, loyalty.Flag{Name: "Visa", Active: true})
	require.NoError(t, err)
	program, err := store.SaveProgram(ctx, loyalty.Program{Name: "Livelo", DefaultFactor: dec("1.0"), Active: true})
	require.NoError(t, err)

	card, err := store.CreateCard(ctx, loyalty.Card{
		Name: "Visa Infinite", LastDigits: "1234", ConversionFactor: dec("2.5"),
		OwnerID: user.ID, FlagID: flag.ID, ProgramID: program.ID, Active: true,
	})
	require.NoError(t, err)

	return fixture{user: user, card: card}
}

// =============================================================================
// USERS
// =============================================================================

func TestUsers_FindByEmailMatchesExactly(t *testing.T) {
	// GIVEN: A user stored as teste@milhas.com
	store := newTestStore(t)
	f := seed(t, store)
	ctx := context.Background()

	// WHEN: Looking up the exact email
	u, err := store.FindUserByEmail(ctx, "teste@milhas.com")
	require.NoError(t, err)
	require.NotNil(t, u)
	assert.Equal(t, f.user.ID, u.ID)

	// THEN: Other spellings of the same address match nothing
	for _, email := range []string{"TESTE@milhas.com", " teste@milhas.com "} {
		u, err := store.FindUserByEmail(ctx, email)
		require.NoError(t, err)
		assert.Nil(t, u, email)
	}
}

func TestUsers_RegisterWithOtherCaseEmailWritesNothing(t *testing.T) {
	// GIVEN: A seeded user and card
	store := newTestStore(t)
	f := seed(t, store)
	ctx := context.Background()
	svc := loyalty.NewPurchaseService(store, store, store)

	// WHEN: Registering for a differently cased, padded email
	_, err := svc.RegisterPurchase(ctx, loyalty.PurchaseRequest{
		Description:  "Notebook",
		Amount:       dec("100.00"),
		PurchaseDate: loyalty.NewDate(2025, time.March, 1),
		CardID:       f.card.ID,
	}, " TESTE@Milhas.COM ")

	// THEN: The user is not found and no purchase is stored
	require.Error(t, err)
	assert.True(t, loyalty.IsNotFound(err))
	var nf *loyalty.NotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, loyalty.KindUser, nf.Kind)

	all, err := store.ListPurchases(ctx, loyalty.PurchaseFilter{})
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestUsers_Update(t *testing.T) {
	store := newTestStore(t)
	f := seed(t, store)
	ctx := context.Background()

	f.user.Name = "Novo Nome"
	f.user.Email = "novo@milhas.com"
	f.user.PasswordHash = "z"
	require.NoError(t, store.UpdateUser(ctx, f.user))

	u, err := store.FindUserByEmail(ctx, "novo@milhas.com")
	require.NoError(t, err)
	require.NotNil(t, u)
	assert.Equal(t, "Novo Nome", u.Name)
	assert.Equal(t, "z", u.PasswordHash)

	old, err := store.FindUserByEmail(ctx, "teste@milhas.com")
	require.NoError(t, err)
	assert.Nil(t, old)

	f.user.ID = 99
	assert.True(t, loyalty.IsNotFound(store.UpdateUser(ctx, f.user)))
}

func TestUsers_UpdateToTakenEmail(t *testing.T) {
	store := newTestStore(t)
	f := seed(t, store)
	ctx := context.Background()

	_, err := store.CreateUser(ctx, loyalty.User{Name: "Outro", Email: "outro@milhas.com", PasswordHash: "y"})
	require.NoError(t, err)

	f.user.Email = "outro@milhas.com"
	err = store.UpdateUser(ctx, f.user)
	assert.ErrorIs(t, err, loyalty.ErrDuplicate)
}

func TestUsers_UnknownEmailReturnsNil(t *testing.T) {
	store := newTestStore(t)

	u, err := store.FindUserByEmail(context.Background(), "ghost@milhas.com")
	assert.NoError(t, err)
	assert.Nil(t, u)
}

func TestUsers_DuplicateEmail(t *testing.T) {
	store := newTestStore(t)
	seed(t, store)

	_, err := store.CreateUser(context.Background(), loyalty.User{
		Name: "Outro", Email: "teste@milhas.com", PasswordHash: "y",
	})
	assert.ErrorIs(t, err, loyalty.ErrDuplicate)
	assert.True(t, loyalty.IsConflict(err))
}

// =============================================================================
// FLAGS, PROGRAMS, CARDS
// =============================================================================

func TestFlags_CRUD(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	f, err := store.SaveFlag(ctx, loyalty.Flag{Name: "Mastercard", Active: true})
	require.NoError(t, err)
	assert.NotZero(t, f.ID)

	f.LogoURL = "https://cdn/master.png"
	_, err = store.SaveFlag(ctx, f)
	require.NoError(t, err)

	got, err := store.GetFlag(ctx, f.ID)
	require.NoError(t, err)
	assert.Equal(t, "https://cdn/master.png", got.LogoURL)

	_, err = store.SaveFlag(ctx, loyalty.Flag{Name: "mastercard"})
	assert.ErrorIs(t, err, loyalty.ErrDuplicate)

	require.NoError(t, store.DeleteFlag(ctx, f.ID))
	assert.True(t, loyalty.IsNotFound(store.DeleteFlag(ctx, f.ID)))
}

func TestFlags_InUseCannotBeDeleted(t *testing.T) {
	store := newTestStore(t)
	f := seed(t, store)

	err := store.DeleteFlag(context.Background(), f.card.FlagID)
	assert.ErrorIs(t, err, loyalty.ErrInUse)
}

func TestPrograms_KeepDecimalFactor(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	p, err := store.SaveProgram(ctx, loyalty.Program{Name: "Smiles", DefaultFactor: dec("1.75"), Active: true})
	require.NoError(t, err)

	got, err := store.GetProgram(ctx, p.ID)
	require.NoError(t, err)
	assert.True(t, dec("1.75").Equal(got.DefaultFactor))

	all, err := store.ListPrograms(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestCards_RoundTrip(t *testing.T) {
	store := newTestStore(t)
	f := seed(t, store)
	ctx := context.Background()

	c, err := store.FindCardByID(ctx, f.card.ID)
	require.NoError(t, err)
	require.NotNil(t, c)
	assert.True(t, dec("2.5").Equal(c.ConversionFactor))
	assert.Equal(t, f.user.ID, c.OwnerID)
	assert.Equal(t, "1234", c.LastDigits)

	missing, err := store.FindCardByID(ctx, 999)
	assert.NoError(t, err)
	assert.Nil(t, missing)

	cards, err := store.ListCardsByOwner(ctx, f.user.ID)
	require.NoError(t, err)
	assert.Len(t, cards, 1)
}

func TestCards_Update(t *testing.T) {
	store := newTestStore(t)
	f := seed(t, store)
	ctx := context.Background()

	f.card.Name = "Visa Gold"
	f.card.LastDigits = "9876"
	f.card.ConversionFactor = dec("3.25")
	f.card.Active = false
	require.NoError(t, store.UpdateCard(ctx, f.card))

	c, err := store.FindCardByID(ctx, f.card.ID)
	require.NoError(t, err)
	require.NotNil(t, c)
	assert.Equal(t, "Visa Gold", c.Name)
	assert.Equal(t, "9876", c.LastDigits)
	assert.True(t, dec("3.25").Equal(c.ConversionFactor))
	assert.False(t, c.Active)

	f.card.ID = 99
	assert.True(t, loyalty.IsNotFound(store.UpdateCard(ctx, f.card)))
}

// =============================================================================
// PROMOTIONS
// =============================================================================

func TestPromotions_SaveAndList(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	program, err := store.SaveProgram(ctx, loyalty.Program{Name: "Smiles", DefaultFactor: dec("2.0"), Active: true})
	require.NoError(t, err)

	older, err := store.SavePromotion(ctx, loyalty.Promotion{
		Title: "Verao", ProgramID: program.ID, BonusFactor: dec("1.3"),
		StartDate: loyalty.NewDate(2025, time.January, 1), EndDate: loyalty.NewDate(2025, time.January, 31), Active: true,
	})
	require.NoError(t, err)
	newer, err := store.SavePromotion(ctx, loyalty.Promotion{
		Title: "Dobro", Description: "Pontos em dobro", BonusFactor: dec("2.0"),
		StartDate: loyalty.NewDate(2025, time.March, 1), EndDate: loyalty.NewDate(2025, time.March, 31), Active: true,
	})
	require.NoError(t, err)

	all, err := store.ListPromotions(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, newer.ID, all[0].ID)
	assert.Equal(t, older.ID, all[1].ID)
	assert.Equal(t, program.ID, all[1].ProgramID)
	assert.True(t, dec("1.3").Equal(all[1].BonusFactor))

	newer.Active = false
	_, err = store.SavePromotion(ctx, newer)
	require.NoError(t, err)

	got, err := store.GetPromotion(ctx, newer.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.False(t, got.Active)
	assert.Equal(t, "Pontos em dobro", got.Description)
	assert.Equal(t, loyalty.NewDate(2025, time.March, 31), got.EndDate)

	missing, err := store.GetPromotion(ctx, 99)
	assert.NoError(t, err)
	assert.Nil(t, missing)
}

// =============================================================================
// PURCHASES
// =============================================================================

func TestPurchases_RegisterThroughService(t *testing.T) {
	// GIVEN: A SQLite-backed purchase service
	store := newTestStore(t)
	f := seed(t, store)
	ctx := context.Background()
	svc := loyalty.NewPurchaseService(store, store, store)

	// WHEN: Registering R$ 100,00 on the 2.5 card
	resp, err := svc.RegisterPurchase(ctx, loyalty.PurchaseRequest{
		Description:  "Notebook",
		Amount:       dec("100.00"),
		PurchaseDate: loyalty.NewDate(2025, time.March, 1),
		CardID:       f.card.ID,
	}, "teste@milhas.com")
	require.NoError(t, err)

	// THEN: The stored record keeps exact decimals and the generated ID
	stored, err := store.GetPurchase(ctx, resp.ID)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, "250.000", stored.Points.StringFixed(3))
	assert.True(t, dec("100.00").Equal(stored.Amount))
	assert.Equal(t, loyalty.StatusPending, stored.Status)
	assert.Equal(t, loyalty.NewDate(2025, time.March, 31), stored.DueDate)
	assert.Equal(t, f.user.ID, stored.UserID)
}

func TestPurchases_KeepFixedScale(t *testing.T) {
	// GIVEN: A whole-number amount on a whole-number factor card
	store := newTestStore(t)
	f := seed(t, store)
	ctx := context.Background()
	f.card.ConversionFactor = dec("2")
	require.NoError(t, store.UpdateCard(ctx, f.card))
	svc := loyalty.NewPurchaseService(store, store, store)

	// WHEN: Registering and reading it back
	resp, err := svc.RegisterPurchase(ctx, loyalty.PurchaseRequest{
		Description:  "Mercado",
		Amount:       dec("100"),
		PurchaseDate: loyalty.NewDate(2025, time.March, 1),
		CardID:       f.card.ID,
	}, "teste@milhas.com")
	require.NoError(t, err)
	stored, err := store.GetPurchase(ctx, resp.ID)
	require.NoError(t, err)
	require.NotNil(t, stored)

	// THEN: Amount keeps two decimals and points keep three
	assert.Equal(t, int32(-2), stored.Amount.Exponent())
	assert.Equal(t, int32(-3), stored.Points.Exponent())
	assert.Equal(t, "200.000", stored.Points.StringFixed(3))
}

func TestPurchases_ListFilter(t *testing.T) {
	store := newTestStore(t)
	f := seed(t, store)
	ctx := context.Background()

	for i, status := range []loyalty.PurchaseStatus{loyalty.StatusPending, loyalty.StatusCredited, loyalty.StatusPending} {
		day := loyalty.NewDate(2025, time.January, 10+i)
		_, err := store.SavePurchase(ctx, loyalty.Purchase{
			Description: "p", Amount: dec("10.00"), Points: dec("25.000"),
			PurchaseDate: day, DueDate: loyalty.DueDateFor(day),
			Status: status, CardID: f.card.ID, UserID: f.user.ID,
		})
		require.NoError(t, err)
	}

	all, err := store.ListPurchases(ctx, loyalty.PurchaseFilter{UserID: f.user.ID})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, loyalty.NewDate(2025, time.January, 12), all[0].PurchaseDate, "newest first")

	pending, err := store.ListPurchases(ctx, loyalty.PurchaseFilter{Status: loyalty.StatusPending})
	require.NoError(t, err)
	assert.Len(t, pending, 2)

	due, err := store.ListPurchases(ctx, loyalty.PurchaseFilter{
		Status: loyalty.StatusPending, DueUntil: loyalty.NewDate(2025, time.February, 9),
	})
	require.NoError(t, err)
	assert.Len(t, due, 1)

	ranged, err := store.ListPurchases(ctx, loyalty.PurchaseFilter{
		From: loyalty.NewDate(2025, time.January, 11), To: loyalty.NewDate(2025, time.January, 11),
	})
	require.NoError(t, err)
	assert.Len(t, ranged, 1)
}

func TestPurchases_UpdateStatusChecksCurrentStatus(t *testing.T) {
	store := newTestStore(t)
	f := seed(t, store)
	ctx := context.Background()

	day := loyalty.NewDate(2025, time.January, 10)
	p, err := store.SavePurchase(ctx, loyalty.Purchase{
		Description: "p", Amount: dec("10.00"), Points: dec("25.000"),
		PurchaseDate: day, DueDate: loyalty.DueDateFor(day),
		Status: loyalty.StatusPending, CardID: f.card.ID, UserID: f.user.ID,
	})
	require.NoError(t, err)

	require.NoError(t, store.UpdatePurchaseStatus(ctx, p.ID, loyalty.StatusPending, loyalty.StatusCredited))

	err = store.UpdatePurchaseStatus(ctx, p.ID, loyalty.StatusPending, loyalty.StatusCancelled)
	var terr *loyalty.TransitionError
	require.ErrorAs(t, err, &terr)
	assert.Equal(t, loyalty.StatusCredited, terr.From)

	err = store.UpdatePurchaseStatus(ctx, 999, loyalty.StatusPending, loyalty.StatusCredited)
	assert.True(t, loyalty.IsNotFound(err))
}

func TestCards_WithPurchasesCannotBeDeleted(t *testing.T) {
	store := newTestStore(t)
	f := seed(t, store)
	ctx := context.Background()

	day := loyalty.NewDate(2025, time.January, 10)
	_, err := store.SavePurchase(ctx, loyalty.Purchase{
		Description: "p", Amount: dec("1"), Points: dec("2.5"),
		PurchaseDate: day, DueDate: loyalty.DueDateFor(day),
		Status: loyalty.StatusPending, CardID: f.card.ID, UserID: f.user.ID,
	})
	require.NoError(t, err)

	assert.ErrorIs(t, store.DeleteCard(ctx, f.card.ID), loyalty.ErrInUse)
}

// =============================================================================
// NOTIFICATIONS
// =============================================================================

func TestNotifications_ReadFlow(t *testing.T) {
	store := newTestStore(t)
	f := seed(t, store)
	ctx := context.Background()

	first, err := store.CreateNotification(ctx, loyalty.Notification{UserID: f.user.ID, Title: "a", Message: "a"})
	require.NoError(t, err)
	_, err = store.CreateNotification(ctx, loyalty.Notification{UserID: f.user.ID, Title: "b", Message: "b"})
	require.NoError(t, err)

	count, err := store.CountUnreadNotifications(ctx, f.user.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	require.NoError(t, store.MarkNotificationRead(ctx, f.user.ID, first.ID))
	count, _ = store.CountUnreadNotifications(ctx, f.user.ID)
	assert.Equal(t, 1, count)

	// Another user's id is not found
	assert.True(t, loyalty.IsNotFound(store.MarkNotificationRead(ctx, f.user.ID+1, first.ID)))

	require.NoError(t, store.MarkAllNotificationsRead(ctx, f.user.ID))
	count, _ = store.CountUnreadNotifications(ctx, f.user.ID)
	assert.Zero(t, count)

	all, err := store.ListNotifications(ctx, f.user.ID)
	require.NoError(t, err)
	assert.Len(t, all, 2)
	assert.Equal(t, loyalty.NotificationNotice, all[0].Kind)
}

func TestReset(t *testing.T) {
	store := newTestStore(t)
	seed(t, store)
	ctx := context.Background()

	require.NoError(t, store.Reset(ctx))

	u, err := store.FindUserByEmail(ctx, "teste@milhas.com")
	require.NoError(t, err)
	assert.Nil(t, u)

	// IDs restart after a reset
	f := seed(t, store)
	assert.Equal(t, loyalty.UserID(1), f.user.ID)
}
