package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/milhas/loyalty-engine/loyalty"
	"github.com/milhas/loyalty-engine/loyalty/store"
)

func TestMemory_UsersByExactEmail(t *testing.T) {
	mem := store.NewMemory()

	u, err := mem.AddUser(loyalty.User{Email: "teste@milhas.com"})
	require.NoError(t, err)
	assert.Equal(t, loyalty.UserID(1), u.ID)

	found, err := mem.FindUserByEmail(context.Background(), "teste@milhas.com")
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, u.ID, found.ID)

	// Case and padding are part of the key
	other, err := mem.FindUserByEmail(context.Background(), " TESTE@milhas.com ")
	assert.NoError(t, err)
	assert.Nil(t, other)

	_, err = mem.AddUser(loyalty.User{Email: "teste@milhas.com"})
	assert.ErrorIs(t, err, loyalty.ErrDuplicate)

	_, err = mem.AddUser(loyalty.User{Email: "TESTE@milhas.com"})
	assert.NoError(t, err)
}

func TestMemory_SequentialPurchaseIDs(t *testing.T) {
	mem := store.NewMemory()
	ctx := context.Background()

	for i := 1; i <= 3; i++ {
		p, err := mem.SavePurchase(ctx, loyalty.Purchase{
			Amount:       decimal.NewFromInt(int64(i)),
			PurchaseDate: loyalty.NewDate(2025, time.May, i),
			Status:       loyalty.StatusPending,
		})
		require.NoError(t, err)
		assert.Equal(t, loyalty.PurchaseID(i), p.ID)
	}

	all, err := mem.ListPurchases(ctx, loyalty.PurchaseFilter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, loyalty.PurchaseID(3), all[0].ID)
}

func TestMemory_ReturnedCopiesAreDetached(t *testing.T) {
	mem := store.NewMemory()
	ctx := context.Background()

	saved, err := mem.SavePurchase(ctx, loyalty.Purchase{Status: loyalty.StatusPending})
	require.NoError(t, err)

	got, err := mem.GetPurchase(ctx, saved.ID)
	require.NoError(t, err)
	got.Status = loyalty.StatusCancelled

	again, _ := mem.GetPurchase(ctx, saved.ID)
	assert.Equal(t, loyalty.StatusPending, again.Status)
}

func TestMemory_UpdateStatus(t *testing.T) {
	mem := store.NewMemory()
	ctx := context.Background()

	p, _ := mem.SavePurchase(ctx, loyalty.Purchase{Status: loyalty.StatusPending})

	require.NoError(t, mem.UpdatePurchaseStatus(ctx, p.ID, loyalty.StatusPending, loyalty.StatusCredited))
	assert.ErrorIs(t,
		mem.UpdatePurchaseStatus(ctx, p.ID, loyalty.StatusPending, loyalty.StatusCancelled),
		loyalty.ErrInvalidTransition)
	assert.True(t, loyalty.IsNotFound(
		mem.UpdatePurchaseStatus(ctx, 42, loyalty.StatusPending, loyalty.StatusCredited)))
}
