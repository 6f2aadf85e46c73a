package ledger_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/joherrer/stocks/internal/database"
	"github.com/joherrer/stocks/internal/ledger"
	"github.com/joherrer/stocks/internal/types"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *ledger.Database {
	t.Helper()
	db, err := database.NewDatabase(database.DriverSQLite, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return ledger.NewDatabase(db)
}

func money(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func assertMoney(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	assert.True(t, money(want).Equal(got), "want %s, got %s", want, got)
}

func TestDatabase_CreateUser(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	_, err := store.CreateUser(ctx, "alice", "hash", money("10000.00"))
	require.NoError(t, err)

	tests := []struct {
		name        string
		username    string
		expectError error
	}{
		{name: "Success", username: "bob"},
		{name: "Duplicate", username: "alice", expectError: types.ErrDuplicateUsername},
		{name: "DuplicateAfterTrim", username: "  alice\t", expectError: types.ErrDuplicateUsername},
		{name: "CaseSensitive", username: "Alice"},
		{name: "Empty", username: "   ", expectError: types.ErrInvalidInput},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			user, err := store.CreateUser(ctx, tt.username, "hash", money("10000.00"))
			if tt.expectError != nil {
				assert.ErrorIs(t, err, tt.expectError)
				assert.Nil(t, user)
				return
			}
			require.NoError(t, err)
			assert.NotZero(t, user.ID)
			assertMoney(t, "10000", user.Cash)
		})
	}

	// no row was added by the rejected attempts
	for _, name := range []string{"alice", "bob", "Alice"} {
		_, err := store.GetUserByUsername(ctx, name)
		assert.NoError(t, err, name)
	}
	_, err = store.GetUser(ctx, 4)
	assert.ErrorIs(t, err, types.ErrNotFound)
}

func TestDatabase_GetUser(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	created, err := store.CreateUser(ctx, " carol ", "secret-hash", money("12.345"))
	require.NoError(t, err)

	user, err := store.GetUser(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "carol", user.Username)
	assert.Equal(t, "secret-hash", user.Hash)
	assertMoney(t, "12.35", user.Cash)

	byName, err := store.GetUserByUsername(ctx, "carol ")
	require.NoError(t, err)
	assert.Equal(t, created.ID, byName.ID)

	_, err = store.GetUser(ctx, 999)
	assert.ErrorIs(t, err, types.ErrNotFound)

	_, err = store.GetUserByUsername(ctx, "nobody")
	assert.ErrorIs(t, err, types.ErrNotFound)
}

func TestDatabase_UpdateCash(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	user, err := store.CreateUser(ctx, "dave", "hash", money("100"))
	require.NoError(t, err)

	require.NoError(t, store.UpdateCash(ctx, user.ID, money("8500.004")))
	got, err := store.GetUser(ctx, user.ID)
	require.NoError(t, err)
	assertMoney(t, "8500.00", got.Cash)

	require.NoError(t, store.UpdateCash(ctx, user.ID, money("0.015")))
	got, err = store.GetUser(ctx, user.ID)
	require.NoError(t, err)
	assertMoney(t, "0.02", got.Cash)

	err = store.UpdateCash(ctx, 999, money("1"))
	assert.ErrorIs(t, err, types.ErrNotFound)
}

func TestDatabase_CashRange(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	user, err := store.CreateUser(ctx, "hank", "hash", money("0.01"))
	require.NoError(t, err)

	tests := []struct {
		name        string
		balance     string
		expectError error
	}{
		{name: "Max", balance: "9999999999999.99"},
		{name: "LargeWithCents", balance: "1234567890123.47"},
		{name: "Zero", balance: "0"},
		{name: "AboveMax", balance: "10000000000000.00", expectError: types.ErrInvalidInput},
		{name: "Exponent", balance: "1e30", expectError: types.ErrInvalidInput},
		{name: "Negative", balance: "-0.01", expectError: types.ErrInvalidInput},
	}

	want := "0.01"
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := store.UpdateCash(ctx, user.ID, money(tt.balance))
			if tt.expectError != nil {
				assert.ErrorIs(t, err, tt.expectError)
			} else {
				require.NoError(t, err)
				want = tt.balance
			}

			// the stored balance reads back to the cent
			got, err := store.GetUser(ctx, user.ID)
			require.NoError(t, err)
			assertMoney(t, want, got.Cash)
		})
	}

	_, err = store.CreateUser(ctx, "ivan", "hash", money("10000000000000"))
	assert.ErrorIs(t, err, types.ErrInvalidInput)
}

func TestDatabase_AppendTransaction(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	now := time.Now().UTC()

	user, err := store.CreateUser(ctx, "erin", "hash", money("100"))
	require.NoError(t, err)

	tests := []struct {
		name        string
		symbol      string
		shares      int64
		price       decimal.Decimal
		expectError bool
	}{
		{name: "Buy", symbol: "AAPL", shares: 10, price: money("150.00")},
		{name: "Sell", symbol: "AAPL", shares: -4, price: money("160.00")},
		{name: "ZeroShares", symbol: "AAPL", shares: 0, price: money("1"), expectError: true},
		{name: "ZeroPrice", symbol: "AAPL", shares: 1, price: decimal.Zero, expectError: true},
		{name: "NegativePrice", symbol: "AAPL", shares: 1, price: money("-1"), expectError: true},
		{name: "EmptySymbol", symbol: "", shares: 1, price: money("1"), expectError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			txn, err := store.AppendTransaction(ctx, user.ID, tt.symbol, tt.shares, tt.price, now)
			if tt.expectError {
				assert.ErrorIs(t, err, types.ErrInvalidInput)
				return
			}
			require.NoError(t, err)
			assert.Regexp(t, `^TXN_[0-9a-f-]{36}$`, txn.Reference)
			assert.Equal(t, tt.shares, txn.Shares)
		})
	}

	txns, err := store.ListTransactions(ctx, user.ID)
	require.NoError(t, err)
	assert.Len(t, txns, 2)
}

func TestDatabase_Holdings(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	now := time.Now().UTC()

	alice, err := store.CreateUser(ctx, "alice", "hash", money("100"))
	require.NoError(t, err)
	bob, err := store.CreateUser(ctx, "bob", "hash", money("100"))
	require.NoError(t, err)

	trades := []struct {
		userID uint
		symbol string
		shares int64
	}{
		{alice.ID, "MSFT", 5},
		{alice.ID, "AAPL", 10},
		{alice.ID, "AAPL", -4},
		{alice.ID, "TSLA", 3},
		{alice.ID, "TSLA", -3},
		{bob.ID, "AAPL", 7},
	}
	for _, tr := range trades {
		_, err := store.AppendTransaction(ctx, tr.userID, tr.symbol, tr.shares, money("10"), now)
		require.NoError(t, err)
	}

	all, err := store.ListHoldings(ctx, alice.ID, false)
	require.NoError(t, err)
	assert.Equal(t, []ledger.Holding{
		{Symbol: "AAPL", Shares: 6},
		{Symbol: "MSFT", Shares: 5},
		{Symbol: "TSLA", Shares: 0},
	}, all)

	positive, err := store.ListHoldings(ctx, alice.ID, true)
	require.NoError(t, err)
	assert.Equal(t, []ledger.Holding{
		{Symbol: "AAPL", Shares: 6},
		{Symbol: "MSFT", Shares: 5},
	}, positive)

	held, err := store.HoldingOf(ctx, alice.ID, "AAPL")
	require.NoError(t, err)
	assert.Equal(t, int64(6), held)

	held, err = store.HoldingOf(ctx, alice.ID, "NFLX")
	require.NoError(t, err)
	assert.Zero(t, held)

	none, err := store.ListHoldings(ctx, 999, true)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestDatabase_ListTransactionsOrder(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	base := time.Date(2024, 1, 2, 15, 0, 0, 0, time.UTC)

	user, err := store.CreateUser(ctx, "frank", "hash", money("100"))
	require.NoError(t, err)

	// inserted out of time order, with a tie at base
	_, err = store.AppendTransaction(ctx, user.ID, "C", 1, money("1"), base.Add(time.Hour))
	require.NoError(t, err)
	_, err = store.AppendTransaction(ctx, user.ID, "A", 1, money("1"), base)
	require.NoError(t, err)
	_, err = store.AppendTransaction(ctx, user.ID, "B", 1, money("1"), base)
	require.NoError(t, err)

	txns, err := store.ListTransactions(ctx, user.ID)
	require.NoError(t, err)
	require.Len(t, txns, 3)
	assert.Equal(t, "A", txns[0].Symbol)
	assert.Equal(t, "B", txns[1].Symbol)
	assert.Equal(t, "C", txns[2].Symbol)
}

func TestDatabase_WithUserLock(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	now := time.Now().UTC()

	user, err := store.CreateUser(ctx, "gina", "hash", money("1000"))
	require.NoError(t, err)

	t.Run("Commit", func(t *testing.T) {
		err := store.WithUserLock(ctx, user.ID, func(tx *ledger.Database, locked *ledger.User) error {
			assertMoney(t, "1000", locked.Cash)
			if err := tx.UpdateCash(ctx, user.ID, locked.Cash.Sub(money("150"))); err != nil {
				return err
			}
			_, err := tx.AppendTransaction(ctx, user.ID, "AAPL", 1, money("150"), now)
			return err
		})
		require.NoError(t, err)

		got, err := store.GetUser(ctx, user.ID)
		require.NoError(t, err)
		assertMoney(t, "850", got.Cash)
	})

	t.Run("RollbackOnError", func(t *testing.T) {
		boom := errors.New("boom")
		err := store.WithUserLock(ctx, user.ID, func(tx *ledger.Database, locked *ledger.User) error {
			if err := tx.UpdateCash(ctx, user.ID, decimal.Zero); err != nil {
				return err
			}
			if _, err := tx.AppendTransaction(ctx, user.ID, "MSFT", 1, money("850"), now); err != nil {
				return err
			}
			return boom
		})
		assert.ErrorIs(t, err, boom)

		got, err := store.GetUser(ctx, user.ID)
		require.NoError(t, err)
		assertMoney(t, "850", got.Cash)

		held, err := store.HoldingOf(ctx, user.ID, "MSFT")
		require.NoError(t, err)
		assert.Zero(t, held)
	})

	t.Run("RetriesTransientOnce", func(t *testing.T) {
		var calls int32
		conflict := &types.StorageError{Op: "test", Err: errors.New("database is locked"), Transient: true}
		err := store.WithUserLock(ctx, user.ID, func(tx *ledger.Database, locked *ledger.User) error {
			if atomic.AddInt32(&calls, 1) == 1 {
				return conflict
			}
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
	})

	t.Run("GivesUpAfterRetry", func(t *testing.T) {
		var calls int32
		conflict := &types.StorageError{Op: "test", Err: errors.New("database is locked"), Transient: true}
		err := store.WithUserLock(ctx, user.ID, func(tx *ledger.Database, locked *ledger.User) error {
			atomic.AddInt32(&calls, 1)
			return conflict
		})
		assert.True(t, types.IsTransient(err))
		assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
	})

	t.Run("UnknownUser", func(t *testing.T) {
		called := false
		err := store.WithUserLock(ctx, 999, func(tx *ledger.Database, locked *ledger.User) error {
			called = true
			return nil
		})
		assert.ErrorIs(t, err, types.ErrNotFound)
		assert.False(t, called)
	})
}
