package ledger_test

import (
	"context"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dartanool/user-balance-api/internal/events"
	"github.com/dartanool/user-balance-api/internal/ledger"
	"github.com/dartanool/user-balance-api/internal/models"
	"github.com/dartanool/user-balance-api/internal/storage/memory"
)

func newTestEngine(userIDs ...int64) (*ledger.Engine, *memory.Store) {
	store := memory.NewStore()
	directory := memory.NewDirectory(userIDs...)
	engine := ledger.NewEngine(store, directory, events.NopPublisher{}, zerolog.Nop())
	return engine, store
}

func amount(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func userRecords(t *testing.T, store *memory.Store, userID int64) []models.Transaction {
	t.Helper()
	trans, err := store.TransactionsByUser(context.Background(), userID, 0, 0)
	require.NoError(t, err)
	return trans
}

func TestDepositCreatesBalanceAndRecord(t *testing.T) {
	engine, store := newTestEngine(1)

	balance, err := engine.Deposit(context.Background(), 1, amount("500.00"), "card top-up")
	require.NoError(t, err)
	assert.Equal(t, int64(1), balance.UserID)
	assert.True(t, balance.Amount.Equal(amount("500.00")))

	recs := userRecords(t, store, 1)
	require.Len(t, recs, 1)
	assert.Equal(t, models.TransactionTypeDeposit, recs[0].Type)
	assert.True(t, recs[0].Amount.Equal(amount("500.00")))
	assert.Equal(t, "card top-up", recs[0].Comment)
	assert.Empty(t, recs[0].TransferID)
}

func TestDepositIsNotIdempotent(t *testing.T) {
	engine, store := newTestEngine(1)

	_, err := engine.Deposit(context.Background(), 1, amount("100.00"), "")
	require.NoError(t, err)
	balance, err := engine.Deposit(context.Background(), 1, amount("100.00"), "")
	require.NoError(t, err)

	assert.True(t, balance.Amount.Equal(amount("200.00")))
	assert.Len(t, userRecords(t, store, 1), 2)
}

func TestDepositUnknownAccount(t *testing.T) {
	engine, store := newTestEngine(1)

	_, err := engine.Deposit(context.Background(), 99, amount("10.00"), "")
	assert.ErrorIs(t, err, ledger.ErrAccountNotFound)
	assert.Empty(t, userRecords(t, store, 99))
}

func TestDepositInvalidAmount(t *testing.T) {
	engine, _ := newTestEngine(1)

	for _, a := range []string{"0", "-5.00"} {
		_, err := engine.Deposit(context.Background(), 1, amount(a), "")
		assert.ErrorIs(t, err, ledger.ErrInvalidAmount, "amount %s", a)
	}
}

func TestWithdrawDecreasesBalanceAndRecords(t *testing.T) {
	engine, store := newTestEngine(1)

	_, err := engine.Deposit(context.Background(), 1, amount("500.00"), "")
	require.NoError(t, err)

	balance, err := engine.Withdraw(context.Background(), 1, amount("200.00"), "subscription")
	require.NoError(t, err)
	assert.True(t, balance.Amount.Equal(amount("300.00")))

	recs := userRecords(t, store, 1)
	require.Len(t, recs, 2)
	// newest first
	assert.Equal(t, models.TransactionTypeWithdraw, recs[0].Type)
	assert.True(t, recs[0].Amount.Equal(amount("200.00")))
	assert.Equal(t, "subscription", recs[0].Comment)
}

func TestWithdrawInsufficientFunds(t *testing.T) {
	engine, store := newTestEngine(1)

	_, err := engine.Deposit(context.Background(), 1, amount("100.00"), "")
	require.NoError(t, err)

	_, err = engine.Withdraw(context.Background(), 1, amount("150.00"), "")
	require.ErrorIs(t, err, ledger.ErrInsufficientFunds)

	var detail *ledger.InsufficientFundsError
	require.ErrorAs(t, err, &detail)
	assert.Equal(t, int64(1), detail.UserID)
	assert.True(t, detail.Balance.Equal(amount("100.00")))
	assert.True(t, detail.Requested.Equal(amount("150.00")))

	// failed withdrawal leaves balance and log untouched
	balance, err := engine.Balance(context.Background(), 1)
	require.NoError(t, err)
	assert.True(t, balance.Amount.Equal(amount("100.00")))
	assert.Len(t, userRecords(t, store, 1), 1)
}

func TestWithdrawExactBalance(t *testing.T) {
	engine, _ := newTestEngine(1)

	_, err := engine.Deposit(context.Background(), 1, amount("250.00"), "")
	require.NoError(t, err)

	balance, err := engine.Withdraw(context.Background(), 1, amount("250.00"), "")
	require.NoError(t, err)
	assert.True(t, balance.Amount.IsZero())
}

func TestWithdrawFromUninitializedBalance(t *testing.T) {
	engine, store := newTestEngine(1)

	_, err := engine.Withdraw(context.Background(), 1, amount("0.01"), "")
	require.ErrorIs(t, err, ledger.ErrInsufficientFunds)
	assert.Empty(t, userRecords(t, store, 1))
}

func TestTransferMovesFunds(t *testing.T) {
	engine, store := newTestEngine(1, 2)

	_, err := engine.Deposit(context.Background(), 1, amount("300.00"), "")
	require.NoError(t, err)

	result, err := engine.Transfer(context.Background(), 1, 2, amount("150.00"), "for lunch")
	require.NoError(t, err)
	assert.True(t, result.From.Amount.Equal(amount("150.00")))
	assert.True(t, result.To.Amount.Equal(amount("150.00")))

	fromRecs := userRecords(t, store, 1)
	require.Len(t, fromRecs, 2)
	assert.Equal(t, models.TransactionTypeTransferOut, fromRecs[0].Type)
	assert.True(t, fromRecs[0].Amount.Equal(amount("150.00")))

	toRecs := userRecords(t, store, 2)
	require.Len(t, toRecs, 1)
	assert.Equal(t, models.TransactionTypeTransferIn, toRecs[0].Type)
	assert.True(t, toRecs[0].Amount.Equal(amount("150.00")))

	// both halves share one correlation id
	require.NotEmpty(t, fromRecs[0].TransferID)
	assert.Equal(t, fromRecs[0].TransferID, toRecs[0].TransferID)
}

func TestTransferInsufficientFunds(t *testing.T) {
	engine, store := newTestEngine(1, 2)

	_, err := engine.Deposit(context.Background(), 1, amount("100.00"), "")
	require.NoError(t, err)
	_, err = engine.Deposit(context.Background(), 2, amount("40.00"), "")
	require.NoError(t, err)

	_, err = engine.Transfer(context.Background(), 1, 2, amount("150.00"), "")
	require.ErrorIs(t, err, ledger.ErrInsufficientFunds)

	fromBalance, err := engine.Balance(context.Background(), 1)
	require.NoError(t, err)
	toBalance, err := engine.Balance(context.Background(), 2)
	require.NoError(t, err)
	assert.True(t, fromBalance.Amount.Equal(amount("100.00")))
	assert.True(t, toBalance.Amount.Equal(amount("40.00")))

	// no transfer records on either side
	assert.Len(t, userRecords(t, store, 1), 1)
	assert.Len(t, userRecords(t, store, 2), 1)
}

func TestTransferToSelf(t *testing.T) {
	engine, _ := newTestEngine(1)

	_, err := engine.Transfer(context.Background(), 1, 1, amount("10.00"), "")
	assert.ErrorIs(t, err, ledger.ErrSameAccount)
}

func TestTransferUnknownParticipant(t *testing.T) {
	engine, _ := newTestEngine(1)

	_, err := engine.Transfer(context.Background(), 1, 99, amount("10.00"), "")
	assert.ErrorIs(t, err, ledger.ErrAccountNotFound)

	_, err = engine.Transfer(context.Background(), 99, 1, amount("10.00"), "")
	assert.ErrorIs(t, err, ledger.ErrAccountNotFound)
}

func TestBalanceUninitializedIsZero(t *testing.T) {
	engine, _ := newTestEngine(1)

	balance, err := engine.Balance(context.Background(), 1)
	require.NoError(t, err)
	assert.True(t, balance.Amount.IsZero())
}

func TestBalanceUnknownAccount(t *testing.T) {
	engine, _ := newTestEngine(1)

	_, err := engine.Balance(context.Background(), 99)
	assert.ErrorIs(t, err, ledger.ErrAccountNotFound)
}

func TestTransactionsPagination(t *testing.T) {
	engine, _ := newTestEngine(1)

	for i := 0; i < 5; i++ {
		_, err := engine.Deposit(context.Background(), 1, amount("10.00"), "")
		require.NoError(t, err)
	}

	page, err := engine.Transactions(context.Background(), 1, 2, 0)
	require.NoError(t, err)
	assert.Len(t, page, 2)

	rest, err := engine.Transactions(context.Background(), 1, 10, 4)
	require.NoError(t, err)
	assert.Len(t, rest, 1)

	_, err = engine.Transactions(context.Background(), 99, 10, 0)
	assert.ErrorIs(t, err, ledger.ErrAccountNotFound)
}

// Exactly floor(B/a) of N concurrent withdrawals of a against balance B may
// succeed, whatever the interleaving.
func TestConcurrentWithdrawals(t *testing.T) {
	engine, store := newTestEngine(1)

	_, err := engine.Deposit(context.Background(), 1, amount("100.00"), "")
	require.NoError(t, err)

	const workers = 20
	withdrawal := amount("30.00")

	var wg sync.WaitGroup
	results := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := engine.Withdraw(context.Background(), 1, withdrawal, "")
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	succeeded := 0
	for err := range results {
		if err == nil {
			succeeded++
			continue
		}
		require.ErrorIs(t, err, ledger.ErrInsufficientFunds)
	}

	assert.Equal(t, 3, succeeded) // floor(100/30)
	balance, err := engine.Balance(context.Background(), 1)
	require.NoError(t, err)
	assert.True(t, balance.Amount.Equal(amount("10.00")), "final balance %s", balance.Amount)

	// one deposit plus one record per successful withdrawal
	assert.Len(t, userRecords(t, store, 1), 1+succeeded)
}

// Opposite-direction transfers between the same pair must not deadlock and
// must conserve the pair's total.
func TestConcurrentOppositeTransfers(t *testing.T) {
	engine, _ := newTestEngine(1, 2)

	_, err := engine.Deposit(context.Background(), 1, amount("1000.00"), "")
	require.NoError(t, err)
	_, err = engine.Deposit(context.Background(), 2, amount("1000.00"), "")
	require.NoError(t, err)

	const rounds = 50
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < rounds; i++ {
			_, err := engine.Transfer(context.Background(), 1, 2, amount("1.00"), "")
			assert.NoError(t, err)
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < rounds; i++ {
			_, err := engine.Transfer(context.Background(), 2, 1, amount("1.00"), "")
			assert.NoError(t, err)
		}
	}()
	wg.Wait()

	first, err := engine.Balance(context.Background(), 1)
	require.NoError(t, err)
	second, err := engine.Balance(context.Background(), 2)
	require.NoError(t, err)
	assert.True(t, first.Amount.Add(second.Amount).Equal(amount("2000.00")))
}

// Disjoint users are fully independent: parallel deposits never interfere.
func TestConcurrentDepositsDisjointUsers(t *testing.T) {
	engine, _ := newTestEngine(1, 2, 3, 4)

	const perUser = 10
	var wg sync.WaitGroup
	for id := int64(1); id <= 4; id++ {
		wg.Add(1)
		go func(userID int64) {
			defer wg.Done()
			for i := 0; i < perUser; i++ {
				_, err := engine.Deposit(context.Background(), userID, amount("5.00"), "")
				assert.NoError(t, err)
			}
		}(id)
	}
	wg.Wait()

	for id := int64(1); id <= 4; id++ {
		balance, err := engine.Balance(context.Background(), id)
		require.NoError(t, err)
		assert.True(t, balance.Amount.Equal(amount("50.00")))
	}
}

type capturePublisher struct {
	mu     sync.Mutex
	events []events.TransactionCompleted
}

func (p *capturePublisher) Publish(topic string, event any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event.(events.TransactionCompleted))
	return nil
}

func TestEventsPublishedAfterCommit(t *testing.T) {
	store := memory.NewStore()
	publisher := &capturePublisher{}
	engine := ledger.NewEngine(store, memory.NewDirectory(1, 2), publisher, zerolog.Nop())

	_, err := engine.Deposit(context.Background(), 1, amount("20.00"), "")
	require.NoError(t, err)
	_, err = engine.Transfer(context.Background(), 1, 2, amount("5.00"), "")
	require.NoError(t, err)

	require.Len(t, publisher.events, 3)
	assert.Equal(t, string(models.TransactionTypeDeposit), publisher.events[0].Type)
	assert.Equal(t, string(models.TransactionTypeTransferOut), publisher.events[1].Type)
	assert.Equal(t, string(models.TransactionTypeTransferIn), publisher.events[2].Type)
	assert.Equal(t, publisher.events[1].TransferID, publisher.events[2].TransferID)
}

func TestFailedOperationPublishesNothing(t *testing.T) {
	store := memory.NewStore()
	publisher := &capturePublisher{}
	engine := ledger.NewEngine(store, memory.NewDirectory(1), publisher, zerolog.Nop())

	_, err := engine.Withdraw(context.Background(), 1, amount("10.00"), "")
	require.ErrorIs(t, err, ledger.ErrInsufficientFunds)
	assert.Empty(t, publisher.events)
}
