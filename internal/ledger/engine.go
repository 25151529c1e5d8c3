// Package ledger implements the balance mutation core: deposits, withdrawals
// and transfers applied under exclusive row locks, with exactly one immutable
// transaction record appended per balance change.
package ledger

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/dartanool/user-balance-api/internal/events"
	"github.com/dartanool/user-balance-api/internal/models"
	"github.com/dartanool/user-balance-api/internal/storage"
)

type Engine struct {
	store     storage.Store
	accounts  storage.Directory
	publisher events.Publisher
	logger    zerolog.Logger
}

func NewEngine(store storage.Store, accounts storage.Directory, publisher events.Publisher, logger zerolog.Logger) *Engine {
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	return &Engine{
		store:     store,
		accounts:  accounts,
		publisher: publisher,
		logger:    logger,
	}
}

// Deposit credits amount to userID, creating the balance row on first use.
func (e *Engine) Deposit(ctx context.Context, userID int64, amount decimal.Decimal, comment string) (models.Balance, error) {
	if !amount.IsPositive() {
		return models.Balance{}, ErrInvalidAmount
	}
	if err := e.checkAccount(ctx, userID); err != nil {
		return models.Balance{}, err
	}

	var updated models.Balance
	var rec models.Transaction
	err := e.store.Update(ctx, func(tx storage.Tx) error {
		balance, found, err := tx.LockBalance(ctx, userID)
		if err != nil {
			return err
		}
		if !found {
			balance = models.Balance{UserID: userID, Amount: decimal.Zero}
		}

		balance.Amount = balance.Amount.Add(amount)
		balance.UpdatedAt = time.Now()
		if err := tx.SaveBalance(ctx, balance); err != nil {
			return err
		}

		rec = models.Transaction{
			UserID:    userID,
			Type:      models.TransactionTypeDeposit,
			Amount:    amount,
			Comment:   comment,
			CreatedAt: balance.UpdatedAt,
		}
		if err := tx.AppendTransaction(ctx, rec); err != nil {
			return err
		}

		updated = balance
		return nil
	})
	if err != nil {
		return models.Balance{}, err
	}

	e.logger.Info().
		Int64("user_id", userID).
		Str("amount", amount.String()).
		Str("balance", updated.Amount.String()).
		Msg("Deposit completed")
	e.publish(rec)

	return updated, nil
}

// Withdraw debits amount from userID. An absent balance row reads as zero,
// so any positive withdrawal against it fails with insufficient funds.
// Withdrawing the exact balance succeeds and leaves zero.
func (e *Engine) Withdraw(ctx context.Context, userID int64, amount decimal.Decimal, comment string) (models.Balance, error) {
	if !amount.IsPositive() {
		return models.Balance{}, ErrInvalidAmount
	}
	if err := e.checkAccount(ctx, userID); err != nil {
		return models.Balance{}, err
	}

	var updated models.Balance
	var rec models.Transaction
	err := e.store.Update(ctx, func(tx storage.Tx) error {
		balance, found, err := tx.LockBalance(ctx, userID)
		if err != nil {
			return err
		}
		if !found {
			balance = models.Balance{UserID: userID, Amount: decimal.Zero}
		}

		// The funds check happens under the same lock as the write so
		// two concurrent withdrawals cannot both pass it.
		if balance.Amount.LessThan(amount) {
			return &InsufficientFundsError{
				UserID:    userID,
				Balance:   balance.Amount,
				Requested: amount,
			}
		}

		balance.Amount = balance.Amount.Sub(amount)
		balance.UpdatedAt = time.Now()
		if err := tx.SaveBalance(ctx, balance); err != nil {
			return err
		}

		rec = models.Transaction{
			UserID:    userID,
			Type:      models.TransactionTypeWithdraw,
			Amount:    amount,
			Comment:   comment,
			CreatedAt: balance.UpdatedAt,
		}
		if err := tx.AppendTransaction(ctx, rec); err != nil {
			return err
		}

		updated = balance
		return nil
	})
	if err != nil {
		return models.Balance{}, err
	}

	e.logger.Info().
		Int64("user_id", userID).
		Str("amount", amount.String()).
		Str("balance", updated.Amount.String()).
		Msg("Withdrawal completed")
	e.publish(rec)

	return updated, nil
}

// TransferResult holds both post-transfer balances.
type TransferResult struct {
	From models.Balance
	To   models.Balance
}

// Transfer moves amount from one user to another. Both rows are locked in
// ascending user-id order regardless of direction, so two opposite transfers
// between the same pair cannot deadlock. The debit, the credit and both
// records commit as one unit.
func (e *Engine) Transfer(ctx context.Context, fromUserID, toUserID int64, amount decimal.Decimal, comment string) (TransferResult, error) {
	if !amount.IsPositive() {
		return TransferResult{}, ErrInvalidAmount
	}
	if fromUserID == toUserID {
		return TransferResult{}, ErrSameAccount
	}
	if err := e.checkAccount(ctx, fromUserID); err != nil {
		return TransferResult{}, err
	}
	if err := e.checkAccount(ctx, toUserID); err != nil {
		return TransferResult{}, err
	}

	transferID := uuid.New().String()

	var result TransferResult
	var recs [2]models.Transaction
	err := e.store.Update(ctx, func(tx storage.Tx) error {
		balances := make(map[int64]models.Balance, 2)
		for _, id := range lockOrder(fromUserID, toUserID) {
			balance, found, err := tx.LockBalance(ctx, id)
			if err != nil {
				return err
			}
			if !found {
				balance = models.Balance{UserID: id, Amount: decimal.Zero}
			}
			balances[id] = balance
		}

		from := balances[fromUserID]
		to := balances[toUserID]
		if from.Amount.LessThan(amount) {
			return &InsufficientFundsError{
				UserID:    fromUserID,
				Balance:   from.Amount,
				Requested: amount,
			}
		}

		now := time.Now()
		from.Amount = from.Amount.Sub(amount)
		from.UpdatedAt = now
		to.Amount = to.Amount.Add(amount)
		to.UpdatedAt = now

		if err := tx.SaveBalance(ctx, from); err != nil {
			return err
		}
		if err := tx.SaveBalance(ctx, to); err != nil {
			return err
		}

		recs[0] = models.Transaction{
			UserID:     fromUserID,
			Type:       models.TransactionTypeTransferOut,
			Amount:     amount,
			Comment:    comment,
			TransferID: transferID,
			CreatedAt:  now,
		}
		recs[1] = models.Transaction{
			UserID:     toUserID,
			Type:       models.TransactionTypeTransferIn,
			Amount:     amount,
			Comment:    comment,
			TransferID: transferID,
			CreatedAt:  now,
		}
		for _, rec := range recs {
			if err := tx.AppendTransaction(ctx, rec); err != nil {
				return err
			}
		}

		result = TransferResult{From: from, To: to}
		return nil
	})
	if err != nil {
		return TransferResult{}, err
	}

	e.logger.Info().
		Int64("from_user_id", fromUserID).
		Int64("to_user_id", toUserID).
		Str("amount", amount.String()).
		Str("transfer_id", transferID).
		Msg("Transfer completed")
	e.publish(recs[0])
	e.publish(recs[1])

	return result, nil
}

// Balance returns the current amount for userID. An absent balance row is a
// valid zero state, not an error.
func (e *Engine) Balance(ctx context.Context, userID int64) (models.Balance, error) {
	if err := e.checkAccount(ctx, userID); err != nil {
		return models.Balance{}, err
	}

	balance, found, err := e.store.Balance(ctx, userID)
	if err != nil {
		return models.Balance{}, err
	}
	if !found {
		return models.Balance{UserID: userID, Amount: decimal.Zero}, nil
	}
	return balance, nil
}

// Transactions lists a user's audit trail, newest first.
func (e *Engine) Transactions(ctx context.Context, userID int64, limit, offset int) ([]models.Transaction, error) {
	if err := e.checkAccount(ctx, userID); err != nil {
		return nil, err
	}
	return e.store.TransactionsByUser(ctx, userID, limit, offset)
}

func (e *Engine) checkAccount(ctx context.Context, userID int64) error {
	exists, err := e.accounts.Exists(ctx, userID)
	if err != nil {
		return err
	}
	if !exists {
		return ErrAccountNotFound
	}
	return nil
}

func lockOrder(a, b int64) [2]int64 {
	if a < b {
		return [2]int64{a, b}
	}
	return [2]int64{b, a}
}

func (e *Engine) publish(rec models.Transaction) {
	event := events.TransactionCompleted{
		UserID:     rec.UserID,
		Type:       string(rec.Type),
		Amount:     rec.Amount,
		TransferID: rec.TransferID,
		OccurredAt: rec.CreatedAt,
	}
	if err := e.publisher.Publish(events.TopicTransactionCompleted, event); err != nil {
		e.logger.Warn().Err(err).Int64("user_id", rec.UserID).Msg("Failed to publish transaction event")
	}
}
