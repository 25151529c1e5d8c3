// Package mysql is the MySQL storage backend. Balance rows are locked with
// SELECT ... FOR UPDATE inside a database transaction, so the funds check
// and the write-back of one atomic unit cannot interleave with another.
package mysql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/go-sql-driver/mysql"
	"github.com/rs/zerolog"

	"github.com/dartanool/user-balance-api/internal/ledger"
	"github.com/dartanool/user-balance-api/internal/models"
	"github.com/dartanool/user-balance-api/internal/storage"
)

// MySQL server error codes for lock wait timeout and deadlock. Both mean
// the transaction was rolled back with no effect and can be retried.
const (
	errLockWaitTimeout = 1205
	errDeadlock        = 1213
)

type Store struct {
	db     *sql.DB
	logger zerolog.Logger
}

func NewStore(db *sql.DB, logger zerolog.Logger) *Store {
	return &Store{db: db, logger: logger}
}

func (s *Store) Update(ctx context.Context, fn func(tx storage.Tx) error) error {
	dbTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		s.logger.Error().Err(err).Msg("Error starting transaction")
		return fmt.Errorf("failed to start transaction: %w", err)
	}
	defer dbTx.Rollback()

	if err := fn(&sqlTx{tx: dbTx}); err != nil {
		return translateErr(err)
	}

	if err := dbTx.Commit(); err != nil {
		s.logger.Error().Err(err).Msg("Error committing transaction")
		return translateErr(fmt.Errorf("failed to commit transaction: %w", err))
	}
	return nil
}

func (s *Store) Balance(ctx context.Context, userID int64) (models.Balance, bool, error) {
	var balance models.Balance
	err := s.db.QueryRowContext(ctx,
		"SELECT user_id, amount, updated_at FROM balances WHERE user_id = ?",
		userID,
	).Scan(&balance.UserID, &balance.Amount, &balance.UpdatedAt)

	if err == sql.ErrNoRows {
		return models.Balance{}, false, nil
	}
	if err != nil {
		s.logger.Error().Err(err).Int64("user_id", userID).Msg("Error fetching balance")
		return models.Balance{}, false, fmt.Errorf("database error: %w", err)
	}
	return balance, true, nil
}

func (s *Store) TransactionsByUser(ctx context.Context, userID int64, limit, offset int) ([]models.Transaction, error) {
	const query = `
		SELECT id, user_id, type, amount, comment, transfer_id, created_at
		FROM transactions
		WHERE user_id = ?
		ORDER BY created_at DESC, id DESC
		LIMIT ? OFFSET ?
	`

	rows, err := s.db.QueryContext(ctx, query, userID, limit, offset)
	if err != nil {
		s.logger.Error().Err(err).Int64("user_id", userID).Msg("Error fetching transactions")
		return nil, fmt.Errorf("database error: %w", err)
	}
	defer rows.Close()

	var trans []models.Transaction
	for rows.Next() {
		var tran models.Transaction
		var comment, transferID sql.NullString

		err := rows.Scan(
			&tran.ID, &tran.UserID, &tran.Type, &tran.Amount,
			&comment, &transferID, &tran.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("error scanning transaction: %w", err)
		}
		tran.Comment = comment.String
		tran.TransferID = transferID.String
		trans = append(trans, tran)
	}
	return trans, rows.Err()
}

type sqlTx struct {
	tx *sql.Tx
}

func (t *sqlTx) LockBalance(ctx context.Context, userID int64) (models.Balance, bool, error) {
	var balance models.Balance
	err := t.tx.QueryRowContext(ctx,
		"SELECT user_id, amount, updated_at FROM balances WHERE user_id = ? FOR UPDATE",
		userID,
	).Scan(&balance.UserID, &balance.Amount, &balance.UpdatedAt)

	if err == sql.ErrNoRows {
		return models.Balance{}, false, nil
	}
	if err != nil {
		return models.Balance{}, false, fmt.Errorf("failed to lock balance: %w", err)
	}
	return balance, true, nil
}

func (t *sqlTx) SaveBalance(ctx context.Context, balance models.Balance) error {
	_, err := t.tx.ExecContext(ctx,
		`INSERT INTO balances (user_id, amount) VALUES (?, ?)
		 ON DUPLICATE KEY UPDATE amount = VALUES(amount)`,
		balance.UserID, balance.Amount,
	)
	if err != nil {
		return fmt.Errorf("failed to save balance: %w", err)
	}
	return nil
}

func (t *sqlTx) AppendTransaction(ctx context.Context, tran models.Transaction) error {
	_, err := t.tx.ExecContext(ctx,
		`INSERT INTO transactions (user_id, type, amount, comment, transfer_id)
		 VALUES (?, ?, ?, NULLIF(?, ''), NULLIF(?, ''))`,
		tran.UserID, string(tran.Type), tran.Amount, tran.Comment, tran.TransferID,
	)
	if err != nil {
		return fmt.Errorf("failed to append transaction: %w", err)
	}
	return nil
}

// translateErr maps retryable MySQL locking failures onto ledger.ErrBusy.
// Business errors from the engine pass through unchanged.
func translateErr(err error) error {
	var mysqlErr *mysql.MySQLError
	if errors.As(err, &mysqlErr) {
		switch mysqlErr.Number {
		case errLockWaitTimeout, errDeadlock:
			return fmt.Errorf("%w: %s", ledger.ErrBusy, mysqlErr.Message)
		}
	}
	return err
}

var _ storage.Store = (*Store)(nil)
