package ledger

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

var (
	// ErrInvalidAmount is returned for zero or negative amounts. The
	// boundary layer validates amounts too; the engine re-asserts it.
	ErrInvalidAmount = errors.New("amount must be positive")

	// ErrAccountNotFound is returned when a referenced user does not exist.
	ErrAccountNotFound = errors.New("account not found")

	// ErrInsufficientFunds is returned when a debit would take a balance
	// below zero. Use errors.As with *InsufficientFundsError for details.
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrSameAccount is returned when a transfer names one account twice.
	ErrSameAccount = errors.New("cannot transfer to the same account")

	// ErrBusy is returned when the store could not acquire a row lock in
	// time. The operation had no effect and is safe to retry.
	ErrBusy = errors.New("ledger busy, try again")
)

// InsufficientFundsError reports the balance that made a debit impossible.
type InsufficientFundsError struct {
	UserID    int64
	Balance   decimal.Decimal
	Requested decimal.Decimal
}

func (e *InsufficientFundsError) Error() string {
	return fmt.Sprintf("insufficient funds: user %d has %s, requested %s",
		e.UserID, e.Balance.String(), e.Requested.String())
}

func (e *InsufficientFundsError) Is(target error) bool {
	return target == ErrInsufficientFunds
}
