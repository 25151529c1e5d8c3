package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type TransactionType string

const (
	TransactionTypeDeposit     TransactionType = "deposit"
	TransactionTypeWithdraw    TransactionType = "withdraw"
	TransactionTypeTransferOut TransactionType = "transfer_out"
	TransactionTypeTransferIn  TransactionType = "transfer_in"
)

// Transaction is one immutable entry of the audit trail. Records are only
// ever appended, never updated or deleted. TransferID links the
// transfer_out/transfer_in pair produced by a single transfer.
type Transaction struct {
	ID         int64           `json:"id"`
	UserID     int64           `json:"user_id"`
	Type       TransactionType `json:"type"`
	Amount     decimal.Decimal `json:"amount"`
	Comment    string          `json:"comment,omitempty"`
	TransferID string          `json:"transfer_id,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
}

type DepositRequest struct {
	UserID  int64           `json:"user_id"`
	Amount  decimal.Decimal `json:"amount"`
	Comment string          `json:"comment"`
}

type WithdrawRequest struct {
	UserID  int64           `json:"user_id"`
	Amount  decimal.Decimal `json:"amount"`
	Comment string          `json:"comment"`
}

type TransferRequest struct {
	FromUserID int64           `json:"from_user_id"`
	ToUserID   int64           `json:"to_user_id"`
	Amount     decimal.Decimal `json:"amount"`
	Comment    string          `json:"comment"`
}
