package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type Balance struct {
	UserID    int64           `json:"user_id"`
	Amount    decimal.Decimal `json:"amount"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// BalanceResponse is the presentation shape of a Balance. Amounts become
// floats only here, at the JSON boundary.
type BalanceResponse struct {
	UserID  int64   `json:"user_id"`
	Balance float64 `json:"balance"`
}

func NewBalanceResponse(b Balance) BalanceResponse {
	return BalanceResponse{
		UserID:  b.UserID,
		Balance: b.Amount.InexactFloat64(),
	}
}

type TransferResponse struct {
	From BalanceResponse `json:"from"`
	To   BalanceResponse `json:"to"`
}
