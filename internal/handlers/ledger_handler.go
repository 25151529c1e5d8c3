package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"github.com/dartanool/user-balance-api/internal/ledger"
	"github.com/dartanool/user-balance-api/internal/middleware"
	"github.com/dartanool/user-balance-api/internal/models"
)

type LedgerHandler struct {
	engine *ledger.Engine
	logger zerolog.Logger
}

func NewLedgerHandler(engine *ledger.Engine, logger zerolog.Logger) *LedgerHandler {
	return &LedgerHandler{engine: engine, logger: logger}
}

func (h *LedgerHandler) Deposit(w http.ResponseWriter, r *http.Request) {
	var req models.DepositRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid_request", "Invalid request body")
		return
	}
	if !req.Amount.IsPositive() {
		respondWithError(w, http.StatusBadRequest, "invalid_amount", "Amount must be greater than zero")
		return
	}

	balance, err := h.engine.Deposit(r.Context(), req.UserID, req.Amount, req.Comment)
	if err != nil {
		h.writeLedgerError(w, err)
		return
	}
	h.auditCaller(r, "deposit", req.UserID)
	respondWithJSON(w, http.StatusOK, models.NewBalanceResponse(balance))
}

func (h *LedgerHandler) Withdraw(w http.ResponseWriter, r *http.Request) {
	var req models.WithdrawRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid_request", "Invalid request body")
		return
	}
	if !req.Amount.IsPositive() {
		respondWithError(w, http.StatusBadRequest, "invalid_amount", "Amount must be greater than zero")
		return
	}

	balance, err := h.engine.Withdraw(r.Context(), req.UserID, req.Amount, req.Comment)
	if err != nil {
		h.writeLedgerError(w, err)
		return
	}
	h.auditCaller(r, "withdraw", req.UserID)
	respondWithJSON(w, http.StatusOK, models.NewBalanceResponse(balance))
}

func (h *LedgerHandler) Transfer(w http.ResponseWriter, r *http.Request) {
	var req models.TransferRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid_request", "Invalid request body")
		return
	}
	if !req.Amount.IsPositive() {
		respondWithError(w, http.StatusBadRequest, "invalid_amount", "Amount must be greater than zero")
		return
	}

	result, err := h.engine.Transfer(r.Context(), req.FromUserID, req.ToUserID, req.Amount, req.Comment)
	if err != nil {
		h.writeLedgerError(w, err)
		return
	}
	h.auditCaller(r, "transfer", req.FromUserID)
	respondWithJSON(w, http.StatusOK, models.TransferResponse{
		From: models.NewBalanceResponse(result.From),
		To:   models.NewBalanceResponse(result.To),
	})
}

func (h *LedgerHandler) GetBalance(w http.ResponseWriter, r *http.Request) {
	userID, ok := parseUserID(w, r)
	if !ok {
		return
	}

	balance, err := h.engine.Balance(r.Context(), userID)
	if err != nil {
		h.writeLedgerError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, models.NewBalanceResponse(balance))
}

func (h *LedgerHandler) GetTransactions(w http.ResponseWriter, r *http.Request) {
	userID, ok := parseUserID(w, r)
	if !ok {
		return
	}

	limit := 50
	offset := 0
	if s := r.URL.Query().Get("limit"); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n > 0 {
			limit = n
		}
	}
	if s := r.URL.Query().Get("offset"); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n >= 0 {
			offset = n
		}
	}

	trans, err := h.engine.Transactions(r.Context(), userID, limit, offset)
	if err != nil {
		h.writeLedgerError(w, err)
		return
	}
	if trans == nil {
		trans = []models.Transaction{}
	}
	respondWithJSON(w, http.StatusOK, trans)
}

// writeLedgerError maps engine error kinds onto HTTP statuses. Business
// outcomes (not found, insufficient funds) are never reported as 5xx.
func (h *LedgerHandler) writeLedgerError(w http.ResponseWriter, err error) {
	var insufficient *ledger.InsufficientFundsError
	switch {
	case errors.Is(err, ledger.ErrAccountNotFound):
		respondWithError(w, http.StatusNotFound, "user_not_found", "User not found")
	case errors.Is(err, ledger.ErrInvalidAmount):
		respondWithError(w, http.StatusBadRequest, "invalid_amount", "Amount must be greater than zero")
	case errors.Is(err, ledger.ErrSameAccount):
		respondWithError(w, http.StatusBadRequest, "same_account", "Cannot transfer to the same account")
	case errors.As(err, &insufficient):
		respondWithError(w, http.StatusConflict, "insufficient_funds", insufficient.Error())
	case errors.Is(err, ledger.ErrInsufficientFunds):
		respondWithError(w, http.StatusConflict, "insufficient_funds", "Insufficient funds")
	case errors.Is(err, ledger.ErrBusy):
		respondWithError(w, http.StatusServiceUnavailable, "busy", "Operation timed out, try again")
	default:
		h.logger.Error().Err(err).Msg("Ledger operation failed")
		respondWithError(w, http.StatusInternalServerError, "internal_error", "An internal error occurred")
	}
}

// auditCaller ties the mutation to the authenticated caller in the logs.
func (h *LedgerHandler) auditCaller(r *http.Request, operation string, userID int64) {
	if callerID, ok := middleware.GetUserID(r); ok {
		h.logger.Debug().
			Int64("caller_id", callerID).
			Int64("user_id", userID).
			Str("operation", operation).
			Msg("Ledger operation by authenticated caller")
	}
}

func parseUserID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	userID, err := strconv.ParseInt(mux.Vars(r)["user_id"], 10, 64)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid_user_id", "user_id must be an integer")
		return 0, false
	}
	return userID, true
}
