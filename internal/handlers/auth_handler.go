package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/dartanool/user-balance-api/internal/models"
	"github.com/dartanool/user-balance-api/internal/services"
)

type AuthHandler struct {
	accounts *services.AccountService
	auth     *services.AuthService
	logger   zerolog.Logger
}

func NewAuthHandler(accounts *services.AccountService, auth *services.AuthService, logger zerolog.Logger) *AuthHandler {
	return &AuthHandler{accounts: accounts, auth: auth, logger: logger}
}

func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req models.RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid_request", "Invalid request body")
		return
	}

	user, err := h.accounts.Register(&req)
	if err != nil {
		if errors.Is(err, services.ErrUserExists) {
			respondWithError(w, http.StatusConflict, "user_exists", err.Error())
			return
		}
		h.logger.Error().Err(err).Msg("Registration failed")
		respondWithError(w, http.StatusBadRequest, "registration_failed", err.Error())
		return
	}

	token, err := h.auth.GenerateToken(user.ID, user.Email)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "token_failed", "Failed to generate token")
		return
	}

	respondWithJSON(w, http.StatusCreated, models.AuthResponse{User: user, Token: token})
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req models.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid_request", "Invalid request body")
		return
	}

	user, err := h.accounts.Authenticate(&req)
	if err != nil {
		if errors.Is(err, services.ErrInvalidCredentials) {
			respondWithError(w, http.StatusUnauthorized, "invalid_credentials", "Invalid email or password")
			return
		}
		h.logger.Error().Err(err).Msg("Login failed")
		respondWithError(w, http.StatusInternalServerError, "login_failed", "Login failed")
		return
	}

	token, err := h.auth.GenerateToken(user.ID, user.Email)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "token_failed", "Failed to generate token")
		return
	}

	respondWithJSON(w, http.StatusOK, models.AuthResponse{User: user, Token: token})
}
