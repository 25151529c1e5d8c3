package router

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/dartanool/user-balance-api/internal/handlers"
	"github.com/dartanool/user-balance-api/internal/ledger"
	"github.com/dartanool/user-balance-api/internal/middleware"
	"github.com/dartanool/user-balance-api/internal/services"
)

func SetupRouter(engine *ledger.Engine, accounts *services.AccountService, auth *services.AuthService, logger zerolog.Logger) *mux.Router {
	authHandler := handlers.NewAuthHandler(accounts, auth, logger)
	ledgerHandler := handlers.NewLedgerHandler(engine, logger)

	r := mux.NewRouter()

	rateLimiter := middleware.NewRateLimiter(rate.Limit(10), 20)

	r.Use(middleware.Recovery(logger))
	r.Use(middleware.RequestLogging(logger))
	r.Use(middleware.SecurityHeaders())
	r.Use(middleware.CORS())
	r.Use(rateLimiter.Middleware())

	api := r.PathPrefix("/api/v1").Subrouter()

	authRoutes := api.PathPrefix("/auth").Subrouter()
	authRoutes.HandleFunc("/register", authHandler.Register).Methods("POST")
	authRoutes.HandleFunc("/login", authHandler.Login).Methods("POST")

	protected := api.PathPrefix("").Subrouter()
	protected.Use(middleware.Authentication(auth, logger))
	protected.Use(middleware.RequestValidation())
	protected.HandleFunc("/deposit", ledgerHandler.Deposit).Methods("POST")
	protected.HandleFunc("/withdraw", ledgerHandler.Withdraw).Methods("POST")
	protected.HandleFunc("/transfer", ledgerHandler.Transfer).Methods("POST")
	protected.HandleFunc("/balance/{user_id}", ledgerHandler.GetBalance).Methods("GET")
	protected.HandleFunc("/transactions/{user_id}", ledgerHandler.GetTransactions).Methods("GET")

	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	}).Methods("GET")

	return r
}
