package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/gorilla/mux"
	_ "github.com/lib/pq"
)

/* ======================
   Request / Response Types
   ====================== */

type LoginRequest struct {
	Name     string `json:"name"`
	Password string `json:"password"`
}

type AuthResponse struct {
	OK      bool   `json:"ok"`
	Error   string `json:"error,omitempty"`
	Name    string `json:"name,omitempty"`
	IsAdmin bool   `json:"isAdmin,omitempty"`
	Tickets int64  `json:"tickets"`
	Stars   int64  `json:"stars"`
}

type SpinRequest struct {
	Name string `json:"name"`
}

type SpinResponse struct {
	OK               bool   `json:"ok"`
	Error            string `json:"error,omitempty"`
	Won              bool   `json:"won"`
	TicketsRemaining int64  `json:"ticketsRemaining"`
}

type CreateAccountRequest struct {
	Name     string `json:"name"`
	Password string `json:"password"`
	IsAdmin  bool   `json:"isAdmin,omitempty"`
}

type BalanceAdjustRequest struct {
	Name   string `json:"name"`
	Delta  int64  `json:"delta"`
	Reason string `json:"reason,omitempty"`
}

type BalanceResponse struct {
	OK        bool   `json:"ok"`
	Error     string `json:"error,omitempty"`
	Name      string `json:"name,omitempty"`
	Tickets   int64  `json:"tickets"`
	Stars     int64  `json:"stars"`
	Converted bool   `json:"converted,omitempty"`
}

type PasswordResetRequest struct {
	Name        string `json:"name"`
	NewPassword string `json:"newPassword"`
}

type AccountsResponse struct {
	OK       bool             `json:"ok"`
	Error    string           `json:"error,omitempty"`
	Total    int              `json:"total"`
	Page     int              `json:"page"`
	PageSize int              `json:"pageSize"`
	Accounts []AccountSummary `json:"accounts"`
}

type SettingsUpdateRequest struct {
	StarThreshold    *int64  `json:"starThreshold,omitempty"`
	ConversionPolicy *string `json:"conversionPolicy,omitempty"`
	SpinWinPercent   *int    `json:"spinWinPercent,omitempty"`
	StarterTickets   *int64  `json:"starterTickets,omitempty"`
}

type SettingsResponse struct {
	OK       bool           `json:"ok"`
	Error    string         `json:"error,omitempty"`
	Settings LedgerSettings `json:"settings"`
}

type SpinLogResponse struct {
	OK    bool           `json:"ok"`
	Error string         `json:"error,omitempty"`
	Spins []SpinLogEntry `json:"spins"`
}

type AuditLogResponse struct {
	OK      bool            `json:"ok"`
	Error   string          `json:"error,omitempty"`
	Entries []AuditLogEntry `json:"entries"`
}

type SimpleResponse struct {
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

/* ======================
   main()
   ====================== */

func main() {
	env := os.Getenv("APP_ENV")
	if env == "" {
		env = "local"
	}
	log.Println("App environment:", env)

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		log.Fatal("DATABASE_URL is not set")
	}

	db, err := sql.Open("postgres", dbURL)
	if err != nil {
		log.Fatal("failed to open database:", err)
	}
	db.SetMaxOpenConns(5)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.Ping(); err != nil {
		log.Fatal("failed to ping database:", err)
	}
	log.Println("Connected to PostgreSQL")

	if err := ensureSchema(db); err != nil {
		log.Fatal("Failed to ensure schema:", err)
	}

	ctx := context.Background()
	lockConn, acquired, err := acquireStartupLock(ctx, db)
	if err != nil {
		log.Fatal("Failed to acquire startup lock:", err)
	}
	if acquired {
		startupLockConn = lockConn
		log.Println("Startup lock acquired; running leader-only initialization")
		if err := ensureAdminAccount(ctx, db); err != nil {
			log.Fatal("Admin bootstrap failed:", err)
		}
		startSessionPruner(db)
	} else {
		log.Println("Startup lock held by another instance; skipping leader-only initialization")
	}

	if err := LoadLedgerSettings(db); err != nil {
		log.Println("Failed to load ledger settings:", err)
	}

	ledger := NewLedger(db)

	router := mux.NewRouter()
	registerRoutes(router, db, ledger)

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	addr := "0.0.0.0:" + port
	log.Println("Listening on", addr)
	if err := http.ListenAndServe(addr, router); err != nil {
		log.Fatal("server failed:", err)
	}
}

/* ======================
   Routes
   ====================== */

func registerRoutes(router *mux.Router, db *sql.DB, ledger *Ledger) {
	router.HandleFunc("/health", healthHandler(db)).Methods(http.MethodGet)

	router.HandleFunc("/api/login", loginHandler(db)).Methods(http.MethodPost)
	router.HandleFunc("/api/logout", logoutHandler(db)).Methods(http.MethodPost)
	router.HandleFunc("/api/me", meHandler(db)).Methods(http.MethodGet)
	router.HandleFunc("/api/spin", spinHandler(db, ledger)).Methods(http.MethodPost)
	router.HandleFunc("/api/accounts", accountsHandler(db, ledger)).Methods(http.MethodGet)

	router.HandleFunc("/api/admin/accounts", adminCreateAccountHandler(db, ledger)).Methods(http.MethodPost)
	router.HandleFunc("/api/admin/accounts/{id}", adminDeleteAccountHandler(db, ledger)).Methods(http.MethodDelete)
	router.HandleFunc("/api/admin/tickets", adminTicketsHandler(db, ledger)).Methods(http.MethodPost)
	router.HandleFunc("/api/admin/stars", adminStarsHandler(db, ledger)).Methods(http.MethodPost)
	router.HandleFunc("/api/admin/password-reset", adminPasswordResetHandler(db, ledger)).Methods(http.MethodPost)
	router.HandleFunc("/api/admin/settings", adminSettingsHandler(db)).Methods(http.MethodGet, http.MethodPost)
	router.HandleFunc("/api/admin/spins", adminSpinLogHandler(db, ledger)).Methods(http.MethodGet)
	router.HandleFunc("/api/admin/audit-log", adminAuditLogHandler(db)).Methods(http.MethodGet)
}
