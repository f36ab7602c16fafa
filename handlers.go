package main

import (
	"database/sql"
	"encoding/json"
	"errors"
	"log"
	"net"
	"net/http"
	"strconv"
	"strings"
)

// writeLedgerError maps the ledger's typed errors onto HTTP statuses. Any
// error outside the taxonomy is a backing-store failure and surfaces as 503.
func writeLedgerError(w http.ResponseWriter, err error) {
	status := http.StatusServiceUnavailable
	code := "UNAVAILABLE"

	switch {
	case errors.Is(err, errNotFound):
		status = http.StatusNotFound
		code = errNotFound.Error()
	case errors.Is(err, errForbidden):
		status = http.StatusForbidden
		code = errForbidden.Error()
	case errors.Is(err, errInsufficientBalance):
		status = http.StatusBadRequest
		code = errInsufficientBalance.Error()
	case errors.Is(err, errConflict):
		status = http.StatusConflict
		code = errConflict.Error()
	case errors.Is(err, errValidation):
		status = http.StatusBadRequest
		code = errValidation.Error()
	default:
		log.Println("ledger store failure:", err)
	}

	w.WriteHeader(status)
	json.NewEncoder(w).Encode(SimpleResponse{OK: false, Error: code})
}

func getClientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		parts := strings.Split(forwarded, ",")
		return strings.TrimSpace(parts[0])
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func healthHandler(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := db.Ping(); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte("db unavailable"))
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	}
}

func loginHandler(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req LoginRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			json.NewEncoder(w).Encode(AuthResponse{OK: false, Error: "INVALID_REQUEST"})
			return
		}

		account, err := authenticate(db, req.Name, req.Password)
		if err != nil {
			w.WriteHeader(http.StatusUnauthorized)
			json.NewEncoder(w).Encode(AuthResponse{OK: false, Error: "INVALID_CREDENTIALS"})
			return
		}

		sessionID, expiresAt, err := createSession(db, account.AccountID)
		if err != nil {
			writeLedgerError(w, err)
			return
		}

		log.Printf("login: name=%s ip=%s", account.Username, getClientIP(r))
		writeSessionCookie(w, sessionID, expiresAt)
		json.NewEncoder(w).Encode(AuthResponse{
			OK:      true,
			Name:    account.Username,
			IsAdmin: account.IsAdmin,
			Tickets: account.Tickets,
			Stars:   account.Stars,
		})
	}
}

func logoutHandler(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, sessionID, err := getSessionAccount(db, r); err == nil {
			clearSession(db, sessionID)
		}
		clearSessionCookie(w)
		json.NewEncoder(w).Encode(SimpleResponse{OK: true})
	}
}

func meHandler(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		account, _, err := getSessionAccount(db, r)
		if err != nil {
			w.WriteHeader(http.StatusUnauthorized)
			json.NewEncoder(w).Encode(AuthResponse{OK: false, Error: "UNAUTHORIZED"})
			return
		}

		json.NewEncoder(w).Encode(AuthResponse{
			OK:      true,
			Name:    account.Username,
			IsAdmin: account.IsAdmin,
			Tickets: account.Tickets,
			Stars:   account.Stars,
		})
	}
}

func spinHandler(db *sql.DB, ledger *Ledger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		account, _, err := getSessionAccount(db, r)
		if err != nil {
			w.WriteHeader(http.StatusUnauthorized)
			json.NewEncoder(w).Encode(SpinResponse{OK: false, Error: "UNAUTHORIZED"})
			return
		}

		var req SpinRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			json.NewEncoder(w).Encode(SpinResponse{OK: false, Error: "INVALID_REQUEST"})
			return
		}

		result, err := ledger.Spin(r.Context(), account, req.Name)
		if err != nil {
			writeLedgerError(w, err)
			return
		}

		json.NewEncoder(w).Encode(SpinResponse{
			OK:               true,
			Won:              result.Won,
			TicketsRemaining: result.TicketsRemaining,
		})
	}
}

func accountsHandler(db *sql.DB, ledger *Ledger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, _, err := getSessionAccount(db, r); err != nil {
			w.WriteHeader(http.StatusUnauthorized)
			json.NewEncoder(w).Encode(AccountsResponse{OK: false, Error: "UNAUTHORIZED"})
			return
		}

		filters := accountFilters{
			IncludeAdmins: r.URL.Query().Get("includeAdmins") == "true",
			Query:         strings.TrimSpace(r.URL.Query().Get("q")),
			Page:          1,
			PageSize:      50,
		}
		if page, err := strconv.Atoi(r.URL.Query().Get("page")); err == nil && page > 0 {
			filters.Page = page
		}
		if size, err := strconv.Atoi(r.URL.Query().Get("pageSize")); err == nil && size > 0 {
			// Clamp here so the echoed pageSize matches what the query used.
			if size > 100 {
				size = 100
			}
			filters.PageSize = size
		}

		accounts, total, err := ledger.ListAccounts(r.Context(), filters)
		if err != nil {
			writeLedgerError(w, err)
			return
		}

		json.NewEncoder(w).Encode(AccountsResponse{
			OK:       true,
			Total:    total,
			Page:     filters.Page,
			PageSize: filters.PageSize,
			Accounts: accounts,
		})
	}
}
