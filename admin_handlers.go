package main

import (
	"database/sql"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"
)

func requireAdmin(db *sql.DB, w http.ResponseWriter, r *http.Request) (*Account, bool) {
	account, _, err := getSessionAccount(db, r)
	if err != nil || account == nil {
		w.WriteHeader(http.StatusUnauthorized)
		json.NewEncoder(w).Encode(SimpleResponse{OK: false, Error: "UNAUTHORIZED"})
		return nil, false
	}
	if !account.IsAdmin {
		w.WriteHeader(http.StatusForbidden)
		json.NewEncoder(w).Encode(SimpleResponse{OK: false, Error: "FORBIDDEN"})
		return nil, false
	}
	return account, true
}

func adminCreateAccountHandler(db *sql.DB, ledger *Ledger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		admin, ok := requireAdmin(db, w, r)
		if !ok {
			return
		}

		var req CreateAccountRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			json.NewEncoder(w).Encode(SimpleResponse{OK: false, Error: "INVALID_REQUEST"})
			return
		}

		account, err := ledger.CreateAccount(r.Context(), req.Name, req.Password, req.IsAdmin)
		if err != nil {
			writeLedgerError(w, err)
			return
		}

		recordAdminAction(db, admin.AccountID, "account_create", "account", account.AccountID, "", map[string]interface{}{
			"name":    account.Username,
			"isAdmin": account.IsAdmin,
		})

		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(AuthResponse{
			OK:      true,
			Name:    account.Username,
			IsAdmin: account.IsAdmin,
			Tickets: account.Tickets,
			Stars:   account.Stars,
		})
	}
}

func adminDeleteAccountHandler(db *sql.DB, ledger *Ledger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		admin, ok := requireAdmin(db, w, r)
		if !ok {
			return
		}

		accountID := mux.Vars(r)["id"]
		if err := ledger.DeleteAccount(r.Context(), accountID); err != nil {
			writeLedgerError(w, err)
			return
		}

		recordAdminAction(db, admin.AccountID, "account_delete", "account", accountID, "", nil)
		json.NewEncoder(w).Encode(SimpleResponse{OK: true})
	}
}

func adminTicketsHandler(db *sql.DB, ledger *Ledger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		admin, ok := requireAdmin(db, w, r)
		if !ok {
			return
		}

		var req BalanceAdjustRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Delta == 0 {
			w.WriteHeader(http.StatusBadRequest)
			json.NewEncoder(w).Encode(BalanceResponse{OK: false, Error: "INVALID_REQUEST"})
			return
		}

		target, err := ledger.AccountByName(r.Context(), req.Name)
		if err != nil {
			writeLedgerError(w, err)
			return
		}

		tickets, err := ledger.AdjustTickets(r.Context(), target.AccountID, req.Delta)
		if err != nil {
			writeLedgerError(w, err)
			return
		}

		recordAdminAction(db, admin.AccountID, "tickets_adjust", "account", target.AccountID, req.Reason, map[string]interface{}{
			"name":  target.Username,
			"delta": req.Delta,
			"after": tickets,
		})

		json.NewEncoder(w).Encode(BalanceResponse{
			OK:      true,
			Name:    target.Username,
			Tickets: tickets,
			Stars:   target.Stars,
		})
	}
}

func adminStarsHandler(db *sql.DB, ledger *Ledger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		admin, ok := requireAdmin(db, w, r)
		if !ok {
			return
		}

		var req BalanceAdjustRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Delta == 0 {
			w.WriteHeader(http.StatusBadRequest)
			json.NewEncoder(w).Encode(BalanceResponse{OK: false, Error: "INVALID_REQUEST"})
			return
		}

		target, err := ledger.AccountByName(r.Context(), req.Name)
		if err != nil {
			writeLedgerError(w, err)
			return
		}

		result, err := ledger.AdjustStars(r.Context(), target.AccountID, req.Delta)
		if err != nil {
			writeLedgerError(w, err)
			return
		}

		recordAdminAction(db, admin.AccountID, "stars_adjust", "account", target.AccountID, req.Reason, map[string]interface{}{
			"name":      target.Username,
			"delta":     req.Delta,
			"stars":     result.Stars,
			"tickets":   result.Tickets,
			"converted": result.Converted,
		})

		json.NewEncoder(w).Encode(BalanceResponse{
			OK:        true,
			Name:      target.Username,
			Tickets:   result.Tickets,
			Stars:     result.Stars,
			Converted: result.Converted,
		})
	}
}

func adminPasswordResetHandler(db *sql.DB, ledger *Ledger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		admin, ok := requireAdmin(db, w, r)
		if !ok {
			return
		}

		var req PasswordResetRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			json.NewEncoder(w).Encode(SimpleResponse{OK: false, Error: "INVALID_REQUEST"})
			return
		}

		target, err := ledger.AccountByName(r.Context(), req.Name)
		if err != nil {
			writeLedgerError(w, err)
			return
		}

		if err := ledger.ResetCredential(r.Context(), target.AccountID, req.NewPassword); err != nil {
			writeLedgerError(w, err)
			return
		}

		recordAdminAction(db, admin.AccountID, "password_reset", "account", target.AccountID, "", map[string]interface{}{
			"name": target.Username,
		})

		json.NewEncoder(w).Encode(SimpleResponse{OK: true})
	}
}

func adminSettingsHandler(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		admin, ok := requireAdmin(db, w, r)
		if !ok {
			return
		}

		if r.Method == http.MethodGet {
			json.NewEncoder(w).Encode(SettingsResponse{OK: true, Settings: GetLedgerSettings()})
			return
		}

		var req SettingsUpdateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			json.NewEncoder(w).Encode(SettingsResponse{OK: false, Error: "INVALID_REQUEST"})
			return
		}

		updates := map[string]string{}
		if req.StarThreshold != nil {
			updates["star_threshold"] = strconv.FormatInt(*req.StarThreshold, 10)
		}
		if req.ConversionPolicy != nil {
			updates["conversion_policy"] = strings.ToLower(strings.TrimSpace(*req.ConversionPolicy))
		}
		if req.SpinWinPercent != nil {
			updates["spin_win_percent"] = strconv.Itoa(*req.SpinWinPercent)
		}
		if req.StarterTickets != nil {
			updates["starter_tickets"] = strconv.FormatInt(*req.StarterTickets, 10)
		}

		settings, err := UpdateLedgerSettings(db, updates)
		if err != nil {
			writeLedgerError(w, err)
			return
		}

		recordAdminAction(db, admin.AccountID, "settings_update", "settings", "global", "", map[string]interface{}{
			"updates": updates,
		})

		json.NewEncoder(w).Encode(SettingsResponse{OK: true, Settings: settings})
	}
}

func adminSpinLogHandler(db *sql.DB, ledger *Ledger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, ok := requireAdmin(db, w, r); !ok {
			return
		}

		limit := 100
		if v, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil {
			limit = v
		}

		accountID := ""
		if name := strings.TrimSpace(r.URL.Query().Get("name")); name != "" {
			target, err := ledger.AccountByName(r.Context(), name)
			if err != nil {
				writeLedgerError(w, err)
				return
			}
			accountID = target.AccountID
		}

		spins, err := listSpins(db, accountID, limit)
		if err != nil {
			writeLedgerError(w, err)
			return
		}

		json.NewEncoder(w).Encode(SpinLogResponse{OK: true, Spins: spins})
	}
}

func adminAuditLogHandler(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, ok := requireAdmin(db, w, r); !ok {
			return
		}

		limit := 100
		if v, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil {
			limit = v
		}

		entries, err := listAuditLog(db, limit)
		if err != nil {
			writeLedgerError(w, err)
			return
		}

		json.NewEncoder(w).Encode(AuditLogResponse{OK: true, Entries: entries})
	}
}
