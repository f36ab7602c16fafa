package main

import (
	"database/sql"
	"encoding/json"
	"log"
	"time"
)

type AuditLogEntry struct {
	ID             int64           `json:"id"`
	AdminAccountID string          `json:"adminAccountId"`
	ActionType     string          `json:"actionType"`
	ScopeType      string          `json:"scopeType"`
	ScopeID        string          `json:"scopeId"`
	Reason         string          `json:"reason,omitempty"`
	Details        json.RawMessage `json:"details,omitempty"`
	CreatedAt      time.Time       `json:"createdAt"`
}

func recordAdminAction(db *sql.DB, adminAccountID string, actionType string, scopeType string, scopeID string, reason string, details map[string]interface{}) {
	payload := ""
	if details != nil {
		encoded, err := json.Marshal(details)
		if err != nil {
			log.Println("audit detail encode failed:", err)
		} else {
			payload = string(encoded)
		}
	}

	_, err := db.Exec(`
		INSERT INTO admin_audit_log (admin_account_id, action_type, scope_type, scope_id, reason, details, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW())
	`, adminAccountID, actionType, scopeType, scopeID, reason, payload)
	if err != nil {
		log.Println("audit insert failed:", err)
	}
}

func recordAdminActionTx(tx *sql.Tx, adminAccountID string, actionType string, scopeType string, scopeID string, reason string, details string) error {
	_, err := tx.Exec(`
		INSERT INTO admin_audit_log (admin_account_id, action_type, scope_type, scope_id, reason, details, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW())
	`, adminAccountID, actionType, scopeType, scopeID, reason, details)
	return err
}

func listAuditLog(db *sql.DB, limit int) ([]AuditLogEntry, error) {
	if limit < 1 || limit > 500 {
		limit = 100
	}

	rows, err := db.Query(`
		SELECT id, admin_account_id, action_type, scope_type, scope_id, COALESCE(reason, ''), COALESCE(details, ''), created_at
		FROM admin_audit_log
		ORDER BY created_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := []AuditLogEntry{}
	for rows.Next() {
		var entry AuditLogEntry
		var details string
		if err := rows.Scan(&entry.ID, &entry.AdminAccountID, &entry.ActionType, &entry.ScopeType, &entry.ScopeID, &entry.Reason, &details, &entry.CreatedAt); err != nil {
			return nil, err
		}
		if details != "" {
			entry.Details = json.RawMessage(details)
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}
