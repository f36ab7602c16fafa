package main

import (
	"database/sql"
	"time"
)

type SpinLogEntry struct {
	ID            int64     `json:"id"`
	AccountID     string    `json:"accountId"`
	Won           bool      `json:"won"`
	TicketsBefore int64     `json:"ticketsBefore"`
	TicketsAfter  int64     `json:"ticketsAfter"`
	CreatedAt     time.Time `json:"createdAt"`
}

func logSpinTx(tx *sql.Tx, accountID string, won bool, ticketsBefore int64, ticketsAfter int64) error {
	_, err := tx.Exec(`
		INSERT INTO spin_log (
			account_id,
			won,
			tickets_before,
			tickets_after,
			created_at
		)
		VALUES ($1, $2, $3, $4, NOW())
	`, accountID, won, ticketsBefore, ticketsAfter)
	return err
}

func listSpins(db *sql.DB, accountID string, limit int) ([]SpinLogEntry, error) {
	if limit < 1 || limit > 500 {
		limit = 100
	}

	query := `
		SELECT id, account_id, won, tickets_before, tickets_after, created_at
		FROM spin_log
		ORDER BY created_at DESC
		LIMIT $1
	`
	args := []interface{}{limit}
	if accountID != "" {
		query = `
			SELECT id, account_id, won, tickets_before, tickets_after, created_at
			FROM spin_log
			WHERE account_id = $1
			ORDER BY created_at DESC
			LIMIT $2
		`
		args = []interface{}{accountID, limit}
	}

	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := []SpinLogEntry{}
	for rows.Next() {
		var entry SpinLogEntry
		if err := rows.Scan(&entry.ID, &entry.AccountID, &entry.Won, &entry.TicketsBefore, &entry.TicketsAfter, &entry.CreatedAt); err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}
