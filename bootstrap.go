package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"log"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
)

const startupAdvisoryLockID int64 = 738214905

const protectedAdminUsername = "admin"

var startupLockConn *sql.Conn

func acquireStartupLock(ctx context.Context, db *sql.DB) (*sql.Conn, bool, error) {
	conn, err := db.Conn(ctx)
	if err != nil {
		return nil, false, err
	}
	var acquired bool
	if err := conn.QueryRowContext(ctx, `SELECT pg_try_advisory_lock($1)`, startupAdvisoryLockID).Scan(&acquired); err != nil {
		_ = conn.Close()
		return nil, false, err
	}
	if !acquired {
		_ = conn.Close()
		return nil, false, nil
	}
	return conn, true, nil
}

// ensureAdminAccount creates the protected admin identity on first boot.
// After initialization the account always exists and no exposed operation
// can remove it.
func ensureAdminAccount(ctx context.Context, db *sql.DB) error {
	tx, err := db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var existingID string
	adminErr := tx.QueryRowContext(ctx, `
		SELECT account_id
		FROM accounts
		WHERE protected = TRUE
		LIMIT 1
		FOR UPDATE
	`).Scan(&existingID)
	if adminErr == nil {
		if err := tx.Commit(); err != nil {
			return err
		}
		log.Println("Admin bootstrap: protected account already exists, skipping")
		return nil
	}
	if adminErr != sql.ErrNoRows {
		return adminErr
	}

	adminPassword := strings.TrimSpace(os.Getenv("ADMIN_PASSWORD"))
	if adminPassword == "" {
		return errors.New("ADMIN_PASSWORD required for first boot")
	}
	if !isValidPassword(adminPassword) {
		return errors.New("ADMIN_PASSWORD must be 6-128 characters")
	}

	accountID := uuid.NewString()
	passwordHash, err := hashPassword(adminPassword)
	if err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO accounts (
			account_id,
			username,
			password_hash,
			is_admin,
			protected,
			tickets,
			stars,
			created_at,
			last_login_at
		)
		VALUES ($1, $2, $3, TRUE, TRUE, 0, 0, NOW(), NOW())
	`, accountID, protectedAdminUsername, passwordHash); err != nil {
		return err
	}

	payload, err := json.Marshal(map[string]string{
		"username": protectedAdminUsername,
	})
	if err != nil {
		return err
	}
	if err := recordAdminActionTx(tx, accountID, "admin_bootstrap", "account", accountID, "bootstrap", string(payload)); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return err
	}

	log.Println("Admin bootstrap: created protected admin account")
	return nil
}

func startSessionPruner(db *sql.DB) {
	go func() {
		ticker := time.NewTicker(time.Hour)
		defer ticker.Stop()

		for range ticker.C {
			result, err := db.Exec(`
				DELETE FROM sessions
				WHERE expires_at < NOW()
			`)
			if err != nil {
				log.Println("session prune failed:", err)
				continue
			}
			if pruned, err := result.RowsAffected(); err == nil && pruned > 0 {
				log.Println("session prune removed", pruned, "expired sessions")
			}
		}
	}()
}
