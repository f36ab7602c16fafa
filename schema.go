package main

import (
	"database/sql"
)

func ensureSchema(db *sql.DB) error {

	// accounts table
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS accounts (
			account_id TEXT PRIMARY KEY,
			username TEXT NOT NULL UNIQUE,
			password_hash TEXT NOT NULL,
			is_admin BOOLEAN NOT NULL DEFAULT FALSE,
			protected BOOLEAN NOT NULL DEFAULT FALSE,
			tickets BIGINT NOT NULL DEFAULT 0 CHECK (tickets >= 0),
			stars BIGINT NOT NULL DEFAULT 0 CHECK (stars >= 0),
			last_reset_date DATE NOT NULL DEFAULT DATE '2000-01-01',
			created_at TIMESTAMPTZ NOT NULL,
			last_login_at TIMESTAMPTZ NOT NULL
		);
	`)
	if err != nil {
		return err
	}

	_, err = db.Exec(`
		ALTER TABLE accounts
			ADD COLUMN IF NOT EXISTS protected BOOLEAN NOT NULL DEFAULT FALSE;
	`)
	if err != nil {
		return err
	}

	_, err = db.Exec(`
		ALTER TABLE accounts
			ADD COLUMN IF NOT EXISTS last_reset_date DATE NOT NULL DEFAULT DATE '2000-01-01';
	`)
	if err != nil {
		return err
	}

	// sessions table
	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS sessions (
			session_id TEXT PRIMARY KEY,
			account_id TEXT NOT NULL,
			expires_at TIMESTAMPTZ NOT NULL
		);
	`)
	if err != nil {
		return err
	}

	_, err = db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_sessions_account_id
		ON sessions (account_id);
	`)
	if err != nil {
		return err
	}

	// spin_log table
	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS spin_log (
			id BIGSERIAL PRIMARY KEY,
			account_id TEXT NOT NULL,
			won BOOLEAN NOT NULL,
			tickets_before BIGINT NOT NULL,
			tickets_after BIGINT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL
		);
	`)
	if err != nil {
		return err
	}

	_, err = db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_spin_log_account_id
		ON spin_log (account_id, created_at);
	`)
	if err != nil {
		return err
	}

	// admin_audit_log table
	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS admin_audit_log (
			id BIGSERIAL PRIMARY KEY,
			admin_account_id TEXT NOT NULL,
			action_type TEXT NOT NULL,
			scope_type TEXT NOT NULL,
			scope_id TEXT NOT NULL,
			reason TEXT,
			details TEXT,
			created_at TIMESTAMPTZ NOT NULL
		);
	`)
	if err != nil {
		return err
	}

	// global_settings table
	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS global_settings (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL
		);
	`)
	if err != nil {
		return err
	}

	return nil
}
