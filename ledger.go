package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

var (
	errNotFound            = errors.New("NOT_FOUND")
	errForbidden           = errors.New("FORBIDDEN")
	errInsufficientBalance = errors.New("INSUFFICIENT_BALANCE")
	errConflict            = errors.New("NAME_TAKEN")
	errValidation          = errors.New("INVALID_REQUEST")
)

// Ledger owns the authoritative ticket/star balances. Every mutation is a
// single transaction that locks the account row before computing the new
// balance, so concurrent requests against the same account serialize and the
// non-negativity invariant holds.
type Ledger struct {
	db *sql.DB
}

func NewLedger(db *sql.DB) *Ledger {
	return &Ledger{db: db}
}

type AccountSummary struct {
	AccountID string `json:"accountId"`
	Name      string `json:"name"`
	Tickets   int64  `json:"tickets"`
	Stars     int64  `json:"stars"`
	IsAdmin   bool   `json:"isAdmin"`
}

type SpinResult struct {
	Won              bool
	TicketsRemaining int64
}

type StarAdjustResult struct {
	Stars     int64
	Tickets   int64
	Converted bool
}

// AdjustTickets applies delta to the ticket balance and returns the new
// balance. A delta that would drive the balance negative fails closed with
// no mutation.
func (l *Ledger) AdjustTickets(ctx context.Context, accountID string, delta int64) (int64, error) {
	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	var tickets int64
	if err := tx.QueryRowContext(ctx, `
		SELECT tickets
		FROM accounts
		WHERE account_id = $1
		FOR UPDATE
	`, accountID).Scan(&tickets); err != nil {
		if err == sql.ErrNoRows {
			return 0, errNotFound
		}
		return 0, err
	}

	next := tickets + delta
	if next < 0 {
		return tickets, errInsufficientBalance
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE accounts
		SET tickets = $2
		WHERE account_id = $1
	`, accountID, next); err != nil {
		return 0, err
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}

	return next, nil
}

// AdjustStars applies delta to the star balance and then evaluates the
// conversion policy inside the same transaction: whole multiples of the
// threshold become tickets, and last_reset_date records the conversion.
func (l *Ledger) AdjustStars(ctx context.Context, accountID string, delta int64) (StarAdjustResult, error) {
	settings := GetLedgerSettings()

	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return StarAdjustResult{}, err
	}
	defer tx.Rollback()

	var stars int64
	var tickets int64
	if err := tx.QueryRowContext(ctx, `
		SELECT stars, tickets
		FROM accounts
		WHERE account_id = $1
		FOR UPDATE
	`, accountID).Scan(&stars, &tickets); err != nil {
		if err == sql.ErrNoRows {
			return StarAdjustResult{}, errNotFound
		}
		return StarAdjustResult{}, err
	}

	nextStars := stars + delta
	if nextStars < 0 {
		return StarAdjustResult{Stars: stars, Tickets: tickets}, errInsufficientBalance
	}

	payout, remaining := applyConversion(settings.ConversionPolicy, settings.StarThreshold, nextStars)
	result := StarAdjustResult{
		Stars:     remaining,
		Tickets:   tickets + payout,
		Converted: payout > 0,
	}

	if result.Converted {
		if _, err := tx.ExecContext(ctx, `
			UPDATE accounts
			SET stars = $2,
				tickets = $3,
				last_reset_date = CURRENT_DATE
			WHERE account_id = $1
		`, accountID, result.Stars, result.Tickets); err != nil {
			return StarAdjustResult{}, err
		}
	} else {
		if _, err := tx.ExecContext(ctx, `
			UPDATE accounts
			SET stars = $2
			WHERE account_id = $1
		`, accountID, result.Stars); err != nil {
			return StarAdjustResult{}, err
		}
	}

	if err := tx.Commit(); err != nil {
		return StarAdjustResult{}, err
	}

	return result, nil
}

// Spin consumes one ticket and rolls the outcome server-side. Only the
// account owner may spin: a claimed name that differs from the caller's is
// rejected before any store access.
func (l *Ledger) Spin(ctx context.Context, caller *Account, claimedName string) (SpinResult, error) {
	if caller == nil || !strings.EqualFold(caller.Username, strings.TrimSpace(claimedName)) {
		return SpinResult{}, errForbidden
	}

	settings := GetLedgerSettings()

	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return SpinResult{}, err
	}
	defer tx.Rollback()

	var tickets int64
	if err := tx.QueryRowContext(ctx, `
		SELECT tickets
		FROM accounts
		WHERE account_id = $1
		FOR UPDATE
	`, caller.AccountID).Scan(&tickets); err != nil {
		if err == sql.ErrNoRows {
			return SpinResult{}, errNotFound
		}
		return SpinResult{}, err
	}

	if tickets <= 0 {
		return SpinResult{TicketsRemaining: tickets}, errInsufficientBalance
	}

	won, err := rollWin(settings.SpinWinPercent)
	if err != nil {
		return SpinResult{}, err
	}

	remaining := tickets - 1
	if _, err := tx.ExecContext(ctx, `
		UPDATE accounts
		SET tickets = $2
		WHERE account_id = $1
	`, caller.AccountID, remaining); err != nil {
		return SpinResult{}, err
	}

	if err := logSpinTx(tx, caller.AccountID, won, tickets, remaining); err != nil {
		return SpinResult{}, err
	}

	if err := tx.Commit(); err != nil {
		return SpinResult{}, err
	}

	return SpinResult{Won: won, TicketsRemaining: remaining}, nil
}

type accountFilters struct {
	IncludeAdmins bool
	Query         string
	Page          int
	PageSize      int
}

// ListAccounts is the read view over the ledger: username order, optional
// name filter, paginated. It never mutates conversion state.
func (l *Ledger) ListAccounts(ctx context.Context, filters accountFilters) ([]AccountSummary, int, error) {
	if filters.Page < 1 {
		filters.Page = 1
	}
	if filters.PageSize < 1 || filters.PageSize > 100 {
		filters.PageSize = 50
	}

	whereClauses := []string{"1=1"}
	args := []interface{}{}
	argIndex := 1

	if !filters.IncludeAdmins {
		whereClauses = append(whereClauses, "is_admin = FALSE")
	}
	if filters.Query != "" {
		whereClauses = append(whereClauses, "username ILIKE $"+strconv.Itoa(argIndex))
		args = append(args, "%"+filters.Query+"%")
		argIndex++
	}

	where := strings.Join(whereClauses, " AND ")

	var total int
	countQuery := "SELECT COUNT(*) FROM accounts WHERE " + where
	if err := l.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	offset := (filters.Page - 1) * filters.PageSize
	listQuery := fmt.Sprintf(`
		SELECT account_id, username, tickets, stars, is_admin
		FROM accounts
		WHERE %s
		ORDER BY username ASC
		LIMIT $%d OFFSET $%d
	`, where, argIndex, argIndex+1)

	rows, err := l.db.QueryContext(ctx, listQuery, append(args, filters.PageSize, offset)...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	accounts := []AccountSummary{}
	for rows.Next() {
		var summary AccountSummary
		if err := rows.Scan(&summary.AccountID, &summary.Name, &summary.Tickets, &summary.Stars, &summary.IsAdmin); err != nil {
			return nil, 0, err
		}
		accounts = append(accounts, summary)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	return accounts, total, nil
}

// CreateAccount registers a new identity. Usernames are unique and immutable;
// a duplicate maps the store's unique violation to a conflict.
func (l *Ledger) CreateAccount(ctx context.Context, username string, password string, isAdmin bool) (*Account, error) {
	username = strings.TrimSpace(strings.ToLower(username))
	if !isValidUsername(username) {
		return nil, errValidation
	}
	if !isValidPassword(password) {
		return nil, errValidation
	}

	hash, err := hashPassword(password)
	if err != nil {
		return nil, err
	}

	settings := GetLedgerSettings()
	accountID := uuid.NewString()

	_, err = l.db.ExecContext(ctx, `
		INSERT INTO accounts (
			account_id,
			username,
			password_hash,
			is_admin,
			tickets,
			stars,
			created_at,
			last_login_at
		)
		VALUES ($1, $2, $3, $4, $5, 0, NOW(), NOW())
	`, accountID, username, hash, isAdmin, settings.StarterTickets)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, errConflict
		}
		return nil, err
	}

	return &Account{
		AccountID: accountID,
		Username:  username,
		IsAdmin:   isAdmin,
		Tickets:   settings.StarterTickets,
	}, nil
}

// DeleteAccount removes an account and its sessions. The protected admin
// account is never deletable.
func (l *Ledger) DeleteAccount(ctx context.Context, accountID string) error {
	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var protected bool
	if err := tx.QueryRowContext(ctx, `
		SELECT protected
		FROM accounts
		WHERE account_id = $1
		FOR UPDATE
	`, accountID).Scan(&protected); err != nil {
		if err == sql.ErrNoRows {
			return errNotFound
		}
		return err
	}
	if protected {
		return errForbidden
	}

	if _, err := tx.ExecContext(ctx, `
		DELETE FROM sessions
		WHERE account_id = $1
	`, accountID); err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx, `
		DELETE FROM accounts
		WHERE account_id = $1
	`, accountID); err != nil {
		return err
	}

	return tx.Commit()
}

// ResetCredential replaces the stored password hash. The minimum-length
// policy is enforced before hashing.
func (l *Ledger) ResetCredential(ctx context.Context, accountID string, newPassword string) error {
	if !isValidPassword(newPassword) {
		return errValidation
	}

	hash, err := hashPassword(newPassword)
	if err != nil {
		return err
	}

	result, err := l.db.ExecContext(ctx, `
		UPDATE accounts
		SET password_hash = $2
		WHERE account_id = $1
	`, accountID, hash)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return errNotFound
	}
	return nil
}

// AccountByName resolves a username to its account row.
func (l *Ledger) AccountByName(ctx context.Context, username string) (*Account, error) {
	username = strings.TrimSpace(strings.ToLower(username))

	var account Account
	if err := l.db.QueryRowContext(ctx, `
		SELECT account_id, username, is_admin, protected, tickets, stars
		FROM accounts
		WHERE username = $1
	`, username).Scan(&account.AccountID, &account.Username, &account.IsAdmin, &account.Protected, &account.Tickets, &account.Stars); err != nil {
		if err == sql.ErrNoRows {
			return nil, errNotFound
		}
		return nil, err
	}
	return &account, nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	return false
}
