package main

import (
	"context"
	"database/sql"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnsureAdminAccountFirstBoot(t *testing.T) {
	t.Setenv("ADMIN_PASSWORD", "seoan1024")

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT account_id").
		WillReturnError(sql.ErrNoRows)
	mock.ExpectExec("INSERT INTO accounts").
		WithArgs(sqlmock.AnyArg(), "admin", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO admin_audit_log").
		WithArgs(sqlmock.AnyArg(), "admin_bootstrap", "account", sqlmock.AnyArg(), "bootstrap", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	require.NoError(t, ensureAdminAccount(context.Background(), db))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEnsureAdminAccountAlreadyExists(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT account_id").
		WillReturnRows(sqlmock.NewRows([]string{"account_id"}).AddRow("a-admin"))
	mock.ExpectCommit()

	// No insert: the protected account is left exactly as it is.
	require.NoError(t, ensureAdminAccount(context.Background(), db))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEnsureAdminAccountMissingPassword(t *testing.T) {
	t.Setenv("ADMIN_PASSWORD", "")

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT account_id").
		WillReturnError(sql.ErrNoRows)
	mock.ExpectRollback()

	err = ensureAdminAccount(context.Background(), db)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ADMIN_PASSWORD")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEnsureAdminAccountShortPassword(t *testing.T) {
	t.Setenv("ADMIN_PASSWORD", "abc")

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT account_id").
		WillReturnError(sql.ErrNoRows)
	mock.ExpectRollback()

	err = ensureAdminAccount(context.Background(), db)
	require.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
